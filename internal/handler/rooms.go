package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/untilt/messenger/internal/chat"
	"github.com/untilt/messenger/internal/middleware"
	"github.com/untilt/messenger/internal/model"
	"github.com/untilt/messenger/pkg/logger"
)

// RoomHandler handles chat-room endpoints.
type RoomHandler struct {
	rooms  *chat.RoomService
	logger *logger.Logger
}

// NewRoomHandler creates a new room handler.
func NewRoomHandler(rooms *chat.RoomService, log *logger.Logger) *RoomHandler {
	return &RoomHandler{rooms: rooms, logger: log}
}

// Create handles POST /api/v1/rooms
func (h *RoomHandler) Create(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "sign in required")
		return
	}

	var req model.CreateRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := middleware.ValidateRoomName(req.Name); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	room, err := h.rooms.Create(r.Context(), *user, req.Name, req.Description)
	if err != nil {
		writeChatError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, room)
}

// List handles GET /api/v1/rooms
func (h *RoomHandler) List(w http.ResponseWriter, r *http.Request) {
	rooms, err := h.rooms.List(r.Context())
	if err != nil {
		h.logger.Error("failed to list rooms")
		writeError(w, http.StatusInternalServerError, "failed to list rooms")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rooms": rooms})
}

// Get handles GET /api/v1/rooms/{id}
func (h *RoomHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := middleware.ValidateRoomID(id); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	room, err := h.rooms.Get(r.Context(), id)
	if err != nil {
		writeChatError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, room)
}

// Join handles POST /api/v1/rooms/{id}/join
func (h *RoomHandler) Join(w http.ResponseWriter, r *http.Request) {
	h.membership(w, r, h.rooms.Join)
}

// Leave handles POST /api/v1/rooms/{id}/leave
func (h *RoomHandler) Leave(w http.ResponseWriter, r *http.Request) {
	h.membership(w, r, h.rooms.Leave)
}

func (h *RoomHandler) membership(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, roomID, userID string) error) {
	user := middleware.GetUser(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "sign in required")
		return
	}

	id := chi.URLParam(r, "id")
	if err := middleware.ValidateRoomID(id); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := op(r.Context(), id, user.ID); err != nil {
		writeChatError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Send handles POST /api/v1/rooms/{id}/messages
func (h *RoomHandler) Send(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "sign in required")
		return
	}

	id := chi.URLParam(r, "id")
	if err := middleware.ValidateRoomID(id); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req model.SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := middleware.ValidateMessageText(req.Text); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.rooms.Send(r.Context(), id, *user, req.Text); err != nil {
		writeChatError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// Messages handles GET /api/v1/rooms/{id}/messages
func (h *RoomHandler) Messages(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := middleware.ValidateRoomID(id); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	msgs, err := h.rooms.Messages(r.Context(), id)
	if err != nil {
		writeChatError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"messages": msgs,
		"groups":   chat.GroupBySender(msgs),
	})
}

// Clear handles DELETE /api/v1/rooms/{id}/messages
func (h *RoomHandler) Clear(w http.ResponseWriter, r *http.Request) {
	h.destructive(w, r, h.rooms.ClearMessages)
}

// Delete handles DELETE /api/v1/rooms/{id}
func (h *RoomHandler) Delete(w http.ResponseWriter, r *http.Request) {
	h.destructive(w, r, h.rooms.Delete)
}

func (h *RoomHandler) destructive(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, roomID, callerID string) error) {
	user := middleware.GetUser(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "sign in required")
		return
	}

	id := chi.URLParam(r, "id")
	if err := middleware.ValidateRoomID(id); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := op(r.Context(), id, user.ID); err != nil {
		writeChatError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
