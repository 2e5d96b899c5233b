package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/untilt/messenger/internal/chat"
	"github.com/untilt/messenger/internal/middleware"
	"github.com/untilt/messenger/internal/model"
	"github.com/untilt/messenger/pkg/logger"
)

// WindowHandler manages the caller's open chat windows.
type WindowHandler struct {
	registry *chat.Registry
	logger   *logger.Logger
}

// NewWindowHandler creates a new window handler.
func NewWindowHandler(registry *chat.Registry, log *logger.Logger) *WindowHandler {
	return &WindowHandler{registry: registry, logger: log}
}

func (h *WindowHandler) messenger(w http.ResponseWriter, r *http.Request) *chat.Messenger {
	user := middleware.GetUser(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "sign in required")
		return nil
	}
	m, err := h.registry.Messenger(*user)
	if err != nil {
		writeChatError(w, err)
		return nil
	}
	return m
}

// Open handles POST /api/v1/windows
func (h *WindowHandler) Open(w http.ResponseWriter, r *http.Request) {
	m := h.messenger(w, r)
	if m == nil {
		return
	}

	var req model.OpenChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := middleware.ValidateUserID(req.PeerID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	win, err := m.OpenChat(model.User{
		ID:        req.PeerID,
		FirstName: req.PeerName,
		AvatarURL: req.PeerAvatar,
	})
	if err != nil {
		writeChatError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, win)
}

// List handles GET /api/v1/windows
func (h *WindowHandler) List(w http.ResponseWriter, r *http.Request) {
	m := h.messenger(w, r)
	if m == nil {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"windows": m.Windows(),
	})
}

// Close handles DELETE /api/v1/windows/{key}
func (h *WindowHandler) Close(w http.ResponseWriter, r *http.Request) {
	m := h.messenger(w, r)
	if m == nil {
		return
	}

	key := chi.URLParam(r, "key")
	if err := m.CloseChat(key); err != nil {
		writeChatError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Minimize handles POST /api/v1/windows/{key}/minimize
func (h *WindowHandler) Minimize(w http.ResponseWriter, r *http.Request) {
	h.setMinimized(w, r, true)
}

// Restore handles POST /api/v1/windows/{key}/restore
func (h *WindowHandler) Restore(w http.ResponseWriter, r *http.Request) {
	h.setMinimized(w, r, false)
}

func (h *WindowHandler) setMinimized(w http.ResponseWriter, r *http.Request, minimized bool) {
	m := h.messenger(w, r)
	if m == nil {
		return
	}

	key := chi.URLParam(r, "key")
	var err error
	if minimized {
		err = m.Minimize(key)
	} else {
		err = m.Restore(key)
	}
	if err != nil {
		writeChatError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Logout handles POST /api/v1/logout: ends the session and cancels every
// listener it holds.
func (h *WindowHandler) Logout(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "sign in required")
		return
	}
	h.registry.Drop(userID)
	w.WriteHeader(http.StatusNoContent)
}
