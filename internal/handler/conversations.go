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

// ConversationHandler exposes the directory and per-conversation messaging.
type ConversationHandler struct {
	registry *chat.Registry
	logger   *logger.Logger
}

// NewConversationHandler creates a new conversation handler.
func NewConversationHandler(registry *chat.Registry, log *logger.Logger) *ConversationHandler {
	return &ConversationHandler{registry: registry, logger: log}
}

// conversationSummary is a directory entry annotated with presence and the
// caller's unread count.
type conversationSummary struct {
	model.Conversation
	PeerOnline bool  `json:"peer_online"`
	UnreadSelf int64 `json:"unread_self"`
}

func (h *ConversationHandler) messenger(w http.ResponseWriter, r *http.Request) (*chat.Messenger, *model.User) {
	user := middleware.GetUser(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "sign in required")
		return nil, nil
	}
	m, err := h.registry.Messenger(*user)
	if err != nil {
		writeChatError(w, err)
		return nil, nil
	}
	return m, user
}

// List handles GET /api/v1/conversations
func (h *ConversationHandler) List(w http.ResponseWriter, r *http.Request) {
	m, user := h.messenger(w, r)
	if m == nil {
		return
	}

	dir := m.Directory()
	convs := dir.Conversations()
	summaries := make([]conversationSummary, 0, len(convs))
	for _, conv := range convs {
		summaries = append(summaries, conversationSummary{
			Conversation: conv,
			PeerOnline:   m.Presence().Online(conv.Peer(user.ID)),
			UnreadSelf:   conv.Unread[user.ID],
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"conversations": summaries,
		"degraded":      dir.Status() != chat.DirectoryLive,
	})
}

// Messages handles GET /api/v1/conversations/{key}/messages
func (h *ConversationHandler) Messages(w http.ResponseWriter, r *http.Request) {
	m, _ := h.messenger(w, r)
	if m == nil {
		return
	}

	key := chi.URLParam(r, "key")
	if err := middleware.ValidateConversationKey(key); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	msgs := m.Messages(key)
	writeJSON(w, http.StatusOK, map[string]any{
		"messages": msgs,
		"groups":   chat.GroupBySender(msgs),
	})
}

// Send handles POST /api/v1/conversations/{key}/messages
func (h *ConversationHandler) Send(w http.ResponseWriter, r *http.Request) {
	m, _ := h.messenger(w, r)
	if m == nil {
		return
	}

	key := chi.URLParam(r, "key")
	if err := middleware.ValidateConversationKey(key); err != nil {
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

	if err := m.SendMessage(r.Context(), key, req.Text); err != nil {
		writeChatError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// MarkRead handles POST /api/v1/conversations/{key}/read
func (h *ConversationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	m, _ := h.messenger(w, r)
	if m == nil {
		return
	}

	key := chi.URLParam(r, "key")
	if err := middleware.ValidateConversationKey(key); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := m.MarkRead(r.Context(), key); err != nil {
		writeChatError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Presence handles GET /api/v1/users/{id}/presence
func (h *ConversationHandler) Presence(w http.ResponseWriter, r *http.Request) {
	m, _ := h.messenger(w, r)
	if m == nil {
		return
	}

	id := chi.URLParam(r, "id")
	if err := middleware.ValidateUserID(id); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"user_id": id,
		"online":  m.Presence().Online(id),
	})
}
