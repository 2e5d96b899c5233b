// Package handler provides HTTP handlers for the API.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/untilt/messenger/internal/chat"
)

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{
		"error": message,
	})
}

// writeChatError maps core error kinds to HTTP responses.
func writeChatError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, chat.ErrIdentityUnavailable):
		writeError(w, http.StatusUnauthorized, "sign in required")
	case errors.Is(err, chat.ErrConversationNotFound),
		errors.Is(err, chat.ErrWindowNotFound),
		errors.Is(err, chat.ErrRoomNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, chat.ErrNotRoomCreator),
		errors.Is(err, chat.ErrNotRoomMember):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, chat.ErrSendFailed),
		errors.Is(err, chat.ErrPromotionFailed),
		errors.Is(err, chat.ErrDirectoryUnavailable):
		// Transient: the client keeps its input and retries.
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
