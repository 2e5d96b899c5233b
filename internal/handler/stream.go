package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/untilt/messenger/internal/chat"
	"github.com/untilt/messenger/internal/middleware"
	"github.com/untilt/messenger/internal/model"
	"github.com/untilt/messenger/pkg/logger"
	"github.com/untilt/messenger/pkg/metrics"
)

// StreamHandler handles SSE streaming endpoints.
type StreamHandler struct {
	registry *chat.Registry
	logger   *logger.Logger
}

// NewStreamHandler creates a new stream handler.
func NewStreamHandler(registry *chat.Registry, log *logger.Logger) *StreamHandler {
	return &StreamHandler{registry: registry, logger: log}
}

// snapshotEvent carries the full ordered message list. Every event replaces
// the previous one client-side; there is no incremental diffing.
type snapshotEvent struct {
	ConversationKey string          `json:"conversation_key"`
	Messages        []model.Message `json:"messages"`
	Count           int             `json:"count"`
}

// heartbeatEvent keeps idle connections alive through proxies.
type heartbeatEvent struct {
	Timestamp time.Time `json:"timestamp"`
}

// Stream handles GET /api/v1/conversations/{key}/stream
//
// The event stream mirrors the live message listener: one "snapshot" event on
// connect and another after each change, each carrying the whole ordered
// list. A window for the conversation must already be open and persisted;
// temporary conversations have no backing collection to stream from.
func (h *StreamHandler) Stream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user := middleware.GetUser(ctx)
	if user == nil {
		writeError(w, http.StatusUnauthorized, "sign in required")
		return
	}

	key := chi.URLParam(r, "key")
	if err := middleware.ValidateConversationKey(key); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	m, err := h.registry.Messenger(*user)
	if err != nil {
		writeChatError(w, err)
		return
	}

	stream, ok := m.Stream(key)
	if !ok {
		writeError(w, http.StatusNotFound, "no active message stream for conversation")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	metrics.IncrementSSEConnections()
	defer metrics.DecrementSSEConnections()

	log := h.logger.WithSession(middleware.GetCorrelationID(ctx), user.ID)

	sendSSEEvent(w, flusher, "connected", map[string]string{
		"conversation_key": key,
	})

	// Initial snapshot so the client renders without waiting for a change.
	msgs := stream.Messages()
	sendSSEEvent(w, flusher, "snapshot", snapshotEvent{
		ConversationKey: key,
		Messages:        msgs,
		Count:           len(msgs),
	})

	heartbeat := time.NewTicker(30 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("SSE client disconnected", zap.String("conversation", key))
			return

		case <-stream.Updates():
			if err := stream.Err(); err != nil {
				log.Error("message stream error",
					zap.String("conversation", key), zap.Error(err))
			}
			msgs := stream.Messages()
			sendSSEEvent(w, flusher, "snapshot", snapshotEvent{
				ConversationKey: key,
				Messages:        msgs,
				Count:           len(msgs),
			})

		case <-heartbeat.C:
			sendSSEEvent(w, flusher, "heartbeat", heartbeatEvent{
				Timestamp: time.Now(),
			})
		}
	}
}

func sendSSEEvent(w http.ResponseWriter, flusher http.Flusher, event string, data any) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "event: %s\n", event)
	fmt.Fprintf(w, "data: %s\n\n", jsonData)
	flusher.Flush()

	return nil
}
