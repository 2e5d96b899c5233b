package chat

import (
	"context"
	"fmt"
	"sync"

	"github.com/untilt/messenger/internal/model"
	"github.com/untilt/messenger/internal/store"
)

// MessageStream is the live, ordered message list for one open chat surface.
// Exactly one store subscription is active at a time: re-attaching (for
// example after a temporary conversation is promoted) unsubscribes the
// previous listener before the new one is established, so messages are never
// delivered twice.
type MessageStream struct {
	st store.Store

	mu      sync.RWMutex
	path    string
	msgs    []model.Message
	unsub   store.Unsubscribe
	lastErr error

	updates chan struct{}
	once    sync.Once
}

// NewMessageStream creates a detached stream. Attach binds it to a messages
// collection.
func NewMessageStream(st store.Store) *MessageStream {
	return &MessageStream{st: st, updates: make(chan struct{}, 1)}
}

// Attach subscribes to the given messages collection ordered by creation
// time ascending, replacing any previous subscription. Callers must not
// attach a conversation that is still temporary; there is no backing
// collection to subscribe to yet.
func (s *MessageStream) Attach(ctx context.Context, messagesPath string) error {
	s.mu.Lock()
	prev := s.unsub
	s.unsub = nil
	s.path = messagesPath
	s.mu.Unlock()
	if prev != nil {
		prev()
	}

	q := store.Query{Collection: messagesPath, OrderBy: "createdAt"}
	unsub, err := s.st.Subscribe(ctx, q,
		func(snap store.Snapshot) { s.apply(messagesPath, snap) },
		func(err error) {
			s.mu.Lock()
			s.lastErr = err
			s.mu.Unlock()
		},
	)
	if err != nil {
		return fmt.Errorf("attach message stream %s: %w", messagesPath, err)
	}

	s.mu.Lock()
	if s.path != messagesPath {
		// Re-attached concurrently; drop the stale subscription.
		s.mu.Unlock()
		unsub()
		return nil
	}
	s.unsub = unsub
	s.mu.Unlock()
	return nil
}

func (s *MessageStream) apply(path string, snap store.Snapshot) {
	msgs := make([]model.Message, 0, len(snap))
	for _, doc := range snap {
		msgs = append(msgs, decodeMessage(doc))
	}

	s.mu.Lock()
	if s.path != path {
		s.mu.Unlock()
		return
	}
	s.msgs = msgs
	s.mu.Unlock()

	select {
	case s.updates <- struct{}{}:
	default:
	}
}

// Messages returns the current ordered list.
func (s *MessageStream) Messages() []model.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.Message(nil), s.msgs...)
}

// Err returns the last subscription error, if any.
func (s *MessageStream) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

// Updates signals after each applied snapshot, latest-wins.
func (s *MessageStream) Updates() <-chan struct{} {
	return s.updates
}

// Close cancels the active subscription. Idempotent.
func (s *MessageStream) Close() {
	s.once.Do(func() {
		s.mu.Lock()
		unsub := s.unsub
		s.unsub = nil
		s.mu.Unlock()
		if unsub != nil {
			unsub()
		}
	})
}

// GroupBySender folds an ordered message list into runs of consecutive
// messages from the same sender. Purely presentational; the boundary is a
// sender change.
func GroupBySender(msgs []model.Message) [][]model.Message {
	var groups [][]model.Message
	for _, msg := range msgs {
		n := len(groups)
		if n > 0 && groups[n-1][0].SenderID == msg.SenderID {
			groups[n-1] = append(groups[n-1], msg)
			continue
		}
		groups = append(groups, []model.Message{msg})
	}
	return groups
}
