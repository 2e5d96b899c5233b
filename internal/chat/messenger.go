package chat

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/untilt/messenger/internal/model"
	"github.com/untilt/messenger/internal/session"
	"github.com/untilt/messenger/internal/store"
	"github.com/untilt/messenger/pkg/logger"
	"github.com/untilt/messenger/pkg/metrics"
)

// Messenger orchestrates one user's messaging session: the conversation
// directory, presence, open chat windows, their message streams, and the
// temporary-conversation promotion flow. Close is the single teardown hook
// for everything the session holds; nothing else cancels listeners.
//
// Message lists are derived solely from store subscriptions. A send never
// echoes locally; the message appears when the subscription delivers it.
type Messenger struct {
	st       store.Store
	provider session.Provider
	log      *logger.Logger

	dir      *Directory
	presence *Presence
	windows  *WindowManager

	mu      sync.Mutex
	streams map[string]*MessageStream
	pending map[string]model.Conversation

	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once
}

// NewMessenger builds and starts a messaging session for the provider's
// current user.
func NewMessenger(ctx context.Context, st store.Store, provider session.Provider, windowLimit int, log *logger.Logger) (*Messenger, error) {
	user := provider.CurrentUser()
	if user == nil {
		return nil, ErrIdentityUnavailable
	}

	ctx, cancel := context.WithCancel(ctx)
	m := &Messenger{
		st:       st,
		provider: provider,
		log:      log,
		dir:      NewDirectory(st, user.ID, log),
		presence: NewPresence(st, log),
		windows:  NewWindowManager(windowLimit),
		streams:  make(map[string]*MessageStream),
		pending:  make(map[string]model.Conversation),
		ctx:      ctx,
		cancel:   cancel,
	}
	m.dir.Start(ctx)
	m.presence.Start(ctx)
	return m, nil
}

// OpenChat opens (or re-activates) a chat window with the given peer. When
// no persisted conversation exists yet, a client-local temporary one is
// synthesized and nothing is written to the store until the first send.
func (m *Messenger) OpenChat(peer model.User) (Window, error) {
	user := m.provider.CurrentUser()
	if user == nil {
		return Window{}, ErrIdentityUnavailable
	}

	key := ConversationKey(user.ID, peer.ID)
	temporary := true
	if conv, ok := m.dir.FindWith(peer.ID); ok {
		key = conv.ID
		temporary = false
	}

	win := Window{
		Key:        key,
		PeerID:     peer.ID,
		PeerName:   peer.DisplayName(),
		PeerAvatar: peer.AvatarURL,
		Temporary:  temporary,
	}

	evicted, existed := m.windows.Open(win)
	if existed {
		w, _ := m.windows.Get(key)
		return w, nil
	}
	if evicted != "" {
		m.dropStream(evicted)
		m.mu.Lock()
		delete(m.pending, evicted)
		m.mu.Unlock()
	}

	if temporary {
		m.mu.Lock()
		m.pending[key] = model.Conversation{
			ID:           key,
			Participants: []string{user.ID, peer.ID},
			ParticipantDetails: map[string]model.Participant{
				user.ID: {DisplayName: user.DisplayName(), AvatarURL: user.AvatarURL},
				peer.ID: {DisplayName: peer.DisplayName(), AvatarURL: peer.AvatarURL},
			},
			Temporary: true,
		}
		m.mu.Unlock()
	} else if err := m.attachStream(key); err != nil {
		m.log.Warn("message stream attach failed",
			zap.String("conversation", key), zap.Error(err))
	}

	metrics.OpenWindows.Set(float64(m.windows.Len()))
	w, _ := m.windows.Get(key)
	return w, nil
}

// CloseChat closes a window and synchronously cancels its message listener.
func (m *Messenger) CloseChat(key string) error {
	_, closed := m.windows.Close(key)
	if !closed {
		return ErrWindowNotFound
	}
	m.dropStream(key)
	m.mu.Lock()
	delete(m.pending, key)
	m.mu.Unlock()
	metrics.OpenWindows.Set(float64(m.windows.Len()))
	return nil
}

// Minimize and Restore toggle a window's minimized state.
func (m *Messenger) Minimize(key string) error { return m.setMinimized(key, true) }

// Restore un-minimizes a window.
func (m *Messenger) Restore(key string) error { return m.setMinimized(key, false) }

func (m *Messenger) setMinimized(key string, minimized bool) error {
	if !m.windows.SetMinimized(key, minimized) {
		return ErrWindowNotFound
	}
	return nil
}

// SendMessage sends text into the conversation behind key. A temporary
// conversation is promoted first: the conversation document is merge-written
// at the deterministic key, and only after that write confirms does the
// window flip to persisted and the message stream attach. The message itself
// and the lastMessage summary are then written; the summary is a
// last-writer-wins cache and needs no conflict handling.
func (m *Messenger) SendMessage(ctx context.Context, key, text string) error {
	user := m.provider.CurrentUser()
	if user == nil {
		return ErrIdentityUnavailable
	}

	m.mu.Lock()
	pendingConv, isPending := m.pending[key]
	m.mu.Unlock()

	if isPending {
		if err := m.promote(ctx, key, pendingConv); err != nil {
			return err
		}
	} else if _, ok := m.windows.Get(key); !ok {
		// Sends without a window are allowed for conversations already in
		// the directory (e.g. replying straight from the inbox list).
		if !m.inDirectory(key) {
			return ErrConversationNotFound
		}
	}

	if _, err := m.st.Add(ctx, conversationMessages(key), encodeMessage(*user, text)); err != nil {
		return fmt.Errorf("%w: %v", ErrSendFailed, err)
	}

	summary := map[string]any{
		"lastMessage":     text,
		"lastMessageTime": store.ServerTimestamp,
	}
	if peer := m.peerOf(key, user.ID); peer != "" {
		summary["unread."+peer] = store.Increment(1)
	}
	if err := m.st.Update(ctx, conversationPath(key), summary); err != nil {
		return fmt.Errorf("%w: updating summary: %v", ErrSendFailed, err)
	}

	metrics.MessagesTotal.WithLabelValues("direct").Inc()
	return nil
}

// promote merge-writes the temporary conversation at its resolved key. The
// temporary flag flips only after the write confirms, so a failed promotion
// retries instead of silently diverging from the store.
func (m *Messenger) promote(ctx context.Context, key string, conv model.Conversation) error {
	if err := m.st.Set(ctx, conversationPath(key), encodeConversation(conv), true); err != nil {
		return fmt.Errorf("%w: %v", ErrPromotionFailed, err)
	}

	m.windows.MarkPersisted(key)
	m.mu.Lock()
	delete(m.pending, key)
	m.mu.Unlock()

	if err := m.attachStream(key); err != nil {
		m.log.Warn("stream attach after promotion failed",
			zap.String("conversation", key), zap.Error(err))
	}
	return nil
}

// MarkRead zeroes the caller's unread counter on a conversation.
func (m *Messenger) MarkRead(ctx context.Context, key string) error {
	user := m.provider.CurrentUser()
	if user == nil {
		return ErrIdentityUnavailable
	}
	err := m.st.Update(ctx, conversationPath(key), map[string]any{
		"unread." + user.ID: int64(0),
	})
	if errors.Is(err, store.ErrNotFound) {
		return ErrConversationNotFound
	}
	return err
}

// Messages returns the current ordered list for an open window's stream, or
// nil when no stream is attached.
func (m *Messenger) Messages(key string) []model.Message {
	m.mu.Lock()
	stream := m.streams[key]
	m.mu.Unlock()
	if stream == nil {
		return nil
	}
	return stream.Messages()
}

// Stream exposes a window's live message stream.
func (m *Messenger) Stream(key string) (*MessageStream, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stream, ok := m.streams[key]
	return stream, ok
}

// Windows returns the open windows in open order.
func (m *Messenger) Windows() []Window { return m.windows.Windows() }

// Directory exposes the live conversation directory.
func (m *Messenger) Directory() *Directory { return m.dir }

// Presence exposes the presence annotator.
func (m *Messenger) Presence() *Presence { return m.presence }

func (m *Messenger) attachStream(key string) error {
	m.mu.Lock()
	stream, ok := m.streams[key]
	if !ok {
		stream = NewMessageStream(m.st)
		m.streams[key] = stream
	}
	m.mu.Unlock()
	return stream.Attach(m.ctx, conversationMessages(key))
}

func (m *Messenger) dropStream(key string) {
	m.mu.Lock()
	stream := m.streams[key]
	delete(m.streams, key)
	m.mu.Unlock()
	if stream != nil {
		stream.Close()
	}
}

func (m *Messenger) inDirectory(key string) bool {
	for _, conv := range m.dir.Conversations() {
		if conv.ID == key {
			return true
		}
	}
	return false
}

// peerOf resolves the other participant of a 1:1 conversation, from the
// window, the pending record, or the directory.
func (m *Messenger) peerOf(key, selfID string) string {
	if w, ok := m.windows.Get(key); ok {
		return w.PeerID
	}
	m.mu.Lock()
	conv, ok := m.pending[key]
	m.mu.Unlock()
	if ok {
		return conv.Peer(selfID)
	}
	for _, c := range m.dir.Conversations() {
		if c.ID == key {
			return c.Peer(selfID)
		}
	}
	return ""
}

// Close tears down the whole session: directory, presence, and every open
// window's message stream. Safe to call more than once.
func (m *Messenger) Close() {
	m.once.Do(func() {
		m.cancel()
		m.dir.Close()
		m.presence.Close()
		m.mu.Lock()
		streams := m.streams
		m.streams = make(map[string]*MessageStream)
		m.mu.Unlock()
		for _, s := range streams {
			s.Close()
		}
	})
}
