package chat

import (
	"context"
	"sync"

	"github.com/untilt/messenger/internal/model"
	"github.com/untilt/messenger/internal/session"
	"github.com/untilt/messenger/internal/store"
	"github.com/untilt/messenger/pkg/logger"
)

// Registry holds one live Messenger per authenticated user. Sessions are
// created lazily on first use and torn down in one place (Drop on logout,
// CloseAll on shutdown), so listener cleanup is never scattered across
// handlers.
type Registry struct {
	st          store.Store
	windowLimit int
	log         *logger.Logger

	mu        sync.Mutex
	sessions  map[string]*registryEntry
	parentCtx context.Context
}

type registryEntry struct {
	provider  *session.Static
	messenger *Messenger
}

// NewRegistry creates an empty registry. ctx scopes every session it will
// create.
func NewRegistry(ctx context.Context, st store.Store, windowLimit int, log *logger.Logger) *Registry {
	return &Registry{
		st:          st,
		windowLimit: windowLimit,
		log:         log,
		sessions:    make(map[string]*registryEntry),
		parentCtx:   ctx,
	}
}

// Messenger returns the user's live session, creating it if absent.
func (r *Registry) Messenger(user model.User) (*Messenger, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if entry, ok := r.sessions[user.ID]; ok {
		return entry.messenger, nil
	}

	provider := session.NewStatic(user)
	m, err := NewMessenger(r.parentCtx, r.st, provider, r.windowLimit, r.log)
	if err != nil {
		return nil, err
	}
	r.sessions[user.ID] = &registryEntry{provider: provider, messenger: m}
	return m, nil
}

// Drop ends a user's session: the provider stops vending an identity and the
// messenger cancels every listener it holds.
func (r *Registry) Drop(userID string) {
	r.mu.Lock()
	entry := r.sessions[userID]
	delete(r.sessions, userID)
	r.mu.Unlock()

	if entry != nil {
		entry.provider.End()
		entry.messenger.Close()
	}
}

// CloseAll tears down every session. Called on server shutdown.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*registryEntry)
	r.mu.Unlock()

	for _, entry := range sessions {
		entry.provider.End()
		entry.messenger.Close()
	}
}
