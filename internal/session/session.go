// Package session abstracts the identity collaborator: who the current user
// is and when sessions start or end. The HTTP layer backs it with JWT
// claims; tests use a static provider.
package session

import (
	"sync"

	"github.com/untilt/messenger/internal/model"
)

// Provider supplies the current user for one session scope. CurrentUser
// returns nil once the session has ended; core operations treat that as
// "identity unavailable" and refuse to touch the store.
type Provider interface {
	CurrentUser() *model.User
}

// Static is a fixed-user provider with an explicit End switch, used by the
// per-user registry and by tests.
type Static struct {
	mu    sync.RWMutex
	user  *model.User
	ended bool
}

// NewStatic creates a provider for the given user.
func NewStatic(user model.User) *Static {
	u := user
	return &Static{user: &u}
}

// CurrentUser returns the session user, or nil after End.
func (s *Static) CurrentUser() *model.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.ended {
		return nil
	}
	u := *s.user
	return &u
}

// End marks the session over. Subsequent CurrentUser calls return nil.
func (s *Static) End() {
	s.mu.Lock()
	s.ended = true
	s.mu.Unlock()
}
