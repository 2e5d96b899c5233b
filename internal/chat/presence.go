package chat

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/untilt/messenger/internal/store"
	"github.com/untilt/messenger/pkg/logger"
)

// Presence annotates conversation summaries with best-effort online flags
// sourced from user documents. It is advisory UI state; a dropped
// subscription leaves everyone offline rather than failing anything.
type Presence struct {
	st  store.Store
	log *logger.Logger

	mu     sync.RWMutex
	online map[string]bool

	unsub store.Unsubscribe
	once  sync.Once
}

// NewPresence creates a presence annotator. Call Start to begin tracking.
func NewPresence(st store.Store, log *logger.Logger) *Presence {
	return &Presence{st: st, log: log, online: make(map[string]bool)}
}

// Start subscribes to the users collection.
func (p *Presence) Start(ctx context.Context) {
	unsub, err := p.st.Subscribe(ctx, store.Query{Collection: usersCollection},
		func(snap store.Snapshot) {
			online := make(map[string]bool, len(snap))
			for _, doc := range snap {
				u := decodeUser(doc)
				online[u.ID] = u.Online
			}
			p.mu.Lock()
			p.online = online
			p.mu.Unlock()
		},
		func(err error) {
			p.log.Warn("presence subscription dropped", zap.Error(err))
		},
	)
	if err != nil {
		p.log.Warn("presence subscription failed", zap.Error(err))
		return
	}
	p.mu.Lock()
	p.unsub = unsub
	p.mu.Unlock()
}

// Online reports whether a user currently shows as online.
func (p *Presence) Online(userID string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.online[userID]
}

// Close cancels the subscription. Idempotent.
func (p *Presence) Close() {
	p.once.Do(func() {
		p.mu.Lock()
		unsub := p.unsub
		p.unsub = nil
		p.mu.Unlock()
		if unsub != nil {
			unsub()
		}
	})
}
