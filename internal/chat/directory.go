package chat

import (
	"context"
	"sort"
	"sync"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/untilt/messenger/internal/model"
	"github.com/untilt/messenger/internal/store"
	"github.com/untilt/messenger/pkg/logger"
	"github.com/untilt/messenger/pkg/metrics"
)

// DirectoryStatus is the health of the directory subscription.
type DirectoryStatus int

const (
	DirectoryLive DirectoryStatus = iota
	DirectoryDegraded
	DirectoryClosed
)

// Directory maintains the live, recency-ordered list of persisted
// conversations that include one user. Each store snapshot replaces the list
// wholesale; ordering is derived client-side from lastMessageTime because the
// summary writes and the subscription are only eventually consistent with
// each other.
//
// A dropped subscription degrades the directory and triggers resubscription
// with exponential backoff. It never silently stays empty.
type Directory struct {
	st     store.Store
	userID string
	log    *logger.Logger

	mu     sync.RWMutex
	convs  []model.Conversation
	status DirectoryStatus

	unsub   store.Unsubscribe
	updates chan struct{}
	cancel  context.CancelFunc
	once    sync.Once
}

// NewDirectory creates a directory for the given user. Call Start to begin
// receiving snapshots.
func NewDirectory(st store.Store, userID string, log *logger.Logger) *Directory {
	return &Directory{
		st:      st,
		userID:  userID,
		log:     log,
		status:  DirectoryDegraded,
		updates: make(chan struct{}, 1),
	}
}

// Start establishes the live query. If it cannot be established the
// directory stays degraded and keeps retrying until Close or ctx
// cancellation.
func (d *Directory) Start(ctx context.Context) {
	ctx, d.cancel = context.WithCancel(ctx)
	if err := d.subscribe(ctx); err != nil {
		d.log.Warn("directory subscription failed, retrying",
			zap.String("user_id", d.userID), zap.Error(err))
		go d.resubscribe(ctx)
	}
}

func (d *Directory) subscribe(ctx context.Context) error {
	q := store.Query{Collection: conversationsCollection}.
		Where("participants", store.OpArrayContains, d.userID)

	unsub, err := d.st.Subscribe(ctx, q,
		func(snap store.Snapshot) { d.apply(snap) },
		func(err error) {
			d.log.Warn("directory subscription dropped",
				zap.String("user_id", d.userID), zap.Error(err))
			d.setStatus(DirectoryDegraded)
			go d.resubscribe(ctx)
		},
	)
	if err != nil {
		return err
	}

	d.mu.Lock()
	d.unsub = unsub
	d.mu.Unlock()
	return nil
}

// resubscribe retries the live query with exponential backoff until it
// sticks or the directory is torn down.
func (d *Directory) resubscribe(ctx context.Context) {
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 0
	ticker := backoff.NewTicker(bo)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-ticker.C:
			if !ok {
				return
			}
		}

		if d.Status() == DirectoryClosed {
			return
		}
		metrics.DirectoryResubscribes.Inc()
		if err := d.subscribe(ctx); err == nil {
			d.log.Info("directory subscription restored", zap.String("user_id", d.userID))
			return
		}
	}
}

func (d *Directory) apply(snap store.Snapshot) {
	convs := make([]model.Conversation, 0, len(snap))
	for _, doc := range snap {
		convs = append(convs, decodeConversation(doc))
	}
	sort.SliceStable(convs, func(i, j int) bool {
		return convs[i].LastMessageTime.After(convs[j].LastMessageTime)
	})

	d.mu.Lock()
	d.convs = convs
	d.status = DirectoryLive
	d.mu.Unlock()

	select {
	case d.updates <- struct{}{}:
	default:
	}
}

// Conversations returns the current list, most recent first.
func (d *Directory) Conversations() []model.Conversation {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]model.Conversation(nil), d.convs...)
}

// FindWith returns the persisted conversation shared with the given peer,
// if any.
func (d *Directory) FindWith(peerID string) (model.Conversation, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, conv := range d.convs {
		for _, p := range conv.Participants {
			if p == peerID {
				return conv, true
			}
		}
	}
	return model.Conversation{}, false
}

// Status reports subscription health.
func (d *Directory) Status() DirectoryStatus {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.status
}

func (d *Directory) setStatus(s DirectoryStatus) {
	d.mu.Lock()
	d.status = s
	d.mu.Unlock()
}

// Updates signals after each applied snapshot, latest-wins.
func (d *Directory) Updates() <-chan struct{} {
	return d.updates
}

// Close tears down the subscription. Idempotent; guaranteed on every exit
// path via Messenger.Close.
func (d *Directory) Close() {
	d.once.Do(func() {
		d.setStatus(DirectoryClosed)
		d.mu.Lock()
		unsub := d.unsub
		d.mu.Unlock()
		if unsub != nil {
			unsub()
		}
		if d.cancel != nil {
			d.cancel()
		}
	})
}
