package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/untilt/messenger/internal/store"
)

type subscription struct {
	query store.Query
	ch    chan store.Snapshot
	once  sync.Once
	done  chan struct{}
}

func (sub *subscription) close() {
	sub.once.Do(func() { close(sub.done) })
}

// Subscribe establishes a live query. Snapshots are delivered on a dedicated
// goroutine in mutation order; intermediate snapshots may be coalesced when
// the consumer is slow, which is safe because every snapshot is a full
// replacement.
func (s *Store) Subscribe(ctx context.Context, q store.Query, onSnapshot func(store.Snapshot), onError func(error)) (store.Unsubscribe, error) {
	sub := &subscription{
		query: q,
		ch:    make(chan store.Snapshot, 1),
		done:  make(chan struct{}),
	}

	s.mu.Lock()
	s.nextSub++
	id := s.nextSub
	s.subs[id] = sub
	sub.ch <- s.evaluateLocked(q)
	s.mu.Unlock()

	go func() {
		defer func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
		}()
		for {
			select {
			case snap := <-sub.ch:
				onSnapshot(snap)
			case <-sub.done:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return sub.close, nil
}

// notifyLocked re-evaluates every subscription over the mutated collection
// and hands it the fresh snapshot, latest-wins. Caller holds s.mu.
func (s *Store) notifyLocked(collection string) {
	for _, sub := range s.subs {
		if sub.query.Collection != collection {
			continue
		}
		snap := s.evaluateLocked(sub.query)
		select {
		case sub.ch <- snap:
		default:
			// Replace the undelivered snapshot with the newer one. All sends
			// happen under s.mu, so the drain cannot race another sender.
			select {
			case <-sub.ch:
			default:
			}
			select {
			case sub.ch <- snap:
			default:
			}
		}
	}
}

// evaluateLocked computes the current result set of a query. Caller holds s.mu.
func (s *Store) evaluateLocked(q store.Query) store.Snapshot {
	var snap store.Snapshot
	for path, doc := range s.docs {
		if store.Parent(path) != q.Collection {
			continue
		}
		if !matches(doc.fields, q.Conditions) {
			continue
		}
		snap = append(snap, store.Document{
			Path:   path,
			ID:     store.LastSegment(path),
			Fields: cloneFields(doc.fields),
			Order:  doc.order,
		})
	}

	sort.Slice(snap, func(i, j int) bool {
		if q.OrderBy != "" {
			c := compare(snap[i].Fields[q.OrderBy], snap[j].Fields[q.OrderBy])
			if c != 0 {
				if q.Descending {
					return c > 0
				}
				return c < 0
			}
		}
		if q.Descending {
			return snap[i].Order > snap[j].Order
		}
		return snap[i].Order < snap[j].Order
	})

	if q.Limit > 0 && len(snap) > q.Limit {
		snap = snap[:q.Limit]
	}
	return snap
}

func matches(fields map[string]any, conds []store.Condition) bool {
	for _, c := range conds {
		switch c.Op {
		case store.OpEqual:
			if fields[c.Field] != c.Value {
				return false
			}
		case store.OpArrayContains:
			if !containsAny(toAnySlice(fields[c.Field]), c.Value) {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func compare(a, b any) int {
	switch av := a.(type) {
	case time.Time:
		bv, ok := b.(time.Time)
		if !ok {
			return 1
		}
		switch {
		case av.Before(bv):
			return -1
		case av.After(bv):
			return 1
		}
		return 0
	case string:
		bv, _ := b.(string)
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		}
		return 0
	case int64:
		bv, _ := b.(int64)
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		}
		return 0
	case float64:
		bv, _ := b.(float64)
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		}
		return 0
	case nil:
		if b == nil {
			return 0
		}
		return -1
	default:
		return 0
	}
}
