// Package store defines the document-store contract the messaging core is
// built against: schemaless documents addressed by slash-separated paths,
// live queries delivering full snapshots, and server-resolved write sentinels.
// Adapters (memstore, firestore) implement Store.
package store

import (
	"context"
	"errors"
)

// Condition operators understood by queries.
const (
	OpEqual         = "=="
	OpArrayContains = "array-contains"
)

// Condition is a single field predicate.
type Condition struct {
	Field string
	Op    string
	Value any
}

// Query describes a live query over one collection.
type Query struct {
	Collection string
	Conditions []Condition
	OrderBy    string
	Descending bool
	Limit      int
}

// Where appends an equality or array-contains predicate.
func (q Query) Where(field, op string, value any) Query {
	q.Conditions = append(q.Conditions, Condition{Field: field, Op: op, Value: value})
	return q
}

// Document is one decoded document.
type Document struct {
	Path   string
	ID     string
	Fields map[string]any

	// Order is the store-assigned insertion sequence within the store,
	// used to break ordering ties.
	Order uint64
}

// Snapshot is the full result set of a query at one point in time.
// Subscribers replace their state wholesale on every snapshot.
type Snapshot []Document

// Unsubscribe cancels a live query. Safe to call more than once.
type Unsubscribe func()

// ErrNotFound is returned by Get and Update when the document is absent.
var ErrNotFound = errors.New("store: document not found")

// Store is the document store collaborator.
type Store interface {
	// Subscribe establishes a live query. onSnapshot is invoked with the
	// initial result set and again after every matching mutation, in order.
	// onError reports a dropped subscription; no further snapshots follow it.
	Subscribe(ctx context.Context, q Query, onSnapshot func(Snapshot), onError func(error)) (Unsubscribe, error)

	// Get reads one document, or ErrNotFound.
	Get(ctx context.Context, path string) (*Document, error)

	// Add appends a document with a store-assigned id, returning the id.
	Add(ctx context.Context, collection string, fields map[string]any) (string, error)

	// Set upserts a document. With merge, given fields overlay the existing
	// document; without, they replace it.
	Set(ctx context.Context, path string, fields map[string]any, merge bool) error

	// Update applies a partial write to an existing document. Field keys may
	// use dotted paths ("unread.u1"). Fails with ErrNotFound if absent.
	Update(ctx context.Context, path string, fields map[string]any) error

	// Delete removes a document. Deleting an absent document is a no-op.
	Delete(ctx context.Context, path string) error
}

// QueryOnce runs a query as a one-shot read: subscribe, take the first
// snapshot, unsubscribe.
func QueryOnce(ctx context.Context, st Store, q Query) (Snapshot, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	snaps := make(chan Snapshot, 1)
	errs := make(chan error, 1)
	unsub, err := st.Subscribe(ctx, q,
		func(s Snapshot) {
			select {
			case snaps <- s:
			default:
			}
		},
		func(err error) {
			select {
			case errs <- err:
			default:
			}
		},
	)
	if err != nil {
		return nil, err
	}
	defer unsub()

	select {
	case s := <-snaps:
		return s, nil
	case err := <-errs:
		return nil, err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
