// Package firestore adapts Cloud Firestore to the document store contract.
// Paths and query operators map one to one, so this adapter is mostly
// translation of write sentinels and snapshot decoding.
package firestore

import (
	"context"
	"fmt"

	gfs "cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/untilt/messenger/internal/store"
)

// Store implements store.Store over a Firestore client.
type Store struct {
	client *gfs.Client
}

// New wraps a Firestore client.
func New(client *gfs.Client) *Store {
	return &Store{client: client}
}

var _ store.Store = (*Store)(nil)

// Get reads one document.
func (s *Store) Get(ctx context.Context, path string) (*store.Document, error) {
	snap, err := s.client.Doc(path).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("firestore get %s: %w", path, err)
	}
	return decodeSnapshot(snap, path), nil
}

// Add appends a document with a Firestore-assigned id.
func (s *Store) Add(ctx context.Context, collection string, fields map[string]any) (string, error) {
	ref, _, err := s.client.Collection(collection).Add(ctx, translateFields(fields))
	if err != nil {
		return "", fmt.Errorf("firestore add to %s: %w", collection, err)
	}
	return ref.ID, nil
}

// Set upserts a document.
func (s *Store) Set(ctx context.Context, path string, fields map[string]any, merge bool) error {
	var opts []gfs.SetOption
	if merge {
		opts = append(opts, gfs.MergeAll)
	}
	if _, err := s.client.Doc(path).Set(ctx, translateFields(fields), opts...); err != nil {
		return fmt.Errorf("firestore set %s: %w", path, err)
	}
	return nil
}

// Update applies a partial write to an existing document.
func (s *Store) Update(ctx context.Context, path string, fields map[string]any) error {
	updates := make([]gfs.Update, 0, len(fields))
	for k, v := range fields {
		updates = append(updates, gfs.Update{Path: k, Value: translateValue(v)})
	}
	_, err := s.client.Doc(path).Update(ctx, updates)
	if status.Code(err) == codes.NotFound {
		return store.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("firestore update %s: %w", path, err)
	}
	return nil
}

// Delete removes a document.
func (s *Store) Delete(ctx context.Context, path string) error {
	if _, err := s.client.Doc(path).Delete(ctx); err != nil {
		return fmt.Errorf("firestore delete %s: %w", path, err)
	}
	return nil
}

// Subscribe establishes a Firestore snapshot listener for the query.
func (s *Store) Subscribe(ctx context.Context, q store.Query, onSnapshot func(store.Snapshot), onError func(error)) (store.Unsubscribe, error) {
	query := gfs.Query(s.client.Collection(q.Collection).Query)
	for _, c := range q.Conditions {
		query = query.Where(c.Field, c.Op, c.Value)
	}
	if q.OrderBy != "" {
		dir := gfs.Asc
		if q.Descending {
			dir = gfs.Desc
		}
		query = query.OrderBy(q.OrderBy, dir)
	}
	if q.Limit > 0 {
		query = query.Limit(q.Limit)
	}

	ctx, cancel := context.WithCancel(ctx)
	iter := query.Snapshots(ctx)

	go func() {
		defer iter.Stop()
		for {
			qsnap, err := iter.Next()
			if err == iterator.Done {
				return
			}
			if err != nil {
				if ctx.Err() == nil {
					onError(fmt.Errorf("firestore listener on %s: %w", q.Collection, err))
				}
				return
			}
			docs, err := qsnap.Documents.GetAll()
			if err != nil {
				onError(fmt.Errorf("firestore snapshot on %s: %w", q.Collection, err))
				return
			}
			snap := make(store.Snapshot, 0, len(docs))
			for i, d := range docs {
				doc := decodeSnapshot(d, q.Collection+"/"+d.Ref.ID)
				doc.Order = uint64(i)
				snap = append(snap, *doc)
			}
			onSnapshot(snap)
		}
	}()

	return store.Unsubscribe(cancel), nil
}

func decodeSnapshot(snap *gfs.DocumentSnapshot, path string) *store.Document {
	return &store.Document{
		Path:   path,
		ID:     snap.Ref.ID,
		Fields: snap.Data(),
	}
}

func translateFields(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[k] = translateValue(v)
	}
	return out
}

func translateValue(v any) any {
	switch sv := v.(type) {
	case store.ServerTimestampSentinel:
		return gfs.ServerTimestamp
	case store.ArrayUnionOp:
		return gfs.ArrayUnion(sv.Elems...)
	case store.ArrayRemoveOp:
		return gfs.ArrayRemove(sv.Elems...)
	case store.IncrementOp:
		return gfs.Increment(sv.By)
	case map[string]any:
		return translateFields(sv)
	default:
		return v
	}
}
