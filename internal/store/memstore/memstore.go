// Package memstore is an in-memory implementation of the document store
// contract with live queries. It backs tests and single-node deployments;
// paired with the relay it also serves as the local replica of a multi-node
// deployment.
package memstore

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/untilt/messenger/internal/store"
	"github.com/untilt/messenger/pkg/metrics"
)

// Store is a concurrency-safe in-memory document store.
type Store struct {
	mu      sync.Mutex
	docs    map[string]*document
	seq     uint64
	subs    map[uint64]*subscription
	nextSub uint64

	clock   func() time.Time
	journal func(store.Mutation)
}

type document struct {
	fields map[string]any
	order  uint64
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the server-timestamp clock.
func WithClock(clock func() time.Time) Option {
	return func(s *Store) { s.clock = clock }
}

// WithJournal registers a callback invoked after every mutation with the
// resolved result. The relay uses this to mirror local writes to other
// instances. The callback runs outside the store lock.
func WithJournal(fn func(store.Mutation)) Option {
	return func(s *Store) { s.journal = fn }
}

// New creates an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		docs:  make(map[string]*document),
		subs:  make(map[uint64]*subscription),
		clock: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ store.Store = (*Store)(nil)

// Get reads one document.
func (s *Store) Get(ctx context.Context, path string) (*store.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.docs[path]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &store.Document{
		Path:   path,
		ID:     store.LastSegment(path),
		Fields: cloneFields(doc.fields),
		Order:  doc.order,
	}, nil
}

// Add appends a document with a store-assigned id.
func (s *Store) Add(ctx context.Context, collection string, fields map[string]any) (string, error) {
	id := uuid.Must(uuid.NewV7()).String()
	if err := s.Set(ctx, collection+"/"+id, fields, false); err != nil {
		return "", err
	}
	return id, nil
}

// Set upserts a document, resolving write sentinels against current state.
func (s *Store) Set(ctx context.Context, path string, fields map[string]any, merge bool) error {
	s.mu.Lock()
	doc, ok := s.docs[path]
	if !ok {
		s.seq++
		doc = &document{fields: make(map[string]any), order: s.seq}
		s.docs[path] = doc
	}
	if !merge {
		doc.fields = make(map[string]any)
	}
	for k, v := range fields {
		doc.fields[k] = s.resolve(doc.fields[k], v)
	}
	mut := s.journalEntry(ctx, path, doc)
	s.notifyLocked(store.Parent(path))
	s.mu.Unlock()

	metrics.StoreOpsTotal.WithLabelValues("set").Inc()
	s.emit(mut)
	return nil
}

// Update applies a partial write; field keys may use dotted paths.
func (s *Store) Update(ctx context.Context, path string, fields map[string]any) error {
	s.mu.Lock()
	doc, ok := s.docs[path]
	if !ok {
		s.mu.Unlock()
		return store.ErrNotFound
	}
	for k, v := range fields {
		s.applyPath(doc.fields, k, v)
	}
	mut := s.journalEntry(ctx, path, doc)
	s.notifyLocked(store.Parent(path))
	s.mu.Unlock()

	metrics.StoreOpsTotal.WithLabelValues("update").Inc()
	s.emit(mut)
	return nil
}

// Delete removes a document. Absent documents are a no-op.
func (s *Store) Delete(ctx context.Context, path string) error {
	s.mu.Lock()
	if _, ok := s.docs[path]; !ok {
		s.mu.Unlock()
		return nil
	}
	delete(s.docs, path)
	var mut *store.Mutation
	if s.journal != nil && !store.JournalSuppressed(ctx) {
		mut = &store.Mutation{Kind: store.MutationDelete, Path: path}
	}
	s.notifyLocked(store.Parent(path))
	s.mu.Unlock()

	metrics.StoreOpsTotal.WithLabelValues("delete").Inc()
	s.emit(mut)
	return nil
}

// Apply replays a journaled mutation from another instance without
// re-journaling it. The origin's insertion order is kept so timestamp
// tiebreaks agree across replicas.
func (s *Store) Apply(ctx context.Context, mut store.Mutation) error {
	if mut.Kind == store.MutationDelete {
		return s.Delete(store.SuppressJournal(ctx), mut.Path)
	}

	s.mu.Lock()
	doc, ok := s.docs[mut.Path]
	if !ok {
		doc = &document{}
		s.docs[mut.Path] = doc
	}
	if mut.Order != 0 {
		doc.order = mut.Order
		if mut.Order > s.seq {
			s.seq = mut.Order
		}
	} else if doc.order == 0 {
		s.seq++
		doc.order = s.seq
	}
	doc.fields = cloneFields(mut.Fields)
	s.notifyLocked(store.Parent(mut.Path))
	s.mu.Unlock()

	metrics.StoreOpsTotal.WithLabelValues("set").Inc()
	return nil
}

func (s *Store) journalEntry(ctx context.Context, path string, doc *document) *store.Mutation {
	if s.journal == nil || store.JournalSuppressed(ctx) {
		return nil
	}
	return &store.Mutation{
		Kind:   store.MutationSet,
		Path:   path,
		Fields: cloneFields(doc.fields),
		Order:  doc.order,
	}
}

func (s *Store) emit(mut *store.Mutation) {
	if mut != nil && s.journal != nil {
		s.journal(*mut)
	}
}

// resolve turns write sentinels into concrete values against the existing
// field value.
func (s *Store) resolve(existing, v any) any {
	switch sv := v.(type) {
	case store.ServerTimestampSentinel:
		return s.clock()
	case store.IncrementOp:
		cur, _ := existing.(int64)
		if f, ok := existing.(float64); ok {
			cur = int64(f)
		}
		return cur + sv.By
	case store.ArrayUnionOp:
		arr := toAnySlice(existing)
		for _, e := range sv.Elems {
			if !containsAny(arr, e) {
				arr = append(arr, e)
			}
		}
		return arr
	case store.ArrayRemoveOp:
		arr := toAnySlice(existing)
		out := arr[:0]
		for _, cur := range arr {
			if !containsAny(sv.Elems, cur) {
				out = append(out, cur)
			}
		}
		return out
	case map[string]any:
		nested, _ := existing.(map[string]any)
		merged := cloneFields(nested)
		if merged == nil {
			merged = make(map[string]any)
		}
		for k, nv := range sv {
			merged[k] = s.resolve(merged[k], nv)
		}
		return merged
	default:
		return v
	}
}

// applyPath writes a value at a dotted field path, creating intermediate
// maps as needed.
func (s *Store) applyPath(fields map[string]any, key string, v any) {
	parts := strings.Split(key, ".")
	for len(parts) > 1 {
		next, ok := fields[parts[0]].(map[string]any)
		if !ok {
			next = make(map[string]any)
			fields[parts[0]] = next
		}
		fields = next
		parts = parts[1:]
	}
	fields[parts[0]] = s.resolve(fields[parts[0]], v)
}

func toAnySlice(v any) []any {
	switch arr := v.(type) {
	case []any:
		return append([]any(nil), arr...)
	case []string:
		out := make([]any, len(arr))
		for i, e := range arr {
			out[i] = e
		}
		return out
	default:
		return nil
	}
}

func containsAny(arr []any, v any) bool {
	for _, e := range arr {
		if e == v {
			return true
		}
	}
	return false
}

func cloneFields(fields map[string]any) map[string]any {
	if fields == nil {
		return nil
	}
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		if m, ok := v.(map[string]any); ok {
			out[k] = cloneFields(m)
			continue
		}
		if arr, ok := v.([]any); ok {
			out[k] = append([]any(nil), arr...)
			continue
		}
		out[k] = v
	}
	return out
}
