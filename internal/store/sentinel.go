package store

import "context"

// ServerTimestampSentinel marks a field to be resolved to the store's clock
// at write time.
type ServerTimestampSentinel struct{}

// ServerTimestamp is the write sentinel for server-assigned timestamps.
var ServerTimestamp = ServerTimestampSentinel{}

// ArrayUnionOp atomically adds elements to an array field, skipping elements
// already present. Concurrent unions by different writers are commutative.
type ArrayUnionOp struct{ Elems []any }

// ArrayUnion returns an atomic array-union write value.
func ArrayUnion(elems ...any) ArrayUnionOp { return ArrayUnionOp{Elems: elems} }

// ArrayRemoveOp atomically removes elements from an array field.
type ArrayRemoveOp struct{ Elems []any }

// ArrayRemove returns an atomic array-remove write value.
func ArrayRemove(elems ...any) ArrayRemoveOp { return ArrayRemoveOp{Elems: elems} }

// IncrementOp atomically adds By to a numeric field, treating an absent field
// as zero.
type IncrementOp struct{ By int64 }

// Increment returns an atomic numeric increment write value.
func Increment(by int64) IncrementOp { return IncrementOp{By: by} }

// MutationKind classifies a journaled mutation.
type MutationKind uint8

const (
	MutationSet MutationKind = iota + 1
	MutationDelete
)

// Mutation is one store mutation with all sentinels already resolved to
// concrete values. Set mutations carry the full resulting document state so
// replicas converge by replaying them in order.
type Mutation struct {
	Kind   MutationKind   `json:"kind"`
	Path   string         `json:"path"`
	Fields map[string]any `json:"fields,omitempty"`
	Order  uint64         `json:"order,omitempty"`
}

type suppressJournalKey struct{}

// SuppressJournal returns a context under which stores skip journaling.
// Used when replaying mutations received from another instance, so applied
// ops are not re-published.
func SuppressJournal(ctx context.Context) context.Context {
	return context.WithValue(ctx, suppressJournalKey{}, true)
}

// JournalSuppressed reports whether journaling is disabled on this context.
func JournalSuppressed(ctx context.Context) bool {
	v, _ := ctx.Value(suppressJournalKey{}).(bool)
	return v
}
