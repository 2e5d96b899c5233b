package store

import (
	"encoding/json"
	"strconv"
	"time"
)

// Wire tags for field values whose Go type plain JSON cannot carry.
// Timestamps drive query ordering and counters are read as int64, so both
// must survive the trip between instances intact.
const (
	wireTimeKey = "$time"
	wireIntKey  = "$int"
)

type mutationWire struct {
	Kind   MutationKind   `json:"kind"`
	Path   string         `json:"path"`
	Fields map[string]any `json:"fields,omitempty"`
	Order  uint64         `json:"order,omitempty"`
}

// MarshalJSON encodes the mutation with type tags on timestamps and integer
// values, so a replica applying it reconstructs the exact field types the
// origin resolved.
func (m Mutation) MarshalJSON() ([]byte, error) {
	return json.Marshal(mutationWire{
		Kind:   m.Kind,
		Path:   m.Path,
		Fields: encodeWireFields(m.Fields),
		Order:  m.Order,
	})
}

// UnmarshalJSON restores the tagged field types.
func (m *Mutation) UnmarshalJSON(data []byte) error {
	var w mutationWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	m.Kind = w.Kind
	m.Path = w.Path
	m.Fields = decodeWireFields(w.Fields)
	m.Order = w.Order
	return nil
}

func encodeWireFields(fields map[string]any) map[string]any {
	if fields == nil {
		return nil
	}
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[k] = encodeWireValue(v)
	}
	return out
}

func encodeWireValue(v any) any {
	switch tv := v.(type) {
	case time.Time:
		return map[string]any{wireTimeKey: tv.Format(time.RFC3339Nano)}
	case int64:
		return map[string]any{wireIntKey: strconv.FormatInt(tv, 10)}
	case int:
		return map[string]any{wireIntKey: strconv.Itoa(tv)}
	case map[string]any:
		return encodeWireFields(tv)
	case []any:
		out := make([]any, len(tv))
		for i, e := range tv {
			out[i] = encodeWireValue(e)
		}
		return out
	default:
		return v
	}
}

func decodeWireFields(fields map[string]any) map[string]any {
	if fields == nil {
		return nil
	}
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[k] = decodeWireValue(v)
	}
	return out
}

func decodeWireValue(v any) any {
	switch tv := v.(type) {
	case map[string]any:
		if len(tv) == 1 {
			if s, ok := tv[wireTimeKey].(string); ok {
				if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
					return t
				}
			}
			if s, ok := tv[wireIntKey].(string); ok {
				if n, err := strconv.ParseInt(s, 10, 64); err == nil {
					return n
				}
			}
		}
		return decodeWireFields(tv)
	case []any:
		out := make([]any, len(tv))
		for i, e := range tv {
			out[i] = decodeWireValue(e)
		}
		return out
	default:
		return v
	}
}
