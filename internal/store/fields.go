package store

import (
	"strings"
	"time"
)

// Field access helpers for decoding schemaless documents. Missing or
// mistyped fields decode to zero values; the data model's defaulting rules
// live with the callers, not here.

// Str returns a string field.
func Str(fields map[string]any, key string) string {
	v, _ := fields[key].(string)
	return v
}

// Bool returns a boolean field.
func Bool(fields map[string]any, key string) bool {
	v, _ := fields[key].(bool)
	return v
}

// Int64 returns a numeric field. JSON round-trips may deliver float64.
func Int64(fields map[string]any, key string) int64 {
	switch v := fields[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	default:
		return 0
	}
}

// Time returns a timestamp field. Accepts time.Time and RFC 3339 strings,
// the latter for values that crossed a JSON boundary.
func Time(fields map[string]any, key string) time.Time {
	switch v := fields[key].(type) {
	case time.Time:
		return v
	case string:
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			return t
		}
	}
	return time.Time{}
}

// Strings returns a string-array field.
func Strings(fields map[string]any, key string) []string {
	switch v := fields[key].(type) {
	case []string:
		return append([]string(nil), v...)
	case []any:
		out := make([]string, 0, len(v))
		for _, e := range v {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// Map returns a nested map field.
func Map(fields map[string]any, key string) map[string]any {
	v, _ := fields[key].(map[string]any)
	return v
}

// Parent returns the collection path of a document path.
func Parent(path string) string {
	i := strings.LastIndexByte(path, '/')
	if i < 0 {
		return ""
	}
	return path[:i]
}

// LastSegment returns the final path segment (the document id).
func LastSegment(path string) string {
	i := strings.LastIndexByte(path, '/')
	return path[i+1:]
}
