// Package chat implements the messaging core: conversation identity,
// the live conversation directory, temporary-conversation promotion,
// per-window message streams, the bounded window manager, presence, and
// chat rooms. It speaks only to the document store and session provider
// abstractions.
package chat

const keySeparator = "_"

// ConversationKey derives the deterministic key both peers use for their 1:1
// conversation: the two ids sorted and joined. Commutative, so neither side
// needs a handshake to agree on the document.
func ConversationKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + keySeparator + b
}
