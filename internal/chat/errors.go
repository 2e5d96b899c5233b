package chat

import "errors"

// Every store failure inside the messaging core is classified into one of
// these before it reaches a caller; handlers map them to HTTP status codes.
var (
	// ErrIdentityUnavailable means no active session exists for an operation
	// that requires one. The caller should prompt for sign-in, not retry.
	ErrIdentityUnavailable = errors.New("no active session")

	// ErrSendFailed means a message or summary write failed. The input text
	// is intact on the caller's side; a retry re-sends.
	ErrSendFailed = errors.New("send failed")

	// ErrPromotionFailed means the merge-write persisting a temporary
	// conversation failed. The window stays temporary so a retry re-attempts
	// promotion.
	ErrPromotionFailed = errors.New("conversation promotion failed")

	// ErrDirectoryUnavailable means the directory subscription could not be
	// established or dropped; the directory retries with backoff on its own.
	ErrDirectoryUnavailable = errors.New("directory unavailable")

	ErrConversationNotFound = errors.New("conversation not found")
	ErrWindowNotFound       = errors.New("chat window not found")
	ErrRoomNotFound         = errors.New("room not found")
	ErrNotRoomCreator       = errors.New("not the room creator")
	ErrNotRoomMember        = errors.New("not a room member")
)
