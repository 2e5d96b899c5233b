package model

import "time"

// Participant is the denormalized display snapshot captured per participant
// when a conversation is persisted. It is never refreshed after profile edits.
type Participant struct {
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url,omitempty"`
}

// Conversation is a 1:1 message thread. Its id is always the deterministic
// composite of the two participant ids (sorted, joined), so both peers
// converge on the same document without coordination.
type Conversation struct {
	ID                 string                 `json:"id"`
	Participants       []string               `json:"participants"`
	ParticipantDetails map[string]Participant `json:"participant_details,omitempty"`
	LastMessage        string                 `json:"last_message,omitempty"`
	LastMessageTime    time.Time              `json:"last_message_time,omitempty"`
	CreatedAt          time.Time              `json:"created_at,omitempty"`

	// Unread holds per-user unread counters keyed by user id.
	Unread map[string]int64 `json:"unread,omitempty"`

	// Temporary marks a client-local placeholder that has not been written to
	// the store yet. A temporary conversation is never visible to the peer and
	// never appears in the directory.
	Temporary bool `json:"temporary,omitempty"`
}

// Peer returns the other participant's id for a 1:1 conversation.
func (c Conversation) Peer(selfID string) string {
	for _, p := range c.Participants {
		if p != selfID {
			return p
		}
	}
	return ""
}
