package model

import "time"

// Message is a single immutable chat message. It lives in the messages
// sub-collection of its conversation or room; the creation timestamp is
// assigned by the store at write time.
type Message struct {
	ID         string    `json:"id"`
	SenderID   string    `json:"sender_id"`
	SenderName string    `json:"sender_name"`
	Text       string    `json:"text"`
	CreatedAt  time.Time `json:"created_at"`
	Read       bool      `json:"read,omitempty"`

	// Order is the store-assigned insertion sequence, used only to break
	// timestamp ties.
	Order uint64 `json:"order,omitempty"`
}

// SendMessageRequest is the request body for sending a message.
type SendMessageRequest struct {
	Text string `json:"text"`
}

// OpenChatRequest is the request body for opening a chat window.
type OpenChatRequest struct {
	PeerID     string `json:"peer_id"`
	PeerName   string `json:"peer_name,omitempty"`
	PeerAvatar string `json:"peer_avatar,omitempty"`
}
