package model

import "time"

// Room is a multi-party chat thread with explicit membership. Unlike 1:1
// conversations, rooms have a store-assigned id, a creator, and join/leave
// semantics; the creator is always a member.
type Room struct {
	ID              string    `json:"id"`
	CreatorID       string    `json:"creator_id"`
	Name            string    `json:"name"`
	Description     string    `json:"description,omitempty"`
	Members         []string  `json:"members"`
	CreatedAt       time.Time `json:"created_at"`
	LastMessage     string    `json:"last_message,omitempty"`
	LastMessageTime time.Time `json:"last_message_time,omitempty"`
}

// IsMember reports whether the given user belongs to the room.
func (r Room) IsMember(userID string) bool {
	for _, m := range r.Members {
		if m == userID {
			return true
		}
	}
	return false
}

// CreateRoomRequest is the request body for creating a room.
type CreateRoomRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}
