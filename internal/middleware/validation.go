package middleware

import (
	"errors"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

// Conversation keys are two user ids sorted and joined by an underscore.
var conversationKeyPattern = regexp.MustCompile(`^[A-Za-z0-9-]+_[A-Za-z0-9_-]+$`)

// ValidateMessageText validates message text.
func ValidateMessageText(text string) error {
	if len(text) == 0 {
		return errors.New("text cannot be empty")
	}
	if len(text) > 10000 {
		return errors.New("text exceeds maximum length")
	}
	if !utf8.ValidString(text) {
		return errors.New("text must be valid UTF-8")
	}
	return nil
}

// ValidateConversationKey validates a composite conversation key.
func ValidateConversationKey(key string) error {
	if !conversationKeyPattern.MatchString(key) {
		return errors.New("invalid conversation key format")
	}
	return nil
}

// ValidateRoomID validates a room id.
func ValidateRoomID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return errors.New("invalid room ID format")
	}
	return nil
}

// ValidateUserID validates a user id.
func ValidateUserID(id string) error {
	if len(id) == 0 || len(id) > 128 {
		return errors.New("invalid user ID")
	}
	if strings.ContainsAny(id, "/ \t\n") {
		return errors.New("invalid user ID")
	}
	return nil
}

// ValidateRoomName validates a room name.
func ValidateRoomName(name string) error {
	if strings.TrimSpace(name) == "" {
		return errors.New("room name cannot be empty")
	}
	if len(name) > 100 {
		return errors.New("room name exceeds maximum length")
	}
	if !utf8.ValidString(name) {
		return errors.New("room name must be valid UTF-8")
	}
	return nil
}
