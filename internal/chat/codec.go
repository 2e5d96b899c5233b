package chat

import (
	"github.com/untilt/messenger/internal/model"
	"github.com/untilt/messenger/internal/store"
)

// Collection layout. Conversation and room messages share one message schema
// in a "messages" sub-collection.
const (
	conversationsCollection = "conversations"
	roomsCollection         = "rooms"
	usersCollection         = "users"
	messagesSubcollection   = "messages"
)

func conversationPath(key string) string { return conversationsCollection + "/" + key }

func conversationMessages(key string) string {
	return conversationPath(key) + "/" + messagesSubcollection
}

func roomPath(id string) string { return roomsCollection + "/" + id }

func roomMessages(id string) string { return roomPath(id) + "/" + messagesSubcollection }

func decodeConversation(d store.Document) model.Conversation {
	conv := model.Conversation{
		ID:              d.ID,
		Participants:    store.Strings(d.Fields, "participants"),
		LastMessage:     store.Str(d.Fields, "lastMessage"),
		LastMessageTime: store.Time(d.Fields, "lastMessageTime"),
		CreatedAt:       store.Time(d.Fields, "createdAt"),
	}
	if details := store.Map(d.Fields, "participantDetails"); details != nil {
		conv.ParticipantDetails = make(map[string]model.Participant, len(details))
		for id, v := range details {
			entry, _ := v.(map[string]any)
			conv.ParticipantDetails[id] = model.Participant{
				DisplayName: store.Str(entry, "displayName"),
				AvatarURL:   store.Str(entry, "avatarUrl"),
			}
		}
	}
	if unread := store.Map(d.Fields, "unread"); unread != nil {
		conv.Unread = make(map[string]int64, len(unread))
		for id := range unread {
			conv.Unread[id] = store.Int64(unread, id)
		}
	}
	return conv
}

func encodeConversation(conv model.Conversation) map[string]any {
	participants := make([]any, len(conv.Participants))
	for i, p := range conv.Participants {
		participants[i] = p
	}
	details := make(map[string]any, len(conv.ParticipantDetails))
	for id, p := range conv.ParticipantDetails {
		details[id] = map[string]any{
			"displayName": p.DisplayName,
			"avatarUrl":   p.AvatarURL,
		}
	}
	return map[string]any{
		"participants":       participants,
		"participantDetails": details,
		"createdAt":          store.ServerTimestamp,
	}
}

func decodeMessage(d store.Document) model.Message {
	return model.Message{
		ID:         d.ID,
		SenderID:   store.Str(d.Fields, "senderId"),
		SenderName: store.Str(d.Fields, "senderName"),
		Text:       store.Str(d.Fields, "text"),
		CreatedAt:  store.Time(d.Fields, "createdAt"),
		Read:       store.Bool(d.Fields, "read"),
		Order:      d.Order,
	}
}

func encodeMessage(sender model.User, text string) map[string]any {
	return map[string]any{
		"senderId":   sender.ID,
		"senderName": sender.DisplayName(),
		"text":       text,
		"read":       false,
		"createdAt":  store.ServerTimestamp,
	}
}

func decodeRoom(d store.Document) model.Room {
	return model.Room{
		ID:              d.ID,
		CreatorID:       store.Str(d.Fields, "creatorId"),
		Name:            store.Str(d.Fields, "name"),
		Description:     store.Str(d.Fields, "description"),
		Members:         store.Strings(d.Fields, "members"),
		CreatedAt:       store.Time(d.Fields, "createdAt"),
		LastMessage:     store.Str(d.Fields, "lastMessage"),
		LastMessageTime: store.Time(d.Fields, "lastMessageTime"),
	}
}

func decodeUser(d store.Document) model.User {
	return model.User{
		ID:        d.ID,
		FirstName: store.Str(d.Fields, "firstName"),
		LastName:  store.Str(d.Fields, "lastName"),
		AvatarURL: store.Str(d.Fields, "avatarUrl"),
		Online:    store.Bool(d.Fields, "online"),
	}
}
