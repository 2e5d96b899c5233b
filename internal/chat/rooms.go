package chat

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/untilt/messenger/internal/model"
	"github.com/untilt/messenger/internal/store"
	"github.com/untilt/messenger/pkg/logger"
	"github.com/untilt/messenger/pkg/metrics"
)

// deleteBatchSize bounds how many message documents a cascade delete removes
// per page, so clearing a large room never issues one unbounded operation.
const deleteBatchSize = 100

// RoomService manages multi-party chat rooms: membership transitions
// (nonmember, member) and the creator-gated destructive operations. Room
// membership mutates via atomic array union/remove, so concurrent joins by
// different users commute without locking.
type RoomService struct {
	st  store.Store
	log *logger.Logger

	// batchSize overrides deleteBatchSize in tests.
	batchSize int
}

// NewRoomService creates a room service.
func NewRoomService(st store.Store, log *logger.Logger) *RoomService {
	return &RoomService{st: st, log: log, batchSize: deleteBatchSize}
}

// Create persists a new room with the creator as its first member.
func (s *RoomService) Create(ctx context.Context, creator model.User, name, description string) (model.Room, error) {
	id := uuid.Must(uuid.NewV7()).String()
	fields := map[string]any{
		"creatorId":   creator.ID,
		"name":        name,
		"description": description,
		"members":     []any{creator.ID},
		"createdAt":   store.ServerTimestamp,
	}
	if err := s.st.Set(ctx, roomPath(id), fields, false); err != nil {
		return model.Room{}, fmt.Errorf("create room: %w", err)
	}
	s.log.Info("room created", zap.String("room_id", id), zap.String("creator_id", creator.ID))
	return s.Get(ctx, id)
}

// Get reads one room.
func (s *RoomService) Get(ctx context.Context, roomID string) (model.Room, error) {
	doc, err := s.st.Get(ctx, roomPath(roomID))
	if errors.Is(err, store.ErrNotFound) {
		return model.Room{}, ErrRoomNotFound
	}
	if err != nil {
		return model.Room{}, fmt.Errorf("get room %s: %w", roomID, err)
	}
	return decodeRoom(*doc), nil
}

// List returns all rooms, newest first.
func (s *RoomService) List(ctx context.Context) ([]model.Room, error) {
	snap, err := store.QueryOnce(ctx, s.st, store.Query{
		Collection: roomsCollection,
		OrderBy:    "createdAt",
		Descending: true,
	})
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	rooms := make([]model.Room, 0, len(snap))
	for _, doc := range snap {
		rooms = append(rooms, decodeRoom(doc))
	}
	return rooms, nil
}

// Join adds the user to the membership set. Joining twice is a no-op by
// virtue of the array union.
func (s *RoomService) Join(ctx context.Context, roomID, userID string) error {
	if _, err := s.Get(ctx, roomID); err != nil {
		return err
	}
	err := s.st.Update(ctx, roomPath(roomID), map[string]any{
		"members": store.ArrayUnion(userID),
	})
	if err != nil {
		return fmt.Errorf("join room %s: %w", roomID, err)
	}
	return nil
}

// Leave removes the user from the membership set. The creator cannot leave;
// they delete the room instead.
func (s *RoomService) Leave(ctx context.Context, roomID, userID string) error {
	room, err := s.Get(ctx, roomID)
	if err != nil {
		return err
	}
	if room.CreatorID == userID {
		return nil
	}
	err = s.st.Update(ctx, roomPath(roomID), map[string]any{
		"members": store.ArrayRemove(userID),
	})
	if err != nil {
		return fmt.Errorf("leave room %s: %w", roomID, err)
	}
	return nil
}

// Send appends a member's message to the room and refreshes the summary.
func (s *RoomService) Send(ctx context.Context, roomID string, sender model.User, text string) error {
	room, err := s.Get(ctx, roomID)
	if err != nil {
		return err
	}
	if !room.IsMember(sender.ID) {
		return ErrNotRoomMember
	}
	if _, err := s.st.Add(ctx, roomMessages(roomID), encodeMessage(sender, text)); err != nil {
		return fmt.Errorf("%w: %v", ErrSendFailed, err)
	}
	err = s.st.Update(ctx, roomPath(roomID), map[string]any{
		"lastMessage":     text,
		"lastMessageTime": store.ServerTimestamp,
	})
	if err != nil {
		return fmt.Errorf("%w: updating summary: %v", ErrSendFailed, err)
	}
	metrics.MessagesTotal.WithLabelValues("room").Inc()
	return nil
}

// Messages returns the room's ordered message list as a one-shot read.
func (s *RoomService) Messages(ctx context.Context, roomID string) ([]model.Message, error) {
	if _, err := s.Get(ctx, roomID); err != nil {
		return nil, err
	}
	snap, err := store.QueryOnce(ctx, s.st, store.Query{
		Collection: roomMessages(roomID),
		OrderBy:    "createdAt",
	})
	if err != nil {
		return nil, fmt.Errorf("room messages %s: %w", roomID, err)
	}
	msgs := make([]model.Message, 0, len(snap))
	for _, doc := range snap {
		msgs = append(msgs, decodeMessage(doc))
	}
	return msgs, nil
}

// ClearMessages deletes all of a room's messages in bounded batches.
// Creator-only; the room itself survives.
func (s *RoomService) ClearMessages(ctx context.Context, roomID, callerID string) error {
	room, err := s.Get(ctx, roomID)
	if err != nil {
		return err
	}
	if room.CreatorID != callerID {
		return ErrNotRoomCreator
	}
	return s.deleteMessages(ctx, roomID)
}

// Delete removes the room and cascades to its messages. Creator-only. The
// cascade pages through the messages collection so the operation stays
// within store batch limits regardless of room size.
func (s *RoomService) Delete(ctx context.Context, roomID, callerID string) error {
	room, err := s.Get(ctx, roomID)
	if err != nil {
		return err
	}
	if room.CreatorID != callerID {
		return ErrNotRoomCreator
	}
	if err := s.deleteMessages(ctx, roomID); err != nil {
		return err
	}
	if err := s.st.Delete(ctx, roomPath(roomID)); err != nil {
		return fmt.Errorf("delete room %s: %w", roomID, err)
	}
	s.log.Info("room deleted", zap.String("room_id", roomID))
	return nil
}

func (s *RoomService) deleteMessages(ctx context.Context, roomID string) error {
	for {
		snap, err := store.QueryOnce(ctx, s.st, store.Query{
			Collection: roomMessages(roomID),
			Limit:      s.batchSize,
		})
		if err != nil {
			return fmt.Errorf("page room messages %s: %w", roomID, err)
		}
		for _, doc := range snap {
			if err := s.st.Delete(ctx, doc.Path); err != nil {
				return fmt.Errorf("delete message %s: %w", doc.Path, err)
			}
		}
		if len(snap) < s.batchSize {
			return nil
		}
	}
}
