package chat

import (
	"context"
	"errors"
	"testing"

	"github.com/untilt/messenger/internal/model"
	"github.com/untilt/messenger/internal/store"
	"github.com/untilt/messenger/internal/store/memstore"
	"github.com/untilt/messenger/pkg/logger"
)

var (
	roomCreator = model.User{ID: "u1", FirstName: "Ann"}
	roomGuest   = model.User{ID: "u2", FirstName: "Ben"}
)

func newTestRoomService(t *testing.T) (*RoomService, *memstore.Store) {
	t.Helper()
	st := memstore.New()
	return NewRoomService(st, logger.NewNop()), st
}

func TestCreateRoomSeedsCreatorMembership(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestRoomService(t)

	room, err := svc.Create(ctx, roomCreator, "support", "peer support")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if room.CreatorID != "u1" {
		t.Errorf("creatorId = %q, want u1", room.CreatorID)
	}
	if !room.IsMember("u1") {
		t.Error("creator is not a member of their own room")
	}
	if room.CreatedAt.IsZero() {
		t.Error("createdAt not resolved")
	}
}

func TestGetUnknownRoom(t *testing.T) {
	svc, _ := newTestRoomService(t)
	if _, err := svc.Get(context.Background(), "missing"); !errors.Is(err, ErrRoomNotFound) {
		t.Fatalf("err = %v, want ErrRoomNotFound", err)
	}
}

func TestJoinAndLeave(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestRoomService(t)
	room, _ := svc.Create(ctx, roomCreator, "support", "")

	if err := svc.Join(ctx, room.ID, "u2"); err != nil {
		t.Fatalf("join: %v", err)
	}
	// Joining twice is a no-op.
	if err := svc.Join(ctx, room.ID, "u2"); err != nil {
		t.Fatalf("rejoin: %v", err)
	}

	got, _ := svc.Get(ctx, room.ID)
	if len(got.Members) != 2 {
		t.Fatalf("members = %v, want [u1 u2]", got.Members)
	}

	if err := svc.Leave(ctx, room.ID, "u2"); err != nil {
		t.Fatalf("leave: %v", err)
	}
	got, _ = svc.Get(ctx, room.ID)
	if got.IsMember("u2") {
		t.Error("u2 still a member after leave")
	}
}

func TestCreatorCannotLeave(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestRoomService(t)
	room, _ := svc.Create(ctx, roomCreator, "support", "")

	if err := svc.Leave(ctx, room.ID, "u1"); err != nil {
		t.Fatalf("creator leave: %v", err)
	}
	got, _ := svc.Get(ctx, room.ID)
	if !got.IsMember("u1") {
		t.Error("creator removed from membership by leave")
	}
}

func TestSendRequiresMembership(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestRoomService(t)
	room, _ := svc.Create(ctx, roomCreator, "support", "")

	err := svc.Send(ctx, room.ID, roomGuest, "hi")
	if !errors.Is(err, ErrNotRoomMember) {
		t.Fatalf("err = %v, want ErrNotRoomMember", err)
	}

	if err := svc.Join(ctx, room.ID, roomGuest.ID); err != nil {
		t.Fatalf("join: %v", err)
	}
	if err := svc.Send(ctx, room.ID, roomGuest, "hi"); err != nil {
		t.Fatalf("send after join: %v", err)
	}

	got, _ := svc.Get(ctx, room.ID)
	if got.LastMessage != "hi" {
		t.Errorf("lastMessage = %q, want hi", got.LastMessage)
	}
	if got.LastMessageTime.IsZero() {
		t.Error("lastMessageTime not set")
	}
}

func TestRoomMessagesOrdered(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestRoomService(t)
	room, _ := svc.Create(ctx, roomCreator, "support", "")

	for _, text := range []string{"one", "two", "three"} {
		if err := svc.Send(ctx, room.ID, roomCreator, text); err != nil {
			t.Fatalf("send %q: %v", text, err)
		}
	}

	msgs, err := svc.Messages(ctx, room.ID)
	if err != nil {
		t.Fatalf("messages: %v", err)
	}
	if len(msgs) != 3 {
		t.Fatalf("got %d messages, want 3", len(msgs))
	}
	for i, want := range []string{"one", "two", "three"} {
		if msgs[i].Text != want {
			t.Errorf("msgs[%d].Text = %q, want %q", i, msgs[i].Text, want)
		}
	}
}

func TestDeleteIsCreatorGated(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestRoomService(t)
	room, _ := svc.Create(ctx, roomCreator, "support", "")
	svc.Join(ctx, room.ID, roomGuest.ID)

	if err := svc.Delete(ctx, room.ID, roomGuest.ID); !errors.Is(err, ErrNotRoomCreator) {
		t.Fatalf("err = %v, want ErrNotRoomCreator", err)
	}
	if _, err := svc.Get(ctx, room.ID); err != nil {
		t.Fatal("room vanished after rejected delete")
	}

	if err := svc.Delete(ctx, room.ID, roomCreator.ID); err != nil {
		t.Fatalf("creator delete: %v", err)
	}
	if _, err := svc.Get(ctx, room.ID); !errors.Is(err, ErrRoomNotFound) {
		t.Fatalf("room still present after delete: err = %v", err)
	}
}

func TestDeleteCascadesMessagesInBatches(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestRoomService(t)
	svc.batchSize = 2

	room, _ := svc.Create(ctx, roomCreator, "support", "")
	for i := 0; i < 5; i++ {
		if err := svc.Send(ctx, room.ID, roomCreator, "msg"); err != nil {
			t.Fatalf("send: %v", err)
		}
	}

	if err := svc.Delete(ctx, room.ID, roomCreator.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	snap, err := store.QueryOnce(ctx, st, store.Query{Collection: roomMessages(room.ID)})
	if err != nil {
		t.Fatalf("query leftover messages: %v", err)
	}
	if len(snap) != 0 {
		t.Errorf("%d message documents survived the cascade", len(snap))
	}
}

func TestClearMessagesKeepsRoom(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestRoomService(t)
	room, _ := svc.Create(ctx, roomCreator, "support", "")
	svc.Send(ctx, room.ID, roomCreator, "msg")

	if err := svc.ClearMessages(ctx, room.ID, roomGuest.ID); !errors.Is(err, ErrNotRoomCreator) {
		t.Fatalf("err = %v, want ErrNotRoomCreator", err)
	}

	if err := svc.ClearMessages(ctx, room.ID, roomCreator.ID); err != nil {
		t.Fatalf("clear: %v", err)
	}
	msgs, err := svc.Messages(ctx, room.ID)
	if err != nil {
		t.Fatalf("messages: %v", err)
	}
	if len(msgs) != 0 {
		t.Errorf("%d messages survived clear", len(msgs))
	}
	if _, err := svc.Get(ctx, room.ID); err != nil {
		t.Error("room removed by clear")
	}
}

func TestListRoomsNewestFirst(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestRoomService(t)

	first, _ := svc.Create(ctx, roomCreator, "first", "")
	second, _ := svc.Create(ctx, roomCreator, "second", "")

	rooms, err := svc.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rooms) != 2 {
		t.Fatalf("got %d rooms, want 2", len(rooms))
	}
	if rooms[0].ID != second.ID || rooms[1].ID != first.ID {
		t.Errorf("order = [%s %s], want newest first", rooms[0].Name, rooms[1].Name)
	}
}
