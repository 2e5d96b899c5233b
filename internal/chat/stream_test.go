package chat

import (
	"context"
	"testing"
	"time"

	"github.com/untilt/messenger/internal/model"
	"github.com/untilt/messenger/internal/store/memstore"
)

func TestStreamDeliversOrderedMessages(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	s := NewMessageStream(st)
	defer s.Close()

	if err := s.Attach(ctx, "conversations/u1_u2/messages"); err != nil {
		t.Fatalf("attach: %v", err)
	}

	sender := model.User{ID: "u1", FirstName: "Ann"}
	for _, text := range []string{"one", "two", "three"} {
		if _, err := st.Add(ctx, "conversations/u1_u2/messages", encodeMessage(sender, text)); err != nil {
			t.Fatalf("add: %v", err)
		}
	}

	waitFor(t, func() bool { return len(s.Messages()) == 3 })
	msgs := s.Messages()
	for i, want := range []string{"one", "two", "three"} {
		if msgs[i].Text != want {
			t.Errorf("msgs[%d].Text = %q, want %q", i, msgs[i].Text, want)
		}
	}
	if msgs[0].SenderName != "Ann" {
		t.Errorf("sender name = %q, want Ann", msgs[0].SenderName)
	}
}

func TestStreamReAttachReplacesSubscription(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	sender := model.User{ID: "u1"}
	st.Add(ctx, "conversations/u1_u2/messages", encodeMessage(sender, "old"))
	st.Add(ctx, "conversations/u1_u3/messages", encodeMessage(sender, "new"))

	s := NewMessageStream(st)
	defer s.Close()

	if err := s.Attach(ctx, "conversations/u1_u2/messages"); err != nil {
		t.Fatalf("attach: %v", err)
	}
	waitFor(t, func() bool {
		msgs := s.Messages()
		return len(msgs) == 1 && msgs[0].Text == "old"
	})

	if err := s.Attach(ctx, "conversations/u1_u3/messages"); err != nil {
		t.Fatalf("re-attach: %v", err)
	}
	waitFor(t, func() bool {
		msgs := s.Messages()
		return len(msgs) == 1 && msgs[0].Text == "new"
	})

	// Writes to the old path no longer land in this stream.
	st.Add(ctx, "conversations/u1_u2/messages", encodeMessage(sender, "stale"))
	time.Sleep(50 * time.Millisecond)
	msgs := s.Messages()
	if len(msgs) != 1 || msgs[0].Text != "new" {
		t.Errorf("messages after stale write = %+v", msgs)
	}
}

func TestStreamCloseIsIdempotent(t *testing.T) {
	st := memstore.New()
	s := NewMessageStream(st)
	if err := s.Attach(context.Background(), "conversations/u1_u2/messages"); err != nil {
		t.Fatalf("attach: %v", err)
	}
	s.Close()
	s.Close()
}

func TestGroupBySender(t *testing.T) {
	msgs := []model.Message{
		{SenderID: "u1", Text: "a"},
		{SenderID: "u1", Text: "b"},
		{SenderID: "u2", Text: "c"},
		{SenderID: "u1", Text: "d"},
	}

	groups := GroupBySender(msgs)
	if len(groups) != 3 {
		t.Fatalf("got %d groups, want 3", len(groups))
	}
	if len(groups[0]) != 2 || groups[0][1].Text != "b" {
		t.Errorf("first group = %+v", groups[0])
	}
	if groups[1][0].SenderID != "u2" {
		t.Errorf("second group sender = %s, want u2", groups[1][0].SenderID)
	}
	if len(groups[2]) != 1 || groups[2][0].Text != "d" {
		t.Errorf("third group = %+v", groups[2])
	}
}

func TestGroupBySenderEmpty(t *testing.T) {
	if groups := GroupBySender(nil); groups != nil {
		t.Errorf("GroupBySender(nil) = %v, want nil", groups)
	}
}
