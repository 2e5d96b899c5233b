package chat

import (
	"context"
	"testing"
	"time"

	"github.com/untilt/messenger/internal/store/memstore"
	"github.com/untilt/messenger/pkg/logger"
)

func seedConversation(t *testing.T, st *memstore.Store, key string, participants []any, lastMessageTime time.Time) {
	t.Helper()
	err := st.Set(context.Background(), conversationPath(key), map[string]any{
		"participants":    participants,
		"lastMessageTime": lastMessageTime,
	}, false)
	if err != nil {
		t.Fatalf("seed conversation %s: %v", key, err)
	}
}

func TestDirectoryFiltersByMembership(t *testing.T) {
	st := memstore.New()
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	seedConversation(t, st, "u1_u2", []any{"u1", "u2"}, base)
	seedConversation(t, st, "u1_u3", []any{"u1", "u3"}, base.Add(time.Hour))
	seedConversation(t, st, "u2_u3", []any{"u2", "u3"}, base.Add(2*time.Hour))

	d := NewDirectory(st, "u1", logger.NewNop())
	d.Start(context.Background())
	defer d.Close()

	waitFor(t, func() bool { return len(d.Conversations()) == 2 })

	for _, conv := range d.Conversations() {
		if conv.Peer("u1") == "" {
			t.Errorf("conversation %s does not include u1's peer", conv.ID)
		}
	}
	if _, ok := d.FindWith("u3"); !ok {
		t.Error("FindWith(u3) missed u1_u3")
	}
	if _, ok := d.FindWith("u9"); ok {
		t.Error("FindWith(u9) found a conversation that does not exist")
	}
}

func TestDirectoryOrdersByRecency(t *testing.T) {
	st := memstore.New()
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	seedConversation(t, st, "u1_u2", []any{"u1", "u2"}, base)
	seedConversation(t, st, "u1_u3", []any{"u1", "u3"}, base.Add(time.Hour))

	d := NewDirectory(st, "u1", logger.NewNop())
	d.Start(context.Background())
	defer d.Close()

	waitFor(t, func() bool { return len(d.Conversations()) == 2 })
	convs := d.Conversations()
	if convs[0].ID != "u1_u3" || convs[1].ID != "u1_u2" {
		t.Errorf("order = [%s %s], want most recent first", convs[0].ID, convs[1].ID)
	}

	// A newer message in the older conversation reorders the list.
	seedConversation(t, st, "u1_u2", []any{"u1", "u2"}, base.Add(2*time.Hour))
	waitFor(t, func() bool {
		convs := d.Conversations()
		return len(convs) == 2 && convs[0].ID == "u1_u2"
	})
}

func TestDirectoryStatusTransitions(t *testing.T) {
	st := memstore.New()
	d := NewDirectory(st, "u1", logger.NewNop())

	if d.Status() != DirectoryDegraded {
		t.Errorf("status before start = %v, want degraded", d.Status())
	}

	d.Start(context.Background())
	waitFor(t, func() bool { return d.Status() == DirectoryLive })

	d.Close()
	if d.Status() != DirectoryClosed {
		t.Errorf("status after close = %v, want closed", d.Status())
	}
	d.Close() // idempotent
}

func TestDirectorySignalsUpdates(t *testing.T) {
	st := memstore.New()
	d := NewDirectory(st, "u1", logger.NewNop())
	d.Start(context.Background())
	defer d.Close()

	waitFor(t, func() bool { return d.Status() == DirectoryLive })
	// Drain whatever the initial snapshot signalled.
	select {
	case <-d.Updates():
	default:
	}

	seedConversation(t, st, "u1_u2", []any{"u1", "u2"}, time.Now())
	select {
	case <-d.Updates():
	case <-time.After(2 * time.Second):
		t.Fatal("no update signal after conversation change")
	}
}

func TestPresenceTracksUserDocuments(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	st.Set(ctx, "users/u2", map[string]any{"firstName": "Ben", "online": true}, false)

	p := NewPresence(st, logger.NewNop())
	p.Start(ctx)
	defer p.Close()

	waitFor(t, func() bool { return p.Online("u2") })
	if p.Online("u3") {
		t.Error("unknown user reported online")
	}

	st.Update(ctx, "users/u2", map[string]any{"online": false})
	waitFor(t, func() bool { return !p.Online("u2") })
}
