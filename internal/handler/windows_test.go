package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/untilt/messenger/internal/chat"
	"github.com/untilt/messenger/internal/model"
	"github.com/untilt/messenger/internal/store/memstore"
	"github.com/untilt/messenger/pkg/logger"
)

func newWindowRouter(t *testing.T, u model.User) (*chi.Mux, *chat.Registry) {
	t.Helper()
	registry := chat.NewRegistry(context.Background(), memstore.New(), 0, logger.NewNop())
	t.Cleanup(registry.CloseAll)

	h := NewWindowHandler(registry, logger.NewNop())
	ch := NewConversationHandler(registry, logger.NewNop())

	r := chi.NewRouter()
	r.Use(asUser(u))
	r.Route("/windows", func(r chi.Router) {
		r.Post("/", h.Open)
		r.Get("/", h.List)
		r.Route("/{key}", func(r chi.Router) {
			r.Delete("/", h.Close)
			r.Post("/minimize", h.Minimize)
			r.Post("/restore", h.Restore)
		})
	})
	r.Get("/conversations", ch.List)
	r.Post("/logout", h.Logout)
	return r, registry
}

func TestOpenWindow(t *testing.T) {
	router, _ := newWindowRouter(t, model.User{ID: "u1", FirstName: "Ann"})

	rec := doJSON(t, router, http.MethodPost, "/windows", `{"peer_id":"u2","peer_name":"Ben"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}

	var win chat.Window
	if err := json.Unmarshal(rec.Body.Bytes(), &win); err != nil {
		t.Fatalf("decode window: %v", err)
	}
	if win.Key != chat.ConversationKey("u1", "u2") {
		t.Errorf("key = %q", win.Key)
	}
	if !win.Temporary || !win.Active {
		t.Errorf("window flags = %+v", win)
	}
}

func TestOpenWindowRejectsBadPeer(t *testing.T) {
	router, _ := newWindowRouter(t, model.User{ID: "u1"})
	rec := doJSON(t, router, http.MethodPost, "/windows", `{"peer_id":""}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestListAndCloseWindows(t *testing.T) {
	router, _ := newWindowRouter(t, model.User{ID: "u1"})

	doJSON(t, router, http.MethodPost, "/windows", `{"peer_id":"u2"}`)
	doJSON(t, router, http.MethodPost, "/windows", `{"peer_id":"u3"}`)

	rec := doJSON(t, router, http.MethodGet, "/windows", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	var resp struct {
		Windows []chat.Window `json:"windows"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Windows) != 2 {
		t.Fatalf("windows = %d, want 2", len(resp.Windows))
	}

	key := chat.ConversationKey("u1", "u2")
	rec = doJSON(t, router, http.MethodDelete, "/windows/"+key, "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("close status = %d", rec.Code)
	}
	rec = doJSON(t, router, http.MethodDelete, "/windows/"+key, "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("second close status = %d, want 404", rec.Code)
	}
}

func TestMinimizeRestoreWindow(t *testing.T) {
	router, _ := newWindowRouter(t, model.User{ID: "u1"})
	doJSON(t, router, http.MethodPost, "/windows", `{"peer_id":"u2"}`)
	key := chat.ConversationKey("u1", "u2")

	rec := doJSON(t, router, http.MethodPost, "/windows/"+key+"/minimize", "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("minimize status = %d", rec.Code)
	}
	rec = doJSON(t, router, http.MethodPost, "/windows/"+key+"/restore", "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("restore status = %d", rec.Code)
	}
	rec = doJSON(t, router, http.MethodPost, "/windows/u1_zz/minimize", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown window status = %d, want 404", rec.Code)
	}
}

func TestConversationListIncludesDegradedFlag(t *testing.T) {
	router, _ := newWindowRouter(t, model.User{ID: "u1"})

	rec := doJSON(t, router, http.MethodGet, "/conversations", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp struct {
		Conversations []json.RawMessage `json:"conversations"`
		Degraded      *bool             `json:"degraded"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Degraded == nil {
		t.Error("response missing degraded flag")
	}
}

func TestLogoutDropsSession(t *testing.T) {
	router, registry := newWindowRouter(t, model.User{ID: "u1"})
	doJSON(t, router, http.MethodPost, "/windows", `{"peer_id":"u2"}`)

	rec := doJSON(t, router, http.MethodPost, "/logout", "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("logout status = %d", rec.Code)
	}

	m, err := registry.Messenger(model.User{ID: "u1"})
	if err != nil {
		t.Fatalf("messenger after logout: %v", err)
	}
	if len(m.Windows()) != 0 {
		t.Error("session survived logout")
	}
}
