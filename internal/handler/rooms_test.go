package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/untilt/messenger/internal/chat"
	"github.com/untilt/messenger/internal/middleware"
	"github.com/untilt/messenger/internal/model"
	"github.com/untilt/messenger/internal/store/memstore"
	"github.com/untilt/messenger/pkg/logger"
)

// asUser injects an authenticated user the way the JWT middleware does.
func asUser(u model.User) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), middleware.UserKey, u)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func newRoomRouter(t *testing.T, u model.User) (*chi.Mux, *chat.RoomService) {
	t.Helper()
	svc := chat.NewRoomService(memstore.New(), logger.NewNop())
	h := NewRoomHandler(svc, logger.NewNop())

	r := chi.NewRouter()
	r.Use(asUser(u))
	r.Route("/rooms", func(r chi.Router) {
		r.Post("/", h.Create)
		r.Get("/", h.List)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.Get)
			r.Delete("/", h.Delete)
			r.Post("/join", h.Join)
			r.Post("/leave", h.Leave)
			r.Get("/messages", h.Messages)
			r.Post("/messages", h.Send)
			r.Delete("/messages", h.Clear)
		})
	})
	return r, svc
}

func doJSON(t *testing.T, router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestCreateAndGetRoom(t *testing.T) {
	creator := model.User{ID: "u1", FirstName: "Ann"}
	router, _ := newRoomRouter(t, creator)

	rec := doJSON(t, router, http.MethodPost, "/rooms", `{"name":"support","description":"peer support"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d body = %s", rec.Code, rec.Body.String())
	}

	var room model.Room
	if err := json.Unmarshal(rec.Body.Bytes(), &room); err != nil {
		t.Fatalf("decode room: %v", err)
	}
	if room.CreatorID != "u1" || room.Name != "support" {
		t.Errorf("room = %+v", room)
	}

	rec = doJSON(t, router, http.MethodGet, "/rooms/"+room.ID, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}
}

func TestCreateRoomRejectsBlankName(t *testing.T) {
	router, _ := newRoomRouter(t, model.User{ID: "u1"})
	rec := doJSON(t, router, http.MethodPost, "/rooms", `{"name":"  "}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestRoomMembershipEndpoints(t *testing.T) {
	ctx := context.Background()
	creator := model.User{ID: "u1"}
	guest := model.User{ID: "u2"}

	guestRouter, svc := newRoomRouter(t, guest)
	room, err := svc.Create(ctx, creator, "support", "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	rec := doJSON(t, guestRouter, http.MethodPost, "/rooms/"+room.ID+"/join", "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("join status = %d body = %s", rec.Code, rec.Body.String())
	}

	got, _ := svc.Get(ctx, room.ID)
	if !got.IsMember("u2") {
		t.Error("join did not add the member")
	}

	rec = doJSON(t, guestRouter, http.MethodPost, "/rooms/"+room.ID+"/leave", "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("leave status = %d", rec.Code)
	}
	got, _ = svc.Get(ctx, room.ID)
	if got.IsMember("u2") {
		t.Error("leave did not remove the member")
	}
}

func TestRoomSendAndMessages(t *testing.T) {
	creator := model.User{ID: "u1", FirstName: "Ann"}
	router, svc := newRoomRouter(t, creator)
	room, _ := svc.Create(context.Background(), creator, "support", "")

	rec := doJSON(t, router, http.MethodPost, "/rooms/"+room.ID+"/messages", `{"text":"hello"}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("send status = %d body = %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, router, http.MethodGet, "/rooms/"+room.ID+"/messages", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("messages status = %d", rec.Code)
	}
	var resp struct {
		Messages []model.Message `json:"messages"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Messages) != 1 || resp.Messages[0].Text != "hello" {
		t.Errorf("messages = %+v", resp.Messages)
	}
}

func TestRoomSendByNonMemberForbidden(t *testing.T) {
	guest := model.User{ID: "u2"}
	router, svc := newRoomRouter(t, guest)
	room, _ := svc.Create(context.Background(), model.User{ID: "u1"}, "support", "")

	rec := doJSON(t, router, http.MethodPost, "/rooms/"+room.ID+"/messages", `{"text":"hi"}`)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
}

func TestRoomDeleteCreatorGated(t *testing.T) {
	ctx := context.Background()
	creator := model.User{ID: "u1"}
	guest := model.User{ID: "u2"}

	guestRouter, svc := newRoomRouter(t, guest)
	room, _ := svc.Create(ctx, creator, "support", "")

	rec := doJSON(t, guestRouter, http.MethodDelete, "/rooms/"+room.ID, "")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("non-creator delete status = %d, want 403", rec.Code)
	}

	creatorRouter := chi.NewRouter()
	creatorRouter.Use(asUser(creator))
	h := NewRoomHandler(svc, logger.NewNop())
	creatorRouter.Delete("/rooms/{id}", h.Delete)

	rec = doJSON(t, creatorRouter, http.MethodDelete, "/rooms/"+room.ID, "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("creator delete status = %d body = %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, guestRouter, http.MethodGet, "/rooms/"+room.ID, "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("get deleted room status = %d, want 404", rec.Code)
	}
}

func TestRoomEndpointsRejectBadID(t *testing.T) {
	router, _ := newRoomRouter(t, model.User{ID: "u1"})
	rec := doJSON(t, router, http.MethodGet, "/rooms/not-a-uuid", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}
