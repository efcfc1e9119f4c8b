/*-------------------------------------------------------------------------
 *
 * pgEdge Natural Language Agent
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package conversations

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
)

func newTestRouter(t *testing.T) (http.Handler, *Store) {
	t.Helper()
	store := newTestStore(t)
	h := NewHandler(store, func(r *http.Request) string {
		return r.Header.Get("X-Test-Owner")
	})
	r := chi.NewRouter()
	r.Route("/conversations", h.Routes)
	return r, store
}

func doRequest(t *testing.T, h http.Handler, method, path, owner, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("X-Test-Owner", owner)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandlerEndpoints(t *testing.T) {
	router, store := newTestRouter(t)
	conv, err := store.Create(context.Background(), "alice", []Message{{Role: RoleUser, Content: "Revenue by month"}})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	t.Run("list", func(t *testing.T) {
		rec := doRequest(t, router, http.MethodGet, "/conversations", "alice", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		var body struct {
			Conversations []Summary `json:"conversations"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if len(body.Conversations) != 1 || body.Conversations[0].ID != conv.ID {
			t.Errorf("list = %+v", body.Conversations)
		}
	})

	t.Run("list for another owner is empty", func(t *testing.T) {
		rec := doRequest(t, router, http.MethodGet, "/conversations", "bob", "")
		if !strings.Contains(rec.Body.String(), `"conversations":[]`) {
			t.Errorf("body = %s", rec.Body.String())
		}
	})

	t.Run("get", func(t *testing.T) {
		rec := doRequest(t, router, http.MethodGet, "/conversations/"+conv.ID, "alice", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		var got Conversation
		if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if got.Title != "Revenue by month" {
			t.Errorf("title = %q", got.Title)
		}
	})

	t.Run("get unknown", func(t *testing.T) {
		rec := doRequest(t, router, http.MethodGet, "/conversations/nope", "alice", "")
		if rec.Code != http.StatusNotFound {
			t.Errorf("status = %d, want 404", rec.Code)
		}
	})

	t.Run("rename", func(t *testing.T) {
		rec := doRequest(t, router, http.MethodPatch, "/conversations/"+conv.ID, "alice", `{"title":"Monthly revenue"}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
		}
		rec = doRequest(t, router, http.MethodPatch, "/conversations/"+conv.ID, "alice", `{"title":""}`)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("empty title status = %d", rec.Code)
		}
		rec = doRequest(t, router, http.MethodPatch, "/conversations/"+conv.ID, "alice", `not json`)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("bad body status = %d", rec.Code)
		}
	})

	t.Run("delete all requires confirmation", func(t *testing.T) {
		rec := doRequest(t, router, http.MethodDelete, "/conversations", "alice", "")
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("delete", func(t *testing.T) {
		rec := doRequest(t, router, http.MethodDelete, "/conversations/"+conv.ID, "bob", "")
		if rec.Code != http.StatusNotFound {
			t.Errorf("delete as other owner status = %d", rec.Code)
		}
		rec = doRequest(t, router, http.MethodDelete, "/conversations/"+conv.ID, "alice", "")
		if rec.Code != http.StatusOK {
			t.Errorf("status = %d", rec.Code)
		}
	})

	t.Run("delete all", func(t *testing.T) {
		for i := 0; i < 2; i++ {
			if _, err := store.Create(context.Background(), "alice", nil); err != nil {
				t.Fatalf("Create() error = %v", err)
			}
		}
		rec := doRequest(t, router, http.MethodDelete, "/conversations?all=true", "alice", "")
		if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"deleted":2`) {
			t.Errorf("status = %d body = %s", rec.Code, rec.Body.String())
		}
	})
}
