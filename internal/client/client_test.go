package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

// newStubServer はCSRFトークンを発行し、状態変更リクエストのヘッダーを検証するスタブサーバーを返す。
func newStubServer(t *testing.T, routes map[string]http.HandlerFunc) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/csrf-token", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: csrfCookieName, Value: "stub-token", Path: "/"})
		json.NewEncoder(w).Encode(map[string]string{"token": "stub-token"})
	})
	for pattern, h := range routes {
		h := h
		mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet && r.Header.Get(csrfHeaderName) != "stub-token" {
				w.WriteHeader(http.StatusForbidden)
				return
			}
			h(w, r)
		})
	}

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestNew_RejectsInvalidBaseURL(t *testing.T) {
	for _, raw := range []string{"ftp://example.com", "://bad", "example.com"} {
		if _, err := New(raw); err == nil {
			t.Errorf("New(%q) error = nil, want error", raw)
		}
	}
}

func TestClient_ListTasks(t *testing.T) {
	srv := newStubServer(t, map[string]http.HandlerFunc{
		"GET /{$}": func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"tasks":[{"id":"t1","title":"a","content":"b","is_completed":false}],"empty":false}`))
		},
	})

	c, err := New(srv.URL)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	list, err := c.ListTasks(context.Background())
	if err != nil {
		t.Fatalf("ListTasks() error = %v", err)
	}
	if list.Empty || len(list.Tasks) != 1 || list.Tasks[0].ID != "t1" {
		t.Errorf("list = %+v", list)
	}
}

func TestClient_UnauthorizedIsErrUnauthenticated(t *testing.T) {
	srv := newStubServer(t, map[string]http.HandlerFunc{
		"/": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"code":"UNAUTHORIZED"}`))
		},
	})

	c, _ := New(srv.URL)
	ctx := context.Background()

	calls := map[string]func() error{
		"ListTasks":     func() error { _, err := c.ListTasks(ctx); return err },
		"ListCompleted": func() error { _, err := c.ListCompleted(ctx); return err },
		"Add":           func() error { _, err := c.Add(ctx, "a", "b"); return err },
		"MarkDone":      func() error { return c.MarkDone(ctx, "id") },
		"Edit":          func() error { _, err := c.Edit(ctx, "id", "a", "b"); return err },
		"Delete":        func() error { return c.Delete(ctx, "id") },
		"CurrentUser":   func() error { _, err := c.CurrentUser(ctx); return err },
	}

	for name, call := range calls {
		t.Run(name, func(t *testing.T) {
			if err := call(); !errors.Is(err, ErrUnauthenticated) {
				t.Errorf("%s() error = %v, want ErrUnauthenticated", name, err)
			}
		})
	}
}

func TestClient_APIError(t *testing.T) {
	srv := newStubServer(t, map[string]http.HandlerFunc{
		"PATCH /done": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"code":"TASK_NOT_FOUND","message":"not found"}`))
		},
	})

	c, _ := New(srv.URL)
	err := c.MarkDone(context.Background(), "missing")

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %v, want *APIError", err)
	}
	if apiErr.StatusCode != http.StatusNotFound || apiErr.Code != "TASK_NOT_FOUND" {
		t.Errorf("apiErr = %+v", apiErr)
	}
}

func TestClient_MutationsSendCSRFTokenAndBody(t *testing.T) {
	var got map[string]string
	srv := newStubServer(t, map[string]http.HandlerFunc{
		"POST /add": func(w http.ResponseWriter, r *http.Request) {
			if ct := r.Header.Get("Content-Type"); ct != "application/json" {
				t.Errorf("Content-Type = %q", ct)
			}
			json.NewDecoder(r.Body).Decode(&got)
			w.WriteHeader(http.StatusCreated)
			w.Write([]byte(`{"message":"ok","task":{"id":"new","title":"a","content":"b"}}`))
		},
	})

	c, _ := New(srv.URL)
	task, err := c.Add(context.Background(), "a", "b")
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if task.ID != "new" {
		t.Errorf("task.ID = %q, want %q", task.ID, "new")
	}
	if got["title"] != "a" || got["content"] != "b" {
		t.Errorf("request body = %v", got)
	}
}

func TestClient_CheckAuth(t *testing.T) {
	srv := newStubServer(t, map[string]http.HandlerFunc{
		"GET /auth/status": func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"isAuthenticated":false,"user":null}`))
		},
	})

	c, _ := New(srv.URL)
	status, err := c.CheckAuth(context.Background())
	if err != nil {
		t.Fatalf("CheckAuth() error = %v", err)
	}
	if status.IsAuthenticated || status.User != nil {
		t.Errorf("status = %+v, want unauthenticated", status)
	}
}
