package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/todoman/internal/model"
)

// --- モック定義 ---

// mockUserService はUserServiceInterfaceのモック実装。
type mockUserService struct {
	getProfileFn func(ctx context.Context, userID string) (*model.User, error)
}

func (m *mockUserService) GetProfile(ctx context.Context, userID string) (*model.User, error) {
	if m.getProfileFn != nil {
		return m.getProfileFn(ctx, userID)
	}
	return &model.User{ID: userID}, nil
}

// --- GET /user テスト ---

func TestUserHandler_Me_Success(t *testing.T) {
	svc := &mockUserService{
		getProfileFn: func(ctx context.Context, userID string) (*model.User, error) {
			if userID != testUserID {
				t.Errorf("userID = %q, want %q", userID, testUserID)
			}
			return &model.User{ID: userID, Email: "alice@example.com", Name: "Alice"}, nil
		},
	}
	h := NewUserHandler(svc)

	w := httptest.NewRecorder()
	h.Me(w, authedRequest(http.MethodGet, "/user", ""))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	var body userResponse
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if body.ID != testUserID || body.Email != "alice@example.com" || body.Name != "Alice" {
		t.Errorf("body = %+v", body)
	}
}

func TestUserHandler_Me_NotFound(t *testing.T) {
	svc := &mockUserService{
		getProfileFn: func(ctx context.Context, userID string) (*model.User, error) {
			return nil, model.NewUserNotFoundError()
		},
	}
	h := NewUserHandler(svc)

	w := httptest.NewRecorder()
	h.Me(w, authedRequest(http.MethodGet, "/user", ""))

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestUserHandler_Me_ServiceError(t *testing.T) {
	svc := &mockUserService{
		getProfileFn: func(ctx context.Context, userID string) (*model.User, error) {
			return nil, errors.New("db error")
		},
	}
	h := NewUserHandler(svc)

	w := httptest.NewRecorder()
	h.Me(w, authedRequest(http.MethodGet, "/user", ""))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
}

func TestUserHandler_Me_Unauthorized(t *testing.T) {
	h := NewUserHandler(&mockUserService{})

	w := httptest.NewRecorder()
	h.Me(w, httptest.NewRequest(http.MethodGet, "/user", nil))

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}
