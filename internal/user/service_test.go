package user

import (
	"context"
	"errors"
	"testing"

	"github.com/hitoshi/todoman/internal/model"
)

// --- モック ---

type mockUserRepo struct {
	findByIDFn func(ctx context.Context, id string) (*model.User, error)
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}
func (m *mockUserRepo) CreateWithIdentity(ctx context.Context, user *model.User, identity *model.Identity) error {
	return nil
}
func (m *mockUserRepo) UpdateProfile(ctx context.Context, id, email, name string) error {
	return nil
}

// --- テスト ---

func TestGetProfile_ReturnsUser(t *testing.T) {
	repo := &mockUserRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.User, error) {
			return &model.User{ID: id, Email: "user@example.com", Name: "User"}, nil
		},
	}
	svc := NewService(repo)

	user, err := svc.GetProfile(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("GetProfile() error = %v", err)
	}
	if user.ID != "user-1" || user.Email != "user@example.com" {
		t.Errorf("GetProfile() = %+v", user)
	}
}

func TestGetProfile_NotFound(t *testing.T) {
	svc := NewService(&mockUserRepo{})

	_, err := svc.GetProfile(context.Background(), "missing")

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Code != model.ErrCodeUserNotFound {
		t.Errorf("error code = %q, want %q", apiErr.Code, model.ErrCodeUserNotFound)
	}
}

func TestGetProfile_RepositoryError(t *testing.T) {
	repo := &mockUserRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.User, error) {
			return nil, errors.New("db error")
		},
	}
	svc := NewService(repo)

	_, err := svc.GetProfile(context.Background(), "user-1")
	if err == nil {
		t.Fatal("expected error")
	}
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		t.Errorf("repository failure should not be an APIError, got %s", apiErr.Code)
	}
}
