package task

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/todoman/internal/model"
	"github.com/hitoshi/todoman/internal/repository/memory"
	"github.com/hitoshi/todoman/internal/security"
)

const (
	userA = "11111111-1111-1111-1111-111111111111"
	userB = "22222222-2222-2222-2222-222222222222"
)

type mockRecorder struct {
	ops []string
}

func (m *mockRecorder) RecordTaskOperation(operation, result string) {
	m.ops = append(m.ops, operation+":"+result)
}

type mockTaskRepo struct {
	listFn func(ctx context.Context, userID string, status model.TaskStatus) ([]*model.Task, error)
	// seenIDs はMarkCompleted・UpdateContent・Deleteに渡されたタスクID。
	seenIDs []string
}

func (m *mockTaskRepo) ListByStatus(ctx context.Context, userID string, status model.TaskStatus) ([]*model.Task, error) {
	return m.listFn(ctx, userID, status)
}
func (m *mockTaskRepo) Create(context.Context, *model.Task) error { return errors.New("db down") }
func (m *mockTaskRepo) MarkCompleted(_ context.Context, _ string, id string) (*model.Task, error) {
	m.seenIDs = append(m.seenIDs, id)
	return nil, errors.New("db down")
}
func (m *mockTaskRepo) UpdateContent(_ context.Context, _ string, id string, _ string, _ string) (*model.Task, error) {
	m.seenIDs = append(m.seenIDs, id)
	return nil, errors.New("db down")
}
func (m *mockTaskRepo) Delete(_ context.Context, _ string, id string) (bool, error) {
	m.seenIDs = append(m.seenIDs, id)
	return false, errors.New("db down")
}

// newTestService はインメモリストアを使ったServiceを生成する。
// 呼び出しごとに1秒ずつ進む時計を使い、作成順と更新順を決定的にする。
func newTestService(t *testing.T) (*Service, *memory.Store, *mockRecorder) {
	t.Helper()

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	clock := func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}

	store := memory.NewStore()
	store.SetNow(clock)
	rec := &mockRecorder{}
	svc := NewService(store.Tasks(), security.NewTextSanitizer(), rec, Config{TitleMaxLength: 10, ContentMaxLength: 20})
	svc.now = clock
	return svc, store, rec
}

func assertAPIErrorCode(t *testing.T, err error, code string) {
	t.Helper()
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %v, want APIError %s", err, code)
	}
	if apiErr.Code != code {
		t.Errorf("error code = %q, want %q", apiErr.Code, code)
	}
}

func TestAdd_PersistsTaskForOwner(t *testing.T) {
	svc, store, rec := newTestService(t)
	ctx := context.Background()

	task, err := svc.Add(ctx, userA, "  A  ", "B")
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if task.ID == "" {
		t.Error("expected generated ID")
	}
	if task.UserID != userA {
		t.Errorf("UserID = %q, want %q", task.UserID, userA)
	}
	if task.Title != "A" || task.Content != "B" {
		t.Errorf("task = (%q, %q), want (%q, %q)", task.Title, task.Content, "A", "B")
	}
	if task.IsCompleted {
		t.Error("new task should not be completed")
	}
	if store.TaskCount() != 1 {
		t.Errorf("task count = %d, want 1", store.TaskCount())
	}

	list, err := svc.ListIncomplete(ctx, userA)
	if err != nil {
		t.Fatalf("ListIncomplete() error = %v", err)
	}
	if len(list) != 1 || list[0].ID != task.ID || list[0].IsCompleted {
		t.Errorf("ListIncomplete() = %+v, want single incomplete task %s", list, task.ID)
	}

	if len(rec.ops) == 0 || rec.ops[0] != "add:success" {
		t.Errorf("recorded ops = %v, want add:success first", rec.ops)
	}
}

func TestAdd_ValidationErrors_PersistNothing(t *testing.T) {
	tests := []struct {
		name    string
		title   string
		content string
	}{
		{"empty title", "", "B"},
		{"empty content", "A", ""},
		{"whitespace title", "   ", "B"},
		{"markup only content", "A", "<p></p>"},
		{"title too long", strings.Repeat("x", 11), "B"},
		{"content too long", "A", strings.Repeat("y", 21)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, store, rec := newTestService(t)

			_, err := svc.Add(context.Background(), userA, tt.title, tt.content)
			assertAPIErrorCode(t, err, model.ErrCodeValidation)

			if store.TaskCount() != 0 {
				t.Errorf("task count = %d, want 0", store.TaskCount())
			}
			if len(rec.ops) != 1 || rec.ops[0] != "add:invalid" {
				t.Errorf("recorded ops = %v, want [add:invalid]", rec.ops)
			}
		})
	}
}

func TestAdd_MaxLengthCountsCharacters(t *testing.T) {
	svc, _, _ := newTestService(t)

	// 10文字のマルチバイト文字列は上限内
	if _, err := svc.Add(context.Background(), userA, "牛乳を買うこと今日中に", "B"); err == nil {
		t.Fatal("expected 11 characters to exceed the limit")
	}
	if _, err := svc.Add(context.Background(), userA, "牛乳を買うこと今日中", "B"); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
}

func TestAdd_StripsMarkup(t *testing.T) {
	svc, _, _ := newTestService(t)

	task, err := svc.Add(context.Background(), userA, "<b>A</b>", "<script>x</script>B")
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if task.Title != "A" || task.Content != "B" {
		t.Errorf("task = (%q, %q), want (%q, %q)", task.Title, task.Content, "A", "B")
	}
}

func TestMarkComplete_MovesTaskToCompletedList(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	task, _ := svc.Add(ctx, userA, "A", "B")

	done, err := svc.MarkComplete(ctx, userA, task.ID)
	if err != nil {
		t.Fatalf("MarkComplete() error = %v", err)
	}
	if !done.IsCompleted {
		t.Error("expected task to be completed")
	}
	if !done.UpdatedAt.After(task.UpdatedAt) {
		t.Error("expected UpdatedAt to advance")
	}

	incomplete, _ := svc.ListIncomplete(ctx, userA)
	if len(incomplete) != 0 {
		t.Errorf("ListIncomplete() = %d tasks, want 0", len(incomplete))
	}
	completed, _ := svc.ListCompleted(ctx, userA)
	if len(completed) != 1 || completed[0].ID != task.ID {
		t.Errorf("ListCompleted() = %+v, want task %s", completed, task.ID)
	}
}

func TestListOrdering(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	first, _ := svc.Add(ctx, userA, "first", "c")
	second, _ := svc.Add(ctx, userA, "second", "c")
	third, _ := svc.Add(ctx, userA, "third", "c")

	incomplete, _ := svc.ListIncomplete(ctx, userA)
	want := []string{third.ID, second.ID, first.ID}
	for i, task := range incomplete {
		if task.ID != want[i] {
			t.Errorf("incomplete[%d] = %s, want %s (created_at desc)", i, task.Title, want[i])
		}
	}

	// 完了は更新日時の降順: secondを先に完了、次にfirst
	svc.MarkComplete(ctx, userA, second.ID)
	svc.MarkComplete(ctx, userA, first.ID)

	completed, _ := svc.ListCompleted(ctx, userA)
	if len(completed) != 2 || completed[0].ID != first.ID || completed[1].ID != second.ID {
		t.Errorf("completed order = %v, want [first second]", titles(completed))
	}
}

func titles(tasks []*model.Task) []string {
	out := make([]string, len(tasks))
	for i, t := range tasks {
		out[i] = t.Title
	}
	return out
}

func TestEdit_UpdatesTitleAndContent(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	task, _ := svc.Add(ctx, userA, "A", "B")

	edited, err := svc.Edit(ctx, userA, task.ID, "A2", "B2")
	if err != nil {
		t.Fatalf("Edit() error = %v", err)
	}
	if edited.Title != "A2" || edited.Content != "B2" {
		t.Errorf("edited = (%q, %q), want (%q, %q)", edited.Title, edited.Content, "A2", "B2")
	}

	_, err = svc.Edit(ctx, userA, task.ID, "", "B3")
	assertAPIErrorCode(t, err, model.ErrCodeValidation)
}

func TestDelete_RemovesTask(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()

	task, _ := svc.Add(ctx, userA, "A", "B")
	svc.MarkComplete(ctx, userA, task.ID)

	if err := svc.Delete(ctx, userA, task.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	completed, _ := svc.ListCompleted(ctx, userA)
	if len(completed) != 0 {
		t.Errorf("ListCompleted() = %d tasks, want 0", len(completed))
	}
	if store.TaskCount() != 0 {
		t.Errorf("task count = %d, want 0", store.TaskCount())
	}

	err := svc.Delete(ctx, userA, task.ID)
	assertAPIErrorCode(t, err, model.ErrCodeTaskNotFound)
}

func TestDelete_AllowsIncompleteTask(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	task, _ := svc.Add(ctx, userA, "A", "B")
	if err := svc.Delete(ctx, userA, task.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
}

func TestOtherUsersTask_IsNotFoundAndUnchanged(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	task, _ := svc.Add(ctx, userA, "A", "B")

	_, err := svc.MarkComplete(ctx, userB, task.ID)
	assertAPIErrorCode(t, err, model.ErrCodeTaskNotFound)

	_, err = svc.Edit(ctx, userB, task.ID, "hacked", "hacked")
	assertAPIErrorCode(t, err, model.ErrCodeTaskNotFound)

	err = svc.Delete(ctx, userB, task.ID)
	assertAPIErrorCode(t, err, model.ErrCodeTaskNotFound)

	list, _ := svc.ListIncomplete(ctx, userA)
	if len(list) != 1 {
		t.Fatalf("ListIncomplete() = %d tasks, want 1", len(list))
	}
	got := list[0]
	if got.Title != "A" || got.Content != "B" || got.IsCompleted {
		t.Errorf("task changed by other user: %+v", got)
	}

	others, _ := svc.ListIncomplete(ctx, userB)
	if len(others) != 0 {
		t.Errorf("other user sees %d tasks, want 0", len(others))
	}
}

func TestIDValidation(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.MarkComplete(ctx, userA, "")
	assertAPIErrorCode(t, err, model.ErrCodeValidation)

	_, err = svc.MarkComplete(ctx, userA, "not-a-uuid")
	assertAPIErrorCode(t, err, model.ErrCodeTaskNotFound)

	_, err = svc.Edit(ctx, userA, "", "A", "B")
	assertAPIErrorCode(t, err, model.ErrCodeValidation)

	err = svc.Delete(ctx, userA, "33333333-3333-3333-3333-333333333333")
	assertAPIErrorCode(t, err, model.ErrCodeTaskNotFound)
}

func TestIDValidation_PassesCanonicalIDToRepository(t *testing.T) {
	const canonical = "a0eebc99-9c0b-4ef8-bb6d-6bb9bd380a11"
	tests := []struct {
		name string
		id   string
	}{
		{"canonical", canonical},
		{"urn prefix", "urn:uuid:" + canonical},
		{"braces", "{" + canonical + "}"},
		{"no hyphens", "a0eebc999c0b4ef8bb6d6bb9bd380a11"},
		{"upper case", "A0EEBC99-9C0B-4EF8-BB6D-6BB9BD380A11"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &mockTaskRepo{}
			svc := NewService(repo, security.NewTextSanitizer(), nil, Config{})
			ctx := context.Background()

			svc.MarkComplete(ctx, userA, tt.id)
			svc.Edit(ctx, userA, tt.id, "A", "B")
			svc.Delete(ctx, userA, tt.id)

			if len(repo.seenIDs) != 3 {
				t.Fatalf("repository calls = %d, want 3", len(repo.seenIDs))
			}
			for i, got := range repo.seenIDs {
				if got != canonical {
					t.Errorf("call %d: repository got id %q, want %q", i, got, canonical)
				}
			}
		})
	}
}

func TestIDValidation_CanonicalFormFindsStoredTask(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	task, err := svc.Add(ctx, userA, "A", "B")
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	done, err := svc.MarkComplete(ctx, userA, "urn:uuid:"+task.ID)
	if err != nil {
		t.Fatalf("MarkComplete(urn form) error = %v", err)
	}
	if done.ID != task.ID || !done.IsCompleted {
		t.Errorf("MarkComplete() = %+v, want completed %s", done, task.ID)
	}
}

func TestList_EmptyIsNotAnError(t *testing.T) {
	svc, _, _ := newTestService(t)

	list, err := svc.ListIncomplete(context.Background(), userA)
	if err != nil {
		t.Fatalf("ListIncomplete() error = %v", err)
	}
	if list == nil || len(list) != 0 {
		t.Errorf("ListIncomplete() = %v, want empty non-nil slice", list)
	}
}

func TestRepositoryErrors_AreNotAPIErrors(t *testing.T) {
	repo := &mockTaskRepo{
		listFn: func(ctx context.Context, userID string, status model.TaskStatus) ([]*model.Task, error) {
			return nil, errors.New("db down")
		},
	}
	rec := &mockRecorder{}
	svc := NewService(repo, security.NewTextSanitizer(), rec, Config{})
	ctx := context.Background()
	id := "33333333-3333-3333-3333-333333333333"

	errs := []error{}
	_, err := svc.ListIncomplete(ctx, userA)
	errs = append(errs, err)
	_, err = svc.Add(ctx, userA, "A", "B")
	errs = append(errs, err)
	_, err = svc.MarkComplete(ctx, userA, id)
	errs = append(errs, err)
	_, err = svc.Edit(ctx, userA, id, "A", "B")
	errs = append(errs, err)
	errs = append(errs, svc.Delete(ctx, userA, id))

	for i, err := range errs {
		if err == nil {
			t.Errorf("op %d: expected error", i)
			continue
		}
		var apiErr *model.APIError
		if errors.As(err, &apiErr) {
			t.Errorf("op %d: repository failure surfaced as APIError %s", i, apiErr.Code)
		}
	}

	for _, op := range rec.ops {
		if !strings.HasSuffix(op, ":failure") {
			t.Errorf("recorded %q, want failure result", op)
		}
	}
}

func TestNewService_DefaultLimits(t *testing.T) {
	svc := NewService(memory.NewStore().Tasks(), security.NewTextSanitizer(), nil, Config{})
	if svc.config.TitleMaxLength != DefaultTitleMaxLength {
		t.Errorf("TitleMaxLength = %d, want %d", svc.config.TitleMaxLength, DefaultTitleMaxLength)
	}
	if svc.config.ContentMaxLength != DefaultContentMaxLength {
		t.Errorf("ContentMaxLength = %d, want %d", svc.config.ContentMaxLength, DefaultContentMaxLength)
	}

	// recorderがnilでもpanicしない
	if _, err := svc.Add(context.Background(), userA, "A", "B"); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
}
