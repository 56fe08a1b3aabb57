// Package memory はリポジトリインターフェースのインメモリ実装を提供する。
// PostgreSQLを使わないサービス層・HTTP層のテストで使用する。
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/hitoshi/todoman/internal/model"
	"github.com/hitoshi/todoman/internal/repository"
)

// Store はユーザー、identity、セッション、タスクを保持するインメモリストア。
// 各リポジトリは同じStoreを共有する。
type Store struct {
	mu         sync.Mutex
	users      map[string]*model.User
	identities map[string]*model.Identity // key: provider + "\x00" + providerUserID
	sessions   map[string]*model.Session
	tasks      map[string]*model.Task
	now        func() time.Time
}

// NewStore は空のStoreを生成する。
func NewStore() *Store {
	return &Store{
		users:      make(map[string]*model.User),
		identities: make(map[string]*model.Identity),
		sessions:   make(map[string]*model.Session),
		tasks:      make(map[string]*model.Task),
		now:        time.Now,
	}
}

// SetNow はストアが使用する現在時刻の取得関数を差し替える。
func (s *Store) SetNow(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// Users はUserRepositoryを返す。
func (s *Store) Users() *UserRepo { return &UserRepo{s: s} }

// Identities はIdentityRepositoryを返す。
func (s *Store) Identities() *IdentityRepo { return &IdentityRepo{s: s} }

// Sessions はSessionRepositoryを返す。
func (s *Store) Sessions() *SessionRepo { return &SessionRepo{s: s} }

// Tasks はTaskRepositoryを返す。
func (s *Store) Tasks() *TaskRepo { return &TaskRepo{s: s} }

// UserCount は保存されているユーザー数を返す。
func (s *Store) UserCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.users)
}

// TaskCount は保存されているタスク数を返す。
func (s *Store) TaskCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

func identityKey(provider, providerUserID string) string {
	return provider + "\x00" + providerUserID
}

// --- users ---

// UserRepo はインメモリのUserRepository。
type UserRepo struct{ s *Store }

func (r *UserRepo) FindByID(_ context.Context, id string) (*model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (r *UserRepo) CreateWithIdentity(_ context.Context, user *model.User, identity *model.Identity) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	key := identityKey(identity.Provider, identity.ProviderUserID)
	if _, ok := r.s.identities[key]; ok {
		return repository.ErrDuplicateIdentity
	}
	u := *user
	i := *identity
	r.s.users[u.ID] = &u
	r.s.identities[key] = &i
	return nil
}

func (r *UserRepo) UpdateProfile(_ context.Context, id, email, name string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if u, ok := r.s.users[id]; ok {
		u.Email = email
		u.Name = name
		u.UpdatedAt = r.s.now()
	}
	return nil
}

// --- identities ---

// IdentityRepo はインメモリのIdentityRepository。
type IdentityRepo struct{ s *Store }

func (r *IdentityRepo) FindByProviderAndProviderUserID(_ context.Context, provider, providerUserID string) (*model.Identity, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	i, ok := r.s.identities[identityKey(provider, providerUserID)]
	if !ok {
		return nil, nil
	}
	cp := *i
	return &cp, nil
}

// --- sessions ---

// SessionRepo はインメモリのSessionRepository。
type SessionRepo struct{ s *Store }

func (r *SessionRepo) Create(_ context.Context, session *model.Session) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cp := *session
	r.s.sessions[cp.ID] = &cp
	return nil
}

func (r *SessionRepo) FindByID(_ context.Context, id string) (*model.Session, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sess, ok := r.s.sessions[id]
	if !ok || sess.IsExpired(r.s.now()) {
		return nil, nil
	}
	if _, ok := r.s.users[sess.UserID]; !ok {
		return nil, nil
	}
	cp := *sess
	return &cp, nil
}

func (r *SessionRepo) DeleteByID(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.sessions, id)
	return nil
}

func (r *SessionRepo) DeleteExpired(_ context.Context) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	now := r.s.now()
	var n int64
	for id, sess := range r.s.sessions {
		if sess.IsExpired(now) {
			delete(r.s.sessions, id)
			n++
		}
	}
	return n, nil
}

// --- tasks ---

// TaskRepo はインメモリのTaskRepository。
type TaskRepo struct{ s *Store }

func (r *TaskRepo) ListByStatus(_ context.Context, userID string, status model.TaskStatus) ([]*model.Task, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	completed := status == model.TaskStatusCompleted
	tasks := make([]*model.Task, 0)
	for _, t := range r.s.tasks {
		if t.UserID == userID && t.IsCompleted == completed {
			cp := *t
			tasks = append(tasks, &cp)
		}
	}

	sort.Slice(tasks, func(i, j int) bool {
		a, b := tasks[i].CreatedAt, tasks[j].CreatedAt
		if completed {
			a, b = tasks[i].UpdatedAt, tasks[j].UpdatedAt
		}
		if !a.Equal(b) {
			return a.After(b)
		}
		return tasks[i].ID < tasks[j].ID
	})
	return tasks, nil
}

func (r *TaskRepo) Create(_ context.Context, task *model.Task) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cp := *task
	r.s.tasks[cp.ID] = &cp
	return nil
}

func (r *TaskRepo) MarkCompleted(_ context.Context, userID, id string) (*model.Task, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.tasks[id]
	if !ok || t.UserID != userID {
		return nil, nil
	}
	t.IsCompleted = true
	t.UpdatedAt = r.s.now()
	cp := *t
	return &cp, nil
}

func (r *TaskRepo) UpdateContent(_ context.Context, userID, id, title, content string) (*model.Task, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.tasks[id]
	if !ok || t.UserID != userID {
		return nil, nil
	}
	t.Title = title
	t.Content = content
	t.UpdatedAt = r.s.now()
	cp := *t
	return &cp, nil
}

func (r *TaskRepo) Delete(_ context.Context, userID, id string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.tasks[id]
	if !ok || t.UserID != userID {
		return false, nil
	}
	delete(r.s.tasks, id)
	return true, nil
}

// compile-time interface checks
var (
	_ repository.UserRepository     = (*UserRepo)(nil)
	_ repository.IdentityRepository = (*IdentityRepo)(nil)
	_ repository.SessionRepository  = (*SessionRepo)(nil)
	_ repository.TaskRepository     = (*TaskRepo)(nil)
)
