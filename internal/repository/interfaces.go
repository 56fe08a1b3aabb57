// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"

	"github.com/hitoshi/todoman/internal/model"
)

// ErrDuplicateIdentity は同一プロバイダーIDのidentityが既に存在する場合に返される。
// 初回ログインが同時に走った場合に発生しうる。
var ErrDuplicateIdentity = errors.New("identity already exists")

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// CreateWithIdentity はユーザーとidentityを同一トランザクションで作成する。
	// identityが重複した場合はErrDuplicateIdentityを返す。
	CreateWithIdentity(ctx context.Context, user *model.User, identity *model.Identity) error

	// UpdateProfile はOAuthプロフィール由来のemailとnameを更新する。
	UpdateProfile(ctx context.Context, id, email, name string) error
}

// IdentityRepository は外部IdP紐付け情報の永続化インターフェース。
type IdentityRepository interface {
	// FindByProviderAndProviderUserID はproviderとprovider_user_idでidentityを検索する。
	// 見つからない場合はnilを返す。
	FindByProviderAndProviderUserID(ctx context.Context, provider, providerUserID string) (*model.Identity, error)
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteExpired は期限切れセッションを削除し、削除件数を返す。
	DeleteExpired(ctx context.Context) (int64, error)
}

// TaskRepository はタスクデータの永続化インターフェース。
// すべての操作はタスクIDと所有者IDの両方で絞り込む。
type TaskRepository interface {
	// ListByStatus は所有者のタスク一覧を返す。
	// 未完了はcreated_at降順、完了済みはupdated_at降順。該当なしの場合は空スライス。
	ListByStatus(ctx context.Context, userID string, status model.TaskStatus) ([]*model.Task, error)

	// Create はタスクを作成する。
	Create(ctx context.Context, task *model.Task) error

	// MarkCompleted はタスクを完了済みにし、更新後のタスクを返す。
	// 所有者のタスクが存在しない場合はnilを返す。
	MarkCompleted(ctx context.Context, userID, id string) (*model.Task, error)

	// UpdateContent はタイトルと本文を更新し、更新後のタスクを返す。
	// 所有者のタスクが存在しない場合はnilを返す。
	UpdateContent(ctx context.Context, userID, id, title, content string) (*model.Task, error)

	// Delete はタスクを削除する。削除した場合はtrueを返す。
	Delete(ctx context.Context, userID, id string) (bool, error)
}
