// Package task はToDoタスクのドメインロジックを提供する。
package task

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/hitoshi/todoman/internal/model"
	"github.com/hitoshi/todoman/internal/repository"
	"github.com/hitoshi/todoman/internal/security"
)

// 操作名（メトリクスのラベル）
const (
	OpListIncomplete = "list_incomplete"
	OpListCompleted  = "list_completed"
	OpAdd            = "add"
	OpDone           = "done"
	OpEdit           = "edit"
	OpDelete         = "delete"
)

// 入力長のデフォルト上限（文字数）
const (
	DefaultTitleMaxLength   = 200
	DefaultContentMaxLength = 10000
)

// OperationRecorder はタスク操作の結果を記録する。metrics.Collectorが満たす。
type OperationRecorder interface {
	RecordTaskOperation(operation, result string)
}

// Config はタスクサービスの設定。
type Config struct {
	TitleMaxLength   int
	ContentMaxLength int
}

// Service はタスク操作のサービス層。
// すべての操作は認証済みユーザーIDで所有者を絞り込む。
type Service struct {
	repo      repository.TaskRepository
	sanitizer security.TextSanitizer
	recorder  OperationRecorder
	config    Config
	now       func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
// recorderはnilでもよい。
func NewService(
	repo repository.TaskRepository,
	sanitizer security.TextSanitizer,
	recorder OperationRecorder,
	config Config,
) *Service {
	if config.TitleMaxLength <= 0 {
		config.TitleMaxLength = DefaultTitleMaxLength
	}
	if config.ContentMaxLength <= 0 {
		config.ContentMaxLength = DefaultContentMaxLength
	}
	return &Service{
		repo:      repo,
		sanitizer: sanitizer,
		recorder:  recorder,
		config:    config,
		now:       time.Now,
	}
}

// ListIncomplete は未完了タスクを作成日時の降順で返す。
func (s *Service) ListIncomplete(ctx context.Context, userID string) ([]*model.Task, error) {
	tasks, err := s.repo.ListByStatus(ctx, userID, model.TaskStatusIncomplete)
	s.record(OpListIncomplete, err)
	if err != nil {
		return nil, fmt.Errorf("未完了タスクの取得に失敗しました: %w", err)
	}
	return tasks, nil
}

// ListCompleted は完了済みタスクを更新日時の降順で返す。
func (s *Service) ListCompleted(ctx context.Context, userID string) ([]*model.Task, error) {
	tasks, err := s.repo.ListByStatus(ctx, userID, model.TaskStatusCompleted)
	s.record(OpListCompleted, err)
	if err != nil {
		return nil, fmt.Errorf("完了済みタスクの取得に失敗しました: %w", err)
	}
	return tasks, nil
}

// Add はタスクを作成する。所有者は引数のuserIDで、リクエストボディからは受け取らない。
func (s *Service) Add(ctx context.Context, userID, title, content string) (*model.Task, error) {
	title, content, err := s.normalize(title, content)
	if err != nil {
		s.record(OpAdd, err)
		return nil, err
	}

	now := s.now()
	task := &model.Task{
		ID:          uuid.New().String(),
		UserID:      userID,
		Title:       title,
		Content:     content,
		IsCompleted: false,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repo.Create(ctx, task); err != nil {
		s.record(OpAdd, err)
		return nil, fmt.Errorf("タスクの作成に失敗しました: %w", err)
	}

	s.record(OpAdd, nil)
	return task, nil
}

// MarkComplete はタスクを完了済みにする。
// 存在しないIDと他ユーザーのタスクはどちらもTASK_NOT_FOUNDを返す。
func (s *Service) MarkComplete(ctx context.Context, userID, id string) (*model.Task, error) {
	task, err := s.markComplete(ctx, userID, id)
	s.record(OpDone, err)
	return task, err
}

func (s *Service) markComplete(ctx context.Context, userID, id string) (*model.Task, error) {
	id, err := canonicalID(id)
	if err != nil {
		return nil, err
	}

	task, err := s.repo.MarkCompleted(ctx, userID, id)
	if err != nil {
		return nil, fmt.Errorf("タスクの完了に失敗しました: %w", err)
	}
	if task == nil {
		return nil, model.NewTaskNotFoundError()
	}
	return task, nil
}

// Edit はタスクのタイトルと本文を更新する。
func (s *Service) Edit(ctx context.Context, userID, id, title, content string) (*model.Task, error) {
	task, err := s.edit(ctx, userID, id, title, content)
	s.record(OpEdit, err)
	return task, err
}

func (s *Service) edit(ctx context.Context, userID, id, title, content string) (*model.Task, error) {
	id, err := canonicalID(id)
	if err != nil {
		return nil, err
	}
	title, content, err = s.normalize(title, content)
	if err != nil {
		return nil, err
	}

	task, err := s.repo.UpdateContent(ctx, userID, id, title, content)
	if err != nil {
		return nil, fmt.Errorf("タスクの更新に失敗しました: %w", err)
	}
	if task == nil {
		return nil, model.NewTaskNotFoundError()
	}
	return task, nil
}

// Delete はタスクを削除する。完了状態に関わらず所有者のタスクであれば削除できる。
func (s *Service) Delete(ctx context.Context, userID, id string) error {
	err := s.delete(ctx, userID, id)
	s.record(OpDelete, err)
	return err
}

func (s *Service) delete(ctx context.Context, userID, id string) error {
	id, err := canonicalID(id)
	if err != nil {
		return err
	}

	deleted, err := s.repo.Delete(ctx, userID, id)
	if err != nil {
		return fmt.Errorf("タスクの削除に失敗しました: %w", err)
	}
	if !deleted {
		return model.NewTaskNotFoundError()
	}
	return nil
}

// canonicalID はタスクIDを検証し、ハイフン区切り小文字の正規形に揃える。
// 空の場合はバリデーションエラー、UUIDとして不正な場合は存在しないIDと同じ扱いにする。
// uuid.Parseはurn:uuid:や波括弧付きの形式も受け付けるが、PostgreSQLのuuid型は受け付けないため
// リポジトリには必ず正規形を渡す。
func canonicalID(id string) (string, error) {
	if id == "" {
		return "", model.NewValidationError("id", "is required")
	}
	u, err := uuid.Parse(id)
	if err != nil {
		return "", model.NewTaskNotFoundError()
	}
	return u.String(), nil
}

// normalize はタイトルと本文をサニタイズし、必須・最大長を検証する。
func (s *Service) normalize(title, content string) (string, string, error) {
	title = s.sanitizer.Sanitize(title)
	content = s.sanitizer.Sanitize(content)

	if title == "" {
		return "", "", model.NewValidationError("title", "is required")
	}
	if content == "" {
		return "", "", model.NewValidationError("content", "is required")
	}
	if utf8.RuneCountInString(title) > s.config.TitleMaxLength {
		return "", "", model.NewValidationError("title", fmt.Sprintf("must be at most %d characters", s.config.TitleMaxLength))
	}
	if utf8.RuneCountInString(content) > s.config.ContentMaxLength {
		return "", "", model.NewValidationError("content", fmt.Sprintf("must be at most %d characters", s.config.ContentMaxLength))
	}
	return title, content, nil
}

// record は操作結果をメトリクスに記録する。
func (s *Service) record(op string, err error) {
	if s.recorder == nil {
		return
	}
	s.recorder.RecordTaskOperation(op, resultOf(err))
}

func resultOf(err error) string {
	if err == nil {
		return "success"
	}
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case model.ErrCodeTaskNotFound:
			return "not_found"
		case model.ErrCodeValidation:
			return "invalid"
		}
	}
	return "failure"
}
