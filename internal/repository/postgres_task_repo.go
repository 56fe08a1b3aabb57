package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/todoman/internal/model"
)

const taskColumns = `id, user_id, title, content, is_completed, created_at, updated_at`

// PostgresTaskRepo はPostgreSQLを使用したタスクリポジトリ。
// 各更新は単一行に対する1文で完結するため、トランザクションは使用しない。
type PostgresTaskRepo struct {
	db *sql.DB
}

// NewPostgresTaskRepo はPostgresTaskRepoを生成する。
func NewPostgresTaskRepo(db *sql.DB) *PostgresTaskRepo {
	return &PostgresTaskRepo{db: db}
}

// ListByStatus は所有者のタスク一覧を返す。
func (r *PostgresTaskRepo) ListByStatus(ctx context.Context, userID string, status model.TaskStatus) ([]*model.Task, error) {
	var query string
	switch status {
	case model.TaskStatusIncomplete:
		query = `SELECT ` + taskColumns + ` FROM tasks
		 WHERE user_id = $1 AND is_completed = false
		 ORDER BY created_at DESC, id`
	case model.TaskStatusCompleted:
		query = `SELECT ` + taskColumns + ` FROM tasks
		 WHERE user_id = $1 AND is_completed = true
		 ORDER BY updated_at DESC, id`
	default:
		return nil, fmt.Errorf("unknown task status: %q", status)
	}

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	tasks := make([]*model.Task, 0)
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tasks: %w", err)
	}

	return tasks, nil
}

// Create はタスクを作成する。
func (r *PostgresTaskRepo) Create(ctx context.Context, task *model.Task) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO tasks (id, user_id, title, content, is_completed, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		task.ID, task.UserID, task.Title, task.Content, task.IsCompleted, task.CreatedAt, task.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}
	return nil
}

// MarkCompleted はタスクを完了済みにする。所有者のタスクが存在しない場合はnilを返す。
func (r *PostgresTaskRepo) MarkCompleted(ctx context.Context, userID, id string) (*model.Task, error) {
	row := r.db.QueryRowContext(ctx,
		`UPDATE tasks SET is_completed = true, updated_at = now()
		 WHERE id = $1 AND user_id = $2
		 RETURNING `+taskColumns,
		id, userID,
	)
	task, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to mark task completed: %w", err)
	}
	return task, nil
}

// UpdateContent はタイトルと本文を更新する。所有者のタスクが存在しない場合はnilを返す。
func (r *PostgresTaskRepo) UpdateContent(ctx context.Context, userID, id, title, content string) (*model.Task, error) {
	row := r.db.QueryRowContext(ctx,
		`UPDATE tasks SET title = $3, content = $4, updated_at = now()
		 WHERE id = $1 AND user_id = $2
		 RETURNING `+taskColumns,
		id, userID, title, content,
	)
	task, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update task: %w", err)
	}
	return task, nil
}

// Delete はタスクを削除する。削除した場合はtrueを返す。
func (r *PostgresTaskRepo) Delete(ctx context.Context, userID, id string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM tasks WHERE id = $1 AND user_id = $2`,
		id, userID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to delete task: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

// rowScanner は*sql.Rowと*sql.Rowsの共通インターフェース。
type rowScanner interface {
	Scan(dest ...any) error
}

// scanTask は1行分のタスクを読み取る。sql.ErrNoRowsはそのまま返す。
func scanTask(s rowScanner) (*model.Task, error) {
	task := &model.Task{}
	err := s.Scan(
		&task.ID, &task.UserID, &task.Title, &task.Content,
		&task.IsCompleted, &task.CreatedAt, &task.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan task: %w", err)
	}
	return task, nil
}

// compile-time interface check
var _ TaskRepository = (*PostgresTaskRepo)(nil)
