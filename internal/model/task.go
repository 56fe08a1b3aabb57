package model

import "time"

// Task はユーザーが所有するToDoを表す。
// UserIDは必須で、すべての読み書きは所有者IDで絞り込む。
type Task struct {
	ID          string
	UserID      string
	Title       string
	Content     string
	IsCompleted bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TaskStatus はタスク一覧の絞り込み条件を表す。
type TaskStatus string

const (
	// TaskStatusIncomplete は未完了タスク（作成日時の降順）。
	TaskStatusIncomplete TaskStatus = "incomplete"
	// TaskStatusCompleted は完了済みタスク（更新日時の降順）。
	TaskStatusCompleted TaskStatus = "completed"
)

// IsValid はステータスが定義済みの値かどうかを判定する。
func (s TaskStatus) IsValid() bool {
	return s == TaskStatusIncomplete || s == TaskStatusCompleted
}
