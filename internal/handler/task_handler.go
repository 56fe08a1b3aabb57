package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/hitoshi/todoman/internal/model"
)

// TaskServiceInterface はタスクハンドラーが必要とするサービスインターフェース。
type TaskServiceInterface interface {
	ListIncomplete(ctx context.Context, userID string) ([]*model.Task, error)
	ListCompleted(ctx context.Context, userID string) ([]*model.Task, error)
	Add(ctx context.Context, userID, title, content string) (*model.Task, error)
	MarkComplete(ctx context.Context, userID, id string) (*model.Task, error)
	Edit(ctx context.Context, userID, id, title, content string) (*model.Task, error)
	Delete(ctx context.Context, userID, id string) error
}

// TaskHandler はタスク管理のHTTPハンドラー。
type TaskHandler struct {
	service TaskServiceInterface
}

// NewTaskHandler はTaskHandlerを生成する。
func NewTaskHandler(service TaskServiceInterface) *TaskHandler {
	return &TaskHandler{service: service}
}

// --- リクエスト/レスポンス型 ---

type taskResponse struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Title       string    `json:"title"`
	Content     string    `json:"content"`
	IsCompleted bool      `json:"is_completed"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type taskListResponse struct {
	Tasks []taskResponse `json:"tasks"`
	Empty bool           `json:"empty"`
}

type taskMutationResponse struct {
	Message string        `json:"message"`
	Task    *taskResponse `json:"task,omitempty"`
}

type addTaskRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

type taskIDRequest struct {
	ID string `json:"id"`
}

type editTaskRequest struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

func newTaskResponse(t *model.Task) *taskResponse {
	return &taskResponse{
		ID:          t.ID,
		UserID:      t.UserID,
		Title:       t.Title,
		Content:     t.Content,
		IsCompleted: t.IsCompleted,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

func newTaskListResponse(tasks []*model.Task) taskListResponse {
	resp := taskListResponse{Tasks: make([]taskResponse, 0, len(tasks))}
	for _, t := range tasks {
		resp.Tasks = append(resp.Tasks, *newTaskResponse(t))
	}
	resp.Empty = len(resp.Tasks) == 0
	return resp
}

// --- ハンドラー ---

// ListIncomplete は未完了タスク一覧を返す。空の場合も200で"empty": trueを返す。
// GET /
func (h *TaskHandler) ListIncomplete(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	tasks, err := h.service.ListIncomplete(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newTaskListResponse(tasks))
}

// ListCompleted は完了済みタスク一覧を返す。
// GET /completed
func (h *TaskHandler) ListCompleted(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	tasks, err := h.service.ListCompleted(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newTaskListResponse(tasks))
}

// Add はタスクを作成する。
// POST /add
func (h *TaskHandler) Add(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req addTaskRequest
	if apiErr := decodeJSONBody(w, r, &req); apiErr != nil {
		handleServiceError(w, apiErr)
		return
	}

	task, err := h.service.Add(r.Context(), userID, req.Title, req.Content)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, taskMutationResponse{
		Message: "Task added successfully",
		Task:    newTaskResponse(task),
	})
}

// MarkDone はタスクを完了済みにする。
// PATCH /done
func (h *TaskHandler) MarkDone(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req taskIDRequest
	if apiErr := decodeJSONBody(w, r, &req); apiErr != nil {
		handleServiceError(w, apiErr)
		return
	}

	if _, err := h.service.MarkComplete(r.Context(), userID, req.ID); err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, taskMutationResponse{Message: "Task marked as completed"})
}

// Edit はタスクのタイトルと本文を更新する。
// PATCH /edit
func (h *TaskHandler) Edit(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req editTaskRequest
	if apiErr := decodeJSONBody(w, r, &req); apiErr != nil {
		handleServiceError(w, apiErr)
		return
	}

	task, err := h.service.Edit(r.Context(), userID, req.ID, req.Title, req.Content)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, taskMutationResponse{
		Message: "Task updated successfully",
		Task:    newTaskResponse(task),
	})
}

// Delete はタスクを削除する。
// DELETE /completed/delete
func (h *TaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req taskIDRequest
	if apiErr := decodeJSONBody(w, r, &req); apiErr != nil {
		handleServiceError(w, apiErr)
		return
	}

	if err := h.service.Delete(r.Context(), userID, req.ID); err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, taskMutationResponse{Message: "Task deleted successfully"})
}
