// Package model はドメインモデルを定義する。
package model

import "time"

// TitleMaxLength はタスクタイトルの最大文字数。
const TitleMaxLength = 200

// Task はユーザーが所有するタスクを表す。
// JSONのフィールド名はcamelCaseで、ストレージ側のsnake_caseとはリポジトリ層で相互変換する。
type Task struct {
	ID          string       `json:"id"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Status      TaskStatus   `json:"status"`
	Priority    TaskPriority `json:"priority"`
	UserID      string       `json:"userId"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
}

// TaskStatus はタスクの進捗状態を表す。
type TaskStatus string

const (
	// TaskStatusTodo は未着手。
	TaskStatusTodo TaskStatus = "todo"
	// TaskStatusInProgress は作業中。
	TaskStatusInProgress TaskStatus = "in_progress"
	// TaskStatusDone は完了。
	TaskStatusDone TaskStatus = "done"
)

// IsValid は定義済みのステータスかどうかを返す。
func (s TaskStatus) IsValid() bool {
	switch s {
	case TaskStatusTodo, TaskStatusInProgress, TaskStatusDone:
		return true
	}
	return false
}

// TaskPriority はタスクの優先度を表す。
type TaskPriority string

const (
	TaskPriorityLow    TaskPriority = "low"
	TaskPriorityMedium TaskPriority = "medium"
	TaskPriorityHigh   TaskPriority = "high"
)

// IsValid は定義済みの優先度かどうかを返す。
func (p TaskPriority) IsValid() bool {
	switch p {
	case TaskPriorityLow, TaskPriorityMedium, TaskPriorityHigh:
		return true
	}
	return false
}

// TaskPatch は部分更新の内容を表す。nil のフィールドは更新しない。
type TaskPatch struct {
	Title       *string
	Description *string
	Status      *TaskStatus
	Priority    *TaskPriority
}

// IsEmpty は更新対象のフィールドが1つもないかどうかを返す。
func (p TaskPatch) IsEmpty() bool {
	return p.Title == nil && p.Description == nil && p.Status == nil && p.Priority == nil
}
