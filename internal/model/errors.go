// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, task, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeInvalidRequest    = "INVALID_REQUEST"
	ErrCodeInvalidTitle      = "INVALID_TITLE"
	ErrCodeInvalidStatus     = "INVALID_STATUS"
	ErrCodeInvalidPriority   = "INVALID_PRIORITY"
	ErrCodeNoFieldsToUpdate  = "NO_FIELDS_TO_UPDATE"
	ErrCodeTaskNotFound      = "TASK_NOT_FOUND"
	ErrCodeUnauthorized      = "UNAUTHORIZED"
	ErrCodeForbidden         = "FORBIDDEN"
	ErrCodeCSRFRejected      = "CSRF_REJECTED"
	ErrCodeRateLimitExceeded = "RATE_LIMIT_EXCEEDED"
	ErrCodeInternalError     = "INTERNAL_ERROR"
)

// NewInvalidRequestError はリクエストボディ不正エラーを生成する。
func NewInvalidRequestError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  "リクエストボディが不正です。",
		Category: "validation",
		Action:   "正しいJSON形式で送信してください。",
	}
}

// NewInvalidTitleError はタイトル不正エラーを生成する。
func NewInvalidTitleError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidTitle,
		Message:  fmt.Sprintf("タイトルが不正です: %s", reason),
		Category: "validation",
		Action:   fmt.Sprintf("タイトルは1文字以上%d文字以内で入力してください。", TitleMaxLength),
	}
}

// NewInvalidStatusError はステータス不正エラーを生成する。
func NewInvalidStatusError(status string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidStatus,
		Message:  fmt.Sprintf("無効なステータスです: %s", status),
		Category: "validation",
		Action:   "ステータスには todo、in_progress、done のいずれかを指定してください。",
	}
}

// NewInvalidPriorityError は優先度不正エラーを生成する。
func NewInvalidPriorityError(priority string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidPriority,
		Message:  fmt.Sprintf("無効な優先度です: %s", priority),
		Category: "validation",
		Action:   "優先度には low、medium、high のいずれかを指定してください。",
	}
}

// NewNoFieldsToUpdateError は更新対象フィールドが1つもない場合のエラーを生成する。
func NewNoFieldsToUpdateError() *APIError {
	return &APIError{
		Code:     ErrCodeNoFieldsToUpdate,
		Message:  "更新するフィールドが指定されていません。",
		Category: "validation",
		Action:   "title、description、status、priority のいずれかを指定してください。",
	}
}

// NewTaskNotFoundError はタスク未検出エラーを生成する。
// 存在しないIDと他ユーザーのIDを区別しない。
func NewTaskNotFoundError(taskID string) *APIError {
	return &APIError{
		Code:     ErrCodeTaskNotFound,
		Message:  fmt.Sprintf("指定されたタスクが見つかりません: %s", taskID),
		Category: "task",
		Action:   "タスクIDを確認してください。",
	}
}

// NewUnauthorizedError は未認証エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	}
}

// NewForbiddenError は許可リスト外ユーザーのエラーを生成する。
func NewForbiddenError() *APIError {
	return &APIError{
		Code:     ErrCodeForbidden,
		Message:  "このアカウントには利用権限がありません。",
		Category: "auth",
		Action:   "管理者に利用許可を依頼してください。",
	}
}

// NewCSRFRejectedError はCSRFヘッダー欠落エラーを生成する。
func NewCSRFRejectedError() *APIError {
	return &APIError{
		Code:     ErrCodeCSRFRejected,
		Message:  "不正なリクエストです。",
		Category: "auth",
		Action:   "ページを再読み込みしてから再度お試しください。",
	}
}

// NewRateLimitExceededError はレート制限超過エラーを生成する。
func NewRateLimitExceededError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimitExceeded,
		Message:  "リクエスト数が制限を超えました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewInternalError は内部エラーを生成する。詳細はログにのみ出力する。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternalError,
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}
