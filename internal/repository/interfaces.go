// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/taskman/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// CreateWithIdentity はユーザーとidentityを同一トランザクションで作成する。
	CreateWithIdentity(ctx context.Context, user *model.User, identity *model.Identity) error

	// UpdateProfile はIdPから受け取ったメールアドレスと表示名でユーザーを更新する。
	UpdateProfile(ctx context.Context, id, email, name string) error
}

// IdentityRepository は外部IdP紐付け情報の永続化インターフェース。
type IdentityRepository interface {
	// FindByProviderAndProviderUserID はproviderとprovider_user_idでidentityを検索する。
	// 見つからない場合はnilを返す。
	FindByProviderAndProviderUserID(ctx context.Context, provider, providerUserID string) (*model.Identity, error)
}

// SessionRepository はセッションデータの永続化インターフェース。
// PostgreSQL実装とRedis実装がある。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// ExtendExpiry はセッションの有効期限を延長する。
	ExtendExpiry(ctx context.Context, id string, expiresAt time.Time) error
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteByUserID は指定ユーザーの全セッションを削除する。
	DeleteByUserID(ctx context.Context, userID string) error
}

// TaskRepository はタスクデータの永続化インターフェース。
// 全操作が所有者IDを必須引数に取り、所有者以外の行は存在しないものとして扱う。
type TaskRepository interface {
	// ListByOwner は所有者のタスクを作成日時の降順で返す。
	ListByOwner(ctx context.Context, ownerID string) ([]*model.Task, error)

	// FindByID は所有者のタスクを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, ownerID, id string) (*model.Task, error)

	// Create はタスクを作成し、採番されたIDとタイムスタンプを反映して返す。
	Create(ctx context.Context, task *model.Task) (*model.Task, error)

	// Update は指定フィールドのみ更新し、updated_atを進める。見つからない場合はnilを返す。
	Update(ctx context.Context, ownerID, id string, patch model.TaskPatch) (*model.Task, error)

	// Delete はタスクを削除する。削除対象がなかった場合はfalseを返す。
	Delete(ctx context.Context, ownerID, id string) (bool, error)
}

// AllowListRepository は許可リストの永続化インターフェース。
// 特権接続（RLSをバイパスする接続）でのみ使用する。
type AllowListRepository interface {
	// Exists は指定種別とパターンに一致するエントリが存在するかを返す。
	Exists(ctx context.Context, entryType model.AllowListEntryType, pattern string) (bool, error)

	// List は全エントリを返す。
	List(ctx context.Context) ([]*model.AllowListEntry, error)

	// Add はエントリを追加する。既に存在する場合は何もしない。
	Add(ctx context.Context, entry *model.AllowListEntry) error

	// Remove はパターンに一致するエントリを削除する。削除対象がなかった場合はfalseを返す。
	Remove(ctx context.Context, pattern string) (bool, error)
}
