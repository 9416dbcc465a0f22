// Package model はドメインモデルを定義する。
package model

import "time"

// User はサービス利用ユーザーを表す。
type User struct {
	ID        string
	Email     string
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Identity は外部IdPとの紐付け情報を表す。
type Identity struct {
	ID             string
	UserID         string
	Provider       string
	ProviderUserID string
	CreatedAt      time.Time
}

// Session はユーザーのログインセッションを表す。
// Email は許可リスト判定に使うため、検証時にユーザーから引き当てて保持する。
type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// SessionUser は検証済みセッションから得られる利用者情報。
// リクエストコンテキストとセッションAPIのレスポンスに使う。
type SessionUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// AllowListEntryType は許可リストエントリの種別。
type AllowListEntryType string

const (
	AllowListEntryEmail  AllowListEntryType = "email"
	AllowListEntryDomain AllowListEntryType = "domain"
)

// AllowListEntry は利用を許可するメールアドレスまたはドメインを表す。
// Pattern は小文字で保持し、domain の場合は "@" から始まる。
type AllowListEntry struct {
	ID        string             `yaml:"-"`
	Type      AllowListEntryType `yaml:"type"`
	Pattern   string             `yaml:"pattern"`
	CreatedAt time.Time          `yaml:"-"`
}
