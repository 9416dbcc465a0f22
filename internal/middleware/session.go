// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"

	"github.com/hitoshi/taskman/internal/model"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

var (
	// sessionUserContextKey はゲートを通過したユーザー情報を格納するキー。
	sessionUserContextKey = contextKey("session_user")
	// requestLogContextKey はアクセスログに載せる情報の格納先を保持するキー。
	requestLogContextKey = contextKey("request_log")
)

// SessionUserFromContext はリクエストコンテキストから検証済みユーザーを取得する。
// ゲートを通過したリクエストでのみ有効。
func SessionUserFromContext(ctx context.Context) (*model.SessionUser, error) {
	user, ok := ctx.Value(sessionUserContextKey).(*model.SessionUser)
	if !ok || user == nil || user.ID == "" {
		return nil, fmt.Errorf("session user not found in context")
	}
	return user, nil
}

// UserIDFromContext はリクエストコンテキストからユーザーIDを取得する。
// タスクの所有者IDとして使う。
func UserIDFromContext(ctx context.Context) (string, error) {
	user, err := SessionUserFromContext(ctx)
	if err != nil {
		return "", fmt.Errorf("user ID not found in context")
	}
	return user.ID, nil
}

// ContextWithSessionUser はコンテキストに検証済みユーザーを注入する。
// ログミドルウェアの配下であれば、アクセスログにもユーザーIDを記録する。
func ContextWithSessionUser(ctx context.Context, user *model.SessionUser) context.Context {
	if info, ok := ctx.Value(requestLogContextKey).(*requestLogInfo); ok {
		info.userID = user.ID
	}
	return context.WithValue(ctx, sessionUserContextKey, user)
}

// ContextWithUserID はユーザーIDのみを持つユーザー情報をコンテキストに注入する。
// テストで使用する。
func ContextWithUserID(ctx context.Context, userID string) context.Context {
	return ContextWithSessionUser(ctx, &model.SessionUser{ID: userID})
}
