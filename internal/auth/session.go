package auth

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/taskman/internal/model"
	"github.com/hitoshi/taskman/internal/repository"
)

// SessionVerifier はセッション資格情報の発行・検証・破棄を行う。
// デプロイごとにCookie方式とBearerトークン方式のどちらか一方を使う。
type SessionVerifier interface {
	// Establish はログイン成功時にセッションを発行し、ブラウザのリダイレクト先を返す。
	Establish(ctx context.Context, w http.ResponseWriter, user *model.SessionUser) (string, error)

	// Verify はリクエストの資格情報を検証する。
	// 資格情報がない、不正、期限切れの場合は nil, nil を返す。
	// 残り有効期間が短い場合はレスポンスに新しい資格情報を書き込む。
	Verify(w http.ResponseWriter, r *http.Request) (*model.SessionUser, error)

	// Destroy はリクエストに紐づくセッションを破棄する。
	Destroy(w http.ResponseWriter, r *http.Request) error

	// RequiresCSRFHeader はブラウザが自動送信する資格情報を使う方式かどうかを返す。
	RequiresCSRFHeader() bool
}

// CookieSessionConfig はCookie方式のセッション設定。
type CookieSessionConfig struct {
	Cookie           CookieOptions
	MaxAge           time.Duration
	RefreshThreshold time.Duration
	BaseURL          string
}

// CookieSessionVerifier はセッションストアに保存したセッションをHttpOnly Cookieで受け渡す。
type CookieSessionVerifier struct {
	sessions repository.SessionRepository
	config   CookieSessionConfig
	now      func() time.Time
}

// NewCookieSessionVerifier はCookieSessionVerifierを生成する。
func NewCookieSessionVerifier(sessions repository.SessionRepository, config CookieSessionConfig) *CookieSessionVerifier {
	return &CookieSessionVerifier{
		sessions: sessions,
		config:   config,
		now:      time.Now,
	}
}

// Establish はセッションを保存し、セッションCookieを設定する。
func (v *CookieSessionVerifier) Establish(ctx context.Context, w http.ResponseWriter, user *model.SessionUser) (string, error) {
	sessionID, err := generateToken()
	if err != nil {
		return "", fmt.Errorf("failed to generate session ID: %w", err)
	}

	now := v.now()
	session := &model.Session{
		ID:        sessionID,
		UserID:    user.ID,
		Email:     user.Email,
		ExpiresAt: now.Add(v.config.MaxAge),
		CreatedAt: now,
	}
	if err := v.sessions.Create(ctx, session); err != nil {
		return "", fmt.Errorf("failed to save session: %w", err)
	}

	http.SetCookie(w, BuildCookie(SessionCookieName, sessionID, v.config.Cookie, v.config.MaxAge))
	return v.config.BaseURL + "/", nil
}

// Verify はセッションCookieを検証する。
// ストアにないセッションのCookieは削除する。
func (v *CookieSessionVerifier) Verify(w http.ResponseWriter, r *http.Request) (*model.SessionUser, error) {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil || cookie.Value == "" {
		return nil, nil
	}

	ctx := r.Context()
	session, err := v.sessions.FindByID(ctx, cookie.Value)
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	if session == nil {
		http.SetCookie(w, BuildDeletionCookie(SessionCookieName, v.config.Cookie))
		return nil, nil
	}

	now := v.now()
	if session.ExpiresAt.Sub(now) < v.config.RefreshThreshold {
		v.refresh(ctx, w, session, now)
	}

	return &model.SessionUser{ID: session.UserID, Email: session.Email}, nil
}

// refresh はセッションの有効期限を延長し、Cookieを再発行する。
// 延長に失敗しても現在のセッションは有効なため、ログに残して続行する。
func (v *CookieSessionVerifier) refresh(ctx context.Context, w http.ResponseWriter, session *model.Session, now time.Time) {
	expiresAt := now.Add(v.config.MaxAge)
	if err := v.sessions.ExtendExpiry(ctx, session.ID, expiresAt); err != nil {
		slog.Warn("failed to refresh session",
			slog.String("user_id", session.UserID),
			slog.String("error", err.Error()),
		)
		return
	}
	http.SetCookie(w, BuildCookie(SessionCookieName, session.ID, v.config.Cookie, v.config.MaxAge))
	slog.Debug("session refreshed", slog.String("user_id", session.UserID))
}

// Destroy はセッションをストアから削除し、Cookieを失効させる。
// Cookieの失効はストアの削除に失敗しても行う。
func (v *CookieSessionVerifier) Destroy(w http.ResponseWriter, r *http.Request) error {
	http.SetCookie(w, BuildDeletionCookie(SessionCookieName, v.config.Cookie))

	cookie, err := r.Cookie(SessionCookieName)
	if err != nil || cookie.Value == "" {
		return nil
	}
	if err := v.sessions.DeleteByID(r.Context(), cookie.Value); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// RevokeUser はユーザーの全セッションをストアから削除する。
// 許可リストから外されたユーザーを他の端末からもログアウトさせるために使う。
func (v *CookieSessionVerifier) RevokeUser(ctx context.Context, userID string) error {
	if err := v.sessions.DeleteByUserID(ctx, userID); err != nil {
		return fmt.Errorf("failed to revoke sessions: %w", err)
	}
	return nil
}

// RequiresCSRFHeader はCookie方式ではtrueを返す。
func (v *CookieSessionVerifier) RequiresCSRFHeader() bool {
	return true
}

// compile-time interface check
var _ SessionVerifier = (*CookieSessionVerifier)(nil)
