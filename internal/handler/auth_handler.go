// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/taskman/internal/auth"
	"github.com/hitoshi/taskman/internal/metrics"
	"github.com/hitoshi/taskman/internal/middleware"
	"github.com/hitoshi/taskman/internal/model"
)

// oauthFlowCookieTTL はstateとPKCE verifierのCookieの有効期間。
const oauthFlowCookieTTL = 10 * time.Minute

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	GetLoginURL(state, verifier string) string
	HandleCallback(ctx context.Context, code, verifier string) (*model.SessionUser, error)
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	BaseURL string
	Cookie  auth.CookieOptions
}

// AuthHandler はOAuth認証関連のHTTPハンドラー。
type AuthHandler struct {
	service  AuthServiceInterface
	verifier auth.SessionVerifier
	access   middleware.AccessChecker
	config   AuthHandlerConfig
	metrics  metrics.MetricsCollector
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(
	service AuthServiceInterface,
	verifier auth.SessionVerifier,
	access middleware.AccessChecker,
	config AuthHandlerConfig,
	collector metrics.MetricsCollector,
) *AuthHandler {
	if collector == nil {
		collector = metrics.NopCollector{}
	}
	return &AuthHandler{
		service:  service,
		verifier: verifier,
		access:   access,
		config:   config,
		metrics:  collector,
	}
}

// Login はGoogle OAuthフローを開始する。
// GET /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	state, err := auth.GenerateState()
	if err != nil {
		slog.Error("failed to generate oauth state", slog.String("error", err.Error()))
		h.redirectWithError(w, r, "login_failed")
		return
	}
	verifier := auth.GenerateVerifier()

	http.SetCookie(w, auth.BuildCookie(auth.OAuthStateCookieName, state, h.config.Cookie, oauthFlowCookieTTL))
	http.SetCookie(w, auth.BuildCookie(auth.OAuthVerifierCookieName, verifier, h.config.Cookie, oauthFlowCookieTTL))

	http.Redirect(w, r, h.service.GetLoginURL(state, verifier), http.StatusFound)
}

// Callback はOAuthコールバックを処理する。
// GET /api/auth/callback?code=xxx&state=yyy
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	stateCookie, stateErr := r.Cookie(auth.OAuthStateCookieName)
	verifierCookie, verifierErr := r.Cookie(auth.OAuthVerifierCookieName)

	// 成否にかかわらずフロー用Cookieは使い捨て
	http.SetCookie(w, auth.BuildDeletionCookie(auth.OAuthStateCookieName, h.config.Cookie))
	http.SetCookie(w, auth.BuildDeletionCookie(auth.OAuthVerifierCookieName, h.config.Cookie))

	if idpErr := query.Get("error"); idpErr != "" {
		slog.Warn("oauth provider returned error", slog.String("error", idpErr))
		h.failLogin(w, r)
		return
	}

	state := query.Get("state")
	if stateErr != nil || state == "" || stateCookie.Value != state {
		slog.Warn("oauth state mismatch")
		h.failLogin(w, r)
		return
	}
	if verifierErr != nil || verifierCookie.Value == "" {
		slog.Warn("oauth verifier cookie missing")
		h.failLogin(w, r)
		return
	}

	code := query.Get("code")
	if code == "" {
		slog.Warn("missing authorization code")
		h.failLogin(w, r)
		return
	}

	user, err := h.service.HandleCallback(r.Context(), code, verifierCookie.Value)
	if err != nil {
		slog.Error("oauth callback failed", slog.String("error", err.Error()))
		h.failLogin(w, r)
		return
	}

	location, err := h.verifier.Establish(r.Context(), w, user)
	if err != nil {
		slog.Error("failed to establish session",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
		h.failLogin(w, r)
		return
	}

	h.metrics.RecordLogin(true)
	slog.Info("user logged in", slog.String("user_id", user.ID))
	http.Redirect(w, r, location, http.StatusFound)
}

// Logout はセッションを破棄する。
// POST /api/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if h.verifier.RequiresCSRFHeader() && !middleware.HasCSRFHeader(r) {
		writeAPIErrorResponse(w, http.StatusForbidden, model.NewCSRFRejectedError())
		return
	}

	if err := h.verifier.Destroy(w, r); err != nil {
		slog.Error("failed to logout", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

type sessionResponse struct {
	User *model.SessionUser `json:"user"`
}

// Session は現在のセッションのユーザーを返す。
// GET /api/auth/session
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	user, err := h.verifier.Verify(w, r)
	if err != nil {
		slog.Error("failed to verify session", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}
	if user == nil {
		writeJSON(w, http.StatusUnauthorized, sessionResponse{})
		return
	}

	writeJSON(w, http.StatusOK, sessionResponse{User: user})
}

type checkAccessResponse struct {
	Allowed bool `json:"allowed"`
}

// CheckAccess は現在のユーザーが許可リストに含まれるかを返す。
// ゲートと異なり、拒否してもセッションは破棄しない。
// GET /api/auth/check-access
func (h *AuthHandler) CheckAccess(w http.ResponseWriter, r *http.Request) {
	user, err := h.verifier.Verify(w, r)
	if err != nil {
		slog.Error("failed to verify session", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}
	if user == nil {
		writeJSON(w, http.StatusUnauthorized, checkAccessResponse{Allowed: false})
		return
	}

	allowed, err := h.access.IsAllowed(r.Context(), user.Email)
	if err != nil {
		slog.Error("failed to check allow list",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
		middleware.WriteInternalServerError(w)
		return
	}

	writeJSON(w, http.StatusOK, checkAccessResponse{Allowed: allowed})
}

func (h *AuthHandler) failLogin(w http.ResponseWriter, r *http.Request) {
	h.metrics.RecordLogin(false)
	h.redirectWithError(w, r, "auth")
}

func (h *AuthHandler) redirectWithError(w http.ResponseWriter, r *http.Request, code string) {
	http.Redirect(w, r, h.config.BaseURL+"/?error="+code, http.StatusFound)
}
