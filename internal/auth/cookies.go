package auth

import (
	"net/http"
	"strings"
	"time"
)

// Cookie名
const (
	SessionCookieName       = "session_id"
	OAuthStateCookieName    = "oauth_state"
	OAuthVerifierCookieName = "oauth_verifier"
)

// CookieOptions はアプリケーションが発行するCookieの共通属性。
type CookieOptions struct {
	Domain string
	Secure bool
}

// BuildCookie はHttpOnlyかつSameSite=LaxのCookieを生成する。
// IdPからのトップレベルリダイレクトでも送信される。
func BuildCookie(name, value string, opts CookieOptions, ttl time.Duration) *http.Cookie {
	ck := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   opts.Secure,
		SameSite: http.SameSiteLaxMode,
	}
	if strings.TrimSpace(opts.Domain) != "" {
		ck.Domain = opts.Domain
	}
	if ttl > 0 {
		ck.Expires = time.Now().Add(ttl).UTC()
		ck.MaxAge = int(ttl.Seconds())
	}
	return ck
}

// BuildDeletionCookie は既存のCookieを即時失効させるCookieを生成する。
func BuildDeletionCookie(name string, opts CookieOptions) *http.Cookie {
	ck := &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   opts.Secure,
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Unix(0, 0).UTC(),
		MaxAge:   -1,
	}
	if strings.TrimSpace(opts.Domain) != "" {
		ck.Domain = opts.Domain
	}
	return ck
}
