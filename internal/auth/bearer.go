package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/hitoshi/taskman/internal/model"
)

// RefreshedTokenHeader は更新されたアクセストークンを返すレスポンスヘッダー。
const RefreshedTokenHeader = "X-Refreshed-Token"

const tokenIssuer = "taskman"

// sessionClaims はアクセストークンのクレーム。subjectにユーザーIDを持つ。
type sessionClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// BearerSessionConfig はBearerトークン方式のセッション設定。
type BearerSessionConfig struct {
	Secret           []byte
	TTL              time.Duration
	RefreshThreshold time.Duration
	BaseURL          string
}

// BearerTokenVerifier はHS256署名のJWTをAuthorizationヘッダーで受け渡す。
// サーバー側には何も保存しない。
type BearerTokenVerifier struct {
	config BearerSessionConfig
	now    func() time.Time
}

// NewBearerTokenVerifier はBearerTokenVerifierを生成する。
func NewBearerTokenVerifier(config BearerSessionConfig) *BearerTokenVerifier {
	return &BearerTokenVerifier{config: config, now: time.Now}
}

// Establish はアクセストークンを発行し、URLフラグメントに載せたリダイレクト先を返す。
// フラグメントはサーバーやRefererに送信されない。
func (v *BearerTokenVerifier) Establish(_ context.Context, _ http.ResponseWriter, user *model.SessionUser) (string, error) {
	token, err := v.sign(user)
	if err != nil {
		return "", err
	}
	return v.config.BaseURL + "/#access_token=" + url.QueryEscape(token), nil
}

func (v *BearerTokenVerifier) sign(user *model.SessionUser) (string, error) {
	jti, err := generateToken()
	if err != nil {
		return "", fmt.Errorf("failed to generate token ID: %w", err)
	}

	now := v.now()
	claims := sessionClaims{
		Email: user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   user.ID,
			ID:        jti,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(v.config.TTL)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.config.Secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify はAuthorizationヘッダーのBearerトークンを検証する。
// 残り有効期間がしきい値を下回る場合は新しいトークンをレスポンスヘッダーで返す。
func (v *BearerTokenVerifier) Verify(w http.ResponseWriter, r *http.Request) (*model.SessionUser, error) {
	raw := extractBearerToken(r)
	if raw == "" {
		return nil, nil
	}

	var claims sessionClaims
	_, err := jwt.ParseWithClaims(raw, &claims,
		func(t *jwt.Token) (interface{}, error) {
			return v.config.Secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
	)
	if err != nil {
		if !errors.Is(err, jwt.ErrTokenExpired) {
			slog.Debug("rejected bearer token", slog.String("error", err.Error()))
		}
		return nil, nil
	}
	if claims.Subject == "" || claims.Email == "" {
		return nil, nil
	}

	user := &model.SessionUser{ID: claims.Subject, Email: claims.Email}

	if claims.ExpiresAt.Time.Sub(v.now()) < v.config.RefreshThreshold {
		if refreshed, err := v.sign(user); err == nil {
			w.Header().Set(RefreshedTokenHeader, refreshed)
		}
	}

	return user, nil
}

// Destroy はサーバー側に状態を持たないため何もしない。クライアントがトークンを破棄する。
func (v *BearerTokenVerifier) Destroy(_ http.ResponseWriter, _ *http.Request) error {
	return nil
}

// RequiresCSRFHeader はBearer方式ではfalseを返す。
func (v *BearerTokenVerifier) RequiresCSRFHeader() bool {
	return false
}

// extractBearerToken はAuthorizationヘッダーからトークンを取り出す。
func extractBearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// compile-time interface check
var _ SessionVerifier = (*BearerTokenVerifier)(nil)
