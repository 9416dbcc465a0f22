package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/hitoshi/taskman/internal/auth"
	"github.com/hitoshi/taskman/internal/metrics"
	"github.com/hitoshi/taskman/internal/model"
)

// AccessChecker は許可リストによる利用可否の判定を行う。
type AccessChecker interface {
	IsAllowed(ctx context.Context, email string) (bool, error)
}

// userRevoker はユーザー単位でセッションを失効できるSessionVerifierが実装する。
type userRevoker interface {
	RevokeUser(ctx context.Context, userID string) error
}

// GateConfig はゲートミドルウェアの設定。
type GateConfig struct {
	Verifier auth.SessionVerifier
	Access   AccessChecker
	Metrics  metrics.MetricsCollector
}

// NewGateMiddleware はデータ操作の前段で認証と認可を行うミドルウェアを返す。
// 次の順に検査し、最初に失敗した時点で応答する。
//
//  1. CSRFマーカーヘッダー（Cookie方式のみ）。欠落時は403。
//  2. セッションの検証。資格情報がない、不正、期限切れの場合は401。
//  3. 許可リストの照会。対象外の場合は403。Cookie方式ではそのユーザーの全セッションも破棄する。
//
// セッションストアや許可リストの照会に失敗した場合は500を返す。
// 通過したリクエストのコンテキストには検証済みユーザーを注入する。
func NewGateMiddleware(config GateConfig) func(next http.Handler) http.Handler {
	collector := config.Metrics
	if collector == nil {
		collector = metrics.NopCollector{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if config.Verifier.RequiresCSRFHeader() && !HasCSRFHeader(r) {
				collector.RecordGateRejection(metrics.RejectCSRF)
				rejectCSRF(w, r)
				return
			}

			user, err := config.Verifier.Verify(w, r)
			if err != nil {
				slog.Error("failed to verify session",
					slog.String("path", r.URL.Path),
					slog.String("error", err.Error()),
				)
				collector.RecordGateRejection(metrics.RejectError)
				WriteInternalServerError(w)
				return
			}
			if user == nil {
				collector.RecordGateRejection(metrics.RejectUnauthorized)
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}

			allowed, err := config.Access.IsAllowed(r.Context(), user.Email)
			if err != nil {
				slog.Error("failed to check allow list",
					slog.String("user_id", user.ID),
					slog.String("error", err.Error()),
				)
				collector.RecordGateRejection(metrics.RejectError)
				WriteInternalServerError(w)
				return
			}
			if !allowed {
				slog.Warn("user is not on the allow list", slog.String("user_id", user.ID))
				if err := config.Verifier.Destroy(w, r); err != nil {
					slog.Error("failed to destroy session of disallowed user",
						slog.String("user_id", user.ID),
						slog.String("error", err.Error()),
					)
				}
				if revoker, ok := config.Verifier.(userRevoker); ok {
					if err := revoker.RevokeUser(r.Context(), user.ID); err != nil {
						slog.Error("failed to revoke sessions of disallowed user",
							slog.String("user_id", user.ID),
							slog.String("error", err.Error()),
						)
					}
				}
				collector.RecordGateRejection(metrics.RejectForbidden)
				WriteErrorResponse(w, http.StatusForbidden, model.NewForbiddenError())
				return
			}

			ctx := ContextWithSessionUser(r.Context(), user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
