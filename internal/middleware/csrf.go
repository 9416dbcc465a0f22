package middleware

import (
	"log/slog"
	"net/http"

	"github.com/hitoshi/taskman/internal/model"
)

const (
	// CSRFHeaderName はアプリケーション自身のスクリプトが付与するマーカーヘッダー。
	// 単純なクロスサイトのフォーム送信やナビゲーションでは付与できない。
	CSRFHeaderName = "X-Requested-With"

	// CSRFHeaderValue はマーカーヘッダーの期待値。
	CSRFHeaderValue = "XMLHttpRequest"
)

// HasCSRFHeader はリクエストにCSRFマーカーヘッダーが付いているかを返す。
func HasCSRFHeader(r *http.Request) bool {
	return r.Header.Get(CSRFHeaderName) == CSRFHeaderValue
}

func rejectCSRF(w http.ResponseWriter, r *http.Request) {
	slog.Warn("CSRF validation failed: missing marker header",
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
	)
	WriteErrorResponse(w, http.StatusForbidden, model.NewCSRFRejectedError())
}
