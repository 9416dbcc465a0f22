package middleware

import "net/http"

// NewSecurityHeadersMiddleware はJSON APIとしての応答に付けるセキュリティヘッダーを設定する。
// taskmanはHTMLを返さないため、CSPはすべての読み込みとフレーム埋め込みを禁止する。
func NewSecurityHeadersMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
			h.Set("Referrer-Policy", "no-referrer")
			// 応答にはセッションや個人のタスクが含まれる
			h.Set("Cache-Control", "no-store")
			next.ServeHTTP(w, r)
		})
	}
}
