package middleware

import "net/http"

// contentSecurityPolicy は埋め込みSPAが自オリジンのスクリプトとスタイルだけを読み込む前提のポリシー。
// Googleへの遷移はリンクによるトップレベルナビゲーションなのでconnect-srcに含めない。
const contentSecurityPolicy = "default-src 'self'; frame-ancestors 'none'; base-uri 'none'; object-src 'none'"

// securityHeaders はすべてのレスポンスに付与するヘッダー。
// タスクとプロフィールはユーザー固有のため、共有キャッシュにもブラウザキャッシュにも残さない。
var securityHeaders = map[string]string{
	"Content-Security-Policy": contentSecurityPolicy,
	"X-Content-Type-Options":  "nosniff",
	"X-Frame-Options":         "DENY",
	"Referrer-Policy":         "strict-origin-when-cross-origin",
	"Permissions-Policy":      "camera=(), microphone=(), geolocation=()",
	"Cache-Control":           "no-store",
}

// NewSecurityHeadersMiddleware はセキュリティ関連のHTTPレスポンスヘッダーを付与するミドルウェアを返す。
func NewSecurityHeadersMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			for k, v := range securityHeaders {
				h.Set(k, v)
			}
			next.ServeHTTP(w, r)
		})
	}
}
