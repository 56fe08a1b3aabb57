package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/todoman/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger             *slog.Logger
	HTTPMetrics        middleware.HTTPRecorder // nilの場合はHTTPメトリクスを記録しない
	CORSAllowedOrigins []string
	CSRFConfig         middleware.CSRFConfig
	RateLimiter        *middleware.RateLimiter

	// 認証
	AuthService AuthServiceInterface
	StateSigner StateSigner
	AuthConfig  AuthHandlerConfig

	// タスク
	TaskService TaskServiceInterface

	// ユーザー
	UserService UserServiceInterface

	// 運用系
	DB             Pinger
	MetricsHandler http.Handler // nilの場合は/metricsを公開しない
	WebHandler     http.Handler // nilの場合は/app/を公開しない
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → Logging → Metrics → CORS
//	（認証が必要なルートのみ）→ Session → RateLimit → CSRF
//
// 認証ルート（/auth/*）、ヘルスチェック、静的クライアントはSession以降の外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r.Use(middleware.NewRecoveryMiddleware(logger))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewLoggingMiddleware(logger))
	if deps.HTTPMetrics != nil {
		r.Use(middleware.NewMetricsMiddleware(deps.HTTPMetrics))
	}
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigins))

	authHandler := NewAuthHandler(deps.AuthService, deps.StateSigner, deps.AuthConfig)
	taskHandler := NewTaskHandler(deps.TaskService)
	userHandler := NewUserHandler(deps.UserService)

	// --- 認証不要のルート ---

	r.Get("/health", NewHealthHandler(deps.DB))
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}
	r.Method(http.MethodGet, "/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig))

	// 認証ルート（OAuthフロー）
	r.Route("/auth", func(r chi.Router) {
		r.Get("/google", authHandler.BeginOAuth)
		r.Get("/google/callback", authHandler.Callback)
		r.Get("/status", authHandler.Status)
		r.Post("/logout", authHandler.Logout)
	})
	r.Get("/signOut", authHandler.SignOut)

	// ブラウザクライアント
	if deps.WebHandler != nil {
		r.Get("/app", func(w http.ResponseWriter, req *http.Request) {
			http.Redirect(w, req, "/app/", http.StatusMovedPermanently)
		})
		r.Method(http.MethodGet, "/app/*", deps.WebHandler)
	}

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Session → RateLimit → CSRF
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.AuthService))
		r.Use(deps.RateLimiter.Middleware())
		r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))

		// タスク管理
		r.Get("/", taskHandler.ListIncomplete)
		r.Post("/add", taskHandler.Add)
		r.Patch("/done", taskHandler.MarkDone)
		r.Patch("/edit", taskHandler.Edit)
		r.Route("/completed", func(r chi.Router) {
			r.Get("/", taskHandler.ListCompleted)
			r.Delete("/delete", taskHandler.Delete)
		})

		// ユーザー
		r.Get("/user", userHandler.Me)
	})

	return r
}
