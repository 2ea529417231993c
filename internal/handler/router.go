package handler

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/hitoshi/todoman/internal/middleware"
)

// CookieSignerVerifier はセッションCookieの署名と検証を行う。
type CookieSignerVerifier interface {
	CookieSigner
	middleware.CookieUnsigner
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	Logger *slog.Logger

	// ミドルウェア依存
	SessionFinder      middleware.SessionFinder
	CookieSigner       CookieSignerVerifier
	TokenAuthenticator middleware.TokenAuthenticator
	RateLimiter        *middleware.RateLimiter
	CORSAllowedOrigins []string
	CSRFConfig         middleware.CSRFConfig
	HSTS               bool

	// 監視
	HTTPMetrics    middleware.HTTPRecorder
	MetricsHandler http.Handler
	HealthChecker  HealthChecker

	// 認証
	AuthService    AuthServiceInterface
	WebAuthService WebAuthServiceInterface
	AuthConfig     AuthHandlerConfig

	// ユーザー、TODO
	UserService UserServiceInterface
	TodoService TodoServiceInterface

	// Web画面
	Sanitizer ContentSanitizer
	WebConfig WebHandlerConfig
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RealIP → Recovery → Logging → Metrics → SecurityHeaders → CORS → Session
//
// /api/todo と /api/user はさらに TokenAuth → RateLimit(General) を通る。
// Web画面のフォーム送信は CSRF を、マイTODO以下は RequireSession を通る。
func NewRouter(deps *RouterDeps) (http.Handler, error) {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	webHandler, err := NewWebHandler(deps.WebAuthService, deps.TodoService, deps.CookieSigner, deps.Sanitizer, deps.WebConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	authHandler := NewAuthHandler(deps.AuthService, deps.CookieSigner, deps.AuthConfig)
	userHandler := NewUserHandler(deps.UserService, deps.AuthConfig.ExposeInternal)
	todoHandler := NewTodoHandler(deps.TodoService, deps.AuthConfig.ExposeInternal)

	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.NewRecoveryMiddleware(logger))
	r.Use(middleware.NewLoggingMiddleware(logger))
	if deps.HTTPMetrics != nil {
		r.Use(middleware.NewMetricsMiddleware(deps.HTTPMetrics))
	}
	r.Use(middleware.NewSecurityHeadersMiddleware(deps.HSTS))
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigins...))
	r.Use(middleware.NewSessionMiddleware(deps.SessionFinder, deps.CookieSigner))

	// --- 監視 ---
	r.Get("/health", NewHealthHandler(deps.HealthChecker))
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	// --- API: 認証 ---
	r.Route("/api/auth", func(r chi.Router) {
		r.With(deps.RateLimiter.AuthMiddleware()).Post("/register", authHandler.Register)
		r.With(deps.RateLimiter.AuthMiddleware()).Post("/login", authHandler.Login)
		r.Post("/logout", authHandler.Logout)
		r.Get("/current", authHandler.Current)
		r.Post("/refresh", authHandler.Refresh)
	})

	// --- API: トークン認証が必要なルート ---
	// ミドルウェアスタック: TokenAuth → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewTokenAuthMiddleware(deps.TokenAuthenticator))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Route("/api/user", func(r chi.Router) {
			r.Get("/", userHandler.List)
			r.Post("/", userHandler.Create)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", userHandler.Get)
				r.Put("/", userHandler.Update)
				r.Patch("/", userHandler.Update)
				r.Delete("/", userHandler.Delete)
			})
		})

		r.Route("/api/todo", func(r chi.Router) {
			r.Get("/", todoHandler.List)
			r.Post("/", todoHandler.Create)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", todoHandler.Get)
				r.Put("/", todoHandler.Update)
				r.Patch("/", todoHandler.Update)
				r.Delete("/", todoHandler.Delete)
			})
		})
	})

	// --- Web画面 ---
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))

		r.Get("/auth/login", webHandler.LoginPage)
		r.With(deps.RateLimiter.AuthMiddleware()).Post("/auth/login", webHandler.Login)
		r.Get("/auth/register", webHandler.RegisterPage)
		r.With(deps.RateLimiter.AuthMiddleware()).Post("/auth/register", webHandler.Register)

		r.Group(func(r chi.Router) {
			r.Use(middleware.NewRequireSessionMiddleware(loginPath))

			r.Get("/auth/logout", webHandler.Logout)
			r.Get("/", webHandler.Index)
			r.Get("/my-todo", webHandler.MyTodo)
			r.Post("/my-todo", webHandler.CreateTodo)
			r.Post("/my-todo/{id}/update", webHandler.UpdateTodo)
			r.Post("/my-todo/{id}/delete", webHandler.DeleteTodo)
			r.Post("/my-todo/{id}/toggle-done", webHandler.ToggleDone)
			r.Post("/my-todo/{id}/toggle-publish", webHandler.TogglePublish)
		})
	})

	return r, nil
}
