package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/hitoshi/todoman/internal/model"
)

// SessionCookieName はWeb画面のセッションIDを保持するCookieの名前。
const SessionCookieName = "sid"

// SessionFinder はセッションの検索に必要なインターフェース。
// repository.SessionRepositoryの部分集合として定義する。
type SessionFinder interface {
	FindByID(ctx context.Context, id string) (*model.Session, error)
}

// CookieUnsigner は署名付きCookie値を検証し、元の値を取り出す。
type CookieUnsigner interface {
	Unsign(signed string) (string, bool)
}

// NewSessionMiddleware は署名付きCookieからセッションを読み込み、
// 有効なセッションがあればリクエストコンテキストに注入するミドルウェアを返す。
// セッションがなくてもリクエストは拒否しない。拒否はNewRequireSessionMiddlewareが行う。
func NewSessionMiddleware(finder SessionFinder, signer CookieUnsigner) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(SessionCookieName)
			if err != nil || cookie.Value == "" {
				next.ServeHTTP(w, r)
				return
			}

			sessionID, ok := signer.Unsign(cookie.Value)
			if !ok {
				slog.Warn("session cookie signature mismatch",
					slog.String("path", r.URL.Path),
				)
				next.ServeHTTP(w, r)
				return
			}

			session, err := finder.FindByID(r.Context(), sessionID)
			if err != nil {
				slog.Error("failed to find session",
					slog.String("error", err.Error()),
				)
				next.ServeHTTP(w, r)
				return
			}
			if session == nil {
				next.ServeHTTP(w, r)
				return
			}

			next.ServeHTTP(w, r.WithContext(ContextWithSession(r.Context(), session)))
		})
	}
}

// NewRequireSessionMiddleware はセッションのないリクエストを
// ログイン画面へ303でリダイレクトするミドルウェアを返す。
// NewSessionMiddlewareの後に配置する。
func NewRequireSessionMiddleware(loginPath string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if SessionFromContext(r.Context()) == nil {
				http.Redirect(w, r, loginPath, http.StatusSeeOther)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
