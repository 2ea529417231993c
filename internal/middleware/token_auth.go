package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/todoman/internal/model"
)

// TokenAuthenticator はBearerトークンからユーザーを解決する。
type TokenAuthenticator interface {
	Authenticate(ctx context.Context, raw string) (*model.User, error)
}

// BearerToken はAuthorizationヘッダーからBearerトークンを取り出す。
// ヘッダーがない場合や形式が異なる場合は空文字を返す。
func BearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// NewTokenAuthMiddleware はBearerトークンを検証するミドルウェアを返す。
// トークンがない、ブラックリスト登録済み、署名または有効期限が不正、
// ユーザーが存在しない場合はいずれも401のJSONエラーを返す。
// 認証に成功した場合はユーザーをリクエストコンテキストに注入する。
func NewTokenAuthMiddleware(authenticator TokenAuthenticator) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := authenticator.Authenticate(r.Context(), BearerToken(r))
			if err != nil {
				var apiErr *model.APIError
				if errors.As(err, &apiErr) && model.IsAPIErrorCode(err,
					model.ErrCodeUnauthorized,
					model.ErrCodeInvalidToken,
					model.ErrCodeTokenBlacklisted,
				) {
					WriteErrorResponse(w, http.StatusUnauthorized, apiErr)
					return
				}
				slog.Error("failed to authenticate token",
					slog.String("path", r.URL.Path),
					slog.String("error", err.Error()),
				)
				WriteInternalServerError(w)
				return
			}

			next.ServeHTTP(w, r.WithContext(ContextWithUser(r.Context(), user)))
		})
	}
}
