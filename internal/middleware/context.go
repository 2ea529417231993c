// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"

	"github.com/hitoshi/todoman/internal/model"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

var (
	// userIDContextKey はリクエストコンテキストにユーザーIDを格納するためのキー。
	userIDContextKey = contextKey("user_id")
	// userContextKey はトークン認証で解決したユーザーを格納するためのキー。
	userContextKey = contextKey("user")
	// sessionContextKey は読み込んだセッションを格納するためのキー。
	sessionContextKey = contextKey("session")
	// csrfTokenContextKey はフォームに埋め込むCSRFトークンを格納するためのキー。
	csrfTokenContextKey = contextKey("csrf_token")
	// logFieldsContextKey はロギングミドルウェアが参照する可変フィールドのキー。
	logFieldsContextKey = contextKey("log_fields")
)

// UserIDFromContext はリクエストコンテキストからユーザーIDを取得する。
// トークン認証またはセッションを通過したリクエストでのみ有効。
func UserIDFromContext(ctx context.Context) (string, error) {
	userID, ok := ctx.Value(userIDContextKey).(string)
	if !ok || userID == "" {
		return "", fmt.Errorf("user ID not found in context")
	}
	return userID, nil
}

// ContextWithUserID はコンテキストにユーザーIDを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithUserID(ctx context.Context, userID string) context.Context {
	if f, ok := ctx.Value(logFieldsContextKey).(*logFields); ok {
		f.userID = userID
	}
	return context.WithValue(ctx, userIDContextKey, userID)
}

// UserFromContext はトークン認証で解決したユーザーを返す。未認証の場合はnil。
func UserFromContext(ctx context.Context) *model.User {
	user, _ := ctx.Value(userContextKey).(*model.User)
	return user
}

// ContextWithUser はコンテキストにユーザーとそのIDを注入する。
func ContextWithUser(ctx context.Context, user *model.User) context.Context {
	ctx = ContextWithUserID(ctx, user.ID)
	return context.WithValue(ctx, userContextKey, user)
}

// SessionFromContext はセッションミドルウェアが読み込んだセッションを返す。
// セッションがない場合はnil。
func SessionFromContext(ctx context.Context) *model.Session {
	session, _ := ctx.Value(sessionContextKey).(*model.Session)
	return session
}

// ContextWithSession はコンテキストにセッションとそのユーザーIDを注入する。
func ContextWithSession(ctx context.Context, session *model.Session) context.Context {
	ctx = ContextWithUserID(ctx, session.UserID)
	return context.WithValue(ctx, sessionContextKey, session)
}

// CSRFTokenFromContext はフォームに埋め込むべきCSRFトークンを返す。
func CSRFTokenFromContext(ctx context.Context) string {
	token, _ := ctx.Value(csrfTokenContextKey).(string)
	return token
}
