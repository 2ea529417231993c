// Package model はドメインモデルを定義する。
package model

import (
	"errors"
	"fmt"
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, todo, user, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeValidation           = "VALIDATION_ERROR"
	ErrCodeInvalidRequest       = "INVALID_REQUEST"
	ErrCodeInvalidDateRange     = "INVALID_DATE_RANGE"
	ErrCodeInvalidPagination    = "INVALID_PAGINATION"
	ErrCodeEmailAlreadyExists   = "EMAIL_ALREADY_EXISTS"
	ErrCodeInvalidCredentials   = "INVALID_CREDENTIALS"
	ErrCodeUnauthorized         = "UNAUTHORIZED"
	ErrCodeInvalidToken         = "INVALID_TOKEN"
	ErrCodeTokenBlacklisted     = "TOKEN_BLACKLISTED"
	ErrCodeRefreshTokenInvalid  = "REFRESH_TOKEN_INVALID"
	ErrCodeForbidden            = "FORBIDDEN"
	ErrCodeUserNotFound         = "USER_NOT_FOUND"
	ErrCodeTodoNotFound         = "TODO_NOT_FOUND"
	ErrCodeTokenNotFound        = "TOKEN_NOT_FOUND"
	ErrCodeRefreshTokenNotFound = "REFRESH_TOKEN_NOT_FOUND"
	ErrCodeRateLimited          = "RATE_LIMITED"
	ErrCodeInternal             = "INTERNAL_ERROR"
)

// NewValidationError は入力値の不備を表すエラーを生成する。
func NewValidationError(message string) *APIError {
	return &APIError{
		Code:     ErrCodeValidation,
		Message:  message,
		Category: "validation",
		Action:   "入力内容を確認してください。",
	}
}

// NewInvalidRequestError はリクエストボディの解析失敗エラーを生成する。
func NewInvalidRequestError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  "リクエストボディの解析に失敗しました。",
		Category: "validation",
		Action:   "正しいJSON形式でリクエストしてください。",
	}
}

// NewInvalidDateRangeError は期間の指定が不正な場合のエラーを生成する。
func NewInvalidDateRangeError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidDateRange,
		Message:  "期間の指定が不正です。",
		Category: "validation",
		Action:   "終了日時には開始日時以降の日時を指定してください。",
	}
}

// NewInvalidPaginationError はページネーションパラメータが不正な場合のエラーを生成する。
func NewInvalidPaginationError(param string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidPagination,
		Message:  fmt.Sprintf("ページネーションの指定が不正です: %s", param),
		Category: "validation",
		Action:   "take と skip には0以上の整数を指定してください。",
	}
}

// NewEmailAlreadyExistsError はメールアドレス重複エラーを生成する。
func NewEmailAlreadyExistsError() *APIError {
	return &APIError{
		Code:     ErrCodeEmailAlreadyExists,
		Message:  "このメールアドレスは既に登録されています。",
		Category: "user",
		Action:   "別のメールアドレスを使用するか、ログインしてください。",
	}
}

// NewInvalidCredentialsError は認証情報の不一致エラーを生成する。
// ユーザーの存在有無は区別しない。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "メールアドレスまたはパスワードが正しくありません。",
		Category: "auth",
		Action:   "入力内容を確認して再度ログインしてください。",
	}
}

// NewUnauthorizedError は未認証エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	}
}

// NewInvalidTokenError は署名検証または有効期限の検証に失敗したトークンのエラーを生成する。
func NewInvalidTokenError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidToken,
		Message:  "トークンが無効または期限切れです。",
		Category: "auth",
		Action:   "トークンを更新するか、ログインし直してください。",
	}
}

// NewTokenBlacklistedError は失効済みトークンのエラーを生成する。
func NewTokenBlacklistedError() *APIError {
	return &APIError{
		Code:     ErrCodeTokenBlacklisted,
		Message:  "トークンは失効しています。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}

// NewRefreshTokenInvalidError は使用できないリフレッシュトークンのエラーを生成する。
func NewRefreshTokenInvalidError() *APIError {
	return &APIError{
		Code:     ErrCodeRefreshTokenInvalid,
		Message:  "リフレッシュトークンが無効です。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}

// NewForbiddenError は所有者以外による操作のエラーを生成する。
func NewForbiddenError() *APIError {
	return &APIError{
		Code:     ErrCodeForbidden,
		Message:  "この操作を行う権限がありません。",
		Category: "auth",
		Action:   "自分が作成した項目のみ変更できます。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "user",
		Action:   "ユーザーIDを確認するか、ログインし直してください。",
	}
}

// NewTodoNotFoundError はTODOが見つからない場合のエラーを生成する。
func NewTodoNotFoundError(todoID string) *APIError {
	return &APIError{
		Code:     ErrCodeTodoNotFound,
		Message:  fmt.Sprintf("指定されたTODOが見つかりません: %s", todoID),
		Category: "todo",
		Action:   "TODOのIDを確認してください。",
	}
}

// NewTokenNotFoundError はブラックリスト登録対象のトークンが台帳にない場合のエラーを生成する。
func NewTokenNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeTokenNotFound,
		Message:  "トークンが見つかりません。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}

// NewRefreshTokenNotFoundError は失効対象のリフレッシュトークンが台帳にない場合のエラーを生成する。
func NewRefreshTokenNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeRefreshTokenNotFound,
		Message:  "リフレッシュトークンが見つかりません。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}

// NewRateLimitedError はレート制限超過エラーを生成する。
func NewRateLimitedError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimited,
		Message:  "リクエストが多すぎます。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewInternalError はストアやライブラリの失敗を表すエラーを生成する。
// messageが空の場合は一般的なメッセージを使う。
func NewInternalError(message string) *APIError {
	if message == "" {
		message = "内部エラーが発生しました。"
	}
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  message,
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// IsAPIErrorCode はerrがAPIErrorを含み、そのコードが指定コードのいずれかに一致するかを返す。
func IsAPIErrorCode(err error, codes ...string) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	for _, c := range codes {
		if apiErr.Code == c {
			return true
		}
	}
	return false
}
