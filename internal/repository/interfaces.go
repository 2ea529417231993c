// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/hitoshi/todoman/internal/model"
)

// ErrDuplicateEmail はusers.emailの一意制約違反を表す。
var ErrDuplicateEmail = errors.New("email already exists")

// UserRepository はユーザーデータの永続化インターフェース。
// 返却するmodel.UserにはPasswordHashが含まれる。除去はユーザーディレクトリの責務。
type UserRepository interface {
	// Create はユーザーを作成する。メールアドレス重複時はErrDuplicateEmailを返す。
	Create(ctx context.Context, user *model.User) error

	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByEmail はメールアドレスでユーザーを検索する。見つからない場合はnilを返す。
	// 比較は大文字小文字を区別する。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// FindAll は全ユーザーを作成日時の昇順で返す。
	FindAll(ctx context.Context) ([]*model.User, error)

	// Update はemail、name、password_hash、updated_atを上書きする。
	// 対象が存在しない場合はfalseを返す。
	Update(ctx context.Context, user *model.User) (bool, error)

	// DeleteByID は指定IDのユーザーを削除する。
	// 関連するtodos、sessionsはCASCADE削除される。tokensは台帳として残る。
	// 対象が存在しない場合はfalseを返す。
	DeleteByID(ctx context.Context, id string) (bool, error)
}

// TodoFilter はTODO一覧の絞り込み条件。
type TodoFilter struct {
	AuthorID      string // 空でなければ作成者で絞り込む
	PublishedOnly bool   // trueなら公開済みのみ
	Take          int
	Skip          int
}

// TodoRepository はTODOデータの永続化インターフェース。
type TodoRepository interface {
	// Create はTODOを作成する。
	Create(ctx context.Context, todo *model.Todo) error

	// FindByID は指定IDのTODOを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Todo, error)

	// Update はTODOの可変フィールドを上書きする。
	Update(ctx context.Context, todo *model.Todo) error

	// DeleteByID は指定IDのTODOを削除する。
	DeleteByID(ctx context.Context, id string) error

	// List は条件に一致するTODOをcreated_at降順で返し、条件に一致する総件数も返す。
	List(ctx context.Context, filter TodoFilter) ([]*model.Todo, int, error)
}

// TokenRepository はトークン台帳の永続化インターフェース。
// レコードは物理削除せず、statusをfalseにすることで失効させる。
type TokenRepository interface {
	// Create はトークンレコードを作成する。
	Create(ctx context.Context, token *model.Token) error

	// FindByToken はアクセストークン文字列の完全一致で検索する。見つからない場合はnilを返す。
	FindByToken(ctx context.Context, token string) (*model.Token, error)

	// FindByRefreshToken はリフレッシュトークン文字列の完全一致で検索する。見つからない場合はnilを返す。
	FindByRefreshToken(ctx context.Context, refreshToken string) (*model.Token, error)

	// RevokeByID は指定IDのレコードを失効させる。
	RevokeByID(ctx context.Context, id string, revokedAt time.Time) error

	// RevokeByToken はアクセストークン文字列が一致するレコードを失効させる。
	// 一致するレコードがない場合はfalseを返す。
	RevokeByToken(ctx context.Context, token string, revokedAt time.Time) (bool, error)
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteByUserID は指定ユーザーの全セッションを削除する。
	DeleteByUserID(ctx context.Context, userID string) error
}
