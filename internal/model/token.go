package model

import "time"

// TokenType はトークンレコードの種別を表す。
type TokenType string

const (
	// TokenTypeAccess はアクセストークン単体のレコード。
	TokenTypeAccess TokenType = "access-token"
	// TokenTypeRefresh はアクセストークンとリフレッシュトークンの組のレコード。
	TokenTypeRefresh TokenType = "refresh-token"
)

// Token は発行済みトークンの台帳レコードを表す。
// Statusがfalseのレコードは失効（ブラックリスト入り）済みで、物理削除はしない。
type Token struct {
	ID           string     `db:"id"`
	UserID       string     `db:"user_id"`
	Token        string     `db:"token"`
	RefreshToken *string    `db:"refresh_token"`
	TokenID      string     `db:"token_id"` // アクセストークンのjti
	Status       bool       `db:"status"`
	ExpiresAt    time.Time  `db:"expires_at"`
	Type         TokenType  `db:"type"`
	RevokedAt    *time.Time `db:"revoked_at"`
	CreatedAt    time.Time  `db:"created_at"`
}

// IsActive はトークンが失効しておらず期限内であるかを返す。
func (t *Token) IsActive(now time.Time) bool {
	return t.Status && now.Before(t.ExpiresAt)
}
