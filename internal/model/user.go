// Package model はドメインモデルを定義する。
package model

import "time"

// User はサービス利用ユーザーを表す。
// PasswordHashはユーザーディレクトリの外へ返す前に必ず空にする。
type User struct {
	ID           string    `db:"id"`
	Email        string    `db:"email"`
	Name         string    `db:"name"`
	PasswordHash string    `db:"password_hash" json:"-"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

// WithoutPassword はパスワードハッシュを除いたコピーを返す。
func (u *User) WithoutPassword() *User {
	if u == nil {
		return nil
	}
	c := *u
	c.PasswordHash = ""
	return &c
}

// UserUpdate はユーザー情報の部分更新内容を表す。
// nilのフィールドは変更しない。
type UserUpdate struct {
	Email    *string
	Name     *string
	Password *string
}

// Session はサーバー側で保持するログインセッションを表す。
// Cookieにはセッション IDのみを署名付きで格納する。
type Session struct {
	ID        string    `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"user_id"`
	Email     string    `db:"email" json:"email"`
	Name      string    `db:"name" json:"name"`
	ExpiresAt time.Time `db:"expires_at" json:"expires_at"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// MaxAgeSeconds はセッションの残り有効期間を秒で返す。
func (s *Session) MaxAgeSeconds(now time.Time) int {
	d := s.ExpiresAt.Sub(now)
	if d <= 0 {
		return 0
	}
	return int(d.Seconds())
}
