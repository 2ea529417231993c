package model

import "time"

// Todo はユーザーが所有するTODO項目を表す。
// 作成者以外には IsPublish が true の場合のみ公開される。
type Todo struct {
	ID        string     `db:"id"`
	Title     string     `db:"title"`
	Content   string     `db:"content"`
	AuthorID  string     `db:"author_id"`
	IsDone    bool       `db:"is_done"`
	IsPublish bool       `db:"is_publish"`
	From      *time.Time `db:"from_at"`
	To        *time.Time `db:"to_at"`
	CreatedAt time.Time  `db:"created_at"`
	UpdatedAt time.Time  `db:"updated_at"`
}

// IsOwnedBy は指定ユーザーが作成者かどうかを返す。
func (t *Todo) IsOwnedBy(userID string) bool {
	return userID != "" && t.AuthorID == userID
}

// IsVisibleTo は指定ユーザーから参照可能かどうかを返す。
func (t *Todo) IsVisibleTo(userID string) bool {
	return t.IsPublish || t.IsOwnedBy(userID)
}
