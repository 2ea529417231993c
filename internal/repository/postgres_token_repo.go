package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hitoshi/todoman/internal/model"
	"github.com/jmoiron/sqlx"
)

const tokenColumns = `id, user_id, token, refresh_token, token_id, status, expires_at, type, revoked_at, created_at`

// PostgresTokenRepo はPostgreSQLを使用したトークン台帳リポジトリ。
type PostgresTokenRepo struct {
	db *sqlx.DB
}

// NewPostgresTokenRepo はPostgresTokenRepoを生成する。
func NewPostgresTokenRepo(db *sqlx.DB) *PostgresTokenRepo {
	return &PostgresTokenRepo{db: db}
}

// Create はトークンレコードを作成する。
func (r *PostgresTokenRepo) Create(ctx context.Context, token *model.Token) error {
	_, err := r.db.NamedExecContext(ctx,
		`INSERT INTO tokens (`+tokenColumns+`)
		 VALUES (:id, :user_id, :token, :refresh_token, :token_id, :status, :expires_at, :type, :revoked_at, :created_at)`,
		token,
	)
	if err != nil {
		return fmt.Errorf("failed to insert token: %w", err)
	}
	return nil
}

// FindByToken はアクセストークン文字列で検索する。見つからない場合はnilを返す。
func (r *PostgresTokenRepo) FindByToken(ctx context.Context, token string) (*model.Token, error) {
	return r.findOne(ctx, `SELECT `+tokenColumns+` FROM tokens WHERE token = $1`, token)
}

// FindByRefreshToken はリフレッシュトークン文字列で検索する。見つからない場合はnilを返す。
func (r *PostgresTokenRepo) FindByRefreshToken(ctx context.Context, refreshToken string) (*model.Token, error) {
	return r.findOne(ctx, `SELECT `+tokenColumns+` FROM tokens WHERE refresh_token = $1`, refreshToken)
}

func (r *PostgresTokenRepo) findOne(ctx context.Context, query string, arg string) (*model.Token, error) {
	token := &model.Token{}
	err := r.db.GetContext(ctx, token, query, arg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find token: %w", err)
	}
	return token, nil
}

// RevokeByID は指定IDのレコードを失効させる。
func (r *PostgresTokenRepo) RevokeByID(ctx context.Context, id string, revokedAt time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE tokens SET status = FALSE, revoked_at = $2 WHERE id = $1`,
		id, revokedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	return nil
}

// RevokeByToken はアクセストークン文字列が一致するレコードを失効させる。
func (r *PostgresTokenRepo) RevokeByToken(ctx context.Context, token string, revokedAt time.Time) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE tokens SET status = FALSE, revoked_at = $2 WHERE token = $1`,
		token, revokedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to blacklist token: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

// compile-time interface check
var _ TokenRepository = (*PostgresTokenRepo)(nil)
