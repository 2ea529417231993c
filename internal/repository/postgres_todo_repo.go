package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/hitoshi/todoman/internal/model"
	"github.com/jmoiron/sqlx"
)

const todoColumns = `id, title, content, author_id, is_done, is_publish, from_at, to_at, created_at, updated_at`

// PostgresTodoRepo はPostgreSQLを使用したTODOリポジトリ。
type PostgresTodoRepo struct {
	db *sqlx.DB
}

// NewPostgresTodoRepo はPostgresTodoRepoを生成する。
func NewPostgresTodoRepo(db *sqlx.DB) *PostgresTodoRepo {
	return &PostgresTodoRepo{db: db}
}

// Create はTODOを作成する。
func (r *PostgresTodoRepo) Create(ctx context.Context, todo *model.Todo) error {
	_, err := r.db.NamedExecContext(ctx,
		`INSERT INTO todos (`+todoColumns+`)
		 VALUES (:id, :title, :content, :author_id, :is_done, :is_publish, :from_at, :to_at, :created_at, :updated_at)`,
		todo,
	)
	if err != nil {
		return fmt.Errorf("failed to insert todo: %w", err)
	}
	return nil
}

// FindByID は指定IDのTODOを取得する。見つからない場合はnilを返す。
func (r *PostgresTodoRepo) FindByID(ctx context.Context, id string) (*model.Todo, error) {
	todo := &model.Todo{}
	err := r.db.GetContext(ctx, todo,
		`SELECT `+todoColumns+` FROM todos WHERE id = $1`,
		id,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find todo: %w", err)
	}
	return todo, nil
}

// Update はTODOの可変フィールドを上書きする。
func (r *PostgresTodoRepo) Update(ctx context.Context, todo *model.Todo) error {
	_, err := r.db.NamedExecContext(ctx,
		`UPDATE todos
		 SET title = :title, content = :content, is_done = :is_done, is_publish = :is_publish,
		     from_at = :from_at, to_at = :to_at, updated_at = :updated_at
		 WHERE id = :id`,
		todo,
	)
	if err != nil {
		return fmt.Errorf("failed to update todo: %w", err)
	}
	return nil
}

// DeleteByID は指定IDのTODOを削除する。
func (r *PostgresTodoRepo) DeleteByID(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM todos WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete todo: %w", err)
	}
	return nil
}

// List は条件に一致するTODOをcreated_at降順で返し、総件数も返す。
// Takeが0以下の場合は件数を制限しない。
func (r *PostgresTodoRepo) List(ctx context.Context, filter TodoFilter) ([]*model.Todo, int, error) {
	where, args := buildTodoWhere(filter)

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM todos`+where, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count todos: %w", err)
	}

	query := `SELECT ` + todoColumns + ` FROM todos` + where + ` ORDER BY created_at DESC, id`
	if filter.Take > 0 {
		args = append(args, filter.Take)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Skip > 0 {
		args = append(args, filter.Skip)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	todos := []*model.Todo{}
	if err := r.db.SelectContext(ctx, &todos, query, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to list todos: %w", err)
	}
	return todos, total, nil
}

// buildTodoWhere はTodoFilterからWHERE句とプレースホルダ引数を組み立てる。
func buildTodoWhere(filter TodoFilter) (string, []interface{}) {
	var conds []string
	var args []interface{}

	if filter.AuthorID != "" {
		args = append(args, filter.AuthorID)
		conds = append(conds, fmt.Sprintf("author_id = $%d", len(args)))
	}
	if filter.PublishedOnly {
		conds = append(conds, "is_publish = TRUE")
	}

	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// compile-time interface check
var _ TodoRepository = (*PostgresTodoRepo)(nil)
