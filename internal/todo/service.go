// Package todo はTODOの作成、参照、更新、削除のドメインロジックを提供する。
// 更新と削除は作成者本人のみに許可する。
package todo

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/todoman/internal/model"
	"github.com/hitoshi/todoman/internal/repository"
)

const (
	// DefaultTake はtake未指定時の取得件数。
	DefaultTake = 20
	// MaxTake はtakeの上限。
	MaxTake = 100
	// MaxTitleLength はタイトルの最大文字数。
	MaxTitleLength = 255
)

// CreateInput はTODO作成の入力。
type CreateInput struct {
	Title     string
	Content   string
	IsDone    bool
	IsPublish bool
	From      *time.Time
	To        *time.Time
}

// OptionalTime は部分更新で「未指定」と「nullを指定」を区別するための値。
type OptionalTime struct {
	Set  bool
	Time *time.Time
}

// UpdateInput はTODOの部分更新の入力。nilまたはSet=falseの項目は変更しない。
type UpdateInput struct {
	Title     *string
	Content   *string
	IsDone    *bool
	IsPublish *bool
	From      OptionalTime
	To        OptionalTime
}

// ListResult はTODO一覧と条件に一致する総件数。
type ListResult struct {
	Todos      []*model.Todo
	TotalCount int
}

// Service はTODOのサービス層。
type Service struct {
	repo repository.TodoRepository
	now  func() time.Time
}

// NewService はServiceを生成する。
func NewService(repo repository.TodoRepository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// Create は操作ユーザーを作成者としてTODOを作成する。
func (s *Service) Create(ctx context.Context, userID string, in CreateInput) (*model.Todo, error) {
	title, err := normalizeTitle(in.Title)
	if err != nil {
		return nil, err
	}
	if err := validatePeriod(in.From, in.To); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	t := &model.Todo{
		ID:        uuid.New().String(),
		Title:     title,
		Content:   in.Content,
		AuthorID:  userID,
		IsDone:    in.IsDone,
		IsPublish: in.IsPublish,
		From:      in.From,
		To:        in.To,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Create(ctx, t); err != nil {
		return nil, fmt.Errorf("TODOの作成に失敗しました: %w", err)
	}
	return t, nil
}

// List はTODO一覧を返す。
// q.PublishedOnlyがfalseの場合は操作ユーザー自身のTODOに限定し、
// trueの場合は作成者を問わず公開済みのTODOを返す。
func (s *Service) List(ctx context.Context, userID string, q ListQuery) (*ListResult, error) {
	filter := repository.TodoFilter{
		PublishedOnly: q.PublishedOnly,
		Take:          q.Take,
		Skip:          q.Skip,
	}
	if !q.PublishedOnly {
		filter.AuthorID = userID
	}

	todos, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("TODO一覧の取得に失敗しました: %w", err)
	}
	return &ListResult{Todos: todos, TotalCount: total}, nil
}

// Get は指定IDのTODOを返す。
// 存在しない場合と、他ユーザーの非公開TODOの場合はTODO_NOT_FOUNDを返す。
func (s *Service) Get(ctx context.Context, userID, id string) (*model.Todo, error) {
	t, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if !t.IsVisibleTo(userID) {
		return nil, model.NewTodoNotFoundError(id)
	}
	return t, nil
}

// Update は指定された項目のみを既存の値に上書きする。作成者以外はFORBIDDENを返す。
func (s *Service) Update(ctx context.Context, userID, id string, in UpdateInput) (*model.Todo, error) {
	t, err := s.findOwned(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	if in.Title != nil {
		title, err := normalizeTitle(*in.Title)
		if err != nil {
			return nil, err
		}
		t.Title = title
	}
	if in.Content != nil {
		t.Content = *in.Content
	}
	if in.IsDone != nil {
		t.IsDone = *in.IsDone
	}
	if in.IsPublish != nil {
		t.IsPublish = *in.IsPublish
	}
	if in.From.Set {
		t.From = in.From.Time
	}
	if in.To.Set {
		t.To = in.To.Time
	}
	if err := validatePeriod(t.From, t.To); err != nil {
		return nil, err
	}

	return t, s.save(ctx, t)
}

// ToggleDone は完了フラグを反転する。
func (s *Service) ToggleDone(ctx context.Context, userID, id string) (*model.Todo, error) {
	t, err := s.findOwned(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	t.IsDone = !t.IsDone
	return t, s.save(ctx, t)
}

// TogglePublish は公開フラグを反転する。
func (s *Service) TogglePublish(ctx context.Context, userID, id string) (*model.Todo, error) {
	t, err := s.findOwned(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	t.IsPublish = !t.IsPublish
	return t, s.save(ctx, t)
}

// Delete はTODOを削除する。作成者以外はFORBIDDENを返す。
func (s *Service) Delete(ctx context.Context, userID, id string) error {
	if _, err := s.findOwned(ctx, userID, id); err != nil {
		return err
	}
	if err := s.repo.DeleteByID(ctx, id); err != nil {
		return fmt.Errorf("TODOの削除に失敗しました: %w", err)
	}
	return nil
}

func (s *Service) save(ctx context.Context, t *model.Todo) error {
	t.UpdatedAt = s.now().UTC()
	if err := s.repo.Update(ctx, t); err != nil {
		return fmt.Errorf("TODOの更新に失敗しました: %w", err)
	}
	return nil
}

// find はTODOを取得する。UUID形式でないIDは存在しないものとして扱う。
func (s *Service) find(ctx context.Context, id string) (*model.Todo, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, model.NewTodoNotFoundError(id)
	}
	t, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("TODOの取得に失敗しました: %w", err)
	}
	if t == nil {
		return nil, model.NewTodoNotFoundError(id)
	}
	return t, nil
}

// findOwned はTODOを取得し、操作ユーザーが作成者であることを確認する。
func (s *Service) findOwned(ctx context.Context, userID, id string) (*model.Todo, error) {
	t, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if !t.IsOwnedBy(userID) {
		return nil, model.NewForbiddenError()
	}
	return t, nil
}

func normalizeTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", model.NewValidationError("titleは必須です。")
	}
	if len([]rune(title)) > MaxTitleLength {
		return "", model.NewValidationError(fmt.Sprintf("titleは%d文字以内で入力してください。", MaxTitleLength))
	}
	return title, nil
}

func validatePeriod(from, to *time.Time) error {
	if from != nil && to != nil && to.Before(*from) {
		return model.NewInvalidDateRangeError()
	}
	return nil
}
