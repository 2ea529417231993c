package handler

import (
	"time"

	"github.com/hitoshi/todoman/internal/model"
)

// userResponse はユーザー情報のAPIレスポンス。パスワードハッシュは含めない。
type userResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// todoResponse はTODOのAPIレスポンス。
type todoResponse struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Content   string     `json:"content"`
	AuthorID  string     `json:"authorId"`
	IsDone    bool       `json:"isDone"`
	IsPublish bool       `json:"isPublish"`
	From      *time.Time `json:"from"`
	To        *time.Time `json:"to"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// todoListResponse はTODO一覧のAPIレスポンス。
type todoListResponse struct {
	Todos      []todoResponse `json:"todos"`
	TotalCount int            `json:"totalCount"`
}

func toUserResponse(u *model.User) userResponse {
	return userResponse{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

func toTodoResponse(t *model.Todo) todoResponse {
	return todoResponse{
		ID:        t.ID,
		Title:     t.Title,
		Content:   t.Content,
		AuthorID:  t.AuthorID,
		IsDone:    t.IsDone,
		IsPublish: t.IsPublish,
		From:      t.From,
		To:        t.To,
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}
}

func toTodoListResponse(todos []*model.Todo, total int) todoListResponse {
	resp := todoListResponse{
		Todos:      make([]todoResponse, 0, len(todos)),
		TotalCount: total,
	}
	for _, t := range todos {
		resp.Todos = append(resp.Todos, toTodoResponse(t))
	}
	return resp
}
