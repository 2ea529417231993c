package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/todoman/internal/model"
	"github.com/hitoshi/todoman/internal/todo"
)

// TodoServiceInterface はTODOハンドラーが必要とするサービスインターフェース。
type TodoServiceInterface interface {
	Create(ctx context.Context, userID string, in todo.CreateInput) (*model.Todo, error)
	List(ctx context.Context, userID string, q todo.ListQuery) (*todo.ListResult, error)
	Get(ctx context.Context, userID, id string) (*model.Todo, error)
	Update(ctx context.Context, userID, id string, in todo.UpdateInput) (*model.Todo, error)
	ToggleDone(ctx context.Context, userID, id string) (*model.Todo, error)
	TogglePublish(ctx context.Context, userID, id string) (*model.Todo, error)
	Delete(ctx context.Context, userID, id string) error
}

// TodoHandler はTODO APIのHTTPハンドラー。TokenAuthMiddlewareの後に配置する。
type TodoHandler struct {
	errorResponder
	service TodoServiceInterface
}

// NewTodoHandler はTodoHandlerを生成する。
func NewTodoHandler(service TodoServiceInterface, exposeInternal bool) *TodoHandler {
	return &TodoHandler{
		errorResponder: errorResponder{exposeInternal: exposeInternal},
		service:        service,
	}
}

type createTodoRequest struct {
	Title     string     `json:"title"`
	Content   string     `json:"content"`
	IsDone    bool       `json:"isDone"`
	IsPublish bool       `json:"isPublish"`
	From      *time.Time `json:"from"`
	To        *time.Time `json:"to"`
}

type updateTodoRequest struct {
	Title     *string      `json:"title"`
	Content   *string      `json:"content"`
	IsDone    *bool        `json:"isDone"`
	IsPublish *bool        `json:"isPublish"`
	From      optionalTime `json:"from"`
	To        optionalTime `json:"to"`
}

// optionalTime はJSONのキーが存在したかどうかを記録する。nullは日時の解除を表す。
type optionalTime struct {
	todo.OptionalTime
}

func (o *optionalTime) UnmarshalJSON(data []byte) error {
	o.Set = true
	if bytes.Equal(data, []byte("null")) {
		o.Time = nil
		return nil
	}
	var t time.Time
	if err := json.Unmarshal(data, &t); err != nil {
		return err
	}
	o.Time = &t
	return nil
}

// List はTODO一覧を返す。
// GET /api/todo?take=&skip=&isPublish=
func (h *TodoHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	q, err := todo.ParseListQuery(r.URL.Query())
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	result, err := h.service.List(r.Context(), userID, q)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTodoListResponse(result.Todos, result.TotalCount))
}

// Get は指定IDのTODOを返す。
// GET /api/todo/{id}
func (h *TodoHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	t, err := h.service.Get(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTodoResponse(t))
}

// Create はTODOを作成する。
// POST /api/todo
func (h *TodoHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req createTodoRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	t, err := h.service.Create(r.Context(), userID, todo.CreateInput{
		Title:     req.Title,
		Content:   req.Content,
		IsDone:    req.IsDone,
		IsPublish: req.IsPublish,
		From:      req.From,
		To:        req.To,
	})
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTodoResponse(t))
}

// Update は指定された項目のみTODOを更新する。
// PUT /api/todo/{id}, PATCH /api/todo/{id}
func (h *TodoHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req updateTodoRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	t, err := h.service.Update(r.Context(), userID, chi.URLParam(r, "id"), todo.UpdateInput{
		Title:     req.Title,
		Content:   req.Content,
		IsDone:    req.IsDone,
		IsPublish: req.IsPublish,
		From:      req.From.OptionalTime,
		To:        req.To.OptionalTime,
	})
	if err != nil {
		h.handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTodoResponse(t))
}

// Delete はTODOを削除する。
// DELETE /api/todo/{id}
func (h *TodoHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		h.handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
