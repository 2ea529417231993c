package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hitoshi/todoman/internal/model"
)

type mockUserService struct {
	createFn   func(ctx context.Context, email, password, name string) (*model.User, error)
	findByIDFn func(ctx context.Context, id string) (*model.User, error)
	findAllFn  func(ctx context.Context) ([]*model.User, error)
	updateFn   func(ctx context.Context, id string, upd model.UserUpdate) (*model.User, error)
	deleteFn   func(ctx context.Context, id string) error
}

func (m *mockUserService) Create(ctx context.Context, email, password, name string) (*model.User, error) {
	return m.createFn(ctx, email, password, name)
}

func (m *mockUserService) FindByID(ctx context.Context, id string) (*model.User, error) {
	return m.findByIDFn(ctx, id)
}

func (m *mockUserService) FindAll(ctx context.Context) ([]*model.User, error) {
	return m.findAllFn(ctx)
}

func (m *mockUserService) Update(ctx context.Context, id string, upd model.UserUpdate) (*model.User, error) {
	return m.updateFn(ctx, id, upd)
}

func (m *mockUserService) Delete(ctx context.Context, id string) error {
	return m.deleteFn(ctx, id)
}

func TestUserHandler_List(t *testing.T) {
	svc := &mockUserService{
		findAllFn: func(ctx context.Context) ([]*model.User, error) {
			return []*model.User{{ID: "u1", Email: "a@x.com"}, {ID: "u2", Email: "b@x.com"}}, nil
		},
	}
	h := NewUserHandler(svc, false)

	w := httptest.NewRecorder()
	h.List(w, httptest.NewRequest(http.MethodGet, "/api/user", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var body []userResponse
	decodeBody(t, w, &body)
	if len(body) != 2 || body[1].Email != "b@x.com" {
		t.Errorf("body = %+v", body)
	}
}

func TestUserHandler_Get_NotFound(t *testing.T) {
	svc := &mockUserService{
		findByIDFn: func(ctx context.Context, id string) (*model.User, error) {
			return nil, model.NewUserNotFoundError()
		},
	}
	h := NewUserHandler(svc, false)

	w := httptest.NewRecorder()
	h.Get(w, withUser(httptest.NewRequest(http.MethodGet, "/api/user/x", nil), "user-1", map[string]string{"id": "x"}))
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestUserHandler_Create(t *testing.T) {
	svc := &mockUserService{
		createFn: func(ctx context.Context, email, password, name string) (*model.User, error) {
			if email == "dup@x.com" {
				return nil, model.NewEmailAlreadyExistsError()
			}
			return &model.User{ID: "u1", Email: email, Name: name}, nil
		},
	}
	h := NewUserHandler(svc, false)

	w := httptest.NewRecorder()
	h.Create(w, httptest.NewRequest(http.MethodPost, "/api/user", strings.NewReader(`{"email":"a@x.com","password":"pw","name":"Ann"}`)))
	if w.Code != http.StatusCreated {
		t.Errorf("status = %d, want 201", w.Code)
	}

	w = httptest.NewRecorder()
	h.Create(w, httptest.NewRequest(http.MethodPost, "/api/user", strings.NewReader(`{"email":"dup@x.com","password":"pw","name":"Ann"}`)))
	if w.Code != http.StatusConflict {
		t.Errorf("duplicate status = %d, want 409", w.Code)
	}
}

func TestUserHandler_Update_PartialFields(t *testing.T) {
	var got model.UserUpdate
	svc := &mockUserService{
		updateFn: func(ctx context.Context, id string, upd model.UserUpdate) (*model.User, error) {
			got = upd
			return &model.User{ID: id, Name: *upd.Name}, nil
		},
	}
	h := NewUserHandler(svc, false)

	req := httptest.NewRequest(http.MethodPut, "/api/user/u1", strings.NewReader(`{"name":"Bob"}`))
	w := httptest.NewRecorder()
	h.Update(w, withUser(req, "user-1", map[string]string{"id": "u1"}))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if got.Name == nil || *got.Name != "Bob" || got.Email != nil || got.Password != nil {
		t.Errorf("update = %+v", got)
	}
}

func TestUserHandler_Delete(t *testing.T) {
	var deleted string
	svc := &mockUserService{
		deleteFn: func(ctx context.Context, id string) error {
			deleted = id
			return nil
		},
	}
	h := NewUserHandler(svc, false)

	w := httptest.NewRecorder()
	h.Delete(w, withUser(httptest.NewRequest(http.MethodDelete, "/api/user/u1", nil), "user-1", map[string]string{"id": "u1"}))
	if w.Code != http.StatusNoContent || deleted != "u1" {
		t.Errorf("status = %d, deleted = %q", w.Code, deleted)
	}
}
