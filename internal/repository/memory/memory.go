// Package memory はテストやローカル検証向けのインメモリリポジトリを提供する。
// PostgreSQL実装と同じ制約（メールアドレスの一意性、ユーザー削除時のCASCADE）を再現する。
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/hitoshi/todoman/internal/model"
	"github.com/hitoshi/todoman/internal/repository"
)

// Store は全テーブルを保持するインメモリストア。
type Store struct {
	mu       sync.Mutex
	users    map[string]model.User
	todos    map[string]model.Todo
	tokens   map[string]model.Token
	sessions map[string]model.Session
	now      func() time.Time
}

// NewStore は空のStoreを生成する。
func NewStore() *Store {
	return &Store{
		users:    make(map[string]model.User),
		todos:    make(map[string]model.Todo),
		tokens:   make(map[string]model.Token),
		sessions: make(map[string]model.Session),
		now:      time.Now,
	}
}

// Users はUserRepositoryを返す。
func (s *Store) Users() *UserRepo { return &UserRepo{s: s} }

// Todos はTodoRepositoryを返す。
func (s *Store) Todos() *TodoRepo { return &TodoRepo{s: s} }

// Tokens はTokenRepositoryを返す。
func (s *Store) Tokens() *TokenRepo { return &TokenRepo{s: s} }

// Sessions はSessionRepositoryを返す。
func (s *Store) Sessions() *SessionRepo { return &SessionRepo{s: s} }

// UserRepo はインメモリのユーザーリポジトリ。
type UserRepo struct{ s *Store }

func (r *UserRepo) Create(_ context.Context, user *model.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if u.Email == user.Email {
			return repository.ErrDuplicateEmail
		}
	}
	r.s.users[user.ID] = *user
	return nil
}

func (r *UserRepo) FindByID(_ context.Context, id string) (*model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (r *UserRepo) FindByEmail(_ context.Context, email string) (*model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, nil
}

func (r *UserRepo) FindAll(_ context.Context) ([]*model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]*model.User, 0, len(r.s.users))
	for _, u := range r.s.users {
		u := u
		out = append(out, &u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *UserRepo) Update(_ context.Context, user *model.User) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.users[user.ID]; !ok {
		return false, nil
	}
	for id, u := range r.s.users {
		if id != user.ID && u.Email == user.Email {
			return false, repository.ErrDuplicateEmail
		}
	}
	r.s.users[user.ID] = *user
	return true, nil
}

// DeleteByID はユーザーを削除し、todosとsessionsもCASCADE削除する。
func (r *UserRepo) DeleteByID(_ context.Context, id string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.users[id]; !ok {
		return false, nil
	}
	delete(r.s.users, id)
	for tid, t := range r.s.todos {
		if t.AuthorID == id {
			delete(r.s.todos, tid)
		}
	}
	for sid, sess := range r.s.sessions {
		if sess.UserID == id {
			delete(r.s.sessions, sid)
		}
	}
	return true, nil
}

// TodoRepo はインメモリのTODOリポジトリ。
type TodoRepo struct{ s *Store }

func (r *TodoRepo) Create(_ context.Context, todo *model.Todo) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.todos[todo.ID] = *todo
	return nil
}

func (r *TodoRepo) FindByID(_ context.Context, id string) (*model.Todo, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.todos[id]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func (r *TodoRepo) Update(_ context.Context, todo *model.Todo) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.todos[todo.ID]; ok {
		r.s.todos[todo.ID] = *todo
	}
	return nil
}

func (r *TodoRepo) DeleteByID(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.todos, id)
	return nil
}

func (r *TodoRepo) List(_ context.Context, filter repository.TodoFilter) ([]*model.Todo, int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	matched := make([]*model.Todo, 0)
	for _, t := range r.s.todos {
		if filter.AuthorID != "" && t.AuthorID != filter.AuthorID {
			continue
		}
		if filter.PublishedOnly && !t.IsPublish {
			continue
		}
		t := t
		matched = append(matched, &t)
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID < matched[j].ID
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := len(matched)
	if filter.Skip > 0 {
		if filter.Skip >= len(matched) {
			matched = matched[:0]
		} else {
			matched = matched[filter.Skip:]
		}
	}
	if filter.Take > 0 && filter.Take < len(matched) {
		matched = matched[:filter.Take]
	}
	return matched, total, nil
}

// TokenRepo はインメモリのトークン台帳リポジトリ。
type TokenRepo struct{ s *Store }

func (r *TokenRepo) Create(_ context.Context, token *model.Token) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.tokens[token.ID] = *token
	return nil
}

func (r *TokenRepo) FindByToken(_ context.Context, token string) (*model.Token, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, t := range r.s.tokens {
		if t.Token == token {
			return &t, nil
		}
	}
	return nil, nil
}

func (r *TokenRepo) FindByRefreshToken(_ context.Context, refreshToken string) (*model.Token, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, t := range r.s.tokens {
		if t.RefreshToken != nil && *t.RefreshToken == refreshToken {
			return &t, nil
		}
	}
	return nil, nil
}

func (r *TokenRepo) RevokeByID(_ context.Context, id string, revokedAt time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if t, ok := r.s.tokens[id]; ok {
		t.Status = false
		t.RevokedAt = &revokedAt
		r.s.tokens[id] = t
	}
	return nil
}

func (r *TokenRepo) RevokeByToken(_ context.Context, token string, revokedAt time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	found := false
	for id, t := range r.s.tokens {
		if t.Token == token {
			t.Status = false
			t.RevokedAt = &revokedAt
			r.s.tokens[id] = t
			found = true
		}
	}
	return found, nil
}

// SessionRepo はインメモリのセッションリポジトリ。
type SessionRepo struct{ s *Store }

func (r *SessionRepo) Create(_ context.Context, session *model.Session) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.sessions[session.ID] = *session
	return nil
}

func (r *SessionRepo) FindByID(_ context.Context, id string) (*model.Session, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sess, ok := r.s.sessions[id]
	if !ok || !sess.ExpiresAt.After(r.s.now()) {
		return nil, nil
	}
	return &sess, nil
}

func (r *SessionRepo) DeleteByID(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.sessions, id)
	return nil
}

func (r *SessionRepo) DeleteByUserID(_ context.Context, userID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for id, sess := range r.s.sessions {
		if sess.UserID == userID {
			delete(r.s.sessions, id)
		}
	}
	return nil
}

// DeleteExpired はbefore時点で期限切れのセッションを削除し、削除件数を返す。
func (r *SessionRepo) DeleteExpired(_ context.Context, before time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for id, sess := range r.s.sessions {
		if !sess.ExpiresAt.After(before) {
			delete(r.s.sessions, id)
			n++
		}
	}
	return n, nil
}

// compile-time interface check
var (
	_ repository.UserRepository    = (*UserRepo)(nil)
	_ repository.TodoRepository    = (*TodoRepo)(nil)
	_ repository.TokenRepository   = (*TokenRepo)(nil)
	_ repository.SessionRepository = (*SessionRepo)(nil)
)
