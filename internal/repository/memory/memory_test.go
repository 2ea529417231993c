package memory

import (
	"context"
	"testing"
	"time"

	"github.com/hitoshi/todoman/internal/model"
	"github.com/hitoshi/todoman/internal/repository"
)

func TestUserRepo_DuplicateEmail(t *testing.T) {
	repo := NewStore().Users()
	ctx := context.Background()

	if err := repo.Create(ctx, &model.User{ID: "u1", Email: "a@example.com"}); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if err := repo.Create(ctx, &model.User{ID: "u2", Email: "a@example.com"}); err != repository.ErrDuplicateEmail {
		t.Errorf("err = %v, want ErrDuplicateEmail", err)
	}
	if got, _ := repo.FindByEmail(ctx, "A@example.com"); got != nil {
		t.Error("email lookup must be case-sensitive")
	}
}

func TestUserRepo_DeleteCascades(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	_ = store.Users().Create(ctx, &model.User{ID: "u1", Email: "a@example.com"})
	_ = store.Todos().Create(ctx, &model.Todo{ID: "t1", AuthorID: "u1"})
	_ = store.Sessions().Create(ctx, &model.Session{ID: "s1", UserID: "u1", ExpiresAt: time.Now().Add(time.Hour)})
	_ = store.Tokens().Create(ctx, &model.Token{ID: "k1", UserID: "u1", Token: "jwt"})

	ok, err := store.Users().DeleteByID(ctx, "u1")
	if err != nil || !ok {
		t.Fatalf("DeleteByID = (%v, %v)", ok, err)
	}
	if got, _ := store.Todos().FindByID(ctx, "t1"); got != nil {
		t.Error("todo should be cascade-deleted")
	}
	if got, _ := store.Sessions().FindByID(ctx, "s1"); got != nil {
		t.Error("session should be cascade-deleted")
	}
	if got, _ := store.Tokens().FindByToken(ctx, "jwt"); got == nil {
		t.Error("token ledger must outlive the user")
	}
}

func TestTodoRepo_ListOrderAndPaging(t *testing.T) {
	repo := NewStore().Todos()
	ctx := context.Background()
	base := time.Now()

	for i, id := range []string{"a", "b", "c", "d"} {
		_ = repo.Create(ctx, &model.Todo{ID: id, AuthorID: "u1", IsPublish: i%2 == 0, CreatedAt: base.Add(time.Duration(i) * time.Minute)})
	}

	todos, total, _ := repo.List(ctx, repository.TodoFilter{AuthorID: "u1", Take: 2, Skip: 1})
	if total != 4 {
		t.Errorf("total = %d, want 4", total)
	}
	if len(todos) != 2 || todos[0].ID != "c" || todos[1].ID != "b" {
		t.Errorf("todos = %v, want [c b]", ids(todos))
	}

	published, total, _ := repo.List(ctx, repository.TodoFilter{PublishedOnly: true})
	if total != 2 || len(published) != 2 || published[0].ID != "c" {
		t.Errorf("published = %v (total %d), want [c a]", ids(published), total)
	}

	empty, _, _ := repo.List(ctx, repository.TodoFilter{Skip: 10})
	if len(empty) != 0 {
		t.Errorf("skip past end = %v, want empty", ids(empty))
	}
}

func TestSessionRepo_Expiry(t *testing.T) {
	store := NewStore()
	repo := store.Sessions()
	ctx := context.Background()
	now := time.Now()

	_ = repo.Create(ctx, &model.Session{ID: "live", ExpiresAt: now.Add(time.Hour)})
	_ = repo.Create(ctx, &model.Session{ID: "dead", ExpiresAt: now.Add(-time.Hour)})

	if got, _ := repo.FindByID(ctx, "dead"); got != nil {
		t.Error("expired session should not be returned")
	}
	n, _ := repo.DeleteExpired(ctx, now)
	if n != 1 {
		t.Errorf("DeleteExpired = %d, want 1", n)
	}
}

func TestTokenRepo_RevokeByToken(t *testing.T) {
	repo := NewStore().Tokens()
	ctx := context.Background()
	_ = repo.Create(ctx, &model.Token{ID: "k1", Token: "jwt", Status: true})

	ok, _ := repo.RevokeByToken(ctx, "jwt", time.Now())
	if !ok {
		t.Fatal("expected token to be found")
	}
	got, _ := repo.FindByToken(ctx, "jwt")
	if got.Status || got.RevokedAt == nil {
		t.Errorf("token = %+v, want revoked", got)
	}
	if ok, _ := repo.RevokeByToken(ctx, "other", time.Now()); ok {
		t.Error("unknown token should not be found")
	}
}

func ids(todos []*model.Todo) []string {
	out := make([]string, len(todos))
	for i, t := range todos {
		out[i] = t.ID
	}
	return out
}
