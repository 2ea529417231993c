package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/todoman/internal/database"
	"github.com/hitoshi/todoman/internal/model"
	"github.com/jmoiron/sqlx"
)

// setupPostgres はTEST_DATABASE_URLのデータベースにマイグレーションを適用して返す。
// 未設定または接続できない場合はスキップする。
func setupPostgres(t *testing.T) *sqlx.DB {
	t.Helper()

	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL が未設定のためスキップ")
	}

	db, err := database.Open(dbURL, database.PoolOptions{})
	if err != nil {
		t.Fatalf("データベースのオープンに失敗: %v", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		t.Skipf("テスト用データベースに接続できません（スキップ）: %v", err)
	}
	if err := database.RunMigrations(dbURL); err != nil {
		db.Close()
		t.Fatalf("マイグレーション実行に失敗: %v", err)
	}
	if _, err := db.Exec(`TRUNCATE sessions, tokens, todos, users`); err != nil {
		db.Close()
		t.Fatalf("TRUNCATEに失敗: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func createTestUser(t *testing.T, repo *PostgresUserRepo, email string) *model.User {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Microsecond)
	u := &model.User{
		ID:           uuid.New().String(),
		Email:        email,
		Name:         "Test User",
		PasswordHash: "$2a$10$hash",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := repo.Create(context.Background(), u); err != nil {
		t.Fatalf("Create user returned error: %v", err)
	}
	return u
}

func TestPostgresUserRepo_CRUD(t *testing.T) {
	db := setupPostgres(t)
	repo := NewPostgresUserRepo(db)
	ctx := context.Background()

	u := createTestUser(t, repo, "alice@example.com")

	got, err := repo.FindByEmail(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("FindByEmail returned error: %v", err)
	}
	if got == nil || got.ID != u.ID {
		t.Fatalf("FindByEmail = %+v, want ID %q", got, u.ID)
	}
	if got.PasswordHash == "" {
		t.Error("repository should return the password hash")
	}

	// 大文字小文字は区別される
	if got, _ := repo.FindByEmail(ctx, "ALICE@example.com"); got != nil {
		t.Errorf("FindByEmail with different case = %+v, want nil", got)
	}

	dup := &model.User{ID: uuid.New().String(), Email: "alice@example.com", Name: "x", PasswordHash: "x", CreatedAt: time.Now(), UpdatedAt: time.Now()}
	if err := repo.Create(ctx, dup); err != ErrDuplicateEmail {
		t.Errorf("Create duplicate err = %v, want ErrDuplicateEmail", err)
	}

	u.Name = "Alice"
	ok, err := repo.Update(ctx, u)
	if err != nil || !ok {
		t.Fatalf("Update = (%v, %v), want (true, nil)", ok, err)
	}
	got, _ = repo.FindByID(ctx, u.ID)
	if got.Name != "Alice" {
		t.Errorf("Name = %q, want %q", got.Name, "Alice")
	}

	all, err := repo.FindAll(ctx)
	if err != nil {
		t.Fatalf("FindAll returned error: %v", err)
	}
	if len(all) != 1 {
		t.Errorf("FindAll len = %d, want 1", len(all))
	}

	ok, err = repo.DeleteByID(ctx, u.ID)
	if err != nil || !ok {
		t.Fatalf("DeleteByID = (%v, %v), want (true, nil)", ok, err)
	}
	ok, err = repo.DeleteByID(ctx, u.ID)
	if err != nil || ok {
		t.Errorf("second DeleteByID = (%v, %v), want (false, nil)", ok, err)
	}
	if got, _ := repo.FindByID(ctx, u.ID); got != nil {
		t.Errorf("FindByID after delete = %+v, want nil", got)
	}
}

func TestPostgresTodoRepo_ListAndCount(t *testing.T) {
	db := setupPostgres(t)
	users := NewPostgresUserRepo(db)
	repo := NewPostgresTodoRepo(db)
	ctx := context.Background()

	alice := createTestUser(t, users, "alice@example.com")
	bob := createTestUser(t, users, "bob@example.com")

	base := time.Now().UTC().Truncate(time.Microsecond)
	specs := []struct {
		author  string
		publish bool
	}{
		{alice.ID, true}, {alice.ID, false}, {alice.ID, true}, {bob.ID, true}, {bob.ID, false},
	}
	for i, s := range specs {
		todo := &model.Todo{
			ID:        uuid.New().String(),
			Title:     "todo",
			AuthorID:  s.author,
			IsPublish: s.publish,
			CreatedAt: base.Add(time.Duration(i) * time.Second),
			UpdatedAt: base,
		}
		if err := repo.Create(ctx, todo); err != nil {
			t.Fatalf("Create todo returned error: %v", err)
		}
	}

	todos, total, err := repo.List(ctx, TodoFilter{AuthorID: alice.ID, Take: 2})
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if total != 3 {
		t.Errorf("total = %d, want 3", total)
	}
	if len(todos) != 2 {
		t.Fatalf("len(todos) = %d, want 2", len(todos))
	}
	if !todos[0].CreatedAt.After(todos[1].CreatedAt) {
		t.Error("expected created_at descending order")
	}

	published, total, err := repo.List(ctx, TodoFilter{PublishedOnly: true, Skip: 1, Take: 10})
	if err != nil {
		t.Fatalf("List published returned error: %v", err)
	}
	if total != 3 || len(published) != 2 {
		t.Errorf("published total=%d len=%d, want 3 and 2", total, len(published))
	}

	// ユーザー削除でTODOもCASCADE削除される
	if _, err := users.DeleteByID(ctx, bob.ID); err != nil {
		t.Fatalf("DeleteByID returned error: %v", err)
	}
	_, total, _ = repo.List(ctx, TodoFilter{AuthorID: bob.ID})
	if total != 0 {
		t.Errorf("bob todos after delete = %d, want 0", total)
	}
}

func TestPostgresTokenRepo_Revoke(t *testing.T) {
	db := setupPostgres(t)
	repo := NewPostgresTokenRepo(db)
	ctx := context.Background()

	refresh := "refresh-abc"
	tok := &model.Token{
		ID:           uuid.New().String(),
		UserID:       uuid.New().String(),
		Token:        "jwt-abc",
		RefreshToken: &refresh,
		TokenID:      uuid.New().String(),
		Status:       true,
		ExpiresAt:    time.Now().Add(time.Hour),
		Type:         model.TokenTypeRefresh,
		CreatedAt:    time.Now(),
	}
	if err := repo.Create(ctx, tok); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	got, err := repo.FindByRefreshToken(ctx, refresh)
	if err != nil || got == nil {
		t.Fatalf("FindByRefreshToken = (%v, %v)", got, err)
	}

	ok, err := repo.RevokeByToken(ctx, "jwt-abc", time.Now())
	if err != nil || !ok {
		t.Fatalf("RevokeByToken = (%v, %v), want (true, nil)", ok, err)
	}
	ok, _ = repo.RevokeByToken(ctx, "unknown", time.Now())
	if ok {
		t.Error("RevokeByToken for unknown token should return false")
	}

	got, _ = repo.FindByToken(ctx, "jwt-abc")
	if got.Status {
		t.Error("expected status=false after revoke")
	}
	if got.RevokedAt == nil {
		t.Error("expected revoked_at to be set")
	}
}

func TestPostgresSessionRepo_Expiry(t *testing.T) {
	db := setupPostgres(t)
	users := NewPostgresUserRepo(db)
	repo := NewPostgresSessionRepo(db)
	ctx := context.Background()

	u := createTestUser(t, users, "alice@example.com")
	now := time.Now()

	live := &model.Session{ID: "live", UserID: u.ID, Email: u.Email, Name: u.Name, ExpiresAt: now.Add(time.Hour), CreatedAt: now}
	dead := &model.Session{ID: "dead", UserID: u.ID, Email: u.Email, Name: u.Name, ExpiresAt: now.Add(-time.Hour), CreatedAt: now}
	for _, s := range []*model.Session{live, dead} {
		if err := repo.Create(ctx, s); err != nil {
			t.Fatalf("Create session returned error: %v", err)
		}
	}

	if got, _ := repo.FindByID(ctx, "dead"); got != nil {
		t.Errorf("expired session = %+v, want nil", got)
	}
	if got, _ := repo.FindByID(ctx, "live"); got == nil || got.Email != u.Email {
		t.Errorf("live session = %+v", got)
	}

	n, err := repo.DeleteExpired(ctx, now)
	if err != nil {
		t.Fatalf("DeleteExpired returned error: %v", err)
	}
	if n != 1 {
		t.Errorf("DeleteExpired = %d, want 1", n)
	}

	if err := repo.DeleteByUserID(ctx, u.ID); err != nil {
		t.Fatalf("DeleteByUserID returned error: %v", err)
	}
	if got, _ := repo.FindByID(ctx, "live"); got != nil {
		t.Errorf("session after DeleteByUserID = %+v, want nil", got)
	}
}
