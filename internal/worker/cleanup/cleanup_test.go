package cleanup

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hitoshi/todoman/internal/model"
	"github.com/hitoshi/todoman/internal/repository/memory"
)

type mockSessionDeleter struct {
	calls   atomic.Int32
	before  time.Time
	deleted int64
	err     error
}

func (m *mockSessionDeleter) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	m.calls.Add(1)
	m.before = before
	return m.deleted, m.err
}

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

// findLogEntry はJSONログから指定キーを持つ最初のエントリを返す。
func findLogEntry(buf *bytes.Buffer, key string) map[string]any {
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			continue
		}
		if _, ok := entry[key]; ok {
			return entry
		}
	}
	return nil
}

func TestCleanupJob_Run_PassesCurrentTime(t *testing.T) {
	var buf bytes.Buffer
	mock := &mockSessionDeleter{deleted: 5}
	job := NewCleanupJob(mock, newTestLogger(&buf))
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	job.now = func() time.Time { return fixed }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run() がエラーを返した: %v", err)
	}
	if mock.calls.Load() != 1 {
		t.Fatalf("DeleteExpired calls = %d, want 1", mock.calls.Load())
	}
	if !mock.before.Equal(fixed) {
		t.Errorf("before = %v, want %v", mock.before, fixed)
	}
}

func TestCleanupJob_Run_LogsDeletedCountAndDuration(t *testing.T) {
	tests := []struct {
		name    string
		deleted int64
	}{
		{"some rows", 42},
		{"zero rows", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			job := NewCleanupJob(&mockSessionDeleter{deleted: tt.deleted}, newTestLogger(&buf))

			_ = job.Run(context.Background())

			entry := findLogEntry(&buf, "deleted_count")
			if entry == nil {
				t.Fatalf("ログに deleted_count が記録されていない。ログ出力: %s", buf.String())
			}
			if entry["deleted_count"] != float64(tt.deleted) {
				t.Errorf("deleted_count = %v, want %d", entry["deleted_count"], tt.deleted)
			}
			if _, ok := entry["duration_ms"]; !ok {
				t.Error("ログに duration_ms が記録されていない")
			}
		})
	}
}

func TestCleanupJob_Run_ReturnsAndLogsError(t *testing.T) {
	var buf bytes.Buffer
	storeErr := errors.New("connection refused")
	job := NewCleanupJob(&mockSessionDeleter{err: storeErr}, newTestLogger(&buf))

	err := job.Run(context.Background())
	if !errors.Is(err, storeErr) {
		t.Fatalf("Run() = %v, want wrapped store error", err)
	}
	if !strings.Contains(buf.String(), "ERROR") {
		t.Errorf("エラー時にERRORレベルのログが記録されていない。ログ出力: %s", buf.String())
	}
}

func TestCleanupJob_Run_Idempotent(t *testing.T) {
	store := memory.NewStore()
	sessions := store.Sessions()
	ctx := context.Background()
	now := time.Now().UTC()

	for _, s := range []*model.Session{
		{ID: "expired", UserID: "u1", ExpiresAt: now.Add(-time.Hour)},
		{ID: "alive", UserID: "u1", ExpiresAt: now.Add(time.Hour)},
	} {
		if err := sessions.Create(ctx, s); err != nil {
			t.Fatalf("Create returned error: %v", err)
		}
	}

	var buf bytes.Buffer
	job := NewCleanupJob(sessions, newTestLogger(&buf))

	if err := job.Run(ctx); err != nil {
		t.Fatalf("1回目の Run() がエラーを返した: %v", err)
	}
	if err := job.Run(ctx); err != nil {
		t.Fatalf("2回目の Run() がエラーを返した: %v", err)
	}

	alive, err := sessions.FindByID(ctx, "alive")
	if err != nil || alive == nil {
		t.Errorf("有効なセッションは残るべき: %v, %v", alive, err)
	}
	if n, _ := sessions.DeleteExpired(ctx, now); n != 0 {
		t.Errorf("期限切れセッションが残っている: %d", n)
	}
}

func TestCleanupJob_Start_RunsImmediatelyAndStopsOnCancel(t *testing.T) {
	var buf bytes.Buffer
	mock := &mockSessionDeleter{}
	job := NewCleanupJob(mock, newTestLogger(&buf))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		job.Start(ctx, time.Hour)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for mock.calls.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Start がキャンセル後に終了しなかった")
	}
	if mock.calls.Load() != 1 {
		t.Errorf("DeleteExpired calls = %d, want 1", mock.calls.Load())
	}
}
