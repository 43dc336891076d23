package maintenance

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/s1natex/todos-api-GO/internal/todos"
)

var fixedNow = time.Date(2025, 11, 3, 8, 30, 0, 0, time.UTC)

func newStore(t *testing.T) *todos.Store {
	t.Helper()
	store, err := todos.Open(context.Background(), filepath.Join(t.TempDir(), "todos.db"),
		todos.WithClock(func() time.Time { return fixedNow }))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	if err := store.ApplyMigrations(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return store
}

func seed(t *testing.T, store *todos.Store) (overdue todos.Todo) {
	t.Helper()
	ctx := context.Background()
	yesterday := fixedNow.Add(-24 * time.Hour)
	tomorrow := fixedNow.Add(24 * time.Hour)

	overdue, err := store.Create(ctx, todos.NewTodo{Title: "file taxes", DueDate: &yesterday})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	_, _ = store.Create(ctx, todos.NewTodo{Title: "water plants", DueDate: &tomorrow})
	done, _ := store.Create(ctx, todos.NewTodo{Title: "old chore", DueDate: &yesterday})
	_, _ = store.ToggleCompleted(ctx, done.ID)
	return overdue
}

func TestRunner_ReportsStatsAndOverdue(t *testing.T) {
	store := newStore(t)
	late := seed(t, store)

	var logs bytes.Buffer
	reg := prometheus.NewRegistry()
	runner := NewRunner(store, slog.New(slog.NewJSONHandler(&logs, nil)),
		WithClock(func() time.Time { return fixedNow }),
		WithRegisterer(reg),
	)

	rep, err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if rep.RunID == "" {
		t.Errorf("expected a run id")
	}
	if rep.Stats != (todos.Counts{Total: 3, Active: 2, Completed: 1}) {
		t.Errorf("unexpected stats: %+v", rep.Stats)
	}
	if len(rep.Overdue) != 1 || rep.Overdue[0].ID != late.ID {
		t.Fatalf("expected only %q overdue, got %+v", late.Title, rep.Overdue)
	}

	out := logs.String()
	for _, event := range []string{"maintenance_start", "maintenance_stats", "maintenance_overdue", "maintenance_done"} {
		if !strings.Contains(out, `"msg":"`+event+`"`) {
			t.Errorf("expected %s in logs:\n%s", event, out)
		}
	}
	if !strings.Contains(out, `"title":"file taxes"`) {
		t.Errorf("expected overdue title to be logged")
	}

	m := runner.metrics
	if got := testutil.ToFloat64(m.records.WithLabelValues("active")); got != 2 {
		t.Errorf("todos_records{status=active} = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.overdue); got != 1 {
		t.Errorf("todos_overdue = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.runs.WithLabelValues("success")); got != 1 {
		t.Errorf("successful runs = %v, want 1", got)
	}
	if n, err := testutil.GatherAndCount(reg, "todos_maintenance_last_success_timestamp_seconds"); err != nil || n != 1 {
		t.Errorf("expected last success gauge to be registered, n=%d err=%v", n, err)
	}
}

func TestRunner_DoesNotMutate(t *testing.T) {
	store := newStore(t)
	seed(t, store)
	ctx := context.Background()

	before, _ := store.List(ctx, todos.ListFilter{})
	runner := NewRunner(store, slog.New(slog.NewJSONHandler(io.Discard, nil)))
	if _, err := runner.Run(ctx); err != nil {
		t.Fatalf("run: %v", err)
	}
	after, _ := store.List(ctx, todos.ListFilter{})

	if len(before) != len(after) {
		t.Fatalf("maintenance changed the record count: %d -> %d", len(before), len(after))
	}
	for i := range before {
		if !before[i].UpdatedAt.Equal(after[i].UpdatedAt) || before[i].Completed != after[i].Completed {
			t.Fatalf("maintenance modified todo %d", before[i].ID)
		}
	}
}

type failingSource struct{ err error }

func (f failingSource) Counts(context.Context) (todos.Counts, error) { return todos.Counts{}, f.err }

func (f failingSource) Overdue(context.Context, time.Time) ([]todos.Todo, error) { return nil, f.err }

func TestRunner_PropagatesStoreErrors(t *testing.T) {
	boom := errors.New("database is locked")
	runner := NewRunner(failingSource{err: boom}, slog.New(slog.NewJSONHandler(io.Discard, nil)))

	_, err := runner.Run(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped store error, got %v", err)
	}
	if got := testutil.ToFloat64(runner.metrics.runs.WithLabelValues("error")); got != 1 {
		t.Errorf("failed runs = %v, want 1", got)
	}
}
