package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/s1natex/todos-api-GO/internal/config"
	"github.com/s1natex/todos-api-GO/internal/maintenance"
	"github.com/s1natex/todos-api-GO/internal/middleware"
	"github.com/s1natex/todos-api-GO/internal/todos"
)

const testSecret = "s3cret"

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	ctx := context.Background()
	store, err := todos.Open(ctx, filepath.Join(t.TempDir(), "todos.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	if err := store.ApplyMigrations(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	cfg := config.Config{
		Addr:           ":0",
		DatabaseURL:    "unused",
		CronSecret:     testSecret,
		LogLevel:       "info",
		RequestTimeout: 5 * time.Second,
		CORSOrigins:    []string{"*"},
	}
	logger := newLogger(io.Discard, "error")
	runner := maintenance.NewRunner(store, logger, maintenance.WithRegisterer(prometheus.NewRegistry()))
	return newRouter(cfg, store, runner, logger)
}

func serve(t *testing.T, h http.Handler, method, path, body string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rdr)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range header {
		req.Header[k] = v
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestHealthEndpoint(t *testing.T) {
	r := newTestRouter(t)
	w := serve(t, r, "GET", "/health", "", nil)

	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}

	expected := `{"status":"ok"}`
	if strings.TrimSpace(w.Body.String()) != expected {
		t.Errorf("expected body %s, got %s", expected, w.Body.String())
	}
}

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

func TestReadyHandler(t *testing.T) {
	logger := newLogger(io.Discard, "error")

	w := httptest.NewRecorder()
	readyHandler(fakePinger{}, logger)(w, httptest.NewRequest("GET", "/ready", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	readyHandler(fakePinger{err: errors.New("db down")}, logger)(w, httptest.NewRequest("GET", "/ready", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "unavailable") {
		t.Fatalf("unexpected body: %s", w.Body.String())
	}
}

func TestRouter_TodoLifecycleAndCron(t *testing.T) {
	r := newTestRouter(t)

	w := serve(t, r, "POST", "/todos", `{"title":"Pay rent","priority":"HIGH","dueDate":"2000-01-01"}`, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var created todos.Todo
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}

	w = serve(t, r, "GET", "/todos?filter=active", "", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "Pay rent") {
		t.Fatalf("list active: %d %s", w.Code, w.Body.String())
	}

	w = serve(t, r, "GET", "/cron", "", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("cron without secret: expected 401, got %d", w.Code)
	}

	w = serve(t, r, "GET", "/cron", "", http.Header{
		http.CanonicalHeaderKey(middleware.CronSecretHeader): {testSecret},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("cron: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var summary struct {
		Success bool `json:"success"`
		Stats   struct {
			Total  int64 `json:"total"`
			Active int64 `json:"active"`
		} `json:"stats"`
		Overdue []struct {
			ID int64 `json:"id"`
		} `json:"overdue"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &summary); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if !summary.Success || summary.Stats.Total != 1 || summary.Stats.Active != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if len(summary.Overdue) != 1 || summary.Overdue[0].ID != created.ID {
		t.Fatalf("expected todo %d overdue, got %+v", created.ID, summary.Overdue)
	}

	w = serve(t, r, "DELETE", "/todos/"+strconv.FormatInt(created.ID, 10), "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("delete: expected 200, got %d", w.Code)
	}
	w = serve(t, r, "GET", "/todos", "", nil)
	if strings.TrimSpace(w.Body.String()) != "[]" {
		t.Fatalf("expected empty list, got %s", w.Body.String())
	}
}

func TestRouter_ServesUIAndMetrics(t *testing.T) {
	r := newTestRouter(t)

	w := serve(t, r, "GET", "/", "", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Header().Get("Content-Type"), "text/html") {
		t.Fatalf("ui: %d %q", w.Code, w.Header().Get("Content-Type"))
	}

	serve(t, r, "GET", "/health", "", nil)
	w = serve(t, r, "GET", "/metrics", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("metrics: expected 200, got %d", w.Code)
	}
	if !bytes.Contains(w.Body.Bytes(), []byte(`route="/health"`)) {
		t.Fatalf("expected /health series in metrics output")
	}
}

func TestRootCmd_HasSubcommands(t *testing.T) {
	root := newRootCmd()
	for _, name := range []string{"serve", "maintenance", "migrate"} {
		cmd, _, err := root.Find([]string{name})
		if err != nil || cmd.Name() != name {
			t.Errorf("missing subcommand %q", name)
		}
	}
	for _, flag := range []string{"addr", "database-url", "log-level"} {
		if root.PersistentFlags().Lookup(flag) == nil {
			t.Errorf("missing flag --%s", flag)
		}
	}
}
