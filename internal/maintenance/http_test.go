package maintenance

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
)

func newCronServer(t *testing.T, src Source, secret string) *chi.Mux {
	t.Helper()
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	r := chi.NewRouter()
	RegisterRoutes(r, NewRunner(src, logger, WithClock(func() time.Time { return fixedNow })), secret, logger)
	return r
}

func cronRequest(secret string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/cron", nil)
	if secret != "" {
		req.Header.Set("x-cron-secret", secret)
	}
	return req
}

func TestCron_RequiresSecret(t *testing.T) {
	r := newCronServer(t, newStore(t), "s3cret")

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, cronRequest(""))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("without header: expected 401, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, cronRequest("guess"))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong secret: expected 401, got %d", rec.Code)
	}
}

func TestCron_NotConfigured(t *testing.T) {
	r := newCronServer(t, newStore(t), "")

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, cronRequest("anything"))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
}

func TestCron_Success(t *testing.T) {
	store := newStore(t)
	late := seed(t, store)
	r := newCronServer(t, store, "s3cret")

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, cronRequest("s3cret"))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d, body=%s", rec.Code, rec.Body.String())
	}

	var got summary
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("failed to parse JSON: %v", err)
	}
	if !got.Success || got.Message != "Cron job executed successfully" {
		t.Errorf("unexpected summary: %+v", got)
	}
	if !got.Timestamp.Equal(fixedNow) {
		t.Errorf("expected timestamp %v, got %v", fixedNow, got.Timestamp)
	}
	if got.Stats.Total != 3 || got.Stats.Active != 2 || got.Stats.Completed != 1 {
		t.Errorf("unexpected stats: %+v", got.Stats)
	}
	if len(got.Overdue) != 1 || got.Overdue[0].ID != late.ID {
		t.Errorf("unexpected overdue list: %+v", got.Overdue)
	}
}

func TestCron_StoreFailureIsGeneric(t *testing.T) {
	r := newCronServer(t, failingSource{err: errors.New("connection refused")}, "s3cret")

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, cronRequest("s3cret"))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	var body errResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	if body.Error != "Internal server error" {
		t.Fatalf("expected generic error, got %q", body.Error)
	}
}
