package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/s1natex/todos-api-GO/internal/config"
	"github.com/s1natex/todos-api-GO/internal/maintenance"
	"github.com/s1natex/todos-api-GO/internal/middleware"
	"github.com/s1natex/todos-api-GO/internal/todos"
	"github.com/s1natex/todos-api-GO/internal/web"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// pinger is the part of the store /ready needs.
type pinger interface {
	Ping(ctx context.Context) error
}

// newRouter wires the probes, todo routes, maintenance trigger, UI and middleware stack
func newRouter(cfg config.Config, store *todos.Store, runner *maintenance.Runner, logger *slog.Logger) *chi.Mux {
	r := chi.NewRouter()

	// ---- Middleware stack (order matters a bit) ----
	// RequestID first so downstream can include it (logger, errors, etc.)
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)

	// Panic recovery: never crash the server; returns 500 on panics
	r.Use(chimw.Recoverer)

	// Timeouts: cancel handlers that exceed this duration
	r.Use(chimw.Timeout(cfg.RequestTimeout))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", middleware.CronSecretHeader},
		ExposedHeaders:   []string{"X-Request-ID", "Trace-Id", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           300, // 5 minutes
	}))

	r.Use(middleware.TracingMiddleware)
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.MetricsMiddleware)
	r.Use(middleware.RateLimitMiddleware(
		middleware.NewLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst),
		"/health", "/ready", "/metrics",
	))

	// ---- Routes ----
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, http.StatusOK, "ok")
	})
	r.Get("/ready", readyHandler(store, logger))
	r.Method(http.MethodGet, "/metrics", middleware.MetricsHandler())

	todos.RegisterRoutes(r, todos.NewService(store), logger)
	maintenance.RegisterRoutes(r, runner, cfg.CronSecret, logger)

	r.Method(http.MethodGet, "/", web.Handler())

	return r
}

func readyHandler(p pinger, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := p.Ping(ctx); err != nil {
			logger.WarnContext(r.Context(), "ready_check_failed",
				slog.String("req_id", chimw.GetReqID(r.Context())),
				slog.String("error", err.Error()),
			)
			writeStatus(w, http.StatusServiceUnavailable, "unavailable")
			return
		}
		writeStatus(w, http.StatusOK, "ready")
	}
}

func writeStatus(w http.ResponseWriter, code int, status string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": status})
}

func newLogger(w io.Writer, level string) *slog.Logger {
	var l slog.Level
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		l = slog.LevelDebug
	case "warn", "warning":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: l,
	})
	return slog.New(handler)
}
