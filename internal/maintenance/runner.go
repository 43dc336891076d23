// Package maintenance implements the read-only housekeeping routine: it
// counts todos by status and reports the incomplete ones that are past due.
// It never mutates the store.
package maintenance

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/s1natex/todos-api-GO/internal/todos"
)

// Source is the part of the store the routine reads from.
type Source interface {
	Counts(ctx context.Context) (todos.Counts, error)
	Overdue(ctx context.Context, asOf time.Time) ([]todos.Todo, error)
}

type Report struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time
	Stats      todos.Counts
	Overdue    []todos.Todo
}

type Runner struct {
	src     Source
	logger  *slog.Logger
	now     func() time.Time
	tracer  trace.Tracer
	metrics *runnerMetrics
}

type Option func(*Runner)

func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

// WithRegisterer registers the routine's gauges. Without it the metrics are
// still updated but never exported.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(r *Runner) { r.metrics = newRunnerMetrics(reg) }
}

func NewRunner(src Source, logger *slog.Logger, opts ...Option) *Runner {
	r := &Runner{
		src:    src,
		logger: logger,
		now:    time.Now,
		tracer: otel.Tracer("github.com/s1natex/todos-api-GO/internal/maintenance"),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.metrics == nil {
		r.metrics = newRunnerMetrics(nil)
	}
	return r
}

// Run performs one maintenance pass. "Overdue" means incomplete with a due
// date strictly before the moment the run started.
func (r *Runner) Run(ctx context.Context) (Report, error) {
	rep := Report{
		RunID:     uuid.NewString(),
		StartedAt: r.now().UTC(),
	}
	log := r.logger.With(slog.String("run_id", rep.RunID))

	ctx, span := r.tracer.Start(ctx, "maintenance.Run",
		trace.WithAttributes(attribute.String("maintenance.run_id", rep.RunID)))
	defer span.End()

	log.InfoContext(ctx, "maintenance_start", slog.Time("time", rep.StartedAt))

	stats, err := r.src.Counts(ctx)
	if err != nil {
		return rep, r.fail(ctx, span, log, fmt.Errorf("count todos: %w", err))
	}
	rep.Stats = stats
	log.InfoContext(ctx, "maintenance_stats",
		slog.Int64("total", stats.Total),
		slog.Int64("active", stats.Active),
		slog.Int64("completed", stats.Completed),
	)

	overdue, err := r.src.Overdue(ctx, rep.StartedAt)
	if err != nil {
		return rep, r.fail(ctx, span, log, fmt.Errorf("list overdue todos: %w", err))
	}
	rep.Overdue = overdue
	if len(overdue) > 0 {
		log.WarnContext(ctx, "maintenance_overdue_found", slog.Int("count", len(overdue)))
	}
	for _, t := range overdue {
		log.InfoContext(ctx, "maintenance_overdue",
			slog.Int64("id", t.ID),
			slog.String("title", t.Title),
			slog.Time("due_date", *t.DueDate),
		)
	}

	rep.FinishedAt = r.now().UTC()
	r.metrics.observe(rep)
	span.SetAttributes(
		attribute.Int64("maintenance.total", stats.Total),
		attribute.Int("maintenance.overdue", len(overdue)),
	)
	log.InfoContext(ctx, "maintenance_done",
		slog.Float64("duration_ms", float64(rep.FinishedAt.Sub(rep.StartedAt).Microseconds())/1000.0))
	return rep, nil
}

func (r *Runner) fail(ctx context.Context, span trace.Span, log *slog.Logger, err error) error {
	r.metrics.runs.WithLabelValues("error").Inc()
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	log.ErrorContext(ctx, "maintenance_failed", slog.String("error", err.Error()))
	return err
}
