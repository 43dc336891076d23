package todos

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/s1natex/todos-api-GO/internal/todos"

// Service holds no state of its own: every call validates its input and
// performs exactly one repository operation.
type Service struct {
	repo   Repository
	tracer trace.Tracer
}

func NewService(repo Repository) *Service {
	return &Service{
		repo:   repo,
		tracer: otel.Tracer(tracerName),
	}
}

// List returns todos newest first. Unknown status or priority values are ignored.
func (s *Service) List(ctx context.Context, status, priority string) ([]Todo, error) {
	f := ListFilter{Status: ParseStatus(status)}
	if p, ok := ParsePriority(priority); ok {
		f.Priority = p
	}

	ctx, span := s.tracer.Start(ctx, "todos.List", trace.WithAttributes(
		attribute.String("todos.status", string(f.Status)),
		attribute.String("todos.priority", string(f.Priority)),
	))
	defer span.End()

	out, err := s.repo.List(ctx, f)
	if err != nil {
		return nil, fail(span, err)
	}
	span.SetAttributes(attribute.Int("todos.count", len(out)))
	return out, nil
}

func (s *Service) Get(ctx context.Context, id int64) (Todo, error) {
	ctx, span := s.start(ctx, "todos.Get", id)
	defer span.End()

	t, err := s.repo.Get(ctx, id)
	return t, fail(span, err)
}

func (s *Service) Create(ctx context.Context, in CreateInput) (Todo, error) {
	ctx, span := s.tracer.Start(ctx, "todos.Create")
	defer span.End()

	nt, err := in.Normalize()
	if err != nil {
		return Todo{}, fail(span, err)
	}
	t, err := s.repo.Create(ctx, nt)
	if err != nil {
		return Todo{}, fail(span, err)
	}
	span.SetAttributes(attribute.Int64("todos.id", t.ID))
	return t, nil
}

// Update changes only the fields present in the request body.
func (s *Service) Update(ctx context.Context, id int64, in UpdateInput) (Todo, error) {
	ctx, span := s.start(ctx, "todos.Update", id)
	defer span.End()

	p, err := in.Normalize()
	if err != nil {
		return Todo{}, fail(span, err)
	}
	t, err := s.repo.Update(ctx, id, p)
	return t, fail(span, err)
}

func (s *Service) ToggleCompleted(ctx context.Context, id int64) (Todo, error) {
	ctx, span := s.start(ctx, "todos.ToggleCompleted", id)
	defer span.End()

	t, err := s.repo.ToggleCompleted(ctx, id)
	return t, fail(span, err)
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	ctx, span := s.start(ctx, "todos.Delete", id)
	defer span.End()

	return fail(span, s.repo.Delete(ctx, id))
}

func (s *Service) start(ctx context.Context, name string, id int64) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, name, trace.WithAttributes(attribute.Int64("todos.id", id)))
}

// fail marks the span as errored for unexpected failures only; validation
// and not-found outcomes are normal responses.
func fail(span trace.Span, err error) error {
	if err == nil {
		return nil
	}
	var verr *ValidationError
	if errors.As(err, &verr) || errors.Is(err, ErrNotFound) {
		span.SetAttributes(attribute.String("todos.outcome", err.Error()))
		return err
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
