package todos

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("todo not found")

type Repository interface {
	List(ctx context.Context, f ListFilter) ([]Todo, error)
	Get(ctx context.Context, id int64) (Todo, error)
	Create(ctx context.Context, nt NewTodo) (Todo, error)
	Update(ctx context.Context, id int64, p Patch) (Todo, error)
	// ToggleCompleted flips the completed flag in a single statement.
	ToggleCompleted(ctx context.Context, id int64) (Todo, error)
	Delete(ctx context.Context, id int64) error
	Counts(ctx context.Context) (Counts, error)
	// Overdue lists incomplete todos whose due date is before asOf.
	Overdue(ctx context.Context, asOf time.Time) ([]Todo, error)
}
