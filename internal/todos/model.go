package todos

import "time"

type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityMedium Priority = "MEDIUM"
	PriorityHigh   Priority = "HIGH"
)

// ParsePriority reports whether s names one of the known priorities.
func ParsePriority(s string) (Priority, bool) {
	switch p := Priority(s); p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return p, true
	}
	return "", false
}

type Todo struct {
	ID          int64      `json:"id"`
	Title       string     `json:"title"`
	Description *string    `json:"description"`
	Completed   bool       `json:"completed"`
	Priority    Priority   `json:"priority"`
	DueDate     *time.Time `json:"dueDate"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// Status narrows a listing by completion state.
type Status string

const (
	StatusAll       Status = "all"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
)

// ParseStatus maps a query value to a Status. Anything unrecognized is StatusAll.
func ParseStatus(s string) Status {
	switch st := Status(s); st {
	case StatusActive, StatusCompleted:
		return st
	}
	return StatusAll
}

type ListFilter struct {
	Status   Status
	Priority Priority // empty means any
}

// NewTodo is a validated create request ready for the store.
type NewTodo struct {
	Title       string   `json:"title" validate:"required"`
	Description *string  `json:"description"`
	Priority    Priority `json:"priority" validate:"oneof=LOW MEDIUM HIGH"`
	DueDate     *time.Time
}

// Patch is a validated partial update. Nil pointers and unset Optionals are left untouched.
type Patch struct {
	Title       *string   `json:"title" validate:"omitnil,min=1"`
	Description Optional[string]
	Priority    *Priority `json:"priority" validate:"omitnil,oneof=LOW MEDIUM HIGH"`
	DueDate     Optional[time.Time]
	Completed   *bool
}

type Counts struct {
	Total     int64 `json:"total"`
	Active    int64 `json:"active"`
	Completed int64 `json:"completed"`
}
