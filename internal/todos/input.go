package todos

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// CreateInput is the JSON body accepted by POST /todos.
type CreateInput struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Priority    *string `json:"priority"`
	DueDate     *string `json:"dueDate"`
}

// UpdateInput is the JSON body accepted by PATCH /todos/{id}.
type UpdateInput struct {
	Title       Optional[string] `json:"title"`
	Description Optional[string] `json:"description"`
	Priority    Optional[string] `json:"priority"`
	DueDate     Optional[string] `json:"dueDate"`
	Completed   Optional[bool]   `json:"completed"`
}

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError is returned when input does not match the task record shape.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	return e.Fields[0].Message
}

func invalid(fields ...FieldError) error {
	return &ValidationError{Fields: fields}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

var fieldMessages = map[string]string{
	"title.required": "Title is required",
	"title.min":      "Title cannot be empty",
	"priority.oneof": "Priority must be one of LOW, MEDIUM, HIGH",
}

func validateStruct(s any) []FieldError {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []FieldError{{Field: "", Message: err.Error()}}
	}
	out := make([]FieldError, 0, len(verrs))
	for _, e := range verrs {
		msg, ok := fieldMessages[e.Field()+"."+e.Tag()]
		if !ok {
			msg = fmt.Sprintf("Field '%s' is invalid: %s", e.Field(), e.Tag())
		}
		out = append(out, FieldError{Field: e.Field(), Message: msg})
	}
	return out
}

// Normalize trims and defaults the input and validates the result.
func (in CreateInput) Normalize() (NewTodo, error) {
	var errs []FieldError

	nt := NewTodo{Priority: PriorityMedium}
	if in.Title != nil {
		nt.Title = strings.TrimSpace(*in.Title)
	}
	nt.Description = trimToNil(in.Description)
	if in.Priority != nil && *in.Priority != "" {
		nt.Priority = Priority(*in.Priority)
	}
	if in.DueDate != nil {
		due, ok := parseDueDate(*in.DueDate)
		if !ok {
			errs = append(errs, dueDateError(*in.DueDate))
		}
		nt.DueDate = due
	}

	errs = append(errs, validateStruct(&nt)...)
	if len(errs) > 0 {
		return NewTodo{}, invalid(errs...)
	}
	return nt, nil
}

// Normalize converts the body into a Patch. An explicit null clears
// description and dueDate; null is rejected for every other field.
func (in UpdateInput) Normalize() (Patch, error) {
	var (
		p    Patch
		errs []FieldError
	)

	if in.Title.Set {
		title := strings.TrimSpace(in.Title.Value)
		p.Title = &title
	}
	if in.Description.Set {
		if d := trimToNil(in.Description.Ptr()); d != nil {
			p.Description = Some(*d)
		} else {
			p.Description = Null[string]()
		}
	}
	if in.Priority.Set {
		pr := Priority(in.Priority.Value)
		p.Priority = &pr
	}
	if in.DueDate.Set {
		due, ok := parseDueDate(in.DueDate.Value)
		switch {
		case !ok:
			errs = append(errs, dueDateError(in.DueDate.Value))
		case due == nil:
			p.DueDate = Null[time.Time]()
		default:
			p.DueDate = Some(*due)
		}
	}
	if in.Completed.Set {
		if in.Completed.Null {
			errs = append(errs, FieldError{Field: "completed", Message: "Completed must be true or false"})
		} else {
			c := in.Completed.Value
			p.Completed = &c
		}
	}

	errs = append(errs, validateStruct(&p)...)
	if len(errs) > 0 {
		return Patch{}, invalid(errs...)
	}
	return p, nil
}

func trimToNil(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	if t == "" {
		return nil
	}
	return &t
}

var dueDateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	time.DateOnly,
}

// parseDueDate returns nil for an empty string. Date-only values are UTC midnight.
func parseDueDate(s string) (*time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, true
	}
	for _, layout := range dueDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t, true
		}
	}
	return nil, false
}

func dueDateError(raw string) FieldError {
	return FieldError{Field: "dueDate", Message: fmt.Sprintf("Due date %q is not a valid date", raw)}
}
