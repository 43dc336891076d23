package todos

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

const maxBodyBytes = 1 << 20

type errResponse struct {
	Error   string       `json:"error"`
	Details []FieldError `json:"details,omitempty"`
}

type messageResponse struct {
	Message string `json:"message"`
}

// operation pairs the log event with the message clients see on a 500.
type operation struct {
	event   string
	message string
}

var (
	opList   = operation{"todo_list_failed", "Failed to fetch todos"}
	opGet    = operation{"todo_get_failed", "Failed to fetch todo"}
	opCreate = operation{"todo_create_failed", "Failed to create todo"}
	opUpdate = operation{"todo_update_failed", "Failed to update todo"}
	opToggle = operation{"todo_toggle_failed", "Failed to toggle todo completion"}
	opDelete = operation{"todo_delete_failed", "Failed to delete todo"}
)

func RegisterRoutes(r chi.Router, svc *Service, logger *slog.Logger) {
	r.Route("/todos", func(r chi.Router) {
		r.Get("/", listTodos(svc, logger))
		r.Post("/", createTodo(svc, logger))
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", getTodo(svc, logger))
			r.Patch("/", updateTodo(svc, logger))
			r.Delete("/", deleteTodo(svc, logger))
			r.Patch("/complete", toggleTodo(svc, logger))
		})
	})
}

func listTodos(svc *Service, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		todos, err := svc.List(r.Context(), q.Get("filter"), q.Get("priority"))
		if err != nil {
			writeError(w, r, logger, opList, err)
			return
		}
		writeJSON(w, http.StatusOK, todos)
	}
}

func getTodo(svc *Service, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseID(w, r)
		if !ok {
			return
		}
		t, err := svc.Get(r.Context(), id)
		if err != nil {
			writeError(w, r, logger, opGet, err)
			return
		}
		writeJSON(w, http.StatusOK, t)
	}
}

func createTodo(svc *Service, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in CreateInput
		if !decodeBody(w, r, &in) {
			return
		}
		t, err := svc.Create(r.Context(), in)
		if err != nil {
			writeError(w, r, logger, opCreate, err)
			return
		}
		writeJSON(w, http.StatusCreated, t)
	}
}

func updateTodo(svc *Service, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseID(w, r)
		if !ok {
			return
		}
		var in UpdateInput
		if !decodeBody(w, r, &in) {
			return
		}
		t, err := svc.Update(r.Context(), id, in)
		if err != nil {
			writeError(w, r, logger, opUpdate, err)
			return
		}
		writeJSON(w, http.StatusOK, t)
	}
}

func toggleTodo(svc *Service, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseID(w, r)
		if !ok {
			return
		}
		t, err := svc.ToggleCompleted(r.Context(), id)
		if err != nil {
			writeError(w, r, logger, opToggle, err)
			return
		}
		writeJSON(w, http.StatusOK, t)
	}
}

func deleteTodo(svc *Service, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseID(w, r)
		if !ok {
			return
		}
		if err := svc.Delete(r.Context(), id); err != nil {
			writeError(w, r, logger, opDelete, err)
			return
		}
		writeJSON(w, http.StatusOK, messageResponse{Message: "Todo deleted successfully"})
	}
}

func parseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errResponse{Error: "Invalid todo ID"})
		return 0, false
	}
	return id, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errResponse{Error: "Invalid JSON body"})
		return false
	}
	return true
}

// writeError maps service errors to status codes. Only unexpected errors are
// logged; their cause never reaches the client.
func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, op operation, err error) {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, errResponse{Error: verr.Error(), Details: verr.Fields})
	case errors.Is(err, ErrNotFound):
		writeJSON(w, http.StatusNotFound, errResponse{Error: "Todo not found"})
	default:
		logger.ErrorContext(r.Context(), op.event,
			slog.String("req_id", chimw.GetReqID(r.Context())),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		writeJSON(w, http.StatusInternalServerError, errResponse{Error: op.message})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
