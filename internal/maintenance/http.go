package maintenance

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/s1natex/todos-api-GO/internal/middleware"
	"github.com/s1natex/todos-api-GO/internal/todos"
)

type overdueItem struct {
	ID      int64     `json:"id"`
	Title   string    `json:"title"`
	DueDate time.Time `json:"dueDate"`
}

type summary struct {
	Success   bool          `json:"success"`
	Message   string        `json:"message"`
	Timestamp time.Time     `json:"timestamp"`
	RunID     string        `json:"runId"`
	Stats     todos.Counts  `json:"stats"`
	Overdue   []overdueItem `json:"overdue"`
}

type errResponse struct {
	Error string `json:"error"`
}

// RegisterRoutes mounts GET /cron behind the shared-secret check.
func RegisterRoutes(r chi.Router, runner *Runner, secret string, logger *slog.Logger) {
	r.With(middleware.SharedSecret(middleware.CronSecretHeader, secret, logger)).
		Get("/cron", runMaintenance(runner, logger))
}

func runMaintenance(runner *Runner, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		rep, err := runner.Run(r.Context())
		if err != nil {
			logger.ErrorContext(r.Context(), "cron_failed",
				slog.String("req_id", chimw.GetReqID(r.Context())),
				slog.String("error", err.Error()),
			)
			w.WriteHeader(http.StatusInternalServerError)
			_ = json.NewEncoder(w).Encode(errResponse{Error: "Internal server error"})
			return
		}

		out := summary{
			Success:   true,
			Message:   "Cron job executed successfully",
			Timestamp: rep.FinishedAt,
			RunID:     rep.RunID,
			Stats:     rep.Stats,
			Overdue:   make([]overdueItem, 0, len(rep.Overdue)),
		}
		for _, t := range rep.Overdue {
			out.Overdue = append(out.Overdue, overdueItem{ID: t.ID, Title: t.Title, DueDate: *t.DueDate})
		}
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(out)
	}
}
