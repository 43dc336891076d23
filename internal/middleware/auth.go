package middleware

import (
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"

	chimw "github.com/go-chi/chi/v5/middleware"
)

// CronSecretHeader carries the shared secret for the maintenance trigger.
const CronSecretHeader = "x-cron-secret"

type authErr struct {
	Error string `json:"error"`
}

// SharedSecret admits requests whose header matches secret verbatim. An empty
// secret means the server is misconfigured and every request gets a 500.
func SharedSecret(header, secret string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqID := slog.String("req_id", chimw.GetReqID(r.Context()))
			if secret == "" {
				logger.Error("shared_secret_not_configured", slog.String("path", r.URL.Path), reqID)
				writeAuthErr(w, http.StatusInternalServerError, "Server configuration error")
				return
			}
			if !constantTimeEq(r.Header.Get(header), secret) {
				logger.Warn("shared_secret_rejected", slog.String("path", r.URL.Path), reqID)
				writeAuthErr(w, http.StatusUnauthorized, "Unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func constantTimeEq(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func writeAuthErr(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(authErr{Error: msg})
}
