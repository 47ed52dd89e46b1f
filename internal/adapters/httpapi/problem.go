package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"sanctioncore/pkg/domain"
)

const problemTypeBase = "https://sanctioncore.dev/errors/"

// ProblemDetail is an RFC 7807 error body. Every error response uses it.
type ProblemDetail struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
	// TraceID echoes the request id assigned by the RequestID middleware.
	TraceID string `json:"trace_id,omitempty"`
}

func (p *ProblemDetail) Error() string {
	return fmt.Sprintf("%s: %s", p.Title, p.Detail)
}

func writeProblem(w http.ResponseWriter, r *http.Request, status int, detail string) {
	problem := &ProblemDetail{
		Type:     fmt.Sprintf("%s%d", problemTypeBase, status),
		Title:    http.StatusText(status),
		Status:   status,
		Detail:   detail,
		Instance: r.URL.Path,
		TraceID:  middleware.GetReqID(r.Context()),
	}
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(problem)
}

func writeTooManyRequests(w http.ResponseWriter, r *http.Request, retryAfterSecs int) {
	w.Header().Set("Retry-After", fmt.Sprintf("%d", retryAfterSecs))
	writeProblem(w, r, http.StatusTooManyRequests, "Rate limit exceeded. Retry after the specified interval.")
}

// writeError maps a service error to a problem response. Causes of 500s are
// logged and never exposed.
func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	var noTemplates domain.ErrNoTemplates
	switch {
	case domain.IsValidation(err):
		writeProblem(w, r, http.StatusBadRequest, err.Error())
	case domain.IsNotFound(err):
		writeProblem(w, r, http.StatusNotFound, err.Error())
	case domain.IsConflict(err):
		writeProblem(w, r, http.StatusConflict, err.Error())
	case errors.As(err, &noTemplates):
		writeProblem(w, r, http.StatusInternalServerError, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeProblem(w, r, http.StatusServiceUnavailable, "The request was canceled before it completed.")
	default:
		logger.ErrorContext(r.Context(), "internal server error",
			"error", err,
			"path", r.URL.Path,
			"request_id", middleware.GetReqID(r.Context()),
		)
		writeProblem(w, r, http.StatusInternalServerError, "An unexpected error occurred. Please try again later.")
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
