package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"sanctioncore/internal/core"
	"sanctioncore/pkg/domain"
)

const (
	defaultPageLimit = 50
	maxPageLimit     = 200
	maxBodyBytes     = 1 << 20
)

type listResponse struct {
	Items  []domain.Sanction `json:"items"`
	Total  int               `json:"total"`
	Limit  int               `json:"limit"`
	Offset int               `json:"offset"`
}

type countResponse struct {
	Count int `json:"count"`
}

type templateEntry struct {
	Severity domain.Severity `json:"severity"`
	Index    int             `json:"index"`
	domain.SanctionTemplate
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q, err := parseQuery(r)
	if err != nil {
		writeProblem(w, r, http.StatusBadRequest, err.Error())
		return
	}
	page, err := h.svc.List(r.Context(), q)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse{Items: page.Items, Total: page.Total, Limit: q.Limit, Offset: q.Offset})
}

func (h *Handler) createRandom(w http.ResponseWriter, r *http.Request) {
	var req core.RandomRequest
	if !h.decode(w, r, &req) {
		return
	}
	created, err := h.svc.CreateRandom(r.Context(), req)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.Header().Set("Location", "/api/v1/sanctions/"+created.ID)
	writeJSON(w, http.StatusCreated, created)
}

func (h *Handler) createSpecific(w http.ResponseWriter, r *http.Request) {
	var req core.SpecificRequest
	if !h.decode(w, r, &req) {
		return
	}
	created, err := h.svc.CreateSpecific(r.Context(), req)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.Header().Set("Location", "/api/v1/sanctions/"+created.ID)
	writeJSON(w, http.StatusCreated, created)
}

func (h *Handler) summary(w http.ResponseWriter, r *http.Request) {
	sum, err := h.svc.Summary(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (h *Handler) templates(w http.ResponseWriter, r *http.Request) {
	cat := h.svc.Catalog()
	severities := cat.Severities()
	if raw := r.URL.Query().Get("severity"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || !domain.Severity(n).Valid() {
			writeError(w, r, h.logger, domain.ErrInvalidSeverity{Severity: domain.Severity(n)})
			return
		}
		severities = []domain.Severity{domain.Severity(n)}
	}
	entries := []templateEntry{}
	for _, sev := range severities {
		for i, tmpl := range cat.Templates(sev) {
			entries = append(entries, templateEntry{Severity: sev, Index: i, SanctionTemplate: tmpl})
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"templates": entries})
}

func (h *Handler) listReports(w http.ResponseWriter, r *http.Request) {
	if h.reports == nil {
		writeProblem(w, r, http.StatusNotFound, "Sweep report archiving is disabled.")
		return
	}
	entries, err := h.reports.List(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"reports": entries})
}

func (h *Handler) completeAll(w http.ResponseWriter, r *http.Request) {
	n, err := h.svc.CompleteAll(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, countResponse{Count: n})
}

func (h *Handler) check(w http.ResponseWriter, r *http.Request) {
	n, err := h.svc.CheckAndEscalateExpired(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, countResponse{Count: n})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	s, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) complete(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.svc.Complete)
}

func (h *Handler) escalate(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.svc.EscalateOne)
}

func (h *Handler) expire(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.svc.MarkExpired)
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, op func(context.Context, string) (domain.Sanction, error)) {
	s, err := op(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// decode reads a JSON body into dst, writing a 400 problem on failure.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			writeProblem(w, r, http.StatusRequestEntityTooLarge, fmt.Sprintf("Request body exceeds %d bytes.", tooLarge.Limit))
		case errors.Is(err, io.EOF):
			writeProblem(w, r, http.StatusBadRequest, "Request body is empty.")
		default:
			writeProblem(w, r, http.StatusBadRequest, "Malformed JSON body: "+err.Error())
		}
		return false
	}
	if dec.More() {
		writeProblem(w, r, http.StatusBadRequest, "Request body must contain a single JSON object.")
		return false
	}
	return true
}

// parseQuery reads list filters. Repeated or comma separated values are both
// accepted for status and category.
func parseQuery(r *http.Request) (domain.SanctionQuery, error) {
	values := r.URL.Query()
	q := domain.SanctionQuery{Limit: defaultPageLimit}
	for _, raw := range splitValues(values["status"]) {
		q.Statuses = append(q.Statuses, domain.Status(raw))
	}
	for _, raw := range splitValues(values["category"]) {
		q.Categories = append(q.Categories, domain.Category(raw))
	}
	if raw := values.Get("deadline_before"); raw != "" {
		at, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return q, fmt.Errorf("deadline_before must be RFC 3339: %q", raw)
		}
		at = at.UTC()
		q.DeadlineBefore = &at
	}
	if raw := values.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxPageLimit {
			return q, fmt.Errorf("limit must be between 1 and %d", maxPageLimit)
		}
		q.Limit = n
	}
	if raw := values.Get("offset"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return q, fmt.Errorf("offset must be a non-negative integer")
		}
		q.Offset = n
	}
	return q, nil
}

func splitValues(raw []string) []string {
	var out []string
	for _, v := range raw {
		for part := range strings.SplitSeq(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
