package core

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel/attribute"

	"sanctioncore/pkg/domain"
)

// Generator defaults.
const (
	DefaultDeadlineDays = 2
	MaxDeadlineDays     = 365
	MaxReasonLength     = 500
)

// RandomRequest asks for a sanction drawn uniformly from a severity's templates.
type RandomRequest struct {
	Severity domain.Severity `json:"severity"`
	// DeadlineDays of 0 selects DefaultDeadlineDays.
	DeadlineDays int    `json:"deadline_days"`
	Reason       string `json:"reason,omitempty"`
}

// SpecificRequest instantiates a caller-chosen template.
type SpecificRequest struct {
	Severity      domain.Severity `json:"severity"`
	TemplateIndex int             `json:"template_index"`
	DeadlineDays  int             `json:"deadline_days"`
	// CustomQuantity overrides the template quantity for this instance only.
	CustomQuantity *int   `json:"custom_quantity,omitempty"`
	Reason         string `json:"reason,omitempty"`
}

// CreateRandom draws a template for req.Severity and persists a new open sanction.
func (s *Service) CreateRandom(ctx context.Context, req RandomRequest) (created domain.Sanction, err error) {
	ctx, done := s.track(ctx, "create_random", attribute.Int("sanction.severity", int(req.Severity)))
	defer func() { done(err) }()

	if !req.Severity.Valid() {
		return domain.Sanction{}, domain.ErrInvalidSeverity{Severity: req.Severity}
	}
	days, err := deadlineDays(req.DeadlineDays)
	if err != nil {
		return domain.Sanction{}, err
	}
	if err := validateReason(req.Reason); err != nil {
		return domain.Sanction{}, err
	}
	templates := s.catalog.Templates(req.Severity)
	if len(templates) == 0 {
		return domain.Sanction{}, domain.ErrNoTemplates{Severity: req.Severity}
	}
	s.shuffle(len(templates), func(i, j int) { templates[i], templates[j] = templates[j], templates[i] })
	return s.instantiate(ctx, templates[0], req.Severity, days, req.Reason)
}

// CreateSpecific instantiates the template at (Severity, TemplateIndex).
func (s *Service) CreateSpecific(ctx context.Context, req SpecificRequest) (created domain.Sanction, err error) {
	ctx, done := s.track(ctx, "create_specific",
		attribute.Int("sanction.severity", int(req.Severity)),
		attribute.Int("sanction.template_index", req.TemplateIndex),
	)
	defer func() { done(err) }()

	tmpl, err := s.catalog.Template(req.Severity, req.TemplateIndex)
	if err != nil {
		return domain.Sanction{}, err
	}
	days, err := deadlineDays(req.DeadlineDays)
	if err != nil {
		return domain.Sanction{}, err
	}
	if err := validateReason(req.Reason); err != nil {
		return domain.Sanction{}, err
	}
	if req.CustomQuantity != nil {
		if q := *req.CustomQuantity; q <= 0 || q > domain.MaxQuantity {
			return domain.Sanction{}, domain.ErrInvalidInput{
				Field:   "custom_quantity",
				Message: fmt.Sprintf("must be between 1 and %d", domain.MaxQuantity),
			}
		}
		tmpl.Quantity = *req.CustomQuantity
	}
	return s.instantiate(ctx, tmpl, req.Severity, days, req.Reason)
}

// instantiate copies tmpl by value into a new open sanction and persists it.
func (s *Service) instantiate(ctx context.Context, tmpl domain.SanctionTemplate, sev domain.Severity, days int, reason string) (domain.Sanction, error) {
	now := s.now()
	sanction := domain.Sanction{
		ID:               s.newID(),
		Title:            tmpl.Title,
		Description:      tmpl.Description,
		Task:             tmpl.Task,
		Severity:         sev,
		Quantity:         tmpl.Quantity,
		Unit:             tmpl.Unit,
		Category:         tmpl.Category,
		Status:           domain.StatusOpen,
		Deadline:         now.Add(time.Duration(days) * 24 * time.Hour),
		EscalationFactor: tmpl.EscalationFactor,
		EscalationCount:  0,
		Reason:           reason,
		CreatedAt:        now,
	}
	change := domain.Change{Entity: domain.EntitySanction, Action: domain.ActionCreate, After: &sanction}
	if err := s.evaluate(ctx, now, change); err != nil {
		return domain.Sanction{}, err
	}
	created, err := s.store.CreateSanction(ctx, sanction)
	if err != nil {
		return domain.Sanction{}, fmt.Errorf("create sanction: %w", err)
	}
	s.logger.InfoContext(ctx, "sanction created",
		"sanction_id", created.ID,
		"severity", int(created.Severity),
		"category", created.Category,
		"quantity", created.Quantity,
		"deadline", created.Deadline,
	)
	return created, nil
}

func deadlineDays(days int) (int, error) {
	switch {
	case days == 0:
		return DefaultDeadlineDays, nil
	case days < 0:
		return 0, domain.ErrInvalidInput{Field: "deadline_days", Message: "must be positive"}
	case days > MaxDeadlineDays:
		return 0, domain.ErrInvalidInput{Field: "deadline_days", Message: fmt.Sprintf("at most %d", MaxDeadlineDays)}
	}
	return days, nil
}

func validateReason(reason string) error {
	if utf8.RuneCountInString(reason) > MaxReasonLength {
		return domain.ErrInvalidInput{Field: "reason", Message: fmt.Sprintf("longer than %d characters", MaxReasonLength)}
	}
	return nil
}
