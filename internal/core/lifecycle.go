package core

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"sanctioncore/pkg/domain"
)

// Get returns a sanction by id.
func (s *Service) Get(ctx context.Context, id string) (sanction domain.Sanction, err error) {
	ctx, done := s.track(ctx, "get", attribute.String("sanction.id", id))
	defer func() { done(err) }()
	return s.read(ctx, id)
}

// List returns a filtered, newest-first page of sanctions and the total match count.
func (s *Service) List(ctx context.Context, q domain.SanctionQuery) (page domain.SanctionPage, err error) {
	ctx, done := s.track(ctx, "list")
	defer func() { done(err) }()
	if q.Limit < 0 || q.Offset < 0 {
		return domain.SanctionPage{}, domain.ErrInvalidInput{Field: "pagination", Message: "limit and offset must not be negative"}
	}
	for _, st := range q.Statuses {
		if !st.Valid() {
			return domain.SanctionPage{}, domain.ErrInvalidInput{Field: "status", Message: fmt.Sprintf("unknown status %q", st)}
		}
	}
	for _, c := range q.Categories {
		if !c.Valid() {
			return domain.SanctionPage{}, domain.ErrInvalidInput{Field: "category", Message: fmt.Sprintf("unknown category %q", c)}
		}
	}
	return s.list(ctx, q)
}

// Summary counts sanctions by status and category.
func (s *Service) Summary(ctx context.Context) (sum domain.Summary, err error) {
	ctx, done := s.track(ctx, "summary")
	defer func() { done(err) }()
	page, err := s.list(ctx, domain.SanctionQuery{})
	if err != nil {
		return domain.Summary{}, err
	}
	sum = domain.Summary{
		Total:      page.Total,
		ByStatus:   make(map[domain.Status]int, len(domain.Statuses())),
		ByCategory: make(map[domain.Category]int, len(domain.Categories())),
	}
	for _, st := range domain.Statuses() {
		sum.ByStatus[st] = 0
	}
	for _, item := range page.Items {
		sum.ByStatus[item.Status]++
		sum.ByCategory[item.Category]++
	}
	return sum, nil
}

// Delete removes a sanction. This is an administrative operation outside the
// lifecycle; the engine itself never deletes.
func (s *Service) Delete(ctx context.Context, id string) (err error) {
	ctx, done := s.track(ctx, "delete", attribute.String("sanction.id", id))
	defer func() { done(err) }()
	if err := s.store.DeleteSanction(ctx, id); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "sanction deleted", "sanction_id", id)
	return nil
}

// Complete moves an open or escalated sanction to done.
func (s *Service) Complete(ctx context.Context, id string) (sanction domain.Sanction, err error) {
	ctx, done := s.track(ctx, "complete", attribute.String("sanction.id", id))
	defer func() { done(err) }()
	sanction, err = s.mutate(ctx, "complete", id, completeTransition)
	if err != nil {
		return domain.Sanction{}, err
	}
	s.logger.InfoContext(ctx, "sanction completed", "sanction_id", id, "escalation_count", sanction.EscalationCount)
	return sanction, nil
}

// EscalateOne applies the manual escalation to a single sanction.
func (s *Service) EscalateOne(ctx context.Context, id string) (sanction domain.Sanction, err error) {
	ctx, done := s.track(ctx, "escalate_one", attribute.String("sanction.id", id))
	defer func() { done(err) }()
	sanction, err = s.mutate(ctx, "escalate_one", id, func(current domain.Sanction, _ time.Time) (domain.Sanction, error) {
		if err := requireActive(current, domain.StatusEscalated); err != nil {
			return domain.Sanction{}, err
		}
		return escalateManually(current), nil
	})
	if err != nil {
		return domain.Sanction{}, err
	}
	s.metrics.ObserveEscalations(PathManual, 1)
	s.logger.InfoContext(ctx, "sanction escalated",
		"sanction_id", id,
		"path", PathManual,
		"quantity", sanction.Quantity,
		"deadline", sanction.Deadline,
		"escalation_count", sanction.EscalationCount,
	)
	return sanction, nil
}

// MarkExpired is the administrative path into the terminal expired status.
// No automatic rule ever expires a sanction.
func (s *Service) MarkExpired(ctx context.Context, id string) (sanction domain.Sanction, err error) {
	ctx, done := s.track(ctx, "mark_expired", attribute.String("sanction.id", id))
	defer func() { done(err) }()
	sanction, err = s.mutate(ctx, "mark_expired", id, func(current domain.Sanction, _ time.Time) (domain.Sanction, error) {
		if err := requireActive(current, domain.StatusExpired); err != nil {
			return domain.Sanction{}, err
		}
		current.Status = domain.StatusExpired
		return current, nil
	})
	if err != nil {
		return domain.Sanction{}, err
	}
	s.logger.InfoContext(ctx, "sanction expired", "sanction_id", id)
	return sanction, nil
}

// CompleteAll completes every open or escalated sanction and returns how many
// were completed. Records that fail are skipped and logged.
func (s *Service) CompleteAll(ctx context.Context) (count int, err error) {
	ctx, done := s.track(ctx, "complete_all")
	defer func() { done(err) }()

	page, err := s.list(ctx, domain.SanctionQuery{Statuses: []domain.Status{domain.StatusOpen, domain.StatusEscalated}})
	if err != nil {
		return 0, fmt.Errorf("list unresolved sanctions: %w", err)
	}
	res, err := s.forEach(ctx, "complete_all", page.Items, func(ctx context.Context, id string) (domain.Sanction, error) {
		return s.mutate(ctx, "complete_all", id, func(current domain.Sanction, now time.Time) (domain.Sanction, error) {
			if !current.Status.Unresolved() {
				return domain.Sanction{}, errSkip
			}
			return completeTransition(current, now)
		})
	})
	if err != nil {
		return res.succeeded, err
	}
	s.logger.InfoContext(ctx, "bulk completion finished", "completed", res.succeeded, "skipped", res.skipped, "failed", res.failed)
	return res.succeeded, nil
}

func completeTransition(current domain.Sanction, _ time.Time) (domain.Sanction, error) {
	if err := requireActive(current, domain.StatusDone); err != nil {
		return domain.Sanction{}, err
	}
	current.Status = domain.StatusDone
	return current, nil
}

// requireActive rejects transitions out of terminal statuses.
func requireActive(current domain.Sanction, to domain.Status) error {
	switch current.Status {
	case domain.StatusDone:
		return domain.ErrAlreadyCompleted{ID: current.ID}
	case domain.StatusExpired:
		return domain.ErrInvalidTransition{ID: current.ID, From: current.Status, To: to}
	}
	return nil
}
