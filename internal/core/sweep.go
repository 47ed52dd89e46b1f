package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"sanctioncore/pkg/domain"
)

// Sweep item outcomes.
const (
	SweepEscalated = "escalated"
	SweepSkipped   = "skipped"
	SweepFailed    = "failed"
)

// SweepReport summarises one escalation sweep.
type SweepReport struct {
	RanAt      time.Time   `json:"ran_at"`
	Candidates int         `json:"candidates"`
	Escalated  int         `json:"escalated"`
	Skipped    int         `json:"skipped"`
	Failed     int         `json:"failed"`
	Items      []SweepItem `json:"items"`
}

// SweepItem is the per-sanction result of a sweep.
type SweepItem struct {
	ID       string    `json:"id"`
	Outcome  string    `json:"outcome"`
	Quantity int       `json:"quantity,omitempty"`
	Deadline time.Time `json:"deadline,omitzero"`
	Error    string    `json:"error,omitempty"`
}

// SweepReporter receives a report after every sweep. Reporter failures are
// logged and never fail the sweep.
type SweepReporter interface {
	ReportSweep(ctx context.Context, report SweepReport) error
}

// Sweep escalates every open sanction whose deadline has passed. The sweep
// instant is captured once and used both to select candidates and to compute
// new deadlines. Escalated sanctions are never swept again.
//
// If ctx is canceled mid-pass, the partial report (records not reached count
// as failed) is still delivered to the reporter and returned with the error.
func (s *Service) Sweep(ctx context.Context) (report SweepReport, err error) {
	ctx, done := s.track(ctx, "sweep")
	defer func() { done(err) }()

	sweptAt := s.now()
	page, err := s.list(ctx, domain.SanctionQuery{
		Statuses:       []domain.Status{domain.StatusOpen},
		DeadlineBefore: &sweptAt,
	})
	if err != nil {
		return SweepReport{}, fmt.Errorf("list overdue sanctions: %w", err)
	}

	res, sweepErr := s.forEach(ctx, "sweep", page.Items, func(ctx context.Context, id string) (domain.Sanction, error) {
		return s.mutate(ctx, "sweep", id, func(current domain.Sanction, _ time.Time) (domain.Sanction, error) {
			if !current.Overdue(sweptAt) {
				return domain.Sanction{}, errSkip
			}
			return escalateOverdue(current, sweptAt), nil
		})
	})

	report = SweepReport{
		RanAt:      sweptAt,
		Candidates: len(page.Items),
		Escalated:  res.succeeded,
		Skipped:    res.skipped,
		Failed:     res.failed,
		Items:      make([]SweepItem, 0, len(res.items)),
	}
	for _, item := range res.items {
		entry := SweepItem{ID: item.id}
		switch {
		case item.err == nil:
			entry.Outcome = SweepEscalated
			entry.Quantity = item.sanction.Quantity
			entry.Deadline = item.sanction.Deadline
		case errors.Is(item.err, errSkip):
			entry.Outcome = SweepSkipped
		default:
			entry.Outcome = SweepFailed
			entry.Error = item.err.Error()
		}
		report.Items = append(report.Items, entry)
	}

	s.metrics.ObserveEscalations(PathSweep, report.Escalated)
	level, msg := slog.LevelInfo, "escalation sweep finished"
	if sweepErr != nil {
		level, msg = slog.LevelWarn, "escalation sweep interrupted"
	}
	s.logger.Log(ctx, level, msg,
		"swept_at", sweptAt,
		"candidates", report.Candidates,
		"escalated", report.Escalated,
		"skipped", report.Skipped,
		"failed", report.Failed,
	)
	if s.reporter != nil {
		if rerr := s.reporter.ReportSweep(context.WithoutCancel(ctx), report); rerr != nil {
			s.logger.WarnContext(ctx, "sweep report not delivered", "error", rerr)
		}
	}
	return report, sweepErr
}

// CheckAndEscalateExpired runs a sweep and returns the number of sanctions it
// escalated.
func (s *Service) CheckAndEscalateExpired(ctx context.Context) (int, error) {
	report, err := s.Sweep(ctx)
	return report.Escalated, err
}

type bulkItem struct {
	id       string
	sanction domain.Sanction
	err      error
}

type bulkResult struct {
	succeeded int
	skipped   int
	failed    int
	items     []bulkItem
}

// forEach applies fn to every candidate with bounded concurrency. A failing
// record never aborts the batch; only context cancellation does, in which case
// the partial result is returned with the error.
func (s *Service) forEach(ctx context.Context, operation string, candidates []domain.Sanction, fn func(context.Context, string) (domain.Sanction, error)) (bulkResult, error) {
	items := make([]bulkItem, len(candidates))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.bulkConcurrency)
	for i, candidate := range candidates {
		items[i].id = candidate.ID
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				items[i].err = err
				return nil
			}
			items[i].sanction, items[i].err = fn(gctx, candidate.ID)
			return nil
		})
	}
	_ = g.Wait()

	res := bulkResult{items: items}
	for _, item := range items {
		switch {
		case item.err == nil:
			res.succeeded++
		case errors.Is(item.err, errSkip):
			res.skipped++
		default:
			res.failed++
			if ctx.Err() == nil {
				s.logger.WarnContext(ctx, "bulk item failed",
					"operation", operation,
					"sanction_id", item.id,
					"error", item.err,
				)
			}
		}
	}
	s.metrics.ObserveBulk(operation, res.succeeded, res.skipped, res.failed)
	trackBulk(ctx, res)
	if err := ctx.Err(); err != nil {
		return res, fmt.Errorf("%s interrupted: %w", operation, err)
	}
	return res, nil
}

func trackBulk(ctx context.Context, res bulkResult) {
	trace.SpanFromContext(ctx).SetAttributes(
		attribute.Int("bulk.succeeded", res.succeeded),
		attribute.Int("bulk.skipped", res.skipped),
		attribute.Int("bulk.failed", res.failed),
	)
}
