package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"

	"sanctioncore/pkg/domain"
)

// errSkip tells a bulk operation that a record no longer qualifies. It is
// neither a success nor a failure.
var errSkip = errors.New("precondition no longer holds")

// transition derives the next state of a sanction from its current state. It
// must re-check its precondition on every call: after a version conflict it is
// invoked again with a fresh read.
type transition func(current domain.Sanction, now time.Time) (domain.Sanction, error)

// mutate runs the read, transition, rule evaluation and versioned swap cycle
// for one sanction. Only version conflicts are retried. Any other write error
// is returned as is, since the write may have landed.
func (s *Service) mutate(ctx context.Context, operation, id string, next transition) (domain.Sanction, error) {
	for attempt := 1; ; attempt++ {
		current, err := s.read(ctx, id)
		if err != nil {
			return domain.Sanction{}, err
		}
		now := s.now()
		updated, err := next(current, now)
		if err != nil {
			return domain.Sanction{}, err
		}
		before := current
		change := domain.Change{Entity: domain.EntitySanction, Action: domain.ActionUpdate, Before: &before, After: &updated}
		if err := s.evaluate(ctx, now, change); err != nil {
			return domain.Sanction{}, err
		}
		saved, err := s.store.SwapSanction(ctx, updated, current.Version)
		if err == nil {
			return saved, nil
		}
		if !errors.Is(err, domain.ErrVersionConflict) {
			return domain.Sanction{}, fmt.Errorf("%s %s: %w", operation, id, err)
		}
		s.metrics.ObserveConflict(operation)
		if attempt >= s.maxMutationAttempts {
			return domain.Sanction{}, fmt.Errorf("%s %s after %d attempts: %w", operation, id, attempt, err)
		}
		s.logger.DebugContext(ctx, "version conflict, retrying", "operation", operation, "sanction_id", id, "attempt", attempt)
	}
}

// read fetches a sanction, retrying transient store failures with
// exponential backoff. Missing records and context errors are final.
func (s *Service) read(ctx context.Context, id string) (domain.Sanction, error) {
	return backoff.Retry(ctx, func() (domain.Sanction, error) {
		sanction, err := s.store.GetSanction(ctx, id)
		if err == nil {
			return sanction, nil
		}
		if domain.IsNotFound(err) || ctx.Err() != nil {
			return domain.Sanction{}, backoff.Permanent(err)
		}
		s.logger.WarnContext(ctx, "sanction read failed, retrying", "sanction_id", id, "error", err)
		return domain.Sanction{}, err
	}, backoff.WithBackOff(newReadBackOff()), backoff.WithMaxTries(uint(s.readAttempts)))
}

// list reads a page with the same transient retry policy as read.
func (s *Service) list(ctx context.Context, q domain.SanctionQuery) (domain.SanctionPage, error) {
	return backoff.Retry(ctx, func() (domain.SanctionPage, error) {
		page, err := s.store.ListSanctions(ctx, q)
		if err != nil && ctx.Err() != nil {
			return domain.SanctionPage{}, backoff.Permanent(err)
		}
		return page, err
	}, backoff.WithBackOff(newReadBackOff()), backoff.WithMaxTries(uint(s.readAttempts)))
}

func newReadBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 20 * time.Millisecond
	b.MaxInterval = 500 * time.Millisecond
	return b
}
