package core

import (
	"math"
	"time"

	"sanctioncore/pkg/domain"
)

// Manual and sweep escalation use different formulas.
const (
	// ManualDeadlineExtension is added to the current deadline on a manual escalation.
	ManualDeadlineExtension = 24 * time.Hour
	// SweepDeadlineExtension is added to the sweep time when a sweep escalates.
	SweepDeadlineExtension = 48 * time.Hour
)

// escalateManually applies the fixed multiplicative rule:
// quantity = ceil(quantity * 1.5), deadline += 1 day.
// For whole quantities ceil(q*1.5) is q + ceil(q/2), which stays exact.
func escalateManually(s domain.Sanction) domain.Sanction {
	s.Quantity = addCapped(s.Quantity, s.Quantity/2+s.Quantity%2)
	s.Deadline = s.Deadline.Add(ManualDeadlineExtension)
	s.EscalationCount++
	s.Status = domain.StatusEscalated
	return s
}

// escalateOverdue applies the additive template-factor rule used by the sweep:
// quantity = ceil(quantity + factor), deadline = sweep time + 2 days.
// The quantity is whole, so ceil(q+factor) is q + ceil(factor).
func escalateOverdue(s domain.Sanction, sweptAt time.Time) domain.Sanction {
	s.Quantity = addCapped(s.Quantity, factorStep(s.EscalationFactor))
	s.Deadline = sweptAt.Add(SweepDeadlineExtension)
	s.EscalationCount++
	s.Status = domain.StatusEscalated
	return s
}

// factorStep rounds factor up to a whole increment no larger than MaxQuantity.
// Non-positive and NaN factors yield 0.
func factorStep(factor float64) int {
	step := math.Ceil(factor)
	switch {
	case !(step > 0):
		return 0
	case step >= domain.MaxQuantity:
		return domain.MaxQuantity
	}
	return int(step)
}

// addCapped returns q+step, saturating at MaxQuantity.
func addCapped(q, step int) int {
	if step > domain.MaxQuantity-q {
		return domain.MaxQuantity
	}
	return q + step
}
