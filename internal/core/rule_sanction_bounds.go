package core

import (
	"context"
	"fmt"

	"sanctioncore/pkg/domain"
)

// SanctionBoundsRule enforces field ranges and the snapshot immutability of
// template-derived fields.
func SanctionBoundsRule() domain.Rule {
	return sanctionBoundsRule{}
}

type sanctionBoundsRule struct{}

func (sanctionBoundsRule) Name() string { return "sanction_bounds" }

func (r sanctionBoundsRule) Evaluate(_ context.Context, _ domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, change := range changes {
		if change.Entity != domain.EntitySanction || change.After == nil {
			continue
		}
		for _, msg := range r.check(change.Before, change.After) {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     r.Name(),
				Severity: domain.SeverityBlock,
				Message:  msg,
				Entity:   domain.EntitySanction,
				EntityID: change.After.ID,
			})
		}
	}
	return res, nil
}

func (sanctionBoundsRule) check(before, after *domain.Sanction) []string {
	var msgs []string
	if after.ID == "" {
		msgs = append(msgs, "id is required")
	}
	if !after.Severity.Valid() {
		msgs = append(msgs, fmt.Sprintf("severity %d outside %d-%d", after.Severity, domain.MinSeverity, domain.MaxSeverity))
	}
	if after.Quantity < 1 {
		msgs = append(msgs, fmt.Sprintf("quantity %d below 1", after.Quantity))
	}
	if after.Quantity > domain.MaxQuantity {
		msgs = append(msgs, fmt.Sprintf("quantity %d above %d", after.Quantity, domain.MaxQuantity))
	}
	if !after.Unit.Valid() {
		msgs = append(msgs, fmt.Sprintf("unknown unit %q", after.Unit))
	}
	if !after.Category.Valid() {
		msgs = append(msgs, fmt.Sprintf("unknown category %q", after.Category))
	}
	if after.EscalationFactor <= 0 {
		msgs = append(msgs, fmt.Sprintf("escalation factor %v must be positive", after.EscalationFactor))
	}
	if after.EscalationCount < 0 {
		msgs = append(msgs, "escalation count is negative")
	}
	if before == nil {
		if after.EscalationCount != 0 {
			msgs = append(msgs, "new sanctions start with escalation count 0")
		}
		return msgs
	}

	if snapshot(*before) != snapshot(*after) {
		msgs = append(msgs, "template snapshot fields are immutable")
	}
	escalated := after.EscalationCount - before.EscalationCount
	switch {
	case escalated < 0:
		msgs = append(msgs, "escalation count cannot decrease")
	case escalated > 1:
		msgs = append(msgs, "a single write escalates at most once")
	case escalated == 0:
		if after.Quantity != before.Quantity {
			msgs = append(msgs, "quantity changes only through escalation")
		}
		if !after.Deadline.Equal(before.Deadline) {
			msgs = append(msgs, "deadline changes only through escalation")
		}
	case escalated == 1:
		// A quantity already at the cap stays there.
		if after.Quantity <= before.Quantity && before.Quantity < domain.MaxQuantity {
			msgs = append(msgs, "escalation must increase quantity")
		}
	}
	return msgs
}

// frozen holds the fields fixed at creation.
type frozen struct {
	id, title, description, task, reason string
	severity                             domain.Severity
	unit                                 domain.Unit
	category                             domain.Category
	factor                               float64
	createdAt                            int64
}

func snapshot(s domain.Sanction) frozen {
	return frozen{
		id:          s.ID,
		title:       s.Title,
		description: s.Description,
		task:        s.Task,
		reason:      s.Reason,
		severity:    s.Severity,
		unit:        s.Unit,
		category:    s.Category,
		factor:      s.EscalationFactor,
		createdAt:   s.CreatedAt.UnixNano(),
	}
}
