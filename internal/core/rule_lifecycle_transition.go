package core

import (
	"context"
	"fmt"

	"sanctioncore/pkg/domain"
)

// LifecycleTransitionRule blocks illegal status transitions on sanctions.
func LifecycleTransitionRule() domain.Rule {
	return lifecycleTransitionRule{}
}

type lifecycleTransitionRule struct{}

type lifecycleMachine struct {
	entity  domain.EntityType
	label   string
	initial domain.Status
	// allowed lists the statuses reachable from each non-terminal status.
	// Terminal statuses have no entry.
	allowed map[domain.Status]map[domain.Status]struct{}
}

var sanctionMachine = lifecycleMachine{
	entity:  domain.EntitySanction,
	label:   "sanction",
	initial: domain.StatusOpen,
	allowed: map[domain.Status]map[domain.Status]struct{}{
		domain.StatusOpen:      toSet(domain.StatusOpen, domain.StatusEscalated, domain.StatusDone, domain.StatusExpired),
		domain.StatusEscalated: toSet(domain.StatusEscalated, domain.StatusDone, domain.StatusExpired),
	},
}

func (lifecycleTransitionRule) Name() string { return "lifecycle_transition" }

func (r lifecycleTransitionRule) Evaluate(_ context.Context, _ domain.RuleView, changes []domain.Change) (domain.Result, error) {
	m := sanctionMachine
	res := domain.Result{}
	block := func(id, msg string) {
		res.Violations = append(res.Violations, domain.Violation{
			Rule:     r.Name(),
			Severity: domain.SeverityBlock,
			Message:  msg,
			Entity:   m.entity,
			EntityID: id,
		})
	}
	for _, change := range changes {
		if change.Entity != m.entity || change.After == nil {
			continue
		}
		after := change.After
		if !after.Status.Valid() {
			block(after.ID, fmt.Sprintf("%s %s is set to invalid status %s", m.label, after.ID, after.Status))
			continue
		}
		if change.Before == nil {
			if after.Status != m.initial {
				block(after.ID, fmt.Sprintf("%s %s must be created %s, not %s", m.label, after.ID, m.initial, after.Status))
			}
			continue
		}
		from := change.Before.Status
		next, ok := m.allowed[from]
		if !ok {
			if after.Status != from {
				block(after.ID, fmt.Sprintf("cannot move %s %s from terminal status %s to %s", m.label, after.ID, from, after.Status))
			}
			continue
		}
		if _, ok := next[after.Status]; !ok {
			block(after.ID, fmt.Sprintf("cannot move %s %s from %s to %s", m.label, after.ID, from, after.Status))
		}
	}
	return res, nil
}

func toSet(values ...domain.Status) map[domain.Status]struct{} {
	set := make(map[domain.Status]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}
