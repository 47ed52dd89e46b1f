package core

import (
	"context"
	"time"

	"sanctioncore/pkg/domain"
)

// NewDefaultRulesEngine builds a rules engine with the built-in policy set.
func NewDefaultRulesEngine() *domain.RulesEngine {
	engine := domain.NewRulesEngine()
	engine.Register(LifecycleTransitionRule())
	engine.Register(SanctionBoundsRule())
	return engine
}

// ruleView exposes the pre-images of the records a write touches.
type ruleView struct {
	now    time.Time
	before map[string]domain.Sanction
}

func newRuleView(now time.Time, changes []domain.Change) ruleView {
	view := ruleView{now: now, before: make(map[string]domain.Sanction, len(changes))}
	for _, c := range changes {
		if c.Before != nil {
			view.before[c.Before.ID] = *c.Before
		}
	}
	return view
}

func (v ruleView) Now() time.Time { return v.now }

func (v ruleView) FindSanction(id string) (domain.Sanction, bool) {
	s, ok := v.before[id]
	return s, ok
}

// evaluate runs the rules engine over changes and converts blocking results
// into a RuleViolationError. Non-blocking violations are logged.
func (s *Service) evaluate(ctx context.Context, now time.Time, changes ...domain.Change) error {
	if s.engine == nil {
		return nil
	}
	res, err := s.engine.Evaluate(ctx, newRuleView(now, changes), changes)
	if err != nil {
		return err
	}
	if res.HasBlocking() {
		return domain.RuleViolationError{Result: res}
	}
	for _, v := range res.Violations {
		s.logger.WarnContext(ctx, "rule violation", "rule", v.Rule, "severity", v.Severity, "sanction_id", v.EntityID, "message", v.Message)
	}
	return nil
}
