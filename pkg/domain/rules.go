package domain

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// RuleSeverity captures rule outcomes.
type RuleSeverity string

const (
	// SeverityBlock blocks the write.
	SeverityBlock RuleSeverity = "block"
	// SeverityWarn logs a warning but allows the write.
	SeverityWarn RuleSeverity = "warn"
	SeverityLog  RuleSeverity = "log"
)

// Action indicates the type of modification performed.
type Action string

// Change actions enumerate the writes the engine evaluates before commit.
const (
	// ActionCreate indicates a sanction was created.
	ActionCreate Action = "create"
	// ActionUpdate indicates a sanction was updated.
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Change describes a mutation applied to a sanction. Before is nil for
// creates; After is nil for deletes.
type Change struct {
	Entity EntityType
	Action Action
	Before *Sanction
	After  *Sanction
}

// Violation reports a failed rule evaluation.
type Violation struct {
	Rule     string
	Severity RuleSeverity
	Message  string
	Entity   EntityType
	EntityID string
}

// Result aggregates violations from the rules engine.
type Result struct {
	Violations []Violation
}

// Merge appends violations from another result.
func (r *Result) Merge(other Result) {
	if len(other.Violations) == 0 {
		return
	}
	r.Violations = append(r.Violations, other.Violations...)
}

// HasBlocking returns true if the result contains blocking violations.
func (r Result) HasBlocking() bool {
	for _, v := range r.Violations {
		if v.Severity == SeverityBlock {
			return true
		}
	}
	return false
}

// RuleViolationError is returned when blocking violations are present.
type RuleViolationError struct {
	Result Result
}

func (e RuleViolationError) Error() string {
	var msgs []string
	for _, v := range e.Result.Violations {
		if v.Severity == SeverityBlock {
			msgs = append(msgs, fmt.Sprintf("%s: %s", v.Rule, v.Message))
		}
	}
	if len(msgs) == 0 {
		return "write blocked by rules"
	}
	return "write blocked by rules: " + strings.Join(msgs, "; ")
}

// RuleView provides read-only context for rule evaluation.
type RuleView interface {
	Now() time.Time
	FindSanction(id string) (Sanction, bool)
}

// Rule defines an evaluation executed before a write is committed.
type Rule interface {
	Name() string
	Evaluate(ctx context.Context, view RuleView, changes []Change) (Result, error)
}

// RulesEngine orchestrates rule evaluation.
type RulesEngine struct {
	rules []Rule
}

// NewRulesEngine constructs an engine instance.
func NewRulesEngine() *RulesEngine {
	return &RulesEngine{}
}

// Register appends a rule to the engine.
func (e *RulesEngine) Register(rule Rule) {
	e.rules = append(e.rules, rule)
}

// Rules returns the registered rule names in evaluation order.
func (e *RulesEngine) Rules() []string {
	names := make([]string, 0, len(e.rules))
	for _, r := range e.rules {
		names = append(names, r.Name())
	}
	return names
}

// Evaluate executes all registered rules and aggregates their results.
func (e *RulesEngine) Evaluate(ctx context.Context, view RuleView, changes []Change) (Result, error) {
	var combined Result
	for _, rule := range e.rules {
		res, err := rule.Evaluate(ctx, view, changes)
		if err != nil {
			return Result{}, fmt.Errorf("rule %s: %w", rule.Name(), err)
		}
		combined.Merge(res)
	}
	return combined, nil
}
