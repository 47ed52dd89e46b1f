package domain

import (
	"errors"
	"fmt"
)

// ErrVersionConflict is returned by stores when a compare-and-swap finds a
// newer version than the one the caller read.
var ErrVersionConflict = errors.New("sanction version conflict")

// ErrNotFound is returned when an operation references an unknown sanction.
type ErrNotFound struct {
	Entity EntityType
	ID     string
}

func (e ErrNotFound) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// ErrInvalidSeverity is returned when a severity lies outside 1–5.
type ErrInvalidSeverity struct {
	Severity Severity
}

func (e ErrInvalidSeverity) Error() string {
	return fmt.Sprintf("severity %d outside %d-%d", e.Severity, MinSeverity, MaxSeverity)
}

// ErrInvalidTemplate is returned when a severity and template index do not
// resolve to a catalog entry.
type ErrInvalidTemplate struct {
	Severity Severity
	Index    int
}

func (e ErrInvalidTemplate) Error() string {
	return fmt.Sprintf("no template at index %d for severity %d", e.Index, e.Severity)
}

// ErrNoTemplates is returned when the catalog holds no templates for a severity.
type ErrNoTemplates struct {
	Severity Severity
}

func (e ErrNoTemplates) Error() string {
	return fmt.Sprintf("catalog has no templates for severity %d", e.Severity)
}

// ErrAlreadyCompleted is returned when completing or escalating a done sanction.
type ErrAlreadyCompleted struct {
	ID string
}

func (e ErrAlreadyCompleted) Error() string {
	return fmt.Sprintf("sanction %s already completed", e.ID)
}

// ErrInvalidTransition is returned when a transition is not allowed from the
// current status (for example leaving expired).
type ErrInvalidTransition struct {
	ID   string
	From Status
	To   Status
}

func (e ErrInvalidTransition) Error() string {
	return fmt.Sprintf("sanction %s cannot move from %s to %s", e.ID, e.From, e.To)
}

// ErrInvalidInput reports a malformed caller-supplied argument.
type ErrInvalidInput struct {
	Field   string
	Message string
}

func (e ErrInvalidInput) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// IsValidation reports whether err stems from caller input that will never
// succeed on retry.
func IsValidation(err error) bool {
	var (
		sev   ErrInvalidSeverity
		tmpl  ErrInvalidTemplate
		input ErrInvalidInput
	)
	return errors.As(err, &sev) || errors.As(err, &tmpl) || errors.As(err, &input)
}

// IsNotFound reports whether err wraps ErrNotFound.
func IsNotFound(err error) bool {
	var nf ErrNotFound
	return errors.As(err, &nf)
}

// IsConflict reports whether err is a state conflict: the sanction is already
// completed, in a status that forbids the transition, or was concurrently
// modified beyond the retry budget.
func IsConflict(err error) bool {
	var (
		done  ErrAlreadyCompleted
		trans ErrInvalidTransition
		rules RuleViolationError
	)
	return errors.As(err, &done) || errors.As(err, &trans) || errors.As(err, &rules) || errors.Is(err, ErrVersionConflict)
}
