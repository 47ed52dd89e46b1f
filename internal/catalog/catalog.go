// Package catalog holds the severity-indexed library of sanction templates the
// generator draws from. A Catalog is an immutable value: callers receive copies
// and can never mutate the table behind it.
package catalog

import (
	"errors"
	"fmt"
	"math"

	"sanctioncore/pkg/domain"
)

// Catalog maps each severity to an ordered template list. Index positions are
// stable and callers may address a template by severity and index.
type Catalog struct {
	bySeverity map[domain.Severity][]domain.SanctionTemplate
}

// New builds a catalog from the supplied table and validates it.
func New(table map[domain.Severity][]domain.SanctionTemplate) (Catalog, error) {
	c := Catalog{bySeverity: make(map[domain.Severity][]domain.SanctionTemplate, len(table))}
	for sev, list := range table {
		c.bySeverity[sev] = append([]domain.SanctionTemplate(nil), list...)
	}
	if err := c.Validate(); err != nil {
		return Catalog{}, err
	}
	return c, nil
}

// MustNew is New for package-level tables known to be valid.
func MustNew(table map[domain.Severity][]domain.SanctionTemplate) Catalog {
	c, err := New(table)
	if err != nil {
		panic(err)
	}
	return c
}

// Templates returns a copy of the ordered templates for sev. The result is
// empty for unknown severities.
func (c Catalog) Templates(sev domain.Severity) []domain.SanctionTemplate {
	return append([]domain.SanctionTemplate(nil), c.bySeverity[sev]...)
}

// Template resolves a single template by severity and index.
func (c Catalog) Template(sev domain.Severity, index int) (domain.SanctionTemplate, error) {
	list := c.bySeverity[sev]
	if !sev.Valid() || index < 0 || index >= len(list) {
		return domain.SanctionTemplate{}, domain.ErrInvalidTemplate{Severity: sev, Index: index}
	}
	return list[index], nil
}

// Severities lists the severities that carry at least one template, ascending.
func (c Catalog) Severities() []domain.Severity {
	var out []domain.Severity
	for _, sev := range domain.Severities() {
		if len(c.bySeverity[sev]) > 0 {
			out = append(out, sev)
		}
	}
	return out
}

// Len returns the total number of templates across all severities.
func (c Catalog) Len() int {
	n := 0
	for _, list := range c.bySeverity {
		n += len(list)
	}
	return n
}

// Validate checks that every severity 1-5 has templates and that every
// template carries a positive quantity and factor with known enums.
func (c Catalog) Validate() error {
	var errs []error
	for sev := range c.bySeverity {
		if !sev.Valid() {
			errs = append(errs, domain.ErrInvalidSeverity{Severity: sev})
		}
	}
	for _, sev := range domain.Severities() {
		list := c.bySeverity[sev]
		if len(list) == 0 {
			errs = append(errs, domain.ErrNoTemplates{Severity: sev})
			continue
		}
		for i, tmpl := range list {
			if err := validateTemplate(tmpl); err != nil {
				errs = append(errs, fmt.Errorf("severity %d template %d: %w", sev, i, err))
			}
		}
	}
	return errors.Join(errs...)
}

func validateTemplate(t domain.SanctionTemplate) error {
	switch {
	case t.Title == "":
		return errors.New("title is required")
	case t.Quantity <= 0 || t.Quantity > domain.MaxQuantity:
		return domain.ErrInvalidInput{Field: "quantity", Message: fmt.Sprintf("%d outside 1-%d", t.Quantity, domain.MaxQuantity)}
	case !t.Unit.Valid():
		return fmt.Errorf("unknown unit %q", t.Unit)
	case !t.Category.Valid():
		return fmt.Errorf("unknown category %q", t.Category)
	case math.IsNaN(t.EscalationFactor) || math.IsInf(t.EscalationFactor, 0):
		return fmt.Errorf("escalation factor %v must be finite", t.EscalationFactor)
	case t.EscalationFactor <= 0:
		return fmt.Errorf("escalation factor %v must be positive", t.EscalationFactor)
	}
	return nil
}
