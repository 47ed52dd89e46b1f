package domain

import (
	"fmt"
	"testing"
	"time"
)

func TestSeverityRange(t *testing.T) {
	for _, sev := range []Severity{0, 6, -1} {
		if sev.Valid() {
			t.Fatalf("severity %d should be invalid", sev)
		}
	}
	got := Severities()
	if len(got) != 5 || got[0] != 1 || got[4] != 5 {
		t.Fatalf("unexpected severities %v", got)
	}
}

func TestStatusPredicates(t *testing.T) {
	cases := map[Status][2]bool{ // terminal, unresolved
		StatusOpen:      {false, true},
		StatusEscalated: {false, true},
		StatusDone:      {true, false},
		StatusExpired:   {true, false},
	}
	for status, want := range cases {
		if status.Terminal() != want[0] || status.Unresolved() != want[1] {
			t.Fatalf("%s: terminal=%v unresolved=%v", status, status.Terminal(), status.Unresolved())
		}
	}
	if Status("archived").Valid() {
		t.Fatalf("unknown status must be invalid")
	}
}

func TestEnumsRejectUnknownValues(t *testing.T) {
	if Unit("furlongs").Valid() || !UnitHoursPerDay.Valid() {
		t.Fatalf("unit validation mismatch")
	}
	if Category("gardening").Valid() || !CategoryScreenTime.Valid() {
		t.Fatalf("category validation mismatch")
	}
	if len(Categories()) != 6 {
		t.Fatalf("expected six categories")
	}
}

func TestOverdueOnlyForOpen(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := Sanction{Status: StatusOpen, Deadline: now.Add(-time.Minute)}
	if !s.Overdue(now) {
		t.Fatalf("open past-deadline sanction should be overdue")
	}
	s.Status = StatusEscalated
	if s.Overdue(now) {
		t.Fatalf("escalated sanctions are not swept again")
	}
	s.Status = StatusOpen
	s.Deadline = now
	if s.Overdue(now) {
		t.Fatalf("deadline equal to now is not overdue")
	}
}

func TestQueryMatchAndPage(t *testing.T) {
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	var items []Sanction
	for i := range 5 {
		items = append(items, Sanction{
			ID:        fmt.Sprintf("s%d", i),
			Status:    StatusOpen,
			Category:  CategoryFitness,
			CreatedAt: base.Add(time.Duration(i) * time.Hour),
			Deadline:  base.Add(time.Duration(i) * 24 * time.Hour),
		})
	}
	items[1].Status = StatusDone
	items[2].Category = CategoryComfort

	cutoff := base.Add(72 * time.Hour)
	q := SanctionQuery{Statuses: []Status{StatusOpen}, Categories: []Category{CategoryFitness}, DeadlineBefore: &cutoff}
	var matched []Sanction
	for _, s := range items {
		if q.Matches(s) {
			matched = append(matched, s)
		}
	}
	if len(matched) != 2 || matched[0].ID != "s0" || matched[1].ID != "s3" {
		t.Fatalf("unexpected matches %+v", matched)
	}

	SortSanctions(items)
	if items[0].ID != "s4" || items[4].ID != "s0" {
		t.Fatalf("expected newest first, got %s..%s", items[0].ID, items[4].ID)
	}
	page := SanctionQuery{Limit: 2, Offset: 1}.Page(items)
	if len(page) != 2 || page[0].ID != "s3" {
		t.Fatalf("unexpected page %+v", page)
	}
	if got := (SanctionQuery{Offset: 10}).Page(items); len(got) != 0 || got == nil {
		t.Fatalf("offset past end should yield empty non-nil slice")
	}
}

func TestSortBreaksTiesByID(t *testing.T) {
	at := time.Unix(100, 0)
	items := []Sanction{{ID: "b", CreatedAt: at}, {ID: "a", CreatedAt: at}}
	SortSanctions(items)
	if items[0].ID != "a" {
		t.Fatalf("expected id tie-break, got %v", items)
	}
}

func TestErrorClassification(t *testing.T) {
	wrapped := fmt.Errorf("create: %w", ErrInvalidSeverity{Severity: 9})
	if !IsValidation(wrapped) || IsConflict(wrapped) {
		t.Fatalf("invalid severity should be a validation error")
	}
	if !IsValidation(ErrInvalidInput{Field: "deadline_days", Message: "negative"}) {
		t.Fatalf("invalid input should be a validation error")
	}
	if !IsConflict(fmt.Errorf("complete: %w", ErrAlreadyCompleted{ID: "x"})) {
		t.Fatalf("already completed should be a conflict")
	}
	if !IsConflict(ErrVersionConflict) || !IsConflict(ErrInvalidTransition{ID: "x", From: StatusExpired, To: StatusDone}) {
		t.Fatalf("version and transition errors should be conflicts")
	}
	if !IsNotFound(fmt.Errorf("get: %w", ErrNotFound{Entity: EntitySanction, ID: "x"})) {
		t.Fatalf("expected not found")
	}
	if IsValidation(ErrNoTemplates{Severity: 3}) || IsConflict(ErrNoTemplates{Severity: 3}) {
		t.Fatalf("missing templates is an internal failure")
	}
}
