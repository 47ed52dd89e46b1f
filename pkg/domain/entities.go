// Package domain defines the sanction records, catalog template values, and
// rule evaluation primitives used by sanctioncore.
package domain

import (
	"slices"
	"time"
)

// EntityType identifies the type of record stored in the core domain.
type EntityType string

// EntitySanction identifies a sanction record in Change entries and store buckets.
const EntitySanction EntityType = "sanction"

// Severity ranks a sanction from 1 (mild) to 5 (harsh). It selects the catalog
// slice a sanction is drawn from and is copied onto the sanction itself.
type Severity int

// Severity bounds accepted by the generator and the catalog.
const (
	MinSeverity Severity = 1
	MaxSeverity Severity = 5
)

// MaxQuantity caps every sanction quantity. It fits the 32-bit INTEGER
// column the SQL backends store quantities in.
const MaxQuantity = 1<<31 - 1

// Valid reports whether the severity lies within the fixed 1–5 scale.
func (s Severity) Valid() bool {
	return s >= MinSeverity && s <= MaxSeverity
}

// Severities returns every valid severity in ascending order.
func Severities() []Severity {
	out := make([]Severity, 0, MaxSeverity-MinSeverity+1)
	for s := MinSeverity; s <= MaxSeverity; s++ {
		out = append(out, s)
	}
	return out
}

// Unit is the measure a sanction quantity is expressed in.
type Unit string

// Canonical units. The string values are part of the persisted record layout.
const (
	UnitMinutes     Unit = "minutes"
	UnitHours       Unit = "hours"
	UnitDays        Unit = "days"
	UnitTimes       Unit = "times"
	UnitStrikes     Unit = "strikes"
	UnitHoursPerDay Unit = "hours_per_day"
)

var knownUnits = []Unit{UnitMinutes, UnitHours, UnitDays, UnitTimes, UnitStrikes, UnitHoursPerDay}

// Valid reports whether u is one of the canonical units.
func (u Unit) Valid() bool { return slices.Contains(knownUnits, u) }

// Category groups sanctions by the household activity they target.
type Category string

// Canonical activity categories.
const (
	CategoryHousehold  Category = "household"
	CategoryFitness    Category = "fitness"
	CategoryScreenTime Category = "screen_time"
	CategorySocial     Category = "social"
	CategoryLearning   Category = "learning"
	CategoryComfort    Category = "comfort"
)

var knownCategories = []Category{
	CategoryHousehold,
	CategoryFitness,
	CategoryScreenTime,
	CategorySocial,
	CategoryLearning,
	CategoryComfort,
}

// Valid reports whether c is one of the canonical categories.
func (c Category) Valid() bool { return slices.Contains(knownCategories, c) }

// Categories returns the canonical categories in declaration order.
func Categories() []Category { return slices.Clone(knownCategories) }

// Status is the lifecycle state of a sanction.
type Status string

// Sanction lifecycle states. StatusExpired is terminal and is only reached
// through the administrative expire operation.
const (
	StatusOpen      Status = "open"
	StatusEscalated Status = "escalated"
	StatusDone      Status = "done"
	StatusExpired   Status = "expired"
)

var knownStatuses = []Status{StatusOpen, StatusEscalated, StatusDone, StatusExpired}

// Valid reports whether s is a known lifecycle state.
func (s Status) Valid() bool { return slices.Contains(knownStatuses, s) }

// Terminal reports whether no transition may leave s.
func (s Status) Terminal() bool { return s == StatusDone || s == StatusExpired }

// Unresolved reports whether the sanction still demands action.
func (s Status) Unresolved() bool { return s == StatusOpen || s == StatusEscalated }

// Statuses returns the known lifecycle states in declaration order.
func Statuses() []Status { return slices.Clone(knownStatuses) }

// SanctionTemplate is an immutable catalog entry a sanction is instantiated from.
type SanctionTemplate struct {
	Title            string   `json:"title" yaml:"title"`
	Description      string   `json:"description" yaml:"description"`
	Task             string   `json:"task" yaml:"task"`
	Quantity         int      `json:"quantity" yaml:"quantity"`
	Unit             Unit     `json:"unit" yaml:"unit"`
	Category         Category `json:"category" yaml:"category"`
	EscalationFactor float64  `json:"escalation_factor" yaml:"escalation_factor"`
}

// Sanction is a penalty task instance. Template fields are copied by value at
// creation; Status, Quantity, Deadline and EscalationCount change only through
// lifecycle transitions. Version is bumped by every committed write.
type Sanction struct {
	ID               string    `json:"id"`
	Title            string    `json:"title"`
	Description      string    `json:"description"`
	Task             string    `json:"task"`
	Severity         Severity  `json:"severity"`
	Quantity         int       `json:"quantity"`
	Unit             Unit      `json:"unit"`
	Category         Category  `json:"category"`
	Status           Status    `json:"status"`
	Deadline         time.Time `json:"deadline"`
	EscalationFactor float64   `json:"escalation_factor"`
	EscalationCount  int       `json:"escalation_count"`
	Reason           string    `json:"reason,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	Version          int64     `json:"version"`
}

// Overdue reports whether the sanction is still open and its deadline lies before now.
func (s Sanction) Overdue(now time.Time) bool {
	return s.Status == StatusOpen && s.Deadline.Before(now)
}

// SanctionQuery filters and paginates sanction listings. Empty slices match
// everything; a zero Limit returns all matches after Offset.
type SanctionQuery struct {
	Statuses       []Status
	Categories     []Category
	DeadlineBefore *time.Time
	Limit          int
	Offset         int
}

// Matches reports whether s satisfies the query filters (pagination ignored).
func (q SanctionQuery) Matches(s Sanction) bool {
	if len(q.Statuses) > 0 && !slices.Contains(q.Statuses, s.Status) {
		return false
	}
	if len(q.Categories) > 0 && !slices.Contains(q.Categories, s.Category) {
		return false
	}
	if q.DeadlineBefore != nil && !s.Deadline.Before(*q.DeadlineBefore) {
		return false
	}
	return true
}

// Page applies Offset and Limit to an already filtered and ordered slice.
func (q SanctionQuery) Page(items []Sanction) []Sanction {
	if q.Offset >= len(items) {
		return []Sanction{}
	}
	items = items[max(q.Offset, 0):]
	if q.Limit > 0 && q.Limit < len(items) {
		items = items[:q.Limit]
	}
	return items
}

// SortSanctions orders newest first, breaking ties by ID so pagination is stable.
func SortSanctions(items []Sanction) {
	slices.SortFunc(items, func(a, b Sanction) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
}

// SanctionPage is one page of a listing plus the unpaginated match count.
type SanctionPage struct {
	Items []Sanction `json:"items"`
	Total int        `json:"total"`
}

// Summary aggregates sanction counts for dashboards.
type Summary struct {
	Total      int              `json:"total"`
	ByStatus   map[Status]int   `json:"by_status"`
	ByCategory map[Category]int `json:"by_category"`
}
