// Package sqlstore implements the sanction store on database/sql. It is shared
// by the sqlite and postgres backends, which differ only in driver and dialect.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"sanctioncore/pkg/domain"
)

// Compile-time contract assertion ensuring the store satisfies the domain interface.
var _ domain.PersistentStore = (*Store)(nil)

// Dialect captures the SQL differences between supported databases.
type Dialect struct {
	Name string
	// Numbered placeholders ($1, $2) instead of '?'.
	Numbered bool
	// OffsetOnly is the clause emitted before OFFSET when no limit applies.
	// SQLite requires a LIMIT before OFFSET; Postgres accepts OFFSET alone.
	OffsetOnly string
}

// Supported dialects.
var (
	SQLite   = Dialect{Name: "sqlite", OffsetOnly: "LIMIT -1"}
	Postgres = Dialect{Name: "postgres", Numbered: true}
)

// Schema is the DDL applied by Migrate. Timestamps are unix milliseconds.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS sanctions (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		description TEXT NOT NULL,
		task TEXT NOT NULL,
		severity INTEGER NOT NULL,
		quantity INTEGER NOT NULL,
		unit TEXT NOT NULL,
		category TEXT NOT NULL,
		status TEXT NOT NULL,
		deadline BIGINT NOT NULL,
		escalation_factor DOUBLE PRECISION NOT NULL,
		escalation_count INTEGER NOT NULL,
		reason TEXT NOT NULL DEFAULT '',
		created_at BIGINT NOT NULL,
		version BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS sanctions_status_deadline ON sanctions (status, deadline)`,
	`CREATE INDEX IF NOT EXISTS sanctions_created_at ON sanctions (created_at DESC, id)`,
}

const columns = `id, title, description, task, severity, quantity, unit, category, status, deadline, escalation_factor, escalation_count, reason, created_at, version`

// Store is a database/sql backed sanction store.
type Store struct {
	db      *sql.DB
	dialect Dialect
}

// New wraps an open database handle. Call Migrate before first use.
func New(db *sql.DB, dialect Dialect) *Store {
	return &Store{db: db, dialect: dialect}
}

// DB exposes the underlying handle for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// Migrate applies the schema idempotently.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range Schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("%s: apply schema: %w", s.dialect.Name, err)
		}
	}
	return nil
}

// CreateSanction inserts a new record with Version 1.
func (s *Store) CreateSanction(ctx context.Context, sanction domain.Sanction) (domain.Sanction, error) {
	sanction.Version = 1
	query := s.rebind(`INSERT INTO sanctions (` + columns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	args := []any{
		sanction.ID, sanction.Title, sanction.Description, sanction.Task,
		int(sanction.Severity), sanction.Quantity, string(sanction.Unit), string(sanction.Category),
		string(sanction.Status), toMillis(sanction.Deadline), sanction.EscalationFactor,
		sanction.EscalationCount, sanction.Reason, toMillis(sanction.CreatedAt), sanction.Version,
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return domain.Sanction{}, fmt.Errorf("%s: insert sanction %s: %w", s.dialect.Name, sanction.ID, err)
	}
	return normalize(sanction), nil
}

// GetSanction loads a single record.
func (s *Store) GetSanction(ctx context.Context, id string) (domain.Sanction, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT `+columns+` FROM sanctions WHERE id = ?`), id)
	sanction, err := scanSanction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Sanction{}, domain.ErrNotFound{Entity: domain.EntitySanction, ID: id}
	}
	if err != nil {
		return domain.Sanction{}, fmt.Errorf("%s: get sanction %s: %w", s.dialect.Name, id, err)
	}
	return sanction, nil
}

// ListSanctions filters, orders newest first and paginates in SQL.
func (s *Store) ListSanctions(ctx context.Context, q domain.SanctionQuery) (domain.SanctionPage, error) {
	where, args := buildWhere(q)

	var total int
	if err := s.db.QueryRowContext(ctx, s.rebind(`SELECT COUNT(*) FROM sanctions`+where), args...).Scan(&total); err != nil {
		return domain.SanctionPage{}, fmt.Errorf("%s: count sanctions: %w", s.dialect.Name, err)
	}

	query := `SELECT ` + columns + ` FROM sanctions` + where + ` ORDER BY created_at DESC, id ASC`
	switch {
	case q.Limit > 0:
		query += ` LIMIT ? OFFSET ?`
		args = append(args, q.Limit, max(q.Offset, 0))
	case q.Offset > 0:
		if s.dialect.OffsetOnly != "" {
			query += ` ` + s.dialect.OffsetOnly
		}
		query += ` OFFSET ?`
		args = append(args, q.Offset)
	}
	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return domain.SanctionPage{}, fmt.Errorf("%s: list sanctions: %w", s.dialect.Name, err)
	}
	defer func() { _ = rows.Close() }()

	items := make([]domain.Sanction, 0)
	for rows.Next() {
		sanction, err := scanSanction(rows)
		if err != nil {
			return domain.SanctionPage{}, fmt.Errorf("%s: scan sanction: %w", s.dialect.Name, err)
		}
		items = append(items, sanction)
	}
	if err := rows.Err(); err != nil {
		return domain.SanctionPage{}, fmt.Errorf("%s: iterate sanctions: %w", s.dialect.Name, err)
	}
	return domain.SanctionPage{Items: items, Total: total}, nil
}

// SwapSanction performs the versioned update. A zero-row update is resolved
// into ErrNotFound or ErrVersionConflict with a follow-up lookup.
func (s *Store) SwapSanction(ctx context.Context, next domain.Sanction, expectedVersion int64) (domain.Sanction, error) {
	next.Version = expectedVersion + 1
	query := s.rebind(`UPDATE sanctions SET title = ?, description = ?, task = ?, severity = ?, quantity = ?, unit = ?, category = ?, status = ?, deadline = ?, escalation_factor = ?, escalation_count = ?, reason = ?, created_at = ?, version = ? WHERE id = ? AND version = ?`)
	res, err := s.db.ExecContext(ctx, query,
		next.Title, next.Description, next.Task, int(next.Severity), next.Quantity,
		string(next.Unit), string(next.Category), string(next.Status), toMillis(next.Deadline),
		next.EscalationFactor, next.EscalationCount, next.Reason, toMillis(next.CreatedAt),
		next.Version, next.ID, expectedVersion,
	)
	if err != nil {
		return domain.Sanction{}, fmt.Errorf("%s: update sanction %s: %w", s.dialect.Name, next.ID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return domain.Sanction{}, fmt.Errorf("%s: rows affected: %w", s.dialect.Name, err)
	}
	if affected == 0 {
		if _, err := s.GetSanction(ctx, next.ID); err != nil {
			return domain.Sanction{}, err
		}
		return domain.Sanction{}, domain.ErrVersionConflict
	}
	return normalize(next), nil
}

// DeleteSanction removes a record.
func (s *Store) DeleteSanction(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM sanctions WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("%s: delete sanction %s: %w", s.dialect.Name, id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: rows affected: %w", s.dialect.Name, err)
	}
	if affected == 0 {
		return domain.ErrNotFound{Entity: domain.EntitySanction, ID: id}
	}
	return nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func buildWhere(q domain.SanctionQuery) (string, []any) {
	var (
		clauses []string
		args    []any
	)
	if len(q.Statuses) > 0 {
		clauses = append(clauses, `status IN (`+placeholders(len(q.Statuses))+`)`)
		for _, st := range q.Statuses {
			args = append(args, string(st))
		}
	}
	if len(q.Categories) > 0 {
		clauses = append(clauses, `category IN (`+placeholders(len(q.Categories))+`)`)
		for _, c := range q.Categories {
			args = append(args, string(c))
		}
	}
	if q.DeadlineBefore != nil {
		clauses = append(clauses, `deadline < ?`)
		args = append(args, toMillis(*q.DeadlineBefore))
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return ` WHERE ` + strings.Join(clauses, ` AND `), args
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// rebind rewrites '?' placeholders into the dialect's form.
func (s *Store) rebind(query string) string {
	if !s.dialect.Numbered {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 16)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSanction(row scanner) (domain.Sanction, error) {
	var (
		s                    domain.Sanction
		severity             int
		unit, category, stat string
		deadline, created    int64
	)
	if err := row.Scan(
		&s.ID, &s.Title, &s.Description, &s.Task, &severity, &s.Quantity, &unit, &category,
		&stat, &deadline, &s.EscalationFactor, &s.EscalationCount, &s.Reason, &created, &s.Version,
	); err != nil {
		return domain.Sanction{}, err
	}
	s.Severity = domain.Severity(severity)
	s.Unit = domain.Unit(unit)
	s.Category = domain.Category(category)
	s.Status = domain.Status(stat)
	s.Deadline = fromMillis(deadline)
	s.CreatedAt = fromMillis(created)
	return s, nil
}

func normalize(s domain.Sanction) domain.Sanction {
	s.Deadline = fromMillis(toMillis(s.Deadline))
	s.CreatedAt = fromMillis(toMillis(s.CreatedAt))
	return s
}

func toMillis(t time.Time) int64 { return t.UnixMilli() }

func fromMillis(ms int64) time.Time { return time.UnixMilli(ms).UTC() }
