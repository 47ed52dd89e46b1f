// Package memory provides an in-memory implementation of the sanction store
// used for tests and ephemeral environments.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"sanctioncore/pkg/domain"
)

// Compile-time contract assertion ensuring memory.Store adheres to the domain persistence interface.
var _ domain.PersistentStore = (*Store)(nil)

var errClosed = errors.New("memory store closed")

// Store keeps sanctions in a map guarded by a read/write mutex. The lock is
// held only for the duration of a single call, so a compare-and-swap on one
// record never waits on a bulk operation iterating over others.
type Store struct {
	mu        sync.RWMutex
	sanctions map[string]domain.Sanction
	closed    bool
}

// NewStore constructs an empty in-memory store.
func NewStore() *Store {
	return &Store{sanctions: make(map[string]domain.Sanction)}
}

// CreateSanction stores a new record with Version 1.
func (s *Store) CreateSanction(ctx context.Context, sanction domain.Sanction) (domain.Sanction, error) {
	if err := ctx.Err(); err != nil {
		return domain.Sanction{}, err
	}
	if sanction.ID == "" {
		return domain.Sanction{}, domain.ErrInvalidInput{Field: "id", Message: "required"}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return domain.Sanction{}, errClosed
	}
	if _, exists := s.sanctions[sanction.ID]; exists {
		return domain.Sanction{}, fmt.Errorf("sanction %q already exists", sanction.ID)
	}
	sanction.Version = 1
	s.sanctions[sanction.ID] = sanction
	return sanction, nil
}

// GetSanction returns a copy of the stored record.
func (s *Store) GetSanction(ctx context.Context, id string) (domain.Sanction, error) {
	if err := ctx.Err(); err != nil {
		return domain.Sanction{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return domain.Sanction{}, errClosed
	}
	sanction, ok := s.sanctions[id]
	if !ok {
		return domain.Sanction{}, domain.ErrNotFound{Entity: domain.EntitySanction, ID: id}
	}
	return sanction, nil
}

// ListSanctions filters and paginates a point-in-time copy of the records.
func (s *Store) ListSanctions(ctx context.Context, q domain.SanctionQuery) (domain.SanctionPage, error) {
	if err := ctx.Err(); err != nil {
		return domain.SanctionPage{}, err
	}
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return domain.SanctionPage{}, errClosed
	}
	matched := make([]domain.Sanction, 0, len(s.sanctions))
	for _, sanction := range s.sanctions {
		if q.Matches(sanction) {
			matched = append(matched, sanction)
		}
	}
	s.mu.RUnlock()

	domain.SortSanctions(matched)
	return domain.SanctionPage{Items: q.Page(matched), Total: len(matched)}, nil
}

// SwapSanction replaces the record when the stored version equals expectedVersion.
func (s *Store) SwapSanction(ctx context.Context, next domain.Sanction, expectedVersion int64) (domain.Sanction, error) {
	if err := ctx.Err(); err != nil {
		return domain.Sanction{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return domain.Sanction{}, errClosed
	}
	current, ok := s.sanctions[next.ID]
	if !ok {
		return domain.Sanction{}, domain.ErrNotFound{Entity: domain.EntitySanction, ID: next.ID}
	}
	if current.Version != expectedVersion {
		return domain.Sanction{}, domain.ErrVersionConflict
	}
	next.Version = expectedVersion + 1
	s.sanctions[next.ID] = next
	return next, nil
}

// DeleteSanction removes a record.
func (s *Store) DeleteSanction(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errClosed
	}
	if _, ok := s.sanctions[id]; !ok {
		return domain.ErrNotFound{Entity: domain.EntitySanction, ID: id}
	}
	delete(s.sanctions, id)
	return nil
}

// Close marks the store unusable. Subsequent calls fail.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
