package domain

import "context"

// PersistentStore is the durable backend contract for sanctions. Every write
// is a whole-record replacement guarded by the record's Version.
type PersistentStore interface {
	// CreateSanction stores a new record. The store assigns Version 1.
	CreateSanction(ctx context.Context, s Sanction) (Sanction, error)
	// GetSanction returns ErrNotFound for unknown ids.
	GetSanction(ctx context.Context, id string) (Sanction, error)
	// ListSanctions filters, orders newest first and paginates.
	ListSanctions(ctx context.Context, q SanctionQuery) (SanctionPage, error)
	// SwapSanction replaces the stored record when its Version equals
	// expectedVersion, returning the stored value with Version incremented.
	// A mismatch yields ErrVersionConflict and leaves the record untouched.
	SwapSanction(ctx context.Context, next Sanction, expectedVersion int64) (Sanction, error)
	// DeleteSanction removes a record, returning ErrNotFound for unknown ids.
	DeleteSanction(ctx context.Context, id string) error
	Close() error
}
