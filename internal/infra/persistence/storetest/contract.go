// Package storetest holds the behavioural contract every domain.PersistentStore
// backend must satisfy. Backend packages call Run from their own tests.
package storetest

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sanctioncore/pkg/domain"
)

// Factory returns a fresh, empty store. The suite closes it.
type Factory func(t *testing.T) domain.PersistentStore

var base = time.Date(2026, 5, 4, 9, 30, 0, 0, time.UTC)

// Fixture returns a valid open sanction created offset after the suite's base time.
func Fixture(id string, offset time.Duration) domain.Sanction {
	return domain.Sanction{
		ID:               id,
		Title:            "Push-up set",
		Description:      "Burn off the slip with some exercise.",
		Task:             "Do the push-ups.",
		Severity:         2,
		Quantity:         10,
		Unit:             domain.UnitTimes,
		Category:         domain.CategoryFitness,
		Status:           domain.StatusOpen,
		Deadline:         base.Add(offset + 48*time.Hour),
		EscalationFactor: 2.5,
		Reason:           "left the lights on",
		CreatedAt:        base.Add(offset),
	}
}

// Run executes the contract against the backend produced by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Helper()
	cases := []struct {
		name string
		fn   func(*testing.T, domain.PersistentStore)
	}{
		{"CreateAndGet", testCreateAndGet},
		{"CreateDuplicate", testCreateDuplicate},
		{"GetMissing", testGetMissing},
		{"SwapAdvancesVersion", testSwapAdvancesVersion},
		{"SwapConflict", testSwapConflict},
		{"SwapMissing", testSwapMissing},
		{"ListFiltersAndOrders", testListFiltersAndOrders},
		{"ListPaginates", testListPaginates},
		{"Delete", testDelete},
		{"ConcurrentSwapsSingleWinner", testConcurrentSwaps},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := newStore(t)
			t.Cleanup(func() { _ = store.Close() })
			tc.fn(t, store)
		})
	}
}

func testCreateAndGet(t *testing.T, store domain.PersistentStore) {
	ctx := context.Background()
	in := Fixture("a", 0)
	created, err := store.CreateSanction(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, int64(1), created.Version)

	got, err := store.GetSanction(ctx, "a")
	require.NoError(t, err)
	in.Version = 1
	assertSameSanction(t, in, got)
}

func testCreateDuplicate(t *testing.T, store domain.PersistentStore) {
	ctx := context.Background()
	_, err := store.CreateSanction(ctx, Fixture("dup", 0))
	require.NoError(t, err)
	_, err = store.CreateSanction(ctx, Fixture("dup", time.Hour))
	require.Error(t, err)
}

func testGetMissing(t *testing.T, store domain.PersistentStore) {
	_, err := store.GetSanction(context.Background(), "missing")
	require.True(t, domain.IsNotFound(err), "got %v", err)
}

func testSwapAdvancesVersion(t *testing.T, store domain.PersistentStore) {
	ctx := context.Background()
	created, err := store.CreateSanction(ctx, Fixture("s", 0))
	require.NoError(t, err)

	next := created
	next.Status = domain.StatusEscalated
	next.Quantity = 15
	next.EscalationCount = 1
	next.Deadline = created.Deadline.Add(24 * time.Hour)
	swapped, err := store.SwapSanction(ctx, next, created.Version)
	require.NoError(t, err)
	assert.Equal(t, created.Version+1, swapped.Version)

	got, err := store.GetSanction(ctx, "s")
	require.NoError(t, err)
	assertSameSanction(t, swapped, got)
}

func testSwapConflict(t *testing.T, store domain.PersistentStore) {
	ctx := context.Background()
	created, err := store.CreateSanction(ctx, Fixture("c", 0))
	require.NoError(t, err)
	first := created
	first.Status = domain.StatusDone
	_, err = store.SwapSanction(ctx, first, created.Version)
	require.NoError(t, err)

	stale := created
	stale.Quantity = 99
	_, err = store.SwapSanction(ctx, stale, created.Version)
	require.ErrorIs(t, err, domain.ErrVersionConflict)

	got, err := store.GetSanction(ctx, "c")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDone, got.Status)
	assert.Equal(t, 10, got.Quantity)
}

func testSwapMissing(t *testing.T, store domain.PersistentStore) {
	_, err := store.SwapSanction(context.Background(), Fixture("ghost", 0), 1)
	require.True(t, domain.IsNotFound(err), "got %v", err)
}

func testListFiltersAndOrders(t *testing.T, store domain.PersistentStore) {
	ctx := context.Background()
	for i := range 4 {
		s := Fixture(fmt.Sprintf("l%d", i), time.Duration(i)*time.Hour)
		if i == 1 {
			s.Status = domain.StatusDone
		}
		if i == 2 {
			s.Category = domain.CategoryComfort
		}
		_, err := store.CreateSanction(ctx, s)
		require.NoError(t, err)
	}

	all, err := store.ListSanctions(ctx, domain.SanctionQuery{})
	require.NoError(t, err)
	assert.Equal(t, 4, all.Total)
	require.Len(t, all.Items, 4)
	assert.Equal(t, "l3", all.Items[0].ID)
	assert.Equal(t, "l0", all.Items[3].ID)

	open, err := store.ListSanctions(ctx, domain.SanctionQuery{
		Statuses:   []domain.Status{domain.StatusOpen},
		Categories: []domain.Category{domain.CategoryFitness},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, open.Total)
	assert.Equal(t, []string{"l3", "l0"}, ids(open.Items))

	cutoff := base.Add(49 * time.Hour)
	due, err := store.ListSanctions(ctx, domain.SanctionQuery{DeadlineBefore: &cutoff})
	require.NoError(t, err)
	assert.Equal(t, []string{"l0"}, ids(due.Items))
}

func testListPaginates(t *testing.T, store domain.PersistentStore) {
	ctx := context.Background()
	for i := range 5 {
		_, err := store.CreateSanction(ctx, Fixture(fmt.Sprintf("p%d", i), time.Duration(i)*time.Minute))
		require.NoError(t, err)
	}
	page, err := store.ListSanctions(ctx, domain.SanctionQuery{Limit: 2, Offset: 1})
	require.NoError(t, err)
	assert.Equal(t, 5, page.Total)
	assert.Equal(t, []string{"p3", "p2"}, ids(page.Items))

	tail, err := store.ListSanctions(ctx, domain.SanctionQuery{Offset: 3})
	require.NoError(t, err)
	assert.Equal(t, []string{"p1", "p0"}, ids(tail.Items))

	empty, err := store.ListSanctions(ctx, domain.SanctionQuery{Offset: 10})
	require.NoError(t, err)
	assert.Empty(t, empty.Items)
	assert.Equal(t, 5, empty.Total)
}

func testDelete(t *testing.T, store domain.PersistentStore) {
	ctx := context.Background()
	_, err := store.CreateSanction(ctx, Fixture("d", 0))
	require.NoError(t, err)
	require.NoError(t, store.DeleteSanction(ctx, "d"))
	_, err = store.GetSanction(ctx, "d")
	require.True(t, domain.IsNotFound(err))
	require.True(t, domain.IsNotFound(store.DeleteSanction(ctx, "d")))
}

func testConcurrentSwaps(t *testing.T, store domain.PersistentStore) {
	ctx := context.Background()
	created, err := store.CreateSanction(ctx, Fixture("race", 0))
	require.NoError(t, err)

	const writers = 8
	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := range writers {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			next := created
			next.Quantity = created.Quantity + n + 1
			if _, err := store.SwapSanction(ctx, next, created.Version); err == nil {
				wins.Add(1)
			} else {
				assert.ErrorIs(t, err, domain.ErrVersionConflict)
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())

	got, err := store.GetSanction(ctx, "race")
	require.NoError(t, err)
	assert.Equal(t, created.Version+1, got.Version)
}

func assertSameSanction(t *testing.T, want, got domain.Sanction) {
	t.Helper()
	assert.True(t, want.Deadline.Equal(got.Deadline), "deadline %s != %s", want.Deadline, got.Deadline)
	assert.True(t, want.CreatedAt.Equal(got.CreatedAt), "created_at %s != %s", want.CreatedAt, got.CreatedAt)
	want.Deadline, got.Deadline = time.Time{}, time.Time{}
	want.CreatedAt, got.CreatedAt = time.Time{}, time.Time{}
	assert.Equal(t, want, got)
}

func ids(items []domain.Sanction) []string {
	out := make([]string, 0, len(items))
	for _, s := range items {
		out = append(out, s.ID)
	}
	return out
}
