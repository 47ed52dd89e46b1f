package core

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"sanctioncore/internal/catalog"
	"sanctioncore/internal/infra/persistence/memory"
	"sanctioncore/pkg/domain"
)

var testEpoch = time.Date(2026, 5, 4, 9, 30, 0, 0, time.UTC)

// testClock is a settable clock shared by a service and its test.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock { return &testClock{now: testEpoch} }

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func sequentialIDs() func() string {
	var n atomic.Int64
	return func() string { return fmt.Sprintf("sanction-%03d", n.Add(1)) }
}

func newTestService(t *testing.T, opts ...Option) (*Service, *testClock) {
	t.Helper()
	clock := newTestClock()
	base := []Option{
		WithClock(clock.Now),
		WithIDGenerator(sequentialIDs()),
		WithRand(rand.New(rand.NewPCG(1, 2))),
	}
	svc := NewService(memory.NewStore(), catalog.Default(), append(base, opts...)...)
	t.Cleanup(func() { _ = svc.Close() })
	return svc, clock
}

func mustCreateSpecific(t *testing.T, svc *Service, sev domain.Severity, index, days int) domain.Sanction {
	t.Helper()
	s, err := svc.CreateSpecific(context.Background(), SpecificRequest{Severity: sev, TemplateIndex: index, DeadlineDays: days})
	if err != nil {
		t.Fatalf("create specific %d/%d: %v", sev, index, err)
	}
	return s
}

// flakyStore wraps a store and injects failures.
type flakyStore struct {
	domain.PersistentStore

	mu           sync.Mutex
	getFailures  int
	conflicts    int
	beforeSwap   func()
	swapAttempts int
}

var errTransient = fmt.Errorf("transient store failure")

func (f *flakyStore) GetSanction(ctx context.Context, id string) (domain.Sanction, error) {
	f.mu.Lock()
	if f.getFailures > 0 {
		f.getFailures--
		f.mu.Unlock()
		return domain.Sanction{}, errTransient
	}
	f.mu.Unlock()
	return f.PersistentStore.GetSanction(ctx, id)
}

func (f *flakyStore) SwapSanction(ctx context.Context, next domain.Sanction, expected int64) (domain.Sanction, error) {
	f.mu.Lock()
	f.swapAttempts++
	hook := f.beforeSwap
	if f.conflicts > 0 {
		f.conflicts--
		f.mu.Unlock()
		return domain.Sanction{}, domain.ErrVersionConflict
	}
	f.mu.Unlock()
	if hook != nil {
		hook()
	}
	return f.PersistentStore.SwapSanction(ctx, next, expected)
}

func (f *flakyStore) attempts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.swapAttempts
}
