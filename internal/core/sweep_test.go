package core

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"sanctioncore/pkg/domain"
)

type captureReporter struct {
	mu      sync.Mutex
	reports []SweepReport
	err     error
}

func (c *captureReporter) ReportSweep(_ context.Context, r SweepReport) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reports = append(c.reports, r)
	return c.err
}

func TestSweepEscalatesOverdueWithTemplateFactor(t *testing.T) {
	reporter := &captureReporter{}
	svc, clock := newTestService(t, WithSweepReporter(reporter))
	ctx := context.Background()

	s := mustCreateSpecific(t, svc, 2, 0, 1)
	clock.Advance(36 * time.Hour)
	sweptAt := clock.Now()

	report, err := svc.Sweep(ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if report.Candidates != 1 || report.Escalated != 1 || !report.RanAt.Equal(sweptAt) {
		t.Fatalf("unexpected report %+v", report)
	}

	got, err := svc.Get(ctx, s.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != domain.StatusEscalated || got.EscalationCount != 1 {
		t.Fatalf("unexpected state after sweep %+v", got)
	}
	if got.Quantity != 15 {
		t.Fatalf("quantity = %d, want 10+5", got.Quantity)
	}
	if want := sweptAt.Add(48 * time.Hour); !got.Deadline.Equal(want) {
		t.Fatalf("deadline = %s, want %s", got.Deadline, want)
	}
	if len(reporter.reports) != 1 || reporter.reports[0].Items[0].Outcome != SweepEscalated {
		t.Fatalf("reporter did not receive the sweep: %+v", reporter.reports)
	}
}

func TestSweepRoundsFractionalFactorUp(t *testing.T) {
	svc, clock := newTestService(t)
	s := mustCreateSpecific(t, svc, 5, 2, 1) // quantity 6, factor 2.5
	clock.Advance(25 * time.Hour)
	if n, err := svc.CheckAndEscalateExpired(context.Background()); err != nil || n != 1 {
		t.Fatalf("sweep = %d, %v", n, err)
	}
	got, _ := svc.Get(context.Background(), s.ID)
	if got.Quantity != 9 {
		t.Fatalf("quantity = %d, want ceil(6+2.5)=9", got.Quantity)
	}
}

func TestSweepOnlyTouchesOpenOverdue(t *testing.T) {
	svc, clock := newTestService(t)
	ctx := context.Background()

	overdue := mustCreateSpecific(t, svc, 1, 0, 1)
	notYet := mustCreateSpecific(t, svc, 1, 1, 5)
	done := mustCreateSpecific(t, svc, 1, 2, 1)
	manual := mustCreateSpecific(t, svc, 2, 1, 1)
	if _, err := svc.Complete(ctx, done.ID); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if _, err := svc.EscalateOne(ctx, manual.ID); err != nil {
		t.Fatalf("escalate: %v", err)
	}

	clock.Advance(3 * 24 * time.Hour)
	n, err := svc.CheckAndEscalateExpired(ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if n != 1 {
		t.Fatalf("escalated %d, want 1", n)
	}

	for id, want := range map[string]domain.Status{
		overdue.ID: domain.StatusEscalated,
		notYet.ID:  domain.StatusOpen,
		done.ID:    domain.StatusDone,
		manual.ID:  domain.StatusEscalated,
	} {
		got, err := svc.Get(ctx, id)
		if err != nil {
			t.Fatalf("get %s: %v", id, err)
		}
		if got.Status != want {
			t.Fatalf("%s status = %s, want %s", id, got.Status, want)
		}
	}
	if got, _ := svc.Get(ctx, manual.ID); got.EscalationCount != 1 {
		t.Fatalf("manually escalated sanction must not be swept, count %d", got.EscalationCount)
	}

	// Escalated sanctions stay out of later sweeps even once the new deadline lapses.
	clock.Advance(10 * 24 * time.Hour)
	n, err = svc.CheckAndEscalateExpired(ctx)
	if err != nil || n != 1 {
		t.Fatalf("second sweep = %d, %v; want only the remaining open sanction", n, err)
	}
	if got, _ := svc.Get(ctx, overdue.ID); got.EscalationCount != 1 {
		t.Fatalf("escalated sanction swept twice, count %d", got.EscalationCount)
	}
}

func TestSweepIsNoOpWithoutTimePassing(t *testing.T) {
	svc, clock := newTestService(t)
	mustCreateSpecific(t, svc, 3, 0, 1)
	clock.Advance(2 * 24 * time.Hour)
	ctx := context.Background()
	if n, _ := svc.CheckAndEscalateExpired(ctx); n != 1 {
		t.Fatalf("first sweep escalated %d", n)
	}
	report, err := svc.Sweep(ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if report.Candidates != 0 || report.Escalated != 0 || len(report.Items) != 0 {
		t.Fatalf("repeat sweep should be a no-op, got %+v", report)
	}
}

func TestSweepDeadlineBoundaryIsStrict(t *testing.T) {
	svc, clock := newTestService(t)
	mustCreateSpecific(t, svc, 3, 1, 1)
	clock.Advance(24 * time.Hour)
	if n, _ := svc.CheckAndEscalateExpired(context.Background()); n != 0 {
		t.Fatalf("deadline equal to now must not be swept, escalated %d", n)
	}
	clock.Advance(time.Millisecond)
	if n, _ := svc.CheckAndEscalateExpired(context.Background()); n != 1 {
		t.Fatalf("expected escalation one millisecond past deadline, got %d", n)
	}
}

func TestSweepSkipsRecordsCompletedMidSweep(t *testing.T) {
	svc, clock := newTestService(t)
	ctx := context.Background()
	s := mustCreateSpecific(t, svc, 2, 0, 1)
	clock.Advance(48 * time.Hour)

	// The record is completed underneath the sweep just before its swap lands.
	flaky := &flakyStore{PersistentStore: svc.store}
	var once sync.Once
	flaky.beforeSwap = func() {
		once.Do(func() {
			current, err := flaky.PersistentStore.GetSanction(ctx, s.ID)
			if err != nil {
				t.Errorf("get: %v", err)
				return
			}
			current.Status = domain.StatusDone
			if _, err := flaky.PersistentStore.SwapSanction(ctx, current, current.Version); err != nil {
				t.Errorf("complete underneath: %v", err)
			}
		})
	}
	svc.store = flaky

	report, err := svc.Sweep(ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if report.Escalated != 0 || report.Skipped != 1 || report.Failed != 0 {
		t.Fatalf("expected the completed record to be skipped, got %+v", report)
	}
	got, _ := svc.Get(ctx, s.ID)
	if got.Status != domain.StatusDone || got.EscalationCount != 0 {
		t.Fatalf("sweep must not escalate a completed sanction, got %+v", got)
	}
}

func TestSweepReporterFailureIsNotFatal(t *testing.T) {
	reporter := &captureReporter{err: errors.New("bucket unavailable")}
	svc, clock := newTestService(t, WithSweepReporter(reporter))
	mustCreateSpecific(t, svc, 4, 0, 1)
	clock.Advance(48 * time.Hour)
	report, err := svc.Sweep(context.Background())
	if err != nil {
		t.Fatalf("reporter errors must not fail the sweep: %v", err)
	}
	if report.Escalated != 1 {
		t.Fatalf("escalated %d, want 1", report.Escalated)
	}
}

func TestEscalationFormulasDiffer(t *testing.T) {
	base := domain.Sanction{Quantity: 10, EscalationFactor: 5, Status: domain.StatusOpen, Deadline: testEpoch}
	manual := escalateManually(base)
	swept := escalateOverdue(base, testEpoch.Add(time.Hour))
	if manual.Quantity != 15 || !manual.Deadline.Equal(testEpoch.Add(24*time.Hour)) {
		t.Fatalf("unexpected manual escalation %+v", manual)
	}
	if swept.Quantity != 15 || !swept.Deadline.Equal(testEpoch.Add(49*time.Hour)) {
		t.Fatalf("unexpected sweep escalation %+v", swept)
	}

	base.EscalationFactor = 1
	if escalateManually(base).Quantity == escalateOverdue(base, testEpoch).Quantity {
		t.Fatalf("manual and sweep escalation must use different formulas")
	}
}

// cancelAfterSwap cancels the sweep context once the first write has landed.
type cancelAfterSwap struct {
	domain.PersistentStore
	once   sync.Once
	cancel context.CancelFunc
}

func (c *cancelAfterSwap) SwapSanction(ctx context.Context, next domain.Sanction, expected int64) (domain.Sanction, error) {
	saved, err := c.PersistentStore.SwapSanction(ctx, next, expected)
	c.once.Do(c.cancel)
	return saved, err
}

func TestSweepInterruptedReturnsPartialReport(t *testing.T) {
	reporter := &captureReporter{}
	svc, clock := newTestService(t, WithBulkConcurrency(1), WithSweepReporter(reporter))
	for i := range 3 {
		mustCreateSpecific(t, svc, 2, i, 1)
	}
	clock.Advance(25 * time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc.store = &cancelAfterSwap{PersistentStore: svc.store, cancel: cancel}

	report, err := svc.Sweep(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if report.Candidates != 3 || report.Escalated != 1 || report.Failed != 2 || len(report.Items) != 3 {
		t.Fatalf("unexpected partial report %+v", report)
	}
	if len(reporter.reports) != 1 || reporter.reports[0].Escalated != 1 {
		t.Fatalf("partial report not delivered: %+v", reporter.reports)
	}

	n, err := svc.CheckAndEscalateExpired(context.Background())
	if err != nil || n != 2 {
		t.Fatalf("follow-up sweep = %d, %v", n, err)
	}
}
