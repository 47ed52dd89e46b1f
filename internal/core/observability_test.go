package core

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	"sanctioncore/pkg/domain"
)

func TestPrometheusMetricsTrackOperations(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics, err := NewPrometheusMetrics(reg)
	require.NoError(t, err)
	svc, clock := newTestService(t, WithMetrics(metrics), WithTracer(noop.NewTracerProvider().Tracer("test")))
	ctx := context.Background()

	s := mustCreateSpecific(t, svc, 2, 0, 1)
	_, err = svc.EscalateOne(ctx, s.ID)
	require.NoError(t, err)
	_, err = svc.CreateRandom(ctx, RandomRequest{Severity: 9})
	require.Error(t, err)

	mustCreateSpecific(t, svc, 3, 0, 1)
	clock.Advance(48 * time.Hour)
	_, err = svc.Sweep(ctx)
	require.NoError(t, err)

	assert.InDelta(t, 2, testutil.ToFloat64(metrics.operations.WithLabelValues("create_specific", "success")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.operations.WithLabelValues("create_random", "validation")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.escalations.WithLabelValues(PathManual)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.escalations.WithLabelValues(PathSweep)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.lastSweep), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.bulk.WithLabelValues("sweep", "succeeded")), 0)
	assert.Positive(t, testutil.CollectAndCount(metrics.durations, "sanctioncore_operation_duration_seconds"))
}

func TestPrometheusMetricsReuseRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewPrometheusMetrics(reg)
	require.NoError(t, err)
	second, err := NewPrometheusMetrics(reg)
	require.NoError(t, err)

	first.ObserveConflict("complete")
	second.ObserveConflict("complete")
	assert.InDelta(t, 2, testutil.ToFloat64(first.conflicts.WithLabelValues("complete")), 0)
}

func TestOutcomeClassification(t *testing.T) {
	cases := map[string]error{
		"success":    nil,
		"validation": domain.ErrInvalidSeverity{Severity: 0},
		"not_found":  fmt.Errorf("get: %w", domain.ErrNotFound{Entity: domain.EntitySanction, ID: "x"}),
		"conflict":   domain.ErrAlreadyCompleted{ID: "x"},
		"canceled":   fmt.Errorf("sweep interrupted: %w", context.Canceled),
		"error":      errors.New("disk on fire"),
	}
	for want, err := range cases {
		assert.Equal(t, want, Outcome(err), "%v", err)
	}
}

func TestTrackLogsUnexpectedFailures(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
	svc, _ := newTestService(t, WithLogger(logger))

	_, done := svc.track(context.Background(), "probe")
	done(errors.New("backend unavailable"))
	assert.Contains(t, buf.String(), `"operation":"probe"`)
	assert.Contains(t, buf.String(), "backend unavailable")

	buf.Reset()
	_, done = svc.track(context.Background(), "probe")
	done(domain.ErrNotFound{Entity: domain.EntitySanction, ID: "x"})
	assert.Empty(t, buf.String(), "expected rejections to stay below info level")
}
