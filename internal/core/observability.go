package core

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"sanctioncore/pkg/domain"
)

const tracerName = "sanctioncore/core"

// Escalation paths distinguished in metrics and logs.
const (
	PathManual = "manual"
	PathSweep  = "sweep"
)

// MetricsRecorder receives engine measurements.
type MetricsRecorder interface {
	ObserveOperation(operation, outcome string, duration time.Duration)
	ObserveEscalations(path string, n int)
	ObserveBulk(operation string, succeeded, skipped, failed int)
	ObserveConflict(operation string)
}

type noopMetrics struct{}

func (noopMetrics) ObserveOperation(string, string, time.Duration) {}
func (noopMetrics) ObserveEscalations(string, int)                 {}
func (noopMetrics) ObserveBulk(string, int, int, int)              {}
func (noopMetrics) ObserveConflict(string)                         {}

// PrometheusMetrics implements MetricsRecorder with client_golang collectors.
type PrometheusMetrics struct {
	operations  *prometheus.CounterVec
	durations   *prometheus.HistogramVec
	escalations *prometheus.CounterVec
	bulk        *prometheus.CounterVec
	conflicts   *prometheus.CounterVec
	lastSweep   prometheus.Gauge
}

// NewPrometheusMetrics builds the collectors and registers them on reg.
// Collectors already registered (for example by a previous service sharing
// the registry) are reused.
func NewPrometheusMetrics(reg prometheus.Registerer) (*PrometheusMetrics, error) {
	m := &PrometheusMetrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sanctioncore",
			Name:      "operations_total",
			Help:      "Engine operations by outcome.",
		}, []string{"operation", "outcome"}),
		durations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "sanctioncore",
			Name:      "operation_duration_seconds",
			Help:      "Engine operation latency.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
		}, []string{"operation"}),
		escalations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sanctioncore",
			Name:      "escalations_total",
			Help:      "Sanction escalations by path.",
		}, []string{"path"}),
		bulk: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sanctioncore",
			Name:      "bulk_records_total",
			Help:      "Records visited by bulk operations by result.",
		}, []string{"operation", "result"}),
		conflicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sanctioncore",
			Name:      "version_conflicts_total",
			Help:      "Optimistic concurrency conflicts retried by the engine.",
		}, []string{"operation"}),
		lastSweep: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "sanctioncore",
			Name:      "last_sweep_escalated",
			Help:      "Sanctions escalated by the most recent sweep.",
		}),
	}
	var err error
	if m.operations, err = registerOrReuse(reg, m.operations); err != nil {
		return nil, err
	}
	if m.durations, err = registerOrReuse(reg, m.durations); err != nil {
		return nil, err
	}
	if m.escalations, err = registerOrReuse(reg, m.escalations); err != nil {
		return nil, err
	}
	if m.bulk, err = registerOrReuse(reg, m.bulk); err != nil {
		return nil, err
	}
	if m.conflicts, err = registerOrReuse(reg, m.conflicts); err != nil {
		return nil, err
	}
	if m.lastSweep, err = registerOrReuse(reg, m.lastSweep); err != nil {
		return nil, err
	}
	return m, nil
}

func registerOrReuse[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// ObserveOperation counts an operation by outcome and records its duration.
func (m *PrometheusMetrics) ObserveOperation(operation, outcome string, d time.Duration) {
	m.operations.WithLabelValues(operation, outcome).Inc()
	m.durations.WithLabelValues(operation).Observe(d.Seconds())
}

// ObserveEscalations adds n escalations on path; sweeps also set the last-sweep gauge.
func (m *PrometheusMetrics) ObserveEscalations(path string, n int) {
	m.escalations.WithLabelValues(path).Add(float64(n))
	if path == PathSweep {
		m.lastSweep.Set(float64(n))
	}
}

// ObserveBulk adds the per-record outcomes of a bulk operation.
func (m *PrometheusMetrics) ObserveBulk(operation string, succeeded, skipped, failed int) {
	m.bulk.WithLabelValues(operation, "succeeded").Add(float64(succeeded))
	m.bulk.WithLabelValues(operation, "skipped").Add(float64(skipped))
	m.bulk.WithLabelValues(operation, "failed").Add(float64(failed))
}

// ObserveConflict counts a version conflict hit by operation.
func (m *PrometheusMetrics) ObserveConflict(operation string) {
	m.conflicts.WithLabelValues(operation).Inc()
}

// Outcome classifies err for metric labels and log fields.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case domain.IsValidation(err):
		return "validation"
	case domain.IsNotFound(err):
		return "not_found"
	case domain.IsConflict(err):
		return "conflict"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	}
	return "error"
}

// track opens a span for operation and returns the function that closes it,
// records metrics and logs unexpected failures.
func (s *Service) track(ctx context.Context, operation string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "sanction."+operation,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attrs...),
	)
	return ctx, func(err error) {
		outcome := Outcome(err)
		s.metrics.ObserveOperation(operation, outcome, time.Since(start))
		span.SetAttributes(attribute.String("sanction.outcome", outcome))
		if err != nil {
			span.RecordError(err)
			if outcome == "error" {
				span.SetStatus(codes.Error, err.Error())
				s.logger.ErrorContext(ctx, "operation failed", "operation", operation, "error", err)
			} else {
				s.logger.DebugContext(ctx, "operation rejected", "operation", operation, "outcome", outcome, "error", err)
			}
		}
		span.End()
	}
}

func defaultTracer() trace.Tracer { return otel.Tracer(tracerName) }

func defaultLogger() *slog.Logger { return slog.Default().With("component", "sanction-engine") }
