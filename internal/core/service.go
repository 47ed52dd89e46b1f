package core

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"sanctioncore/internal/catalog"
	"sanctioncore/internal/infra/persistence/memory"
	"sanctioncore/pkg/domain"
)

// Engine defaults.
const (
	DefaultBulkConcurrency     = 4
	DefaultMaxMutationAttempts = 5
	DefaultReadAttempts        = 3
)

// Service is the sanction lifecycle engine: it generates sanctions from the
// catalog, owns every status transition and runs the escalation sweep.
// Every write goes through the rules engine and a versioned store swap.
type Service struct {
	store   domain.PersistentStore
	catalog catalog.Catalog
	engine  *domain.RulesEngine

	clock    func() time.Time
	newID    func() string
	randMu   sync.Mutex
	rnd      *rand.Rand
	logger   *slog.Logger
	metrics  MetricsRecorder
	tracer   trace.Tracer
	reporter SweepReporter

	bulkConcurrency     int
	maxMutationAttempts int
	readAttempts        int
}

// Option customises a Service.
type Option func(*Service)

// WithClock overrides the clock for deterministic testing.
func WithClock(clock func() time.Time) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithRand fixes the random source used for template selection.
func WithRand(r *rand.Rand) Option {
	return func(s *Service) { s.rnd = r }
}

// WithIDGenerator overrides sanction id generation.
func WithIDGenerator(fn func() string) Option {
	return func(s *Service) {
		if fn != nil {
			s.newID = fn
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m MetricsRecorder) Option {
	return func(s *Service) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithTracer sets the tracer used for operation spans.
func WithTracer(t trace.Tracer) Option {
	return func(s *Service) {
		if t != nil {
			s.tracer = t
		}
	}
}

// WithRulesEngine replaces the default rules engine.
func WithRulesEngine(e *domain.RulesEngine) Option {
	return func(s *Service) { s.engine = e }
}

// WithSweepReporter registers a receiver for sweep reports.
func WithSweepReporter(r SweepReporter) Option {
	return func(s *Service) { s.reporter = r }
}

// WithBulkConcurrency bounds the per-record fan-out of bulk operations.
func WithBulkConcurrency(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.bulkConcurrency = n
		}
	}
}

// WithMaxMutationAttempts bounds how often a write is re-run after a version conflict.
func WithMaxMutationAttempts(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxMutationAttempts = n
		}
	}
}

// WithReadAttempts bounds retries of transient read failures.
func WithReadAttempts(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.readAttempts = n
		}
	}
}

// NewService constructs a service backed by the supplied store and catalog.
func NewService(store domain.PersistentStore, cat catalog.Catalog, opts ...Option) *Service {
	s := &Service{
		store:               store,
		catalog:             cat,
		engine:              NewDefaultRulesEngine(),
		clock:               time.Now,
		newID:               uuid.NewString,
		logger:              defaultLogger(),
		metrics:             noopMetrics{},
		tracer:              defaultTracer(),
		bulkConcurrency:     DefaultBulkConcurrency,
		maxMutationAttempts: DefaultMaxMutationAttempts,
		readAttempts:        DefaultReadAttempts,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewInMemoryService creates a service over a fresh in-memory store and the built-in catalog.
func NewInMemoryService(opts ...Option) *Service {
	return NewService(memory.NewStore(), catalog.Default(), opts...)
}

// Store returns the underlying storage implementation.
func (s *Service) Store() domain.PersistentStore { return s.store }

// Catalog returns the template catalog the generator draws from.
func (s *Service) Catalog() catalog.Catalog { return s.catalog }

// Close releases the store.
func (s *Service) Close() error { return s.store.Close() }

// Health verifies the store answers a trivial query.
func (s *Service) Health(ctx context.Context) error {
	_, err := s.store.ListSanctions(ctx, domain.SanctionQuery{Limit: 1})
	return err
}

// now returns the service clock in UTC at millisecond precision, the
// resolution every backend persists.
func (s *Service) now() time.Time {
	return s.clock().UTC().Truncate(time.Millisecond)
}

func (s *Service) shuffle(n int, swap func(i, j int)) {
	if s.rnd == nil {
		rand.Shuffle(n, swap)
		return
	}
	s.randMu.Lock()
	defer s.randMu.Unlock()
	s.rnd.Shuffle(n, swap)
}
