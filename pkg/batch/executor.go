package batch

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/dialops/callhub-client/pkg/logging"
	"github.com/dialops/callhub-client/pkg/ratelimit"
	"github.com/dialops/callhub-client/pkg/remote"
)

// Prometheus metrics for batch execution.
var (
	batchSize = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "callhub_batch_size",
		Help:    "Number of descriptors per executed batch",
		Buckets: []float64{1, 2, 5, 10, 25, 50, 100, 250},
	})

	batchSlotsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "callhub_batch_slots_total",
		Help: "Per-slot batch outcomes",
	}, []string{"outcome"})

	batchInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "callhub_batch_in_flight",
		Help: "Batch slots currently dispatched to the remote",
	})
)

// DefaultConcurrency bounds parallel dispatch when the caller does not ask
// for a specific worker count.
const DefaultConcurrency = 8

// Config holds executor configuration.
type Config struct {
	// Concurrency is the worker count used when Execute receives no
	// positive override.
	Concurrency int
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig() Config {
	return Config{
		Concurrency: DefaultConcurrency,
	}
}

// Executor runs descriptor batches through the rate limiter and the remote
// boundary.
type Executor struct {
	invoker     remote.Invoker
	limits      *ratelimit.Registry
	concurrency int
	logger      zerolog.Logger
}

// NewExecutor creates an executor dispatching through invoker, gated by the
// given rate limit registry.
func NewExecutor(invoker remote.Invoker, limits *ratelimit.Registry, cfg Config) (*Executor, error) {
	if invoker == nil {
		return nil, fmt.Errorf("invoker is required")
	}
	if limits == nil {
		return nil, fmt.Errorf("rate limit registry is required")
	}

	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	return &Executor{
		invoker:     invoker,
		limits:      limits,
		concurrency: concurrency,
		logger:      logging.NewLogger("batch"),
	}, nil
}

// Execute dispatches every descriptor and returns once each slot has an
// outcome. concurrency caps the parallel workers; a value <= 0 falls back to
// the executor's configured default.
//
// The returned error is non-nil only for configuration mistakes detected
// before any call is dispatched. Per-slot failures land in the Result and
// never interrupt the remaining slots.
//
// Cancelling ctx stops admitting further descriptors: unadmitted slots fail
// with the context error, while calls already handed to the remote finish
// naturally and keep their real outcome.
func (e *Executor) Execute(ctx context.Context, descs []remote.Descriptor, concurrency int) (*Result, error) {
	if err := e.checkClasses(descs); err != nil {
		return nil, err
	}

	result := &Result{Outcomes: make([]Outcome, len(descs))}
	if len(descs) == 0 {
		return result, nil
	}

	if concurrency <= 0 {
		concurrency = e.concurrency
	}
	if concurrency > len(descs) {
		concurrency = len(descs)
	}

	start := time.Now()
	batchSize.Observe(float64(len(descs)))
	e.logger.Info().
		Int("batch_size", len(descs)).
		Int("concurrency", concurrency).
		Msg("Executing batch")

	// Calls already in flight when ctx is cancelled cannot be un-sent, so
	// they run on a detached context and report what really happened. The
	// transport's own timeout still bounds them.
	dispatchCtx := context.WithoutCancel(ctx)

	jobs := make(chan int)
	var wg sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				result.Outcomes[idx] = e.executeSlot(ctx, dispatchCtx, idx, descs[idx])
			}
		}()
	}

	// Admission loop. On cancellation every slot not yet handed to a worker
	// fails with the context error.
admit:
	for idx := range descs {
		select {
		case jobs <- idx:
		case <-ctx.Done():
			for i := idx; i < len(descs); i++ {
				result.Outcomes[i] = Outcome{Err: ctx.Err()}
			}
			e.logger.Warn().
				Int("admitted", idx).
				Int("batch_size", len(descs)).
				Msg("Batch admission stopped by cancellation")
			break admit
		}
	}
	close(jobs)
	wg.Wait()

	e.logger.Info().
		Int("batch_size", len(descs)).
		Int("succeeded", result.Succeeded()).
		Int("failed", result.Failed()).
		Dur("duration", time.Since(start)).
		Msg("Batch complete")

	return result, nil
}

// executeSlot runs one descriptor: admission check, rate limit grant, then
// dispatch on the detached context.
func (e *Executor) executeSlot(ctx, dispatchCtx context.Context, idx int, desc remote.Descriptor) Outcome {
	if err := ctx.Err(); err != nil {
		batchSlotsTotal.WithLabelValues("failure").Inc()
		return Outcome{Err: err}
	}

	// Waiting for a grant is part of admission: a cancelled batch abandons
	// slots still queued at the limiter.
	if err := e.limits.Acquire(ctx, desc.Class); err != nil {
		batchSlotsTotal.WithLabelValues("failure").Inc()
		return Outcome{Err: err}
	}

	batchInFlight.Inc()
	resp, err := e.invoker.Invoke(dispatchCtx, desc)
	batchInFlight.Dec()

	if err != nil {
		batchSlotsTotal.WithLabelValues("failure").Inc()
		e.logger.Warn().
			Err(err).
			Int("slot", idx).
			Str("endpoint", desc.Path).
			Str("class", string(desc.Class)).
			Msg("Batch slot failed")
		return Outcome{Err: err}
	}

	batchSlotsTotal.WithLabelValues("success").Inc()
	return Outcome{Response: resp}
}

// checkClasses verifies every descriptor references a registered operation
// class. Unknown classes are a configuration mistake and fail the whole
// batch before anything is dispatched.
func (e *Executor) checkClasses(descs []remote.Descriptor) error {
	var missing []string
	seen := make(map[ratelimit.Class]struct{})
	for _, desc := range descs {
		if _, ok := seen[desc.Class]; ok {
			continue
		}
		seen[desc.Class] = struct{}{}
		if !e.limits.Registered(desc.Class) {
			missing = append(missing, string(desc.Class))
		}
	}
	if len(missing) == 0 {
		return nil
	}
	sort.Strings(missing)
	return fmt.Errorf("%w: %s", ratelimit.ErrUnregisteredClass, strings.Join(missing, ", "))
}
