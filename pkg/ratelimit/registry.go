package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for rate limit grants.
var (
	rateLimitGrantsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "callhub_rate_limit_grants_total",
		Help: "Total number of rate limit grants issued by operation class",
	}, []string{"class"})

	rateLimitWaitSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "callhub_rate_limit_wait_seconds",
		Help:    "Time spent waiting for a rate limit grant",
		Buckets: prometheus.DefBuckets,
	}, []string{"class"})

	rateLimitExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "callhub_rate_limit_exhausted_total",
		Help: "Total number of non-blocking acquires rejected with a spent budget",
	}, []string{"class"})
)

// Errors reported by the registry.
var (
	// ErrUnregisteredClass indicates a configuration mistake: an operation
	// referenced a class no policy was registered for. Callers must treat
	// this as fatal for the operation, not as a transient condition.
	ErrUnregisteredClass = errors.New("operation class not registered")

	// ErrExhausted is returned by TryAcquire when the budget for the class
	// is currently spent. Blocking Acquire never returns it.
	ErrExhausted = errors.New("rate limit exhausted")
)

// Registry holds the limiter for every registered operation class and is the
// single gate all remote calls pass through.
type Registry struct {
	logger zerolog.Logger

	mu       sync.RWMutex
	limiters map[Class]Limiter
}

// NewRegistry creates an empty registry.
func NewRegistry(logger zerolog.Logger) *Registry {
	return &Registry{
		logger:   logger,
		limiters: make(map[Class]Limiter),
	}
}

// Register installs the limiter implementing policy for class, replacing any
// previous registration.
func (r *Registry) Register(class Class, policy Policy) error {
	if class == "" {
		return errors.New("operation class must not be empty")
	}
	if err := policy.Validate(); err != nil {
		return fmt.Errorf("policy for class %q: %w", class, err)
	}

	r.mu.Lock()
	r.limiters[class] = newLimiter(policy)
	r.mu.Unlock()

	r.logger.Debug().
		Str("class", string(class)).
		Str("policy", policy.String()).
		Msg("Rate limit class registered")

	return nil
}

// RegisterLimiter installs a caller-provided limiter for class. Used to share
// a window across processes via SharedWindow.
func (r *Registry) RegisterLimiter(class Class, limiter Limiter) error {
	if class == "" {
		return errors.New("operation class must not be empty")
	}
	if limiter == nil {
		return fmt.Errorf("limiter for class %q must not be nil", class)
	}

	r.mu.Lock()
	r.limiters[class] = limiter
	r.mu.Unlock()

	return nil
}

// Registered reports whether a policy is installed for class.
func (r *Registry) Registered(class Class) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.limiters[class]
	return ok
}

// Classes returns all registered classes in sorted order.
func (r *Registry) Classes() []Class {
	r.mu.RLock()
	classes := make([]Class, 0, len(r.limiters))
	for class := range r.limiters {
		classes = append(classes, class)
	}
	r.mu.RUnlock()

	sort.Slice(classes, func(i, j int) bool { return classes[i] < classes[j] })
	return classes
}

// Acquire blocks until the class grants one call or ctx is cancelled.
// An unregistered class fails immediately with ErrUnregisteredClass.
func (r *Registry) Acquire(ctx context.Context, class Class) error {
	limiter, ok := r.limiter(class)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnregisteredClass, class)
	}

	start := time.Now()
	if err := limiter.Acquire(ctx); err != nil {
		return err
	}
	wait := time.Since(start)

	rateLimitGrantsTotal.WithLabelValues(string(class)).Inc()
	rateLimitWaitSeconds.WithLabelValues(string(class)).Observe(wait.Seconds())

	if wait > 10*time.Millisecond {
		r.logger.Debug().
			Str("class", string(class)).
			Dur("wait", wait).
			Msg("Rate limit grant delayed")
	}

	return nil
}

// TryAcquire consumes a grant without blocking. A spent budget is reported as
// ErrExhausted; an unregistered class as ErrUnregisteredClass.
func (r *Registry) TryAcquire(class Class) error {
	limiter, ok := r.limiter(class)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnregisteredClass, class)
	}

	if !limiter.TryAcquire() {
		rateLimitExhaustedTotal.WithLabelValues(string(class)).Inc()
		return fmt.Errorf("%w: %q", ErrExhausted, class)
	}

	rateLimitGrantsTotal.WithLabelValues(string(class)).Inc()
	return nil
}

func (r *Registry) limiter(class Class) (Limiter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	limiter, ok := r.limiters[class]
	return limiter, ok
}
