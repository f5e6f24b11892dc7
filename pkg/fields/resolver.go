package fields

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/dialops/callhub-client/pkg/ratelimit"
	"github.com/dialops/callhub-client/pkg/remote"
)

// Prometheus metrics for field schema handling.
var (
	schemaFetchesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "callhub_field_schema_fetches_total",
		Help: "Total number of field schema fetches from the remote",
	})

	fieldCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "callhub_field_count",
		Help: "Number of fields in the current schema snapshot",
	})
)

// fieldsPath is the endpoint reporting the account's contact fields.
const fieldsPath = "/v1/contacts/fields/"

// Resolver caches the account's field schema for the lifetime of a session.
// The first access fetches the schema with exactly one rate-limited call;
// concurrent first accesses share that one call. The snapshot never changes
// behind a caller's back, Refresh is the only invalidation.
type Resolver struct {
	invoker remote.Invoker
	limits  *ratelimit.Registry
	class   ratelimit.Class
	logger  zerolog.Logger

	fetchMu  sync.Mutex
	snapshot atomic.Pointer[Schema]
}

// NewResolver creates a resolver fetching the schema under the given
// operation class.
func NewResolver(invoker remote.Invoker, limits *ratelimit.Registry, class ratelimit.Class, logger zerolog.Logger) (*Resolver, error) {
	if invoker == nil {
		return nil, fmt.Errorf("invoker is required")
	}
	if limits == nil {
		return nil, fmt.Errorf("rate limit registry is required")
	}
	if !limits.Registered(class) {
		return nil, fmt.Errorf("%w: %q", ratelimit.ErrUnregisteredClass, class)
	}

	return &Resolver{
		invoker: invoker,
		limits:  limits,
		class:   class,
		logger:  logger,
	}, nil
}

// Schema returns the current snapshot, fetching it on first use.
func (r *Resolver) Schema(ctx context.Context) (*Schema, error) {
	if snapshot := r.snapshot.Load(); snapshot != nil {
		return snapshot, nil
	}

	r.fetchMu.Lock()
	defer r.fetchMu.Unlock()

	// A concurrent caller may have completed the fetch while we waited.
	if snapshot := r.snapshot.Load(); snapshot != nil {
		return snapshot, nil
	}

	return r.fetch(ctx)
}

// Resolve maps the requested names to fields, fetching the schema on first
// use. Unknown names fail with a *UnknownFieldError listing all of them.
func (r *Resolver) Resolve(ctx context.Context, names []string) (map[string]Field, error) {
	schema, err := r.Schema(ctx)
	if err != nil {
		return nil, err
	}
	return schema.Resolve(names)
}

// Refresh discards the cached snapshot and fetches a fresh one. Callers that
// created fields mid-session use this to make them resolvable.
func (r *Resolver) Refresh(ctx context.Context) (*Schema, error) {
	r.fetchMu.Lock()
	defer r.fetchMu.Unlock()
	return r.fetch(ctx)
}

// fetch performs the rate-limited schema call and swaps the snapshot in
// wholesale. Callers must hold fetchMu.
func (r *Resolver) fetch(ctx context.Context) (*Schema, error) {
	if err := r.limits.Acquire(ctx, r.class); err != nil {
		return nil, err
	}

	resp, err := r.invoker.Invoke(ctx, remote.Descriptor{
		Class:  r.class,
		Method: http.MethodGet,
		Path:   fieldsPath,
	})
	if err != nil {
		return nil, fmt.Errorf("fetch field schema: %w", err)
	}

	var envelope struct {
		Count   int     `json:"count"`
		Results []Field `json:"results"`
	}
	if err := resp.JSON(&envelope); err != nil {
		return nil, fmt.Errorf("fetch field schema: %w", err)
	}

	schema := NewSchema(envelope.Results, time.Now())
	r.snapshot.Store(schema)

	schemaFetchesTotal.Inc()
	fieldCount.Set(float64(schema.Len()))

	r.logger.Info().
		Int("fields", schema.Len()).
		Msg("Field schema fetched")

	return schema, nil
}
