// Package callhub assembles the CallHub API operations on top of the
// rate-limited request engine: field resolution, batched contact creation,
// paginated reads, and do-not-call list maintenance.
package callhub

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/dialops/callhub-client/pkg/batch"
	"github.com/dialops/callhub-client/pkg/fields"
	"github.com/dialops/callhub-client/pkg/logging"
	"github.com/dialops/callhub-client/pkg/ratelimit"
	"github.com/dialops/callhub-client/pkg/remote"
)

// Operation classes. Every endpoint call is gated by one of these.
const (
	// ClassGeneral covers ordinary API calls.
	ClassGeneral ratelimit.Class = "general"

	// ClassBulkCreate covers the bulk contact import endpoint. CallHub
	// accepts one bulk payload per cooldown window; exceeding it locks
	// the whole account.
	ClassBulkCreate ratelimit.Class = "bulk_create"
)

// apiKeyEnv is consulted when Config.APIKey is empty.
const apiKeyEnv = "CALLHUB_API_KEY"

// Config holds the client configuration.
type Config struct {
	// APIKey authenticates every request. Falls back to the
	// CALLHUB_API_KEY environment variable.
	APIKey string

	// BaseURL of the CallHub API. Defaults to the public endpoint.
	BaseURL string

	// UserAgent for outbound requests.
	UserAgent string

	// HTTPClient overrides the default HTTP client.
	HTTPClient *http.Client

	// Redis enables rate-limit state shared across processes. Optional;
	// when nil every limit is local to this process.
	Redis *redis.Client

	// RateLimits overrides rate-limit policies per operation class.
	// Classes not listed keep the defaults.
	RateLimits map[ratelimit.Class]ratelimit.Policy

	// DisableRateLimits turns every limiter off. Exceeding CallHub's
	// bulk import limit locks the account, so leave this unset outside
	// of tests.
	DisableRateLimits bool

	// Concurrency caps parallel requests in batch operations.
	Concurrency int
}

// DefaultRateLimits returns the conservative limits the client ships with:
// 13 general calls per second (CallHub allows 800 per minute) and one bulk
// import per 70 seconds.
func DefaultRateLimits() map[ratelimit.Class]ratelimit.Policy {
	return map[ratelimit.Class]ratelimit.Policy{
		ClassGeneral:    ratelimit.Window(13, time.Second),
		ClassBulkCreate: ratelimit.Cooldown(70 * time.Second),
	}
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(apiKey string) Config {
	return Config{
		APIKey:      apiKey,
		BaseURL:     remote.DefaultBaseURL,
		RateLimits:  DefaultRateLimits(),
		Concurrency: batch.DefaultConcurrency,
	}
}

// Client is the CallHub API client.
type Client struct {
	invoker     remote.Invoker
	limits      *ratelimit.Registry
	resolver    *fields.Resolver
	executor    *batch.Executor
	baseURL     string
	concurrency int
	logger      zerolog.Logger
}

// New creates a CallHub client.
func New(cfg Config) (*Client, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv(apiKeyEnv)
	}
	if apiKey == "" {
		return nil, fmt.Errorf("api key is required: set Config.APIKey or the %s environment variable", apiKeyEnv)
	}

	logger := logging.NewLogger("callhub")

	transport, err := remote.NewTransport(remote.Config{
		BaseURL:    cfg.BaseURL,
		APIKey:     apiKey,
		UserAgent:  cfg.UserAgent,
		HTTPClient: cfg.HTTPClient,
	})
	if err != nil {
		return nil, fmt.Errorf("transport: %w", err)
	}

	policies := DefaultRateLimits()
	for class, policy := range cfg.RateLimits {
		policies[class] = policy
	}

	limits := ratelimit.NewRegistry(logger)
	for class, policy := range policies {
		if cfg.DisableRateLimits {
			policy.Disabled = true
		}

		if cfg.Redis != nil && !policy.Disabled {
			shared, err := ratelimit.NewSharedWindow(cfg.Redis, class, policy, logger)
			if err != nil {
				return nil, fmt.Errorf("shared rate limit for %q: %w", class, err)
			}
			if err := limits.RegisterLimiter(class, shared); err != nil {
				return nil, fmt.Errorf("shared rate limit for %q: %w", class, err)
			}
			continue
		}

		if err := limits.Register(class, policy); err != nil {
			return nil, fmt.Errorf("rate limit for %q: %w", class, err)
		}
	}

	resolver, err := fields.NewResolver(transport, limits, ClassGeneral, logger)
	if err != nil {
		return nil, fmt.Errorf("field resolver: %w", err)
	}

	executor, err := batch.NewExecutor(transport, limits, batch.Config{Concurrency: cfg.Concurrency})
	if err != nil {
		return nil, fmt.Errorf("batch executor: %w", err)
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = remote.DefaultBaseURL
	}

	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = batch.DefaultConcurrency
	}

	return &Client{
		invoker:     transport,
		limits:      limits,
		resolver:    resolver,
		executor:    executor,
		baseURL:     strings.TrimSuffix(baseURL, "/"),
		concurrency: concurrency,
		logger:      logger,
	}, nil
}

// Fields returns the contact field schema, fetching it on first use.
func (c *Client) Fields(ctx context.Context) ([]fields.Field, error) {
	schema, err := c.resolver.Schema(ctx)
	if err != nil {
		return nil, err
	}
	return schema.Fields(), nil
}

// RefreshFields discards the cached schema and fetches a fresh one.
func (c *Client) RefreshFields(ctx context.Context) ([]fields.Field, error) {
	schema, err := c.resolver.Refresh(ctx)
	if err != nil {
		return nil, err
	}
	return schema.Fields(), nil
}

// call performs one rate-limited request.
func (c *Client) call(ctx context.Context, desc remote.Descriptor) (*remote.Response, error) {
	if err := c.limits.Acquire(ctx, desc.Class); err != nil {
		return nil, err
	}
	return c.invoker.Invoke(ctx, desc)
}
