package remote

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/dialops/callhub-client/pkg/logging"
)

// Prometheus metrics for CallHub requests.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "callhub_requests_total",
		Help: "Total CallHub requests by endpoint and status",
	}, []string{"endpoint", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "callhub_request_duration_seconds",
		Help:    "CallHub request duration in seconds by endpoint",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	}, []string{"endpoint"})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "callhub_errors_total",
		Help: "Total CallHub errors by class",
	}, []string{"class"})
)

// ErrorClass represents a classification of HTTP errors.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx client errors.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassRateLimit represents 429 responses. Seeing one means the
	// client-side limiter is configured looser than the account budget.
	ErrorClassRateLimit ErrorClass = "rate_limit"

	// ErrorClassNetwork represents network/timeout errors.
	ErrorClassNetwork ErrorClass = "network"
)

// DefaultBaseURL is the production CallHub API root.
const DefaultBaseURL = "https://api.callhub.io"

const defaultUserAgent = "callhub-client/1.0"

// Config holds the transport configuration.
type Config struct {
	// BaseURL is the CallHub API root. Defaults to DefaultBaseURL.
	BaseURL string

	// APIKey is the account key, sent as "Authorization: Token <key>".
	APIKey string

	// UserAgent identifies the application to CallHub.
	UserAgent string

	// HTTPClient optionally replaces the default client. Its timeout also
	// bounds calls that keep running after a batch was cancelled.
	HTTPClient *http.Client
}

// Transport is the HTTP implementation of Invoker.
type Transport struct {
	baseURL    *url.URL
	apiKey     string
	userAgent  string
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewTransport creates a transport for the CallHub API.
func NewTransport(cfg Config) (*Transport, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("api key is required")
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("base url %q must be absolute", baseURL)
	}

	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = defaultUserAgent
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: 30 * time.Second,
		}
	}

	return &Transport{
		baseURL:    parsed,
		apiKey:     cfg.APIKey,
		userAgent:  userAgent,
		httpClient: httpClient,
		logger:     logging.NewLogger("transport"),
	}, nil
}

// Invoke performs one HTTP exchange described by desc. A non-success status
// or a network failure is reported as a *TransportError; the descriptor is
// never retried here.
func (t *Transport) Invoke(ctx context.Context, desc Descriptor) (*Response, error) {
	target, err := t.resolveURL(desc)
	if err != nil {
		return nil, err
	}
	endpoint := target.Path

	startTime := time.Now()
	defer func() {
		requestDuration.WithLabelValues(endpoint).Observe(time.Since(startTime).Seconds())
	}()

	var body io.Reader
	if desc.Body != nil {
		body = bytes.NewReader(desc.Body)
	}

	req, err := http.NewRequestWithContext(ctx, desc.Method, target.String(), body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	requestID := uuid.NewString()
	req.Header.Set("Authorization", "Token "+t.apiKey)
	req.Header.Set("User-Agent", t.userAgent)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if desc.ContentType != "" {
		req.Header.Set("Content-Type", desc.ContentType)
	}

	t.logger.Debug().
		Str("method", desc.Method).
		Str("endpoint", endpoint).
		Str("class", string(desc.Class)).
		Str("request_id", requestID).
		Msg("Dispatching CallHub request")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		errorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		requestsTotal.WithLabelValues(endpoint, "network_error").Inc()
		t.logger.Error().Err(err).Str("endpoint", endpoint).Msg("HTTP request failed")
		return nil, &TransportError{Endpoint: endpoint, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		errorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		requestsTotal.WithLabelValues(endpoint, "network_error").Inc()
		return nil, &TransportError{Endpoint: endpoint, Err: fmt.Errorf("read response body: %w", err)}
	}

	requestsTotal.WithLabelValues(endpoint, fmt.Sprintf("%d", resp.StatusCode)).Inc()

	if resp.StatusCode >= 400 {
		errClass := classifyStatus(resp.StatusCode)
		errorsTotal.WithLabelValues(string(errClass)).Inc()

		t.logger.Warn().
			Str("endpoint", endpoint).
			Int("status", resp.StatusCode).
			Str("error_class", string(errClass)).
			Dur("duration", time.Since(startTime)).
			Msg("CallHub request error")

		return nil, &TransportError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Endpoint:   endpoint,
			Body:       truncateBody(data),
		}
	}

	t.logger.Debug().
		Str("endpoint", endpoint).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(startTime)).
		Msg("CallHub request completed")

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       data,
	}, nil
}

// resolveURL turns a descriptor path into the absolute request URL.
// Pagination cursors are absolute URLs and must stay on the configured host,
// the auth token is never sent elsewhere.
func (t *Transport) resolveURL(desc Descriptor) (*url.URL, error) {
	var target *url.URL

	if strings.HasPrefix(desc.Path, "http://") || strings.HasPrefix(desc.Path, "https://") {
		parsed, err := url.Parse(desc.Path)
		if err != nil {
			return nil, fmt.Errorf("parse cursor url: %w", err)
		}
		if parsed.Host != t.baseURL.Host {
			return nil, fmt.Errorf("cursor url host %q does not match base host %q", parsed.Host, t.baseURL.Host)
		}
		target = parsed
	} else {
		joined := *t.baseURL
		joined.Path = strings.TrimSuffix(t.baseURL.Path, "/") + "/" + strings.TrimPrefix(desc.Path, "/")
		target = &joined
	}

	if len(desc.Query) > 0 {
		query := target.Query()
		for key, values := range desc.Query {
			for _, value := range values {
				query.Add(key, value)
			}
		}
		target.RawQuery = query.Encode()
	}

	return target, nil
}

func classifyStatus(status int) ErrorClass {
	switch {
	case status == http.StatusTooManyRequests:
		return ErrorClassRateLimit
	case status >= 400 && status < 500:
		return ErrorClassClient
	default:
		return ErrorClassServer
	}
}
