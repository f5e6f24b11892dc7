// Package remote defines the boundary to the CallHub REST endpoint: call
// descriptors, raw responses, and the HTTP transport that carries them.
// Everything above this package (batching, pagination, field resolution)
// talks to CallHub exclusively through the Invoker interface.
package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/dialops/callhub-client/pkg/ratelimit"
)

// Descriptor describes one remote call. Descriptors are built by callers,
// validated and dispatched by the batch executor, and consumed exactly once.
type Descriptor struct {
	// Class is the operation class the call is charged against.
	Class ratelimit.Class

	// Method is the HTTP method.
	Method string

	// Path is the endpoint path relative to the base URL, or an absolute
	// URL as handed out by pagination cursors.
	Path string

	// Query holds optional query parameters, merged with any already
	// present in Path.
	Query url.Values

	// ContentType describes Body. Required when Body is set.
	ContentType string

	// Body is the raw request payload. Nil means no body.
	Body []byte
}

// Response is the raw result of a completed exchange.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// IsSuccess reports whether the response carries a 2xx status.
func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// JSON decodes the response body into v.
func (r *Response) JSON(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("decode response body: %w", err)
	}
	return nil
}

// Invoker dispatches one described call against the remote endpoint.
// Implementations do not rate limit and do not retry; callers acquire a
// grant for the descriptor's class before invoking.
type Invoker interface {
	Invoke(ctx context.Context, desc Descriptor) (*Response, error)
}
