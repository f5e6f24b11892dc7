package remote

import (
	"fmt"
)

// maxErrorBodyBytes caps how much of a failed response body an error carries.
const maxErrorBodyBytes = 512

// TransportError describes a failed exchange with the CallHub endpoint:
// the call never completed, or completed with a non-success status.
type TransportError struct {
	// StatusCode is the HTTP status, zero when the call never completed.
	StatusCode int

	// Status is the HTTP status line, empty when the call never completed.
	Status string

	// Endpoint is the path the call was addressed to.
	Endpoint string

	// Body holds the first bytes of the server's error response, if any.
	Body []byte

	// Err is the underlying network error, if any.
	Err error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("callhub transport: %s: %v", e.Endpoint, e.Err)
	}
	if len(e.Body) > 0 {
		return fmt.Sprintf("callhub transport: %s returned %s: %s", e.Endpoint, e.Status, e.Body)
	}
	return fmt.Sprintf("callhub transport: %s returned %s", e.Endpoint, e.Status)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *TransportError) Unwrap() error {
	return e.Err
}

func truncateBody(body []byte) []byte {
	if len(body) <= maxErrorBodyBytes {
		return body
	}
	return body[:maxErrorBodyBytes]
}
