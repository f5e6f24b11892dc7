// Package testutil provides testing utilities for the CallHub client.
package testutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"time"
)

// MockResponse defines the behavior of a mock CallHub endpoint.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// RecordedRequest is one request the mock server received.
type RecordedRequest struct {
	Method string
	Path   string
	Query  url.Values
	Header http.Header
	Body   []byte
	At     time.Time
}

// MockCallHub is a configurable mock CallHub API server. It records every
// request with a timestamp so tests can assert call counts and pacing.
type MockCallHub struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]func(w http.ResponseWriter, r *http.Request)
	requests []RecordedRequest
}

// NewMockCallHub creates a new mock CallHub server.
func NewMockCallHub() *MockCallHub {
	mock := &MockCallHub{
		handlers: make(map[string]func(w http.ResponseWriter, r *http.Request)),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		r.Body = io.NopCloser(bytes.NewReader(body))

		mock.mu.Lock()
		mock.requests = append(mock.requests, RecordedRequest{
			Method: r.Method,
			Path:   r.URL.Path,
			Query:  r.URL.Query(),
			Header: r.Header.Clone(),
			Body:   body,
			At:     time.Now(),
		})
		handler, exists := mock.handlers[r.URL.Path]
		mock.mu.Unlock()

		if exists {
			handler(w, r)
			return
		}

		mock.defaultHandler(w, r)
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockCallHub) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockCallHub) Close() {
	m.server.Close()
}

// Reset clears the recorded requests.
func (m *MockCallHub) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = nil
}

// SetHandler sets a custom handler for a specific path.
func (m *MockCallHub) SetHandler(path string, handler func(w http.ResponseWriter, r *http.Request)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a fixed response for a path.
func (m *MockCallHub) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		if resp.Delay > 0 {
			time.Sleep(resp.Delay)
		}

		for key, value := range resp.Headers {
			w.Header().Set(key, value)
		}
		if resp.Headers["Content-Type"] == "" {
			w.Header().Set("Content-Type", "application/json")
		}

		w.WriteHeader(resp.StatusCode)
		if resp.Body != "" {
			w.Write([]byte(resp.Body))
		}
	})
}

// SetListing serves a paginated listing at path. records are raw JSON
// objects; they are split into pages of pageSize with CallHub's envelope
// and absolute next/previous cursors.
func (m *MockCallHub) SetListing(path string, records []string, pageSize int) {
	if pageSize <= 0 {
		pageSize = 10
	}

	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		page := 1
		if raw := r.URL.Query().Get("page"); raw != "" {
			if n, err := strconv.Atoi(raw); err == nil && n > 0 {
				page = n
			}
		}

		start := (page - 1) * pageSize
		end := start + pageSize
		if start > len(records) {
			start = len(records)
		}
		if end > len(records) {
			end = len(records)
		}

		results := make([]json.RawMessage, 0, end-start)
		for _, rec := range records[start:end] {
			results = append(results, json.RawMessage(rec))
		}

		cursor := func(n int) *string {
			u := fmt.Sprintf("%s%s?page=%d", m.URL(), path, n)
			return &u
		}
		env := struct {
			Count    int               `json:"count"`
			Next     *string           `json:"next"`
			Previous *string           `json:"previous"`
			Results  []json.RawMessage `json:"results"`
		}{Count: len(records), Results: results}
		if end < len(records) {
			env.Next = cursor(page + 1)
		}
		if page > 1 {
			env.Previous = cursor(page - 1)
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(env)
	})
}

// RequestCount returns the total number of recorded requests.
func (m *MockCallHub) RequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.requests)
}

// Requests returns a copy of all recorded requests in arrival order.
func (m *MockCallHub) Requests() []RecordedRequest {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]RecordedRequest, len(m.requests))
	copy(out, m.requests)
	return out
}

// RequestsFor returns the recorded requests for one path, in arrival order.
func (m *MockCallHub) RequestsFor(path string) []RecordedRequest {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []RecordedRequest
	for _, req := range m.requests {
		if req.Path == path {
			out = append(out, req)
		}
	}
	return out
}

// LastRequest returns the most recent recorded request, or nil.
func (m *MockCallHub) LastRequest() *RecordedRequest {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.requests) == 0 {
		return nil
	}
	req := m.requests[len(m.requests)-1]
	return &req
}

// defaultHandler answers unmatched paths the way CallHub's API does.
func (m *MockCallHub) defaultHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusNotFound)
	w.Write([]byte(`{"detail": "Not found."}`))
}

// FieldsBody is the canonical contact field schema served by the mock.
const FieldsBody = `{"count": 4, "results": [` +
	`{"id": 0, "name": "phone number"}, {"id": 1, "name": "mobile number"}, ` +
	`{"id": 2, "name": "last name"}, {"id": 3, "name": "first name"}]}`

// NewFieldsResponse creates the standard contact fields response.
func NewFieldsResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       FieldsBody,
	}
}

// NewBulkAcceptedResponse creates the response CallHub sends when a bulk
// import has been queued.
func NewBulkAcceptedResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       `{"message": "Import in progress. You will get an email when import is complete"}`,
	}
}

// NewBulkRejectedResponse creates a bulk create response whose message
// reports a domain failure instead of a queued import.
func NewBulkRejectedResponse(message string) MockResponse {
	body, _ := json.Marshal(map[string]string{"message": message})
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       string(body),
	}
}

// NewRateLimitedResponse creates a 429 Too Many Requests response.
func NewRateLimitedResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       `{"detail": "Request was throttled."}`,
	}
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"detail": "Internal server error"}`,
	}
}
