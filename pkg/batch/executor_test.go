package batch

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/dialops/callhub-client/pkg/ratelimit"
	"github.com/dialops/callhub-client/pkg/remote"
)

// stubInvoker records calls and answers via an optional handler.
type stubInvoker struct {
	mu          sync.Mutex
	calls       int
	inFlight    int
	maxInFlight int
	delay       time.Duration
	handler     func(desc remote.Descriptor) (*remote.Response, error)
}

func (s *stubInvoker) Invoke(ctx context.Context, desc remote.Descriptor) (*remote.Response, error) {
	s.mu.Lock()
	s.calls++
	s.inFlight++
	if s.inFlight > s.maxInFlight {
		s.maxInFlight = s.inFlight
	}
	delay := s.delay
	handler := s.handler
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.inFlight--
		s.mu.Unlock()
	}()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if handler != nil {
		return handler(desc)
	}
	return &remote.Response{StatusCode: 200, Body: []byte(`{}`)}, nil
}

func (s *stubInvoker) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *stubInvoker) peakConcurrency() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.maxInFlight
}

func newTestRegistry(t *testing.T) *ratelimit.Registry {
	t.Helper()

	logger := zerolog.New(os.Stderr).Level(zerolog.Disabled)
	limits := ratelimit.NewRegistry(logger)
	if err := limits.Register("general", ratelimit.Unlimited()); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	return limits
}

func newTestExecutor(t *testing.T, invoker remote.Invoker, limits *ratelimit.Registry) *Executor {
	t.Helper()

	executor, err := NewExecutor(invoker, limits, DefaultConfig())
	if err != nil {
		t.Fatalf("NewExecutor() error = %v", err)
	}
	return executor
}

// indexedDescs builds n descriptors of the given class, each carrying its
// slot index in a query parameter so a handler can identify it.
func indexedDescs(n int, class ratelimit.Class) []remote.Descriptor {
	descs := make([]remote.Descriptor, n)
	for i := range descs {
		descs[i] = remote.Descriptor{
			Class:  class,
			Method: "POST",
			Path:   "/v1/contacts/",
			Query:  url.Values{"i": {strconv.Itoa(i)}},
		}
	}
	return descs
}

func slotIndex(desc remote.Descriptor) int {
	idx, _ := strconv.Atoi(desc.Query.Get("i"))
	return idx
}

func TestNewExecutor_Validation(t *testing.T) {
	limits := newTestRegistry(t)

	if _, err := NewExecutor(nil, limits, DefaultConfig()); err == nil {
		t.Error("NewExecutor(nil invoker) = nil error, want error")
	}
	if _, err := NewExecutor(&stubInvoker{}, nil, DefaultConfig()); err == nil {
		t.Error("NewExecutor(nil limits) = nil error, want error")
	}
}

func TestExecute_EmptyBatch(t *testing.T) {
	invoker := &stubInvoker{}
	executor := newTestExecutor(t, invoker, newTestRegistry(t))

	result, err := executor.Execute(context.Background(), nil, 0)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if len(result.Outcomes) != 0 {
		t.Errorf("Outcomes = %d, want 0", len(result.Outcomes))
	}
	if invoker.callCount() != 0 {
		t.Errorf("calls = %d, want 0", invoker.callCount())
	}
}

func TestExecute_UnregisteredClassFailsBeforeDispatch(t *testing.T) {
	invoker := &stubInvoker{}
	executor := newTestExecutor(t, invoker, newTestRegistry(t))

	descs := []remote.Descriptor{
		{Class: "general", Method: "GET", Path: "/v1/contacts/"},
		{Class: "billing", Method: "GET", Path: "/v1/billing/"},
		{Class: "analytics", Method: "GET", Path: "/v1/analytics/"},
		{Class: "billing", Method: "GET", Path: "/v1/billing/"},
	}

	result, err := executor.Execute(context.Background(), descs, 2)
	if result != nil {
		t.Errorf("Execute() result = %v, want nil on configuration error", result)
	}
	if !errors.Is(err, ratelimit.ErrUnregisteredClass) {
		t.Fatalf("Execute() error = %v, want ErrUnregisteredClass", err)
	}

	// Every distinct missing class is named once, sorted.
	if msg := err.Error(); !strings.Contains(msg, "analytics, billing") {
		t.Errorf("Execute() error = %q, want missing classes listed sorted", msg)
	}
	if invoker.callCount() != 0 {
		t.Errorf("calls = %d, want 0 before dispatch", invoker.callCount())
	}
}

func TestExecute_PreservesOrderUnderConcurrency(t *testing.T) {
	invoker := &stubInvoker{
		handler: func(desc remote.Descriptor) (*remote.Response, error) {
			idx := slotIndex(desc)
			// Scramble completion order: even slots finish late.
			if idx%2 == 0 {
				time.Sleep(40 * time.Millisecond)
			}
			body := fmt.Sprintf(`{"slot": %d}`, idx)
			return &remote.Response{StatusCode: 200, Body: []byte(body)}, nil
		},
	}
	executor := newTestExecutor(t, invoker, newTestRegistry(t))

	const n = 12
	result, err := executor.Execute(context.Background(), indexedDescs(n, "general"), 4)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if len(result.Outcomes) != n {
		t.Fatalf("Outcomes = %d, want %d", len(result.Outcomes), n)
	}

	for i, outcome := range result.Outcomes {
		if !outcome.OK() {
			t.Errorf("slot %d error = %v, want success", i, outcome.Err)
			continue
		}
		want := fmt.Sprintf(`{"slot": %d}`, i)
		if string(outcome.Response.Body) != want {
			t.Errorf("slot %d body = %s, want %s", i, outcome.Response.Body, want)
		}
	}
}

func TestExecute_PartialFailureKeepsSlots(t *testing.T) {
	invoker := &stubInvoker{
		handler: func(desc remote.Descriptor) (*remote.Response, error) {
			idx := slotIndex(desc)
			if idx%2 == 1 {
				return nil, &remote.TransportError{
					StatusCode: 400,
					Status:     "400 Bad Request",
					Endpoint:   desc.Path,
				}
			}
			return &remote.Response{StatusCode: 201, Body: []byte(`{}`)}, nil
		},
	}
	executor := newTestExecutor(t, invoker, newTestRegistry(t))

	const n = 9
	result, err := executor.Execute(context.Background(), indexedDescs(n, "general"), 3)
	if err != nil {
		t.Fatalf("Execute() error = %v, want nil despite slot failures", err)
	}

	for i, outcome := range result.Outcomes {
		if i%2 == 1 {
			var transportErr *remote.TransportError
			if !errors.As(outcome.Err, &transportErr) {
				t.Errorf("slot %d error = %v, want *TransportError", i, outcome.Err)
			}
			continue
		}
		if !outcome.OK() {
			t.Errorf("slot %d error = %v, want success", i, outcome.Err)
		}
	}

	if got, want := result.Succeeded(), 5; got != want {
		t.Errorf("Succeeded() = %d, want %d", got, want)
	}
	if got, want := result.Failed(), 4; got != want {
		t.Errorf("Failed() = %d, want %d", got, want)
	}
	if result.FirstErr() == nil {
		t.Error("FirstErr() = nil, want slot 1 error")
	}
	if invoker.callCount() != n {
		t.Errorf("calls = %d, want %d (failures never block siblings)", invoker.callCount(), n)
	}
}

func TestExecute_RespectsConcurrencyBound(t *testing.T) {
	invoker := &stubInvoker{delay: 30 * time.Millisecond}
	executor := newTestExecutor(t, invoker, newTestRegistry(t))

	_, err := executor.Execute(context.Background(), indexedDescs(10, "general"), 3)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	if peak := invoker.peakConcurrency(); peak > 3 {
		t.Errorf("peak concurrency = %d, want <= 3", peak)
	}
	if invoker.callCount() != 10 {
		t.Errorf("calls = %d, want 10", invoker.callCount())
	}
}

func TestExecute_AcquiresGrantPerSlot(t *testing.T) {
	logger := zerolog.New(os.Stderr).Level(zerolog.Disabled)
	limits := ratelimit.NewRegistry(logger)
	const period = 300 * time.Millisecond
	if err := limits.Register("general", ratelimit.Window(2, period)); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	invoker := &stubInvoker{}
	executor := newTestExecutor(t, invoker, limits)

	start := time.Now()
	result, err := executor.Execute(context.Background(), indexedDescs(4, "general"), 4)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	elapsed := time.Since(start)

	if result.Failed() != 0 {
		t.Fatalf("Failed() = %d, want 0", result.Failed())
	}
	// 4 calls against a 2-per-window budget span at least one boundary.
	if elapsed < period {
		t.Errorf("batch finished in %v, want >= %v", elapsed, period)
	}
}

func TestExecute_CooldownSerializesBulkSlots(t *testing.T) {
	logger := zerolog.New(os.Stderr).Level(zerolog.Disabled)
	limits := ratelimit.NewRegistry(logger)
	const period = 200 * time.Millisecond
	if err := limits.Register("bulk_create", ratelimit.Cooldown(period)); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	invoker := &stubInvoker{}
	executor := newTestExecutor(t, invoker, limits)

	start := time.Now()
	if _, err := executor.Execute(context.Background(), indexedDescs(2, "bulk_create"), 1); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if elapsed := time.Since(start); elapsed < period {
		t.Errorf("2 cooldown slots finished in %v, want >= %v", elapsed, period)
	}
}

func TestExecute_CancellationStopsAdmission(t *testing.T) {
	invoker := &stubInvoker{delay: 150 * time.Millisecond}
	executor := newTestExecutor(t, invoker, newTestRegistry(t))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	const n = 5
	result, err := executor.Execute(ctx, indexedDescs(n, "general"), 1)
	if err != nil {
		t.Fatalf("Execute() error = %v, want nil (cancellation is per-slot)", err)
	}

	// Slot 0 was in flight when ctx was cancelled: it runs on a detached
	// context and completes with its real outcome.
	if !result.Outcomes[0].OK() {
		t.Errorf("slot 0 error = %v, want in-flight call to complete", result.Outcomes[0].Err)
	}

	// The remaining slots were never admitted.
	for i := 1; i < n; i++ {
		if !errors.Is(result.Outcomes[i].Err, context.Canceled) {
			t.Errorf("slot %d error = %v, want context.Canceled", i, result.Outcomes[i].Err)
		}
	}

	if invoker.callCount() != 1 {
		t.Errorf("calls = %d, want 1 (admission stopped promptly)", invoker.callCount())
	}
}

func TestExecute_ConcurrencyDefaultsApplied(t *testing.T) {
	invoker := &stubInvoker{delay: 10 * time.Millisecond}
	executor, err := NewExecutor(invoker, newTestRegistry(t), Config{Concurrency: 2})
	if err != nil {
		t.Fatalf("NewExecutor() error = %v", err)
	}

	if _, err := executor.Execute(context.Background(), indexedDescs(6, "general"), 0); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if peak := invoker.peakConcurrency(); peak > 2 {
		t.Errorf("peak concurrency = %d, want <= configured 2", peak)
	}
}
