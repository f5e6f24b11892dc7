// Package batch dispatches groups of described remote calls under a bounded
// worker pool. Results keep the order of the submitted descriptors, and a
// failed slot never aborts its siblings: partial success is a normal outcome,
// not an exception.
package batch

import (
	"github.com/dialops/callhub-client/pkg/remote"
)

// Outcome is the terminal result of one descriptor slot.
type Outcome struct {
	// Response is set when the call completed successfully.
	Response *remote.Response

	// Err is set when the slot failed: transport failure, rejected call,
	// or cancellation before the slot was admitted.
	Err error
}

// OK reports whether the slot completed successfully.
func (o Outcome) OK() bool {
	return o.Err == nil
}

// Result holds the per-slot outcomes of one executed batch. Outcomes[i]
// belongs to the i-th submitted descriptor regardless of completion order.
type Result struct {
	Outcomes []Outcome
}

// Succeeded returns the number of successful slots.
func (r *Result) Succeeded() int {
	n := 0
	for _, outcome := range r.Outcomes {
		if outcome.OK() {
			n++
		}
	}
	return n
}

// Failed returns the number of failed slots.
func (r *Result) Failed() int {
	return len(r.Outcomes) - r.Succeeded()
}

// FirstErr returns the first slot error in submission order, or nil when
// every slot succeeded.
func (r *Result) FirstErr() error {
	for _, outcome := range r.Outcomes {
		if outcome.Err != nil {
			return outcome.Err
		}
	}
	return nil
}
