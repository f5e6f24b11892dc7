package pagination

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/dialops/callhub-client/pkg/logging"
	"github.com/dialops/callhub-client/pkg/ratelimit"
	"github.com/dialops/callhub-client/pkg/remote"
)

// Prometheus metrics for pagination.
var (
	pagesFetchedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "callhub_pages_fetched_total",
		Help: "Total number of pages fetched across all listings",
	})

	pageRecordsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "callhub_page_records_total",
		Help: "Total number of records decoded from fetched pages",
	})
)

// ErrDone signals that an iterator has handed out its final page.
var ErrDone = errors.New("pagination done")

// envelope is the CallHub list response shape.
type envelope struct {
	Count    int               `json:"count"`
	Next     *string           `json:"next"`
	Previous *string           `json:"previous"`
	Results  []json.RawMessage `json:"results"`
}

// Page is one fetched slice of a listing.
type Page struct {
	// Records holds the raw records of this page, already truncated to the
	// iterator's record limit.
	Records []json.RawMessage

	// Next is the absolute cursor URL of the following page, empty on the
	// last page.
	Next string

	// Total is the total record count the remote reports for the listing.
	Total int
}

// Iterator pulls a listing page by page. Every Next call performs exactly
// one rate-limited fetch; a consumer that stops pulling stops all cost. The
// iterator is not safe for concurrent use.
type Iterator struct {
	invoker remote.Invoker
	limits  *ratelimit.Registry
	class   ratelimit.Class
	logger  zerolog.Logger

	next    string
	query   url.Values
	limit   int
	seen    int
	pages   int
	started bool
	done    bool
}

// NewIterator creates an iterator over the listing at path. limit caps the
// total records handed out; 0 means the whole listing. A finished iterator
// cannot be restarted, create a new one instead.
func NewIterator(invoker remote.Invoker, limits *ratelimit.Registry, class ratelimit.Class, path string, query url.Values, limit int) *Iterator {
	if limit < 0 {
		limit = 0
	}
	return &Iterator{
		invoker: invoker,
		limits:  limits,
		class:   class,
		logger:  logging.NewLogger("pagination"),
		next:    path,
		query:   query,
		limit:   limit,
	}
}

// Next fetches the next page. It returns ErrDone once the remote signals no
// continuation or the record limit is reached; no further fetch is issued
// past either point. A fetch failure does not advance the cursor, so the
// same page may be requested again.
func (it *Iterator) Next(ctx context.Context) (*Page, error) {
	if it.done {
		return nil, ErrDone
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := it.limits.Acquire(ctx, it.class); err != nil {
		return nil, err
	}

	desc := remote.Descriptor{
		Class:  it.class,
		Method: http.MethodGet,
		Path:   it.next,
	}
	if !it.started {
		desc.Query = it.query
	}

	resp, err := it.invoker.Invoke(ctx, desc)
	if err != nil {
		return nil, fmt.Errorf("fetch page %d: %w", it.pages+1, err)
	}

	var env envelope
	if err := resp.JSON(&env); err != nil {
		return nil, fmt.Errorf("fetch page %d: %w", it.pages+1, err)
	}

	it.started = true
	it.pages++

	records := env.Results
	if it.limit > 0 && it.seen+len(records) > it.limit {
		records = records[:it.limit-it.seen]
	}
	it.seen += len(records)

	next := ""
	if env.Next != nil {
		next = *env.Next
	}
	it.next = next

	if next == "" || (it.limit > 0 && it.seen >= it.limit) {
		it.done = true
	}

	pagesFetchedTotal.Inc()
	pageRecordsTotal.Add(float64(len(records)))

	it.logger.Debug().
		Int("page", it.pages).
		Int("records", len(records)).
		Int("total", env.Count).
		Bool("done", it.done).
		Msg("Page fetched")

	return &Page{
		Records: records,
		Next:    next,
		Total:   env.Count,
	}, nil
}

// Collect drains the iterator and returns all records. On error the records
// fetched so far are returned alongside it.
func Collect(ctx context.Context, it *Iterator) ([]json.RawMessage, error) {
	var records []json.RawMessage
	for {
		page, err := it.Next(ctx)
		if errors.Is(err, ErrDone) {
			return records, nil
		}
		if err != nil {
			return records, err
		}
		records = append(records, page.Records...)
	}
}

// Decode unmarshals raw page records into concrete values.
func Decode[T any](records []json.RawMessage) ([]T, error) {
	out := make([]T, 0, len(records))
	for i, raw := range records {
		var v T
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("decode record %d: %w", i, err)
		}
		out = append(out, v)
	}
	return out, nil
}
