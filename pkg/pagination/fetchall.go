package pagination

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dialops/callhub-client/pkg/batch"
	"github.com/dialops/callhub-client/pkg/ratelimit"
	"github.com/dialops/callhub-client/pkg/remote"
)

// FetchAll eagerly retrieves a whole listing through the batch executor.
// The first page reveals the total record count and the remote's page size;
// the remaining pages are dispatched as one batch with the given concurrency
// and reassembled in page order.
//
// Failed pages do not discard the rest: the records of every fetched page
// are returned together with an error naming how much is missing.
func FetchAll(ctx context.Context, executor *batch.Executor, class ratelimit.Class, path string, query url.Values, concurrency int) ([]json.RawMessage, error) {
	start := time.Now()

	firstResult, err := executor.Execute(ctx, []remote.Descriptor{{
		Class:  class,
		Method: http.MethodGet,
		Path:   path,
		Query:  query,
	}}, 1)
	if err != nil {
		return nil, err
	}
	if err := firstResult.Outcomes[0].Err; err != nil {
		return nil, fmt.Errorf("fetch first page: %w", err)
	}

	var first envelope
	if err := firstResult.Outcomes[0].Response.JSON(&first); err != nil {
		return nil, fmt.Errorf("fetch first page: %w", err)
	}

	records := append([]json.RawMessage(nil), first.Results...)
	pagesFetchedTotal.Inc()
	pageRecordsTotal.Add(float64(len(first.Results)))

	// Single page optimization
	if first.Next == nil || len(first.Results) == 0 {
		log.Info().
			Str("endpoint", path).
			Int("records", len(records)).
			Dur("duration", time.Since(start)).
			Msg("Listing fetched (single page)")
		return records, nil
	}

	// The remote imposes the page size; the first page reveals it.
	pageSize := len(first.Results)
	totalPages := (first.Count + pageSize - 1) / pageSize

	log.Info().
		Str("endpoint", path).
		Int("total_records", first.Count).
		Int("total_pages", totalPages).
		Msg("Starting parallel listing fetch")

	descs := make([]remote.Descriptor, 0, totalPages-1)
	for page := 2; page <= totalPages; page++ {
		pageQuery := make(url.Values, len(query)+1)
		for key, values := range query {
			pageQuery[key] = values
		}
		pageQuery.Set("page", strconv.Itoa(page))
		descs = append(descs, remote.Descriptor{
			Class:  class,
			Method: http.MethodGet,
			Path:   path,
			Query:  pageQuery,
		})
	}

	result, err := executor.Execute(ctx, descs, concurrency)
	if err != nil {
		return records, err
	}

	var failedPages []int
	var firstErr error
	for i, outcome := range result.Outcomes {
		pageNum := i + 2
		if outcome.Err != nil {
			failedPages = append(failedPages, pageNum)
			if firstErr == nil {
				firstErr = outcome.Err
			}
			continue
		}

		var env envelope
		if err := outcome.Response.JSON(&env); err != nil {
			log.Warn().Err(err).Int("page", pageNum).Msg("Page decode failed")
			failedPages = append(failedPages, pageNum)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}

		records = append(records, env.Results...)
		pagesFetchedTotal.Inc()
		pageRecordsTotal.Add(float64(len(env.Results)))
	}

	if len(failedPages) > 0 {
		log.Warn().
			Ints("failed_pages", failedPages).
			Int("total_pages", totalPages).
			Msg("Listing fetch incomplete - returning partial results")
		return records, fmt.Errorf("partial listing (%d/%d pages, failed %v): %w",
			totalPages-len(failedPages), totalPages, failedPages, firstErr)
	}

	log.Info().
		Str("endpoint", path).
		Int("pages", totalPages).
		Int("records", len(records)).
		Dur("duration", time.Since(start)).
		Msg("Listing fetch complete")

	return records, nil
}
