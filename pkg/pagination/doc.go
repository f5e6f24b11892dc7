// Package pagination walks CallHub list endpoints.
//
// CallHub lists respond with a count/next/previous/results envelope and a
// server-imposed page size. Two access patterns are provided:
//
//   - Iterator: lazy pull-based paging. Each Next call performs exactly one
//     rate-limited page fetch, so a consumer that stops early never pays for
//     pages it did not read. A record limit truncates the final page and
//     stops fetching as soon as it is satisfied.
//
//   - FetchAll: eager retrieval of a whole listing. The first page reveals
//     the total, the remaining pages are fetched as one bounded-concurrency
//     batch and reassembled in page order, tolerating failed pages.
//
// Example usage:
//
//	it := pagination.NewIterator(invoker, limits, "general", "/v1/contacts/", nil, 25)
//	for {
//		page, err := it.Next(ctx)
//		if errors.Is(err, pagination.ErrDone) {
//			break
//		}
//		if err != nil {
//			return err
//		}
//		process(page.Records)
//	}
package pagination
