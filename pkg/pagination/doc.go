// Package pagination drives the sequential fetch of the full connection
// list from the committed endpoint.
//
// Pages are fetched strictly in increasing offset order, one request in
// flight at a time. Sequential fetching is load-bearing twice over:
// offset-based pagination breaks under reordering, and a predictable
// one-at-a-time cadence is what keeps the account below the abuse
// detection threshold.
//
// The paginator recovers transient conditions itself: a 429 sleeps a
// fixed cooldown and retries the same offset without bound, a timeout
// sleeps a shorter cooldown and retries likewise. Any other failure ends
// the run with whatever accumulated; a bulk read is best effort, not a
// transaction.
//
// Example usage:
//
//	paginator := pagination.New(discoverer, pagination.DefaultConfig())
//	records, err := paginator.FetchAll(ctx, func(fetched, total int) {
//		// total == pagination.TotalUnknown while the server has not
//		// reported a real count yet.
//	})
package pagination
