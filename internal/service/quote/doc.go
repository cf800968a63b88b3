// Package quote keeps the inspirational quote shown on wake-up.
//
// The Service serves a cached quote (or a built-in fallback), refreshes it
// through a Fetcher at most once per interval unless forced, and collapses
// concurrent refreshes into one request. GeminiFetcher is the HTTP Fetcher.
package quote
