package scraper

import (
	"context"
	"net/http"
	"time"
)

// Fetcher performs one resilient HTTP request and returns a uniform outcome.
// Failures are reported inside the outcome, never as an error.
type Fetcher interface {
	Fetch(ctx context.Context, url string, headers http.Header) FetchOutcome
}

// Extractor turns raw markup into a book record. A nil record with a nil
// error means no usable data was found.
type Extractor interface {
	Extract(body []byte, url string, source Source) (*BookRecord, error)
}

// Limiter gates admission per domain. Acquire returns how long the caller
// must sleep before proceeding; zero means go now.
type Limiter interface {
	Acquire(url string) time.Duration
	RecordResponse(url string, latency time.Duration, success bool)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces task IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}
