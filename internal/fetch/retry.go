package fetch

import (
	"context"
	"errors"
	"math"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/shelfscout/bookscraper/internal/scraper"
)

// retryPolicy governs backoff between fetch attempts. Delay growth is
// exponential and jitter-free, capped at maxDelay.
type retryPolicy struct {
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
}

func newRetryPolicy(maxAttempts int, baseDelay, maxDelay time.Duration) retryPolicy {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if baseDelay <= 0 {
		baseDelay = time.Second
	}
	if maxDelay <= 0 {
		maxDelay = 60 * time.Second
	}
	return retryPolicy{maxAttempts: maxAttempts, baseDelay: baseDelay, maxDelay: maxDelay}
}

// shouldRetry decides whether the attempt's failure is retryable. Transport
// errors, per-request timeouts, and 5xx/429 statuses retry; other HTTP
// statuses are terminal. Cancellation of the caller's ctx is terminal, and it
// is checked on ctx itself: the per-request timeout also surfaces as a
// deadline error on the attempt, and that one must retry.
func (p retryPolicy) shouldRetry(ctx context.Context, err error, statusCode, attempt int) bool {
	if err == nil {
		return false
	}
	if attempt+1 >= p.maxAttempts {
		return false
	}
	if ctx.Err() != nil {
		return false
	}
	if statusCode > 0 {
		return statusCode >= 500 || statusCode == http.StatusTooManyRequests
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return true
}

// backoff returns the wait before attempt n+1.
func (p retryPolicy) backoff(attempt int) time.Duration {
	delay := float64(p.baseDelay) * math.Pow(2, float64(attempt))
	if delay > float64(p.maxDelay) {
		delay = float64(p.maxDelay)
	}
	return time.Duration(delay)
}

// errorKind classifies a terminal failure for the outcome record.
func errorKind(err error, statusCode int) string {
	if statusCode > 0 {
		return "http_" + strconv.Itoa(statusCode)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return scraper.ErrKindTimeout
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return scraper.ErrKindTimeout
	}
	return scraper.ErrKindConnection
}
