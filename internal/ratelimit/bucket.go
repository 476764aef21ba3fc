// Package ratelimit implements per-domain token bucket admission control
// with an adaptive variant that self-throttles against slow or failing sites.
package ratelimit

import (
	"math/rand/v2"
	"sync"
	"time"

	"github.com/shelfscout/bookscraper/internal/scraper"
)

// Config holds the knobs for one bucket.
type Config struct {
	RequestsPerSecond float64
	Burst             float64
	Jitter            float64
}

// Snapshot is a point-in-time view of one bucket's counters.
type Snapshot struct {
	Domain            string  `json:"domain"`
	TokensAvailable   float64 `json:"tokens_available"`
	RequestsPerSecond float64 `json:"requests_per_second"`
	Burst             float64 `json:"burst"`
	TotalRequests     int64   `json:"total_requests"`
	BlockedRequests   int64   `json:"blocked_requests"`
	SuccessRate       float64 `json:"success_rate"`
	AdaptationFactor  float64 `json:"adaptation_factor,omitempty"`
	CurrentRate       float64 `json:"current_rate,omitempty"`
}

// Bucket is a token bucket. Tokens refill continuously at the configured
// rate up to Burst; Acquire consumes one token or reports how long the
// caller must sleep. The caller does the sleeping.
type Bucket struct {
	mu         sync.Mutex
	cfg        Config
	tokens     float64
	refillRate float64
	lastRefill time.Time
	admitted   int64
	blocked    int64
	clock      scraper.Clock
}

// NewBucket builds a bucket starting full.
func NewBucket(cfg Config, clock scraper.Clock) *Bucket {
	if cfg.Burst < 1 {
		cfg.Burst = 1
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 1
	}
	return &Bucket{
		cfg:        cfg,
		tokens:     cfg.Burst,
		refillRate: cfg.RequestsPerSecond,
		lastRefill: clock.Now(),
		clock:      clock,
	}
}

// Acquire refills based on elapsed time, then either consumes a token and
// returns zero, or returns the jittered wait until a token would exist.
func (b *Bucket) Acquire() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refill()
	if b.tokens >= 1 {
		b.tokens--
		b.admitted++
		return 0
	}
	b.blocked++
	wait := (1 - b.tokens) / b.refillRate
	return b.addJitter(time.Duration(wait * float64(time.Second)))
}

// refill must be called with the mutex held.
func (b *Bucket) refill() {
	now := b.clock.Now()
	elapsed := now.Sub(b.lastRefill).Seconds()
	if elapsed > 0 {
		b.tokens = min(b.cfg.Burst, b.tokens+elapsed*b.refillRate)
	}
	b.lastRefill = now
}

// addJitter spreads the wait by ±(jitter fraction × wait), clamped at zero.
func (b *Bucket) addJitter(wait time.Duration) time.Duration {
	if b.cfg.Jitter <= 0 || wait <= 0 {
		return wait
	}
	span := float64(wait) * b.cfg.Jitter
	jittered := float64(wait) + (rand.Float64()*2-1)*span
	if jittered < 0 {
		return 0
	}
	return time.Duration(jittered)
}

// RecordResponse is a no-op on the plain bucket; the adaptive variant
// overrides the behavior through bucketLimiter.
func (b *Bucket) RecordResponse(time.Duration, bool) {}

// Snapshot returns the bucket's current counters.
func (b *Bucket) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	total := b.admitted + b.blocked
	successRate := 1.0
	if total > 0 {
		successRate = float64(b.admitted) / float64(total)
	}
	return Snapshot{
		TokensAvailable:   b.tokens,
		RequestsPerSecond: b.refillRate,
		Burst:             b.cfg.Burst,
		TotalRequests:     b.admitted,
		BlockedRequests:   b.blocked,
		SuccessRate:       successRate,
	}
}
