package ratelimit

import (
	"sync"
	"time"

	"github.com/shelfscout/bookscraper/internal/scraper"
)

// bucketLimiter is implemented by both bucket variants.
type bucketLimiter interface {
	Acquire() time.Duration
	RecordResponse(latency time.Duration, success bool)
	Snapshot() Snapshot
}

// RegistryConfig controls the registry defaults for domains without a
// preconfigured bucket.
type RegistryConfig struct {
	Default  Config
	Adaptive bool
}

// Registry manages one bucket per domain, created lazily on first use.
// Known book sources get conservative or permissive presets; everything
// else shares the default config.
type Registry struct {
	mu      sync.Mutex
	buckets map[string]bucketLimiter
	cfg     RegistryConfig
	clock   scraper.Clock
}

// New builds a Registry with presets for the known catalog sites.
func New(cfg RegistryConfig, clock scraper.Clock) *Registry {
	if cfg.Default.RequestsPerSecond <= 0 {
		cfg.Default.RequestsPerSecond = 10
	}
	if cfg.Default.Burst < 1 {
		cfg.Default.Burst = 1
	}
	r := &Registry{
		buckets: make(map[string]bucketLimiter),
		cfg:     cfg,
		clock:   clock,
	}

	// Strict sites get low rates, open ones higher.
	r.Add("goodreads.com", Config{RequestsPerSecond: 2, Burst: 3, Jitter: 0.2})
	r.Add("amazon.com", Config{RequestsPerSecond: 1, Burst: 2, Jitter: 0.3})
	r.Add("books.google.com", Config{RequestsPerSecond: 5, Burst: 5, Jitter: 0.1})
	r.Add("openlibrary.org", Config{RequestsPerSecond: 8, Burst: 10, Jitter: 0.1})
	return r
}

// Add installs a bucket for a specific domain, replacing any existing one.
func (r *Registry) Add(domain string, cfg Config) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buckets[domain] = r.newBucket(cfg)
}

func (r *Registry) newBucket(cfg Config) bucketLimiter {
	if r.cfg.Adaptive {
		return NewAdaptiveBucket(cfg, r.clock)
	}
	return NewBucket(cfg, r.clock)
}

func (r *Registry) bucketFor(rawURL string) bucketLimiter {
	domain := scraper.Domain(rawURL)
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.buckets[domain]
	if !ok {
		b = r.newBucket(r.cfg.Default)
		r.buckets[domain] = b
	}
	return b
}

// Acquire resolves the URL's domain and asks its bucket for admission.
// The returned duration is how long the caller must sleep first.
func (r *Registry) Acquire(rawURL string) time.Duration {
	return r.bucketFor(rawURL).Acquire()
}

// RecordResponse feeds fetch feedback to the URL's bucket.
func (r *Registry) RecordResponse(rawURL string, latency time.Duration, success bool) {
	r.bucketFor(rawURL).RecordResponse(latency, success)
}

// Snapshot returns per-domain bucket stats.
func (r *Registry) Snapshot() map[string]Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]Snapshot, len(r.buckets))
	for domain, b := range r.buckets {
		snap := b.Snapshot()
		snap.Domain = domain
		out[domain] = snap
	}
	return out
}
