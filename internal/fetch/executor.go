// Package fetch implements the resilient HTTP executor used by the engine.
// Each call performs one logical fetch: identity rotation, bounded retries
// with exponential backoff, and a uniform outcome record win or lose.
package fetch

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/shelfscout/bookscraper/internal/metrics"
	"github.com/shelfscout/bookscraper/internal/scraper"
)

const maxErrorMessageLen = 200

// Config controls executor behavior.
type Config struct {
	Timeout        time.Duration
	MaxAttempts    int
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration
	CacheSize      int
	MaxConcurrent  int
	// Transport overrides the pooled default, mainly for tests.
	Transport http.RoundTripper
}

// Executor implements scraper.Fetcher using a colly collector cloned per
// request over a shared keep-alive transport.
type Executor struct {
	cfg           Config
	policy        retryPolicy
	transport     http.RoundTripper
	baseCollector *colly.Collector
	cache         *responseCache
	logger        *zap.Logger
}

type attemptResult struct {
	statusCode int
	headers    http.Header
	body       []byte
}

// New builds an Executor.
func New(cfg Config, logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 10
	}
	transport := cfg.Transport
	if transport == nil {
		transport = newHTTPTransport()
	}

	c := colly.NewCollector(colly.Async(false))
	c.AllowURLRevisit = true
	// Politeness comes from the rate limiter, not robots directives.
	c.IgnoreRobotsTxt = true

	metrics.Init()

	return &Executor{
		cfg:           cfg,
		policy:        newRetryPolicy(cfg.MaxAttempts, cfg.RetryBaseDelay, cfg.RetryMaxDelay),
		transport:     transport,
		baseCollector: c,
		cache:         newResponseCache(cfg.CacheSize),
		logger:        logger,
	}
}

// Fetch performs one GET with retries. Failures come back inside the
// outcome; the elapsed time spans every attempt.
func (e *Executor) Fetch(ctx context.Context, url string, headers http.Header) scraper.FetchOutcome {
	start := time.Now()

	if entry, ok := e.cache.get(url); ok {
		e.logger.Debug("response cache hit", zap.String("url", url))
		return successOutcome(url, entry.userAgent, entry.statusCode, entry.headers, entry.body, start)
	}

	ua := randomUserAgent()
	merged := mergeHeaders(headers, ua)

	var (
		res attemptResult
		err error
	)
	for attempt := 0; ; attempt++ {
		res, err = e.do(ctx, http.MethodGet, url, merged, nil)
		if err == nil {
			break
		}
		if !e.policy.shouldRetry(ctx, err, res.statusCode, attempt) {
			return e.failedOutcome(url, ua, res.statusCode, err, start)
		}
		metrics.IncRetries()
		e.logger.Debug("retrying fetch",
			zap.String("url", url),
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)
		if !sleepCtx(ctx, e.policy.backoff(attempt)) {
			return e.failedOutcome(url, ua, res.statusCode, ctx.Err(), start)
		}
	}

	e.cache.put(url, cachedResponse{
		statusCode: res.statusCode,
		headers:    res.headers,
		body:       res.body,
		userAgent:  ua,
	})
	return successOutcome(url, ua, res.statusCode, res.headers, res.body, start)
}

// Post performs a single form POST without the retry loop, mirroring Fetch's
// outcome shape.
func (e *Executor) Post(ctx context.Context, url string, form map[string]string, headers http.Header) scraper.FetchOutcome {
	start := time.Now()
	ua := randomUserAgent()
	merged := mergeHeaders(headers, ua)

	res, err := e.do(ctx, http.MethodPost, url, merged, form)
	if err != nil {
		return e.failedOutcome(url, ua, res.statusCode, err, start)
	}
	return successOutcome(url, ua, res.statusCode, res.headers, res.body, start)
}

// FetchAll runs fetches concurrently bounded by maxConcurrent (executor
// default when <= 0). A fault in one fetch never aborts the others.
func (e *Executor) FetchAll(ctx context.Context, urls []string, maxConcurrent int) []scraper.FetchOutcome {
	if maxConcurrent <= 0 {
		maxConcurrent = e.cfg.MaxConcurrent
	}
	sem := make(chan struct{}, maxConcurrent)
	outcomes := make([]scraper.FetchOutcome, len(urls))

	var wg sync.WaitGroup
	for i, url := range urls {
		wg.Add(1)
		go func(i int, url string) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					outcomes[i] = scraper.FetchOutcome{
						Status:       scraper.StatusFailed,
						URL:          url,
						ErrorMessage: truncate(fmt.Sprintf("fetch panic: %v", r), maxErrorMessageLen),
						ErrorKind:    scraper.ErrKindInternal,
					}
				}
			}()
			sem <- struct{}{}
			defer func() { <-sem }()
			outcomes[i] = e.Fetch(ctx, url, nil)
		}(i, url)
	}
	wg.Wait()
	return outcomes
}

// CacheSnapshot exposes response cache utilization for Stats.
func (e *Executor) CacheSnapshot() CacheSnapshot {
	return e.cache.snapshot()
}

// do runs one attempt on a cloned collector.
func (e *Executor) do(ctx context.Context, method, url string, headers http.Header, form map[string]string) (attemptResult, error) {
	collector := e.baseCollector.Clone()
	collector.AllowURLRevisit = true
	collector.SetRequestTimeout(e.cfg.Timeout)
	collector.WithTransport(e.transport)

	var (
		res    attemptResult
		reqErr error
	)
	collector.OnRequest(func(r *colly.Request) {
		for key, values := range headers {
			r.Headers.Del(key)
			for _, v := range values {
				r.Headers.Add(key, v)
			}
		}
	})
	collector.OnResponse(func(r *colly.Response) {
		res = attemptResult{
			statusCode: r.StatusCode,
			headers:    r.Headers.Clone(),
			body:       append([]byte(nil), r.Body...),
		}
	})
	collector.OnError(func(r *colly.Response, err error) {
		if r != nil {
			res.statusCode = r.StatusCode
		}
		reqErr = err
	})

	done := make(chan error, 1)
	go func() {
		if method == http.MethodPost {
			done <- collector.Post(url, form)
		} else {
			done <- collector.Visit(url)
		}
	}()

	select {
	case <-ctx.Done():
		return res, ctx.Err()
	case err := <-done:
		if err != nil {
			return res, err
		}
		if reqErr != nil {
			return res, reqErr
		}
		return res, nil
	}
}

func (e *Executor) failedOutcome(url, ua string, statusCode int, err error, start time.Time) scraper.FetchOutcome {
	elapsed := time.Since(start)
	kind := errorKind(err, statusCode)
	metrics.ObserveFetch(url, string(scraper.StatusFailed), 0, elapsed)
	e.logger.Warn("fetch failed",
		zap.String("url", url),
		zap.String("kind", kind),
		zap.Error(err),
	)
	return scraper.FetchOutcome{
		Status:       scraper.StatusFailed,
		URL:          url,
		UserAgent:    ua,
		StatusCode:   statusCode,
		ElapsedMs:    float64(elapsed.Milliseconds()),
		ErrorMessage: truncate(err.Error(), maxErrorMessageLen),
		ErrorKind:    kind,
	}
}

func successOutcome(url, ua string, statusCode int, headers http.Header, body []byte, start time.Time) scraper.FetchOutcome {
	elapsed := time.Since(start)
	metrics.ObserveFetch(url, string(scraper.StatusSuccess), len(body), elapsed)
	return scraper.FetchOutcome{
		Status:     scraper.StatusSuccess,
		URL:        url,
		UserAgent:  ua,
		StatusCode: statusCode,
		Headers:    headers,
		Body:       body,
		ElapsedMs:  float64(elapsed.Milliseconds()),
		ByteSize:   len(body),
	}
}

// sleepCtx waits for d unless the context finishes first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
