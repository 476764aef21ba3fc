// Package engine implements task admission, prioritization, and the
// rate-limit → fetch → extract pipeline that drives each admitted task to a
// single ScrapeResult.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/shelfscout/bookscraper/internal/fetch"
	"github.com/shelfscout/bookscraper/internal/metrics"
	"github.com/shelfscout/bookscraper/internal/ratelimit"
	"github.com/shelfscout/bookscraper/internal/scraper"
)

// ErrSourceDisabled rejects tasks for sources outside the enabled set.
var ErrSourceDisabled = errors.New("source is not enabled")

// Limiter is the admission gate the engine drives, with snapshot access for
// Stats.
type Limiter interface {
	scraper.Limiter
	Snapshot() map[string]ratelimit.Snapshot
}

// Fetcher is the executor the engine drives, with cache snapshot access for
// Stats.
type Fetcher interface {
	scraper.Fetcher
	CacheSnapshot() fetch.CacheSnapshot
}

// Options controls engine behavior. Values come from the config loader; the
// engine never reads the environment itself.
type Options struct {
	MaxConcurrent  int
	BatchTimeout   time.Duration
	EnabledSources []scraper.Source
}

// Stats is the aggregate view returned by Stats().
type Stats struct {
	UptimeSeconds      float64                       `json:"uptime_seconds"`
	TotalRequests      int64                         `json:"total_requests"`
	SuccessfulRequests int64                         `json:"successful_requests"`
	FailedRequests     int64                         `json:"failed_requests"`
	SuccessRate        float64                       `json:"success_rate"`
	RequestsPerSecond  float64                       `json:"requests_per_second"`
	PendingTasks       int                           `json:"pending_tasks"`
	RunningTasks       int                           `json:"running_tasks"`
	CompletedTasks     int                           `json:"completed_tasks"`
	FailedTasks        int                           `json:"failed_tasks"`
	RateLimiter        map[string]ratelimit.Snapshot `json:"rate_limiter_stats"`
	FetchCache         fetch.CacheSnapshot           `json:"fetch_cache_stats"`
}

type pendingTask struct {
	id   string
	task scraper.Task
}

// Engine owns the pending list, the running set, and the result store.
// Construct one per process and hand it to the API layer by reference.
type Engine struct {
	limiter   Limiter
	fetcher   Fetcher
	extractor scraper.Extractor
	clock     scraper.Clock
	ids       scraper.IDGenerator
	logger    *zap.Logger
	opts      Options

	mu      sync.Mutex
	pending []pendingTask
	states  map[string]scraper.TaskState
	running int

	store   *Store
	started time.Time
}

// New constructs an Engine from explicit collaborators.
func New(
	limiter Limiter,
	fetcher Fetcher,
	extractor scraper.Extractor,
	clock scraper.Clock,
	ids scraper.IDGenerator,
	opts Options,
	logger *zap.Logger,
) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 10
	}
	metrics.Init()
	return &Engine{
		limiter:   limiter,
		fetcher:   fetcher,
		extractor: extractor,
		clock:     clock,
		ids:       ids,
		logger:    logger,
		opts:      opts,
		states:    make(map[string]scraper.TaskState),
		store:     NewStore(),
		started:   clock.Now(),
	}
}

// Submit inserts the task into the pending list, keeping it ordered by
// ascending priority with submission order preserved among equals. It
// returns the generated task ID.
func (e *Engine) Submit(task scraper.Task) (string, error) {
	if task.URL == "" {
		return "", errors.New("task url required")
	}
	if !e.sourceEnabled(task.Source) {
		return "", fmt.Errorf("%w: %s", ErrSourceDisabled, task.Source)
	}
	if task.Priority < 1 {
		task.Priority = 1
	}
	if task.Priority > 10 {
		task.Priority = 10
	}

	id, err := e.ids.NewID()
	if err != nil {
		return "", fmt.Errorf("generate task id: %w", err)
	}

	e.mu.Lock()
	e.pending = append(e.pending, pendingTask{id: id, task: task})
	sort.SliceStable(e.pending, func(i, j int) bool {
		return e.pending[i].task.Priority < e.pending[j].task.Priority
	})
	e.states[id] = scraper.TaskStatePending
	e.mu.Unlock()

	e.logger.Info("task submitted",
		zap.String("task_id", id),
		zap.String("url", task.URL),
		zap.Int("priority", task.Priority),
	)
	return id, nil
}

// SubmitBatch submits tasks in order, stopping at the first failure.
func (e *Engine) SubmitBatch(tasks []scraper.Task) ([]string, error) {
	ids := make([]string, 0, len(tasks))
	for _, task := range tasks {
		id, err := e.Submit(task)
		if err != nil {
			return ids, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// RunBatch removes up to maxTasks from the front of the pending list and
// drives each through the pipeline, capping in-flight work at
// Options.MaxConcurrent. It blocks until every admitted task produced a
// result or the batch timeout expired, and returns the number of results
// stored. Calling it with an empty pending list is a no-op.
func (e *Engine) RunBatch(ctx context.Context, maxTasks int) int {
	e.mu.Lock()
	if maxTasks <= 0 || maxTasks > len(e.pending) {
		maxTasks = len(e.pending)
	}
	admitted := make([]pendingTask, maxTasks)
	copy(admitted, e.pending[:maxTasks])
	e.pending = e.pending[maxTasks:]
	e.mu.Unlock()

	if len(admitted) == 0 {
		return 0
	}

	if e.opts.BatchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.opts.BatchTimeout)
		defer cancel()
	}

	e.logger.Info("processing batch", zap.Int("tasks", len(admitted)))
	metrics.IncBatches()

	sem := make(chan struct{}, e.opts.MaxConcurrent)
	results := make(chan scraper.ScrapeResult, len(admitted))
	var wg sync.WaitGroup
	for _, pt := range admitted {
		wg.Add(1)
		go func(pt pendingTask) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			e.setState(pt.id, scraper.TaskStateRunning)
			e.addRunning(1)
			metrics.IncActiveTasks()
			defer metrics.DecActiveTasks()
			defer e.addRunning(-1)

			results <- e.runTask(ctx, pt.id, pt.task)
		}(pt)
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	stored := 0
	for {
		select {
		case result, ok := <-results:
			if !ok {
				return stored
			}
			e.deliver(result)
			stored++
		case <-ctx.Done():
			// Stragglers were asked to cancel through ctx; their results
			// are dropped rather than forced into the store.
			e.logger.Warn("batch timed out", zap.Int("stored", stored))
			go e.drainDropped(results)
			return stored
		}
	}
}

// drainDropped consumes results that finished after the batch gave up, so
// the task goroutines can exit, and records their terminal state.
func (e *Engine) drainDropped(results <-chan scraper.ScrapeResult) {
	for result := range results {
		e.setState(result.TaskID, scraper.TaskStateFailed)
		e.logger.Debug("dropped late result", zap.String("task_id", result.TaskID))
	}
}

// runTask drives one task through rate limiting, fetch, and extraction.
// Any panic escaping the pipeline is converted into a failed result here so
// sibling tasks are never affected.
func (e *Engine) runTask(ctx context.Context, id string, task scraper.Task) (result scraper.ScrapeResult) {
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("task pipeline panicked",
				zap.String("task_id", id),
				zap.String("url", task.URL),
				zap.Any("panic", r),
			)
			result = scraper.ScrapeResult{
				TaskID:       id,
				Status:       scraper.StatusFailed,
				Source:       task.Source,
				URL:          task.URL,
				ElapsedMs:    float64(time.Since(start).Milliseconds()),
				ErrorMessage: fmt.Sprintf("task processing failed: %v", r),
				ErrorKind:    scraper.ErrKindInternal,
				CreatedAt:    e.clock.Now(),
			}
		}
		e.fireCallback(task, result)
	}()

	if delay := e.limiter.Acquire(task.URL); delay > 0 {
		metrics.ObserveRateLimitDelay(scraper.Domain(task.URL), delay)
		if !sleepCtx(ctx, delay) {
			return scraper.ScrapeResult{
				TaskID:       id,
				Status:       scraper.StatusFailed,
				Source:       task.Source,
				URL:          task.URL,
				ElapsedMs:    float64(time.Since(start).Milliseconds()),
				ErrorMessage: "batch canceled while waiting for rate limit",
				ErrorKind:    scraper.ErrKindTimeout,
				CreatedAt:    e.clock.Now(),
			}
		}
	}

	// Feedback carries only the fetch itself; counting the limiter's own
	// imposed wait as latency would keep a throttled domain throttled.
	fetchStart := time.Now()
	outcome := e.fetcher.Fetch(ctx, task.URL, nil)
	e.limiter.RecordResponse(task.URL, time.Since(fetchStart), outcome.Status == scraper.StatusSuccess)

	result = scraper.ScrapeResult{
		TaskID:       id,
		Status:       outcome.Status,
		Source:       task.Source,
		URL:          task.URL,
		ElapsedMs:    outcome.ElapsedMs,
		ByteSize:     outcome.ByteSize,
		ErrorMessage: outcome.ErrorMessage,
		ErrorKind:    outcome.ErrorKind,
		UserAgent:    outcome.UserAgent,
		CreatedAt:    e.clock.Now(),
	}
	if outcome.Status != scraper.StatusSuccess {
		return result
	}

	book, err := e.extractor.Extract(outcome.Body, task.URL, task.Source)
	switch {
	case err != nil:
		result.Status = scraper.StatusPartial
		result.ErrorMessage = fmt.Sprintf("book data extraction failed: %v", err)
		result.ErrorKind = scraper.ErrKindExtraction
	case book == nil:
		result.Status = scraper.StatusPartial
		result.ErrorMessage = "no book data found in page"
		result.ErrorKind = scraper.ErrKindExtraction
	default:
		result.Book = book
	}
	return result
}

// deliver stores the result and finalizes task state.
func (e *Engine) deliver(result scraper.ScrapeResult) {
	e.store.Add(result)
	metrics.ObserveTask(string(result.Status))

	state := scraper.TaskStateCompleted
	if result.Status == scraper.StatusFailed {
		state = scraper.TaskStateFailed
	}
	e.setState(result.TaskID, state)
}

// fireCallback delivers the optional completion hook. Callback failures are
// logged and swallowed, never failing the task.
func (e *Engine) fireCallback(task scraper.Task, result scraper.ScrapeResult) {
	if task.Callback == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("task callback panicked",
				zap.String("url", task.URL),
				zap.Any("panic", r),
			)
		}
	}()
	task.Callback(result)
}

// TaskState reports the lifecycle state of a submitted task.
func (e *Engine) TaskState(id string) (scraper.TaskState, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	state, ok := e.states[id]
	return state, ok
}

// Results returns the completed collection (success and partial).
func (e *Engine) Results() []scraper.ScrapeResult {
	return e.store.Completed()
}

// FailedResults returns the failed collection.
func (e *Engine) FailedResults() []scraper.ScrapeResult {
	return e.store.Failed()
}

// ClearResults empties both collections without touching the counters.
func (e *Engine) ClearResults() {
	e.store.Clear()
}

// Stats assembles the aggregate engine view.
func (e *Engine) Stats() Stats {
	total, successful, failures := e.store.Counters()
	completed, failed := e.store.Sizes()

	e.mu.Lock()
	pending := len(e.pending)
	running := e.running
	e.mu.Unlock()

	uptime := e.clock.Now().Sub(e.started).Seconds()
	if uptime < 1 {
		uptime = 1
	}
	successRate := 1.0
	if total > 0 {
		successRate = float64(successful) / float64(total)
	}

	return Stats{
		UptimeSeconds:      uptime,
		TotalRequests:      total,
		SuccessfulRequests: successful,
		FailedRequests:     failures,
		SuccessRate:        successRate,
		RequestsPerSecond:  float64(total) / uptime,
		PendingTasks:       pending,
		RunningTasks:       running,
		CompletedTasks:     completed,
		FailedTasks:        failed,
		RateLimiter:        e.limiter.Snapshot(),
		FetchCache:         e.fetcher.CacheSnapshot(),
	}
}

func (e *Engine) sourceEnabled(source scraper.Source) bool {
	if len(e.opts.EnabledSources) == 0 {
		return true
	}
	for _, s := range e.opts.EnabledSources {
		if s == source {
			return true
		}
	}
	// Unknown is always accepted; it only means the submitter could not
	// classify the site.
	return source == scraper.SourceUnknown
}

func (e *Engine) setState(id string, state scraper.TaskState) {
	e.mu.Lock()
	e.states[id] = state
	e.mu.Unlock()
}

func (e *Engine) addRunning(delta int) {
	e.mu.Lock()
	e.running += delta
	e.mu.Unlock()
}

// sleepCtx waits for d unless the context finishes first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
