package engine

import (
	"sync"

	"github.com/shelfscout/bookscraper/internal/scraper"
)

// Store accumulates completed and failed results in memory for the lifetime
// of the process. Partial results live in the completed collection alongside
// full successes. The cumulative counters survive Clear.
type Store struct {
	mu        sync.Mutex
	completed []scraper.ScrapeResult
	failed    []scraper.ScrapeResult

	total      int64
	successful int64
	failures   int64
}

// NewStore builds an empty Store.
func NewStore() *Store {
	return &Store{}
}

// Add appends the result to the right collection and bumps counters.
func (s *Store) Add(result scraper.ScrapeResult) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.total++
	if result.Status == scraper.StatusFailed {
		s.failures++
		s.failed = append(s.failed, result)
		return
	}
	s.successful++
	s.completed = append(s.completed, result)
}

// Completed returns a copy of the completed collection.
func (s *Store) Completed() []scraper.ScrapeResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]scraper.ScrapeResult, len(s.completed))
	copy(out, s.completed)
	return out
}

// Failed returns a copy of the failed collection.
func (s *Store) Failed() []scraper.ScrapeResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]scraper.ScrapeResult, len(s.failed))
	copy(out, s.failed)
	return out
}

// Clear empties both collections. Counters keep accumulating.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.completed = nil
	s.failed = nil
}

// Counters returns the cumulative totals.
func (s *Store) Counters() (total, successful, failures int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total, s.successful, s.failures
}

// Sizes returns the current collection lengths.
func (s *Store) Sizes() (completed, failed int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.completed), len(s.failed)
}
