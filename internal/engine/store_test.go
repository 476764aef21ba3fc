package engine

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/shelfscout/bookscraper/internal/scraper"
)

func result(id string, status scraper.ResultStatus) scraper.ScrapeResult {
	return scraper.ScrapeResult{TaskID: id, Status: status, URL: "https://a.test/" + id}
}

func TestStore_PartialCountsAsCompleted(t *testing.T) {
	t.Parallel()

	s := NewStore()
	s.Add(result("1", scraper.StatusSuccess))
	s.Add(result("2", scraper.StatusPartial))
	s.Add(result("3", scraper.StatusFailed))

	completed := s.Completed()
	require.Len(t, completed, 2)
	require.Equal(t, "1", completed[0].TaskID)
	require.Equal(t, "2", completed[1].TaskID)

	failed := s.Failed()
	require.Len(t, failed, 1)
	require.Equal(t, "3", failed[0].TaskID)
}

func TestStore_CountersSurviveClear(t *testing.T) {
	t.Parallel()

	s := NewStore()
	s.Add(result("1", scraper.StatusSuccess))
	s.Add(result("2", scraper.StatusPartial))
	s.Add(result("3", scraper.StatusFailed))

	s.Clear()

	require.Empty(t, s.Completed())
	require.Empty(t, s.Failed())

	total, successful, failures := s.Counters()
	require.EqualValues(t, 3, total)
	require.EqualValues(t, 2, successful)
	require.EqualValues(t, 1, failures)
}

func TestStore_ReturnedSlicesAreCopies(t *testing.T) {
	t.Parallel()

	s := NewStore()
	s.Add(result("1", scraper.StatusSuccess))

	got := s.Completed()
	got[0].TaskID = "mutated"

	require.Equal(t, "1", s.Completed()[0].TaskID)
}
