package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestSanitizeSite(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{"standard http", "http://openlibrary.org/books", "openlibrary.org"},
		{"standard https", "https://Books.Google.com/books", "books.google.com"},
		{"no scheme", "goodreads.com/book/show/1", "goodreads.com"},
		{"just host", "amazon.com", "amazon.com"},
		{"host with port", "example.com:8080", "example.com"},
		{"invalid url", "http://%", "unknown"},
		{"empty string", "", "unknown"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := SanitizeSite(tc.input); got != tc.expected {
				t.Errorf("SanitizeSite(%q) = %q; want %q", tc.input, got, tc.expected)
			}
		})
	}
}

func TestInit(t *testing.T) {
	// Call Init multiple times to test idempotency.
	Init()
	Init()

	if scraperFetchesTotal == nil || scraperBytesTotal == nil ||
		scraperTasksTotal == nil || httpRequestDurationSeconds == nil {
		t.Fatal("Init() did not initialize metrics collectors")
	}

	before := testutil.ToFloat64(scraperTasksTotal.WithLabelValues("success"))
	ObserveTask("success")
	after := testutil.ToFloat64(scraperTasksTotal.WithLabelValues("success"))
	if after != before+1 {
		t.Errorf("expected task counter to increment, got %f -> %f", before, after)
	}
}
