// Package scraper defines core types shared across subsystems.
package scraper

import (
	"net/http"
	"time"
)

// Source identifies a supported book catalog site.
type Source string

// Known book sources.
const (
	SourceGoodreads   Source = "goodreads"
	SourceAmazon      Source = "amazon"
	SourceGoogleBooks Source = "google_books"
	SourceOpenLibrary Source = "openlibrary"
	SourceUnknown     Source = "unknown"
)

// ParseSource maps a string onto a known Source, defaulting to SourceUnknown.
func ParseSource(s string) Source {
	switch Source(s) {
	case SourceGoodreads, SourceAmazon, SourceGoogleBooks, SourceOpenLibrary:
		return Source(s)
	default:
		return SourceUnknown
	}
}

// TaskState represents the lifecycle state of a scrape task.
type TaskState string

// Task state values tracked by the engine.
const (
	TaskStatePending   TaskState = "pending"
	TaskStateRunning   TaskState = "running"
	TaskStateCompleted TaskState = "completed"
	TaskStateFailed    TaskState = "failed"
)

// ResultStatus classifies the outcome of a task or fetch.
type ResultStatus string

// Result status values. Partial means the fetch succeeded but extraction
// produced no usable book record.
const (
	StatusSuccess ResultStatus = "success"
	StatusPartial ResultStatus = "partial"
	StatusFailed  ResultStatus = "failed"
)

// Error kinds surfaced on failed outcomes.
const (
	ErrKindTimeout    = "timeout"
	ErrKindConnection = "connection"
	ErrKindExtraction = "extraction"
	ErrKindInternal   = "internal"
)

// Task is a single scrape request. Priority runs 1 (highest) to 10 (lowest).
// A task is immutable once admitted and produces exactly one ScrapeResult.
type Task struct {
	URL      string
	Source   Source
	Priority int
	Metadata map[string]any
	Callback func(ScrapeResult)
}

// FetchOutcome is the uniform record produced by one fetch attempt sequence.
// Retries are internal to the executor and never visible as separate outcomes.
type FetchOutcome struct {
	Status       ResultStatus `json:"status"`
	URL          string       `json:"url"`
	UserAgent    string       `json:"user_agent"`
	StatusCode   int          `json:"status_code,omitempty"`
	Headers      http.Header  `json:"headers,omitempty"`
	Body         []byte       `json:"-"`
	ElapsedMs    float64      `json:"elapsed_ms"`
	ByteSize     int          `json:"byte_size"`
	ErrorMessage string       `json:"error_message,omitempty"`
	ErrorKind    string       `json:"error_kind,omitempty"`
}

// BookRecord is the structured data extracted from a catalog page.
type BookRecord struct {
	Title          string         `json:"title"`
	Authors        []string       `json:"authors,omitempty"`
	ISBN           string         `json:"isbn,omitempty"`
	ISBN10         string         `json:"isbn10,omitempty"`
	ISBN13         string         `json:"isbn13,omitempty"`
	Publisher      string         `json:"publisher,omitempty"`
	Description    string         `json:"description,omitempty"`
	Rating         float64        `json:"rating,omitempty"`
	RatingCount    int            `json:"rating_count,omitempty"`
	CoverImageURL  string         `json:"cover_image_url,omitempty"`
	Source         Source         `json:"source"`
	SourceID       string         `json:"source_id,omitempty"`
	SourceURL      string         `json:"source_url,omitempty"`
	SourceMetadata map[string]any `json:"source_metadata,omitempty"`
}

// ScrapeResult is the task-level result appended to the result store.
type ScrapeResult struct {
	TaskID       string       `json:"task_id"`
	Status       ResultStatus `json:"status"`
	Source       Source       `json:"source"`
	URL          string       `json:"url"`
	ElapsedMs    float64      `json:"elapsed_ms"`
	ByteSize     int          `json:"byte_size"`
	Book         *BookRecord  `json:"book,omitempty"`
	ErrorMessage string       `json:"error_message,omitempty"`
	ErrorKind    string       `json:"error_kind,omitempty"`
	UserAgent    string       `json:"user_agent,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
}
