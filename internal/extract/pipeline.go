// Package extract turns raw catalog markup into book records. Structured
// data (JSON-LD, microdata) is tried first; a heuristic selector pass covers
// pages without it.
package extract

import (
	"bytes"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/shelfscout/bookscraper/internal/scraper"
)

// Pipeline implements scraper.Extractor with goquery as the single query
// engine.
type Pipeline struct {
	logger *zap.Logger
}

// New builds a Pipeline.
func New(logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{logger: logger}
}

// Extract runs the structured pass, then the heuristic pass. A nil record
// with a nil error means no usable title was found anywhere.
func (p *Pipeline) Extract(body []byte, pageURL string, source scraper.Source) (*scraper.BookRecord, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse markup: %w", err)
	}

	if rec := p.fromStructuredData(doc, source); rec != nil {
		p.logger.Debug("structured data extraction succeeded", zap.String("url", pageURL))
		return rec, nil
	}

	if rec := p.fromHeuristics(doc, pageURL, source); rec != nil {
		p.logger.Debug("heuristic extraction succeeded", zap.String("url", pageURL))
		return rec, nil
	}

	p.logger.Debug("no book data found", zap.String("url", pageURL))
	return nil, nil
}

var (
	whitespaceRe = regexp.MustCompile(`\s+`)
	controlRe    = regexp.MustCompile(`[\x00-\x08\x0b\x0c\x0e-\x1f\x7f-\x9f]`)
)

// cleanText collapses whitespace and strips control characters.
func cleanText(s string) string {
	s = controlRe.ReplaceAllString(s, "")
	s = whitespaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// resolveURL makes href absolute against base; on any failure the raw value
// is returned unchanged.
func resolveURL(base, href string) string {
	if base == "" || href == "" {
		return href
	}
	b, err := url.Parse(base)
	if err != nil {
		return href
	}
	h, err := url.Parse(href)
	if err != nil {
		return href
	}
	return b.ResolveReference(h).String()
}
