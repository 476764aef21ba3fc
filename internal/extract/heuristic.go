package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/shelfscout/bookscraper/internal/scraper"
)

const (
	maxAuthorLen   = 100
	minDescription = 20
)

// fromHeuristics extracts a record from page metadata and class-name
// conventions. Nil when no title can be resolved.
func (p *Pipeline) fromHeuristics(doc *goquery.Document, pageURL string, source scraper.Source) *scraper.BookRecord {
	meta := pageMetadata(doc, pageURL)

	title := meta["title"]
	if title == "" {
		if h := doc.Find("h1, h2").First(); h.Length() > 0 {
			title = cleanText(h.Text())
		}
	}
	if title == "" {
		return nil
	}

	var authors []string
	doc.Find(`[class*="author"], [class*="Author"]`).Each(func(_ int, s *goquery.Selection) {
		text := cleanText(s.Text())
		if text != "" && len(text) <= maxAuthorLen {
			authors = append(authors, text)
		}
	})

	var description string
	doc.Find(`[class*="description"], [class*="Description"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := cleanText(s.Text())
		if len(text) > minDescription {
			description = text
			return false
		}
		return true
	})

	var cover string
	doc.Find(`img[class*="cover"], img[class*="Cover"], .cover img, .Cover img`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		src := s.AttrOr("src", "")
		alt := s.AttrOr("alt", "")
		if src != "" && (strings.Contains(strings.ToLower(src), "cover") ||
			strings.Contains(strings.ToLower(alt), "cover")) {
			cover = resolveURL(pageURL, src)
			return false
		}
		return true
	})

	metaAny := make(map[string]any, len(meta))
	for k, v := range meta {
		metaAny[k] = v
	}

	return &scraper.BookRecord{
		Title:          title,
		Authors:        authors,
		Description:    description,
		CoverImageURL:  cover,
		Source:         source,
		SourceMetadata: metaAny,
	}
}

// pageMetadata gathers meta tags, the document title, and the canonical URL.
func pageMetadata(doc *goquery.Document, pageURL string) map[string]string {
	meta := make(map[string]string)

	doc.Find("meta").Each(func(_ int, s *goquery.Selection) {
		name := s.AttrOr("name", "")
		if name == "" {
			name = s.AttrOr("property", "")
		}
		content := s.AttrOr("content", "")
		if name != "" && content != "" {
			meta[strings.ToLower(name)] = content
		}
	})

	if title := cleanText(doc.Find("title").First().Text()); title != "" {
		meta["title"] = title
	}

	if href, ok := doc.Find(`link[rel="canonical"]`).First().Attr("href"); ok && href != "" {
		meta["canonical_url"] = resolveURL(pageURL, href)
	}

	return meta
}
