package extract

import (
	"encoding/json"
	"strconv"

	"github.com/PuerkitoBio/goquery"

	"github.com/shelfscout/bookscraper/internal/scraper"
)

// fromStructuredData harvests linked-data blocks and returns the first
// book-typed object that yields a usable title.
func (p *Pipeline) fromStructuredData(doc *goquery.Document, source scraper.Source) *scraper.BookRecord {
	for _, item := range collectStructuredData(doc) {
		if !typeDenotesBook(item["@type"]) {
			continue
		}
		rec := mapBookObject(item, source)
		if rec.Title != "" {
			return rec
		}
		p.logger.Debug("book-typed object without a name, skipping")
	}
	return nil
}

// collectStructuredData gathers JSON-LD blocks and microdata items into
// generic key-value objects.
func collectStructuredData(doc *goquery.Document) []map[string]any {
	var items []map[string]any

	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		var raw any
		if err := json.Unmarshal([]byte(s.Text()), &raw); err != nil {
			return
		}
		items = append(items, flattenJSONLD(raw)...)
	})

	doc.Find("[itemtype]").Each(func(_ int, s *goquery.Selection) {
		item := map[string]any{
			"@type":    s.AttrOr("itemtype", ""),
			"@context": "http://schema.org",
		}
		s.Find("[itemprop]").Each(func(_ int, prop *goquery.Selection) {
			name := prop.AttrOr("itemprop", "")
			value := cleanText(prop.Text())
			if value == "" {
				value = prop.AttrOr("content", "")
			}
			if name != "" && value != "" {
				item[name] = value
			}
		})
		if len(item) > 2 {
			items = append(items, item)
		}
	})

	return items
}

// flattenJSONLD expands top-level arrays and @graph containers into a flat
// object list.
func flattenJSONLD(raw any) []map[string]any {
	switch v := raw.(type) {
	case map[string]any:
		if graph, ok := v["@graph"].([]any); ok {
			var out []map[string]any
			for _, g := range graph {
				if m, ok := g.(map[string]any); ok {
					out = append(out, m)
				}
			}
			return out
		}
		return []map[string]any{v}
	case []any:
		var out []map[string]any
		for _, entry := range v {
			if m, ok := entry.(map[string]any); ok {
				out = append(out, m)
			}
		}
		return out
	default:
		return nil
	}
}

func typeDenotesBook(t any) bool {
	switch v := t.(type) {
	case string:
		return v == "Book" || v == "http://schema.org/Book" || v == "https://schema.org/Book"
	case []any:
		for _, entry := range v {
			if typeDenotesBook(entry) {
				return true
			}
		}
	}
	return false
}

// mapBookObject maps known schema.org book fields onto a BookRecord. The
// whole object is retained verbatim as source metadata.
func mapBookObject(item map[string]any, source scraper.Source) *scraper.BookRecord {
	rec := &scraper.BookRecord{
		Title:          stringField(item, "name"),
		Authors:        authorList(item["author"]),
		ISBN:           stringField(item, "isbn"),
		ISBN10:         stringField(item, "isbn10"),
		ISBN13:         stringField(item, "isbn13"),
		Publisher:      nameOrString(item["publisher"]),
		Description:    stringField(item, "description"),
		CoverImageURL:  namelessURL(item["image"]),
		Source:         source,
		SourceID:       stringField(item, "identifier"),
		SourceURL:      stringField(item, "url"),
		SourceMetadata: item,
	}
	if agg, ok := item["aggregateRating"].(map[string]any); ok {
		rec.Rating = floatField(agg, "ratingValue")
		rec.RatingCount = int(floatField(agg, "ratingCount"))
	}
	return rec
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

func floatField(m map[string]any, key string) float64 {
	switch v := m[key].(type) {
	case float64:
		return v
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}

// nameOrString handles values that appear either as a plain string or as a
// nested object with a name, as publisher does in the wild.
func nameOrString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case map[string]any:
		return stringField(t, "name")
	default:
		return ""
	}
}

// namelessURL handles image fields that are either a URL string or an
// ImageObject.
func namelessURL(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case map[string]any:
		return stringField(t, "url")
	default:
		return ""
	}
}

// authorList accepts a string, an object with a name, or a list of either.
func authorList(v any) []string {
	switch t := v.(type) {
	case string:
		if t == "" {
			return nil
		}
		return []string{t}
	case map[string]any:
		if name := stringField(t, "name"); name != "" {
			return []string{name}
		}
		return nil
	case []any:
		var out []string
		for _, entry := range t {
			out = append(out, authorList(entry)...)
		}
		return out
	default:
		return nil
	}
}
