package extract

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/shelfscout/bookscraper/internal/scraper"
)

func TestExtract_JSONLDBook(t *testing.T) {
	t.Parallel()

	body := []byte(`<html><head>
		<script type="application/ld+json">
		{
			"@context": "http://schema.org",
			"@type": "Book",
			"name": "Dune",
			"author": "Frank Herbert",
			"isbn": "9780441172719",
			"publisher": {"name": "Ace Books"},
			"description": "Set on the desert planet Arrakis.",
			"aggregateRating": {"ratingValue": 4.25, "ratingCount": 1200000},
			"image": "https://covers.example.org/dune.jpg",
			"identifier": "dune-1965",
			"url": "https://openlibrary.org/works/OL893415W"
		}
		</script>
		</head><body></body></html>`)

	p := New(nil)
	rec, err := p.Extract(body, "https://openlibrary.org/works/OL893415W", scraper.SourceOpenLibrary)
	require.NoError(t, err)
	require.NotNil(t, rec)

	require.Equal(t, "Dune", rec.Title)
	require.Equal(t, []string{"Frank Herbert"}, rec.Authors)
	require.Equal(t, "9780441172719", rec.ISBN)
	require.Equal(t, "Ace Books", rec.Publisher)
	require.Equal(t, 4.25, rec.Rating)
	require.Equal(t, 1200000, rec.RatingCount)
	require.Equal(t, "https://covers.example.org/dune.jpg", rec.CoverImageURL)
	require.Equal(t, "dune-1965", rec.SourceID)
	require.Equal(t, scraper.SourceOpenLibrary, rec.Source)
	require.Equal(t, "Book", rec.SourceMetadata["@type"])
}

func TestExtract_JSONLDVariants(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name        string
		body        string
		wantTitle   string
		wantAuthors []string
	}{
		{
			name: "top level array",
			body: `<script type="application/ld+json">
				[{"@type": "WebSite", "name": "Catalog"},
				 {"@type": "Book", "name": "Hyperion", "author": [{"name": "Dan Simmons"}]}]
			</script>`,
			wantTitle:   "Hyperion",
			wantAuthors: []string{"Dan Simmons"},
		},
		{
			name: "graph container",
			body: `<script type="application/ld+json">
				{"@context": "https://schema.org", "@graph": [
					{"@type": "BreadcrumbList"},
					{"@type": "https://schema.org/Book", "name": "Solaris", "author": "Stanislaw Lem"}
				]}
			</script>`,
			wantTitle:   "Solaris",
			wantAuthors: []string{"Stanislaw Lem"},
		},
		{
			name: "type list",
			body: `<script type="application/ld+json">
				{"@type": ["Product", "Book"], "name": "Neuromancer", "author": ["William Gibson"]}
			</script>`,
			wantTitle:   "Neuromancer",
			wantAuthors: []string{"William Gibson"},
		},
	}

	p := New(nil)
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			rec, err := p.Extract([]byte("<html><head>"+tc.body+"</head><body></body></html>"), "https://example.com/b", scraper.SourceUnknown)
			require.NoError(t, err)
			require.NotNil(t, rec)
			require.Equal(t, tc.wantTitle, rec.Title)
			require.Equal(t, tc.wantAuthors, rec.Authors)
		})
	}
}

func TestExtract_MicrodataBook(t *testing.T) {
	t.Parallel()

	body := []byte(`<html><body>
		<div itemscope itemtype="http://schema.org/Book">
			<span itemprop="name">The Dispossessed</span>
			<span itemprop="isbn">9780060512750</span>
		</div>
	</body></html>`)

	p := New(nil)
	rec, err := p.Extract(body, "https://books.google.com/books?id=x", scraper.SourceGoogleBooks)
	require.NoError(t, err)
	require.NotNil(t, rec)
	require.Equal(t, "The Dispossessed", rec.Title)
	require.Equal(t, "9780060512750", rec.ISBN)
}

func TestExtract_BookTypeWithoutNameFallsThrough(t *testing.T) {
	t.Parallel()

	body := []byte(`<html><head>
		<script type="application/ld+json">{"@type": "Book", "isbn": "123"}</script>
		<title>A Wizard of Earthsea</title>
	</head><body></body></html>`)

	p := New(nil)
	rec, err := p.Extract(body, "https://example.com/b", scraper.SourceUnknown)
	require.NoError(t, err)
	require.NotNil(t, rec)
	require.Equal(t, "A Wizard of Earthsea", rec.Title, "heuristic pass should supply the title")
}

func TestExtract_HeuristicPass(t *testing.T) {
	t.Parallel()

	longAuthor := strings.Repeat("x", 120)
	body := []byte(`<html><head>
		<title>The Left Hand of Darkness</title>
		<link rel="canonical" href="/book/left-hand">
		<meta property="og:type" content="book">
	</head><body>
		<span class="book-author">Ursula K. Le Guin</span>
		<span class="author-bio">` + longAuthor + `</span>
		<div class="description">Short</div>
		<div class="Description">A tale of the planet Gethen, where inhabitants have no fixed sex.</div>
		<img class="BookCover" src="/img/cover-left-hand.jpg" alt="front cover">
	</body></html>`)

	p := New(nil)
	rec, err := p.Extract(body, "https://example.com/book/left-hand", scraper.SourceUnknown)
	require.NoError(t, err)
	require.NotNil(t, rec)

	require.Equal(t, "The Left Hand of Darkness", rec.Title)
	require.Equal(t, []string{"Ursula K. Le Guin"}, rec.Authors, "over-long author strings must be discarded")
	require.Contains(t, rec.Description, "planet Gethen")
	require.Equal(t, "https://example.com/img/cover-left-hand.jpg", rec.CoverImageURL)
	require.Equal(t, "https://example.com/book/left-hand", rec.SourceMetadata["canonical_url"])
}

func TestExtract_HeadingFallbackForTitle(t *testing.T) {
	t.Parallel()

	body := []byte(`<html><body><h2>Roadside Picnic</h2></body></html>`)

	p := New(nil)
	rec, err := p.Extract(body, "https://example.com/b", scraper.SourceUnknown)
	require.NoError(t, err)
	require.NotNil(t, rec)
	require.Equal(t, "Roadside Picnic", rec.Title)
}

func TestExtract_NoTitleMeansNoRecord(t *testing.T) {
	t.Parallel()

	body := []byte(`<html><body><p>nothing to see</p></body></html>`)

	p := New(nil)
	rec, err := p.Extract(body, "https://example.com/b", scraper.SourceUnknown)
	require.NoError(t, err)
	require.Nil(t, rec)
}

func TestCleanText(t *testing.T) {
	t.Parallel()

	require.Equal(t, "a b c", cleanText("  a\n\t b \x00 c  "))
	require.Equal(t, "", cleanText("   "))
}
