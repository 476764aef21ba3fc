package scraper

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDomain(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		url  string
		want string
	}{
		{"plain host", "https://openlibrary.org/books/OL123", "openlibrary.org"},
		{"uppercase host", "https://Books.Google.COM/books?id=1", "books.google.com"},
		{"host with port", "http://amazon.com:8080/dp/1", "amazon.com"},
		{"missing host", "not a url", "default"},
		{"empty", "", "default"},
		{"relative path", "/books/123", "default"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tc.want, Domain(tc.url))
		})
	}
}

func TestParseSource(t *testing.T) {
	t.Parallel()

	require.Equal(t, SourceGoodreads, ParseSource("goodreads"))
	require.Equal(t, SourceGoogleBooks, ParseSource("google_books"))
	require.Equal(t, SourceUnknown, ParseSource("librarything"))
	require.Equal(t, SourceUnknown, ParseSource(""))
}
