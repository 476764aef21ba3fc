package scraper

import (
	"net/url"
	"strings"
)

// DefaultDomain is the rate-limiting key used when a URL has no usable host.
const DefaultDomain = "default"

// Domain extracts the lowercase host component of rawURL for use as a
// rate-limiting key. Unparsable or host-less URLs map to DefaultDomain.
func Domain(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return DefaultDomain
	}
	return strings.ToLower(u.Hostname())
}
