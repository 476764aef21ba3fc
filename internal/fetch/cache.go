package fetch

import (
	"net/http"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
)

// cachedResponse holds a successful GET body for reuse within a run.
type cachedResponse struct {
	statusCode int
	headers    http.Header
	body       []byte
	userAgent  string
}

// CacheSnapshot reports response cache utilization through Stats.
type CacheSnapshot struct {
	Enabled  bool  `json:"enabled"`
	Size     int   `json:"size"`
	Capacity int   `json:"capacity"`
	Hits     int64 `json:"hits"`
	Misses   int64 `json:"misses"`
}

// responseCache is a bounded LRU of recent successful GET responses keyed by
// URL. Repeated admissions of the same URL within a run skip the network.
type responseCache struct {
	entries  *lru.Cache[string, cachedResponse]
	capacity int
	hits     atomic.Int64
	misses   atomic.Int64
}

// newResponseCache returns nil when size <= 0, disabling caching.
func newResponseCache(size int) *responseCache {
	if size <= 0 {
		return nil
	}
	entries, err := lru.New[string, cachedResponse](size)
	if err != nil {
		return nil
	}
	return &responseCache{entries: entries, capacity: size}
}

func (c *responseCache) get(url string) (cachedResponse, bool) {
	if c == nil {
		return cachedResponse{}, false
	}
	entry, ok := c.entries.Get(url)
	if ok {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	return entry, ok
}

func (c *responseCache) put(url string, entry cachedResponse) {
	if c == nil {
		return
	}
	c.entries.Add(url, entry)
}

func (c *responseCache) snapshot() CacheSnapshot {
	if c == nil {
		return CacheSnapshot{}
	}
	return CacheSnapshot{
		Enabled:  true,
		Size:     c.entries.Len(),
		Capacity: c.capacity,
		Hits:     c.hits.Load(),
		Misses:   c.misses.Load(),
	}
}
