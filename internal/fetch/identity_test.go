package fetch

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRandomUserAgentIsFromPool(t *testing.T) {
	t.Parallel()

	for i := 0; i < 20; i++ {
		require.Contains(t, userAgents, randomUserAgent())
	}
}

func TestMergeHeaders(t *testing.T) {
	t.Parallel()

	extra := http.Header{}
	extra.Set("Accept-Language", "de-DE")
	extra.Set("X-Custom", "yes")

	merged := mergeHeaders(extra, userAgents[0])

	require.Equal(t, userAgents[0], merged.Get("User-Agent"))
	require.Equal(t, "de-DE", merged.Get("Accept-Language"), "caller headers override defaults")
	require.Equal(t, "yes", merged.Get("X-Custom"))
	require.Equal(t, "1", merged.Get("DNT"), "defaults survive when not overridden")
}

func TestMergeHeadersNilExtra(t *testing.T) {
	t.Parallel()

	merged := mergeHeaders(nil, userAgents[1])
	require.Equal(t, userAgents[1], merged.Get("User-Agent"))
	require.NotEmpty(t, merged.Get("Accept"))
}
