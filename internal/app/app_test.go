package app

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewBuildsServiceGraph(t *testing.T) {
	a, err := New("")
	require.NoError(t, err)
	defer a.Close()

	require.NotNil(t, a.Logger())
	require.NotNil(t, a.Engine())
	require.Equal(t, 8080, a.Config().Server.Port)
}

func TestNewRejectsBadConfig(t *testing.T) {
	t.Setenv("BOOKSCRAPER_SERVER_PORT", "0")

	_, err := New("")
	require.Error(t, err)
}

func TestServeShutsDownOnContextCancel(t *testing.T) {
	port := freePort(t)
	t.Setenv("BOOKSCRAPER_SERVER_PORT", fmt.Sprintf("%d", port))

	a, err := New("")
	require.NoError(t, err)
	defer a.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Serve(ctx) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d/healthz", port))
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 50*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}
