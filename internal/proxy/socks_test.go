package proxy

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewSocksClient(t *testing.T) {
	c, err := NewSocksClient("127.0.0.1:1080")
	require.NoError(t, err)
	require.Equal(t, classifierTimeout, c.Timeout)
	require.IsType(t, &http.Transport{}, c.Transport)
}

func TestNewSocksClientUnreachableProxy(t *testing.T) {
	c, err := NewSocksClient("127.0.0.1:1")
	require.NoError(t, err)

	_, err = c.Get("http://example.invalid/")
	require.Error(t, err)
}
