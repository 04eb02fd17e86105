package backend

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCopyHeadersStripsHopByHop(t *testing.T) {
	src := http.Header{}
	src.Set("Authorization", "Bearer x")
	src.Set("Connection", "keep-alive")
	src.Set("Host", "client-host")
	src.Set("X-Client-Id", "abc")

	dst := http.Header{}
	copyHeaders(dst, src)

	assert.Equal(t, "Bearer x", dst.Get("Authorization"))
	assert.Equal(t, "abc", dst.Get("X-Client-Id"))
	assert.Empty(t, dst.Get("Connection"))
	assert.Empty(t, dst.Get("Host"))
}

func TestDecodeBodyGzip(t *testing.T) {
	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	_, err := gw.Write([]byte(`{"ok":true}`))
	require.NoError(t, err)
	require.NoError(t, gw.Close())

	r, err := DecodeBody("gzip", &buf)
	require.NoError(t, err)
	out, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(out))
}

func TestDecodeBodyIdentity(t *testing.T) {
	r, err := DecodeBody("", bytes.NewBufferString("plain"))
	require.NoError(t, err)
	out, _ := io.ReadAll(r)
	assert.Equal(t, "plain", string(out))
}

func TestFetchContextTotalCachesAcrossCalls(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		_ = json.NewEncoder(w).Encode(map[string]any{
			"default_generation_settings": map[string]any{"n_ctx": 8192},
		})
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, 5*time.Second, TLSOptions{})
	require.NoError(t, err)

	n1, ok1 := c.FetchContextTotal(context.Background())
	n2, ok2 := c.FetchContextTotal(context.Background())

	require.True(t, ok1)
	require.True(t, ok2)
	assert.Equal(t, 8192, n1)
	assert.Equal(t, 8192, n2)
	assert.Equal(t, 1, hits, "second call must be served from the cache, not a second upstream fetch")
}

func TestFetchContextTotalMissNeverErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, 5*time.Second, TLSOptions{})
	require.NoError(t, err)

	_, ok := c.FetchContextTotal(context.Background())
	assert.False(t, ok)
}

func TestIsPassthroughExcludesLocalHealth(t *testing.T) {
	assert.True(t, IsPassthrough("/props"))
	assert.True(t, IsPassthrough("/v1/models"))
	assert.False(t, IsPassthrough("/health"), "/health is proxy-local, never forwarded")
}

func TestPassthroughCopiesBodyAndStatusVerbatim(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Upstream", "yes")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("raw bytes"))
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, 5*time.Second, TLSOptions{})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/props", nil)
	rec := httptest.NewRecorder()

	require.NoError(t, c.Passthrough(rec, req))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "raw bytes", rec.Body.String())
	assert.Equal(t, "yes", rec.Header().Get("X-Upstream"))
}
