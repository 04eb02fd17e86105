// Package backend implements the pooled HTTP client to the upstream
// llama.cpp-style inference server: request forwarding with hop-by-hop
// header stripping, transparent gzip/brotli decompression, TLS options,
// and the process-wide n_ctx context cache.
package backend

import (
	"compress/gzip"
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
)

// hopByHopHeaders are stripped from every request forwarded upstream, per
// RFC 7230 §6.1 — connection-scoped, meaningless (or actively wrong) to
// relay. Passthrough copies upstream response headers without consulting
// this set.
var hopByHopHeaders = map[string]bool{
	"Connection":          true,
	"Keep-Alive":          true,
	"Proxy-Authenticate":  true,
	"Proxy-Authorization": true,
	"Te":                  true,
	"Trailer":             true,
	"Transfer-Encoding":   true,
	"Upgrade":             true,
	"Host":                true,
}

// TLSOptions mirrors config.TLSConfig without importing the config
// package, keeping backend independent of the config schema's shape.
type TLSOptions struct {
	AcceptInvalidCerts bool
	CACertPath         string
	ClientCertPath     string
	ClientKeyPath      string
}

// Client is the single pooled HTTP client every request in the process
// shares. One instance per upstream base URL.
type Client struct {
	BaseURL string
	http    *http.Client
	cache   *ContextCache
}

func NewClient(baseURL string, timeout time.Duration, tlsOpts TLSOptions) (*Client, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	tlsConfig, err := buildTLSConfig(tlsOpts)
	if err != nil {
		return nil, fmt.Errorf("build tls config: %w", err)
	}
	transport.TLSClientConfig = tlsConfig

	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout, Transport: transport},
		cache:   NewContextCache(),
	}, nil
}

func buildTLSConfig(opts TLSOptions) (*tls.Config, error) {
	cfg := &tls.Config{InsecureSkipVerify: opts.AcceptInvalidCerts} //nolint:gosec // operator opt-in for self-signed local backends

	if opts.CACertPath != "" {
		pem, err := os.ReadFile(opts.CACertPath)
		if err != nil {
			return nil, fmt.Errorf("read ca cert: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("no certificates parsed from %s", opts.CACertPath)
		}
		cfg.RootCAs = pool
	}

	if opts.ClientCertPath != "" && opts.ClientKeyPath != "" {
		cert, err := tls.LoadX509KeyPair(opts.ClientCertPath, opts.ClientKeyPath)
		if err != nil {
			return nil, fmt.Errorf("load client cert: %w", err)
		}
		cfg.Certificates = []tls.Certificate{cert}
	}

	return cfg, nil
}

// Forward sends method+path+body to the upstream, forwarding every header
// except hop-by-hop ones and Host (rewritten to the upstream's own host by
// http.Client). The caller owns closing the returned response's body.
func (c *Client) Forward(ctx context.Context, method, path string, headers http.Header, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return nil, err
	}
	copyHeaders(req.Header, headers)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func copyHeaders(dst, src http.Header) {
	for k, values := range src {
		if hopByHopHeaders[http.CanonicalHeaderKey(k)] {
			continue
		}
		for _, v := range values {
			dst.Add(k, v)
		}
	}
}

// DecodeBody transparently decompresses gzip/br content-encodings so
// downstream parsing, fixing, and synthesis always see plain bytes.
// ReadUpstreamBody applies it to every buffered response; Passthrough does
// not call it and relays the upstream's encoded bytes as they arrive.
func DecodeBody(contentEncoding string, r io.Reader) (io.Reader, error) {
	switch strings.ToLower(strings.TrimSpace(contentEncoding)) {
	case "gzip":
		return gzip.NewReader(r)
	case "br":
		return brotli.NewReader(r), nil
	case "", "identity":
		return r, nil
	default:
		return r, nil
	}
}

// ReadUpstreamBody reads and decompresses an upstream response body fully,
// bounded by the caller's context deadline.
func (c *Client) ReadUpstreamBody(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()
	decoded, err := DecodeBody(resp.Header.Get("Content-Encoding"), resp.Body)
	if err != nil {
		return nil, fmt.Errorf("decode upstream body: %w", err)
	}
	return io.ReadAll(decoded)
}

// Cache exposes the client's context cache for the orchestrator's metrics
// collection step.
func (c *Client) Cache() *ContextCache { return c.cache }
