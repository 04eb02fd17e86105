package backend

import (
	"io"
	"net/http"
)

// PassthroughPaths lists the GET paths copied byte-for-byte: no parsing,
// no fix application, no metric extraction. GET /health is deliberately
// absent — it's proxy-local, answered without an upstream call.
var PassthroughPaths = map[string]bool{
	"/props":     true,
	"/slots":     true,
	"/v1/health": true,
	"/v1/models": true,
	"/metrics":   true,
}

// IsPassthrough reports whether path is one of the opaque monitoring
// endpoints forwarded verbatim.
func IsPassthrough(path string) bool {
	return PassthroughPaths[path]
}

// Passthrough forwards req's method, headers, and body to upstream and
// copies the response back to w unmodified — headers, status, and body
// bytes all preserved exactly as upstream sent them.
func (c *Client) Passthrough(w http.ResponseWriter, r *http.Request) error {
	resp, err := c.Forward(r.Context(), r.Method, r.URL.Path+queryString(r), r.Header, r.Body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	dst := w.Header()
	for k, values := range resp.Header {
		for _, v := range values {
			dst.Add(k, v)
		}
	}
	w.WriteHeader(resp.StatusCode)
	_, err = io.Copy(w, resp.Body)
	return err
}

func queryString(r *http.Request) string {
	if r.URL.RawQuery == "" {
		return ""
	}
	return "?" + r.URL.RawQuery
}
