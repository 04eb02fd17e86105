// Package synthesis turns a fully-buffered, non-streaming upstream response
// into an SSE byte stream in the client's own grammar (OpenAI or Anthropic),
// so a client that asked to stream never learns the proxy forced the
// upstream call to run non-streaming.
package synthesis

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/llamabridge/llamabridge/internal/chars"
)

// DefaultTextChunkChars and DefaultGeneralChunkChars are spec.md §4.D's
// defaults: ~20 characters for text_delta fragments, ~50 for every other
// incrementally-chunked field (tool arguments, thinking). They apply when
// Config.ChunkSizeChars is zero; a non-zero ChunkSizeChars is used for
// every chunked field.
const (
	DefaultTextChunkChars    = 20
	DefaultGeneralChunkChars = 50
	whitespaceLookback       = 8
)

// Config tunes chunk size and inter-event pacing from synthesis.* in
// config.yaml.
type Config struct {
	ChunkSizeChars int
	ChunkDelayMs   int
}

func (c Config) textChunkSize() int {
	if c.ChunkSizeChars > 0 {
		return c.ChunkSizeChars
	}
	return DefaultTextChunkChars
}

func (c Config) generalChunkSize() int {
	if c.ChunkSizeChars > 0 {
		return c.ChunkSizeChars
	}
	return DefaultGeneralChunkChars
}

func (c Config) delay() time.Duration {
	if c.ChunkDelayMs <= 0 {
		return 0
	}
	return time.Duration(c.ChunkDelayMs) * time.Millisecond
}

// chunk splits s into char-boundary-safe fragments no longer than
// chunkSize bytes each, preferring to break on whitespace within a small
// lookback window.
func chunk(s string, chunkSize int) []string {
	if s == "" {
		return nil
	}
	var out []string
	for p := 0; p < len(s); {
		end := chars.NextChunkEnd(s, p, chunkSize, whitespaceLookback)
		out = append(out, s[p:end])
		p = end
	}
	return out
}

func newStreamID(prefix string) string {
	return prefix + uuid.NewString()
}

func writeSSELine(w io.Writer, event string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if event != "" {
		if _, err := io.WriteString(w, "event: "+event+"\n"); err != nil {
			return err
		}
	}
	if _, err := io.WriteString(w, "data: "); err != nil {
		return err
	}
	if _, err := w.Write(body); err != nil {
		return err
	}
	_, err = io.WriteString(w, "\n\n")
	return err
}

func pace(w io.Writer, cfg Config) {
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
	if d := cfg.delay(); d > 0 {
		time.Sleep(d)
	}
}
