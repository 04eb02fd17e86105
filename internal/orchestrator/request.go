package orchestrator

import (
	"bytes"
	"context"
	"net/http"
	"time"

	"github.com/llamabridge/llamabridge/internal/metrics"
	"github.com/llamabridge/llamabridge/internal/synthesis"
)

// forwardToUpstream dispatches body to the upstream's single OpenAI-shaped
// chat-completions endpoint (spec.md §4.E steps 3-4) and fully buffers the
// response. A non-nil error here is always UpstreamTransport — non-2xx
// upstream responses are returned normally for the caller to forward
// unchanged (UpstreamHTTP, spec.md §7).
func (o *Orchestrator) forwardToUpstream(ctx context.Context, headers http.Header, body []byte) (respBody []byte, status int, err error) {
	resp, err := o.client.Forward(ctx, http.MethodPost, "/v1/chat/completions", headers, bytes.NewReader(body))
	if err != nil {
		return nil, 0, err
	}
	respBody, err = o.client.ReadUpstreamBody(resp)
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return respBody, resp.StatusCode, nil
}

// collectAndSubmit derives RequestMetrics from the fixed response and the
// originating client request, fills in the context-window percentage and
// client/conversation identifiers, and hands the record to the exporter
// manager's bounded queue (non-blocking), per spec.md §4.E step 8.
func (o *Orchestrator) collectAndSubmit(r *http.Request, responseBody, requestBody []byte, streaming bool, duration time.Duration) *metrics.RequestMetrics {
	m := metrics.FromResponse(responseBody, requestBody, streaming, duration)
	m.ClientID = r.Header.Get("X-Client-Id")
	m.ConversationID = r.Header.Get("X-Conversation-Id")

	if total, ok := o.client.FetchContextTotal(r.Context()); ok {
		m.AttachContext(int64(total), ok)
	}
	if o.exporters != nil {
		o.exporters.Submit(m)
	}
	return m
}

func (o *Orchestrator) synthesisConfig() synthesis.Config {
	cfg := o.cfg.Get()
	return synthesis.Config{
		ChunkSizeChars: cfg.Synthesis.ChunkSizeChars,
		ChunkDelayMs:   cfg.Synthesis.ChunkDelayMs,
	}
}
