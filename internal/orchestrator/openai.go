package orchestrator

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"go.uber.org/zap"

	"github.com/llamabridge/llamabridge/internal/contentmodel"
	"github.com/llamabridge/llamabridge/internal/synthesis"
)

// handleOpenAI implements the OpenAI Chat Completions flow, spec.md §4.E
// steps 1-9: the upstream already speaks this grammar natively, so there
// is no bridging — only the stream-intent capture, the forced
// non-streaming upstream call, fix application, and synthesis-or-passthrough
// back to the client.
func (o *Orchestrator) handleOpenAI(w http.ResponseWriter, r *http.Request) {
	logger := obsLogger(r, o.logger)

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeOpenAIError(w, http.StatusBadRequest, "invalid_request_error", "failed to read request body")
		return
	}
	if !gjson.ValidBytes(body) {
		writeOpenAIError(w, http.StatusBadRequest, "invalid_request_error", "request body is not valid JSON")
		return
	}

	clientWantsStream := gjson.GetBytes(body, "stream").Bool()
	upstreamReq, err := sjson.SetBytes(body, "stream", false)
	if err != nil {
		writeOpenAIError(w, http.StatusBadRequest, "invalid_request_error", "failed to rewrite stream flag")
		return
	}

	start := time.Now()
	respBody, status, err := o.forwardToUpstream(r.Context(), r.Header, upstreamReq)
	if err != nil {
		logger.Warn("upstream transport failure", zap.Error(err))
		writeOpenAIError(w, http.StatusBadGateway, "upstream_error", err.Error())
		return
	}
	duration := time.Since(start)

	if status < 200 || status >= 300 {
		writeUpstreamBody(w, status, respBody)
		return
	}

	fixed := respBody
	if o.cfg.Get().Fixes.Enabled {
		fixed = o.fixes.Apply(respBody, upstreamReq)
	}

	var chatResp contentmodel.ChatResponse
	if err := json.Unmarshal(fixed, &chatResp); err != nil {
		logger.Warn("upstream response did not parse as a chat completion, forwarding as-is", zap.Error(err))
		writeUpstreamBody(w, status, fixed)
		o.collectAndSubmit(r, fixed, body, clientWantsStream, duration)
		return
	}

	o.collectAndSubmit(r, fixed, body, clientWantsStream, duration)

	if !clientWantsStream {
		writeUpstreamBody(w, status, fixed)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(status)
	if err := synthesis.WriteOpenAIStream(w, chatResp, o.synthesisConfig()); err != nil {
		logger.Warn("synthesizing openai stream failed", zap.Error(err))
	}
}

func writeUpstreamBody(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
