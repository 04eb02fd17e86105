package orchestrator

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/llamabridge/llamabridge/internal/contentmodel"
	"github.com/llamabridge/llamabridge/internal/synthesis"
)

// anthropicRequest is the subset of an inbound /v1/messages body this proxy
// interprets. Fields it does not recognize simply aren't read — the
// upstream only ever sees the OpenAI-shaped request this handler builds.
type anthropicRequest struct {
	Model     string          `json:"model"`
	System    json.RawMessage `json:"system,omitempty"`
	Messages  []anthropicTurn `json:"messages"`
	Tools     []anthropicTool `json:"tools,omitempty"`
	MaxTokens int             `json:"max_tokens,omitempty"`
	Stream    bool            `json:"stream,omitempty"`
}

type anthropicTurn struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
}

type anthropicTool struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	InputSchema map[string]any `json:"input_schema,omitempty"`
}

// handleAnthropic implements the Anthropic Messages flow. The upstream
// speaks only the OpenAI grammar, so this is the one direction that
// actually bridges: the incoming request's message turns (including
// tool_result blocks) are converted to OpenAI messages before the upstream
// call, and the OpenAI-shaped response is converted back to an
// AnthropicMessage before it reaches the client (spec.md §4.A, §4.E).
func (o *Orchestrator) handleAnthropic(w http.ResponseWriter, r *http.Request) {
	logger := obsLogger(r, o.logger)

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeAnthropicError(w, http.StatusBadRequest, "invalid_request_error", "failed to read request body")
		return
	}
	if !gjson.ValidBytes(body) {
		writeAnthropicError(w, http.StatusBadRequest, "invalid_request_error", "request body is not valid JSON")
		return
	}

	var req anthropicRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeAnthropicError(w, http.StatusBadRequest, "invalid_request_error", "request body does not match the messages grammar")
		return
	}
	clientWantsStream := req.Stream

	upstreamReq, err := buildUpstreamRequest(req, logger)
	if err != nil {
		writeAnthropicError(w, http.StatusBadRequest, "invalid_request_error", "failed to convert message content")
		return
	}

	start := time.Now()
	respBody, status, err := o.forwardToUpstream(r.Context(), r.Header, upstreamReq)
	if err != nil {
		logger.Warn("upstream transport failure", zap.Error(err))
		writeAnthropicError(w, http.StatusBadGateway, "api_error", err.Error())
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
		logger.Warn("upstream response did not parse as a chat completion, cannot bridge to Anthropic grammar", zap.Error(err))
		writeAnthropicError(w, http.StatusBadGateway, "api_error", "upstream returned a malformed response")
		o.collectAndSubmit(r, fixed, body, clientWantsStream, duration)
		return
	}

	anthropicResp := contentmodel.OpenAIToAnthropic(chatResp)
	o.collectAndSubmit(r, fixed, body, clientWantsStream, duration)

	if !clientWantsStream {
		payload, err := json.Marshal(anthropicResp)
		if err != nil {
			writeAnthropicError(w, http.StatusInternalServerError, "api_error", "failed to encode response")
			return
		}
		writeUpstreamBody(w, status, payload)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(status)
	if err := synthesis.WriteAnthropicStream(w, anthropicResp, o.synthesisConfig()); err != nil {
		logger.Warn("synthesizing anthropic stream failed", zap.Error(err))
	}
}

// buildUpstreamRequest converts an Anthropic-grammar request into the
// OpenAI-shaped body the upstream expects, always forcing stream=false —
// the upstream call is never streamed regardless of what the client asked
// for (spec.md §4.E step 3).
func buildUpstreamRequest(req anthropicRequest, logger *zap.Logger) ([]byte, error) {
	turns := make([]contentmodel.AnthropicMessageTurn, 0, len(req.Messages)+1)

	if len(req.System) > 0 {
		if text := systemText(req.System); text != "" {
			turns = append(turns, contentmodel.AnthropicMessageTurn{
				Role:    "system",
				Content: []contentmodel.ContentBlock{{Type: contentmodel.BlockText, Text: text}},
			})
		}
	}

	for _, turn := range req.Messages {
		turns = append(turns, contentmodel.AnthropicMessageTurn{
			Role:    turn.Role,
			Content: parseAnthropicContent(turn.Content, logger),
		})
	}

	messages := contentmodel.ExtractToolResults(turns)

	upstream := map[string]any{
		"model":    req.Model,
		"messages": messages,
		"stream":   false,
	}
	if req.MaxTokens > 0 {
		upstream["max_tokens"] = req.MaxTokens
	}
	if tools := convertAnthropicTools(req.Tools); len(tools) > 0 {
		upstream["tools"] = tools
	}

	return json.Marshal(upstream)
}

// systemText accepts either a plain string or an array of text blocks for
// the Anthropic "system" field, folding either shape into one string.
func systemText(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var blocks []struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(raw, &blocks); err != nil {
		return ""
	}
	var out string
	for i, b := range blocks {
		if i > 0 {
			out += "\n"
		}
		out += b.Text
	}
	return out
}

// parseAnthropicContent accepts either a plain string or an array of
// content blocks for a message's "content" field. Blocks of a type this
// proxy does not represent are dropped and logged rather than failing the
// whole request (spec.md §7's ConversionError::UnsupportedBlock policy).
func parseAnthropicContent(raw json.RawMessage, logger *zap.Logger) []contentmodel.ContentBlock {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return []contentmodel.ContentBlock{{Type: contentmodel.BlockText, Text: s}}
	}

	var rawBlocks []json.RawMessage
	if err := json.Unmarshal(raw, &rawBlocks); err != nil {
		return nil
	}

	blocks := make([]contentmodel.ContentBlock, 0, len(rawBlocks))
	for _, rb := range rawBlocks {
		var b contentmodel.ContentBlock
		if err := json.Unmarshal(rb, &b); err != nil {
			if logger != nil {
				logger.Warn("dropping unsupported content block", zap.Error(err))
			}
			continue
		}
		blocks = append(blocks, b)
	}
	return blocks
}

func convertAnthropicTools(tools []anthropicTool) []contentmodel.Tool {
	if len(tools) == 0 {
		return nil
	}
	out := make([]contentmodel.Tool, 0, len(tools))
	for _, t := range tools {
		out = append(out, contentmodel.Tool{
			Type: "function",
			Function: contentmodel.ToolFunction{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.InputSchema,
			},
		})
	}
	return out
}
