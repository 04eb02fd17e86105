// Package metrics extracts RequestMetrics from a completed request/response
// cycle and renders them in the operator-facing formats configured by
// stats.format.
package metrics

import (
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
)

// RequestMetrics is the per-request observability record spec.md §3 defines,
// extended with the client/conversation/input fields SPEC_FULL.md adds.
type RequestMetrics struct {
	RequestID      string    `json:"request_id"`
	Timestamp      time.Time `json:"timestamp"`
	Model          string    `json:"model"`
	ClientID       string    `json:"client_id,omitempty"`
	ConversationID string    `json:"conversation_id,omitempty"`

	PromptTokens     int64 `json:"prompt_tokens"`
	CompletionTokens int64 `json:"completion_tokens"`
	TotalTokens      int64 `json:"total_tokens"`

	PromptTPS     float64 `json:"prompt_tps"`
	GenerationTPS float64 `json:"generation_tps"`
	PromptMs      float64 `json:"prompt_ms"`
	GenerationMs  float64 `json:"generation_ms"`

	ContextTotal   *int64   `json:"context_total,omitempty"`
	ContextUsed    *int64   `json:"context_used,omitempty"`
	ContextPercent *float64 `json:"context_percent,omitempty"`

	InputMessages int `json:"input_messages"`
	InputLen      int `json:"input_len"`
	OutputLen     int `json:"output_len"`

	Streaming    bool    `json:"streaming"`
	FinishReason string  `json:"finish_reason"`
	DurationMs   float64 `json:"duration_ms"`

	ReasoningTokens          *int64 `json:"reasoning_tokens,omitempty"`
	AcceptedPredictionTokens *int64 `json:"accepted_prediction_tokens,omitempty"`
	RejectedPredictionTokens *int64 `json:"rejected_prediction_tokens,omitempty"`
}

// New returns a metrics record with its zero values per spec.md: a fresh
// request ID, "now" timestamp, and "unknown" placeholders for fields that
// might never get populated.
func New() *RequestMetrics {
	return &RequestMetrics{
		RequestID:    uuid.NewString(),
		Timestamp:    time.Now().UTC(),
		Model:        "unknown",
		FinishReason: "unknown",
	}
}

// FromResponse extracts metrics from the (already fixed/bridged) response
// body and the original request body. Both are raw JSON — gjson reads
// fields directly rather than unmarshaling into the OpenAI/Anthropic
// request/response structs, since metrics extraction must tolerate either
// schema and partial/malformed documents without failing the request.
func FromResponse(response, request []byte, streaming bool, duration time.Duration) *RequestMetrics {
	m := New()
	m.Streaming = streaming
	m.DurationMs = float64(duration.Microseconds()) / 1000.0

	if model := gjson.GetBytes(response, "model"); model.Exists() {
		m.Model = model.String()
	}

	extractUsage(response, m)
	extractTimings(response, m, duration)
	extractFinishAndOutput(response, m)
	extractRequestInfo(request, m)

	return m
}

func extractUsage(response []byte, m *RequestMetrics) {
	usage := gjson.GetBytes(response, "usage")
	if !usage.Exists() {
		return
	}

	if prompt := usage.Get("prompt_tokens"); prompt.Exists() {
		m.PromptTokens = prompt.Int()
		m.CompletionTokens = usage.Get("completion_tokens").Int()
		if total := usage.Get("total_tokens"); total.Exists() {
			m.TotalTokens = total.Int()
		} else {
			m.TotalTokens = m.PromptTokens + m.CompletionTokens
		}
	} else if input := usage.Get("input_tokens"); input.Exists() {
		m.PromptTokens = input.Int()
		m.CompletionTokens = usage.Get("output_tokens").Int()
		m.TotalTokens = m.PromptTokens + m.CompletionTokens
	}

	details := usage.Get("completion_tokens_details")
	if details.Exists() {
		if v := details.Get("reasoning_tokens"); v.Exists() {
			n := v.Int()
			m.ReasoningTokens = &n
		}
		if v := details.Get("accepted_prediction_tokens"); v.Exists() {
			n := v.Int()
			m.AcceptedPredictionTokens = &n
		}
		if v := details.Get("rejected_prediction_tokens"); v.Exists() {
			n := v.Int()
			m.RejectedPredictionTokens = &n
		}
	}
}

func extractTimings(response []byte, m *RequestMetrics, duration time.Duration) {
	timings := gjson.GetBytes(response, "timings")
	if timings.Exists() {
		m.PromptMs = timings.Get("prompt_ms").Float()
		m.GenerationMs = timings.Get("predicted_ms").Float()
		m.PromptTPS = timings.Get("prompt_per_second").Float()
		m.GenerationTPS = timings.Get("predicted_per_second").Float()

		if cacheN := timings.Get("cache_n"); cacheN.Exists() {
			used := cacheN.Int()
			m.ContextUsed = &used
		} else if promptN := timings.Get("prompt_n"); promptN.Exists() {
			used := promptN.Int()
			m.ContextUsed = &used
		}
		return
	}

	// No timings from upstream: estimate TPS from wall-clock duration,
	// assuming a 20/80 prompt/generation split — the same rough split the
	// original implementation uses when llama.cpp omits timings.
	durMs := float64(duration.Microseconds()) / 1000.0
	if durMs <= 0 || m.TotalTokens <= 0 {
		return
	}
	estPromptMs := durMs * 0.2
	estGenMs := durMs * 0.8

	if m.PromptTokens > 0 && estPromptMs > 0 {
		m.PromptTPS = (float64(m.PromptTokens) / estPromptMs) * 1000.0
		m.PromptMs = estPromptMs
	}
	if m.CompletionTokens > 0 && estGenMs > 0 {
		m.GenerationTPS = (float64(m.CompletionTokens) / estGenMs) * 1000.0
		m.GenerationMs = estGenMs
	}
}

func extractFinishAndOutput(response []byte, m *RequestMetrics) {
	if choices := gjson.GetBytes(response, "choices"); choices.Exists() && choices.IsArray() {
		first := choices.Array()
		if len(first) == 0 {
			return
		}
		choice := first[0]
		if fr := choice.Get("finish_reason"); fr.Exists() {
			m.FinishReason = fr.String()
		}
		if content := choice.Get("message.content"); content.Exists() && content.Type == gjson.String {
			m.OutputLen = len(content.String())
		}
		return
	}

	if stopReason := gjson.GetBytes(response, "stop_reason"); stopReason.Exists() {
		m.FinishReason = stopReason.String()
		for _, block := range gjson.GetBytes(response, "content").Array() {
			if text := block.Get("text"); text.Exists() {
				m.OutputLen += len(text.String())
			}
		}
	}
}

func extractRequestInfo(request []byte, m *RequestMetrics) {
	messages := gjson.GetBytes(request, "messages")
	if !messages.Exists() || !messages.IsArray() {
		return
	}
	msgs := messages.Array()
	m.InputMessages = len(msgs)
	for _, msg := range msgs {
		content := msg.Get("content")
		switch {
		case content.Type == gjson.String:
			m.InputLen += len(content.String())
		case content.IsArray():
			for _, part := range content.Array() {
				if text := part.Get("text"); text.Exists() {
					m.InputLen += len(text.String())
				}
			}
		}
	}
}

// AttachContext fills ContextTotal from the upstream's cached n_ctx and
// derives ContextPercent per spec.md §8's "round1(used/total*100)" rule,
// leaving it unset whenever either side is unknown.
func (m *RequestMetrics) AttachContext(contextTotal int64, ok bool) {
	if !ok || contextTotal <= 0 {
		return
	}
	m.ContextTotal = &contextTotal
	if m.ContextUsed == nil {
		return
	}
	pct := round1(float64(*m.ContextUsed) / float64(contextTotal) * 100.0)
	m.ContextPercent = &pct
}

func round1(f float64) float64 {
	return float64(int64(f*10+0.5)) / 10
}
