package metrics

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Format names the operator-facing rendering of a RequestMetrics, set by
// stats.format in config.yaml.
type Format string

const (
	FormatPretty  Format = "pretty"
	FormatJSON    Format = "json"
	FormatCompact Format = "compact"
)

// Render renders m according to format, defaulting to pretty for an
// unrecognized value rather than erroring — stats output is advisory, never
// worth failing a request over.
func Render(m *RequestMetrics, format Format) string {
	switch format {
	case FormatJSON:
		return renderJSON(m)
	case FormatCompact:
		return renderCompact(m)
	default:
		return renderPretty(m)
	}
}

func renderJSON(m *RequestMetrics) string {
	b, err := json.Marshal(m)
	if err != nil {
		return "{}"
	}
	return string(b)
}

func renderCompact(m *RequestMetrics) string {
	contextStr := "ctx:N/A"
	if m.ContextUsed != nil && m.ContextTotal != nil {
		contextStr = fmt.Sprintf("ctx:%d/%d", *m.ContextUsed, *m.ContextTotal)
	}
	mode := "sync"
	if m.Streaming {
		mode = "stream"
	}
	return fmt.Sprintf(
		"[%s] model=%s tokens=%d/%d tps=%.1f/%.1fms=%s %s finish=%s dur=%.1fms",
		m.Timestamp.Format("15:04:05"),
		m.Model,
		m.PromptTokens,
		m.CompletionTokens,
		m.GenerationTPS,
		m.GenerationMs,
		contextStr,
		mode,
		m.FinishReason,
		m.DurationMs,
	)
}

func renderPretty(m *RequestMetrics) string {
	contextStr := "N/A"
	switch {
	case m.ContextUsed != nil && m.ContextTotal != nil && m.ContextPercent != nil:
		contextStr = fmt.Sprintf("%d/%d (%.1f%%)", *m.ContextUsed, *m.ContextTotal, *m.ContextPercent)
	case m.ContextUsed != nil && m.ContextTotal != nil:
		contextStr = fmt.Sprintf("%d/%d", *m.ContextUsed, *m.ContextTotal)
	}

	var extra strings.Builder
	if m.ClientID != "" {
		fmt.Fprintf(&extra, "│ Client: %-59s│\n", truncate(m.ClientID, 48))
	}
	if m.ConversationID != "" {
		fmt.Fprintf(&extra, "│ Conv: %-61s│\n", truncate(m.ConversationID, 50))
	}

	var b strings.Builder
	b.WriteString("┌──────────────────────────────────────────────────────────────────┐\n")
	b.WriteString("│ LLM Request Metrics                                              │\n")
	b.WriteString("├──────────────────────────────────────────────────────────────────┤\n")
	fmt.Fprintf(&b, "│ Model: %-56s│\n", truncate(m.Model, 56))
	fmt.Fprintf(&b, "│ Time:  %-56s│\n", m.Timestamp.Format("2006-01-02 15:04:05 UTC"))
	b.WriteString(extra.String())
	b.WriteString("├──────────────────────────────────────────────────────────────────┤\n")
	b.WriteString("│ Performance                                                      │\n")
	fmt.Fprintf(&b, "│   Prompt Processing: %8.2f tokens/sec (%7.1fms)                │\n", m.PromptTPS, m.PromptMs)
	fmt.Fprintf(&b, "│   Generation:        %8.2f tokens/sec (%7.1fms)                │\n", m.GenerationTPS, m.GenerationMs)
	b.WriteString("├──────────────────────────────────────────────────────────────────┤\n")
	b.WriteString("│ Tokens                                                           │\n")
	fmt.Fprintf(&b, "│   Input: %6d │ Output: %6d │ Total: %6d                   │\n", m.PromptTokens, m.CompletionTokens, m.TotalTokens)
	b.WriteString("├──────────────────────────────────────────────────────────────────┤\n")
	fmt.Fprintf(&b, "│ Context: %-54s│\n", contextStr)
	fmt.Fprintf(&b, "│ Finish: %-56s│\n", m.FinishReason)
	fmt.Fprintf(&b, "│ Duration: %54.1fms│\n", m.DurationMs)
	b.WriteString("└──────────────────────────────────────────────────────────────────┘\n")
	return b.String()
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
