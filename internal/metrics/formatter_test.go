package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRenderCompact(t *testing.T) {
	m := New()
	m.Model = "test-model"
	m.PromptTokens = 100
	m.CompletionTokens = 50
	m.GenerationTPS = 42.5
	m.GenerationMs = 1176.0
	m.Streaming = true
	m.FinishReason = "stop"
	m.DurationMs = 1200.0

	out := Render(m, FormatCompact)

	assert.Contains(t, out, "test-model")
	assert.Contains(t, out, "100/50")
	assert.Contains(t, out, "stream")
}

func TestRenderJSONRoundTrips(t *testing.T) {
	m := New()
	m.Model = "test-model"

	out := Render(m, FormatJSON)

	assert.Contains(t, out, `"request_id"`)
	assert.Contains(t, out, `"test-model"`)
}

func TestRenderPrettyContainsSections(t *testing.T) {
	m := New()
	m.Model = "test-model"

	out := Render(m, FormatPretty)

	assert.Contains(t, out, "LLM Request Metrics")
	assert.Contains(t, out, "Performance")
	assert.Contains(t, out, "test-model")
}

func TestRenderDefaultsToPrettyForUnknownFormat(t *testing.T) {
	m := New()
	out := Render(m, Format("nonsense"))
	assert.Contains(t, out, "LLM Request Metrics")
}

func TestTruncateShortStringUnchanged(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 10))
}

func TestTruncateAddsEllipsis(t *testing.T) {
	out := truncate("abcdefghij", 5)
	assert.Equal(t, "ab...", out)
}
