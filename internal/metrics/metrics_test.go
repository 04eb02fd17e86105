package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewHasDefaults(t *testing.T) {
	m := New()
	assert.NotEmpty(t, m.RequestID)
	assert.Equal(t, "unknown", m.Model)
	assert.Equal(t, "unknown", m.FinishReason)
	assert.False(t, m.Streaming)
	assert.Zero(t, m.PromptTokens)
}

func TestFromResponseBasicOpenAI(t *testing.T) {
	response := []byte(`{
		"model": "test-model",
		"choices": [{"finish_reason": "stop", "message": {"content": "Hello world"}}]
	}`)
	request := []byte(`{"messages": [{"role": "user", "content": "Hi"}]}`)

	m := FromResponse(response, request, false, 100*time.Millisecond)

	assert.Equal(t, "test-model", m.Model)
	assert.Equal(t, "stop", m.FinishReason)
	assert.Equal(t, 11, m.OutputLen)
	assert.False(t, m.Streaming)
	assert.InDelta(t, 100.0, m.DurationMs, 0.01)
}

func TestFromResponseUsageOpenAI(t *testing.T) {
	response := []byte(`{
		"model": "test-model",
		"usage": {"prompt_tokens": 100, "completion_tokens": 50, "total_tokens": 150},
		"choices": [{"finish_reason": "stop"}]
	}`)

	m := FromResponse(response, []byte(`{}`), true, 200*time.Millisecond)

	assert.EqualValues(t, 100, m.PromptTokens)
	assert.EqualValues(t, 50, m.CompletionTokens)
	assert.EqualValues(t, 150, m.TotalTokens)
	assert.True(t, m.Streaming)
}

func TestFromResponseUsageAnthropic(t *testing.T) {
	response := []byte(`{
		"model": "test-model",
		"usage": {"input_tokens": 40, "output_tokens": 10},
		"stop_reason": "end_turn",
		"content": [{"type": "text", "text": "hi there"}]
	}`)

	m := FromResponse(response, []byte(`{}`), false, 10*time.Millisecond)

	assert.EqualValues(t, 40, m.PromptTokens)
	assert.EqualValues(t, 10, m.CompletionTokens)
	assert.EqualValues(t, 50, m.TotalTokens)
	assert.Equal(t, "end_turn", m.FinishReason)
	assert.Equal(t, len("hi there"), m.OutputLen)
}

func TestFromResponseTimings(t *testing.T) {
	response := []byte(`{
		"model": "test-model",
		"timings": {
			"prompt_ms": 50.5, "predicted_ms": 100.25,
			"prompt_per_second": 198.0, "predicted_per_second": 99.75,
			"cache_n": 10
		},
		"choices": [{"finish_reason": "stop"}]
	}`)

	m := FromResponse(response, []byte(`{}`), false, 150*time.Millisecond)

	assert.Equal(t, 50.5, m.PromptMs)
	assert.Equal(t, 100.25, m.GenerationMs)
	assert.Equal(t, 198.0, m.PromptTPS)
	assert.Equal(t, 99.75, m.GenerationTPS)
	require.NotNil(t, m.ContextUsed)
	assert.EqualValues(t, 10, *m.ContextUsed)
}

func TestFromResponseMessagesMultimodal(t *testing.T) {
	request := []byte(`{
		"messages": [{
			"role": "user",
			"content": [
				{"type": "text", "text": "What's in this image?"},
				{"type": "image_url", "image_url": {"url": "http://example.com/x.png"}}
			]
		}]
	}`)

	m := FromResponse([]byte(`{"choices":[{"finish_reason":"stop"}]}`), request, false, 50*time.Millisecond)

	assert.Equal(t, 1, m.InputMessages)
	assert.Equal(t, len("What's in this image?"), m.InputLen)
}

func TestFromResponseExtendedUsageDetails(t *testing.T) {
	response := []byte(`{
		"choices": [{"message": {"role": "assistant", "content": "test"}, "finish_reason": "stop"}],
		"usage": {
			"prompt_tokens": 100, "completion_tokens": 50, "total_tokens": 150,
			"completion_tokens_details": {"reasoning_tokens": 20, "accepted_prediction_tokens": 5}
		}
	}`)

	m := FromResponse(response, []byte(`{"messages":[]}`), false, 100*time.Millisecond)

	require.NotNil(t, m.ReasoningTokens)
	assert.EqualValues(t, 20, *m.ReasoningTokens)
	require.NotNil(t, m.AcceptedPredictionTokens)
	assert.EqualValues(t, 5, *m.AcceptedPredictionTokens)
	assert.Nil(t, m.RejectedPredictionTokens)
}

func TestAttachContextComputesPercent(t *testing.T) {
	m := New()
	used := int64(50)
	m.ContextUsed = &used

	m.AttachContext(100, true)

	require.NotNil(t, m.ContextTotal)
	assert.EqualValues(t, 100, *m.ContextTotal)
	require.NotNil(t, m.ContextPercent)
	assert.Equal(t, 50.0, *m.ContextPercent)
}

func TestAttachContextUnsetWhenMissing(t *testing.T) {
	m := New()
	m.AttachContext(0, false)
	assert.Nil(t, m.ContextTotal)
	assert.Nil(t, m.ContextPercent)

	m2 := New()
	m2.AttachContext(100, true)
	assert.NotNil(t, m2.ContextTotal)
	assert.Nil(t, m2.ContextPercent, "percent needs context_used too")
}

func TestApplyTokenEstimateFallbackOnlyWhenUsageAbsent(t *testing.T) {
	m := New()
	m.ApplyTokenEstimateFallback("hello world", "goodbye")
	assert.Greater(t, m.PromptTokens, int64(0))
	assert.Greater(t, m.CompletionTokens, int64(0))

	m2 := New()
	m2.PromptTokens = 5
	m2.ApplyTokenEstimateFallback("hello world", "goodbye")
	assert.EqualValues(t, 5, m2.PromptTokens, "must not override real usage")
}
