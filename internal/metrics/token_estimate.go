package metrics

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

var (
	encOnce sync.Once
	enc     *tiktoken.Tiktoken
	encErr  error
)

func encoding() (*tiktoken.Tiktoken, error) {
	encOnce.Do(func() {
		enc, encErr = tiktoken.GetEncoding("cl100k_base")
	})
	return enc, encErr
}

// EstimateTokens counts text's cl100k_base tokens, returning 0 for empty
// text or when the encoding cannot be loaded.
func EstimateTokens(text string) int64 {
	if text == "" {
		return 0
	}
	tke, err := encoding()
	if err != nil {
		return 0
	}
	return int64(len(tke.Encode(text, nil, nil)))
}

// ApplyTokenEstimateFallback fills prompt/completion/total token counts from
// cl100k_base estimates of the given request and response text when
// PromptTokens and CompletionTokens are both still zero. FromResponse does
// not call it, and neither does anything else in the request path.
func (m *RequestMetrics) ApplyTokenEstimateFallback(promptText, completionText string) {
	if m.PromptTokens != 0 || m.CompletionTokens != 0 {
		return
	}
	m.PromptTokens = EstimateTokens(promptText)
	m.CompletionTokens = EstimateTokens(completionText)
	m.TotalTokens = m.PromptTokens + m.CompletionTokens
}
