package synthesis

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llamabridge/llamabridge/internal/contentmodel"
)

func TestWriteOpenAIStreamEndsWithDoneMarker(t *testing.T) {
	resp := contentmodel.ChatResponse{
		Model: "test-model",
		Choices: []contentmodel.Choice{{
			Index:        0,
			Message:      contentmodel.Message{Role: "assistant", Content: "hello world"},
			FinishReason: "stop",
		}},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteOpenAIStream(&buf, resp, Config{}))

	out := buf.String()
	assert.True(t, strings.HasSuffix(out, "data: [DONE]\n\n"))
	assert.Contains(t, out, `"role":"assistant"`)
	assert.Contains(t, out, `"finish_reason":"stop"`)
}

func TestWriteOpenAIStreamContentReassemblesVerbatim(t *testing.T) {
	text := "this is a longer piece of text that will span multiple chunks for sure"
	resp := contentmodel.ChatResponse{
		Model: "m",
		Choices: []contentmodel.Choice{{
			Message: contentmodel.Message{Content: text}, FinishReason: "stop",
		}},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteOpenAIStream(&buf, resp, Config{ChunkSizeChars: 10}))

	var reassembled strings.Builder
	for _, line := range strings.Split(buf.String(), "\n") {
		if !strings.HasPrefix(line, "data: ") || strings.Contains(line, "[DONE]") {
			continue
		}
		if idx := strings.Index(line, `"content":"`); idx >= 0 {
			rest := line[idx+len(`"content":"`):]
			end := strings.Index(rest, `"`)
			reassembled.WriteString(rest[:end])
		}
	}
	assert.Equal(t, text, reassembled.String())
}

func TestWriteOpenAIStreamToolCallArguments(t *testing.T) {
	resp := contentmodel.ChatResponse{
		Model: "m",
		Choices: []contentmodel.Choice{{
			Message: contentmodel.Message{
				ToolCalls: []contentmodel.ToolCall{{
					ID:   "call_1",
					Type: "function",
					Function: contentmodel.FunctionCall{
						Name:      "write_file",
						Arguments: `{"path":"a.txt","content":"hi"}`,
					},
				}},
			},
			FinishReason: "tool_calls",
		}},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteOpenAIStream(&buf, resp, Config{}))

	out := buf.String()
	assert.Contains(t, out, `"id":"call_1"`)
	assert.Contains(t, out, `"name":"write_file"`)
	assert.Contains(t, out, `"arguments"`)
}
