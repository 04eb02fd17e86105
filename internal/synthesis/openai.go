package synthesis

import (
	"io"
	"time"

	"github.com/llamabridge/llamabridge/internal/contentmodel"
)

type openAIChunk struct {
	ID      string              `json:"id"`
	Object  string              `json:"object"`
	Created int64               `json:"created"`
	Model   string              `json:"model"`
	Choices []openAIChunkChoice `json:"choices"`
}

type openAIChunkChoice struct {
	Index        int         `json:"index"`
	Delta        openAIDelta `json:"delta"`
	FinishReason *string     `json:"finish_reason"`
}

type openAIDelta struct {
	Role      string                `json:"role,omitempty"`
	Content   string                `json:"content,omitempty"`
	ToolCalls []openAIToolCallDelta `json:"tool_calls,omitempty"`
}

type openAIToolCallDelta struct {
	Index    int                  `json:"index"`
	ID       string               `json:"id,omitempty"`
	Type     string               `json:"type,omitempty"`
	Function *openAIFunctionDelta `json:"function,omitempty"`
}

type openAIFunctionDelta struct {
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments,omitempty"`
}

// WriteOpenAIStream emits resp as a sequence of chat.completion.chunk SSE
// events ending in the literal `data: [DONE]\n\n` terminator, per
// spec.md §4.D's OpenAI synthesis ordering.
func WriteOpenAIStream(w io.Writer, resp contentmodel.ChatResponse, cfg Config) error {
	id := newStreamID("chatcmpl-")
	created := time.Now().Unix()

	for _, choice := range resp.Choices {
		if err := writeRoleChunk(w, id, created, resp.Model, choice.Index, cfg); err != nil {
			return err
		}
		if err := writeContentDeltas(w, id, created, resp.Model, choice, cfg); err != nil {
			return err
		}
		if err := writeToolCallDeltas(w, id, created, resp.Model, choice, cfg); err != nil {
			return err
		}
		if err := writeFinalChunk(w, id, created, resp.Model, choice, cfg); err != nil {
			return err
		}
	}

	if _, err := io.WriteString(w, "data: [DONE]\n\n"); err != nil {
		return err
	}
	pace(w, cfg)
	return nil
}

func writeRoleChunk(w io.Writer, id string, created int64, model string, index int, cfg Config) error {
	c := openAIChunk{
		ID: id, Object: "chat.completion.chunk", Created: created, Model: model,
		Choices: []openAIChunkChoice{{Index: index, Delta: openAIDelta{Role: "assistant"}}},
	}
	if err := writeSSELine(w, "", c); err != nil {
		return err
	}
	pace(w, cfg)
	return nil
}

func writeContentDeltas(w io.Writer, id string, created int64, model string, choice contentmodel.Choice, cfg Config) error {
	for _, fragment := range chunk(choice.Message.Text(), cfg.textChunkSize()) {
		c := openAIChunk{
			ID: id, Object: "chat.completion.chunk", Created: created, Model: model,
			Choices: []openAIChunkChoice{{Index: choice.Index, Delta: openAIDelta{Content: fragment}}},
		}
		if err := writeSSELine(w, "", c); err != nil {
			return err
		}
		pace(w, cfg)
	}
	return nil
}

func writeToolCallDeltas(w io.Writer, id string, created int64, model string, choice contentmodel.Choice, cfg Config) error {
	for i, tc := range choice.Message.ToolCalls {
		initial := openAIChunk{
			ID: id, Object: "chat.completion.chunk", Created: created, Model: model,
			Choices: []openAIChunkChoice{{
				Index: choice.Index,
				Delta: openAIDelta{ToolCalls: []openAIToolCallDelta{{
					Index: i, ID: tc.ID, Type: "function",
					Function: &openAIFunctionDelta{Name: tc.Function.Name, Arguments: ""},
				}}},
			}},
		}
		if err := writeSSELine(w, "", initial); err != nil {
			return err
		}
		pace(w, cfg)

		for _, fragment := range chunk(tc.Function.Arguments, cfg.generalChunkSize()) {
			argChunk := openAIChunk{
				ID: id, Object: "chat.completion.chunk", Created: created, Model: model,
				Choices: []openAIChunkChoice{{
					Index: choice.Index,
					Delta: openAIDelta{ToolCalls: []openAIToolCallDelta{{
						Index: i, Function: &openAIFunctionDelta{Arguments: fragment},
					}}},
				}},
			}
			if err := writeSSELine(w, "", argChunk); err != nil {
				return err
			}
			pace(w, cfg)
		}
	}
	return nil
}

func writeFinalChunk(w io.Writer, id string, created int64, model string, choice contentmodel.Choice, cfg Config) error {
	reason := choice.FinishReason
	c := openAIChunk{
		ID: id, Object: "chat.completion.chunk", Created: created, Model: model,
		Choices: []openAIChunkChoice{{Index: choice.Index, Delta: openAIDelta{}, FinishReason: &reason}},
	}
	if err := writeSSELine(w, "", c); err != nil {
		return err
	}
	pace(w, cfg)
	return nil
}
