package synthesis

import (
	"encoding/json"
	"io"

	"github.com/llamabridge/llamabridge/internal/contentmodel"
)

type messageStartEnvelope struct {
	Type    string           `json:"type"`
	Message anthropicMessage `json:"message"`
}

type anthropicMessage struct {
	ID         string                   `json:"id"`
	Type       string                   `json:"type"`
	Role       string                   `json:"role"`
	Model      string                   `json:"model"`
	Content    []json.RawMessage        `json:"content"`
	StopReason *string                  `json:"stop_reason"`
	Usage      contentmodel.AnthropicUsage `json:"usage"`
}

type contentBlockStartEvent struct {
	Type         string          `json:"type"`
	Index        int             `json:"index"`
	ContentBlock json.RawMessage `json:"content_block"`
}

type contentBlockDeltaEvent struct {
	Type  string         `json:"type"`
	Index int            `json:"index"`
	Delta map[string]any `json:"delta"`
}

type contentBlockStopEvent struct {
	Type  string `json:"type"`
	Index int    `json:"index"`
}

type messageDeltaEvent struct {
	Type  string                      `json:"type"`
	Delta messageDeltaPayload         `json:"delta"`
	Usage contentmodel.AnthropicUsage `json:"usage"`
}

type messageDeltaPayload struct {
	StopReason   *string `json:"stop_reason"`
	StopSequence *string `json:"stop_sequence"`
}

// WriteAnthropicStream emits msg as the message_start/content_block_*/
// message_delta/message_stop event sequence spec.md §4.D's Anthropic
// synthesis requires.
func WriteAnthropicStream(w io.Writer, msg contentmodel.AnthropicMessage, cfg Config) error {
	if err := writeMessageStart(w, msg, cfg); err != nil {
		return err
	}

	for i, block := range msg.Content {
		if err := writeContentBlock(w, i, block, cfg); err != nil {
			return err
		}
	}

	if err := writeMessageDelta(w, msg, cfg); err != nil {
		return err
	}
	return writeMessageStop(w, cfg)
}

func writeMessageStart(w io.Writer, msg contentmodel.AnthropicMessage, cfg Config) error {
	env := messageStartEnvelope{
		Type: "message_start",
		Message: anthropicMessage{
			ID: msg.ID, Type: "message", Role: "assistant", Model: msg.Model,
			Content:    []json.RawMessage{},
			StopReason: nil,
			Usage:      contentmodel.AnthropicUsage{InputTokens: msg.Usage.InputTokens, OutputTokens: 0},
		},
	}
	if err := writeSSELine(w, "message_start", env); err != nil {
		return err
	}
	pace(w, cfg)
	return nil
}

func writeContentBlock(w io.Writer, index int, block contentmodel.ContentBlock, cfg Config) error {
	skeleton, err := blockSkeleton(block)
	if err != nil {
		return err
	}
	if err := writeSSELine(w, "content_block_start", contentBlockStartEvent{
		Type: "content_block_start", Index: index, ContentBlock: skeleton,
	}); err != nil {
		return err
	}
	pace(w, cfg)

	if err := writeContentBlockDeltas(w, index, block, cfg); err != nil {
		return err
	}

	if err := writeSSELine(w, "content_block_stop", contentBlockStopEvent{Type: "content_block_stop", Index: index}); err != nil {
		return err
	}
	pace(w, cfg)
	return nil
}

func blockSkeleton(block contentmodel.ContentBlock) (json.RawMessage, error) {
	var v map[string]any
	switch block.Type {
	case contentmodel.BlockText:
		v = map[string]any{"type": "text", "text": ""}
	case contentmodel.BlockThinking:
		v = map[string]any{"type": "thinking", "thinking": ""}
	case contentmodel.BlockToolUse:
		v = map[string]any{"type": "tool_use", "id": block.ToolUseID, "name": block.ToolName, "input": map[string]any{}}
	default:
		v = map[string]any{"type": string(block.Type)}
	}
	return json.Marshal(v)
}

func writeContentBlockDeltas(w io.Writer, index int, block contentmodel.ContentBlock, cfg Config) error {
	switch block.Type {
	case contentmodel.BlockText:
		for _, fragment := range chunk(block.Text, cfg.textChunkSize()) {
			if err := writeDelta(w, index, map[string]any{"type": "text_delta", "text": fragment}, cfg); err != nil {
				return err
			}
		}
	case contentmodel.BlockThinking:
		for _, fragment := range chunk(block.Thinking, cfg.generalChunkSize()) {
			if err := writeDelta(w, index, map[string]any{"type": "thinking_delta", "thinking": fragment}, cfg); err != nil {
				return err
			}
		}
		if block.Signature != "" {
			if err := writeDelta(w, index, map[string]any{"type": "signature_delta", "signature": block.Signature}, cfg); err != nil {
				return err
			}
		}
	case contentmodel.BlockToolUse:
		input := block.ToolInput
		if input == nil {
			input = map[string]any{}
		}
		partial, err := json.Marshal(input)
		if err != nil {
			return err
		}
		for _, fragment := range chunk(string(partial), cfg.generalChunkSize()) {
			if err := writeDelta(w, index, map[string]any{"type": "input_json_delta", "partial_json": fragment}, cfg); err != nil {
				return err
			}
		}
	}
	return nil
}

func writeDelta(w io.Writer, index int, delta map[string]any, cfg Config) error {
	if err := writeSSELine(w, "content_block_delta", contentBlockDeltaEvent{
		Type: "content_block_delta", Index: index, Delta: delta,
	}); err != nil {
		return err
	}
	pace(w, cfg)
	return nil
}

func writeMessageDelta(w io.Writer, msg contentmodel.AnthropicMessage, cfg Config) error {
	var stopReason *string
	if msg.StopReason != "" {
		sr := msg.StopReason
		stopReason = &sr
	}
	ev := messageDeltaEvent{
		Type:  "message_delta",
		Delta: messageDeltaPayload{StopReason: stopReason},
		Usage: contentmodel.AnthropicUsage{OutputTokens: msg.Usage.OutputTokens},
	}
	if err := writeSSELine(w, "message_delta", ev); err != nil {
		return err
	}
	pace(w, cfg)
	return nil
}

func writeMessageStop(w io.Writer, cfg Config) error {
	if err := writeSSELine(w, "message_stop", map[string]string{"type": "message_stop"}); err != nil {
		return err
	}
	pace(w, cfg)
	return nil
}
