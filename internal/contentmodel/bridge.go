package contentmodel

import (
	"encoding/json"
	"strings"

	"github.com/google/uuid"
)

// stopReasonToOpenAI and stopReasonToAnthropic implement the total,
// many-to-one/one-to-default mapping from spec §3: end_turn<->stop,
// max_tokens<->length, tool_use<->tool_calls, stop_sequence->stop with no
// reverse entry (the Anthropic direction defaults unknown reasons to
// end_turn).
var stopReasonToOpenAI = map[string]string{
	"end_turn":      "stop",
	"max_tokens":    "length",
	"tool_use":      "tool_calls",
	"stop_sequence": "stop",
}

var finishReasonToAnthropic = map[string]string{
	"stop":           "end_turn",
	"length":         "max_tokens",
	"tool_calls":     "tool_use",
	"function_call":  "tool_use",
	"content_filter": "stop_sequence",
}

// StopReasonToOpenAI maps an Anthropic stop_reason to an OpenAI
// finish_reason. The mapping is total: unrecognized input also yields "stop".
func StopReasonToOpenAI(reason string) string {
	if r, ok := stopReasonToOpenAI[reason]; ok {
		return r
	}
	return "stop"
}

// FinishReasonToAnthropic maps an OpenAI finish_reason to an Anthropic
// stop_reason, defaulting unknown values to end_turn.
func FinishReasonToAnthropic(reason string) string {
	if r, ok := finishReasonToAnthropic[reason]; ok {
		return r
	}
	return "end_turn"
}

// NewToolUseID synthesizes a toolu_<uuid-v4> identifier for OpenAI tool
// calls that arrive without an id. Per spec §4.A, this is the only case
// where a tool-call id is ever generated rather than carried through
// verbatim; the synthetic id round-trips unchanged on the way back.
func NewToolUseID() string {
	return "toolu_" + uuid.NewString()
}

// toolUseID returns id unchanged, synthesizing one only when the upstream
// didn't supply one at all. Ids are never translated between toolu_/call_
// prefixes — spec §4.A's only stated id rule covers the missing-id case.
func toolUseID(id string) string {
	if id == "" {
		return NewToolUseID()
	}
	return id
}

// AnthropicToOpenAI converts a buffered Anthropic response into the OpenAI
// ChatResponse shape. It is total over {text, thinking, tool_use, image}
// and returns an *UnsupportedBlockError for unsupported block types —
// callers decide whether to surface it or drop the block (§4.A, §7).
func AnthropicToOpenAI(m AnthropicMessage) (ChatResponse, error) {
	var (
		textParts  []string
		reasoning  strings.Builder
		toolCalls  []ToolCall
		firstErr   error
	)

	for _, block := range m.Content {
		switch block.Type {
		case BlockText:
			textParts = append(textParts, block.Text)
		case BlockThinking:
			reasoning.WriteString(block.Thinking)
		case BlockToolUse:
			args, err := json.Marshal(block.ToolInput)
			if err != nil {
				args = []byte("{}")
			}
			toolCalls = append(toolCalls, ToolCall{
				ID:   block.ToolUseID,
				Type: "function",
				Function: FunctionCall{
					Name:      block.ToolName,
					Arguments: string(args),
				},
			})
		case BlockImage, BlockToolResult:
			// Not expected inside an assistant response; ignored rather
			// than rejected since no OpenAI-side slot exists for them.
		default:
			if firstErr == nil {
				firstErr = &UnsupportedBlockError{TypeTag: string(block.Type)}
			}
		}
	}

	msg := Message{Role: "assistant"}
	if len(textParts) > 0 {
		msg.Content = strings.Join(textParts, "\n")
	} else {
		msg.Content = ""
	}
	if len(toolCalls) > 0 {
		msg.ToolCalls = toolCalls
	}
	if reasoning.Len() > 0 {
		if msg.Extra == nil {
			msg.Extra = map[string]any{}
		}
		msg.Extra["reasoning_text"] = reasoning.String()
	}

	resp := ChatResponse{
		ID:      m.ID,
		Object:  "chat.completion",
		Model:   m.Model,
		Choices: []Choice{{Index: 0, Message: msg, FinishReason: StopReasonToOpenAI(m.StopReason)}},
		Usage: &Usage{
			PromptTokens:     m.Usage.InputTokens,
			CompletionTokens: m.Usage.OutputTokens,
			TotalTokens:      m.Usage.InputTokens + m.Usage.OutputTokens,
		},
	}
	return resp, firstErr
}

// OpenAIToAnthropic converts a buffered OpenAI ChatResponse into an
// AnthropicMessage, the reverse of AnthropicToOpenAI.
func OpenAIToAnthropic(r ChatResponse) AnthropicMessage {
	out := AnthropicMessage{
		ID:    r.ID,
		Type:  "message",
		Role:  "assistant",
		Model: r.Model,
		Usage: AnthropicUsage{},
	}

	if len(r.Choices) == 0 {
		return out
	}
	choice := r.Choices[0]
	out.StopReason = FinishReasonToAnthropic(choice.FinishReason)

	if text := choice.Message.Text(); text != "" {
		out.Content = append(out.Content, ContentBlock{Type: BlockText, Text: text})
	}
	if reasoning, ok := choice.Message.Extra["reasoning_text"].(string); ok && reasoning != "" {
		out.Content = append(out.Content, ContentBlock{Type: BlockThinking, Thinking: reasoning})
	}
	for _, tc := range choice.Message.ToolCalls {
		var input map[string]any
		if tc.Function.Arguments != "" {
			_ = json.Unmarshal([]byte(tc.Function.Arguments), &input)
		}
		out.Content = append(out.Content, ContentBlock{
			Type:      BlockToolUse,
			ToolUseID: toolUseID(tc.ID),
			ToolName:  tc.Function.Name,
			ToolInput: input,
		})
	}
	if len(out.Content) == 0 {
		out.Content = append(out.Content, ContentBlock{Type: BlockText, Text: ""})
	}

	if r.Usage != nil {
		out.Usage = AnthropicUsage{
			InputTokens:  r.Usage.PromptTokens,
			OutputTokens: r.Usage.CompletionTokens,
		}
	}
	return out
}

// DataURI builds the data:{media_type};base64,{data} URI Anthropic->OpenAI
// image conversion produces.
func DataURI(mediaType, data string) string {
	return "data:" + mediaType + ";base64," + data
}

// SplitDataURI reverses DataURI, splitting at the first ";base64," marker.
// ok is false when s is not a base64 data URI.
func SplitDataURI(s string) (mediaType, data string, ok bool) {
	const marker = ";base64,"
	if !strings.HasPrefix(s, "data:") {
		return "", "", false
	}
	idx := strings.Index(s, marker)
	if idx < 0 {
		return "", "", false
	}
	mediaType = strings.TrimPrefix(s[:idx], "data:")
	data = s[idx+len(marker):]
	return mediaType, data, true
}

// ExtractToolResults splits an Anthropic conversation's tool_result content
// blocks out of their parent user message into adjacent role=tool OpenAI
// messages, preserving conversation order (spec §4.A, scenario 5 in §8).
func ExtractToolResults(messages []AnthropicMessageTurn) []Message {
	out := make([]Message, 0, len(messages))
	for _, turn := range messages {
		var (
			leftover   []ContentBlock
			toolMsgs   []Message
		)
		for _, block := range turn.Content {
			if block.Type == BlockToolResult {
				toolMsgs = append(toolMsgs, Message{
					Role:       "tool",
					ToolCallID: block.ToolUseResultID,
					Content:    resultContentString(block.ResultContent),
				})
				continue
			}
			leftover = append(leftover, block)
		}

		if len(leftover) > 0 || len(toolMsgs) == 0 {
			out = append(out, turnToMessage(turn.Role, leftover))
		}
		out = append(out, toolMsgs...)
	}
	return out
}

// AnthropicMessageTurn is one turn of an Anthropic conversation, as carried
// in an inbound /v1/messages request body.
type AnthropicMessageTurn struct {
	Role    string
	Content []ContentBlock
}

func turnToMessage(role string, blocks []ContentBlock) Message {
	msg := Message{Role: role}
	var (
		textParts []string
		toolCalls []ToolCall
	)
	for _, b := range blocks {
		switch b.Type {
		case BlockText:
			textParts = append(textParts, b.Text)
		case BlockToolUse:
			args, _ := json.Marshal(b.ToolInput)
			toolCalls = append(toolCalls, ToolCall{
				ID:       b.ToolUseID,
				Type:     "function",
				Function: FunctionCall{Name: b.ToolName, Arguments: string(args)},
			})
		}
	}
	if len(textParts) > 0 {
		msg.Content = strings.Join(textParts, "\n")
	}
	if len(toolCalls) > 0 {
		msg.ToolCalls = toolCalls
	}
	return msg
}

func resultContentString(content any) string {
	switch v := content.(type) {
	case string:
		return v
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(b)
	}
}
