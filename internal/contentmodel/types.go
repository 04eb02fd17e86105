// Package contentmodel holds the wire types for the OpenAI Chat Completions
// and Anthropic Messages grammars, plus the total conversions between them.
package contentmodel

import "encoding/json"

// ChatRequest is an opaque superset of an OpenAI Chat Completions request.
// Extra is tagged `json:"-"`: encoding/json neither fills it on decode nor
// writes it on encode, so fields outside the named ones do not survive a
// round trip through this type.
type ChatRequest struct {
	Model    string         `json:"model"`
	Messages []Message      `json:"messages"`
	Tools    []Tool         `json:"tools,omitempty"`
	Stream   bool           `json:"stream,omitempty"`
	Extra    map[string]any `json:"-"`
}

// Tool is an OpenAI-shaped function tool definition.
type Tool struct {
	Type     string       `json:"type"`
	Function ToolFunction `json:"function"`
}

type ToolFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

// RequiredParams returns the function's required parameter names in the
// order of the schema's "required" array, falling back to every declared
// property when that array is absent or holds no names. The fallback's
// order is not defined (it ranges over a map).
func (f ToolFunction) RequiredParams() []string {
	if f.Parameters == nil {
		return nil
	}
	if req, ok := f.Parameters["required"].([]any); ok {
		names := make([]string, 0, len(req))
		for _, r := range req {
			if s, ok := r.(string); ok {
				names = append(names, s)
			}
		}
		if len(names) > 0 {
			return names
		}
	}
	props, ok := f.Parameters["properties"].(map[string]any)
	if !ok {
		return nil
	}
	names := make([]string, 0, len(props))
	for name := range props {
		names = append(names, name)
	}
	return names
}

// Message is a single OpenAI-grammar chat message. Content may be a plain
// string or an ordered sequence of parts; Text reports the former.
type Message struct {
	Role       string         `json:"role"`
	Content    any            `json:"content,omitempty"`
	Name       string         `json:"name,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
	ToolCalls  []ToolCall     `json:"tool_calls,omitempty"`
	Extra      map[string]any `json:"-"`
}

// Text returns Content as a string when it is one, the empty string
// otherwise.
func (m Message) Text() string {
	if s, ok := m.Content.(string); ok {
		return s
	}
	return ""
}

type ToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function FunctionCall `json:"function"`
	// Index is carried for streaming tool_calls deltas; absent on
	// non-streaming responses.
	Index *int `json:"index,omitempty"`
}

// FunctionCall.Arguments is always a textual JSON document on the wire in
// OpenAI form, never a parsed object.
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ChatResponse is a buffered, non-streaming OpenAI Chat Completions
// response.
type ChatResponse struct {
	ID      string         `json:"id"`
	Object  string         `json:"object,omitempty"`
	Created int64          `json:"created,omitempty"`
	Model   string         `json:"model"`
	Choices []Choice       `json:"choices"`
	Usage   *Usage         `json:"usage,omitempty"`
	Timings *Timings       `json:"timings,omitempty"`
	Extra   map[string]any `json:"-"`
}

type Choice struct {
	Index        int     `json:"index"`
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason"`
}

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type Timings struct {
	PromptN             int     `json:"prompt_n,omitempty"`
	PromptMS            float64 `json:"prompt_ms,omitempty"`
	PromptPerSecond     float64 `json:"prompt_per_second,omitempty"`
	PredictedN          int     `json:"predicted_n,omitempty"`
	PredictedMS         float64 `json:"predicted_ms,omitempty"`
	PredictedPerSecond  float64 `json:"predicted_per_second,omitempty"`
	CacheN              int     `json:"cache_n,omitempty"`
}

// AnthropicMessage is a buffered, non-streaming Anthropic Messages
// response.
type AnthropicMessage struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	Role       string          `json:"role"`
	Model      string          `json:"model"`
	Content    []ContentBlock  `json:"content"`
	StopReason string          `json:"stop_reason,omitempty"`
	Usage      AnthropicUsage  `json:"usage"`
	Extra      map[string]any  `json:"-"`
}

type AnthropicUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// ContentBlockType tags the variant carried by a ContentBlock.
type ContentBlockType string

const (
	BlockText       ContentBlockType = "text"
	BlockThinking   ContentBlockType = "thinking"
	BlockToolUse    ContentBlockType = "tool_use"
	BlockToolResult ContentBlockType = "tool_result"
	BlockImage      ContentBlockType = "image"
)

// ContentBlock is a tagged variant over the Anthropic content-block model.
// Only the fields relevant to Type are populated; json.Marshal/Unmarshal
// handle the tagged-union shape via MarshalJSON/UnmarshalJSON below.
type ContentBlock struct {
	Type ContentBlockType

	// text
	Text string

	// thinking
	Thinking  string
	Signature string

	// tool_use
	ToolUseID   string
	ToolName    string
	ToolInput   map[string]any

	// tool_result
	ToolUseResultID string
	ResultContent   any
	IsError         bool

	// image
	ImageSource ImageSource
}

type ImageSource struct {
	Kind      string // "url" or "base64"
	URL       string
	MediaType string
	Data      string
}

func (b ContentBlock) MarshalJSON() ([]byte, error) {
	switch b.Type {
	case BlockText:
		return json.Marshal(map[string]any{"type": "text", "text": b.Text})
	case BlockThinking:
		m := map[string]any{"type": "thinking", "thinking": b.Thinking}
		if b.Signature != "" {
			m["signature"] = b.Signature
		}
		return json.Marshal(m)
	case BlockToolUse:
		input := b.ToolInput
		if input == nil {
			input = map[string]any{}
		}
		return json.Marshal(map[string]any{
			"type":  "tool_use",
			"id":    b.ToolUseID,
			"name":  b.ToolName,
			"input": input,
		})
	case BlockToolResult:
		m := map[string]any{
			"type":        "tool_result",
			"tool_use_id": b.ToolUseResultID,
			"content":     b.ResultContent,
		}
		if b.IsError {
			m["is_error"] = true
		}
		return json.Marshal(m)
	case BlockImage:
		var src map[string]any
		if b.ImageSource.Kind == "url" {
			src = map[string]any{"type": "url", "url": b.ImageSource.URL}
		} else {
			src = map[string]any{
				"type":       "base64",
				"media_type": b.ImageSource.MediaType,
				"data":       b.ImageSource.Data,
			}
		}
		return json.Marshal(map[string]any{"type": "image", "source": src})
	default:
		return json.Marshal(map[string]any{"type": string(b.Type)})
	}
}

// UnsupportedBlockError is returned by UnmarshalJSON and the bridge
// conversions for block types the model does not represent.
type UnsupportedBlockError struct {
	TypeTag string
}

func (e *UnsupportedBlockError) Error() string {
	return "contentmodel: unsupported content block type " + e.TypeTag
}

var unsupportedBlockTypes = map[string]bool{
	"document":                true,
	"search_result":           true,
	"server_tool_use":         true,
	"web_search_tool_result":  true,
	"redacted_thinking":       true,
}

func (b *ContentBlock) UnmarshalJSON(data []byte) error {
	var raw struct {
		Type      string          `json:"type"`
		Text      string          `json:"text"`
		Thinking  string          `json:"thinking"`
		Signature string          `json:"signature"`
		ID        string          `json:"id"`
		Name      string          `json:"name"`
		Input     map[string]any  `json:"input"`
		ToolUseID string          `json:"tool_use_id"`
		Content   any             `json:"content"`
		IsError   bool            `json:"is_error"`
		Source    json.RawMessage `json:"source"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	if unsupportedBlockTypes[raw.Type] {
		return &UnsupportedBlockError{TypeTag: raw.Type}
	}

	switch ContentBlockType(raw.Type) {
	case BlockText:
		b.Type = BlockText
		b.Text = raw.Text
	case BlockThinking:
		b.Type = BlockThinking
		b.Thinking = raw.Thinking
		b.Signature = raw.Signature
	case BlockToolUse:
		b.Type = BlockToolUse
		b.ToolUseID = raw.ID
		b.ToolName = raw.Name
		b.ToolInput = raw.Input
	case BlockToolResult:
		b.Type = BlockToolResult
		b.ToolUseResultID = raw.ToolUseID
		b.ResultContent = raw.Content
		b.IsError = raw.IsError
	case BlockImage:
		var src struct {
			Type      string `json:"type"`
			URL       string `json:"url"`
			MediaType string `json:"media_type"`
			Data      string `json:"data"`
		}
		if err := json.Unmarshal(raw.Source, &src); err != nil {
			return err
		}
		b.Type = BlockImage
		if src.Type == "url" {
			b.ImageSource = ImageSource{Kind: "url", URL: src.URL}
		} else {
			b.ImageSource = ImageSource{Kind: "base64", MediaType: src.MediaType, Data: src.Data}
		}
	default:
		return &UnsupportedBlockError{TypeTag: raw.Type}
	}
	return nil
}
