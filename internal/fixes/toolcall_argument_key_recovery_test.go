package fixes

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

const writeFileRequest = `{"model":"x","messages":[],"tools":[{"type":"function","function":{"name":"write_file","parameters":{"type":"object","properties":{"file_path":{"type":"string"},"content":{"type":"string"}},"required":["file_path","content"]}}}]}`

func malformedArgsResponse(args string) []byte {
	b, _ := json.Marshal(args)
	return []byte(`{"choices":[{"message":{"tool_calls":[{"index":0,"function":{"name":"write_file","arguments":` + string(b) + `}}]}}]}`)
}

func TestArgumentKeyRecoveryAppliesOnMalformedToken(t *testing.T) {
	f := NewArgumentKeyRecoveryFix()
	response := malformedArgsResponse(`{{}":"main.go","content":"package main"}`)
	require.True(t, f.Applies(response))

	clean := malformedArgsResponse(`{"file_path":"main.go","content":"package main"}`)
	require.False(t, f.Applies(clean))
}

func TestArgumentKeyRecoveryResolvesSingleMissingParam(t *testing.T) {
	f := NewArgumentKeyRecoveryFix()
	response := malformedArgsResponse(`{{}":"main.go","content":"package main"}`)

	out := f.Apply(response, []byte(writeFileRequest))
	args := gjson.GetBytes(out, "choices.0.message.tool_calls.0.function.arguments").String()
	require.True(t, gjson.Valid(args), "repaired arguments must be valid JSON: %s", args)
	assert.Equal(t, "main.go", gjson.Get(args, "file_path").String())
	assert.Equal(t, "package main", gjson.Get(args, "content").String())
}

func TestArgumentKeyRecoveryFallsBackToHeuristicWithoutSchema(t *testing.T) {
	f := NewArgumentKeyRecoveryFix()
	response := malformedArgsResponse(`{{}":"main.go"}`)

	out := f.Apply(response, nil)
	args := gjson.GetBytes(out, "choices.0.message.tool_calls.0.function.arguments").String()
	require.True(t, gjson.Valid(args))
	assert.Equal(t, "main.go", gjson.Get(args, "file_path").String())
}

func TestArgumentKeyRecoveryStreaming(t *testing.T) {
	f := NewArgumentKeyRecoveryFix()
	acc := NewAccumulator()

	b, _ := json.Marshal(`{{}":"main.go","content":"package main"}`)
	chunk := []byte(`{"choices":[{"delta":{"tool_calls":[{"index":0,"function":{"name":"write_file","arguments":` + string(b) + `}}]}}]}`)

	_, delta := f.ApplyStream(chunk, acc, []byte(writeFileRequest))
	require.True(t, gjson.Valid(string(delta)))
	assert.Equal(t, "main.go", gjson.Get(string(delta), "file_path").String())
}
