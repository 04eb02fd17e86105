package fixes

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

type panickyFix struct{}

func (panickyFix) Name() string        { return "panicky" }
func (panickyFix) Description() string { return "always panics" }
func (panickyFix) LogLevel() LogLevel  { return LogWarn }
func (panickyFix) Applies([]byte) bool { return true }
func (panickyFix) Apply([]byte, []byte) []byte {
	panic("boom")
}
func (panickyFix) ApplyStream(chunk []byte, _ *Accumulator, _ []byte) ([]byte, []byte) {
	panic("boom")
}

func TestRegistryContainsPanicsInApply(t *testing.T) {
	r := NewRegistry()
	r.Register(panickyFix{})
	input := []byte(`{"choices":[]}`)

	out := r.Apply(input, nil)
	assert.Equal(t, input, out, "a panicking fix must leave the response untouched, not crash the caller")
}

func TestRegistryContainsPanicsInApplyStream(t *testing.T) {
	r := NewRegistry()
	r.Register(panickyFix{})
	acc := NewAccumulator()

	rewritten, delta := r.ApplyStreamWithAccumulationDefault([]byte(`{"x":1}`), acc)
	assert.Equal(t, []byte(`{"x":1}`), rewritten)
	assert.Equal(t, MinimalClosingDelta, delta)
}

func TestRegistrySetEnabledSkipsDisabledFixes(t *testing.T) {
	r := NewDefaultRegistry()
	r.SetEnabled("toolcall_bad_filepath", false)
	require.False(t, r.IsEnabled("toolcall_bad_filepath"))

	response := malformedArgsResponse(`{"content":"code","filePath":"/a","filePath"/a"}`)
	out := r.Apply(response, nil)
	assert.Equal(t, response, out, "disabled fix must not touch the response")
}

func TestDefaultRegistryRegistersAllThreeFixes(t *testing.T) {
	r := NewDefaultRegistry()
	names := map[string]bool{}
	for _, f := range r.List() {
		names[f.Name()] = true
	}
	assert.True(t, names["toolcall_bad_filepath"])
	assert.True(t, names["toolcall_null_index_fix"])
	assert.True(t, names["toolcall_argument_key_recovery"])
}

func TestApplyStreamWithAccumulationAndDefaultShareDispatch(t *testing.T) {
	r := NewDefaultRegistry()
	chunk := []byte(`{"choices":[{"delta":{"tool_calls":[{"function":{"name":"write_file"}}]}}]}`)

	acc1 := NewAccumulator()
	rw1, d1 := r.ApplyStreamWithAccumulationDefault(chunk, acc1)

	acc2 := NewAccumulator()
	rw2, d2 := r.ApplyStreamWithAccumulation(chunk, nil, acc2)

	assert.Equal(t, rw1, rw2)
	assert.Equal(t, d1, d2)
	assert.Equal(t, int64(0), gjson.GetBytes(rw1, "choices.0.delta.tool_calls.0.index").Int())
}
