package fixes

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

const duplicateFilepathResponse = `{"choices":[{"message":{"tool_calls":[{"id":"call_1","index":0,"function":{"name":"write_file","arguments":"{\"content\":\"code\",\"filePath\":\"/path/to/file\",\"filePath\"/path/to/file\"}"}}]}}]}`

func TestBadFilepathFixAppliesOnlyWhenMalformed(t *testing.T) {
	f := NewBadFilepathFix(true)
	require.True(t, f.Applies([]byte(duplicateFilepathResponse)))

	clean := `{"choices":[{"message":{"tool_calls":[{"function":{"arguments":"{\"filePath\":\"/a\"}"}}]}}]}`
	require.False(t, f.Applies([]byte(clean)))
}

func TestBadFilepathFixRemovesDuplicate(t *testing.T) {
	f := NewBadFilepathFix(true)
	out := f.Apply([]byte(duplicateFilepathResponse), nil)

	args := gjson.GetBytes(out, "choices.0.message.tool_calls.0.function.arguments").String()
	require.True(t, gjson.Valid(args), "repaired arguments must be valid JSON: %s", args)
	assert.Equal(t, "code", gjson.Get(args, "content").String())
	assert.Equal(t, "/path/to/file", gjson.Get(args, "filePath").String())
	assert.False(t, gjson.Get(args, "filePath_2").Exists())

	rest := gjson.GetBytes(out, "choices.0.message.tool_calls.0.id").String()
	assert.Equal(t, "call_1", rest, "untouched fields must survive the repair")
}

func TestBadFilepathFixRenamesDuplicateWhenKeepingBoth(t *testing.T) {
	f := NewBadFilepathFix(false)
	out := f.Apply([]byte(duplicateFilepathResponse), nil)

	args := gjson.GetBytes(out, "choices.0.message.tool_calls.0.function.arguments").String()
	require.True(t, gjson.Valid(args), "repaired arguments must be valid JSON: %s", args)
	assert.Equal(t, "/path/to/file", gjson.Get(args, "filePath").String())
	assert.Equal(t, "/path/to/file", gjson.Get(args, "filePath_2").String())
}

func TestBadFilepathFixStreamingRepairsAccumulatedArgs(t *testing.T) {
	f := NewBadFilepathFix(true)
	acc := NewAccumulator()

	full := `{"content":"code","filePath":"/path/to/file","filePath"/path/to/file"}`
	escaped, err := json.Marshal(full)
	require.NoError(t, err)
	chunk := []byte(`{"choices":[{"delta":{"tool_calls":[{"index":0,"function":{"arguments":` + string(escaped) + `}}]}}]}`)

	_, delta := f.ApplyStream(chunk, acc, nil)
	require.True(t, gjson.Valid(string(delta)), "delta %q must be valid JSON once fully accumulated", delta)
	assert.Equal(t, "code", gjson.Get(string(delta), "content").String())
	assert.False(t, gjson.Get(string(delta), "filePath_2").Exists())
}

func TestBadFilepathFixKeepsBothWhenValuesDiffer(t *testing.T) {
	response := `{"choices":[{"message":{"tool_calls":[{"function":{"arguments":"{\"content\":\"code\",\"filePath\":\"/a\",\"filePath\"/b\"}"}}]}}]}`

	for _, removeDuplicate := range []bool{true, false} {
		f := NewBadFilepathFix(removeDuplicate)
		out := f.Apply([]byte(response), nil)

		args := gjson.GetBytes(out, "choices.0.message.tool_calls.0.function.arguments").String()
		require.True(t, gjson.Valid(args), "repaired arguments must be valid JSON: %s", args)
		assert.Equal(t, "/a", gjson.Get(args, "filePath").String(), "differing values must not be collapsed, removeDuplicate=%v", removeDuplicate)
	}
}

func TestAggressiveFixFallsBackToEmptyObject(t *testing.T) {
	got := tryAggressiveFix(`totally not json at all`)
	assert.Equal(t, "{}", got)
}
