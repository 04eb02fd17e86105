package fixes

import (
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// NullIndexFix reassigns sequential indices to tool calls whose index
// field is null, missing, or non-numeric — some backends omit it
// entirely when a single tool call is returned, others emit explicit
// null. This fires on nearly every multi-tool-call response, so it logs
// at debug rather than warn.
type NullIndexFix struct{}

func NewNullIndexFix() *NullIndexFix { return &NullIndexFix{} }

func (f *NullIndexFix) Name() string { return "toolcall_null_index_fix" }

func (f *NullIndexFix) Description() string {
	return "Assigns sequential indices to tool calls with null or missing index"
}

func (f *NullIndexFix) LogLevel() LogLevel { return LogDebug }

func (f *NullIndexFix) Applies(response []byte) bool {
	applies := false
	gjson.GetBytes(response, "choices").ForEach(func(_, choice gjson.Result) bool {
		if needsIndexFix(choice.Get("message.tool_calls")) || needsIndexFix(choice.Get("delta.tool_calls")) {
			applies = true
			return false
		}
		return true
	})
	return applies
}

func needsIndexFix(toolCalls gjson.Result) bool {
	fix := false
	toolCalls.ForEach(func(_, call gjson.Result) bool {
		idx := call.Get("index")
		if !idx.Exists() || idx.Type != gjson.Number {
			fix = true
			return false
		}
		return true
	})
	return fix
}

func (f *NullIndexFix) Apply(response, _ []byte) []byte {
	result := response
	choices := gjson.GetBytes(response, "choices").Array()
	for ci := range choices {
		result = fixToolCallIndices(result, ci, "message.tool_calls")
		result = fixToolCallIndices(result, ci, "delta.tool_calls")
	}
	return result
}

// fixToolCallIndices renumbers every tool call in the array sequentially
// from 0, not just the ones missing an index — once any entry needs
// repair the whole array's indices are suspect, since a model that drops
// one index has often shifted the rest too.
func fixToolCallIndices(response []byte, choiceIdx int, field string) []byte {
	path := "choices." + itoa(choiceIdx) + "." + field
	calls := gjson.GetBytes(response, path).Array()
	result := response
	for seq := range calls {
		callPath := path + "." + itoa(seq) + ".index"
		if out, err := sjson.SetBytes(result, callPath, seq); err == nil {
			result = out
		}
	}
	return result
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// ApplyStream reassigns the index of a single streaming tool-call delta
// using the accumulator to track how many distinct tool calls this stream
// has already seen — sequential across chunks, not just within one.
func (f *NullIndexFix) ApplyStream(chunk []byte, acc *Accumulator, _ []byte) ([]byte, []byte) {
	call := gjson.GetBytes(chunk, "choices.0.delta.tool_calls.0")
	if !call.Exists() || acc == nil {
		return chunk, chunk
	}
	idx := call.Get("index")
	if idx.Exists() && idx.Type == gjson.Number {
		return chunk, chunk
	}

	id := call.Get("id").String()
	seq := acc.NextSequentialIndex(id)
	out, err := sjson.SetBytes(chunk, "choices.0.delta.tool_calls.0.index", seq)
	if err != nil {
		return chunk, chunk
	}
	return out, out
}
