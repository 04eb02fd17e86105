package fixes

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/llamabridge/llamabridge/internal/chars"
)

// BadFilepathFix repairs the duplicate/malformed "filePath" key some
// Qwen3-Coder-family models emit in tool-call arguments, e.g.
// {"content":"x","filePath":"/a","filePath"/a"} — the second occurrence is
// missing its colon and opening quote. This is the mandatory baseline fix
// (§4.B).
type BadFilepathFix struct {
	removeDuplicate atomic.Bool
}

// NewBadFilepathFix mirrors the original's constructor: removeDuplicate
// selects between dropping the second occurrence and renaming it.
func NewBadFilepathFix(removeDuplicate bool) *BadFilepathFix {
	f := &BadFilepathFix{}
	f.removeDuplicate.Store(removeDuplicate)
	return f
}

func (f *BadFilepathFix) Name() string { return "toolcall_bad_filepath" }

func (f *BadFilepathFix) Description() string {
	return "Fixes duplicate/malformed filePath in tool call arguments"
}

func (f *BadFilepathFix) LogLevel() LogLevel { return LogWarn }

// SetRemoveDuplicate is the runtime-mutable control path named in the
// config schema's fixes.modules.toolcall_bad_filepath.remove_duplicate.
func (f *BadFilepathFix) SetRemoveDuplicate(v bool) { f.removeDuplicate.Store(v) }

func (f *BadFilepathFix) RemoveDuplicate() bool { return f.removeDuplicate.Load() }

func (f *BadFilepathFix) Applies(response []byte) bool {
	applies := false
	gjson.GetBytes(response, "choices").ForEach(func(_, choice gjson.Result) bool {
		choice.Get("message.tool_calls").ForEach(func(_, call gjson.Result) bool {
			if isMalformedFilepathArgs(call.Get("function.arguments").String()) {
				applies = true
				return false
			}
			return true
		})
		return !applies
	})
	return applies
}

func (f *BadFilepathFix) Apply(response, _ []byte) []byte {
	result := response
	choices := gjson.GetBytes(response, "choices").Array()
	for ci, choice := range choices {
		calls := choice.Get("message.tool_calls").Array()
		for ti, call := range calls {
			args := call.Get("function.arguments").String()
			if !isMalformedFilepathArgs(args) {
				continue
			}
			fixed := fixFilepathArguments(args, f.RemoveDuplicate())
			path := fmt.Sprintf("choices.%d.message.tool_calls.%d.function.arguments", ci, ti)
			if out, err := sjson.SetBytes(result, path, fixed); err == nil {
				result = out
			}
		}
	}
	return result
}

func (f *BadFilepathFix) ApplyStream(chunk []byte, acc *Accumulator, _ []byte) ([]byte, []byte) {
	argsResult := gjson.GetBytes(chunk, "choices.0.delta.tool_calls.0.function.arguments")
	if !argsResult.Exists() || acc == nil {
		return chunk, chunk
	}

	index := int(gjson.GetBytes(chunk, "choices.0.delta.tool_calls.0.index").Int())
	cs := acc.Call(index)
	cs.AccumulatedArgs = append(cs.AccumulatedArgs, argsResult.String()...)

	full := string(cs.AccumulatedArgs)
	if !isMalformedFilepathArgs(full) {
		return chunk, chunk
	}

	fixed := fixFilepathArguments(full, f.RemoveDuplicate())
	if !json.Valid([]byte(fixed)) || cs.EmittedBytes > len(fixed) {
		return chunk, MinimalClosingDelta
	}

	boundary := chars.FloorBoundary(fixed, len(fixed))
	if boundary < cs.EmittedBytes {
		return chunk, MinimalClosingDelta
	}
	delta := fixed[cs.EmittedBytes:boundary]
	return chunk, []byte(delta)
}

func isMalformedFilepathArgs(args string) bool {
	return strings.Contains(args, "filePath") && !json.Valid([]byte(args))
}

func fixFilepathArguments(args string, removeDuplicate bool) string {
	if json.Valid([]byte(args)) {
		return args
	}
	fixed := tryFixDuplicateFilepath(args, removeDuplicate)
	if json.Valid([]byte(fixed)) {
		return fixed
	}
	return tryAggressiveFix(args)
}

const filepathKey = `"filePath"`

// tryFixDuplicateFilepath locates the first two "filePath" key occurrences.
// §4.B's repair policy only collapses the two occurrences when the second
// value is identical to the first — that's the literal duplicate-key case,
// where removeDuplicate decides between dropping the second occurrence
// (keeping the first) and renaming it to filePath_2 so both survive. When
// the values differ, the malformation is just a missing colon: insert it
// and keep both "filePath" keys with their distinct values, regardless of
// removeDuplicate.
func tryFixDuplicateFilepath(args string, removeDuplicate bool) string {
	first := strings.Index(args, filepathKey)
	if first < 0 {
		return args
	}
	secondRel := strings.Index(args[first+len(filepathKey):], filepathKey)
	if secondRel < 0 {
		return args
	}
	second := first + len(filepathKey) + secondRel

	firstVal, firstValEnd, ok := recoverFilepathValue(args, first+len(filepathKey))
	if !ok {
		return args
	}
	secondVal, secondValEnd, ok2 := recoverFilepathValue(args, second+len(filepathKey))
	if !ok2 {
		return args
	}

	if firstVal != secondVal {
		quoted, err := json.Marshal(secondVal)
		if err != nil {
			return args
		}
		return args[:second] + `"filePath":` + string(quoted) + args[secondValEnd:]
	}

	if removeDuplicate {
		end := chars.FloorBoundary(args, firstValEnd)
		return args[:end] + "}"
	}

	quoted, err := json.Marshal(secondVal)
	if err != nil {
		return args
	}
	return args[:second] + `"filePath_2":` + string(quoted) + args[secondValEnd:]
}

// recoverFilepathValue parses the value following a "filePath" key
// starting at from, tolerating a missing colon and missing opening quote
// (the exact malformation Qwen3-Coder produces): it accepts either the
// well-formed `:"value"` form or a bare `value"` form, stopping at the
// first unescaped closing quote either way.
func recoverFilepathValue(s string, from int) (value string, end int, ok bool) {
	i := from
	n := len(s)
	for i < n && (s[i] == ' ' || s[i] == '\t') {
		i++
	}
	if i < n && s[i] == ':' {
		i++
		for i < n && (s[i] == ' ' || s[i] == '\t') {
			i++
		}
		if i >= n || s[i] != '"' {
			return "", 0, false
		}
		i++
	}

	start := i
	j := start
	for j < n {
		if s[j] == '\\' && j+1 < n {
			j += 2
			continue
		}
		if s[j] == '"' {
			return s[start:j], j + 1, true
		}
		j++
	}
	return "", 0, false
}

// tryAggressiveFix rebuilds a best-effort object from whatever
// "key":"value" pairs it can recognize, dropping repeats and giving up to
// "{}" when nothing usable is found — the last-resort path the original
// falls back to when structural repair fails.
func tryAggressiveFix(args string) string {
	var (
		b        strings.Builder
		seen     = map[string]bool{}
		inString bool
		escaped  bool
		key      strings.Builder
		val      strings.Builder
		haveKey  bool
		first    = true
	)
	b.WriteByte('{')

	flush := func() {
		if haveKey && !seen[key.String()] {
			if !first {
				b.WriteByte(',')
			}
			kq, _ := json.Marshal(key.String())
			vq, _ := json.Marshal(val.String())
			b.Write(kq)
			b.WriteByte(':')
			b.Write(vq)
			seen[key.String()] = true
			first = false
		}
		key.Reset()
		val.Reset()
		haveKey = false
	}

	var sawColon bool
	for _, r := range args {
		if escaped {
			if sawColon {
				val.WriteRune(r)
			}
			escaped = false
			continue
		}
		switch r {
		case '\\':
			escaped = true
			if sawColon {
				val.WriteRune(r)
			}
		case '"':
			inString = !inString
			if !inString && key.Len() > 0 {
				haveKey = true
			}
		case ':':
			if !inString {
				sawColon = true
				continue
			}
			val.WriteRune(r)
		case ',':
			if !inString {
				flush()
				sawColon = false
				continue
			}
			val.WriteRune(r)
		case '{', '}':
			if !inString {
				continue
			}
			val.WriteRune(r)
		default:
			if inString {
				if sawColon {
					val.WriteRune(r)
				} else {
					key.WriteRune(r)
				}
			}
		}
	}
	flush()
	b.WriteByte('}')

	result := b.String()
	if json.Valid([]byte(result)) {
		return result
	}
	return "{}"
}
