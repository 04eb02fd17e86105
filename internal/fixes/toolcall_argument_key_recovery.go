package fixes

import (
	"encoding/json"
	"regexp"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/llamabridge/llamabridge/internal/chars"
)

// malformedKeyPattern matches the `{}":` token some models emit in place
// of a real key name — e.g. `{{}":"main.go"}` instead of
// `{"file_path":"main.go"}` — the key got replaced by an empty object
// literal but the rest of the key/value syntax survived.
var malformedKeyPattern = regexp.MustCompile(`([,{])\{\}":(\s*)`)

// heuristicParamNames supplies the key name when the request's schema
// leaves no required parameter missing (no tools[] entry for the call's
// name, or every required key already present). pickHeuristicName takes
// its first entry.
var heuristicParamNames = []string{
	"file_path", "path", "filepath", "filename",
	"output", "output_path", "destination", "target",
}

// ArgumentKeyRecoveryFix repairs tool-call arguments where a required
// parameter's key was replaced by a stray "{}" token, using the current
// request's tool schema to recover the intended key name. Scoped to the
// current request's tools only — it never guesses across requests.
type ArgumentKeyRecoveryFix struct{}

func NewArgumentKeyRecoveryFix() *ArgumentKeyRecoveryFix { return &ArgumentKeyRecoveryFix{} }

func (f *ArgumentKeyRecoveryFix) Name() string { return "toolcall_argument_key_recovery" }

func (f *ArgumentKeyRecoveryFix) Description() string {
	return "Recovers a dropped parameter key in malformed tool call arguments using the request's tool schema"
}

func (f *ArgumentKeyRecoveryFix) LogLevel() LogLevel { return LogWarn }

func (f *ArgumentKeyRecoveryFix) Applies(response []byte) bool {
	applies := false
	gjson.GetBytes(response, "choices").ForEach(func(_, choice gjson.Result) bool {
		choice.Get("message.tool_calls").ForEach(func(_, call gjson.Result) bool {
			if malformedKeyPattern.MatchString(call.Get("function.arguments").String()) {
				applies = true
				return false
			}
			return true
		})
		return !applies
	})
	return applies
}

func (f *ArgumentKeyRecoveryFix) Apply(response, request []byte) []byte {
	schemas := extractToolSchemas(request)
	result := response
	choices := gjson.GetBytes(response, "choices").Array()
	for ci, choice := range choices {
		calls := choice.Get("message.tool_calls").Array()
		for ti, call := range calls {
			args := call.Get("function.arguments").String()
			if !malformedKeyPattern.MatchString(args) {
				continue
			}
			name := call.Get("function.name").String()
			fixed := recoverArgumentKey(args, schemas[name])
			path := "choices." + itoa(ci) + ".message.tool_calls." + itoa(ti) + ".function.arguments"
			if out, err := sjson.SetBytes(result, path, fixed); err == nil {
				result = out
			}
		}
	}
	return result
}

// ApplyStream applies the same repair to the accumulated argument text for
// a streaming tool call, using SchemaHint (set once the tool name is known
// from the delta) to look the schema up.
func (f *ArgumentKeyRecoveryFix) ApplyStream(chunk []byte, acc *Accumulator, request []byte) ([]byte, []byte) {
	argsResult := gjson.GetBytes(chunk, "choices.0.delta.tool_calls.0.function.arguments")
	if !argsResult.Exists() || acc == nil {
		return chunk, chunk
	}

	index := int(gjson.GetBytes(chunk, "choices.0.delta.tool_calls.0.index").Int())
	cs := acc.Call(index)
	if name := gjson.GetBytes(chunk, "choices.0.delta.tool_calls.0.function.name").String(); name != "" {
		cs.SchemaHint = name
	}
	cs.AccumulatedArgs = append(cs.AccumulatedArgs, argsResult.String()...)

	full := string(cs.AccumulatedArgs)
	if !malformedKeyPattern.MatchString(full) {
		return chunk, chunk
	}

	schemas := extractToolSchemas(request)
	fixed := recoverArgumentKey(full, schemas[cs.SchemaHint])
	if !json.Valid([]byte(fixed)) || cs.EmittedBytes > len(fixed) {
		return chunk, MinimalClosingDelta
	}

	boundary := chars.FloorBoundary(fixed, len(fixed))
	if boundary < cs.EmittedBytes {
		return chunk, MinimalClosingDelta
	}
	return chunk, []byte(fixed[cs.EmittedBytes:boundary])
}

// extractToolSchemas builds a tool-name -> required-parameter-names map
// from the request's tools[].function.parameters.required (falling back
// to the full properties key set when required is absent).
func extractToolSchemas(request []byte) map[string][]string {
	schemas := make(map[string][]string)
	if request == nil {
		return schemas
	}
	gjson.GetBytes(request, "tools").ForEach(func(_, tool gjson.Result) bool {
		name := tool.Get("function.name").String()
		if name == "" {
			return true
		}
		fn := tool.Get("function")
		var params []string
		if req := fn.Get("parameters.required"); req.Exists() {
			req.ForEach(func(_, v gjson.Result) bool {
				params = append(params, v.String())
				return true
			})
		} else {
			fn.Get("parameters.properties").ForEach(func(k, _ gjson.Result) bool {
				params = append(params, k.String())
				return true
			})
		}
		schemas[name] = params
		return true
	})
	return schemas
}

// recoverArgumentKey replaces the first malformed `{}":` token with the
// name of the first required parameter (in schema order) missing from the
// parsed argument keys. When none is missing it uses the first heuristic
// name instead, so with a non-empty heuristicParamNames the token is always
// replaced.
func recoverArgumentKey(args string, requiredParams []string) string {
	loc := malformedKeyPattern.FindStringSubmatchIndex(args)
	if loc == nil {
		return args
	}
	prefix := args[loc[2]:loc[3]]
	trailingWS := args[loc[4]:loc[5]]

	present := presentKeys(args)
	var missing []string
	for _, p := range requiredParams {
		if !present[p] {
			missing = append(missing, p)
		}
	}

	var name string
	switch {
	case len(missing) == 1:
		name = missing[0]
	case len(missing) > 1:
		name = pickHeuristicName(missing)
	default:
		name = pickHeuristicName(heuristicParamNames)
	}
	if name == "" {
		return args
	}

	replacement := prefix + `"` + jsonEscape(name) + `":` + trailingWS
	return args[:loc[0]] + replacement + args[loc[1]:]
}

func pickHeuristicName(candidates []string) string {
	if len(candidates) == 0 {
		return ""
	}
	return candidates[0]
}

func presentKeys(args string) map[string]bool {
	present := make(map[string]bool)
	var parsed map[string]any
	if err := json.Unmarshal([]byte(aggressiveParseJSON(args)), &parsed); err == nil {
		for k := range parsed {
			present[k] = true
		}
	}
	return present
}

// aggressiveParseJSON substitutes a throwaway key for the malformed token
// so the rest of the object parses as valid JSON — letting presentKeys see
// which real keys already made it through intact.
func aggressiveParseJSON(args string) string {
	return malformedKeyPattern.ReplaceAllString(args, `${1}"__recovered_key__":$2`)
}

func jsonEscape(s string) string {
	b, err := json.Marshal(s)
	if err != nil {
		return s
	}
	return string(b[1 : len(b)-1])
}
