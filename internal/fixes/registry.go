// Package fixes implements the ordered, dynamically togglable response-fix
// registry that repairs malformed JSON inside model tool-call output. The
// orchestrator applies it to whole buffered responses; the streaming-chunk
// entry points (ApplyStreamWithAccumulation and its Default sibling) have
// no caller in the request path.
package fixes

import (
	"sync"

	"github.com/tidwall/gjson"
)

// LogLevel hints at the severity a fix's own log lines should carry. It
// never influences control flow.
type LogLevel int

const (
	LogWarn LogLevel = iota
	LogDebug
)

// Fix is a capability set, not a base class: name, description, an
// applicability probe, a whole-response repair, and a streaming-chunk
// repair. There is no inherited default — every fix that wants streaming
// support implements ApplyStream directly, routed through the registry's
// single dispatch kernel (dispatchStream) so apply_stream_with_accumulation
// and its _default sibling can never diverge.
type Fix interface {
	Name() string
	Description() string
	LogLevel() LogLevel
	Applies(response []byte) bool
	// Apply receives the original client request alongside the response
	// being repaired so schema-driven fixes (argument-key recovery) can
	// look up tool parameter names. Fixes that don't need it ignore it.
	Apply(response []byte, request []byte) []byte
	// ApplyStream observes accumulated state for this stream/tool-call via
	// acc, plus the original client request for schema lookups, and
	// returns both the rewritten chunk (the view later fixes in the chain
	// observe) and the minimal-delta bytes safe to hand to the client. A
	// fix unable to prove delta-safety MUST return a minimal JSON-closing
	// delta, never the full repaired buffer.
	ApplyStream(chunk []byte, acc *Accumulator, request []byte) (rewritten []byte, delta []byte)
}

// Registry holds fixes by shared reference so the enable/disable plane can
// reconfigure without rebuilding the pipeline (per the ownership model:
// fixes have no per-stream state of their own — that lives in Accumulator).
type Registry struct {
	mu      sync.RWMutex
	fixes   []Fix
	enabled map[string]bool
}

func NewRegistry() *Registry {
	return &Registry{enabled: make(map[string]bool)}
}

func (r *Registry) Register(f Fix) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fixes = append(r.fixes, f)
	r.enabled[f.Name()] = true
}

func (r *Registry) SetEnabled(name string, enabled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.enabled[name]; ok {
		r.enabled[name] = enabled
	}
}

func (r *Registry) IsEnabled(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.enabled[name]
}

// List returns fixes in registration order.
func (r *Registry) List() []Fix {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Fix, len(r.fixes))
	copy(out, r.fixes)
	return out
}

func (r *Registry) GetFix(name string) (Fix, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, f := range r.fixes {
		if f.Name() == name {
			return f, true
		}
	}
	return nil, false
}

// Apply runs every enabled fix whose Applies returns true, in registration
// order, each observing the output of its predecessors. A fix that panics
// is skipped and the rest of the chain proceeds (§7 FixError). request may
// be nil for callers without the original client request.
func (r *Registry) Apply(response, request []byte) []byte {
	result := response
	for _, f := range r.List() {
		if !r.IsEnabled(f.Name()) {
			continue
		}
		result = r.safeApply(f, result, request)
	}
	return result
}

func (r *Registry) safeApply(f Fix, response, request []byte) []byte {
	result := response
	func() {
		defer func() {
			if rec := recover(); rec != nil {
				result = response
			}
		}()
		if f.Applies(response) {
			result = f.Apply(response, request)
		}
	}()
	return result
}

// ApplyStreamWithAccumulation is the registry's streaming dispatch entry
// point for callers that have the original client request available (for
// schema-driven fixes). ApplyStreamWithAccumulationDefault is its sibling
// for callers without one. Both route through dispatchStream so neither
// path can silently diverge from the other (§4.B, §9).
func (r *Registry) ApplyStreamWithAccumulation(chunk, request []byte, acc *Accumulator) (rewritten, delta []byte) {
	return r.dispatchStream(chunk, request, acc)
}

func (r *Registry) ApplyStreamWithAccumulationDefault(chunk []byte, acc *Accumulator) (rewritten, delta []byte) {
	return r.dispatchStream(chunk, nil, acc)
}

// dispatchStream is the common kernel. Each enabled fix observes the
// rewritten chunk of its predecessor; the last fix in the chain determines
// the authoritative delta. The registry — never the fix — updates acc's
// emitted-byte accounting, to exactly len(delta).
func (r *Registry) dispatchStream(chunk, request []byte, acc *Accumulator) (rewritten, delta []byte) {
	result := chunk
	delta = chunk
	for _, f := range r.List() {
		if !r.IsEnabled(f.Name()) {
			continue
		}
		rw, d := r.safeApplyStream(f, result, acc, request)
		result = rw
		delta = d
	}
	if acc != nil {
		acc.Commit(toolCallIndex(result), len(delta))
	}
	return result, delta
}

// toolCallIndex reads the delta tool-call index a streaming chunk carries,
// defaulting to 0 for single-tool-call streams that omit it.
func toolCallIndex(chunk []byte) int {
	idx := gjson.GetBytes(chunk, "choices.0.delta.tool_calls.0.index")
	if !idx.Exists() {
		return 0
	}
	return int(idx.Int())
}

func (r *Registry) safeApplyStream(f Fix, chunk []byte, acc *Accumulator, request []byte) (rewritten, delta []byte) {
	rewritten, delta = chunk, chunk
	func() {
		defer func() {
			if rec := recover(); rec != nil {
				rewritten, delta = chunk, MinimalClosingDelta
			}
		}()
		rewritten, delta = f.ApplyStream(chunk, acc, request)
	}()
	return rewritten, delta
}

// MinimalClosingDelta is the fallback emitted whenever a fix cannot prove
// its computed delta is a safe prefix-continuation. It is a well-formed
// trailing fragment for a JSON object opened earlier in the stream.
var MinimalClosingDelta = []byte(`"_":null}`)
