package fixes

import "sync"

// CallState is the per-tool-call mutable state a streaming fix needs: the
// bytes accumulated from every piece seen so far, how many of the repaired
// bytes have already been handed to the client, and an optional schema
// hint (the tool name) for argument-key recovery.
type CallState struct {
	AccumulatedArgs []byte
	EmittedBytes    int
	SchemaHint      string
}

// Accumulator is single-owner per stream: created when a stream starts,
// discarded when it terminates. Never shared across requests.
type Accumulator struct {
	mu        sync.Mutex
	calls     map[int]*CallState
	idToIndex map[string]int
	nextIndex int
}

func NewAccumulator() *Accumulator {
	return &Accumulator{calls: make(map[int]*CallState), idToIndex: make(map[string]int)}
}

// NextSequentialIndex assigns the next free index to a tool-call id the
// first time it's seen, and returns the same index on later chunks that
// repeat the id (some backends split one tool call's arguments across
// many chunks, all carrying the same id and a missing index).
func (a *Accumulator) NextSequentialIndex(id string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	if id != "" {
		if idx, ok := a.idToIndex[id]; ok {
			return idx
		}
	}
	idx := a.nextIndex
	a.nextIndex++
	if id != "" {
		a.idToIndex[id] = idx
	}
	return idx
}

// Call returns the CallState for a tool-call index, creating it on first
// use.
func (a *Accumulator) Call(index int) *CallState {
	a.mu.Lock()
	defer a.mu.Unlock()
	cs, ok := a.calls[index]
	if !ok {
		cs = &CallState{}
		a.calls[index] = cs
	}
	return cs
}

// Commit records that n bytes of repaired argument text for the given
// tool-call index were just handed to the client. Only the registry calls
// this, after a dispatchStream round completes — fixes themselves only
// read EmittedBytes, they never advance it.
func (a *Accumulator) Commit(index int, n int) {
	cs := a.Call(index)
	a.mu.Lock()
	cs.EmittedBytes += n
	a.mu.Unlock()
}
