package llm

import "strings"

// Accumulator reassembles one tool call from the fragmentary deltas of a
// single streaming pass.
//
// Only one concurrent call is tracked: the first fragment seen fixes the
// call's index and id, and fragments belonging to any other call are dropped
// for the rest of the pass (single-tool-per-turn policy). Continuation
// fragments carry only the index, so the index is the discriminator; the id,
// when present, must also match. A name sets once; argument fragments append
// in arrival order. The call is complete only at stream end, and only when a
// name was supplied and the argument buffer is non-empty.
type Accumulator struct {
	collecting bool
	index      int
	id         string
	name       string
	args       strings.Builder
}

// Feed consumes one tool-call fragment.
func (a *Accumulator) Feed(f ToolCallFragment) {
	if !a.collecting {
		a.collecting = true
		a.index = f.Index
		a.id = f.ID
	} else if f.Index != a.index || (f.ID != "" && a.id != "" && f.ID != a.id) {
		// A fragment of a second concurrent call; ignore it.
		return
	}

	if f.Name != "" && a.name == "" {
		a.name = f.Name
	}
	if f.Args != "" {
		a.args.WriteString(f.Args)
	}
}

// Collecting reports whether any fragment has been consumed this pass.
func (a *Accumulator) Collecting() bool {
	return a.collecting
}

// Finish is called at stream end. It returns the completed call and true
// when a name was set and the argument buffer is non-empty; otherwise it
// discards the partial state. Either way the accumulator resets to idle.
func (a *Accumulator) Finish() (ToolCall, bool) {
	call := ToolCall{ID: a.id, Name: a.name, Arguments: a.args.String()}
	complete := a.collecting && a.name != "" && call.Arguments != ""

	a.collecting = false
	a.index = 0
	a.id = ""
	a.name = ""
	a.args.Reset()

	if !complete {
		return ToolCall{}, false
	}
	return call, true
}
