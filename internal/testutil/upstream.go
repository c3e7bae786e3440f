// Package testutil holds shared test fakes and stream-protocol helpers.
package testutil

import (
	"context"
	"iter"
	"sync"

	"github.com/neuassist/neuassist/internal/llm"
)

// ScriptedUpstream replays pre-scripted delta passes in order. Each Stream
// call consumes the next pass; the matching Errs entry, when set, aborts
// that pass after its deltas. Requests records every call for assertions.
type ScriptedUpstream struct {
	mu sync.Mutex

	Passes [][]llm.Delta
	Errs   []error

	CompleteText string
	CompleteErr  error

	Requests         []llm.ChatRequest
	CompleteRequests []llm.ChatRequest

	pass int
}

// Stream replays the next scripted pass.
func (u *ScriptedUpstream) Stream(_ context.Context, req llm.ChatRequest) iter.Seq2[llm.Delta, error] {
	u.mu.Lock()
	u.Requests = append(u.Requests, req)
	idx := u.pass
	u.pass++
	u.mu.Unlock()

	return func(yield func(llm.Delta, error) bool) {
		if idx >= len(u.Passes) {
			yield(llm.Delta{Kind: llm.DeltaEnd}, nil)
			return
		}
		for _, d := range u.Passes[idx] {
			if !yield(d, nil) {
				return
			}
		}
		if idx < len(u.Errs) && u.Errs[idx] != nil {
			yield(llm.Delta{}, u.Errs[idx])
			return
		}
		yield(llm.Delta{Kind: llm.DeltaEnd}, nil)
	}
}

// Complete returns the scripted completion.
func (u *ScriptedUpstream) Complete(_ context.Context, req llm.ChatRequest) (string, error) {
	u.mu.Lock()
	u.CompleteRequests = append(u.CompleteRequests, req)
	u.mu.Unlock()

	if u.CompleteErr != nil {
		return "", u.CompleteErr
	}
	return u.CompleteText, nil
}
