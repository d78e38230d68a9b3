package tool

import (
	"context"
	"sync"
)

// Sink receives streaming events as a turn progresses. The HTTP layer
// implements it over Server-Sent Events; tests use in-memory recorders.
type Sink interface {
	// TextDelta emits a fragment of assistant text.
	TextDelta(text string)
	// ToolCall announces a finalized tool call before execution.
	ToolCall(id, name string, args map[string]any)
	// ToolResult announces the outcome of an executed call.
	ToolResult(id, name string, result *Result)
	// Annotation emits out-of-band metadata such as persisted message ids.
	Annotation(key string, value any)
}

// Runtime carries per-turn context into tool executions.
type Runtime struct {
	Sink           Sink
	Abort          *AbortState
	ConversationID string
	UserID         string
	// WalletAddress is the user's public key, empty when the account has no
	// linked wallet.
	WalletAddress string
}

// AbortState coordinates a cooperative stop of an in-flight turn. A soft stop
// lets the current step finish and keeps everything streamed so far; a hard
// stop also cancels the in-flight provider request.
type AbortState struct {
	mu        sync.Mutex
	requested bool
	hard      bool
	aborted   bool
	cancel    context.CancelFunc
}

// NewAbortState wires an abort state to the turn's cancel function. cancel may
// be nil in tests.
func NewAbortState(cancel context.CancelFunc) *AbortState {
	return &AbortState{cancel: cancel}
}

// RequestStop asks the turn to stop at the next step boundary. A hard stop
// additionally cancels the provider request immediately.
func (a *AbortState) RequestStop(hard bool) {
	a.mu.Lock()
	a.requested = true
	if hard {
		a.hard = true
	}
	cancel := a.cancel
	a.mu.Unlock()

	if hard && cancel != nil {
		cancel()
	}
}

// StopRequested reports whether a stop has been asked for.
func (a *AbortState) StopRequested() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.requested
}

// MarkAborted records that the loop honored the stop request.
func (a *AbortState) MarkAborted() {
	a.mu.Lock()
	a.aborted = true
	a.mu.Unlock()
}

// Aborted reports whether the loop stopped early.
func (a *AbortState) Aborted() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.aborted
}
