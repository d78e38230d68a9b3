// Package agent runs the streaming chat pipeline: turn classification, tool
// selection, the model loop, and reconciliation of the finished turn.
package agent

import (
	"github.com/Xalamander777/neur-app/pkg/conversation"
)

// TurnKind describes what the incoming request asks of the pipeline.
type TurnKind int

const (
	// TurnUnknown means the history gives the pipeline nothing to do.
	TurnUnknown TurnKind = iota
	// TurnNewUserMessage means the user sent a fresh message.
	TurnNewUserMessage
	// TurnToolUpdatePending means the user answered a pending confirm-gated
	// call; its (possibly edited) arguments go to the tool's Confirm handler.
	TurnToolUpdatePending
	// TurnToolCanceled means the user rejected the pending call; it is
	// dropped and the response returns immediately.
	TurnToolCanceled
	// TurnToolCompleted means the call was already resolved; there is nothing
	// to reprocess.
	TurnToolCompleted
)

func (k TurnKind) String() string {
	switch k {
	case TurnNewUserMessage:
		return "new_user_message"
	case TurnToolUpdatePending:
		return "tool_update_pending"
	case TurnToolCanceled:
		return "tool_canceled"
	case TurnToolCompleted:
		return "tool_completed"
	default:
		return "unknown"
	}
}

// PendingCall locates the unresolved invocation that drives a non-user turn.
type PendingCall struct {
	MessageIndex    int
	InvocationIndex int
	Invocation      conversation.ToolInvocation
}

// Classify inspects the (already empty-filtered) history and decides the turn
// kind. The decision hinges on the last message: a user message starts a new
// turn; an assistant message with an unresolved confirm-gated call is routed
// by the step the client wrote onto it.
func Classify(messages []conversation.Message) (TurnKind, *PendingCall) {
	messages = conversation.FilterEmpty(messages)
	if len(messages) == 0 {
		return TurnUnknown, nil
	}

	last := messages[len(messages)-1]
	if last.Role == "user" {
		return TurnNewUserMessage, nil
	}

	if last.Role == "assistant" {
		for i, inv := range last.ToolInvocations {
			if !inv.Pending() {
				continue
			}
			pending := &PendingCall{
				MessageIndex:    len(messages) - 1,
				InvocationIndex: i,
				Invocation:      inv,
			}
			switch inv.Step {
			case conversation.StepCanceled:
				return TurnToolCanceled, pending
			case conversation.StepCompleted:
				return TurnToolCompleted, pending
			case conversation.StepPending:
				return TurnToolUpdatePending, pending
			}
		}
	}

	return TurnUnknown, nil
}

// LastUserMessage returns the most recent user message, or nil.
func LastUserMessage(messages []conversation.Message) *conversation.Message {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == "user" && !messages[i].Empty() {
			return &messages[i]
		}
	}
	return nil
}
