package agent

import (
	"math/rand"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/Xalamander777/neur-app/pkg/conversation"
)

// Reconcile prepares a turn's new messages for persistence:
//
//   - every message gets a ULID id if it lacks one
//   - timestamps are rewritten to ref plus the message's index, in
//     milliseconds, so ordering is total even when the turn produced several
//     messages within one clock tick
//   - unresolved invocations are dropped, except confirm-gated calls still
//     awaiting the user, which must survive to the next turn
//   - assistant messages left with no content and no invocations are dropped
//
// Reconcile is pure: it returns fresh messages and never mutates its input.
func Reconcile(conversationID string, messages []conversation.Message, ref time.Time) []conversation.Message {
	entropy := rand.New(rand.NewSource(ref.UnixNano()))

	out := make([]conversation.Message, 0, len(messages))
	for _, msg := range messages {
		m := msg
		m.ConversationID = conversationID
		m.ToolInvocations = keepInvocations(msg.ToolInvocations)

		if m.Role == "assistant" && m.Content == "" && len(m.ToolInvocations) == 0 {
			continue
		}

		m.CreatedAt = ref.Add(time.Duration(len(out)) * time.Millisecond)
		if m.ID == "" {
			m.ID = ulid.MustNew(ulid.Timestamp(m.CreatedAt), entropy).String()
		}
		out = append(out, m)
	}
	return out
}

// keepInvocations filters a message's invocations down to the persistable
// set: resolved results, and pending confirm-gated calls awaiting a user
// decision. Calls stranded mid-stream (no result, no step) are discarded.
func keepInvocations(invocations []conversation.ToolInvocation) []conversation.ToolInvocation {
	if len(invocations) == 0 {
		return nil
	}
	out := make([]conversation.ToolInvocation, 0, len(invocations))
	for _, inv := range invocations {
		if inv.Resolved() {
			out = append(out, inv)
			continue
		}
		if inv.State == conversation.StateCall && inv.Step == conversation.StepPending {
			out = append(out, inv)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// MessageIDs extracts the ids of a reconciled batch.
func MessageIDs(messages []conversation.Message) []string {
	ids := make([]string, 0, len(messages))
	for _, m := range messages {
		ids = append(ids, m.ID)
	}
	return ids
}
