// Package conversation defines the message types exchanged between the chat
// API, the agent pipeline, and storage.
package conversation

import (
	"encoding/json"
	"strings"
	"time"
)

// InvocationState tracks the lifecycle of a single tool invocation embedded
// in an assistant message.
type InvocationState string

const (
	// StateCall means the model requested the tool but no result exists yet.
	StateCall InvocationState = "call"
	// StatePartialCall means the call arguments are still streaming in.
	StatePartialCall InvocationState = "partial-call"
	// StateResult means the tool ran (or was confirmed) and produced a result.
	StateResult InvocationState = "result"
)

// StepState is the canonical confirmation step for confirm-gated tools.
// Every tool uses this one enum; there are no per-tool step shapes.
type StepState string

const (
	StepPending   StepState = "pending"
	StepCompleted StepState = "completed"
	StepCanceled  StepState = "canceled"
)

// ToolInvocation records one tool call attached to an assistant message.
type ToolInvocation struct {
	ToolCallID string          `json:"toolCallId"`
	ToolName   string          `json:"toolName"`
	State      InvocationState `json:"state"`
	Step       StepState       `json:"step,omitempty"`
	Args       json.RawMessage `json:"args,omitempty"`
	Result     json.RawMessage `json:"result,omitempty"`
}

// Resolved reports whether the invocation carries a result.
func (ti ToolInvocation) Resolved() bool {
	return ti.State == StateResult
}

// Pending reports whether the invocation is still awaiting resolution.
func (ti ToolInvocation) Pending() bool {
	return ti.State == StateCall || ti.State == StatePartialCall
}

// Attachment is an opaque file reference carried on a user message.
type Attachment struct {
	Name        string `json:"name,omitempty"`
	ContentType string `json:"contentType,omitempty"`
	URL         string `json:"url"`
}

// Message is one conversation turn row.
type Message struct {
	ID              string           `json:"id"`
	ConversationID  string           `json:"conversationId"`
	Role            string           `json:"role"` // user, assistant, tool
	Content         string           `json:"content"`
	ToolInvocations []ToolInvocation `json:"toolInvocations,omitempty"`
	Attachments     []Attachment     `json:"experimental_attachments,omitempty"`
	CreatedAt       time.Time        `json:"createdAt"`
}

// Empty reports whether the message carries neither content nor invocations.
// Empty rows are placeholders and never participate in classification or
// model context.
func (m Message) Empty() bool {
	return strings.TrimSpace(m.Content) == "" && len(m.ToolInvocations) == 0
}

// FilterEmpty drops placeholder rows, preserving order.
func FilterEmpty(messages []Message) []Message {
	out := make([]Message, 0, len(messages))
	for _, m := range messages {
		if m.Empty() {
			continue
		}
		out = append(out, m)
	}
	return out
}

// SortKey orders messages by creation time. Stores enforce uniqueness by
// bumping ties by insertion index, so CreatedAt alone is a total order.
func SortKey(m Message) time.Time { return m.CreatedAt }
