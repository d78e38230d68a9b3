package model

import (
	"strings"
)

// StreamAccumulator accumulates streaming chunks into a complete message.
// Tool call deltas follow the OpenAI-compatible pattern: each delta carries an
// index identifying which call it extends, and id/name/arguments arrive in
// fragments.
type StreamAccumulator struct {
	content   strings.Builder
	toolCalls []ToolCall
	usage     *Usage
	role      string
}

// NewStreamAccumulator creates a new accumulator for streaming responses.
func NewStreamAccumulator() *StreamAccumulator {
	return &StreamAccumulator{}
}

// Add processes a streaming chunk and accumulates its contents.
func (a *StreamAccumulator) Add(chunk StreamChunk) {
	// Usage may arrive in a trailing chunk that has no choices.
	if chunk.Usage != nil {
		a.usage = chunk.Usage
	}
	if len(chunk.Choices) == 0 {
		return
	}

	delta := chunk.Choices[0].Delta

	if delta.Role != "" {
		a.role = delta.Role
	}
	if delta.Content != "" {
		a.content.WriteString(delta.Content)
	}
	for _, tc := range delta.ToolCalls {
		a.accumulateToolCall(tc)
	}
}

func (a *StreamAccumulator) accumulateToolCall(delta ToolCallDelta) {
	for len(a.toolCalls) <= delta.Index {
		a.toolCalls = append(a.toolCalls, ToolCall{Type: "function"})
	}

	tc := &a.toolCalls[delta.Index]
	if delta.ID != "" {
		tc.ID += delta.ID
	}
	if delta.Type != "" {
		tc.Type = delta.Type
	}
	if delta.Function != nil {
		tc.Function.Name += delta.Function.Name
		tc.Function.Arguments += delta.Function.Arguments
	}
}

// Message returns the accumulated message.
func (a *StreamAccumulator) Message() Message {
	role := a.role
	if role == "" {
		role = "assistant"
	}
	return Message{
		Role:      role,
		Content:   a.content.String(),
		ToolCalls: a.toolCalls,
	}
}

// Content returns the accumulated text content.
func (a *StreamAccumulator) Content() string {
	return a.content.String()
}

// ToolCalls returns the accumulated tool calls.
func (a *StreamAccumulator) ToolCalls() []ToolCall {
	return a.toolCalls
}

// HasToolCalls returns true if any tool calls have been accumulated.
func (a *StreamAccumulator) HasToolCalls() bool {
	return len(a.toolCalls) > 0
}

// Usage returns the usage information from the final chunk, or nil.
func (a *StreamAccumulator) Usage() *Usage {
	return a.usage
}

// Reset clears the accumulator for reuse.
func (a *StreamAccumulator) Reset() {
	a.content.Reset()
	a.toolCalls = nil
	a.usage = nil
	a.role = ""
}
