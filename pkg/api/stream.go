package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/Xalamander777/neur-app/pkg/tool"
)

// SSESink streams turn events to the client as Server-Sent Events. Event
// names mirror what the web client expects: text-delta, tool-call,
// tool-result, message-annotation, error, done.
type SSESink struct {
	mu      sync.Mutex
	w       http.ResponseWriter
	flusher http.Flusher
}

// NewSSESink prepares the response for streaming and returns the sink.
// It returns an error when the writer cannot flush.
func NewSSESink(w http.ResponseWriter) (*SSESink, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("response writer does not support streaming")
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	return &SSESink{w: w, flusher: flusher}, nil
}

func (s *SSESink) emit(event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", event, data)
	s.flusher.Flush()
}

// TextDelta implements tool.Sink.
func (s *SSESink) TextDelta(text string) {
	s.emit("text-delta", map[string]any{"text": text})
}

// ToolCall implements tool.Sink.
func (s *SSESink) ToolCall(id, name string, args map[string]any) {
	s.emit("tool-call", map[string]any{
		"toolCallId": id,
		"toolName":   name,
		"args":       args,
	})
}

// ToolResult implements tool.Sink.
func (s *SSESink) ToolResult(id, name string, result *tool.Result) {
	s.emit("tool-result", map[string]any{
		"toolCallId": id,
		"toolName":   name,
		"result":     result,
	})
}

// Annotation implements tool.Sink.
func (s *SSESink) Annotation(key string, value any) {
	s.emit("message-annotation", map[string]any{key: value})
}

// Error emits a terminal error event.
func (s *SSESink) Error(message string) {
	s.emit("error", map[string]any{"message": message})
}

// Done closes the event stream logically; the connection ends when the
// handler returns.
func (s *SSESink) Done() {
	s.emit("done", map[string]any{})
}
