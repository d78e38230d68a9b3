package conversation

import (
	"testing"
)

func TestMessageEmpty(t *testing.T) {
	cases := []struct {
		msg  Message
		want bool
	}{
		{Message{Role: "user", Content: "hi"}, false},
		{Message{Role: "user", Content: "   "}, true},
		{Message{Role: "assistant"}, true},
		{Message{Role: "assistant", ToolInvocations: []ToolInvocation{{ToolCallID: "tc1"}}}, false},
	}
	for i, tc := range cases {
		if got := tc.msg.Empty(); got != tc.want {
			t.Errorf("case %d: got %v, want %v", i, got, tc.want)
		}
	}
}

func TestFilterEmpty(t *testing.T) {
	msgs := []Message{
		{Role: "user", Content: "hi"},
		{Role: "assistant", Content: ""},
		{Role: "assistant", Content: "hello"},
	}
	out := FilterEmpty(msgs)
	if len(out) != 2 {
		t.Fatalf("got %d, want 2", len(out))
	}
	if out[0].Content != "hi" || out[1].Content != "hello" {
		t.Errorf("order not preserved: %+v", out)
	}
}

func TestInvocationStates(t *testing.T) {
	call := ToolInvocation{State: StateCall}
	partial := ToolInvocation{State: StatePartialCall}
	result := ToolInvocation{State: StateResult}

	if !call.Pending() || !partial.Pending() || result.Pending() {
		t.Error("Pending misclassifies states")
	}
	if call.Resolved() || partial.Resolved() || !result.Resolved() {
		t.Error("Resolved misclassifies states")
	}
}

func TestCountTokens(t *testing.T) {
	n := CountTokens("hello world, this is a token counting test")
	if n <= 0 {
		t.Fatalf("got %d tokens", n)
	}

	msgs := []Message{
		{Role: "user", Content: "hello"},
		{Role: "assistant", Content: "hi there"},
	}
	total := CountTokensForMessages(msgs)
	if total <= CountTokens("hello") {
		t.Errorf("message overhead missing: %d", total)
	}
}
