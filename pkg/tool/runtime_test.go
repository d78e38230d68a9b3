package tool

import (
	"context"
	"testing"
)

func TestAbortStateSoftStop(t *testing.T) {
	a := NewAbortState(nil)
	if a.StopRequested() {
		t.Fatal("fresh abort state should not be requested")
	}

	a.RequestStop(false)
	if !a.StopRequested() {
		t.Fatal("expected stop requested")
	}
	if a.Aborted() {
		t.Fatal("aborted should only be set by the loop")
	}

	a.MarkAborted()
	if !a.Aborted() {
		t.Fatal("expected aborted after MarkAborted")
	}
}

func TestAbortStateHardStopCancels(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	a := NewAbortState(cancel)

	a.RequestStop(true)

	select {
	case <-ctx.Done():
	default:
		t.Fatal("hard stop should cancel the context")
	}
}

func TestAbortStateSoftStopDoesNotCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	a := NewAbortState(cancel)

	a.RequestStop(false)

	select {
	case <-ctx.Done():
		t.Fatal("soft stop must not cancel the context")
	default:
	}
}
