package agent

import (
	"strings"

	"github.com/Xalamander777/neur-app/pkg/tool"
)

// wordEmitter smooths raw provider deltas into word-boundary chunks.
// Providers emit sub-token fragments; re-chunking on whitespace keeps the
// client from rendering half words.
type wordEmitter struct {
	sink    tool.Sink
	pending strings.Builder
}

func newWordEmitter(sink tool.Sink) *wordEmitter {
	return &wordEmitter{sink: sink}
}

// Write buffers a delta and emits every complete word it closes.
func (w *wordEmitter) Write(delta string) {
	if delta == "" {
		return
	}
	w.pending.WriteString(delta)

	buf := w.pending.String()
	cut := strings.LastIndexAny(buf, " \t\n")
	if cut < 0 {
		return
	}

	w.sink.TextDelta(buf[:cut+1])
	w.pending.Reset()
	w.pending.WriteString(buf[cut+1:])
}

// Flush emits whatever remains buffered.
func (w *wordEmitter) Flush() {
	if w.pending.Len() == 0 {
		return
	}
	w.sink.TextDelta(w.pending.String())
	w.pending.Reset()
}
