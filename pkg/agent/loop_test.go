package agent

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/Xalamander777/neur-app/pkg/conversation"
	"github.com/Xalamander777/neur-app/pkg/model"
	"github.com/Xalamander777/neur-app/pkg/storage"
	"github.com/Xalamander777/neur-app/pkg/tool"
)

// fakeClient replays scripted responses: completions for selection/repair
// calls, chunk slices for streaming calls.
type fakeClient struct {
	mu          sync.Mutex
	completions []*model.ChatResponse
	streams     [][]model.StreamChunk

	completionReqs []model.ChatRequest
	streamReqs     []model.ChatRequest
}

func (f *fakeClient) ChatCompletion(ctx context.Context, req model.ChatRequest) (*model.ChatResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completionReqs = append(f.completionReqs, req)
	if len(f.completions) == 0 {
		return nil, errors.New("no scripted completion")
	}
	resp := f.completions[0]
	f.completions = f.completions[1:]
	return resp, nil
}

func (f *fakeClient) ChatCompletionStream(ctx context.Context, req model.ChatRequest) (<-chan model.StreamChunk, <-chan error) {
	f.mu.Lock()
	f.streamReqs = append(f.streamReqs, req)
	var chunks []model.StreamChunk
	if len(f.streams) > 0 {
		chunks = f.streams[0]
		f.streams = f.streams[1:]
	}
	f.mu.Unlock()

	chunkChan := make(chan model.StreamChunk, len(chunks))
	errChan := make(chan error, 1)
	for _, c := range chunks {
		chunkChan <- c
	}
	close(chunkChan)
	close(errChan)
	return chunkChan, errChan
}

func completionResponse(content string, usage model.Usage) *model.ChatResponse {
	return &model.ChatResponse{
		Choices: []model.Choice{{Message: model.Message{Role: "assistant", Content: content}}},
		Usage:   usage,
	}
}

func textStream(text string, usage model.Usage) []model.StreamChunk {
	return []model.StreamChunk{
		{Choices: []model.StreamChoice{{Delta: model.MessageDelta{Role: "assistant", Content: text}}}},
		{Usage: &usage},
	}
}

func toolCallStream(id, name, args string, usage model.Usage) []model.StreamChunk {
	return []model.StreamChunk{
		{Choices: []model.StreamChoice{{Delta: model.MessageDelta{
			Role: "assistant",
			ToolCalls: []model.ToolCallDelta{{
				Index:    0,
				ID:       id,
				Type:     "function",
				Function: &model.FunctionCallDelta{Name: name, Arguments: args},
			}},
		}}}},
		{Usage: &usage},
	}
}

// echoTool is a plain tool that records its calls.
type echoTool struct {
	mu    sync.Mutex
	calls []map[string]any
}

func (e *echoTool) Name() string        { return "echo_data" }
func (e *echoTool) Description() string { return "echoes its input" }
func (e *echoTool) Parameters() tool.ParameterSchema {
	return tool.ParameterSchema{
		Type: "object",
		Properties: map[string]tool.PropertySchema{
			"value": {Type: "string"},
		},
		Required: []string{"value"},
	}
}

func (e *echoTool) Execute(ctx context.Context, rt *tool.Runtime, params map[string]any) (*tool.Result, error) {
	e.mu.Lock()
	e.calls = append(e.calls, params)
	e.mu.Unlock()
	return &tool.Result{Success: true, Data: map[string]any{"value": params["value"]}}, nil
}

// confirmTool is confirm-gated.
type confirmTool struct {
	confirmed bool
}

func (c *confirmTool) Name() string        { return "confirm_op" }
func (c *confirmTool) Description() string { return "an operation needing confirmation" }
func (c *confirmTool) Parameters() tool.ParameterSchema {
	return tool.ParameterSchema{
		Type: "object",
		Properties: map[string]tool.PropertySchema{
			"amount": {Type: "number"},
		},
		Required: []string{"amount"},
	}
}

func (c *confirmTool) Execute(ctx context.Context, rt *tool.Runtime, params map[string]any) (*tool.Result, error) {
	return &tool.Result{Success: true, Data: map[string]any{"preview": true}}, nil
}

func (c *confirmTool) Confirm(ctx context.Context, rt *tool.Runtime, params map[string]any) (*tool.Result, error) {
	c.confirmed = true
	return &tool.Result{Success: true, Data: map[string]any{"done": true}}, nil
}

type testEnv struct {
	engine  *Engine
	client  *fakeClient
	store   *storage.Store
	sink    *recordSink
	echo    *echoTool
	confirm *confirmTool
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store, err := storage.New(":memory:")
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	echo := &echoTool{}
	confirm := &confirmTool{}
	reg := tool.NewRegistry()
	reg.Register(echo)
	reg.Register(confirm)

	client := &fakeClient{}
	engine := NewEngine(EngineOptions{
		Client:   client,
		Registry: reg,
		Store:    store,
		Config:   Config{Model: "main", RepairModel: "small"},
	})

	return &testEnv{engine: engine, client: client, store: store, sink: newRecordSink(), echo: echo, confirm: confirm}
}

func (env *testEnv) runTurn(t *testing.T, messages []conversation.Message) error {
	t.Helper()
	if _, err := env.store.EnsureConversation("conv1", "user1", ""); err != nil {
		t.Fatal(err)
	}
	return env.engine.RunTurn(context.Background(), TurnRequest{
		ConversationID: "conv1",
		UserID:         "user1",
		Messages:       messages,
		Sink:           env.sink,
	})
}

func TestRunTurnPlainText(t *testing.T) {
	env := newTestEnv(t)
	env.client.completions = []*model.ChatResponse{
		completionResponse(`[]`, model.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15}),
	}
	env.client.streams = [][]model.StreamChunk{
		textStream("Hello there", model.Usage{PromptTokens: 20, CompletionTokens: 10, TotalTokens: 30}),
	}

	if err := env.runTurn(t, []conversation.Message{userMsg("hi")}); err != nil {
		t.Fatalf("RunTurn: %v", err)
	}

	if got := env.sink.text(); got != "Hello there" {
		t.Errorf("streamed %q", got)
	}

	saved, err := env.store.GetMessages("conv1")
	if err != nil {
		t.Fatal(err)
	}
	if len(saved) != 2 {
		t.Fatalf("got %d saved messages, want user+assistant", len(saved))
	}
	if saved[0].Role != "user" || saved[1].Role != "assistant" {
		t.Errorf("wrong roles: %s, %s", saved[0].Role, saved[1].Role)
	}
	if saved[1].Content != "Hello there" {
		t.Errorf("assistant content %q", saved[1].Content)
	}

	ids, ok := env.sink.annotations["saved_message_ids"].([]string)
	if !ok || len(ids) != 2 {
		t.Errorf("expected saved_message_ids annotation, got %v", env.sink.annotations)
	}

	// Usage sums the selection call and the main stream.
	records, err := env.store.ListUsage("user1")
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 {
		t.Fatalf("got %d usage records, want 1", len(records))
	}
	if records[0].TotalTokens != 45 {
		t.Errorf("got %d total tokens, want 45", records[0].TotalTokens)
	}
}

func TestRunTurnExecutesSelectedTool(t *testing.T) {
	env := newTestEnv(t)
	env.client.completions = []*model.ChatResponse{
		completionResponse(`["echo_data"]`, model.Usage{TotalTokens: 5}),
	}
	env.client.streams = [][]model.StreamChunk{
		toolCallStream("tc1", "echo_data", `{"value":"BONK"}`, model.Usage{TotalTokens: 10}),
		textStream("all done", model.Usage{TotalTokens: 7}),
	}

	if err := env.runTurn(t, []conversation.Message{userMsg("look up bonk")}); err != nil {
		t.Fatalf("RunTurn: %v", err)
	}

	if len(env.echo.calls) != 1 || env.echo.calls[0]["value"] != "BONK" {
		t.Fatalf("tool not executed with parsed args: %+v", env.echo.calls)
	}
	if len(env.sink.toolCalls) != 1 || env.sink.toolCalls[0] != "echo_data" {
		t.Errorf("tool call not announced: %v", env.sink.toolCalls)
	}
	res := env.sink.toolResults["echo_data"]
	if res == nil || !res.Success {
		t.Errorf("tool result not announced: %+v", res)
	}

	// Second stream request feeds the tool result back.
	if len(env.client.streamReqs) != 2 {
		t.Fatalf("got %d stream requests, want 2", len(env.client.streamReqs))
	}
	second := env.client.streamReqs[1].Messages
	last := second[len(second)-1]
	if last.Role != "tool" || last.ToolCallID != "tc1" {
		t.Errorf("tool result not fed back, last wire message: %+v", last)
	}

	saved, _ := env.store.GetMessages("conv1")
	var withInv *conversation.Message
	for i := range saved {
		if len(saved[i].ToolInvocations) > 0 {
			withInv = &saved[i]
		}
	}
	if withInv == nil {
		t.Fatal("no persisted message carries the invocation")
	}
	inv := withInv.ToolInvocations[0]
	if inv.State != conversation.StateResult || inv.ToolName != "echo_data" {
		t.Errorf("unexpected invocation: %+v", inv)
	}
}

func TestRunTurnConfirmGatedPausesTurn(t *testing.T) {
	env := newTestEnv(t)
	env.client.completions = []*model.ChatResponse{
		completionResponse(`["confirm_op"]`, model.Usage{TotalTokens: 5}),
	}
	env.client.streams = [][]model.StreamChunk{
		toolCallStream("tc1", "confirm_op", `{"amount":5}`, model.Usage{TotalTokens: 10}),
	}

	if err := env.runTurn(t, []conversation.Message{userMsg("swap 5")}); err != nil {
		t.Fatalf("RunTurn: %v", err)
	}

	if env.confirm.confirmed {
		t.Fatal("Confirm must not run before the user decides")
	}
	if len(env.client.streamReqs) != 1 {
		t.Fatalf("paused turn made %d stream requests, want 1", len(env.client.streamReqs))
	}

	saved, _ := env.store.GetMessages("conv1")
	last := saved[len(saved)-1]
	if len(last.ToolInvocations) != 1 {
		t.Fatalf("pending invocation not persisted: %+v", last)
	}
	inv := last.ToolInvocations[0]
	if inv.State != conversation.StateCall || inv.Step != conversation.StepPending {
		t.Errorf("unexpected pending invocation: %+v", inv)
	}
}

func TestRunTurnConfirmResolvesWithoutModelCalls(t *testing.T) {
	env := newTestEnv(t)

	history := []conversation.Message{
		userMsg("swap 5"),
		{
			ID:   "am1",
			Role: "assistant",
			ToolInvocations: []conversation.ToolInvocation{
				{ToolCallID: "tc1", ToolName: "confirm_op", State: conversation.StateCall, Step: conversation.StepPending, Args: json.RawMessage(`{"amount":9}`)},
			},
		},
	}

	if err := env.runTurn(t, history); err != nil {
		t.Fatalf("RunTurn: %v", err)
	}

	if !env.confirm.confirmed {
		t.Fatal("Confirm should have run with the edited args")
	}
	if len(env.client.streamReqs) != 0 || len(env.client.completionReqs) != 0 {
		t.Fatal("confirmation turn must not call the model")
	}

	res := env.sink.toolResults["confirm_op"]
	if res == nil || !res.Success {
		t.Errorf("confirmation should announce the result, got %+v", res)
	}

	saved, _ := env.store.GetMessages("conv1")
	var resolved *conversation.ToolInvocation
	for _, m := range saved {
		for _, inv := range m.ToolInvocations {
			if inv.ToolCallID == "tc1" {
				resolved = &inv
			}
		}
	}
	if resolved == nil || resolved.State != conversation.StateResult || resolved.Step != conversation.StepCompleted {
		t.Fatalf("invocation not resolved: %+v", resolved)
	}
	var amount struct {
		Amount float64 `json:"amount"`
	}
	if err := json.Unmarshal(resolved.Args, &amount); err != nil || amount.Amount != 9 {
		t.Errorf("edited args not persisted: %s", resolved.Args)
	}

	// No new user message means no usage record.
	records, _ := env.store.ListUsage("user1")
	if len(records) != 0 {
		t.Errorf("got %d usage records, want 0 on a confirmation turn", len(records))
	}
}

func TestRunTurnCanceledDropsStaleCall(t *testing.T) {
	env := newTestEnv(t)

	history := []conversation.Message{
		userMsg("swap 5"),
		{
			ID:   "am1",
			Role: "assistant",
			ToolInvocations: []conversation.ToolInvocation{
				{ToolCallID: "tc1", ToolName: "confirm_op", State: conversation.StateCall, Step: conversation.StepCanceled, Args: json.RawMessage(`{"amount":5}`)},
			},
		},
	}

	if err := env.runTurn(t, history); err != nil {
		t.Fatalf("RunTurn: %v", err)
	}

	if env.confirm.confirmed {
		t.Fatal("canceled call must not execute")
	}
	if len(env.client.streamReqs) != 0 || len(env.client.completionReqs) != 0 {
		t.Fatal("canceled turn must not call the model")
	}

	res := env.sink.toolResults["confirm_op"]
	if res == nil || res.Success {
		t.Errorf("cancellation should announce a failed result, got %+v", res)
	}

	// The stale call never reaches the store.
	saved, _ := env.store.GetMessages("conv1")
	for _, m := range saved {
		for _, inv := range m.ToolInvocations {
			if inv.ToolCallID == "tc1" {
				t.Errorf("stale call persisted: %+v", inv)
			}
		}
	}
}

func TestRunTurnCompletedIsNoOp(t *testing.T) {
	env := newTestEnv(t)

	history := []conversation.Message{
		userMsg("swap 5"),
		{
			ID:   "am1",
			Role: "assistant",
			ToolInvocations: []conversation.ToolInvocation{
				{ToolCallID: "tc1", ToolName: "confirm_op", State: conversation.StateCall, Step: conversation.StepCompleted, Args: json.RawMessage(`{"amount":5}`)},
			},
		},
	}

	err := env.runTurn(t, history)
	if !errors.Is(err, ErrNothingToDo) {
		t.Fatalf("got %v, want ErrNothingToDo", err)
	}
	if env.confirm.confirmed {
		t.Fatal("already-resolved call must not execute again")
	}
	if len(env.client.streamReqs) != 0 || len(env.client.completionReqs) != 0 {
		t.Fatal("completed turn must not call the model")
	}
}

func TestRunTurnUpdateRejectsInvalidArgs(t *testing.T) {
	env := newTestEnv(t)

	history := []conversation.Message{
		{
			ID:   "am1",
			Role: "assistant",
			ToolInvocations: []conversation.ToolInvocation{
				{ToolCallID: "tc1", ToolName: "confirm_op", State: conversation.StateCall, Step: conversation.StepPending, Args: json.RawMessage(`{"amount":"lots"}`)},
			},
		},
	}

	err := env.runTurn(t, history)
	if !errors.Is(err, ErrInvalidUpdate) {
		t.Fatalf("got %v, want ErrInvalidUpdate", err)
	}
	if env.confirm.confirmed {
		t.Fatal("invalid edit must not reach Confirm")
	}
}

func TestRunTurnRepairsInvalidArgs(t *testing.T) {
	env := newTestEnv(t)
	env.client.completions = []*model.ChatResponse{
		completionResponse(`["echo_data"]`, model.Usage{TotalTokens: 5}),
		completionResponse(`{"value":"fixed"}`, model.Usage{TotalTokens: 3}),
	}
	env.client.streams = [][]model.StreamChunk{
		toolCallStream("tc1", "echo_data", `{"value":42}`, model.Usage{TotalTokens: 10}),
		textStream("done", model.Usage{TotalTokens: 4}),
	}

	if err := env.runTurn(t, []conversation.Message{userMsg("echo")}); err != nil {
		t.Fatalf("RunTurn: %v", err)
	}

	if len(env.echo.calls) != 1 || env.echo.calls[0]["value"] != "fixed" {
		t.Fatalf("repaired args not used: %+v", env.echo.calls)
	}
}

func TestRunTurnDropsUnrepairableCall(t *testing.T) {
	env := newTestEnv(t)
	env.client.completions = []*model.ChatResponse{
		completionResponse(`["echo_data"]`, model.Usage{TotalTokens: 5}),
		completionResponse(`no such tool`, model.Usage{TotalTokens: 2}),
	}
	env.client.streams = [][]model.StreamChunk{
		toolCallStream("tc1", "echo_data", `{"value":42}`, model.Usage{TotalTokens: 10}),
	}

	if err := env.runTurn(t, []conversation.Message{userMsg("echo")}); err != nil {
		t.Fatalf("RunTurn: %v", err)
	}

	if len(env.echo.calls) != 0 {
		t.Fatal("dropped call must not execute")
	}
	if len(env.client.streamReqs) != 1 {
		t.Errorf("dropped call should end the loop, got %d stream requests", len(env.client.streamReqs))
	}
}

func TestRunTurnDropsCallOutsideActiveSet(t *testing.T) {
	env := newTestEnv(t)
	env.client.completions = []*model.ChatResponse{
		completionResponse(`["echo_data"]`, model.Usage{TotalTokens: 5}),
	}
	env.client.streams = [][]model.StreamChunk{
		toolCallStream("tc1", "ghost_tool", `{}`, model.Usage{TotalTokens: 10}),
	}

	if err := env.runTurn(t, []conversation.Message{userMsg("hi")}); err != nil {
		t.Fatalf("RunTurn: %v", err)
	}
	if len(env.sink.toolCalls) != 0 {
		t.Error("out-of-set call must not be announced")
	}
}

func TestRunTurnAbortBeforeStep(t *testing.T) {
	env := newTestEnv(t)
	env.client.completions = []*model.ChatResponse{
		completionResponse(`[]`, model.Usage{TotalTokens: 5}),
	}

	abort := tool.NewAbortState(nil)
	abort.RequestStop(false)

	if _, err := env.store.EnsureConversation("conv1", "user1", ""); err != nil {
		t.Fatal(err)
	}
	err := env.engine.RunTurn(context.Background(), TurnRequest{
		ConversationID: "conv1",
		UserID:         "user1",
		Messages:       []conversation.Message{userMsg("hi")},
		Sink:           env.sink,
		Abort:          abort,
	})
	if err != nil {
		t.Fatalf("RunTurn: %v", err)
	}

	if !abort.Aborted() {
		t.Fatal("abort should be honored at the step boundary")
	}
	if len(env.client.streamReqs) != 0 {
		t.Errorf("aborted turn made %d stream requests", len(env.client.streamReqs))
	}

	// The user message still flushes.
	saved, _ := env.store.GetMessages("conv1")
	if len(saved) != 1 || saved[0].Role != "user" {
		t.Errorf("user message should persist on abort, got %+v", saved)
	}
}

func TestRunTurnNothingToDo(t *testing.T) {
	env := newTestEnv(t)
	err := env.runTurn(t, nil)
	if !errors.Is(err, ErrNothingToDo) {
		t.Fatalf("got %v, want ErrNothingToDo", err)
	}
}
