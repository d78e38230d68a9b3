package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Xalamander777/neur-app/pkg/conversation"
	"github.com/Xalamander777/neur-app/pkg/logging"
	"github.com/Xalamander777/neur-app/pkg/metrics"
	"github.com/Xalamander777/neur-app/pkg/model"
	"github.com/Xalamander777/neur-app/pkg/storage"
	"github.com/Xalamander777/neur-app/pkg/telemetry"
	"github.com/Xalamander777/neur-app/pkg/tool"
)

const defaultMaxSteps = 15

// ChatClient is the provider surface the engine needs; satisfied by
// *model.Client and faked in tests.
type ChatClient interface {
	ChatCompletion(ctx context.Context, req model.ChatRequest) (*model.ChatResponse, error)
	ChatCompletionStream(ctx context.Context, req model.ChatRequest) (<-chan model.StreamChunk, <-chan error)
}

// Config holds the engine's model settings.
type Config struct {
	// Model is the primary chat model.
	Model string
	// RepairModel handles tool selection and argument repair.
	RepairModel string
	// MaxSteps caps model round-trips per turn.
	MaxSteps int
}

// Engine drives one conversation turn end to end.
type Engine struct {
	client   ChatClient
	registry *tool.Registry
	store    *storage.Store
	logger   *logging.Logger
	metrics  *metrics.Metrics
	cfg      Config
	disabled []string
	lookup   tool.LookupEnv
}

// EngineOptions configures a new engine. Logger and LookupEnv default when
// nil; Metrics may stay nil.
type EngineOptions struct {
	Client        ChatClient
	Registry      *tool.Registry
	Store         *storage.Store
	Logger        *logging.Logger
	Metrics       *metrics.Metrics
	Config        Config
	DisabledTools []string
	LookupEnv     tool.LookupEnv
}

// NewEngine creates an engine.
func NewEngine(opts EngineOptions) *Engine {
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}
	if opts.LookupEnv == nil {
		opts.LookupEnv = tool.OSLookupEnv
	}
	if opts.Config.MaxSteps <= 0 {
		opts.Config.MaxSteps = defaultMaxSteps
	}
	return &Engine{
		client:   opts.Client,
		registry: opts.Registry,
		store:    opts.Store,
		logger:   opts.Logger,
		metrics:  opts.Metrics,
		cfg:      opts.Config,
		disabled: opts.DisabledTools,
		lookup:   opts.LookupEnv,
	}
}

// TurnRequest is one chat turn: the full history as the client sees it, plus
// the streaming sink and abort handle.
type TurnRequest struct {
	ConversationID string
	UserID         string
	WalletAddress  string
	Messages       []conversation.Message
	Sink           tool.Sink
	Abort          *tool.AbortState
}

// ErrInvalidUpdate marks a pending-call edit that violates the tool's update
// schema; the API layer maps it to a client error.
var ErrInvalidUpdate = errors.New("invalid pending call update")

// ErrNothingToDo marks a request whose history requires no action.
var ErrNothingToDo = errors.New("nothing to do")

// RunTurn executes one turn and streams its output to the sink. Persistence
// failures are logged and counted, never surfaced: the streamed response is
// the source of truth for the client, the store catches up on the next flush.
func (e *Engine) RunTurn(ctx context.Context, req TurnRequest) error {
	ref := time.Now().UTC()
	history := conversation.FilterEmpty(req.Messages)
	kind, pending := Classify(history)

	ctx, span := telemetry.StartSpan(ctx, "chat.turn")
	defer span.End()
	telemetry.SetAttributes(ctx,
		telemetry.AttrConversationID.String(req.ConversationID),
		telemetry.AttrTurnKind.String(kind.String()),
	)

	e.logger.Info(logging.CategoryConversation, "turn_classified", kind.String(), map[string]any{
		"conversation_id": req.ConversationID,
		"messages":        len(history),
	})

	rt := &tool.Runtime{
		Sink:           req.Sink,
		Abort:          req.Abort,
		ConversationID: req.ConversationID,
		UserID:         req.UserID,
		WalletAddress:  req.WalletAddress,
	}

	turn := &turnState{
		engine:  e,
		req:     req,
		rt:      rt,
		ref:     ref,
		history: history,
	}

	switch kind {
	case TurnUnknown, TurnToolCompleted:
		// An already-resolved call needs no reprocessing.
		return ErrNothingToDo
	case TurnToolUpdatePending:
		return turn.applyConfirmation(ctx, pending)
	case TurnToolCanceled:
		return turn.dropCanceled(pending)
	default: // TurnNewUserMessage
		return turn.run(ctx)
	}
}

// turnState carries the mutable pieces of one RunTurn invocation.
type turnState struct {
	engine  *Engine
	req     TurnRequest
	rt      *tool.Runtime
	ref     time.Time
	history []conversation.Message

	produced []conversation.Message
	usage    model.Usage
}

// applyConfirmation resolves a pending confirm-gated call with the user's
// (possibly edited) arguments. The edit is validated against the tool's
// update schema, the tool's Confirm handler performs the action, and the
// resolved invocation is persisted. No model call is made and no usage is
// recorded; the exchange is a plain request/response.
func (t *turnState) applyConfirmation(ctx context.Context, pending *PendingCall) error {
	e := t.engine
	msg := &t.history[pending.MessageIndex]
	inv := &msg.ToolInvocations[pending.InvocationIndex]

	args, err := tool.ParseArgs(string(inv.Args))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidUpdate, err)
	}
	if schema, ok := e.registry.UpdateSchema(inv.ToolName); ok {
		if err := tool.ValidateArgs(schema, args); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidUpdate, err)
		}
	}

	set := tool.BuildSet(e.registry, t.rt, []string{inv.ToolName})
	bound, ok := set[inv.ToolName]

	ctx, span := telemetry.StartSpan(ctx, "chat.tool.confirm")
	defer span.End()
	telemetry.SetAttributes(ctx, telemetry.AttrToolName.String(inv.ToolName))

	var result *tool.Result
	if !ok {
		result = tool.Errorf("tool %s is no longer available", inv.ToolName)
	} else {
		res, confirmable, err := bound.Confirm(ctx, args)
		switch {
		case err != nil:
			result = tool.Errorf("confirmation failed: %v", err)
		case !confirmable:
			result = tool.Errorf("tool %s does not support confirmation", inv.ToolName)
		default:
			result = res
		}
	}

	telemetry.SetAttributes(ctx, telemetry.AttrToolSuccess.Bool(result.Success))
	e.metrics.CountToolExecution(inv.ToolName, result.Success)
	t.rt.Sink.ToolResult(inv.ToolCallID, inv.ToolName, result)

	inv.State = conversation.StateResult
	inv.Step = conversation.StepCompleted
	inv.Args = argsJSON(args)
	inv.Result = mustJSON(result)

	t.produced = append(t.produced, *msg)
	t.finish(false)
	return nil
}

// dropCanceled acknowledges a rejected pending call. The stale call-state
// invocation never reaches the store: reconciliation keeps only resolved
// invocations and ones still awaiting confirmation.
func (t *turnState) dropCanceled(pending *PendingCall) error {
	msg := t.history[pending.MessageIndex]
	inv := msg.ToolInvocations[pending.InvocationIndex]

	t.rt.Sink.ToolResult(inv.ToolCallID, inv.ToolName, &tool.Result{Success: false, Error: "canceled by the user"})
	t.produced = append(t.produced, msg)
	t.finish(false)
	return nil
}

// run executes the streaming loop for a new user message and finishes the
// turn.
func (t *turnState) run(ctx context.Context) error {
	e := t.engine

	user := LastUserMessage(t.history)
	if user != nil {
		t.produced = append([]conversation.Message{*user}, t.produced...)
	}

	// Hard aborts cancel the in-flight provider call through this context.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	if t.rt.Abort == nil {
		t.rt.Abort = tool.NewAbortState(cancel)
	}

	available := e.registry.Enabled(e.disabled, e.lookup)

	content := ""
	if user != nil {
		content = user.Content
	}
	var names []string
	degraded := false
	selected, selUsage, ok := e.selectTools(ctx, content, available)
	t.usage = t.usage.Add(selUsage)
	if ok {
		names = selected
	} else {
		degraded = true
	}

	set := tool.BuildSet(e.registry, t.rt, names)
	functions := tool.Functions(e.registry, set)

	var attachments []conversation.Attachment
	if user != nil {
		attachments = user.Attachments
	}
	system := BuildSystemPrompt(t.req.WalletAddress, attachments, degraded)
	wireMessages := ToModelMessages(system, t.history)

	if err := t.streamLoop(ctx, set, functions, wireMessages); err != nil {
		t.finish(true)
		return err
	}

	t.finish(true)
	return nil
}

// streamLoop is the model round-trip loop: stream a completion, execute any
// tool calls, feed results back, repeat until the model answers in plain
// text, a confirm-gated call pauses the turn, the step ceiling is hit, or an
// abort lands on a step boundary.
func (t *turnState) streamLoop(ctx context.Context, set map[string]tool.Bound, functions []map[string]any, wireMessages []model.Message) error {
	e := t.engine

	for step := 0; step < e.cfg.MaxSteps; step++ {
		if t.rt.Abort != nil && t.rt.Abort.StopRequested() {
			t.rt.Abort.MarkAborted()
			t.flush()
			return nil
		}

		req := model.ChatRequest{
			Model:    e.cfg.Model,
			Messages: wireMessages,
		}
		if len(functions) > 0 {
			req.Tools = functions
			req.ToolChoice = "auto"
		}

		acc := model.NewStreamAccumulator()
		emitter := newWordEmitter(t.rt.Sink)

		streamCtx, streamSpan := telemetry.StartSpan(ctx, "chat.model.stream")
		telemetry.SetAttributes(streamCtx,
			telemetry.AttrModel.String(e.cfg.Model),
			telemetry.AttrStep.Int(step),
		)
		chunks, errs := e.client.ChatCompletionStream(streamCtx, req)
		for chunk := range chunks {
			acc.Add(chunk)
			if len(chunk.Choices) > 0 {
				emitter.Write(chunk.Choices[0].Delta.Content)
			}
		}
		if err := <-errs; err != nil {
			telemetry.RecordError(streamCtx, err)
			streamSpan.End()
			emitter.Flush()
			return fmt.Errorf("model stream: %w", err)
		}
		streamSpan.End()
		emitter.Flush()

		t.addUsage(acc, wireMessages)

		if !acc.HasToolCalls() {
			if acc.Content() != "" {
				t.produced = append(t.produced, conversation.Message{Role: "assistant", Content: acc.Content()})
				t.flush()
			}
			return nil
		}

		assistantMsg := conversation.Message{Role: "assistant", Content: acc.Content()}
		wireAssistant := model.Message{Role: "assistant", Content: acc.Content()}
		var wireResults []model.Message
		paused := false

		for _, call := range acc.ToolCalls() {
			inv, wireCall, wireResult, pause := t.resolveCall(ctx, set, call)
			if inv == nil {
				continue
			}
			assistantMsg.ToolInvocations = append(assistantMsg.ToolInvocations, *inv)
			if pause {
				paused = true
				break
			}
			wireAssistant.ToolCalls = append(wireAssistant.ToolCalls, *wireCall)
			wireResults = append(wireResults, *wireResult)
		}

		if assistantMsg.Content != "" || len(assistantMsg.ToolInvocations) > 0 {
			t.produced = append(t.produced, assistantMsg)
			t.flush()
		}

		if paused {
			return nil
		}
		if len(wireAssistant.ToolCalls) == 0 {
			// Every call was dropped; nothing to feed back.
			return nil
		}

		wireMessages = append(wireMessages, wireAssistant)
		wireMessages = append(wireMessages, wireResults...)
	}

	e.logger.Warn(logging.CategoryConversation, "step_ceiling", "turn hit the step ceiling", map[string]any{
		"conversation_id": t.req.ConversationID,
		"max_steps":       e.cfg.MaxSteps,
	})
	return nil
}

// resolveCall validates, repairs, and executes one tool call. It returns the
// invocation to record (nil when the call is dropped), the wire messages to
// feed back, and whether the turn must pause for user confirmation.
func (t *turnState) resolveCall(ctx context.Context, set map[string]tool.Bound, call model.ToolCall) (*conversation.ToolInvocation, *model.ToolCall, *model.Message, bool) {
	e := t.engine
	name := call.Function.Name

	bound, ok := set[name]
	if !ok {
		e.logger.Info(logging.CategoryTool, "call_dropped", "model called a tool outside the active set", map[string]any{
			"tool": name,
		})
		return nil, nil, nil, false
	}

	args, err := tool.ParseArgs(call.Function.Arguments)
	if err == nil {
		err = tool.ValidateArgs(bound.Tool.Parameters(), args)
	}
	if err != nil {
		repaired, repairErr := e.repairArgs(ctx, name, bound.Tool.Parameters(), call.Function.Arguments, err)
		if repairErr != nil {
			e.logger.Info(logging.CategoryTool, "call_dropped", "arguments could not be repaired", map[string]any{
				"tool":  name,
				"error": err.Error(),
			})
			return nil, nil, nil, false
		}
		args = repaired
	}

	t.rt.Sink.ToolCall(call.ID, name, args)

	// Confirm-gated tools pause the turn instead of executing.
	if _, confirmable := bound.Tool.(tool.Confirmable); confirmable {
		inv := &conversation.ToolInvocation{
			ToolCallID: call.ID,
			ToolName:   name,
			State:      conversation.StateCall,
			Step:       conversation.StepPending,
			Args:       argsJSON(args),
		}
		// Let the tool produce its preview (a quote, a transfer summary).
		if res, err := bound.Execute(ctx, args); err == nil && res != nil {
			t.rt.Sink.ToolResult(call.ID, name, res)
		}
		return inv, nil, nil, true
	}

	execCtx, execSpan := telemetry.StartSpan(ctx, "chat.tool.execute")
	telemetry.SetAttributes(execCtx, telemetry.AttrToolName.String(name))
	result, err := bound.Execute(execCtx, args)
	if err != nil {
		// Tool failures are data; the turn continues.
		telemetry.RecordError(execCtx, err)
		result = tool.Errorf("tool execution failed: %v", err)
	}
	telemetry.SetAttributes(execCtx, telemetry.AttrToolSuccess.Bool(result.Success))
	execSpan.End()
	e.metrics.CountToolExecution(name, result.Success)
	t.rt.Sink.ToolResult(call.ID, name, result)

	resultJSON := mustJSON(result)
	inv := &conversation.ToolInvocation{
		ToolCallID: call.ID,
		ToolName:   name,
		State:      conversation.StateResult,
		Args:       argsJSON(args),
		Result:     resultJSON,
	}
	wireCall := &model.ToolCall{ID: call.ID, Type: "function", Function: model.FunctionCall{Name: name, Arguments: string(argsJSON(args))}}
	wireResult := &model.Message{Role: "tool", ToolCallID: call.ID, Name: name, Content: string(resultJSON)}
	return inv, wireCall, wireResult, false
}

// addUsage folds one completion's usage into the turn, estimating with the
// token counter when the provider omits it.
func (t *turnState) addUsage(acc *model.StreamAccumulator, wireMessages []model.Message) {
	if u := acc.Usage(); u != nil {
		t.usage = t.usage.Add(*u)
		return
	}

	prompt := 0
	for _, m := range wireMessages {
		prompt += conversation.CountTokens(m.Content) + 4
	}
	completion := conversation.CountTokens(acc.Content())
	t.usage = t.usage.Add(model.Usage{
		PromptTokens:     prompt,
		CompletionTokens: completion,
		TotalTokens:      prompt + completion,
	})
}

// flush reconciles and persists everything produced so far. Ids assigned by
// reconciliation are written back, so later flushes upsert the same rows.
func (t *turnState) flush() {
	e := t.engine
	if e.store == nil || len(t.produced) == 0 {
		return
	}

	t.produced = Reconcile(t.req.ConversationID, t.produced, t.ref)
	if err := e.store.UpsertMessages(t.req.ConversationID, t.produced); err != nil {
		e.metrics.CountPersistenceFailure()
		e.logger.Error(logging.CategoryStorage, "flush_failed", err.Error(), map[string]any{
			"conversation_id": t.req.ConversationID,
		})
	}
}

// finish runs the terminal flush, announces persisted ids, and records usage
// when the turn carried a new user message.
func (t *turnState) finish(chargeUsage bool) {
	e := t.engine

	t.flush()
	if len(t.produced) > 0 {
		t.rt.Sink.Annotation("saved_message_ids", MessageIDs(t.produced))
	}

	if e.store != nil {
		if err := e.store.TouchConversation(t.req.ConversationID); err != nil {
			e.logger.Warn(logging.CategoryStorage, "touch_failed", err.Error(), nil)
		}
	}

	e.metrics.CountTokens(t.usage.PromptTokens, t.usage.CompletionTokens)

	if !chargeUsage || t.usage.IsZero() || e.store == nil {
		return
	}
	rec := &storage.UsageRecord{
		ConversationID:   t.req.ConversationID,
		UserID:           t.req.UserID,
		MessageIDs:       MessageIDs(t.produced),
		PromptTokens:     t.usage.PromptTokens,
		CompletionTokens: t.usage.CompletionTokens,
		TotalTokens:      t.usage.TotalTokens,
	}
	if err := e.store.SaveUsage(rec); err != nil {
		e.metrics.CountPersistenceFailure()
		e.logger.Error(logging.CategoryUsage, "usage_save_failed", err.Error(), map[string]any{
			"conversation_id": t.req.ConversationID,
		})
	}
}

func mustJSON(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage(`{}`)
	}
	return data
}
