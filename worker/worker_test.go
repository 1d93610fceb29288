package worker

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/flowmesh/agentcore/event"
	"github.com/flowmesh/agentcore/hooks"
	"github.com/flowmesh/agentcore/model"
	"github.com/flowmesh/agentcore/queue"
	"github.com/flowmesh/agentcore/segment"
	"github.com/flowmesh/agentcore/stream"
	"github.com/flowmesh/agentcore/toollifecycle"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStreamer replays a fixed sequence of chunks, then io.EOF.
type fakeStreamer struct {
	chunks []model.Chunk
	pos    int
}

func (f *fakeStreamer) Recv() (model.Chunk, error) {
	if f.pos >= len(f.chunks) {
		return model.Chunk{}, io.EOF
	}
	c := f.chunks[f.pos]
	f.pos++
	return c, nil
}
func (f *fakeStreamer) Close() error             { return nil }
func (f *fakeStreamer) Metadata() map[string]any { return nil }

// fakeClient returns a pre-scripted Streamer for every Stream call,
// recording the requests it was sent.
type fakeClient struct {
	responses []*fakeStreamer
	calls     int
	requests  []*model.Request
}

func (f *fakeClient) Complete(context.Context, *model.Request) (*model.Response, error) {
	return nil, errors.New("fakeClient: Complete not implemented")
}

func (f *fakeClient) Stream(_ context.Context, req *model.Request) (model.Streamer, error) {
	f.requests = append(f.requests, req)
	if f.calls >= len(f.responses) {
		return nil, errors.New("fakeClient: no more scripted responses")
	}
	s := f.responses[f.calls]
	f.calls++
	return s, nil
}

type echoingTool struct{}

func (echoingTool) Execute(_ context.Context, args json.RawMessage) (toollifecycle.Result, error) {
	return toollifecycle.Result{Value: map[string]any{"received": string(args)}}, nil
}

func textChunk(s string) model.Chunk {
	return model.Chunk{Type: model.ChunkTypeText, Message: &model.Message{
		Parts: []model.Part{model.TextPart{Text: s}},
	}}
}

func drainOne(t *testing.T, w *Worker, ctx context.Context) event.Event {
	t.Helper()
	evt, ok, err := w.queues.Next(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	return evt
}

func TestPureTextTurnProducesNoInvocations(t *testing.T) {
	client := &fakeClient{responses: []*fakeStreamer{
		{chunks: []model.Chunk{textChunk("hello there")}},
	}}
	w := New(
		WithModel(client, model.ModelClass("default")),
		WithParserOptions(segment.Options{Strategy: segment.StrategyXML}),
	)

	ctx := context.Background()
	require.NoError(t, w.handleUserMessage(ctx, event.UserMessage{Text: "hi", TurnID: "t1"}))

	// handleUserMessage enqueued LLMUserMessageReady onto internal_system;
	// drive it through dispatch directly since Run isn't under test here.
	evt := drainOne(t, w, ctx)
	require.Equal(t, event.LLMUserMessageReady, evt.Kind())
	require.NoError(t, w.dispatch(ctx, evt))

	assert.Nil(t, w.turn.aggregator)
	assert.Equal(t, 1, client.calls)
	assert.Len(t, client.requests[0].Messages, 1)
}

func TestAutoExecutedToolProducesAggregatedToolMessage(t *testing.T) {
	client := &fakeClient{responses: []*fakeStreamer{
		{chunks: []model.Chunk{textChunk(`prefix {"tool": "search", "arguments": {"q": "go"}} suffix`)}},
	}}
	reg := toollifecycle.NewRegistry()
	reg.Register("search", echoingTool{}, true)

	w := New(
		WithModel(client, model.ModelClass("default")),
		WithParserOptions(segment.Options{Strategy: segment.StrategyJSON}),
		WithToolRegistry(reg),
	)

	ctx := context.Background()
	require.NoError(t, w.handleUserMessage(ctx, event.UserMessage{Text: "search for go", TurnID: "t1"}))
	require.NoError(t, w.dispatch(ctx, drainOne(t, w, ctx))) // LLMUserMessageReady -> runs the turn

	require.NotNil(t, w.turn.aggregator)

	// The auto-executed invocation lands as an ExecuteToolInvocation event.
	execEvt := drainOne(t, w, ctx)
	require.Equal(t, event.ExecuteToolInvocation, execEvt.Kind())
	require.NoError(t, w.dispatch(ctx, execEvt))

	resultEvt := drainOne(t, w, ctx)
	require.Equal(t, event.ToolResult, resultEvt.Kind())
	require.NoError(t, w.dispatch(ctx, resultEvt))

	// Completing the only expected result synthesizes the TOOL message.
	msgEvt := drainOne(t, w, ctx)
	require.Equal(t, event.UserMessageReceived, msgEvt.Kind())
	msg := msgEvt.Payload().(event.UserMessage)
	assert.Equal(t, "TOOL", msg.Sender)
	assert.Contains(t, msg.Text, "search")
	assert.Nil(t, w.turn.aggregator)
}

func TestToolRequiringApprovalWaitsThenDenies(t *testing.T) {
	client := &fakeClient{responses: []*fakeStreamer{
		{chunks: []model.Chunk{textChunk(`{"tool": "run_bash", "arguments": {"cmd": "ls"}}`)}},
	}}
	reg := toollifecycle.NewRegistry()
	reg.Register("run_bash", echoingTool{}, false)

	w := New(
		WithModel(client, model.ModelClass("default")),
		WithParserOptions(segment.Options{Strategy: segment.StrategyJSON}),
		WithToolRegistry(reg),
	)

	ctx := context.Background()
	require.NoError(t, w.handleUserMessage(ctx, event.UserMessage{Text: "run ls", TurnID: "t1"}))
	require.NoError(t, w.dispatch(ctx, drainOne(t, w, ctx)))

	pendingEvt := drainOne(t, w, ctx)
	require.Equal(t, event.PendingToolInvocation, pendingEvt.Kind())
	pending := pendingEvt.Payload().(event.PendingToolInvocationPayload)

	approval := event.New(event.ToolExecutionApproval, event.ToolExecutionApprovalPayload{
		InvocationID: pending.InvocationID,
		Approved:     false,
		Reason:       "blocked by policy",
	})
	require.NoError(t, w.Submit(ctx, queue.ToolApproval, approval))
	require.NoError(t, w.dispatch(ctx, drainOne(t, w, ctx))) // ToolExecutionApproval -> denial ToolResult

	resultEvt := drainOne(t, w, ctx)
	require.Equal(t, event.ToolResult, resultEvt.Kind())
	require.NoError(t, w.dispatch(ctx, resultEvt))

	msgEvt := drainOne(t, w, ctx)
	msg := msgEvt.Payload().(event.UserMessage)
	assert.Contains(t, msg.Text, "denied")
}

func TestAutoExecutedToolPublishesStreamEvents(t *testing.T) {
	client := &fakeClient{responses: []*fakeStreamer{
		{chunks: []model.Chunk{textChunk(`{"tool": "search", "arguments": {"q": "go"}}`)}},
	}}
	reg := toollifecycle.NewRegistry()
	reg.Register("search", echoingTool{}, true)

	bus := hooks.NewBus()
	var types []stream.EventType
	_, err := bus.Register(hooks.SubscriberFunc(func(_ context.Context, evt stream.Event) error {
		types = append(types, evt.Type())
		return nil
	}))
	require.NoError(t, err)

	w := New(
		WithModel(client, model.ModelClass("default")),
		WithParserOptions(segment.Options{Strategy: segment.StrategyJSON}),
		WithToolRegistry(reg),
		WithBus(bus),
	)
	assert.Same(t, bus, w.Bus())

	ctx := context.Background()
	require.NoError(t, w.handleUserMessage(ctx, event.UserMessage{Text: "search for go", TurnID: "t1"}))
	require.NoError(t, w.dispatch(ctx, drainOne(t, w, ctx)))
	require.NoError(t, w.dispatch(ctx, drainOne(t, w, ctx))) // ExecuteToolInvocation

	assert.Contains(t, types, stream.EventSegmentEvent)
	assert.Contains(t, types, stream.EventToolExecutionStarted)
	assert.Contains(t, types, stream.EventToolExecutionSucceeded)
}

func TestToolApprovalPublishesApprovalStreamEvents(t *testing.T) {
	client := &fakeClient{responses: []*fakeStreamer{
		{chunks: []model.Chunk{textChunk(`{"tool": "run_bash", "arguments": {"cmd": "ls"}}`)}},
	}}
	reg := toollifecycle.NewRegistry()
	reg.Register("run_bash", echoingTool{}, false)

	bus := hooks.NewBus()
	var types []stream.EventType
	_, err := bus.Register(hooks.SubscriberFunc(func(_ context.Context, evt stream.Event) error {
		types = append(types, evt.Type())
		return nil
	}))
	require.NoError(t, err)

	w := New(
		WithModel(client, model.ModelClass("default")),
		WithParserOptions(segment.Options{Strategy: segment.StrategyJSON}),
		WithToolRegistry(reg),
		WithBus(bus),
	)

	ctx := context.Background()
	require.NoError(t, w.handleUserMessage(ctx, event.UserMessage{Text: "run ls", TurnID: "t1"}))
	require.NoError(t, w.dispatch(ctx, drainOne(t, w, ctx)))

	pendingEvt := drainOne(t, w, ctx)
	pending := pendingEvt.Payload().(event.PendingToolInvocationPayload)
	approval := event.New(event.ToolExecutionApproval, event.ToolExecutionApprovalPayload{
		InvocationID: pending.InvocationID,
		Approved:     false,
		Reason:       "blocked by policy",
	})
	require.NoError(t, w.Submit(ctx, queue.ToolApproval, approval))
	require.NoError(t, w.dispatch(ctx, drainOne(t, w, ctx)))

	assert.Contains(t, types, stream.EventToolApprovalRequested)
	assert.Contains(t, types, stream.EventToolDenied)
}

func TestRunDrivesBootstrapAndShutdownHooks(t *testing.T) {
	var bootstrapped, shutdownCalled bool
	w := New(
		WithBootstrap(func(context.Context) error { bootstrapped = true; return nil }),
		WithShutdown(func(context.Context) error { shutdownCalled = true; return nil }),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	go func() {
		time.Sleep(10 * time.Millisecond)
		_ = w.Submit(context.Background(), queue.InternalSystem,
			event.New(event.InternalSystem, event.InternalSystemPayload{Name: "stop"}))
	}()

	err := w.Run(ctx)
	assert.NoError(t, err)
	assert.True(t, bootstrapped)
	assert.True(t, shutdownCalled)
}
