package worker

import (
	"context"
	"fmt"

	"github.com/flowmesh/agentcore/event"
	"github.com/flowmesh/agentcore/invocation"
	"github.com/flowmesh/agentcore/model"
	"github.com/flowmesh/agentcore/queue"
	"github.com/flowmesh/agentcore/segment"
	"github.com/flowmesh/agentcore/toollifecycle"
)

// dispatch applies the status transition for evt, then routes it to the
// handler for its Kind. A handler error propagates to Run, which transitions
// the entity to ERROR and stops the loop; handlers must not panic across
// this boundary for recoverable failures, only return an error.
func (w *Worker) dispatch(ctx context.Context, evt event.Event) error {
	w.statusMgr.Apply(ctx, evt.Kind(), evt.Payload())

	switch evt.Kind() {
	case event.UserMessageReceived:
		return w.handleUserMessage(ctx, evt.Payload().(event.UserMessage))
	case event.InterAgentMessage:
		return w.handleInterAgentMessage(ctx, evt.Payload().(event.InterAgentMessagePayload))
	case event.LLMUserMessageReady:
		return w.handleLLMTurn(ctx)
	case event.ToolExecutionApproval:
		return w.handleToolApproval(ctx, evt.Payload().(event.ToolExecutionApprovalPayload))
	case event.ExecuteToolInvocation:
		return w.handleExecuteTool(ctx, evt.Payload().(event.ExecuteToolInvocationPayload))
	case event.ToolResult:
		return w.handleToolResult(ctx, evt.Payload().(event.ToolResultPayload))
	case event.InternalSystem:
		return w.handleInternal(ctx, evt.Payload())
	default:
		w.opts.Logger.Warn(ctx, "no handler for kind", "kind", string(evt.Kind()))
		return nil
	}
}

// handleUserMessage appends the incoming message to the turn transcript and
// immediately fires LLMUserMessageReady: there is no separate compaction or
// reminder-processing stage here beyond what Bootstrap/Options wired in.
func (w *Worker) handleUserMessage(ctx context.Context, msg event.UserMessage) error {
	w.ensureTurn(msg.TurnID)
	w.turn.messages = append(w.turn.messages, &model.Message{
		Role:  model.ConversationRoleUser,
		Parts: []model.Part{model.TextPart{Text: msg.Text}},
	})
	return w.Submit(ctx, queue.InternalSystem, event.New(event.LLMUserMessageReady, nil))
}

// handleInterAgentMessage folds a sibling member's delivery into the
// transcript the same way a user message does, tagging the sender so the
// model can distinguish it from operator input.
func (w *Worker) handleInterAgentMessage(ctx context.Context, p event.InterAgentMessagePayload) error {
	return w.handleUserMessage(ctx, event.UserMessage{
		Sender: p.FromMemberID,
		Text:   p.Text,
		TurnID: p.TurnID,
	})
}

func (w *Worker) ensureTurn(turnID string) {
	if w.turn == nil || w.turn.id != turnID {
		w.turn = &turnState{id: turnID}
	}
}

// handleLLMTurn sends the accumulated transcript to the model, streams the
// response through the segment parser, and resolves every parsed segment to
// either a tool invocation gate or a completed text response.
func (w *Worker) handleLLMTurn(ctx context.Context) error {
	if w.opts.Model == nil {
		return fmt.Errorf("worker: no model client configured")
	}
	req := &model.Request{
		ModelClass: w.opts.ModelClass,
		Messages:   w.transcript(),
		Tools:      w.opts.Tools,
		Stream:     true,
	}
	respStream, err := w.opts.Model.Stream(ctx, req)
	if err != nil {
		return fmt.Errorf("worker: start stream: %w", err)
	}
	defer respStream.Close()

	parser := segment.New(w.opts.ParserOpts)
	var invocations []invocation.ToolInvocation
	for {
		chunk, err := respStream.Recv()
		if err != nil {
			break // EOF or terminal stream error both end the turn the same way
		}
		segs := parser.Feed(chunk)
		w.publishSegments(ctx, segs)
		invocations = append(invocations, w.invAdapter.Feed(segs)...)
	}
	final := parser.Finalize()
	w.publishSegments(ctx, final)
	invocations = append(invocations, w.invAdapter.Feed(final)...)

	w.statusMgr.Apply(ctx, event.LLMCompleteResponseReceived, nil)

	if len(invocations) == 0 {
		return nil // pure text response; nothing further to dispatch this turn
	}

	ids := make([]string, 0, len(invocations))
	for _, inv := range invocations {
		ids = append(ids, inv.ID)
	}
	w.turn.aggregator = toollifecycle.NewAggregator(ids, func(id string) {
		w.opts.Logger.Warn(ctx, "duplicate tool result", "invocation_id", id)
	})

	for _, inv := range invocations {
		evt, autoExecuted := w.toolGate.Admit(ctx, inv, w.turn.id)
		if autoExecuted {
			if err := w.Submit(ctx, queue.ToolInvocationRequest, evt); err != nil {
				return err
			}
			continue
		}
		pending := event.New(event.PendingToolInvocation, event.PendingToolInvocationPayload{
			InvocationID: inv.ID,
			ToolName:     inv.ToolName,
			Arguments:    inv.Arguments,
			TurnID:       w.turn.id,
			AutoExecute:  false,
		})
		if err := w.Submit(ctx, queue.ToolApproval, pending); err != nil {
			return err
		}
	}
	return nil
}

func (w *Worker) transcript() []*model.Message {
	if w.turn == nil {
		return nil
	}
	msgs := make([]*model.Message, len(w.turn.messages))
	copy(msgs, w.turn.messages)
	return msgs
}

func (w *Worker) handleToolApproval(ctx context.Context, p event.ToolExecutionApprovalPayload) error {
	evt, ok := w.toolGate.Resolve(ctx, p.InvocationID, p.Approved, p.Reason)
	if !ok {
		w.opts.Logger.Warn(ctx, "approval for unknown invocation", "invocation_id", p.InvocationID)
		return nil
	}
	target := queue.ToolInvocationRequest
	if evt.Kind() == event.ToolResult {
		target = queue.ToolResult
	}
	return w.Submit(ctx, target, evt)
}

func (w *Worker) handleExecuteTool(ctx context.Context, p event.ExecuteToolInvocationPayload) error {
	evt := w.toolExec.Run(ctx, invocation.ToolInvocation{
		ID:        p.InvocationID,
		ToolName:  p.ToolName,
		Arguments: p.Arguments,
	}, p.TurnID)
	return w.Submit(ctx, queue.ToolResult, evt)
}

func (w *Worker) handleToolResult(ctx context.Context, p event.ToolResultPayload) error {
	if w.turn == nil || w.turn.aggregator == nil {
		w.opts.Logger.Warn(ctx, "tool result with no active turn", "invocation_id", p.InvocationID)
		return nil
	}
	if !w.turn.aggregator.Add(p) {
		return nil // still waiting on sibling tool calls from this turn
	}
	msg := w.turn.aggregator.Synthesize(w.turn.id)
	w.turn.aggregator = nil
	return w.Submit(ctx, queue.UserMessage, event.New(event.UserMessageReceived, msg))
}

func (w *Worker) handleInternal(ctx context.Context, payload any) error {
	p, ok := payload.(event.InternalSystemPayload)
	if ok && p.Name == "stop" {
		return errStopped
	}
	return nil
}
