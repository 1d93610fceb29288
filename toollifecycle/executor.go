package toollifecycle

import (
	"context"
	"encoding/json"

	"github.com/flowmesh/agentcore/event"
	"github.com/flowmesh/agentcore/invocation"
	"github.com/flowmesh/agentcore/telemetry"
	"github.com/flowmesh/agentcore/toolerrors"
)

// Phase names an Executor lifecycle notification. Callers observe these via
// OnPhase to drive status.Manager transitions or stream events without the
// executor importing either package.
type Phase string

const (
	PhaseStarted   Phase = "tool_execution_started"
	PhaseSucceeded Phase = "tool_execution_succeeded"
	PhaseFailed    Phase = "tool_execution_failed"
)

// Executor runs the ExecuteToolInvocation side of the lifecycle: preprocess,
// notify start, invoke, run result processors, and produce the ToolResult
// event. It holds no queue of its own; the worker loop enqueues whatever
// event Run returns.
type Executor struct {
	registry *Registry
	logger   telemetry.Logger
	OnPhase  func(ctx context.Context, invocationID string, phase Phase)
}

// NewExecutor constructs an Executor backed by reg.
func NewExecutor(reg *Registry, logger telemetry.Logger) *Executor {
	return &Executor{registry: reg, logger: logger}
}

// Run executes one invocation end to end and returns the ToolResult event
// to enqueue. It never returns an error itself: failures are folded into the
// ToolResultPayload so the caller always has a well-formed event to publish.
func (e *Executor) Run(ctx context.Context, inv invocation.ToolInvocation, turnID string) event.Event {
	args := inv.Arguments
	tool, ok := e.registry.lookup(inv.ToolName)
	if !ok {
		return e.fail(ctx, inv, turnID, errUnknownTool)
	}

	var err error
	for _, pre := range e.registry.pre {
		args, err = pre(ctx, inv.ToolName, args)
		if err != nil {
			return e.fail(ctx, inv, turnID, err)
		}
	}

	e.notify(ctx, inv.ID, PhaseStarted)
	res, err := tool.Execute(ctx, args)
	if cl, ok := tool.(CleanupTool); ok {
		defer func() {
			if cerr := cl.Cleanup(ctx); cerr != nil && e.logger != nil {
				e.logger.Warn(ctx, "tool cleanup failed", "tool", inv.ToolName, "invocation_id", inv.ID, "error", cerr)
			}
		}()
	}

	for _, post := range e.registry.post {
		res, err = post(ctx, inv.ToolName, res, err)
	}

	if err != nil {
		return e.fail(ctx, inv, turnID, err)
	}

	e.notify(ctx, inv.ID, PhaseSucceeded)
	return event.New(event.ToolResult, event.ToolResultPayload{
		InvocationID: inv.ID,
		ToolName:     inv.ToolName,
		Result:       res.Value,
		TurnID:       turnID,
		Bounds:       extractBounds(res.Value),
	})
}

// extractBounds returns a copy of value's reported Bounds if it implements
// BoundedResult, or nil otherwise.
func extractBounds(value any) *event.Bounds {
	br, ok := value.(BoundedResult)
	if !ok {
		return nil
	}
	b := br.Bounds()
	return &b
}

func (e *Executor) fail(ctx context.Context, inv invocation.ToolInvocation, turnID string, err error) event.Event {
	e.notify(ctx, inv.ID, PhaseFailed)
	te := toolerrors.FromError(err)
	return event.New(event.ToolResult, event.ToolResultPayload{
		InvocationID: inv.ID,
		ToolName:     inv.ToolName,
		Error:        te.Error(),
		TurnID:       turnID,
	})
}

func (e *Executor) notify(ctx context.Context, invocationID string, phase Phase) {
	if e.OnPhase != nil {
		e.OnPhase(ctx, invocationID, phase)
	}
}

// Deny synthesizes the ToolResult for a tool call the approval gate
// rejected. Denied results are delivered like any other result (fed back to
// the LLM as a normal tool message) but never pass through result
// processors or fire AfterToolExecute — denial is not an execution outcome.
func Deny(inv invocation.ToolInvocation, turnID, reason string) event.Event {
	return event.New(event.ToolResult, event.ToolResultPayload{
		InvocationID: inv.ID,
		ToolName:     inv.ToolName,
		IsDenied:     true,
		Error:        reason,
		TurnID:       turnID,
	})
}

// EnsureJSON normalizes a nil arguments payload to an empty JSON object so
// tool implementations never have to special-case "no arguments given".
func EnsureJSON(args json.RawMessage) json.RawMessage {
	if len(args) == 0 {
		return json.RawMessage("{}")
	}
	return args
}
