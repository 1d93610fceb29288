package toollifecycle

import (
	"context"

	"github.com/flowmesh/agentcore/event"
	"github.com/flowmesh/agentcore/invocation"
)

// ApprovalPhase names a Gate lifecycle notification. Callers observe these
// via OnApproval to drive stream events without the gate importing the
// stream package.
type ApprovalPhase string

const (
	PhaseApprovalRequested ApprovalPhase = "tool_approval_requested"
	PhaseApproved          ApprovalPhase = "tool_approved"
	PhaseDenied            ApprovalPhase = "tool_denied"
)

// Gate decides whether a PendingToolInvocation proceeds straight to
// execution or waits in AWAITING_TOOL_APPROVAL for a
// ToolExecutionApproval event. It holds the invocations currently pending
// approval so a later approval/denial can be resolved back to its
// arguments and tool name.
type Gate struct {
	registry *Registry
	waiting  map[string]invocation.ToolInvocation
	turnOf   map[string]string

	// OnApproval, if set, is called for every approval-gate phase transition
	// (requested, approved, denied) so a caller can publish a stream event.
	OnApproval func(ctx context.Context, invocationID string, phase ApprovalPhase)
}

// NewGate constructs a Gate backed by reg's AutoExecute policy.
func NewGate(reg *Registry) *Gate {
	return &Gate{
		registry: reg,
		waiting:  make(map[string]invocation.ToolInvocation),
		turnOf:   make(map[string]string),
	}
}

// Admit processes a PendingToolInvocation. If the tool auto-executes it
// returns the ExecuteToolInvocation event to enqueue immediately; otherwise
// it parks the invocation and returns autoExecuted=false so the caller can transition
// to AWAITING_TOOL_APPROVAL instead.
func (g *Gate) Admit(ctx context.Context, inv invocation.ToolInvocation, turnID string) (evt event.Event, autoExecuted bool) {
	if g.registry.AutoExecute(inv.ToolName) {
		return executeEvent(inv, turnID), true
	}
	g.waiting[inv.ID] = inv
	g.turnOf[inv.ID] = turnID
	g.notify(ctx, inv.ID, PhaseApprovalRequested)
	return event.Event{}, false
}

// Resolve applies an approval decision. approved=true yields the
// ExecuteToolInvocation event; approved=false yields the denial ToolResult
// directly (denied calls never execute). ok is false if invocationID isn't
// currently waiting (e.g. a stale or duplicate approval).
func (g *Gate) Resolve(ctx context.Context, invocationID string, approved bool, reason string) (evt event.Event, ok bool) {
	inv, found := g.waiting[invocationID]
	if !found {
		return event.Event{}, false
	}
	delete(g.waiting, invocationID)
	turnID := g.turnOf[invocationID]
	delete(g.turnOf, invocationID)

	if !approved {
		g.notify(ctx, invocationID, PhaseDenied)
		return Deny(inv, turnID, reason), true
	}
	g.notify(ctx, invocationID, PhaseApproved)
	return executeEvent(inv, turnID), true
}

func (g *Gate) notify(ctx context.Context, invocationID string, phase ApprovalPhase) {
	if g.OnApproval != nil {
		g.OnApproval(ctx, invocationID, phase)
	}
}

func executeEvent(inv invocation.ToolInvocation, turnID string) event.Event {
	return event.New(event.ExecuteToolInvocation, event.ExecuteToolInvocationPayload{
		InvocationID: inv.ID,
		ToolName:     inv.ToolName,
		Arguments:    inv.Arguments,
		TurnID:       turnID,
	})
}
