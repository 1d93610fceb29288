package event

import (
	"encoding/json"

	"github.com/flowmesh/agentcore/model"
)

// UserMessage is the payload for UserMessageReceived.
type UserMessage struct {
	// Sender identifies who authored the message ("user", "TOOL" for
	// synthesized tool-result aggregation, or an inter-agent sender ID).
	Sender string
	// Text is the message content.
	Text string
	// TurnID correlates this message with the LLM turn it starts, empty if
	// the caller leaves turn tracking to the runtime.
	TurnID string
}

// InterAgentMessagePayload is the payload for InterAgentMessage, delivered
// by a TeamManager onto the addressed member's own queue in response to a
// send_message_to tool call from a sibling member.
type InterAgentMessagePayload struct {
	// FromMemberID identifies the sending team member.
	FromMemberID string
	// ToMemberID identifies the addressed recipient.
	ToMemberID string
	Text       string
	TurnID     string
}

// LLMUserMessageReadyPayload is the payload for LLMUserMessageReady.
type LLMUserMessageReadyPayload struct {
	Messages []*model.Message
	TurnID   string
}

// PendingToolInvocationPayload is the payload for PendingToolInvocation.
type PendingToolInvocationPayload struct {
	// InvocationID equals the originating segment_id.
	InvocationID string
	ToolName     string
	Arguments    json.RawMessage
	// AutoExecute short-circuits the approval gate when true.
	AutoExecute bool
	TurnID      string
}

// ExecuteToolInvocationPayload is the payload for ExecuteToolInvocation.
type ExecuteToolInvocationPayload struct {
	InvocationID string
	ToolName     string
	Arguments    json.RawMessage
	TurnID       string
}

// ToolExecutionApprovalPayload is the payload for ToolExecutionApproval.
type ToolExecutionApprovalPayload struct {
	InvocationID string
	Approved     bool
	// Reason carries the denial rationale; ignored when Approved is true.
	Reason string
}

// ToolResultPayload is the payload for ToolResult.
type ToolResultPayload struct {
	InvocationID string
	ToolName     string
	Result       any
	// Error is non-empty when the invocation failed or was denied.
	Error string
	// IsDenied distinguishes an operator denial from an execution failure;
	// denied results receive no execution lifecycle events.
	IsDenied bool
	TurnID   string
	// Bounds is set when the tool's result reported truncation metadata;
	// nil means the result is either unbounded or didn't report bounds.
	Bounds *Bounds
}

// Bounds describes how a tool result has been truncated relative to the
// full underlying data set. Returned reports how many items or points are
// present in the bounded view; Total, when non-nil, is the best-effort
// count before truncation; Truncated reports whether any cap was applied;
// RefinementHint gives short guidance on narrowing the query.
type Bounds struct {
	Returned       int
	Total          *int
	Truncated      bool
	RefinementHint string
}

// LLMCompleteResponsePayload is the payload for LLMCompleteResponseReceived.
type LLMCompleteResponsePayload struct {
	TurnID string
	Usage  model.TokenUsage
}

// ErrorPayload is the payload for AgentError.
type ErrorPayload struct {
	Err    error
	Source string
}

// InternalSystemPayload is the payload for InternalSystem events (compaction
// triggers, heartbeat ticks, periodic flushes).
type InternalSystemPayload struct {
	Name string
	Data any
}
