// Package event defines the tagged union of runtime events consumed by an
// entity's (agent, team, or workflow) dispatcher. Events are immutable once
// dispatched: handlers read payload fields but never mutate an Event after it
// has been taken off a queue.
package event

import "time"

// Kind identifies the concrete shape of an Event's payload. Dispatch and
// status derivation both switch on Kind rather than using reflection or type
// assertions on the Event wrapper itself.
type Kind string

const (
	// UserMessageReceived carries a new message submitted by the operator or
	// an upstream caller. Delivered on the user_message queue.
	UserMessageReceived Kind = "user_message_received"

	// LLMUserMessageReady fires once a user message (and any accumulated tool
	// result aggregation) has been assembled into the next prompt turn and is
	// ready to be sent to the model.
	LLMUserMessageReady Kind = "llm_user_message_ready"

	// InterAgentMessage carries a send_message_to delivery routed by a
	// TeamManager onto the recipient member's own input queue.
	InterAgentMessage Kind = "inter_agent_message"

	// PendingToolInvocation carries a tool call parsed from the model's
	// response, before approval or execution has been decided.
	PendingToolInvocation Kind = "pending_tool_invocation"

	// ExecuteToolInvocation requests that a previously approved (or
	// auto-executed) tool invocation actually run.
	ExecuteToolInvocation Kind = "execute_tool_invocation"

	// ToolExecutionApproval carries an operator's approve/deny decision for a
	// PendingToolInvocation.
	ToolExecutionApproval Kind = "tool_execution_approval"

	// ToolResult carries the outcome (success, failure, or denial) of a tool
	// invocation.
	ToolResult Kind = "tool_result"

	// LLMCompleteResponseReceived fires once the model's streamed response has
	// been fully consumed by the segment parser.
	LLMCompleteResponseReceived Kind = "llm_complete_response_received"

	// AgentReady fires once bootstrap completes successfully.
	AgentReady Kind = "agent_ready"

	// AgentStopped fires once a stop signal has been observed by the worker
	// loop.
	AgentStopped Kind = "agent_stopped"

	// AgentError fires when a handler or bootstrap step fails unrecoverably.
	AgentError Kind = "agent_error"

	// InternalSystem carries low-priority housekeeping events (periodic
	// flushes, compaction triggers, heartbeat checks).
	InternalSystem Kind = "internal_system"
)

// Event is the immutable envelope dispatched to a single entity's worker
// loop. Payload is one of the Kind-specific payload types declared in this
// package; handlers type-assert on the documented shape for their Kind.
type Event struct {
	kind      Kind
	payload   any
	createdAt time.Time
}

// New constructs an Event with the given kind and payload. The returned
// Event is immutable: callers must not retain and mutate payload after
// calling New.
func New(kind Kind, payload any) Event {
	return Event{kind: kind, payload: payload, createdAt: time.Now()}
}

// Kind returns the event's tag.
func (e Event) Kind() Kind { return e.kind }

// Payload returns the event's untyped payload. Handlers assert it to the
// concrete type documented for e.Kind().
func (e Event) Payload() any { return e.payload }

// CreatedAt returns when the event was constructed, used for queue wait
// diagnostics and staleness checks; it is not a delivery timestamp.
func (e Event) CreatedAt() time.Time { return e.createdAt }
