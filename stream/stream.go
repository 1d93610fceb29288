// Package stream provides the client-facing wire events delivered over an
// external transport (SSE, WebSocket, a message bus). These are the same
// events an entity's hooks.Bus carries: they hold only what a subscribed
// client needs to render progress, never internal routing metadata.
//
// A hooks.StreamSubscriber registered on a Bus forwards the events its
// filter accepts, unchanged, to a Sink. All event types implement the Event
// interface and can be sent concurrently through a Sink implementation.
package stream

import (
	"context"
	"time"
)

type (
	// Sink delivers streaming updates to clients over a transport. Implementations
	// must be thread-safe: events may arrive concurrently from multiple entities'
	// worker loops forwarding to one shared Sink.
	Sink interface {
		// Send publishes an event to the sink's underlying transport.
		Send(ctx context.Context, event Event) error

		// Close releases resources owned by the sink. Idempotent.
		Close(ctx context.Context) error
	}

	// Event describes a streaming event delivered to clients through a Sink.
	// Concrete event types embed Base. Sinks use the interface to marshal
	// generically; consumers type-assert to concrete types for structured
	// field access.
	Event interface {
		// Type returns the event type constant.
		Type() EventType
		// EntityID returns the agent/team/workflow entity that produced this
		// event. Events bridged up from a child entity are wrapped in a
		// ChildEvent whose EntityID is the parent's; the child's ID is in
		// ChildID and the child's own event in Inner.
		EntityID() string
		// Payload returns the event-specific data in JSON-serializable form.
		Payload() any
		// At returns when the event was produced.
		At() time.Time
	}

	// Base provides the default Event implementation. Embed it in concrete
	// event types to inherit Type(), EntityID(), Payload(), and At().
	Base struct {
		t  EventType
		id string
		p  any
		at time.Time
	}

	// StatusChanged streams an entity lifecycle transition.
	StatusChanged struct {
		Base
		Data StatusChangedPayload
	}

	// StatusChangedPayload is the wire payload for StatusChanged.
	StatusChangedPayload struct {
		Source string `json:"source"`
		Target string `json:"target"`
	}

	// SegmentEvent streams one segment-parser event (start/content/end) as the
	// model response streams in, letting clients render tool-call previews and
	// assistant text progressively.
	SegmentEvent struct {
		Base
		Data SegmentEventPayload
	}

	// SegmentEventPayload is the wire payload for SegmentEvent.
	SegmentEventPayload struct {
		SegmentID string `json:"segment_id"`
		Kind      string `json:"kind"`
		SegType   string `json:"seg_type,omitempty"`
		Delta     string `json:"delta,omitempty"`
	}

	// ToolApprovalRequested streams when a tool invocation is parked awaiting
	// an operator decision.
	ToolApprovalRequested struct {
		Base
		Data ToolLifecyclePayload
	}

	// ToolApproved streams when a parked invocation is approved for execution.
	ToolApproved struct {
		Base
		Data ToolLifecyclePayload
	}

	// ToolDenied streams when a parked invocation is denied.
	ToolDenied struct {
		Base
		Data ToolLifecyclePayload
	}

	// ToolExecutionStarted streams when an invocation begins executing.
	ToolExecutionStarted struct {
		Base
		Data ToolLifecyclePayload
	}

	// ToolExecutionSucceeded streams when an invocation completes successfully.
	ToolExecutionSucceeded struct {
		Base
		Data ToolLifecyclePayload
	}

	// ToolExecutionFailed streams when an invocation fails.
	ToolExecutionFailed struct {
		Base
		Data ToolLifecyclePayload
	}

	// ToolLifecyclePayload is the shared wire payload for every tool lifecycle
	// event (approval, execution). Fields not relevant to a given phase are
	// left zero-valued.
	ToolLifecyclePayload struct {
		InvocationID string `json:"invocation_id"`
		ToolName     string `json:"tool_name,omitempty"`
		TurnID       string `json:"turn_id,omitempty"`
		Reason       string `json:"reason,omitempty"`
		Error        string `json:"error,omitempty"`
	}

	// ToolLog streams an out-of-band log line emitted by a running tool
	// (stdout/stderr style progress output).
	ToolLog struct {
		Base
		Data ToolLogPayload
	}

	// ToolLogPayload is the wire payload for ToolLog.
	ToolLogPayload struct {
		InvocationID string `json:"invocation_id"`
		Stream       string `json:"stream"`
		Line         string `json:"line"`
	}

	// Error streams an unclassified entity-level failure.
	Error struct {
		Base
		Data ErrorPayload
	}

	// ErrorPayload is the wire payload for Error.
	ErrorPayload struct {
		Message string `json:"message"`
	}

	// ChildEvent wraps an Event forwarded from a child entity (team member,
	// workflow task assignee) into a parent's stream, preserving the child's
	// identity instead of collapsing it into the parent's.
	ChildEvent struct {
		Base
		ChildID string `json:"child_id"`
		Inner   Event  `json:"inner"`
	}
)

// EventType enumerates stream payload flavors.
type EventType string

const (
	EventStatusChanged          EventType = "status_changed"
	EventSegmentEvent           EventType = "segment_event"
	EventToolApprovalRequested  EventType = "tool_approval_requested"
	EventToolApproved           EventType = "tool_approved"
	EventToolDenied             EventType = "tool_denied"
	EventToolExecutionStarted   EventType = "tool_execution_started"
	EventToolExecutionSucceeded EventType = "tool_execution_succeeded"
	EventToolExecutionFailed    EventType = "tool_execution_failed"
	EventToolLog                EventType = "tool_log"
	EventError                  EventType = "error"
	EventChild                  EventType = "child"
)

// NewBase constructs a Base. Concrete event constructors use this so callers
// never build Base's unexported fields directly.
func NewBase(t EventType, entityID string, at time.Time, payload any) Base {
	return Base{t: t, id: entityID, p: payload, at: at}
}

func (b Base) Type() EventType  { return b.t }
func (b Base) EntityID() string { return b.id }
func (b Base) Payload() any     { return b.p }
func (b Base) At() time.Time    { return b.at }

// NewStatusChanged constructs a StatusChanged event.
func NewStatusChanged(entityID string, at time.Time, source, target string) StatusChanged {
	data := StatusChangedPayload{Source: source, Target: target}
	return StatusChanged{Base: NewBase(EventStatusChanged, entityID, at, data), Data: data}
}

// NewSegmentEvent constructs a SegmentEvent.
func NewSegmentEvent(entityID string, at time.Time, segmentID, kind, segType, delta string) SegmentEvent {
	data := SegmentEventPayload{SegmentID: segmentID, Kind: kind, SegType: segType, Delta: delta}
	return SegmentEvent{Base: NewBase(EventSegmentEvent, entityID, at, data), Data: data}
}

func newToolLifecycle(t EventType, entityID string, at time.Time, data ToolLifecyclePayload) Base {
	return NewBase(t, entityID, at, data)
}

// NewToolApprovalRequested constructs a ToolApprovalRequested event.
func NewToolApprovalRequested(entityID string, at time.Time, invocationID, toolName, turnID string) ToolApprovalRequested {
	data := ToolLifecyclePayload{InvocationID: invocationID, ToolName: toolName, TurnID: turnID}
	return ToolApprovalRequested{Base: newToolLifecycle(EventToolApprovalRequested, entityID, at, data), Data: data}
}

// NewToolApproved constructs a ToolApproved event.
func NewToolApproved(entityID string, at time.Time, invocationID, turnID string) ToolApproved {
	data := ToolLifecyclePayload{InvocationID: invocationID, TurnID: turnID}
	return ToolApproved{Base: newToolLifecycle(EventToolApproved, entityID, at, data), Data: data}
}

// NewToolDenied constructs a ToolDenied event.
func NewToolDenied(entityID string, at time.Time, invocationID, turnID, reason string) ToolDenied {
	data := ToolLifecyclePayload{InvocationID: invocationID, TurnID: turnID, Reason: reason}
	return ToolDenied{Base: newToolLifecycle(EventToolDenied, entityID, at, data), Data: data}
}

// NewToolExecutionStarted constructs a ToolExecutionStarted event.
func NewToolExecutionStarted(entityID string, at time.Time, invocationID string) ToolExecutionStarted {
	data := ToolLifecyclePayload{InvocationID: invocationID}
	return ToolExecutionStarted{Base: newToolLifecycle(EventToolExecutionStarted, entityID, at, data), Data: data}
}

// NewToolExecutionSucceeded constructs a ToolExecutionSucceeded event.
func NewToolExecutionSucceeded(entityID string, at time.Time, invocationID string) ToolExecutionSucceeded {
	data := ToolLifecyclePayload{InvocationID: invocationID}
	return ToolExecutionSucceeded{Base: newToolLifecycle(EventToolExecutionSucceeded, entityID, at, data), Data: data}
}

// NewToolExecutionFailed constructs a ToolExecutionFailed event.
func NewToolExecutionFailed(entityID string, at time.Time, invocationID, errMsg string) ToolExecutionFailed {
	data := ToolLifecyclePayload{InvocationID: invocationID, Error: errMsg}
	return ToolExecutionFailed{Base: newToolLifecycle(EventToolExecutionFailed, entityID, at, data), Data: data}
}

// NewError constructs an Error event.
func NewError(entityID string, at time.Time, message string) Error {
	data := ErrorPayload{Message: message}
	return Error{Base: NewBase(EventError, entityID, at, data), Data: data}
}

// NewChildEvent wraps inner, produced by childID, for forwarding onto a
// parent's stream. The wrapper's own EntityID is the parent's, while ChildID
// names the entity that actually produced inner.
func NewChildEvent(parentEntityID, childID string, inner Event) ChildEvent {
	return ChildEvent{
		Base:    NewBase(EventChild, parentEntityID, inner.At(), inner.Payload()),
		ChildID: childID,
		Inner:   inner,
	}
}
