package toollifecycle

import "github.com/flowmesh/agentcore/event"

// BoundedResult is an optional interface a Tool's Result.Value can
// implement to expose truncation metadata directly. When it does, the
// Executor copies it onto the outgoing ToolResultPayload so callers get
// precise bounds semantics instead of having to guess from the raw value.
type BoundedResult interface {
	Bounds() event.Bounds
}
