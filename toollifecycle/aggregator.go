package toollifecycle

import (
	"encoding/json"
	"fmt"

	"github.com/flowmesh/agentcore/event"
)

// Aggregator buffers ToolResult payloads for one turn and, once every
// expected invocation has reported back, synthesizes a single
// sender="TOOL" UserMessage whose text lists each result in the order the
// parser originally emitted the corresponding tool calls — not the order
// results happen to complete in, since tool calls may execute concurrently.
//
// Duplicate results for an invocation ID that already reported are logged
// and discarded: at most one result is ever aggregated per invocation.
type Aggregator struct {
	expected []string
	results  map[string]event.ToolResultPayload
	onDup    func(invocationID string)
}

// NewAggregator starts tracking a turn whose parser-emission order for tool
// calls was expectedOrder (invocation IDs, earliest first).
func NewAggregator(expectedOrder []string, onDuplicate func(invocationID string)) *Aggregator {
	return &Aggregator{
		expected: append([]string(nil), expectedOrder...),
		results:  make(map[string]event.ToolResultPayload, len(expectedOrder)),
		onDup:    onDuplicate,
	}
}

// Add records a result. It returns true once every expected invocation has
// reported and the turn is ready to synthesize its aggregate message.
func (a *Aggregator) Add(payload event.ToolResultPayload) (ready bool) {
	if _, dup := a.results[payload.InvocationID]; dup {
		if a.onDup != nil {
			a.onDup(payload.InvocationID)
		}
		return a.complete()
	}
	a.results[payload.InvocationID] = payload
	return a.complete()
}

func (a *Aggregator) complete() bool {
	for _, id := range a.expected {
		if _, ok := a.results[id]; !ok {
			return false
		}
	}
	return true
}

// Synthesize builds the sender="TOOL" UserMessage aggregating every result
// in expected order. Call only after Add reports ready.
func (a *Aggregator) Synthesize(turnID string) event.UserMessage {
	var text string
	for _, id := range a.expected {
		r := a.results[id]
		text += formatResult(r)
	}
	return event.UserMessage{Sender: "TOOL", Text: text, TurnID: turnID}
}

func formatResult(r event.ToolResultPayload) string {
	switch {
	case r.IsDenied:
		return fmt.Sprintf("[%s] denied: %s\n", r.ToolName, r.Error)
	case r.Error != "":
		return fmt.Sprintf("[%s] error: %s\n", r.ToolName, r.Error)
	default:
		b, err := json.Marshal(r.Result)
		if err != nil {
			return fmt.Sprintf("[%s] result: <unserializable>\n", r.ToolName)
		}
		return fmt.Sprintf("[%s] result: %s\n", r.ToolName, string(b))
	}
}
