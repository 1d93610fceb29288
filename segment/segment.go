// Package segment implements the streaming tool-call parser: an incremental
// state machine that turns a lazy sequence of model.Chunk values into a lazy
// sequence of SegmentEvents. The parser never blocks on future
// input — Feed returns whatever events the newly available bytes make
// possible and retains any incomplete state in the Parser for the next Feed
// call (or Finalize, at end of stream).
package segment

import (
	"encoding/json"
)

// Type enumerates the kinds of segments the parser recognizes.
type Type string

const (
	TypeText      Type = "text"
	TypeToolCall  Type = "tool_call"
	TypeWriteFile Type = "write_file"
	TypePatchFile Type = "patch_file"
	TypeRunBash   Type = "run_bash"
	TypeReasoning Type = "reasoning"
)

// EventKind distinguishes the three SegmentEvent subtypes. A given
// segment_id has exactly one Start, zero or more Content events, and exactly
// one End.
type EventKind string

const (
	Start   EventKind = "start"
	Content EventKind = "content"
	End     EventKind = "end"
)

// Event is the parser's output unit. Content and End carry the SegmentID of
// the Start that opened the segment, so a consumer can correlate an entire
// segment without a side table.
type Event struct {
	Kind      EventKind
	SegmentID string

	// SegType and Metadata are populated on Start (and, for metadata only,
	// may be extended on End — e.g. {"truncated": true}).
	SegType  Type
	Metadata map[string]any

	// Delta carries the incremental payload for Content events: plain text
	// for "text"/"reasoning" segments, the inner file/diff/command payload
	// for write_file/patch_file/run_bash, or raw argument JSON fragments for
	// tool_call segments in api_tool_call mode.
	Delta string
}

// Strategy selects which text-embedded tool syntax (if any) the parser looks
// for. It is chosen once per stream from configuration.
type Strategy string

const (
	// StrategyXML recognizes <write_file>, <patch_file>, <run_bash>, and any
	// tag names registered through Options.ExtraXMLTags in the text stream;
	// other tags pass through as text.
	StrategyXML Strategy = "xml"
	// StrategyJSON recognizes a JSON-object-shaped tool call embedded in the
	// text stream.
	StrategyJSON Strategy = "json"
	// StrategySentinel recognizes the [[SEG_START ...]] / [[SEG_END]] marker
	// format.
	StrategySentinel Strategy = "sentinel"
	// StrategyAPIToolCall treats the text stream as plain pass-through text
	// and sources tool calls exclusively from model.Chunk tool-call deltas and
	// tool calls.
	StrategyAPIToolCall Strategy = "api_tool_call"
)

// rawOrNil returns b as a json.RawMessage, or nil when b is empty.
func rawOrNil(b []byte) json.RawMessage {
	if len(b) == 0 {
		return nil
	}
	return json.RawMessage(b)
}
