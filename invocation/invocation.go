// Package invocation translates parser SegmentEvents into concrete tool
// invocations. A Registry maps a (segment type, metadata) pair to a tool
// name and an argument builder; the Adapter consumes a stream of segment
// events and emits one ToolInvocation per completed tool-shaped segment.
package invocation

import (
	"encoding/json"
	"strings"

	"github.com/flowmesh/agentcore/segment"
)

// ToolInvocation is a fully resolved tool call ready for execution. Its ID
// equals the segment_id of the segment that produced it, so approval,
// execution, and result events can all be correlated without a side table.
type ToolInvocation struct {
	ID        string
	ToolName  string
	Arguments json.RawMessage
	Truncated bool
}

// ArgumentBuilder turns a segment's accumulated metadata and content into the
// canonical JSON arguments a tool expects. Most registrations can use
// MetadataArguments or RawArguments; a custom builder is only needed when a
// segment type's wire shape doesn't map directly to either.
type ArgumentBuilder func(content string, metadata map[string]any) json.RawMessage

// Entry is one registered mapping from a segment type to how invocations of
// that type resolve a tool name and its arguments.
type Entry struct {
	// ToolName is used verbatim when Resolver is nil.
	ToolName string
	// Resolver, if set, derives the tool name from the segment's metadata
	// (e.g. a generic <tool_name> tag whose Name comes from the tag itself,
	// or a JSON/sentinel segment that already carries "tool_name").
	Resolver func(metadata map[string]any) (string, bool)
	Build    ArgumentBuilder
}

// Registry is a pluggable (segment type) -> Entry lookup. Lookups on the
// key are case-insensitive since XML tag names and JSON tool names may
// arrive in any case from different providers.
type Registry struct {
	entries map[string]Entry
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]Entry)}
}

// Register adds or replaces the Entry for segType.
func (r *Registry) Register(segType segment.Type, e Entry) {
	r.entries[strings.ToLower(string(segType))] = e
}

func (r *Registry) lookup(segType segment.Type) (Entry, bool) {
	e, ok := r.entries[strings.ToLower(string(segType))]
	return e, ok
}

// MetadataArguments builds the arguments object from a segment's End
// metadata (used by tool_call segments: json mode and api_tool_call mode
// place parsed arguments there; generic xml tags and sentinel segments
// carry no "arguments" entry, so it returns nil for them).
func MetadataArguments(_ string, metadata map[string]any) json.RawMessage {
	raw, ok := metadata["arguments"]
	if !ok {
		return nil
	}
	switch v := raw.(type) {
	case json.RawMessage:
		return v
	case []byte:
		return v
	case string:
		return json.RawMessage(v)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return nil
		}
		return b
	}
}

// RawArguments wraps the segment's full content under the given key, for
// tool shapes (write_file, patch_file, run_bash) whose entire body is a
// single scalar argument rather than a structured object.
func RawArguments(key string) ArgumentBuilder {
	return func(content string, metadata map[string]any) json.RawMessage {
		obj := map[string]any{key: content}
		for k, v := range metadata {
			if k == key {
				continue
			}
			obj[k] = v
		}
		b, err := json.Marshal(obj)
		if err != nil {
			return nil
		}
		return b
	}
}

// DefaultRegistry returns a Registry preloaded with the built-in XML tool
// shapes: write_file and patch_file carry their body under "content", and
// run_bash carries its body under "command".
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(segment.TypeWriteFile, Entry{ToolName: "write_file", Build: RawArguments("content")})
	r.Register(segment.TypePatchFile, Entry{ToolName: "patch_file", Build: RawArguments("content")})
	r.Register(segment.TypeRunBash, Entry{ToolName: "run_bash", Build: RawArguments("command")})
	r.Register(segment.TypeToolCall, Entry{
		Resolver: func(metadata map[string]any) (string, bool) {
			name, ok := metadata["tool_name"].(string)
			return name, ok
		},
		Build: MetadataArguments,
	})
	return r
}
