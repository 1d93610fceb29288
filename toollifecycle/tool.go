// Package toollifecycle drives a tool invocation from its first appearance
// as a PendingToolInvocation event through approval, execution, and result
// aggregation. It owns the at-most-one-result-per-id invariant and the
// multi-turn reordering that lets several concurrently executed tool calls
// report back to the LLM in the order the parser originally emitted them.
package toollifecycle

import (
	"context"
	"encoding/json"

	"github.com/flowmesh/agentcore/toolerrors"
)

// Result is what a Tool produces on success. Value is serialized verbatim
// into the ToolResult event payload; tools that need structured output
// should return a value that marshals predictably.
type Result struct {
	Value any
}

// Tool is the external capability contract every registered tool
// implementation satisfies. Execute must respect ctx cancellation. For a
// tool that also implements CleanupTool, Executor.Run calls Cleanup once
// after Execute and the result processors have run, regardless of success
// or failure (e.g. releasing a held file handle).
type Tool interface {
	Execute(ctx context.Context, args json.RawMessage) (Result, error)
}

// CleanupTool is implemented by tools that need to release resources after
// their result has been reported.
type CleanupTool interface {
	Tool
	Cleanup(ctx context.Context) error
}

// Preprocessor runs immediately before Execute and may rewrite the
// arguments (e.g. to inject a resolved working directory) or veto execution
// outright by returning an error, which becomes the tool's result error.
type Preprocessor func(ctx context.Context, toolName string, args json.RawMessage) (json.RawMessage, error)

// ResultProcessor runs immediately after Execute (success or failure) and
// may transform the result or error before it becomes the published
// ToolResult event. Processors run in registration order; each sees the
// previous processor's output.
type ResultProcessor func(ctx context.Context, toolName string, res Result, err error) (Result, error)

// Registry resolves tool names to their Tool implementation, the default
// AutoExecute policy, and any registered pre/result processors. Unlike
// invocation.Registry (which maps segment syntax to a tool name),
// Registry maps a resolved tool name to the capability that executes it.
type Registry struct {
	tools       map[string]Tool
	autoExecute map[string]bool
	pre         []Preprocessor
	post        []ResultProcessor
}

// NewRegistry constructs an empty Registry. Tools register themselves with
// Register; unregistered tool names fail at ExecuteToolInvocation time with
// toolerrors.New("unknown tool").
func NewRegistry() *Registry {
	return &Registry{
		tools:       make(map[string]Tool),
		autoExecute: make(map[string]bool),
	}
}

// Register adds tool under name. autoExecute controls whether invocations of
// this tool skip the AWAITING_TOOL_APPROVAL gate.
func (r *Registry) Register(name string, tool Tool, autoExecute bool) {
	r.tools[name] = tool
	r.autoExecute[name] = autoExecute
}

// AddPreprocessor appends p to the chain run before every tool execution.
func (r *Registry) AddPreprocessor(p Preprocessor) {
	r.pre = append(r.pre, p)
}

// AddResultProcessor appends p to the chain run after every tool execution.
func (r *Registry) AddResultProcessor(p ResultProcessor) {
	r.post = append(r.post, p)
}

// AutoExecute reports whether name should skip the approval gate. Unknown
// tools default to requiring approval.
func (r *Registry) AutoExecute(name string) bool {
	return r.autoExecute[name]
}

// lookup returns the Tool registered under name.
func (r *Registry) lookup(name string) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

var errUnknownTool = toolerrors.New("unknown tool")
