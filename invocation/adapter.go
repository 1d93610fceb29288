package invocation

import "github.com/flowmesh/agentcore/segment"

// pending tracks one open segment's accumulated content until its End event
// arrives, at which point the Adapter resolves it into a ToolInvocation (or
// discards it, for text/reasoning segments that never feed tool syntax).
type pending struct {
	segType  segment.Type
	content  strBuilder
	metadata map[string]any
}

// strBuilder avoids importing strings.Builder's pointer-receiver ergonomics
// into pending's value semantics; it's a thin byte accumulator.
type strBuilder struct{ s string }

func (b *strBuilder) write(delta string) { b.s += delta }
func (b *strBuilder) String() string     { return b.s }

// Adapter consumes a Parser's segment events and produces ToolInvocations.
// It is not safe for concurrent use; one Adapter serves exactly one streamed
// response, matching the lifetime of the Parser feeding it.
type Adapter struct {
	registry *Registry
	open     map[string]*pending
}

// NewAdapter constructs an Adapter backed by reg. A nil reg uses
// DefaultRegistry.
func NewAdapter(reg *Registry) *Adapter {
	if reg == nil {
		reg = DefaultRegistry()
	}
	return &Adapter{registry: reg, open: make(map[string]*pending)}
}

// Feed processes one batch of segment events (as returned by a single
// Parser.Feed or Parser.Finalize call) and returns any ToolInvocations that
// completed as a result.
func (a *Adapter) Feed(events []segment.Event) []ToolInvocation {
	var out []ToolInvocation
	for _, evt := range events {
		switch evt.Kind {
		case segment.Start:
			p := &pending{segType: evt.SegType, metadata: cloneMeta(evt.Metadata)}
			a.open[evt.SegmentID] = p
		case segment.Content:
			if p, ok := a.open[evt.SegmentID]; ok {
				p.content.write(evt.Delta)
			}
		case segment.End:
			p, ok := a.open[evt.SegmentID]
			if !ok {
				continue
			}
			delete(a.open, evt.SegmentID)
			mergeMeta(p.metadata, evt.Metadata)
			inv, ok := a.resolve(evt.SegmentID, p)
			if ok {
				out = append(out, inv)
			}
		}
	}
	return out
}

func (a *Adapter) resolve(id string, p *pending) (ToolInvocation, bool) {
	entry, ok := a.registry.lookup(p.segType)
	if !ok {
		return ToolInvocation{}, false
	}
	name := entry.ToolName
	if entry.Resolver != nil {
		resolved, ok := entry.Resolver(p.metadata)
		if !ok {
			return ToolInvocation{}, false
		}
		name = resolved
	}
	var args []byte
	if entry.Build != nil {
		args = entry.Build(p.content.String(), p.metadata)
	}
	truncated, _ := p.metadata["truncated"].(bool)
	return ToolInvocation{
		ID:        id,
		ToolName:  name,
		Arguments: args,
		Truncated: truncated,
	}, true
}

func cloneMeta(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func mergeMeta(dst, src map[string]any) {
	for k, v := range src {
		dst[k] = v
	}
}
