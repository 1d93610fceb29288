package segment

import (
	"encoding/json"
	"testing"

	"github.com/flowmesh/agentcore/model"
	"github.com/flowmesh/agentcore/tools"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func textChunk(s string) model.Chunk {
	return model.Chunk{
		Type: model.ChunkTypeText,
		Message: &model.Message{
			Role:  model.ConversationRoleAssistant,
			Parts: []model.Part{model.TextPart{Text: s}},
		},
	}
}

func feedAll(p *Parser, chunks ...string) []Event {
	var out []Event
	for _, c := range chunks {
		out = append(out, p.Feed(textChunk(c))...)
	}
	return out
}

func kinds(events []Event) []EventKind {
	out := make([]EventKind, len(events))
	for i, e := range events {
		out[i] = e.Kind
	}
	return out
}

// collapseContent merges runs of consecutive Content kinds into one, so two
// event sequences can be compared modulo Content granularity.
func collapseContent(ks []EventKind) []EventKind {
	var out []EventKind
	for _, k := range ks {
		if k == Content && len(out) > 0 && out[len(out)-1] == Content {
			continue
		}
		out = append(out, k)
	}
	return out
}

func deltas(events []Event) string {
	var out string
	for _, e := range events {
		if e.Kind == Content {
			out += e.Delta
		}
	}
	return out
}

func TestPlainTextPassesThroughUnmodified(t *testing.T) {
	p := New(Options{Strategy: StrategyXML})
	events := feedAll(p, "hello ", "world")
	events = append(events, p.Finalize()...)

	require.NotEmpty(t, events)
	assert.Equal(t, "hello world", deltas(events))
	assert.Equal(t, TypeText, events[0].SegType)
}

func TestWriteFileSplitAcrossChunks(t *testing.T) {
	p := New(Options{Strategy: StrategyXML})
	var events []Event
	events = append(events, p.Feed(textChunk("before <write_file path="))...)
	events = append(events, p.Feed(textChunk(`"a.txt">`))...)
	events = append(events, p.Feed(textChunk("line one\n"))...)
	events = append(events, p.Feed(textChunk("line two</write_file> after"))...)
	events = append(events, p.Finalize()...)

	var start, end *Event
	for i := range events {
		if events[i].Kind == Start && events[i].SegType == TypeWriteFile {
			start = &events[i]
		}
		if start != nil && events[i].Kind == End && events[i].SegmentID == start.SegmentID {
			end = &events[i]
		}
	}
	require.NotNil(t, start)
	require.NotNil(t, end)
	assert.Equal(t, "a.txt", start.Metadata["path"])

	var content string
	for _, e := range events {
		if e.Kind == Content && e.SegmentID == start.SegmentID {
			content += e.Delta
		}
	}
	assert.Equal(t, "line one\nline two", content)
	assert.Contains(t, deltas(events), "before ")
	assert.Contains(t, deltas(events), " after")
}

func TestWriteFileByteByByteMatchesSingleChunk(t *testing.T) {
	input := `<write_file path="a.txt">contents here</write_file>tail`

	whole := New(Options{Strategy: StrategyXML})
	wholeEvents := feedAll(whole, input)
	wholeEvents = append(wholeEvents, whole.Finalize()...)

	byByte := New(Options{Strategy: StrategyXML})
	var byteEvents []Event
	for i := 0; i < len(input); i++ {
		byteEvents = append(byteEvents, byByte.Feed(textChunk(string(input[i])))...)
	}
	byteEvents = append(byteEvents, byByte.Finalize()...)

	assert.Equal(t, deltas(wholeEvents), deltas(byteEvents))
	assert.Equal(t, collapseContent(kinds(wholeEvents)), collapseContent(kinds(byteEvents)))
}

func TestUnknownXMLTagEmittedAsText(t *testing.T) {
	p := New(Options{Strategy: StrategyXML})
	events := feedAll(p, "a <foo bar=\"1\"> b")
	events = append(events, p.Finalize()...)

	assert.Equal(t, `a <foo bar="1"> b`, deltas(events))
}

func TestRunBashStartsImmediately(t *testing.T) {
	p := New(Options{Strategy: StrategyXML})
	events := feedAll(p, "<run_bash>", "echo hi", "</run_bash>")
	events = append(events, p.Finalize()...)

	require.Equal(t, Start, events[0].Kind)
	assert.Equal(t, TypeRunBash, events[0].SegType)
}

func TestFinalizeMarksTruncatedSegment(t *testing.T) {
	p := New(Options{Strategy: StrategyXML})
	events := feedAll(p, `<write_file path="x.txt">partial`)
	events = append(events, p.Finalize()...)

	last := events[len(events)-1]
	require.Equal(t, End, last.Kind)
	assert.Equal(t, true, last.Metadata["truncated"])
}

func TestJSONToolCallEmbedded(t *testing.T) {
	p := New(Options{Strategy: StrategyJSON})
	events := feedAll(p, `text before {"tool":"search","arguments":{"q":"go"}} text after`)
	events = append(events, p.Finalize()...)

	var start, end *Event
	for i := range events {
		if events[i].SegType == TypeToolCall {
			start = &events[i]
		}
		if events[i].Kind == End && events[i].Metadata != nil {
			if _, ok := events[i].Metadata["arguments"]; ok {
				end = &events[i]
			}
		}
	}
	require.NotNil(t, start)
	require.NotNil(t, end)
	assert.Equal(t, "search", start.Metadata["tool_name"])
	assert.JSONEq(t, `{"q":"go"}`, string(end.Metadata["arguments"].(json.RawMessage)))
}

func TestSentinelStrategy(t *testing.T) {
	p := New(Options{Strategy: StrategySentinel})
	input := `hi [[SEG_START {"type":"tool_call"}]]__START_CONTENT__payload__END_CONTENT__[[SEG_END]] bye`
	events := feedAll(p, input)
	events = append(events, p.Finalize()...)

	assert.Contains(t, deltas(events), "payload")
	assert.NotContains(t, deltas(events), "__START_CONTENT__")
	assert.NotContains(t, deltas(events), "__END_CONTENT__")
}

func TestAPIToolCallModeAggregatesByIndex(t *testing.T) {
	p := New(Options{Strategy: StrategyAPIToolCall})
	var events []Event
	events = append(events, p.Feed(model.Chunk{Type: model.ChunkTypeToolCallDelta, ToolCallDelta: &model.ToolCallDelta{Index: 0, ID: "1", Name: tools.Ident("search"), Delta: `{"q":`}})...)
	events = append(events, p.Feed(textChunk("meanwhile, "))...)
	events = append(events, p.Feed(model.Chunk{Type: model.ChunkTypeToolCallDelta, ToolCallDelta: &model.ToolCallDelta{Index: 0, Delta: `"go"}`}})...)
	events = append(events, p.Feed(model.Chunk{Type: model.ChunkTypeToolCall, ToolCall: &model.ToolCall{Index: 0, ID: "1", Name: tools.Ident("search"), Payload: []byte(`{"q":"go"}`)}})...)

	var toolEvents []Event
	for _, e := range events {
		if e.SegType == TypeToolCall || (e.Kind == Content && e.SegmentID == events[0].SegmentID) {
			toolEvents = append(toolEvents, e)
		}
	}
	require.NotEmpty(t, toolEvents)
	assert.Equal(t, Start, toolEvents[0].Kind)
	last := events[len(events)-1]
	assert.Equal(t, End, last.Kind)
	assert.Equal(t, json.RawMessage(`{"q":"go"}`), last.Metadata["arguments"])
}

// TestAPIToolCallModeInterleavesByIndex exercises parallel tool calls where
// deltas for index 0 and index 1 interleave before either closes, and only
// the first delta of each index carries Name/ID (per the provider contract).
func TestAPIToolCallModeInterleavesByIndex(t *testing.T) {
	p := New(Options{Strategy: StrategyAPIToolCall})
	var events []Event
	events = append(events, p.Feed(model.Chunk{Type: model.ChunkTypeToolCallDelta, ToolCallDelta: &model.ToolCallDelta{Index: 0, ID: "call_0", Name: tools.Ident("search"), Delta: `{"q":`}})...)
	events = append(events, p.Feed(model.Chunk{Type: model.ChunkTypeToolCallDelta, ToolCallDelta: &model.ToolCallDelta{Index: 1, ID: "call_1", Name: tools.Ident("fetch"), Delta: `{"url":`}})...)
	events = append(events, p.Feed(model.Chunk{Type: model.ChunkTypeToolCallDelta, ToolCallDelta: &model.ToolCallDelta{Index: 0, Delta: `"go"}`}})...)
	events = append(events, p.Feed(model.Chunk{Type: model.ChunkTypeToolCallDelta, ToolCallDelta: &model.ToolCallDelta{Index: 1, Delta: `"x"}`}})...)
	events = append(events, p.Feed(model.Chunk{Type: model.ChunkTypeToolCall, ToolCall: &model.ToolCall{Index: 1, ID: "call_1", Name: tools.Ident("fetch"), Payload: []byte(`{"url":"x"}`)}})...)
	events = append(events, p.Feed(model.Chunk{Type: model.ChunkTypeToolCall, ToolCall: &model.ToolCall{Index: 0, ID: "call_0", Name: tools.Ident("search"), Payload: []byte(`{"q":"go"}`)}})...)

	starts := map[string]string{}
	ends := map[string]json.RawMessage{}
	for _, e := range events {
		if e.Kind == Start && e.SegType == TypeToolCall {
			starts[e.SegmentID] = e.Metadata["tool_name"].(string)
		}
		if e.Kind == End {
			if args, ok := e.Metadata["arguments"]; ok {
				ends[e.SegmentID] = args.(json.RawMessage)
			}
		}
	}
	require.Len(t, starts, 2)
	require.Len(t, ends, 2)
	names := map[string]bool{}
	for _, n := range starts {
		names[n] = true
	}
	assert.True(t, names["search"])
	assert.True(t, names["fetch"])
	args := map[string]json.RawMessage{}
	for id, a := range ends {
		args[starts[id]] = a
	}
	assert.Equal(t, json.RawMessage(`{"q":"go"}`), args["search"])
	assert.Equal(t, json.RawMessage(`{"url":"x"}`), args["fetch"])
}
