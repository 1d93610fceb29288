package segment

import (
	"strconv"

	"github.com/flowmesh/agentcore/model"
)

// xmlToolTag associates a recognized XML tag name with the segment Type the
// parser should use once that tag opens and whether its Start is deferred.
// The closing token is derived from the tag name. write_file and
// patch_file are deferred-start; everything else starts
// immediately.
type xmlToolTag struct {
	segType  Type
	deferred bool
}

// Options configures a Parser. The zero value selects StrategyXML with the
// three built-in tags and a monotonic fallback ID generator.
type Options struct {
	Strategy Strategy
	// IDGenerator produces the segment_id for each newly opened segment.
	// Defaults to a per-Parser monotonic counter formatted as "seg-" plus
	// the count in hexadecimal when nil; production callers should supply
	// uuid.NewString.
	IDGenerator func() string
	// ExtraXMLTags registers additional tag names as generic tool_call
	// segments (XmlToolState) beyond the built-in write_file/patch_file/run_bash.
	ExtraXMLTags []string
}

// Parser is the incremental tool-call parser. It is not safe for concurrent
// use; one Parser instance serves exactly one streamed response.
type Parser struct {
	strategy Strategy
	sc       scanner
	cur      state
	idGen    func() string
	seq      int

	xmlTags map[string]xmlToolTag

	// api_tool_call mode bookkeeping: one open tool_call segment per
	// provider call Index, in the order the indices first appeared.
	apiToolSegs  map[string]*apiToolSegState
	apiToolOrder []string
	// The text segment currently accumulating prose in the xml/json/sentinel
	// strategies.
	textSegID   string
	textSegOpen bool
}

type apiToolSegState struct {
	segmentID string
	name      string
	id        string
	args      []byte
}

// New constructs a Parser for the given options.
func New(opts Options) *Parser {
	strategy := opts.Strategy
	if strategy == "" {
		strategy = StrategyXML
	}
	idGen := opts.IDGenerator
	p := &Parser{
		strategy:    strategy,
		idGen:       idGen,
		apiToolSegs: make(map[string]*apiToolSegState),
		xmlTags: map[string]xmlToolTag{
			"write_file": {segType: TypeWriteFile, deferred: true},
			"patch_file": {segType: TypePatchFile, deferred: true},
			"run_bash":   {segType: TypeRunBash, deferred: false},
		},
	}
	for _, tag := range opts.ExtraXMLTags {
		p.xmlTags[tag] = xmlToolTag{segType: TypeToolCall, deferred: false}
	}
	p.cur = &textState{}
	return p
}

// nextID allocates a new segment_id.
func (p *Parser) nextID() string {
	if p.idGen != nil {
		return p.idGen()
	}
	p.seq++
	return monotonicID(p.seq)
}

func monotonicID(n int) string {
	const digits = "0123456789abcdef"
	if n == 0 {
		return "seg-0"
	}
	var b []byte
	for n > 0 {
		b = append([]byte{digits[n%16]}, b...)
		n /= 16
	}
	return "seg-" + string(b)
}

// Feed consumes one upstream chunk and returns whatever SegmentEvents the
// newly available bytes make possible. It never blocks.
func (p *Parser) Feed(chunk model.Chunk) []Event {
	if p.strategy == StrategyAPIToolCall {
		return p.feedAPIToolCall(chunk)
	}
	text, isReasoning := extractText(chunk)
	if text == "" {
		return nil
	}
	if isReasoning {
		return p.feedReasoning(text)
	}
	p.sc.feed([]byte(text))
	return p.drain()
}

// extractText pulls the plain-text payload out of a chunk for the
// xml/json/sentinel strategies. Reasoning content is reported separately so
// callers can route it to a "reasoning" segment instead of mixing it into
// the tool-call-bearing text stream.
func extractText(chunk model.Chunk) (text string, isReasoning bool) {
	switch chunk.Type {
	case model.ChunkTypeThinking:
		return chunk.Thinking, true
	case model.ChunkTypeText:
		if chunk.Message == nil {
			return "", false
		}
		var out string
		for _, part := range chunk.Message.Parts {
			if tp, ok := part.(model.TextPart); ok {
				out += tp.Text
			}
		}
		return out, false
	default:
		return "", false
	}
}

// feedReasoning wraps reasoning text in its own segment, independent of the
// tool-call state machine (reasoning never contains tool syntax).
func (p *Parser) feedReasoning(text string) []Event {
	id := p.nextID()
	return []Event{
		{Kind: Start, SegmentID: id, SegType: TypeReasoning},
		{Kind: Content, SegmentID: id, Delta: text},
		{Kind: End, SegmentID: id},
	}
}

// drain runs the state machine until it can make no further progress with
// the bytes currently buffered, then compacts the scanner.
func (p *Parser) drain() []Event {
	var events []Event
	for {
		evts, next, progressed := p.cur.step(p)
		events = append(events, evts...)
		if next != nil {
			p.cur = next
		}
		if !progressed {
			break
		}
	}
	p.sc.compact()
	return events
}

// Finalize flushes any outstanding segments when the upstream stream ends.
// Unterminated non-text segments are emitted with metadata["truncated"]=true.
func (p *Parser) Finalize() []Event {
	var events []Event
	if f, ok := p.cur.(finalizer); ok {
		events = append(events, f.finalize(p)...)
	}
	if _, ok := p.cur.(*textState); ok && !p.sc.atEOF() {
		events = append(events, p.openTextSegment()...)
		events = append(events, Event{Kind: Content, SegmentID: p.textSegID, Delta: string(p.sc.remaining())})
		p.sc.advance(p.sc.remainingLen())
	}
	if p.textSegOpen {
		events = append(events, Event{Kind: End, SegmentID: p.textSegID})
		p.textSegOpen = false
	}
	for _, idx := range p.apiToolOrder {
		seg := p.apiToolSegs[idx]
		if seg == nil {
			continue
		}
		events = append(events, Event{
			Kind:      End,
			SegmentID: seg.segmentID,
			Metadata:  map[string]any{"truncated": true, "arguments": rawOrNil(seg.args)},
		})
	}
	p.apiToolOrder = nil
	p.apiToolSegs = make(map[string]*apiToolSegState)
	return events
}

// feedAPIToolCall handles StrategyAPIToolCall, where tool calls arrive as
// discrete provider-native fields (ToolCallDelta/ToolCall) rather than
// interleaved text markup. Text chunks pass straight through as their own
// complete segment; tool call deltas accumulate per provider Index until the
// provider closes the call with a final ChunkTypeToolCall carrying the
// canonical Payload.
func (p *Parser) feedAPIToolCall(chunk model.Chunk) []Event {
	switch chunk.Type {
	case model.ChunkTypeText:
		text, _ := extractText(chunk)
		if text == "" {
			return nil
		}
		id := p.nextID()
		return []Event{
			{Kind: Start, SegmentID: id, SegType: TypeText},
			{Kind: Content, SegmentID: id, Delta: text},
			{Kind: End, SegmentID: id},
		}
	case model.ChunkTypeThinking:
		if chunk.Thinking == "" {
			return nil
		}
		return p.feedReasoning(chunk.Thinking)
	case model.ChunkTypeToolCallDelta:
		d := chunk.ToolCallDelta
		if d == nil {
			return nil
		}
		key := strconv.Itoa(d.Index)
		seg, ok := p.apiToolSegs[key]
		if !ok {
			seg = &apiToolSegState{segmentID: p.nextID(), name: string(d.Name), id: d.ID}
			p.apiToolSegs[key] = seg
			p.apiToolOrder = append(p.apiToolOrder, key)
			events := []Event{{Kind: Start, SegmentID: seg.segmentID, SegType: TypeToolCall, Metadata: map[string]any{"tool_name": seg.name}}}
			if d.Delta != "" {
				seg.args = append(seg.args, d.Delta...)
				events = append(events, Event{Kind: Content, SegmentID: seg.segmentID, Delta: d.Delta})
			}
			return events
		}
		if d.Name != "" && seg.name == "" {
			seg.name = string(d.Name)
		}
		if d.ID != "" && seg.id == "" {
			seg.id = d.ID
		}
		if d.Delta == "" {
			return nil
		}
		seg.args = append(seg.args, d.Delta...)
		return []Event{{Kind: Content, SegmentID: seg.segmentID, Delta: d.Delta}}
	case model.ChunkTypeToolCall:
		tc := chunk.ToolCall
		if tc == nil {
			return nil
		}
		key := strconv.Itoa(tc.Index)
		seg, ok := p.apiToolSegs[key]
		if !ok {
			// No preceding deltas; synthesize the segment wholesale.
			id := p.nextID()
			return []Event{
				{Kind: Start, SegmentID: id, SegType: TypeToolCall, Metadata: map[string]any{"tool_name": string(tc.Name)}},
				{Kind: End, SegmentID: id, Metadata: map[string]any{"arguments": tc.Payload}},
			}
		}
		delete(p.apiToolSegs, key)
		p.apiToolOrder = removeString(p.apiToolOrder, key)
		return []Event{{Kind: End, SegmentID: seg.segmentID, Metadata: map[string]any{"arguments": tc.Payload}}}
	default:
		return nil
	}
}

func removeString(s []string, v string) []string {
	out := s[:0]
	for _, x := range s {
		if x != v {
			out = append(out, x)
		}
	}
	return out
}

// finalizer is implemented by states that must emit a truncated END when the
// stream ends mid-segment.
type finalizer interface {
	finalize(p *Parser) []Event
}

// state is one node of the parser's finite state machine. step consumes as
// many bytes as it can from the scanner and returns the events produced, the
// state to transition to (nil means "stay"), and whether it made progress.
// A false progressed return means the state is waiting for more input.
type state interface {
	step(p *Parser) (events []Event, next state, progressed bool)
}
