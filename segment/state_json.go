package segment

import (
	"bytes"
	"strings"
)

// jsonInitState runs after textState consumes the `{"tool":` prefix. It
// buffers until it can read the tool name and locate the start of the
// "arguments" value, then hands off to jsonArgsState to stream that value
// verbatim.
type jsonInitState struct{}

const jsonArgumentsKey = `"arguments":`

func (j *jsonInitState) step(p *Parser) ([]Event, state, bool) {
	buf := p.sc.remaining()

	nameEnd := bytes.IndexByte(buf, ',')
	argsIdx := bytes.Index(buf, []byte(jsonArgumentsKey))
	if argsIdx < 0 || nameEnd < 0 {
		if len(buf) > 8192 {
			// Malformed: give up treating this as a tool call and surface the
			// buffered bytes as plain text instead of blocking forever.
			var events []Event
			events = append(events, p.openTextSegment()...)
			events = append(events, Event{Kind: Content, SegmentID: p.textSegID, Delta: jsonToolPrefix + string(buf)})
			p.sc.advance(len(buf))
			return events, &textState{}, true
		}
		return nil, nil, false
	}

	name := strings.Trim(strings.TrimSpace(string(buf[:nameEnd])), `"`)
	p.sc.advance(argsIdx + len(jsonArgumentsKey))

	id := p.nextID()
	events := []Event{{Kind: Start, SegmentID: id, SegType: TypeToolCall, Metadata: map[string]any{"tool_name": name}}}
	return events, &jsonArgsState{segmentID: id, name: name}, true
}

// jsonArgsState streams the raw bytes of the "arguments" JSON value and ends
// the segment once brace/bracket depth returns to zero, consuming the
// trailing outer "}" of the tool-call object.
type jsonArgsState struct {
	segmentID string
	name      string
	depth     int
	started   bool
	inString  bool
	escaped   bool
	buffered  []byte
}

func (j *jsonArgsState) step(p *Parser) ([]Event, state, bool) {
	buf := p.sc.remaining()
	if len(buf) == 0 {
		return nil, nil, false
	}

	for i := 0; i < len(buf); i++ {
		c := buf[i]
		j.buffered = append(j.buffered, c)

		if j.inString {
			if j.escaped {
				j.escaped = false
			} else if c == '\\' {
				j.escaped = true
			} else if c == '"' {
				j.inString = false
			}
			continue
		}

		switch c {
		case '"':
			j.inString = true
		case '{', '[':
			j.depth++
			j.started = true
		case '}', ']':
			j.depth--
		}

		if j.started && j.depth == 0 {
			// buffered[:i+1] is the complete arguments value; the remaining
			// outer "}" (and anything after) is consumed separately.
			argBytes := j.buffered
			closeIdx := i + 1
			p.sc.advance(closeIdx)

			rest := p.sc.remaining()
			outerClose := bytes.IndexByte(rest, '}')
			events := []Event{{Kind: Content, SegmentID: j.segmentID, Delta: string(argBytes)}}
			if outerClose >= 0 {
				p.sc.advance(outerClose + 1)
				events = append(events, Event{
					Kind:      End,
					SegmentID: j.segmentID,
					Metadata:  map[string]any{"arguments": rawOrNil(argBytes)},
				})
				return events, &textState{}, true
			}
			// Outer close not yet arrived; park in a tiny state that just
			// waits for it without re-scanning the arguments value.
			return events, &jsonAwaitCloseState{segmentID: j.segmentID, argBytes: argBytes}, true
		}
	}

	p.sc.advance(len(buf))
	return nil, nil, false
}

func (j *jsonArgsState) finalize(p *Parser) []Event {
	return []Event{{
		Kind:      End,
		SegmentID: j.segmentID,
		Metadata:  map[string]any{"truncated": true, "arguments": rawOrNil(j.buffered)},
	}}
}

// jsonAwaitCloseState discards bytes up to and including the outer object's
// closing brace after the arguments value has already been fully streamed.
type jsonAwaitCloseState struct {
	segmentID string
	argBytes  []byte
}

func (j *jsonAwaitCloseState) step(p *Parser) ([]Event, state, bool) {
	buf := p.sc.remaining()
	idx := bytes.IndexByte(buf, '}')
	if idx < 0 {
		if len(buf) > 0 {
			p.sc.advance(len(buf))
			return nil, nil, false
		}
		return nil, nil, false
	}
	p.sc.advance(idx + 1)
	return []Event{{
		Kind:      End,
		SegmentID: j.segmentID,
		Metadata:  map[string]any{"arguments": rawOrNil(j.argBytes)},
	}}, &textState{}, true
}

func (j *jsonAwaitCloseState) finalize(p *Parser) []Event {
	return []Event{{
		Kind:      End,
		SegmentID: j.segmentID,
		Metadata:  map[string]any{"truncated": true, "arguments": rawOrNil(j.argBytes)},
	}}
}
