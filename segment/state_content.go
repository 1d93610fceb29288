package segment

import "bytes"

// contentState streams the inner payload of an XML-delimited segment
// (write_file, patch_file, run_bash, or a generic registered tool tag) until
// its closing token is seen. It holds back the last len(closing)-1 bytes of
// any as-yet-unmatched tail so a closing tag split across Feed calls is never
// shown as content and then retracted.
//
// When deferStart is true the Start event is withheld until the first call
// to step, at which point the opening tag's attributes are already known
// (they were parsed before this state was entered), so Start and the first
// Content can be emitted together.
type contentState struct {
	segType    Type
	segmentID  string
	closing    string
	metadata   map[string]any
	deferStart bool
	started    bool
}

func (c *contentState) step(p *Parser) ([]Event, state, bool) {
	var events []Event
	if c.deferStart && !c.started {
		events = append(events, Event{Kind: Start, SegmentID: c.segmentID, SegType: c.segType, Metadata: c.metadata})
		c.started = true
	}

	buf := p.sc.remaining()
	if len(buf) == 0 {
		if len(events) > 0 {
			return events, nil, true
		}
		return nil, nil, false
	}

	idx := bytes.Index(buf, []byte(c.closing))
	if idx < 0 {
		holdback := len(c.closing) - 1
		emitLen := len(buf) - holdback
		if emitLen <= 0 {
			if len(events) > 0 {
				return events, nil, true
			}
			return nil, nil, false
		}
		events = append(events, Event{Kind: Content, SegmentID: c.segmentID, Delta: string(buf[:emitLen])})
		p.sc.advance(emitLen)
		return events, nil, true
	}

	if idx > 0 {
		events = append(events, Event{Kind: Content, SegmentID: c.segmentID, Delta: string(buf[:idx])})
	}
	events = append(events, Event{Kind: End, SegmentID: c.segmentID})
	p.sc.advance(idx + len(c.closing))
	return events, &textState{}, true
}

// finalize emits a truncated End for a content segment left open when the
// stream ends without its closing token ever arriving.
func (c *contentState) finalize(p *Parser) []Event {
	var events []Event
	if c.deferStart && !c.started {
		events = append(events, Event{Kind: Start, SegmentID: c.segmentID, SegType: c.segType, Metadata: c.metadata})
	}
	buf := p.sc.remaining()
	if len(buf) > 0 {
		events = append(events, Event{Kind: Content, SegmentID: c.segmentID, Delta: string(buf)})
		p.sc.advance(len(buf))
	}
	events = append(events, Event{Kind: End, SegmentID: c.segmentID, Metadata: map[string]any{"truncated": true}})
	return events
}
