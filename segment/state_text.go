package segment

import "bytes"

// textState is the default state. It scans the buffer for the
// strategy's marker (an XML "<", a JSON tool-call prefix, or a sentinel
// "[[SEG_START" line) and emits everything before the marker as content of
// an open text segment. When no marker is found it still emits text, but
// holds back the last len(marker)-1 bytes so a marker split across Feed
// calls is never retracted after being shown as plain text.
type textState struct{}

const sentinelStartMarker = "[[SEG_START"
const jsonToolPrefix = `{"tool":`

func (s *textState) step(p *Parser) ([]Event, state, bool) {
	buf := p.sc.remaining()
	if len(buf) == 0 {
		return nil, nil, false
	}

	switch p.strategy {
	case StrategyXML:
		return s.scanFor(p, buf, '<', 1, func(rest []byte) state { return &xmlTagInitState{} })
	case StrategySentinel:
		return s.scanForSubstring(p, buf, sentinelStartMarker, func() state { return &sentinelInitState{} })
	case StrategyJSON:
		return s.scanForSubstring(p, buf, jsonToolPrefix, func() state { return &jsonInitState{} })
	default:
		return s.scanForSubstring(p, buf, "", nil)
	}
}

// scanFor looks for a single marker byte (used for XML's '<').
func (s *textState) scanFor(p *Parser, buf []byte, marker byte, markerLen int, next func(rest []byte) state) ([]Event, state, bool) {
	idx := bytes.IndexByte(buf, marker)
	if idx < 0 {
		return s.flushHoldback(p, buf, markerLen-1)
	}
	return s.flushAndSwitch(p, buf, idx, markerLen, next(nil))
}

func (s *textState) scanForSubstring(p *Parser, buf []byte, marker string, next func() state) ([]Event, state, bool) {
	if marker == "" {
		return s.flushHoldback(p, buf, 0)
	}
	idx := bytes.Index(buf, []byte(marker))
	if idx < 0 {
		return s.flushHoldback(p, buf, len(marker)-1)
	}
	return s.flushAndSwitch(p, buf, idx, len(marker), next())
}

// flushHoldback emits buf[:len(buf)-holdback] as text content (opening the
// text segment lazily) and leaves the tail unconsumed for the next Feed.
func (s *textState) flushHoldback(p *Parser, buf []byte, holdback int) ([]Event, state, bool) {
	emitLen := len(buf) - holdback
	if emitLen <= 0 {
		return nil, nil, false
	}
	var events []Event
	events = append(events, p.openTextSegment()...)
	events = append(events, Event{Kind: Content, SegmentID: p.textSegID, Delta: string(buf[:emitLen])})
	p.sc.advance(emitLen)
	return events, nil, true
}

// flushAndSwitch emits text up to idx, closes the text segment, consumes the
// marker, and transitions to next.
func (s *textState) flushAndSwitch(p *Parser, buf []byte, idx, markerLen int, next state) ([]Event, state, bool) {
	var events []Event
	if idx > 0 {
		events = append(events, p.openTextSegment()...)
		events = append(events, Event{Kind: Content, SegmentID: p.textSegID, Delta: string(buf[:idx])})
	}
	events = append(events, p.closeTextSegment()...)
	p.sc.advance(idx + markerLen)
	return events, next, true
}

// openTextSegment lazily emits SEGMENT_START for the text segment currently
// accumulating content, if one is not already open.
func (p *Parser) openTextSegment() []Event {
	if p.textSegOpen {
		return nil
	}
	p.textSegID = p.nextID()
	p.textSegOpen = true
	return []Event{{Kind: Start, SegmentID: p.textSegID, SegType: TypeText}}
}

// closeTextSegment emits SEGMENT_END for the open text segment, if any.
func (p *Parser) closeTextSegment() []Event {
	if !p.textSegOpen {
		return nil
	}
	p.textSegOpen = false
	return []Event{{Kind: End, SegmentID: p.textSegID}}
}
