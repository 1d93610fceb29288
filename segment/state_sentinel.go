package segment

import (
	"bytes"
	"encoding/json"
	"strings"
)

const sentinelEndMarker = "[[SEG_END]]"
const sentinelContentStart = "__START_CONTENT__"
const sentinelContentEnd = "__END_CONTENT__"

// sentinelInitState runs after textState consumes the "[[SEG_START" prefix.
// It buffers until the closing "]]" of the metadata line is seen, parses the
// JSON object in between for a "type" field, and hands off to
// sentinelContentState.
type sentinelInitState struct{}

func (s *sentinelInitState) step(p *Parser) ([]Event, state, bool) {
	buf := p.sc.remaining()
	idx := bytes.Index(buf, []byte("]]"))
	if idx < 0 {
		if len(buf) > 8192 {
			var events []Event
			events = append(events, p.openTextSegment()...)
			events = append(events, Event{Kind: Content, SegmentID: p.textSegID, Delta: sentinelStartMarker + string(buf)})
			p.sc.advance(len(buf))
			return events, &textState{}, true
		}
		return nil, nil, false
	}

	raw := strings.TrimSpace(string(buf[:idx]))
	p.sc.advance(idx + 2)

	var meta struct {
		Type string `json:"type"`
	}
	_ = json.Unmarshal([]byte(raw), &meta)
	segType := Type(meta.Type)
	if segType == "" {
		segType = TypeToolCall
	}

	id := p.nextID()
	events := []Event{{Kind: Start, SegmentID: id, SegType: segType}}
	return events, &sentinelContentState{segmentID: id}, true
}

// sentinelContentState streams content until "[[SEG_END]]", stripping an
// optional __START_CONTENT__/__END_CONTENT__ wrapper so only the inner
// payload is ever handed to callers as Content.
type sentinelContentState struct {
	segmentID    string
	startTrimmed bool
}

func (s *sentinelContentState) step(p *Parser) ([]Event, state, bool) {
	buf := p.sc.remaining()
	if len(buf) == 0 {
		return nil, nil, false
	}

	idx := bytes.Index(buf, []byte(sentinelEndMarker))
	if idx < 0 {
		holdback := len(sentinelEndMarker) - 1
		emitLen := len(buf) - holdback
		if emitLen <= 0 {
			return nil, nil, false
		}
		delta := s.trim(buf[:emitLen], false)
		p.sc.advance(emitLen)
		if delta == "" {
			return nil, nil, true
		}
		return []Event{{Kind: Content, SegmentID: s.segmentID, Delta: delta}}, nil, true
	}

	var events []Event
	if idx > 0 {
		delta := s.trim(buf[:idx], true)
		if delta != "" {
			events = append(events, Event{Kind: Content, SegmentID: s.segmentID, Delta: delta})
		}
	}
	events = append(events, Event{Kind: End, SegmentID: s.segmentID})
	p.sc.advance(idx + len(sentinelEndMarker))
	return events, &textState{}, true
}

// trim strips a leading __START_CONTENT__ (once, the first time content is
// seen) and, when atEnd is true, a trailing __END_CONTENT__.
func (s *sentinelContentState) trim(b []byte, atEnd bool) string {
	str := string(b)
	if !s.startTrimmed {
		if idx := strings.Index(str, sentinelContentStart); idx >= 0 {
			str = str[idx+len(sentinelContentStart):]
		}
		s.startTrimmed = true
	}
	if atEnd {
		if idx := strings.LastIndex(str, sentinelContentEnd); idx >= 0 {
			str = str[:idx]
		}
	}
	return str
}

func (s *sentinelContentState) finalize(p *Parser) []Event {
	buf := p.sc.remaining()
	var events []Event
	if len(buf) > 0 {
		delta := s.trim(buf, true)
		if delta != "" {
			events = append(events, Event{Kind: Content, SegmentID: s.segmentID, Delta: delta})
		}
		p.sc.advance(len(buf))
	}
	events = append(events, Event{Kind: End, SegmentID: s.segmentID, Metadata: map[string]any{"truncated": true}})
	return events
}
