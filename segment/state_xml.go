package segment

import (
	"bytes"
	"strings"
)

// xmlTagInitState runs immediately after textState consumes a '<'. It
// buffers until the closing '>' of the opening tag is seen, then resolves
// the tag name against the parser's registered tool tags. Unknown tags are
// never discarded: the literal tag text is re-emitted as text and scanning
// resumes in textState.
type xmlTagInitState struct{}

func (s *xmlTagInitState) step(p *Parser) ([]Event, state, bool) {
	buf := p.sc.remaining()
	idx := bytes.IndexByte(buf, '>')
	if idx < 0 {
		// Don't wait forever on a malformed stream: if an unreasonable amount
		// of data has arrived without a closing '>', treat it as stray text.
		if len(buf) > 4096 {
			return s.bailToText(p, buf)
		}
		return nil, nil, false
	}

	raw := string(buf[:idx]) // everything between '<' and '>', exclusive
	p.sc.advance(idx + 1)

	name, attrs, selfClosing := parseOpenTag(raw)
	if name == "" || strings.HasPrefix(name, "/") {
		return s.emitUnknown(p, raw), &textState{}, true
	}

	tag, known := p.xmlTags[strings.ToLower(name)]
	if !known {
		return s.emitUnknown(p, raw), &textState{}, true
	}
	if selfClosing {
		// A self-closed tool tag has no content; emit an empty segment.
		id := p.nextID()
		meta := attrsToMetadata(attrs)
		events := []Event{
			{Kind: Start, SegmentID: id, SegType: tag.segType, Metadata: meta},
			{Kind: End, SegmentID: id},
		}
		return events, &textState{}, true
	}

	closing := "</" + strings.ToLower(name) + ">"
	cs := &contentState{segType: tag.segType, closing: closing, metadata: attrsToMetadata(attrs)}
	if tag.deferred {
		// write_file/patch_file: withhold START until the path attribute has
		// been parsed (already true here since attrs came from the opening
		// tag) but before any content delta is emitted — handled by
		// contentState itself emitting Start on its first step.
		cs.deferStart = true
		cs.segmentID = p.nextID()
		return nil, cs, true
	}
	// Immediate-start tags (run_bash, generic tool tags): emit Start now.
	cs.segmentID = p.nextID()
	return []Event{{Kind: Start, SegmentID: cs.segmentID, SegType: tag.segType, Metadata: cs.metadata}}, cs, true
}

func (s *xmlTagInitState) emitUnknown(p *Parser, raw string) []Event {
	var events []Event
	events = append(events, p.openTextSegment()...)
	events = append(events, Event{Kind: Content, SegmentID: p.textSegID, Delta: "<" + raw + ">"})
	return events
}

func (s *xmlTagInitState) bailToText(p *Parser, buf []byte) ([]Event, state, bool) {
	events := append([]Event{}, p.openTextSegment()...)
	events = append(events, Event{Kind: Content, SegmentID: p.textSegID, Delta: "<" + string(buf)})
	p.sc.advance(len(buf))
	return events, &textState{}, true
}

// parseOpenTag splits a raw "<...>"-interior string (without the angle
// brackets) into a tag name and attribute map, and reports whether it was
// self-closing ("<foo/>").
func parseOpenTag(raw string) (name string, attrs map[string]string, selfClosing bool) {
	raw = strings.TrimSpace(raw)
	if strings.HasSuffix(raw, "/") {
		selfClosing = true
		raw = strings.TrimSuffix(raw, "/")
		raw = strings.TrimSpace(raw)
	}
	fields := splitTagFields(raw)
	if len(fields) == 0 {
		return "", nil, selfClosing
	}
	name = fields[0]
	attrs = make(map[string]string)
	for _, f := range fields[1:] {
		eq := strings.IndexByte(f, '=')
		if eq < 0 {
			continue
		}
		key := strings.TrimSpace(f[:eq])
		val := strings.TrimSpace(f[eq+1:])
		val = strings.Trim(val, `"'`)
		attrs[key] = val
	}
	return name, attrs, selfClosing
}

// splitTagFields tokenizes "name attr='a b' other=c" respecting quotes.
func splitTagFields(s string) []string {
	var fields []string
	var cur strings.Builder
	var quote byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			cur.WriteByte(c)
			if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"':
			quote = c
			cur.WriteByte(c)
		case c == ' ' || c == '\t' || c == '\n':
			if cur.Len() > 0 {
				fields = append(fields, cur.String())
				cur.Reset()
			}
		default:
			cur.WriteByte(c)
		}
	}
	if cur.Len() > 0 {
		fields = append(fields, cur.String())
	}
	return fields
}

func attrsToMetadata(attrs map[string]string) map[string]any {
	if len(attrs) == 0 {
		return nil
	}
	meta := make(map[string]any, len(attrs))
	for k, v := range attrs {
		meta[k] = v
	}
	return meta
}
