package hooks

import (
	"context"
	"errors"

	"github.com/flowmesh/agentcore/stream"
)

// StreamSubscriber is a Subscriber that forwards bus events to a stream.Sink,
// optionally filtering which event types cross the wire. It is the bridge
// between a Bus (internal, in-process fan-out) and an external transport
// (SSE, WebSocket, a message bus).
type StreamSubscriber struct {
	sink   stream.Sink
	filter func(stream.EventType) bool
}

// NewStreamSubscriber constructs a subscriber forwarding every event from
// the bus to sink. filter, if non-nil, is consulted per event; events for
// which it returns false are dropped rather than forwarded.
func NewStreamSubscriber(sink stream.Sink, filter func(stream.EventType) bool) (Subscriber, error) {
	if sink == nil {
		return nil, errors.New("stream sink is required")
	}
	return &StreamSubscriber{sink: sink, filter: filter}, nil
}

// HandleEvent implements Subscriber.
func (s *StreamSubscriber) HandleEvent(ctx context.Context, event stream.Event) error {
	if s.filter != nil && !s.filter(event.Type()) {
		return nil
	}
	return s.sink.Send(ctx, event)
}
