package team

import (
	"context"

	"github.com/flowmesh/agentcore/hooks"
	"github.com/flowmesh/agentcore/stream"
)

// EventBridgeSet owns one subscription per child entity a Runtime has
// bridged: each subscription forwards the child's Bus events onto the
// parent's Bus, wrapped in stream.ChildEvent so the child's identity
// survives the hop. Subscription lifetime equals the Runtime's lifetime;
// CloseAll tears down every bridge at once, called from Runtime.finish.
type EventBridgeSet struct {
	parentID string
	parent   hooks.Bus
	subs     []hooks.Subscription
}

// NewEventBridgeSet constructs a set of bridges feeding into parent, tagging
// forwarded events with parentID.
func NewEventBridgeSet(parentID string, parent hooks.Bus) *EventBridgeSet {
	return &EventBridgeSet{parentID: parentID, parent: parent}
}

// Add subscribes to childBus and republishes every event it emits onto the
// parent bus as a stream.ChildEvent tagged with childID.
func (s *EventBridgeSet) Add(childID string, childBus hooks.Bus) error {
	sub, err := childBus.Register(hooks.SubscriberFunc(func(ctx context.Context, evt stream.Event) error {
		return s.parent.Publish(ctx, stream.NewChildEvent(s.parentID, childID, evt))
	}))
	if err != nil {
		return err
	}
	s.subs = append(s.subs, sub)
	return nil
}

// CloseAll tears down every bridge registered on this set. Idempotent.
func (s *EventBridgeSet) CloseAll() {
	for _, sub := range s.subs {
		_ = sub.Close()
	}
	s.subs = nil
}
