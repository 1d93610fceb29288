package hooks

import (
	"context"
	"testing"
	"time"

	"github.com/flowmesh/agentcore/stream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBusFanOutAndClose(t *testing.T) {
	bus := NewBus()
	var a, b []stream.Event
	sub1, err := bus.Register(SubscriberFunc(func(_ context.Context, evt stream.Event) error {
		a = append(a, evt)
		return nil
	}))
	require.NoError(t, err)
	sub2, err := bus.Register(SubscriberFunc(func(_ context.Context, evt stream.Event) error {
		b = append(b, evt)
		return nil
	}))
	require.NoError(t, err)

	evt := stream.NewStatusChanged("agent-1", time.Now(), "ready", "running")
	require.NoError(t, bus.Publish(context.Background(), evt))
	require.Len(t, a, 1)
	require.Len(t, b, 1)

	require.NoError(t, sub1.Close())
	require.NoError(t, bus.Publish(context.Background(), evt))
	assert.Len(t, a, 1)
	assert.Len(t, b, 2)

	require.NoError(t, sub2.Close())
	require.NoError(t, sub2.Close())
}

func TestBusRegisterNilSubscriber(t *testing.T) {
	bus := NewBus()
	_, err := bus.Register(nil)
	assert.Error(t, err)
}

type fakeSink struct {
	sent []stream.Event
}

func (f *fakeSink) Send(_ context.Context, evt stream.Event) error {
	f.sent = append(f.sent, evt)
	return nil
}

func (f *fakeSink) Close(context.Context) error { return nil }

func TestStreamSubscriberForwardsFilteredEvents(t *testing.T) {
	sink := &fakeSink{}
	sub, err := NewStreamSubscriber(sink, func(t stream.EventType) bool {
		return t == stream.EventStatusChanged
	})
	require.NoError(t, err)

	require.NoError(t, sub.HandleEvent(context.Background(), stream.NewStatusChanged("a", time.Now(), "x", "y")))
	require.NoError(t, sub.HandleEvent(context.Background(), stream.NewError("a", time.Now(), "boom")))

	require.Len(t, sink.sent, 1)
	assert.Equal(t, stream.EventStatusChanged, sink.sent[0].Type())
}

func TestBusNotifierPublishesStatusChanged(t *testing.T) {
	bus := NewBus()
	var got stream.Event
	_, err := bus.Register(SubscriberFunc(func(_ context.Context, evt stream.Event) error {
		got = evt
		return nil
	}))
	require.NoError(t, err)

	n := NewBusNotifier(bus)
	n.NotifyStatusChanged(context.Background(), "agent-1", "ready", "running")

	require.NotNil(t, got)
	assert.Equal(t, stream.EventStatusChanged, got.Type())
	assert.Equal(t, "agent-1", got.EntityID())
}
