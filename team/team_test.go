package team

import (
	"context"
	"testing"
	"time"

	"github.com/flowmesh/agentcore/event"
	"github.com/flowmesh/agentcore/hooks"
	"github.com/flowmesh/agentcore/queue"
	"github.com/flowmesh/agentcore/stream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMember struct {
	received []event.Event
	bus      hooks.Bus
}

func (f *fakeMember) Submit(_ context.Context, _ queue.Kind, evt event.Event) error {
	f.received = append(f.received, evt)
	return nil
}

func (f *fakeMember) Bus() hooks.Bus { return f.bus }

func TestRouteExternalGoesToCoordinator(t *testing.T) {
	coord := &fakeMember{}
	mgr := NewTeamManager("coordinator")
	mgr.Register("coordinator", coord)

	require.NoError(t, mgr.RouteExternal(context.Background(), event.UserMessage{Text: "hi team"}))
	require.Len(t, coord.received, 1)
	assert.Equal(t, event.UserMessageReceived, coord.received[0].Kind())
}

func TestRouteSendMessageToDeliversInterAgentMessage(t *testing.T) {
	researcher := &fakeMember{}
	mgr := NewTeamManager("coordinator")
	mgr.Register("researcher", researcher)

	err := mgr.RouteSendMessageTo(context.Background(), SendMessageRequest{
		FromMemberID: "coordinator",
		ToMemberID:   "researcher",
		Text:         "look into X",
		TurnID:       "t1",
	})
	require.NoError(t, err)
	require.Len(t, researcher.received, 1)

	evt := researcher.received[0]
	assert.Equal(t, event.InterAgentMessage, evt.Kind())
	payload := evt.Payload().(event.InterAgentMessagePayload)
	assert.Equal(t, "coordinator", payload.FromMemberID)
	assert.Equal(t, "look into X", payload.Text)
}

func TestRouteToUnknownMemberFails(t *testing.T) {
	mgr := NewTeamManager("coordinator")
	err := mgr.RouteExternal(context.Background(), event.UserMessage{Text: "hi"})
	assert.Error(t, err)
}

func TestRuntimeDrivesHandleAndStops(t *testing.T) {
	var seen []event.Kind
	rt := NewRuntime(RuntimeOptions{
		EntityID: "wf1",
		Handle: func(_ context.Context, evt event.Event) error {
			seen = append(seen, evt.Kind())
			if IsStopSignal(evt.Payload()) {
				return ErrStopped()
			}
			return nil
		},
	})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	go func() {
		_ = rt.Submit(context.Background(), queue.UserMessage, event.New(event.UserMessageReceived, event.UserMessage{Text: "hi"}))
		time.Sleep(5 * time.Millisecond)
		_ = rt.Submit(context.Background(), queue.InternalSystem, event.New(event.InternalSystem, event.InternalSystemPayload{Name: Stop}))
	}()

	require.NoError(t, rt.Run(ctx))
	require.Len(t, seen, 2)
	assert.Equal(t, event.UserMessageReceived, seen[0])
	assert.Equal(t, event.InternalSystem, seen[1])
}

func TestRegisterBridgesMemberBusIntoTeamBus(t *testing.T) {
	teamBus := hooks.NewBus()
	rt := NewRuntime(RuntimeOptions{EntityID: "team1", Bus: teamBus})

	mgr := NewTeamManager("coordinator")
	mgr.BindRuntime(rt)

	var got []stream.Event
	_, err := teamBus.Register(hooks.SubscriberFunc(func(_ context.Context, evt stream.Event) error {
		got = append(got, evt)
		return nil
	}))
	require.NoError(t, err)

	member := &fakeMember{bus: hooks.NewBus()}
	mgr.Register("researcher", member)

	require.NoError(t, member.bus.Publish(context.Background(), stream.NewStatusChanged("researcher", time.Now(), "ready", "running")))

	require.Len(t, got, 1)
	assert.Equal(t, stream.EventChild, got[0].Type())
	child := got[0].(stream.ChildEvent)
	assert.Equal(t, "researcher", child.ChildID)
}
