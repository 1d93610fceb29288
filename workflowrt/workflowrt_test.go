package workflowrt

import (
	"context"
	"testing"
	"time"

	"github.com/flowmesh/agentcore/event"
	"github.com/flowmesh/agentcore/hooks"
	"github.com/flowmesh/agentcore/queue"
	"github.com/flowmesh/agentcore/stream"
	"github.com/flowmesh/agentcore/team"
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

func TestSystemDrivenActivatesAssigneeOnRunnable(t *testing.T) {
	wf := New(Options{EntityID: "wf1", Mode: SystemDriven})
	member := &fakeMember{}
	wf.RegisterMember("researcher", member)
	wf.AddTask(Task{ID: "t1", AssigneeID: "researcher", Input: "look into X"})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	go func() {
		_ = wf.TransitionTask(context.Background(), "t1", TaskRunnable)
		time.Sleep(5 * time.Millisecond)
		_ = wf.Submit(context.Background(), queue.InternalSystem, event.New(event.InternalSystem, event.InternalSystemPayload{Name: team.Stop}))
	}()

	require.NoError(t, wf.Run(ctx))

	task, ok := wf.Task("t1")
	require.True(t, ok)
	assert.Equal(t, TaskRunnable, task.State)

	require.Len(t, member.received, 1)
	assert.Equal(t, event.InterAgentMessage, member.received[0].Kind())
	payload := member.received[0].Payload().(event.InterAgentMessagePayload)
	assert.Equal(t, "researcher", payload.ToMemberID)
	assert.Equal(t, "look into X", payload.Text)
}

func TestManualModeNeverActivatesAssignee(t *testing.T) {
	wf := New(Options{EntityID: "wf1", Mode: Manual})
	member := &fakeMember{}
	wf.RegisterMember("researcher", member)
	wf.AddTask(Task{ID: "t1", AssigneeID: "researcher", Input: "look into X"})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	go func() {
		_ = wf.TransitionTask(context.Background(), "t1", TaskRunnable)
		time.Sleep(5 * time.Millisecond)
		_ = wf.Submit(context.Background(), queue.InternalSystem, event.New(event.InternalSystem, event.InternalSystemPayload{Name: team.Stop}))
	}()

	require.NoError(t, wf.Run(ctx))

	task, ok := wf.Task("t1")
	require.True(t, ok)
	assert.Equal(t, TaskRunnable, task.State)
	assert.Empty(t, member.received)
}

func TestRegisterMemberBridgesBusIntoWorkflowBus(t *testing.T) {
	wfBus := hooks.NewBus()
	wf := New(Options{EntityID: "wf1", Mode: Manual, Bus: wfBus})

	var got []stream.Event
	_, err := wfBus.Register(hooks.SubscriberFunc(func(_ context.Context, evt stream.Event) error {
		got = append(got, evt)
		return nil
	}))
	require.NoError(t, err)

	member := &fakeMember{bus: hooks.NewBus()}
	wf.RegisterMember("researcher", member)

	require.NoError(t, member.bus.Publish(context.Background(), stream.NewStatusChanged("researcher", time.Now(), "ready", "running")))

	require.Len(t, got, 1)
	child := got[0].(stream.ChildEvent)
	assert.Equal(t, "researcher", child.ChildID)
}
