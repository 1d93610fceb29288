package queue_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/flowmesh/agentcore/event"
	"github.com/flowmesh/agentcore/queue"
)

func TestNextRespectsFIFOWithinQueue(t *testing.T) {
	s := queue.NewAgentSet(4)
	ctx := context.Background()
	require.NoError(t, s.Enqueue(ctx, queue.UserMessage, event.New(event.UserMessageReceived, "u1")))
	require.NoError(t, s.Enqueue(ctx, queue.UserMessage, event.New(event.UserMessageReceived, "u2")))

	evt, ok, err := s.Next(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "u1", evt.Payload())

	evt, ok, err = s.Next(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "u2", evt.Payload())
}

func TestNextRespectsPriorityAcrossQueues(t *testing.T) {
	// Concurrently enqueued I1 (internal_system), R1 (tool_result), and
	// U1 (user_message) must be returned in priority order: U1, R1, I1.
	s := queue.NewAgentSet(4)
	ctx := context.Background()
	require.NoError(t, s.Enqueue(ctx, queue.InternalSystem, event.New(event.InternalSystem, "I1")))
	require.NoError(t, s.Enqueue(ctx, queue.ToolResult, event.New(event.ToolResult, "R1")))
	require.NoError(t, s.Enqueue(ctx, queue.UserMessage, event.New(event.UserMessageReceived, "U1")))

	var got []string
	for i := 0; i < 3; i++ {
		evt, ok, err := s.Next(ctx)
		require.NoError(t, err)
		require.True(t, ok)
		got = append(got, evt.Payload().(string))
	}
	require.Equal(t, []string{"U1", "R1", "I1"}, got)
}

func TestNextBlocksThenDeliversOnEnqueue(t *testing.T) {
	s := queue.NewAgentSet(4)
	ctx := context.Background()

	resultCh := make(chan event.Event, 1)
	go func() {
		evt, ok, err := s.Next(ctx)
		if err == nil && ok {
			resultCh <- evt
		}
	}()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, s.Enqueue(ctx, queue.UserMessage, event.New(event.UserMessageReceived, "late")))

	select {
	case evt := <-resultCh:
		require.Equal(t, "late", evt.Payload())
	case <-time.After(time.Second):
		t.Fatal("Next did not return after enqueue")
	}
}

func TestNextTimeoutReturnsControlWithoutLosingEvents(t *testing.T) {
	s := queue.NewAgentSet(4)
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Millisecond)
	defer cancel()

	_, ok, err := s.Next(ctx)
	require.NoError(t, err)
	require.False(t, ok)

	// A subsequent enqueue + Next with fresh context must still work: the
	// timeout must not have corrupted queue state.
	bg := context.Background()
	require.NoError(t, s.Enqueue(bg, queue.UserMessage, event.New(event.UserMessageReceived, "after-timeout")))
	evt, ok, err := s.Next(bg)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "after-timeout", evt.Payload())
}

func TestTryEnqueueFullReturnsError(t *testing.T) {
	s := queue.NewSet([]queue.Kind{queue.UserMessage}, 1)
	require.NoError(t, s.TryEnqueue(queue.UserMessage, event.New(event.UserMessageReceived, "1")))
	err := s.TryEnqueue(queue.UserMessage, event.New(event.UserMessageReceived, "2"))
	require.ErrorIs(t, err, queue.ErrQueueFull)
}

func TestCompositeSetHasTwoQueues(t *testing.T) {
	s := queue.NewCompositeSet(2)
	require.NoError(t, s.TryEnqueue(queue.UserMessage, event.New(event.UserMessageReceived, "a")))
	require.NoError(t, s.TryEnqueue(queue.InternalSystem, event.New(event.InternalSystem, "b")))
	err := s.TryEnqueue(queue.ToolResult, event.New(event.ToolResult, "c"))
	require.ErrorIs(t, err, queue.ErrUnknownKind)
}
