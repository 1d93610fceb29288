package status_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowmesh/agentcore/event"
	"github.com/flowmesh/agentcore/status"
)

func TestDeriveScenarioA(t *testing.T) {
	// Walks a full turn with approval off and a single tool call.
	s := status.Bootstrapping
	s = status.Derive(s, event.AgentReady, nil)
	require.Equal(t, status.Idle, s)

	s = status.Derive(s, event.UserMessageReceived, nil)
	require.Equal(t, status.ProcessingUserInput, s)

	s = status.Derive(s, event.LLMUserMessageReady, nil)
	require.Equal(t, status.AwaitingLLMResponse, s)

	s = status.Derive(s, event.LLMCompleteResponseReceived, nil)
	require.Equal(t, status.AnalyzingLLMResponse, s)

	s = status.Derive(s, event.PendingToolInvocation, event.PendingToolInvocationPayload{AutoExecute: true})
	require.Equal(t, status.AnalyzingLLMResponse, s)

	s = status.Derive(s, event.ExecuteToolInvocation, nil)
	require.Equal(t, status.ExecutingTool, s)

	s = status.Derive(s, event.ToolResult, nil)
	require.Equal(t, status.ProcessingToolResult, s)

	s = status.Derive(s, event.UserMessageReceived, nil)
	require.Equal(t, status.ProcessingUserInput, s)
}

func TestDeriveApprovalGate(t *testing.T) {
	s := status.AnalyzingLLMResponse
	s = status.Derive(s, event.PendingToolInvocation, event.PendingToolInvocationPayload{AutoExecute: false})
	require.Equal(t, status.AwaitingToolApproval, s)

	denied := status.Derive(s, event.ToolExecutionApproval, event.ToolExecutionApprovalPayload{Approved: false})
	require.Equal(t, status.ToolDenied, denied)

	approved := status.Derive(s, event.ToolExecutionApproval, event.ToolExecutionApprovalPayload{Approved: true})
	require.Equal(t, status.ExecutingTool, approved)
}

func TestDeriveAnyToError(t *testing.T) {
	for _, s := range []status.Status{status.Idle, status.ExecutingTool, status.AwaitingToolApproval} {
		require.Equal(t, status.Error, status.Derive(s, event.AgentError, nil))
	}
}

func TestDeriveBootstrapFailureWalk(t *testing.T) {
	// Scenario F.
	s := status.Bootstrapping
	s = status.Derive(s, event.AgentError, nil)
	require.Equal(t, status.Error, s)
}

func TestProjectLifecycleEvents(t *testing.T) {
	le, ok := status.Project(status.Bootstrapping, status.Idle)
	require.True(t, ok)
	assert.Equal(t, status.AgentReady, le)

	le, ok = status.Project(status.ProcessingUserInput, status.AwaitingLLMResponse)
	require.True(t, ok)
	assert.Equal(t, status.BeforeLLMCall, le)

	le, ok = status.Project(status.AwaitingLLMResponse, status.AnalyzingLLMResponse)
	require.True(t, ok)
	assert.Equal(t, status.AfterLLMResponse, le)

	le, ok = status.Project(status.AwaitingToolApproval, status.ExecutingTool)
	require.True(t, ok)
	assert.Equal(t, status.BeforeToolExecute, le)

	le, ok = status.Project(status.ExecutingTool, status.ProcessingToolResult)
	require.True(t, ok)
	assert.Equal(t, status.AfterToolExecute, le)

	_, ok = status.Project(status.Idle, status.ProcessingUserInput)
	require.False(t, ok)
}

type fakeNotifier struct {
	transitions [][2]status.Status
}

func (f *fakeNotifier) NotifyStatusChanged(_ context.Context, _ string, source, target status.Status) {
	f.transitions = append(f.transitions, [2]status.Status{source, target})
}

func TestManagerApplyFiresHooksAndNotifies(t *testing.T) {
	n := &fakeNotifier{}
	m := status.NewManager("agent-1", n, nil)

	var hookRan, procRan bool
	m.AddHook(status.Hook{
		SourceStatus: status.Uninitialized,
		TargetStatus: status.Idle,
		Execute: func(context.Context, any) error {
			hookRan = true
			return nil
		},
	})
	m.AddProcessor(status.Processor{
		Event: status.AgentReady,
		Process: func(context.Context, any) error {
			procRan = true
			return nil
		},
	})

	source, target := m.Apply(context.Background(), event.AgentReady, nil)
	require.Equal(t, status.Uninitialized, source)
	require.Equal(t, status.Idle, target)
	require.Equal(t, status.Idle, m.Current())
	assert.True(t, hookRan)
	assert.True(t, procRan)
	require.Len(t, n.transitions, 1)
	assert.Equal(t, [2]status.Status{status.Uninitialized, status.Idle}, n.transitions[0])
}

func TestManagerApplyNoOpDoesNotNotify(t *testing.T) {
	n := &fakeNotifier{}
	m := status.NewManager("agent-2", n, nil)
	m.Apply(context.Background(), event.UserMessageReceived, nil) // not valid from UNINITIALIZED
	require.Equal(t, status.Uninitialized, m.Current())
	require.Empty(t, n.transitions)
}
