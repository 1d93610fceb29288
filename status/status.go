// Package status implements the entity lifecycle state machine: the pure
// (status, event) -> status deriver, the side-effecting StatusManager that
// applies transitions and fires lifecycle hooks/processors, and the
// LifecycleEvent projection used by extensibility points.
package status

import (
	"context"
	"sync"

	"github.com/flowmesh/agentcore/event"
	"github.com/flowmesh/agentcore/telemetry"
)

// Status enumerates the operational states an entity (agent, team, or
// workflow) can be in. An entity is in exactly one Status at all times;
// transitions are serialized on the owning worker loop.
type Status string

const (
	Uninitialized        Status = "UNINITIALIZED"
	Bootstrapping        Status = "BOOTSTRAPPING"
	Idle                 Status = "IDLE"
	ProcessingUserInput  Status = "PROCESSING_USER_INPUT"
	AwaitingLLMResponse  Status = "AWAITING_LLM_RESPONSE"
	AnalyzingLLMResponse Status = "ANALYZING_LLM_RESPONSE"
	AwaitingToolApproval Status = "AWAITING_TOOL_APPROVAL"
	ExecutingTool        Status = "EXECUTING_TOOL"
	ProcessingToolResult Status = "PROCESSING_TOOL_RESULT"
	ToolDenied           Status = "TOOL_DENIED"
	ShuttingDown         Status = "SHUTTING_DOWN"
	ShutdownComplete     Status = "SHUTDOWN_COMPLETE"
	Error                Status = "ERROR"
)

// LifecycleEvent tags a transition boundary at which hooks and processors may
// run. Not every transition produces a LifecycleEvent; see Project.
type LifecycleEvent string

const (
	AgentReady        LifecycleEvent = "AGENT_READY"
	BeforeLLMCall     LifecycleEvent = "BEFORE_LLM_CALL"
	AfterLLMResponse  LifecycleEvent = "AFTER_LLM_RESPONSE"
	BeforeToolExecute LifecycleEvent = "BEFORE_TOOL_EXECUTE"
	AfterToolExecute  LifecycleEvent = "AFTER_TOOL_EXECUTE"
)

// Hook declares a blocking side effect that runs when status transitions from
// SourceStatus to TargetStatus. Hooks are invoked in registration order; a
// panic or error from one hook is caught and logged without aborting the
// transition or the remaining hooks.
type Hook struct {
	SourceStatus Status
	TargetStatus Status
	Execute      func(ctx context.Context, data any) error
}

// Processor declares a blocking side effect keyed by LifecycleEvent rather
// than by the raw (source, target) pair. Processors run after all matching
// Hooks for the same transition.
type Processor struct {
	Event   LifecycleEvent
	Process func(ctx context.Context, data any) error
}

// AutoExecuteFlag carries the auto_execute_tools policy that Derive needs to
// distinguish the two PendingToolInvocation transitions in ANALYZING_LLM_RESPONSE.
type AutoExecuteFlag struct {
	AutoExecute bool
}

// Derive is the pure function from (status, event) to the next status. It
// has no side effects and performs no I/O; StatusManager.Apply wraps it with
// hook/processor invocation and notification.
//
// Unrecognized (status, kind) pairs return the current status unchanged
// rather than an error: an entity that receives an event irrelevant to its
// current state simply ignores it for status-machine purposes (the event
// handler may still act on it).
func Derive(current Status, kind event.Kind, payload any) Status {
	switch kind {
	case event.AgentError:
		return Error
	case event.AgentStopped:
		return ShuttingDown
	}

	switch current {
	case Uninitialized, Bootstrapping:
		if kind == event.AgentReady {
			return Idle
		}
	case Idle:
		if kind == event.UserMessageReceived {
			return ProcessingUserInput
		}
	case ProcessingUserInput:
		if kind == event.LLMUserMessageReady {
			return AwaitingLLMResponse
		}
	case AwaitingLLMResponse:
		if kind == event.LLMCompleteResponseReceived {
			return AnalyzingLLMResponse
		}
	case AnalyzingLLMResponse:
		switch kind {
		case event.LLMUserMessageReady:
			return AwaitingLLMResponse
		case event.PendingToolInvocation:
			if autoExec(payload) {
				return AnalyzingLLMResponse // remains until ExecuteToolInvocation lands
			}
			return AwaitingToolApproval
		case event.ExecuteToolInvocation:
			return ExecutingTool
		}
	case AwaitingToolApproval:
		switch kind {
		case event.ToolExecutionApproval:
			if approved(payload) {
				return ExecutingTool
			}
			return ToolDenied
		}
	case ToolDenied:
		if kind == event.ToolResult {
			return ProcessingToolResult
		}
	case ExecutingTool:
		if kind == event.ToolResult {
			return ProcessingToolResult
		}
	case ProcessingToolResult:
		if kind == event.LLMUserMessageReady {
			return AwaitingLLMResponse
		}
		if kind == event.UserMessageReceived {
			// Aggregated tool results re-enter as a synthetic UserMessage
			// (sender=TOOL); treat it the same as a fresh user turn.
			return ProcessingUserInput
		}
	case ShuttingDown:
		// terminal transitions only, handled by the shutdown orchestrator.
	}
	return current
}

func autoExec(payload any) bool {
	if p, ok := payload.(event.PendingToolInvocationPayload); ok {
		return p.AutoExecute
	}
	if f, ok := payload.(AutoExecuteFlag); ok {
		return f.AutoExecute
	}
	return false
}

func approved(payload any) bool {
	if p, ok := payload.(event.ToolExecutionApprovalPayload); ok {
		return p.Approved
	}
	return false
}

// Project maps a concrete (source, target) status transition to the
// LifecycleEvent it corresponds to, if any. The zero value's
// ok=false return means no lifecycle hooks/processors fire for that edge
// (but the status-changed notification always fires).
func Project(source, target Status) (LifecycleEvent, bool) {
	switch {
	case (source == Bootstrapping || source == Uninitialized) && target == Idle:
		return AgentReady, true
	case (source == ProcessingUserInput || source == AnalyzingLLMResponse) && target == AwaitingLLMResponse:
		return BeforeLLMCall, true
	case source == AwaitingLLMResponse && target == AnalyzingLLMResponse:
		return AfterLLMResponse, true
	case target == ExecutingTool:
		return BeforeToolExecute, true
	case source == ExecutingTool && target == ProcessingToolResult:
		return AfterToolExecute, true
	}
	return "", false
}

// Notifier receives status-changed notifications for external observers.
// Implemented by hooks.BusNotifier.
type Notifier interface {
	NotifyStatusChanged(ctx context.Context, entityID string, source, target Status)
}

// Manager owns the current Status for one entity and applies transitions
// on behalf of the dispatcher. Current may be called from any goroutine;
// Apply, AddHook and AddProcessor must come from the entity's single worker
// loop.
type Manager struct {
	mu       sync.Mutex
	current  Status
	hooks    []Hook
	procs    []Processor
	notifier Notifier
	logger   telemetry.Logger
	entityID string
}

// NewManager constructs a Manager starting in Uninitialized status.
func NewManager(entityID string, notifier Notifier, logger telemetry.Logger) *Manager {
	if logger == nil {
		logger = telemetry.NoopLogger{}
	}
	return &Manager{current: Uninitialized, notifier: notifier, logger: logger, entityID: entityID}
}

// Current returns the entity's current status.
func (m *Manager) Current() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// AddHook registers a lifecycle hook. Not safe to call concurrently with
// Apply; register all hooks during bootstrap before the worker loop starts.
func (m *Manager) AddHook(h Hook) { m.hooks = append(m.hooks, h) }

// AddProcessor registers a lifecycle processor. See AddHook for the
// concurrency caveat.
func (m *Manager) AddProcessor(p Processor) { m.procs = append(m.procs, p) }

// Apply derives the next status for kind/payload, applies it, fires matching
// hooks and processors (in that order), and notifies the external observer.
// It returns the (source, target) pair actually applied.
func (m *Manager) Apply(ctx context.Context, kind event.Kind, payload any) (source, target Status) {
	m.mu.Lock()
	source = m.current
	target = Derive(source, kind, payload)
	m.current = target
	m.mu.Unlock()

	if source == target {
		return source, target
	}

	for _, h := range m.hooks {
		if h.SourceStatus != source || h.TargetStatus != target {
			continue
		}
		m.runHook(ctx, h, payload)
	}

	if le, ok := Project(source, target); ok {
		for _, p := range m.procs {
			if p.Event != le {
				continue
			}
			m.runProcessor(ctx, p, payload)
		}
	}

	if m.notifier != nil {
		m.notifier.NotifyStatusChanged(ctx, m.entityID, source, target)
	}
	return source, target
}

func (m *Manager) runHook(ctx context.Context, h Hook, payload any) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error(ctx, "lifecycle hook panicked", "entity_id", m.entityID, "panic", r)
		}
	}()
	if err := h.Execute(ctx, payload); err != nil {
		m.logger.Error(ctx, "lifecycle hook failed", "entity_id", m.entityID, "error", err)
	}
}

func (m *Manager) runProcessor(ctx context.Context, p Processor, payload any) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error(ctx, "lifecycle processor panicked", "entity_id", m.entityID, "panic", r)
		}
	}()
	if err := p.Process(ctx, payload); err != nil {
		m.logger.Error(ctx, "lifecycle processor failed", "entity_id", m.entityID, "error", err)
	}
}
