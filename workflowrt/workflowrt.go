// Package workflowrt implements the workflow runtime tier: the same
// two-queue cooperative scheduler team.Runtime provides, specialized with a
// task-state model and one of two notification Modes that decide how task
// transitions turn into member activations.
package workflowrt

import (
	"context"
	"fmt"
	"sync"

	"github.com/flowmesh/agentcore/event"
	"github.com/flowmesh/agentcore/hooks"
	"github.com/flowmesh/agentcore/queue"
	"github.com/flowmesh/agentcore/team"
	"github.com/flowmesh/agentcore/telemetry"
)

// Mode selects how task-state changes are turned into agent activations.
type Mode string

const (
	// Manual leaves turn-taking to the coordinator agent: task-state
	// changes are recorded but never auto-activate a member.
	Manual Mode = "manual"
	// SystemDriven converts a task transition into an activation (an
	// InterAgentMessage waking the assigned member) as soon as the task
	// becomes runnable.
	SystemDriven Mode = "system_driven"
)

// TaskState enumerates where a task sits in the workflow.
type TaskState string

const (
	TaskPending   TaskState = "pending"
	TaskRunnable  TaskState = "runnable"
	TaskRunning   TaskState = "running"
	TaskCompleted TaskState = "completed"
	TaskFailed    TaskState = "failed"
)

// Task is one unit of work tracked by the workflow.
type Task struct {
	ID         string
	AssigneeID string
	State      TaskState
	Input      string
}

// Member is anything a workflow can activate: an agent worker or nested
// team/workflow runtime, addressed by a stable ID.
type Member = team.Member

// Runtime drives a workflow's task graph. It embeds team.Runtime for the
// two-queue scheduler and adds task bookkeeping plus mode-specific
// activation.
type Runtime struct {
	*team.Runtime

	mode    Mode
	mu      sync.Mutex
	tasks   map[string]*Task
	members map[string]Member
	logger  telemetry.Logger
}

// Options configures a workflow Runtime.
type Options struct {
	EntityID string
	QueueCap int
	Mode     Mode
	Logger   telemetry.Logger
	// Bus is the workflow's stream event bus. Defaults to a fresh
	// hooks.Bus; RegisterMember bridges a member's own Bus into it when
	// the member exposes one.
	Bus hooks.Bus
}

// New constructs a workflow Runtime in the given Mode.
func New(o Options) *Runtime {
	if o.Mode == "" {
		o.Mode = Manual
	}
	if o.Logger == nil {
		o.Logger = telemetry.NewNoopLogger()
	}
	wf := &Runtime{
		mode:    o.Mode,
		tasks:   make(map[string]*Task),
		members: make(map[string]Member),
		logger:  o.Logger,
	}
	wf.Runtime = team.NewRuntime(team.RuntimeOptions{
		EntityID: o.EntityID,
		QueueCap: o.QueueCap,
		Logger:   o.Logger,
		Handle:   wf.handle,
		Bus:      o.Bus,
	})
	return wf
}

// busMember is satisfied by a Member that also exposes its own stream
// event bus, e.g. a worker.Worker or a nested team/workflow Runtime.
type busMember interface {
	Bus() hooks.Bus
}

// RegisterMember associates a member ID with its Submit target, used when
// SystemDriven mode activates a task's assignee. If m exposes a non-nil
// Bus, its events are bridged into the workflow's own Bus under id.
func (wf *Runtime) RegisterMember(id string, m Member) {
	wf.mu.Lock()
	wf.members[id] = m
	wf.mu.Unlock()

	if bm, ok := m.(busMember); ok && bm.Bus() != nil {
		_ = wf.BridgeChild(id, bm)
	}
}

// AddTask registers a task, in TaskPending state unless t.State is set.
func (wf *Runtime) AddTask(t Task) {
	wf.mu.Lock()
	defer wf.mu.Unlock()
	if t.State == "" {
		t.State = TaskPending
	}
	tc := t
	wf.tasks[t.ID] = &tc
}

// Task returns a copy of the current state for taskID, if tracked.
func (wf *Runtime) Task(taskID string) (Task, bool) {
	wf.mu.Lock()
	defer wf.mu.Unlock()
	t, ok := wf.tasks[taskID]
	if !ok {
		return Task{}, false
	}
	return *t, true
}

// taskTransitionPayload is the InternalSystemPayload.Data shape for a task
// transition submitted onto the workflow's internal_system queue.
type taskTransitionPayload struct {
	TaskID string
	To     TaskState
}

// TransitionTask enqueues a task-state change for the workflow's own worker
// loop to apply (task state is entity-owned, mutated only from Handle).
func (wf *Runtime) TransitionTask(ctx context.Context, taskID string, to TaskState) error {
	return wf.Submit(ctx, queue.InternalSystem, event.New(event.InternalSystem, event.InternalSystemPayload{
		Name: "task_transition",
		Data: taskTransitionPayload{TaskID: taskID, To: to},
	}))
}

func (wf *Runtime) handle(ctx context.Context, evt event.Event) error {
	switch evt.Kind() {
	case event.InternalSystem:
		p, ok := evt.Payload().(event.InternalSystemPayload)
		if !ok {
			return nil
		}
		if p.Name == team.Stop {
			return team.ErrStopped()
		}
		if p.Name == "task_transition" {
			return wf.applyTransition(ctx, p.Data)
		}
		return nil
	case event.UserMessageReceived:
		// Workflow-level user input is opaque housekeeping here; concrete
		// workflows route it to whichever task/member their graph names.
		return nil
	default:
		return nil
	}
}

func (wf *Runtime) applyTransition(ctx context.Context, data any) error {
	tp, ok := data.(taskTransitionPayload)
	if !ok {
		return fmt.Errorf("workflowrt: malformed task transition payload")
	}
	wf.mu.Lock()
	task, ok := wf.tasks[tp.TaskID]
	if !ok {
		wf.mu.Unlock()
		return fmt.Errorf("workflowrt: unknown task %q", tp.TaskID)
	}
	task.State = tp.To
	assignee := task.AssigneeID
	input := task.Input
	mode := wf.mode
	member := wf.members[assignee]
	wf.mu.Unlock()

	if mode != SystemDriven || tp.To != TaskRunnable || member == nil {
		return nil
	}
	return member.Submit(ctx, queue.InterAgentMessage, event.New(event.InterAgentMessage, event.InterAgentMessagePayload{
		FromMemberID: wf.EntityID(),
		ToMemberID:   assignee,
		Text:         input,
		TurnID:       tp.TaskID,
	}))
}
