// Package team implements the coordinator-routing runtime tier: a Team owns
// a two-queue scheduler (user_message, internal_system) identical in shape
// to worker.Worker's agent loop but without tool-call parsing or approval
// gating, plus a TeamManager that routes send_message_to tool intents from
// any member agent into InterAgentMessage deliveries on the addressed
// member's own queue.
package team

import (
	"context"
	"errors"

	"github.com/flowmesh/agentcore/event"
	"github.com/flowmesh/agentcore/hooks"
	"github.com/flowmesh/agentcore/queue"
	"github.com/flowmesh/agentcore/status"
	"github.com/flowmesh/agentcore/telemetry"
)

// Member is anything a Team can route a message to: an agent worker or a
// nested sub-team, addressed by a stable ID.
type Member interface {
	Submit(ctx context.Context, kind queue.Kind, evt event.Event) error
}

// Runtime is the two-queue cooperative scheduler shared by Team and
// Workflow entities. It never parses tool-call syntax; InternalSystem
// carries whatever housekeeping events the entity's mode needs (task
// activation ticks, shutdown signals).
type Runtime struct {
	entityID  string
	queues    *queue.Set
	statusMgr *status.Manager
	logger    telemetry.Logger
	handle    func(ctx context.Context, evt event.Event) error
	bootstrap func(ctx context.Context) error
	shutdown  func(ctx context.Context) error
	bus       hooks.Bus
	bridges   *EventBridgeSet
}

// RuntimeOptions configures a Runtime.
type RuntimeOptions struct {
	EntityID  string
	QueueCap  int
	Notifier  status.Notifier
	Logger    telemetry.Logger
	Handle    func(ctx context.Context, evt event.Event) error
	Bootstrap func(ctx context.Context) error
	Shutdown  func(ctx context.Context) error
	// Bus is the entity's stream event bus. Defaults to a fresh
	// hooks.Bus; if Notifier is unset the Runtime publishes its own
	// status transitions onto it via hooks.BusNotifier.
	Bus hooks.Bus
}

// NewRuntime constructs a two-queue Runtime. Handle is invoked for every
// event dequeued, after the status transition has been applied.
func NewRuntime(o RuntimeOptions) *Runtime {
	if o.QueueCap <= 0 {
		o.QueueCap = 64
	}
	if o.Logger == nil {
		o.Logger = telemetry.NewNoopLogger()
	}
	if o.Bus == nil {
		o.Bus = hooks.NewBus()
	}
	if o.Notifier == nil {
		o.Notifier = hooks.NewBusNotifier(o.Bus)
	}
	return &Runtime{
		entityID:  o.EntityID,
		queues:    queue.NewCompositeSet(o.QueueCap),
		statusMgr: status.NewManager(o.EntityID, o.Notifier, o.Logger),
		logger:    o.Logger,
		handle:    o.Handle,
		bootstrap: o.Bootstrap,
		shutdown:  o.Shutdown,
		bus:       o.Bus,
		bridges:   NewEventBridgeSet(o.EntityID, o.Bus),
	}
}

// Submit enqueues evt on the queue matching kind. Safe for concurrent use.
func (r *Runtime) Submit(ctx context.Context, kind queue.Kind, evt event.Event) error {
	return r.queues.Enqueue(ctx, kind, evt)
}

// Status returns the entity's current lifecycle status.
func (r *Runtime) Status() status.Status { return r.statusMgr.Current() }

// EntityID returns the ID this Runtime was constructed with.
func (r *Runtime) EntityID() string { return r.entityID }

// Bus returns the entity's stream event bus, for registering subscribers or
// for a parent Runtime to bridge as a child.
func (r *Runtime) Bus() hooks.Bus { return r.bus }

// BridgeChild subscribes to child's Bus and republishes every event it
// emits onto r's own Bus, wrapped in stream.ChildEvent so the parent's
// subscribers can tell which member produced it. The subscription's
// lifetime is tied to r: CloseAll (called from finish) tears down every
// bridge registered this way.
func (r *Runtime) BridgeChild(childID string, child interface{ Bus() hooks.Bus }) error {
	return r.bridges.Add(childID, child.Bus())
}

var errStopped = errors.New("team: stopped")

// Run bootstraps the entity, then drains its two queues in priority order
// until a stop signal or unrecoverable handler error ends the loop.
func (r *Runtime) Run(ctx context.Context) error {
	if r.bootstrap != nil {
		if err := r.bootstrap(ctx); err != nil {
			r.statusMgr.Apply(ctx, event.AgentError, event.ErrorPayload{Err: err, Source: "bootstrap"})
			return err
		}
	}
	r.statusMgr.Apply(ctx, event.AgentReady, nil)

	for {
		evt, ok, err := r.queues.Next(ctx)
		if err != nil {
			return r.finish(ctx, err)
		}
		if !ok {
			continue
		}
		r.statusMgr.Apply(ctx, evt.Kind(), evt.Payload())
		if r.handle == nil {
			continue
		}
		if err := r.handle(ctx, evt); err != nil {
			if errors.Is(err, errStopped) {
				return r.finish(ctx, nil)
			}
			r.logger.Error(ctx, "team handler failed", "entity_id", r.entityID, "error", err)
			r.statusMgr.Apply(ctx, event.AgentError, event.ErrorPayload{Err: err, Source: string(evt.Kind())})
			return r.finish(ctx, err)
		}
	}
}

func (r *Runtime) finish(ctx context.Context, cause error) error {
	if r.shutdown != nil {
		if err := r.shutdown(ctx); err != nil {
			r.logger.Warn(ctx, "team shutdown hook failed", "error", err)
		}
	}
	r.statusMgr.Apply(ctx, event.AgentStopped, nil)
	r.bridges.CloseAll()
	return cause
}

// Stop is the InternalSystemPayload.Name value Handle functions should
// compare against to request a clean Run exit (mirrors worker's "stop"
// convention).
const Stop = "stop"

// IsStopSignal reports whether payload is the InternalSystem stop request.
func IsStopSignal(payload any) bool {
	p, ok := payload.(event.InternalSystemPayload)
	return ok && p.Name == Stop
}

// ErrStopped is returned by a Handle function to end Run cleanly, the same
// way worker.errStopped does.
func ErrStopped() error { return errStopped }
