// Package worker runs the single-threaded cooperative scheduler for one
// entity (agent, team, or workflow): it owns that entity's queue.Set, pulls
// events off it in priority order, and dispatches each to the handler for
// its Kind. Suspension points (queue wait, awaiting LLM chunks, awaiting
// tool execution) are explicit — there is exactly one goroutine driving an
// entity's state, so no locks are needed on entity-owned fields.
package worker

import (
	"context"
	"errors"
	"time"

	"github.com/flowmesh/agentcore/event"
	"github.com/flowmesh/agentcore/hooks"
	"github.com/flowmesh/agentcore/invocation"
	"github.com/flowmesh/agentcore/model"
	"github.com/flowmesh/agentcore/queue"
	"github.com/flowmesh/agentcore/segment"
	"github.com/flowmesh/agentcore/status"
	"github.com/flowmesh/agentcore/stream"
	"github.com/flowmesh/agentcore/telemetry"
	"github.com/flowmesh/agentcore/toollifecycle"
)

// Options configures a Worker. Use the With* functions with New.
type Options struct {
	EntityID     string
	QueueCap     int
	Model        model.Client
	ModelClass   model.ModelClass
	ParserOpts   segment.Options
	ToolRegistry *toollifecycle.Registry
	Tools        []*model.ToolDefinition
	SystemPrompt string
	Logger       telemetry.Logger
	Metrics      telemetry.Metrics
	Notifier     status.Notifier
	// Bus is the entity's stream event bus. Defaults to a fresh in-process
	// hooks.Bus; callers needing external delivery register a
	// hooks.StreamSubscriber against it (or against Worker.Bus()).
	Bus hooks.Bus

	// Bootstrap runs once before AgentReady. A non-nil error aborts startup
	// and transitions directly to ERROR.
	Bootstrap func(ctx context.Context) error
	// Shutdown runs once after SHUTTING_DOWN is entered. The worker does
	// not advance the status past SHUTTING_DOWN.
	Shutdown func(ctx context.Context) error
}

// Option mutates Options during construction.
type Option func(*Options)

func WithModel(c model.Client, class model.ModelClass) Option {
	return func(o *Options) { o.Model = c; o.ModelClass = class }
}
func WithQueueCapacity(n int) Option         { return func(o *Options) { o.QueueCap = n } }
func WithSystemPrompt(s string) Option       { return func(o *Options) { o.SystemPrompt = s } }
func WithLogger(l telemetry.Logger) Option   { return func(o *Options) { o.Logger = l } }
func WithMetrics(m telemetry.Metrics) Option { return func(o *Options) { o.Metrics = m } }
func WithNotifier(n status.Notifier) Option  { return func(o *Options) { o.Notifier = n } }
func WithBus(b hooks.Bus) Option             { return func(o *Options) { o.Bus = b } }
func WithParserOptions(p segment.Options) Option {
	return func(o *Options) { o.ParserOpts = p }
}
func WithToolRegistry(r *toollifecycle.Registry) Option {
	return func(o *Options) { o.ToolRegistry = r }
}
func WithToolDefinitions(defs []*model.ToolDefinition) Option {
	return func(o *Options) { o.Tools = defs }
}
func WithBootstrap(f func(ctx context.Context) error) Option {
	return func(o *Options) { o.Bootstrap = f }
}
func WithShutdown(f func(ctx context.Context) error) Option {
	return func(o *Options) { o.Shutdown = f }
}

// Worker is the per-agent cooperative scheduler. It is not safe for
// concurrent use by more than one goroutine: callers submit events via
// Submit (which is safe from other goroutines, since it only writes to a
// channel) and drive the loop by calling Run from exactly one goroutine.
type Worker struct {
	opts Options

	queues     *queue.Set
	statusMgr  *status.Manager
	toolGate   *toollifecycle.Gate
	toolExec   *toollifecycle.Executor
	invAdapter *invocation.Adapter
	bus        hooks.Bus

	turn *turnState
}

// turnState tracks the in-flight LLM turn: the transcript assembled so far
// and the aggregator collecting concurrently executing tool results.
type turnState struct {
	id         string
	messages   []*model.Message
	aggregator *toollifecycle.Aggregator
}

// New constructs a Worker. It must be called from the goroutine that will
// subsequently call Run, so the entity's queue channels are bound to that
// goroutine's lifetime.
func New(opts ...Option) *Worker {
	o := Options{QueueCap: 64}
	for _, opt := range opts {
		opt(&o)
	}
	if o.Logger == nil {
		o.Logger = telemetry.NewNoopLogger()
	}
	if o.Metrics == nil {
		o.Metrics = telemetry.NewNoopMetrics()
	}
	if o.ToolRegistry == nil {
		o.ToolRegistry = toollifecycle.NewRegistry()
	}
	if o.Bus == nil {
		o.Bus = hooks.NewBus()
	}
	if o.Notifier == nil {
		o.Notifier = hooks.NewBusNotifier(o.Bus)
	}

	w := &Worker{
		opts:       o,
		queues:     queue.NewAgentSet(o.QueueCap),
		toolGate:   toollifecycle.NewGate(o.ToolRegistry),
		toolExec:   toollifecycle.NewExecutor(o.ToolRegistry, o.Logger),
		invAdapter: invocation.NewAdapter(invocation.DefaultRegistry()),
		bus:        o.Bus,
	}
	w.statusMgr = status.NewManager(o.EntityID, o.Notifier, o.Logger)
	w.toolExec.OnPhase = func(ctx context.Context, invocationID string, phase toollifecycle.Phase) {
		o.Logger.Debug(ctx, "tool phase", "invocation_id", invocationID, "phase", string(phase))
		w.publishToolPhase(ctx, invocationID, phase)
	}
	w.toolGate.OnApproval = func(ctx context.Context, invocationID string, phase toollifecycle.ApprovalPhase) {
		w.publishApprovalPhase(ctx, invocationID, phase)
	}
	return w
}

// Bus returns the entity's stream event bus, for registering subscribers or
// for a parent team or workflow Runtime to bridge as a child (see
// team.Runtime.BridgeChild).
func (w *Worker) Bus() hooks.Bus { return w.bus }

func (w *Worker) publishToolPhase(ctx context.Context, invocationID string, phase toollifecycle.Phase) {
	now := time.Now()
	var evt stream.Event
	switch phase {
	case toollifecycle.PhaseStarted:
		evt = stream.NewToolExecutionStarted(w.opts.EntityID, now, invocationID)
	case toollifecycle.PhaseSucceeded:
		evt = stream.NewToolExecutionSucceeded(w.opts.EntityID, now, invocationID)
	case toollifecycle.PhaseFailed:
		evt = stream.NewToolExecutionFailed(w.opts.EntityID, now, invocationID, "")
	default:
		return
	}
	_ = w.bus.Publish(ctx, evt)
}

func (w *Worker) publishApprovalPhase(ctx context.Context, invocationID string, phase toollifecycle.ApprovalPhase) {
	now := time.Now()
	var evt stream.Event
	switch phase {
	case toollifecycle.PhaseApprovalRequested:
		evt = stream.NewToolApprovalRequested(w.opts.EntityID, now, invocationID, "", w.currentTurnID())
	case toollifecycle.PhaseApproved:
		evt = stream.NewToolApproved(w.opts.EntityID, now, invocationID, w.currentTurnID())
	case toollifecycle.PhaseDenied:
		evt = stream.NewToolDenied(w.opts.EntityID, now, invocationID, w.currentTurnID(), "")
	default:
		return
	}
	_ = w.bus.Publish(ctx, evt)
}

func (w *Worker) publishSegments(ctx context.Context, events []segment.Event) {
	now := time.Now()
	for _, e := range events {
		_ = w.bus.Publish(ctx, stream.NewSegmentEvent(w.opts.EntityID, now, e.SegmentID, string(e.Kind), string(e.SegType), e.Delta))
	}
}

func (w *Worker) currentTurnID() string {
	if w.turn == nil {
		return ""
	}
	return w.turn.id
}

// Submit enqueues evt on the queue matching kind. Safe to call from any
// goroutine; blocks if that queue is at capacity.
func (w *Worker) Submit(ctx context.Context, kind queue.Kind, evt event.Event) error {
	return w.queues.Enqueue(ctx, kind, evt)
}

// Status returns the entity's current lifecycle status.
func (w *Worker) Status() status.Status {
	return w.statusMgr.Current()
}

var errStopped = errors.New("worker: stopped")

// Run bootstraps the entity and then drives its event loop until ctx is
// canceled or a terminal AgentStopped/AgentError transition occurs. It must
// be called from exactly one goroutine — the one that called New.
func (w *Worker) Run(ctx context.Context) error {
	if err := w.bootstrap(ctx); err != nil {
		w.statusMgr.Apply(ctx, event.AgentError, event.ErrorPayload{Err: err, Source: "bootstrap"})
		return err
	}
	w.statusMgr.Apply(ctx, event.AgentReady, nil)

	for {
		evt, ok, err := w.queues.Next(ctx)
		if err != nil {
			return w.shutdown(ctx, err)
		}
		if !ok {
			continue // ctx deadline elapsed with nothing to do; loop again
		}
		if err := w.dispatch(ctx, evt); err != nil {
			if errors.Is(err, errStopped) {
				return w.shutdown(ctx, nil)
			}
			w.opts.Logger.Error(ctx, "handler failed", "kind", string(evt.Kind()), "error", err)
			w.statusMgr.Apply(ctx, event.AgentError, event.ErrorPayload{Err: err, Source: string(evt.Kind())})
			return w.shutdown(ctx, err)
		}
	}
}

func (w *Worker) bootstrap(ctx context.Context) error {
	if w.opts.Bootstrap == nil {
		return nil
	}
	return w.opts.Bootstrap(ctx)
}

func (w *Worker) shutdown(ctx context.Context, cause error) error {
	w.statusMgr.Apply(ctx, event.AgentStopped, nil)
	if w.opts.Shutdown != nil {
		if err := w.opts.Shutdown(ctx); err != nil {
			w.opts.Logger.Warn(ctx, "shutdown hook failed", "error", err)
		}
	}
	return cause
}
