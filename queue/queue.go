// Package queue implements the per-entity input queue manager: a fixed set
// of bounded, FIFO, typed queues selected in a deterministic priority order.
// The manager is single-writer — only the owning worker loop calls Next;
// other goroutines submit through Enqueue, which is safe for concurrent
// callers because the underlying channels do the serialization.
package queue

import (
	"context"
	"errors"

	"github.com/flowmesh/agentcore/event"
)

// Kind identifies one of an entity's input queues.
type Kind string

const (
	UserMessage           Kind = "user_message"
	InterAgentMessage     Kind = "inter_agent_message"
	ToolInvocationRequest Kind = "tool_invocation_request"
	ToolResult            Kind = "tool_result"
	ToolApproval          Kind = "tool_approval"
	InternalSystem        Kind = "internal_system"
)

// AgentPriority is the fixed priority order for the six agent queues,
// highest priority first.
var AgentPriority = []Kind{
	UserMessage,
	InterAgentMessage,
	ToolInvocationRequest,
	ToolResult,
	ToolApproval,
	InternalSystem,
}

// CompositePriority is the fixed priority order for Team/Workflow entities,
// which only expose two queues.
var CompositePriority = []Kind{
	UserMessage,
	InternalSystem,
}

// ErrQueueFull is returned by TryEnqueue when the target queue is at
// capacity. Enqueue (the blocking variant) never returns it; it blocks the
// caller instead.
var ErrQueueFull = errors.New("queue: full")

// ErrUnknownKind is returned when a caller references a Kind the Set was not
// constructed with.
var ErrUnknownKind = errors.New("queue: unknown kind")

// Set is a fixed mapping from Kind to a bounded FIFO channel, consulted in
// Priority order by Next. A Set must be constructed inside the worker loop
// that will own it so the channels are bound to that goroutine's lifetime.
type Set struct {
	priority []Kind
	chans    map[Kind]chan event.Event
	// buffered holds items already pulled out of a channel by a previous
	// FIRST_COMPLETED wait but not yet returned by Next; this is what makes
	// step 2 of the algorithm "buffer, don't reinsert at tail".
	buffered map[Kind][]event.Event
}

// NewSet constructs a Set with one bounded channel per Kind in priority,
// each with the given per-queue capacity.
func NewSet(priority []Kind, capacity int) *Set {
	if capacity <= 0 {
		capacity = 1
	}
	s := &Set{
		priority: append([]Kind(nil), priority...),
		chans:    make(map[Kind]chan event.Event, len(priority)),
		buffered: make(map[Kind][]event.Event, len(priority)),
	}
	for _, k := range priority {
		s.chans[k] = make(chan event.Event, capacity)
	}
	return s
}

// NewAgentSet constructs the six-queue Set an Agent entity uses.
func NewAgentSet(capacity int) *Set { return NewSet(AgentPriority, capacity) }

// NewCompositeSet constructs the two-queue Set a Team or Workflow entity
// uses.
func NewCompositeSet(capacity int) *Set { return NewSet(CompositePriority, capacity) }

// Enqueue blocks until evt has been accepted onto the named queue or ctx is
// canceled. It is safe to call from any goroutine, including ones other than
// the owning worker loop.
func (s *Set) Enqueue(ctx context.Context, kind Kind, evt event.Event) error {
	ch, ok := s.chans[kind]
	if !ok {
		return ErrUnknownKind
	}
	select {
	case ch <- evt:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TryEnqueue attempts a non-blocking enqueue, returning ErrQueueFull
// immediately if the target queue is at capacity.
func (s *Set) TryEnqueue(kind Kind, evt event.Event) error {
	ch, ok := s.chans[kind]
	if !ok {
		return ErrUnknownKind
	}
	select {
	case ch <- evt:
		return nil
	default:
		return ErrQueueFull
	}
}

// Next implements the two-phase, cancellation-safe selection algorithm:
// drain any buffered/ready items in priority order first; only block on all
// channels simultaneously when every queue is empty. It must only be called
// from the entity's single worker loop.
//
// Next returns (event, true, nil) when an event was selected, (zero, false,
// nil) when ctx's deadline elapsed with nothing available, and a non-nil
// error only if ctx itself is canceled while blocked.
func (s *Set) Next(ctx context.Context) (event.Event, bool, error) {
	if evt, ok := s.drainBuffered(); ok {
		return evt, true, nil
	}
	if evt, ok := s.drainReady(); ok {
		return evt, true, nil
	}

	// Phase 2: block on all queues with a FIRST_COMPLETED wait, buffer
	// whatever becomes available, then re-run phase 1 so priority order is
	// respected even though the wait itself is unordered.
	if err := s.waitAny(ctx); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return event.Event{}, false, nil
		}
		return event.Event{}, false, err
	}
	if evt, ok := s.drainBuffered(); ok {
		return evt, true, nil
	}
	if evt, ok := s.drainReady(); ok {
		return evt, true, nil
	}
	return event.Event{}, false, nil
}

// drainBuffered returns the first buffered item, in priority order, without
// touching the channels.
func (s *Set) drainBuffered() (event.Event, bool) {
	for _, k := range s.priority {
		if q := s.buffered[k]; len(q) > 0 {
			evt := q[0]
			s.buffered[k] = q[1:]
			return evt, true
		}
	}
	return event.Event{}, false
}

// drainReady performs a non-blocking priority scan of the channels
// themselves (phase 1 of the algorithm).
func (s *Set) drainReady() (event.Event, bool) {
	for _, k := range s.priority {
		select {
		case evt := <-s.chans[k]:
			return evt, true
		default:
		}
	}
	return event.Event{}, false
}

// waitAny blocks until at least one queue has an item ready (or ctx ends),
// then buffers every item that was ready at that moment across all queues
// (not just the one that first became ready) so a burst of concurrent
// producers is captured in one pass rather than trickling through repeated
// single-item waits. Buffered items are returned later in priority order by
// drainBuffered, never re-appended behind older items on the same queue.
func (s *Set) waitAny(ctx context.Context) error {
	cases := make([]selectCase, 0, len(s.priority))
	for _, k := range s.priority {
		cases = append(cases, selectCase{kind: k, ch: s.chans[k]})
	}
	evt, kind, err := selectFirst(ctx, cases)
	if err != nil {
		return err
	}
	s.buffered[kind] = append(s.buffered[kind], evt)
	// Opportunistically sweep any other queues that also happened to have
	// data ready at the same instant, so Next's next call doesn't need a
	// second round trip through the scheduler for events that were already
	// available.
	for _, k := range s.priority {
		if k == kind {
			continue
		}
		select {
		case e := <-s.chans[k]:
			s.buffered[k] = append(s.buffered[k], e)
		default:
		}
	}
	return nil
}

type selectCase struct {
	kind Kind
	ch   chan event.Event
}
