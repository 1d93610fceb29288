package team

import (
	"context"
	"fmt"
	"sync"

	"github.com/flowmesh/agentcore/event"
	"github.com/flowmesh/agentcore/hooks"
	"github.com/flowmesh/agentcore/queue"
)

// SendMessageRequest is the decoded argument shape of a send_message_to
// tool call, however a member's tool adapter happens to produce it.
type SendMessageRequest struct {
	FromMemberID string
	ToMemberID   string
	Text         string
	TurnID       string
}

// TeamManager routes messages addressed to the team (to its coordinator
// member) and translates send_message_to requests from any member into an
// InterAgentMessage delivery on the addressed member's own input queue. It
// holds no state of its own beyond the member registry; all entity state
// lives in each Member's own Runtime/worker.
type TeamManager struct {
	mu          sync.RWMutex
	coordinator string
	members     map[string]Member
	runtime     *Runtime
}

// NewTeamManager constructs a manager routing to the given coordinator
// member ID by default for externally addressed team messages.
func NewTeamManager(coordinatorID string) *TeamManager {
	return &TeamManager{coordinator: coordinatorID, members: make(map[string]Member)}
}

// BindRuntime associates the owning team's Runtime with this manager so
// subsequent Register calls can bridge a member's stream events (if it
// exposes a Bus) into the team's own Bus automatically.
func (m *TeamManager) BindRuntime(rt *Runtime) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runtime = rt
}

// hooksBusMember is satisfied by any Member that also exposes its own
// stream event bus, e.g. a worker.Worker or a nested team.Runtime.
type hooksBusMember interface {
	Bus() hooks.Bus
}

// Register adds or replaces a member under id. If the team's Runtime has
// been bound via BindRuntime and member exposes a hooks.Bus, its events are
// bridged into the team's own Bus under id.
func (m *TeamManager) Register(id string, member Member) {
	m.mu.Lock()
	m.members[id] = member
	rt := m.runtime
	m.mu.Unlock()

	if rt == nil {
		return
	}
	if bm, ok := member.(hooksBusMember); ok {
		_ = rt.BridgeChild(id, bm)
	}
}

// Deregister removes a member, e.g. once its Runtime has shut down.
func (m *TeamManager) Deregister(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.members, id)
}

// RouteExternal enqueues a message addressed to the team as a UserMessage on
// the coordinator's own queue.
func (m *TeamManager) RouteExternal(ctx context.Context, msg event.UserMessage) error {
	return m.deliver(ctx, m.coordinator, event.New(event.UserMessageReceived, msg))
}

// RouteSendMessageTo translates one send_message_to tool intent into an
// InterAgentMessage delivered to its recipient's input queue.
func (m *TeamManager) RouteSendMessageTo(ctx context.Context, req SendMessageRequest) error {
	return m.deliver(ctx, req.ToMemberID, event.New(event.InterAgentMessage, event.InterAgentMessagePayload{
		FromMemberID: req.FromMemberID,
		ToMemberID:   req.ToMemberID,
		Text:         req.Text,
		TurnID:       req.TurnID,
	}))
}

func (m *TeamManager) deliver(ctx context.Context, memberID string, evt event.Event) error {
	m.mu.RLock()
	member, ok := m.members[memberID]
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("team: unknown member %q", memberID)
	}
	kind := queue.UserMessage
	if evt.Kind() == event.InterAgentMessage {
		kind = queue.InterAgentMessage
	}
	return member.Submit(ctx, kind, evt)
}
