package hooks

import (
	"context"
	"time"

	"github.com/flowmesh/agentcore/status"
	"github.com/flowmesh/agentcore/stream"
)

// BusNotifier adapts a Bus to the status.Notifier contract, publishing a
// stream.StatusChanged event for every lifecycle transition a status.Manager
// applies. Construct one per entity and pass it as the Manager's Notifier.
type BusNotifier struct {
	bus Bus
}

// NewBusNotifier constructs a BusNotifier publishing onto bus.
func NewBusNotifier(bus Bus) *BusNotifier {
	return &BusNotifier{bus: bus}
}

// NotifyStatusChanged implements status.Notifier.
func (n *BusNotifier) NotifyStatusChanged(ctx context.Context, entityID string, source, target status.Status) {
	_ = n.bus.Publish(ctx, stream.NewStatusChanged(entityID, time.Now(), string(source), string(target)))
}
