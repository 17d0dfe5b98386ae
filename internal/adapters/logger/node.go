package logger

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/kiln/internal/core/ports"
)

// NodeID is the unique identifier for the event sink Graft node.
const NodeID graft.ID = "adapter.event_sink"

func init() {
	graft.Register(graft.Node[ports.EventSink]{
		ID:        NodeID,
		Cacheable: true,
		Run: func(_ context.Context) (ports.EventSink, error) {
			return New(), nil
		},
	})
}
