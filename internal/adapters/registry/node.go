package registry

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/kiln/internal/core/ports"
)

// NodeID is the unique identifier for the stage registry Graft node.
const NodeID graft.ID = "adapter.stage_registry"

func init() {
	graft.Register(graft.Node[ports.StageRegistry]{
		ID:        NodeID,
		Cacheable: true,
		Run: func(_ context.Context) (ports.StageRegistry, error) {
			return NewDefault()
		},
	})
}
