package pack

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/kiln/internal/adapters/logger" //nolint:depguard // Wired in engine wiring
	"go.trai.ch/kiln/internal/core/ports"
)

// NodeID is the unique identifier for the packer Graft node.
const NodeID graft.ID = "engine.packer"

func init() {
	graft.Register(graft.Node[*Packer]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			logger.NodeID,
		},
		Run: func(ctx context.Context) (*Packer, error) {
			sink, err := graft.Dep[ports.EventSink](ctx)
			if err != nil {
				return nil, err
			}
			return New(sink), nil
		},
	})
}
