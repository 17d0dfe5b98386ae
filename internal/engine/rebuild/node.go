package rebuild

import (
	"context"

	"github.com/grindlemire/graft"
)

// NodeID is the unique identifier for the rebuild decider Graft node.
const NodeID graft.ID = "engine.rebuild_decider"

func init() {
	graft.Register(graft.Node[*Decider]{
		ID:        NodeID,
		Cacheable: true,
		Run: func(_ context.Context) (*Decider, error) {
			return NewDecider(), nil
		},
	})
}
