package task

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/kiln/internal/adapters/config"   //nolint:depguard // Wired in engine wiring
	"go.trai.ch/kiln/internal/adapters/logger"   //nolint:depguard // Wired in engine wiring
	"go.trai.ch/kiln/internal/adapters/registry" //nolint:depguard // Wired in engine wiring
	"go.trai.ch/kiln/internal/core/ports"
	"go.trai.ch/kiln/internal/engine/pack"
	"go.trai.ch/kiln/internal/engine/rebuild"
)

// NodeID is the unique identifier for the task manager Graft node.
const NodeID graft.ID = "engine.task_manager"

func init() {
	graft.Register(graft.Node[*Manager]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			registry.NodeID,
			logger.NodeID,
			rebuild.NodeID,
			pack.NodeID,
			config.SettingsNodeID,
		},
		Run: func(ctx context.Context) (*Manager, error) {
			reg, err := graft.Dep[ports.StageRegistry](ctx)
			if err != nil {
				return nil, err
			}
			sink, err := graft.Dep[ports.EventSink](ctx)
			if err != nil {
				return nil, err
			}
			decider, err := graft.Dep[*rebuild.Decider](ctx)
			if err != nil {
				return nil, err
			}
			packer, err := graft.Dep[*pack.Packer](ctx)
			if err != nil {
				return nil, err
			}
			settings, err := graft.Dep[config.Settings](ctx)
			if err != nil {
				return nil, err
			}
			return NewManager(reg, sink, decider, packer, settings.Workers), nil
		},
	})
}
