package app

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/kiln/internal/adapters/config"   //nolint:depguard // Wired in app layer
	"go.trai.ch/kiln/internal/adapters/logger"   //nolint:depguard // Wired in app layer
	"go.trai.ch/kiln/internal/adapters/registry" //nolint:depguard // Wired in app layer
	"go.trai.ch/kiln/internal/core/ports"
	"go.trai.ch/kiln/internal/engine/task"
)

const (
	// EngineNodeID is the unique identifier for the Engine Graft node.
	EngineNodeID graft.ID = "app.engine"
	// ComponentsNodeID is the unique identifier for the components Graft node.
	ComponentsNodeID graft.ID = "app.components"
)

func init() {
	graft.Register(graft.Node[*Engine]{
		ID:        EngineNodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			task.NodeID,
			registry.NodeID,
			logger.NodeID,
		},
		Run: func(ctx context.Context) (*Engine, error) {
			manager, err := graft.Dep[*task.Manager](ctx)
			if err != nil {
				return nil, err
			}
			reg, err := graft.Dep[ports.StageRegistry](ctx)
			if err != nil {
				return nil, err
			}
			sink, err := graft.Dep[ports.EventSink](ctx)
			if err != nil {
				return nil, err
			}
			return New(manager, reg, sink), nil
		},
	})

	graft.Register(graft.Node[*Components]{
		ID:        ComponentsNodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			EngineNodeID,
			config.SettingsNodeID,
		},
		Run: func(ctx context.Context) (*Components, error) {
			engine, err := graft.Dep[*Engine](ctx)
			if err != nil {
				return nil, err
			}
			settings, err := graft.Dep[config.Settings](ctx)
			if err != nil {
				return nil, err
			}
			return &Components{Engine: engine, Settings: settings}, nil
		},
	})
}
