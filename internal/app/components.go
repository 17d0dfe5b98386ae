package app

import "go.trai.ch/kiln/internal/adapters/config"

// Components contains the initialized application components handed to the
// CLI layer.
type Components struct {
	Engine   *Engine
	Settings config.Settings
}
