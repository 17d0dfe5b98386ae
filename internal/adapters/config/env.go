package config

import (
	"runtime"

	"github.com/caarlos0/env/v11"
	"go.trai.ch/zerr"
)

// Settings are the engine settings read from the environment.
type Settings struct {
	// Workers is the fixed worker-thread count; defaults to the CPU count.
	Workers int `env:"KILN_WORKERS"`
	// PackSizeLimit overrides the project's archive size cap in bytes.
	PackSizeLimit int64 `env:"KILN_PACK_SIZE_LIMIT"`
}

// SettingsFromEnv parses the engine settings from the environment.
func SettingsFromEnv() (Settings, error) {
	var s Settings
	if err := env.ParseWithOptions(&s, env.Options{}); err != nil {
		return Settings{}, zerr.Wrap(err, "failed to parse environment settings")
	}
	if s.Workers <= 0 {
		s.Workers = runtime.NumCPU()
	}
	return s, nil
}
