package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/kiln/internal/adapters/config"
)

func TestSettingsFromEnv_Defaults(t *testing.T) {
	t.Setenv("KILN_WORKERS", "")
	t.Setenv("KILN_PACK_SIZE_LIMIT", "")

	s, err := config.SettingsFromEnv()
	require.NoError(t, err)
	assert.Positive(t, s.Workers)
	assert.Zero(t, s.PackSizeLimit)
}

func TestSettingsFromEnv_Overrides(t *testing.T) {
	t.Setenv("KILN_WORKERS", "3")
	t.Setenv("KILN_PACK_SIZE_LIMIT", "1048576")

	s, err := config.SettingsFromEnv()
	require.NoError(t, err)
	assert.Equal(t, 3, s.Workers)
	assert.Equal(t, int64(1048576), s.PackSizeLimit)
}

func TestSettingsFromEnv_Invalid(t *testing.T) {
	t.Setenv("KILN_WORKERS", "many")

	_, err := config.SettingsFromEnv()
	assert.Error(t, err)
}
