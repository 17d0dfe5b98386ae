package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/kiln/internal/adapters/config"
	"go.trai.ch/kiln/internal/core/domain"
)

func writeProject(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "kiln.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Full(t *testing.T) {
	path := writeProject(t, `
name: demo
root: assets
intermediateDir: build/obj
outputDir: build/bin
pack:
  mode: packed
  compress: true
  high: true
  sizeLimit: 1048576
items:
  - source: textures/wall.png
    type: raw
  - source: scripts/intro.txt
    name: intro
    type: text
    params:
      - key: case
        value: upper
      - key: prefix
        value: "# "
`)

	proj, err := config.Load(path)
	require.NoError(t, err)

	base := filepath.Dir(path)
	assert.Equal(t, "demo", proj.Name)
	assert.Equal(t, filepath.Join(base, "assets"), proj.Layout.Root)
	assert.Equal(t, filepath.Join(base, "build/obj"), proj.Layout.IntermediateDir)
	assert.Equal(t, filepath.Join(base, "build/bin"), proj.Layout.OutputDir)
	assert.True(t, proj.Packed)
	assert.True(t, proj.Compress)
	assert.True(t, proj.HighCompress)
	assert.Equal(t, int64(1048576), proj.PackSizeLimit)

	require.Len(t, proj.Items, 2)
	assert.Equal(t, "textures/wall", proj.Items[0].Name)
	assert.Equal(t, "raw", proj.Items[0].Type)
	assert.Equal(t, "intro", proj.Items[1].Name)
	assert.Equal(t, domain.ParameterList{
		{Key: "case", Value: "upper"},
		{Key: "prefix", Value: "# "},
	}, proj.Items[1].Params)
}

func TestLoad_Defaults(t *testing.T) {
	path := writeProject(t, `
items:
  - source: a.bin
    type: raw
`)

	proj, err := config.Load(path)
	require.NoError(t, err)

	base := filepath.Dir(path)
	assert.Equal(t, filepath.Base(base), proj.Name)
	assert.Equal(t, base, proj.Layout.Root)
	assert.Equal(t, filepath.Join(base, "obj"), proj.Layout.IntermediateDir)
	assert.Equal(t, filepath.Join(base, "bin"), proj.Layout.OutputDir)
	assert.True(t, proj.Packed)
	assert.False(t, proj.Compress)
	assert.Equal(t, int64(domain.DefaultPackSizeLimit), proj.PackSizeLimit)
	assert.Equal(t, "a", proj.Items[0].Name)
}

func TestLoad_LooseMode(t *testing.T) {
	path := writeProject(t, `
pack:
  mode: loose
items:
  - source: a.bin
    type: raw
`)

	proj, err := config.Load(path)
	require.NoError(t, err)
	assert.False(t, proj.Packed)
}

func TestLoad_InvalidMode(t *testing.T) {
	path := writeProject(t, `
pack:
  mode: zipped
`)

	_, err := config.Load(path)
	assert.ErrorContains(t, err, "invalid pack mode")
}

func TestLoad_MissingFields(t *testing.T) {
	noSource := writeProject(t, `
items:
  - type: raw
`)
	_, err := config.Load(noSource)
	assert.ErrorContains(t, err, "missing a source path")

	noType := writeProject(t, `
items:
  - source: a.bin
`)
	_, err = config.Load(noType)
	assert.ErrorContains(t, err, "missing a content type")
}

func TestLoad_DuplicateName(t *testing.T) {
	// Two sources collapsing to the same default name collide.
	path := writeProject(t, `
items:
  - source: hero.png
    type: raw
  - source: hero.jpg
    type: raw
`)

	_, err := config.Load(path)
	assert.True(t, errors.Is(err, domain.ErrDuplicateItem))
}

func TestLoad_DuplicateParamKey(t *testing.T) {
	path := writeProject(t, `
items:
  - source: a.txt
    type: text
    params:
      - key: case
        value: upper
      - key: case
        value: lower
`)

	_, err := config.Load(path)
	assert.ErrorContains(t, err, "duplicate parameter key")
}

func TestLoad_FileMissing(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoad_BadYAML(t *testing.T) {
	path := writeProject(t, "items: [not: {closed")
	_, err := config.Load(path)
	assert.Error(t, err)
}
