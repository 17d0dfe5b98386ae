package commands_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/kiln/cmd/kiln/commands"
	"go.trai.ch/kiln/internal/adapters/config"
	"go.trai.ch/kiln/internal/adapters/registry"
	"go.trai.ch/kiln/internal/app"
	"go.trai.ch/kiln/internal/build"
	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/kiln/internal/engine/pack"
	"go.trai.ch/kiln/internal/engine/rebuild"
	"go.trai.ch/kiln/internal/engine/task"
)

type nopSink struct{}

func (nopSink) Emit(domain.LogEvent) {}
func (nopSink) Close() error         { return nil }

func newTestCLI(t *testing.T) (*commands.CLI, *bytes.Buffer) {
	t.Helper()
	table, err := registry.NewDefault()
	require.NoError(t, err)
	sink := nopSink{}
	manager := task.NewManager(table, sink, rebuild.NewDecider(), pack.New(sink), 1)
	components := &app.Components{
		Engine:   app.New(manager, table, sink),
		Settings: config.Settings{Workers: 1},
	}

	cli := commands.New(components)
	out := new(bytes.Buffer)
	cli.SetOutput(out)
	return cli, out
}

// writeFixture lays out a tiny loose-mode project with one raw item.
func writeFixture(t *testing.T) (projectFile string, layout domain.Layout) {
	t.Helper()
	dir := t.TempDir()
	projectFile = filepath.Join(dir, "kiln.yaml")
	require.NoError(t, os.WriteFile(projectFile, []byte(`
name: cli-test
pack:
  mode: loose
items:
  - source: asset.bin
    type: raw
`), 0o644))

	src := filepath.Join(dir, "asset.bin")
	require.NoError(t, os.WriteFile(src, []byte("bytes"), 0o644))
	old := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(src, old, old))

	layout = domain.Layout{
		Root:            dir,
		IntermediateDir: filepath.Join(dir, "obj"),
		OutputDir:       filepath.Join(dir, "bin"),
	}
	return projectFile, layout
}

func TestVersionCommand(t *testing.T) {
	cli, out := newTestCLI(t)
	cli.SetArgs([]string{"version"})

	require.NoError(t, cli.Execute(context.Background()))
	assert.Contains(t, out.String(), build.Version)
}

func TestBuildCommand(t *testing.T) {
	cli, _ := newTestCLI(t)
	projectFile, layout := writeFixture(t)

	cli.SetArgs([]string{"build", "--project", projectFile})
	require.NoError(t, cli.Execute(context.Background()))

	assert.FileExists(t, layout.ManifestPath())
	assert.FileExists(t, filepath.Join(layout.OutputDir, "asset.kno"))
}

func TestBuildCommand_MissingProjectFile(t *testing.T) {
	cli, _ := newTestCLI(t)
	cli.SetArgs([]string{"build", "--project", filepath.Join(t.TempDir(), "absent.yaml")})

	err := cli.Execute(context.Background())
	assert.Error(t, err)
}

func TestCleanCommand(t *testing.T) {
	cli, _ := newTestCLI(t)
	projectFile, layout := writeFixture(t)

	cli.SetArgs([]string{"build", "--project", projectFile})
	require.NoError(t, cli.Execute(context.Background()))
	require.FileExists(t, layout.ManifestPath())

	cli.SetArgs([]string{"clean", "--project", projectFile})
	require.NoError(t, cli.Execute(context.Background()))
	assert.NoFileExists(t, layout.ManifestPath())
}

func TestStagesCommand(t *testing.T) {
	cli, _ := newTestCLI(t)
	cli.SetArgs([]string{"stages"})
	require.NoError(t, cli.Execute(context.Background()))
}

func TestUnknownCommand(t *testing.T) {
	cli, _ := newTestCLI(t)
	cli.SetArgs([]string{"smelt"})
	assert.Error(t, cli.Execute(context.Background()))
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 0, commands.ExitCode(nil))
	assert.Equal(t, 2, commands.ExitCode(domain.ErrCancelled))
	assert.Equal(t, 1, commands.ExitCode(errors.New("anything else")))
}
