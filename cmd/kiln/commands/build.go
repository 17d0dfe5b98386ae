package commands

import (
	"context"
	"errors"
	"fmt"
	"os"

	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"go.trai.ch/kiln/internal/adapters/config"
	"go.trai.ch/kiln/internal/app"
	"go.trai.ch/kiln/internal/core/domain"
)

func (c *CLI) newBuildCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build the project's content items",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rebuild, _ := cmd.Flags().GetBool("rebuild")
			release, _ := cmd.Flags().GetBool("release")

			proj, err := c.loadProject()
			if err != nil {
				return err
			}
			op, err := c.components.Engine.Build(proj, rebuild, release)
			if err != nil {
				return err
			}
			summary, err := c.awaitOperation(cmd.Context(), op)
			if summary != nil {
				renderSummary(summary)
			}
			return err
		},
	}
	cmd.Flags().Bool("rebuild", false, "Rebuild every item, ignoring the cache")
	cmd.Flags().Bool("release", false, "Release build (enables configured compression)")
	return cmd
}

func (c *CLI) loadProject() (*domain.Project, error) {
	proj, err := config.Load(c.projectPath())
	if err != nil {
		return nil, err
	}
	if limit := c.components.Settings.PackSizeLimit; limit > 0 {
		proj.PackSizeLimit = limit
	}
	return proj, nil
}

// awaitOperation waits for the operation, cancelling it cooperatively when
// the command context is interrupted.
func (c *CLI) awaitOperation(ctx context.Context, op *app.Operation) (*domain.BuildSummary, error) {
	watchDone := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			_ = c.components.Engine.Cancel()
		case <-watchDone:
		}
	}()
	summary, err := op.Wait()
	close(watchDone)
	return summary, err
}

func renderSummary(s *domain.BuildSummary) {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"Built", "Skipped", "Failed", "Output", "Archives", "Elapsed"})
	tw.AppendRow(table.Row{
		s.Built,
		s.Skipped,
		s.Failed,
		humanize.Bytes(uint64(s.OutputBytes)), //nolint:gosec // sizes are non-negative
		s.Archives,
		s.Elapsed.Round(timePrecision),
	})
	tw.Render()

	for _, r := range s.Results {
		if r.Succeeded {
			continue
		}
		fmt.Fprintf(os.Stdout, "failed: %s (%s): %s\n", r.Item.Name, r.Stage, r.Message)
	}
	if s.Cancelled {
		fmt.Fprintln(os.Stdout, "build cancelled")
	}
}

// timePrecision is the display rounding for elapsed times.
const timePrecision = time.Millisecond

// ExitCode maps an operation error to the process exit code: 0 for
// success, 2 for a cancelled operation, 1 for everything else.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	if errors.Is(err, domain.ErrCancelled) {
		return 2
	}
	return 1
}
