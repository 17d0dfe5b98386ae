package commands

import (
	"github.com/spf13/cobra"
)

func (c *CLI) newCleanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clean",
		Short: "Delete the project's cache and output artifacts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			proj, err := c.loadProject()
			if err != nil {
				return err
			}
			op, err := c.components.Engine.Clean(proj)
			if err != nil {
				return err
			}
			_, err = c.awaitOperation(cmd.Context(), op)
			return err
		},
	}
}
