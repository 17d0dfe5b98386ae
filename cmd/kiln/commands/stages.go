package commands

import (
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func (c *CLI) newStagesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stages",
		Short: "List registered content types and their parameters",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			reg := c.components.Engine.Registry()

			tw := table.NewWriter()
			tw.SetOutputMirror(os.Stdout)
			tw.SetStyle(table.StyleRounded)
			tw.AppendHeader(table.Row{"Type", "Parameter", "Kind", "Default"})
			for _, name := range reg.Types() {
				fields, err := reg.Fields(name)
				if err != nil {
					return err
				}
				if len(fields) == 0 {
					tw.AppendRow(table.Row{name, "-", "-", "-"})
					continue
				}
				for _, f := range fields {
					tw.AppendRow(table.Row{name, f.Name, f.Type, f.Default})
				}
			}
			tw.Render()
			return nil
		},
	}
}
