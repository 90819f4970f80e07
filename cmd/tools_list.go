package cmd

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var toolsListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List the tools the server offers",
	RunE: func(cmd *cobra.Command, args []string) error {
		cli, err := f.GetClient()
		if err != nil {
			return err
		}

		log.Debug().Msg("Retrieving tools...")
		tools, correlation, err := cli.ListTools(cmd.Context())
		if err != nil {
			return logError(err, correlation, "failed to list tools")
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Name", "Description"})

		for _, tool := range tools {
			t.AppendRow(table.Row{
				color.New(color.Bold).Sprint(tool.Name),
				truncate(tool.Description, 80),
			})
		}

		applyTableFormat(t)
		t.Render()

		fmt.Printf("%d tools available\n", len(tools))
		return nil
	},
}

func init() {
	toolsCmd.AddCommand(toolsListCmd)
}
