package cmd

import (
	"github.com/spf13/cobra"
)

var datasourcesCmd = &cobra.Command{
	Use:     "datasources",
	Aliases: []string{"ds"},
	Short:   "Inspect the configured Prometheus datasources",
}

func init() {
	rootCmd.AddCommand(datasourcesCmd)
}
