package cmd

import (
	"github.com/spf13/cobra"
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "Interact with the MCP tools of a running server",
}

func init() {
	rootCmd.AddCommand(toolsCmd)
}
