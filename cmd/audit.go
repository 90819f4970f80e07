package cmd

import (
	"github.com/spf13/cobra"
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Administrative audit commands",
	Long:  `View and inspect credential verification audit entries on the server. Requires admin scope.`,
}

func init() {
	rootCmd.AddCommand(auditCmd)
}
