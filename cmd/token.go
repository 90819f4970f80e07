package cmd

import (
	"github.com/spf13/cobra"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Inspect bearer credentials",
	Long: `Utilities for working with bearer credentials: verify them against the
configured authenticator chain, compute their cache fingerprint, or dump
unverified JWT claims.`,
}

func init() {
	rootCmd.AddCommand(tokenCmd)
}
