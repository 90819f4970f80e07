package cmd

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/app-sre/proms-mcp/internal/buildinfo"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show information about the proms-mcp installation",
	RunE: func(cmd *cobra.Command, args []string) error {
		if viper.GetString(AddrKey) == "" {
			return infoLocally(cmd, args)
		}
		return infoRemote(cmd, args)
	},
}

func init() {
	rootCmd.AddCommand(infoCmd)
}

func infoRemote(cmd *cobra.Command, _ []string) error {
	cli, err := f.GetClient()
	if err != nil {
		return err
	}
	log.Info().Msg("Fetching server info...")
	result, correlation, err := cli.Initialize(cmd.Context())
	if err != nil {
		return logError(err, correlation, "failed to get info from server")
	}

	fmt.Println(bold("\n── Server Information ──"))
	fmt.Printf("  %s:     %s\n", faint("Name"), result.ServerInfo.Name)
	fmt.Printf("  %s:  %s\n", faint("Version"), result.ServerInfo.Version)
	fmt.Printf("  %s: %s\n", faint("Protocol"), result.ProtocolVersion)
	return nil
}

func infoLocally(_ *cobra.Command, _ []string) error {
	log.Info().Msg("Showing local build info...")
	info := buildinfo.GetBuildInfo()

	fmt.Println(bold("\n── Build Information ──"))
	fmt.Printf("  %s:  %s\n", faint("Version"), info.Version)
	fmt.Printf("  %s:   %s\n", faint("Commit"), info.CommitHash)
	return nil
}
