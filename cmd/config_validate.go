package cmd

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// configValidateCmd represents the config validate command
var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the server configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := f.LoadServerConfig()
		if err != nil {
			return err
		}
		log.Info().Msgf("Configuration is valid (auth mode: %s, %d policies).",
			cfg.Auth.Mode, len(cfg.Policies))
		return nil
	},
}

func init() {
	configCmd.AddCommand(configValidateCmd)

	f.bindConfigFlag(configValidateCmd.Flags())
	_ = configValidateCmd.MarkFlagRequired("config")
}
