package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/app-sre/proms-mcp/internal/buildinfo"
	"github.com/app-sre/proms-mcp/internal/logging"
)

// global flags
var (
	userConfig string
	serverAddr string
)

const (
	// AddrKey is the viper key for the remote server address.
	AddrKey = "addr"

	// TokenKey is the viper key for the bearer token used by remote
	// commands. Usually set via PROMS_MCP_TOKEN rather than a flag, so
	// the credential stays out of shell history.
	TokenKey = "token"
)

var rootCmd = &cobra.Command{
	Use:   "proms-mcp",
	Short: fmt.Sprintf("proms-mcp gateway (version: %s, commit: %s)", buildinfo.Version, buildinfo.CommitHash),
	Long: `proms-mcp is an MCP gateway for Prometheus. It verifies inbound bearer
credentials against the cluster, caches verified identities, and exposes
multiple Prometheus datasources as MCP tools.`,
	Version: buildinfo.Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		configPath, configErr := initUserConfig()
		logging.Init(nil)
		if configErr != nil { // handle error after logging is initialized
			return configErr
		}
		if configPath != "" {
			log.Debug().Msgf("using user config file: %s", configPath)
		}
		return nil
	},
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		log.Fatal().Err(err).Msg("execution failed")
		os.Exit(1)
	}
}

func init() {
	// setup pre-flag logger
	logging.InitDefault()

	rootCmd.PersistentFlags().StringVar(&userConfig, "user-config", "",
		"User configuration file for default values (default is $HOME/.proms-mcp.yaml)")

	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	_ = viper.BindPFlag(logging.LevelKey, rootCmd.PersistentFlags().Lookup("log-level"))

	rootCmd.PersistentFlags().String("log-format", "console", "Log format (console, json)")
	_ = viper.BindPFlag(logging.FormatKey, rootCmd.PersistentFlags().Lookup("log-format"))

	rootCmd.PersistentFlags().Bool("no-color", false, "Disable color output")
	_ = viper.BindPFlag(logging.NoColorKey, rootCmd.PersistentFlags().Lookup("no-color"))

	rootCmd.PersistentFlags().StringVar(&serverAddr, "server", "", "Address of the remote proms-mcp server")
	_ = viper.BindPFlag(AddrKey, rootCmd.PersistentFlags().Lookup("server"))

	viper.SetEnvPrefix("PROMS_MCP")
	viper.SetEnvKeyReplacer(strings.NewReplacer(
		".", "_",
		"-", "_",
	))

	viper.AutomaticEnv()

	rootCmd.SilenceUsage = true
	rootCmd.SilenceErrors = true
}

func initUserConfig() (string, error) {
	// reads in config file and ENV variables if set.
	if userConfig != "" {
		viper.SetConfigFile(userConfig)
	} else {
		// search order: current dir, $HOME, XDG config
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
		}

		config, err := os.UserConfigDir()
		if err == nil {
			viper.AddConfigPath(config + "/proms-mcp")
		}

		viper.SetConfigType("yaml")
		viper.SetConfigName(".proms-mcp")
	}

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err != nil {
		var notFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &notFoundError) {
			return "", err
		}
	} else {
		return viper.ConfigFileUsed(), nil
	}

	return "", nil
}
