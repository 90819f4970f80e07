package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/app-sre/proms-mcp/internal/authn"
	"github.com/app-sre/proms-mcp/internal/config"
	"github.com/app-sre/proms-mcp/internal/core"
	"github.com/app-sre/proms-mcp/pkg/client"
)

type Factory struct {
	// ConfigPath points at the server configuration file. Used by serve
	// and by commands that run verification locally.
	ConfigPath string
}

var f = &Factory{}

// GetClient returns an authenticated HTTP client for remote operations.
func (f *Factory) GetClient() (*client.Client, error) {
	server := viper.GetString(AddrKey)
	if server == "" {
		return nil, fmt.Errorf("server address not configured (use --server or set PROMS_MCP_ADDR)")
	}

	opts := []client.Option{}
	if token := viper.GetString(TokenKey); token != "" {
		opts = append(opts, client.WithAuthToken(token))
	}

	return client.New(server, opts...)
}

// LoadServerConfig loads the server configuration file named by --config.
func (f *Factory) LoadServerConfig() (*config.Config, error) {
	if f.ConfigPath == "" {
		return nil, fmt.Errorf("config file not specified (use --config)")
	}
	return config.Load(f.ConfigPath)
}

// BuildLocalChain constructs the authenticator chain from the server
// config, for commands that verify credentials without a server.
func (f *Factory) BuildLocalChain(ctx context.Context) ([]core.Authenticator, *config.Config, error) {
	cfg, err := f.LoadServerConfig()
	if err != nil {
		return nil, nil, err
	}

	trust := authn.NewTrustPolicy(cfg.Auth.VerifyTLSEnabled(), cfg.Auth.CACertPath)
	chain, err := authn.BuildChain(ctx, cfg.Auth.Verifiers, authn.BuildOptions{
		UpstreamURL: cfg.Auth.UpstreamURL,
		Trust:       trust,
		Timeout:     cfg.Auth.RequestTimeout,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("building authenticator chain: %w", err)
	}
	return chain, cfg, nil
}

func (f *Factory) bindConfigFlag(flags *pflag.FlagSet) {
	flags.StringVarP(&f.ConfigPath, "config", "c", "", "The proms-mcp server config file to use")
}
