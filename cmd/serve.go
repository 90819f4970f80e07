package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/app-sre/proms-mcp/internal/api"
	"github.com/app-sre/proms-mcp/internal/audit"
	"github.com/app-sre/proms-mcp/internal/authn"
	"github.com/app-sre/proms-mcp/internal/config"
	"github.com/app-sre/proms-mcp/internal/core"
	"github.com/app-sre/proms-mcp/internal/monitoring"
	"github.com/app-sre/proms-mcp/internal/policy"
	"github.com/app-sre/proms-mcp/internal/prom"
	"github.com/app-sre/proms-mcp/internal/service"
	"github.com/app-sre/proms-mcp/internal/store"
	"github.com/app-sre/proms-mcp/internal/tasks"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the proms-mcp gateway",
	Long: `Starts the MCP API listener and the monitoring listener. Configuration
comes from the --config file; individual values can be overridden via
PROMS_MCP_* environment variables or the user config.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		cfg, err := loadServeConfig()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
			cfg.Server.Addr = addr
		}

		var chain []core.Authenticator
		if cfg.Auth.Mode == config.ModeEnforced {
			log.Info().Msg("Initializing authenticator chain...")
			trust := authn.NewTrustPolicy(cfg.Auth.VerifyTLSEnabled(), cfg.Auth.CACertPath)
			chain, err = authn.BuildChain(ctx, cfg.Auth.Verifiers, authn.BuildOptions{
				UpstreamURL: cfg.Auth.UpstreamURL,
				Trust:       trust,
				Timeout:     cfg.Auth.RequestTimeout,
			})
			if err != nil {
				return fmt.Errorf("building authenticator chain: %w", err)
			}
		} else {
			log.Warn().Msg("Auth mode is open, every request gets the development identity")
		}

		cache, err := store.NewIdentityCache(cfg.Auth.CacheSize)
		if err != nil {
			return fmt.Errorf("building identity cache: %w", err)
		}

		auditor, err := buildAuditor(cfg.Audit)
		if err != nil {
			return fmt.Errorf("building auditor: %w", err)
		}
		defer func() {
			if err := auditor.Close(); err != nil {
				log.Warn().Err(err).Msg("failed to close auditor")
			}
		}()

		metrics := monitoring.NewMetrics()
		verifier := service.NewVerifyService(
			cfg.Auth.Mode, chain, cache, cfg.Auth.CacheTTL,
			auditor, audit.CredentialFingerprint, metrics,
		)

		log.Info().Msg("Loading datasources...")
		registry, err := prom.BuildRegistry(cfg.Datasources, cfg.Query.Timeout)
		if err != nil {
			return fmt.Errorf("loading datasources: %w", err)
		}
		metrics.DatasourcesConfigured.Set(float64(registry.Len()))
		log.Info().Msgf("Loaded %d datasources", registry.Len())

		queries := service.NewQueryService(registry, policy.New(cfg.Policies))

		manager := tasks.NewManager()
		manager.Register(tasks.CacheSweep(cache, metrics, cfg.Auth.CacheTTL))
		if cfg.Datasources.ReloadInterval > 0 {
			manager.Register(tasks.DatasourceReload(registry, metrics, cfg.Datasources.ReloadInterval))
		}

		srv := api.NewServer(verifier, queries, manager, auditor, metrics)
		apiServer := &http.Server{
			Addr:    cfg.Server.Addr,
			Handler: srv.Routes(),
		}
		monServer := monitoring.NewServer(cfg.Server.MonitoringAddr, metrics, func() (int, []monitoring.TaskStatus) {
			statuses := manager.ListStatus()
			out := make([]monitoring.TaskStatus, 0, len(statuses))
			for _, s := range statuses {
				out = append(out, monitoring.TaskStatus{
					Name:       s.Name,
					Running:    s.Running,
					LastResult: s.LastResult,
					LastRun:    s.LastRun,
				})
			}
			return registry.Len(), out
		})

		go func() {
			log.Info().Msgf("Starting MCP API on %s...", cfg.Server.Addr)
			if err := apiServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Fatal().Err(err).Msg("API server crashed")
			}
		}()
		go func() {
			log.Info().Msgf("Starting monitoring listener on %s...", cfg.Server.MonitoringAddr)
			if err := monServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Fatal().Err(err).Msg("Monitoring server crashed")
			}
		}()

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		log.Info().Msg("Shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := apiServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("API server forced to shutdown: %w", err)
		}
		if err := monServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("monitoring server forced to shutdown: %w", err)
		}

		log.Info().Msg("Server exited")
		return nil
	},
}

// loadServeConfig builds the effective server configuration: the
// --config file when given, defaults otherwise, then env/user-config
// overrides, then validation.
func loadServeConfig() (*config.Config, error) {
	var cfg *config.Config
	if f.ConfigPath != "" {
		loaded, err := config.Load(f.ConfigPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	} else {
		cfg = config.Default()
	}

	overlayViper(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// overlayViper applies env/user-config overrides onto a loaded config.
// Keys follow the config file structure, so PROMS_MCP_SERVER_ADDR maps
// to server.addr and so on.
func overlayViper(cfg *config.Config) {
	if v := viper.GetString("server.addr"); v != "" {
		cfg.Server.Addr = v
	}
	if v := viper.GetString("server.monitoring_addr"); v != "" {
		cfg.Server.MonitoringAddr = v
	}
	if v := viper.GetDuration("server.shutdown_timeout"); v > 0 {
		cfg.Server.ShutdownTimeout = v
	}
	if viper.GetBool("server.production") {
		cfg.Server.Production = true
	}
	if v := viper.GetString("auth.mode"); v != "" {
		cfg.Auth.Mode = config.Mode(v)
	}
	if v := viper.GetString("auth.upstream_url"); v != "" {
		cfg.Auth.UpstreamURL = v
	}
	if v := viper.GetString("auth.ca_cert_path"); v != "" {
		cfg.Auth.CACertPath = v
	}
	if v := viper.GetDuration("auth.cache_ttl"); v > 0 {
		cfg.Auth.CacheTTL = v
	}
	if v := viper.GetString("datasources.path"); v != "" {
		cfg.Datasources.Path = v
	}
	if v := viper.GetDuration("datasources.reload_interval"); v > 0 {
		cfg.Datasources.ReloadInterval = v
	}
}

func buildAuditor(cfg config.AuditConfig) (core.Auditor, error) {
	if !cfg.Enabled {
		return audit.NewNoopAuditor(), nil
	}
	switch cfg.Type {
	case "file":
		return audit.NewFileAuditor(cfg.Path)
	case "", "memory":
		return audit.NewInMemoryAuditor(), nil
	case "noop":
		return audit.NewNoopAuditor(), nil
	default:
		return nil, fmt.Errorf("unknown audit type %q", cfg.Type)
	}
}

func init() {
	rootCmd.AddCommand(serveCmd)

	f.bindConfigFlag(serveCmd.Flags())
	serveCmd.Flags().String("addr", "", "Address to listen on (overrides config)")
}
