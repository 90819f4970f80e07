package config

import (
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-yaml"

	"github.com/app-sre/proms-mcp/internal/core"
	"github.com/app-sre/proms-mcp/internal/validation"
)

// Mode selects how the gateway treats inbound credentials.
type Mode string

const (
	// ModeOpen skips verification and hands every request the development
	// identity. Only meant for local development.
	ModeOpen Mode = "open"

	// ModeEnforced verifies every inbound credential against the
	// configured authenticator chain.
	ModeEnforced Mode = "enforced"
)

// Defaults applied by Load when a field is left unset.
const (
	DefaultListenAddr      = ":8000"
	DefaultMonitoringAddr  = ":8080"
	DefaultCacheTTL        = 5 * time.Minute
	DefaultCacheSize       = 1000
	DefaultRequestTimeout  = 5 * time.Second
	DefaultQueryTimeout    = 30 * time.Second
	DefaultShutdownTimeout = 8 * time.Second
)

type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Auth        AuthConfig        `yaml:"auth"`
	Datasources DatasourcesConfig `yaml:"datasources"`
	Query       QueryConfig       `yaml:"query"`
	Audit       AuditConfig       `yaml:"audit"`
	Policies    []core.AccessRule `yaml:"policies"`
}

type ServerConfig struct {
	// Addr is the listen address of the MCP API.
	Addr string `yaml:"addr"`

	// MonitoringAddr is the listen address of the health/metrics listener.
	MonitoringAddr string `yaml:"monitoring_addr"`

	// ShutdownTimeout bounds the drain phase of a graceful shutdown.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// Production marks hardened deployments. Open auth mode refuses to
	// start when this is set.
	Production bool `yaml:"production"`
}

type AuthConfig struct {
	// Mode is "open" or "enforced". Defaults to enforced.
	Mode Mode `yaml:"mode"`

	// UpstreamURL is the cluster API base used by the userinfo and
	// tokenreview verifiers, e.g. https://api.cluster.example.com:6443.
	UpstreamURL string `yaml:"upstream_url"`

	// VerifyTLS toggles certificate verification for upstream calls.
	// Unset means verify.
	VerifyTLS *bool `yaml:"verify_tls"`

	// CACertPath points at a PEM bundle to trust for upstream calls.
	CACertPath string `yaml:"ca_cert_path"`

	// CacheTTL is how long a verified identity stays cached.
	CacheTTL time.Duration `yaml:"cache_ttl"`

	// CacheSize bounds the number of cached identities.
	CacheSize int `yaml:"cache_size"`

	// RequestTimeout bounds a single verification attempt.
	RequestTimeout time.Duration `yaml:"request_timeout"`

	// Verifiers is the ordered authenticator chain. Empty means a single
	// userinfo verifier against UpstreamURL.
	Verifiers []VerifierConfig `yaml:"verifiers"`
}

// VerifyTLSEnabled reports whether upstream certificates must verify,
// treating the unset case as true.
func (a AuthConfig) VerifyTLSEnabled() bool {
	return a.VerifyTLS == nil || *a.VerifyTLS
}

// VerifierConfig holds configuration for one authenticator in the chain.
type VerifierConfig struct {
	Name   string         `yaml:"name"`
	Type   string         `yaml:"type"`    // e.g., "userinfo", "tokenreview", "oidc", "static"
	Config map[string]any `yaml:",inline"` // Capture remaining fields
}

type DatasourcesConfig struct {
	// Path to a Grafana provisioning file listing Prometheus datasources.
	Path string `yaml:"path"`

	// ReloadInterval re-reads the file periodically when > 0.
	ReloadInterval time.Duration `yaml:"reload_interval"`
}

type QueryConfig struct {
	// Timeout bounds a single Prometheus query.
	Timeout time.Duration `yaml:"timeout"`
}

// AuditConfig holds configuration for auditing.
type AuditConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
	Type    string `yaml:"type"` // e.g., "file", "memory"
}

// Load reads and parses the configuration file at the given path.
// It returns a Config struct or an error if loading/parsing/validation fails.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config file: %w", err)
	}
	return &cfg, nil
}

// Default returns a config with every default applied, suitable for
// running without a config file (settings then come from env/flags).
func Default() *Config {
	var cfg Config
	cfg.ApplyDefaults()
	return &cfg
}

// ApplyDefaults fills unset fields in place. Load calls it before
// Validate; callers that overlay env/flag values on top of a loaded
// config do not need to call it again.
func (c *Config) ApplyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = DefaultListenAddr
	}
	if c.Server.MonitoringAddr == "" {
		c.Server.MonitoringAddr = DefaultMonitoringAddr
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = DefaultShutdownTimeout
	}
	if c.Auth.Mode == "" {
		c.Auth.Mode = ModeEnforced
	}
	if c.Auth.VerifyTLS == nil {
		verify := true
		c.Auth.VerifyTLS = &verify
	}
	if c.Auth.CacheTTL == 0 {
		c.Auth.CacheTTL = DefaultCacheTTL
	}
	if c.Auth.CacheSize == 0 {
		c.Auth.CacheSize = DefaultCacheSize
	}
	if c.Auth.RequestTimeout == 0 {
		c.Auth.RequestTimeout = DefaultRequestTimeout
	}
	if c.Query.Timeout == 0 {
		c.Query.Timeout = DefaultQueryTimeout
	}
}

func (c *Config) Validate() error {
	switch c.Auth.Mode {
	case ModeOpen, ModeEnforced:
	default:
		return fmt.Errorf("unknown auth.mode %q (expected %q or %q)", c.Auth.Mode, ModeOpen, ModeEnforced)
	}

	if c.Server.Production && c.Auth.Mode == ModeOpen {
		return fmt.Errorf("auth.mode %q is not allowed when server.production is set", ModeOpen)
	}

	if c.Auth.Mode == ModeEnforced && c.Auth.UpstreamURL == "" && verifiersNeedUpstream(c.Auth.Verifiers) {
		return fmt.Errorf("%w: auth.mode is enforced but auth.upstream_url is not set", core.ErrConfigurationMissing)
	}

	if c.Auth.CacheTTL < 0 {
		return fmt.Errorf("auth.cache_ttl must not be negative")
	}
	if c.Auth.CacheSize < 0 {
		return fmt.Errorf("auth.cache_size must not be negative")
	}
	if c.Auth.RequestTimeout < 0 {
		return fmt.Errorf("auth.request_timeout must not be negative")
	}
	if c.Query.Timeout < 0 {
		return fmt.Errorf("query.timeout must not be negative")
	}
	if c.Datasources.ReloadInterval < 0 {
		return fmt.Errorf("datasources.reload_interval must not be negative")
	}

	seenVerifiers := make(map[string]struct{}, len(c.Auth.Verifiers))
	for idx, v := range c.Auth.Verifiers {
		if v.Type == "" {
			return fmt.Errorf("verifier at index %d has empty type", idx)
		}
		name := v.Name
		if name == "" {
			name = v.Type
		}
		if _, dup := seenVerifiers[name]; dup {
			return fmt.Errorf("verifier name %q is not unique", name)
		}
		seenVerifiers[name] = struct{}{}
	}

	if err := c.Audit.Validate(); err != nil {
		return fmt.Errorf("validating audit config: %w", err)
	}

	validRules, err := validation.ValidateAccessRules(c.Policies)
	if err != nil {
		return fmt.Errorf("validating policies: %w", err)
	}
	c.Policies = validRules

	return nil
}

func (a AuditConfig) Validate() error {
	if !a.Enabled {
		return nil
	}
	switch a.Type {
	case "file":
		if a.Path == "" {
			return fmt.Errorf("audit type 'file' requires a path")
		}
	case "", "memory", "noop":
	default:
		return fmt.Errorf("unknown audit type %q", a.Type)
	}
	return nil
}

// verifiersNeedUpstream reports whether the chain contains a verifier
// that talks to the cluster API. An empty chain defaults to userinfo,
// which does.
func verifiersNeedUpstream(verifiers []VerifierConfig) bool {
	if len(verifiers) == 0 {
		return true
	}
	for _, v := range verifiers {
		switch v.Type {
		case "userinfo", "tokenreview":
			return true
		}
	}
	return false
}
