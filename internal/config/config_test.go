package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/app-sre/proms-mcp/internal/core"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
server:
  addr: ":9000"
  production: true
auth:
  mode: enforced
  upstream_url: https://api.cluster.example.com:6443
  verify_tls: false
  ca_cert_path: /etc/pki/ca.crt
  cache_ttl: 2m
  request_timeout: 3s
  verifiers:
    - name: cluster
      type: userinfo
    - type: oidc
      issuer_url: https://issuer.example.com
      audience: proms-mcp
datasources:
  path: /etc/grafana/datasources.yaml
  reload_interval: 5m
audit:
  enabled: true
  type: file
  path: /var/log/proms-mcp/audit.jsonl
policies:
  - name: sre-everything
    match:
      groups: [system:sre]
    datasources: ["*"]
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Addr != ":9000" {
		t.Errorf("Server.Addr = %q, want :9000", cfg.Server.Addr)
	}
	if !cfg.Server.Production {
		t.Error("Server.Production = false, want true")
	}
	if cfg.Server.MonitoringAddr != DefaultMonitoringAddr {
		t.Errorf("Server.MonitoringAddr = %q, want default %q", cfg.Server.MonitoringAddr, DefaultMonitoringAddr)
	}
	if cfg.Auth.Mode != ModeEnforced {
		t.Errorf("Auth.Mode = %q, want enforced", cfg.Auth.Mode)
	}
	if cfg.Auth.VerifyTLSEnabled() {
		t.Error("VerifyTLSEnabled() = true, want false")
	}
	if cfg.Auth.CacheTTL != 2*time.Minute {
		t.Errorf("Auth.CacheTTL = %v, want 2m", cfg.Auth.CacheTTL)
	}
	if cfg.Auth.CacheSize != DefaultCacheSize {
		t.Errorf("Auth.CacheSize = %d, want default %d", cfg.Auth.CacheSize, DefaultCacheSize)
	}
	if cfg.Auth.RequestTimeout != 3*time.Second {
		t.Errorf("Auth.RequestTimeout = %v, want 3s", cfg.Auth.RequestTimeout)
	}
	if cfg.Query.Timeout != DefaultQueryTimeout {
		t.Errorf("Query.Timeout = %v, want default %v", cfg.Query.Timeout, DefaultQueryTimeout)
	}
	if cfg.Datasources.ReloadInterval != 5*time.Minute {
		t.Errorf("Datasources.ReloadInterval = %v, want 5m", cfg.Datasources.ReloadInterval)
	}

	wantVerifiers := []VerifierConfig{
		{Name: "cluster", Type: "userinfo"},
		{Type: "oidc", Config: map[string]any{
			"issuer_url": "https://issuer.example.com",
			"audience":   "proms-mcp",
		}},
	}
	if diff := cmp.Diff(wantVerifiers, cfg.Auth.Verifiers); diff != "" {
		t.Errorf("verifiers mismatch (-want +got):\n%s", diff)
	}

	if len(cfg.Policies) != 1 {
		t.Fatalf("got %d policies, want 1", len(cfg.Policies))
	}
	if diff := cmp.Diff([]string{"system:sre"}, cfg.Policies[0].Match.Groups); diff != "" {
		t.Errorf("policy groups mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
auth:
  mode: open
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Addr != DefaultListenAddr {
		t.Errorf("Server.Addr = %q, want %q", cfg.Server.Addr, DefaultListenAddr)
	}
	if cfg.Server.ShutdownTimeout != DefaultShutdownTimeout {
		t.Errorf("ShutdownTimeout = %v, want %v", cfg.Server.ShutdownTimeout, DefaultShutdownTimeout)
	}
	if !cfg.Auth.VerifyTLSEnabled() {
		t.Error("VerifyTLSEnabled() = false, want true when unset")
	}
	if cfg.Auth.CacheTTL != DefaultCacheTTL {
		t.Errorf("CacheTTL = %v, want %v", cfg.Auth.CacheTTL, DefaultCacheTTL)
	}
	if cfg.Auth.RequestTimeout != DefaultRequestTimeout {
		t.Errorf("RequestTimeout = %v, want %v", cfg.Auth.RequestTimeout, DefaultRequestTimeout)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestDefaultModeIsEnforced(t *testing.T) {
	cfg := Default()
	if cfg.Auth.Mode != ModeEnforced {
		t.Fatalf("default mode = %q, want enforced", cfg.Auth.Mode)
	}
}

func TestValidate(t *testing.T) {
	verify := false

	base := func() *Config {
		cfg := Default()
		cfg.Auth.UpstreamURL = "https://api.cluster.example.com:6443"
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "defaults with upstream are valid",
			mutate: func(*Config) {},
		},
		{
			name: "enforced without upstream",
			mutate: func(c *Config) {
				c.Auth.UpstreamURL = ""
			},
			wantErr: "upstream_url",
		},
		{
			name: "enforced without upstream but chain avoids it",
			mutate: func(c *Config) {
				c.Auth.UpstreamURL = ""
				c.Auth.Verifiers = []VerifierConfig{{Type: "oidc"}}
			},
		},
		{
			name: "tokenreview still needs upstream",
			mutate: func(c *Config) {
				c.Auth.UpstreamURL = ""
				c.Auth.Verifiers = []VerifierConfig{{Type: "tokenreview"}}
			},
			wantErr: "upstream_url",
		},
		{
			name: "open mode without upstream",
			mutate: func(c *Config) {
				c.Auth.Mode = ModeOpen
				c.Auth.UpstreamURL = ""
			},
		},
		{
			name: "production refuses open mode",
			mutate: func(c *Config) {
				c.Auth.Mode = ModeOpen
				c.Server.Production = true
			},
			wantErr: "not allowed when server.production",
		},
		{
			name: "unknown mode",
			mutate: func(c *Config) {
				c.Auth.Mode = "permissive"
			},
			wantErr: "unknown auth.mode",
		},
		{
			name: "verifier without type",
			mutate: func(c *Config) {
				c.Auth.Verifiers = []VerifierConfig{{Name: "x"}}
			},
			wantErr: "empty type",
		},
		{
			name: "duplicate verifier names",
			mutate: func(c *Config) {
				c.Auth.Verifiers = []VerifierConfig{{Type: "userinfo"}, {Name: "userinfo", Type: "tokenreview"}}
			},
			wantErr: "not unique",
		},
		{
			name: "negative cache ttl",
			mutate: func(c *Config) {
				c.Auth.CacheTTL = -time.Second
			},
			wantErr: "cache_ttl",
		},
		{
			name: "negative cache size",
			mutate: func(c *Config) {
				c.Auth.CacheSize = -1
			},
			wantErr: "cache_size",
		},
		{
			name: "audit file without path",
			mutate: func(c *Config) {
				c.Audit = AuditConfig{Enabled: true, Type: "file"}
			},
			wantErr: "requires a path",
		},
		{
			name: "unknown audit type",
			mutate: func(c *Config) {
				c.Audit = AuditConfig{Enabled: true, Type: "syslog"}
			},
			wantErr: "unknown audit type",
		},
		{
			name: "invalid policy",
			mutate: func(c *Config) {
				c.Policies = []core.AccessRule{{Name: "p", Datasources: []string{"*"}}}
			},
			wantErr: "validating policies",
		},
		{
			name: "explicit verify_tls false is allowed",
			mutate: func(c *Config) {
				c.Auth.VerifyTLS = &verify
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error containing %q, got nil", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("error %q does not contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidateMissingUpstreamIsConfigurationMissing(t *testing.T) {
	cfg := Default()
	err := cfg.Validate()
	if !errors.Is(err, core.ErrConfigurationMissing) {
		t.Fatalf("err = %v, want ErrConfigurationMissing", err)
	}
}
