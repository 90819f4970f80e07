package authn

import (
	"context"
	"fmt"
	"time"

	"github.com/mitchellh/mapstructure"

	"github.com/app-sre/proms-mcp/internal/config"
	"github.com/app-sre/proms-mcp/internal/core"
)

// BuildOptions carries the dependencies shared by all authenticators.
type BuildOptions struct {
	// UpstreamURL is the cluster API base URL for userinfo and tokenreview.
	UpstreamURL string
	// Trust supplies TLS material for all upstream connections.
	Trust *TrustPolicy
	// Timeout bounds each verification attempt.
	Timeout time.Duration
}

// BuildChain turns verifier configs into the ordered authenticator chain.
// With no configs the chain defaults to a single userinfo authenticator,
// which matches how the service is deployed almost everywhere.
func BuildChain(ctx context.Context, cfgs []config.VerifierConfig, opts BuildOptions) ([]core.Authenticator, error) {
	if len(cfgs) == 0 {
		cfgs = []config.VerifierConfig{{Name: "userinfo", Type: "userinfo"}}
	}

	chain := make([]core.Authenticator, 0, len(cfgs))
	seen := make(map[string]struct{}, len(cfgs))

	for _, cfg := range cfgs {
		name := cfg.Name
		if name == "" {
			name = cfg.Type
		}
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("duplicate authenticator name %q", name)
		}
		seen[name] = struct{}{}

		switch cfg.Type {
		case "userinfo":
			if opts.UpstreamURL == "" {
				return nil, fmt.Errorf("%w: userinfo authenticator %q requires an upstream API URL", core.ErrConfigurationMissing, name)
			}
			chain = append(chain, NewUserInfo(name, opts.UpstreamURL, opts.Trust, opts.Timeout))

		case "tokenreview":
			if opts.UpstreamURL == "" {
				return nil, fmt.Errorf("%w: tokenreview authenticator %q requires an upstream API URL", core.ErrConfigurationMissing, name)
			}
			chain = append(chain, NewTokenReview(name, opts.UpstreamURL, opts.Trust, opts.Timeout))

		case "oidc":
			var conf OIDCConfig
			if err := decodeConfig(&conf, cfg.Config, cfg.Type, name); err != nil {
				return nil, err
			}
			a, err := NewOIDC(ctx, name, conf, opts.Trust, opts.Timeout)
			if err != nil {
				return nil, fmt.Errorf("building oidc authenticator %q: %w", name, err)
			}
			chain = append(chain, a)

		case "static":
			var conf StaticConfig
			if err := decodeConfig(&conf, cfg.Config, cfg.Type, name); err != nil {
				return nil, err
			}
			chain = append(chain, NewStatic(name, conf))

		default:
			return nil, fmt.Errorf("unknown authenticator type %q for %q", cfg.Type, name)
		}
	}

	return chain, nil
}

func decodeConfig(dst any, src map[string]any, typ, name string) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Metadata: nil,
		Result:   dst,
	})
	if err != nil {
		return fmt.Errorf("failed to create decoder for %s authenticator '%s': %w", typ, name, err)
	}
	if err := decoder.Decode(src); err != nil {
		return fmt.Errorf("failed to decode config for %s authenticator '%s': %w", typ, name, err)
	}
	return nil
}
