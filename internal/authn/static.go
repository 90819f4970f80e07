package authn

import (
	"context"
	"fmt"

	"github.com/app-sre/proms-mcp/internal/core"
)

// StaticConfig maps fixed credentials to identities. Dev and test use only;
// never ship a production config with one of these.
type StaticConfig struct {
	Tokens map[string]StaticIdentity `mapstructure:"tokens"`
}

type StaticIdentity struct {
	Username  string   `mapstructure:"username"`
	SubjectID string   `mapstructure:"subject_id"`
	Groups    []string `mapstructure:"groups"`
}

var _ core.Authenticator = (*StaticAuthenticator)(nil)

type StaticAuthenticator struct {
	name   string
	tokens map[string]core.Identity
}

func NewStatic(name string, cfg StaticConfig) *StaticAuthenticator {
	tokens := make(map[string]core.Identity, len(cfg.Tokens))
	for tok, id := range cfg.Tokens {
		subject := id.SubjectID
		if subject == "" {
			subject = id.Username
		}
		tokens[tok] = core.Identity{
			Username:  id.Username,
			SubjectID: subject,
			Groups:    id.Groups,
			Method:    core.MethodStatic,
		}
	}
	return &StaticAuthenticator{name: name, tokens: tokens}
}

func (s *StaticAuthenticator) Name() string {
	return s.name
}

func (s *StaticAuthenticator) Authenticate(_ context.Context, credential string) (*core.Identity, error) {
	id, ok := s.tokens[credential]
	if !ok {
		// the credential value stays out of the error on purpose
		return nil, fmt.Errorf("%w: unknown static credential", core.ErrCredentialInvalid)
	}
	out := id.Clone()
	return &out, nil
}
