package authn

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/app-sre/proms-mcp/internal/api/middleware"
	"github.com/app-sre/proms-mcp/internal/audit"
	"github.com/app-sre/proms-mcp/internal/core"
)

// userInfoPath asks the cluster who the presented token belongs to.
const userInfoPath = "/apis/user.openshift.io/v1/users/~"

// DefaultVerifyTimeout bounds a single verification attempt.
const DefaultVerifyTimeout = 5 * time.Second

var _ core.Authenticator = (*UserInfoAuthenticator)(nil)

// UserInfoAuthenticator verifies bearer credentials by presenting them to the
// cluster userinfo endpoint. Exactly one attempt per call, no retries; any
// failure means the credential is not accepted on this path.
type UserInfoAuthenticator struct {
	name    string
	baseURL string
	trust   *TrustPolicy
	timeout time.Duration
}

func NewUserInfo(name, baseURL string, trust *TrustPolicy, timeout time.Duration) *UserInfoAuthenticator {
	if timeout <= 0 {
		timeout = DefaultVerifyTimeout
	}
	return &UserInfoAuthenticator{
		name:    name,
		baseURL: strings.TrimRight(baseURL, "/"),
		trust:   trust,
		timeout: timeout,
	}
}

func (a *UserInfoAuthenticator) Name() string {
	return a.name
}

// userInfoResponse is the subset of the cluster User object we care about.
type userInfoResponse struct {
	Metadata struct {
		Name string `json:"name"`
		UID  string `json:"uid"`
	} `json:"metadata"`
	Groups []string `json:"groups"`
}

func (a *UserInfoAuthenticator) Authenticate(ctx context.Context, credential string) (*core.Identity, error) {
	client, err := a.trust.Client(a.trust.Resolve())
	if err != nil {
		return nil, fmt.Errorf("%w: preparing upstream client: %w", core.ErrUpstreamUnavailable, err)
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+userInfoPath, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: building userinfo request: %w", core.ErrUpstreamUnavailable, err)
	}
	req.Header.Set("Authorization", "Bearer "+credential)
	req.Header.Set("Accept", "application/json")

	// inject audit user-agent
	correlationID := middleware.CorrelationCtx(ctx)
	req.Header.Set("User-Agent", audit.CreateUserAgent(correlationID))

	resp, err := client.Do(req)
	if err != nil {
		return nil, classifyTransportError("userinfo request", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		// verified, decode below
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: upstream answered %d", core.ErrCredentialInvalid, resp.StatusCode)
	default:
		return nil, fmt.Errorf("%w: upstream answered %d", core.ErrUpstreamUnavailable, resp.StatusCode)
	}

	var user userInfoResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&user); err != nil {
		return nil, fmt.Errorf("%w: decoding userinfo response: %w", core.ErrUpstreamUnavailable, err)
	}
	if user.Metadata.Name == "" {
		return nil, fmt.Errorf("%w: userinfo response carries no username", core.ErrUpstreamUnavailable)
	}

	subjectID := user.Metadata.UID
	if subjectID == "" {
		subjectID = user.Metadata.Name
	}

	return &core.Identity{
		Username:  user.Metadata.Name,
		SubjectID: subjectID,
		Groups:    user.Groups,
		Method:    core.MethodBearer,
	}, nil
}
