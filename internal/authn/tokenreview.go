package authn

import (
	"bytes"
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

// tokenReviewPath is the self-subject TokenReview endpoint. The presented
// token both authenticates the request and is the subject under review.
const tokenReviewPath = "/apis/authentication.k8s.io/v1/tokenreviews"

var _ core.Authenticator = (*TokenReviewAuthenticator)(nil)

// TokenReviewAuthenticator verifies credentials through the Kubernetes
// TokenReview API. Useful for service account tokens the userinfo endpoint
// does not resolve.
type TokenReviewAuthenticator struct {
	name    string
	baseURL string
	trust   *TrustPolicy
	timeout time.Duration
}

func NewTokenReview(name, baseURL string, trust *TrustPolicy, timeout time.Duration) *TokenReviewAuthenticator {
	if timeout <= 0 {
		timeout = DefaultVerifyTimeout
	}
	return &TokenReviewAuthenticator{
		name:    name,
		baseURL: strings.TrimRight(baseURL, "/"),
		trust:   trust,
		timeout: timeout,
	}
}

func (a *TokenReviewAuthenticator) Name() string {
	return a.name
}

type tokenReviewRequest struct {
	APIVersion string          `json:"apiVersion"`
	Kind       string          `json:"kind"`
	Spec       tokenReviewSpec `json:"spec"`
}

type tokenReviewSpec struct {
	Token string `json:"token"`
}

type tokenReviewResponse struct {
	Status struct {
		Authenticated bool   `json:"authenticated"`
		Error         string `json:"error"`
		User          struct {
			Username string   `json:"username"`
			UID      string   `json:"uid"`
			Groups   []string `json:"groups"`
		} `json:"user"`
	} `json:"status"`
}

func (a *TokenReviewAuthenticator) Authenticate(ctx context.Context, credential string) (*core.Identity, error) {
	client, err := a.trust.Client(a.trust.Resolve())
	if err != nil {
		return nil, fmt.Errorf("%w: preparing upstream client: %w", core.ErrUpstreamUnavailable, err)
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	body, err := json.Marshal(tokenReviewRequest{
		APIVersion: "authentication.k8s.io/v1",
		Kind:       "TokenReview",
		Spec:       tokenReviewSpec{Token: credential},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: encoding tokenreview request: %w", core.ErrUpstreamUnavailable, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+tokenReviewPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: building tokenreview request: %w", core.ErrUpstreamUnavailable, err)
	}
	req.Header.Set("Authorization", "Bearer "+credential)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	// inject audit user-agent
	correlationID := middleware.CorrelationCtx(ctx)
	req.Header.Set("User-Agent", audit.CreateUserAgent(correlationID))

	resp, err := client.Do(req)
	if err != nil {
		return nil, classifyTransportError("tokenreview request", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		// reviewed, decode below
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: upstream answered %d", core.ErrCredentialInvalid, resp.StatusCode)
	default:
		return nil, fmt.Errorf("%w: upstream answered %d", core.ErrUpstreamUnavailable, resp.StatusCode)
	}

	var review tokenReviewResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&review); err != nil {
		return nil, fmt.Errorf("%w: decoding tokenreview response: %w", core.ErrUpstreamUnavailable, err)
	}

	if !review.Status.Authenticated {
		if review.Status.Error != "" {
			return nil, fmt.Errorf("%w: tokenreview: %s", core.ErrCredentialInvalid, review.Status.Error)
		}
		return nil, fmt.Errorf("%w: tokenreview rejected the credential", core.ErrCredentialInvalid)
	}
	if review.Status.User.Username == "" {
		return nil, fmt.Errorf("%w: tokenreview response carries no username", core.ErrUpstreamUnavailable)
	}

	subjectID := review.Status.User.UID
	if subjectID == "" {
		subjectID = review.Status.User.Username
	}

	return &core.Identity{
		Username:  review.Status.User.Username,
		SubjectID: subjectID,
		Groups:    review.Status.User.Groups,
		Method:    core.MethodTokenReview,
	}, nil
}
