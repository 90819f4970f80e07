package authn

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net/http"
	"os"
	"sync"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/rs/zerolog/log"
)

// InClusterCAPath is where Kubernetes mounts the service account CA bundle
// inside a pod.
const InClusterCAPath = "/var/run/secrets/kubernetes.io/serviceaccount/ca.crt"

// TrustMode selects the TLS trust material for upstream connections.
type TrustMode int

const (
	// SystemTrust verifies upstream certificates against the host trust store.
	SystemTrust TrustMode = iota
	// CustomCA verifies against a CA bundle read from a file.
	CustomCA
	// Insecure disables certificate verification entirely.
	Insecure
)

func (m TrustMode) String() string {
	switch m {
	case SystemTrust:
		return "system"
	case CustomCA:
		return "custom_ca"
	case Insecure:
		return "insecure"
	default:
		return "unknown"
	}
}

// Trust is the outcome of resolving trust material for one verification
// attempt.
type Trust struct {
	Mode   TrustMode
	CAPath string // set when Mode == CustomCA
}

// TrustPolicy decides which trust material upstream TLS connections use.
// Resolution happens on every verification attempt, so a CA bundle that
// appears on disk takes effect without a restart.
type TrustPolicy struct {
	verifyTLS       bool
	customCAPath    string
	inClusterCAPath string

	mu      sync.RWMutex
	clients map[Trust]*http.Client
}

func NewTrustPolicy(verifyTLS bool, customCAPath string) *TrustPolicy {
	return &TrustPolicy{
		verifyTLS:       verifyTLS,
		customCAPath:    customCAPath,
		inClusterCAPath: InClusterCAPath,
		clients:         make(map[Trust]*http.Client),
	}
}

// Resolve picks the trust material for one attempt. Precedence: the explicit
// verify-off switch, then a readable configured CA bundle, then the in-cluster
// service account CA if present, then system trust. A configured CA path that
// does not exist degrades to system trust without failing the attempt.
func (p *TrustPolicy) Resolve() Trust {
	if !p.verifyTLS {
		// warn on every resolution so a disabled check cannot hide in old logs
		log.Warn().Msg("upstream TLS verification is DISABLED; connections can be intercepted")
		return Trust{Mode: Insecure}
	}
	if p.customCAPath != "" {
		if fileExists(p.customCAPath) {
			return Trust{Mode: CustomCA, CAPath: p.customCAPath}
		}
		log.Debug().Str("path", p.customCAPath).Msg("configured CA bundle not found, using system trust")
		return Trust{Mode: SystemTrust}
	}
	if p.inClusterCAPath != "" && fileExists(p.inClusterCAPath) {
		return Trust{Mode: CustomCA, CAPath: p.inClusterCAPath}
	}
	return Trust{Mode: SystemTrust}
}

// Client returns a pooled HTTP client honoring the given trust decision.
// Clients are cached per decision so connection pools survive across attempts
// while the decision itself stays fresh.
func (p *TrustPolicy) Client(t Trust) (*http.Client, error) {
	p.mu.RLock()
	client, ok := p.clients[t]
	p.mu.RUnlock()
	if ok {
		return client, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if client, ok := p.clients[t]; ok {
		return client, nil
	}

	transport := cleanhttp.DefaultPooledTransport()
	switch t.Mode {
	case Insecure:
		transport.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: true,
			MinVersion:         tls.VersionTLS12,
		}
	case CustomCA:
		pemBytes, err := os.ReadFile(t.CAPath)
		if err != nil {
			return nil, fmt.Errorf("reading CA bundle %q: %w", t.CAPath, err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pemBytes) {
			return nil, fmt.Errorf("CA bundle %q contains no usable certificates", t.CAPath)
		}
		transport.TLSClientConfig = &tls.Config{
			RootCAs:    pool,
			MinVersion: tls.VersionTLS12,
		}
	case SystemTrust:
		// cleanhttp defaults already use the system pool
	}

	client = &http.Client{Transport: transport}
	p.clients[t] = client
	return client, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
