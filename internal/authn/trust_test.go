package authn

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// writeTestCA writes a self-signed certificate usable as a CA bundle and
// returns its path.
func writeTestCA(t *testing.T) string {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generating key: %v", err)
	}
	tmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "test-ca"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour),
		IsCA:                  true,
		KeyUsage:              x509.KeyUsageCertSign,
		BasicConstraintsValid: true,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("creating certificate: %v", err)
	}

	path := filepath.Join(t.TempDir(), "ca.crt")
	pemBytes := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	if err := os.WriteFile(path, pemBytes, 0600); err != nil {
		t.Fatalf("writing CA bundle: %v", err)
	}
	return path
}

func TestTrustPolicy_Resolve(t *testing.T) {
	caPath := writeTestCA(t)

	tests := []struct {
		name      string
		verifyTLS bool
		caPath    string
		inCluster string
		want      Trust
	}{
		{
			name:      "verify off wins even with CA configured",
			verifyTLS: false,
			caPath:    caPath,
			want:      Trust{Mode: Insecure},
		},
		{
			name:      "custom CA used when file exists",
			verifyTLS: true,
			caPath:    caPath,
			want:      Trust{Mode: CustomCA, CAPath: caPath},
		},
		{
			name:      "missing CA degrades to system trust",
			verifyTLS: true,
			caPath:    filepath.Join(t.TempDir(), "nope.crt"),
			want:      Trust{Mode: SystemTrust},
		},
		{
			name:      "in-cluster CA picked up when nothing configured",
			verifyTLS: true,
			inCluster: caPath,
			want:      Trust{Mode: CustomCA, CAPath: caPath},
		},
		{
			name:      "system trust by default",
			verifyTLS: true,
			want:      Trust{Mode: SystemTrust},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewTrustPolicy(tt.verifyTLS, tt.caPath)
			p.inClusterCAPath = tt.inCluster

			if got := p.Resolve(); got != tt.want {
				t.Errorf("Resolve() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestTrustPolicy_ResolveIsNotSticky(t *testing.T) {
	p := NewTrustPolicy(true, filepath.Join(t.TempDir(), "late.crt"))
	p.inClusterCAPath = ""

	if got := p.Resolve(); got.Mode != SystemTrust {
		t.Fatalf("Resolve() = %v before CA exists, want system trust", got.Mode)
	}

	// CA bundle appears on disk; the next attempt must pick it up
	caPath := writeTestCA(t)
	p.customCAPath = caPath
	if got := p.Resolve(); got.Mode != CustomCA {
		t.Errorf("Resolve() = %v after CA appeared, want custom CA", got.Mode)
	}
}

func TestTrustPolicy_Client(t *testing.T) {
	caPath := writeTestCA(t)
	p := NewTrustPolicy(true, caPath)
	p.inClusterCAPath = ""

	t.Run("custom CA client has a private root pool", func(t *testing.T) {
		client, err := p.Client(Trust{Mode: CustomCA, CAPath: caPath})
		if err != nil {
			t.Fatalf("Client() error = %v", err)
		}
		tr, ok := client.Transport.(*http.Transport)
		if !ok {
			t.Fatalf("Transport is %T, want *http.Transport", client.Transport)
		}
		if tr.TLSClientConfig == nil || tr.TLSClientConfig.RootCAs == nil {
			t.Errorf("custom CA client missing root pool")
		}
		if tr.TLSClientConfig != nil && tr.TLSClientConfig.InsecureSkipVerify {
			t.Errorf("custom CA client must not skip verification")
		}
	})

	t.Run("insecure client skips verification", func(t *testing.T) {
		client, err := p.Client(Trust{Mode: Insecure})
		if err != nil {
			t.Fatalf("Client() error = %v", err)
		}
		tr := client.Transport.(*http.Transport)
		if tr.TLSClientConfig == nil || !tr.TLSClientConfig.InsecureSkipVerify {
			t.Errorf("insecure client does not skip verification")
		}
	})

	t.Run("clients are cached per decision", func(t *testing.T) {
		first, err := p.Client(Trust{Mode: SystemTrust})
		if err != nil {
			t.Fatalf("Client() error = %v", err)
		}
		second, err := p.Client(Trust{Mode: SystemTrust})
		if err != nil {
			t.Fatalf("Client() error = %v", err)
		}
		if first != second {
			t.Errorf("Client() returned a new client for the same decision")
		}
	})

	t.Run("unreadable CA bundle fails", func(t *testing.T) {
		bad := filepath.Join(t.TempDir(), "bad.crt")
		if err := os.WriteFile(bad, []byte("not a certificate"), 0600); err != nil {
			t.Fatalf("writing file: %v", err)
		}
		if _, err := p.Client(Trust{Mode: CustomCA, CAPath: bad}); err == nil {
			t.Errorf("Client() accepted a bundle without certificates")
		}
	})
}
