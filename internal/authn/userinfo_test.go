package authn

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/app-sre/proms-mcp/internal/core"
)

func testTrust(t *testing.T) *TrustPolicy {
	t.Helper()
	p := NewTrustPolicy(true, "")
	p.inClusterCAPath = "" // keep host environment out of tests
	return p
}

func TestUserInfoAuthenticator_Authenticate(t *testing.T) {
	var calls atomic.Int64

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.URL.Path != "/apis/user.openshift.io/v1/users/~" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		auth := r.Header.Get("Authorization")
		switch strings.TrimPrefix(auth, "Bearer ") {
		case "good-token":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"metadata":{"name":"alice","uid":"u-123"},"groups":["developers","system:authenticated"]}`))
		case "no-uid-token":
			_, _ = w.Write([]byte(`{"metadata":{"name":"bob"},"groups":[]}`))
		case "broken-token":
			_, _ = w.Write([]byte(`{"metadata":`))
		case "denied-token":
			w.WriteHeader(http.StatusUnauthorized)
		case "forbidden-token":
			w.WriteHeader(http.StatusForbidden)
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	a := NewUserInfo("userinfo", srv.URL, testTrust(t), time.Second)

	t.Run("valid credential yields identity", func(t *testing.T) {
		calls.Store(0)
		got, err := a.Authenticate(context.Background(), "good-token")
		if err != nil {
			t.Fatalf("Authenticate() error = %v", err)
		}
		want := &core.Identity{
			Username:  "alice",
			SubjectID: "u-123",
			Groups:    []string{"developers", "system:authenticated"},
			Method:    core.MethodBearer,
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("Authenticate() mismatch (-want +got):\n%s", diff)
		}
		if calls.Load() != 1 {
			t.Errorf("upstream calls = %d, want exactly 1", calls.Load())
		}
	})

	t.Run("missing uid falls back to username", func(t *testing.T) {
		got, err := a.Authenticate(context.Background(), "no-uid-token")
		if err != nil {
			t.Fatalf("Authenticate() error = %v", err)
		}
		if got.SubjectID != "bob" {
			t.Errorf("SubjectID = %q, want fallback to username", got.SubjectID)
		}
	})

	t.Run("upstream 401 is an invalid credential", func(t *testing.T) {
		_, err := a.Authenticate(context.Background(), "denied-token")
		if !errors.Is(err, core.ErrCredentialInvalid) {
			t.Errorf("Authenticate() error = %v, want ErrCredentialInvalid", err)
		}
	})

	t.Run("upstream 403 is an invalid credential", func(t *testing.T) {
		_, err := a.Authenticate(context.Background(), "forbidden-token")
		if !errors.Is(err, core.ErrCredentialInvalid) {
			t.Errorf("Authenticate() error = %v, want ErrCredentialInvalid", err)
		}
	})

	t.Run("upstream 500 means unavailable", func(t *testing.T) {
		_, err := a.Authenticate(context.Background(), "anything-else")
		if !errors.Is(err, core.ErrUpstreamUnavailable) {
			t.Errorf("Authenticate() error = %v, want ErrUpstreamUnavailable", err)
		}
	})

	t.Run("malformed body means unavailable", func(t *testing.T) {
		_, err := a.Authenticate(context.Background(), "broken-token")
		if !errors.Is(err, core.ErrUpstreamUnavailable) {
			t.Errorf("Authenticate() error = %v, want ErrUpstreamUnavailable", err)
		}
	})
}

func TestUserInfoAuthenticator_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	a := NewUserInfo("userinfo", srv.URL, testTrust(t), 50*time.Millisecond)

	start := time.Now()
	_, err := a.Authenticate(context.Background(), "slow-token")
	elapsed := time.Since(start)

	if !errors.Is(err, core.ErrVerifyTimeout) {
		t.Fatalf("Authenticate() error = %v, want ErrVerifyTimeout", err)
	}
	if elapsed > time.Second {
		t.Errorf("Authenticate() took %v, want prompt denial after the deadline", elapsed)
	}
}

func TestUserInfoAuthenticator_UpstreamDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // refuse all connections

	a := NewUserInfo("userinfo", srv.URL, testTrust(t), time.Second)

	_, err := a.Authenticate(context.Background(), "token")
	if !errors.Is(err, core.ErrUpstreamUnavailable) {
		t.Errorf("Authenticate() error = %v, want ErrUpstreamUnavailable", err)
	}
}

func TestUserInfoAuthenticator_TLSTrust(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"metadata":{"name":"alice","uid":"u-123"},"groups":[]}`))
	}))
	defer srv.Close()

	t.Run("system trust rejects the self-signed upstream", func(t *testing.T) {
		a := NewUserInfo("userinfo", srv.URL, testTrust(t), time.Second)
		_, err := a.Authenticate(context.Background(), "token")
		if !errors.Is(err, core.ErrUpstreamUnavailable) {
			t.Errorf("Authenticate() error = %v, want ErrUpstreamUnavailable", err)
		}
	})

	t.Run("verify off accepts it", func(t *testing.T) {
		trust := NewTrustPolicy(false, "")
		trust.inClusterCAPath = ""
		a := NewUserInfo("userinfo", srv.URL, trust, time.Second)
		got, err := a.Authenticate(context.Background(), "token")
		if err != nil {
			t.Fatalf("Authenticate() error = %v", err)
		}
		if got.Username != "alice" {
			t.Errorf("Username = %q, want alice", got.Username)
		}
	})
}
