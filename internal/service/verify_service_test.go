package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/app-sre/proms-mcp/internal/audit"
	"github.com/app-sre/proms-mcp/internal/config"
	"github.com/app-sre/proms-mcp/internal/core"
	"github.com/app-sre/proms-mcp/internal/monitoring"
	"github.com/app-sre/proms-mcp/internal/store"
)

// stubAuthenticator counts Authenticate calls and returns a fixed answer.
type stubAuthenticator struct {
	name     string
	identity core.Identity
	err      error

	mu    sync.Mutex
	calls int
}

var _ core.Authenticator = (*stubAuthenticator)(nil)

func (s *stubAuthenticator) Name() string {
	return s.name
}

func (s *stubAuthenticator) Authenticate(_ context.Context, _ string) (*core.Identity, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()

	if s.err != nil {
		return nil, s.err
	}
	id := s.identity.Clone()
	return &id, nil
}

func (s *stubAuthenticator) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func aliceIdentity() core.Identity {
	return core.Identity{
		Username:  "alice",
		SubjectID: "user-1",
		Groups:    []string{"developers"},
		Method:    core.MethodBearer,
	}
}

func newTestVerifyService(t *testing.T, mode config.Mode, ttl time.Duration, chain ...core.Authenticator) (*VerifyService, *audit.InMemoryAuditor) {
	t.Helper()

	cache, err := store.NewIdentityCache(16)
	if err != nil {
		t.Fatalf("failed to create identity cache: %v", err)
	}
	auditor := audit.NewInMemoryAuditor()
	svc := NewVerifyService(mode, chain, cache, ttl, auditor, audit.CredentialFingerprint, monitoring.NewMetrics())
	return svc, auditor
}

func auditEntries(t *testing.T, auditor *audit.InMemoryAuditor) []core.AuditEntry {
	t.Helper()

	entries, err := auditor.GetRecent(100)
	if err != nil {
		t.Fatalf("failed to read audit entries: %v", err)
	}
	return entries
}

func TestVerifyOpenMode(t *testing.T) {
	upstream := &stubAuthenticator{name: "cluster", identity: aliceIdentity()}
	svc, auditor := newTestVerifyService(t, config.ModeOpen, time.Minute, upstream)

	for _, credential := range []string{"", "sha256~whatever"} {
		id, err := svc.Verify(context.Background(), credential)
		if err != nil {
			t.Fatalf("Verify(%q) returned error: %v", credential, err)
		}
		if diff := cmp.Diff(core.DevIdentity(), *id); diff != "" {
			t.Errorf("identity mismatch (-want +got):\n%s", diff)
		}
	}

	if got := upstream.callCount(); got != 0 {
		t.Errorf("expected no upstream calls in open mode, got %d", got)
	}
	if entries := auditEntries(t, auditor); len(entries) != 0 {
		t.Errorf("expected no audit entries in open mode, got %d", len(entries))
	}
}

func TestVerifyAbsentCredential(t *testing.T) {
	upstream := &stubAuthenticator{name: "cluster", identity: aliceIdentity()}
	svc, auditor := newTestVerifyService(t, config.ModeEnforced, time.Minute, upstream)

	ctx := context.WithValue(context.Background(), "correlation_id", "req-42")
	id, err := svc.Verify(ctx, "")
	if !errors.Is(err, core.ErrCredentialAbsent) {
		t.Fatalf("expected ErrCredentialAbsent, got %v", err)
	}
	if id != nil {
		t.Errorf("expected nil identity on denial, got %+v", id)
	}
	if got := upstream.callCount(); got != 0 {
		t.Errorf("absent credential must not reach the chain, got %d calls", got)
	}

	entries := auditEntries(t, auditor)
	if len(entries) != 1 {
		t.Fatalf("expected 1 audit entry, got %d", len(entries))
	}
	entry := entries[0]
	if entry.ID != "req-42" {
		t.Errorf("expected correlation id req-42 in audit entry, got %q", entry.ID)
	}
	if entry.Granted {
		t.Error("expected denied audit entry")
	}
	if entry.Cause != "credential_absent" {
		t.Errorf("expected cause credential_absent, got %q", entry.Cause)
	}
	if entry.Fingerprint != "" {
		t.Errorf("expected no fingerprint for an absent credential, got %q", entry.Fingerprint)
	}
}

func TestVerifyCachesIdentity(t *testing.T) {
	upstream := &stubAuthenticator{name: "cluster", identity: aliceIdentity()}
	svc, auditor := newTestVerifyService(t, config.ModeEnforced, time.Minute, upstream)

	first, err := svc.Verify(context.Background(), "sha256~token")
	if err != nil {
		t.Fatalf("first Verify returned error: %v", err)
	}
	if diff := cmp.Diff(aliceIdentity(), *first); diff != "" {
		t.Errorf("identity mismatch (-want +got):\n%s", diff)
	}
	if got := upstream.callCount(); got != 1 {
		t.Fatalf("expected 1 upstream call, got %d", got)
	}

	// Mutating the returned identity must not poison the cache.
	first.Groups[0] = "mutated"

	second, err := svc.Verify(context.Background(), "sha256~token")
	if err != nil {
		t.Fatalf("second Verify returned error: %v", err)
	}
	if diff := cmp.Diff(aliceIdentity(), *second); diff != "" {
		t.Errorf("cached identity mismatch (-want +got):\n%s", diff)
	}
	if got := upstream.callCount(); got != 1 {
		t.Errorf("expected cache hit to skip the chain, got %d calls", got)
	}

	entries := auditEntries(t, auditor)
	if len(entries) != 2 {
		t.Fatalf("expected 2 audit entries, got %d", len(entries))
	}
	if entries[0].Method != "cluster" {
		t.Errorf("expected first entry method cluster, got %q", entries[0].Method)
	}
	if entries[1].Method != "cache" {
		t.Errorf("expected second entry method cache, got %q", entries[1].Method)
	}
	for i, entry := range entries {
		if !entry.Granted {
			t.Errorf("entry %d: expected granted", i)
		}
	}
}

func TestVerifyCacheExpiry(t *testing.T) {
	upstream := &stubAuthenticator{name: "cluster", identity: aliceIdentity()}
	svc, _ := newTestVerifyService(t, config.ModeEnforced, 10*time.Millisecond, upstream)

	if _, err := svc.Verify(context.Background(), "sha256~token"); err != nil {
		t.Fatalf("first Verify returned error: %v", err)
	}
	time.Sleep(30 * time.Millisecond)
	if _, err := svc.Verify(context.Background(), "sha256~token"); err != nil {
		t.Fatalf("second Verify returned error: %v", err)
	}

	if got := upstream.callCount(); got != 2 {
		t.Errorf("expected expired entry to trigger re-verification, got %d calls", got)
	}
}

func TestVerifyChainFallsThrough(t *testing.T) {
	primary := &stubAuthenticator{
		name: "cluster",
		err:  fmt.Errorf("%w: userinfo endpoint rejected token", core.ErrCredentialInvalid),
	}
	backup := &stubAuthenticator{
		name: "review",
		identity: core.Identity{
			Username:  "bob",
			SubjectID: "user-2",
			Groups:    []string{"system:serviceaccounts"},
			Method:    core.MethodTokenReview,
		},
	}
	svc, auditor := newTestVerifyService(t, config.ModeEnforced, time.Minute, primary, backup)

	id, err := svc.Verify(context.Background(), "sha256~token")
	if err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}
	if id.Username != "bob" || id.Method != core.MethodTokenReview {
		t.Errorf("expected identity from the second authenticator, got %+v", id)
	}
	if got := primary.callCount(); got != 1 {
		t.Errorf("expected 1 call to the primary authenticator, got %d", got)
	}
	if got := backup.callCount(); got != 1 {
		t.Errorf("expected 1 call to the backup authenticator, got %d", got)
	}

	entries := auditEntries(t, auditor)
	if len(entries) != 1 {
		t.Fatalf("expected 1 audit entry, got %d", len(entries))
	}
	if entries[0].Method != "review" {
		t.Errorf("expected method review, got %q", entries[0].Method)
	}

	// The success came from the fallback, so the next call must be served
	// from cache without touching either authenticator again.
	if _, err := svc.Verify(context.Background(), "sha256~token"); err != nil {
		t.Fatalf("cached Verify returned error: %v", err)
	}
	if got := primary.callCount() + backup.callCount(); got != 2 {
		t.Errorf("expected cache hit after fallback success, got %d total calls", got)
	}
}

func TestVerifyAllAuthenticatorsFail(t *testing.T) {
	primary := &stubAuthenticator{
		name: "cluster",
		err:  fmt.Errorf("%w: token rejected", core.ErrCredentialInvalid),
	}
	backup := &stubAuthenticator{
		name: "review",
		err:  fmt.Errorf("%w: connection refused", core.ErrUpstreamUnavailable),
	}
	svc, auditor := newTestVerifyService(t, config.ModeEnforced, time.Minute, primary, backup)

	id, err := svc.Verify(context.Background(), "sha256~token")
	if err == nil {
		t.Fatal("expected error when every authenticator fails")
	}
	if id != nil {
		t.Errorf("expected nil identity, got %+v", id)
	}
	if !errors.Is(err, core.ErrCredentialInvalid) {
		t.Errorf("expected joined error to match ErrCredentialInvalid: %v", err)
	}
	if !errors.Is(err, core.ErrUpstreamUnavailable) {
		t.Errorf("expected joined error to match ErrUpstreamUnavailable: %v", err)
	}
	if !strings.Contains(err.Error(), "verification failed") {
		t.Errorf("expected wrapped verification error, got %q", err.Error())
	}

	entries := auditEntries(t, auditor)
	if len(entries) != 1 {
		t.Fatalf("expected 1 audit entry, got %d", len(entries))
	}
	entry := entries[0]
	if entry.Granted {
		t.Error("expected denied audit entry")
	}
	if entry.Cause != "credential_invalid" {
		t.Errorf("expected cause credential_invalid, got %q", entry.Cause)
	}
	if !strings.Contains(entry.Error, "cluster") || !strings.Contains(entry.Error, "review") {
		t.Errorf("expected audit error to name both authenticators, got %q", entry.Error)
	}
}

func TestVerifyEmptyChain(t *testing.T) {
	svc, _ := newTestVerifyService(t, config.ModeEnforced, time.Minute)

	_, err := svc.Verify(context.Background(), "sha256~token")
	if !errors.Is(err, core.ErrConfigurationMissing) {
		t.Fatalf("expected ErrConfigurationMissing, got %v", err)
	}
}

func TestVerifyAuditNeverHoldsRawCredential(t *testing.T) {
	const credential = "sha256~super-secret-value"

	upstream := &stubAuthenticator{name: "cluster", identity: aliceIdentity()}
	svc, auditor := newTestVerifyService(t, config.ModeEnforced, time.Minute, upstream)

	if _, err := svc.Verify(context.Background(), credential); err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}

	entries := auditEntries(t, auditor)
	if len(entries) != 1 {
		t.Fatalf("expected 1 audit entry, got %d", len(entries))
	}
	entry := entries[0]
	if entry.Fingerprint == "" {
		t.Error("expected a credential fingerprint in the audit entry")
	}
	if entry.Fingerprint == credential {
		t.Error("fingerprint must not equal the raw credential")
	}

	raw, err := json.Marshal(entry)
	if err != nil {
		t.Fatalf("failed to marshal audit entry: %v", err)
	}
	if strings.Contains(string(raw), credential) {
		t.Errorf("audit entry leaks the raw credential: %s", raw)
	}
}

func TestVerifyConcurrentSameCredential(t *testing.T) {
	upstream := &stubAuthenticator{name: "cluster", identity: aliceIdentity()}
	svc, _ := newTestVerifyService(t, config.ModeEnforced, time.Minute, upstream)

	const workers = 8
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			id, err := svc.Verify(context.Background(), "sha256~token")
			if err == nil && id.Username != "alice" {
				err = fmt.Errorf("unexpected identity %q", id.Username)
			}
			errs[slot] = err
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Errorf("worker %d: %v", i, err)
		}
	}
	if got := upstream.callCount(); got < 1 || got > workers {
		t.Errorf("expected between 1 and %d upstream calls, got %d", workers, got)
	}
}
