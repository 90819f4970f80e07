package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/app-sre/proms-mcp/internal/config"
	"github.com/app-sre/proms-mcp/internal/core"
	"github.com/app-sre/proms-mcp/internal/monitoring"
)

// VerifyService turns inbound bearer credentials into verified
// identities. It owns the cache-then-chain decision flow; the HTTP
// layer only extracts the credential and maps every failure to one
// uniform denial.
type VerifyService struct {
	mode        config.Mode
	chain       []core.Authenticator
	cache       core.IdentityCache
	cacheTTL    time.Duration
	auditor     core.Auditor
	fingerprint core.Fingerprinter
	metrics     *monitoring.Metrics
}

func NewVerifyService(
	mode config.Mode,
	chain []core.Authenticator,
	cache core.IdentityCache,
	cacheTTL time.Duration,
	auditor core.Auditor,
	fingerprint core.Fingerprinter,
	metrics *monitoring.Metrics,
) *VerifyService {
	return &VerifyService{
		mode:        mode,
		chain:       chain,
		cache:       cache,
		cacheTTL:    cacheTTL,
		auditor:     auditor,
		fingerprint: fingerprint,
		metrics:     metrics,
	}
}

// Mode returns the configured verification mode.
func (s *VerifyService) Mode() config.Mode {
	return s.mode
}

// Verify resolves a credential to an identity. In open mode it returns
// the fixed development identity without touching cache, chain or
// network. In enforced mode the order is: absent check, cache, then the
// authenticator chain; the first success is cached and wins.
func (s *VerifyService) Verify(ctx context.Context, credential string) (*core.Identity, error) {
	if s.mode == config.ModeOpen {
		id := core.DevIdentity()
		s.metrics.AuthRequests.WithLabelValues(string(core.MethodNone), "granted").Inc()
		return &id, nil
	}

	logger := log.Ctx(ctx)
	reqID, _ := ctx.Value("correlation_id").(string)
	start := time.Now()

	auditEntry := core.AuditEntry{
		ID:     reqID,
		Time:   start,
		Action: "authn.verify",
	}
	defer func() {
		auditEntry.DurationMS = time.Since(start).Milliseconds()
		if err := s.auditor.Log(auditEntry); err != nil {
			logger.Error().Err(err).Msg("failed to write audit log entry for verification")
		}
	}()

	if credential == "" {
		auditEntry.Cause = core.CauseClass(core.ErrCredentialAbsent)
		auditEntry.Error = core.ErrCredentialAbsent.Error()
		s.metrics.AuthRequests.WithLabelValues(string(core.MethodNone), "denied").Inc()
		return nil, core.ErrCredentialAbsent
	}

	auditEntry.Fingerprint = s.fingerprint(credential)

	if id, ok := s.cache.Lookup(credential); ok {
		s.metrics.CacheEvents.WithLabelValues("hit").Inc()
		s.metrics.AuthRequests.WithLabelValues(string(id.Method), "granted").Inc()
		auditEntry.Granted = true
		auditEntry.Identity = &id
		auditEntry.Method = "cache"
		logger.Debug().Str("username", id.Username).Msg("identity served from cache")
		return &id, nil
	}
	s.metrics.CacheEvents.WithLabelValues("miss").Inc()

	var failures []error
	for _, authenticator := range s.chain {
		attemptStart := time.Now()
		identity, err := authenticator.Authenticate(ctx, credential)
		if err != nil {
			class := core.CauseClass(err)
			s.metrics.UpstreamDuration.
				WithLabelValues(authenticator.Name(), class).
				Observe(time.Since(attemptStart).Seconds())
			logger.Warn().
				Err(err).
				Str("authenticator", authenticator.Name()).
				Str("cause", class).
				Msg("authenticator rejected credential")
			failures = append(failures, fmt.Errorf("%s: %w", authenticator.Name(), err))
			continue
		}
		s.metrics.UpstreamDuration.
			WithLabelValues(authenticator.Name(), "ok").
			Observe(time.Since(attemptStart).Seconds())

		s.cache.Store(credential, *identity, s.cacheTTL)
		s.metrics.CacheEvents.WithLabelValues("store").Inc()
		s.metrics.AuthRequests.WithLabelValues(string(identity.Method), "granted").Inc()

		logger.UpdateContext(func(c zerolog.Context) zerolog.Context {
			return c.Str("username", identity.Username)
		})
		logger.Info().Str("authenticator", authenticator.Name()).Msg("credential verified")

		auditEntry.Granted = true
		auditEntry.Identity = identity
		auditEntry.Method = authenticator.Name()
		return identity, nil
	}

	err := errors.Join(failures...)
	if err == nil {
		err = fmt.Errorf("%w: no authenticators configured", core.ErrConfigurationMissing)
	}
	auditEntry.Cause = core.CauseClass(err)
	auditEntry.Error = err.Error()
	s.metrics.AuthRequests.WithLabelValues(string(core.MethodNone), "denied").Inc()
	return nil, fmt.Errorf("verification failed: %w", err)
}
