package tasks

import (
	"context"
	"time"

	"github.com/app-sre/proms-mcp/internal/core"
	"github.com/app-sre/proms-mcp/internal/logging"
	"github.com/app-sre/proms-mcp/internal/monitoring"
	"github.com/app-sre/proms-mcp/internal/prom"
)

// minSweepInterval keeps the cache sweeper from spinning when the
// configured TTL is very short.
const minSweepInterval = time.Minute

// CacheSweep evicts expired identity cache entries. Expired entries are
// already invisible to lookups; the sweep reclaims their slots so the
// cache does not fill up with dead weight between verifications.
func CacheSweep(cache core.IdentityCache, metrics *monitoring.Metrics, ttl time.Duration) TaskDefinition {
	interval := ttl
	if interval < minSweepInterval {
		interval = minSweepInterval
	}
	return TaskDefinition{
		Name:     "cache-sweep",
		Interval: interval,
		Handler: func(_ context.Context, logger logging.InternalLogger) error {
			evicted := cache.EvictExpired()
			if evicted > 0 {
				metrics.CacheEvents.WithLabelValues("evict").Add(float64(evicted))
			}
			logger.Info("evicted %d expired cache entries, %d remaining", evicted, cache.Len())
			return nil
		},
	}
}

// DatasourceReload re-reads the provisioning file and swaps the
// registry contents, keeping clients whose definition did not change.
func DatasourceReload(registry *prom.Registry, metrics *monitoring.Metrics, interval time.Duration) TaskDefinition {
	return TaskDefinition{
		Name:     "datasource-reload",
		Interval: interval,
		Handler: func(_ context.Context, logger logging.InternalLogger) error {
			count, err := registry.Reload()
			if err != nil {
				return err
			}
			metrics.DatasourcesConfigured.Set(float64(count))
			logger.Info("loaded %d datasources", count)
			return nil
		},
	}
}
