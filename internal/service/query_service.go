package service

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"

	"github.com/rs/zerolog/log"

	"github.com/app-sre/proms-mcp/internal/core"
	"github.com/app-sre/proms-mcp/internal/policy"
	"github.com/app-sre/proms-mcp/internal/prom"
)

// QueryService fans tool calls out to datasource clients, applying the
// access policy on every lookup.
type QueryService struct {
	registry *prom.Registry
	engine   *policy.Engine
}

func NewQueryService(registry *prom.Registry, engine *policy.Engine) *QueryService {
	return &QueryService{
		registry: registry,
		engine:   engine,
	}
}

// ListDatasources returns the datasources the identity may use, in
// provisioning-file order.
func (s *QueryService) ListDatasources(identity core.Identity) []core.Datasource {
	return s.engine.Filter(identity, s.registry.List())
}

// clientFor resolves a datasource name for the identity. Unknown and
// policy-filtered datasources answer identically.
func (s *QueryService) clientFor(ctx context.Context, identity core.Identity, name string) (*prom.Client, error) {
	client, ok := s.registry.Get(name)
	if !ok || !s.engine.Allowed(identity, name) {
		log.Ctx(ctx).Debug().
			Str("datasource", name).
			Str("username", identity.Username).
			Bool("configured", ok).
			Msg("datasource lookup refused")
		return nil, fmt.Errorf("%w: %s", ErrDatasourceNotFound, name)
	}
	return client, nil
}

func (s *QueryService) QueryInstant(ctx context.Context, identity core.Identity, datasource, query, ts string) (json.RawMessage, error) {
	client, err := s.clientFor(ctx, identity, datasource)
	if err != nil {
		return nil, err
	}
	return client.QueryInstant(ctx, query, ts)
}

func (s *QueryService) QueryRange(ctx context.Context, identity core.Identity, datasource, query, start, end, step string) (json.RawMessage, error) {
	client, err := s.clientFor(ctx, identity, datasource)
	if err != nil {
		return nil, err
	}
	return client.QueryRange(ctx, query, start, end, step)
}

func (s *QueryService) MetricNames(ctx context.Context, identity core.Identity, datasource string) (json.RawMessage, error) {
	client, err := s.clientFor(ctx, identity, datasource)
	if err != nil {
		return nil, err
	}
	return client.MetricNames(ctx)
}

func (s *QueryService) MetricMetadata(ctx context.Context, identity core.Identity, datasource, metric string) (json.RawMessage, error) {
	client, err := s.clientFor(ctx, identity, datasource)
	if err != nil {
		return nil, err
	}
	return client.MetricMetadata(ctx, metric)
}

func (s *QueryService) LabelValues(ctx context.Context, identity core.Identity, datasource, label string) (json.RawMessage, error) {
	client, err := s.clientFor(ctx, identity, datasource)
	if err != nil {
		return nil, err
	}
	return client.LabelValues(ctx, label)
}

// MetricLabels collects the label names used by a metric's series,
// without __name__.
func (s *QueryService) MetricLabels(ctx context.Context, identity core.Identity, datasource, metric string) ([]string, error) {
	client, err := s.clientFor(ctx, identity, datasource)
	if err != nil {
		return nil, err
	}
	body, err := client.Series(ctx, []string{metric}, "", "")
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Data []map[string]string `json:"data"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("%w: decoding series answer: %w", prom.ErrUnavailable, err)
	}

	seen := make(map[string]struct{})
	for _, series := range parsed.Data {
		for label := range series {
			if label == "__name__" {
				continue
			}
			seen[label] = struct{}{}
		}
	}
	labels := make([]string, 0, len(seen))
	for label := range seen {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels, nil
}

// FindMetrics filters the datasource's metric names by a regular
// expression (unanchored, like a search).
func (s *QueryService) FindMetrics(ctx context.Context, identity core.Identity, datasource, pattern string) ([]string, error) {
	regex, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid regex pattern: %w", prom.ErrInvalidQuery, err)
	}

	client, cerr := s.clientFor(ctx, identity, datasource)
	if cerr != nil {
		return nil, cerr
	}
	body, err := client.MetricNames(ctx)
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Data []string `json:"data"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("%w: decoding metric names: %w", prom.ErrUnavailable, err)
	}

	var matching []string
	for _, name := range parsed.Data {
		if regex.MatchString(name) {
			matching = append(matching, name)
		}
	}
	return matching, nil
}
