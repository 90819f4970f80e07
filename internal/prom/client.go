package prom

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/rs/zerolog/log"

	"github.com/app-sre/proms-mcp/internal/core"
)

const (
	// DefaultQueryTimeout bounds a single Prometheus API call.
	DefaultQueryTimeout = 30 * time.Second

	// maxQueryLength rejects degenerate PromQL before it leaves the process.
	maxQueryLength = 10000

	// maxResponseBytes caps how much of a query answer is read.
	maxResponseBytes = 32 << 20
)

// Client wraps the Prometheus HTTP API of a single datasource. The
// datasource's auth header, when present, is attached to every request
// and never logged.
type Client struct {
	datasource core.Datasource
	base       string
	timeout    time.Duration
	http       *http.Client
}

// NewClient builds a client for one datasource. Datasource TLS uses
// standard verification; the cluster trust policy applies only to the
// identity upstream, not to query traffic.
func NewClient(ds core.Datasource, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultQueryTimeout
	}
	return &Client{
		datasource: ds,
		base:       strings.TrimRight(ds.URL, "/"),
		timeout:    timeout,
		http:       &http.Client{Transport: cleanhttp.DefaultPooledTransport()},
	}
}

// Datasource returns the descriptor this client queries.
func (c *Client) Datasource() core.Datasource {
	return c.datasource
}

// QueryInstant executes an instant PromQL query. ts is an optional
// evaluation time in any format Prometheus accepts (RFC3339 or unix).
func (c *Client) QueryInstant(ctx context.Context, query string, ts string) (json.RawMessage, error) {
	if err := validatePromQL(query); err != nil {
		return nil, err
	}
	params := url.Values{"query": {query}}
	if ts != "" {
		params.Set("time", ts)
	}
	return c.do(ctx, "/api/v1/query", params)
}

// QueryRange executes a range PromQL query.
func (c *Client) QueryRange(ctx context.Context, query, start, end, step string) (json.RawMessage, error) {
	if err := validatePromQL(query); err != nil {
		return nil, err
	}
	params := url.Values{
		"query": {query},
		"start": {start},
		"end":   {end},
		"step":  {step},
	}
	return c.do(ctx, "/api/v1/query_range", params)
}

// MetricNames lists every metric name the datasource knows.
func (c *Client) MetricNames(ctx context.Context) (json.RawMessage, error) {
	return c.do(ctx, "/api/v1/label/__name__/values", nil)
}

// MetricMetadata returns metadata for one metric.
func (c *Client) MetricMetadata(ctx context.Context, metric string) (json.RawMessage, error) {
	return c.do(ctx, "/api/v1/metadata", url.Values{"metric": {metric}})
}

// Series returns the series matching the given selectors. start and end
// are optional.
func (c *Client) Series(ctx context.Context, matches []string, start, end string) (json.RawMessage, error) {
	params := url.Values{}
	for _, m := range matches {
		params.Add("match[]", m)
	}
	if start != "" {
		params.Set("start", start)
	}
	if end != "" {
		params.Set("end", end)
	}
	return c.do(ctx, "/api/v1/series", params)
}

// LabelValues lists the values of one label.
func (c *Client) LabelValues(ctx context.Context, label string) (json.RawMessage, error) {
	return c.do(ctx, "/api/v1/label/"+url.PathEscape(label)+"/values", nil)
}

func (c *Client) do(ctx context.Context, endpoint string, params url.Values) (json.RawMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	target := c.base + endpoint
	if len(params) > 0 {
		target += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: building request: %w", ErrUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")
	if c.datasource.HasAuth() {
		req.Header.Set(c.datasource.AuthHeaderName, c.datasource.AuthHeaderValue)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, classifyQueryError(endpoint, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, classifyQueryError(endpoint, err)
	}

	log.Debug().
		Str("datasource", c.datasource.Name).
		Str("endpoint", endpoint).
		Int("status_code", resp.StatusCode).
		Int("response_bytes", len(body)).
		Dur("duration", time.Since(start)).
		Msg("Prometheus API call")

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: HTTP %d from %s", ErrAuthenticationFailed, resp.StatusCode, endpoint)
	case resp.StatusCode == http.StatusBadRequest:
		return nil, fmt.Errorf("%w: %s", ErrInvalidQuery, promErrorText(body))
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, fmt.Errorf("%w: HTTP %d from %s", ErrUnavailable, resp.StatusCode, endpoint)
	}

	if !json.Valid(body) {
		return nil, fmt.Errorf("%w: %s answered with invalid JSON", ErrUnavailable, endpoint)
	}
	return body, nil
}

func classifyQueryError(endpoint string, err error) error {
	var netErr interface{ Timeout() bool }
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return fmt.Errorf("%w: %s: %w", ErrQueryTimeout, endpoint, err)
	}
	return fmt.Errorf("%w: %s: %w", ErrUnavailable, endpoint, err)
}

func validatePromQL(query string) error {
	if strings.TrimSpace(query) == "" {
		return fmt.Errorf("%w: query cannot be empty", ErrInvalidQuery)
	}
	if len(query) > maxQueryLength {
		return fmt.Errorf("%w: query too long (max %d characters)", ErrInvalidQuery, maxQueryLength)
	}
	return nil
}

// promErrorText pulls the error string out of a Prometheus error body,
// falling back to the raw (truncated) body.
func promErrorText(body []byte) string {
	var parsed struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error != "" {
		return parsed.Error
	}
	text := strings.TrimSpace(string(body))
	if len(text) > 200 {
		text = text[:200]
	}
	if text == "" {
		text = "bad request"
	}
	return text
}
