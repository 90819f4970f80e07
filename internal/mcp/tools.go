package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/app-sre/proms-mcp/internal/core"
	"github.com/app-sre/proms-mcp/internal/prom"
	"github.com/app-sre/proms-mcp/internal/service"
)

const (
	statusSuccess = "success"
	statusError   = "error"
)

// envelope is the payload every tool answers with. Data and Error are
// mutually exclusive; Datasource and Query echo the request arguments
// where they apply.
type envelope struct {
	Status     string `json:"status"`
	Data       any    `json:"data,omitempty"`
	Error      string `json:"error,omitempty"`
	Datasource string `json:"datasource,omitempty"`
	Query      string `json:"query,omitempty"`
	Timestamp  string `json:"timestamp"`
}

func successEnvelope(data any, datasource, query string) envelope {
	return envelope{
		Status:     statusSuccess,
		Data:       data,
		Datasource: datasource,
		Query:      query,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	}
}

func errorEnvelope(err error, datasource, query string) envelope {
	return envelope{
		Status:     statusError,
		Error:      toolErrorText(err, datasource),
		Datasource: datasource,
		Query:      query,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	}
}

// toolErrorText renders a service error for tool callers. Unknown and
// denied datasources share one text; query errors carry their taxonomy
// label.
func toolErrorText(err error, datasource string) string {
	if errors.Is(err, service.ErrDatasourceNotFound) {
		return "Datasource not found: " + datasource
	}
	return prom.ToolError(err)
}

// toolFunc runs one tool. A non-nil error means the arguments were
// unusable and the caller gets a JSON-RPC invalid-params error; every
// other failure is reported inside the envelope.
type toolFunc func(ctx context.Context, q *service.QueryService, identity core.Identity, args json.RawMessage) (envelope, error)

type toolEntry struct {
	def  Tool
	call toolFunc
}

func decodeArgs(raw json.RawMessage, dest any) error {
	if len(raw) == 0 {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	return dec.Decode(dest)
}

// extractData pulls the data field out of a Prometheus API answer.
func extractData(body json.RawMessage) (json.RawMessage, error) {
	var parsed struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("%w: decoding datasource answer: %w", prom.ErrUnavailable, err)
	}
	return parsed.Data, nil
}

func stringParam(description string) map[string]any {
	return map[string]any{"type": "string", "description": description}
}

func objectSchema(properties map[string]any, required ...string) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

func toolTable() []toolEntry {
	return []toolEntry{
		{
			def: Tool{
				Name:        "list_datasources",
				Description: "List all available Prometheus datasources.",
				InputSchema: objectSchema(map[string]any{}),
			},
			call: callListDatasources,
		},
		{
			def: Tool{
				Name:        "list_metrics",
				Description: "Get all available metric names from a datasource.",
				InputSchema: objectSchema(map[string]any{
					"datasource_id": stringParam("ID of the Prometheus datasource"),
				}, "datasource_id"),
			},
			call: callListMetrics,
		},
		{
			def: Tool{
				Name:        "get_metric_metadata",
				Description: "Get metadata for a specific metric.",
				InputSchema: objectSchema(map[string]any{
					"datasource_id": stringParam("ID of the Prometheus datasource"),
					"metric_name":   stringParam("Name of the metric to get metadata for"),
				}, "datasource_id", "metric_name"),
			},
			call: callMetricMetadata,
		},
		{
			def: Tool{
				Name:        "query_instant",
				Description: "Execute instant PromQL query.",
				InputSchema: objectSchema(map[string]any{
					"datasource_id": stringParam("ID of the Prometheus datasource"),
					"promql":        stringParam("PromQL query string"),
					"time":          stringParam("Optional timestamp (RFC3339 or Unix timestamp)"),
				}, "datasource_id", "promql"),
			},
			call: callQueryInstant,
		},
		{
			def: Tool{
				Name:        "query_range",
				Description: "Execute range PromQL query.",
				InputSchema: objectSchema(map[string]any{
					"datasource_id": stringParam("ID of the Prometheus datasource"),
					"promql":        stringParam("PromQL query string"),
					"start":         stringParam("Start timestamp (RFC3339 or Unix timestamp)"),
					"end":           stringParam("End timestamp (RFC3339 or Unix timestamp)"),
					"step":          stringParam(`Step duration (e.g., "30s", "1m", "5m")`),
				}, "datasource_id", "promql", "start", "end", "step"),
			},
			call: callQueryRange,
		},
		{
			def: Tool{
				Name:        "get_metric_labels",
				Description: "Get all label names for a specific metric.",
				InputSchema: objectSchema(map[string]any{
					"datasource_id": stringParam("ID of the Prometheus datasource"),
					"metric_name":   stringParam("Name of the metric"),
				}, "datasource_id", "metric_name"),
			},
			call: callMetricLabels,
		},
		{
			def: Tool{
				Name:        "get_label_values",
				Description: "Get all values for a specific label.",
				InputSchema: objectSchema(map[string]any{
					"datasource_id": stringParam("ID of the Prometheus datasource"),
					"label_name":    stringParam("Name of the label"),
					"metric_name":   stringParam("Optional metric name to filter by"),
				}, "datasource_id", "label_name"),
			},
			call: callLabelValues,
		},
		{
			def: Tool{
				Name:        "find_metrics_by_pattern",
				Description: "Find metrics matching a regex pattern.",
				InputSchema: objectSchema(map[string]any{
					"datasource_id": stringParam("ID of the Prometheus datasource"),
					"pattern":       stringParam("Regex pattern to match against metric names"),
				}, "datasource_id", "pattern"),
			},
			call: callFindMetrics,
		},
	}
}

func callListDatasources(_ context.Context, q *service.QueryService, identity core.Identity, _ json.RawMessage) (envelope, error) {
	type entry struct {
		ID   string `json:"id"`
		Name string `json:"name"`
		URL  string `json:"url"`
		Type string `json:"type"`
	}

	list := q.ListDatasources(identity)
	entries := make([]entry, 0, len(list))
	for _, ds := range list {
		entries = append(entries, entry{ID: ds.Name, Name: ds.Name, URL: ds.URL, Type: "prometheus"})
	}
	return successEnvelope(entries, "", ""), nil
}

func callListMetrics(ctx context.Context, q *service.QueryService, identity core.Identity, raw json.RawMessage) (envelope, error) {
	var args struct {
		DatasourceID string `json:"datasource_id"`
	}
	if err := decodeArgs(raw, &args); err != nil {
		return envelope{}, err
	}
	if args.DatasourceID == "" {
		return envelope{}, errors.New("datasource_id is required")
	}

	body, err := q.MetricNames(ctx, identity, args.DatasourceID)
	if err != nil {
		return errorEnvelope(err, args.DatasourceID, ""), nil
	}
	data, err := extractData(body)
	if err != nil {
		return errorEnvelope(err, args.DatasourceID, ""), nil
	}
	return successEnvelope(data, args.DatasourceID, ""), nil
}

func callMetricMetadata(ctx context.Context, q *service.QueryService, identity core.Identity, raw json.RawMessage) (envelope, error) {
	var args struct {
		DatasourceID string `json:"datasource_id"`
		MetricName   string `json:"metric_name"`
	}
	if err := decodeArgs(raw, &args); err != nil {
		return envelope{}, err
	}
	if args.DatasourceID == "" || args.MetricName == "" {
		return envelope{}, errors.New("datasource_id and metric_name are required")
	}

	body, err := q.MetricMetadata(ctx, identity, args.DatasourceID, args.MetricName)
	if err != nil {
		return errorEnvelope(err, args.DatasourceID, ""), nil
	}
	return successEnvelope(json.RawMessage(body), args.DatasourceID, ""), nil
}

func callQueryInstant(ctx context.Context, q *service.QueryService, identity core.Identity, raw json.RawMessage) (envelope, error) {
	var args struct {
		DatasourceID string `json:"datasource_id"`
		PromQL       string `json:"promql"`
		Time         string `json:"time"`
	}
	if err := decodeArgs(raw, &args); err != nil {
		return envelope{}, err
	}
	if args.DatasourceID == "" || args.PromQL == "" {
		return envelope{}, errors.New("datasource_id and promql are required")
	}

	body, err := q.QueryInstant(ctx, identity, args.DatasourceID, args.PromQL, args.Time)
	if err != nil {
		return errorEnvelope(err, args.DatasourceID, args.PromQL), nil
	}
	return successEnvelope(json.RawMessage(body), args.DatasourceID, args.PromQL), nil
}

func callQueryRange(ctx context.Context, q *service.QueryService, identity core.Identity, raw json.RawMessage) (envelope, error) {
	var args struct {
		DatasourceID string `json:"datasource_id"`
		PromQL       string `json:"promql"`
		Start        string `json:"start"`
		End          string `json:"end"`
		Step         string `json:"step"`
	}
	if err := decodeArgs(raw, &args); err != nil {
		return envelope{}, err
	}
	if args.DatasourceID == "" || args.PromQL == "" || args.Start == "" || args.End == "" || args.Step == "" {
		return envelope{}, errors.New("datasource_id, promql, start, end and step are required")
	}

	body, err := q.QueryRange(ctx, identity, args.DatasourceID, args.PromQL, args.Start, args.End, args.Step)
	if err != nil {
		return errorEnvelope(err, args.DatasourceID, args.PromQL), nil
	}
	return successEnvelope(json.RawMessage(body), args.DatasourceID, args.PromQL), nil
}

func callMetricLabels(ctx context.Context, q *service.QueryService, identity core.Identity, raw json.RawMessage) (envelope, error) {
	var args struct {
		DatasourceID string `json:"datasource_id"`
		MetricName   string `json:"metric_name"`
	}
	if err := decodeArgs(raw, &args); err != nil {
		return envelope{}, err
	}
	if args.DatasourceID == "" || args.MetricName == "" {
		return envelope{}, errors.New("datasource_id and metric_name are required")
	}

	labels, err := q.MetricLabels(ctx, identity, args.DatasourceID, args.MetricName)
	if err != nil {
		return errorEnvelope(err, args.DatasourceID, ""), nil
	}
	return successEnvelope(labels, args.DatasourceID, ""), nil
}

func callLabelValues(ctx context.Context, q *service.QueryService, identity core.Identity, raw json.RawMessage) (envelope, error) {
	var args struct {
		DatasourceID string `json:"datasource_id"`
		LabelName    string `json:"label_name"`
		// MetricName is accepted for compatibility but not used as a filter.
		MetricName string `json:"metric_name"`
	}
	if err := decodeArgs(raw, &args); err != nil {
		return envelope{}, err
	}
	if args.DatasourceID == "" || args.LabelName == "" {
		return envelope{}, errors.New("datasource_id and label_name are required")
	}

	body, err := q.LabelValues(ctx, identity, args.DatasourceID, args.LabelName)
	if err != nil {
		return errorEnvelope(err, args.DatasourceID, ""), nil
	}
	data, err := extractData(body)
	if err != nil {
		return errorEnvelope(err, args.DatasourceID, ""), nil
	}
	return successEnvelope(data, args.DatasourceID, ""), nil
}

func callFindMetrics(ctx context.Context, q *service.QueryService, identity core.Identity, raw json.RawMessage) (envelope, error) {
	var args struct {
		DatasourceID string `json:"datasource_id"`
		Pattern      string `json:"pattern"`
	}
	if err := decodeArgs(raw, &args); err != nil {
		return envelope{}, err
	}
	if args.DatasourceID == "" || args.Pattern == "" {
		return envelope{}, errors.New("datasource_id and pattern are required")
	}

	names, err := q.FindMetrics(ctx, identity, args.DatasourceID, args.Pattern)
	if err != nil {
		return errorEnvelope(err, args.DatasourceID, ""), nil
	}
	if names == nil {
		names = []string{}
	}
	return successEnvelope(names, args.DatasourceID, ""), nil
}
