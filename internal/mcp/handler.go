package mcp

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/app-sre/proms-mcp/internal/api/middleware"
	"github.com/app-sre/proms-mcp/internal/buildinfo"
	"github.com/app-sre/proms-mcp/internal/monitoring"
	"github.com/app-sre/proms-mcp/internal/service"
)

// Handler serves the stateless streamable-HTTP MCP endpoint. Each POST
// carries exactly one JSON-RPC message and no session state is kept, so
// clients can reconnect after a server restart without renegotiation.
type Handler struct {
	queries *service.QueryService
	metrics *monitoring.Metrics
	tools   []toolEntry
	calls   map[string]toolFunc
}

var _ http.Handler = (*Handler)(nil)

func NewHandler(queries *service.QueryService, metrics *monitoring.Metrics) *Handler {
	h := &Handler{
		queries: queries,
		metrics: metrics,
		tools:   toolTable(),
		calls:   make(map[string]toolFunc),
	}
	for _, entry := range h.tools {
		h.calls[entry.def.Name] = entry.call
	}
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.writeError(w, r, http.StatusBadRequest, nil, codeParseError, "reading request body failed")
		return
	}

	if trimmed := bytes.TrimSpace(body); len(trimmed) > 0 && trimmed[0] == '[' {
		h.writeError(w, r, http.StatusBadRequest, nil, codeInvalidRequest, "batch requests are not supported")
		return
	}

	var req request
	if err := json.Unmarshal(body, &req); err != nil {
		h.writeError(w, r, http.StatusBadRequest, nil, codeParseError, "parse error")
		return
	}
	if req.JSONRPC != "2.0" || req.Method == "" {
		h.writeError(w, r, http.StatusBadRequest, req.ID, codeInvalidRequest, "invalid request")
		return
	}

	if req.isNotification() {
		// Nothing to answer and nothing to remember.
		w.WriteHeader(http.StatusAccepted)
		return
	}

	switch req.Method {
	case "initialize":
		info := buildinfo.GetBuildInfo()
		h.writeResult(w, r, req.ID, initializeResult{
			ProtocolVersion: protocolVersion,
			Capabilities: map[string]any{
				"tools": map[string]any{"listChanged": false},
			},
			ServerInfo: serverInfo{
				Name:    info.Service,
				Version: info.Version,
			},
			Instructions: serverInstructions,
		})
	case "ping":
		h.writeResult(w, r, req.ID, struct{}{})
	case "tools/list":
		tools := make([]Tool, 0, len(h.tools))
		for _, entry := range h.tools {
			tools = append(tools, entry.def)
		}
		h.writeResult(w, r, req.ID, toolsListResult{Tools: tools})
	case "tools/call":
		h.handleToolCall(w, r, req)
	default:
		h.writeError(w, r, http.StatusOK, req.ID, codeMethodNotFound, fmt.Sprintf("method not found: %s", req.Method))
	}
}

func (h *Handler) handleToolCall(w http.ResponseWriter, r *http.Request, req request) {
	ctx := r.Context()
	logger := log.Ctx(ctx)

	var params toolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil || params.Name == "" {
		h.writeError(w, r, http.StatusOK, req.ID, codeInvalidParams, "invalid tool call parameters")
		return
	}

	call, ok := h.calls[params.Name]
	if !ok {
		h.writeError(w, r, http.StatusOK, req.ID, codeInvalidParams, fmt.Sprintf("unknown tool: %s", params.Name))
		return
	}

	identity, _ := middleware.IdentityFromCtx(ctx)

	start := time.Now()
	result, err := call(ctx, h.queries, identity, params.Arguments)
	if err != nil {
		logger.Warn().Err(err).Str("tool", params.Name).Msg("tool call with unusable arguments")
		h.writeError(w, r, http.StatusOK, req.ID, codeInvalidParams, err.Error())
		return
	}
	duration := time.Since(start)

	h.metrics.ToolRequests.WithLabelValues(params.Name, result.Status).Inc()
	h.metrics.ToolDuration.WithLabelValues(params.Name).Observe(duration.Seconds())

	logger.Info().
		Str("tool", params.Name).
		Str("datasource", result.Datasource).
		Str("username", identity.Username).
		Str("status", result.Status).
		Dur("duration", duration).
		Msg("tool call completed")

	text, err := json.Marshal(result)
	if err != nil {
		logger.Error().Err(err).Str("tool", params.Name).Msg("failed to encode tool result")
		h.writeError(w, r, http.StatusOK, req.ID, codeInternalError, "failed to encode tool result")
		return
	}

	h.writeResult(w, r, req.ID, toolCallResult{
		Content: []contentBlock{{Type: "text", Text: string(text)}},
		IsError: result.Status == statusError,
	})
}

func (h *Handler) writeResult(w http.ResponseWriter, r *http.Request, id json.RawMessage, result any) {
	h.writeResponse(w, r, http.StatusOK, response{ID: id, Result: result})
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, status int, id json.RawMessage, code int, message string) {
	h.writeResponse(w, r, status, response{ID: id, Error: &rpcError{Code: code, Message: message}})
}

func (h *Handler) writeResponse(w http.ResponseWriter, r *http.Request, status int, resp response) {
	resp.JSONRPC = "2.0"
	if len(resp.ID) == 0 {
		resp.ID = json.RawMessage("null")
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("failed to write json-rpc response")
	}
}
