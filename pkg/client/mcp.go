package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/app-sre/proms-mcp/internal/api"
)

// RPCError is a JSON-RPC error answer from the MCP endpoint.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *RPCError       `json:"error"`
}

// ServerInfo identifies the server behind the MCP endpoint.
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// InitializeResult is the answer to the MCP initialize handshake.
type InitializeResult struct {
	ProtocolVersion string     `json:"protocolVersion"`
	ServerInfo      ServerInfo `json:"serverInfo"`
	Instructions    string     `json:"instructions"`
}

// ToolInfo describes one tool the server offers.
type ToolInfo struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"inputSchema"`
}

// ToolResult is a parsed tool answer. Data holds the tool payload on
// success; Error holds a "LABEL: detail" string when the tool failed.
type ToolResult struct {
	Status     string          `json:"status"`
	Data       json.RawMessage `json:"data"`
	Error      string          `json:"error"`
	Datasource string          `json:"datasource"`
	Query      string          `json:"query"`
	Timestamp  string          `json:"timestamp"`
}

// Failed reports whether the tool answered with an error envelope.
func (r *ToolResult) Failed() bool {
	return r.Status == "error"
}

// rpcCall sends one JSON-RPC request to the MCP endpoint and decodes
// the result. The server answers protocol-level failures with HTTP 400
// and a JSON-RPC error body, so the body is decoded before the status
// code is judged.
func (c *Client) rpcCall(ctx context.Context, method string, params, result any) (string, error) {
	payload := rpcRequest{
		JSONRPC: "2.0",
		ID:      c.rpcID.Add(1),
		Method:  method,
		Params:  params,
	}
	marshalled, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.url().
		setPath(api.MCPRoute).
		build(), bytes.NewReader(marshalled))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("connection failed: %w", err)
	}
	defer func(body io.ReadCloser) {
		_ = body.Close()
	}(resp.Body)
	correlation := correlationFromResponse(resp)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return correlation, fmt.Errorf("reading response: %w", err)
	}

	var rpcResp rpcResponse
	if json.Unmarshal(body, &rpcResp) != nil || (rpcResp.Result == nil && rpcResp.Error == nil) {
		if resp.StatusCode >= 400 {
			return correlation, parseErrorResponse(&http.Response{
				StatusCode: resp.StatusCode,
				Body:       io.NopCloser(bytes.NewReader(body)),
			})
		}
		return correlation, fmt.Errorf("unexpected response: %s", body)
	}
	if rpcResp.Error != nil {
		return correlation, *rpcResp.Error
	}
	if result != nil {
		if err := json.Unmarshal(rpcResp.Result, result); err != nil {
			return correlation, fmt.Errorf("decoding result: %w", err)
		}
	}
	return correlation, nil
}

// Initialize performs the MCP handshake and returns the server identity.
func (c *Client) Initialize(ctx context.Context) (*InitializeResult, string, error) {
	var result InitializeResult
	correlation, err := c.rpcCall(ctx, "initialize", struct{}{}, &result)
	if err != nil {
		return nil, correlation, err
	}
	return &result, correlation, nil
}

// ListTools returns the tools the server offers.
func (c *Client) ListTools(ctx context.Context) ([]ToolInfo, string, error) {
	var result struct {
		Tools []ToolInfo `json:"tools"`
	}
	correlation, err := c.rpcCall(ctx, "tools/list", struct{}{}, &result)
	if err != nil {
		return nil, correlation, err
	}
	return result.Tools, correlation, nil
}

// CallTool invokes a tool by name and parses the result envelope. A
// tool-level failure is not a Go error; check ToolResult.Failed.
func (c *Client) CallTool(ctx context.Context, name string, args map[string]any) (*ToolResult, string, error) {
	if args == nil {
		args = map[string]any{}
	}
	params := map[string]any{
		"name":      name,
		"arguments": args,
	}

	var result struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	}
	correlation, err := c.rpcCall(ctx, "tools/call", params, &result)
	if err != nil {
		return nil, correlation, err
	}
	if len(result.Content) == 0 {
		return nil, correlation, fmt.Errorf("tool %s returned no content", name)
	}

	var parsed ToolResult
	if err := json.Unmarshal([]byte(result.Content[0].Text), &parsed); err != nil {
		return nil, correlation, fmt.Errorf("decoding tool envelope: %w", err)
	}
	return &parsed, correlation, nil
}
