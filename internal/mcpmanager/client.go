package mcpmanager

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"

	"github.com/google/uuid"
)

// Tool is an MCP tool definition as advertised by an upstream server.
type Tool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"inputSchema,omitempty"`
}

// ToolContent is one content block of a tool call result.
type ToolContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// CallToolResult is the decoded result of a tools/call request.
type CallToolResult struct {
	Content []ToolContent `json:"content"`
	IsError bool          `json:"isError,omitempty"`
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int32  `json:"id,omitempty"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int32           `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

// Client is a streamable-HTTP MCP client: JSON-RPC 2.0 over a single
// session-scoped connection. CallTool mints a correlation id per call
// and returns it to the caller; the client keeps no record of it and
// does not deduplicate retried calls.
type Client struct {
	baseURL    string
	httpClient *http.Client
	sessionID  string
	nextID     int32
}

// NewClient opens a session against baseURL by performing the MCP
// initialize handshake.
func NewClient(ctx context.Context, baseURL string) (*Client, error) {
	c := &Client{baseURL: baseURL, httpClient: http.DefaultClient}
	if err := c.initialize(ctx); err != nil {
		return nil, fmt.Errorf("mcp initialize %s: %w", baseURL, err)
	}
	return c, nil
}

func (c *Client) initialize(ctx context.Context) error {
	params := map[string]any{
		"protocolVersion": "2024-11-05",
		"capabilities":    map[string]any{},
		"clientInfo":      map[string]any{"name": "sshwarma", "version": "0.1.0"},
	}
	if _, err := c.sendRequest(ctx, "initialize", params); err != nil {
		return err
	}
	// Fire-and-forget notification; the server expects no response.
	_, _ = c.sendRequest(ctx, "notifications/initialized", nil)
	return nil
}

func (c *Client) sendRequest(ctx context.Context, method string, params any) (json.RawMessage, error) {
	id := atomic.AddInt32(&c.nextID, 1)
	body, err := json.Marshal(rpcRequest{JSONRPC: "2.0", ID: id, Method: method, Params: params})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/mcp", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.sessionID != "" {
		req.Header.Set("X-Session-ID", c.sessionID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if sid := resp.Header.Get("X-Session-ID"); sid != "" {
		c.sessionID = sid
	}

	if method == "notifications/initialized" || method == "notifications/cancelled" {
		return nil, nil
	}

	var rpcResp rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if rpcResp.Error != nil {
		return nil, fmt.Errorf("mcp error %d: %s", rpcResp.Error.Code, rpcResp.Error.Message)
	}
	return rpcResp.Result, nil
}

// ListTools returns the upstream server's tool catalog.
func (c *Client) ListTools(ctx context.Context) ([]Tool, error) {
	result, err := c.sendRequest(ctx, "tools/list", nil)
	if err != nil {
		return nil, err
	}
	var decoded struct {
		Tools []Tool `json:"tools"`
	}
	if err := json.Unmarshal(result, &decoded); err != nil {
		return nil, fmt.Errorf("decode tools/list: %w", err)
	}
	return decoded.Tools, nil
}

// CallTool invokes a named tool with the given arguments and returns
// the result together with a fresh correlation id for the call.
func (c *Client) CallTool(ctx context.Context, name string, args map[string]any) (CallToolResult, string, error) {
	correlationID := uuid.NewString()
	params := map[string]any{"name": name, "arguments": args}
	result, err := c.sendRequest(ctx, "tools/call", params)
	if err != nil {
		return CallToolResult{}, correlationID, err
	}
	var decoded CallToolResult
	if err := json.Unmarshal(result, &decoded); err != nil {
		return CallToolResult{}, correlationID, fmt.Errorf("decode tools/call: %w", err)
	}
	return decoded, correlationID, nil
}

// Close gracefully cancels the session.
func (c *Client) Close(ctx context.Context) {
	_, _ = c.sendRequest(ctx, "notifications/cancelled", nil)
}
