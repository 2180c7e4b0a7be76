package erp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"
)

const protocolVersion = "2025-03-26"

type jsonrpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

type jsonrpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *jsonrpcError   `json:"error,omitempty"`
}

type jsonrpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *jsonrpcError) Error() string {
	return fmt.Sprintf("jsonrpc error %d: %s", e.Code, e.Message)
}

var nextID atomic.Int64

func (c *Client) rpc(ctx context.Context, method string, params any) (json.RawMessage, error) {
	req := jsonrpcRequest{
		JSONRPC: "2.0",
		ID:      nextID.Add(1),
		Method:  method,
		Params:  params,
	}
	var resp jsonrpcResponse
	if err := c.doJSON(ctx, "POST", c.mcpURL, req, &resp); err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("%s: %w", method, resp.Error)
	}
	return resp.Result, nil
}

// Initialize performs the MCP handshake. Must be called once before Invoke.
func (c *Client) Initialize(ctx context.Context) error {
	_, err := c.rpc(ctx, "initialize", map[string]any{
		"protocolVersion": protocolVersion,
		"capabilities":    map[string]any{},
	})
	return err
}

// Ping round-trips a protocol-level ping. Cheap connectivity and auth check.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.rpc(ctx, "ping", map[string]any{})
	return err
}

// ToolNames lists the tools the server advertises.
func (c *Client) ToolNames(ctx context.Context) ([]string, error) {
	raw, err := c.rpc(ctx, "tools/list", map[string]any{})
	if err != nil {
		return nil, err
	}
	var result struct {
		Tools []struct {
			Name string `json:"name"`
		} `json:"tools"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("tools/list: decode result: %w", err)
	}
	names := make([]string, 0, len(result.Tools))
	for _, t := range result.Tools {
		names = append(names, t.Name)
	}
	return names, nil
}

// Invoke calls one remote tool and returns its unwrapped payload. Tool
// results arrive as a content list of text blocks; the first block is
// parsed as JSON when possible, otherwise returned as the raw string. The
// core never sees the envelope.
func (c *Client) Invoke(ctx context.Context, tool string, args map[string]any) (any, error) {
	raw, err := c.rpc(ctx, "tools/call", map[string]any{
		"name":      tool,
		"arguments": args,
	})
	if err != nil {
		return nil, err
	}
	var result struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
		IsError bool `json:"isError"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("tools/call %s: decode result: %w", tool, err)
	}

	var texts []string
	for _, item := range result.Content {
		if item.Type == "text" && item.Text != "" {
			texts = append(texts, item.Text)
		}
	}
	if result.IsError {
		return nil, fmt.Errorf("tool %s failed: %s", tool, strings.Join(texts, "\n"))
	}
	if len(texts) == 0 {
		return nil, nil
	}
	return bestEffortJSON(texts[0]), nil
}

// bestEffortJSON parses text as JSON when it looks like JSON; tool output
// is free-form and a plain string is a valid payload.
func bestEffortJSON(text string) any {
	t := strings.TrimSpace(text)
	if t == "" {
		return nil
	}
	var v any
	if err := json.Unmarshal([]byte(t), &v); err == nil {
		return v
	}
	return t
}
