package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

// ToolError reports a tool invocation that the MCP server flagged as failed.
type ToolError struct {
	Name    string
	Message string
}

func (e *ToolError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("mcp: tool %s failed", e.Name)
	}
	return fmt.Sprintf("mcp: tool %s failed: %s", e.Name, e.Message)
}

// CallResult is the outcome of a successful tool invocation on an MCP server.
type CallResult struct {
	// Text is the flattened textual content of the result.
	Text string
	// Structured holds the server's structured content verbatim, when the
	// server provided any.
	Structured json.RawMessage
}

// ListTools retrieves a single page of tool definitions from the server.
// The returned cursor is empty on the last page.
func (c *Client) ListTools(ctx context.Context, cursor string) ([]*sdkmcp.Tool, string, error) {
	if c.session == nil {
		return nil, "", ErrClientClosed
	}
	res, err := c.session.ListTools(ctx, &sdkmcp.ListToolsParams{Cursor: cursor})
	if err != nil {
		return nil, "", fmt.Errorf("mcp: list tools failed: %w", err)
	}
	return res.Tools, res.NextCursor, nil
}

// ListAllTools walks the cursor pagination and returns every tool the server exposes.
func (c *Client) ListAllTools(ctx context.Context) ([]*sdkmcp.Tool, error) {
	var all []*sdkmcp.Tool
	cursor := ""
	for {
		tools, next, err := c.ListTools(ctx, cursor)
		if err != nil {
			return nil, err
		}
		all = append(all, tools...)
		if next == "" {
			return all, nil
		}
		cursor = next
	}
}

// CallTool invokes a tool on the MCP server and returns its result. A result
// the server marked as an error is surfaced as *ToolError.
func (c *Client) CallTool(ctx context.Context, name string, args map[string]any) (*CallResult, error) {
	if c.session == nil {
		return nil, ErrClientClosed
	}
	res, err := c.session.CallTool(ctx, &sdkmcp.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	if err != nil {
		return nil, fmt.Errorf("mcp: call tool %s failed: %w", name, err)
	}

	text := normalizeContent(res.Content)
	if res.IsError {
		return nil, &ToolError{Name: name, Message: text}
	}

	result := &CallResult{Text: text}
	if res.StructuredContent != nil {
		if data, err := json.Marshal(res.StructuredContent); err == nil {
			result.Structured = data
		}
	}
	return result, nil
}

func normalizeContent(contents []sdkmcp.Content) string {
	parts := make([]string, 0, len(contents))
	for _, content := range contents {
		switch v := content.(type) {
		case *sdkmcp.TextContent:
			parts = append(parts, v.Text)
		default:
			if data, err := json.Marshal(content); err == nil {
				parts = append(parts, string(data))
			}
		}
	}
	return strings.TrimSpace(strings.Join(parts, "\n"))
}
