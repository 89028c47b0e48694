// Package mcp bridges tools exposed by MCP servers into the local tool
// registry, so completion turns can invoke them like any other tool.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"regexp"
	"strings"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/sweetpotato0/chatflow/mcp"
	"github.com/sweetpotato0/chatflow/tool"
)

// CallFunc invokes a named tool on an MCP server.
type CallFunc func(ctx context.Context, name string, args map[string]any) (*mcp.CallResult, error)

// BuildTools converts every tool the server exposes into local tools whose
// producers proxy invocations back to the server.
func BuildTools(ctx context.Context, client *mcp.Client) ([]*tool.Tool, error) {
	defs, err := client.ListAllTools(ctx)
	if err != nil {
		return nil, err
	}

	tools := make([]*tool.Tool, 0, len(defs))
	for _, def := range defs {
		if def == nil || def.Name == "" {
			continue
		}
		tools = append(tools, convertTool(def, client.CallTool))
	}
	return tools, nil
}

// RegisterTools loads the server's tools into the registry, replacing any
// stale entries from a previous load. It returns how many tools were
// registered.
func RegisterTools(ctx context.Context, registry *tool.Registry, client *mcp.Client) (int, error) {
	tools, err := BuildTools(ctx, client)
	if err != nil {
		return 0, err
	}
	for _, t := range tools {
		if err := registry.Upsert(t); err != nil {
			return 0, err
		}
	}
	return len(tools), nil
}

// convertTool maps an MCP tool definition onto a local tool. The producer
// announces the call, invokes the server, and yields the result as its
// terminal artifact.
func convertTool(def *sdkmcp.Tool, call CallFunc) *tool.Tool {
	name := def.Name
	return &tool.Tool{
		Name:        name,
		Description: def.Description,
		Parameters:  schemaMap(def.InputSchema),
		Render: func(ctx context.Context, args map[string]any) iter.Seq2[tool.Artifact, error] {
			return func(yield func(tool.Artifact, error) bool) {
				if !yield(tool.Intermediate(fmt.Sprintf("Calling %s...", name)), nil) {
					return
				}
				res, err := call(ctx, name, args)
				if err != nil {
					yield(tool.Artifact{}, err)
					return
				}
				yield(tool.Terminal(res.Text, resultData(res)), nil)
			}
		},
	}
}

// resultData picks what the model sees as the tool result: structured content
// when the server sent any, otherwise the text, kept raw when it is already
// valid JSON so it does not get quoted a second time.
func resultData(res *mcp.CallResult) any {
	if len(res.Structured) > 0 {
		return res.Structured
	}
	trimmed := strings.TrimSpace(res.Text)
	if trimmed != "" && json.Valid([]byte(trimmed)) {
		return json.RawMessage(trimmed)
	}
	return res.Text
}

// schemaMap converts the SDK's input schema into the plain map form the tool
// registry compiles and sends on the wire.
func schemaMap(schema any) map[string]any {
	if schema == nil {
		return nil
	}
	data, err := json.Marshal(schema)
	if err != nil {
		return nil
	}
	out := map[string]any{}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

var toolNamePattern = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

// prefixName namespaces a tool under its server so that same-named tools from
// different servers do not collide in one registry.
func prefixName(server, name string) string {
	server = toolNamePattern.ReplaceAllString(strings.TrimSpace(server), "_")
	server = strings.Trim(server, "_")
	if server == "" {
		return name
	}
	return server + "_" + name
}
