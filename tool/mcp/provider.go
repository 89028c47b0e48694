package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/sweetpotato0/chatflow/mcp"
	"github.com/sweetpotato0/chatflow/tool"
)

// Provider exposes MCP tools through the generic tool.Provider interface.
type Provider interface {
	tool.Provider
	// Client returns the underlying MCP client for advanced use cases.
	Client() *mcp.Client
}

// Transport enumerates the supported MCP transport types.
type Transport string

const (
	// TransportStreamable indicates the streamable HTTP (SSE) transport.
	TransportStreamable Transport = "streamable"
	// TransportCommand indicates the stdio/command transport.
	TransportCommand Transport = "command"
)

// Config describes how to connect to an MCP server.
type Config struct {
	// Transport selects how to connect to the MCP server. If empty, defaults to
	// streamable HTTP when Endpoint is provided, otherwise command transport.
	Transport Transport
	// Endpoint is required for streamable HTTP connections.
	Endpoint string
	// Command is required for command transport connections.
	Command string
}

type provider struct {
	client *mcp.Client
}

// NewProvider connects to the configured MCP server and exposes its tools.
func NewProvider(ctx context.Context, cfg Config, opts ...mcp.Option) (Provider, error) {
	client, err := connect(ctx, cfg, opts...)
	if err != nil {
		return nil, err
	}

	p := &provider{client: client}
	// Fail fast if we cannot list tools.
	if _, err := p.Tools(ctx); err != nil {
		_ = client.Close()
		return nil, err
	}

	return p, nil
}

func connect(ctx context.Context, cfg Config, opts ...mcp.Option) (*mcp.Client, error) {
	transport := cfg.Transport
	if transport == "" {
		if cfg.Command != "" {
			transport = TransportCommand
		} else {
			transport = TransportStreamable
		}
	}

	switch transport {
	case TransportStreamable:
		if strings.TrimSpace(cfg.Endpoint) == "" {
			return nil, errors.New("mcp: endpoint is required for streamable transport")
		}
		return mcp.NewStreamableClient(ctx, cfg.Endpoint, opts...)
	case TransportCommand:
		if strings.TrimSpace(cfg.Command) == "" {
			return nil, errors.New("mcp: command is required for command transport")
		}
		return mcp.NewStdioClient(ctx, cfg.Command, opts...)
	default:
		return nil, fmt.Errorf("mcp: unsupported transport %q", transport)
	}
}

// RegisterServers connects every configured server concurrently and registers
// its tools under a name prefixed with the server key, so that same-named
// tools from different servers do not collide. On any failure all clients
// opened so far are closed and the first error is returned.
func RegisterServers(ctx context.Context, registry *tool.Registry, servers map[string]Config, opts ...mcp.Option) (map[string]*mcp.Client, error) {
	var mu sync.Mutex
	clients := make(map[string]*mcp.Client, len(servers))

	g, gctx := errgroup.WithContext(ctx)
	for name, cfg := range servers {
		g.Go(func() error {
			client, err := connect(gctx, cfg, opts...)
			if err != nil {
				return fmt.Errorf("mcp server %s: %w", name, err)
			}
			tools, err := BuildTools(gctx, client)
			if err != nil {
				_ = client.Close()
				return fmt.Errorf("mcp server %s: %w", name, err)
			}

			mu.Lock()
			defer mu.Unlock()
			for _, t := range tools {
				t.Name = prefixName(name, t.Name)
				if err := registry.Upsert(t); err != nil {
					_ = client.Close()
					return fmt.Errorf("mcp server %s: %w", name, err)
				}
			}
			clients[name] = client
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		for _, client := range clients {
			_ = client.Close()
		}
		return nil, err
	}
	return clients, nil
}

func (p *provider) Tools(ctx context.Context) ([]*tool.Tool, error) {
	if p == nil || p.client == nil {
		return nil, errors.New("mcp: provider is not initialized")
	}
	return BuildTools(ctx, p.client)
}

func (p *provider) Close() error {
	if p == nil || p.client == nil {
		return nil
	}
	return p.client.Close()
}

func (p *provider) Client() *mcp.Client {
	if p == nil {
		return nil
	}
	return p.client
}

func (p *provider) ToolsChanged() <-chan struct{} {
	if p == nil || p.client == nil {
		return nil
	}
	return p.client.ToolsChanged()
}
