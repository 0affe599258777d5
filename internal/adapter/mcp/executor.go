// Package mcp provides the tool execution adapter: a client for an external
// MCP server reached over stdio.
package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	mcpclient "github.com/mark3labs/mcp-go/client"
	mcpprotocol "github.com/mark3labs/mcp-go/mcp"

	"github.com/Strob0t/Chorus/internal/config"
	"github.com/Strob0t/Chorus/internal/domain"
	"github.com/Strob0t/Chorus/internal/port/toolexec"
)

// Executor runs tools against a single MCP server spawned as a subprocess.
// It implements the tool execution port.
type Executor struct {
	client mcpclient.MCPClient

	mu    sync.RWMutex
	tools []toolexec.Descriptor // refreshed on ListTools
}

var _ toolexec.Executor = (*Executor)(nil)

// NewExecutor spawns the configured MCP server and performs the initialize
// handshake. The returned Executor must be closed when no longer needed.
func NewExecutor(ctx context.Context, cfg config.MCP) (*Executor, error) {
	client, err := mcpclient.NewStdioMCPClient(cfg.Command, cfg.Env, cfg.Args...)
	if err != nil {
		return nil, fmt.Errorf("spawn mcp server: %w: %w", domain.ErrConnectivity, err)
	}

	initReq := mcpprotocol.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcpprotocol.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcpprotocol.Implementation{
		Name:    "chorus",
		Version: "1.0.0",
	}
	initResult, err := client.Initialize(ctx, initReq)
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("mcp initialize: %w: %w", domain.ErrConnectivity, err)
	}

	slog.Info("mcp server connected",
		"server", initResult.ServerInfo.Name,
		"version", initResult.ServerInfo.Version,
	)

	return &Executor{client: client}, nil
}

// ListTools queries the server for its tool catalog. Results are cached so
// repeated prompt builds do not round-trip the subprocess; the cache refreshes
// whenever the query succeeds.
func (e *Executor) ListTools(ctx context.Context) ([]toolexec.Descriptor, error) {
	result, err := e.client.ListTools(ctx, mcpprotocol.ListToolsRequest{})
	if err != nil {
		e.mu.RLock()
		cached := e.tools
		e.mu.RUnlock()
		if cached != nil {
			slog.Debug("mcp tool listing failed, serving cached catalog", "error", err)
			return cached, nil
		}
		return nil, fmt.Errorf("mcp list tools: %w: %w", domain.ErrConnectivity, err)
	}

	tools := make([]toolexec.Descriptor, 0, len(result.Tools))
	for i := range result.Tools {
		tools = append(tools, toolexec.Descriptor{
			Name:        result.Tools[i].Name,
			Description: result.Tools[i].Description,
		})
	}

	e.mu.Lock()
	e.tools = tools
	e.mu.Unlock()
	return tools, nil
}

// ExecuteTool invokes the named tool and renders its content as text. A
// result flagged IsError by the server is surfaced as an execution error.
func (e *Executor) ExecuteTool(ctx context.Context, name string, parameters map[string]any) (string, error) {
	req := mcpprotocol.CallToolRequest{
		Params: mcpprotocol.CallToolParams{
			Name:      name,
			Arguments: parameters,
		},
	}

	result, err := e.client.CallTool(ctx, req)
	if err != nil {
		return "", fmt.Errorf("call tool %s: %w: %w", name, domain.ErrToolExecution, err)
	}

	text := renderContent(result.Content)
	if result.IsError {
		return "", fmt.Errorf("tool %s: %w: %s", name, domain.ErrToolExecution, text)
	}
	return text, nil
}

// Close shuts down the MCP server subprocess.
func (e *Executor) Close() error {
	return e.client.Close()
}

// renderContent flattens MCP content blocks into plain text. Non-text blocks
// are noted by type rather than dropped silently.
func renderContent(blocks []mcpprotocol.Content) string {
	var b strings.Builder
	for _, block := range blocks {
		switch c := block.(type) {
		case mcpprotocol.TextContent:
			if b.Len() > 0 {
				b.WriteString("\n")
			}
			b.WriteString(c.Text)
		default:
			if b.Len() > 0 {
				b.WriteString("\n")
			}
			fmt.Fprintf(&b, "[non-text content: %T]", block)
		}
	}
	return b.String()
}
