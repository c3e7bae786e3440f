// Package mcp exposes the academic analysis tools over the Model Context
// Protocol so external agents can query the same retrieval pipeline.
package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/neuassist/neuassist/internal/tools"
)

// Server wraps the MCP SDK server around the tool registry.
type Server struct {
	mcpServer *mcp.Server
}

// Config holds MCP server configuration.
type Config struct {
	Name     string
	Version  string
	Registry *tools.Registry
}

// NewServer creates an MCP server exposing every registered tool.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("server name is required")
	}
	if cfg.Version == "" {
		return nil, fmt.Errorf("server version is required")
	}
	if cfg.Registry == nil {
		return nil, fmt.Errorf("tool registry is required")
	}

	mcpServer := mcp.NewServer(&mcp.Implementation{
		Name:    cfg.Name,
		Version: cfg.Version,
	}, nil)

	for _, entry := range cfg.Registry.All() {
		handler := entry.Handler
		mcp.AddTool(mcpServer, &mcp.Tool{
			Name:        entry.Name,
			Description: entry.Description,
			InputSchema: entry.Schema,
		}, func(ctx context.Context, req *mcp.CallToolRequest, in tools.AnalyzeInput) (*mcp.CallToolResult, any, error) {
			payload, err := handler(ctx, in)
			if err != nil {
				// Tool failures are agent-visible results, not protocol errors.
				return &mcp.CallToolResult{
					Content: []mcp.Content{&mcp.TextContent{Text: err.Error()}},
					IsError: true,
				}, nil, nil
			}
			return &mcp.CallToolResult{
				Content: []mcp.Content{&mcp.TextContent{Text: payload}},
			}, nil, nil
		})
	}

	return &Server{mcpServer: mcpServer}, nil
}

// Run serves the MCP protocol on the given transport until ctx is canceled.
func (s *Server) Run(ctx context.Context, transport mcp.Transport) error {
	return s.mcpServer.Run(ctx, transport)
}
