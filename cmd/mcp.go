package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	mcpSdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/neuassist/neuassist/internal/config"
	"github.com/neuassist/neuassist/internal/mcp"
	"github.com/neuassist/neuassist/internal/portal"
	"github.com/neuassist/neuassist/internal/tools"
)

// runMCP initializes and starts the MCP server on stdio transport. Only the
// retrieval pipeline is wired; the upstream LLM provider is not needed here.
func runMCP() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err = cfg.ValidateMCP(); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger := slog.Default()
	logger.Info("starting MCP server", "version", Version)

	client, err := portal.NewClient(portal.Config{
		SSOURL:   cfg.Portal.SSOURL,
		EamsURL:  cfg.Portal.EamsURL,
		Username: cfg.Portal.Username,
		Password: cfg.Portal.Password,
		Logger:   logger,
	})
	if err != nil {
		return fmt.Errorf("creating portal client: %w", err)
	}

	cache, err := portal.NewCache(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("creating portal cache: %w", err)
	}

	registry, err := tools.NewAcademic(portal.NewService(client, cache, logger))
	if err != nil {
		return fmt.Errorf("registering academic tools: %w", err)
	}

	mcpServer, err := mcp.NewServer(mcp.Config{
		Name:     "neuassist",
		Version:  Version,
		Registry: registry,
	})
	if err != nil {
		return fmt.Errorf("creating MCP server: %w", err)
	}

	logger.Info("MCP server ready", "name", "neuassist", "version", Version, "transport", "stdio")

	if err := mcpServer.Run(ctx, &mcpSdk.StdioTransport{}); err != nil {
		return fmt.Errorf("MCP server error: %w", err)
	}

	logger.Info("MCP server shut down gracefully")
	return nil
}
