// Package app assembles the application components shared by the serve and
// mcp entrypoints: configuration, persistence, the upstream LLM client, the
// academic tool registry, and the chat orchestrator.
package app

import (
	"fmt"

	"github.com/neuassist/neuassist/internal/chat"
	"github.com/neuassist/neuassist/internal/config"
	"github.com/neuassist/neuassist/internal/log"
	"github.com/neuassist/neuassist/internal/store"
	"github.com/neuassist/neuassist/internal/tools"
)

// App holds the initialized application components.
type App struct {
	Config *config.Config
	Logger log.Logger
	Store  *store.Store
	Chat   *chat.Service
	// Tools is nil when portal credentials are not configured; chat then
	// runs without tool support and MCP mode refuses to start.
	Tools *tools.Registry

	otelShutdown func() error
}

// Close flushes pending telemetry. The store and chat service hold no
// background goroutines, so telemetry is the only resource to release.
func (a *App) Close() error {
	if a.otelShutdown != nil {
		if err := a.otelShutdown(); err != nil {
			return fmt.Errorf("shutting down tracing: %w", err)
		}
	}
	return nil
}
