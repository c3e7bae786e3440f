package app

import (
	"context"
	"fmt"

	"github.com/neuassist/neuassist/internal/chat"
	"github.com/neuassist/neuassist/internal/config"
	"github.com/neuassist/neuassist/internal/llm"
	"github.com/neuassist/neuassist/internal/log"
	"github.com/neuassist/neuassist/internal/observability"
	"github.com/neuassist/neuassist/internal/portal"
	"github.com/neuassist/neuassist/internal/store"
	"github.com/neuassist/neuassist/internal/tools"
)

// Setup initializes all application components from the loaded configuration.
// On error, components initialized so far are cleaned up before returning.
func Setup(ctx context.Context, cfg *config.Config, logger log.Logger) (*App, error) {
	a := &App{Config: cfg, Logger: logger}

	succeeded := false
	defer func() {
		if !succeeded {
			if err := a.Close(); err != nil {
				logger.Warn("cleanup after failed setup", "error", err)
			}
		}
	}()

	otelShutdown, err := observability.Setup(ctx, observability.Config{
		Endpoint:    cfg.Otel.Endpoint,
		ServiceName: cfg.Otel.ServiceName,
		Environment: cfg.Otel.Environment,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("setting up tracing: %w", err)
	}
	a.otelShutdown = otelShutdown

	st, err := store.Open(cfg.ConversationsFile, logger)
	if err != nil {
		return nil, fmt.Errorf("opening conversation store: %w", err)
	}
	a.Store = st

	registry, err := provideTools(cfg, logger)
	if err != nil {
		return nil, err
	}
	a.Tools = registry

	chatSvc, err := provideChat(cfg, logger, st, registry)
	if err != nil {
		return nil, err
	}
	a.Chat = chatSvc

	succeeded = true
	return a, nil
}

// provideTools builds the academic tool registry on top of the campus portal
// pipeline. Missing credentials disable the tools rather than failing startup,
// so the chat backend stays usable without a student account.
func provideTools(cfg *config.Config, logger log.Logger) (*tools.Registry, error) {
	if cfg.Portal.Username == "" || cfg.Portal.Password == "" {
		logger.Info("portal credentials not configured, academic tools disabled")
		return nil, nil
	}

	client, err := portal.NewClient(portal.Config{
		SSOURL:   cfg.Portal.SSOURL,
		EamsURL:  cfg.Portal.EamsURL,
		Username: cfg.Portal.Username,
		Password: cfg.Portal.Password,
		Logger:   logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating portal client: %w", err)
	}

	cache, err := portal.NewCache(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("creating portal cache: %w", err)
	}

	svc := portal.NewService(client, cache, logger)

	registry, err := tools.NewAcademic(svc)
	if err != nil {
		return nil, fmt.Errorf("registering academic tools: %w", err)
	}
	return registry, nil
}

func provideChat(cfg *config.Config, logger log.Logger, st *store.Store, registry *tools.Registry) (*chat.Service, error) {
	upstream, err := llm.New(llm.Config{
		BaseURL: cfg.Provider.BaseURL,
		APIKey:  cfg.Provider.APIKey,
		Logger:  logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating LLM client: %w", err)
	}

	chatCfg := chat.Config{
		Upstream:       upstream,
		Store:          st,
		Logger:         logger,
		SystemPrompt:   cfg.SystemPrompt,
		AnalysisPrompt: cfg.AnalysisPrompt,
		DefaultModel:   cfg.Provider.DefaultModel,
		ThinkingModels: cfg.Provider.ThinkingModels,
		ToolModels:     cfg.Provider.ToolModels,
	}
	// A nil *Registry must not become a non-nil Dispatcher interface.
	if registry != nil {
		chatCfg.Dispatcher = registry
	}

	svc, err := chat.New(chatCfg)
	if err != nil {
		return nil, fmt.Errorf("creating chat service: %w", err)
	}
	return svc, nil
}
