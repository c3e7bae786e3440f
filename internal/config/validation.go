package config

import (
	"fmt"
	"slices"
)

// ValidateServe validates configuration required to run the HTTP server.
// Fail-fast: called once at startup before any component is constructed.
func (c *Config) ValidateServe() error {
	if c.Provider.BaseURL == "" {
		return ErrMissingBaseURL
	}
	if c.Provider.APIKey == "" {
		return fmt.Errorf("%w: set DASHSCOPE_API_KEY", ErrMissingAPIKey)
	}
	if len(c.Provider.Models) == 0 {
		return ErrNoModels
	}
	if c.Provider.DefaultModel == "" {
		return fmt.Errorf("%w: default model is empty", ErrInvalidModel)
	}
	if !slices.Contains(c.Provider.Models, c.Provider.DefaultModel) {
		return fmt.Errorf("%w: %q not in available models", ErrInvalidModel, c.Provider.DefaultModel)
	}
	if c.RateBurst < 0 || c.RateBurst > 10000 {
		return fmt.Errorf("%w: %d (must be 0-10000)", ErrInvalidRateBurst, c.RateBurst)
	}
	if c.ConversationsFile == "" {
		return fmt.Errorf("conversations file path is empty")
	}
	return nil
}

// ValidateMCP validates configuration required to run the MCP server.
// The upstream provider is not needed; only the retrieval pipeline runs.
func (c *Config) ValidateMCP() error {
	if c.DataDir == "" {
		return fmt.Errorf("data dir is empty")
	}
	return nil
}
