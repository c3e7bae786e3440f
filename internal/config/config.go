// Package config provides application configuration management with multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (~/.neuassist/config.yaml)
//  3. Default values (sensible defaults for quick start)
//
// Main configuration categories:
//   - Provider: upstream chat-completions endpoint and model lists
//   - Storage: conversation file location and data directory
//   - Portal: campus SSO credentials for the grade retrieval tools
//   - Observability: OTLP trace export
//
// Security: Sensitive data (API keys, portal password) is never logged; the
// config directory uses 0750 permissions.
//
// Error Handling:
//   - Uses sentinel errors for Go-idiomatic error checking with errors.Is()
//   - Wrap with context using fmt.Errorf("%w: details", ErrXxx)
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

var (
	// ErrMissingAPIKey indicates the upstream provider API key is missing.
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrMissingBaseURL indicates the provider base URL is empty.
	ErrMissingBaseURL = errors.New("missing provider base URL")

	// ErrInvalidModel indicates the default model is not in the available list.
	ErrInvalidModel = errors.New("invalid default model")

	// ErrNoModels indicates the available model list is empty.
	ErrNoModels = errors.New("no models configured")

	// ErrInvalidRateBurst indicates the rate limiter burst is out of range.
	ErrInvalidRateBurst = errors.New("invalid rate burst")
)

// ProviderConfig selects the upstream chat-completions endpoint and the model
// inventory advertised to clients.
type ProviderConfig struct {
	BaseURL        string   `mapstructure:"base_url" json:"base_url"`
	APIKey         string   `mapstructure:"api_key" json:"api_key"` // SENSITIVE: masked in MarshalJSON
	Models         []string `mapstructure:"models" json:"models"`
	ThinkingModels []string `mapstructure:"thinking_models" json:"thinking_models"`
	ToolModels     []string `mapstructure:"tool_models" json:"tool_models"`
	DefaultModel   string   `mapstructure:"default_model" json:"default_model"`
}

// PortalConfig holds the campus SSO credentials and endpoints used by the
// grade retrieval pipeline. Credentials are optional at startup; tools report
// a failure payload when they are missing.
type PortalConfig struct {
	Username string `mapstructure:"username" json:"username"`
	Password string `mapstructure:"password" json:"password"` // SENSITIVE: masked in MarshalJSON
	SSOURL   string `mapstructure:"sso_url" json:"sso_url"`
	EamsURL  string `mapstructure:"eams_url" json:"eams_url"`
}

// OtelConfig configures OTLP HTTP trace export. An empty endpoint disables
// tracing.
type OtelConfig struct {
	Endpoint    string `mapstructure:"endpoint" json:"endpoint"`
	ServiceName string `mapstructure:"service_name" json:"service_name"`
	Environment string `mapstructure:"environment" json:"environment"`
}

// Config stores application configuration.
// SECURITY: Sensitive fields are explicitly masked in MarshalJSON().
// When adding new sensitive fields (passwords, API keys, tokens), update MarshalJSON.
type Config struct {
	// HTTP server
	CORSOrigins []string `mapstructure:"cors_origins" json:"cors_origins"`
	TrustProxy  bool     `mapstructure:"trust_proxy" json:"trust_proxy"` // Trust X-Real-IP/X-Forwarded-For (set true behind reverse proxy)
	RateBurst   int      `mapstructure:"rate_burst" json:"rate_burst"`

	// Conversation persistence
	DataDir           string `mapstructure:"data_dir" json:"data_dir"`
	ConversationsFile string `mapstructure:"conversations_file" json:"conversations_file"`

	// Chat behavior
	SystemPrompt   string `mapstructure:"system_prompt" json:"system_prompt"`
	AnalysisPrompt string `mapstructure:"analysis_prompt" json:"analysis_prompt"`

	Provider ProviderConfig `mapstructure:"provider" json:"provider"`
	Portal   PortalConfig   `mapstructure:"portal" json:"portal"`
	Otel     OtelConfig     `mapstructure:"otel" json:"otel"`
}

// Load loads configuration.
// Priority: Environment variables > Configuration file > Default values
func Load() (*Config, error) {
	// Configuration directory: ~/.neuassist/
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".neuassist")

	// Ensure directory exists (use 0750 permission for better security)
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configDir)
	viper.AddConfigPath(".") // Also support current directory

	setDefaults(configDir)
	bindEnvVariables()

	// Read configuration file (if exists)
	if err := viper.ReadInConfig(); err != nil {
		// Configuration file not found is not an error, use default values
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using default values",
			"search_paths", []string{configDir, "."},
			"config_name", "config.yaml")
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults(configDir string) {
	// Provider defaults (DashScope OpenAI-compatible endpoint)
	viper.SetDefault("provider.base_url", "https://dashscope.aliyuncs.com/compatible-mode/v1")
	viper.SetDefault("provider.models", []string{"qwen-max-latest", "qwen-plus-latest", "qwq-plus"})
	viper.SetDefault("provider.thinking_models", []string{"qwq-plus"})
	viper.SetDefault("provider.tool_models", []string{"qwen-max-latest", "qwen-plus-latest", "qwq-plus"})
	viper.SetDefault("provider.default_model", "qwen-max-latest")

	// Persistence defaults
	viper.SetDefault("data_dir", filepath.Join(configDir, "data"))
	viper.SetDefault("conversations_file", filepath.Join(configDir, "conversations.json"))

	// Chat defaults
	viper.SetDefault("system_prompt",
		"你是东北大学的学业助手，可以查询并分析学生的成绩、培养计划和培养计划完成情况。回答请使用中文，保持简洁准确。")
	viper.SetDefault("analysis_prompt",
		"请根据上面工具返回的数据回答用户的问题，给出清晰、有条理的分析。")

	// CORS defaults (Vite dev server)
	viper.SetDefault("cors_origins", []string{"http://localhost:5173"})

	// Proxy trust (default: false — safe for direct exposure; set true behind reverse proxy)
	viper.SetDefault("trust_proxy", false)
	viper.SetDefault("rate_burst", 60)

	// Portal defaults
	viper.SetDefault("portal.sso_url", "https://pass.neu.edu.cn")
	viper.SetDefault("portal.eams_url", "http://219.216.96.4/eams")

	// Otel defaults (empty endpoint disables tracing)
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.service_name", "neuassist")
	viper.SetDefault("otel.environment", "dev")
}

// bindEnvVariables binds sensitive environment variables explicitly.
func bindEnvVariables() {
	// Helper to panic on unexpected bind errors (hardcoded strings can't fail).
	// If this panics, it's a BUG in our code, not a runtime error.
	mustBind := func(key, envVar string) {
		if err := viper.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	// Upstream provider API key
	mustBind("provider.api_key", "DASHSCOPE_API_KEY")
	mustBind("provider.base_url", "NEUASSIST_PROVIDER_BASE_URL")
	mustBind("provider.default_model", "NEUASSIST_DEFAULT_MODEL")

	// Campus SSO credentials for the retrieval tools
	mustBind("portal.username", "NEU_USERNAME")
	mustBind("portal.password", "NEU_PASSWORD")

	// Serve-mode overrides
	mustBind("cors_origins", "NEUASSIST_CORS_ORIGINS")
	mustBind("trust_proxy", "NEUASSIST_TRUST_PROXY")
	mustBind("rate_burst", "NEUASSIST_RATE_BURST")

	// Observability
	mustBind("otel.endpoint", "OTEL_EXPORTER_OTLP_ENDPOINT")
}

// maskedValue is the placeholder for masked sensitive data.
// Full-width blocks (U+2588) avoid substring matching against real secrets.
const maskedValue = "████████"

// maskSecret masks a secret string for safe logging.
// Shows first 2 and last 2 characters, masks the rest.
// SECURITY: For secrets <=8 chars, fully masks to prevent substring attacks.
//
// THREAT MODEL: This defends against accidental logging of real secrets.
// It is NOT cryptographically secure - if logs are compromised, rotate secrets.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return maskedValue
	}
	prefix := make([]byte, 2)
	suffix := make([]byte, 2)
	copy(prefix, s[:2])
	copy(suffix, s[len(s)-2:])
	return string(prefix) + "<" + maskedValue + ">" + string(suffix)
}

// MarshalJSON implements json.Marshaler with explicit sensitive field masking.
//
// Sensitive fields masked:
//   - Provider.APIKey
//   - Portal.Password
//
// When adding new sensitive fields, update this method.
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	a := alias(c)
	a.Provider.APIKey = maskSecret(a.Provider.APIKey)
	a.Portal.Password = maskSecret(a.Portal.Password)
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

// String implements Stringer to prevent accidental printing of secrets.
func (c Config) String() string {
	data, err := c.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("Config{error: %v}", err)
	}
	return string(data)
}

// IsThinkingModel reports whether the given model emits a reasoning channel.
func (c *Config) IsThinkingModel(model string) bool {
	for _, m := range c.Provider.ThinkingModels {
		if m == model {
			return true
		}
	}
	return false
}

// IsToolModel reports whether the given model supports tool calling.
func (c *Config) IsToolModel(model string) bool {
	for _, m := range c.Provider.ToolModels {
		if m == model {
			return true
		}
	}
	return false
}
