package config

import (
	"strings"
	"testing"
)

func TestMaskSecret(t *testing.T) {
	tests := []struct {
		name   string
		secret string
		want   string
	}{
		{"empty", "", ""},
		{"short fully masked", "abc123", maskedValue},
		{"exactly eight fully masked", "12345678", maskedValue},
		{"long shows edges", "sk-abcdefghijklmn", "sk<" + maskedValue + ">mn"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := maskSecret(tt.secret); got != tt.want {
				t.Errorf("maskSecret(%q) = %q, want %q", tt.secret, got, tt.want)
			}
		})
	}
}

func TestConfigString_MasksSecrets(t *testing.T) {
	cfg := Config{
		Provider: ProviderConfig{APIKey: "sk-verysecretapikey123"},
		Portal:   PortalConfig{Username: "20230001", Password: "hunter2hunter2"},
	}

	out := cfg.String()
	if strings.Contains(out, "sk-verysecretapikey123") {
		t.Errorf("String() leaked API key: %s", out)
	}
	if strings.Contains(out, "hunter2hunter2") {
		t.Errorf("String() leaked portal password: %s", out)
	}
	if !strings.Contains(out, "20230001") {
		t.Errorf("String() should keep non-sensitive fields, got %s", out)
	}
}

func TestIsThinkingModel(t *testing.T) {
	cfg := Config{Provider: ProviderConfig{ThinkingModels: []string{"qwq-plus"}}}

	if !cfg.IsThinkingModel("qwq-plus") {
		t.Error("IsThinkingModel(qwq-plus) = false, want true")
	}
	if cfg.IsThinkingModel("qwen-max-latest") {
		t.Error("IsThinkingModel(qwen-max-latest) = true, want false")
	}
}

func TestIsToolModel(t *testing.T) {
	cfg := Config{Provider: ProviderConfig{ToolModels: []string{"qwen-max-latest"}}}

	if !cfg.IsToolModel("qwen-max-latest") {
		t.Error("IsToolModel(qwen-max-latest) = false, want true")
	}
	if cfg.IsToolModel("unknown") {
		t.Error("IsToolModel(unknown) = true, want false")
	}
}
