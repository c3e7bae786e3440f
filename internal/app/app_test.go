package app

import (
	"context"
	"path/filepath"
	"testing"

	"go.uber.org/goleak"

	"github.com/neuassist/neuassist/internal/config"
	"github.com/neuassist/neuassist/internal/log"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		DataDir:           filepath.Join(dir, "data"),
		ConversationsFile: filepath.Join(dir, "conversations.json"),
		SystemPrompt:      "你是学业助手",
		AnalysisPrompt:    "请根据工具返回的数据回答用户的问题",
		Provider: config.ProviderConfig{
			BaseURL:      "https://dashscope.example.com/compatible-mode/v1",
			APIKey:       "sk-test",
			Models:       []string{"qwen-max-latest"},
			DefaultModel: "qwen-max-latest",
		},
	}
}

func setup(t *testing.T, cfg *config.Config) *App {
	t.Helper()
	a, err := Setup(context.Background(), cfg, log.NewNop())
	if err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	t.Cleanup(func() {
		if err := a.Close(); err != nil {
			t.Errorf("Close() error = %v", err)
		}
	})
	return a
}

func TestSetup_WithoutPortalCredentials(t *testing.T) {
	a := setup(t, testConfig(t))

	if a.Store == nil {
		t.Error("Store = nil")
	}
	if a.Chat == nil {
		t.Error("Chat = nil")
	}
	if a.Tools != nil {
		t.Error("Tools = non-nil, want nil without portal credentials")
	}
}

func TestSetup_WithPortalCredentials(t *testing.T) {
	cfg := testConfig(t)
	cfg.Portal = config.PortalConfig{
		Username: "20230001",
		Password: "secret",
		SSOURL:   "https://pass.example.com",
		EamsURL:  "http://eams.example.com/eams",
	}

	a := setup(t, cfg)

	if a.Tools == nil {
		t.Fatal("Tools = nil, want academic registry")
	}
	decls := a.Tools.Declarations()
	if len(decls) != 3 {
		t.Fatalf("Declarations() len = %d, want 3", len(decls))
	}
}
