package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatalf("missing file should not fail: %v", err)
	}
	if cfg.StepDelay() != 500*time.Millisecond || cfg.RetryBackoff() != time.Second {
		t.Errorf("Unexpected pacing defaults %v %v", cfg.StepDelay(), cfg.RetryBackoff())
	}
	if cfg.Memory.Path != filepath.Join(".", "data", "history.db") {
		t.Errorf("Unexpected history path %q", cfg.Memory.Path)
	}
	if !cfg.LLMEnabled() {
		t.Error("LLM planning should default to on")
	}
	if name, _ := cfg.GetDefaultProvider(); name != "" {
		t.Errorf("Expected no provider, got %q", name)
	}
}

func TestLoadConfig_JSON(t *testing.T) {
	path := writeFile(t, "config.json", `{
		"app": {"name": "agent", "workspace": "/tmp/ws"},
		"providers": {
			"anthropic": {"api_key": "a", "model": "claude", "enabled": true},
			"openai": {"api_key": "o", "model": "gpt", "enabled": false}
		},
		"gateways": {"telegram": {"token": "t", "enabled": true}, "discord": {"token": "", "enabled": true}},
		"browser": {"headless": true, "timeout_seconds": 15},
		"executor": {"step_delay_ms": 0, "retry_backoff_ms": 250, "use_llm": false},
		"policy": {"deny_actions": ["navigate"]}
	}`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if name, p := cfg.GetDefaultProvider(); name != "anthropic" || p.Model != "claude" {
		t.Errorf("Expected anthropic provider, got %q %+v", name, p)
	}
	if _, ok := cfg.GetTelegramConfig(); !ok {
		t.Error("telegram should be enabled")
	}
	if _, ok := cfg.GetDiscordConfig(); ok {
		t.Error("discord without a token should be disabled")
	}
	if !cfg.Browser.Headless || cfg.BrowserTimeout() != 15*time.Second {
		t.Errorf("Unexpected browser config %+v", cfg.Browser)
	}
	if cfg.RetryBackoff() != 250*time.Millisecond || cfg.LLMEnabled() {
		t.Errorf("Unexpected executor config %+v", cfg.Executor)
	}
	if cfg.App.ScreenshotDir != filepath.Join("/tmp/ws", "screenshots") {
		t.Errorf("screenshot dir should follow the workspace, got %q", cfg.App.ScreenshotDir)
	}
	if len(cfg.Policy.DenyActions) != 1 {
		t.Errorf("Unexpected policy %+v", cfg.Policy)
	}
}

func TestLoadConfig_YAML(t *testing.T) {
	path := writeFile(t, "config.yaml", `
app:
  name: agent
providers:
  ollama:
    model: llama3
    base_url: http://localhost:11434
    enabled: true
policy:
  deny_patterns:
    - "drop table"
logging:
  events: true
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if name, p := cfg.GetDefaultProvider(); name != "ollama" || p.BaseURL != "http://localhost:11434" {
		t.Errorf("Expected ollama provider, got %q %+v", name, p)
	}
	if len(cfg.Policy.DenyPatterns) != 1 || !cfg.Logging.Events {
		t.Errorf("Unexpected config %+v %+v", cfg.Policy, cfg.Logging)
	}
}

func TestLoadConfig_EnvKeys(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "from-env")
	path := writeFile(t, "config.json", `{"providers": {"openai": {"model": "gpt", "enabled": true}}}`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if _, p := cfg.GetDefaultProvider(); p.APIKey != "from-env" {
		t.Errorf("Expected env API key, got %q", p.APIKey)
	}
}

func TestLoadConfig_InvalidFile(t *testing.T) {
	if _, err := LoadConfig(writeFile(t, "config.json", "{not json")); err == nil {
		t.Error("Expected decode error")
	}
}
