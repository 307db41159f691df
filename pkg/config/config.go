package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	App       AppConfig                 `json:"app" yaml:"app"`
	Gateways  map[string]GatewayConfig  `json:"gateways" yaml:"gateways"`
	Providers map[string]ProviderConfig `json:"providers" yaml:"providers"`
	Memory    MemoryConfig              `json:"memory" yaml:"memory"`
	Browser   BrowserConfig             `json:"browser" yaml:"browser"`
	Executor  ExecutorConfig            `json:"executor" yaml:"executor"`
	Policy    PolicyConfig              `json:"policy" yaml:"policy"`
	Logging   LoggingConfig             `json:"logging" yaml:"logging"`
}

type AppConfig struct {
	Name          string `json:"name" yaml:"name"`
	Workspace     string `json:"workspace" yaml:"workspace"`
	ScreenshotDir string `json:"screenshot_dir" yaml:"screenshot_dir"`
}

type GatewayConfig struct {
	Token   string `json:"token" yaml:"token"`
	Enabled bool   `json:"enabled" yaml:"enabled"`
}

type ProviderConfig struct {
	APIKey  string `json:"api_key" yaml:"api_key"`
	Model   string `json:"model" yaml:"model"`
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	Enabled bool   `json:"enabled" yaml:"enabled"`
}

// MemoryConfig locates the run history database.
type MemoryConfig struct {
	Type string `json:"type" yaml:"type"`
	Path string `json:"path" yaml:"path"`
}

type BrowserConfig struct {
	Headless       bool   `json:"headless" yaml:"headless"`
	TimeoutSeconds int    `json:"timeout_seconds" yaml:"timeout_seconds"`
	UserDataDir    string `json:"user_data_dir,omitempty" yaml:"user_data_dir,omitempty"`
}

type ExecutorConfig struct {
	StepDelayMS    int `json:"step_delay_ms" yaml:"step_delay_ms"`
	RetryBackoffMS int `json:"retry_backoff_ms" yaml:"retry_backoff_ms"`
	// UseLLM turns the model planner off when false; a nil value means on.
	UseLLM *bool `json:"use_llm,omitempty" yaml:"use_llm,omitempty"`
}

type PolicyConfig struct {
	DenyActions  []string `json:"deny_actions" yaml:"deny_actions"`
	DenyPatterns []string `json:"deny_patterns" yaml:"deny_patterns"`
	// DisableDefaults drops the built-in deny patterns.
	DisableDefaults bool `json:"disable_defaults" yaml:"disable_defaults"`
}

type LoggingConfig struct {
	LLMLogPath string `json:"llm_log_path" yaml:"llm_log_path"`
	// Events turns the JSON event stream on stderr on or off.
	Events bool `json:"events" yaml:"events"`
}

// providerEnv maps provider names to the environment variable holding their key.
var providerEnv = map[string]string{
	"openai":     "OPENAI_API_KEY",
	"anthropic":  "ANTHROPIC_API_KEY",
	"openrouter": "OPENROUTER_API_KEY",
}

// Default is the configuration used when no file exists.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// LoadConfig reads a JSON or YAML file, chosen by extension. A missing file
// is not an error: defaults are returned with a warning.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		log.Printf("Warning: config file %s not found, using defaults", path)
		cfg := Default()
		cfg.applyEnv()
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}

	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &cfg)
	default:
		err = json.Unmarshal(data, &cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode config file %s: %w", path, err)
	}

	cfg.applyDefaults()
	cfg.applyEnv()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "pcagent"
	}
	if c.App.Workspace == "" {
		c.App.Workspace = "."
	}
	if c.App.ScreenshotDir == "" {
		c.App.ScreenshotDir = filepath.Join(c.App.Workspace, "screenshots")
	}
	if c.Memory.Type == "" {
		c.Memory.Type = "sqlite"
	}
	if c.Memory.Path == "" {
		c.Memory.Path = filepath.Join(c.App.Workspace, "data", "history.db")
	}
	if c.Browser.TimeoutSeconds <= 0 {
		c.Browser.TimeoutSeconds = 60
	}
	if c.Executor.StepDelayMS <= 0 {
		c.Executor.StepDelayMS = 500
	}
	if c.Executor.RetryBackoffMS <= 0 {
		c.Executor.RetryBackoffMS = 1000
	}
	if c.Logging.LLMLogPath == "" {
		c.Logging.LLMLogPath = filepath.Join(c.App.Workspace, "logs", "llm.jsonl")
	}
	if c.Gateways == nil {
		c.Gateways = map[string]GatewayConfig{}
	}
	if c.Providers == nil {
		c.Providers = map[string]ProviderConfig{}
	}
}

// applyEnv fills missing API keys from the environment.
func (c *Config) applyEnv() {
	for name, env := range providerEnv {
		key := os.Getenv(env)
		if key == "" {
			continue
		}
		// a key in the environment alone does not enable a provider
		p := c.Providers[name]
		if p.APIKey != "" {
			continue
		}
		p.APIKey = key
		c.Providers[name] = p
	}
}

// GetDefaultProvider returns the first enabled provider, in a fixed order so
// the choice does not depend on map iteration.
func (c *Config) GetDefaultProvider() (string, ProviderConfig) {
	for _, name := range []string{"openai", "openrouter", "anthropic", "ollama"} {
		if p, ok := c.Providers[name]; ok && p.Enabled {
			return name, p
		}
	}
	return "", ProviderConfig{}
}

// GetTelegramConfig returns telegram config if enabled
func (c *Config) GetTelegramConfig() (GatewayConfig, bool) {
	return c.gateway("telegram")
}

func (c *Config) GetDiscordConfig() (GatewayConfig, bool) {
	return c.gateway("discord")
}

func (c *Config) gateway(name string) (GatewayConfig, bool) {
	g, ok := c.Gateways[name]
	if ok && g.Enabled && g.Token != "" {
		return g, true
	}
	return GatewayConfig{}, false
}

func (c *Config) StepDelay() time.Duration {
	return time.Duration(c.Executor.StepDelayMS) * time.Millisecond
}

func (c *Config) RetryBackoff() time.Duration {
	return time.Duration(c.Executor.RetryBackoffMS) * time.Millisecond
}

func (c *Config) BrowserTimeout() time.Duration {
	return time.Duration(c.Browser.TimeoutSeconds) * time.Second
}

// LLMEnabled reports whether plans should come from a model.
func (c *Config) LLMEnabled() bool {
	return c.Executor.UseLLM == nil || *c.Executor.UseLLM
}
