package cmd

import (
	"fmt"

	"github.com/rahul/pcagent/pkg/config"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

const openRouterBaseURL = "https://openrouter.ai/api/v1"

// newModel builds the model of the default enabled provider.
func newModel(cfg *config.Config) (llms.Model, string, error) {
	name, p := cfg.GetDefaultProvider()
	if name == "" {
		return nil, "", fmt.Errorf("no enabled provider found in config")
	}

	var (
		llm llms.Model
		err error
	)
	switch name {
	case "openai", "openrouter":
		opts := []openai.Option{
			openai.WithToken(p.APIKey),
			openai.WithModel(p.Model),
		}
		baseURL := p.BaseURL
		if baseURL == "" && name == "openrouter" {
			baseURL = openRouterBaseURL
		}
		if baseURL != "" {
			opts = append(opts, openai.WithBaseURL(baseURL))
		}
		llm, err = openai.New(opts...)
	case "anthropic":
		opts := []anthropic.Option{
			anthropic.WithToken(p.APIKey),
			anthropic.WithModel(p.Model),
		}
		if p.BaseURL != "" {
			opts = append(opts, anthropic.WithBaseURL(p.BaseURL))
		}
		llm, err = anthropic.New(opts...)
	case "ollama":
		opts := []ollama.Option{ollama.WithModel(p.Model)}
		if p.BaseURL != "" {
			opts = append(opts, ollama.WithServerURL(p.BaseURL))
		}
		llm, err = ollama.New(opts...)
	default:
		return nil, name, fmt.Errorf("provider %s not supported", name)
	}
	if err != nil {
		return nil, name, fmt.Errorf("init %s provider: %w", name, err)
	}
	return llm, name, nil
}
