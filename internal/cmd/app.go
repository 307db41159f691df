package cmd

import (
	"context"
	"log"
	"os"
	"path/filepath"

	"github.com/rahul/pcagent/internal/executor"
	"github.com/rahul/pcagent/internal/governance"
	"github.com/rahul/pcagent/internal/observability"
	"github.com/rahul/pcagent/internal/planner"
	"github.com/rahul/pcagent/internal/store"
	"github.com/rahul/pcagent/internal/tools"
	"github.com/rahul/pcagent/internal/vision"
	"github.com/rahul/pcagent/pkg/config"
)

// app holds everything one process needs to execute tasks.
type app struct {
	cfg          *config.Config
	logger       *observability.Logger
	history      *store.HistoryStore
	browser      *tools.Browser
	orchestrator *executor.Orchestrator
}

func newApp(cfg *config.Config, useLLM bool) (*app, error) {
	a := &app{cfg: cfg}

	a.logger = observability.NewLogger().WithLLMLogPath(cfg.Logging.LLMLogPath)
	if !cfg.Logging.Events {
		a.logger.WithOutput(nil)
	}

	policy, err := newPolicy(cfg.Policy)
	if err != nil {
		return nil, err
	}

	a.browser = tools.NewBrowser(tools.BrowserOptions{
		Headless:      cfg.Browser.Headless,
		UserDataDir:   cfg.Browser.UserDataDir,
		ScreenshotDir: cfg.App.ScreenshotDir,
		Timeout:       cfg.BrowserTimeout(),
	})
	desktop := tools.NewDesktop(cfg.App.ScreenshotDir)

	execCfg := executor.Config{
		Browser:        a.browser,
		Desktop:        desktop,
		BrowserCapture: a.browser,
		DesktopCapture: desktop,
		Analyzer:       vision.NewPageAnalyzer(),
		Policy:         policy,
		Logger:         a.logger,
		StepDelay:      cfg.StepDelay(),
		RetryBackoff:   cfg.RetryBackoff(),
	}

	if useLLM && cfg.LLMEnabled() {
		model, name, err := newModel(cfg)
		if err != nil {
			log.Printf("Warning: %v; plans will come from the heuristic planner", err)
		} else {
			log.Printf("Using %s provider", name)
			analyzer := vision.Chain{vision.NewLLMAnalyzer(model, a.logger), vision.NewPageAnalyzer()}
			llmPlanner := planner.NewLLMPlanner(model, planner.NewPromptManager(filepath.Join(cfg.App.Workspace, "prompts")), a.logger)
			screen := vision.Describer{
				Capturer: activeScreen{browser: a.browser, desktop: desktop},
				Analyzer: analyzer,
			}
			execCfg.Analyzer = analyzer
			execCfg.Decider = llmPlanner
			execCfg.Generator = planner.NewGenerator(llmPlanner, screen, a.logger)
		}
	}

	if cfg.Memory.Type == "sqlite" {
		if h, err := store.NewHistoryStore(cfg.Memory.Path); err != nil {
			log.Printf("Warning: run history disabled: %v", err)
		} else {
			a.history = h
			execCfg.Recorder = h
		}
	}

	a.orchestrator = executor.New(execCfg)
	return a, nil
}

func (a *app) Close() {
	a.browser.Close()
	if a.history != nil {
		if err := a.history.Close(); err != nil {
			log.Printf("Warning: closing history: %v", err)
		}
	}
}

func newPolicy(cfg config.PolicyConfig) (*governance.DefaultPolicyEngine, error) {
	var patterns []string
	if !cfg.DisableDefaults {
		patterns = append(patterns, governance.DefaultDenyPatterns...)
	}
	patterns = append(patterns, cfg.DenyPatterns...)
	return governance.NewPolicyEngine(cfg.DenyActions, patterns)
}

// openHistory opens the run store for the read-only commands.
func openHistory(cfg *config.Config) (*store.HistoryStore, error) {
	if _, err := os.Stat(cfg.Memory.Path); err != nil {
		return nil, err
	}
	return store.NewHistoryStore(cfg.Memory.Path)
}

// activeScreen captures the browser tab once a page is open and the whole
// desktop before that.
type activeScreen struct {
	browser *tools.Browser
	desktop *tools.Desktop
}

func (s activeScreen) CaptureScreen(ctx context.Context) (*vision.Screenshot, error) {
	if s.browser.Active() {
		return s.browser.CaptureScreen(ctx)
	}
	return s.desktop.CaptureScreen(ctx)
}
