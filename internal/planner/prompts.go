package planner

import (
	_ "embed"
	"log"
	"os"
	"path/filepath"
	"strings"
)

//go:embed prompts/planner.md
var defaultPlannerPrompt string

// PromptManager loads prompt files from a directory, falling back to the
// built-in prompts when a file is missing.
type PromptManager struct {
	Directory string
}

func NewPromptManager(dir string) *PromptManager {
	return &PromptManager{Directory: dir}
}

// GetPlannerPrompt returns planner.md plus any extra *.md files in the
// directory (sorted by name), so site-specific hints can be dropped in.
func (pm *PromptManager) GetPlannerPrompt() string {
	if pm == nil || pm.Directory == "" {
		return defaultPlannerPrompt
	}

	base := defaultPlannerPrompt
	data, err := os.ReadFile(filepath.Join(pm.Directory, "planner.md"))
	switch {
	case err == nil:
		base = string(data)
	case !os.IsNotExist(err):
		log.Printf("Warning: Failed to read planner prompt: %v", err)
	}

	parts := []string{base}
	entries, err := os.ReadDir(pm.Directory)
	if err != nil {
		return base
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".md") || e.Name() == "planner.md" {
			continue
		}
		path := filepath.Join(pm.Directory, e.Name())
		extra, err := os.ReadFile(path)
		if err != nil {
			log.Printf("Warning: Failed to read prompt file %s: %v", path, err)
			continue
		}
		parts = append(parts, string(extra))
	}
	return strings.Join(parts, "\n\n---\n\n")
}
