package vision

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rahul/pcagent/internal/llmtext"
	"github.com/rahul/pcagent/internal/observability"
	"github.com/tmc/langchaingo/llms"
)

const analyzePrompt = `Analyze this screenshot and identify interactive elements.

Task context: %s

Identify clickable buttons, text input fields, links and forms, the current
state of the interface and recommended next actions.

Return your analysis as a single JSON object:
{
  "elements": [
    {"type": "button|link|input|form", "text": "visible text", "purpose": "what it does", "location": "approximate location"}
  ],
  "current_state": "description of the current screen",
  "recommended_actions": ["suggested next steps"],
  "confidence": 0.8
}`

// LLMAnalyzer sends the capture to a multimodal model.
type LLMAnalyzer struct {
	Model       llms.Model
	Logger      *observability.Logger
	TaskContext string
}

func NewLLMAnalyzer(model llms.Model, logger *observability.Logger) *LLMAnalyzer {
	return &LLMAnalyzer{Model: model, Logger: logger}
}

func (a *LLMAnalyzer) AnalyzeImage(ctx context.Context, shot *Screenshot) (*Analysis, error) {
	if shot == nil || len(shot.PNG) == 0 {
		return nil, nil
	}

	prompt := fmt.Sprintf(analyzePrompt, a.TaskContext)
	messages := []llms.MessageContent{
		{
			Role: llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{
				llms.BinaryPart("image/png", shot.PNG),
				llms.TextPart(prompt),
			},
		},
	}

	resp, err := a.Model.GenerateContent(ctx, messages, llms.WithMaxTokens(4096), llms.WithTemperature(0.1))
	if err != nil {
		return nil, fmt.Errorf("vision model call failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("vision model returned no choices")
	}
	content := resp.Choices[0].Content
	a.Logger.LogLLM("analyze", prompt, content, nil)

	analysis, err := ParseAnalysis(content)
	if err != nil {
		return nil, err
	}
	analysis.URL = shot.URL
	analysis.Title = shot.Title
	return analysis, nil
}

// ParseAnalysis decodes a model reply into an Analysis.
func ParseAnalysis(content string) (*Analysis, error) {
	raw, err := llmtext.ExtractJSON(content)
	if err != nil {
		return nil, fmt.Errorf("could not parse analysis: %w", err)
	}
	var analysis Analysis
	if err := json.Unmarshal([]byte(raw), &analysis); err != nil {
		return nil, fmt.Errorf("could not parse analysis: %w", err)
	}
	if analysis.Elements == nil {
		analysis.Elements = []Element{}
	}
	analysis.Source = "llm"
	analysis.UIElementsCount = len(analysis.Elements)
	analysis.HasText = analysis.CurrentState != ""
	analysis.AnalyzedAt = time.Now()
	return &analysis, nil
}
