package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rahul/pcagent/internal/llmtext"
	"github.com/rahul/pcagent/internal/observability"
	"github.com/rahul/pcagent/internal/task"
	"github.com/tmc/langchaingo/llms"
)

// Decision is the model's recommendation for a decide step.
type Decision struct {
	RecommendedAction  string   `json:"recommended_action"`
	Reasoning          string   `json:"reasoning"`
	Confidence         float64  `json:"confidence"`
	AlternativeActions []string `json:"alternative_actions,omitempty"`
	Warnings           []string `json:"warnings,omitempty"`
}

// Decider recommends the next action toward a goal.
type Decider interface {
	Decide(ctx context.Context, goal string, state string) (*Decision, error)
}

// LLMPlanner plans and decides through a langchaingo model.
type LLMPlanner struct {
	Model       llms.Model
	Prompts     *PromptManager
	Logger      *observability.Logger
	MaxTokens   int
	Temperature float64
}

func NewLLMPlanner(model llms.Model, prompts *PromptManager, logger *observability.Logger) *LLMPlanner {
	return &LLMPlanner{
		Model:       model,
		Prompts:     prompts,
		Logger:      logger,
		MaxTokens:   4096,
		Temperature: 0.1,
	}
}

func proposePlanTool() llms.Tool {
	actions := make([]string, len(task.Actions))
	for i, a := range task.Actions {
		actions[i] = string(a)
	}
	return llms.Tool{
		Type: "function",
		Function: &llms.FunctionDefinition{
			Name:        "propose_plan",
			Description: "Submit a structured execution plan for the automation task.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"task": map[string]any{"type": "string"},
					"steps": map[string]any{
						"type": "array",
						"items": map[string]any{
							"type": "object",
							"properties": map[string]any{
								"step_number":      map[string]any{"type": "integer"},
								"action":           map[string]any{"type": "string", "enum": actions},
								"description":      map[string]any{"type": "string"},
								"parameters":       map[string]any{"type": "object"},
								"success_criteria": map[string]any{"type": "string"},
								"timeout":          map[string]any{"type": "integer"},
								"max_retries":      map[string]any{"type": "integer"},
							},
							"required": []string{"step_number", "action", "description", "parameters"},
						},
					},
					"estimated_duration": map[string]any{"type": "string"},
					"prerequisites":      map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
					"potential_issues":   map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
				},
				"required": []string{"steps"},
			},
		},
	}
}

// PlanTask returns the propose_plan arguments, or the text reply when the
// model answered without calling the tool.
func (p *LLMPlanner) PlanTask(ctx context.Context, description string, taskCtx map[string]any) (string, error) {
	systemPrompt := p.Prompts.GetPlannerPrompt()

	contextStr := "No additional context provided"
	if len(taskCtx) > 0 {
		b, err := json.MarshalIndent(taskCtx, "", "  ")
		if err == nil {
			contextStr = string(b)
		}
	}
	userPrompt := fmt.Sprintf("Task: %s\n\nContext: %s", description, contextStr)

	messages := []llms.MessageContent{
		{Role: llms.ChatMessageTypeSystem, Parts: []llms.ContentPart{llms.TextPart(systemPrompt)}},
		{Role: llms.ChatMessageTypeHuman, Parts: []llms.ContentPart{llms.TextPart(userPrompt)}},
	}

	resp, err := p.Model.GenerateContent(ctx, messages,
		llms.WithTools([]llms.Tool{proposePlanTool()}),
		llms.WithMaxTokens(p.MaxTokens),
		llms.WithTemperature(p.Temperature),
	)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("planner returned no choices")
	}
	choice := resp.Choices[0]
	p.Logger.LogLLM("plan", userPrompt, choice.Content, choice.ToolCalls)

	for _, tc := range choice.ToolCalls {
		if tc.FunctionCall != nil && tc.FunctionCall.Name == "propose_plan" {
			return tc.FunctionCall.Arguments, nil
		}
	}
	if strings.TrimSpace(choice.Content) != "" {
		return choice.Content, nil
	}
	return "", fmt.Errorf("planner failed to provide a plan or text response")
}

const decidePrompt = `Given the current state and goal, recommend the best next action.

Current State: %s

Goal: %s

Available Actions: %s

Return your recommendation as a single JSON object:
{
  "recommended_action": "specific action to take",
  "reasoning": "why this action is best",
  "confidence": 0.9,
  "alternative_actions": ["other possible actions"],
  "warnings": ["potential issues to watch for"]
}`

func (p *LLMPlanner) Decide(ctx context.Context, goal string, state string) (*Decision, error) {
	actions := make([]string, len(task.Actions))
	for i, a := range task.Actions {
		actions[i] = string(a)
	}
	if state == "" {
		state = "unknown"
	}
	prompt := fmt.Sprintf(decidePrompt, state, goal, strings.Join(actions, ", "))

	resp, err := p.Model.GenerateContent(ctx, []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeHuman, prompt),
	}, llms.WithMaxTokens(p.MaxTokens/2), llms.WithTemperature(p.Temperature))
	if err != nil {
		return nil, fmt.Errorf("decide call failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("decide returned no choices")
	}
	content := resp.Choices[0].Content
	p.Logger.LogLLM("decide", prompt, content, nil)

	raw, err := llmtext.ExtractJSON(content)
	if err != nil {
		return nil, fmt.Errorf("could not parse decision: %w", err)
	}
	var d Decision
	if err := json.Unmarshal([]byte(raw), &d); err != nil {
		return nil, fmt.Errorf("could not parse decision: %w", err)
	}
	return &d, nil
}
