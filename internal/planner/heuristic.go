package planner

import (
	"regexp"
	"strings"

	"github.com/rahul/pcagent/internal/task"
)

var (
	urlPattern     = regexp.MustCompile(`(?i)\b((?:https?://|www\.)[^\s"'<>]+)`)
	openVerb       = regexp.MustCompile(`(?i)\b(open|go to|goto|navigate|visit|browse)\b`)
	searchPrefix   = regexp.MustCompile(`(?i)^.*?\bsearch\b\s*(?:on\s+|in\s+|with\s+)?(?:google\s*)?(?:for\s+|about\s+)?`)
	googleSuffix   = regexp.MustCompile(`(?i)\s+(?:on|in|with|using)\s+google\s*$`)
	trailingPunct  = ".!?"
	surroundQuotes = "\"'`"
)

// Heuristic builds plans without a language model. Its output depends only on
// the task description.
type Heuristic struct{}

func (Heuristic) CreatePlan(description string) task.Plan {
	lower := strings.ToLower(description)

	var steps []task.StepSpec
	switch {
	case strings.Contains(lower, "search") && strings.Contains(lower, "google"):
		steps = googleSearchSteps(searchQuery(description))
	case openVerb.MatchString(description) && urlPattern.MatchString(description):
		steps = openURLSteps(urlPattern.FindString(description))
	default:
		steps = genericSteps(description)
	}

	for i := range steps {
		steps[i].StepNumber = i + 1
		steps[i].Timeout = task.DefaultTimeout
		steps[i].MaxRetries = task.DefaultMaxRetries
	}

	plan := task.Plan{
		Task:              description,
		Steps:             steps,
		EstimatedDuration: "1-2 minutes",
		Prerequisites:     []string{},
		PotentialIssues:   []string{"Screen layout may differ from expected"},
		Source:            task.SourceHeuristic,
	}
	plan.Normalize()
	return plan
}

func googleSearchSteps(query string) []task.StepSpec {
	return []task.StepSpec{
		{
			Action:          task.ActionNavigate,
			Description:     "Open Google search",
			Parameters:      map[string]any{"url": "https://www.google.com"},
			SuccessCriteria: "Google homepage loaded",
		},
		{
			Action:          task.ActionType,
			Description:     "Enter search query",
			Parameters:      map[string]any{"selector": `textarea[name="q"], input[name="q"]`, "text": query},
			SuccessCriteria: "Text entered in search box",
		},
		{
			Action:          task.ActionKey,
			Description:     "Submit the search",
			Parameters:      map[string]any{"key": "enter"},
			SuccessCriteria: "Search results displayed",
		},
	}
}

func openURLSteps(raw string) []task.StepSpec {
	u := strings.TrimRight(raw, trailingPunct+",;)")
	if !strings.HasPrefix(strings.ToLower(u), "http") {
		u = "https://" + u
	}
	return []task.StepSpec{
		{
			Action:          task.ActionNavigate,
			Description:     "Open " + u,
			Parameters:      map[string]any{"url": u},
			SuccessCriteria: "Page loaded",
		},
		{
			Action:          task.ActionAnalyze,
			Description:     "Analyze the loaded page",
			Parameters:      map[string]any{},
			SuccessCriteria: "Page analysis completed",
		},
	}
}

func genericSteps(description string) []task.StepSpec {
	return []task.StepSpec{
		{
			Action:          task.ActionAnalyze,
			Description:     "Analyze current screen state",
			Parameters:      map[string]any{},
			SuccessCriteria: "Screen analysis completed",
		},
		{
			Action:          task.ActionDecide,
			Description:     "Determine best approach based on analysis",
			Parameters:      map[string]any{"task": description},
			SuccessCriteria: "Action plan determined",
		},
	}
}

// searchQuery strips the command words from a "search google for X" request.
func searchQuery(description string) string {
	q := searchPrefix.ReplaceAllString(strings.TrimSpace(description), "")
	q = googleSuffix.ReplaceAllString(q, "")
	q = strings.TrimRight(strings.TrimSpace(q), trailingPunct)
	q = strings.Trim(q, surroundQuotes)
	if q == "" {
		return description
	}
	return q
}
