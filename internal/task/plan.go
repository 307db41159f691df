// Package task holds the data model shared by the planner and the executor:
// plans, step specifications, the per-step state machine and the execution log.
package task

import "fmt"

const (
	DefaultTimeout    = 30
	DefaultMaxRetries = 2

	// Upper bounds on model-supplied pacing.
	MaxRetriesLimit = 5
	MaxWaitSeconds  = 60
)

// PlanSource records which generator produced a plan.
type PlanSource string

const (
	SourceLLM       PlanSource = "llm"
	SourceHeuristic PlanSource = "heuristic"
)

// StepSpec describes one atomic action of a plan.
type StepSpec struct {
	StepNumber      int            `json:"step_number"`
	Action          Action         `json:"action"`
	Description     string         `json:"description"`
	Parameters      map[string]any `json:"parameters"`
	SuccessCriteria string         `json:"success_criteria"`
	Timeout         int            `json:"timeout"`
	MaxRetries      int            `json:"max_retries"`
}

// Plan is the ordered sequence of steps produced for one task invocation.
type Plan struct {
	Task              string     `json:"task"`
	Steps             []StepSpec `json:"steps"`
	EstimatedDuration string     `json:"estimated_duration"`
	Prerequisites     []string   `json:"prerequisites"`
	PotentialIssues   []string   `json:"potential_issues"`
	Source            PlanSource `json:"source"`
	FallbackReason    string     `json:"fallback_reason,omitempty"`
}

// Normalize fills defaults so every step is executable. Step numbers are
// rewritten when they are missing or not strictly increasing.
func (p *Plan) Normalize() {
	if p.Prerequisites == nil {
		p.Prerequisites = []string{}
	}
	if p.PotentialIssues == nil {
		p.PotentialIssues = []string{}
	}

	last := 0
	for i := range p.Steps {
		s := &p.Steps[i]
		if s.StepNumber <= last {
			s.StepNumber = last + 1
		}
		last = s.StepNumber

		if s.Action == "" {
			s.Action = ActionDecide
		}
		if s.Parameters == nil {
			s.Parameters = map[string]any{}
		}
		if s.Description == "" {
			s.Description = fmt.Sprintf("Step %d", s.StepNumber)
		}
		if s.Timeout <= 0 {
			s.Timeout = DefaultTimeout
		}
		s.MaxRetries = min(max(s.MaxRetries, 0), MaxRetriesLimit)
	}
}

// UnknownActions returns the actions in p that are outside the vocabulary.
func (p *Plan) UnknownActions() []Action {
	var out []Action
	for _, s := range p.Steps {
		if !s.Action.Known() {
			out = append(out, s.Action)
		}
	}
	return out
}

// ActionSequence returns the ordered actions of p.
func (p *Plan) ActionSequence() []Action {
	out := make([]Action, len(p.Steps))
	for i, s := range p.Steps {
		out[i] = s.Action
	}
	return out
}
