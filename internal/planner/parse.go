package planner

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/rahul/pcagent/internal/llmtext"
	"github.com/rahul/pcagent/internal/task"
)

var ErrEmptyPlan = errors.New("plan has no steps")

// rawPlan mirrors the loosely typed payload models produce.
type rawPlan struct {
	Task              string    `json:"task"`
	Steps             []rawStep `json:"steps"`
	EstimatedDuration string    `json:"estimated_duration"`
	Prerequisites     []string  `json:"prerequisites"`
	PotentialIssues   []string  `json:"potential_issues"`
}

type rawStep struct {
	StepNumber      flexInt        `json:"step_number"`
	Action          string         `json:"action"`
	Description     string         `json:"description"`
	Parameters      map[string]any `json:"parameters"`
	SuccessCriteria string         `json:"success_criteria"`
	Timeout         flexInt        `json:"timeout"`
	MaxRetries      *flexInt       `json:"max_retries"`
	Retries         *flexInt       `json:"retries"`
}

// flexInt accepts 3, 3.0 and "3".
type flexInt int

func (f *flexInt) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("not a number: %s", b)
	}
	*f = flexInt(v)
	return nil
}

// ParsePlan decodes a planner payload. Unknown actions are kept so they can
// be reported at dispatch; every other missing field is defaulted.
func ParsePlan(payload string) (task.Plan, error) {
	raw, err := llmtext.ExtractJSON(payload)
	if err != nil {
		return task.Plan{}, err
	}

	var rp rawPlan
	if err := json.Unmarshal([]byte(raw), &rp); err != nil {
		return task.Plan{}, fmt.Errorf("invalid plan JSON: %w", err)
	}
	if len(rp.Steps) == 0 {
		return task.Plan{}, ErrEmptyPlan
	}

	plan := task.Plan{
		Task:              rp.Task,
		EstimatedDuration: rp.EstimatedDuration,
		Prerequisites:     rp.Prerequisites,
		PotentialIssues:   rp.PotentialIssues,
		Source:            task.SourceLLM,
	}
	for _, s := range rp.Steps {
		retries := task.DefaultMaxRetries
		switch {
		case s.MaxRetries != nil:
			retries = int(*s.MaxRetries)
		case s.Retries != nil:
			retries = int(*s.Retries)
		}
		plan.Steps = append(plan.Steps, task.StepSpec{
			StepNumber:      int(s.StepNumber),
			Action:          task.ParseAction(s.Action),
			Description:     s.Description,
			Parameters:      s.Parameters,
			SuccessCriteria: s.SuccessCriteria,
			Timeout:         int(s.Timeout),
			MaxRetries:      retries,
		})
	}
	plan.Normalize()
	return plan, nil
}
