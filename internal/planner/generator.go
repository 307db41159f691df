// Package planner turns a task description into an executable plan, using a
// language model when one is configured and a deterministic heuristic
// otherwise.
package planner

import (
	"context"
	"errors"
	"fmt"
	"log"
	"maps"

	"github.com/rahul/pcagent/internal/observability"
	"github.com/rahul/pcagent/internal/task"
)

// Planner asks a model for a plan and returns its raw payload.
type Planner interface {
	PlanTask(ctx context.Context, description string, taskCtx map[string]any) (string, error)
}

// ScreenDescriber summarizes what is currently on screen.
type ScreenDescriber interface {
	DescribeScreen(ctx context.Context) (string, error)
}

var ErrNoPlanner = errors.New("no planner configured")

// Generator produces plans. Planner and Screen may be nil.
type Generator struct {
	Planner   Planner
	Screen    ScreenDescriber
	Heuristic Heuristic
	Logger    *observability.Logger
}

func NewGenerator(p Planner, screen ScreenDescriber, logger *observability.Logger) *Generator {
	return &Generator{Planner: p, Screen: screen, Logger: logger}
}

// CreatePlan never fails: any problem with the model path is recorded on the
// returned plan and the heuristic plan is used instead.
func (g *Generator) CreatePlan(ctx context.Context, description string, taskCtx map[string]any) task.Plan {
	plan, err := g.planWithModel(ctx, description, taskCtx)
	if err == nil {
		if unknown := plan.UnknownActions(); len(unknown) > 0 {
			log.Printf("Warning: planner produced unknown actions %v; they will fail at dispatch", unknown)
		}
		return plan
	}

	if !errors.Is(err, ErrNoPlanner) {
		log.Printf("Warning: planner unavailable, using heuristic plan: %v", err)
	}
	plan = g.Heuristic.CreatePlan(description)
	plan.FallbackReason = err.Error()
	return plan
}

func (g *Generator) planWithModel(ctx context.Context, description string, taskCtx map[string]any) (plan task.Plan, err error) {
	defer func() {
		if p := recover(); p != nil {
			plan, err = task.Plan{}, fmt.Errorf("planner panicked: %v", p)
		}
	}()
	if g.Planner == nil {
		return task.Plan{}, ErrNoPlanner
	}

	enriched := make(map[string]any, len(taskCtx)+1)
	maps.Copy(enriched, taskCtx)
	if g.Screen != nil {
		if _, ok := enriched["current_screen"]; !ok {
			if desc, err := g.Screen.DescribeScreen(ctx); err == nil && desc != "" {
				enriched["current_screen"] = desc
			}
		}
	}

	observability.SetStatus(observability.RolePlanner, description)
	payload, err := g.Planner.PlanTask(ctx, description, enriched)
	if err != nil {
		return task.Plan{}, fmt.Errorf("planner call failed: %w", err)
	}

	plan, err = ParsePlan(payload)
	if err != nil {
		return task.Plan{}, fmt.Errorf("unparsable planner output: %w", err)
	}
	if plan.Task == "" {
		plan.Task = description
	}
	return plan, nil
}
