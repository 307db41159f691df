package executor

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rahul/pcagent/internal/governance"
	"github.com/rahul/pcagent/internal/observability"
	"github.com/rahul/pcagent/internal/planner"
	"github.com/rahul/pcagent/internal/task"
	"github.com/rahul/pcagent/internal/vision"
)

const DefaultStepDelay = 500 * time.Millisecond

// Recorder persists finished execution logs.
type Recorder interface {
	SaveLog(ctx context.Context, l *task.ExecutionLog) error
}

// Config wires an Orchestrator. Every collaborator is optional; a step that
// needs a missing one fails. Zero pacing durations take the defaults and
// negative ones disable the pause.
type Config struct {
	Generator      *planner.Generator
	Browser        Browser
	Desktop        Desktop
	BrowserCapture vision.Capturer
	DesktopCapture vision.Capturer
	Analyzer       vision.Analyzer
	Decider        planner.Decider
	Policy         governance.PolicyEngine
	Recorder       Recorder
	Logger         *observability.Logger

	StepDelay    time.Duration
	RetryBackoff time.Duration
}

// Orchestrator plans a task and runs it step by step.
type Orchestrator struct {
	// mu gives one Execute call exclusive use of the browser and desktop.
	mu        sync.Mutex
	cfg       Config
	generator *planner.Generator
	retry     *RetryController
}

func New(cfg Config) *Orchestrator {
	if cfg.StepDelay == 0 {
		cfg.StepDelay = DefaultStepDelay
	}
	if cfg.RetryBackoff == 0 {
		cfg.RetryBackoff = DefaultRetryBackoff
	}
	gen := cfg.Generator
	if gen == nil {
		gen = planner.NewGenerator(nil, nil, cfg.Logger)
	}
	dispatcher := &Dispatcher{
		Analyzer: cfg.Analyzer,
		Decider:  cfg.Decider,
		Policy:   cfg.Policy,
		Logger:   cfg.Logger,
	}
	return &Orchestrator{
		cfg:       cfg,
		generator: gen,
		retry: &RetryController{
			Dispatcher: dispatcher,
			Backoff:    cfg.RetryBackoff,
			Logger:     cfg.Logger,
		},
	}
}

// Execute plans and runs description. It never returns an error: every
// outcome, including internal defects, is described by the returned log.
// ctx is only consulted between steps.
func (o *Orchestrator) Execute(ctx context.Context, description string, taskCtx map[string]any) (result *task.ExecutionLog) {
	o.mu.Lock()
	defer o.mu.Unlock()

	runID := uuid.NewString()
	result = &task.ExecutionLog{
		RunID:     runID,
		Task:      description,
		StartTime: time.Now(),
		Steps:     []task.StepSnapshot{},
	}
	var records []*task.StepRecord

	defer func() {
		if p := recover(); p != nil {
			log.Printf("Task execution failed: %v", p)
			result.Status = task.RunError
			result.Error = fmt.Sprintf("orchestrator failure: %v", p)
		}
		result.Finalize(records, time.Now())
		o.finish(ctx, result)
	}()

	log.Printf("Starting task execution: %s", description)
	plan := o.generator.CreatePlan(ctx, description, taskCtx)
	result.Plan = plan
	o.cfg.Logger.LogPlan(runID, string(plan.Source), len(plan.Steps), plan.FallbackReason)

	records = make([]*task.StepRecord, len(plan.Steps))
	for i, spec := range plan.Steps {
		records[i] = task.NewStepRecord(spec)
	}

	session := o.newSession(runID)
	abort := NewAbortPolicy()
	observability.SetStatus(observability.RoleExecutor, description)

	for i, rec := range records {
		if i > 0 && o.cfg.StepDelay > 0 {
			time.Sleep(o.cfg.StepDelay)
		}
		if err := ctx.Err(); err != nil {
			log.Printf("Execution cancelled before step %d: %v", rec.Spec().StepNumber, err)
			result.Cancelled = true
			break
		}

		spec := rec.Spec()
		observability.SetProgress(i+1, len(records))
		log.Printf("Executing step %d: %s", spec.StepNumber, spec.Description)

		ok := o.retry.ExecuteWithRetries(ctx, session, rec)
		o.cfg.Logger.LogStep(runID, spec.StepNumber, string(spec.Action), string(rec.Status()), rec.Attempts(), rec.Error())
		if ok {
			abort.RecordSuccess()
			continue
		}

		log.Printf("Step %d failed: %s", spec.StepNumber, rec.Error())
		if stop, reason := abort.ShouldAbort(spec.Action); stop {
			log.Printf("Aborting task execution: %s", reason)
			o.cfg.Logger.LogAbort(runID, spec.StepNumber, reason)
			break
		}
	}
	return result
}

func (o *Orchestrator) newSession(runID string) *Session {
	s := &Session{
		RunID:          runID,
		Browser:        o.cfg.Browser,
		Desktop:        o.cfg.Desktop,
		BrowserCapture: o.cfg.BrowserCapture,
		DesktopCapture: o.cfg.DesktopCapture,
	}
	if s.Browser != nil {
		s.BrowserActive = s.Browser.Active()
	}
	return s
}

func (o *Orchestrator) finish(ctx context.Context, l *task.ExecutionLog) {
	observability.SetStatus(observability.RoleIdle, "")
	observability.RecordRun(l.Status != task.RunCompleted)
	o.cfg.Logger.LogRun(l.RunID, l.Task, string(l.Status), l.CompletedSteps, l.FailedSteps, l.TotalSteps)

	if o.cfg.Recorder == nil {
		return
	}
	if err := o.cfg.Recorder.SaveLog(context.WithoutCancel(ctx), l); err != nil {
		log.Printf("Warning: failed to save execution log %s: %v", l.RunID, err)
	}
}
