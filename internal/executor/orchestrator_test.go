package executor

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/rahul/pcagent/internal/planner"
	"github.com/rahul/pcagent/internal/task"
)

type memRecorder struct {
	logs []*task.ExecutionLog
}

func (r *memRecorder) SaveLog(ctx context.Context, l *task.ExecutionLog) error {
	r.logs = append(r.logs, l)
	return nil
}

// noPause turns off step delay and retry backoff.
const noPause = -1

type harness struct {
	orch     *Orchestrator
	browser  *fakeBrowser
	desktop  *fakeDesktop
	recorder *memRecorder
}

func newHarness(t *testing.T, steps ...task.StepSpec) *harness {
	t.Helper()
	h := &harness{
		browser:  &fakeBrowser{},
		desktop:  &fakeDesktop{},
		recorder: &memRecorder{},
	}
	h.orch = New(Config{
		Generator:      planner.NewGenerator(staticPlanner{payload: planPayload(t, steps...)}, nil, nil),
		Browser:        h.browser,
		Desktop:        h.desktop,
		BrowserCapture: fakeCapturer{name: "browser"},
		DesktopCapture: fakeCapturer{name: "desktop"},
		Analyzer:       &fakeAnalyzer{},
		Recorder:       h.recorder,
		StepDelay:      noPause,
		RetryBackoff:   noPause,
	})
	return h
}

func statuses(l *task.ExecutionLog) string {
	out := make([]string, len(l.Steps))
	for i, s := range l.Steps {
		out[i] = string(s.Status)
	}
	return strings.Join(out, ",")
}

func TestExecute_AllStepsSucceed(t *testing.T) {
	h := newHarness(t,
		step(1, task.ActionNavigate, map[string]any{"url": "https://www.google.com"}, 0),
		step(2, task.ActionType, map[string]any{"selector": "textarea[name=q]", "text": "weather"}, 0),
		step(3, task.ActionKey, map[string]any{"key": "enter"}, 0),
		step(4, task.ActionAnalyze, nil, 0),
	)

	l := h.orch.Execute(context.Background(), "search weather", nil)

	if l.Status != task.RunCompleted {
		t.Fatalf("Expected completed, got %s (%s)", l.Status, statuses(l))
	}
	if l.CompletedSteps != 4 || l.FailedSteps != 0 || l.TotalSteps != 4 {
		t.Errorf("Unexpected counts %d/%d/%d", l.CompletedSteps, l.FailedSteps, l.TotalSteps)
	}
	if l.RunID == "" || l.Plan.Source != task.SourceLLM {
		t.Errorf("Expected run id and llm plan source, got %q %q", l.RunID, l.Plan.Source)
	}
	for _, s := range l.Steps {
		if s.StartTime == nil || s.EndTime == nil || s.EndTime.Before(*s.StartTime) {
			t.Errorf("step %d has invalid timing", s.StepNumber)
		}
		if s.Attempts != 1 {
			t.Errorf("step %d: expected 1 attempt, got %d", s.StepNumber, s.Attempts)
		}
	}
	// once navigated, key presses go to the page
	if h.browser.count("browser.key:enter") != 1 || h.desktop.count("desktop.key") != 0 {
		t.Errorf("key routed wrongly: browser=%v desktop=%v", h.browser.calls, h.desktop.calls)
	}
	if len(h.recorder.logs) != 1 || h.recorder.logs[0] != l {
		t.Errorf("Expected the log to be recorded once, got %d", len(h.recorder.logs))
	}
	if l.EndTime.Before(l.StartTime) || l.DurationSeconds < 0 {
		t.Error("run timing is inconsistent")
	}
}

func TestExecute_PartialCompletion(t *testing.T) {
	h := newHarness(t,
		step(1, task.ActionKey, map[string]any{"key": "tab"}, 0),
		step(2, task.ActionClick, map[string]any{}, 1),
	)

	l := h.orch.Execute(context.Background(), "tab then click", nil)

	if l.Status != task.RunPartiallyCompleted {
		t.Fatalf("Expected partially_completed, got %s", l.Status)
	}
	if l.CompletedSteps != 1 || l.FailedSteps != 1 || l.TotalSteps != 2 {
		t.Errorf("Unexpected counts %d/%d/%d", l.CompletedSteps, l.FailedSteps, l.TotalSteps)
	}
	failed := l.Steps[1]
	if failed.Attempts != 2 || !strings.Contains(failed.ErrorMessage, "missing target") {
		t.Errorf("Unexpected failed step: attempts=%d err=%q", failed.Attempts, failed.ErrorMessage)
	}
}

func TestExecute_CriticalFailureAborts(t *testing.T) {
	h := newHarness(t,
		step(1, task.ActionNavigate, map[string]any{"url": "https://unreachable.invalid"}, 1),
		step(2, task.ActionClick, map[string]any{"selector": "#go"}, 0),
		step(3, task.ActionWait, map[string]any{"duration": 0.0}, 0),
	)
	h.browser.fail = map[string]bool{"navigate": true}

	l := h.orch.Execute(context.Background(), "open a dead site", nil)

	if l.Status != task.RunFailed {
		t.Fatalf("Expected failed, got %s", l.Status)
	}
	if got := statuses(l); got != "failed,pending,pending" {
		t.Errorf("Expected later steps to stay pending, got %s", got)
	}
	if l.Steps[1].StartTime != nil || l.Steps[1].Attempts != 0 {
		t.Error("no step after the abort may be started")
	}
	if h.browser.count("browser.click") != 0 {
		t.Errorf("aborted steps reached the browser: %v", h.browser.calls)
	}
	if l.TotalSteps != 3 || l.CompletedSteps != 0 || l.FailedSteps != 1 {
		t.Errorf("Unexpected counts %d/%d/%d", l.CompletedSteps, l.FailedSteps, l.TotalSteps)
	}
}

func TestExecute_ConsecutiveFailuresAbort(t *testing.T) {
	h := newHarness(t,
		step(1, task.ActionClick, map[string]any{}, 0),
		step(2, task.ActionKey, map[string]any{"key": "tab"}, 0),
		step(3, task.ActionClick, map[string]any{}, 0),
		step(4, task.ActionType, map[string]any{}, 0),
		step(5, task.ActionKey, map[string]any{"key": "tab"}, 0),
	)

	l := h.orch.Execute(context.Background(), "flaky form", nil)

	if got := statuses(l); got != "failed,completed,failed,failed,pending" {
		t.Errorf("Unexpected step statuses %s", got)
	}
	if l.Status != task.RunPartiallyCompleted {
		t.Errorf("Expected partially_completed, got %s", l.Status)
	}
}

func TestExecute_UnknownActionFailsAtDispatch(t *testing.T) {
	h := newHarness(t,
		step(1, task.Action("foo"), nil, 0),
		step(2, task.ActionKey, map[string]any{"key": "tab"}, 0),
	)

	l := h.orch.Execute(context.Background(), "do foo", nil)

	if l.Plan.Steps[0].Action != "foo" {
		t.Fatalf("unknown action should be kept in the plan, got %q", l.Plan.Steps[0].Action)
	}
	if !strings.Contains(l.Steps[0].ErrorMessage, `unknown action "foo"`) {
		t.Errorf("Expected unknown action message, got %q", l.Steps[0].ErrorMessage)
	}
	if l.Status != task.RunPartiallyCompleted {
		t.Errorf("Expected partially_completed, got %s", l.Status)
	}
}

func TestExecute_CancelledBetweenSteps(t *testing.T) {
	h := newHarness(t,
		step(1, task.ActionKey, map[string]any{"key": "tab"}, 0),
		step(2, task.ActionKey, map[string]any{"key": "tab"}, 0),
		step(3, task.ActionKey, map[string]any{"key": "tab"}, 0),
	)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.desktop.hook = func(string) { cancel() }

	l := h.orch.Execute(ctx, "press tab thrice", nil)

	if !l.Cancelled {
		t.Fatal("Expected the run to be marked cancelled")
	}
	if got := statuses(l); got != "completed,pending,pending" {
		t.Errorf("in-flight step should finish and the rest stay pending, got %s", got)
	}
	if l.TotalSteps != 3 {
		t.Errorf("pending steps still count toward the total, got %d", l.TotalSteps)
	}
	if len(h.recorder.logs) != 1 {
		t.Error("cancelled runs are still recorded")
	}
}

func TestExecute_PlannerPanicFallsBackToHeuristic(t *testing.T) {
	b := &fakeBrowser{}
	rec := &memRecorder{}
	orch := New(Config{
		Generator: planner.NewGenerator(staticPlanner{panics: true}, nil, nil),
		Browser:   b,
		Desktop:   &fakeDesktop{},
		Recorder:  rec,
		StepDelay: noPause,
	})

	l := orch.Execute(context.Background(), "search google for cats", nil)

	if l.Plan.Source != task.SourceHeuristic || len(l.Steps) == 0 {
		t.Fatalf("Expected heuristic plan, got %q with %d steps", l.Plan.Source, len(l.Steps))
	}
	if !strings.Contains(l.Plan.FallbackReason, "planner exploded") {
		t.Errorf("Expected panic value in fallback reason, got %q", l.Plan.FallbackReason)
	}
	if l.Status == task.RunError || l.Error != "" {
		t.Errorf("planner panic must not end the run in error, got %s %q", l.Status, l.Error)
	}
	if b.count("browser.navigate:https://www.google.com") != 1 {
		t.Errorf("Expected the heuristic plan to run, got %v", b.calls)
	}
}

// brokenBrowser panics as soon as the run asks it for its state.
type brokenBrowser struct{ fakeBrowser }

func (b *brokenBrowser) Active() bool { panic("browser state corrupted") }

func TestExecute_InternalDefectBecomesErrorStatus(t *testing.T) {
	rec := &memRecorder{}
	orch := New(Config{
		Generator: planner.NewGenerator(staticPlanner{payload: planPayload(t,
			step(1, task.ActionKey, map[string]any{"key": "tab"}, 0),
		)}, nil, nil),
		Browser:  &brokenBrowser{},
		Desktop:  &fakeDesktop{},
		Recorder: rec,
	})

	l := orch.Execute(context.Background(), "press tab", nil)

	if l.Status != task.RunError {
		t.Fatalf("Expected error status, got %s", l.Status)
	}
	if !strings.Contains(l.Error, "browser state corrupted") {
		t.Errorf("Expected panic value in error, got %q", l.Error)
	}
	if l.Plan.Source != task.SourceLLM || l.TotalSteps != 1 {
		t.Errorf("Expected the plan to be kept, got %q with %d steps", l.Plan.Source, l.TotalSteps)
	}
	if len(rec.logs) != 1 {
		t.Error("error runs are still recorded")
	}
}

func TestExecute_HeuristicFallbackWithoutPlanner(t *testing.T) {
	b := &fakeBrowser{}
	orch := New(Config{Browser: b, Desktop: &fakeDesktop{}, StepDelay: noPause})

	l := orch.Execute(context.Background(), "search google for golang generics", nil)

	if l.Plan.Source != task.SourceHeuristic {
		t.Fatalf("Expected heuristic plan, got %s", l.Plan.Source)
	}
	if l.Status != task.RunCompleted {
		t.Errorf("Expected completed, got %s (%s)", l.Status, statuses(l))
	}
	if b.count("browser.navigate:https://www.google.com") != 1 || b.count("browser.key:enter") != 1 {
		t.Errorf("Unexpected browser calls %v", b.calls)
	}
}

func TestExecute_RunIDsAreUnique(t *testing.T) {
	orch := New(Config{StepDelay: noPause})
	a := orch.Execute(context.Background(), "wait", nil)
	b := orch.Execute(context.Background(), "wait", nil)
	if a.RunID == b.RunID {
		t.Errorf("Expected distinct run ids, got %q twice", a.RunID)
	}
}

func TestNew_DefaultPacing(t *testing.T) {
	orch := New(Config{})
	if orch.cfg.StepDelay != DefaultStepDelay || orch.retry.Backoff != DefaultRetryBackoff {
		t.Errorf("Expected default pacing, got delay=%v backoff=%v", orch.cfg.StepDelay, orch.retry.Backoff)
	}

	orch = New(Config{StepDelay: noPause, RetryBackoff: 250 * time.Millisecond})
	if orch.cfg.StepDelay != noPause || orch.retry.Backoff != 250*time.Millisecond {
		t.Errorf("explicit pacing must be kept, got delay=%v backoff=%v", orch.cfg.StepDelay, orch.retry.Backoff)
	}
}
