package executor

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/rahul/pcagent/internal/observability"
	"github.com/rahul/pcagent/internal/task"
)

const DefaultRetryBackoff = 1 * time.Second

// RetryController runs a step until it succeeds or its retry bound is spent.
type RetryController struct {
	Dispatcher StepDispatcher
	Backoff    time.Duration
	Logger     *observability.Logger

	// Sleep is used for the backoff; time.Sleep when nil.
	Sleep func(time.Duration)
}

// ExecuteWithRetries makes at most MaxRetries+1 attempts and leaves rec in a
// terminal state. A failing or panicking handler never escapes this call.
func (r *RetryController) ExecuteWithRetries(ctx context.Context, s *Session, rec *task.StepRecord) bool {
	spec := rec.Spec()
	maxRetries := max(spec.MaxRetries, 0)

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		rec.Start()

		result, err := r.dispatch(ctx, s, spec)
		if err == nil {
			rec.Complete(result)
			return true
		}
		lastErr = err

		if attempt < maxRetries {
			log.Printf("Step %d failed (attempt %d/%d), retrying: %v", spec.StepNumber, attempt+1, maxRetries+1, err)
			r.Logger.LogRetry(s.RunID, spec.StepNumber, attempt+1, err)
			r.sleep(r.Backoff)
		}
	}

	rec.Fail(fmt.Sprintf("max retries exceeded: %v", lastErr))
	return false
}

func (r *RetryController) dispatch(ctx context.Context, s *Session, spec task.StepSpec) (result any, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("step execution error: %s handler panicked: %v", spec.Action, p)
		}
	}()
	return r.Dispatcher.Dispatch(ctx, s, spec)
}

func (r *RetryController) sleep(d time.Duration) {
	if d <= 0 {
		return
	}
	if r.Sleep != nil {
		r.Sleep(d)
		return
	}
	time.Sleep(d)
}
