package task

import "time"

// RunStatus is the overall outcome of one execution.
type RunStatus string

const (
	RunCompleted          RunStatus = "completed"
	RunPartiallyCompleted RunStatus = "partially_completed"
	RunFailed             RunStatus = "failed"
	RunError              RunStatus = "error"
)

// ExecutionLog is the final record of a plan's execution. It is built once by
// the executor and not modified after it is returned.
type ExecutionLog struct {
	RunID           string         `json:"run_id"`
	Task            string         `json:"task"`
	Plan            Plan           `json:"plan"`
	Steps           []StepSnapshot `json:"steps"`
	Status          RunStatus      `json:"status"`
	CompletedSteps  int            `json:"completed_steps"`
	FailedSteps     int            `json:"failed_steps"`
	TotalSteps      int            `json:"total_steps"`
	StartTime       time.Time      `json:"start_time"`
	EndTime         time.Time      `json:"end_time"`
	DurationSeconds float64        `json:"duration_seconds"`
	Cancelled       bool           `json:"cancelled,omitempty"`
	Error           string         `json:"error,omitempty"`
}

// Tally counts terminal outcomes across records.
func Tally(records []*StepRecord) (completed, failed int) {
	for _, r := range records {
		switch r.Status() {
		case StepCompleted:
			completed++
		case StepFailed:
			failed++
		}
	}
	return completed, failed
}

// DeriveStatus maps step outcome counts to a run status. RunError is never
// derived here; it is reserved for defects caught by the executor.
func DeriveStatus(completed, failed int) RunStatus {
	switch {
	case failed == 0:
		return RunCompleted
	case completed > 0:
		return RunPartiallyCompleted
	default:
		return RunFailed
	}
}

// Finalize fills the step snapshots, counters, status and timing of l.
func (l *ExecutionLog) Finalize(records []*StepRecord, end time.Time) {
	l.Steps = make([]StepSnapshot, len(records))
	for i, r := range records {
		l.Steps[i] = r.Snapshot()
	}
	l.CompletedSteps, l.FailedSteps = Tally(records)
	l.TotalSteps = len(records)
	if l.Status != RunError {
		l.Status = DeriveStatus(l.CompletedSteps, l.FailedSteps)
	}
	l.EndTime = end
	l.DurationSeconds = end.Sub(l.StartTime).Seconds()
}
