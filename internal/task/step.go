package task

import (
	"errors"
	"fmt"
	"time"
)

// StepStatus is the lifecycle state of a StepRecord.
type StepStatus string

const (
	StepPending   StepStatus = "pending"
	StepRunning   StepStatus = "running"
	StepCompleted StepStatus = "completed"
	StepFailed    StepStatus = "failed"
	StepSkipped   StepStatus = "skipped"
)

// Terminal reports whether no further transition is allowed from s.
func (s StepStatus) Terminal() bool {
	return s == StepCompleted || s == StepFailed || s == StepSkipped
}

// Panic values for invalid transitions.
var (
	ErrTerminal   = errors.New("step is already in a terminal state")
	ErrNotStarted = errors.New("step has not been started")
)

// StepRecord is the runtime wrapper around a StepSpec. Its fields are only
// changed through Start, Complete, Fail and Skip.
type StepRecord struct {
	spec      StepSpec
	status    StepStatus
	startTime time.Time
	endTime   time.Time
	attempts  int
	errMsg    string
	result    any
}

// NewStepRecord returns a pending record for spec.
func NewStepRecord(spec StepSpec) *StepRecord {
	return &StepRecord{spec: spec, status: StepPending}
}

func (r *StepRecord) Spec() StepSpec     { return r.spec }
func (r *StepRecord) Status() StepStatus { return r.status }
func (r *StepRecord) Attempts() int      { return r.attempts }
func (r *StepRecord) Error() string      { return r.errMsg }
func (r *StepRecord) Result() any        { return r.result }

// Start begins an attempt. It is valid from pending, and from running when the
// previous attempt is being retried.
func (r *StepRecord) Start() {
	r.mustNotBeTerminal("start")
	r.status = StepRunning
	r.startTime = time.Now()
	r.attempts++
}

// Complete and Fail end a running attempt.
func (r *StepRecord) Complete(result any) {
	r.mustBeRunning("complete")
	r.finish(StepCompleted)
	r.result = result
}

func (r *StepRecord) Fail(msg string) {
	r.mustBeRunning("fail")
	r.finish(StepFailed)
	r.errMsg = msg
}

// Skip is valid from pending as well, for a step that never ran.
func (r *StepRecord) Skip(reason string) {
	r.mustNotBeTerminal("skip")
	r.finish(StepSkipped)
	r.errMsg = reason
}

func (r *StepRecord) finish(to StepStatus) {
	r.status = to
	r.endTime = time.Now()
}

func (r *StepRecord) mustBeRunning(op string) {
	r.mustNotBeTerminal(op)
	if r.status != StepRunning {
		panic(fmt.Errorf("%s step %d (%s): %w", op, r.spec.StepNumber, r.status, ErrNotStarted))
	}
}

func (r *StepRecord) mustNotBeTerminal(op string) {
	if r.status.Terminal() {
		panic(fmt.Errorf("%s step %d (%s): %w", op, r.spec.StepNumber, r.status, ErrTerminal))
	}
}

// Duration is the time between the last start and the terminal transition.
func (r *StepRecord) Duration() time.Duration {
	if r.startTime.IsZero() || r.endTime.IsZero() {
		return 0
	}
	return r.endTime.Sub(r.startTime)
}

// StepSnapshot is the serializable view of a StepRecord.
type StepSnapshot struct {
	StepSpec
	Status          StepStatus `json:"status"`
	StartTime       *time.Time `json:"start_time"`
	EndTime         *time.Time `json:"end_time"`
	DurationSeconds *float64   `json:"duration_seconds"`
	Attempts        int        `json:"attempts"`
	ErrorMessage    string     `json:"error_message,omitempty"`
	Result          any        `json:"result,omitempty"`
}

// Snapshot copies the current state of r.
func (r *StepRecord) Snapshot() StepSnapshot {
	snap := StepSnapshot{
		StepSpec:     r.spec,
		Status:       r.status,
		Attempts:     r.attempts,
		ErrorMessage: r.errMsg,
		Result:       r.result,
	}
	if !r.startTime.IsZero() {
		t := r.startTime
		snap.StartTime = &t
	}
	if !r.endTime.IsZero() {
		t := r.endTime
		snap.EndTime = &t
	}
	if d := r.Duration(); d > 0 {
		secs := d.Seconds()
		snap.DurationSeconds = &secs
	}
	return snap
}
