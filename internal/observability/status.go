package observability

import (
	"sync"
	"time"
)

type Role string

const (
	RoleIdle     Role = "IDLE"
	RolePlanner  Role = "PLANNER"
	RoleExecutor Role = "EXECUTOR"
)

// Status is a point-in-time copy of what the engine is doing.
type Status struct {
	Role          Role
	ActiveTask    string
	Step          int
	TotalSteps    int
	Runs          int
	FailedRuns    int
	LastHeartbeat time.Time
}

var (
	statusMu     sync.RWMutex
	globalStatus = Status{Role: RoleIdle, LastHeartbeat: time.Now()}
)

// SetStatus records the current role and task. Step progress is reset.
func SetStatus(role Role, task string) {
	statusMu.Lock()
	defer statusMu.Unlock()
	globalStatus.Role = role
	globalStatus.ActiveTask = task
	globalStatus.Step, globalStatus.TotalSteps = 0, 0
}

// SetProgress records which step of the active plan is being dispatched.
func SetProgress(step, total int) {
	statusMu.Lock()
	defer statusMu.Unlock()
	globalStatus.Step = step
	globalStatus.TotalSteps = total
}

// RecordRun counts a finished execution.
func RecordRun(failed bool) {
	statusMu.Lock()
	defer statusMu.Unlock()
	globalStatus.Runs++
	if failed {
		globalStatus.FailedRuns++
	}
}

// GetStatus returns a copy of the global status.
func GetStatus() Status {
	statusMu.RLock()
	defer statusMu.RUnlock()
	return globalStatus
}

// Heartbeat updates the last heartbeat time.
func Heartbeat() {
	statusMu.Lock()
	defer statusMu.Unlock()
	globalStatus.LastHeartbeat = time.Now()
}
