package executor

import (
	"fmt"

	"github.com/rahul/pcagent/internal/task"
)

const DefaultConsecutiveFailureLimit = 2

// AbortPolicy decides, after each failed step, whether the rest of the plan
// should run. One policy is used per execution.
type AbortPolicy struct {
	Limit       int
	consecutive int
}

func NewAbortPolicy() *AbortPolicy {
	return &AbortPolicy{Limit: DefaultConsecutiveFailureLimit}
}

// RecordSuccess resets the consecutive failure count.
func (p *AbortPolicy) RecordSuccess() {
	p.consecutive = 0
}

// ShouldAbort is called once for every step that failed after its retries.
// Critical actions abort immediately; otherwise Limit consecutive failures do.
func (p *AbortPolicy) ShouldAbort(failed task.Action) (bool, string) {
	if failed.Critical() {
		return true, fmt.Sprintf("critical %s step failed", failed)
	}
	p.consecutive++
	if p.Limit > 0 && p.consecutive >= p.Limit {
		return true, fmt.Sprintf("%d consecutive step failures", p.consecutive)
	}
	return false, ""
}
