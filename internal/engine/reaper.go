package engine

import (
	"context"
	"time"

	"github.com/sgfractal/eigen-workflow/pkg/models"
)

// ReapTimeouts walks every live execution and calls CheckPhaseTimeout for
// each ACTIVE or CONDITIONAL_WAITING phase, so that nothing inside the
// engine has to own a clock (spec.md §4.6). It is meant to be driven by a
// ticker in cmd/server; the engine itself never starts one.
//
// CheckPhaseTimeout already rejects phases whose deadline hasn't passed, so
// this simply offers every timeout-eligible phase a chance to fire and
// ignores ErrNotYetTimedOut along with the other expected no-op outcomes.
func (e *Engine) ReapTimeouts(ctx context.Context) int {
	reaped := 0
	for _, exec := range e.ListExecutions() {
		if exec.IsComplete {
			continue
		}
		for i, status := range exec.PhaseStatuses {
			if status != models.StatusActive && status != models.StatusConditionalWaiting {
				continue
			}
			if err := e.CheckPhaseTimeout(ctx, exec.ExecutionID, i); err == nil {
				reaped++
			}
		}
	}
	return reaped
}

// RunReaper blocks, calling ReapTimeouts every interval, until ctx is
// canceled. cmd/server's serve command runs this in its own goroutine.
func RunReaper(ctx context.Context, e *Engine, interval time.Duration, logger Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := e.ReapTimeouts(ctx); n > 0 {
				logger.Debug("reaper timed out phases", "count", n)
			}
		}
	}
}
