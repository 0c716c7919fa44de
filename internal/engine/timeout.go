package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/sgfractal/eigen-workflow/pkg/models"
)

// CheckPhaseTimeout is the timeout engine's sole entry point (spec.md §4.6,
// C7). The engine never schedules its own timers; a caller — typically a
// periodic reaper (SPEC_FULL.md §4) — polls this for every ACTIVE or
// CONDITIONAL_WAITING phase and the engine decides whether the deadline has
// actually passed.
func (e *Engine) CheckPhaseTimeout(ctx context.Context, executionID models.ID, phaseIndex int) error {
	return e.withExecution(executionID, func(exec *models.WorkflowExecution) error {
		if exec.IsComplete {
			return ErrExecutionComplete
		}
		if phaseIndex < 0 || phaseIndex >= len(exec.PhaseStatuses) {
			return fmt.Errorf("%w: %d", ErrPhaseIndexOutOfRange, phaseIndex)
		}

		status := exec.PhaseStatuses[phaseIndex]
		if status != models.StatusActive && status != models.StatusConditionalWaiting {
			return fmt.Errorf("%w: phase %d is %s", ErrPhaseNotActive, phaseIndex, status)
		}

		deadline := exec.PhaseDeadlines[phaseIndex]
		if deadline.IsZero() {
			return fmt.Errorf("%w: phase %d", ErrNoTimeoutSet, phaseIndex)
		}
		if !time.Now().After(deadline) {
			return fmt.Errorf("%w: phase %d deadline is %s", ErrNotYetTimedOut, phaseIndex, deadline)
		}

		exec.PhaseStatuses[phaseIndex] = models.StatusTimedOut
		e.emit(Event{Type: EventPhaseTimedOut, ExecutionID: executionID, PhaseIndex: phaseIndex})

		e.checkWorkflowCompletion(exec)
		e.persistExecution(ctx, exec)
		return nil
	})
}
