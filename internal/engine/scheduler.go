package engine

import (
	"context"
	"time"

	"github.com/sgfractal/eigen-workflow/pkg/models"
)

// tryAdvance is the dependency scheduler (spec.md §4.3, C4): the heart of
// the engine. It must be called with exec's lock already held.
func (e *Engine) tryAdvance(ctx context.Context, wf *models.WorkflowDefinition, exec *models.WorkflowExecution) error {
	if exec.IsComplete {
		return nil
	}

	// Index-ordered iteration: determinism (P9) depends on this.
	for i, phase := range wf.Phases {
		if exec.PhaseStatuses[i] != models.StatusPending {
			continue
		}
		if !exec.DependenciesCompleted(phase.Dependencies) { // P1
			continue
		}
		if err := e.dispatchPhase(ctx, wf, exec, i, phase); err != nil {
			e.failPhase(exec, i, err)
		}
	}

	e.checkWorkflowCompletion(exec)
	return nil
}

// checkWorkflowCompletion marks exec complete if any phase is terminal in a
// failing state, or if every phase has reached COMPLETED (spec.md §4.3, I4).
func (e *Engine) checkWorkflowCompletion(exec *models.WorkflowExecution) {
	if exec.IsComplete {
		return
	}

	allCompleted := true
	anyFailed := false
	for _, s := range exec.PhaseStatuses {
		switch s {
		case models.StatusFailed, models.StatusTimedOut:
			anyFailed = true
		case models.StatusCompleted:
			// still needs the rest to be COMPLETED too
		default:
			allCompleted = false
		}
	}

	if anyFailed {
		e.completeExecution(exec, false)
		return
	}
	if allCompleted {
		e.completeExecution(exec, true)
	}
}

func (e *Engine) completeExecution(exec *models.WorkflowExecution, successful bool) {
	exec.IsComplete = true
	exec.Successful = successful
	exec.CompletionTime = time.Now()
	e.emit(Event{
		Type:        EventWorkflowCompleted,
		WorkflowID:  exec.WorkflowID,
		ExecutionID: exec.ExecutionID,
		Fields:      map[string]any{"successful": successful},
	})
}

// failPhase transitions phase i to FAILED. Used when a phase executor itself
// errors (e.g. a collaborator call fails) rather than timing out or being
// rejected by a submission handler.
func (e *Engine) failPhase(exec *models.WorkflowExecution, i int, cause error) {
	exec.PhaseStatuses[i] = models.StatusFailed
	e.emit(Event{
		Type:        EventPhaseFailed,
		ExecutionID: exec.ExecutionID,
		PhaseIndex:  i,
		Fields:      map[string]any{"error": cause.Error()},
	})
}

// completePhase transitions phase i to COMPLETED with the given result and
// re-runs the scheduler, since completing one phase may unblock others.
func (e *Engine) completePhase(ctx context.Context, wf *models.WorkflowDefinition, exec *models.WorkflowExecution, i int, result []byte) {
	exec.PhaseStatuses[i] = models.StatusCompleted
	exec.PhaseResults[i] = result
	e.emit(Event{Type: EventPhaseCompleted, ExecutionID: exec.ExecutionID, PhaseIndex: i})
	_ = e.tryAdvance(ctx, wf, exec)
}
