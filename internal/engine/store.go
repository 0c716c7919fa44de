package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/sgfractal/eigen-workflow/pkg/models"
)

// ExecuteWorkflow creates a new execution of workflowID and kicks off the
// scheduler (spec.md §4.2, C3).
func (e *Engine) ExecuteWorkflow(
	ctx context.Context,
	workflowID models.ID,
	initiator models.Principal,
	payload []byte,
	feePaid uint64,
) (models.ID, error) {
	wf, err := e.getWorkflow(workflowID)
	if err != nil {
		return "", err
	}
	if !wf.IsActive {
		return "", fmt.Errorf("%w: %s", ErrWorkflowInactive, workflowID)
	}
	if feePaid < e.cfg.FeeAmounts.ExecutionFee {
		return "", fmt.Errorf("%w: got %d, need %d", ErrInsufficientFee, feePaid, e.cfg.FeeAmounts.ExecutionFee)
	}
	if e.cfg.Fees != nil {
		if err := e.cfg.Fees.Transfer(ctx, feePaid); err != nil {
			return "", fmt.Errorf("fee transfer failed: %w", err)
		}
	}

	now := time.Now()
	executionID := e.identity.ExecutionID(workflowID, initiator, now)
	n := len(wf.Phases)

	exec := &models.WorkflowExecution{
		ExecutionID:         executionID,
		WorkflowID:           workflowID,
		InitialPayload:       payload,
		Initiator:            initiator,
		CreationTime:         now,
		PhaseStatuses:        make([]models.PhaseStatus, n),
		PhaseResults:         make(map[int][]byte),
		PhaseStartTimes:      make([]time.Time, n),
		PhaseDeadlines:       make([]time.Time, n),
		Coordination:         make([]*models.CoordinationState, n),
		Continuous:           make([]*models.ContinuousState, n),
		ConditionalTriggers:  make([]*models.ConditionalTriggerState, n),
	}
	for i := range exec.PhaseStatuses {
		exec.PhaseStatuses[i] = models.StatusPending // I1
	}

	entry := &executionEntry{exec: exec}
	entry.mu.Lock()
	e.execMu.Lock()
	e.executions[executionID] = entry
	e.execMu.Unlock()
	defer entry.mu.Unlock()

	e.persistExecution(ctx, exec)

	e.emit(Event{
		Type:        EventWorkflowExecutionStarted,
		WorkflowID:  workflowID,
		ExecutionID: executionID,
		Fields:      map[string]any{"initiator": initiator.String()},
	})

	if err := e.tryAdvance(ctx, wf, exec); err != nil {
		return executionID, err
	}
	e.persistExecution(ctx, exec)

	return executionID, nil
}
