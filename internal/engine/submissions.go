package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/sgfractal/eigen-workflow/pkg/models"
)

// SubmitCoordinationResponse records one operator's response to an active
// COORDINATION phase (spec.md §4.5, C6). Once RequiredResponses distinct
// responders have answered, the phase completes with the deterministic
// merge of every response received (Open Question decision: sorted by
// principal, JSON-encoded).
func (e *Engine) SubmitCoordinationResponse(ctx context.Context, executionID models.ID, phaseIndex int, responder models.Principal, response []byte) error {
	workflowID := e.workflowIDOf(executionID)
	if workflowID == "" {
		return fmt.Errorf("%w: %s", ErrExecutionNotFound, executionID)
	}
	wf, err := e.getWorkflow(workflowID)
	if err != nil {
		return err
	}

	return e.withExecution(executionID, func(exec *models.WorkflowExecution) error {
		if exec.IsComplete {
			return ErrExecutionComplete
		}
		if phaseIndex < 0 || phaseIndex >= len(exec.PhaseStatuses) {
			return fmt.Errorf("%w: %d", ErrPhaseIndexOutOfRange, phaseIndex)
		}
		if exec.PhaseStatuses[phaseIndex] != models.StatusActive {
			return fmt.Errorf("%w: phase %d is %s", ErrPhaseNotActive, phaseIndex, exec.PhaseStatuses[phaseIndex])
		}
		state := exec.Coordination[phaseIndex]
		if state == nil {
			return fmt.Errorf("%w: phase %d has no coordination state", ErrPhaseNotActive, phaseIndex)
		}
		if state.Responded[responder] {
			return fmt.Errorf("%w: %s already responded to phase %d", ErrDuplicateResponder, responder, phaseIndex)
		}
		if state.Received >= state.RequiredResponses {
			return fmt.Errorf("%w: phase %d", ErrQuorumAlreadyMet, phaseIndex)
		}

		state.Responded[responder] = true
		state.Responses[responder] = response
		state.Received++

		e.emit(Event{
			Type:        EventCoordinationResponseReceived,
			ExecutionID: executionID,
			PhaseIndex:  phaseIndex,
			Fields:      map[string]any{"responder": responder.String(), "received": state.Received, "required": state.RequiredResponses},
		})

		if state.Received < state.RequiredResponses {
			e.persistExecution(ctx, exec)
			return nil
		}

		entries := make([]consensusEntry, 0, len(state.Responses))
		for p, r := range state.Responses {
			entries = append(entries, consensusEntry{Responder: p, Response: r})
		}
		sortConsensusEntries(entries)

		e.completePhase(ctx, wf, exec, phaseIndex, encodeConsensusResult(entries))
		e.persistExecution(ctx, exec)
		return nil
	})
}

// SubmitMonitoringUpdate records one operator's update for an active
// CONTINUOUS phase. Updates from the same operator are rate-limited to one
// per UpdateInterval; the phase completes once RequiredUpdates distinct
// update events have been logged.
func (e *Engine) SubmitMonitoringUpdate(ctx context.Context, executionID models.ID, phaseIndex int, operator models.Principal, data []byte) error {
	workflowID := e.workflowIDOf(executionID)
	if workflowID == "" {
		return fmt.Errorf("%w: %s", ErrExecutionNotFound, executionID)
	}
	wf, err := e.getWorkflow(workflowID)
	if err != nil {
		return err
	}

	return e.withExecution(executionID, func(exec *models.WorkflowExecution) error {
		if exec.IsComplete {
			return ErrExecutionComplete
		}
		if phaseIndex < 0 || phaseIndex >= len(exec.PhaseStatuses) {
			return fmt.Errorf("%w: %d", ErrPhaseIndexOutOfRange, phaseIndex)
		}
		if exec.PhaseStatuses[phaseIndex] != models.StatusActive {
			return fmt.Errorf("%w: phase %d is %s", ErrPhaseNotActive, phaseIndex, exec.PhaseStatuses[phaseIndex])
		}
		state := exec.Continuous[phaseIndex]
		if state == nil {
			return fmt.Errorf("%w: phase %d has no continuous state", ErrPhaseNotActive, phaseIndex)
		}

		now := time.Now()
		if last, ok := state.LastUpdate[operator]; ok && now.Sub(last) < state.UpdateInterval {
			return fmt.Errorf("%w: phase %d, next update allowed at %s", ErrUpdateTooFrequent, phaseIndex, last.Add(state.UpdateInterval))
		}

		state.LastUpdate[operator] = now
		state.ReceivedUpdates++
		state.Log = append(state.Log, models.MonitoringUpdate{Operator: operator, Data: data, Timestamp: now})

		e.emit(Event{
			Type:        EventMonitoringUpdateReceived,
			ExecutionID: executionID,
			PhaseIndex:  phaseIndex,
			Fields:      map[string]any{"operator": operator.String(), "received_updates": state.ReceivedUpdates, "required_updates": state.RequiredUpdates},
		})

		if state.ReceivedUpdates < state.RequiredUpdates {
			e.persistExecution(ctx, exec)
			return nil
		}

		e.completePhase(ctx, wf, exec, phaseIndex, encodeMonitoringLog(state.Log))
		e.persistExecution(ctx, exec)
		return nil
	})
}

// TriggerConditionalPhase evaluates a CONDITIONAL phase's armed trigger
// condition against triggerData and, if it holds, completes the phase. The
// caller must be the workflow's creator, a per-workflow authorized trigger,
// or a globally authorized trigger source (spec.md §4.5).
func (e *Engine) TriggerConditionalPhase(ctx context.Context, executionID models.ID, phaseIndex int, source models.Principal, triggerData []byte) error {
	workflowID := e.workflowIDOf(executionID)
	if workflowID == "" {
		return fmt.Errorf("%w: %s", ErrExecutionNotFound, executionID)
	}
	wf, err := e.getWorkflow(workflowID)
	if err != nil {
		return err
	}
	if err := e.requireAuthorizedTrigger(wf, source); err != nil {
		return err
	}

	return e.withExecution(executionID, func(exec *models.WorkflowExecution) error {
		if exec.IsComplete {
			return ErrExecutionComplete
		}
		if phaseIndex < 0 || phaseIndex >= len(exec.PhaseStatuses) {
			return fmt.Errorf("%w: %d", ErrPhaseIndexOutOfRange, phaseIndex)
		}
		if exec.PhaseStatuses[phaseIndex] != models.StatusConditionalWaiting {
			return fmt.Errorf("%w: phase %d is %s", ErrPhaseNotActive, phaseIndex, exec.PhaseStatuses[phaseIndex])
		}
		state := exec.ConditionalTriggers[phaseIndex]
		if state == nil {
			return fmt.Errorf("%w: phase %d has no conditional state", ErrPhaseNotActive, phaseIndex)
		}
		if state.Triggered {
			return fmt.Errorf("%w: phase %d", ErrAlreadyTriggered, phaseIndex)
		}

		cond, err := decodeTriggerCondition(state.Condition)
		if err != nil {
			return err
		}
		ok, err := evaluateTriggerCondition(cond, triggerData)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: phase %d condition not satisfied", ErrInvalidTriggerCondition, phaseIndex)
		}

		now := time.Now()
		state.Triggered = true
		state.TriggerTime = now
		state.Source = source
		state.Data = triggerData

		e.emit(Event{
			Type:        EventConditionalTriggerActivated,
			ExecutionID: executionID,
			PhaseIndex:  phaseIndex,
			Fields:      map[string]any{"source": source.String()},
		})

		e.completePhase(ctx, wf, exec, phaseIndex, triggerData)
		e.persistExecution(ctx, exec)
		return nil
	})
}

func (e *Engine) requireAuthorizedTrigger(wf *models.WorkflowDefinition, p models.Principal) error {
	if wf.IsAuthorizedTrigger(p) {
		return nil
	}
	e.authMu.RLock()
	_, ok := e.authorizedTriggerSrc[p]
	e.authMu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s is not authorized to trigger workflow %s", ErrNotAuthorizedTrigger, p, wf.ID)
	}
	return nil
}

// workflowIDOf looks up the owning workflow ID for a live execution without
// requiring the caller to hold exec's lock for the whole round trip.
func (e *Engine) workflowIDOf(executionID models.ID) models.ID {
	e.execMu.Lock()
	entry, ok := e.executions[executionID]
	e.execMu.Unlock()
	if !ok {
		return ""
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	return entry.exec.WorkflowID
}
