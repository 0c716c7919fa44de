package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/sgfractal/eigen-workflow/pkg/models"
)

// dispatchPhase starts phase i once its dependencies are satisfied, routing
// to the executor matching its PhaseType (spec.md §4.4, C5). The caller
// (tryAdvance) already holds exec's lock.
func (e *Engine) dispatchPhase(ctx context.Context, wf *models.WorkflowDefinition, exec *models.WorkflowExecution, i int, phase models.PhaseDefinition) error {
	now := time.Now()
	exec.PhaseStartTimes[i] = now
	exec.PhaseDeadlines[i] = now.Add(phase.Timeout)

	switch phase.Type {
	case models.PhaseImmediate:
		return e.startImmediate(ctx, wf, exec, i, phase)
	case models.PhaseCoordination:
		return e.startCoordination(ctx, exec, i, phase)
	case models.PhaseContinuous:
		return e.startContinuous(exec, i, phase)
	case models.PhaseConditional:
		return e.startConditional(exec, i, phase)
	case models.PhaseAggregation:
		return e.startAggregation(ctx, wf, exec, i, phase)
	default:
		return fmt.Errorf("engine: phase %d has unknown type %q", i, phase.Type)
	}
}

// dependencyResults gathers the completed results of deps, in declared
// order, for phases that fold prior results into their own payload.
func dependencyResults(exec *models.WorkflowExecution, deps []int) [][]byte {
	out := make([][]byte, len(deps))
	for j, d := range deps {
		b, _ := exec.PhaseResult(d)
		out[j] = b
	}
	return out
}

// startImmediate implements the IMMEDIATE discipline: dispatch a task to the
// mailbox and complete synchronously (Open Question decision: spec.md's
// collaborator contracts don't define a callback entry point for a later
// asynchronous completion, so IMMEDIATE completes in the same call that
// starts it).
func (e *Engine) startImmediate(ctx context.Context, wf *models.WorkflowDefinition, exec *models.WorkflowExecution, i int, phase models.PhaseDefinition) error {
	exec.PhaseStatuses[i] = models.StatusActive
	e.emit(Event{Type: EventPhaseStarted, ExecutionID: exec.ExecutionID, PhaseIndex: i})

	payload := encodeImmediatePayload(exec.InitialPayload, dependencyResults(exec, phase.Dependencies), phase.Metadata)

	result := payload
	if e.cfg.Mailbox != nil {
		handle, err := e.cfg.Mailbox.CreateTask(ctx, TaskRequest{
			RefundCollector: exec.Initiator,
			AVSFee:          e.cfg.FeeAmounts.ExecutionFee,
			OperatorSetID:   phase.OperatorSetID,
			Payload:         payload,
		})
		if err != nil {
			return fmt.Errorf("dispatch immediate task: %w", err)
		}
		result = []byte(handle)
	}

	e.completePhase(ctx, wf, exec, i, result)
	return nil
}

// startCoordination implements the COORDINATION discipline: size the quorum
// against the operator set and wait for SubmitCoordinationResponse calls.
func (e *Engine) startCoordination(ctx context.Context, exec *models.WorkflowExecution, i int, phase models.PhaseDefinition) error {
	operatorCount := coordinationFallbackOperatorCount
	if e.cfg.Operators != nil {
		n, err := e.cfg.Operators.OperatorCount(ctx, phase.OperatorSetID)
		if err != nil {
			e.cfg.Logger.Warn("operator count lookup failed, using fallback", "operator_set_id", phase.OperatorSetID, "error", err)
		} else {
			operatorCount = n
		}
	}

	required := int(uint64(operatorCount) * uint64(phase.ConsensusThreshold) / models.BasisPoints)
	if required < 1 {
		required = 1
	}

	exec.PhaseStatuses[i] = models.StatusActive
	exec.Coordination[i] = &models.CoordinationState{
		RequiredResponses: required,
		Responded:         make(map[models.Principal]bool),
		Responses:         make(map[models.Principal][]byte),
	}

	e.emit(Event{
		Type:        EventCoordinationPhaseStarted,
		ExecutionID: exec.ExecutionID,
		PhaseIndex:  i,
		Fields:      map[string]any{"required_responses": required, "operator_count": operatorCount},
	})
	return nil
}

// startContinuous implements the CONTINUOUS discipline: arm monitoring-update
// bookkeeping and wait for SubmitMonitoringUpdate calls.
func (e *Engine) startContinuous(exec *models.WorkflowExecution, i int, phase models.PhaseDefinition) error {
	meta, err := decodeContinuousMetadata(phase.Metadata)
	if err != nil {
		return fmt.Errorf("start continuous phase %d: %w", i, err)
	}

	exec.PhaseStatuses[i] = models.StatusActive
	exec.Continuous[i] = &models.ContinuousState{
		UpdateInterval:  meta.UpdateInterval(),
		RequiredUpdates: meta.RequiredUpdates,
		LastUpdate:      make(map[models.Principal]time.Time),
	}

	e.emit(Event{Type: EventContinuousMonitoringStarted, ExecutionID: exec.ExecutionID, PhaseIndex: i})
	return nil
}

// startConditional implements the CONDITIONAL discipline: arm the trigger
// condition and move to CONDITIONAL_WAITING until TriggerConditionalPhase
// fires it.
func (e *Engine) startConditional(exec *models.WorkflowExecution, i int, phase models.PhaseDefinition) error {
	if _, err := decodeTriggerCondition(phase.TriggerCondition); err != nil {
		return fmt.Errorf("start conditional phase %d: %w", i, err)
	}

	exec.PhaseStatuses[i] = models.StatusConditionalWaiting
	exec.ConditionalTriggers[i] = &models.ConditionalTriggerState{
		Condition: phase.TriggerCondition,
	}

	e.emit(Event{Type: EventConditionalTriggerSet, ExecutionID: exec.ExecutionID, PhaseIndex: i})
	return nil
}

// startAggregation implements the AGGREGATION discipline: fold dependency
// results into one value and complete synchronously, same as IMMEDIATE but
// with no mailbox dispatch.
func (e *Engine) startAggregation(ctx context.Context, wf *models.WorkflowDefinition, exec *models.WorkflowExecution, i int, phase models.PhaseDefinition) error {
	exec.PhaseStatuses[i] = models.StatusActive
	e.emit(Event{Type: EventPhaseStarted, ExecutionID: exec.ExecutionID, PhaseIndex: i})

	result := encodeAggregatedResult(dependencyResults(exec, phase.Dependencies))
	e.completePhase(ctx, wf, exec, i, result)
	return nil
}
