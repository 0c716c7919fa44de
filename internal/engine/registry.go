package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/sgfractal/eigen-workflow/pkg/models"
)

// RegisterWorkflow validates and persists a new workflow definition
// (spec.md §4.1, C2).
func (e *Engine) RegisterWorkflow(
	ctx context.Context,
	creator models.Principal,
	name string,
	phases []models.PhaseDefinition,
	authorizedTriggers []models.Principal,
	feePaid uint64,
) (models.ID, error) {
	if err := e.requireAuthorizedCreator(creator); err != nil {
		return "", err
	}
	if feePaid < e.cfg.FeeAmounts.CreationFee {
		return "", fmt.Errorf("%w: got %d, need %d", ErrInsufficientFee, feePaid, e.cfg.FeeAmounts.CreationFee)
	}
	if name == "" {
		return "", ErrEmptyName
	}
	if len(phases) < 1 || len(phases) > models.MaxPhases {
		return "", fmt.Errorf("%w: %d phases", ErrPhaseCountOutOfRange, len(phases))
	}

	var totalStake uint64
	for i, p := range phases {
		if err := validatePhase(i, p); err != nil {
			return "", err
		}
		totalStake += p.RequiredStake
	}

	if e.cfg.Fees != nil {
		if err := e.cfg.Fees.Transfer(ctx, feePaid); err != nil {
			return "", fmt.Errorf("fee transfer failed: %w", err)
		}
	}

	now := time.Now()
	id := e.identity.WorkflowID(name, creator, now)

	triggerSet := make(map[models.Principal]struct{}, len(authorizedTriggers))
	for _, p := range authorizedTriggers {
		triggerSet[p] = struct{}{}
	}

	wf := &models.WorkflowDefinition{
		ID:                 id,
		Name:               name,
		Creator:            creator,
		Phases:             phases,
		AuthorizedTriggers: triggerSet,
		TotalStake:         totalStake,
		IsActive:           true,
		CreationTime:       now,
	}

	e.workflowsMu.Lock()
	e.workflows[id] = wf
	e.workflowsMu.Unlock()

	e.persistWorkflow(ctx, wf)

	e.emit(Event{
		Type:       EventWorkflowRegistered,
		WorkflowID: id,
		Fields: map[string]any{
			"name":    name,
			"creator": creator.String(),
			"phases":  len(phases),
		},
	})

	return id, nil
}

func (e *Engine) requireAuthorizedCreator(p models.Principal) error {
	e.authMu.RLock()
	_, ok := e.authorizedCreators[p]
	e.authMu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s is not an authorized workflow creator", ErrUnauthorized, p)
	}
	return nil
}

func validatePhase(index int, p models.PhaseDefinition) error {
	if p.Name == "" {
		return fmt.Errorf("%w: phase %d has empty name", ErrEmptyName, index)
	}
	if p.Timeout <= 0 {
		return fmt.Errorf("%w: phase %d timeout %s", ErrInvalidTimeout, index, p.Timeout)
	}
	if len(p.Dependencies) > models.MaxDependencies {
		return fmt.Errorf("%w: phase %d has %d dependencies", ErrTooManyDependencies, index, len(p.Dependencies))
	}
	for _, dep := range p.Dependencies {
		if dep < 0 || dep >= index {
			return fmt.Errorf("%w: phase %d depends on %d, which is not strictly earlier", ErrInvalidDependency, index, dep)
		}
	}
	if p.Type == models.PhaseCoordination {
		if p.ConsensusThreshold < 1 || p.ConsensusThreshold > models.BasisPoints {
			return fmt.Errorf("%w: phase %d threshold %d", ErrInvalidConsensusThreshold, index, p.ConsensusThreshold)
		}
	}
	if p.Type == models.PhaseConditional && len(p.TriggerCondition) == 0 {
		return fmt.Errorf("%w: phase %d is CONDITIONAL but has no trigger_condition", ErrInvalidTriggerCondition, index)
	}
	return nil
}
