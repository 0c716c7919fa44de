// Package engine implements the workflow orchestration core: workflow
// registration, execution state, the dependency scheduler, the five phase
// executors, submission handlers, and the timeout engine (spec.md §2-§7).
//
// The engine never suspends mid-operation and never owns a transport: it is
// a library that a REST or MCP surface (see internal/api, internal/mcpserver)
// embeds.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sgfractal/eigen-workflow/pkg/models"
)

// Persister is the optional durability boundary: when set, the engine
// writes a snapshot after every successful mutation of a workflow or an
// execution. A nil Persister keeps
// the engine purely in-memory, which is sufficient for tests.
type Persister interface {
	SaveWorkflow(ctx context.Context, wf *models.WorkflowDefinition) error
	SaveExecution(ctx context.Context, exec *models.WorkflowExecution) error
}

// Logger is the minimal structured-logging surface the engine needs; it is
// satisfied by *internal/logging.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// executionEntry pairs a live execution with the lock that serializes every
// transition on it (spec.md §5: "hold an execution-scoped lock").
type executionEntry struct {
	mu   sync.Mutex
	exec *models.WorkflowExecution
}

// Fees holds the two fee amounts the engine enforces at registration and
// execution start.
type Fees struct {
	CreationFee  uint64
	ExecutionFee uint64
}

// Config bundles the collaborators and policy values an Engine needs at
// construction. Every field may be left nil: a nil Mailbox makes IMMEDIATE
// phases complete with their own encoded payload instead of a task handle, a
// nil Operators falls back to coordinationFallbackOperatorCount, a nil Fees
// skips fee forwarding, and nil Events/Logger are replaced with no-ops.
type Config struct {
	Mailbox        TaskMailbox
	Operators      OperatorRegistry
	Fees           FeeSink
	Persister      Persister
	Events         EventSink
	Logger         Logger
	FeeAmounts     Fees
	AdminPrincipal models.Principal
	Self           models.Principal // this engine's own identity; not included in the TaskRequest sent to the mailbox, which carries only OperatorSetID
}

// Engine is the workflow orchestration core (spec.md §2).
type Engine struct {
	cfg      Config
	identity *Identity

	workflowsMu sync.RWMutex
	workflows   map[models.ID]*models.WorkflowDefinition

	authMu              sync.RWMutex
	authorizedCreators  map[models.Principal]struct{}
	authorizedTriggerSrc map[models.Principal]struct{}

	execMu     sync.Mutex
	executions map[models.ID]*executionEntry
}

// New constructs an Engine. cfg.AdminPrincipal is the single privileged
// principal gating admin operations (spec.md §9: "configuration value at
// construction; not a runtime singleton").
func New(cfg Config) *Engine {
	if cfg.Events == nil {
		cfg.Events = NopEventSink{}
	}
	if cfg.Logger == nil {
		cfg.Logger = noopLogger{}
	}
	return &Engine{
		cfg:                  cfg,
		identity:             NewIdentity(),
		workflows:            make(map[models.ID]*models.WorkflowDefinition),
		authorizedCreators:   make(map[models.Principal]struct{}),
		authorizedTriggerSrc: make(map[models.Principal]struct{}),
		executions:           make(map[models.ID]*executionEntry),
	}
}

func (e *Engine) emit(evt Event) {
	evt.Timestamp = time.Now()
	e.cfg.Events.Emit(evt)
}

// withExecution loads the execution and locks its entry for the duration of
// fn. It does not check IsComplete; each mutating fn rejects a completed
// execution itself (I7). fn must not call back into the engine for the same
// execution.
func (e *Engine) withExecution(executionID models.ID, fn func(*models.WorkflowExecution) error) error {
	e.execMu.Lock()
	entry, ok := e.executions[executionID]
	e.execMu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrExecutionNotFound, executionID)
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	return fn(entry.exec)
}

func (e *Engine) getWorkflow(id models.ID) (*models.WorkflowDefinition, error) {
	e.workflowsMu.RLock()
	defer e.workflowsMu.RUnlock()
	wf, ok := e.workflows[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrWorkflowNotFound, id)
	}
	return wf, nil
}

// --- admin operations (spec.md §6) ---

func (e *Engine) requireAdmin(caller models.Principal) error {
	if caller != e.cfg.AdminPrincipal {
		return fmt.Errorf("%w: caller is not the admin principal", ErrUnauthorized)
	}
	return nil
}

// AuthorizeWorkflowCreator grants caller-less admin authorization for p to
// register workflows.
func (e *Engine) AuthorizeWorkflowCreator(admin, p models.Principal) error {
	if err := e.requireAdmin(admin); err != nil {
		return err
	}
	e.authMu.Lock()
	e.authorizedCreators[p] = struct{}{}
	e.authMu.Unlock()
	e.emit(Event{Type: EventWorkflowCreatorAuthorized, Fields: map[string]any{"principal": p.String()}})
	return nil
}

// AuthorizeTriggerSource grants p global permission to fire CONDITIONAL
// phases across every workflow (in addition to any per-workflow authorized
// triggers).
func (e *Engine) AuthorizeTriggerSource(admin, p models.Principal) error {
	if err := e.requireAdmin(admin); err != nil {
		return err
	}
	e.authMu.Lock()
	e.authorizedTriggerSrc[p] = struct{}{}
	e.authMu.Unlock()
	e.emit(Event{Type: EventTriggerSourceAuthorized, Fields: map[string]any{"principal": p.String()}})
	return nil
}

// SetFees updates the creation and execution fee amounts.
func (e *Engine) SetFees(admin models.Principal, fees Fees) error {
	if err := e.requireAdmin(admin); err != nil {
		return err
	}
	e.cfg.FeeAmounts = fees
	return nil
}

// DeactivateWorkflow marks a workflow inactive so no further executions of
// it can be started. Exposed per SPEC_FULL.md §4: the data model carries
// IsActive but spec.md never exposed an operation for it.
func (e *Engine) DeactivateWorkflow(admin models.Principal, workflowID models.ID) error {
	if err := e.requireAdmin(admin); err != nil {
		return err
	}
	e.workflowsMu.Lock()
	wf, ok := e.workflows[workflowID]
	if !ok {
		e.workflowsMu.Unlock()
		return fmt.Errorf("%w: %s", ErrWorkflowNotFound, workflowID)
	}
	wf.IsActive = false
	e.workflowsMu.Unlock()
	e.persistWorkflow(context.Background(), wf)
	e.emit(Event{Type: EventWorkflowDeactivated, WorkflowID: workflowID})
	return nil
}

// --- view queries (spec.md §6) ---

// GetWorkflow returns the registered definition for workflowID.
func (e *Engine) GetWorkflow(workflowID models.ID) (*models.WorkflowDefinition, error) {
	return e.getWorkflow(workflowID)
}

// ListWorkflows returns every registered workflow definition.
func (e *Engine) ListWorkflows() []*models.WorkflowDefinition {
	e.workflowsMu.RLock()
	defer e.workflowsMu.RUnlock()
	out := make([]*models.WorkflowDefinition, 0, len(e.workflows))
	for _, wf := range e.workflows {
		out = append(out, wf)
	}
	return out
}

// GetExecution returns a snapshot copy of the execution's current state.
// Callers must not mutate the returned value.
func (e *Engine) GetExecution(executionID models.ID) (*models.WorkflowExecution, error) {
	e.execMu.Lock()
	entry, ok := e.executions[executionID]
	e.execMu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrExecutionNotFound, executionID)
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	return entry.exec.Clone(), nil
}

// ListExecutions returns a snapshot copy of every live execution known to
// the engine.
func (e *Engine) ListExecutions() []*models.WorkflowExecution {
	e.execMu.Lock()
	entries := make([]*executionEntry, 0, len(e.executions))
	for _, entry := range e.executions {
		entries = append(entries, entry)
	}
	e.execMu.Unlock()

	out := make([]*models.WorkflowExecution, 0, len(entries))
	for _, entry := range entries {
		entry.mu.Lock()
		out = append(out, entry.exec.Clone())
		entry.mu.Unlock()
	}
	return out
}

// GetPhaseStatus returns the status of one phase of one execution.
func (e *Engine) GetPhaseStatus(executionID models.ID, phaseIndex int) (models.PhaseStatus, error) {
	var status models.PhaseStatus
	err := e.withExecution(executionID, func(exec *models.WorkflowExecution) error {
		if phaseIndex < 0 || phaseIndex >= len(exec.PhaseStatuses) {
			return fmt.Errorf("%w: %d", ErrPhaseIndexOutOfRange, phaseIndex)
		}
		status = exec.PhaseStatuses[phaseIndex]
		return nil
	})
	return status, err
}

// GetPhaseResult returns the result bytes for one phase of one execution,
// if the phase is COMPLETED (I3).
func (e *Engine) GetPhaseResult(executionID models.ID, phaseIndex int) ([]byte, error) {
	var result []byte
	err := e.withExecution(executionID, func(exec *models.WorkflowExecution) error {
		if phaseIndex < 0 || phaseIndex >= len(exec.PhaseStatuses) {
			return fmt.Errorf("%w: %d", ErrPhaseIndexOutOfRange, phaseIndex)
		}
		b, ok := exec.PhaseResult(phaseIndex)
		if !ok {
			return fmt.Errorf("%w: phase %d has no result", ErrPhaseNotActive, phaseIndex)
		}
		result = b
		return nil
	})
	return result, err
}

// Restore loads workflows and executions recovered from a Persister back
// into the engine, for use right after construction on process startup.
// It does not re-validate or re-dispatch anything: the snapshots are taken
// to be the authoritative state as of the last successful persist.
func (e *Engine) Restore(workflows []*models.WorkflowDefinition, executions []*models.WorkflowExecution) {
	e.workflowsMu.Lock()
	for _, wf := range workflows {
		e.workflows[wf.ID] = wf
	}
	e.workflowsMu.Unlock()

	e.execMu.Lock()
	for _, exec := range executions {
		e.executions[exec.ExecutionID] = &executionEntry{exec: exec}
	}
	e.execMu.Unlock()
}

func (e *Engine) persistWorkflow(ctx context.Context, wf *models.WorkflowDefinition) {
	if e.cfg.Persister == nil {
		return
	}
	if err := e.cfg.Persister.SaveWorkflow(ctx, wf); err != nil {
		e.cfg.Logger.Error("failed to persist workflow", "workflow_id", wf.ID, "error", err)
	}
}

func (e *Engine) persistExecution(ctx context.Context, exec *models.WorkflowExecution) {
	if e.cfg.Persister == nil {
		return
	}
	if err := e.cfg.Persister.SaveExecution(ctx, exec); err != nil {
		e.cfg.Logger.Error("failed to persist execution", "execution_id", exec.ExecutionID, "error", err)
	}
}
