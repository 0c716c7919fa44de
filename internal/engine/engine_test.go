package engine

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sgfractal/eigen-workflow/pkg/models"
)

// stubMailbox records every task it's handed and hands back a fixed handle,
// standing in for internal/collaborators.HTTPTaskMailbox in tests.
type stubMailbox struct {
	requests []TaskRequest
}

func (m *stubMailbox) CreateTask(ctx context.Context, req TaskRequest) (TaskHandle, error) {
	m.requests = append(m.requests, req)
	return TaskHandle("task-handle"), nil
}

// stubOperators reports a fixed operator count, standing in for
// internal/collaborators.HTTPOperatorRegistry.
type stubOperators struct {
	count int
}

func (o *stubOperators) OperatorCount(ctx context.Context, operatorSetID string) (int, error) {
	return o.count, nil
}

func newTestEngine(t *testing.T, operatorCount int) (*Engine, *SliceEventSink) {
	t.Helper()
	sink := &SliceEventSink{}
	e := New(Config{
		Mailbox:    &stubMailbox{},
		Operators:  &stubOperators{count: operatorCount},
		Events:     sink,
		FeeAmounts: Fees{},
	})
	return e, sink
}

func newPrincipal(t *testing.T, seed byte) models.Principal {
	t.Helper()
	var p models.Principal
	for i := range p {
		p[i] = seed
	}
	return p
}

func mustAuthorizeCreator(t *testing.T, e *Engine, admin, creator models.Principal) {
	t.Helper()
	require.NoError(t, e.AuthorizeWorkflowCreator(admin, creator))
}

// --- Scenario 1: pure IMMEDIATE ---

func TestScenario_PureImmediate(t *testing.T) {
	e, _ := newTestEngine(t, 5)
	admin := models.ZeroPrincipal
	creator := newPrincipal(t, 0x01)
	mustAuthorizeCreator(t, e, admin, creator)

	phases := []models.PhaseDefinition{
		{Name: "P0", Type: models.PhaseImmediate, Timeout: 60 * time.Second},
	}
	wfID, err := e.RegisterWorkflow(context.Background(), creator, "pure-immediate", phases, nil, 0)
	require.NoError(t, err)

	execID, err := e.ExecuteWorkflow(context.Background(), wfID, creator, []byte{0xAA}, 0)
	require.NoError(t, err)

	exec, err := e.GetExecution(execID)
	require.NoError(t, err)
	assert.True(t, exec.IsComplete)
	assert.True(t, exec.Successful)
	assert.Equal(t, models.StatusCompleted, exec.PhaseStatuses[0])
}

// --- Scenario 2: linear chain with COORDINATION ---

func TestScenario_LinearChainWithCoordination(t *testing.T) {
	e, _ := newTestEngine(t, 5) // N=5, threshold 6667bp -> required = 5*6667/10000 = 3
	admin := models.ZeroPrincipal
	creator := newPrincipal(t, 0x02)
	mustAuthorizeCreator(t, e, admin, creator)

	phases := []models.PhaseDefinition{
		{Name: "P0", Type: models.PhaseImmediate, Timeout: 60 * time.Second},
		{
			Name:               "P1",
			Type:               models.PhaseCoordination,
			Timeout:            60 * time.Second,
			Dependencies:       []int{0},
			OperatorSetID:      "op-set",
			ConsensusThreshold: 6667,
		},
	}
	wfID, err := e.RegisterWorkflow(context.Background(), creator, "linear-chain", phases, nil, 0)
	require.NoError(t, err)

	execID, err := e.ExecuteWorkflow(context.Background(), wfID, creator, nil, 0)
	require.NoError(t, err)

	exec, err := e.GetExecution(execID)
	require.NoError(t, err)
	require.Equal(t, models.StatusActive, exec.PhaseStatuses[1])
	require.Equal(t, 3, exec.Coordination[1].RequiredResponses)

	responders := []models.Principal{newPrincipal(t, 0x10), newPrincipal(t, 0x11), newPrincipal(t, 0x12)}
	for i, r := range responders {
		err := e.SubmitCoordinationResponse(context.Background(), execID, 1, r, []byte{byte(i)})
		require.NoError(t, err)
	}

	exec, err = e.GetExecution(execID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, exec.PhaseStatuses[1])
	assert.True(t, exec.IsComplete)
	assert.True(t, exec.Successful)

	fourth := newPrincipal(t, 0x13)
	err = e.SubmitCoordinationResponse(context.Background(), execID, 1, fourth, []byte{0xFF})
	assert.ErrorIs(t, err, ErrExecutionComplete)
}

func TestCoordination_DuplicateResponderRejected(t *testing.T) {
	e, _ := newTestEngine(t, 10) // required = 10*10000/10000 = 10, stays open
	admin := models.ZeroPrincipal
	creator := newPrincipal(t, 0x03)
	mustAuthorizeCreator(t, e, admin, creator)

	phases := []models.PhaseDefinition{
		{Name: "P0", Type: models.PhaseCoordination, Timeout: 60 * time.Second, OperatorSetID: "op-set", ConsensusThreshold: models.BasisPoints},
	}
	wfID, err := e.RegisterWorkflow(context.Background(), creator, "dup-responder", phases, nil, 0)
	require.NoError(t, err)
	execID, err := e.ExecuteWorkflow(context.Background(), wfID, creator, nil, 0)
	require.NoError(t, err)

	r := newPrincipal(t, 0x20)
	require.NoError(t, e.SubmitCoordinationResponse(context.Background(), execID, 0, r, []byte("a")))

	err = e.SubmitCoordinationResponse(context.Background(), execID, 0, r, []byte("b"))
	assert.ErrorIs(t, err, ErrDuplicateResponder)
}

// --- Scenario 3: CONDITIONAL with PRICE_THRESHOLD ---

func TestScenario_ConditionalPriceThreshold(t *testing.T) {
	e, _ := newTestEngine(t, 5)
	admin := models.ZeroPrincipal
	creator := newPrincipal(t, 0x04)
	mustAuthorizeCreator(t, e, admin, creator)

	cond, err := json.Marshal(models.TriggerCondition{
		Type:      models.ConditionPriceThreshold,
		Threshold: 5000,
		IsGreater: true,
	})
	require.NoError(t, err)

	phases := []models.PhaseDefinition{
		{Name: "P0", Type: models.PhaseConditional, Timeout: 60 * time.Second, TriggerCondition: cond},
	}
	wfID, err := e.RegisterWorkflow(context.Background(), creator, "price-threshold", phases, nil, 0)
	require.NoError(t, err)
	execID, err := e.ExecuteWorkflow(context.Background(), wfID, creator, nil, 0)
	require.NoError(t, err)

	exec, err := e.GetExecution(execID)
	require.NoError(t, err)
	require.Equal(t, models.StatusConditionalWaiting, exec.PhaseStatuses[0])

	low, err := json.Marshal(int64(4000))
	require.NoError(t, err)
	err = e.TriggerConditionalPhase(context.Background(), execID, 0, creator, low)
	assert.ErrorIs(t, err, ErrInvalidTriggerCondition)

	high, err := json.Marshal(int64(5000))
	require.NoError(t, err)
	require.NoError(t, e.TriggerConditionalPhase(context.Background(), execID, 0, creator, high))

	exec, err = e.GetExecution(execID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, exec.PhaseStatuses[0])
}

// --- Scenario 4: dependency fan-in with AGGREGATION ---

func TestScenario_AggregationFanIn(t *testing.T) {
	e, _ := newTestEngine(t, 5)
	admin := models.ZeroPrincipal
	creator := newPrincipal(t, 0x05)
	mustAuthorizeCreator(t, e, admin, creator)

	phases := []models.PhaseDefinition{
		{Name: "P0", Type: models.PhaseImmediate, Timeout: 60 * time.Second},
		{Name: "P1", Type: models.PhaseImmediate, Timeout: 60 * time.Second},
		{Name: "P2", Type: models.PhaseAggregation, Timeout: 60 * time.Second, Dependencies: []int{0, 1}},
	}
	wfID, err := e.RegisterWorkflow(context.Background(), creator, "fan-in", phases, nil, 0)
	require.NoError(t, err)
	execID, err := e.ExecuteWorkflow(context.Background(), wfID, creator, []byte("seed"), 0)
	require.NoError(t, err)

	exec, err := e.GetExecution(execID)
	require.NoError(t, err)
	require.True(t, exec.IsComplete)
	require.True(t, exec.Successful)

	p0Result, ok := exec.PhaseResult(0)
	require.True(t, ok)
	p1Result, ok := exec.PhaseResult(1)
	require.True(t, ok)

	var agg aggregatedResult
	p2Result, ok := exec.PhaseResult(2)
	require.True(t, ok)
	require.NoError(t, json.Unmarshal(p2Result, &agg))

	require.Len(t, agg.DependencyResults, 2)
	assert.Equal(t, p0Result, agg.DependencyResults[0])
	assert.Equal(t, p1Result, agg.DependencyResults[1])
}

// --- Scenario 5: timeout propagation ---

func TestScenario_TimeoutPropagation(t *testing.T) {
	e, sink := newTestEngine(t, 5)
	admin := models.ZeroPrincipal
	creator := newPrincipal(t, 0x06)
	mustAuthorizeCreator(t, e, admin, creator)

	cond, err := json.Marshal(models.TriggerCondition{Type: models.ConditionNone})
	require.NoError(t, err)

	phases := []models.PhaseDefinition{
		{Name: "P0", Type: models.PhaseConditional, Timeout: 1 * time.Millisecond, TriggerCondition: cond},
	}
	wfID, err := e.RegisterWorkflow(context.Background(), creator, "timeout-flow", phases, nil, 0)
	require.NoError(t, err)
	execID, err := e.ExecuteWorkflow(context.Background(), wfID, creator, nil, 0)
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)

	require.NoError(t, e.CheckPhaseTimeout(context.Background(), execID, 0))

	exec, err := e.GetExecution(execID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusTimedOut, exec.PhaseStatuses[0])
	assert.True(t, exec.IsComplete)
	assert.False(t, exec.Successful)

	var sawCompleted bool
	for _, evt := range sink.Events {
		if evt.Type == EventWorkflowCompleted {
			sawCompleted = true
			assert.Equal(t, false, evt.Fields["successful"])
		}
	}
	assert.True(t, sawCompleted)
}

func TestCheckPhaseTimeout_NotYetDue(t *testing.T) {
	e, _ := newTestEngine(t, 5)
	admin := models.ZeroPrincipal
	creator := newPrincipal(t, 0x07)
	mustAuthorizeCreator(t, e, admin, creator)

	cond, err := json.Marshal(models.TriggerCondition{Type: models.ConditionNone})
	require.NoError(t, err)

	phases := []models.PhaseDefinition{
		{Name: "P0", Type: models.PhaseConditional, Timeout: time.Hour, TriggerCondition: cond},
	}
	wfID, err := e.RegisterWorkflow(context.Background(), creator, "not-due", phases, nil, 0)
	require.NoError(t, err)
	execID, err := e.ExecuteWorkflow(context.Background(), wfID, creator, nil, 0)
	require.NoError(t, err)

	err = e.CheckPhaseTimeout(context.Background(), execID, 0)
	assert.ErrorIs(t, err, ErrNotYetTimedOut)
}

// --- Scenario 6: invalid dependency rejected at registration ---

func TestScenario_InvalidDependencyRejected(t *testing.T) {
	e, _ := newTestEngine(t, 5)
	admin := models.ZeroPrincipal
	creator := newPrincipal(t, 0x08)
	mustAuthorizeCreator(t, e, admin, creator)

	phases := []models.PhaseDefinition{
		{Name: "P0", Type: models.PhaseImmediate, Timeout: 60 * time.Second},
		{Name: "P1", Type: models.PhaseImmediate, Timeout: 60 * time.Second, Dependencies: []int{2}},
		{Name: "P2", Type: models.PhaseImmediate, Timeout: 60 * time.Second},
	}
	_, err := e.RegisterWorkflow(context.Background(), creator, "bad-deps", phases, nil, 0)
	assert.ErrorIs(t, err, ErrInvalidDependency)
}

// --- Property: rate-limited CONTINUOUS updates (P6) ---

func TestContinuousPhase_RateLimitsUpdates(t *testing.T) {
	e, _ := newTestEngine(t, 5)
	admin := models.ZeroPrincipal
	creator := newPrincipal(t, 0x09)
	mustAuthorizeCreator(t, e, admin, creator)

	meta, err := json.Marshal(models.ContinuousMetadata{UpdateIntervalSecs: 3600, RequiredUpdates: 2})
	require.NoError(t, err)

	phases := []models.PhaseDefinition{
		{Name: "P0", Type: models.PhaseContinuous, Timeout: time.Hour, Metadata: meta},
	}
	wfID, err := e.RegisterWorkflow(context.Background(), creator, "rate-limited", phases, nil, 0)
	require.NoError(t, err)
	execID, err := e.ExecuteWorkflow(context.Background(), wfID, creator, nil, 0)
	require.NoError(t, err)

	op := newPrincipal(t, 0x30)
	require.NoError(t, e.SubmitMonitoringUpdate(context.Background(), execID, 0, op, []byte("update-1")))

	err = e.SubmitMonitoringUpdate(context.Background(), execID, 0, op, []byte("update-2"))
	assert.ErrorIs(t, err, ErrUpdateTooFrequent)
}

// --- Property: unauthorized creator cannot register (C1) ---

func TestRegisterWorkflow_UnauthorizedCreatorRejected(t *testing.T) {
	e, _ := newTestEngine(t, 5)
	creator := newPrincipal(t, 0x0A)

	phases := []models.PhaseDefinition{{Name: "P0", Type: models.PhaseImmediate, Timeout: time.Second}}
	_, err := e.RegisterWorkflow(context.Background(), creator, "unauthorized", phases, nil, 0)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

// --- Property: a terminal phase status never moves again (P3) ---

func TestPhaseStatus_TerminalIsMonotonic(t *testing.T) {
	e, _ := newTestEngine(t, 5)
	admin := models.ZeroPrincipal
	creator := newPrincipal(t, 0x0C)
	mustAuthorizeCreator(t, e, admin, creator)

	phases := []models.PhaseDefinition{
		{Name: "P0", Type: models.PhaseImmediate, Timeout: time.Hour},
	}
	wfID, err := e.RegisterWorkflow(context.Background(), creator, "monotonic", phases, nil, 0)
	require.NoError(t, err)
	execID, err := e.ExecuteWorkflow(context.Background(), wfID, creator, nil, 0)
	require.NoError(t, err)

	exec, err := e.GetExecution(execID)
	require.NoError(t, err)
	require.Equal(t, models.StatusCompleted, exec.PhaseStatuses[0])

	// A completed phase can never time out: completing the only phase also
	// completed the execution, so CheckPhaseTimeout rejects the call as
	// ErrExecutionComplete rather than silently overwriting the terminal
	// status.
	err = e.CheckPhaseTimeout(context.Background(), execID, 0)
	assert.ErrorIs(t, err, ErrExecutionComplete)

	exec, err = e.GetExecution(execID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, exec.PhaseStatuses[0])
}

// --- Property: results and statuses move in lockstep (P2) ---

func TestPhaseResult_OnlySetWhenCompleted(t *testing.T) {
	e, _ := newTestEngine(t, 5)
	admin := models.ZeroPrincipal
	creator := newPrincipal(t, 0x0B)
	mustAuthorizeCreator(t, e, admin, creator)

	phases := []models.PhaseDefinition{
		{Name: "P0", Type: models.PhaseCoordination, Timeout: time.Hour, OperatorSetID: "op-set", ConsensusThreshold: models.BasisPoints},
	}
	wfID, err := e.RegisterWorkflow(context.Background(), creator, "result-coherence", phases, nil, 0)
	require.NoError(t, err)
	execID, err := e.ExecuteWorkflow(context.Background(), wfID, creator, nil, 0)
	require.NoError(t, err)

	_, err = e.GetPhaseResult(execID, 0)
	assert.Error(t, err)

	exec, err := e.GetExecution(execID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, exec.PhaseStatuses[0])
}
