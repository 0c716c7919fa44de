package models

import "time"

// MonitoringUpdate is one entry in a CONTINUOUS phase's update log.
type MonitoringUpdate struct {
	Operator  Principal `json:"operator"`
	Data      []byte    `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

// CoordinationState is the per-phase state of a COORDINATION phase.
type CoordinationState struct {
	RequiredResponses int                  `json:"required_responses"`
	Received          int                  `json:"received"`
	Responded         map[Principal]bool   `json:"responded"`
	Responses         map[Principal][]byte `json:"responses"`
}

// ContinuousState is the per-phase state of a CONTINUOUS phase.
type ContinuousState struct {
	UpdateInterval  time.Duration          `json:"update_interval"`
	RequiredUpdates int                    `json:"required_updates"`
	ReceivedUpdates int                    `json:"received_updates"`
	LastUpdate      map[Principal]time.Time `json:"last_update"`
	Log             []MonitoringUpdate     `json:"log"`
}

// ConditionalTriggerState is the per-phase state of a CONDITIONAL phase.
type ConditionalTriggerState struct {
	Condition   []byte    `json:"condition"`
	Triggered   bool      `json:"triggered"`
	TriggerTime time.Time `json:"trigger_time,omitempty"`
	Source      Principal `json:"source"`
	Data        []byte    `json:"data,omitempty"`
}

// WorkflowExecution is a live instance of a WorkflowDefinition. It is
// mutable until IsComplete is true, at which point it is frozen (I7).
//
// Per-phase state is held as value-owned, phase-indexed slices rather than
// nested maps: the index into every slice here is the phase index in the
// owning WorkflowDefinition's Phases slice. A slot is nil/zero when that
// phase's type doesn't use that kind of state.
type WorkflowExecution struct {
	ExecutionID     ID        `json:"execution_id"`
	WorkflowID      ID        `json:"workflow_id"`
	InitialPayload  []byte    `json:"initial_payload"`
	Initiator       Principal `json:"initiator"`
	CreationTime    time.Time `json:"creation_time"`

	PhaseStatuses   []PhaseStatus              `json:"phase_statuses"`
	PhaseResults    map[int][]byte             `json:"phase_results"`
	PhaseStartTimes []time.Time                `json:"phase_start_times"`
	PhaseDeadlines  []time.Time                `json:"phase_deadlines"`

	Coordination       []*CoordinationState       `json:"coordination_state"`
	Continuous          []*ContinuousState         `json:"continuous_state"`
	ConditionalTriggers []*ConditionalTriggerState `json:"conditional_trigger"`

	IsComplete     bool      `json:"is_complete"`
	Successful     bool      `json:"successful"`
	CompletionTime time.Time `json:"completion_time,omitempty"`
}

// PhaseResult returns the result bytes for phase i and whether they are set.
// Per I3, results are set if and only if the phase is COMPLETED.
func (e *WorkflowExecution) PhaseResult(i int) ([]byte, bool) {
	b, ok := e.PhaseResults[i]
	return b, ok
}

// DependenciesCompleted reports whether every index in deps is COMPLETED in
// e's current phase statuses.
func (e *WorkflowExecution) DependenciesCompleted(deps []int) bool {
	for _, d := range deps {
		if e.PhaseStatuses[d] != StatusCompleted {
			return false
		}
	}
	return true
}

// Clone returns a deep copy of e, safe for a caller to read or hold onto
// after the execution's lock has been released.
func (e *WorkflowExecution) Clone() *WorkflowExecution {
	out := *e

	out.InitialPayload = append([]byte(nil), e.InitialPayload...)
	out.PhaseStatuses = append([]PhaseStatus(nil), e.PhaseStatuses...)
	out.PhaseStartTimes = append([]time.Time(nil), e.PhaseStartTimes...)
	out.PhaseDeadlines = append([]time.Time(nil), e.PhaseDeadlines...)

	if e.PhaseResults != nil {
		out.PhaseResults = make(map[int][]byte, len(e.PhaseResults))
		for k, v := range e.PhaseResults {
			out.PhaseResults[k] = append([]byte(nil), v...)
		}
	}

	out.Coordination = make([]*CoordinationState, len(e.Coordination))
	for i, c := range e.Coordination {
		if c == nil {
			continue
		}
		cc := *c
		cc.Responded = make(map[Principal]bool, len(c.Responded))
		for k, v := range c.Responded {
			cc.Responded[k] = v
		}
		cc.Responses = make(map[Principal][]byte, len(c.Responses))
		for k, v := range c.Responses {
			cc.Responses[k] = append([]byte(nil), v...)
		}
		out.Coordination[i] = &cc
	}

	out.Continuous = make([]*ContinuousState, len(e.Continuous))
	for i, c := range e.Continuous {
		if c == nil {
			continue
		}
		cc := *c
		cc.LastUpdate = make(map[Principal]time.Time, len(c.LastUpdate))
		for k, v := range c.LastUpdate {
			cc.LastUpdate[k] = v
		}
		cc.Log = append([]MonitoringUpdate(nil), c.Log...)
		out.Continuous[i] = &cc
	}

	out.ConditionalTriggers = make([]*ConditionalTriggerState, len(e.ConditionalTriggers))
	for i, c := range e.ConditionalTriggers {
		if c == nil {
			continue
		}
		cc := *c
		cc.Condition = append([]byte(nil), c.Condition...)
		cc.Data = append([]byte(nil), c.Data...)
		out.ConditionalTriggers[i] = &cc
	}

	return &out
}
