package engine

import (
	"time"

	"github.com/sgfractal/eigen-workflow/pkg/models"
)

// EventType names one of the transitions spec.md §6 says the engine emits.
type EventType string

const (
	EventWorkflowRegistered          EventType = "WorkflowRegistered"
	EventWorkflowExecutionStarted    EventType = "WorkflowExecutionStarted"
	EventPhaseStarted                EventType = "PhaseStarted"
	EventPhaseCompleted              EventType = "PhaseCompleted"
	EventPhaseFailed                 EventType = "PhaseFailed"
	EventPhaseTimedOut               EventType = "PhaseTimedOut"
	EventConditionalTriggerSet       EventType = "ConditionalTriggerSet"
	EventConditionalTriggerActivated EventType = "ConditionalTriggerActivated"
	EventCoordinationPhaseStarted    EventType = "CoordinationPhaseStarted"
	EventCoordinationResponseReceived EventType = "CoordinationResponseReceived"
	EventContinuousMonitoringStarted EventType = "ContinuousMonitoringStarted"
	EventMonitoringUpdateReceived    EventType = "MonitoringUpdateReceived"
	EventWorkflowCompleted           EventType = "WorkflowCompleted"
	EventWorkflowCreatorAuthorized   EventType = "WorkflowCreatorAuthorized"
	EventTriggerSourceAuthorized     EventType = "TriggerSourceAuthorized"
	EventWorkflowDeactivated         EventType = "WorkflowDeactivated"
)

// Event is a single emitted fact about a transition. Fields is a flat map
// of domain-specific payload; which keys are present depends on Type.
type Event struct {
	Type        EventType   `json:"type"`
	WorkflowID  models.ID   `json:"workflow_id,omitempty"`
	ExecutionID models.ID   `json:"execution_id,omitempty"`
	PhaseIndex  int         `json:"phase_index,omitempty"`
	Timestamp   time.Time   `json:"timestamp"`
	Fields      map[string]any `json:"fields,omitempty"`
}

// EventSink is the abstract target events are routed to. Production can
// route to a log, a bus, or a callback (spec.md §9); tests typically use a
// slice-backed sink.
type EventSink interface {
	Emit(Event)
}

// NopEventSink discards every event.
type NopEventSink struct{}

func (NopEventSink) Emit(Event) {}

// SliceEventSink records events in arrival order, for tests and for
// get_execution-style post-mortem reads that want a replayable trail.
type SliceEventSink struct {
	Events []Event
}

func (s *SliceEventSink) Emit(e Event) {
	s.Events = append(s.Events, e)
}
