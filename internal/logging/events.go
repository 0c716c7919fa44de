package logging

import "github.com/sgfractal/eigen-workflow/internal/engine"

// EventLogger renders engine events through a *Logger, so operational logs
// and domain events share one code path instead of two separate sinks.
type EventLogger struct {
	logger *Logger
}

// NewEventLogger wraps logger as an engine.EventSink.
func NewEventLogger(logger *Logger) *EventLogger {
	return &EventLogger{logger: logger}
}

// Emit implements engine.EventSink.
func (e *EventLogger) Emit(evt engine.Event) {
	args := make([]any, 0, 8+2*len(evt.Fields))
	args = append(args,
		"workflow_id", evt.WorkflowID,
		"execution_id", evt.ExecutionID,
		"phase_index", evt.PhaseIndex,
	)
	for k, v := range evt.Fields {
		args = append(args, k, v)
	}
	e.logger.Info(string(evt.Type), args...)
}
