package engine

import "errors"

// Error taxonomy, spec.md §7. Sentinels are returned either bare or wrapped
// with fmt.Errorf("%w: ...", ...) at the call site, so errors.Is keeps
// working and callers still get a human-readable message.
var (
	// Validation (registration-time)
	ErrEmptyName                 = errors.New("empty name")
	ErrPhaseCountOutOfRange      = errors.New("phase count out of range")
	ErrInvalidDependency         = errors.New("invalid dependency")
	ErrInvalidTimeout            = errors.New("invalid timeout")
	ErrInvalidConsensusThreshold = errors.New("invalid consensus threshold")
	ErrTooManyDependencies       = errors.New("too many dependencies")

	// Authorization
	ErrUnauthorized        = errors.New("unauthorized")
	ErrNotWorkflowCreator  = errors.New("not workflow creator")
	ErrNotAuthorizedTrigger = errors.New("not an authorized trigger")

	// Economic
	ErrInsufficientFee = errors.New("insufficient fee")

	// Existence
	ErrWorkflowNotFound  = errors.New("workflow not found")
	ErrExecutionNotFound = errors.New("execution not found")
	ErrPhaseIndexOutOfRange = errors.New("phase index out of range")
	ErrWorkflowInactive  = errors.New("workflow inactive")

	// State
	ErrPhaseNotActive          = errors.New("phase not active")
	ErrDuplicateResponder      = errors.New("duplicate responder")
	ErrQuorumAlreadyMet        = errors.New("quorum already met")
	ErrUpdateTooFrequent       = errors.New("update too frequent")
	ErrAlreadyTriggered        = errors.New("already triggered")
	ErrNoTimeoutSet            = errors.New("no timeout set")
	ErrNotYetTimedOut          = errors.New("not yet timed out")
	ErrExecutionComplete       = errors.New("execution already complete")

	// Semantic
	ErrInvalidTriggerCondition = errors.New("invalid trigger condition")

	// Terminal (workflow-fatal, never recovered; surfaced through events and
	// view queries rather than returned from an operation)
	ErrPhaseFailed  = errors.New("phase failed")
	ErrPhaseTimedOut = errors.New("phase timed out")
)

// errorCodes maps each sentinel to a short taxonomy name, for API/MCP
// responses that want a stable machine-readable error identifier alongside
// the human-readable message.
var errorCodes = map[error]string{
	ErrEmptyName:                 "empty_name",
	ErrPhaseCountOutOfRange:      "phase_count_out_of_range",
	ErrInvalidDependency:         "invalid_dependency",
	ErrInvalidTimeout:            "invalid_timeout",
	ErrInvalidConsensusThreshold: "invalid_consensus_threshold",
	ErrTooManyDependencies:       "too_many_dependencies",
	ErrUnauthorized:              "unauthorized",
	ErrNotWorkflowCreator:        "not_workflow_creator",
	ErrNotAuthorizedTrigger:      "not_authorized_trigger",
	ErrInsufficientFee:           "insufficient_fee",
	ErrWorkflowNotFound:          "workflow_not_found",
	ErrExecutionNotFound:         "execution_not_found",
	ErrPhaseIndexOutOfRange:      "phase_index_out_of_range",
	ErrWorkflowInactive:          "workflow_inactive",
	ErrPhaseNotActive:            "phase_not_active",
	ErrDuplicateResponder:        "duplicate_responder",
	ErrQuorumAlreadyMet:          "quorum_already_met",
	ErrUpdateTooFrequent:         "update_too_frequent",
	ErrAlreadyTriggered:          "already_triggered",
	ErrNoTimeoutSet:              "no_timeout_set",
	ErrNotYetTimedOut:            "not_yet_timed_out",
	ErrExecutionComplete:         "execution_complete",
	ErrInvalidTriggerCondition:   "invalid_trigger_condition",
	ErrPhaseFailed:               "phase_failed",
	ErrPhaseTimedOut:             "phase_timed_out",
}

// CodeOf maps err to its taxonomy code via errors.Is, falling back to
// "unknown" for anything not in the table above.
func CodeOf(err error) string {
	for sentinel, code := range errorCodes {
		if errors.Is(err, sentinel) {
			return code
		}
	}
	return "unknown"
}
