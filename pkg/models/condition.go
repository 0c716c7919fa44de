package models

// ConditionType tags the kind of condition a CONDITIONAL phase waits on.
// Values are carried inside PhaseDefinition.TriggerCondition as JSON so the
// core never needs a bespoke binary codec for something this small and
// this rarely on the hot path (see internal/engine/conditions.go for the
// decode/evaluate boundary).
type ConditionType string

const (
	ConditionNone           ConditionType = "NONE"
	ConditionPriceThreshold ConditionType = "PRICE_THRESHOLD"
	ConditionTimeThreshold  ConditionType = "TIME_THRESHOLD"
	ConditionDataHash       ConditionType = "DATA_HASH"
	ConditionOracleValue    ConditionType = "ORACLE_VALUE"
	ConditionMultiSig       ConditionType = "MULTI_SIG"
)

// TriggerCondition is the decoded form of PhaseDefinition.TriggerCondition.
type TriggerCondition struct {
	Type ConditionType `json:"type"`

	// PRICE_THRESHOLD
	Threshold  int64 `json:"threshold,omitempty"`
	IsGreater  bool  `json:"is_greater,omitempty"`

	// TIME_THRESHOLD
	TargetTime int64 `json:"target_time,omitempty"`

	// DATA_HASH
	ExpectedHash []byte `json:"expected_hash,omitempty"`

	// ORACLE_VALUE
	Expected  int64 `json:"expected,omitempty"`
	Tolerance int64 `json:"tolerance,omitempty"`
}
