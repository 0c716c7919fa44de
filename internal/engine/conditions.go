package engine

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/sgfractal/eigen-workflow/pkg/models"
)

// decodeTriggerCondition is the typed decoding boundary for opaque condition
// bytes. The core calls it when a CONDITIONAL phase is armed, to reject a
// malformed condition, and again on every trigger attempt; the decoded value
// is not stored between the two.
func decodeTriggerCondition(raw []byte) (models.TriggerCondition, error) {
	var c models.TriggerCondition
	if len(raw) == 0 {
		return models.TriggerCondition{Type: models.ConditionNone}, nil
	}
	if err := json.Unmarshal(raw, &c); err != nil {
		return c, fmt.Errorf("decode trigger condition: %w", err)
	}
	return c, nil
}

// evaluateTriggerCondition implements spec.md §4.5's condition table.
// trigger_data is interpreted according to the condition's type.
func evaluateTriggerCondition(c models.TriggerCondition, triggerData []byte) (bool, error) {
	switch c.Type {
	case models.ConditionNone, "":
		return true, nil

	case models.ConditionPriceThreshold:
		price, err := decodeInt64(triggerData)
		if err != nil {
			return false, fmt.Errorf("%w: %v", ErrInvalidTriggerCondition, err)
		}
		if c.IsGreater {
			return price >= c.Threshold, nil
		}
		return price <= c.Threshold, nil

	case models.ConditionTimeThreshold:
		// Unlike PRICE_THRESHOLD/ORACLE_VALUE, TIME_THRESHOLD's params are
		// just target_time; "now" is the wall clock, never caller-supplied,
		// or any caller could fire a time lock early by lying about it.
		return time.Now().Unix() >= c.TargetTime, nil

	case models.ConditionDataHash:
		return dataHashMatches(triggerData, c.ExpectedHash), nil

	case models.ConditionOracleValue:
		actual, err := decodeInt64(triggerData)
		if err != nil {
			return false, fmt.Errorf("%w: %v", ErrInvalidTriggerCondition, err)
		}
		// |actual - expected| computed in uint64 so the difference never
		// wraps, even for operands at opposite ends of the int64 range.
		var diff uint64
		if actual >= c.Expected {
			diff = uint64(actual) - uint64(c.Expected)
		} else {
			diff = uint64(c.Expected) - uint64(actual)
		}
		return c.Tolerance >= 0 && diff <= uint64(c.Tolerance), nil

	case models.ConditionMultiSig:
		// Left unimplemented per spec.md §9: the source leaves MULTI_SIG
		// enumerated but unspecified. Reject explicitly rather than silently
		// passing or panicking.
		return false, fmt.Errorf("%w: MULTI_SIG is not implemented", ErrInvalidTriggerCondition)

	default:
		return false, fmt.Errorf("%w: unknown condition type %q", ErrInvalidTriggerCondition, c.Type)
	}
}

func decodeInt64(b []byte) (int64, error) {
	var v int64
	if err := json.Unmarshal(b, &v); err != nil {
		return 0, err
	}
	return v, nil
}

func dataHashMatches(data, expectedHash []byte) bool {
	got := sha256Sum(data)
	if len(got) != len(expectedHash) {
		return false
	}
	for i := range got {
		if got[i] != expectedHash[i] {
			return false
		}
	}
	return true
}

// decodeContinuousMetadata decodes a CONTINUOUS phase's metadata into its
// (update_interval, required_updates) pair.
func decodeContinuousMetadata(raw []byte) (models.ContinuousMetadata, error) {
	var m models.ContinuousMetadata
	if len(raw) == 0 {
		return m, fmt.Errorf("continuous phase metadata is empty")
	}
	if err := json.Unmarshal(raw, &m); err != nil {
		return m, fmt.Errorf("decode continuous metadata: %w", err)
	}
	return m, nil
}
