package alerts

import (
	"strconv"
	"strings"

	"github.com/motortwin/motortwin/pkg/types"
	"github.com/motortwin/motortwin/server/internal/analytics"
)

// evalCondition evaluates a rule condition string against a reading.
//
// Supported expressions (field operator value):
//
//	temperature > 90
//	vibration >= 6
//	load > 85
//	rpm < 1000
//	score >= 4
//	status == ANOMALY
//	status == FAILURE LIKELY
//	risk == FAILURE_RISK
//	risk != NORMAL
//
// String values may contain spaces. Returns (fires bool, triggering value
// float64); string comparisons report the instantaneous score as the value.
// Returns (false, 0) if the expression cannot be parsed or the field is unknown.
func evalCondition(cond string, r types.Reading) (bool, float64) {
	parts := strings.Fields(cond)
	if len(parts) < 3 {
		return false, 0
	}
	field, op, rhs := parts[0], parts[1], strings.Join(parts[2:], " ")
	score := analytics.ClassifyScore(r)

	switch field {
	case "status":
		return compareString(r.Status, op, rhs), float64(score.Score)
	case "risk":
		return compareString(string(score.Risk), op, rhs), float64(score.Score)
	}

	if len(parts) != 3 {
		return false, 0
	}
	v, ok := numericField(field, r, score)
	if !ok {
		return false, 0
	}
	threshold, err := strconv.ParseFloat(rhs, 64)
	if err != nil {
		return false, 0
	}
	return compareFloat(v, op, threshold), v
}

// numericField maps a field name to its value in the reading.
func numericField(field string, r types.Reading, score analytics.ScoreResult) (float64, bool) {
	switch field {
	case "temperature":
		return r.Temperature, true
	case "vibration":
		return r.Vibration, true
	case "rpm":
		return r.RPM, true
	case "load":
		return r.Load, true
	case "score":
		return float64(score.Score), true
	default:
		return 0, false
	}
}

func compareString(v, op, want string) bool {
	switch op {
	case "==":
		return v == want
	case "!=":
		return v != want
	default:
		return false
	}
}

// compareFloat applies a comparison operator to two float64 values.
func compareFloat(v float64, op string, threshold float64) bool {
	switch op {
	case ">":
		return v > threshold
	case ">=":
		return v >= threshold
	case "<":
		return v < threshold
	case "<=":
		return v <= threshold
	case "==":
		return v == threshold
	case "!=":
		return v != threshold
	default:
		return false
	}
}
