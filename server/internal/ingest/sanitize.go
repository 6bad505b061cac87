package ingest

import (
	"fmt"

	"github.com/motortwin/motortwin/pkg/types"
	"github.com/motortwin/motortwin/server/internal/analytics"
)

// Action decides what a RangeRule does with an out-of-range value.
type Action string

const (
	// ActionCorrect clamps the value to the nearest bound.
	ActionCorrect Action = "correct"
	// ActionReject fails the reading.
	ActionReject Action = "reject"
)

// RangeRule bounds one reading field.
type RangeRule struct {
	Field  string
	Min    float64
	Max    float64
	Action Action
}

func (r RangeRule) field(rd *types.Reading) *float64 {
	switch r.Field {
	case "temperature":
		return &rd.Temperature
	case "vibration":
		return &rd.Vibration
	case "load":
		return &rd.Load
	case "rpm":
		return &rd.RPM
	}
	return nil
}

// Check applies the rule to rd in place. corrected is true when the value was
// clamped.
func (r RangeRule) Check(rd *types.Reading) (corrected bool, err error) {
	v := r.field(rd)
	if v == nil {
		return false, fmt.Errorf("range rule: unknown field %q", r.Field)
	}
	if *v >= r.Min && *v <= r.Max {
		return false, nil
	}
	if r.Action != ActionCorrect {
		return false, fmt.Errorf("%w: %s %.2f out of range [%.2f, %.2f]", ErrInvalidReading, r.Field, *v, r.Min, r.Max)
	}
	if *v < r.Min {
		*v = r.Min
	} else {
		*v = r.Max
	}
	return true, nil
}

// DefaultRules clamps the physically bounded fields. RPM is left alone.
func DefaultRules() []RangeRule {
	return []RangeRule{
		{Field: "temperature", Min: analytics.MinTemperature, Max: analytics.MaxTemperature, Action: ActionCorrect},
		{Field: "vibration", Min: analytics.MinVibration, Max: analytics.MaxVibration, Action: ActionCorrect},
		{Field: "load", Min: analytics.MinLoad, Max: analytics.MaxLoad, Action: ActionCorrect},
	}
}

// Sanitize validates rd and runs it through rules in order. It returns the
// possibly corrected reading and the names of the corrected fields.
func Sanitize(rd types.Reading, rules []RangeRule) (types.Reading, []string, error) {
	if err := rd.Validate(); err != nil {
		return rd, nil, fmt.Errorf("%w: %v", ErrInvalidReading, err)
	}
	var corrected []string
	for _, rule := range rules {
		ok, err := rule.Check(&rd)
		if err != nil {
			return rd, nil, err
		}
		if ok {
			corrected = append(corrected, rule.Field)
		}
	}
	return rd, corrected, nil
}
