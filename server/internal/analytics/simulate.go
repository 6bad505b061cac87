package analytics

import (
	"errors"

	"github.com/motortwin/motortwin/pkg/types"
)

var (
	// ErrNoBaseline is returned when the iterative strategy has no reading to
	// start from.
	ErrNoBaseline = errors.New("analytics: no baseline reading")

	// ErrInvalidScenario is returned for a scenario with a negative duration.
	ErrInvalidScenario = errors.New("analytics: duration must not be negative")
)

// Simulation strategies.
const (
	StrategyIterative  = "iterative"
	StrategyClosedForm = "closed_form"
)

// Coefficients of the iterative approximation.
const (
	heatPerLoad      = 0.04  // °C per load % per step
	vibrationPerHeat = 0.002 // vibration per °C per step
	secondsPerStep   = 10.0
)

// Coefficients of the closed-form projection.
const (
	baseTemperature  = 60.0
	tempPerLoad      = 0.6
	baseVibration    = 1.2
	vibrationPerLoad = 0.04
)

// Physical limits used to clamp closed-form projections.
const (
	MinTemperature = 30.0
	MaxTemperature = 120.0
	MinVibration   = 0.0
	MaxVibration   = 10.0
	MinLoad        = 0.0
	MaxLoad        = 100.0
)

// Risk limits of the iterative strategy.
const (
	simFailureTemp = 90.0
	simFailureVib  = 6.0
	simWarningTemp = 75.0
	simWarningVib  = 5.0
)

// Scenario is a hypothetical operating condition.
type Scenario struct {
	Load float64 `json:"load"`
	// Duration in seconds. When set, the iterative strategy runs one step per
	// 10 seconds; when nil, the closed-form projection is used.
	Duration *float64 `json:"duration,omitempty"`
	// RPM is echoed back; neither strategy models it.
	RPM *float64 `json:"rpm,omitempty"`
}

// SimulationResult is the projected state of the motor under a scenario.
type SimulationResult struct {
	PredictedTemperature float64  `json:"predictedTemperature"`
	PredictedVibration   float64  `json:"predictedVibration"`
	Risk                 string   `json:"risk"`
	Strategy             string   `json:"strategy"`
	RPM                  *float64 `json:"rpm,omitempty"`
}

// Simulate projects current forward under sc. current is only read.
//
// Iterative strategy (Duration set): starting from current, each step adds
// load·0.04 to temperature and then temperature·0.002 to vibration, so
// vibration couples to the temperature already updated in the same step.
// The loop runs while i < duration/10. Risk is HEALTHY, WARNING or
// FAILURE LIKELY.
//
// Closed-form strategy (Duration nil): temperature = 60 + load·0.6 and
// vibration = 1.2 + load·0.04, clamped to physical limits, with risk taken
// from ClassifyScore.
func Simulate(current *types.Reading, sc Scenario) (SimulationResult, error) {
	if sc.Duration == nil {
		return simulateClosedForm(sc), nil
	}
	if *sc.Duration < 0 {
		return SimulationResult{}, ErrInvalidScenario
	}
	if current == nil {
		return SimulationResult{}, ErrNoBaseline
	}

	temp, vib := current.Temperature, current.Vibration
	steps := *sc.Duration / secondsPerStep
	for i := 0; float64(i) < steps; i++ {
		temp += sc.Load * heatPerLoad
		vib += temp * vibrationPerHeat
	}

	return SimulationResult{
		PredictedTemperature: types.Round2(temp),
		PredictedVibration:   types.Round2(vib),
		Risk:                 string(iterativeRisk(temp, vib)),
		Strategy:             StrategyIterative,
		RPM:                  sc.RPM,
	}, nil
}

func simulateClosedForm(sc Scenario) SimulationResult {
	temp := clamp(baseTemperature+sc.Load*tempPerLoad, MinTemperature, MaxTemperature)
	vib := clamp(baseVibration+sc.Load*vibrationPerLoad, MinVibration, MaxVibration)
	res := ClassifyScore(types.Reading{Temperature: temp, Vibration: vib, Load: sc.Load})
	return SimulationResult{
		PredictedTemperature: types.Round2(temp),
		PredictedVibration:   types.Round2(vib),
		Risk:                 string(res.Risk),
		Strategy:             StrategyClosedForm,
		RPM:                  sc.RPM,
	}
}

func iterativeRisk(temp, vib float64) TrendHealth {
	switch {
	case temp > simFailureTemp || vib > simFailureVib:
		return HealthFailureLikely
	case temp > simWarningTemp || vib > simWarningVib:
		return HealthWarning
	default:
		return HealthHealthy
	}
}
