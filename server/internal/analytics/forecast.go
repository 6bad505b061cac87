package analytics

import (
	"errors"

	"github.com/motortwin/motortwin/pkg/types"
)

// DefaultForecastSteps is the horizon used when the caller does not choose one.
const DefaultForecastSteps = 10

var (
	// ErrInsufficientHistory is returned when a forecast is requested over
	// fewer than two readings.
	ErrInsufficientHistory = errors.New("analytics: at least 2 readings are required")

	// ErrInvalidSteps is returned for a non-positive forecast horizon.
	ErrInvalidSteps = errors.New("analytics: steps must be positive")
)

// ForecastPoint is one projected step.
type ForecastPoint struct {
	Step        int     `json:"step"`
	Temperature float64 `json:"temperature"`
	Vibration   float64 `json:"vibration"`
}

// Forecast extrapolates temperature and vibration steps readings ahead.
//
// history must be chronological. The slopes are fitted over all of it and
// added once per step to the last known values; there is no damping and no
// confidence band. Values are rounded to 2 decimals after accumulation.
func Forecast(history []types.Reading, steps int) ([]ForecastPoint, error) {
	if steps <= 0 {
		return nil, ErrInvalidSteps
	}
	if len(history) < 2 {
		return nil, ErrInsufficientHistory
	}
	tr, err := Trends(history)
	if err != nil {
		return nil, err
	}

	last := history[len(history)-1]
	t, v := last.Temperature, last.Vibration

	out := make([]ForecastPoint, 0, steps)
	for i := 1; i <= steps; i++ {
		t += tr.Temperature
		v += tr.Vibration
		out = append(out, ForecastPoint{
			Step:        i,
			Temperature: types.Round2(t),
			Vibration:   types.Round2(v),
		})
	}
	return out, nil
}
