package analytics

import (
	"math"

	"github.com/motortwin/motortwin/pkg/types"
)

// MinHistory is the number of prior readings required before anomaly
// detection and trend classification activate. Below it the twin is still
// learning.
const MinHistory = 20

// AnomalySigma is the z-score threshold beyond which a reading is anomalous.
const AnomalySigma = 2.5

// MetricDeviation describes how far one metric of a reading lies from the
// history baseline.
type MetricDeviation struct {
	Mean      float64 `json:"mean"`
	StdDev    float64 `json:"std_dev"`
	Deviation float64 `json:"deviation"` // |value - mean|
	Exceeded  bool    `json:"exceeded"`
}

// AnomalyScore is the full result of an anomaly check.
type AnomalyScore struct {
	Learning    bool            `json:"learning"`
	Anomalous   bool            `json:"anomalous"`
	Temperature MetricDeviation `json:"temperature"`
	Vibration   MetricDeviation `json:"vibration"`
}

// ScoreAnomaly compares current against history. history must not contain
// current; its order is irrelevant.
//
// With fewer than MinHistory readings the result is Learning and never
// Anomalous. The comparison is strict, so a zero-variance history flags any
// deviation at all but never an identical reading.
func ScoreAnomaly(history []types.Reading, current types.Reading) AnomalyScore {
	if len(history) < MinHistory {
		return AnomalyScore{Learning: true}
	}
	out := AnomalyScore{
		Temperature: deviation(types.Temperatures(history), current.Temperature),
		Vibration:   deviation(types.Vibrations(history), current.Vibration),
	}
	out.Anomalous = out.Temperature.Exceeded || out.Vibration.Exceeded
	return out
}

// DetectAnomaly reports whether current is statistically abnormal relative
// to history.
func DetectAnomaly(history []types.Reading, current types.Reading) bool {
	return ScoreAnomaly(history, current).Anomalous
}

func deviation(series []float64, v float64) MetricDeviation {
	mean, _ := Mean(series) // non-empty: guarded by MinHistory
	sd := StdDev(series, mean)
	d := math.Abs(v - mean)
	return MetricDeviation{
		Mean:      mean,
		StdDev:    sd,
		Deviation: d,
		Exceeded:  d > AnomalySigma*sd,
	}
}
