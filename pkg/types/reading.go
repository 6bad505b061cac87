package types

import (
	"fmt"
	"math"
	"time"
)

// Reading is one motor telemetry sample.
//
// Status is derived once, at ingestion, from the history that existed before
// the reading was stored. It is never recomputed.
type Reading struct {
	ID          string  `json:"id,omitempty"`
	MotorID     string  `json:"motor_id,omitempty"`
	Temperature float64 `json:"temperature"`
	Vibration   float64 `json:"vibration"`
	RPM         float64 `json:"rpm"`
	Load        float64 `json:"load"`
	// Timestamp is unix seconds. It orders readings; it is never used as a
	// time axis for trend math.
	Timestamp float64 `json:"timestamp"`
	Status    string  `json:"status,omitempty"`
}

// Time converts Timestamp to a time.Time.
func (r Reading) Time() time.Time {
	sec, frac := math.Modf(r.Timestamp)
	return time.Unix(int64(sec), int64(frac*1e9))
}

// UnixSeconds returns t as fractional unix seconds, the Timestamp encoding.
func UnixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

// Validate reports the first field that is not a finite number.
func (r Reading) Validate() error {
	fields := []struct {
		name string
		v    float64
	}{
		{"temperature", r.Temperature},
		{"vibration", r.Vibration},
		{"rpm", r.RPM},
		{"load", r.Load},
		{"timestamp", r.Timestamp},
	}
	for _, f := range fields {
		if math.IsNaN(f.v) || math.IsInf(f.v, 0) {
			return fmt.Errorf("%s must be a finite number", f.name)
		}
	}
	return nil
}

// Temperatures extracts the temperature series from rs, preserving order.
func Temperatures(rs []Reading) []float64 {
	out := make([]float64, len(rs))
	for i, r := range rs {
		out[i] = r.Temperature
	}
	return out
}

// Vibrations extracts the vibration series from rs, preserving order.
func Vibrations(rs []Reading) []float64 {
	out := make([]float64, len(rs))
	for i, r := range rs {
		out[i] = r.Vibration
	}
	return out
}

// Reverse returns a reversed copy of rs. Stores return newest first; trend
// math wants chronological order.
func Reverse(rs []Reading) []Reading {
	out := make([]Reading, len(rs))
	for i, r := range rs {
		out[len(rs)-1-i] = r
	}
	return out
}
