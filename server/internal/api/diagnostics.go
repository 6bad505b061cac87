package api

import (
	"fmt"
	"sort"

	"github.com/motortwin/motortwin/pkg/types"
	"github.com/motortwin/motortwin/server/internal/analytics"
)

// DiagnosticHint is one human-readable insight about the motor's condition.
// The dashboard displays these as chips; clicking one shows Detail.
type DiagnosticHint struct {
	// Key is a stable machine-readable identifier (used for dedup/ordering).
	Key string `json:"key"`
	// Level is "ok" | "info" | "warning" | "critical"
	Level string `json:"level"`
	// Title is a short label shown on the chip (≤ 5 words).
	Title string `json:"title"`
	// Detail is the full explanation shown on click/hover.
	Detail string `json:"detail"`
	// Value is an optional numeric value associated with this hint.
	Value *float64 `json:"value,omitempty"`
}

// diagnosticInput gathers everything computeDiagnostics looks at.
type diagnosticInput struct {
	reading types.Reading
	anomaly analytics.AnomalyScore
	score   analytics.ScoreResult
	health  analytics.TrendHealth
	trend   *analytics.Trend
}

var levelRank = map[string]int{"critical": 0, "warning": 1, "info": 2, "ok": 3}

// computeDiagnostics derives human-readable diagnostic hints for the latest
// reading. Diagnostics are ordered: critical first, then warnings, then info.
func computeDiagnostics(in diagnosticInput) []DiagnosticHint {
	var hints []DiagnosticHint
	r := in.reading

	// ── Not enough history yet ───────────────────────────────────────────────
	if in.anomaly.Learning {
		hints = append(hints, DiagnosticHint{
			Key:   "learning",
			Level: "info",
			Title: "Learning baseline",
			Detail: fmt.Sprintf(
				"The twin needs %d readings before it can judge trends or flag anomalies. "+
					"Until then every reading is stored as LEARNING. No action needed.",
				analytics.MinHistory,
			),
		})
	}

	// ── Statistical anomaly ──────────────────────────────────────────────────
	if in.anomaly.Anomalous {
		var metric string
		var dev analytics.MetricDeviation
		if in.anomaly.Temperature.Exceeded {
			metric, dev = "temperature", in.anomaly.Temperature
		} else {
			metric, dev = "vibration", in.anomaly.Vibration
		}
		v := dev.Deviation
		hints = append(hints, DiagnosticHint{
			Key:   "anomaly",
			Level: "critical",
			Title: "Anomalous reading",
			Detail: fmt.Sprintf(
				"The latest %s is %.2f away from its recent mean of %.2f, more than %.1f standard deviations (σ = %.2f). "+
					"A sudden jump like this usually means a sensor fault or a mechanical event; inspect the motor.",
				metric, dev.Deviation, dev.Mean, analytics.AnomalySigma, dev.StdDev,
			),
			Value: &v,
		})
	}

	// ── Instantaneous thresholds ─────────────────────────────────────────────
	if r.Temperature > 90 {
		v := r.Temperature
		hints = append(hints, DiagnosticHint{
			Key:   "high_temperature",
			Level: "critical",
			Title: fmt.Sprintf("Running hot: %.1f°C", r.Temperature),
			Detail: "Winding temperature is above 90°C. Sustained operation at this level shortens insulation life. " +
				"Check cooling airflow and reduce load if possible.",
			Value: &v,
		})
	}
	if r.Vibration > 6 {
		v := r.Vibration
		hints = append(hints, DiagnosticHint{
			Key:   "high_vibration",
			Level: "critical",
			Title: fmt.Sprintf("Vibration %.2f", r.Vibration),
			Detail: "Vibration is above 6. Common causes are bearing wear, misalignment and imbalance. " +
				"Schedule an inspection before the next duty cycle.",
			Value: &v,
		})
	}
	if r.Load > 85 {
		v := r.Load
		hints = append(hints, DiagnosticHint{
			Key:   "overload",
			Level: "warning",
			Title: fmt.Sprintf("%.0f%% load", r.Load),
			Detail: "The motor is running above 85% of rated load. Temperature and vibration will climb " +
				"if this continues; use the simulator to see where it is heading.",
			Value: &v,
		})
	}

	// ── Trend ────────────────────────────────────────────────────────────────
	switch in.health {
	case analytics.HealthFailureLikely, analytics.HealthWarning:
		level := "warning"
		if in.health == analytics.HealthFailureLikely {
			level = "critical"
		}
		detail := "Temperature or vibration has been rising steadily across the recent window."
		if in.trend != nil {
			detail = fmt.Sprintf(
				"Across the recent window temperature is changing by %.3f per reading and vibration by %.4f per reading. "+
					"If the trend holds, check the forecast for when limits will be crossed.",
				in.trend.Temperature, in.trend.Vibration,
			)
		}
		hints = append(hints, DiagnosticHint{
			Key:    "rising_trend",
			Level:  level,
			Title:  "Rising trend",
			Detail: detail,
		})
	}

	// ── All clear ────────────────────────────────────────────────────────────
	if len(hints) == 0 {
		score := float64(in.score.Score)
		hints = append(hints, DiagnosticHint{
			Key:    "healthy",
			Level:  "ok",
			Title:  "All clear",
			Detail: "Readings are within limits and the recent trend is flat. No action needed.",
			Value:  &score,
		})
	}

	sort.SliceStable(hints, func(i, j int) bool {
		return levelRank[hints[i].Level] < levelRank[hints[j].Level]
	})
	return hints
}
