package analytics

import "github.com/motortwin/motortwin/pkg/types"

// TrendHealth is the trend-based health class of a motor.
type TrendHealth string

// Trend-based health classes.
const (
	HealthLearning      TrendHealth = "LEARNING"
	HealthHealthy       TrendHealth = "HEALTHY"
	HealthWarning       TrendHealth = "WARNING"
	HealthFailureLikely TrendHealth = "FAILURE LIKELY"
)

// StatusAnomaly is the ingestion status of a reading flagged by DetectAnomaly.
// It takes precedence over the trend class.
const StatusAnomaly = "ANOMALY"

// Slope thresholds for the trend classifier, in units per reading.
const (
	failureTempSlope = 0.6
	failureVibSlope  = 0.05
	warningTempSlope = 0.3
	warningVibSlope  = 0.03
)

// Trend holds the least-squares slopes of temperature and vibration.
type Trend struct {
	Temperature float64 `json:"temperature"`
	Vibration   float64 `json:"vibration"`
}

// Trends fits temperature and vibration slopes over history, which must be
// in chronological order.
func Trends(history []types.Reading) (Trend, error) {
	t, err := TrendSlope(types.Temperatures(history))
	if err != nil {
		return Trend{}, err
	}
	v, err := TrendSlope(types.Vibrations(history))
	if err != nil {
		return Trend{}, err
	}
	return Trend{Temperature: t, Vibration: v}, nil
}

// ClassifyTrend classifies health from the slopes of a chronological history.
// The joint failure condition is evaluated before the warning condition.
func ClassifyTrend(history []types.Reading) TrendHealth {
	if len(history) < MinHistory {
		return HealthLearning
	}
	tr, err := Trends(history)
	if err != nil {
		return HealthLearning
	}
	return classifySlopes(tr)
}

func classifySlopes(tr Trend) TrendHealth {
	switch {
	case tr.Temperature > failureTempSlope && tr.Vibration > failureVibSlope:
		return HealthFailureLikely
	case tr.Temperature > warningTempSlope || tr.Vibration > warningVibSlope:
		return HealthWarning
	default:
		return HealthHealthy
	}
}

// Risk is the instantaneous, score-based risk class of a single reading.
type Risk string

// Score-based risk classes.
const (
	RiskNormal      Risk = "NORMAL"
	RiskWarning     Risk = "WARNING"
	RiskFailureRisk Risk = "FAILURE_RISK"
)

// Score weights and limits for ClassifyScore.
const (
	scoreHotTemp   = 90.0
	scoreHighVib   = 6.0
	scoreOverload  = 85.0
	weightHotTemp  = 2
	weightHighVib  = 2
	weightOverload = 1

	thresholdFailureRisk = 4
	thresholdWarning     = 2
)

// ScoreResult is the outcome of ClassifyScore.
type ScoreResult struct {
	Score int  `json:"score"`
	Risk  Risk `json:"risk"`
}

// ClassifyScore rates a single reading without history:
//
//	+2 temperature > 90, +2 vibration > 6, +1 load > 85
//	score >= 4 → FAILURE_RISK, score >= 2 → WARNING, else NORMAL
func ClassifyScore(r types.Reading) ScoreResult {
	score := 0
	if r.Temperature > scoreHotTemp {
		score += weightHotTemp
	}
	if r.Vibration > scoreHighVib {
		score += weightHighVib
	}
	if r.Load > scoreOverload {
		score += weightOverload
	}
	return ScoreResult{Score: score, Risk: riskFromScore(score)}
}

func riskFromScore(score int) Risk {
	switch {
	case score >= thresholdFailureRisk:
		return RiskFailureRisk
	case score >= thresholdWarning:
		return RiskWarning
	default:
		return RiskNormal
	}
}

// Status returns the ingestion status for a reading given its anomaly flag
// and the trend class of the history before it.
func Status(anomalous bool, health TrendHealth) string {
	if anomalous {
		return StatusAnomaly
	}
	return string(health)
}
