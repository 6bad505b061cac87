package api

import (
	"github.com/motortwin/motortwin/pkg/types"
	"github.com/motortwin/motortwin/server/internal/analytics"
)

// LatestResponse is the payload for GET /api/v1/readings/latest.
type LatestResponse struct {
	Reading     types.Reading          `json:"reading"`
	Anomaly     analytics.AnomalyScore `json:"anomaly"`
	Score       analytics.ScoreResult  `json:"score"`
	Health      analytics.TrendHealth  `json:"health"`
	Diagnostics []DiagnosticHint       `json:"diagnostics"`
}

// HealthResponse is the payload for GET /api/v1/health.
type HealthResponse struct {
	Health       analytics.TrendHealth `json:"health"`
	Trend        *analytics.Trend      `json:"trend,omitempty"` // nil below two readings
	ReadingCount int                   `json:"reading_count"`   // readings in the window
	Window       int                   `json:"window"`
	LatestStatus string                `json:"latest_status,omitempty"`
	AlertCount   int                   `json:"alert_count"`
}

// ForecastResponse is the payload for GET /api/v1/forecast.
type ForecastResponse struct {
	Steps    int                       `json:"steps"`
	BasedOn  int                       `json:"based_on"`
	Forecast []analytics.ForecastPoint `json:"forecast"`
}

// SnapshotResponse is the payload for GET /api/v1/snapshot and every
// WebSocket broadcast.
type SnapshotResponse struct {
	Readings     []types.Reading           `json:"readings"` // newest first
	Latest       *types.Reading            `json:"latest,omitempty"`
	Health       analytics.TrendHealth     `json:"health"`
	Score        *analytics.ScoreResult    `json:"score,omitempty"`
	Forecast     []analytics.ForecastPoint `json:"forecast"`
	ReadingCount int                       `json:"reading_count"` // total stored
	GeneratedAt  string                    `json:"generated_at"`  // RFC3339
}

// scenarioRequest is the body of POST /api/v1/simulate.
type scenarioRequest struct {
	Load     *float64 `json:"load"`
	Duration *float64 `json:"duration"`
	RPM      *float64 `json:"rpm"`
}

// errorResponse is a generic JSON error body.
type errorResponse struct {
	Error string `json:"error"`
}
