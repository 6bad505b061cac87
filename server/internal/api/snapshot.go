package api

import (
	"context"
	"fmt"
	"time"

	"github.com/motortwin/motortwin/pkg/types"
	"github.com/motortwin/motortwin/server/internal/analytics"
	"github.com/motortwin/motortwin/server/internal/store"
)

// BuildSnapshot assembles the dashboard view: the most recent readings, the
// latest reading's score, and the trend health and forecast of its motor. It is shared by
// GET /api/v1/snapshot and the WebSocket hub.
func BuildSnapshot(ctx context.Context, st store.Store, cfg Config) (SnapshotResponse, error) {
	limit := max(cfg.DashboardLimit, cfg.HistoryWindow)
	recent, err := st.Recent(ctx, limit)
	if err != nil {
		return SnapshotResponse{}, fmt.Errorf("snapshot: recent: %w", err)
	}
	total, err := st.Count(ctx)
	if err != nil {
		return SnapshotResponse{}, fmt.Errorf("snapshot: count: %w", err)
	}

	// Health and forecast follow the motor of the newest reading.
	var window []types.Reading
	if len(recent) > 0 {
		window, err = store.History(ctx, st, recent[0].MotorID, cfg.HistoryWindow)
		if err != nil {
			return SnapshotResponse{}, fmt.Errorf("snapshot: history: %w", err)
		}
	}
	snap := SnapshotResponse{
		Readings:     nonNil(recent[:min(cfg.DashboardLimit, len(recent))]),
		Health:       analytics.ClassifyTrend(window),
		Forecast:     []analytics.ForecastPoint{},
		ReadingCount: total,
		GeneratedAt:  time.Now().UTC().Format(time.RFC3339),
	}
	if len(recent) > 0 {
		latest := recent[0]
		score := analytics.ClassifyScore(latest)
		snap.Latest = &latest
		snap.Score = &score
	}
	if points, err := analytics.Forecast(window, cfg.ForecastSteps); err == nil {
		snap.Forecast = points
	}
	return snap, nil
}
