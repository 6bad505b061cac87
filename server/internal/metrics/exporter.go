package metrics

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"google.golang.org/protobuf/proto"

	"github.com/motortwin/motortwin/pkg/types"
	"github.com/motortwin/motortwin/server/internal/alerts"
	"github.com/motortwin/motortwin/server/internal/analytics"
	"github.com/motortwin/motortwin/server/internal/store"
)

const namespace = "motortwin"

var healthStates = []analytics.TrendHealth{
	analytics.HealthLearning,
	analytics.HealthHealthy,
	analytics.HealthWarning,
	analytics.HealthFailureLikely,
}

// AlertSource lists current alerts.
type AlertSource interface {
	Active() []*alerts.Alert
}

// Exporter serves the Prometheus exposition.
type Exporter struct {
	store         store.Store
	alerts        AlertSource
	historyWindow int
}

// New creates an Exporter. al may be nil.
func New(st store.Store, al AlertSource, historyWindow int) *Exporter {
	return &Exporter{store: st, alerts: al, historyWindow: historyWindow}
}

func (e *Exporter) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	mfs, err := e.Collect(ctx)
	if err != nil {
		slog.Error("metrics: collect", "err", err)
		http.Error(w, "collect failed", http.StatusInternalServerError)
		return
	}

	format := expfmt.NewFormat(expfmt.TypeTextPlain)
	w.Header().Set("Content-Type", string(format))
	enc := expfmt.NewEncoder(w, format)
	for _, mf := range mfs {
		if err := enc.Encode(mf); err != nil {
			slog.Warn("metrics: encode", "family", mf.GetName(), "err", err)
			return
		}
	}
}

// Collect builds the metric families from the current store contents.
// Per-reading gauges are omitted while the store is empty.
func (e *Exporter) Collect(ctx context.Context) ([]*dto.MetricFamily, error) {
	total, err := e.store.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("metrics: count: %w", err)
	}
	newest, ok, err := store.Latest(ctx, e.store)
	if err != nil {
		return nil, fmt.Errorf("metrics: latest: %w", err)
	}
	var history []types.Reading
	if ok {
		history, err = store.History(ctx, e.store, newest.MotorID, e.historyWindow+1)
		if err != nil {
			return nil, fmt.Errorf("metrics: history: %w", err)
		}
	}

	mfs := []*dto.MetricFamily{
		gaugeFamily("readings_stored", "Number of readings held by the store.", nil, float64(total)),
	}
	if e.alerts != nil {
		var firing int
		for _, a := range e.alerts.Active() {
			if a.State == alerts.StateFiring {
				firing++
			}
		}
		mfs = append(mfs, gaugeFamily("alerts_firing", "Number of alerts currently firing.", nil, float64(firing)))
	}
	if len(history) == 0 {
		return mfs, nil
	}

	latest := history[len(history)-1]
	prior := history[:len(history)-1]
	labels := []*dto.LabelPair{label("motor_id", latest.MotorID)}
	score := analytics.ClassifyScore(latest)

	mfs = append(mfs,
		gaugeFamily("temperature_celsius", "Latest motor temperature.", labels, latest.Temperature),
		gaugeFamily("vibration", "Latest motor vibration.", labels, latest.Vibration),
		gaugeFamily("rpm", "Latest motor speed.", labels, latest.RPM),
		gaugeFamily("load_percent", "Latest motor load.", labels, latest.Load),
		gaugeFamily("reading_timestamp_seconds", "Unix time of the latest reading.", labels, latest.Timestamp),
		gaugeFamily("risk_score", "Instantaneous threshold score of the latest reading.", labels, float64(score.Score)),
		gaugeFamily("anomaly", "1 if the latest reading was stored as an anomaly.", labels, boolValue(latest.Status == analytics.StatusAnomaly)),
		healthFamily(latest.MotorID, analytics.ClassifyTrend(prior)),
	)
	if tr, err := analytics.Trends(prior); err == nil {
		mfs = append(mfs,
			gaugeFamily("temperature_trend", "OLS slope of temperature per reading over the history window.", labels, tr.Temperature),
			gaugeFamily("vibration_trend", "OLS slope of vibration per reading over the history window.", labels, tr.Vibration),
		)
	}
	return mfs, nil
}

// healthFamily emits one series per health state, 1 for the current one.
func healthFamily(motorID string, current analytics.TrendHealth) *dto.MetricFamily {
	mf := &dto.MetricFamily{
		Name: proto.String(namespace + "_health_state"),
		Help: proto.String("Trend health classification; 1 for the current state."),
		Type: dto.MetricType_GAUGE.Enum(),
	}
	for _, s := range healthStates {
		mf.Metric = append(mf.Metric, &dto.Metric{
			Label: []*dto.LabelPair{label("motor_id", motorID), label("state", string(s))},
			Gauge: &dto.Gauge{Value: proto.Float64(boolValue(s == current))},
		})
	}
	return mf
}

func gaugeFamily(name, help string, labels []*dto.LabelPair, v float64) *dto.MetricFamily {
	return &dto.MetricFamily{
		Name: proto.String(namespace + "_" + name),
		Help: proto.String(help),
		Type: dto.MetricType_GAUGE.Enum(),
		Metric: []*dto.Metric{{
			Label: labels,
			Gauge: &dto.Gauge{Value: proto.Float64(v)},
		}},
	}
}

func label(name, value string) *dto.LabelPair {
	return &dto.LabelPair{Name: proto.String(name), Value: proto.String(value)}
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
