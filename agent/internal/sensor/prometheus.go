package sensor

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"

	"github.com/motortwin/motortwin/agent/internal/config"
	"github.com/motortwin/motortwin/pkg/types"
)

// promSource reads a motor's telemetry from a Prometheus exporter, e.g. a PLC
// bridge or node exporter textfile collector.
type promSource struct {
	src    config.Source
	client *http.Client
}

// Read scrapes the exporter and maps the configured metric names onto a
// reading. Every metric must be present; a partial reading is an error.
func (s *promSource) Read(ctx context.Context) (types.Reading, error) {
	families, err := s.scrape(ctx)
	if err != nil {
		slog.Warn("sensor: prometheus scrape failed", "motor", s.src.MotorID, "err", err)
		return types.Reading{}, fmt.Errorf("prometheus scrape %q: %w", s.src.MotorID, err)
	}

	rd := types.Reading{
		MotorID:   s.src.MotorID,
		Timestamp: types.UnixSeconds(time.Now()),
	}
	names := s.src.Metrics
	targets := [...]struct {
		metric string
		dst    *float64
	}{
		{names.Temperature, &rd.Temperature},
		{names.Vibration, &rd.Vibration},
		{names.RPM, &rd.RPM},
		{names.Load, &rd.Load},
	}
	for _, t := range targets {
		v, ok := mean(families[t.metric], s.src.Labels)
		if !ok {
			return types.Reading{}, fmt.Errorf("prometheus scrape %q: metric %q not found", s.src.MotorID, t.metric)
		}
		*t.dst = v
	}
	return rd, nil
}

func (s *promSource) scrape(ctx context.Context) (map[string]*dto.MetricFamily, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.src.Endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", string(expfmt.NewFormat(expfmt.TypeTextPlain)))

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("exporter returned %d", resp.StatusCode)
	}

	var p expfmt.TextParser
	families, err := p.TextToMetricFamilies(resp.Body)
	// Keep whatever parsed before a malformed trailing line.
	if err != nil && len(families) == 0 {
		return nil, fmt.Errorf("parse exposition: %w", err)
	}
	return families, nil
}

// mean averages the series of mf whose labels include every pair in want.
func mean(mf *dto.MetricFamily, want map[string]string) (float64, bool) {
	var sum float64
	var n int
	for _, m := range mf.GetMetric() {
		v, ok := sampleValue(m)
		if !ok || !matches(m.GetLabel(), want) {
			continue
		}
		sum += v
		n++
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

func sampleValue(m *dto.Metric) (float64, bool) {
	switch {
	case m.Gauge != nil:
		return m.Gauge.GetValue(), true
	case m.Counter != nil:
		return m.Counter.GetValue(), true
	case m.Untyped != nil:
		return m.Untyped.GetValue(), true
	}
	return 0, false
}

func matches(labels []*dto.LabelPair, want map[string]string) bool {
	if len(want) == 0 {
		return true
	}
	have := make(map[string]string, len(labels))
	for _, lp := range labels {
		have[lp.GetName()] = lp.GetValue()
	}
	for k, v := range want {
		if got, ok := have[k]; !ok || got != v {
			return false
		}
	}
	return true
}
