package api

import (
	"testing"

	"github.com/motortwin/motortwin/pkg/types"
	"github.com/motortwin/motortwin/server/internal/analytics"
)

func hintKeys(hs []DiagnosticHint) []string {
	out := make([]string, len(hs))
	for i, h := range hs {
		out[i] = h.Key
	}
	return out
}

func TestComputeDiagnostics(t *testing.T) {
	normal := types.Reading{Temperature: 60, Vibration: 2, Load: 40}
	tests := []struct {
		name string
		in   diagnosticInput
		want []string
	}{
		{
			name: "all clear",
			in:   diagnosticInput{reading: normal, health: analytics.HealthHealthy},
			want: []string{"healthy"},
		},
		{
			name: "learning",
			in:   diagnosticInput{reading: normal, anomaly: analytics.AnomalyScore{Learning: true}, health: analytics.HealthLearning},
			want: []string{"learning"},
		},
		{
			name: "overload only",
			in:   diagnosticInput{reading: types.Reading{Temperature: 60, Vibration: 2, Load: 90}, health: analytics.HealthHealthy},
			want: []string{"overload"},
		},
		{
			name: "critical sorted before warning",
			in: diagnosticInput{
				reading: types.Reading{Temperature: 95, Vibration: 2, Load: 90},
				health:  analytics.HealthWarning,
			},
			want: []string{"high_temperature", "overload", "rising_trend"},
		},
		{
			name: "anomaly on vibration",
			in: diagnosticInput{
				reading: types.Reading{Temperature: 60, Vibration: 7, Load: 40},
				anomaly: analytics.AnomalyScore{
					Anomalous: true,
					Vibration: analytics.MetricDeviation{Mean: 2, Deviation: 5, Exceeded: true},
				},
				health: analytics.HealthHealthy,
			},
			want: []string{"anomaly", "high_vibration"},
		},
		{
			name: "failure likely trend is critical",
			in: diagnosticInput{
				reading: normal,
				health:  analytics.HealthFailureLikely,
				trend:   &analytics.Trend{Temperature: 0.8, Vibration: 0.06},
			},
			want: []string{"rising_trend"},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := hintKeys(computeDiagnostics(tc.in))
			if len(got) != len(tc.want) {
				t.Fatalf("hints: got %v, want %v", got, tc.want)
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Errorf("hints: got %v, want %v", got, tc.want)
					break
				}
			}
		})
	}
}

func TestComputeDiagnostics_AnomalyValue(t *testing.T) {
	hs := computeDiagnostics(diagnosticInput{
		reading: types.Reading{Temperature: 80},
		anomaly: analytics.AnomalyScore{
			Anomalous:   true,
			Temperature: analytics.MetricDeviation{Mean: 60, StdDev: 1, Deviation: 20, Exceeded: true},
		},
	})
	if hs[0].Key != "anomaly" || hs[0].Value == nil || *hs[0].Value != 20 {
		t.Errorf("anomaly hint: %+v", hs[0])
	}
}
