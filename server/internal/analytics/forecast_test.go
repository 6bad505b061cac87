package analytics

import (
	"errors"
	"reflect"
	"testing"
)

func TestForecast_LinearExtrapolation(t *testing.T) {
	// Temperature 96..100 (+1/step), vibration 2.0..2.4 (+0.1/step).
	hist := series(5, 96, 1, 2, 0.1)

	pts, err := Forecast(hist, 5)
	if err != nil {
		t.Fatalf("Forecast: %v", err)
	}
	if len(pts) != 5 {
		t.Fatalf("len = %d, want 5", len(pts))
	}
	for i, p := range pts {
		if p.Step != i+1 {
			t.Errorf("pts[%d].Step = %d, want %d", i, p.Step, i+1)
		}
	}
	if pts[4].Temperature != 105.00 {
		t.Errorf("step 5 temperature = %v, want 105.00", pts[4].Temperature)
	}
	if pts[4].Vibration != 2.9 {
		t.Errorf("step 5 vibration = %v, want 2.9", pts[4].Vibration)
	}
	if pts[0].Temperature != 101 {
		t.Errorf("step 1 temperature = %v, want 101", pts[0].Temperature)
	}
}

func TestForecast_RoundsToTwoDecimals(t *testing.T) {
	// Slope 1/3 per step from 70.
	hist := series(4, 69, 1.0/3.0, 1, 0)
	pts, err := Forecast(hist, 2)
	if err != nil {
		t.Fatalf("Forecast: %v", err)
	}
	// last = 70, steps → 70.333.. and 70.666..
	if pts[0].Temperature != 70.33 || pts[1].Temperature != 70.67 {
		t.Errorf("temperatures = %v, %v; want 70.33, 70.67", pts[0].Temperature, pts[1].Temperature)
	}
}

func TestForecast_Deterministic(t *testing.T) {
	hist := series(30, 50, 0.37, 2, 0.011)
	a, err := Forecast(hist, DefaultForecastSteps)
	if err != nil {
		t.Fatalf("Forecast: %v", err)
	}
	b, _ := Forecast(hist, DefaultForecastSteps)
	if !reflect.DeepEqual(a, b) {
		t.Error("two forecasts over the same history differ")
	}
	if len(a) != DefaultForecastSteps {
		t.Errorf("len = %d, want %d", len(a), DefaultForecastSteps)
	}
}

func TestForecast_Flat(t *testing.T) {
	pts, err := Forecast(flat(20, 70, 2), 3)
	if err != nil {
		t.Fatalf("Forecast: %v", err)
	}
	for _, p := range pts {
		if p.Temperature != 70 || p.Vibration != 2 {
			t.Errorf("step %d = (%v, %v), want (70, 2)", p.Step, p.Temperature, p.Vibration)
		}
	}
}

func TestForecast_Errors(t *testing.T) {
	tests := []struct {
		name    string
		n       int
		steps   int
		wantErr error
	}{
		{"no history", 0, 5, ErrInsufficientHistory},
		{"single reading", 1, 5, ErrInsufficientHistory},
		{"zero steps", 20, 0, ErrInvalidSteps},
		{"negative steps", 20, -3, ErrInvalidSteps},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Forecast(flat(tc.n, 70, 2), tc.steps)
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("err = %v, want %v", err, tc.wantErr)
			}
		})
	}
}
