package api_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/motortwin/motortwin/pkg/types"
	"github.com/motortwin/motortwin/server/internal/alerts"
	"github.com/motortwin/motortwin/server/internal/api"
	"github.com/motortwin/motortwin/server/internal/auth"
	"github.com/motortwin/motortwin/server/internal/config"
	"github.com/motortwin/motortwin/server/internal/ingest"
	"github.com/motortwin/motortwin/server/internal/store"
)

// --- test helpers -----------------------------------------------------------

var testConfig = api.Config{HistoryWindow: 30, DashboardLimit: 50, ForecastSteps: 10}

type fixture struct {
	store  *store.Memory
	alerts *alerts.Engine
	h      http.Handler
}

func newFixture(t *testing.T, rules ...config.AlertRule) *fixture {
	t.Helper()
	st := store.NewMemory(0)
	eng := alerts.New(config.AlertsConfig{Rules: rules})
	p := ingest.New(st, ingest.Settings{MotorID: "motor-1", HistoryWindow: 30, Clamp: true}, eng)
	return &fixture{store: st, alerts: eng, h: api.New(st, p, eng, testConfig)}
}

// seed appends readings directly, bypassing classification.
func (f *fixture) seed(t *testing.T, rs ...types.Reading) {
	t.Helper()
	for _, r := range rs {
		if err := f.store.Append(context.Background(), r); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
}

// ramp returns n readings whose temperature rises by tStep and vibration by
// vStep per reading.
func ramp(n int, tStep, vStep float64) []types.Reading {
	out := make([]types.Reading, n)
	for i := range out {
		out[i] = types.Reading{
			ID:          "r" + string(rune('A'+i%26)),
			MotorID:     "motor-1",
			Temperature: 60 + float64(i)*tStep,
			Vibration:   2 + float64(i)*vStep,
			RPM:         1480,
			Load:        40,
			Timestamp:   float64(i + 1),
			Status:      "HEALTHY",
		}
	}
	return out
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
	return rr
}

func post(t *testing.T, h http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	h.ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(rr.Body).Decode(v); err != nil {
		t.Fatalf("decode JSON: %v (body: %s)", err, rr.Body.String())
	}
}

const validReading = `{"temperature":61.5,"vibration":2.1,"rpm":1480,"load":42}`

// --- banner -----------------------------------------------------------------

func TestBanner(t *testing.T) {
	f := newFixture(t)
	rr := get(t, f.h, "/")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "running") {
		t.Errorf("banner: %d %q", rr.Code, rr.Body.String())
	}
	if rr := get(t, f.h, "/nope"); rr.Code != http.StatusNotFound {
		t.Errorf("unknown path: got %d, want 404", rr.Code)
	}
}

// --- /api/v1/readings -------------------------------------------------------

func TestPostReading_Created(t *testing.T) {
	f := newFixture(t)
	rr := post(t, f.h, "/api/v1/readings", validReading)
	if rr.Code != http.StatusCreated {
		t.Fatalf("status: got %d, want 201 (body %s)", rr.Code, rr.Body.String())
	}
	var got types.Reading
	decode(t, rr, &got)
	if got.ID == "" || got.MotorID != "motor-1" || got.Status != "LEARNING" || got.Timestamp == 0 {
		t.Errorf("stored reading: %+v", got)
	}
	if n, _ := f.store.Count(context.Background()); n != 1 {
		t.Errorf("Count: got %d, want 1", n)
	}
}

func TestPostReading_BadInput(t *testing.T) {
	f := newFixture(t)
	for _, body := range []string{
		`{"temperature":60}`,
		`{"temperature":"x","vibration":2,"rpm":1,"load":1}`,
		`not json`,
	} {
		rr := post(t, f.h, "/api/v1/readings", body)
		if rr.Code != http.StatusBadRequest {
			t.Errorf("%s: status %d, want 400", body, rr.Code)
		}
		var e map[string]string
		decode(t, rr, &e)
		if e["error"] == "" {
			t.Errorf("%s: missing error message", body)
		}
	}
	if n, _ := f.store.Count(context.Background()); n != 0 {
		t.Errorf("Count: got %d, want 0", n)
	}
}

func TestPostReading_FiresAlert(t *testing.T) {
	f := newFixture(t, config.AlertRule{Name: "overheat", Condition: "temperature > 90"})
	post(t, f.h, "/api/v1/readings", `{"temperature":99,"vibration":2,"rpm":1480,"load":40}`)

	rr := get(t, f.h, "/api/v1/alerts")
	var out []alerts.Alert
	decode(t, rr, &out)
	if len(out) != 1 || out[0].RuleName != "overheat" {
		t.Errorf("alerts: got %+v", out)
	}
}

func TestListReadings_LimitAndOrder(t *testing.T) {
	f := newFixture(t)
	f.seed(t, ramp(60, 0.1, 0)...)

	var out []types.Reading
	decode(t, get(t, f.h, "/api/v1/readings"), &out)
	if len(out) != 50 {
		t.Fatalf("default limit: got %d, want 50", len(out))
	}
	if out[0].Timestamp != 60 {
		t.Errorf("newest first: got timestamp %v, want 60", out[0].Timestamp)
	}

	decode(t, get(t, f.h, "/api/v1/readings?limit=5"), &out)
	if len(out) != 5 {
		t.Errorf("limit=5: got %d", len(out))
	}

	decode(t, get(t, f.h, "/api/v1/readings?limit=100000"), &out)
	if len(out) != 60 {
		t.Errorf("capped limit: got %d, want 60", len(out))
	}

	if rr := get(t, f.h, "/api/v1/readings?limit=-1"); rr.Code != http.StatusBadRequest {
		t.Errorf("limit=-1: status %d, want 400", rr.Code)
	}
}

func TestListReadings_EmptyIsArray(t *testing.T) {
	f := newFixture(t)
	rr := get(t, f.h, "/api/v1/readings")
	if strings.TrimSpace(rr.Body.String()) != "[]" {
		t.Errorf("body: got %s, want []", rr.Body.String())
	}
}

func TestReadings_WriteGuard(t *testing.T) {
	st := store.NewMemory(0)
	p := ingest.New(st, ingest.Settings{MotorID: "m", HistoryWindow: 30})
	cfg := testConfig
	cfg.WriteGuard = auth.APIKey("apikey", "x-api-key", "k")
	h := api.New(st, p, nil, cfg)

	if rr := post(t, h, "/api/v1/readings", validReading); rr.Code != http.StatusUnauthorized {
		t.Errorf("without key: got %d, want 401", rr.Code)
	}
	if rr := post(t, h, "/data", validReading); rr.Code != http.StatusUnauthorized {
		t.Errorf("legacy without key: got %d, want 401", rr.Code)
	}

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/readings", strings.NewReader(validReading))
	req.Header.Set("x-api-key", "k")
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusCreated {
		t.Errorf("with key: got %d, want 201", rr.Code)
	}
}

// --- /api/v1/readings/latest ------------------------------------------------

func TestLatest_Empty(t *testing.T) {
	f := newFixture(t)
	if rr := get(t, f.h, "/api/v1/readings/latest"); rr.Code != http.StatusNotFound {
		t.Errorf("status: got %d, want 404", rr.Code)
	}
}

func TestLatest_Diagnostics(t *testing.T) {
	f := newFixture(t)
	rs := ramp(25, 0, 0)
	spike := rs[24]
	spike.Temperature = 95
	rs[24] = spike
	f.seed(t, rs...)

	var resp api.LatestResponse
	decode(t, get(t, f.h, "/api/v1/readings/latest"), &resp)

	if resp.Reading.Temperature != 95 {
		t.Errorf("reading: got %+v", resp.Reading)
	}
	if !resp.Anomaly.Anomalous {
		t.Error("expected anomaly against prior history")
	}
	if len(resp.Diagnostics) == 0 || resp.Diagnostics[0].Level != "critical" {
		t.Errorf("diagnostics: got %+v", resp.Diagnostics)
	}
}

// --- /api/v1/health ---------------------------------------------------------

func TestHealth(t *testing.T) {
	tests := []struct {
		name  string
		seed  []types.Reading
		want  string
		trend bool
	}{
		{"empty", nil, "LEARNING", false},
		{"few readings", ramp(5, 0, 0), "LEARNING", true},
		{"flat", ramp(30, 0, 0), "HEALTHY", true},
		{"warming", ramp(30, 0.4, 0), "WARNING", true},
		{"failing", ramp(30, 0.8, 0.08), "FAILURE LIKELY", true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			f.seed(t, tc.seed...)
			var resp api.HealthResponse
			decode(t, get(t, f.h, "/api/v1/health"), &resp)
			if string(resp.Health) != tc.want {
				t.Errorf("health: got %q, want %q", resp.Health, tc.want)
			}
			if (resp.Trend != nil) != tc.trend {
				t.Errorf("trend present: got %v, want %v", resp.Trend != nil, tc.trend)
			}
			if resp.ReadingCount != len(tc.seed) {
				t.Errorf("reading_count: got %d, want %d", resp.ReadingCount, len(tc.seed))
			}
		})
	}
}

func TestHealth_ScopedToOneMotor(t *testing.T) {
	f := newFixture(t)
	f.seed(t, ramp(30, 0.4, 0)...)
	// A newer, flat motor-2 series interleaved in time must not dilute
	// motor-1's trend, and becomes the default view as the newest motor.
	for i := 0; i < 25; i++ {
		f.seed(t, types.Reading{
			ID: fmt.Sprintf("m2-%02d", i), MotorID: "motor-2",
			Temperature: 70, Vibration: 2, RPM: 1480, Load: 40,
			Timestamp: float64(i) + 10.5,
		})
	}

	tests := []struct {
		path  string
		want  string
		count int
	}{
		{"/api/v1/health?motor_id=motor-1", "WARNING", 30},
		{"/api/v1/health?motor_id=motor-2", "HEALTHY", 25},
		{"/api/v1/health", "HEALTHY", 25},
		{"/api/v1/health?motor_id=unknown", "LEARNING", 0},
	}
	for _, tc := range tests {
		var resp api.HealthResponse
		decode(t, get(t, f.h, tc.path), &resp)
		if string(resp.Health) != tc.want || resp.ReadingCount != tc.count {
			t.Errorf("%s: got %q over %d readings, want %q over %d",
				tc.path, resp.Health, resp.ReadingCount, tc.want, tc.count)
		}
	}
}

type conflictStore struct{ *store.Memory }

func (conflictStore) Append(context.Context, types.Reading) error {
	return fmt.Errorf("dynamodb: %w", store.ErrConflict)
}

func TestPostReading_DuplicateKeyIsConflict(t *testing.T) {
	st := conflictStore{store.NewMemory(0)}
	p := ingest.New(st, ingest.Settings{MotorID: "motor-1", HistoryWindow: 30})
	h := api.New(st, p, nil, testConfig)

	rr := post(t, h, "/api/v1/readings", `{"temperature":60,"vibration":2,"rpm":1480,"load":40,"timestamp":1700000000}`)
	if rr.Code != http.StatusConflict {
		t.Errorf("status: got %d, want 409 (body %s)", rr.Code, rr.Body)
	}
}

// --- /api/v1/classify -------------------------------------------------------

func TestClassify(t *testing.T) {
	f := newFixture(t)
	rr := post(t, f.h, "/api/v1/classify", `{"temperature":95,"vibration":7,"rpm":1480,"load":90}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d", rr.Code)
	}
	var resp struct {
		Score int    `json:"score"`
		Risk  string `json:"risk"`
	}
	decode(t, rr, &resp)
	if resp.Score != 5 || resp.Risk != "FAILURE_RISK" {
		t.Errorf("got %+v, want score 5 FAILURE_RISK", resp)
	}
	if n, _ := f.store.Count(context.Background()); n != 0 {
		t.Error("classify must not persist")
	}
	if rr := get(t, f.h, "/api/v1/classify"); rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET: got %d, want 405", rr.Code)
	}
}

// --- /api/v1/forecast -------------------------------------------------------

func TestForecast_Insufficient(t *testing.T) {
	f := newFixture(t)
	f.seed(t, ramp(1, 0, 0)...)
	if rr := get(t, f.h, "/api/v1/forecast"); rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("status: got %d, want 422", rr.Code)
	}
}

func TestForecast_Steps(t *testing.T) {
	f := newFixture(t)
	f.seed(t, ramp(30, 0.5, 0.01)...)

	var resp api.ForecastResponse
	decode(t, get(t, f.h, "/api/v1/forecast?steps=3"), &resp)
	if resp.Steps != 3 || len(resp.Forecast) != 3 || resp.BasedOn != 30 {
		t.Fatalf("got %+v", resp)
	}
	// Last temperature 74.5, slope 0.5.
	if resp.Forecast[0].Temperature != 75 || resp.Forecast[2].Temperature != 76 {
		t.Errorf("forecast: got %+v", resp.Forecast)
	}

	decode(t, get(t, f.h, "/api/v1/forecast"), &resp)
	if len(resp.Forecast) != 10 {
		t.Errorf("default steps: got %d, want 10", len(resp.Forecast))
	}
	if rr := get(t, f.h, "/api/v1/forecast?steps=abc"); rr.Code != http.StatusBadRequest {
		t.Errorf("steps=abc: got %d, want 400", rr.Code)
	}
}

func TestLegacyPredictFuture(t *testing.T) {
	f := newFixture(t)
	f.seed(t, ramp(30, 0.5, 0.01)...)
	var points []map[string]float64
	decode(t, get(t, f.h, "/predict/future"), &points)
	if len(points) != 10 || points[0]["step"] != 1 {
		t.Errorf("got %v", points)
	}
}

// --- /api/v1/simulate -------------------------------------------------------

func TestSimulate_ClosedFormWithoutData(t *testing.T) {
	f := newFixture(t)
	rr := post(t, f.h, "/api/v1/simulate", `{"load":50}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d (%s)", rr.Code, rr.Body.String())
	}
	var resp map[string]interface{}
	decode(t, rr, &resp)
	if resp["predictedTemperature"] != 90.0 || resp["predictedVibration"] != 3.2 {
		t.Errorf("got %v", resp)
	}
	if resp["strategy"] != "closed_form" {
		t.Errorf("strategy: got %v", resp["strategy"])
	}
}

func TestSimulate_IterativeNeedsBaseline(t *testing.T) {
	f := newFixture(t)
	rr := post(t, f.h, "/api/v1/simulate", `{"load":80,"duration":60}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want 400", rr.Code)
	}
	var e map[string]string
	decode(t, rr, &e)
	if e["error"] != "no data yet" {
		t.Errorf("error: got %q", e["error"])
	}

	rr = post(t, f.h, "/simulate", `{"load":80,"duration":60}`)
	decode(t, rr, &e)
	if e["error"] != "No data yet" {
		t.Errorf("legacy error: got %q", e["error"])
	}
}

func TestSimulate_IterativeFromLatest(t *testing.T) {
	f := newFixture(t)
	f.seed(t, types.Reading{ID: "x", Temperature: 60, Vibration: 2, Load: 40, RPM: 1480, Timestamp: 1})

	rr := post(t, f.h, "/api/v1/simulate", `{"load":50,"duration":10}`)
	var resp map[string]interface{}
	decode(t, rr, &resp)
	// One iteration: temp 62, vib 2 + 62*0.002 = 2.124 -> 2.12.
	if resp["predictedTemperature"] != 62.0 || resp["predictedVibration"] != 2.12 {
		t.Errorf("got %v", resp)
	}
	if n, _ := f.store.Count(context.Background()); n != 1 {
		t.Error("simulate must not persist")
	}
}

func TestSimulate_BadInput(t *testing.T) {
	f := newFixture(t)
	for _, body := range []string{`{}`, `nope`, `{"load":50,"duration":-5}`} {
		if rr := post(t, f.h, "/api/v1/simulate", body); rr.Code != http.StatusBadRequest {
			t.Errorf("%s: status %d, want 400", body, rr.Code)
		}
	}
}

// --- /api/v1/snapshot -------------------------------------------------------

func TestSnapshot(t *testing.T) {
	f := newFixture(t)
	f.seed(t, ramp(60, 0, 0)...)

	var resp api.SnapshotResponse
	decode(t, get(t, f.h, "/api/v1/snapshot"), &resp)
	if len(resp.Readings) != 50 || resp.ReadingCount != 60 {
		t.Errorf("readings: %d of %d", len(resp.Readings), resp.ReadingCount)
	}
	if resp.Latest == nil || resp.Latest.Timestamp != 60 {
		t.Errorf("latest: %+v", resp.Latest)
	}
	if resp.Health != "HEALTHY" || len(resp.Forecast) != 10 || resp.GeneratedAt == "" {
		t.Errorf("snapshot: %+v", resp)
	}
}

func TestSnapshot_Empty(t *testing.T) {
	f := newFixture(t)
	var resp api.SnapshotResponse
	decode(t, get(t, f.h, "/api/v1/snapshot"), &resp)
	if resp.Latest != nil || resp.Health != "LEARNING" || resp.Readings == nil || resp.Forecast == nil {
		t.Errorf("empty snapshot: %+v", resp)
	}
}

// --- cross-cutting ----------------------------------------------------------

func TestMethodNotAllowed(t *testing.T) {
	f := newFixture(t)
	cases := []struct{ method, path string }{
		{http.MethodDelete, "/api/v1/readings"},
		{http.MethodPost, "/api/v1/readings/latest"},
		{http.MethodPost, "/api/v1/health"},
		{http.MethodPost, "/api/v1/forecast"},
		{http.MethodGet, "/api/v1/simulate"},
		{http.MethodPost, "/api/v1/alerts"},
		{http.MethodPut, "/api/v1/snapshot"},
		{http.MethodPost, "/predict/future"},
	}
	for _, c := range cases {
		rr := httptest.NewRecorder()
		f.h.ServeHTTP(rr, httptest.NewRequest(c.method, c.path, nil))
		if rr.Code != http.StatusMethodNotAllowed {
			t.Errorf("%s %s: got %d, want 405", c.method, c.path, rr.Code)
		}
	}
}

func TestContentTypeJSON(t *testing.T) {
	f := newFixture(t)
	for _, path := range []string{"/api/v1/readings", "/api/v1/health", "/api/v1/alerts", "/api/v1/snapshot", "/data"} {
		rr := get(t, f.h, path)
		if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
			t.Errorf("%s: Content-Type %q", path, ct)
		}
	}
}

func TestCORS(t *testing.T) {
	f := newFixture(t)
	cors := api.NewCORS([]string{"http://dash.local"})
	h := cors.Wrap(f.h)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/readings", nil)
	req.Header.Set("Origin", "http://dash.local")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusNoContent {
		t.Errorf("preflight: got %d, want 204", rr.Code)
	}
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "http://dash.local" {
		t.Errorf("allow-origin: got %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set("Origin", "http://evil.local")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("disallowed origin got header %q", got)
	}

	cors.SetOrigins([]string{"*"})
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("after reload: got %q, want *", got)
	}
}
