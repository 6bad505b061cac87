package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/motortwin/motortwin/pkg/types"
	"github.com/motortwin/motortwin/server/internal/alerts"
	"github.com/motortwin/motortwin/server/internal/analytics"
	"github.com/motortwin/motortwin/server/internal/ingest"
	"github.com/motortwin/motortwin/server/internal/store"
)

const (
	maxReadingsLimit = 500
	maxForecastSteps = 200
	maxBodyBytes     = 1 << 16
)

// Ingester is the write path the API posts readings into.
type Ingester interface {
	Ingest(ctx context.Context, r types.Reading) (types.Reading, error)
}

// AlertSource lists current alerts.
type AlertSource interface {
	Active() []*alerts.Alert
}

// Config sizes the history windows and guards the write routes.
type Config struct {
	HistoryWindow  int
	DashboardLimit int
	ForecastSteps  int

	// WriteGuard wraps the ingest routes (API key, rate limit). Nil means
	// no guard.
	WriteGuard func(http.Handler) http.Handler
}

// Handler is the HTTP handler for the REST API.
// It reads readings from the store and writes through the ingester.
type Handler struct {
	store  store.Store
	ingest Ingester
	alerts AlertSource
	cfg    Config
	mux    *http.ServeMux
}

// New creates a Handler and registers all routes. al may be nil.
func New(st store.Store, ing Ingester, al AlertSource, cfg Config) *Handler {
	h := &Handler{store: st, ingest: ing, alerts: al, cfg: cfg, mux: http.NewServeMux()}

	guard := cfg.WriteGuard
	if guard == nil {
		guard = func(next http.Handler) http.Handler { return next }
	}
	readings := guard(http.HandlerFunc(h.readings))

	h.mux.HandleFunc("/", h.banner)
	h.mux.Handle("/api/v1/readings", readings)
	h.mux.HandleFunc("/api/v1/readings/latest", h.latest)
	h.mux.HandleFunc("/api/v1/health", h.health)
	h.mux.HandleFunc("/api/v1/classify", h.classify)
	h.mux.HandleFunc("/api/v1/forecast", h.forecast)
	h.mux.HandleFunc("/api/v1/simulate", h.simulate)
	h.mux.HandleFunc("/api/v1/alerts", h.listAlerts)
	h.mux.HandleFunc("/api/v1/snapshot", h.snapshot)

	// Legacy routes.
	h.mux.Handle("/data", readings)
	h.mux.HandleFunc("/simulate", h.simulate)
	h.mux.HandleFunc("/predict/future", h.legacyForecast)

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// --- route handlers ---------------------------------------------------------

func (h *Handler) banner(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		jsonErr(w, http.StatusNotFound, "not found")
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("motortwin server is running\n")) //nolint:errcheck
}

// readings serves POST (ingest) and GET (recent list) on /api/v1/readings.
func (h *Handler) readings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.postReading(w, r)
	case http.MethodGet:
		h.listReadings(w, r)
	default:
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (h *Handler) postReading(w http.ResponseWriter, r *http.Request) {
	in, ok := decodeReading(w, r)
	if !ok {
		return
	}
	stored, err := h.ingest.Ingest(r.Context(), in)
	if err != nil {
		switch {
		case errors.Is(err, ingest.ErrInvalidReading):
			jsonErr(w, http.StatusBadRequest, err.Error())
			return
		case errors.Is(err, store.ErrConflict):
			jsonErr(w, http.StatusConflict, "a reading with this motor and timestamp already exists")
			return
		}
		internalErr(w, "ingest reading", err)
		return
	}
	jsonResp(w, http.StatusCreated, stored)
}

func (h *Handler) listReadings(w http.ResponseWriter, r *http.Request) {
	limit, ok := intParam(w, r, "limit", h.cfg.DashboardLimit, maxReadingsLimit)
	if !ok {
		return
	}
	rs, err := h.store.Recent(r.Context(), limit)
	if err != nil {
		internalErr(w, "list readings", err)
		return
	}
	jsonResp(w, http.StatusOK, nonNil(rs))
}

// latest returns the most recent reading plus its diagnostics, computed
// against the history that preceded it.
func (h *Handler) latest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	motor, err := h.motorFor(r)
	if err != nil {
		internalErr(w, "load latest reading", err)
		return
	}
	rs, err := store.History(r.Context(), h.store, motor, h.cfg.HistoryWindow+1)
	if err != nil {
		internalErr(w, "load history", err)
		return
	}
	if len(rs) == 0 {
		jsonErr(w, http.StatusNotFound, "no readings yet")
		return
	}
	current := rs[len(rs)-1]
	prior := rs[:len(rs)-1]
	if len(prior) > h.cfg.HistoryWindow {
		prior = prior[len(prior)-h.cfg.HistoryWindow:]
	}

	in := diagnosticInput{
		reading: current,
		anomaly: analytics.ScoreAnomaly(prior, current),
		score:   analytics.ClassifyScore(current),
		health:  analytics.ClassifyTrend(prior),
	}
	if tr, err := analytics.Trends(prior); err == nil {
		in.trend = &tr
	}

	jsonResp(w, http.StatusOK, LatestResponse{
		Reading:     current,
		Anomaly:     in.anomaly,
		Score:       in.score,
		Health:      in.health,
		Diagnostics: computeDiagnostics(in),
	})
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	motor, err := h.motorFor(r)
	if err != nil {
		internalErr(w, "load latest reading", err)
		return
	}
	history, err := store.History(r.Context(), h.store, motor, h.cfg.HistoryWindow)
	if err != nil {
		internalErr(w, "load history", err)
		return
	}
	resp := HealthResponse{
		Health:       analytics.ClassifyTrend(history),
		ReadingCount: len(history),
		Window:       h.cfg.HistoryWindow,
	}
	if tr, err := analytics.Trends(history); err == nil {
		resp.Trend = &tr
	}
	if len(history) > 0 {
		resp.LatestStatus = history[len(history)-1].Status
	}
	if h.alerts != nil {
		for _, a := range h.alerts.Active() {
			if a.State == alerts.StateFiring {
				resp.AlertCount++
			}
		}
	}
	jsonResp(w, http.StatusOK, resp)
}

func (h *Handler) classify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	in, ok := decodeReading(w, r)
	if !ok {
		return
	}
	if err := in.Validate(); err != nil {
		jsonErr(w, http.StatusBadRequest, err.Error())
		return
	}
	jsonResp(w, http.StatusOK, analytics.ClassifyScore(in))
}

func (h *Handler) forecast(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	steps, ok := intParam(w, r, "steps", h.cfg.ForecastSteps, maxForecastSteps)
	if !ok {
		return
	}
	points, n, ok := h.runForecast(w, r, steps)
	if !ok {
		return
	}
	jsonResp(w, http.StatusOK, ForecastResponse{Steps: steps, BasedOn: n, Forecast: points})
}

// legacyForecast answers /predict/future with the bare point list.
func (h *Handler) legacyForecast(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	points, _, ok := h.runForecast(w, r, analytics.DefaultForecastSteps)
	if !ok {
		return
	}
	jsonResp(w, http.StatusOK, points)
}

func (h *Handler) runForecast(w http.ResponseWriter, r *http.Request, steps int) ([]analytics.ForecastPoint, int, bool) {
	motor, err := h.motorFor(r)
	if err != nil {
		internalErr(w, "load latest reading", err)
		return nil, 0, false
	}
	history, err := store.History(r.Context(), h.store, motor, h.cfg.HistoryWindow)
	if err != nil {
		internalErr(w, "load history", err)
		return nil, 0, false
	}
	points, err := analytics.Forecast(history, steps)
	switch {
	case errors.Is(err, analytics.ErrInsufficientHistory):
		jsonErr(w, http.StatusUnprocessableEntity, "at least 2 readings are needed for a forecast")
		return nil, 0, false
	case err != nil:
		jsonErr(w, http.StatusBadRequest, err.Error())
		return nil, 0, false
	}
	return points, len(history), true
}

func (h *Handler) simulate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req scenarioRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		jsonErr(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Load == nil {
		jsonErr(w, http.StatusBadRequest, "load is required")
		return
	}

	var baseline *types.Reading
	latest, ok, err := store.Latest(r.Context(), h.store)
	if err != nil {
		internalErr(w, "load latest reading", err)
		return
	}
	if ok {
		baseline = &latest
	}

	res, err := analytics.Simulate(baseline, analytics.Scenario{Load: *req.Load, Duration: req.Duration, RPM: req.RPM})
	switch {
	case errors.Is(err, analytics.ErrNoBaseline):
		msg := "no data yet"
		if r.URL.Path == "/simulate" {
			msg = "No data yet"
		}
		jsonErr(w, http.StatusBadRequest, msg)
		return
	case err != nil:
		jsonErr(w, http.StatusBadRequest, err.Error())
		return
	}
	jsonResp(w, http.StatusOK, res)
}

func (h *Handler) listAlerts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	out := []*alerts.Alert{}
	if h.alerts != nil {
		out = append(out, h.alerts.Active()...)
	}
	jsonResp(w, http.StatusOK, out)
}

func (h *Handler) snapshot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	snap, err := BuildSnapshot(r.Context(), h.store, h.cfg)
	if err != nil {
		internalErr(w, "build snapshot", err)
		return
	}
	jsonResp(w, http.StatusOK, snap)
}

// --- helpers ----------------------------------------------------------------

func decodeReading(w http.ResponseWriter, r *http.Request) (types.Reading, bool) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		jsonErr(w, http.StatusBadRequest, "read body")
		return types.Reading{}, false
	}
	in, err := ingest.DecodeReading(body)
	if err != nil {
		jsonErr(w, http.StatusBadRequest, err.Error())
		return types.Reading{}, false
	}
	return in, true
}

// intParam parses a positive integer query parameter, applying def when
// absent and capping at ceiling.
// motorFor picks the motor whose history a view is computed over: the
// motor_id query parameter, else the motor of the newest reading. Histories
// of different motors are never mixed.
func (h *Handler) motorFor(r *http.Request) (string, error) {
	if m := r.URL.Query().Get("motor_id"); m != "" {
		return m, nil
	}
	latest, ok, err := store.Latest(r.Context(), h.store)
	if err != nil || !ok {
		return "", err
	}
	return latest.MotorID, nil
}

func intParam(w http.ResponseWriter, r *http.Request, name string, def, ceiling int) (int, bool) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return min(def, ceiling), true
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		jsonErr(w, http.StatusBadRequest, name+" must be a positive integer")
		return 0, false
	}
	return min(n, ceiling), true
}

func nonNil(rs []types.Reading) []types.Reading {
	if rs == nil {
		return []types.Reading{}
	}
	return rs
}

func jsonResp(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, errorResponse{Error: msg})
}

// internalErr logs the cause and answers 500 without leaking it.
func internalErr(w http.ResponseWriter, action string, err error) {
	slog.Error("api: "+action, "err", err)
	jsonErr(w, http.StatusInternalServerError, "internal error")
}
