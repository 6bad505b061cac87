package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/motortwin/motortwin/pkg/types"
	"github.com/motortwin/motortwin/server/internal/analytics"
	"github.com/motortwin/motortwin/server/internal/store"
)

// ErrInvalidReading marks input that can never be ingested. Callers map it to
// a client error; anything else from Ingest is a server-side failure.
var ErrInvalidReading = errors.New("invalid reading")

// Observer is notified of every stored reading.
type Observer interface {
	Observe(r types.Reading)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(types.Reading)

func (f ObserverFunc) Observe(r types.Reading) { f(r) }

// Settings configures a Pipeline.
type Settings struct {
	// MotorID is assigned to readings that arrive without one.
	MotorID string
	// HistoryWindow is how many prior readings a new reading is classified against.
	HistoryWindow int
	// Clamp enables DefaultRules.
	Clamp bool
}

// Pipeline is the single write path into the store.
type Pipeline struct {
	mu        sync.Mutex
	store     store.Store
	settings  Settings
	rules     []RangeRule
	observers []Observer

	now   func() time.Time
	newID func() string
}

// New creates a Pipeline writing to st.
func New(st store.Store, s Settings, observers ...Observer) *Pipeline {
	p := &Pipeline{
		store:     st,
		settings:  s,
		observers: observers,
		now:       time.Now,
		newID:     func() string { return uuid.NewString() },
	}
	if s.Clamp {
		p.rules = DefaultRules()
	}
	return p
}

// Ingest sanitises, classifies and stores in. The returned reading is what was
// persisted, with id, motor id, timestamp and status filled in.
func (p *Pipeline) Ingest(ctx context.Context, in types.Reading) (types.Reading, error) {
	r, corrected, err := Sanitize(in, p.rules)
	if err != nil {
		return types.Reading{}, err
	}
	if len(corrected) > 0 {
		slog.Debug("ingest: reading clamped", "fields", corrected)
	}

	r.ID = p.newID()
	r.Status = ""
	if r.MotorID == "" {
		r.MotorID = p.settings.MotorID
	}
	if r.Timestamp == 0 {
		r.Timestamp = types.UnixSeconds(p.now())
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	history, err := store.History(ctx, p.store, r.MotorID, p.settings.HistoryWindow)
	if err != nil {
		return types.Reading{}, fmt.Errorf("ingest: load history: %w", err)
	}

	anomalous := analytics.DetectAnomaly(history, r)
	health := analytics.ClassifyTrend(history)
	r.Status = analytics.Status(anomalous, health)

	if err := p.store.Append(ctx, r); err != nil {
		return types.Reading{}, fmt.Errorf("ingest: append: %w", err)
	}

	slog.Debug("ingest: reading stored",
		"id", r.ID,
		"motor_id", r.MotorID,
		"status", r.Status,
		"history", len(history),
	)

	for _, o := range p.observers {
		o.Observe(r)
	}
	return r, nil
}
