package alerts

import (
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/motortwin/motortwin/pkg/types"
	"github.com/motortwin/motortwin/server/internal/config"
)

const (
	defaultCooldown = 15 * time.Minute
	defaultSeverity = "warning"
	keySep          = "\x00"

	// resolvedRetention is how long a resolved alert stays visible in Active.
	resolvedRetention = time.Hour
	maxResolved       = 200
)

// Alert states.
const (
	StateFiring   = "firing"
	StateResolved = "resolved"
)

// Alert is one firing or resolved rule match for a motor.
type Alert struct {
	ID         string     `json:"id"`
	RuleName   string     `json:"rule_name"`
	MotorID    string     `json:"motor_id"`
	ReadingID  string     `json:"reading_id"`
	Severity   string     `json:"severity"`
	Message    string     `json:"message"`
	Value      float64    `json:"value"`
	FiredAt    time.Time  `json:"fired_at"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
	State      string     `json:"state"`
}

// track is the per (rule, motor) state.
type track struct {
	firing    *Alert
	lastFired time.Time
}

// Engine evaluates alert rules against every ingested reading and notifies
// webhooks on fire and on resolve. It is safe for concurrent use.
type Engine struct {
	mu       sync.Mutex
	rules    []config.AlertRule
	webhooks []config.WebhookConfig
	tracks   map[string]*track
	resolved []*Alert

	client *http.Client
	now    func() time.Time
	// sent, when set, runs after each alert's webhooks have been attempted.
	sent func(*Alert)
}

// New builds an Engine. With no rules Observe does nothing.
func New(cfg config.AlertsConfig) *Engine {
	return &Engine{
		rules:    cfg.Rules,
		webhooks: cfg.Webhooks,
		tracks:   make(map[string]*track),
		client:   &http.Client{Timeout: webhookTimeout},
		now:      time.Now,
	}
}

// SetRules swaps in reloaded rules and webhooks. Alerts for rules that no
// longer exist are forgotten without a resolve notification.
func (e *Engine) SetRules(cfg config.AlertsConfig) {
	keep := make(map[string]bool, len(cfg.Rules))
	for _, r := range cfg.Rules {
		keep[r.Name] = true
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.rules = cfg.Rules
	e.webhooks = cfg.Webhooks
	for key := range e.tracks {
		if rule, _, _ := strings.Cut(key, keySep); !keep[rule] {
			delete(e.tracks, key)
		}
	}
}

// Observe runs every rule against r. State changes are applied under the
// lock; logging and webhook delivery happen after it is released.
func (e *Engine) Observe(r types.Reading) {
	now := e.now()

	e.mu.Lock()
	var changed []Alert
	for _, rule := range e.rules {
		hit, value := evalCondition(rule.Condition, r)
		if a := e.transition(rule, r, hit, value, now); a != nil {
			changed = append(changed, *a)
		}
	}
	webhooks := e.webhooks
	e.mu.Unlock()

	for i := range changed {
		a := &changed[i]
		if a.State == StateFiring {
			slog.Warn("alert fired", "rule", a.RuleName, "motor_id", a.MotorID,
				"value", a.Value, "severity", a.Severity)
		} else {
			slog.Info("alert resolved", "rule", a.RuleName, "motor_id", a.MotorID)
		}
		go e.deliver(webhooks, a)
	}
}

// transition updates the track for rule on r.MotorID and returns the alert
// that fired or resolved, or nil when nothing changed. Caller holds e.mu.
func (e *Engine) transition(rule config.AlertRule, r types.Reading, hit bool, value float64, now time.Time) *Alert {
	key := rule.Name + keySep + r.MotorID
	tr := e.tracks[key]

	if !hit {
		if tr == nil || tr.firing == nil {
			return nil
		}
		a := tr.firing
		tr.firing = nil
		at := now
		a.State, a.ResolvedAt = StateResolved, &at
		e.resolved = append(e.resolved, a)
		if over := len(e.resolved) - maxResolved; over > 0 {
			e.resolved = e.resolved[over:]
		}
		return a
	}

	cooldown := rule.Cooldown
	if cooldown <= 0 {
		cooldown = defaultCooldown
	}
	if tr == nil {
		tr = &track{}
		e.tracks[key] = tr
	} else if now.Sub(tr.lastFired) <= cooldown {
		return nil
	}

	sev := rule.Severity
	if sev == "" {
		sev = defaultSeverity
	}
	a := &Alert{
		ID:        uuid.NewString(),
		RuleName:  rule.Name,
		MotorID:   r.MotorID,
		ReadingID: r.ID,
		Severity:  sev,
		Value:     value,
		Message: fmt.Sprintf("%s on %s: %s (value %.2f, status %s)",
			rule.Name, r.MotorID, rule.Condition, value, r.Status),
		FiredAt: now,
		State:   StateFiring,
	}
	tr.firing, tr.lastFired = a, now
	return a
}

// Active lists firing alerts and those resolved within the last hour,
// newest first. The returned values are copies.
func (e *Engine) Active() []*Alert {
	e.mu.Lock()
	defer e.mu.Unlock()

	cutoff := e.now().Add(-resolvedRetention)
	out := make([]*Alert, 0, len(e.tracks))
	for _, tr := range e.tracks {
		if tr.firing != nil {
			cp := *tr.firing
			out = append(out, &cp)
		}
	}
	for _, a := range e.resolved {
		if a.ResolvedAt.After(cutoff) {
			cp := *a
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FiredAt.After(out[j].FiredAt) })
	return out
}
