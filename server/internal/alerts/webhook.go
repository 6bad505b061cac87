package alerts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/motortwin/motortwin/server/internal/config"
)

const webhookTimeout = 10 * time.Second

// formatters build the request body for each webhook type.
var formatters = map[string]func(a *Alert) interface{}{
	"slack": slackPayload,
	"teams": teamsPayload,
	"http":  httpPayload,
}

// deliver posts a to every configured target. Failures are logged and never
// reach the ingest path.
func (e *Engine) deliver(webhooks []config.WebhookConfig, a *Alert) {
	if e.sent != nil {
		defer e.sent(a)
	}
	for _, wh := range webhooks {
		url := wh.URL()
		if url == "" {
			continue
		}
		format, ok := formatters[wh.Type]
		if !ok {
			slog.Warn("alerts: unknown webhook type, skipping", "type", wh.Type)
			continue
		}

		body, err := json.Marshal(format(a))
		if err == nil {
			err = e.post(url, body)
		}
		if err != nil {
			slog.Error("alerts: webhook delivery failed",
				"type", wh.Type, "rule", a.RuleName, "motor_id", a.MotorID, "err", err)
			continue
		}
		slog.Debug("alerts: webhook delivered",
			"type", wh.Type, "rule", a.RuleName, "state", a.State)
	}
}

func (e *Engine) post(url string, body []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), webhookTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("http post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned HTTP %d", resp.StatusCode)
	}
	return nil
}

// headline is the one-line summary shared by the chat formats.
func headline(a *Alert) string {
	if a.State == StateResolved {
		return fmt.Sprintf("[RESOLVED] %s on motor %s", a.RuleName, a.MotorID)
	}
	return fmt.Sprintf("%s %s on motor %s", severityLabel(a.Severity), a.RuleName, a.MotorID)
}

func slackPayload(a *Alert) interface{} {
	return map[string]interface{}{
		"text": headline(a),
		"attachments": []map[string]interface{}{{
			"color": "#" + stateColor(a),
			"text":  a.Message,
			"fields": []map[string]interface{}{
				{"title": "Motor", "value": a.MotorID, "short": true},
				{"title": "Value", "value": fmt.Sprintf("%.2f", a.Value), "short": true},
				{"title": "Severity", "value": strings.ToUpper(a.Severity), "short": true},
				{"title": "State", "value": a.State, "short": true},
			},
			"ts": a.FiredAt.Unix(),
		}},
	}
}

func teamsPayload(a *Alert) interface{} {
	facts := []map[string]string{
		{"name": "Motor", "value": a.MotorID},
		{"name": "Rule", "value": a.RuleName},
		{"name": "Value", "value": fmt.Sprintf("%.2f", a.Value)},
		{"name": "Fired", "value": a.FiredAt.UTC().Format(time.RFC3339)},
	}
	if a.ResolvedAt != nil {
		facts = append(facts, map[string]string{"name": "Resolved", "value": a.ResolvedAt.UTC().Format(time.RFC3339)})
	}
	return map[string]interface{}{
		"@type":      "MessageCard",
		"@context":   "http://schema.org/extensions",
		"themeColor": stateColor(a),
		"summary":    headline(a),
		"title":      fmt.Sprintf("Motor %s alert: %s", a.MotorID, a.RuleName),
		"sections": []map[string]interface{}{{
			"text":  a.Message,
			"facts": facts,
		}},
	}
}

// httpPayload is the generic JSON envelope: {"event": "alert.firing", "alert": {...}}.
func httpPayload(a *Alert) interface{} {
	return map[string]interface{}{
		"event": "alert." + a.State,
		"alert": a,
	}
}

func severityLabel(s string) string {
	switch s {
	case "critical":
		return "[CRITICAL]"
	case "warning":
		return "[WARNING]"
	default:
		return "[INFO]"
	}
}

func stateColor(a *Alert) string {
	if a.State == StateResolved {
		return "2EB67D"
	}
	switch a.Severity {
	case "critical":
		return "FF4F6A"
	case "warning":
		return "FFAB40"
	default:
		return "00D4FF"
	}
}
