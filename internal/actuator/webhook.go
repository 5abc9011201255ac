package actuator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/fusionwatch/fusionwatch/internal/config"
	"github.com/fusionwatch/fusionwatch/internal/fusion"
)

// Transition is one alert line changing state.
type Transition struct {
	Line     int    `json:"line"`
	Name     string `json:"name"`
	Severity string `json:"severity"` // "critical" | "warning"
	State    string `json:"state"`    // "firing" | "resolved"
}

// Webhook notifies the configured targets when lines change state. The
// first vector is compared against all lines off.
type Webhook struct {
	targets []config.WebhookConfig
	client  *http.Client

	mu   sync.Mutex
	prev fusion.AlertVector
}

// NewWebhook returns a Webhook actuator for targets.
func NewWebhook(targets []config.WebhookConfig) *Webhook {
	return &Webhook{
		targets: targets,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// Apply sends one notification per changed line to every target.
func (w *Webhook) Apply(ctx context.Context, lines fusion.AlertVector) error {
	w.mu.Lock()
	changes := transitions(w.prev, lines)
	w.prev = lines
	w.mu.Unlock()

	var errs []error
	for _, tr := range changes {
		if err := w.deliver(ctx, tr); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func transitions(prev, cur fusion.AlertVector) []Transition {
	var out []Transition
	for i := range cur {
		if prev[i] == cur[i] {
			continue
		}
		state := "resolved"
		if cur[i] {
			state = "firing"
		}
		out = append(out, Transition{
			Line:     i,
			Name:     fusion.AlertName(i),
			Severity: severity(i),
			State:    state,
		})
	}
	return out
}

// severity ranks hard limits and sticky series failures as critical.
func severity(line int) string {
	switch {
	case line == fusion.AlertTempHighHard, line == fusion.AlertTempLowHard,
		line == fusion.AlertHumHighHard, line == fusion.AlertHumLowHard,
		line >= fusion.AlertSeriesStuckDown:
		return "critical"
	default:
		return "warning"
	}
}

// deliver sends tr to all configured targets.
func (w *Webhook) deliver(ctx context.Context, tr Transition) error {
	var errs []error
	for _, wh := range w.targets {
		url := wh.URL()
		if url == "" {
			continue
		}

		var err error
		switch wh.Type {
		case "slack":
			err = w.sendSlack(ctx, url, tr)
		case "teams":
			err = w.sendTeams(ctx, url, tr)
		case "http":
			err = w.sendHTTP(ctx, url, tr)
		default:
			slog.Warn("actuator: unknown webhook type, skipping", "type", wh.Type)
			continue
		}

		if err != nil {
			slog.Error("actuator: webhook delivery failed",
				"type", wh.Type,
				"line", tr.Name,
				"err", err,
			)
			errs = append(errs, err)
		} else {
			slog.Debug("actuator: webhook delivered",
				"type", wh.Type,
				"line", tr.Name,
				"state", tr.State,
			)
		}
	}
	return errors.Join(errs...)
}

func message(tr Transition) string {
	if tr.State == "firing" {
		return fmt.Sprintf("%s raised", tr.Name)
	}
	return fmt.Sprintf("%s cleared", tr.Name)
}

func (w *Webhook) sendSlack(ctx context.Context, url string, tr Transition) error {
	body, _ := json.Marshal(map[string]string{
		"text": fmt.Sprintf("*%s* %s", severityLabel(tr), message(tr)),
	})
	return w.post(ctx, url, body)
}

func (w *Webhook) sendTeams(ctx context.Context, url string, tr Transition) error {
	payload := map[string]interface{}{
		"@type":      "MessageCard",
		"@context":   "http://schema.org/extensions",
		"themeColor": severityColor(tr),
		"summary":    tr.Name,
		"title":      fmt.Sprintf("FusionWatch: %s", tr.Name),
		"text":       message(tr),
	}
	body, _ := json.Marshal(payload)
	return w.post(ctx, url, body)
}

func (w *Webhook) sendHTTP(ctx context.Context, url string, tr Transition) error {
	body, _ := json.Marshal(map[string]interface{}{"transition": tr})
	return w.post(ctx, url, body)
}

func (w *Webhook) post(ctx context.Context, url string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("http post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned HTTP %d", resp.StatusCode)
	}
	return nil
}

func severityLabel(tr Transition) string {
	switch {
	case tr.State == "resolved":
		return "[RESOLVED]"
	case tr.Severity == "critical":
		return "[CRITICAL]"
	default:
		return "[WARNING]"
	}
}

func severityColor(tr Transition) string {
	switch {
	case tr.State == "resolved":
		return "2EB67D"
	case tr.Severity == "critical":
		return "FF4F6A"
	default:
		return "FFAB40"
	}
}
