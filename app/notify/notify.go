package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

type Level string

const (
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Reporter is the structured alerting side channel for pipeline events.
// Implementations must not fail the caller: delivery problems are logged and dropped.
type Reporter interface {
	Report(ctx context.Context, level Level, source, message string, details map[string]any)
}

// NewReporter always logs and additionally posts to webhookURL when set.
func NewReporter(webhookURL, userAgent string, timeout time.Duration) Reporter {
	log := LogReporter{}
	webhookURL = strings.TrimSpace(webhookURL)
	if webhookURL == "" {
		return log
	}
	return Multi{log, NewWebhookReporter(webhookURL, userAgent, &http.Client{Timeout: timeout})}
}

// LogReporter writes events to the default slog logger.
type LogReporter struct{}

func (LogReporter) Report(ctx context.Context, level Level, source, message string, details map[string]any) {
	args := make([]any, 0, 2+2*len(details))
	args = append(args, "source", source)
	for k, v := range details {
		args = append(args, k, v)
	}

	switch level {
	case LevelError:
		slog.ErrorContext(ctx, message, args...)
	case LevelWarn:
		slog.WarnContext(ctx, message, args...)
	default:
		slog.InfoContext(ctx, message, args...)
	}
}

// Multi fans an event out to several reporters.
type Multi []Reporter

func (m Multi) Report(ctx context.Context, level Level, source, message string, details map[string]any) {
	for _, r := range m {
		r.Report(ctx, level, source, message, details)
	}
}

type Nop struct{}

func (Nop) Report(context.Context, Level, string, string, map[string]any) {}

// WebhookReporter posts events as JSON.
type WebhookReporter struct {
	endpoint  string
	userAgent string
	client    *http.Client
	now       func() time.Time
}

func NewWebhookReporter(endpoint, userAgent string, client *http.Client) *WebhookReporter {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &WebhookReporter{
		endpoint:  endpoint,
		userAgent: userAgent,
		client:    client,
		now:       time.Now,
	}
}

type webhookPayload struct {
	Level     Level          `json:"level"`
	Source    string         `json:"source"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

func (w *WebhookReporter) Report(ctx context.Context, level Level, source, message string, details map[string]any) {
	if err := w.send(ctx, webhookPayload{
		Level:     level,
		Source:    source,
		Message:   message,
		Details:   details,
		Timestamp: w.now().UTC(),
	}); err != nil {
		slog.Warn("Failed to deliver notification", "source", source, "error", err)
	}
}

func (w *WebhookReporter) send(ctx context.Context, data webhookPayload) error {
	body, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if w.userAgent != "" {
		req.Header.Set("User-Agent", w.userAgent)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("send webhook notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("webhook returned %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
