package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type recordingReporter struct {
	events []string
}

func (r *recordingReporter) Report(_ context.Context, level Level, source, message string, _ map[string]any) {
	r.events = append(r.events, string(level)+":"+source+":"+message)
}

func TestWebhookReporter(t *testing.T) {
	var got webhookPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("Expected POST, got %s", r.Method)
		}
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("Expected JSON content type, got %q", r.Header.Get("Content-Type"))
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("Failed to decode payload: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	reporter := NewWebhookReporter(server.URL, "RSS Cast/test", server.Client())
	reporter.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }

	reporter.Report(context.Background(), LevelWarn, "ingestor", "Source fetch failed", map[string]any{"source": "tech"})

	if got.Level != LevelWarn || got.Source != "ingestor" || got.Message != "Source fetch failed" {
		t.Errorf("Unexpected payload %+v", got)
	}
	if got.Details["source"] != "tech" {
		t.Errorf("Expected details to be forwarded, got %v", got.Details)
	}
	if !got.Timestamp.Equal(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)) {
		t.Errorf("Unexpected timestamp %v", got.Timestamp)
	}
}

func TestWebhookReporterSwallowsFailures(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	server.Close()

	// Must return without panicking even though the endpoint is gone.
	NewWebhookReporter(server.URL, "", nil).Report(context.Background(), LevelError, "orchestrator", "boom", nil)
}

func TestMulti(t *testing.T) {
	a, b := &recordingReporter{}, &recordingReporter{}
	Multi{a, b}.Report(context.Background(), LevelError, "orchestrator", "Job failed", nil)

	if len(a.events) != 1 || len(b.events) != 1 {
		t.Fatalf("Expected both reporters to receive the event, got %d and %d", len(a.events), len(b.events))
	}
	if a.events[0] != "error:orchestrator:Job failed" {
		t.Errorf("Unexpected event %q", a.events[0])
	}
}

func TestNewReporter(t *testing.T) {
	if _, ok := NewReporter("", "", time.Second).(LogReporter); !ok {
		t.Error("Expected log-only reporter without webhook")
	}
	if _, ok := NewReporter("https://hooks.example.com/x", "", time.Second).(Multi); !ok {
		t.Error("Expected multi reporter with webhook")
	}
}
