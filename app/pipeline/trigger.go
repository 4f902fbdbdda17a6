package pipeline

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Trigger asks the orchestrator to drain pending jobs.
type Trigger interface {
	Fire(ctx context.Context) error
}

// FuncTrigger runs an in-process callback, usually one that enqueues a scheduler task.
type FuncTrigger func(ctx context.Context) error

func (f FuncTrigger) Fire(ctx context.Context) error {
	return f(ctx)
}

// HTTPTrigger POSTs to a worker endpoint such as /api/jobs/run.
type HTTPTrigger struct {
	url    string
	apiKey string
	client *http.Client
}

func NewHTTPTrigger(url, apiKey string, timeout time.Duration) *HTTPTrigger {
	return &HTTPTrigger{
		url:    url,
		apiKey: apiKey,
		client: &http.Client{Timeout: timeout},
	}
}

func (t *HTTPTrigger) Fire(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, nil)
	if err != nil {
		return fmt.Errorf("failed to create trigger request: %w", err)
	}
	if t.apiKey != "" {
		req.Header.Set("X-API-Key", t.apiKey)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call trigger: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("trigger returned HTTP %d", resp.StatusCode)
	}
	return nil
}

var (
	_ Trigger = FuncTrigger(nil)
	_ Trigger = (*HTTPTrigger)(nil)
)
