package summarizer

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

type chatRequest struct {
	Model       string   `json:"model"`
	Temperature *float64 `json:"temperature"`
	Messages    []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

func newChatServer(t *testing.T, status int, content string, captured *chatRequest, calls *int32) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(calls, 1)

		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("Expected bearer auth, got %q", r.Header.Get("Authorization"))
		}

		body, _ := io.ReadAll(r.Body)
		if captured != nil {
			if err := json.Unmarshal(body, captured); err != nil {
				t.Errorf("Failed to decode request: %v", err)
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status != http.StatusOK {
			w.Write([]byte(`{"error":{"message":"upstream unavailable","type":"server_error"}}`))
			return
		}

		resp := map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": 1700000000,
			"model":   "gpt-4o-mini",
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": content},
			}},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(server.Close)

	return server
}

func TestSummarize(t *testing.T) {
	var req chatRequest
	var calls int32
	server := newChatServer(t, http.StatusOK, "  You need to hear about this.  ", &req, &calls)

	s := New("test-key", server.URL+"/v1", "gpt-4o-mini", 5*time.Second)
	summary, err := s.Summarize(context.Background(), "An article about reservoirs.")
	if err != nil {
		t.Fatalf("Summarize failed: %v", err)
	}

	if summary != "You need to hear about this." {
		t.Errorf("Expected trimmed summary, got %q", summary)
	}
	if req.Model != "gpt-4o-mini" {
		t.Errorf("Expected model gpt-4o-mini, got %s", req.Model)
	}
	if len(req.Messages) != 2 {
		t.Fatalf("Expected system and user messages, got %d", len(req.Messages))
	}
	if req.Messages[0].Role != "system" || !strings.Contains(req.Messages[0].Content, "second person") {
		t.Errorf("Expected persona system prompt, got %+v", req.Messages[0])
	}
	if req.Messages[1].Role != "user" || req.Messages[1].Content != "An article about reservoirs." {
		t.Errorf("Expected article as user message, got %+v", req.Messages[1])
	}
}

func TestSummarizeTemperature(t *testing.T) {
	var req chatRequest
	var calls int32
	server := newChatServer(t, http.StatusOK, "Done.", &req, &calls)

	s := New("test-key", server.URL+"/v1", "gpt-4o-mini", 5*time.Second).WithTemperature(0.2).WithTemperature(-1)
	if _, err := s.Summarize(context.Background(), "An article."); err != nil {
		t.Fatalf("Summarize failed: %v", err)
	}

	if req.Temperature == nil || *req.Temperature != 0.2 {
		t.Errorf("Expected temperature 0.2, got %v", req.Temperature)
	}
}

func TestSummarizeTruncatesInput(t *testing.T) {
	var req chatRequest
	var calls int32
	server := newChatServer(t, http.StatusOK, "Short.", &req, &calls)

	long := strings.Repeat("é", MaxInputChars+500)
	s := New("test-key", server.URL, "gpt-4o-mini", 5*time.Second)
	if _, err := s.Summarize(context.Background(), long); err != nil {
		t.Fatalf("Summarize failed: %v", err)
	}

	if got := len([]rune(req.Messages[1].Content)); got != MaxInputChars {
		t.Errorf("Expected input truncated to %d runes, got %d", MaxInputChars, got)
	}
}

func TestSummarizeErrorsDoNotRetry(t *testing.T) {
	var calls int32
	server := newChatServer(t, http.StatusServiceUnavailable, "", nil, &calls)

	s := New("test-key", server.URL, "gpt-4o-mini", 5*time.Second)
	_, err := s.Summarize(context.Background(), "Some text")
	if err == nil {
		t.Fatal("Expected error for 503 response")
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Errorf("Expected exactly one request, got %d", n)
	}
}

func TestSummarizeEmptyCompletion(t *testing.T) {
	var calls int32
	server := newChatServer(t, http.StatusOK, "   ", nil, &calls)

	s := New("test-key", server.URL, "gpt-4o-mini", 5*time.Second)
	_, err := s.Summarize(context.Background(), "Some text")
	if !errors.Is(err, ErrEmptyCompletion) {
		t.Errorf("Expected ErrEmptyCompletion, got %v", err)
	}
}

func TestSummarizeEmptyInput(t *testing.T) {
	var calls int32
	server := newChatServer(t, http.StatusOK, "unused", nil, &calls)

	s := New("test-key", server.URL, "gpt-4o-mini", 5*time.Second)
	if _, err := s.Summarize(context.Background(), "   "); err == nil {
		t.Error("Expected error for blank input")
	}
	if calls != 0 {
		t.Errorf("Expected no API call for blank input, got %d", calls)
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		input    string
		max      int
		expected string
	}{
		{"hello", 10, "hello"},
		{"hello", 5, "hello"},
		{"hello", 3, "hel"},
		{"héllo", 2, "hé"},
		{"hello", 0, ""},
		{"", 5, ""},
	}

	for _, tt := range tests {
		if got := Truncate(tt.input, tt.max); got != tt.expected {
			t.Errorf("Truncate(%q, %d): expected %q, got %q", tt.input, tt.max, tt.expected, got)
		}
	}
}
