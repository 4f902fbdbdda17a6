package speech

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSynthesize(t *testing.T) {
	var got speechRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/audio/speech" {
			t.Errorf("Unexpected request %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer key" {
			t.Errorf("Expected bearer auth, got %q", r.Header.Get("Authorization"))
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("Failed to decode request: %v", err)
		}
		w.Header().Set("Content-Type", "audio/mpeg")
		w.Write([]byte("ID3fakeaudio"))
	}))
	defer server.Close()

	s := New(server.Client(), server.URL+"/v1/", "key", "tts-1", "alloy")
	audio, err := s.Synthesize(context.Background(), "Hello listener")
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}

	if string(audio) != "ID3fakeaudio" {
		t.Errorf("Unexpected audio bytes %q", audio)
	}
	if got.Model != "tts-1" || got.Voice != "alloy" || got.Input != "Hello listener" || got.ResponseFormat != "mp3" {
		t.Errorf("Unexpected request body %+v", got)
	}
}

func TestSynthesizeStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"voice model overloaded"}`))
	}))
	defer server.Close()

	s := New(server.Client(), server.URL, "key", "tts-1", "alloy")
	_, err := s.Synthesize(context.Background(), "Hello")

	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("Expected StatusError, got %v", err)
	}
	if statusErr.StatusCode != http.StatusInternalServerError {
		t.Errorf("Expected status 500, got %d", statusErr.StatusCode)
	}
	if statusErr.Body != `{"error":"voice model overloaded"}` {
		t.Errorf("Expected response body to be captured, got %q", statusErr.Body)
	}
}

func TestSynthesizeRejectsEmptyInput(t *testing.T) {
	s := New(nil, "http://127.0.0.1:0", "key", "tts-1", "alloy")
	if _, err := s.Synthesize(context.Background(), "  "); err == nil {
		t.Error("Expected error for empty input")
	}
}
