package pipeline

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/lysyi3m/rss-cast/app/database"
	"github.com/lysyi3m/rss-cast/app/database/dbtest"
	"github.com/lysyi3m/rss-cast/app/extractor"
	"github.com/lysyi3m/rss-cast/app/notify"
)

var epoch = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

var articleText = strings.Repeat("The city council approved a new budget for public libraries this week. ", 4)

type fakeSummarizer struct {
	mu      sync.Mutex
	calls   int
	input   string
	summary string
	err     error
}

func (f *fakeSummarizer) Summarize(ctx context.Context, text string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.input = text
	return f.summary, f.err
}

type fakeSynthesizer struct {
	calls int
	audio []byte
	err   error
}

func (f *fakeSynthesizer) Synthesize(ctx context.Context, text string) ([]byte, error) {
	f.calls++
	return f.audio, f.err
}

type memoryStore struct {
	mu        sync.Mutex
	objects   map[string][]byte
	uploadErr error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{objects: map[string][]byte{}}
}

func (m *memoryStore) Upload(ctx context.Context, objectPath string, data []byte, contentType string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.uploadErr != nil {
		return m.uploadErr
	}
	m.objects[objectPath] = data
	return nil
}

func (m *memoryStore) PublicURL(ctx context.Context, objectPath string) (string, error) {
	return "https://cdn.test/audio/" + objectPath, nil
}

type fakeFetcher struct {
	pages map[string]string
	calls int
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	f.calls++
	page, ok := f.pages[url]
	if !ok {
		return nil, fmt.Errorf("HTTP error: 404 Not Found")
	}
	return []byte(page), nil
}

type reportedEvent struct {
	level   notify.Level
	source  string
	message string
	details map[string]any
}

type recordingReporter struct {
	mu     sync.Mutex
	events []reportedEvent
}

func (r *recordingReporter) Report(ctx context.Context, level notify.Level, source, message string, details map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, reportedEvent{level, source, message, details})
}

func (r *recordingReporter) count(level notify.Level) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.level == level {
			n++
		}
	}
	return n
}

type fixture struct {
	db          *database.DB
	clock       *dbtest.Clock
	jobs        *database.JobRepo
	content     *database.ItemRepository
	audio       *database.AudioRepo
	sources     *database.SourceRepo
	fetcher     *fakeFetcher
	summarizer  *fakeSummarizer
	synthesizer *fakeSynthesizer
	store       *memoryStore
	reporter    *recordingReporter
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := dbtest.NewClock(epoch)
	db := dbtest.New(t, clock)

	return &fixture{
		db:          db,
		clock:       clock,
		jobs:        database.NewJobRepository(db),
		content:     database.NewItemRepository(db),
		audio:       database.NewAudioRepository(db),
		sources:     database.NewSourceRepository(db),
		fetcher:     &fakeFetcher{pages: map[string]string{}},
		summarizer:  &fakeSummarizer{summary: "A short spoken summary."},
		synthesizer: &fakeSynthesizer{audio: []byte("ID3-fake-mp3")},
		store:       newMemoryStore(),
		reporter:    &recordingReporter{},
	}
}

func (f *fixture) orchestrator(synth Synthesizer) *Orchestrator {
	if synth == nil {
		synth = f.synthesizer
	}
	return NewOrchestrator(Dependencies{
		Jobs:          f.jobs,
		Content:       f.content,
		Audio:         f.audio,
		Fetcher:       f.fetcher,
		Extractor:     extractor.New(),
		Summarizer:    f.summarizer,
		Synthesizer:   synth,
		Store:         f.store,
		Reporter:      f.reporter,
		UploadTimeout: time.Second,
		Now:           f.clock.Now,
	})
}

func (f *fixture) createItem(t *testing.T, item database.NewContentItem) (string, string) {
	t.Helper()
	contentID, jobID, err := f.content.CreateWithJob(context.Background(), item)
	if err != nil {
		t.Fatalf("CreateWithJob failed: %v", err)
	}
	return contentID, jobID
}

func (f *fixture) job(t *testing.T, id string) *database.Job {
	t.Helper()
	job, err := f.jobs.GetJob(context.Background(), id)
	if err != nil || job == nil {
		t.Fatalf("Expected job %s, got %v (err: %v)", id, job, err)
	}
	return job
}

func ttsServer(t *testing.T, status int) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/audio/speech" {
			t.Errorf("Expected /audio/speech, got %s", r.URL.Path)
		}
		w.WriteHeader(status)
		if status >= 300 {
			w.Write([]byte(`{"error":"upstream exploded"}`))
			return
		}
		w.Write([]byte("ID3-real-mp3"))
	}))
	t.Cleanup(server.Close)
	return server
}
