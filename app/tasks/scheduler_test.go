package tasks

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/lysyi3m/rss-cast/app/database"
	"github.com/lysyi3m/rss-cast/app/database/dbtest"
	"github.com/lysyi3m/rss-cast/app/feed"
	"github.com/lysyi3m/rss-cast/app/pipeline"
)

type fakeRunner struct {
	mu        sync.Mutex
	batches   []int
	reclaims  int
	batchErr  error
	processed chan struct{}
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{processed: make(chan struct{}, 100)}
}

func (f *fakeRunner) RunBatch(ctx context.Context, limit int) (pipeline.BatchStats, error) {
	f.mu.Lock()
	f.batches = append(f.batches, limit)
	f.mu.Unlock()
	f.processed <- struct{}{}
	return pipeline.BatchStats{Processed: 1, Done: 1}, f.batchErr
}

func (f *fakeRunner) ReclaimStuck(ctx context.Context, olderThan time.Duration) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reclaims++
	return 0, nil
}

type fakeIngestor struct {
	mu       sync.Mutex
	sources  []string
	err      error
	ingested chan string
}

func newFakeIngestor() *fakeIngestor {
	return &fakeIngestor{ingested: make(chan string, 100)}
}

func (f *fakeIngestor) IngestSource(ctx context.Context, source database.ContentSource) (pipeline.IngestStats, error) {
	f.mu.Lock()
	f.sources = append(f.sources, source.Name)
	f.mu.Unlock()
	f.ingested <- source.Name
	return pipeline.IngestStats{Entries: 1, Created: 1}, f.err
}

func TestRetryBackoff(t *testing.T) {
	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{0, time.Second},
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{5, 16 * time.Second},
		{6, 30 * time.Second},
		{40, 30 * time.Second},
	}

	for _, tt := range tests {
		if got := retryBackoff(tt.attempt); got != tt.expected {
			t.Errorf("retryBackoff(%d): expected %v, got %v", tt.attempt, tt.expected, got)
		}
	}
}

func TestTaskRetryBudget(t *testing.T) {
	task := newTask(TaskTypeIngestSource, "letters", 2)
	if task.ID == "" || task.Meta() != &task {
		t.Fatal("Expected task to carry an id and expose itself as meta")
	}
	if task.Elapsed() != 0 {
		t.Errorf("Expected zero elapsed time before start, got %v", task.Elapsed())
	}

	for i := 1; i <= 2; i++ {
		if !task.retry() {
			t.Fatalf("Expected retry %d to be allowed", i)
		}
		if task.Attempts != i {
			t.Errorf("Expected %d attempts, got %d", i, task.Attempts)
		}
	}
	if task.retry() {
		t.Error("Expected retry budget to be exhausted")
	}
}

func TestTaskDeadline(t *testing.T) {
	runner := newFakeRunner()
	s := NewScheduler(nil, nil, nil, runner, Options{BatchSize: 10, JobTimeout: 8 * time.Minute})
	defer s.Stop()

	if got := s.taskDeadline(NewProcessJobsTask(10, runner)); got != 80*time.Minute {
		t.Errorf("Expected 80m deadline for a batch of 10, got %v", got)
	}
	if got := s.taskDeadline(NewReclaimJobsTask(time.Minute, runner)); got != taskTimeout {
		t.Errorf("Expected default deadline for reclaim, got %v", got)
	}

	short := NewScheduler(nil, nil, nil, runner, Options{JobTimeout: time.Second})
	defer short.Stop()
	if got := short.taskDeadline(NewProcessJobsTask(1, runner)); got != taskTimeout {
		t.Errorf("Expected deadline to never drop below %v, got %v", taskTimeout, got)
	}
}

func TestProcessJobsTaskIsNotRetried(t *testing.T) {
	runner := newFakeRunner()
	runner.batchErr = errors.New("database locked")

	task := NewProcessJobsTask(0, runner)
	if task.BatchSize != 1 {
		t.Errorf("Expected batch size to be at least 1, got %d", task.BatchSize)
	}
	if task.retry() {
		t.Error("Expected job processing tasks to have no retries")
	}
	if err := task.Execute(context.Background()); err == nil {
		t.Error("Expected runner error to propagate")
	}
}

func TestIngestSourceTaskSkipsFeedlessSources(t *testing.T) {
	ingestor := newFakeIngestor()

	tests := []struct {
		name   string
		source database.ContentSource
		calls  int
	}{
		{"disabled", database.ContentSource{Name: "off", FeedURL: "https://example.com/rss"}, 0},
		{"feedless", database.ContentSource{Name: "manual", Enabled: true}, 0},
		{"active", database.ContentSource{Name: "on", Enabled: true, FeedURL: "https://example.com/rss"}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := len(ingestor.sources)
			task := NewIngestSourceTask(tt.source, ingestor)
			task.begin(time.Now())
			if err := task.Execute(context.Background()); err != nil {
				t.Fatalf("Execute failed: %v", err)
			}
			if got := len(ingestor.sources) - before; got != tt.calls {
				t.Errorf("Expected %d ingest calls, got %d", tt.calls, got)
			}
		})
	}

	if task := NewIngestSourceTask(database.ContentSource{}, ingestor); task.Retries != DefaultRetries {
		t.Errorf("Expected ingest tasks to retry %d times, got %d", DefaultRetries, task.Retries)
	}
}

func TestSyncSourceTask(t *testing.T) {
	ctx := context.Background()
	db := dbtest.New(t, nil)
	sourceRepo := database.NewSourceRepository(db)

	sourceConfig := &feed.Config{
		Name:     "platformer",
		Title:    "Platformer",
		URL:      "https://www.platformer.news/rss",
		Category: "technology",
		Settings: feed.ConfigSettings{Enabled: true, RefreshInterval: 1800},
	}

	task := NewSyncSourceTask(sourceConfig, sourceRepo)
	task.begin(time.Now())
	if err := task.Execute(ctx); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	source, err := sourceRepo.GetSource(ctx, "platformer")
	if err != nil || source == nil {
		t.Fatalf("Expected synced source, got %v (err: %v)", source, err)
	}
	if source.FeedURL != sourceConfig.URL || source.Category != "technology" || source.RefreshInterval != 1800 {
		t.Errorf("Unexpected synced source %+v", source)
	}

	sourceConfig.Settings.Enabled = false
	if _, err := SyncSource(ctx, sourceRepo, sourceConfig); err != nil {
		t.Fatalf("SyncSource failed: %v", err)
	}
	source, _ = sourceRepo.GetSource(ctx, "platformer")
	if source.Enabled {
		t.Error("Expected second sync to disable the source")
	}
}

func TestEnqueueTaskQueueFull(t *testing.T) {
	scheduler := NewScheduler(nil, nil, newFakeIngestor(), newFakeRunner(), Options{})
	defer scheduler.Stop()

	for i := 0; i < queueSize; i++ {
		if err := scheduler.EnqueueTask(NewReclaimJobsTask(time.Minute, newFakeRunner())); err != nil {
			t.Fatalf("Unexpected error at %d: %v", i, err)
		}
	}
	if err := scheduler.EnqueueTask(NewReclaimJobsTask(time.Minute, newFakeRunner())); err == nil {
		t.Error("Expected error when queue is full")
	}
}

func TestSchedulerRunsDueSourcesAndJobs(t *testing.T) {
	ctx := context.Background()
	db := dbtest.New(t, nil)
	sourceRepo := database.NewSourceRepository(db)

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for _, name := range []string{"due", "later"} {
		if _, err := sourceRepo.UpsertSource(ctx, database.ContentSource{
			Name: name, Title: name, FeedURL: "https://" + name + ".example.com/rss", Enabled: true, RefreshInterval: 3600,
		}); err != nil {
			t.Fatal(err)
		}
	}
	later, _ := sourceRepo.GetSource(ctx, "later")
	if err := sourceRepo.UpdateFetchResult(ctx, later.ID, now, now.Add(time.Hour), ""); err != nil {
		t.Fatal(err)
	}

	runner := newFakeRunner()
	ingestor := newFakeIngestor()
	scheduler := NewScheduler(nil, sourceRepo, ingestor, runner, Options{
		Interval:    20 * time.Millisecond,
		WorkerCount: 2,
		BatchSize:   5,
		Now:         func() time.Time { return now },
	})
	scheduler.Start()
	defer scheduler.Stop()

	select {
	case name := <-ingestor.ingested:
		if name != "due" {
			t.Errorf("Expected only the due source to be ingested, got %s", name)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Timed out waiting for ingestion")
	}

	select {
	case <-runner.processed:
	case <-time.After(5 * time.Second):
		t.Fatal("Timed out waiting for job processing")
	}

	runner.mu.Lock()
	if runner.batches[0] != 5 {
		t.Errorf("Expected batch size 5, got %d", runner.batches[0])
	}
	runner.mu.Unlock()

	if err := scheduler.TriggerProcessing(ctx); err != nil {
		t.Errorf("TriggerProcessing failed: %v", err)
	}
}
