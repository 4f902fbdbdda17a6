package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lysyi3m/rss-cast/app/database"
	"github.com/lysyi3m/rss-cast/app/feed"
)

var _ TaskSchedulerInterface = (*Scheduler)(nil)

const (
	queueSize   = 300
	taskTimeout = 5 * time.Minute
	maxBackoff  = 30 * time.Second
)

// Options tunes a Scheduler. Zero values fall back to sensible defaults.
type Options struct {
	Interval    time.Duration
	WorkerCount int
	BatchSize   int
	StuckAfter  time.Duration
	JobTimeout  time.Duration // Worst-case duration of a single job
	Now         func() time.Time
}

type Scheduler struct {
	configCache *feed.ConfigCache
	sourceRepo  database.SourceRepository
	ingestor    SourceIngestor
	runner      JobRunner
	interval    time.Duration
	workerCount int
	batchSize   int
	stuckAfter  time.Duration
	jobTimeout  time.Duration
	now         func() time.Time
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	taskQueue   chan TaskInterface
}

func NewScheduler(configCache *feed.ConfigCache, sourceRepo database.SourceRepository,
	ingestor SourceIngestor, runner JobRunner, opts Options) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())

	if opts.Interval <= 0 {
		opts.Interval = time.Minute
	}
	if opts.StuckAfter <= 0 {
		opts.StuckAfter = 15 * time.Minute
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Scheduler{
		configCache: configCache,
		sourceRepo:  sourceRepo,
		ingestor:    ingestor,
		runner:      runner,
		interval:    opts.Interval,
		workerCount: max(opts.WorkerCount, 1),
		batchSize:   max(opts.BatchSize, 1),
		stuckAfter:  opts.StuckAfter,
		jobTimeout:  opts.JobTimeout,
		now:         opts.Now,
		ctx:         ctx,
		cancel:      cancel,
		taskQueue:   make(chan TaskInterface, queueSize),
	}
}

func (s *Scheduler) Start() {
	for i := 0; i < s.workerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.enqueueStartupTasks()

		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				s.enqueueTasks()
			}
		}
	}()
}

// Stop cancels running tasks and waits for the workers. The queue stays open
// so that pending retry timers never send on a closed channel.
func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
}

func (s *Scheduler) EnqueueTask(task TaskInterface) error {
	select {
	case s.taskQueue <- task:
		return nil
	case <-s.ctx.Done():
		return s.ctx.Err()
	default:
		return fmt.Errorf("task queue is full")
	}
}

// TriggerProcessing enqueues a job batch. It backs the in-process ingest trigger.
func (s *Scheduler) TriggerProcessing(ctx context.Context) error {
	return s.EnqueueTask(NewProcessJobsTask(s.batchSize, s.runner))
}

func (s *Scheduler) enqueueStartupTasks() {
	if s.configCache != nil {
		sourceConfigs := s.configCache.GetConfigs()
		slog.Debug("Syncing source configurations", "count", len(sourceConfigs))

		for _, sourceConfig := range sourceConfigs {
			if err := s.EnqueueTask(NewSyncSourceTask(sourceConfig, s.sourceRepo)); err != nil {
				slog.Warn("Failed to enqueue SyncSourceTask", "source", sourceConfig.Name, "error", err)
			}
		}
	}

	s.enqueueJobTasks()
}

func (s *Scheduler) enqueueTasks() {
	s.enqueueIngestTasks()
	s.enqueueJobTasks()
}

func (s *Scheduler) enqueueIngestTasks() {
	sources, err := s.sourceRepo.GetEnabledSources(s.ctx)
	if err != nil {
		slog.Warn("Failed to load sources, skipping ingestion", "error", err)
		return
	}

	now := s.now().UTC()
	for _, source := range sources {
		if source.FeedURL == "" {
			continue
		}
		if source.NextFetchAt != nil && source.NextFetchAt.After(now) {
			slog.Debug("Source not due for refresh yet", "source", source.Name, "next_fetch_at", source.NextFetchAt)
			continue
		}

		if err := s.EnqueueTask(NewIngestSourceTask(source, s.ingestor)); err != nil {
			slog.Warn("Failed to enqueue IngestSourceTask", "source", source.Name, "error", err)
		}
	}
}

func (s *Scheduler) enqueueJobTasks() {
	if err := s.EnqueueTask(NewReclaimJobsTask(s.stuckAfter, s.runner)); err != nil {
		slog.Warn("Failed to enqueue ReclaimJobsTask", "error", err)
	}
	if err := s.EnqueueTask(NewProcessJobsTask(s.batchSize, s.runner)); err != nil {
		slog.Warn("Failed to enqueue ProcessJobsTask", "error", err)
	}
}

func (s *Scheduler) worker(id int) {
	defer s.wg.Done()

	for {
		select {
		case task := <-s.taskQueue:
			s.executeTask(id, task)

		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Scheduler) executeTask(workerID int, task TaskInterface) {
	meta := task.Meta()
	meta.begin(time.Now())

	taskCtx, cancel := context.WithTimeout(s.ctx, s.taskDeadline(task))
	defer cancel()

	err := task.Execute(taskCtx)
	if err == nil {
		return
	}

	attrs := meta.logAttrs()
	slog.Error("Worker task execution failed", append(attrs, "worker_id", workerID, "attempts", meta.Attempts, "error", err)...)

	if !meta.retry() {
		if meta.Retries > 0 {
			slog.Error("Task failed after maximum retries", append(attrs, "retries", meta.Retries, "last_error", err)...)
		}
		return
	}

	retryDelay := retryBackoff(meta.Attempts)
	slog.Warn("Task retry scheduled", append(attrs, "attempt", meta.Attempts, "retries", meta.Retries, "delay", retryDelay.String())...)

	go func() {
		timer := time.NewTimer(retryDelay)
		defer timer.Stop()

		select {
		case <-s.ctx.Done():
			slog.Debug("Scheduler stopped, skipping task retry", attrs...)
		case <-timer.C:
			if retryErr := s.EnqueueTask(task); retryErr != nil {
				slog.Error("Failed to re-enqueue task for retry", append(attrs, "error", retryErr)...)
			}
		}
	}()
}

// taskDeadline gives a job batch room for every job to hit its worst case.
func (s *Scheduler) taskDeadline(task TaskInterface) time.Duration {
	if p, ok := task.(*ProcessJobsTask); ok && s.jobTimeout > 0 {
		return max(taskTimeout, s.jobTimeout*time.Duration(p.BatchSize))
	}
	return taskTimeout
}

// retryBackoff doubles from one second and caps at maxBackoff.
func retryBackoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 6 {
		return maxBackoff
	}
	return min(time.Duration(1<<uint(attempt-1))*time.Second, maxBackoff)
}
