package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/lysyi3m/rss-cast/app/api"
	"github.com/lysyi3m/rss-cast/app/cache"
	"github.com/lysyi3m/rss-cast/app/cfg"
	"github.com/lysyi3m/rss-cast/app/database"
	"github.com/lysyi3m/rss-cast/app/extractor"
	"github.com/lysyi3m/rss-cast/app/feed"
	"github.com/lysyi3m/rss-cast/app/notify"
	"github.com/lysyi3m/rss-cast/app/pipeline"
	"github.com/lysyi3m/rss-cast/app/speech"
	"github.com/lysyi3m/rss-cast/app/storage"
	"github.com/lysyi3m/rss-cast/app/summarizer"
	"github.com/lysyi3m/rss-cast/app/tasks"
)

const sizeCacheTTL = 7 * 24 * time.Hour

func main() {
	appCfg, inv, err := cfg.Load(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if appCfg == nil {
		// Help was shown
		return
	}

	setupLogger(appCfg)

	if err := run(appCfg, inv); err != nil {
		slog.Error("Command failed", "command", inv.Command, "error", err)
		os.Exit(1)
	}
}

func setupLogger(c *cfg.Cfg) {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if c.Debug {
		opts.Level = slog.LevelDebug
	}

	var handler slog.Handler
	if c.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}

func run(c *cfg.Cfg, inv *cfg.Invocation) error {
	slog.Info("Starting RSS Cast", "version", c.Version, "command", inv.Command)

	db, err := database.NewConnection(c.DBDriver, c.DBDSN)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()
	slog.Info("Connected to database", "driver", c.DBDriver)

	version, dirty, err := database.RunMigrations(db)
	if err != nil {
		return err
	}
	slog.Info("Database migrations applied", "version", version, "dirty", dirty)

	if inv.Command == cfg.CommandMigrate {
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, c, db)
	if err != nil {
		return err
	}
	defer a.close()

	switch inv.Command {
	case cfg.CommandIngest:
		return a.ingestOnce(ctx)
	case cfg.CommandProcess:
		return a.processOnce(ctx)
	case cfg.CommandJobs:
		return a.listJobs(ctx, os.Stdout, inv.JobStatus, inv.JobLimit)
	case cfg.CommandRequeue:
		return a.requeue(ctx, inv.RequeueIDs, inv.RequeueStuck)
	default:
		return a.serve(ctx)
	}
}

// app holds the wired components shared by every command.
type app struct {
	cfg          *cfg.Cfg
	configCache  *feed.ConfigCache
	feedRepo     *database.PodcastFeedRepository
	sourceRepo   *database.SourceRepo
	contentRepo  *database.ItemRepository
	jobRepo      *database.JobRepo
	cache        *cache.Cache
	renderer     *feed.Renderer
	orchestrator *pipeline.Orchestrator
	ingestor     *pipeline.Ingestor
}

func newApp(ctx context.Context, c *cfg.Cfg, db *database.DB) (*app, error) {
	slog.Info("Loading source definitions", "dir", c.SourcesDir)
	configCache := feed.NewConfigCache(c.SourcesDir)
	if err := configCache.Run(); err != nil {
		return nil, fmt.Errorf("failed to load source definitions: %w", err)
	}
	slog.Info("Source definitions loaded", "count", configCache.GetConfigCount())

	a := &app{
		cfg:         c,
		configCache: configCache,
		feedRepo:    database.NewFeedRepository(db),
		sourceRepo:  database.NewSourceRepository(db),
		contentRepo: database.NewItemRepository(db),
		jobRepo:     database.NewJobRepository(db),
	}

	store, err := storage.New(storage.Config{
		Backend:     c.StorageBackend,
		Bucket:      c.StorageBucket,
		LocalDir:    c.StorageDir,
		LocalURL:    strings.TrimRight(c.BaseUrl, "/") + "/audio",
		SupabaseURL: c.SupabaseURL,
		SupabaseKey: c.SupabaseKey,
		S3Endpoint:  c.S3Endpoint,
		S3Region:    c.S3Region,
		S3AccessKey: c.S3AccessKey,
		S3SecretKey: c.S3SecretKey,
		S3PublicURL: c.S3PublicURL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize %s storage: %w", c.StorageBackend, err)
	}

	var sizes feed.SizeResolver = feed.NewHTTPSizeResolver(c.FetchTimeout, c.UserAgent)
	if c.RedisURL != "" {
		redisCache, err := cache.NewCache(ctx, c.RedisURL)
		if err != nil {
			slog.Warn("Redis unavailable, caching disabled", "error", err)
		} else {
			a.cache = redisCache
			sizes = feed.NewCachedSizeResolver(sizes, redisCache, sizeCacheTTL)
		}
	}

	if c.OpenAIKey == "" {
		slog.Warn("OPENAI_API_KEY is not set, summarization and speech requests will fail")
	}

	reporter := notify.NewReporter(c.WebhookURL, c.UserAgent, c.FetchTimeout)
	fetcher := pipeline.NewFetcher(c.FetchTimeout, c.UserAgent)

	a.renderer = feed.NewRenderer(sizes, time.Now)
	a.orchestrator = pipeline.NewOrchestrator(pipeline.Dependencies{
		Jobs:          a.jobRepo,
		Content:       a.contentRepo,
		Audio:         database.NewAudioRepository(db),
		Fetcher:       fetcher,
		Extractor:     extractor.New(),
		Summarizer:    summarizer.New(c.OpenAIKey, c.OpenAIBaseURL, c.SummaryModel, c.SummaryTimeout).WithTemperature(c.SummaryTemp),
		Synthesizer:   speech.New(&http.Client{Timeout: c.SpeechTimeout}, c.OpenAIBaseURL, c.OpenAIKey, c.SpeechModel, c.SpeechVoice),
		Store:         store,
		Reporter:      reporter,
		UploadTimeout: c.UploadTimeout,
	})
	a.ingestor = pipeline.NewIngestor(a.sourceRepo, a.contentRepo, configCache, fetcher, reporter, time.Now)

	return a, nil
}

func (a *app) close() {
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			slog.Warn("Failed to close cache", "error", err)
		}
	}
}

func (a *app) syncSources(ctx context.Context) {
	for _, sourceConfig := range a.configCache.GetConfigs() {
		if _, err := tasks.SyncSource(ctx, a.sourceRepo, sourceConfig); err != nil {
			slog.Warn("Failed to register source", "source", sourceConfig.Name, "error", err)
		}
	}
}

func (a *app) serve(ctx context.Context) error {
	c := a.cfg

	slog.Info("Starting background scheduler", "workers", c.WorkerCount, "interval", c.SchedulerInterval)
	scheduler := tasks.NewScheduler(a.configCache, a.sourceRepo, a.ingestor, a.orchestrator, tasks.Options{
		Interval:    time.Duration(c.SchedulerInterval) * time.Second,
		WorkerCount: c.WorkerCount,
		BatchSize:   c.BatchSize,
		StuckAfter:  c.StuckAfter,
		JobTimeout:  c.FetchTimeout + c.SummaryTimeout + c.SpeechTimeout + c.UploadTimeout + time.Minute,
	})
	a.ingestor.SetTrigger(a.trigger(pipeline.FuncTrigger(scheduler.TriggerProcessing)), c.TriggerAfterIngest)
	scheduler.Start()
	defer scheduler.Stop()

	deps := api.Dependencies{
		Feeds:       a.feedRepo,
		Content:     a.contentRepo,
		Jobs:        a.jobRepo,
		Sources:     a.sourceRepo,
		Renderer:    a.renderer,
		Pipeline:    a.orchestrator,
		Ingestor:    a.ingestor,
		Scheduler:   scheduler,
		ConfigCache: a.configCache,
		CacheTTL:    c.FeedCacheTTL,
		BaseURL:     c.BaseUrl,
		BatchSize:   c.BatchSize,
		StuckAfter:  c.StuckAfter,
		FeedLimit:   100,
		Generator:   "RSS Cast " + c.Version,
	}
	if a.cache != nil {
		deps.Cache = a.cache
	}

	opts := api.ServerOptions{APIAccessKey: c.APIAccessKey}
	if c.StorageBackend == storage.BackendLocal {
		opts.AudioDir = c.StorageDir
	}

	httpServer := &http.Server{
		Addr:         ":" + c.Port,
		Handler:      api.NewServer(api.NewHandler(deps), opts),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("Starting HTTP server", "port", c.Port, "base_url", c.BaseUrl, "api_enabled", c.APIAccessKey != "")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		slog.Info("Shutdown signal received")
	case runErr = <-serverErrChan:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	} else {
		slog.Info("HTTP server stopped")
	}

	return runErr
}

// trigger prefers a remote worker endpoint when one is configured.
func (a *app) trigger(local pipeline.Trigger) pipeline.Trigger {
	if a.cfg.TriggerURL != "" {
		return pipeline.NewHTTPTrigger(a.cfg.TriggerURL, a.cfg.APIAccessKey, a.cfg.FetchTimeout)
	}
	return local
}

func (a *app) ingestOnce(ctx context.Context) error {
	a.syncSources(ctx)

	// Without a scheduler the in-process trigger drains one batch synchronously.
	local := pipeline.FuncTrigger(func(ctx context.Context) error {
		_, err := a.orchestrator.RunBatch(ctx, a.cfg.BatchSize)
		return err
	})
	a.ingestor.SetTrigger(a.trigger(local), a.cfg.TriggerAfterIngest)

	stats, err := a.ingestor.Run(ctx)
	if err != nil {
		return err
	}

	slog.Info("Ingestion finished",
		"sources", stats.Sources,
		"failed", stats.Failed,
		"created", stats.Created,
		"duplicates", stats.Duplicates,
		"filtered", stats.Filtered,
		"triggered", stats.Triggered)
	return nil
}

// processOnce drains pending jobs batch by batch until none remain.
func (a *app) processOnce(ctx context.Context) error {
	var total pipeline.BatchStats
	for ctx.Err() == nil {
		stats, err := a.orchestrator.RunBatch(ctx, a.cfg.BatchSize)
		if err != nil {
			return err
		}
		total.Processed += stats.Processed
		total.Done += stats.Done
		total.Failed += stats.Failed
		if stats.Processed < a.cfg.BatchSize {
			break
		}
	}

	slog.Info("Processing finished", "processed", total.Processed, "done", total.Done, "failed", total.Failed)
	return nil
}

func (a *app) requeue(ctx context.Context, ids []string, stuck bool) error {
	if stuck {
		count, err := a.orchestrator.ReclaimStuck(ctx, a.cfg.StuckAfter)
		if err != nil {
			return err
		}
		slog.Info("Stuck jobs requeued", "count", count)
		return nil
	}

	if len(ids) == 0 {
		return errors.New("no job ids given (use --stuck to reclaim running jobs)")
	}

	failed := 0
	for _, id := range ids {
		if err := a.orchestrator.Requeue(ctx, id); err != nil {
			slog.Error("Failed to requeue job", "job_id", id, "error", err)
			failed++
			continue
		}
		slog.Info("Job requeued", "job_id", id)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d jobs could not be requeued", failed, len(ids))
	}
	return nil
}
