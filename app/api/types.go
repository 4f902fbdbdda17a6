package api

import (
	"context"
	"time"

	"github.com/lysyi3m/rss-cast/app/cache"
	"github.com/lysyi3m/rss-cast/app/database"
	"github.com/lysyi3m/rss-cast/app/feed"
	"github.com/lysyi3m/rss-cast/app/pipeline"
	"github.com/lysyi3m/rss-cast/app/tasks"
)

type RendererInterface interface {
	Render(ctx context.Context, items []database.ContentItem, info feed.FeedInfo) (string, error)
}

type JobsInterface interface {
	RunBatch(ctx context.Context, limit int) (pipeline.BatchStats, error)
	ReclaimStuck(ctx context.Context, olderThan time.Duration) (int64, error)
	Requeue(ctx context.Context, jobID string) error
}

type IngestInterface interface {
	Run(ctx context.Context) (pipeline.IngestStats, error)
	Submit(ctx context.Context, s pipeline.Submission) (string, string, error)
}

type HealthChecker interface {
	Health(ctx context.Context) map[string]any
}

var (
	_ RendererInterface = (*feed.Renderer)(nil)
	_ JobsInterface     = (*pipeline.Orchestrator)(nil)
	_ IngestInterface   = (*pipeline.Ingestor)(nil)
	_ HealthChecker     = (*cache.Cache)(nil)
)

// Dependencies wires a Handler. Cache and Scheduler are optional.
type Dependencies struct {
	Feeds       database.FeedRepository
	Content     database.ContentRepository
	Jobs        database.JobRepository
	Sources     database.SourceRepository
	Renderer    RendererInterface
	Pipeline    JobsInterface
	Ingestor    IngestInterface
	Scheduler   tasks.TaskSchedulerInterface
	ConfigCache *feed.ConfigCache
	Cache       cache.CacheInterface
	CacheTTL    time.Duration
	BaseURL     string
	BatchSize   int
	StuckAfter  time.Duration
	FeedLimit   int
	Generator   string
}

type Handler struct {
	feeds       database.FeedRepository
	content     database.ContentRepository
	jobs        database.JobRepository
	sources     database.SourceRepository
	renderer    RendererInterface
	pipeline    JobsInterface
	ingestor    IngestInterface
	scheduler   tasks.TaskSchedulerInterface
	configCache *feed.ConfigCache
	cache       cache.CacheInterface
	cacheTTL    time.Duration
	baseURL     string
	batchSize   int
	stuckAfter  time.Duration
	feedLimit   int
	generator   string
}

type submitRequest struct {
	UserID string `json:"user_id" binding:"required"`
	URL    string `json:"url" binding:"required"`
	Title  string `json:"title"`
}
