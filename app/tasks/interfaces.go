package tasks

import (
	"context"
	"time"

	"github.com/lysyi3m/rss-cast/app/database"
	"github.com/lysyi3m/rss-cast/app/pipeline"
)

// TaskSchedulerInterface is the scheduler surface used by main and the API.
type TaskSchedulerInterface interface {
	Start()
	Stop()
	EnqueueTask(task TaskInterface) error
	TriggerProcessing(ctx context.Context) error
}

// JobRunner is the part of the orchestrator the scheduler drives.
type JobRunner interface {
	RunBatch(ctx context.Context, limit int) (pipeline.BatchStats, error)
	ReclaimStuck(ctx context.Context, olderThan time.Duration) (int64, error)
}

// SourceIngestor ingests a single content source.
type SourceIngestor interface {
	IngestSource(ctx context.Context, source database.ContentSource) (pipeline.IngestStats, error)
}

var (
	_ JobRunner      = (*pipeline.Orchestrator)(nil)
	_ SourceIngestor = (*pipeline.Ingestor)(nil)
)
