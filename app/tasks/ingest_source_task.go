package tasks

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lysyi3m/rss-cast/app/database"
)

type IngestSourceTask struct {
	Task
	Source   database.ContentSource
	ingestor SourceIngestor
}

func NewIngestSourceTask(source database.ContentSource, ingestor SourceIngestor) *IngestSourceTask {
	return &IngestSourceTask{
		Task:     newTask(TaskTypeIngestSource, source.Name, DefaultRetries),
		Source:   source,
		ingestor: ingestor,
	}
}

func (t *IngestSourceTask) Execute(ctx context.Context) error {

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if !t.Source.Enabled || t.Source.FeedURL == "" {
		slog.Debug("Source has nothing to ingest, skipping", "source", t.Target)
		return nil
	}

	stats, err := t.ingestor.IngestSource(ctx, t.Source)
	if err != nil {
		return fmt.Errorf("failed to ingest source: %w", err)
	}

	slog.Info("Task completed",
		"type", "IngestSource",
		"source", t.Target,
		"duration", t.Elapsed(),
		"entries", stats.Entries,
		"created", stats.Created,
		"duplicates", stats.Duplicates,
		"filtered", stats.Filtered)

	return nil
}
