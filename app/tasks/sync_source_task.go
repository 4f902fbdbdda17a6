package tasks

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lysyi3m/rss-cast/app/database"
	"github.com/lysyi3m/rss-cast/app/feed"
)

// SyncSourceTask writes a YAML source definition into content_sources.
type SyncSourceTask struct {
	Task
	SourceConfig *feed.Config
	sourceRepo   database.SourceRepository
}

func NewSyncSourceTask(sourceConfig *feed.Config, sourceRepo database.SourceRepository) *SyncSourceTask {
	return &SyncSourceTask{
		Task:         newTask(TaskTypeSyncSource, sourceConfig.Name, DefaultRetries),
		SourceConfig: sourceConfig,
		sourceRepo:   sourceRepo,
	}
}

func (t *SyncSourceTask) Execute(ctx context.Context) error {

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	_, err := SyncSource(ctx, t.sourceRepo, t.SourceConfig)
	if err != nil {
		slog.Error("Task failed", "type", "SyncSource", "source", t.Target, "error", err)
		return err
	}

	slog.Info("Task completed",
		"type", "SyncSource",
		"source", t.Target,
		"duration", t.Elapsed())

	return nil
}

// SyncSource upserts one source definition and returns its row id.
func SyncSource(ctx context.Context, sourceRepo database.SourceRepository, sourceConfig *feed.Config) (string, error) {
	id, err := sourceRepo.UpsertSource(ctx, database.ContentSource{
		Name:            sourceConfig.Name,
		Title:           sourceConfig.Title,
		FeedURL:         sourceConfig.URL,
		Category:        sourceConfig.Category,
		Enabled:         sourceConfig.Settings.Enabled,
		RefreshInterval: sourceConfig.Settings.RefreshInterval,
	})
	if err != nil {
		return "", fmt.Errorf("failed to sync source config to database: %w", err)
	}
	return id, nil
}
