package tasks

import (
	"context"
	"fmt"
	"log/slog"
)

// ProcessJobsTask drains up to BatchSize pending jobs. Failed jobs are terminal,
// so the task itself is never retried.
type ProcessJobsTask struct {
	Task
	BatchSize int
	runner    JobRunner
}

func NewProcessJobsTask(batchSize int, runner JobRunner) *ProcessJobsTask {
	return &ProcessJobsTask{
		Task:      newTask(TaskTypeProcessJobs, "jobs", 0),
		BatchSize: max(batchSize, 1),
		runner:    runner,
	}
}

func (t *ProcessJobsTask) Execute(ctx context.Context) error {

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	stats, err := t.runner.RunBatch(ctx, t.BatchSize)
	if err != nil {
		return fmt.Errorf("failed to process jobs: %w", err)
	}

	if stats.Processed == 0 {
		slog.Debug("No pending jobs")
		return nil
	}

	slog.Info("Task completed",
		"type", "ProcessJobs",
		"duration", t.Elapsed(),
		"processed", stats.Processed,
		"done", stats.Done,
		"failed", stats.Failed)

	return nil
}
