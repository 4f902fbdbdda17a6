package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

type ReclaimJobsTask struct {
	Task
	StuckAfter time.Duration
	runner     JobRunner
}

func NewReclaimJobsTask(stuckAfter time.Duration, runner JobRunner) *ReclaimJobsTask {
	return &ReclaimJobsTask{
		Task:       newTask(TaskTypeReclaimJobs, "jobs", 1),
		StuckAfter: stuckAfter,
		runner:     runner,
	}
}

func (t *ReclaimJobsTask) Execute(ctx context.Context) error {

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	count, err := t.runner.ReclaimStuck(ctx, t.StuckAfter)
	if err != nil {
		return fmt.Errorf("failed to reclaim jobs: %w", err)
	}

	if count > 0 {
		slog.Info("Task completed",
			"type", "ReclaimJobs",
			"duration", t.Elapsed(),
			"reclaimed", count)
	}

	return nil
}
