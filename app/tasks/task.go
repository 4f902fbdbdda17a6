package tasks

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type TaskType string

const (
	TaskTypeIngestSource TaskType = "ingest_source"
	TaskTypeProcessJobs  TaskType = "process_jobs"
	TaskTypeReclaimJobs  TaskType = "reclaim_jobs"
	TaskTypeSyncSource   TaskType = "sync_source"
)

// DefaultRetries is the retry budget for tasks that talk to remote sources.
const DefaultRetries = 3

// TaskInterface is a unit of scheduler work. Meta exposes the bookkeeping
// every task shares through an embedded Task.
type TaskInterface interface {
	Execute(ctx context.Context) error
	Meta() *Task
}

type Task struct {
	ID        string
	Type      TaskType
	Target    string // Source name, or a short label for queue-wide tasks
	Attempts  int    // Failed attempts so far
	Retries   int    // Retries allowed after the first attempt
	StartedAt time.Time
}

func newTask(taskType TaskType, target string, retries int) Task {
	return Task{
		ID:      uuid.NewString(),
		Type:    taskType,
		Target:  target,
		Retries: retries,
	}
}

func (t *Task) Meta() *Task {
	return t
}

func (t *Task) begin(now time.Time) {
	t.StartedAt = now
}

// Elapsed is the time since the current attempt started.
func (t *Task) Elapsed() time.Duration {
	if t.StartedAt.IsZero() {
		return 0
	}
	return time.Since(t.StartedAt)
}

// retry records a failed attempt and reports whether another one is allowed.
func (t *Task) retry() bool {
	if t.Attempts >= t.Retries {
		return false
	}
	t.Attempts++
	return true
}

func (t *Task) logAttrs() []any {
	return []any{"type", string(t.Type), "id", t.ID, "target", t.Target}
}
