package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/lysyi3m/rss-cast/app/database"
	"github.com/lysyi3m/rss-cast/app/extractor"
	"github.com/lysyi3m/rss-cast/app/notify"
	"github.com/lysyi3m/rss-cast/app/storage"
)

// MinContentLength is the shortest article text worth summarizing.
const MinContentLength = 100

const statusWriteTimeout = 10 * time.Second

type ContentExtractor interface {
	ExtractMainContent(html, sourceURL string) string
	ExtractMetadata(html, sourceURL string) extractor.Metadata
}

type Summarizer interface {
	Summarize(ctx context.Context, text string) (string, error)
}

type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

type PageFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Dependencies wires an Orchestrator. Now defaults to time.Now.
type Dependencies struct {
	Jobs          database.JobRepository
	Content       database.ContentRepository
	Audio         database.AudioRepository
	Fetcher       PageFetcher
	Extractor     ContentExtractor
	Summarizer    Summarizer
	Synthesizer   Synthesizer
	Store         storage.Store
	Reporter      notify.Reporter
	UploadTimeout time.Duration
	Now           func() time.Time
}

// Orchestrator drives jobs through pending -> running -> done | error.
type Orchestrator struct {
	jobs          database.JobRepository
	content       database.ContentRepository
	audio         database.AudioRepository
	fetcher       PageFetcher
	extractor     ContentExtractor
	summarizer    Summarizer
	synthesizer   Synthesizer
	store         storage.Store
	reporter      notify.Reporter
	uploadTimeout time.Duration
	now           func() time.Time
}

func NewOrchestrator(deps Dependencies) *Orchestrator {
	o := &Orchestrator{
		jobs:          deps.Jobs,
		content:       deps.Content,
		audio:         deps.Audio,
		fetcher:       deps.Fetcher,
		extractor:     deps.Extractor,
		summarizer:    deps.Summarizer,
		synthesizer:   deps.Synthesizer,
		store:         deps.Store,
		reporter:      deps.Reporter,
		uploadTimeout: deps.UploadTimeout,
		now:           deps.Now,
	}
	if o.now == nil {
		o.now = time.Now
	}
	if o.reporter == nil {
		o.reporter = notify.Nop{}
	}
	return o
}

// Result describes one processed job.
type Result struct {
	JobID     string
	ContentID string
	Status    database.JobStatus
	AudioID   string
	Err       error
	Duration  time.Duration
}

// BatchStats summarizes a RunBatch call.
type BatchStats struct {
	Processed int
	Done      int
	Failed    int
}

// ProcessNext claims and processes one pending job. It returns ErrNoPendingJobs
// when the queue is empty. A job that fails is reported through Result.Err;
// the returned error is reserved for failures to claim. A job cut short by ctx
// is returned to pending rather than marked as failed.
func (o *Orchestrator) ProcessNext(ctx context.Context) (*Result, error) {
	startedAt := o.now()

	job, err := o.jobs.ClaimNext(ctx, startedAt.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to claim job: %w", err)
	}
	if job == nil {
		return nil, ErrNoPendingJobs
	}

	slog.Debug("Job claimed", "job_id", job.ID, "content_id", job.ContentID)

	audioID, procErr := o.process(ctx, job)

	if procErr != nil && ctx.Err() != nil {
		o.release(ctx, job)
		slog.Warn("Job interrupted, returned to pending",
			"job_id", job.ID,
			"content_id", job.ContentID,
			"error", procErr)
		return &Result{
			JobID:     job.ID,
			ContentID: job.ContentID,
			Status:    database.JobStatusPending,
			Err:       procErr,
			Duration:  o.now().Sub(startedAt),
		}, nil
	}

	result := &Result{
		JobID:     job.ID,
		ContentID: job.ContentID,
		AudioID:   audioID,
		Status:    database.JobStatusDone,
	}
	if procErr != nil {
		result.Status = database.JobStatusError
		result.Err = procErr
	}

	o.reportOutcome(ctx, job, procErr)
	result.Duration = o.now().Sub(startedAt)

	if procErr != nil {
		slog.Warn("Job failed",
			"job_id", job.ID,
			"content_id", job.ContentID,
			"kind", string(KindOf(procErr)),
			"error", procErr)
	} else {
		slog.Info("Job completed",
			"job_id", job.ID,
			"content_id", job.ContentID,
			"audio_id", audioID,
			"duration", result.Duration)
	}

	return result, nil
}

// RunBatch processes up to limit jobs sequentially and stops early when the queue is empty.
func (o *Orchestrator) RunBatch(ctx context.Context, limit int) (BatchStats, error) {
	var stats BatchStats

	for stats.Processed < limit {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		result, err := o.ProcessNext(ctx)
		if errors.Is(err, ErrNoPendingJobs) {
			break
		}
		if err != nil {
			return stats, err
		}

		if result.Status == database.JobStatusPending {
			return stats, ctx.Err()
		}

		stats.Processed++
		if result.Status == database.JobStatusDone {
			stats.Done++
		} else {
			stats.Failed++
		}
	}

	return stats, nil
}

// ReclaimStuck returns jobs running for longer than olderThan to pending.
func (o *Orchestrator) ReclaimStuck(ctx context.Context, olderThan time.Duration) (int64, error) {
	now := o.now().UTC()

	count, err := o.jobs.ReclaimStuck(ctx, now.Add(-olderThan), now)
	if err != nil {
		return 0, fmt.Errorf("failed to reclaim stuck jobs: %w", err)
	}

	if count > 0 {
		o.reporter.Report(ctx, notify.LevelWarn, "orchestrator", "Reclaimed stuck jobs", map[string]any{
			"count":      count,
			"older_than": olderThan.String(),
		})
	}

	return count, nil
}

// Requeue moves a failed job back to pending.
func (o *Orchestrator) Requeue(ctx context.Context, jobID string) error {
	job, err := o.jobs.GetJob(ctx, jobID)
	if err != nil {
		return fmt.Errorf("failed to load job: %w", err)
	}
	if job == nil {
		return ErrJobNotFound
	}

	ok, err := o.jobs.Requeue(ctx, jobID, o.now().UTC())
	if err != nil {
		return fmt.Errorf("failed to requeue job: %w", err)
	}
	if !ok {
		return ErrJobNotFailed
	}

	slog.Info("Job requeued", "job_id", jobID, "previous_kind", job.ErrorKind)
	return nil
}

func (o *Orchestrator) process(ctx context.Context, job *database.Job) (string, error) {
	item, err := o.content.GetContentItem(ctx, job.ContentID)
	if err != nil {
		return "", newError(KindPersistenceFailed, "load content item", err)
	}
	if item == nil {
		return "", newError(KindPersistenceFailed, "load content item", fmt.Errorf("content item %s not found", job.ContentID))
	}

	text := item.Content
	var meta extractor.Metadata

	if strings.TrimSpace(text) == "" {
		html, err := o.fetcher.Fetch(ctx, item.URL)
		if err != nil {
			return "", newError(KindFetchFailed, "fetch article", err)
		}
		text = o.extractor.ExtractMainContent(string(html), item.URL)
		meta = o.extractor.ExtractMetadata(string(html), item.URL)
		if meta.Empty() {
			slog.Debug("No article metadata found", "content_id", item.ID, "url", item.URL)
		}
	}

	if n := utf8.RuneCountInString(strings.TrimSpace(text)); n < MinContentLength {
		return "", newError(KindExtractionEmpty, "extract article",
			fmt.Errorf("insufficient content: %d characters, need at least %d", n, MinContentLength))
	}

	summary, err := o.summarizer.Summarize(ctx, summaryInput(item, meta, text))
	if err != nil {
		return "", newError(KindSummaryFailed, "summarize", err)
	}

	if err := o.content.UpdateSummary(ctx, item.ID, summary); err != nil {
		perr := newError(KindPersistenceFailed, "store summary", err)
		slog.Error("Summary write failed", "job_id", job.ID, "content_id", item.ID, "error", perr)
		o.reporter.Report(ctx, notify.LevelWarn, "orchestrator", "Summary write failed", map[string]any{
			"job_id":     job.ID,
			"content_id": item.ID,
			"kind":       string(perr.Kind),
			"error":      perr.Error(),
		})
	}

	audio, err := o.synthesizer.Synthesize(ctx, summary)
	if err != nil {
		return "", newError(KindSynthesisFailed, "synthesize", err)
	}

	filename := storage.NewFilename()
	if err := o.upload(ctx, filename, audio); err != nil {
		return "", newError(KindStorageError, "upload audio", err)
	}

	fileURL, err := o.store.PublicURL(ctx, filename)
	if err != nil {
		return "", newError(KindStorageError, "resolve public url", err)
	}

	size := int64(len(audio))
	audioID, err := o.audio.CreateAudioFile(ctx, database.AudioFile{
		ContentID:   item.ID,
		FileURL:     fileURL,
		StoragePath: filename,
		Format:      database.AudioFormatMP3,
		Type:        database.AudioTypeSummary,
		SizeBytes:   &size,
	})
	if err != nil {
		return "", newError(KindPersistenceFailed, "store audio file", err)
	}

	return audioID, nil
}

func (o *Orchestrator) upload(ctx context.Context, filename string, audio []byte) error {
	if o.uploadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.uploadTimeout)
		defer cancel()
	}
	return o.store.Upload(ctx, filename, audio, storage.ContentTypeMP3)
}

// reportOutcome writes the final job status. Its own failure is logged and
// reported, never returned.
func (o *Orchestrator) reportOutcome(ctx context.Context, job *database.Job, failure error) {
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), statusWriteTimeout)
	defer cancel()

	at := o.now().UTC()

	var err error
	if failure == nil {
		err = o.jobs.MarkDone(writeCtx, job.ID, at)
	} else {
		err = o.jobs.MarkError(writeCtx, job.ID, string(KindOf(failure)), failure.Error(), at)
		o.reporter.Report(ctx, notify.LevelError, "orchestrator", "Job failed", map[string]any{
			"job_id":     job.ID,
			"content_id": job.ContentID,
			"kind":       string(KindOf(failure)),
			"error":      failure.Error(),
		})
	}

	if err != nil {
		statusErr := newError(KindStatusUpdateFailed, "update job status", err)
		slog.Error("Job status update failed", "job_id", job.ID, "error", statusErr)
		o.reporter.Report(ctx, notify.LevelError, "orchestrator", "Job status update failed", map[string]any{
			"job_id": job.ID,
			"kind":   string(statusErr.Kind),
			"error":  statusErr.Error(),
		})
	}
}

// release hands an interrupted job back to the queue. The reclaim watchdog
// covers the case where this write fails too.
func (o *Orchestrator) release(ctx context.Context, job *database.Job) {
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), statusWriteTimeout)
	defer cancel()

	if err := o.jobs.Release(writeCtx, job.ID, o.now().UTC()); err != nil {
		slog.Error("Failed to release interrupted job", "job_id", job.ID, "error", err)
	}
}

// summaryInput prefixes the article text with whatever attribution is known.
func summaryInput(item *database.ContentItem, meta extractor.Metadata, text string) string {
	var header []string

	if title := firstNonEmpty(item.Title, meta.Title); title != "" {
		header = append(header, "Title: "+title)
	}
	if author := firstNonEmpty(item.Author, meta.Byline); author != "" {
		header = append(header, "Author: "+author)
	}
	if meta.SiteName != "" {
		header = append(header, "Publication: "+meta.SiteName)
	}

	if len(header) == 0 {
		return text
	}
	return strings.Join(header, "\n") + "\n\n" + text
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" && v != "Untitled" {
			return v
		}
	}
	return ""
}
