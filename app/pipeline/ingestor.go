package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/lysyi3m/rss-cast/app/database"
	"github.com/lysyi3m/rss-cast/app/feed"
	"github.com/lysyi3m/rss-cast/app/notify"
)

const defaultSourceTimeout = 30 * time.Second

// IngestStats counts what an ingestion pass did.
type IngestStats struct {
	Sources    int
	Failed     int
	Entries    int
	Created    int
	Duplicates int
	Filtered   int
	Triggered  bool
}

func (s *IngestStats) add(other IngestStats) {
	s.Entries += other.Entries
	s.Created += other.Created
	s.Duplicates += other.Duplicates
	s.Filtered += other.Filtered
}

// Ingestor pulls configured RSS sources into content items with pending jobs.
type Ingestor struct {
	sources            database.SourceRepository
	content            database.ContentRepository
	configs            *feed.ConfigCache
	fetcher            PageFetcher
	parser             *feed.Parser
	filterer           *feed.Filterer
	reporter           notify.Reporter
	trigger            Trigger
	triggerAfterIngest bool
	now                func() time.Time
}

func NewIngestor(sources database.SourceRepository, content database.ContentRepository,
	configs *feed.ConfigCache, fetcher PageFetcher, reporter notify.Reporter, now func() time.Time) *Ingestor {
	if now == nil {
		now = time.Now
	}
	if reporter == nil {
		reporter = notify.Nop{}
	}
	return &Ingestor{
		sources:  sources,
		content:  content,
		configs:  configs,
		fetcher:  fetcher,
		parser:   feed.NewParser(now),
		filterer: feed.NewFilterer(),
		reporter: reporter,
		now:      now,
	}
}

// SetTrigger configures the orchestrator trigger fired after Run. When
// enabled is false the trigger is never called.
func (i *Ingestor) SetTrigger(trigger Trigger, enabled bool) {
	i.trigger = trigger
	i.triggerAfterIngest = enabled
}

// Run ingests every enabled source with a feed URL. A failing source does not
// stop the others; its error is stored on the source and reported.
func (i *Ingestor) Run(ctx context.Context) (IngestStats, error) {
	var stats IngestStats

	sources, err := i.sources.GetEnabledSources(ctx)
	if err != nil {
		return stats, fmt.Errorf("failed to load sources: %w", err)
	}

	for _, source := range sources {
		if source.FeedURL == "" {
			continue
		}
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		stats.Sources++
		sourceStats, err := i.IngestSource(ctx, source)
		stats.add(sourceStats)
		if err != nil {
			stats.Failed++
		}
	}

	if i.triggerAfterIngest && i.trigger != nil {
		stats.Triggered = true
		if err := i.trigger.Fire(ctx); err != nil {
			slog.Warn("Orchestrator trigger failed", "error", err)
		}
	}

	slog.Info("Ingestion completed",
		"sources", stats.Sources,
		"failed", stats.Failed,
		"entries", stats.Entries,
		"created", stats.Created,
		"duplicates", stats.Duplicates,
		"filtered", stats.Filtered)

	return stats, nil
}

// IngestSource fetches one source and inserts its unseen entries.
func (i *Ingestor) IngestSource(ctx context.Context, source database.ContentSource) (IngestStats, error) {
	startedAt := i.now()
	stats, err := i.ingest(ctx, source)

	fetchErr := ""
	if err != nil {
		fetchErr = err.Error()
		slog.Warn("Source ingestion failed", "source", source.Name, "error", err)
		i.reporter.Report(ctx, notify.LevelWarn, "ingestor", "Source ingestion failed", map[string]any{
			"source": source.Name,
			"url":    source.FeedURL,
			"error":  fetchErr,
		})
	}

	fetchedAt := startedAt.UTC()
	nextFetchAt := fetchedAt.Add(time.Duration(source.RefreshInterval) * time.Second)
	if updateErr := i.sources.UpdateFetchResult(ctx, source.ID, fetchedAt, nextFetchAt, fetchErr); updateErr != nil {
		slog.Error("Failed to record fetch result", "source", source.Name, "error", updateErr)
	}

	if err == nil {
		slog.Info("Source ingested",
			"source", source.Name,
			"duration", i.now().Sub(startedAt),
			"entries", stats.Entries,
			"created", stats.Created,
			"duplicates", stats.Duplicates,
			"filtered", stats.Filtered)
	}

	return stats, err
}

func (i *Ingestor) ingest(ctx context.Context, source database.ContentSource) (IngestStats, error) {
	var stats IngestStats

	timeout := defaultSourceTimeout
	var sourceConfig *feed.Config
	if i.configs != nil {
		if c, err := i.configs.GetConfig(source.Name); err == nil {
			sourceConfig = c
			if c.Settings.Timeout > 0 {
				timeout = time.Duration(c.Settings.Timeout) * time.Second
			}
		}
	}

	fetchCtx, cancel := context.WithTimeout(ctx, timeout)
	data, err := i.fetcher.Fetch(fetchCtx, source.FeedURL)
	cancel()
	if err != nil {
		return stats, fmt.Errorf("failed to fetch feed: %w", err)
	}

	entries, err := i.parser.Run(data)
	if err != nil {
		return stats, err
	}

	if sourceConfig != nil {
		if sourceConfig.Settings.MaxItems > 0 && len(entries) > sourceConfig.Settings.MaxItems {
			entries = entries[:sourceConfig.Settings.MaxItems]
		}
		entries, stats.Filtered = i.filterer.Run(entries, sourceConfig.Filters)
	}

	for _, entry := range entries {
		if entry.URL == "" {
			continue
		}
		stats.Entries++

		exists, err := i.content.URLExists(ctx, entry.URL)
		if err != nil {
			return stats, fmt.Errorf("failed to check for duplicates: %w", err)
		}
		if exists {
			stats.Duplicates++
			continue
		}

		contentID, jobID, err := i.content.CreateWithJob(ctx, database.NewContentItem{
			SourceID:    source.ID,
			Title:       entry.Title,
			URL:         entry.URL,
			Content:     entry.Content,
			Author:      entry.Author,
			PublishedAt: entry.PublishedAt,
		})
		if errors.Is(err, database.ErrDuplicateURL) {
			stats.Duplicates++
			continue
		}
		if err != nil {
			return stats, fmt.Errorf("failed to store entry: %w", err)
		}

		stats.Created++
		slog.Debug("Content item created", "source", source.Name, "content_id", contentID, "job_id", jobID)
	}

	return stats, nil
}

// Submission is a URL submitted directly by a user.
type Submission struct {
	UserID string
	URL    string
	Title  string
}

// Submit stores a user submission with a pending job. It returns
// database.ErrDuplicateURL when the URL is already known.
func (i *Ingestor) Submit(ctx context.Context, s Submission) (string, string, error) {
	u, err := url.Parse(strings.TrimSpace(s.URL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", "", fmt.Errorf("%w %q: must be an absolute http(s) URL", ErrInvalidURL, s.URL)
	}

	title := strings.TrimSpace(s.Title)
	if title == "" {
		title = feed.UntitledEntry
	}

	contentID, jobID, err := i.content.CreateWithJob(ctx, database.NewContentItem{
		SubmittedBy: s.UserID,
		Title:       title,
		URL:         u.String(),
		PublishedAt: i.now().UTC(),
	})
	if err != nil {
		return "", "", err
	}

	slog.Info("Content submitted", "user_id", s.UserID, "content_id", contentID, "job_id", jobID)
	return contentID, jobID, nil
}
