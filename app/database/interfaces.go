package database

import (
	"context"
	"time"
)

type SourceRepository interface {
	GetSource(ctx context.Context, name string) (*ContentSource, error)
	GetEnabledSources(ctx context.Context) ([]ContentSource, error)
	GetSourceCount(ctx context.Context) (int, error)

	UpsertSource(ctx context.Context, source ContentSource) (string, error)
	UpdateFetchResult(ctx context.Context, sourceID string, fetchedAt, nextFetchAt time.Time, fetchErr string) error
}

type ContentRepository interface {
	GetContentItem(ctx context.Context, id string) (*ContentItem, error)
	URLExists(ctx context.Context, url string) (bool, error)
	GetFeedItems(ctx context.Context, userID string, limit int) ([]ContentItem, error)
	GetContentCount(ctx context.Context) (int, error)

	CreateWithJob(ctx context.Context, item NewContentItem) (string, string, error)
	UpdateSummary(ctx context.Context, id string, summary string) error
}

type JobRepository interface {
	GetJob(ctx context.Context, id string) (*Job, error)
	ListJobs(ctx context.Context, status JobStatus, limit int) ([]Job, error)
	CountByStatus(ctx context.Context) (map[JobStatus]int, error)

	ClaimNext(ctx context.Context, at time.Time) (*Job, error)
	MarkDone(ctx context.Context, id string, at time.Time) error
	MarkError(ctx context.Context, id string, kind string, message string, at time.Time) error
	Requeue(ctx context.Context, id string, at time.Time) (bool, error)
	Release(ctx context.Context, id string, at time.Time) error
	ReclaimStuck(ctx context.Context, startedBefore time.Time, at time.Time) (int64, error)
}

type AudioRepository interface {
	CreateAudioFile(ctx context.Context, audio AudioFile) (string, error)
	GetAudioFiles(ctx context.Context, contentID string) ([]AudioFile, error)
}

type FeedRepository interface {
	GetFeed(ctx context.Context, userID, feedID string) (*PodcastFeed, error)
	GetFeedCount(ctx context.Context) (int, error)

	UpsertFeed(ctx context.Context, feed PodcastFeed) (string, error)
	AddSubscription(ctx context.Context, userID, category string) error
}
