package database

import (
	"time"
)

type JobStatus string

const (
	JobStatusPending JobStatus = "pending"
	JobStatusRunning JobStatus = "running"
	JobStatusDone    JobStatus = "done"
	JobStatusError   JobStatus = "error"
)

func (s JobStatus) Valid() bool {
	switch s {
	case JobStatusPending, JobStatusRunning, JobStatusDone, JobStatusError:
		return true
	}
	return false
}

const (
	AudioFormatMP3   = "mp3"
	AudioTypeSummary = "summary"
)

type ContentSource struct {
	ID              string
	Name            string // Source identifier derived from its definition filename
	Title           string
	FeedURL         string // Empty for sources without an RSS feed
	Category        string
	Enabled         bool
	RefreshInterval int // Seconds between fetches
	LastFetchedAt   *time.Time
	NextFetchAt     *time.Time
	LastError       string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type ContentItem struct {
	ID              string
	SourceID        string // Empty for user submissions
	SubmittedBy     string
	Title           string
	URL             string
	Content         string // Raw or extracted text body
	ContentMarkdown string
	Summary         string // Empty until the pipeline completes
	Author          string
	PublishedAt     time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time

	AudioFiles []AudioFile // Populated only by feed queries
}

type NewContentItem struct {
	SourceID        string
	SubmittedBy     string
	Title           string
	URL             string
	Content         string
	ContentMarkdown string
	Author          string
	PublishedAt     time.Time
}

type Job struct {
	ID           string
	ContentID    string
	Status       JobStatus
	ErrorKind    string
	ErrorMessage string
	StartedAt    *time.Time
	FinishedAt   *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type AudioFile struct {
	ID          string
	ContentID   string
	FileURL     string
	StoragePath string
	Duration    *int // Seconds; not known at creation time
	Format      string
	Type        string
	SizeBytes   *int64
	CreatedAt   time.Time
}

type PodcastFeed struct {
	ID          string
	UserID      string
	FeedID      string
	Title       string
	Description string
	FeedURL     string
	Author      string
	CreatedAt   time.Time
}
