package feed

import (
	"time"
)

// Entry is one item parsed from a source's RSS document.
type Entry struct {
	Title       string
	URL         string
	Content     string // Plain text body; empty when the feed carries none
	Author      string
	Categories  []string
	PublishedAt time.Time
}

// FeedInfo is the channel-level metadata of a rendered podcast feed.
type FeedInfo struct {
	UserID      string
	FeedID      string
	Title       string
	Description string
	Link        string // Canonical site link for the channel
	FeedURL     string // Self URL of the feed document
	BaseURL     string // Public base of this service, used for cover images
	Author      string
	Language    string
	Generator   string
}

// Configuration types

type Config struct {
	Name     string         // Derived from filename (without .yml extension)
	Title    string         `yaml:"title"`
	URL      string         `yaml:"url"` // Optional; sources without a feed only receive submissions
	Category string         `yaml:"category"`
	Settings ConfigSettings `yaml:"settings"`
	Filters  []ConfigFilter `yaml:"filters"`
}

type ConfigSettings struct {
	Enabled         bool `yaml:"enabled"`
	RefreshInterval int  `yaml:"refresh_interval"` // seconds
	MaxItems        int  `yaml:"max_items"`
	Timeout         int  `yaml:"timeout"` // seconds
}

type ConfigFilter struct {
	Field    string   `yaml:"field"`
	Includes []string `yaml:"includes"`
	Excludes []string `yaml:"excludes"`
}
