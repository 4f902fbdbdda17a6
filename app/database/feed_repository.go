package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

var _ FeedRepository = (*PodcastFeedRepository)(nil)

// PodcastFeedRepository reads per-user podcast feed configuration.
// Feeds and subscriptions are provisioned elsewhere; the write methods exist for provisioning tools and tests.
type PodcastFeedRepository struct {
	db *DB
}

func NewFeedRepository(db *DB) *PodcastFeedRepository {
	return &PodcastFeedRepository{db: db}
}

// GetFeed retrieves a feed by owner and feed identifier
func (r *PodcastFeedRepository) GetFeed(ctx context.Context, userID, feedID string) (*PodcastFeed, error) {
	var feed PodcastFeed
	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, feed_id, title, description, feed_url, author, created_at
		FROM podcast_feeds
		WHERE user_id = ? AND feed_id = ?
	`, userID, feedID).Scan(
		&feed.ID, &feed.UserID, &feed.FeedID, &feed.Title, &feed.Description, &feed.FeedURL, &feed.Author, &feed.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get feed: %w", err)
	}

	return &feed, nil
}

// UpsertFeed inserts or updates a feed configuration
func (r *PodcastFeedRepository) UpsertFeed(ctx context.Context, feed PodcastFeed) (string, error) {
	var id string
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO podcast_feeds (id, user_id, feed_id, title, description, feed_url, author, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, feed_id) DO UPDATE SET
			title = excluded.title,
			description = excluded.description,
			feed_url = excluded.feed_url,
			author = excluded.author
		RETURNING id
	`, uuid.NewString(), feed.UserID, feed.FeedID, feed.Title, feed.Description, feed.FeedURL, feed.Author, r.db.now()).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("failed to upsert feed: %w", err)
	}

	return id, nil
}

func (r *PodcastFeedRepository) AddSubscription(ctx context.Context, userID, category string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO subscriptions (user_id, category, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT (user_id, category) DO NOTHING
	`, userID, category, r.db.now())
	if err != nil {
		return fmt.Errorf("failed to add subscription: %w", err)
	}
	return nil
}

// GetFeedCount returns the total number of feeds
func (r *PodcastFeedRepository) GetFeedCount(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM podcast_feeds").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get feed count: %w", err)
	}
	return count, nil
}
