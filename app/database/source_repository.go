package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var _ SourceRepository = (*SourceRepo)(nil)

// SourceRepo handles database operations for content sources
type SourceRepo struct {
	db *DB
}

func NewSourceRepository(db *DB) *SourceRepo {
	return &SourceRepo{db: db}
}

const sourceColumns = `id, name, title, COALESCE(feed_url, ''), COALESCE(category, ''), enabled,
	refresh_interval_seconds, last_fetched_at, next_fetch_at, COALESCE(last_error, ''), created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanSource(row scanner) (ContentSource, error) {
	var s ContentSource
	err := row.Scan(&s.ID, &s.Name, &s.Title, &s.FeedURL, &s.Category, &s.Enabled,
		&s.RefreshInterval, &s.LastFetchedAt, &s.NextFetchAt, &s.LastError, &s.CreatedAt, &s.UpdatedAt)
	return s, err
}

// UpsertSource inserts or updates a source keyed by name and returns its database id
func (r *SourceRepo) UpsertSource(ctx context.Context, source ContentSource) (string, error) {
	now := r.db.now()

	var id string
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO content_sources (id, name, title, feed_url, category, enabled, refresh_interval_seconds, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (name) DO UPDATE SET
			title = excluded.title,
			feed_url = excluded.feed_url,
			category = excluded.category,
			enabled = excluded.enabled,
			refresh_interval_seconds = excluded.refresh_interval_seconds,
			updated_at = excluded.updated_at
		RETURNING id
	`, uuid.NewString(), source.Name, source.Title, nullString(source.FeedURL), nullString(source.Category),
		source.Enabled, source.RefreshInterval, now, now).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("failed to upsert source: %w", err)
	}

	return id, nil
}

func (r *SourceRepo) GetSource(ctx context.Context, name string) (*ContentSource, error) {
	source, err := scanSource(r.db.QueryRowContext(ctx,
		`SELECT `+sourceColumns+` FROM content_sources WHERE name = ?`, name))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get source: %w", err)
	}

	return &source, nil
}

// GetEnabledSources returns enabled sources that have a feed URL
func (r *SourceRepo) GetEnabledSources(ctx context.Context) ([]ContentSource, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+sourceColumns+`
		FROM content_sources
		WHERE enabled = ? AND feed_url IS NOT NULL AND feed_url <> ''
		ORDER BY name
	`, true)
	if err != nil {
		return nil, fmt.Errorf("failed to get enabled sources: %w", err)
	}
	defer rows.Close()

	var sources []ContentSource
	for rows.Next() {
		source, err := scanSource(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan source row: %w", err)
		}
		sources = append(sources, source)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating source rows: %w", err)
	}

	return sources, nil
}

// UpdateFetchResult records the outcome of a fetch; an empty fetchErr clears the last error
func (r *SourceRepo) UpdateFetchResult(ctx context.Context, sourceID string, fetchedAt, nextFetchAt time.Time, fetchErr string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE content_sources
		SET last_fetched_at = ?, next_fetch_at = ?, last_error = ?, updated_at = ?
		WHERE id = ?
	`, fetchedAt.UTC(), nextFetchAt.UTC(), nullString(fetchErr), r.db.now(), sourceID)
	if err != nil {
		return fmt.Errorf("failed to update source fetch result: %w", err)
	}

	return nil
}

func (r *SourceRepo) GetSourceCount(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM content_sources").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get source count: %w", err)
	}
	return count, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
