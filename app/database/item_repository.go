package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrDuplicateURL is returned when a content item with the same URL already exists.
var ErrDuplicateURL = errors.New("content item with this url already exists")

var _ ContentRepository = (*ItemRepository)(nil)

// ItemRepository handles database operations for content items
type ItemRepository struct {
	db *DB
}

func NewItemRepository(db *DB) *ItemRepository {
	return &ItemRepository{db: db}
}

const itemColumns = `c.id, COALESCE(c.source_id, ''), COALESCE(c.submitted_by, ''), c.title, c.url,
	COALESCE(c.content, ''), COALESCE(c.content_markdown, ''), COALESCE(c.summary, ''), COALESCE(c.author, ''),
	c.published_at, c.created_at, c.updated_at`

func itemDest(item *ContentItem) []any {
	return []any{&item.ID, &item.SourceID, &item.SubmittedBy, &item.Title, &item.URL,
		&item.Content, &item.ContentMarkdown, &item.Summary, &item.Author,
		&item.PublishedAt, &item.CreatedAt, &item.UpdatedAt}
}

// CreateWithJob inserts a content item and its pending job in one transaction.
// It returns ErrDuplicateURL when the URL is already known.
func (r *ItemRepository) CreateWithJob(ctx context.Context, item NewContentItem) (string, string, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return "", "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := r.db.now()
	publishedAt := item.PublishedAt
	if publishedAt.IsZero() {
		publishedAt = now
	}

	contentID := uuid.NewString()
	res, err := tx.ExecContext(ctx, `
		INSERT INTO content_items (id, source_id, submitted_by, title, url, content, content_markdown, author, published_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (url) DO NOTHING
	`, contentID, nullString(item.SourceID), nullString(item.SubmittedBy), item.Title, item.URL,
		nullString(item.Content), nullString(item.ContentMarkdown), nullString(item.Author),
		publishedAt.UTC(), now, now)
	if err != nil {
		return "", "", fmt.Errorf("failed to insert content item: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return "", "", fmt.Errorf("failed to read insert result: %w", err)
	}
	if affected == 0 {
		return "", "", ErrDuplicateURL
	}

	jobID := uuid.NewString()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO jobs (id, content_id, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`, jobID, contentID, string(JobStatusPending), now, now)
	if err != nil {
		return "", "", fmt.Errorf("failed to enqueue job: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", "", fmt.Errorf("failed to commit content item: %w", err)
	}

	return contentID, jobID, nil
}

func (r *ItemRepository) GetContentItem(ctx context.Context, id string) (*ContentItem, error) {
	var item ContentItem
	err := r.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM content_items c WHERE c.id = ?`, id).
		Scan(itemDest(&item)...)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get content item: %w", err)
	}

	return &item, nil
}

func (r *ItemRepository) URLExists(ctx context.Context, url string) (bool, error) {
	var id string
	err := r.db.QueryRowContext(ctx, `SELECT id FROM content_items WHERE url = ? LIMIT 1`, url).Scan(&id)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check content url: %w", err)
	}

	return true, nil
}

// UpdateSummary stores the generated summary; summaries are only ever overwritten, never cleared
func (r *ItemRepository) UpdateSummary(ctx context.Context, id string, summary string) error {
	if summary == "" {
		return fmt.Errorf("refusing to store empty summary for content item %s", id)
	}

	res, err := r.db.ExecContext(ctx, `
		UPDATE content_items SET summary = ?, updated_at = ? WHERE id = ?
	`, summary, r.db.now(), id)
	if err != nil {
		return fmt.Errorf("failed to update summary: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("content item %s not found", id)
	}

	return nil
}

// GetFeedItems returns the newest items for a user's feed with their audio attached.
// A user's feed holds items from subscribed source categories plus the user's own submissions.
// Items still waiting for audio are not part of the feed and do not count against limit.
func (r *ItemRepository) GetFeedItems(ctx context.Context, userID string, limit int) ([]ContentItem, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+itemColumns+`,
		       a.id, a.file_url, a.storage_path, a.duration, a.format, a.type, a.size_bytes, a.created_at
		FROM content_items c
		JOIN audio_files a ON a.content_id = c.id
		WHERE c.id IN (
			SELECT ci.id
			FROM content_items ci
			LEFT JOIN content_sources s ON s.id = ci.source_id
			WHERE (ci.submitted_by = ?
			   OR s.category IN (SELECT category FROM subscriptions WHERE user_id = ?))
			  AND EXISTS (SELECT 1 FROM audio_files af WHERE af.content_id = ci.id)
			ORDER BY ci.published_at DESC, ci.id
			LIMIT ?
		)
		ORDER BY c.published_at DESC, c.id, a.created_at
	`, userID, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get feed items: %w", err)
	}
	defer rows.Close()

	var items []ContentItem
	for rows.Next() {
		var item ContentItem
		var (
			audioID, fileURL, storagePath, format, audioType sql.NullString
			audioCreatedAt                                   *time.Time
			audio                                            AudioFile
		)
		dest := append(itemDest(&item),
			&audioID, &fileURL, &storagePath, &audio.Duration, &format, &audioType, &audio.SizeBytes, &audioCreatedAt)
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed to scan feed item row: %w", err)
		}

		if n := len(items); n == 0 || items[n-1].ID != item.ID {
			items = append(items, item)
		}
		if audioID.Valid {
			audio.ID = audioID.String
			audio.ContentID = item.ID
			audio.FileURL = fileURL.String
			audio.StoragePath = storagePath.String
			audio.Format = format.String
			audio.Type = audioType.String
			if audioCreatedAt != nil {
				audio.CreatedAt = *audioCreatedAt
			}
			last := &items[len(items)-1]
			last.AudioFiles = append(last.AudioFiles, audio)
		}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating feed item rows: %w", err)
	}

	return items, nil
}

func (r *ItemRepository) GetContentCount(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM content_items").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get content count: %w", err)
	}
	return count, nil
}
