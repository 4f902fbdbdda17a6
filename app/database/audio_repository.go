package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

var _ AudioRepository = (*AudioRepo)(nil)

// AudioRepo handles audio file records. Rows are insert-only.
type AudioRepo struct {
	db *DB
}

func NewAudioRepository(db *DB) *AudioRepo {
	return &AudioRepo{db: db}
}

func (r *AudioRepo) CreateAudioFile(ctx context.Context, audio AudioFile) (string, error) {
	id := audio.ID
	if id == "" {
		id = uuid.NewString()
	}
	if audio.Format == "" {
		audio.Format = AudioFormatMP3
	}
	if audio.Type == "" {
		audio.Type = AudioTypeSummary
	}

	var duration, sizeBytes any
	if audio.Duration != nil {
		duration = int64(*audio.Duration)
	}
	if audio.SizeBytes != nil {
		sizeBytes = *audio.SizeBytes
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO audio_files (id, content_id, file_url, storage_path, duration, format, type, size_bytes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, id, audio.ContentID, audio.FileURL, audio.StoragePath, duration, audio.Format, audio.Type, sizeBytes, r.db.now())
	if err != nil {
		return "", fmt.Errorf("failed to insert audio file: %w", err)
	}

	return id, nil
}

func (r *AudioRepo) GetAudioFiles(ctx context.Context, contentID string) ([]AudioFile, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, content_id, file_url, storage_path, duration, format, type, size_bytes, created_at
		FROM audio_files
		WHERE content_id = ?
		ORDER BY created_at, id
	`, contentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get audio files: %w", err)
	}
	defer rows.Close()

	var files []AudioFile
	for rows.Next() {
		var a AudioFile
		if err := rows.Scan(&a.ID, &a.ContentID, &a.FileURL, &a.StoragePath, &a.Duration,
			&a.Format, &a.Type, &a.SizeBytes, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan audio file row: %w", err)
		}
		files = append(files, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audio file rows: %w", err)
	}

	return files, nil
}
