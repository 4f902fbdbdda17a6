package storage

import (
	"bytes"
	"context"
	"fmt"

	storage_go "github.com/supabase-community/storage-go"
	"github.com/supabase-community/supabase-go"
)

var _ Store = (*SupabaseStore)(nil)

// SupabaseStore uploads to a Supabase storage bucket.
type SupabaseStore struct {
	client *supabase.Client
	bucket string
}

func NewSupabaseStore(url, key, bucket string) (*SupabaseStore, error) {
	if url == "" || key == "" {
		return nil, fmt.Errorf("supabase URL and key are required")
	}
	if bucket == "" {
		return nil, fmt.Errorf("supabase bucket is required")
	}

	client, err := supabase.NewClient(url, key, nil)
	if err != nil {
		return nil, fmt.Errorf("initialize supabase SDK: %w", err)
	}

	return &SupabaseStore{client: client, bucket: bucket}, nil
}

func (s *SupabaseStore) Upload(ctx context.Context, objectPath string, data []byte, contentType string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	p, err := cleanObjectPath(objectPath)
	if err != nil {
		return err
	}

	// The storage client takes no context and owns its http.Client, so the
	// wait is bounded here. An abandoned upload may still land as an orphan object.
	done := make(chan error, 1)
	go func() {
		upsert := false
		_, err := s.client.Storage.UploadFile(s.bucket, p, bytes.NewReader(data), storage_go.FileOptions{
			ContentType: &contentType,
			Upsert:      &upsert,
		})
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("failed to upload %s to bucket %s: %w", p, s.bucket, err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("upload of %s to bucket %s abandoned: %w", p, s.bucket, ctx.Err())
	}
}

func (s *SupabaseStore) PublicURL(ctx context.Context, objectPath string) (string, error) {
	p, err := cleanObjectPath(objectPath)
	if err != nil {
		return "", err
	}

	resp := s.client.Storage.GetPublicUrl(s.bucket, p)
	if resp.SignedURL == "" {
		return "", fmt.Errorf("no public URL returned for %s", p)
	}
	return resp.SignedURL, nil
}
