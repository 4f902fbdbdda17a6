package storage

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/google/uuid"
)

const ContentTypeMP3 = "audio/mpeg"

const (
	BackendLocal    = "local"
	BackendSupabase = "supabase"
	BackendS3       = "s3"
)

// Store is a blob store addressable by object path.
type Store interface {
	Upload(ctx context.Context, objectPath string, data []byte, contentType string) error
	PublicURL(ctx context.Context, objectPath string) (string, error)
}

// NewFilename returns a fresh random object name. Collisions are not checked.
func NewFilename() string {
	return uuid.NewString() + ".mp3"
}

// Config selects and configures a backend.
type Config struct {
	Backend     string
	Bucket      string
	LocalDir    string
	LocalURL    string // Public base URL for the local backend, e.g. https://cast.example.com/audio
	SupabaseURL string
	SupabaseKey string
	S3Endpoint  string
	S3Region    string
	S3AccessKey string
	S3SecretKey string
	S3PublicURL string
}

func New(c Config) (Store, error) {
	switch c.Backend {
	case BackendLocal, "":
		return NewLocalStore(c.LocalDir, c.LocalURL)
	case BackendSupabase:
		return NewSupabaseStore(c.SupabaseURL, c.SupabaseKey, c.Bucket)
	case BackendS3:
		return NewS3Store(c.S3Endpoint, c.S3Region, c.S3AccessKey, c.S3SecretKey, c.Bucket, c.S3PublicURL)
	default:
		return nil, fmt.Errorf("unknown storage backend: %s", c.Backend)
	}
}

// cleanObjectPath rejects empty, absolute and parent-relative object paths.
func cleanObjectPath(p string) (string, error) {
	cleaned := path.Clean(strings.TrimSpace(p))
	if cleaned == "." || cleaned == "" || strings.HasPrefix(cleaned, "/") || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("invalid object path: %q", p)
	}
	return cleaned, nil
}

func joinURL(base, objectPath string) string {
	return strings.TrimRight(base, "/") + "/" + objectPath
}
