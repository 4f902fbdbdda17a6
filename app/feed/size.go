package feed

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/lysyi3m/rss-cast/app/cache"
)

// SizeResolver reports the byte length of a remote audio file, or 0 when unknown.
type SizeResolver interface {
	ContentLength(ctx context.Context, audioURL string) int64
}

// HTTPSizeResolver asks the origin with a single HEAD request. No retries.
type HTTPSizeResolver struct {
	client    *http.Client
	userAgent string
}

func NewHTTPSizeResolver(timeout time.Duration, userAgent string) *HTTPSizeResolver {
	return &HTTPSizeResolver{
		client:    &http.Client{Timeout: timeout},
		userAgent: userAgent,
	}
}

func (r *HTTPSizeResolver) ContentLength(ctx context.Context, audioURL string) int64 {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, audioURL, nil)
	if err != nil {
		return 0
	}
	if r.userAgent != "" {
		req.Header.Set("User-Agent", r.userAgent)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		slog.Debug("Enclosure HEAD request failed", "url", audioURL, "error", err)
		return 0
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0
	}

	length, err := strconv.ParseInt(resp.Header.Get("Content-Length"), 10, 64)
	if err != nil || length < 0 {
		return 0
	}
	return length
}

// CachedSizeResolver memoizes known lengths. Zero results are not cached.
type CachedSizeResolver struct {
	next  SizeResolver
	cache cache.CacheInterface
	ttl   time.Duration
}

func NewCachedSizeResolver(next SizeResolver, c cache.CacheInterface, ttl time.Duration) *CachedSizeResolver {
	return &CachedSizeResolver{next: next, cache: c, ttl: ttl}
}

func (r *CachedSizeResolver) ContentLength(ctx context.Context, audioURL string) int64 {
	key := cache.SizeKey(audioURL)

	if value, ok, err := r.cache.Get(ctx, key); err == nil && ok {
		if length, err := strconv.ParseInt(value, 10, 64); err == nil {
			return length
		}
	} else if err != nil {
		slog.Warn("Size cache lookup failed", "url", audioURL, "error", err)
	}

	length := r.next.ContentLength(ctx, audioURL)
	if length > 0 {
		if err := r.cache.Set(ctx, key, strconv.FormatInt(length, 10), r.ttl); err != nil {
			slog.Warn("Size cache store failed", "url", audioURL, "error", err)
		}
	}
	return length
}

var (
	_ SizeResolver = (*HTTPSizeResolver)(nil)
	_ SizeResolver = (*CachedSizeResolver)(nil)
)
