package cache

import (
	"context"
	"strings"
	"testing"
)

func TestFeedKey(t *testing.T) {
	if got := FeedKey("user-1", "daily"); got != "feed:user-1:daily" {
		t.Errorf("Expected key feed:user-1:daily, got %s", got)
	}
}

func TestSizeKey(t *testing.T) {
	url1 := "https://cdn.example.com/a.mp3"
	url2 := "https://cdn.example.com/b.mp3"

	key1a := SizeKey(url1)
	key1b := SizeKey(url1)
	key2 := SizeKey(url2)

	if key1a != key1b {
		t.Errorf("Expected same key for same URL, got %s != %s", key1a, key1b)
	}
	if key1a == key2 {
		t.Errorf("Expected different keys for different URLs, but got same: %s", key1a)
	}
	if !strings.HasPrefix(key1a, "size:") {
		t.Errorf("Expected key to start with size:, got %s", key1a)
	}
	if len(key1a) != len("size:")+16 {
		t.Errorf("Expected 8-byte hex digest, got %s", key1a)
	}
}

func TestNewCacheRejectsInvalidURL(t *testing.T) {
	if _, err := NewCache(context.Background(), "http://not-redis"); err == nil {
		t.Error("Expected error for non-redis URL scheme")
	}
}
