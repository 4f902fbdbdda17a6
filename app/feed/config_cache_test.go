package feed

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeSource(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name+".yml"), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestConfigCacheLoadValidConfig(t *testing.T) {
	tempDir := t.TempDir()

	writeSource(t, tempDir, "platformer", `
title: "Platformer"
url: "https://www.platformer.news/rss"
category: "technology"

settings:
  enabled: true
  refresh_interval: 1800
  max_items: 25
  timeout: 15

filters:
  - field: "title"
    excludes:
      - "sponsored"
`)

	configCache := NewConfigCache(tempDir)
	if err := configCache.Run(); err != nil {
		t.Fatal(err)
	}

	if configCache.GetConfigCount() != 1 {
		t.Errorf("Expected 1 source, got %d", configCache.GetConfigCount())
	}

	sourceConfig, err := configCache.GetConfig("platformer")
	if err != nil {
		t.Fatal(err)
	}

	if sourceConfig.Name != "platformer" {
		t.Errorf("Expected name 'platformer', got '%s'", sourceConfig.Name)
	}
	if sourceConfig.Title != "Platformer" {
		t.Errorf("Expected title 'Platformer', got '%s'", sourceConfig.Title)
	}
	if sourceConfig.Category != "technology" {
		t.Errorf("Expected category 'technology', got '%s'", sourceConfig.Category)
	}
	if sourceConfig.Settings.RefreshInterval != 1800 {
		t.Errorf("Expected refresh interval 1800, got %d", sourceConfig.Settings.RefreshInterval)
	}
	if sourceConfig.Settings.MaxItems != 25 {
		t.Errorf("Expected max items 25, got %d", sourceConfig.Settings.MaxItems)
	}
	if len(sourceConfig.Filters) != 1 {
		t.Errorf("Expected 1 filter, got %d", len(sourceConfig.Filters))
	}
}

func TestConfigCacheLoadConfigWithDefaults(t *testing.T) {
	tempDir := t.TempDir()

	writeSource(t, tempDir, "minimal", `url: "https://example.com/feed.xml"`)

	configCache := NewConfigCache(tempDir)
	if err := configCache.Run(); err != nil {
		t.Fatal(err)
	}

	sourceConfig, err := configCache.GetConfig("minimal")
	if err != nil {
		t.Fatal(err)
	}

	if !sourceConfig.Settings.Enabled {
		t.Error("Expected sources to be enabled by default")
	}
	if sourceConfig.Title != "minimal" {
		t.Errorf("Expected title to default to name, got '%s'", sourceConfig.Title)
	}
	if sourceConfig.Settings.RefreshInterval != 3600 {
		t.Errorf("Expected default refresh interval 3600, got %d", sourceConfig.Settings.RefreshInterval)
	}
	if sourceConfig.Settings.MaxItems != 50 {
		t.Errorf("Expected default max items 50, got %d", sourceConfig.Settings.MaxItems)
	}
	if sourceConfig.Settings.Timeout != 30 {
		t.Errorf("Expected default timeout 30, got %d", sourceConfig.Settings.Timeout)
	}
}

func TestConfigCacheSourceWithoutURL(t *testing.T) {
	tempDir := t.TempDir()

	writeSource(t, tempDir, "submissions", `
title: "User submissions"
category: "reading-list"
`)

	configCache := NewConfigCache(tempDir)
	if err := configCache.Run(); err != nil {
		t.Fatalf("Expected feedless source to load, got %v", err)
	}

	sourceConfig, err := configCache.GetConfig("submissions")
	if err != nil {
		t.Fatal(err)
	}
	if sourceConfig.URL != "" {
		t.Errorf("Expected empty URL, got %q", sourceConfig.URL)
	}
}

func TestConfigCacheInvalidConfig(t *testing.T) {
	tests := []struct {
		name    string
		content string
		errText string
	}{
		{"relative url", `url: "/feed.xml"`, "absolute http(s) URL"},
		{"negative interval", "url: \"https://example.com/rss\"\nsettings:\n  refresh_interval: -1", "refresh interval"},
		{"bad filter field", "filters:\n  - field: \"body\"\n    includes: [\"x\"]", "invalid filter field"},
		{"empty filter", "filters:\n  - field: \"title\"", "at least one include or exclude"},
		{"broken yaml", "settings: [", "failed to parse YAML"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tempDir := t.TempDir()
			writeSource(t, tempDir, "broken", tt.content)

			err := NewConfigCache(tempDir).Run()
			if err == nil {
				t.Fatal("Expected error for invalid source")
			}
			if !strings.Contains(err.Error(), tt.errText) {
				t.Errorf("Expected error containing %q, got %v", tt.errText, err)
			}
		})
	}
}

func TestConfigCacheMissingDirectory(t *testing.T) {
	configCache := NewConfigCache(filepath.Join(t.TempDir(), "absent"))
	if err := configCache.Run(); err != nil {
		t.Fatalf("Expected no error for missing directory, got %v", err)
	}
	if configCache.GetConfigCount() != 0 {
		t.Errorf("Expected 0 sources, got %d", configCache.GetConfigCount())
	}
}

func TestConfigCacheGetConfigsSorted(t *testing.T) {
	tempDir := t.TempDir()
	writeSource(t, tempDir, "zeta", `url: "https://zeta.example.com/rss"`)
	writeSource(t, tempDir, "alpha", `url: "https://alpha.example.com/rss"`)
	writeSource(t, tempDir, "mid", "settings:\n  enabled: false")

	configCache := NewConfigCache(tempDir)
	if err := configCache.Run(); err != nil {
		t.Fatal(err)
	}

	configs := configCache.GetConfigs()
	if len(configs) != 3 {
		t.Fatalf("Expected 3 sources, got %d", len(configs))
	}
	names := []string{configs[0].Name, configs[1].Name, configs[2].Name}
	if strings.Join(names, ",") != "alpha,mid,zeta" {
		t.Errorf("Expected sorted names, got %v", names)
	}
	if configs[1].Settings.Enabled {
		t.Error("Expected 'mid' to be disabled")
	}

	if _, err := configCache.GetConfig("missing"); err == nil {
		t.Error("Expected error for unknown source")
	}
}

func TestConfigCacheValidateConfigNil(t *testing.T) {
	configCache := NewConfigCache(t.TempDir())
	if err := configCache.validateConfig(nil); err == nil {
		t.Error("Expected error for nil config")
	}
}
