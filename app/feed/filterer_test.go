package feed

import (
	"strings"
	"testing"
)

func TestFiltererNoFilters(t *testing.T) {
	filterer := NewFilterer()

	entries := []Entry{
		{Title: "Issue 1", Content: "First issue"},
		{Title: "Issue 2", Content: "Second issue"},
	}

	kept, rejected := filterer.Run(entries, nil)

	if len(kept) != 2 {
		t.Errorf("Expected 2 entries, got %d", len(kept))
	}
	if rejected != 0 {
		t.Errorf("Expected 0 rejected, got %d", rejected)
	}
}

func TestFiltererTitleInclude(t *testing.T) {
	filterer := NewFilterer()

	entries := []Entry{
		{Title: "Weekly Digest: AI"},
		{Title: "Sponsor spotlight"},
		{Title: "Weekly digest: Rust"},
	}
	filters := []ConfigFilter{{Field: "title", Includes: []string{"digest"}}}

	kept, rejected := filterer.Run(entries, filters)

	if len(kept) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(kept))
	}
	if rejected != 1 {
		t.Errorf("Expected 1 rejected, got %d", rejected)
	}
	if kept[0].Title != "Weekly Digest: AI" || kept[1].Title != "Weekly digest: Rust" {
		t.Errorf("Expected input order to be preserved, got %q, %q", kept[0].Title, kept[1].Title)
	}
}

func TestFiltererExcludeWins(t *testing.T) {
	filterer := NewFilterer()

	entries := []Entry{
		{Title: "Digest", Content: "This issue is sponsored by Acme"},
		{Title: "Digest", Content: "Plain issue"},
	}
	filters := []ConfigFilter{
		{Field: "title", Includes: []string{"digest"}},
		{Field: "content", Excludes: []string{"SPONSORED"}},
	}

	kept, _ := filterer.Run(entries, filters)

	if len(kept) != 1 {
		t.Fatalf("Expected 1 entry, got %d", len(kept))
	}
	if kept[0].Content != "Plain issue" {
		t.Errorf("Expected the unsponsored entry, got %q", kept[0].Content)
	}
}

func TestFiltererCheckReason(t *testing.T) {
	filterer := NewFilterer()

	tests := []struct {
		name     string
		entry    Entry
		filters  []ConfigFilter
		rejected bool
		reason   string
	}{
		{
			name:     "author exclude",
			entry:    Entry{Author: "Ghost Writer"},
			filters:  []ConfigFilter{{Field: "author", Excludes: []string{"ghost"}}},
			rejected: true,
			reason:   "Excluded by author filter",
		},
		{
			name:     "categories include miss",
			entry:    Entry{Categories: []string{"sports", "weather"}},
			filters:  []ConfigFilter{{Field: "categories", Includes: []string{"tech"}}},
			rejected: true,
			reason:   "does not contain any of",
		},
		{
			name:    "url include hit",
			entry:   Entry{URL: "https://example.com/p/ai-news"},
			filters: []ConfigFilter{{Field: "url", Includes: []string{"/p/"}}},
		},
		{
			name:    "unknown field has empty value",
			entry:   Entry{Title: "Anything"},
			filters: []ConfigFilter{{Field: "nope", Excludes: []string{"any"}}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rejected, reason := filterer.Check(tt.entry, tt.filters)
			if rejected != tt.rejected {
				t.Errorf("Expected rejected=%v, got %v", tt.rejected, rejected)
			}
			if !strings.Contains(reason, tt.reason) {
				t.Errorf("Expected reason to contain %q, got %q", tt.reason, reason)
			}
		})
	}
}
