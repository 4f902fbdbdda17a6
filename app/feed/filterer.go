package feed

import (
	"fmt"
	"strings"
)

var validFilterFields = map[string]bool{
	"title":      true,
	"content":    true,
	"author":     true,
	"url":        true,
	"categories": true,
}

// Filterer drops entries that a source's include/exclude rules reject.
type Filterer struct{}

func NewFilterer() *Filterer {
	return &Filterer{}
}

// Run returns the entries that pass all filters and the number rejected.
func (f *Filterer) Run(entries []Entry, filters []ConfigFilter) ([]Entry, int) {
	if len(filters) == 0 {
		return entries, 0
	}

	kept := make([]Entry, 0, len(entries))
	for _, entry := range entries {
		if rejected, _ := f.Check(entry, filters); rejected {
			continue
		}
		kept = append(kept, entry)
	}

	return kept, len(entries) - len(kept)
}

// Check reports whether the entry is rejected and why.
func (f *Filterer) Check(entry Entry, filters []ConfigFilter) (bool, string) {
	for _, filter := range filters {
		value := f.getFieldValue(entry, filter.Field)

		for _, exclude := range filter.Excludes {
			if f.matchesFilter(value, exclude) {
				return true, fmt.Sprintf("Excluded by %s filter: contains '%s'", filter.Field, exclude)
			}
		}

		if len(filter.Includes) > 0 {
			matched := false
			for _, include := range filter.Includes {
				if f.matchesFilter(value, include) {
					matched = true
					break
				}
			}
			if !matched {
				return true, fmt.Sprintf("Excluded by %s filter: does not contain any of %v", filter.Field, filter.Includes)
			}
		}
	}

	return false, ""
}

func (f *Filterer) matchesFilter(value, pattern string) bool {
	return strings.Contains(strings.ToLower(value), strings.ToLower(pattern))
}

func (f *Filterer) getFieldValue(entry Entry, field string) string {
	switch field {
	case "title":
		return entry.Title
	case "content":
		return entry.Content
	case "author":
		return entry.Author
	case "url":
		return entry.URL
	case "categories":
		return strings.Join(entry.Categories, " ")
	default:
		return ""
	}
}
