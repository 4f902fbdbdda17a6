package feed

import (
	"bytes"
	"cmp"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
)

const UntitledEntry = "Untitled"

type Parser struct {
	gofeedParser *gofeed.Parser
	now          func() time.Time
}

func NewParser(now func() time.Time) *Parser {
	if now == nil {
		now = time.Now
	}
	return &Parser{
		gofeedParser: gofeed.NewParser(),
		now:          now,
	}
}

// Run parses an RSS or Atom document into entries. Missing titles become
// "Untitled", missing bodies stay empty and missing dates use the clock.
func (p *Parser) Run(data []byte) ([]Entry, error) {
	parsed, err := p.gofeedParser.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	entries := make([]Entry, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		if item == nil {
			continue
		}
		entries = append(entries, p.normalizeItem(item))
	}

	return entries, nil
}

func (p *Parser) normalizeItem(item *gofeed.Item) Entry {
	entry := Entry{
		Title:      cmp.Or(strings.TrimSpace(item.Title), UntitledEntry),
		URL:        strings.TrimSpace(item.Link),
		Content:    htmlToText(cmp.Or(item.Content, item.Description)),
		Author:     p.extractAuthor(item),
		Categories: item.Categories,
	}

	switch {
	case item.PublishedParsed != nil:
		entry.PublishedAt = item.PublishedParsed.UTC()
	case item.UpdatedParsed != nil:
		entry.PublishedAt = item.UpdatedParsed.UTC()
	default:
		entry.PublishedAt = p.now().UTC()
	}

	return entry
}

func (p *Parser) extractAuthor(item *gofeed.Item) string {
	var authors []string
	for _, author := range item.Authors {
		if author == nil {
			continue
		}
		if name := cmp.Or(strings.TrimSpace(author.Name), strings.TrimSpace(author.Email)); name != "" {
			authors = append(authors, name)
		}
	}
	if len(authors) == 0 && item.Author != nil {
		if name := cmp.Or(strings.TrimSpace(item.Author.Name), strings.TrimSpace(item.Author.Email)); name != "" {
			authors = append(authors, name)
		}
	}
	return strings.Join(authors, ", ")
}

// htmlToText flattens an HTML fragment into whitespace-normalized text.
func htmlToText(fragment string) string {
	fragment = strings.TrimSpace(fragment)
	if fragment == "" {
		return ""
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return strings.Join(strings.Fields(fragment), " ")
	}
	doc.Find("script, style").Remove()

	return strings.Join(strings.Fields(doc.Text()), " ")
}
