package feed

import (
	"bytes"
	"cmp"
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/lysyi3m/rss-cast/app/database"
)

const (
	podcastCategory = "Technology"
	readOriginal    = "Read the original article"
)

var xmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	"'", "&apos;",
	`"`, "&quot;",
)

// Renderer turns enriched content items into a podcast RSS document.
// It keeps the caller's item order.
type Renderer struct {
	sizes SizeResolver
	now   func() time.Time
}

func NewRenderer(sizes SizeResolver, now func() time.Time) *Renderer {
	if now == nil {
		now = time.Now
	}
	return &Renderer{sizes: sizes, now: now}
}

func (r *Renderer) Render(ctx context.Context, items []database.ContentItem, info FeedInfo) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var buf bytes.Buffer

	buf.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	buf.WriteString("\n")
	buf.WriteString(`<rss version="2.0" xmlns:itunes="http://www.itunes.com/dtds/podcast-1.0.dtd" xmlns:content="http://purl.org/rss/1.0/modules/content/" xmlns:dc="http://purl.org/dc/elements/1.1/" xmlns:atom="http://www.w3.org/2005/Atom">`)
	buf.WriteString("\n  <channel>\n")

	base := strings.TrimRight(info.BaseURL, "/")
	selfLink := cmp.Or(info.FeedURL, fmt.Sprintf("%s/feeds/%s/%s", base, info.UserID, info.FeedID))
	coverURL := fmt.Sprintf("%s/feeds/%s/%s/cover.png", base, info.UserID, info.FeedID)
	link := cmp.Or(info.Link, base)

	r.writeElement(&buf, "title", info.Title, 4)
	r.writeElement(&buf, "link", link, 4)
	r.writeCDATA(&buf, "description", info.Description, 4)
	r.writeElement(&buf, "language", cmp.Or(info.Language, "en"), 4)
	buf.WriteString(fmt.Sprintf("    <atom:link href=\"%s\" rel=\"self\" type=\"application/rss+xml\" />\n", escapeXML(selfLink)))
	r.writeElement(&buf, "lastBuildDate", r.now().UTC().Format(time.RFC1123Z), 4)
	r.writeElement(&buf, "generator", info.Generator, 4)
	r.writeElement(&buf, "itunes:author", info.Author, 4)
	r.writeCDATA(&buf, "itunes:summary", info.Description, 4)
	r.writeElement(&buf, "itunes:explicit", "false", 4)
	buf.WriteString(fmt.Sprintf("    <itunes:image href=\"%s\" />\n", escapeXML(coverURL)))
	buf.WriteString(fmt.Sprintf("    <itunes:category text=\"%s\" />\n", escapeXML(podcastCategory)))

	buf.WriteString("    <image>\n")
	r.writeElement(&buf, "url", coverURL, 6)
	r.writeElement(&buf, "title", info.Title, 6)
	r.writeElement(&buf, "link", link, 6)
	buf.WriteString("    </image>\n")

	for _, item := range Episodes(items) {
		r.writeItem(ctx, &buf, item, info)
	}

	buf.WriteString("  </channel>\n</rss>\n")

	return buf.String(), nil
}

// Episodes keeps the items that have audio to publish.
func Episodes(items []database.ContentItem) []database.ContentItem {
	episodes := make([]database.ContentItem, 0, len(items))
	for _, item := range items {
		if len(item.AudioFiles) > 0 {
			episodes = append(episodes, item)
		}
	}
	return episodes
}

func (r *Renderer) writeItem(ctx context.Context, buf *bytes.Buffer, item database.ContentItem, info FeedInfo) {
	audio := item.AudioFiles[0]

	buf.WriteString("    <item>\n")

	r.writeElement(buf, "title", item.Title, 6)
	r.writeElement(buf, "link", item.URL, 6)
	buf.WriteString("      <guid isPermaLink=\"false\">")
	buf.WriteString(escapeXML(item.ID))
	buf.WriteString("</guid>\n")
	r.writeElement(buf, "pubDate", item.PublishedAt.UTC().Format(time.RFC1123Z), 6)
	r.writeElement(buf, "dc:creator", cmp.Or(item.Author, info.Author), 6)

	r.writeCDATA(buf, "description", cmp.Or(item.Summary, item.Title), 6)
	r.writeCDATA(buf, "content:encoded", articleEnvelope(item), 6)
	r.writeCDATA(buf, "itunes:summary", item.Summary, 6)
	r.writeElement(buf, "itunes:author", cmp.Or(item.Author, info.Author), 6)

	duration := 0
	if audio.Duration != nil {
		duration = *audio.Duration
	}
	r.writeElement(buf, "itunes:duration", FormatDuration(duration), 6)

	buf.WriteString(fmt.Sprintf("      <enclosure url=\"%s\" length=\"%d\" type=\"%s\" />\n",
		escapeXML(audio.FileURL),
		r.enclosureLength(ctx, audio),
		escapeXML(mimeType(audio.Format))))

	buf.WriteString("    </item>\n")
}

func (r *Renderer) enclosureLength(ctx context.Context, audio database.AudioFile) int64 {
	if audio.SizeBytes != nil && *audio.SizeBytes > 0 {
		return *audio.SizeBytes
	}
	if r.sizes == nil || audio.FileURL == "" {
		return 0
	}
	return r.sizes.ContentLength(ctx, audio.FileURL)
}

func (r *Renderer) writeElement(buf *bytes.Buffer, tag, content string, indent int) {
	if content == "" {
		return
	}

	buf.WriteString(strings.Repeat(" ", indent))
	buf.WriteString("<")
	buf.WriteString(tag)
	buf.WriteString(">")
	buf.WriteString(escapeXML(content))
	buf.WriteString("</")
	buf.WriteString(tag)
	buf.WriteString(">\n")
}

func (r *Renderer) writeCDATA(buf *bytes.Buffer, tag, content string, indent int) {
	if content == "" {
		return
	}

	buf.WriteString(strings.Repeat(" ", indent))
	buf.WriteString("<")
	buf.WriteString(tag)
	buf.WriteString(">")
	buf.WriteString(cdata(content))
	buf.WriteString("</")
	buf.WriteString(tag)
	buf.WriteString(">\n")
}

// articleEnvelope renders the item body as HTML with a backlink to the origin.
func articleEnvelope(item database.ContentItem) string {
	body := MarkdownToHTML(cmp.Or(item.ContentMarkdown, item.Summary))

	var b strings.Builder
	b.WriteString(`<div class="article">`)
	b.WriteString(body)
	if item.URL != "" {
		b.WriteString(`<p><a href="`)
		b.WriteString(escapeXML(item.URL))
		b.WriteString(`">`)
		b.WriteString(readOriginal)
		b.WriteString(`</a></p>`)
	}
	b.WriteString(`</div>`)
	return b.String()
}

// FormatDuration renders seconds as HH:MM:SS. Hours are not capped.
func FormatDuration(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d:%02d", seconds/3600, seconds%3600/60, seconds%60)
}

func escapeXML(s string) string {
	return xmlEscaper.Replace(stripInvalidXML(s))
}

func cdata(s string) string {
	return "<![CDATA[" + strings.ReplaceAll(stripInvalidXML(s), "]]>", "]]]]><![CDATA[>") + "]]>"
}

// stripInvalidXML drops runes outside the XML 1.0 character range.
func stripInvalidXML(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r == '\t' || r == '\n' || r == '\r':
			return r
		case r == utf8.RuneError:
			return -1
		case r >= 0x20 && r <= 0xD7FF:
			return r
		case r >= 0xE000 && r <= 0xFFFD:
			return r
		case r >= 0x10000 && r <= 0x10FFFF:
			return r
		default:
			return -1
		}
	}, s)
}

func mimeType(format string) string {
	switch strings.ToLower(format) {
	case "", database.AudioFormatMP3:
		return "audio/mpeg"
	case "m4a", "aac":
		return "audio/mp4"
	case "ogg", "opus":
		return "audio/ogg"
	case "wav":
		return "audio/wav"
	default:
		return "audio/" + strings.ToLower(format)
	}
}
