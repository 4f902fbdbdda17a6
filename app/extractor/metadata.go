package extractor

import (
	"log/slog"
	"net/url"
	"strings"

	"github.com/go-shiori/go-readability"
)

// Metadata holds attribution details used to credit the original author and publisher.
type Metadata struct {
	Title    string
	Byline   string
	SiteName string
}

func (m Metadata) Empty() bool {
	return m.Title == "" && m.Byline == "" && m.SiteName == ""
}

// ExtractMetadata reads title, byline and site name with readability.
// Failures yield empty metadata.
func (e *Extractor) ExtractMetadata(html, sourceURL string) Metadata {
	if strings.TrimSpace(html) == "" {
		return Metadata{}
	}

	pageURL, err := url.Parse(sourceURL)
	if err != nil || pageURL.Host == "" {
		pageURL = nil
	}

	article, err := readability.FromReader(strings.NewReader(html), pageURL)
	if err != nil {
		slog.Debug("Metadata extraction failed", "url", sourceURL, "error", err)
		return Metadata{}
	}

	return Metadata{
		Title:    strings.TrimSpace(article.Title),
		Byline:   strings.TrimSpace(article.Byline),
		SiteName: strings.TrimSpace(article.SiteName),
	}
}
