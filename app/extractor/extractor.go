package extractor

import (
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/publicsuffix"
	"golang.org/x/text/unicode/norm"
)

// MinSelectorLength is the trimmed text length a selector match must exceed to be accepted.
const MinSelectorLength = 200

var (
	whitespace  = regexp.MustCompile(`\s+`)
	boilerplate = regexp.MustCompile(`(?i)subscribe|get the app|log in`)
)

type Extractor struct{}

func New() *Extractor {
	return &Extractor{}
}

// ExtractMainContent returns the cleaned main body text of html.
// It never fails: unparsable or empty documents yield an empty string.
func (e *Extractor) ExtractMainContent(html, sourceURL string) string {
	if strings.TrimSpace(html) == "" {
		return ""
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	doc.Find("script, style, noscript, template").Remove()

	for _, selector := range SelectorsFor(RegistrableDomain(sourceURL)) {
		text := strings.TrimSpace(doc.Find(selector).First().Text())
		if utf8.RuneCountInString(text) > MinSelectorLength {
			return CleanText(text)
		}
	}

	return CleanText(densestText(doc))
}

// densestText returns the text of the body descendant with the most trimmed text.
func densestText(doc *goquery.Document) string {
	best := ""
	doc.Find("body *").Each(func(_ int, s *goquery.Selection) {
		text := strings.TrimSpace(s.Text())
		if len(text) > len(best) {
			best = text
		}
	})
	return best
}

// CleanText collapses whitespace runs and cuts the text at the first
// subscription or login call-to-action.
func CleanText(text string) string {
	text = norm.NFC.String(text)
	text = whitespace.ReplaceAllString(text, " ")

	if loc := boilerplate.FindStringIndex(text); loc != nil {
		text = text[:loc[0]]
	}

	return strings.TrimSpace(text)
}

// RegistrableDomain returns the eTLD+1 of rawURL, e.g. "substack.com" for
// "https://news.substack.com/p/x". Unknown suffixes fall back to the host without "www.".
func RegistrableDomain(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return ""
	}

	host := strings.ToLower(u.Hostname())
	if host == "" {
		return ""
	}

	domain, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return strings.TrimPrefix(host, "www.")
	}
	return domain
}
