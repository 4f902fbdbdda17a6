package extractor

// domainSelectors maps a registrable domain to content selectors tried in order.
var domainSelectors = map[string][]string{
	"substack.com":     {".available-content", ".body.markup", "article"},
	"medium.com":       {"article", "section"},
	"beehiiv.com":      {"#content-blocks", ".rendered-post", "article"},
	"ghost.io":         {".gh-content", ".post-content", "article"},
	"buttondown.email": {".email-body", "article"},
	"nytimes.com":      {"section[name=articleBody]", "article"},
	"theverge.com":     {".duet--article--article-body-component", "article"},
	"techcrunch.com":   {".wp-block-post-content", ".article-content", "article"},
	"arstechnica.com":  {".post-content", ".article-content", "article"},
	"wired.com":        {".body__inner-container", "article"},
	"theguardian.com":  {"#maincontent", "article"},
	"bbc.co.uk":        {"main article", "#main-content"},
	"bbc.com":          {"main article", "#main-content"},
	"github.com":       {".markdown-body", "article"},
	"dev.to":           {"#article-body", ".crayons-article__body", "article"},
	"wikipedia.org":    {"#mw-content-text", ".mw-parser-output"},
}

var defaultSelectors = []string{"article", "body"}

// SelectorsFor returns the selector list for a registrable domain.
func SelectorsFor(domain string) []string {
	if selectors, ok := domainSelectors[domain]; ok {
		return selectors
	}
	return defaultSelectors
}
