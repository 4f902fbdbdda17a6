package feed

import (
	"bytes"
	"io"
	"regexp"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/ast"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
	"github.com/kyokomi/emoji/v2"
)

const markdownExtensions = parser.CommonExtensions |
	parser.HardLineBreak |
	parser.Tables |
	parser.Strikethrough |
	parser.Autolink

var (
	emojiPattern = regexp.MustCompile(`:[a-zA-Z0-9_+\-]+:`)
	taskPattern  = regexp.MustCompile(`^\[([ xX])\]\s+`)
)

var emojiCodes = emoji.CodeMap()

// MarkdownToHTML converts markdown with line breaks, tables, strikethrough,
// autolinks, task list checkboxes and :emoji: shortcodes.
func MarkdownToHTML(source string) string {
	if source == "" {
		return ""
	}

	p := parser.NewWithExtensions(markdownExtensions)
	doc := p.Parse([]byte(source))

	renderer := html.NewRenderer(html.RendererOptions{
		Flags:          html.CommonFlags,
		RenderNodeHook: renderTextHook,
	})

	return string(bytes.TrimSpace(markdown.Render(doc, renderer)))
}

// renderTextHook takes over text nodes that carry a task marker or an emoji
// shortcode. Everything else goes through the default renderer.
func renderTextHook(w io.Writer, node ast.Node, entering bool) (ast.WalkStatus, bool) {
	text, ok := node.(*ast.Text)
	if !ok || !entering {
		return ast.GoToNext, false
	}

	literal := text.Literal
	checkbox := ""
	if isFirstInListItem(text) {
		if m := taskPattern.FindSubmatch(literal); m != nil {
			checkbox = `<input type="checkbox" disabled="" /> `
			if m[1][0] != ' ' {
				checkbox = `<input type="checkbox" checked="" disabled="" /> `
			}
			literal = literal[len(m[0]):]
		}
	}

	if checkbox == "" && !hasKnownEmoji(literal) {
		return ast.GoToNext, false
	}

	io.WriteString(w, checkbox)
	html.EscapeHTML(w, replaceEmoji(literal))
	return ast.GoToNext, true
}

func isFirstInListItem(node ast.Node) bool {
	parent := node.GetParent()
	if parent == nil {
		return false
	}
	if _, ok := parent.(*ast.Paragraph); ok {
		children := parent.GetChildren()
		if len(children) == 0 || children[0] != node {
			return false
		}
		node, parent = parent, parent.GetParent()
	}
	if _, ok := parent.(*ast.ListItem); !ok {
		return false
	}
	children := parent.GetChildren()
	return len(children) > 0 && children[0] == node
}

func hasKnownEmoji(text []byte) bool {
	for _, m := range emojiPattern.FindAll(text, -1) {
		if _, ok := emojiCodes[string(m)]; ok {
			return true
		}
	}
	return false
}

func replaceEmoji(text []byte) []byte {
	return emojiPattern.ReplaceAllFunc(text, func(match []byte) []byte {
		if code, ok := emojiCodes[string(match)]; ok {
			return []byte(code)
		}
		return match
	})
}
