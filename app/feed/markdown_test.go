package feed

import (
	"strings"
	"testing"
)

func TestMarkdownToHTML(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		contains []string
		absent   []string
	}{
		{
			name:     "empty",
			input:    "",
			contains: nil,
		},
		{
			name:     "hard line breaks",
			input:    "line one\nline two",
			contains: []string{"line one<br", "line two"},
		},
		{
			name:     "table",
			input:    "| a | b |\n|---|---|\n| 1 | 2 |",
			contains: []string{"<table>", "<td>1</td>"},
		},
		{
			name:     "strikethrough",
			input:    "~~gone~~",
			contains: []string{"<del>gone</del>"},
		},
		{
			name:     "autolink",
			input:    "see https://example.com now",
			contains: []string{`<a href="https://example.com"`},
		},
		{
			name:     "task list",
			input:    "- [ ] todo\n- [x] done",
			contains: []string{`<input type="checkbox" disabled="" /> todo`, `<input type="checkbox" checked="" disabled="" /> done`},
			absent:   []string{"[ ]", "[x]"},
		},
		{
			name:     "emoji",
			input:    "ship it :rocket: :unknown_code:",
			contains: []string{"\U0001F680", ":unknown_code:"},
			absent:   []string{":rocket:"},
		},
		{
			name:     "emoji beyond the common set",
			input:    "great work :smiley: :100:",
			contains: []string{"\U0001F603", "\U0001F4AF"},
			absent:   []string{":smiley:", ":100:"},
		},
		{
			name:     "escapes text in replaced nodes",
			input:    "a <b> :tada:",
			contains: []string{"\U0001F389"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MarkdownToHTML(tt.input)
			if tt.input == "" && got != "" {
				t.Errorf("Expected empty output, got %q", got)
			}
			for _, want := range tt.contains {
				if !strings.Contains(got, want) {
					t.Errorf("Expected %q to contain %q", got, want)
				}
			}
			for _, unwanted := range tt.absent {
				if strings.Contains(got, unwanted) {
					t.Errorf("Expected %q not to contain %q", got, unwanted)
				}
			}
		})
	}
}
