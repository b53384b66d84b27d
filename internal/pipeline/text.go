package pipeline

import (
	"regexp"
	"strings"
)

var (
	replyPrefix = regexp.MustCompile(`(?i)^\s*(re|fw|fwd)\s*:\s*`)
	htmlTag     = regexp.MustCompile(`<[^>]*>`)
	blankLines  = regexp.MustCompile(`\n{3,}`)
)

// CleanSubject strips any leading RE:, FW: and FWD: prefixes.
func CleanSubject(subject string) string {
	for {
		stripped := replyPrefix.ReplaceAllString(subject, "")
		if stripped == subject {
			return strings.TrimSpace(subject)
		}
		subject = stripped
	}
}

// HTMLToText converts an HTML body to plain text (simple implementation)
func HTMLToText(html string) string {
	text := html

	replacements := []struct {
		from string
		to   string
	}{
		{"<br>", "\n"},
		{"<br/>", "\n"},
		{"<br />", "\n"},
		{"<p>", "\n"},
		{"</p>", "\n"},
		{"<div>", "\n"},
		{"</div>", "\n"},
		{"&nbsp;", " "},
	}
	for _, r := range replacements {
		text = strings.ReplaceAll(text, r.from, r.to)
	}

	text = htmlTag.ReplaceAllString(text, "")

	// entities last so decoded brackets are not taken for tags
	text = strings.NewReplacer("&lt;", "<", "&gt;", ">", "&quot;", "\"", "&#39;", "'", "&amp;", "&").Replace(text)

	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = blankLines.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}
