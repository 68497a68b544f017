package crawler

import (
	"html"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// extractor pulls one candidate value for a field out of a parsed document.
type extractor func(doc *goquery.Document) string

// firstMatch runs extractors in order and returns the first non-empty,
// trimmed result. An empty return means no alternative matched; callers
// treat that as a null field, not an error.
func firstMatch(doc *goquery.Document, extractors ...extractor) string {
	for _, ex := range extractors {
		if v := strings.TrimSpace(ex(doc)); v != "" {
			return v
		}
	}
	return ""
}

var (
	htmlTagRegex   = regexp.MustCompile(`<[^>]*>`)
	blockTagRegex  = regexp.MustCompile(`(?i)<(?:br\s*/?|/p|/li|/ul|/ol|/div|/h[1-6]|/tr)>`)
	blankLineRegex = regexp.MustCompile(`\n{2,}`)
)

// htmlToText converts an HTML fragment to plain text. Block-level closing
// tags become line breaks so the description keeps its paragraph and list
// structure; remaining tags are stripped, entities unescaped, and runs of
// blank lines collapsed.
func htmlToText(content string) string {
	withBreaks := blockTagRegex.ReplaceAllString(content, "\n")
	plain := htmlTagRegex.ReplaceAllString(withBreaks, "")
	plain = html.UnescapeString(plain)

	lines := strings.Split(plain, "\n")
	for i, line := range lines {
		lines[i] = strings.Join(strings.Fields(line), " ")
	}
	out := strings.Join(lines, "\n")
	out = blankLineRegex.ReplaceAllString(out, "\n")
	return strings.TrimSpace(out)
}

// selectionText renders a goquery selection as text with one line per block
// element, dropping blank lines. Used for the guest-source description node.
func selectionText(sel *goquery.Selection) string {
	raw, err := sel.Html()
	if err != nil {
		return strings.TrimSpace(sel.Text())
	}
	return htmlToText(raw)
}
