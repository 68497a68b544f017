package crawler

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
)

func parseDoc(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return doc
}

func TestFirstMatch_OrderedFallback(t *testing.T) {
	doc := parseDoc(t, `<div><span class="b">  second  </span></div>`)

	got := firstMatch(doc,
		func(d *goquery.Document) string { return d.Find(".a").Text() }, // misses
		func(d *goquery.Document) string { return d.Find(".b").Text() },
		func(d *goquery.Document) string { return "never reached" },
	)
	if got != "second" {
		t.Errorf("expected trimmed second extractor value, got %q", got)
	}
}

func TestFirstMatch_AllMissYieldsEmpty(t *testing.T) {
	doc := parseDoc(t, `<div></div>`)
	got := firstMatch(doc,
		func(d *goquery.Document) string { return d.Find(".a").Text() },
		func(d *goquery.Document) string { return "   " }, // whitespace is a miss
	)
	if got != "" {
		t.Errorf("expected empty, got %q", got)
	}
}

func TestHTMLToText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "paragraphs and lists",
			in:   "<p>Intro text.</p><ul><li>One</li><li>Two</li></ul><p>Outro.</p>",
			want: "Intro text.\nOne\nTwo\nOutro.",
		},
		{
			name: "br and entities",
			in:   "Pay: S&amp;P benchmarked<br>Apply&nbsp;now",
			want: "Pay: S&P benchmarked\nApply now",
		},
		{
			name: "collapses blank lines and inner whitespace",
			in:   "<div>  spaced   out  </div>\n\n\n<div>next</div>",
			want: "spaced out\nnext",
		},
		{
			name: "plain text unchanged",
			in:   "already plain",
			want: "already plain",
		},
		{
			name: "empty",
			in:   "",
			want: "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := htmlToText(tt.in); got != tt.want {
				t.Errorf("htmlToText(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
