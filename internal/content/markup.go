package content

import (
	"bytes"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/yuin/goldmark"
	"golang.org/x/net/html"
)

var blockElements = map[string]bool{
	"p": true, "div": true, "br": true, "li": true, "ul": true, "ol": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"blockquote": true, "pre": true, "figure": true, "figcaption": true,
	"section": true, "article": true, "tr": true, "table": true,
}

// StripTags removes all markup from s and returns its text. Block-level
// elements are separated by newlines. Script and style bodies are dropped.
func StripTags(s string) string {
	z := html.NewTokenizer(strings.NewReader(s))
	var b strings.Builder
	skip := 0
	for {
		switch z.Next() {
		case html.ErrorToken:
			// io.EOF or malformed input; either way the text so far is the result.
			return b.String()
		case html.TextToken:
			if skip == 0 {
				b.Write(z.Text())
			}
		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			tag := string(name)
			if tag == "script" || tag == "style" {
				skip++
			}
			if tag == "br" {
				b.WriteByte('\n')
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			tag := string(name)
			if (tag == "script" || tag == "style") && skip > 0 {
				skip--
			}
			if blockElements[tag] {
				b.WriteByte('\n')
			}
		}
	}
}

// Truncate shortens s to at most limit runes. Longer strings keep their
// first limit-3 runes followed by "...".
func Truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit-3]) + "..."
}

var (
	htmlTagPattern        = regexp.MustCompile(`(?i)<(h[1-6]|p|div|ul|ol|li|article|section)[\s>]`)
	markdownHeadingPrefix = regexp.MustCompile(`(?m)^#{1,6}\s+\S`)
)

// looksLikeMarkdown reports whether s uses Markdown headings and carries no
// block-level HTML.
func looksLikeMarkdown(s string) bool {
	return markdownHeadingPrefix.MatchString(s) && !htmlTagPattern.MatchString(s)
}

// renderMarkdown converts Markdown to HTML. The input is returned unchanged
// when conversion fails.
func renderMarkdown(s string) string {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(s), &buf); err != nil {
		return s
	}
	return buf.String()
}
