package content

import (
	"regexp"
	"strings"
)

// UntitledTitle is used when no title can be derived.
const UntitledTitle = "Untitled Post"

const (
	titleLimit   = 100
	excerptLimit = 150
)

var (
	h1Pattern  = regexp.MustCompile(`(?is)<h1[^>]*>(.*?)</h1>`)
	whitespace = regexp.MustCompile(`\s+`)
)

// Parsed is provider output split into title and body.
type Parsed struct {
	Title string
	Body  string
}

// Parse extracts the title and body from raw provider output.
//
// The title is the text of the first <h1>, which is then removed from the
// body. Without an <h1> the first non-empty line of the text is used,
// truncated to 100 characters. Markdown output is rendered to HTML first.
func Parse(raw string) Parsed {
	raw = strings.TrimSpace(raw)
	if looksLikeMarkdown(raw) {
		raw = strings.TrimSpace(renderMarkdown(raw))
	}

	var title string
	body := raw

	if loc := h1Pattern.FindStringSubmatchIndex(raw); loc != nil {
		title = strings.TrimSpace(StripTags(raw[loc[2]:loc[3]]))
		title = whitespace.ReplaceAllString(title, " ")
		body = raw[:loc[0]] + raw[loc[1]:]
	} else {
		title = firstLine(StripTags(raw))
		if title != "" {
			title = Truncate(title, titleLimit)
		}
	}

	if title == "" {
		title = UntitledTitle
	}

	return Parsed{Title: title, Body: strings.TrimSpace(body)}
}

func firstLine(text string) string {
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return ""
}

// Excerpt returns the plain-text summary of body: markup stripped,
// whitespace collapsed and truncated to 150 characters.
func Excerpt(body string) string {
	text := strings.TrimSpace(whitespace.ReplaceAllString(StripTags(body), " "))
	return Truncate(text, excerptLimit)
}

// Slug converts s into a lowercase, dash separated file name stem using its
// first 50 characters. It returns fallback when nothing usable remains.
func Slug(s, fallback string) string {
	runes := []rune(s)
	if len(runes) > 50 {
		runes = runes[:50]
	}
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(string(runes)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		default:
			if b.Len() > 0 && !dash {
				b.WriteByte('-')
				dash = true
			}
		}
	}
	out := strings.Trim(b.String(), "-")
	if out == "" {
		return fallback
	}
	return out
}
