package domain

import "strings"

// Topic is a subject the pipeline can write about.
type Topic struct {
	ID       int64    `json:"id"`
	Text     string   `json:"text"`
	Keywords []string `json:"keywords"`
	Hashtags []string `json:"hashtags"`
	Active   bool     `json:"active"`
}

// SplitList splits a comma separated list, trimming blanks and dropping empties.
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// NormalizeHashtags trims each tag and ensures it starts with '#'.
func NormalizeHashtags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if !strings.HasPrefix(tag, "#") {
			tag = "#" + tag
		}
		out = append(out, tag)
	}
	return out
}
