package generation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// SystemPrompt is sent as the system message by chat-style providers.
const SystemPrompt = "You are a professional blog writer who creates SEO-optimized, engaging content."

// ImagePlaceholderSyntax is the marker the model is asked to emit for inline images.
const ImagePlaceholderSyntax = "[IMAGE: <description>]"

var stylisticRequirements = []string{
	"Write in an engaging, conversational tone",
	"Include a compelling title",
	"Structure with clear headings and subheadings",
	"Include an introduction, main content, and conclusion",
	"Optimize for SEO with proper keyword density",
}

// Build assembles the generation prompt. The output depends only on its
// inputs. Requirements are numbered in a fixed order: keywords, the stylistic
// requirements, the inline image instructions (when enabled) and the hashtags
// last.
func Build(topic string, keywords, hashtags []string, opts Options) string {
	var reqs []string

	if len(keywords) > 0 {
		reqs = append(reqs, "Include these keywords naturally: "+strings.Join(keywords, ", "))
	}

	reqs = append(reqs, stylisticRequirements...)

	if opts.InlineImages {
		reqs = append(reqs,
			"Where an illustration would help the reader, insert an image placeholder on its own line using exactly this syntax: "+
				ImagePlaceholderSyntax+
				". Describe the image in one sentence. Use at most three placeholders and do not place one before the title")
	}

	if len(hashtags) > 0 {
		reqs = append(reqs, "Add these hashtags at the end: "+strings.Join(hashtags, " "))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Write a comprehensive, SEO-optimized blog post about: %s\n\n", topic)
	b.WriteString("Requirements:\n")
	for i, r := range reqs {
		fmt.Fprintf(&b, "%d. %s\n", i+1, r)
	}
	b.WriteString("\nFormat the response with HTML tags (h1, h2, p, ul, li, etc.)")

	return b.String()
}

// InlineImagePrompt builds the image prompt for one placeholder.
func InlineImagePrompt(topic, description string) string {
	return fmt.Sprintf(
		"Create a clear, high quality illustration for a blog post about %s. The image should show: %s. No text or watermarks in the image.",
		topic, description)
}

// FeaturedImagePrompt builds the prompt for a document's header image.
func FeaturedImagePrompt(title, topic string) string {
	return fmt.Sprintf(
		"Create a professional, eye-catching blog header image for a blog post titled %q about %s. The image should be visually appealing, modern, and relevant to the topic.",
		title, topic)
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// SanitizeForPrompt drops invalid UTF-8 and control characters and collapses
// whitespace so user-provided text can be embedded in a prompt.
func SanitizeForPrompt(s string) string {
	s = strings.ToValidUTF8(s, "")
	s = strings.Map(func(r rune) rune {
		if r == utf8.RuneError || (unicode.IsControl(r) && !unicode.IsSpace(r)) {
			return -1
		}
		return r
	}, s)
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(s, " "))
}
