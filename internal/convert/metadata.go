package convert

import (
	"net/url"
	"regexp"
	"strings"
)

// wordsPerMinute is the average reading speed used for reading time.
const wordsPerMinute = 200

// DefaultDescription is the fallback when no suitable line exists.
const DefaultDescription = "Clean markdown conversion from webpage"

// markdownPunctuation strips formatting characters before word counting
// and description selection.
var markdownPunctuation = regexp.MustCompile("[#*`_\\[\\]()]+")

// ExtractTitle returns the first markdown heading within the first ten
// lines, or the empty string.
func ExtractTitle(markdown string) string {
	lines := strings.Split(markdown, "\n")
	if len(lines) > 10 {
		lines = lines[:10]
	}
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "# ") {
			return strings.TrimSpace(line[2:])
		}
	}
	return ""
}

// CountWords counts whitespace-separated tokens after stripping markdown
// punctuation.
func CountWords(text string) int {
	clean := markdownPunctuation.ReplaceAllString(text, "")
	return len(strings.Fields(clean))
}

// ReadingTime converts a word count to whole minutes, never below one.
// Exact half minutes round to the nearest even count, so a 500-word page
// reads as 2 minutes, not 3.
func ReadingTime(wordCount int) int {
	minutes := wordCount / wordsPerMinute
	rem := wordCount % wordsPerMinute
	if rem > wordsPerMinute/2 || (rem == wordsPerMinute/2 && minutes%2 == 1) {
		minutes++
	}
	if minutes < 1 {
		return 1
	}
	return minutes
}

// Domain extracts the host of a source URL with a leading "www." stripped.
func Domain(sourceURL string) string {
	u, err := url.Parse(sourceURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}

// Description derives a short description: the first cleaned line longer
// than 50 characters that does not start with the title. When the title is
// empty every line trivially "starts with" it, so the fallback literal is
// used; that mirrors the established behavior and keeps descriptions
// stable.
func Description(content, title string) string {
	clean := markdownPunctuation.ReplaceAllString(content, "")

	description := ""
	for _, line := range strings.Split(clean, "\n") {
		line = strings.TrimSpace(line)
		if len(line) > 50 && !strings.HasPrefix(line, title) {
			description = line
			break
		}
	}

	if description == "" {
		description = DefaultDescription
	}

	// Cap at 197 characters total so the stored column (200) keeps room.
	if len(description) > 197 {
		description = description[:194] + "..."
	}
	return description
}
