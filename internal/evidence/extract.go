// Package evidence extracts candidate former handles from post text and
// collects them into deduplicated sets.
package evidence

import (
	"regexp"
	"strings"
)

var (
	// Mentions addressed to an account that name its previous handle.
	mentionPatterns = []*regexp.Regexp{
		regexp.MustCompile(`formerly @([a-z0-9_]+)`),
		regexp.MustCompile(`previously @([a-z0-9_]+)`),
		regexp.MustCompile(`was @([a-z0-9_]+)`),
	}
	// Replies that remind the author of an older handle.
	replyPatterns = []*regexp.Regexp{
		regexp.MustCompile(`when you were @([a-z0-9_]+)`),
	}
)

// ExtractMentionHandles returns the former handles referenced in a mention.
// Matching is case-insensitive; results are lower-cased and may repeat.
func ExtractMentionHandles(text string) []string {
	return extract(text, mentionPatterns)
}

// ExtractReplyHandles returns the former handles referenced in a reply.
func ExtractReplyHandles(text string) []string {
	return extract(text, replyPatterns)
}

func extract(text string, patterns []*regexp.Regexp) []string {
	lowered := strings.ToLower(text)
	var out []string
	for _, pattern := range patterns {
		for _, match := range pattern.FindAllStringSubmatch(lowered, -1) {
			if len(match) > 1 && match[1] != "" {
				out = append(out, match[1])
			}
		}
	}
	return out
}
