// Package sanitize normalizes text fields of corpus nodes before they are
// written to disk. Node ids become file names, so they are restricted to a
// safe character set; titles and summaries are stripped of control characters
// and markup that would corrupt the YAML documents or downstream prompts.
package sanitize

import (
	"regexp"
	"strings"
)

// MaxSummaryLength is the maximum allowed length for a node summary.
const MaxSummaryLength = 2000

// MaxTitleLength is the maximum allowed length for a node title.
const MaxTitleLength = 200

// MaxTagLength is the maximum allowed length for a single tag.
const MaxTagLength = 50

// MaxIDLength is the maximum allowed length for a node id.
const MaxIDLength = 80

// Pre-compiled regular expressions for performance.
var (
	// reXMLTag matches XML/HTML tags including those with attributes and self-closing tags.
	reXMLTag = regexp.MustCompile(`<[/?!]?[a-zA-Z][a-zA-Z0-9]*(?:\s+[^>]*)?/?>|<\?[^?]*\?>`)

	// reTripleBacktick matches triple (or more) backtick sequences used in code fences.
	reTripleBacktick = regexp.MustCompile("```+")

	// reExcessiveNewlines matches 3 or more consecutive newlines.
	reExcessiveNewlines = regexp.MustCompile(`\n{3,}`)

	// reWhitespaceRun matches any run of whitespace, used to flatten titles.
	reWhitespaceRun = regexp.MustCompile(`\s+`)

	reRepeatedHyphens     = regexp.MustCompile(`-{2,}`)
	reRepeatedUnderscores = regexp.MustCompile(`_{2,}`)
)

// Summary sanitizes free-text summary content:
//  1. Strip null bytes and ASCII control characters (except \n, \t)
//  2. Strip XML/HTML tags
//  3. Collapse triple backticks to single backtick
//  4. Collapse excessive newlines (3+ -> 2)
//  5. Trim and truncate to MaxSummaryLength
func Summary(input string) string {
	if input == "" {
		return ""
	}

	s := stripControlChars(input, true)
	s = reXMLTag.ReplaceAllString(s, "")
	s = reTripleBacktick.ReplaceAllString(s, "`")
	s = reExcessiveNewlines.ReplaceAllString(s, "\n\n")
	s = strings.TrimSpace(s)

	if len(s) > MaxSummaryLength {
		s = s[:MaxSummaryLength] + "..."
	}
	return s
}

// Title flattens a title to a single trimmed line without markup.
func Title(input string) string {
	if input == "" {
		return ""
	}

	s := stripControlChars(input, true)
	s = reXMLTag.ReplaceAllString(s, "")
	s = reWhitespaceRun.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)

	if len(s) > MaxTitleLength {
		s = s[:MaxTitleLength]
	}
	return s
}

// Tag lower-cases a tag and keeps only [a-z0-9-_/], collapsing repeated
// separators. Returns "" when nothing usable remains.
func Tag(input string) string {
	s := keepRunes(strings.ToLower(strings.TrimSpace(input)), func(r rune) bool {
		return (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' || r == '_' || r == '/'
	})
	s = reRepeatedHyphens.ReplaceAllString(s, "-")
	s = reRepeatedUnderscores.ReplaceAllString(s, "_")
	s = strings.Trim(s, "-_/")

	if len(s) > MaxTagLength {
		s = s[:MaxTagLength]
	}
	return s
}

// Tags sanitizes each tag, dropping empties and duplicates while keeping order.
func Tags(input []string) []string {
	if len(input) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(input))
	out := make([]string, 0, len(input))
	for _, t := range input {
		t = Tag(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// ValidID reports whether id can be used as a node id (and therefore as a
// file name): 1..MaxIDLength characters from [A-Za-z0-9._-], not starting
// with a dot.
func ValidID(id string) bool {
	if id == "" || len(id) > MaxIDLength || id[0] == '.' {
		return false
	}
	for _, r := range id {
		if !idRune(r) {
			return false
		}
	}
	return true
}

func idRune(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
		(r >= '0' && r <= '9') || r == '-' || r == '_' || r == '.'
}

func keepRunes(s string, keep func(rune) bool) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if keep(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// stripControlChars removes ASCII control characters (0x00-0x1F). When
// keepLayout is set, newline and tab are preserved.
func stripControlChars(s string, keepLayout bool) string {
	return keepRunes(s, func(r rune) bool {
		if r >= 0x20 {
			return true
		}
		return keepLayout && (r == '\n' || r == '\t')
	})
}
