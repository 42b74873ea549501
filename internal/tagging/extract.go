package tagging

import (
	"regexp"
	"sort"

	"github.com/nvandessel/corpus-graph/internal/sanitize"
)

// MaxTags is the maximum number of tags suggested per node.
const MaxTags = 8

// tokenPattern splits text into tokens. Matches words and hyphenated compounds
// like "event-sourcing" or "read_replica".
var tokenPattern = regexp.MustCompile(`[a-zA-Z][a-zA-Z0-9]*(?:[-_][a-zA-Z0-9]+)*`)

// ExtractTags suggests tags for free text by mapping whole tokens through the
// vocabulary. Unlike Concepts it never matches inside a word.
// Returns a sorted, deduplicated, sanitized slice capped at MaxTags, or nil.
func ExtractTags(text string, vocab *Vocabulary) []string {
	if text == "" || vocab == nil {
		return nil
	}

	tokens := tokenPattern.FindAllString(text, -1)
	if len(tokens) == 0 {
		return nil
	}

	seen := make(map[string]bool, MaxTags)
	var tags []string

	for _, token := range tokens {
		tag, ok := vocab.Lookup(token)
		if !ok || seen[tag] {
			continue
		}
		seen[tag] = true
		tags = append(tags, sanitize.Tag(tag))
	}

	if len(tags) == 0 {
		return nil
	}

	sort.Strings(tags)

	if len(tags) > MaxTags {
		tags = tags[:MaxTags]
	}

	return tags
}
