// Package similarity finds corpus nodes and reference documents related to a
// free-text query using keyword overlap.
package similarity

import (
	"regexp"
	"sort"
	"strings"
)

// wordPattern matches lower-case words of three or more letters.
var wordPattern = regexp.MustCompile(`\b[a-z]{3,}\b`)

// stopWords are common English words that carry no topical signal.
var stopWords = map[string]bool{
	"the": true, "and": true, "for": true, "that": true, "have": true,
	"not": true, "with": true, "you": true, "this": true, "but": true,
	"his": true, "from": true, "they": true, "say": true, "her": true,
	"she": true, "will": true, "one": true, "all": true, "would": true,
	"there": true, "their": true, "what": true, "out": true, "about": true,
	"who": true, "get": true, "which": true, "when": true, "make": true,
	"can": true, "like": true, "just": true, "him": true, "know": true,
	"take": true, "into": true, "your": true, "some": true, "could": true,
	"them": true, "see": true, "other": true, "than": true, "then": true,
	"now": true, "only": true, "its": true, "over": true, "also": true,
	"after": true, "use": true, "how": true, "our": true, "well": true,
	"way": true, "even": true, "new": true, "want": true, "because": true,
	"any": true, "these": true, "most": true, "was": true, "are": true,
	"been": true, "has": true, "had": true, "were": true, "did": true,
	"may": true, "should": true, "too": true, "very": true, "does": true,
	"via": true, "per": true, "using": true, "used": true, "why": true,
	"more": true, "such": true, "each": true, "both": true,
}

// ExtractKeywords lower-cases text and returns up to n distinct non-stop
// words of three or more letters, most frequent first with ties broken by
// first occurrence. n <= 0 returns every keyword.
func ExtractKeywords(text string, n int) []string {
	words := wordPattern.FindAllString(strings.ToLower(text), -1)
	if len(words) == 0 {
		return nil
	}

	counts := make(map[string]int)
	var order []string
	for _, w := range words {
		if stopWords[w] {
			continue
		}
		if counts[w] == 0 {
			order = append(order, w)
		}
		counts[w]++
	}

	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]] > counts[order[j]]
	})

	if n > 0 && len(order) > n {
		order = order[:n]
	}
	return order
}

// normalizeKeywords lower-cases and trims keywords, dropping empties and
// duplicates.
func normalizeKeywords(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, k := range in {
		k = strings.ToLower(strings.TrimSpace(k))
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}
	return out
}
