// Package tagging derives concepts and tags for corpus nodes from a fixed
// vocabulary of technical topics.
package tagging

import "strings"

// Concept is one vocabulary entry. A title mentions the concept when the
// name occurs in it as a substring. Keywords are whole-token synonyms used
// for tag suggestion only.
type Concept struct {
	Name     string
	Keywords []string
}

// Vocabulary is an ordered set of concepts. Order is significant: concept
// lists are emitted in vocabulary order so outputs are deterministic.
type Vocabulary struct {
	concepts []Concept
	tokens   map[string]string // lowercase keyword -> concept name
}

// NewVocabulary builds a vocabulary from concepts. Each concept's own name is
// always added to its keywords.
func NewVocabulary(concepts []Concept) *Vocabulary {
	v := &Vocabulary{tokens: make(map[string]string)}
	for _, c := range concepts {
		name := strings.ToLower(strings.TrimSpace(c.Name))
		if name == "" {
			continue
		}
		kws := []string{name}
		seen := map[string]bool{name: true}
		for _, kw := range c.Keywords {
			kw = strings.ToLower(strings.TrimSpace(kw))
			if kw == "" || seen[kw] {
				continue
			}
			seen[kw] = true
			kws = append(kws, kw)
		}
		v.concepts = append(v.concepts, Concept{Name: name, Keywords: kws})
		for _, kw := range kws {
			if _, taken := v.tokens[kw]; !taken {
				v.tokens[kw] = name
			}
		}
	}
	return v
}

// DefaultVocabulary returns the built-in concept vocabulary.
func DefaultVocabulary() *Vocabulary {
	return NewVocabulary(defaultConcepts)
}

var defaultConcepts = []Concept{
	{"database", []string{"postgres", "postgresql", "mysql", "sqlite", "mongodb", "sql"}},
	{"authentication", []string{"oauth", "login", "jwt", "sso", "saml", "auth"}},
	{"api", []string{"endpoint", "graphql", "grpc", "openapi"}},
	{"caching", []string{"cache", "redis", "memcached"}},
	{"messaging", []string{"kafka", "rabbitmq", "queue", "pubsub", "nats"}},
	{"security", []string{"encryption", "tls", "vulnerability", "secret"}},
	{"testing", []string{"test"}},
	{"deployment", []string{"deploy", "kubernetes", "docker", "helm", "release"}},
	{"performance", []string{"latency", "throughput", "benchmark"}},
	{"observability", []string{"logging", "metrics", "tracing", "monitoring"}},
	{"configuration", []string{"config", "settings"}},
	{"storage", []string{"s3", "blob", "filesystem"}},
}

// Names returns the concept names in vocabulary order.
func (v *Vocabulary) Names() []string {
	names := make([]string, len(v.concepts))
	for i, c := range v.concepts {
		names[i] = c.Name
	}
	return names
}

// Lookup returns the concept a single token maps to, if any.
// Matching is case-insensitive and exact.
func (v *Vocabulary) Lookup(token string) (string, bool) {
	name, ok := v.tokens[strings.ToLower(token)]
	return name, ok
}

// Concepts returns the concept set of a node: its lower-cased category (when
// non-empty) followed by every vocabulary concept whose name is a substring
// of the lower-cased title, in vocabulary order. No duplicates. Synonyms
// never contribute here: short ones like "sso" occur inside unrelated words.
func (v *Vocabulary) Concepts(category, title string) []string {
	var out []string
	seen := make(map[string]bool)

	if c := strings.ToLower(strings.TrimSpace(category)); c != "" {
		out = append(out, c)
		seen[c] = true
	}

	lower := strings.ToLower(title)
	if lower == "" {
		return out
	}
	for _, c := range v.concepts {
		if !seen[c.Name] && strings.Contains(lower, c.Name) {
			out = append(out, c.Name)
			seen[c.Name] = true
		}
	}
	return out
}
