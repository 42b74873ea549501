package similarity

import (
	"sort"
	"strings"

	"github.com/nvandessel/corpus-graph/internal/tagging"
)

// Score weights. They sum to 1.0.
const (
	KeywordWeight  = 0.40
	TitleWeight    = 0.30
	SummaryWeight  = 0.20
	CategoryWeight = 0.10
)

// Defaults for FindRelated.
const (
	DefaultMinSimilarity = 0.6
	DefaultTopK          = 5
	DefaultMaxKeywords   = 10
)

// Breakdown holds the per-component similarities behind a match score.
type Breakdown struct {
	Keywords float64 `json:"keywords"`
	Title    float64 `json:"title"`
	Summary  float64 `json:"summary"`
	Category float64 `json:"category"`
}

// Match is one retrieval result.
type Match struct {
	ID        string    `json:"id"`
	Score     float64   `json:"score"`
	Title     string    `json:"title"`
	Category  string    `json:"category,omitempty"`
	Origin    Origin    `json:"origin"`
	Breakdown Breakdown `json:"breakdown"`
}

// Retriever ranks documents against free-text queries. It holds no cache:
// every call scores the documents it was built with.
type Retriever struct {
	docs        []Document
	maxKeywords int
}

// NewRetriever creates a retriever over docs. maxKeywords caps the number of
// query keywords considered (<= 0 uses DefaultMaxKeywords).
func NewRetriever(docs []Document, maxKeywords int) *Retriever {
	if maxKeywords <= 0 {
		maxKeywords = DefaultMaxKeywords
	}
	return &Retriever{docs: docs, maxKeywords: maxKeywords}
}

// Len returns the number of documents searched.
func (r *Retriever) Len() int {
	return len(r.docs)
}

// FindRelated scores every document against query and returns those scoring
// at least minSimilarity, best first. Ties keep catalog order. topK <= 0
// returns every match.
//
// score = 0.4*J(query, keywords) + 0.3*J(query, title) + 0.2*J(query, summary)
// + 0.1*category, where J is keyword Jaccard similarity and category is 1
// when the document's category equals a query keyword or the whole query.
func (r *Retriever) FindRelated(query string, minSimilarity float64, topK int) []Match {
	queryKW := ExtractKeywords(query, r.maxKeywords)
	wholeQuery := strings.ToLower(strings.TrimSpace(query))
	if len(queryKW) == 0 && wholeQuery == "" {
		return nil
	}

	var matches []Match
	for _, d := range r.docs {
		docKW := normalizeKeywords(d.Keywords)
		if len(docKW) == 0 {
			docKW = ExtractKeywords(d.Title+" "+d.Summary, r.maxKeywords)
		}

		b := Breakdown{
			Keywords: tagging.JaccardSimilarity(queryKW, docKW),
			Title:    tagging.JaccardSimilarity(queryKW, ExtractKeywords(d.Title, 0)),
			Summary:  tagging.JaccardSimilarity(queryKW, ExtractKeywords(d.Summary, 0)),
			Category: categoryMatch(d.Category, queryKW, wholeQuery),
		}
		score := KeywordWeight*b.Keywords + TitleWeight*b.Title + SummaryWeight*b.Summary + CategoryWeight*b.Category
		if score < minSimilarity {
			continue
		}
		matches = append(matches, Match{
			ID:        d.ID,
			Score:     score,
			Title:     d.Title,
			Category:  d.Category,
			Origin:    d.Origin,
			Breakdown: b,
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})

	if topK > 0 && len(matches) > topK {
		matches = matches[:topK]
	}
	return matches
}

func categoryMatch(category string, queryKW []string, wholeQuery string) float64 {
	c := strings.ToLower(strings.TrimSpace(category))
	if c == "" {
		return 0
	}
	if c == wholeQuery {
		return 1
	}
	for _, kw := range queryKW {
		if kw == c {
			return 1
		}
	}
	return 0
}
