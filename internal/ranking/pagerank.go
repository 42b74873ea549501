package ranking

import (
	"math"

	"github.com/nvandessel/corpus-graph/internal/models"
)

// PageRankConfig holds configuration for PageRank computation.
type PageRankConfig struct {
	// DampingFactor (d) is the probability of following an edge vs. teleporting.
	// Standard value: 0.85.
	DampingFactor float64

	// MaxIterations is the maximum number of power iteration steps. Default: 100.
	MaxIterations int

	// Tolerance is the convergence threshold. Default: 1e-6.
	Tolerance float64
}

// DefaultPageRankConfig returns the default PageRank configuration.
func DefaultPageRankConfig() PageRankConfig {
	return PageRankConfig{
		DampingFactor: 0.85,
		MaxIterations: 100,
		Tolerance:     1e-6,
	}
}

// ComputePageRank scores the centrality of every node in a graph document.
// Returns node id -> score normalized so the most central node scores 1.0.
//
// Every relation is treated as an undirected link: a decision that many
// others relate to, supersede or enrich ranks high regardless of direction.
// Edges with an endpoint outside the document are ignored.
func ComputePageRank(doc *models.GraphDocument, config PageRankConfig) map[string]float64 {
	if doc == nil || len(doc.Nodes) == 0 {
		return make(map[string]float64)
	}
	n := len(doc.Nodes)

	nodeIDs := make([]string, 0, n)
	links := make(map[string]map[string]bool, n)
	for _, node := range doc.Nodes {
		if _, dup := links[node.ID]; dup {
			continue
		}
		nodeIDs = append(nodeIDs, node.ID)
		links[node.ID] = make(map[string]bool)
	}
	n = len(nodeIDs)

	for _, e := range doc.Edges {
		if e.Source == e.Target {
			continue
		}
		src, okSrc := links[e.Source]
		tgt, okTgt := links[e.Target]
		if !okSrc || !okTgt {
			continue
		}
		src[e.Target] = true
		tgt[e.Source] = true
	}

	// Undirected: inbound[v] == neighbors(v) and outDegree(u) == |neighbors(u)|.
	d := config.DampingFactor
	nf := float64(n)
	scores := make(map[string]float64, n)
	for _, id := range nodeIDs {
		scores[id] = 1.0 / nf
	}

	for iter := 0; iter < config.MaxIterations; iter++ {
		newScores := make(map[string]float64, n)
		maxDelta := 0.0

		for _, v := range nodeIDs {
			sum := 0.0
			for u := range links[v] {
				if deg := len(links[u]); deg > 0 {
					sum += scores[u] / float64(deg)
				}
			}

			newScore := (1.0-d)/nf + d*sum
			newScores[v] = newScore

			if delta := math.Abs(newScore - scores[v]); delta > maxDelta {
				maxDelta = delta
			}
		}

		scores = newScores

		if maxDelta < config.Tolerance {
			break
		}
	}

	// Normalize to [0, 1] by dividing by max score.
	maxScore := 0.0
	for _, score := range scores {
		if score > maxScore {
			maxScore = score
		}
	}
	if maxScore > 0 {
		for id, score := range scores {
			scores[id] = score / maxScore
		}
	}

	return scores
}
