package engine

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/nvandessel/corpus-graph/internal/graphindex"
	"github.com/nvandessel/corpus-graph/internal/models"
	"github.com/nvandessel/corpus-graph/internal/ranking"
	"github.com/nvandessel/corpus-graph/internal/similarity"
	"github.com/nvandessel/corpus-graph/internal/store"
)

// Node returns the stored node with the given id.
func (e *Engine) Node(ctx context.Context, id string) (*models.Node, error) {
	node, err := e.nodes.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get node %s: %w", id, err)
	}
	return node, nil
}

// ListNodes returns every node of the given type, or all nodes when nodeType
// is empty, along with the entries that could not be read.
func (e *Engine) ListNodes(ctx context.Context, nodeType models.NodeType) ([]models.Node, []error) {
	return store.CollectNodes(ctx, e.nodes, nodeType)
}

// Graph returns the current graph document.
func (e *Engine) Graph(ctx context.Context) (*models.GraphDocument, error) {
	doc, err := e.graphs.LoadGraph(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load graph: %w", err)
	}
	return doc, nil
}

// Adjacency returns the current adjacency index. When the cached index is
// missing it is derived from the graph document without being saved.
func (e *Engine) Adjacency(ctx context.Context) (*models.AdjacencyIndex, error) {
	adj, err := e.graphs.LoadAdjacency(ctx)
	if err == nil {
		return adj, nil
	}
	doc, gerr := e.graphs.LoadGraph(ctx)
	if gerr != nil {
		return nil, fmt.Errorf("failed to load adjacency: %w", err)
	}
	e.logger.Debug("adjacency index unavailable, deriving from graph", "error", err)
	return graphindex.BuildAdjacency(doc), nil
}

// Neighbors returns the nodes adjacent to id through rel, or through any
// relation when rel is empty. An id absent from the graph has no neighbors.
func (e *Engine) Neighbors(ctx context.Context, id string, rel models.Relation) ([]string, error) {
	if rel != "" && !rel.Valid() {
		return nil, fmt.Errorf("unknown relation %q", rel)
	}
	adj, err := e.Adjacency(ctx)
	if err != nil {
		return nil, err
	}
	return graphindex.Neighbors(adj, id, rel), nil
}

// NeighborLabels lists every adjacency label, forward relations first.
var NeighborLabels = []models.Relation{
	models.RelationRelatedTo,
	models.RelationSupersedes,
	models.RelationSupersededBy,
	models.RelationEnriches,
	models.RelationEnrichedBy,
}

// NeighborMap groups the neighbors of id by relation label. Labels with no
// neighbors are omitted.
func (e *Engine) NeighborMap(ctx context.Context, id string) (map[string][]string, error) {
	adj, err := e.Adjacency(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]string)
	for _, rel := range NeighborLabels {
		if ids := graphindex.Neighbors(adj, id, rel); len(ids) > 0 {
			out[string(rel)] = ids
		}
	}
	return out, nil
}

// RelatedOptions tunes Related. Zero values fall back to the retrieval
// configuration.
type RelatedOptions struct {
	MinSimilarity *float64
	TopK          *int
	IncludeNodes  *bool
}

// Related ranks the reference catalog, and corpus nodes when enabled,
// against a free-text query.
func (e *Engine) Related(ctx context.Context, query string, opts RelatedOptions) ([]similarity.Match, error) {
	rc := e.cfg.Retrieval
	minSim, topK, includeNodes := rc.MinSimilarity, rc.TopK, rc.IncludeNodes
	if opts.MinSimilarity != nil {
		minSim = *opts.MinSimilarity
	}
	if opts.TopK != nil {
		topK = *opts.TopK
	}
	if opts.IncludeNodes != nil {
		includeNodes = *opts.IncludeNodes
	}

	docs, err := similarity.LoadCatalog(e.layout.ReferencesIndex)
	if err != nil {
		return nil, err
	}
	if includeNodes {
		nodeDocs, errs := similarity.DocumentsFromNodes(ctx, e.nodes, e.opts.Vocabulary)
		for _, err := range errs {
			e.logger.Warn("skipping node in retrieval", "error", err)
		}
		docs = append(docs, nodeDocs...)
	}

	matches := similarity.NewRetriever(docs, rc.MaxKeywords).FindRelated(query, minSim, topK)
	e.logger.Debug("related documents", "query", query, "candidates", len(docs), "matches", len(matches))
	return matches, nil
}

// RankedNode is one PageRank result.
type RankedNode struct {
	ID    string          `json:"id"`
	Title string          `json:"title"`
	Type  models.NodeType `json:"type"`
	Score float64         `json:"score"`
}

// Rank orders the graph's nodes by PageRank, highest first with ties broken
// by id. top <= 0 returns every node.
func (e *Engine) Rank(ctx context.Context, top int) ([]RankedNode, error) {
	doc, err := e.Graph(ctx)
	if err != nil {
		return nil, err
	}
	scores := ranking.ComputePageRank(doc, ranking.DefaultPageRankConfig())

	ranked := make([]RankedNode, 0, len(doc.Nodes))
	for _, n := range doc.Nodes {
		ranked = append(ranked, RankedNode{ID: n.ID, Title: n.Title, Type: n.Type, Score: scores[n.ID]})
	}
	slices.SortFunc(ranked, func(a, b RankedNode) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	if top > 0 && len(ranked) > top {
		ranked = ranked[:top]
	}
	return ranked, nil
}
