package ranking

import (
	"math"
	"testing"
	"time"

	"github.com/nvandessel/corpus-graph/internal/models"
)

func graphOf(ids []string, edges ...[2]string) *models.GraphDocument {
	doc := &models.GraphDocument{Version: models.GraphSchemaVersion}
	for _, id := range ids {
		doc.Nodes = append(doc.Nodes, models.NodeSummary{ID: id, Type: models.NodeTypeDecision, CreatedAt: time.Now()})
	}
	for _, e := range edges {
		doc.Edges = append(doc.Edges, models.Edge{Source: e[0], Target: e[1], Relation: models.RelationRelatedTo})
	}
	return doc
}

func TestComputePageRank_EmptyGraph(t *testing.T) {
	scores := ComputePageRank(graphOf(nil), DefaultPageRankConfig())
	if len(scores) != 0 {
		t.Errorf("expected empty map for empty graph, got %d entries", len(scores))
	}
	if scores := ComputePageRank(nil, DefaultPageRankConfig()); len(scores) != 0 {
		t.Errorf("expected empty map for nil graph, got %d entries", len(scores))
	}
}

func TestComputePageRank_SingleNode(t *testing.T) {
	scores := ComputePageRank(graphOf([]string{"A"}), DefaultPageRankConfig())

	if len(scores) != 1 {
		t.Fatalf("expected 1 score, got %d", len(scores))
	}
	if math.Abs(scores["A"]-1.0) > 1e-9 {
		t.Errorf("single node should normalize to 1.0, got %f", scores["A"])
	}
}

func TestComputePageRank_Hub(t *testing.T) {
	doc := graphOf([]string{"hub", "a", "b", "c", "d"},
		[2]string{"a", "hub"},
		[2]string{"b", "hub"},
		[2]string{"hub", "c"},
		[2]string{"d", "hub"},
	)
	scores := ComputePageRank(doc, DefaultPageRankConfig())

	if math.Abs(scores["hub"]-1.0) > 1e-9 {
		t.Errorf("hub should have the max normalized score 1.0, got %f", scores["hub"])
	}
	for _, leaf := range []string{"a", "b", "c", "d"} {
		if scores[leaf] >= scores["hub"] {
			t.Errorf("leaf %s score %f should be below hub %f", leaf, scores[leaf], scores["hub"])
		}
	}
}

func TestComputePageRank_LinearChain(t *testing.T) {
	doc := graphOf([]string{"A", "B", "C"}, [2]string{"A", "B"}, [2]string{"B", "C"})
	scores := ComputePageRank(doc, DefaultPageRankConfig())

	if scores["B"] <= scores["A"] || scores["B"] <= scores["C"] {
		t.Errorf("middle node should rank highest: %v", scores)
	}
	if math.Abs(scores["A"]-scores["C"]) > 1e-6 {
		t.Errorf("chain ends should tie: A=%f C=%f", scores["A"], scores["C"])
	}
}

func TestComputePageRank_IgnoresDanglingAndSelfEdges(t *testing.T) {
	doc := graphOf([]string{"A", "B"}, [2]string{"A", "Z"}, [2]string{"A", "A"})
	scores := ComputePageRank(doc, DefaultPageRankConfig())

	if len(scores) != 2 {
		t.Fatalf("scores = %v, want 2 entries", scores)
	}
	if math.Abs(scores["A"]-scores["B"]) > 1e-9 {
		t.Errorf("isolated nodes should tie: %v", scores)
	}
}

func TestComputePageRank_Bounds(t *testing.T) {
	doc := graphOf([]string{"A", "B", "C", "D"},
		[2]string{"A", "B"}, [2]string{"B", "C"}, [2]string{"C", "A"}, [2]string{"C", "D"})
	for id, s := range ComputePageRank(doc, DefaultPageRankConfig()) {
		if s <= 0 || s > 1.0+1e-9 {
			t.Errorf("score for %s = %f, want in (0, 1]", id, s)
		}
	}
}
