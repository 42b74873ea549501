package graphindex

import (
	"reflect"
	"testing"
	"time"

	"github.com/nvandessel/corpus-graph/internal/models"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func info() BuildInfo {
	return BuildInfo{GeneratedBy: "test", Now: testNow, BuildID: "b1"}
}

func n(id string) models.Node {
	return models.Node{ID: id, Type: models.NodeTypeDecision, CreatedAt: testNow, Title: id}
}

func edge(src, tgt string, rel models.Relation) models.Edge {
	return models.Edge{Source: src, Target: tgt, Relation: rel}
}

func TestRebuild_Empty(t *testing.T) {
	doc := Rebuild(nil, nil, info())

	if doc.Metadata.NodeCount != 0 || doc.Metadata.EdgeCount != 0 {
		t.Errorf("metadata = %+v, want zero counts", doc.Metadata)
	}
	if doc.Version != models.GraphSchemaVersion {
		t.Errorf("Version = %q, want %q", doc.Version, models.GraphSchemaVersion)
	}
	if !doc.UpdatedAt.Equal(testNow) {
		t.Errorf("UpdatedAt = %v, want %v", doc.UpdatedAt, testNow)
	}
	if doc.Nodes == nil || doc.Edges == nil {
		t.Error("Nodes and Edges should be empty slices, not nil")
	}

	adj := BuildAdjacency(doc)
	if len(adj.Adjacency) != 0 {
		t.Errorf("adjacency entries = %d, want 0", len(adj.Adjacency))
	}
}

func TestRebuild_Idempotent(t *testing.T) {
	nodes := []models.Node{n("A"), n("B"), n("A")}
	edges := []models.Edge{
		edge("A", "B", models.RelationRelatedTo),
		edge("B", "A", models.RelationRelatedTo),
		edge("B", "A", models.RelationSupersedes),
		edge("B", "A", models.RelationSupersedes),
	}

	first := Rebuild(nodes, edges, info())
	second := Rebuild(NodesFromDocument(first), first.Edges, info())

	if first.Metadata.NodeCount != 2 || first.Metadata.EdgeCount != 2 {
		t.Errorf("first metadata = %+v, want 2 nodes 2 edges", first.Metadata)
	}
	if !reflect.DeepEqual(first.Metadata, second.Metadata) {
		t.Errorf("metadata differs between rebuilds: %+v vs %+v", first.Metadata, second.Metadata)
	}
	if !reflect.DeepEqual(first.Edges, second.Edges) {
		t.Errorf("edges differ between rebuilds")
	}
}

func TestRebuild_RelationMetadata(t *testing.T) {
	doc := Rebuild(
		[]models.Node{n("A"), n("B"), n("C")},
		[]models.Edge{
			edge("A", "B", models.RelationRelatedTo),
			edge("C", "A", models.RelationSupersedes),
		},
		info(),
	)

	if !reflect.DeepEqual(doc.Metadata.RelationTypes, models.Relations) {
		t.Errorf("RelationTypes = %v, want %v", doc.Metadata.RelationTypes, models.Relations)
	}
	if doc.Metadata.RelationCounts[models.RelationRelatedTo] != 1 ||
		doc.Metadata.RelationCounts[models.RelationSupersedes] != 1 ||
		doc.Metadata.RelationCounts[models.RelationEnriches] != 0 {
		t.Errorf("RelationCounts = %v", doc.Metadata.RelationCounts)
	}
}

func TestBuildAdjacency(t *testing.T) {
	doc := Rebuild(
		[]models.Node{n("A"), n("B"), n("E")},
		[]models.Edge{
			edge("A", "B", models.RelationRelatedTo),
			edge("B", "A", models.RelationSupersedes),
			edge("E", "A", models.RelationEnriches),
			edge("A", "Z", models.RelationRelatedTo), // missing endpoint
		},
		info(),
	)

	adj := BuildAdjacency(doc)

	if len(adj.Adjacency) != doc.Metadata.NodeCount {
		t.Errorf("len(adjacency) = %d, want %d", len(adj.Adjacency), doc.Metadata.NodeCount)
	}
	if adj.Metadata.EdgeCount != 3 {
		t.Errorf("indexed edges = %d, want 3", adj.Metadata.EdgeCount)
	}
	if adj.Metadata.BuildID != "b1" || !adj.Metadata.GraphUpdatedAt.Equal(testNow) {
		t.Errorf("metadata = %+v, want tied to graph", adj.Metadata)
	}

	a := adj.Adjacency["A"]
	if got := a.Outgoing[models.RelationRelatedTo]; !reflect.DeepEqual(got, []string{"B"}) {
		t.Errorf("A outgoing relatedTo = %v", got)
	}
	if got := a.Incoming[models.RelationSupersededBy]; !reflect.DeepEqual(got, []string{"B"}) {
		t.Errorf("A incoming supersededBy = %v", got)
	}
	if got := a.Incoming[models.RelationEnrichedBy]; !reflect.DeepEqual(got, []string{"E"}) {
		t.Errorf("A incoming enrichedBy = %v", got)
	}
	b := adj.Adjacency["B"]
	if got := b.Incoming[models.RelationRelatedTo]; !reflect.DeepEqual(got, []string{"A"}) {
		t.Errorf("B incoming relatedTo = %v", got)
	}
	if b.Outgoing == nil || adj.Adjacency["E"].Incoming == nil {
		t.Error("every entry should have initialized maps")
	}
}

func TestNeighbors(t *testing.T) {
	doc := Rebuild(
		[]models.Node{n("A"), n("B"), n("C"), n("E")},
		[]models.Edge{
			edge("A", "B", models.RelationRelatedTo),
			edge("C", "A", models.RelationRelatedTo),
			edge("C", "A", models.RelationSupersedes),
			edge("E", "A", models.RelationEnriches),
		},
		info(),
	)
	adj := BuildAdjacency(doc)

	tests := []struct {
		name string
		id   string
		rel  models.Relation
		want []string
	}{
		{"relatedTo is symmetric from A", "A", models.RelationRelatedTo, []string{"B", "C"}},
		{"relatedTo is symmetric from B", "B", models.RelationRelatedTo, []string{"A"}},
		{"supersedes outgoing", "C", models.RelationSupersedes, []string{"A"}},
		{"supersededBy incoming", "A", models.RelationSupersededBy, []string{"C"}},
		{"enrichedBy incoming", "A", models.RelationEnrichedBy, []string{"E"}},
		{"enriches outgoing", "E", models.RelationEnriches, []string{"A"}},
		{"no supersedes from A", "A", models.RelationSupersedes, nil},
		{"unknown node", "Z", models.RelationRelatedTo, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Neighbors(adj, tt.id, tt.rel); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Neighbors(%s, %s) = %v, want %v", tt.id, tt.rel, got, tt.want)
			}
		})
	}

	all := Neighbors(adj, "A", "")
	if len(all) != 3 {
		t.Errorf("Neighbors(A, all) = %v, want 3 distinct ids", all)
	}
}

func TestPatch(t *testing.T) {
	doc := Rebuild([]models.Node{n("A"), n("B"), n("C")}, nil, info())

	updatedB := n("B")
	updatedB.Title = "B v2"

	got := Patch(doc, []models.Node{n("D"), updatedB}, []string{"A"})

	var ids []string
	for _, node := range got {
		ids = append(ids, node.ID)
	}
	if !reflect.DeepEqual(ids, []string{"B", "C", "D"}) {
		t.Errorf("Patch() ids = %v, want [B C D]", ids)
	}
	if got[0].Title != "B v2" {
		t.Errorf("B title = %q, want upserted value", got[0].Title)
	}
}

func TestPatch_ListingOrder(t *testing.T) {
	learning := n("L-001")
	learning.Type = models.NodeTypeLearning
	doc := Rebuild([]models.Node{learning, n("C"), n("A")}, nil, info())

	got := Patch(doc, []models.Node{n("B")}, nil)

	var ids []string
	for _, node := range got {
		ids = append(ids, node.ID)
	}
	// Same order a full rebuild lists the node set in.
	if want := []string{"A", "B", "C", "L-001"}; !reflect.DeepEqual(ids, want) {
		t.Errorf("Patch() ids = %v, want %v", ids, want)
	}
}

func TestPatch_RemovalWinsOverUpsert(t *testing.T) {
	doc := Rebuild([]models.Node{n("A")}, nil, info())
	got := Patch(doc, []models.Node{n("B")}, []string{"B"})
	if len(got) != 1 || got[0].ID != "A" {
		t.Errorf("Patch() = %v, want only A", got)
	}
}

func TestNodesFromDocument_PreservesExtractorFields(t *testing.T) {
	src := models.Node{
		ID:         "E-1",
		Type:       models.NodeTypeEnrichment,
		CreatedAt:  testNow,
		Title:      "Enrichment",
		Category:   "security",
		Confidence: 0.9,
		Source:     "ADR-1",
	}
	doc := Rebuild([]models.Node{src}, nil, info())
	got := NodesFromDocument(doc)[0]

	if got.ID != src.ID || got.Type != src.Type || got.Category != src.Category ||
		got.Confidence != src.Confidence || got.Source != src.Source || !got.CreatedAt.Equal(src.CreatedAt) {
		t.Errorf("NodesFromDocument() = %+v, want fields of %+v", got, src)
	}
}
