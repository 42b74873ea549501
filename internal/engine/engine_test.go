package engine

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/nvandessel/corpus-graph/internal/config"
	"github.com/nvandessel/corpus-graph/internal/integrity"
	"github.com/nvandessel/corpus-graph/internal/models"
	"github.com/nvandessel/corpus-graph/internal/store"
)

var testNow = time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)

type testEnv struct {
	engine *Engine
	nodes  *store.InMemoryNodeStore
	graphs *store.InMemoryGraphStore
	layout store.Layout
	now    time.Time
}

func newTestEnv(t *testing.T, mutate func(d *Deps)) *testEnv {
	t.Helper()
	env := &testEnv{
		nodes:  store.NewInMemoryNodeStore(),
		graphs: store.NewInMemoryGraphStore(),
		layout: store.NewLayout(t.TempDir(), "", ""),
		now:    testNow,
	}
	d := Deps{
		Nodes:  env.nodes,
		Graphs: env.graphs,
		Layout: env.layout,
		Config: config.Default(),
		Now:    func() time.Time { return env.now },
	}
	if mutate != nil {
		mutate(&d)
	}
	e, err := New(d)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { e.Close() })
	env.engine = e
	return env
}

func testNode(id string, typ models.NodeType, category, title string, confidence float64, created time.Time) models.Node {
	return models.Node{
		ID:         id,
		Type:       typ,
		CreatedAt:  created,
		Title:      title,
		Status:     "active",
		Category:   category,
		Confidence: confidence,
	}
}

func day(d int) time.Time {
	return time.Date(2026, 1, d, 0, 0, 0, 0, time.UTC)
}

func (env *testEnv) put(t *testing.T, nodes ...models.Node) {
	t.Helper()
	for _, n := range nodes {
		if err := env.nodes.Put(context.Background(), n); err != nil {
			t.Fatalf("Put(%s) error = %v", n.ID, err)
		}
	}
}

func edgesOf(doc *models.GraphDocument, rel models.Relation) []models.Edge {
	var out []models.Edge
	for _, e := range doc.Edges {
		if e.Relation == rel {
			out = append(out, e)
		}
	}
	return out
}

func TestNew_RequiresStores(t *testing.T) {
	if _, err := New(Deps{Nodes: store.NewInMemoryNodeStore()}); err == nil {
		t.Error("expected error without a graph store")
	}
}

func TestRebuild_RelatedByCategory(t *testing.T) {
	env := newTestEnv(t, nil)
	env.put(t,
		testNode("DEC-001", models.NodeTypeDecision, "database", "Primary datastore choice", 0.95, day(1)),
		testNode("DEC-002", models.NodeTypeDecision, "database", "Read replica rollout", 0.90, day(10)),
		testNode("DEC-003", models.NodeTypeDecision, "authentication", "Session token handling", 0.85, day(5)),
	)

	res, err := env.engine.Rebuild(context.Background())
	if err != nil {
		t.Fatalf("Rebuild() error = %v", err)
	}
	if !res.Written || !res.Validation.Valid {
		t.Fatalf("expected a valid written graph, got %+v", res)
	}

	doc, _ := env.graphs.LoadGraph(context.Background())
	related := edgesOf(doc, models.RelationRelatedTo)
	if len(related) != 1 {
		t.Fatalf("expected 1 relatedTo edge, got %v", related)
	}
	if related[0].Source != "DEC-001" || related[0].Target != "DEC-002" {
		t.Errorf("relatedTo edge = %s", related[0])
	}
	for _, e := range doc.Edges {
		if e.Source == "DEC-003" || e.Target == "DEC-003" {
			t.Errorf("unexpected edge touching DEC-003: %s", e)
		}
	}
}

func TestRebuild_Supersedes(t *testing.T) {
	env := newTestEnv(t, nil)
	env.put(t,
		testNode("DEC-010", models.NodeTypeDecision, "api", "Gateway v1", 0.85, day(1)),
		testNode("DEC-011", models.NodeTypeDecision, "api", "Gateway v2", 0.90, day(15)),
	)

	if _, err := env.engine.Rebuild(context.Background()); err != nil {
		t.Fatalf("Rebuild() error = %v", err)
	}
	doc, _ := env.graphs.LoadGraph(context.Background())
	sup := edgesOf(doc, models.RelationSupersedes)
	if len(sup) != 1 {
		t.Fatalf("expected exactly 1 supersedes edge, got %v", sup)
	}
	if sup[0].Source != "DEC-011" || sup[0].Target != "DEC-010" {
		t.Errorf("supersedes edge = %s, want DEC-011 -> DEC-010", sup[0])
	}

	older, err := env.engine.Neighbors(context.Background(), "DEC-010", models.RelationSupersededBy)
	if err != nil {
		t.Fatalf("Neighbors() error = %v", err)
	}
	if !reflect.DeepEqual(older, []string{"DEC-011"}) {
		t.Errorf("supersededBy neighbors = %v", older)
	}
}

func TestRebuild_Empty(t *testing.T) {
	env := newTestEnv(t, nil)

	res, err := env.engine.Rebuild(context.Background())
	if err != nil {
		t.Fatalf("Rebuild() error = %v", err)
	}
	if res.Nodes != 0 || res.Edges != 0 || !res.Written {
		t.Errorf("unexpected result %+v", res)
	}

	doc, err := env.graphs.LoadGraph(context.Background())
	if err != nil {
		t.Fatalf("LoadGraph() error = %v", err)
	}
	if doc.Metadata.NodeCount != 0 || doc.Metadata.EdgeCount != 0 {
		t.Errorf("metadata = %+v", doc.Metadata)
	}
	adj, err := env.graphs.LoadAdjacency(context.Background())
	if err != nil {
		t.Fatalf("LoadAdjacency() error = %v", err)
	}
	if len(adj.Adjacency) != 0 {
		t.Errorf("expected empty adjacency, got %d entries", len(adj.Adjacency))
	}
}

func TestRebuild_Idempotent(t *testing.T) {
	env := newTestEnv(t, nil)
	env.put(t,
		testNode("DEC-001", models.NodeTypeDecision, "database", "Use PostgreSQL", 0.95, day(1)),
		testNode("DEC-002", models.NodeTypeDecision, "database", "Add Redis cache", 0.90, day(3)),
		testNode("LRN-001", models.NodeTypeLearning, "caching", "Cache stampedes", 0.70, day(4)),
	)
	ctx := context.Background()

	if _, err := env.engine.Rebuild(ctx); err != nil {
		t.Fatal(err)
	}
	first, _ := env.graphs.LoadGraph(ctx)
	firstAdj, _ := env.graphs.LoadAdjacency(ctx)

	if _, err := env.engine.Rebuild(ctx); err != nil {
		t.Fatal(err)
	}
	second, _ := env.graphs.LoadGraph(ctx)
	secondAdj, _ := env.graphs.LoadAdjacency(ctx)

	if !reflect.DeepEqual(first.Edges, second.Edges) {
		t.Errorf("edges differ between rebuilds:\n%v\n%v", first.Edges, second.Edges)
	}
	if !reflect.DeepEqual(first.Nodes, second.Nodes) {
		t.Error("nodes differ between rebuilds")
	}
	if !reflect.DeepEqual(first.Metadata, second.Metadata) {
		t.Errorf("metadata differs: %+v vs %+v", first.Metadata, second.Metadata)
	}
	if !reflect.DeepEqual(firstAdj.Adjacency, secondAdj.Adjacency) {
		t.Error("adjacency differs between rebuilds")
	}
	if len(secondAdj.Adjacency) != second.Metadata.NodeCount {
		t.Errorf("adjacency entries = %d, node_count = %d", len(secondAdj.Adjacency), second.Metadata.NodeCount)
	}
}

type failingCheck struct{}

func (failingCheck) Name() string { return "always-fails" }

func (failingCheck) Run(doc *models.GraphDocument, _ *models.AdjacencyIndex) []integrity.Issue {
	return []integrity.Issue{{Check: "always-fails", Severity: integrity.SeverityError, Message: "rejected"}}
}

func TestRebuild_RejectInvalid(t *testing.T) {
	tests := []struct {
		name        string
		reject      bool
		wantWritten bool
	}{
		{"reject keeps previous snapshot", true, false},
		{"accept writes anyway", false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := integrity.DefaultRegistry()
			reg.Register(failingCheck{})
			env := newTestEnv(t, func(d *Deps) {
				d.Checks = reg
				d.Config.Index.RejectInvalid = tt.reject
			})
			env.put(t, testNode("DEC-001", models.NodeTypeDecision, "api", "Gateway", 0.9, day(1)))

			res, err := env.engine.Rebuild(context.Background())
			if err != nil {
				t.Fatalf("Rebuild() error = %v", err)
			}
			if res.Validation.Valid {
				t.Error("expected the validation failure to be reported")
			}
			if res.Written != tt.wantWritten {
				t.Errorf("Written = %v, want %v", res.Written, tt.wantWritten)
			}
			_, err = env.graphs.LoadGraph(context.Background())
			if tt.wantWritten && err != nil {
				t.Errorf("expected a saved graph, got %v", err)
			}
			if !tt.wantWritten && !errors.Is(err, store.ErrNotFound) {
				t.Errorf("expected no saved graph, got %v", err)
			}
		})
	}
}

func TestRebuildNodes_Incremental(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	env.put(t,
		testNode("DEC-001", models.NodeTypeDecision, "database", "Use PostgreSQL", 0.95, day(1)),
		testNode("DEC-002", models.NodeTypeDecision, "messaging", "Adopt Kafka", 0.90, day(2)),
	)
	if _, err := env.engine.Rebuild(ctx); err != nil {
		t.Fatal(err)
	}

	env.put(t, testNode("DEC-003", models.NodeTypeDecision, "database", "Shard PostgreSQL", 0.70, day(3)))
	res, err := env.engine.RebuildNodes(ctx, "DEC-003")
	if err != nil {
		t.Fatalf("RebuildNodes() error = %v", err)
	}
	if !res.Incremental || res.Nodes != 3 {
		t.Errorf("unexpected result %+v", res)
	}
	related, _ := env.engine.Neighbors(ctx, "DEC-003", models.RelationRelatedTo)
	if !reflect.DeepEqual(related, []string{"DEC-001"}) {
		t.Errorf("DEC-003 relatedTo = %v", related)
	}

	if err := env.nodes.Delete(ctx, "DEC-001"); err != nil {
		t.Fatal(err)
	}
	res, err = env.engine.RebuildNodes(ctx, "DEC-001")
	if err != nil {
		t.Fatalf("RebuildNodes() after delete error = %v", err)
	}
	if res.Nodes != 2 || !res.Validation.Valid {
		t.Errorf("expected 2 nodes and a valid graph, got %+v", res)
	}
	adj, _ := env.graphs.LoadAdjacency(ctx)
	if _, ok := adj.Adjacency["DEC-001"]; ok {
		t.Error("removed node still in adjacency")
	}
	if len(adj.Adjacency) != 2 {
		t.Errorf("adjacency entries = %d, want 2", len(adj.Adjacency))
	}
}

func TestRebuildNodes_MatchesFullRebuild(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	env.put(t,
		testNode("DEC-001", models.NodeTypeDecision, "database", "Use PostgreSQL", 0.5, day(1)),
		testNode("DEC-003", models.NodeTypeDecision, "database", "Shard PostgreSQL", 0.5, day(3)),
	)
	if _, err := env.engine.Rebuild(ctx); err != nil {
		t.Fatal(err)
	}

	env.put(t, testNode("DEC-002", models.NodeTypeDecision, "database", "Add read replicas", 0.5, day(2)))
	if _, err := env.engine.RebuildNodes(ctx, "DEC-002"); err != nil {
		t.Fatalf("RebuildNodes() error = %v", err)
	}
	incremental, _ := env.graphs.LoadGraph(ctx)

	if _, err := env.engine.Rebuild(ctx); err != nil {
		t.Fatal(err)
	}
	full, _ := env.graphs.LoadGraph(ctx)

	if !reflect.DeepEqual(incremental.Nodes, full.Nodes) {
		t.Errorf("node order differs:\n%v\n%v", incremental.Nodes, full.Nodes)
	}
	if !reflect.DeepEqual(incremental.Edges, full.Edges) {
		t.Errorf("edges differ:\n%v\n%v", incremental.Edges, full.Edges)
	}
}

func TestRebuildIncremental_FileStore(t *testing.T) {
	root := t.TempDir()
	layout := store.NewLayout(root, "", "")
	nodes, err := store.NewFileNodeStore(layout)
	if err != nil {
		t.Fatal(err)
	}
	e, err := New(Deps{
		Nodes:  nodes,
		Graphs: store.NewFileGraphStore(layout),
		Layout: layout,
		Now:    func() time.Time { return testNow },
	})
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close()
	ctx := context.Background()

	node := testNode("LRN-001", models.NodeTypeLearning, "testing", "Flaky test triage", 0.6, day(2))
	if err := nodes.Put(ctx, node); err != nil {
		t.Fatal(err)
	}
	path := nodes.PathFor(&node)

	res, err := e.RebuildIncremental(ctx, path)
	if err != nil {
		t.Fatalf("RebuildIncremental() error = %v", err)
	}
	if res.Incremental {
		t.Error("first build without a prior graph should be full")
	}
	if res.Nodes != 1 {
		t.Errorf("nodes = %d, want 1", res.Nodes)
	}

	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	res, err = e.RebuildIncremental(ctx, path)
	if err != nil {
		t.Fatalf("RebuildIncremental() after removal error = %v", err)
	}
	if !res.Incremental || res.Nodes != 0 {
		t.Errorf("expected an incremental removal, got %+v", res)
	}

	outside := filepath.Join(root, "elsewhere.yml")
	if _, err := e.RebuildIncremental(ctx, outside); err == nil {
		t.Error("expected error for a path outside the nodes tree")
	}
}

func TestAddNode(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	added, res, err := env.engine.AddNode(ctx, models.Node{
		ID:         "DEC-100",
		Type:       models.NodeTypeDecision,
		Title:      "Caching sessions in Redis",
		Category:   "performance",
		Confidence: 0.8,
	})
	if err != nil {
		t.Fatalf("AddNode() error = %v", err)
	}
	if !added.CreatedAt.Equal(testNow) {
		t.Errorf("CreatedAt = %v, want %v", added.CreatedAt, testNow)
	}
	if !reflect.DeepEqual(added.Concepts, []string{"performance", "caching"}) {
		t.Errorf("Concepts = %v", added.Concepts)
	}
	if added.Decay.DecayScore != 1.0 || added.Decay.DecayStatus != models.DecayFresh {
		t.Errorf("Decay = %+v", added.Decay)
	}
	if res.Nodes != 1 || !res.Written {
		t.Errorf("rebuild = %+v", res)
	}

	_, _, err = env.engine.AddNode(ctx, models.Node{ID: "DEC-100", Type: models.NodeTypeDecision, Title: "again"})
	if !errors.Is(err, ErrExists) {
		t.Errorf("expected ErrExists, got %v", err)
	}

	_, _, err = env.engine.AddNode(ctx, models.Node{ID: "DEC-101", Title: "no type"})
	if !store.IsValidation(err) {
		t.Errorf("expected a validation error, got %v", err)
	}
}

func TestIngest(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	env.put(t, testNode("DEC-001", models.NodeTypeDecision, "authentication", "Adopt OAuth 2.0", 0.9, day(1)))

	meta := models.EnrichmentMetadata{
		EnrichmentID: "ENR-001",
		CorpusNode:   "DEC-001",
		EnrichedAt:   day(20),
		Version:      "1",
		Similarity:   0.72,
	}
	out, err := env.engine.Ingest(ctx, meta)
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if !out.Created || out.Node.Source != "DEC-001" {
		t.Errorf("unexpected result %+v", out)
	}

	doc, _ := env.graphs.LoadGraph(ctx)
	enriches := edgesOf(doc, models.RelationEnriches)
	if len(enriches) != 1 || enriches[0].Source != "ENR-001" || enriches[0].Target != "DEC-001" {
		t.Fatalf("enriches edges = %v", enriches)
	}
	by, _ := env.engine.Neighbors(ctx, "DEC-001", models.RelationEnrichedBy)
	if !reflect.DeepEqual(by, []string{"ENR-001"}) {
		t.Errorf("enrichedBy = %v", by)
	}

	again, err := env.engine.Ingest(ctx, meta)
	if err != nil {
		t.Fatalf("second Ingest() error = %v", err)
	}
	if again.Created {
		t.Error("second ingest should not create a node")
	}
	source, _ := env.nodes.Get(ctx, "DEC-001")
	if len(source.Enrichments) != 1 {
		t.Errorf("enrichment history = %v, want 1 entry", source.Enrichments)
	}
	doc, _ = env.graphs.LoadGraph(ctx)
	if n := len(edgesOf(doc, models.RelationEnriches)); n != 1 {
		t.Errorf("enriches edges after re-ingest = %d", n)
	}
}

func TestIngest_Errors(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	env.put(t, testNode("DEC-001", models.NodeTypeDecision, "api", "Gateway", 0.9, day(1)))

	_, err := env.engine.Ingest(ctx, models.EnrichmentMetadata{EnrichmentID: "ENR-9", CorpusNode: "DEC-404"})
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("missing source: expected ErrNotFound, got %v", err)
	}

	_, err = env.engine.Ingest(ctx, models.EnrichmentMetadata{CorpusNode: "DEC-001"})
	if !store.IsValidation(err) {
		t.Errorf("missing id: expected validation error, got %v", err)
	}

	_, err = env.engine.Ingest(ctx, models.EnrichmentMetadata{EnrichmentID: "ENR-1", CorpusNode: "DEC-001", Similarity: 1.5})
	if !store.IsValidation(err) {
		t.Errorf("similarity out of range: expected validation error, got %v", err)
	}
}

// rejectPuts fails every Put for one node id.
type rejectPuts struct {
	store.NodeStore
	id string
}

func (r rejectPuts) Put(ctx context.Context, n models.Node) error {
	if n.ID == r.id {
		return errors.New("disk full")
	}
	return r.NodeStore.Put(ctx, n)
}

func TestIngest_SourceWriteFailureRemovesEnrichment(t *testing.T) {
	env := newTestEnv(t, func(d *Deps) {
		d.Nodes = rejectPuts{NodeStore: d.Nodes, id: "DEC-001"}
	})
	ctx := context.Background()
	env.put(t, testNode("DEC-001", models.NodeTypeDecision, "api", "Gateway", 0.9, day(1)))

	_, err := env.engine.Ingest(ctx, models.EnrichmentMetadata{EnrichmentID: "ENR-1", CorpusNode: "DEC-001", EnrichedAt: day(20), Similarity: 0.7})
	if err == nil {
		t.Fatal("Ingest() succeeded with a failing source write")
	}
	if _, err := env.nodes.Get(ctx, "ENR-1"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("enrichment left behind after failed ingest: %v", err)
	}
	if _, err := env.graphs.LoadGraph(ctx); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("graph written after failed ingest: %v", err)
	}
}

func TestRecalculateDecay_Gate(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	env.put(t,
		testNode("DEC-001", models.NodeTypeDecision, "api", "Old gateway", 0.9, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)),
		testNode("DEC-002", models.NodeTypeDecision, "api", "New gateway", 0.9, day(31)),
	)

	report, err := env.engine.RecalculateDecay(ctx, false)
	if err != nil {
		t.Fatalf("RecalculateDecay() error = %v", err)
	}
	if !report.Ran || report.Scored != 2 {
		t.Fatalf("first run should score every node, got %+v", report)
	}
	if report.ByStatus["stale"] != 1 || report.ByStatus["fresh"] != 1 {
		t.Errorf("ByStatus = %v", report.ByStatus)
	}

	env.now = testNow.Add(time.Hour)
	report, _ = env.engine.RecalculateDecay(ctx, false)
	if report.Ran {
		t.Error("recalculation within the interval should be skipped")
	}

	report, _ = env.engine.RecalculateDecay(ctx, true)
	if !report.Ran || report.Scored != 2 {
		t.Errorf("forced run should score every node, got %+v", report)
	}

	env.now = testNow.Add(49 * time.Hour)
	report, _ = env.engine.RecalculateDecay(ctx, false)
	if !report.Ran {
		t.Error("recalculation after the interval should run")
	}

	old, _ := env.nodes.Get(ctx, "DEC-001")
	if old.Decay.DecayStatus != models.DecayStale {
		t.Errorf("DEC-001 status = %s, want stale", old.Decay.DecayStatus)
	}
}

func TestRefresh(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	env.put(t, testNode("DEC-001", models.NodeTypeDecision, "api", "Old gateway", 0.9, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)))

	if _, err := env.engine.RecalculateDecay(ctx, true); err != nil {
		t.Fatal(err)
	}
	node, err := env.engine.Refresh(ctx, "DEC-001")
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if node.Decay.DecayScore != 1.0 || node.Decay.RefreshedAt == nil {
		t.Errorf("Decay after refresh = %+v", node.Decay)
	}
	idx, err := env.graphs.LoadDecayIndex(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if idx.Scores["DEC-001"].DecayScore != 1.0 {
		t.Errorf("decay index not updated: %+v", idx.Scores["DEC-001"])
	}

	if _, err := env.engine.Refresh(ctx, "DEC-404"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestValidateAndFix(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	env.put(t,
		testNode("DEC-001", models.NodeTypeDecision, "api", "Gateway v1", 0.85, day(1)),
		testNode("DEC-002", models.NodeTypeDecision, "api", "Gateway v2", 0.9, day(2)),
	)
	if _, err := env.engine.Rebuild(ctx); err != nil {
		t.Fatal(err)
	}

	doc, _ := env.graphs.LoadGraph(ctx)
	doc.Edges = append(doc.Edges, models.Edge{Source: "DEC-001", Target: "GHOST", Relation: models.RelationRelatedTo})
	adj, _ := env.graphs.LoadAdjacency(ctx)
	if err := env.graphs.SaveIndex(ctx, doc, adj); err != nil {
		t.Fatal(err)
	}

	res, err := env.engine.Validate(ctx)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if res.Valid || len(res.OrphanEdges) != 1 {
		t.Fatalf("expected one orphan edge, got %+v", res)
	}

	report, err := env.engine.Fix(ctx)
	if err != nil {
		t.Fatalf("Fix() error = %v", err)
	}
	if !report.Written || !report.Validation.Valid {
		t.Errorf("unexpected fix report %+v", report)
	}

	res, _ = env.engine.Validate(ctx)
	if !res.Valid {
		t.Errorf("graph still invalid after fix: %s", res.Summary())
	}

	report, _ = env.engine.Fix(ctx)
	if report.Written {
		t.Error("fixing a clean graph should not rewrite it")
	}
}

func TestValidate_NoGraph(t *testing.T) {
	env := newTestEnv(t, nil)
	if _, err := env.engine.Validate(context.Background()); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestWriterLock_Busy(t *testing.T) {
	env := newTestEnv(t, nil)
	lock := store.NewWriterLock(env.layout)
	if err := lock.TryLock(); err != nil {
		t.Fatal(err)
	}
	defer lock.Unlock()

	if _, err := env.engine.Rebuild(context.Background()); !errors.Is(err, store.ErrLocked) {
		t.Errorf("Rebuild() error = %v, want ErrLocked", err)
	}
	if _, err := env.engine.RecalculateDecay(context.Background(), true); !errors.Is(err, store.ErrLocked) {
		t.Errorf("RecalculateDecay() error = %v, want ErrLocked", err)
	}
}

func TestRelated(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	catalog := `documents:
  - id: oauth-2-0
    title: OAuth 2.0 guide
    keywords: [oauth, authentication, security]
    category: authentication
  - id: db-migrations
    title: Database migrations
    keywords: [database, migration, schema]
    category: database
`
	if err := os.MkdirAll(filepath.Dir(env.layout.ReferencesIndex), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(env.layout.ReferencesIndex, []byte(catalog), 0644); err != nil {
		t.Fatal(err)
	}
	env.put(t, testNode("DEC-001", models.NodeTypeDecision, "authentication", "OAuth migration plan", 0.9, day(1)))

	minSim := 0.1
	matches, err := env.engine.Related(ctx, "OAuth 2.1 migration", RelatedOptions{MinSimilarity: &minSim})
	if err != nil {
		t.Fatalf("Related() error = %v", err)
	}
	if len(matches) == 0 || matches[0].ID != "oauth-2-0" {
		t.Fatalf("expected oauth-2-0 first, got %+v", matches)
	}
	for i := 1; i < len(matches); i++ {
		if matches[i].Score > matches[i-1].Score {
			t.Errorf("results not sorted at %d", i)
		}
	}
	for _, m := range matches {
		if m.ID == "DEC-001" {
			t.Error("nodes should be excluded unless requested")
		}
	}

	include := true
	matches, _ = env.engine.Related(ctx, "OAuth 2.1 migration", RelatedOptions{MinSimilarity: &minSim, IncludeNodes: &include})
	found := false
	for _, m := range matches {
		if m.ID == "DEC-001" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected DEC-001 among %+v", matches)
	}
}

func TestRank(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	env.put(t,
		testNode("DEC-001", models.NodeTypeDecision, "database", "Primary store", 0.7, day(1)),
		testNode("DEC-002", models.NodeTypeDecision, "database", "Replica", 0.7, day(2)),
		testNode("DEC-003", models.NodeTypeDecision, "database", "Sharding", 0.7, day(3)),
		testNode("DEC-004", models.NodeTypeDecision, "messaging", "Loner", 0.7, day(4)),
	)
	if _, err := env.engine.Rebuild(ctx); err != nil {
		t.Fatal(err)
	}

	ranked, err := env.engine.Rank(ctx, 0)
	if err != nil {
		t.Fatalf("Rank() error = %v", err)
	}
	if len(ranked) != 4 {
		t.Fatalf("expected 4 ranked nodes, got %d", len(ranked))
	}
	if ranked[3].ID != "DEC-004" {
		t.Errorf("isolated node should rank last, got %+v", ranked)
	}

	top, _ := env.engine.Rank(ctx, 2)
	if len(top) != 2 {
		t.Errorf("Rank(2) returned %d nodes", len(top))
	}
}

func TestNeighbors_UnknownRelation(t *testing.T) {
	env := newTestEnv(t, nil)
	if _, err := env.engine.Neighbors(context.Background(), "DEC-001", "parentOf"); err == nil {
		t.Error("expected error for an unknown relation")
	}
}
