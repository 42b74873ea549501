package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/nvandessel/corpus-graph/internal/engine"
	"github.com/nvandessel/corpus-graph/internal/models"
	"github.com/nvandessel/corpus-graph/internal/ratelimit"
	"github.com/nvandessel/corpus-graph/internal/store"
)

func testEngine(t *testing.T, withNodes bool) *engine.Engine {
	t.Helper()
	eng, err := engine.New(engine.Deps{
		Nodes:  store.NewInMemoryNodeStore(),
		Graphs: store.NewInMemoryGraphStore(),
		Layout: store.NewLayout(t.TempDir(), "", ""),
	})
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}
	t.Cleanup(func() { eng.Close() })

	if withNodes {
		ctx := context.Background()
		for _, n := range []models.Node{
			{ID: "DEC-001", Type: models.NodeTypeDecision, CreatedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
				Title: "Primary datastore choice", Status: "active", Category: "database", Confidence: 0.95},
			{ID: "DEC-002", Type: models.NodeTypeDecision, CreatedAt: time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC),
				Title: "Read replica rollout", Status: "active", Category: "database", Confidence: 0.75},
			{ID: "LRN-001", Type: models.NodeTypeLearning, CreatedAt: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
				Title: "Flaky deploys", Category: "ci", Confidence: 0.7},
		} {
			if _, _, err := eng.AddNode(ctx, n); err != nil {
				t.Fatalf("AddNode(%s): %v", n.ID, err)
			}
		}
	}
	return eng
}

func testServer(t *testing.T) *Server {
	t.Helper()
	return New(testEngine(t, true), "test-version", WithLimiter(nil))
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("GET", path, nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body %q: %v", w.Body.String(), err)
	}
	return body
}

func TestHealthEndpoint(t *testing.T) {
	srv := testServer(t)

	w := get(t, srv, "/api/health")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	body := decode(t, w)
	if body["status"] != "ok" {
		t.Errorf("status = %v, want ok", body["status"])
	}
	if body["version"] != "test-version" {
		t.Errorf("version = %v, want test-version", body["version"])
	}
	if body["graph"] != true || body["nodes"] != float64(3) {
		t.Errorf("graph = %v, nodes = %v", body["graph"], body["nodes"])
	}
}

func TestHealthEndpoint_NoGraph(t *testing.T) {
	srv := New(testEngine(t, false), "v", WithLimiter(nil))

	body := decode(t, get(t, srv, "/api/health"))
	if body["graph"] != false {
		t.Errorf("graph = %v, want false", body["graph"])
	}
	if _, ok := body["build_id"]; ok {
		t.Error("build_id reported without a graph")
	}
}

func TestListNodes(t *testing.T) {
	srv := testServer(t)

	tests := []struct {
		path   string
		status int
		count  float64
	}{
		{"/api/nodes", http.StatusOK, 3},
		{"/api/nodes?type=decision", http.StatusOK, 2},
		{"/api/nodes?type=learnings", http.StatusOK, 1},
		{"/api/nodes?type=enrichment", http.StatusOK, 0},
		{"/api/nodes?type=bogus", http.StatusBadRequest, 0},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			w := get(t, srv, tt.path)
			if w.Code != tt.status {
				t.Fatalf("status = %d, want %d", w.Code, tt.status)
			}
			if tt.status != http.StatusOK {
				return
			}
			body := decode(t, w)
			if body["count"] != tt.count {
				t.Errorf("count = %v, want %v", body["count"], tt.count)
			}
			if _, ok := body["nodes"].([]any); !ok {
				t.Errorf("nodes = %T, want array", body["nodes"])
			}
		})
	}
}

func TestGetNode(t *testing.T) {
	srv := testServer(t)

	w := get(t, srv, "/api/nodes/DEC-001")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	body := decode(t, w)
	node := body["node"].(map[string]any)
	if node["title"] != "Primary datastore choice" {
		t.Errorf("title = %v", node["title"])
	}
	neighbors := body["neighbors"].(map[string]any)
	related, _ := neighbors["relatedTo"].([]any)
	if len(related) != 1 || related[0] != "DEC-002" {
		t.Errorf("relatedTo = %v, want [DEC-002]", neighbors["relatedTo"])
	}

	if w := get(t, srv, "/api/nodes/DEC-404"); w.Code != http.StatusNotFound {
		t.Errorf("unknown node status = %d, want 404", w.Code)
	}
}

func TestNeighbors(t *testing.T) {
	srv := testServer(t)

	tests := []struct {
		path   string
		status int
		count  float64
	}{
		{"/api/nodes/DEC-002/neighbors", http.StatusOK, 1},
		{"/api/nodes/DEC-002/neighbors?relation=relatedTo", http.StatusOK, 1},
		{"/api/nodes/DEC-002/neighbors?relation=supersedes", http.StatusOK, 0},
		{"/api/nodes/LRN-001/neighbors", http.StatusOK, 0},
		{"/api/nodes/DEC-002/neighbors?relation=dependsOn", http.StatusBadRequest, 0},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			w := get(t, srv, tt.path)
			if w.Code != tt.status {
				t.Fatalf("status = %d, want %d", w.Code, tt.status)
			}
			if tt.status == http.StatusOK {
				if body := decode(t, w); body["count"] != tt.count {
					t.Errorf("count = %v, want %v", body["count"], tt.count)
				}
			}
		})
	}
}

func TestGraphFormats(t *testing.T) {
	srv := testServer(t)

	tests := []struct {
		format      string
		status      int
		contentType string
		contains    string
	}{
		{"", http.StatusOK, "application/json", `"nodes"`},
		{"json", http.StatusOK, "application/json", `"edges"`},
		{"dot", http.StatusOK, "text/vnd.graphviz; charset=utf-8", "digraph corpus"},
		{"html", http.StatusOK, "text/html; charset=utf-8", "<!DOCTYPE html>"},
		{"svg", http.StatusBadRequest, "application/json", "unsupported format"},
	}
	for _, tt := range tests {
		t.Run("format="+tt.format, func(t *testing.T) {
			w := get(t, srv, "/api/graph?format="+tt.format)
			if w.Code != tt.status {
				t.Fatalf("status = %d, want %d", w.Code, tt.status)
			}
			if ct := w.Header().Get("Content-Type"); ct != tt.contentType {
				t.Errorf("Content-Type = %q, want %q", ct, tt.contentType)
			}
			if !strings.Contains(w.Body.String(), tt.contains) {
				t.Errorf("body missing %q", tt.contains)
			}
		})
	}
}

func TestGraph_NotBuilt(t *testing.T) {
	srv := New(testEngine(t, false), "v", WithLimiter(nil))

	for _, path := range []string{"/api/graph", "/api/graph/rank", "/api/validate", "/"} {
		if w := get(t, srv, path); w.Code != http.StatusNotFound {
			t.Errorf("GET %s status = %d, want 404", path, w.Code)
		}
	}
}

func TestIndexServesHTML(t *testing.T) {
	srv := testServer(t)

	w := get(t, srv, "/")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/html; charset=utf-8" {
		t.Errorf("Content-Type = %q", ct)
	}
}

func TestRank(t *testing.T) {
	srv := testServer(t)

	body := decode(t, get(t, srv, "/api/graph/rank?top=2"))
	if body["count"] != float64(2) {
		t.Errorf("count = %v, want 2", body["count"])
	}

	if w := get(t, srv, "/api/graph/rank?top=-1"); w.Code != http.StatusBadRequest {
		t.Errorf("negative top status = %d, want 400", w.Code)
	}
	if w := get(t, srv, "/api/graph/rank?top=x"); w.Code != http.StatusBadRequest {
		t.Errorf("non-numeric top status = %d, want 400", w.Code)
	}
}

func TestValidate(t *testing.T) {
	srv := testServer(t)

	body := decode(t, get(t, srv, "/api/validate"))
	if body["valid"] != true {
		t.Errorf("valid = %v, want true (%v)", body["valid"], body["message"])
	}
	if orphans, ok := body["orphan_edges"].([]any); !ok || len(orphans) != 0 {
		t.Errorf("orphan_edges = %v, want []", body["orphan_edges"])
	}
}

func TestRelated(t *testing.T) {
	srv := testServer(t)

	tests := []struct {
		path   string
		status int
		count  float64
	}{
		{"/api/related?q=database&min=0.05&nodes=true", http.StatusOK, 2},
		{"/api/related?q=database&min=0.05&nodes=true&top=1", http.StatusOK, 1},
		{"/api/related?q=database", http.StatusOK, 0},
		{"/api/related", http.StatusBadRequest, 0},
		{"/api/related?q=x&min=2", http.StatusBadRequest, 0},
		{"/api/related?q=x&top=many", http.StatusBadRequest, 0},
		{"/api/related?q=x&nodes=maybe", http.StatusBadRequest, 0},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			w := get(t, srv, tt.path)
			if w.Code != tt.status {
				t.Fatalf("status = %d, want %d: %s", w.Code, tt.status, w.Body.String())
			}
			if tt.status != http.StatusOK {
				return
			}
			if body := decode(t, w); body["count"] != tt.count {
				t.Errorf("count = %v, want %v", body["count"], tt.count)
			}
		})
	}
}

func TestRateLimit(t *testing.T) {
	srv := New(testEngine(t, true), "v", WithLimiter(ratelimit.NewLimiter(0.01, 2)))

	for i := 0; i < 2; i++ {
		if w := get(t, srv, "/api/health"); w.Code != http.StatusOK {
			t.Fatalf("request %d status = %d, want 200", i, w.Code)
		}
	}
	w := get(t, srv, "/api/health")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After header")
	}
}

func TestClientKey(t *testing.T) {
	tests := []struct {
		remote string
		want   string
	}{
		{"192.0.2.1:1234", "192.0.2.1"},
		{"[::1]:8080", "::1"},
		{"203.0.113.9", "203.0.113.9"},
	}
	for _, tt := range tests {
		r := httptest.NewRequest("GET", "/", nil)
		r.RemoteAddr = tt.remote
		if got := clientKey(r); got != tt.want {
			t.Errorf("clientKey(%q) = %q, want %q", tt.remote, got, tt.want)
		}
	}
}

func waitForServer(t *testing.T, srv *Server, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if srv.Addr() != "" {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("server did not start in time")
}

func TestListenAndServe(t *testing.T) {
	srv := testServer(t)
	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe(ctx, "") }()
	waitForServer(t, srv, 2*time.Second)

	resp, err := http.Get("http://" + srv.Addr() + "/api/health")
	if err != nil {
		t.Fatalf("GET /api/health: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("ListenAndServe returned %v, want nil on shutdown", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
