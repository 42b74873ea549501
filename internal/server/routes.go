package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/nvandessel/corpus-graph/internal/engine"
	"github.com/nvandessel/corpus-graph/internal/models"
	"github.com/nvandessel/corpus-graph/internal/ranking"
	"github.com/nvandessel/corpus-graph/internal/similarity"
	"github.com/nvandessel/corpus-graph/internal/store"
	"github.com/nvandessel/corpus-graph/internal/visualization"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeEngineError maps engine errors onto HTTP statuses.
func writeEngineError(w http.ResponseWriter, err error) {
	var verr *store.ValidationError
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{
		"status":  "ok",
		"version": s.version,
		"uptime":  time.Since(s.started).Seconds(),
		"root":    s.engine.Layout().Root,
		"graph":   false,
	}
	if doc, err := s.engine.Graph(r.Context()); err == nil {
		body["graph"] = true
		body["build_id"] = doc.BuildID
		body["nodes"] = doc.Metadata.NodeCount
		body["edges"] = doc.Metadata.EdgeCount
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) handleListNodes(w http.ResponseWriter, r *http.Request) {
	var nodeType models.NodeType
	if t := r.URL.Query().Get("type"); t != "" {
		parsed, ok := models.ParseNodeType(t)
		if !ok {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown node type %q", t))
			return
		}
		nodeType = parsed
	}

	nodes, errs := s.engine.ListNodes(r.Context(), nodeType)
	if nodes == nil {
		nodes = []models.Node{}
	}
	skipped := make([]string, 0, len(errs))
	for _, err := range errs {
		skipped = append(skipped, err.Error())
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"nodes":   nodes,
		"count":   len(nodes),
		"skipped": skipped,
	})
}

func (s *Server) handleGetNode(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	node, err := s.engine.Node(r.Context(), id)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	neighbors, err := s.engine.NeighborMap(r.Context(), id)
	if err != nil {
		s.logger.Debug("no adjacency for node", "node", id, "error", err)
		neighbors = map[string][]string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"node":      node,
		"neighbors": neighbors,
	})
}

func (s *Server) handleNeighbors(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rel := models.Relation(r.URL.Query().Get("relation"))
	if rel != "" && !rel.Valid() {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown relation %q", rel))
		return
	}

	ids, err := s.engine.Neighbors(r.Context(), id, rel)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":        id,
		"relation":  rel,
		"neighbors": ids,
		"count":     len(ids),
	})
}

func (s *Server) handleGraph(w http.ResponseWriter, r *http.Request) {
	format, err := visualization.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	doc, err := s.engine.Graph(r.Context())
	if err != nil {
		writeEngineError(w, err)
		return
	}

	switch format {
	case visualization.FormatDOT:
		w.Header().Set("Content-Type", "text/vnd.graphviz; charset=utf-8")
		w.Write([]byte(visualization.RenderDOT(doc)))
	case visualization.FormatHTML:
		s.writeHTML(w, doc)
	default:
		writeJSON(w, http.StatusOK, visualization.RenderJSON(doc, ranking.ComputePageRank(doc, ranking.DefaultPageRankConfig())))
	}
}

// handleIndex serves the interactive graph page.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	doc, err := s.engine.Graph(r.Context())
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, "no graph has been built yet; run corpusgraph rebuild", http.StatusNotFound)
			return
		}
		http.Error(w, "load graph: "+err.Error(), http.StatusInternalServerError)
		return
	}
	s.writeHTML(w, doc)
}

func (s *Server) writeHTML(w http.ResponseWriter, doc *models.GraphDocument) {
	html, err := visualization.RenderHTML(doc, ranking.ComputePageRank(doc, ranking.DefaultPageRankConfig()))
	if err != nil {
		http.Error(w, "render error: "+err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(html)
}

func (s *Server) handleRank(w http.ResponseWriter, r *http.Request) {
	top := 0
	if v := r.URL.Query().Get("top"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "top must be a non-negative integer")
			return
		}
		top = n
	}

	ranked, err := s.engine.Rank(r.Context(), top)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"nodes": ranked,
		"count": len(ranked),
	})
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	res, err := s.engine.Validate(r.Context())
	if err != nil {
		writeEngineError(w, err)
		return
	}
	orphans := res.OrphanEdges
	if orphans == nil {
		orphans = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"valid":        res.Valid,
		"error_count":  res.Errors(),
		"orphan_edges": orphans,
		"issues":       res.Issues,
		"message":      res.Summary(),
	})
}

func (s *Server) handleRelated(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := q.Get("q")
	if query == "" {
		writeError(w, http.StatusBadRequest, "q parameter required")
		return
	}

	var opts engine.RelatedOptions
	if v := q.Get("min"); v != "" {
		minSim, err := strconv.ParseFloat(v, 64)
		if err != nil || minSim < 0 || minSim > 1 {
			writeError(w, http.StatusBadRequest, "min must be a number between 0 and 1")
			return
		}
		opts.MinSimilarity = &minSim
	}
	if v := q.Get("top"); v != "" {
		top, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "top must be an integer")
			return
		}
		opts.TopK = &top
	}
	if v := q.Get("nodes"); v != "" {
		include, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "nodes must be a boolean")
			return
		}
		opts.IncludeNodes = &include
	}

	matches, err := s.engine.Related(r.Context(), query, opts)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	if matches == nil {
		matches = []similarity.Match{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"query":   query,
		"matches": matches,
		"count":   len(matches),
	})
}
