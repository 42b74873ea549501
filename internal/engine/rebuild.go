package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nvandessel/corpus-graph/internal/graphindex"
	"github.com/nvandessel/corpus-graph/internal/integrity"
	"github.com/nvandessel/corpus-graph/internal/logging"
	"github.com/nvandessel/corpus-graph/internal/models"
	"github.com/nvandessel/corpus-graph/internal/pathutil"
	"github.com/nvandessel/corpus-graph/internal/relations"
	"github.com/nvandessel/corpus-graph/internal/store"
)

// RebuildResult reports one full or incremental rebuild.
type RebuildResult struct {
	BuildID     string                  `json:"build_id"`
	Incremental bool                    `json:"incremental"`
	Nodes       int                     `json:"nodes"`
	Edges       int                     `json:"edges"`
	Relations   map[models.Relation]int `json:"relations,omitempty"`
	Skipped     int                     `json:"skipped"`
	SkipReasons []string                `json:"skip_reasons,omitempty"`
	Warnings    []relations.Warning     `json:"warnings,omitempty"`
	Validation  integrity.Result        `json:"validation"`
	Written     bool                    `json:"written"`
	Duration    time.Duration           `json:"duration"`
}

// Rebuild regenerates the graph document and adjacency index from every
// node in the store. Unreadable nodes are skipped and counted. When the new
// graph fails validation and index.reject_invalid is set, the previous
// snapshot is kept and Written is false. Failing to write the documents is
// returned as an error; the previous snapshot is then still intact.
func (e *Engine) Rebuild(ctx context.Context) (*RebuildResult, error) {
	var res *RebuildResult
	err := e.withLock(func() error {
		var err error
		res, err = e.rebuildAll(ctx)
		return err
	})
	return res, err
}

// RebuildIncremental updates the graph after a single node file changed.
// The path must lie inside the nodes tree. A file that no longer exists
// removes its node. Without a prior graph this falls back to a full rebuild.
func (e *Engine) RebuildIncremental(ctx context.Context, changedPath string) (*RebuildResult, error) {
	resolved, err := pathutil.Resolve(changedPath, []string{e.layout.NodesDir()})
	if err != nil {
		return nil, err
	}
	if !store.IsNodeFile(resolved) {
		return nil, fmt.Errorf("not a node file: %s", pathutil.RedactPath(resolved))
	}

	var res *RebuildResult
	err = e.withLock(func() error {
		var err error
		res, err = e.rebuildChanged(ctx, []string{store.IDFromPath(resolved)})
		return err
	})
	return res, err
}

// RebuildNodes updates the graph for the given node ids, reading each from
// the store. Ids that no longer exist are removed.
func (e *Engine) RebuildNodes(ctx context.Context, ids ...string) (*RebuildResult, error) {
	var res *RebuildResult
	err := e.withLock(func() error {
		var err error
		res, err = e.rebuildChanged(ctx, ids)
		return err
	})
	return res, err
}

func (e *Engine) rebuildAll(ctx context.Context) (*RebuildResult, error) {
	start := time.Now()
	res := &RebuildResult{BuildID: logging.NewBuildID()}

	nodes, errs := store.CollectNodes(ctx, e.nodes, "")
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("rebuild interrupted: %w", err)
	}
	for _, err := range errs {
		e.skip(res, err)
	}

	if err := e.build(ctx, nodes, res); err != nil {
		return nil, err
	}
	res.Duration = time.Since(start)
	e.report(res)
	return res, nil
}

func (e *Engine) rebuildChanged(ctx context.Context, ids []string) (*RebuildResult, error) {
	prior, err := e.graphs.LoadGraph(ctx)
	if errors.Is(err, store.ErrNotFound) {
		e.logger.Debug("no prior graph, running full rebuild")
		return e.rebuildAll(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load graph: %w", err)
	}

	start := time.Now()
	res := &RebuildResult{BuildID: logging.NewBuildID(), Incremental: true}

	var upserts []models.Node
	var removals []string
	for _, id := range ids {
		node, err := e.nodes.Get(ctx, id)
		switch {
		case errors.Is(err, store.ErrNotFound):
			removals = append(removals, id)
		case err != nil:
			e.skip(res, err)
		default:
			upserts = append(upserts, *node)
		}
	}

	nodes := graphindex.Patch(prior, upserts, removals)
	if err := e.build(ctx, nodes, res); err != nil {
		return nil, err
	}
	res.Duration = time.Since(start)
	e.report(res)
	return res, nil
}

// build extracts, indexes and validates nodes, then saves the documents
// unless validation rejects them.
func (e *Engine) build(ctx context.Context, nodes []models.Node, res *RebuildResult) error {
	extracted := relations.Extract(nodes, e.opts)
	for i := range nodes {
		nodes[i].Concepts = extracted.Concepts[nodes[i].ID]
		e.logger.Log(ctx, logging.LevelTrace, "node concepts", "node", nodes[i].ID, "concepts", nodes[i].Concepts)
	}
	for _, w := range extracted.Warnings {
		e.logger.Warn("relation extraction", "node", w.NodeID, "warning", w.Message)
	}
	res.Warnings = extracted.Warnings

	doc := graphindex.Rebuild(nodes, extracted.Edges, graphindex.BuildInfo{
		GeneratedBy: e.generatedBy(),
		Now:         e.now(),
		BuildID:     res.BuildID,
	})
	adj := graphindex.BuildAdjacency(doc)

	res.Nodes = doc.Metadata.NodeCount
	res.Edges = doc.Metadata.EdgeCount
	res.Relations = doc.Metadata.RelationCounts
	res.Validation = e.checks.Run(doc, adj)

	if !res.Validation.Valid && e.cfg.Index.RejectInvalid {
		e.logger.Warn("rebuilt graph failed validation, keeping previous snapshot",
			"build_id", res.BuildID, "summary", res.Validation.Summary())
		return nil
	}

	if err := e.graphs.SaveIndex(ctx, doc, adj); err != nil {
		return fmt.Errorf("failed to save graph: %w", err)
	}
	res.Written = true
	return nil
}

func (e *Engine) skip(res *RebuildResult, err error) {
	res.Skipped++
	res.SkipReasons = append(res.SkipReasons, err.Error())
	e.logger.Warn("skipping node", "error", err)
}

func (e *Engine) report(res *RebuildResult) {
	event := "rebuild"
	if res.Incremental {
		event = "rebuild_incremental"
	}
	e.logger.Info(event,
		"build_id", res.BuildID,
		"nodes", res.Nodes,
		"edges", res.Edges,
		"skipped", res.Skipped,
		"written", res.Written,
		"duration", res.Duration)
	e.events.Log(event, map[string]any{
		"build_id":    res.BuildID,
		"nodes":       res.Nodes,
		"edges":       res.Edges,
		"skipped":     res.Skipped,
		"warnings":    len(res.Warnings),
		"valid":       res.Validation.Valid,
		"orphans":     len(res.Validation.OrphanEdges),
		"written":     res.Written,
		"duration_ms": res.Duration.Milliseconds(),
	})
}
