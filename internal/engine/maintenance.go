package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nvandessel/corpus-graph/internal/graphindex"
	"github.com/nvandessel/corpus-graph/internal/integrity"
	"github.com/nvandessel/corpus-graph/internal/models"
	"github.com/nvandessel/corpus-graph/internal/ranking"
	"github.com/nvandessel/corpus-graph/internal/store"
)

// RecalculateDecay rescores every node when the decay cache is older than
// the recalculation interval, or always when force is set. Per-node failures
// only show up in the report; the returned error is non-nil only when the
// writer lock is unavailable.
func (e *Engine) RecalculateDecay(ctx context.Context, force bool) (ranking.DecayReport, error) {
	var report ranking.DecayReport
	err := e.withLock(func() error {
		report = e.recalculateDecay(ctx, force)
		return nil
	})
	return report, err
}

func (e *Engine) recalculateDecay(ctx context.Context, force bool) ranking.DecayReport {
	last := e.lastDecayUpdate(ctx)
	if !force && !e.scorer.ShouldRecalculate(last) {
		e.logger.Debug("decay scores are current, skipping", "last_updated", last)
		return ranking.DecayReport{ByStatus: map[string]int{}}
	}

	report, idx := e.scorer.Recalculate(ctx, e.nodes)
	if err := e.graphs.SaveDecayIndex(ctx, idx); err != nil {
		report.Warnings = append(report.Warnings, fmt.Sprintf("failed to save decay index: %v", err))
	}
	for _, w := range report.Warnings {
		e.logger.Warn("decay recalculation", "warning", w)
	}

	e.logger.Info("decay recalculated", "scored", report.Scored, "skipped", report.Skipped)
	e.events.Log("decay", map[string]any{
		"scored":    report.Scored,
		"skipped":   report.Skipped,
		"by_status": report.ByStatus,
		"forced":    force,
	})
	return report
}

// lastDecayUpdate returns when the decay cache was last written, or the zero
// time when it is missing or unreadable.
func (e *Engine) lastDecayUpdate(ctx context.Context) time.Time {
	idx, err := e.graphs.LoadDecayIndex(ctx)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			e.logger.Warn("unreadable decay index, recalculating", "error", err)
		}
		return time.Time{}
	}
	return idx.LastUpdated
}

// Refresh marks a node as explicitly reviewed, resetting its decay score.
func (e *Engine) Refresh(ctx context.Context, id string) (*models.Node, error) {
	var node *models.Node
	err := e.withLock(func() error {
		var err error
		node, err = e.nodes.Get(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to get node %s: %w", id, err)
		}
		e.scorer.Refresh(node, e.now())
		if err := e.nodes.Put(ctx, *node); err != nil {
			return fmt.Errorf("failed to save node %s: %w", id, err)
		}

		if idx, err := e.graphs.LoadDecayIndex(ctx); err == nil {
			if idx.Scores == nil {
				idx.Scores = make(map[string]models.DecayMetadata)
			}
			idx.Scores[id] = node.Decay
			if err := e.graphs.SaveDecayIndex(ctx, idx); err != nil {
				e.logger.Warn("failed to update decay index", "node", id, "error", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("node refreshed", "node", id)
	e.events.Log("refresh", map[string]any{"node": id})
	return node, nil
}

// Validate runs every registered integrity check against the stored graph
// and adjacency index. A missing adjacency index skips the adjacency check.
func (e *Engine) Validate(ctx context.Context) (integrity.Result, error) {
	doc, err := e.graphs.LoadGraph(ctx)
	if err != nil {
		return integrity.Result{}, fmt.Errorf("failed to load graph: %w", err)
	}
	adj, err := e.graphs.LoadAdjacency(ctx)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return integrity.Result{}, fmt.Errorf("failed to load adjacency: %w", err)
	}

	res := e.checks.Run(doc, adj)
	e.events.Log("validate", map[string]any{
		"build_id": doc.BuildID,
		"valid":    res.Valid,
		"issues":   len(res.Issues),
		"orphans":  len(res.OrphanEdges),
	})
	return res, nil
}

// FixReport is the outcome of Fix.
type FixReport struct {
	Fixes      []integrity.FixResult `json:"fixes"`
	Validation integrity.Result      `json:"validation"`
	Written    bool                  `json:"written"`
}

// Fix repairs the stored graph with every registered fixer, rebuilds the
// adjacency index from the repaired document and saves both.
func (e *Engine) Fix(ctx context.Context) (*FixReport, error) {
	var report *FixReport
	err := e.withLock(func() error {
		doc, err := e.graphs.LoadGraph(ctx)
		if err != nil {
			return fmt.Errorf("failed to load graph: %w", err)
		}

		fixes, err := e.checks.Fix(doc)
		if err != nil {
			return err
		}
		adj := graphindex.BuildAdjacency(doc)
		report = &FixReport{Fixes: fixes, Validation: e.checks.Run(doc, adj)}

		changed := 0
		for _, f := range fixes {
			changed += f.Changed
		}
		if changed == 0 {
			return nil
		}
		if err := e.graphs.SaveIndex(ctx, doc, adj); err != nil {
			return fmt.Errorf("failed to save graph: %w", err)
		}
		report.Written = true

		e.logger.Info("graph repaired", "changes", changed, "valid", report.Validation.Valid)
		e.events.Log("fix", map[string]any{
			"build_id": doc.BuildID,
			"changes":  changed,
			"valid":    report.Validation.Valid,
		})
		return nil
	})
	return report, err
}
