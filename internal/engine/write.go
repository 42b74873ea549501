package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/nvandessel/corpus-graph/internal/models"
	"github.com/nvandessel/corpus-graph/internal/store"
)

// AddNode creates a node and indexes it. created_at defaults to now, the
// concepts are derived from category and title, and the decay metadata
// starts fresh. Adding an id that already exists returns ErrExists.
func (e *Engine) AddNode(ctx context.Context, node models.Node) (*models.Node, *RebuildResult, error) {
	var res *RebuildResult
	err := e.withLock(func() error {
		if _, err := e.nodes.Get(ctx, node.ID); err == nil {
			return fmt.Errorf("%s: %w", node.ID, ErrExists)
		} else if !errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("failed to check node %s: %w", node.ID, err)
		}

		e.stamp(&node)
		if err := e.nodes.Put(ctx, node); err != nil {
			return fmt.Errorf("failed to add node: %w", err)
		}

		var err error
		res, err = e.rebuildChanged(ctx, []string{node.ID})
		return err
	})
	if err != nil {
		return nil, nil, err
	}

	e.events.Log("add", map[string]any{"node": node.ID, "type": node.Type, "build_id": res.BuildID})
	return &node, res, nil
}

// stamp fills the fields a new node derives from its content.
func (e *Engine) stamp(node *models.Node) {
	now := e.now()
	if node.CreatedAt.IsZero() {
		node.CreatedAt = now
	}
	node.Concepts = e.opts.Vocabulary.Concepts(node.Category, node.Title)
	if node.Decay.LastScoredAt.IsZero() {
		node.Decay = e.scorer.Initial(node.CreatedAt)
	}
}

// IngestResult reports one ingested enrichment.
type IngestResult struct {
	Node    *models.Node   `json:"node"`
	Source  string         `json:"source"`
	Created bool           `json:"created"`
	Rebuild *RebuildResult `json:"rebuild"`
}

// Ingest adds the Enrichment node described by meta, records it in the
// enriched node's history and indexes both, yielding one enriches edge.
// Ingesting the same enrichment twice changes nothing.
func (e *Engine) Ingest(ctx context.Context, meta models.EnrichmentMetadata) (*IngestResult, error) {
	if err := store.ValidateEnrichment(&meta); err != nil {
		return nil, err
	}

	out := &IngestResult{Source: meta.CorpusNode}
	err := e.withLock(func() error {
		source, err := e.nodes.Get(ctx, meta.CorpusNode)
		if err != nil {
			return fmt.Errorf("enriched node %s: %w", meta.CorpusNode, err)
		}
		if source.Type == models.NodeTypeEnrichment {
			return &store.ValidationError{NodeID: meta.EnrichmentID, Field: "corpus_node", Reason: "must not be an enrichment"}
		}

		existing, err := e.nodes.Get(ctx, meta.EnrichmentID)
		switch {
		case err == nil:
			if existing.Source != meta.CorpusNode {
				return fmt.Errorf("%s enriches %s: %w", meta.EnrichmentID, existing.Source, ErrExists)
			}
			out.Node = existing
		case errors.Is(err, store.ErrNotFound):
			node := meta.ToNode(e.now())
			e.stamp(&node)
			if err := e.nodes.Put(ctx, node); err != nil {
				return fmt.Errorf("failed to add enrichment: %w", err)
			}
			out.Node = &node
			out.Created = true
		default:
			return fmt.Errorf("failed to check enrichment %s: %w", meta.EnrichmentID, err)
		}

		if !source.HasEnrichment(meta.EnrichmentID) {
			source.Enrichments = append(source.Enrichments, meta.Ref(e.now()))
			if err := e.nodes.Put(ctx, *source); err != nil {
				err = fmt.Errorf("failed to record enrichment on %s: %w", source.ID, err)
				if out.Created {
					if derr := e.nodes.Delete(ctx, meta.EnrichmentID); derr != nil {
						return fmt.Errorf("%w (removing %s: %v)", err, meta.EnrichmentID, derr)
					}
				}
				return err
			}
		}

		out.Rebuild, err = e.rebuildChanged(ctx, []string{meta.EnrichmentID, meta.CorpusNode})
		return err
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("enrichment ingested", "enrichment", meta.EnrichmentID, "source", meta.CorpusNode, "created", out.Created)
	e.events.Log("ingest", map[string]any{
		"enrichment": meta.EnrichmentID,
		"source":     meta.CorpusNode,
		"created":    out.Created,
		"build_id":   out.Rebuild.BuildID,
	})
	return out, nil
}
