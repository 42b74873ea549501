package mcp

import (
	"context"
	"fmt"
	"time"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/nvandessel/corpus-graph/internal/backup"
	"github.com/nvandessel/corpus-graph/internal/engine"
	"github.com/nvandessel/corpus-graph/internal/integrity"
	"github.com/nvandessel/corpus-graph/internal/models"
	"github.com/nvandessel/corpus-graph/internal/ranking"
	"github.com/nvandessel/corpus-graph/internal/ratelimit"
	"github.com/nvandessel/corpus-graph/internal/similarity"
	"github.com/nvandessel/corpus-graph/internal/visualization"
)

// registerTools registers all corpus MCP tools with the server.
func (s *Server) registerTools() {
	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "corpus_related",
		Description: "Find reference documents (and optionally corpus nodes) related to a free-text description of the current work",
	}, s.handleRelated)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "corpus_get",
		Description: "Get a corpus node by id, with its neighbors grouped by relation",
	}, s.handleGet)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "corpus_neighbors",
		Description: "List the nodes adjacent to a node, optionally through a single relation",
	}, s.handleNeighbors)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "corpus_rank",
		Description: "Rank corpus nodes by PageRank over the knowledge graph",
	}, s.handleRank)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "corpus_graph",
		Description: "Render the knowledge graph in JSON, DOT (Graphviz) or interactive HTML format",
	}, s.handleGraph)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "corpus_validate",
		Description: "Validate the knowledge graph for orphan edges, duplicates, self-loops and stale metadata",
	}, s.handleValidate)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "corpus_fix",
		Description: "Repair the knowledge graph: prune orphan edges, drop duplicate edges and recount metadata",
	}, s.handleFix)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "corpus_rebuild",
		Description: "Rebuild the knowledge graph from the corpus nodes, fully or for the given node ids",
	}, s.handleRebuild)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "corpus_decay",
		Description: "Recalculate the decay (staleness) scores of every node",
	}, s.handleDecay)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "corpus_refresh",
		Description: "Mark a node as reviewed, resetting its decay score to fresh",
	}, s.handleRefresh)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "corpus_enrich",
		Description: "Ingest enrichment metadata: create the enrichment node and link it to the node it enriches",
	}, s.handleEnrich)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "corpus_backup",
		Description: "Export every node and the current graph to a checksummed backup file",
	}, s.handleBackup)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "corpus_restore",
		Description: "Import nodes from a backup file (merge or replace) and rebuild the graph",
	}, s.handleRestore)
}

// handleRelated implements the corpus_related tool.
func (s *Server) handleRelated(ctx context.Context, req *sdk.CallToolRequest, args RelatedInput) (_ *sdk.CallToolResult, _ RelatedOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("corpus_related", start, retErr, sanitizeToolParams(map[string]any{
			"query": args.Query, "min_similarity": args.MinSimilarity, "top_k": args.TopK, "include_nodes": args.IncludeNodes,
		}))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "corpus_related"); err != nil {
		return nil, RelatedOutput{}, err
	}
	if args.Query == "" {
		return nil, RelatedOutput{}, fmt.Errorf("'query' parameter is required")
	}
	if args.MinSimilarity != nil && (*args.MinSimilarity < 0 || *args.MinSimilarity > 1) {
		return nil, RelatedOutput{}, fmt.Errorf("'min_similarity' must be between 0 and 1, got %v", *args.MinSimilarity)
	}

	matches, err := s.engine.Related(ctx, args.Query, engine.RelatedOptions{
		MinSimilarity: args.MinSimilarity,
		TopK:          args.TopK,
		IncludeNodes:  args.IncludeNodes,
	})
	if err != nil {
		return nil, RelatedOutput{}, fmt.Errorf("related search failed: %w", err)
	}
	out := RelatedOutput{Matches: matches, Count: len(matches)}
	if out.Matches == nil {
		out.Matches = []similarity.Match{}
	}
	return nil, out, nil
}

// handleGet implements the corpus_get tool.
func (s *Server) handleGet(ctx context.Context, req *sdk.CallToolRequest, args GetInput) (_ *sdk.CallToolResult, _ GetOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("corpus_get", start, retErr, sanitizeToolParams(map[string]any{"id": args.ID}))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "corpus_get"); err != nil {
		return nil, GetOutput{}, err
	}
	if args.ID == "" {
		return nil, GetOutput{}, fmt.Errorf("'id' parameter is required")
	}

	node, err := s.engine.Node(ctx, args.ID)
	if err != nil {
		return nil, GetOutput{}, err
	}
	return nil, GetOutput{Node: *node, Neighbors: s.neighborsByRelation(ctx, args.ID)}, nil
}

// neighborsByRelation groups the neighbors of id by relation label. A graph
// that has not been built yet yields no neighbors.
func (s *Server) neighborsByRelation(ctx context.Context, id string) map[string][]string {
	neighbors, err := s.engine.NeighborMap(ctx, id)
	if err != nil {
		s.logger.Debug("no adjacency for neighbor lookup", "error", err)
		return nil
	}
	return neighbors
}

// handleNeighbors implements the corpus_neighbors tool.
func (s *Server) handleNeighbors(ctx context.Context, req *sdk.CallToolRequest, args NeighborsInput) (_ *sdk.CallToolResult, _ NeighborsOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("corpus_neighbors", start, retErr, sanitizeToolParams(map[string]any{
			"id": args.ID, "relation": args.Relation,
		}))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "corpus_neighbors"); err != nil {
		return nil, NeighborsOutput{}, err
	}
	if args.ID == "" {
		return nil, NeighborsOutput{}, fmt.Errorf("'id' parameter is required")
	}

	ids, err := s.engine.Neighbors(ctx, args.ID, models.Relation(args.Relation))
	if err != nil {
		return nil, NeighborsOutput{}, err
	}
	if ids == nil {
		ids = []string{}
	}
	return nil, NeighborsOutput{ID: args.ID, Relation: args.Relation, Neighbors: ids, Count: len(ids)}, nil
}

// handleRank implements the corpus_rank tool.
func (s *Server) handleRank(ctx context.Context, req *sdk.CallToolRequest, args RankInput) (_ *sdk.CallToolResult, _ RankOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("corpus_rank", start, retErr, sanitizeToolParams(map[string]any{"top": args.Top}))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "corpus_rank"); err != nil {
		return nil, RankOutput{}, err
	}
	if args.Top < 0 {
		return nil, RankOutput{}, fmt.Errorf("'top' must be non-negative, got %d", args.Top)
	}

	ranked, err := s.engine.Rank(ctx, args.Top)
	if err != nil {
		return nil, RankOutput{}, err
	}
	return nil, RankOutput{Nodes: ranked, Count: len(ranked)}, nil
}

// handleGraph implements the corpus_graph tool.
func (s *Server) handleGraph(ctx context.Context, req *sdk.CallToolRequest, args GraphInput) (_ *sdk.CallToolResult, _ GraphOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("corpus_graph", start, retErr, sanitizeToolParams(map[string]any{"format": args.Format}))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "corpus_graph"); err != nil {
		return nil, GraphOutput{}, err
	}

	format, err := visualization.ParseFormat(args.Format)
	if err != nil {
		return nil, GraphOutput{}, err
	}
	doc, err := s.engine.Graph(ctx)
	if err != nil {
		return nil, GraphOutput{}, err
	}

	out := GraphOutput{Format: string(format), NodeCount: len(doc.Nodes), EdgeCount: len(doc.Edges)}
	switch format {
	case visualization.FormatDOT:
		out.Content = visualization.RenderDOT(doc)
	case visualization.FormatHTML:
		html, err := visualization.RenderHTML(doc, ranking.ComputePageRank(doc, ranking.DefaultPageRankConfig()))
		if err != nil {
			return nil, GraphOutput{}, fmt.Errorf("render HTML: %w", err)
		}
		out.Content = string(html)
	default:
		g := visualization.RenderJSON(doc, ranking.ComputePageRank(doc, ranking.DefaultPageRankConfig()))
		out.Graph = &g
	}
	return nil, out, nil
}

// handleValidate implements the corpus_validate tool.
func (s *Server) handleValidate(ctx context.Context, req *sdk.CallToolRequest, args ValidateInput) (_ *sdk.CallToolResult, _ ValidateOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("corpus_validate", start, retErr, sanitizeToolParams(map[string]any{}))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "corpus_validate"); err != nil {
		return nil, ValidateOutput{}, err
	}

	res, err := s.engine.Validate(ctx)
	if err != nil {
		return nil, ValidateOutput{}, err
	}
	orphans := res.OrphanEdges
	if orphans == nil {
		orphans = []string{}
	}
	return nil, ValidateOutput{
		Valid:       res.Valid,
		ErrorCount:  res.Errors(),
		OrphanEdges: orphans,
		Issues:      res.Issues,
		Message:     res.Summary(),
	}, nil
}

// handleFix implements the corpus_fix tool.
func (s *Server) handleFix(ctx context.Context, req *sdk.CallToolRequest, args FixInput) (_ *sdk.CallToolResult, _ FixOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("corpus_fix", start, retErr, sanitizeToolParams(map[string]any{}))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "corpus_fix"); err != nil {
		return nil, FixOutput{}, err
	}

	report, err := s.engine.Fix(ctx)
	if err != nil {
		return nil, FixOutput{}, err
	}
	changed := 0
	for _, f := range report.Fixes {
		changed += f.Changed
	}
	message := "Nothing to fix"
	if report.Written {
		message = fmt.Sprintf("Applied %d change(s); %s", changed, report.Validation.Summary())
	}
	fixes := report.Fixes
	if fixes == nil {
		fixes = []integrity.FixResult{}
	}
	return nil, FixOutput{
		Fixes:   fixes,
		Valid:   report.Validation.Valid,
		Written: report.Written,
		Message: message,
	}, nil
}

// handleRebuild implements the corpus_rebuild tool.
func (s *Server) handleRebuild(ctx context.Context, req *sdk.CallToolRequest, args RebuildInput) (_ *sdk.CallToolResult, _ RebuildOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("corpus_rebuild", start, retErr, sanitizeToolParams(map[string]any{"ids": args.IDs}))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "corpus_rebuild"); err != nil {
		return nil, RebuildOutput{}, err
	}

	var (
		res *engine.RebuildResult
		err error
	)
	if len(args.IDs) > 0 {
		res, err = s.engine.RebuildNodes(ctx, args.IDs...)
	} else {
		res, err = s.engine.Rebuild(ctx)
	}
	if err != nil {
		return nil, RebuildOutput{}, fmt.Errorf("rebuild failed: %w", err)
	}

	message := fmt.Sprintf("Graph rebuilt: %d nodes, %d edges", res.Nodes, res.Edges)
	if !res.Written {
		message = fmt.Sprintf("Rebuild rejected, previous graph kept: %s", res.Validation.Summary())
	}
	return nil, RebuildOutput{
		BuildID:     res.BuildID,
		Incremental: res.Incremental,
		Nodes:       res.Nodes,
		Edges:       res.Edges,
		Relations:   res.Relations,
		Skipped:     res.Skipped,
		Warnings:    res.Warnings,
		Valid:       res.Validation.Valid,
		Written:     res.Written,
		Message:     message,
	}, nil
}

// handleDecay implements the corpus_decay tool.
func (s *Server) handleDecay(ctx context.Context, req *sdk.CallToolRequest, args DecayInput) (_ *sdk.CallToolResult, _ DecayOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("corpus_decay", start, retErr, sanitizeToolParams(map[string]any{"force": args.Force}))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "corpus_decay"); err != nil {
		return nil, DecayOutput{}, err
	}

	report, err := s.engine.RecalculateDecay(ctx, args.Force)
	if err != nil {
		return nil, DecayOutput{}, err
	}
	byStatus := report.ByStatus
	if byStatus == nil {
		byStatus = map[string]int{}
	}
	return nil, DecayOutput{
		Ran:      report.Ran,
		Scored:   report.Scored,
		Skipped:  report.Skipped,
		ByStatus: byStatus,
		Warnings: report.Warnings,
	}, nil
}

// handleRefresh implements the corpus_refresh tool.
func (s *Server) handleRefresh(ctx context.Context, req *sdk.CallToolRequest, args RefreshInput) (_ *sdk.CallToolResult, _ RefreshOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("corpus_refresh", start, retErr, sanitizeToolParams(map[string]any{"id": args.ID}))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "corpus_refresh"); err != nil {
		return nil, RefreshOutput{}, err
	}
	if args.ID == "" {
		return nil, RefreshOutput{}, fmt.Errorf("'id' parameter is required")
	}

	node, err := s.engine.Refresh(ctx, args.ID)
	if err != nil {
		return nil, RefreshOutput{}, err
	}
	return nil, RefreshOutput{
		ID:          node.ID,
		DecayScore:  node.Decay.DecayScore,
		DecayStatus: node.Decay.DecayStatus,
	}, nil
}

// handleEnrich implements the corpus_enrich tool.
func (s *Server) handleEnrich(ctx context.Context, req *sdk.CallToolRequest, args EnrichInput) (_ *sdk.CallToolResult, _ EnrichOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("corpus_enrich", start, retErr, sanitizeToolParams(map[string]any{
			"enrichment_id": args.EnrichmentID, "corpus_node": args.CorpusNode,
			"version": args.Version, "similarity": args.Similarity,
		}))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "corpus_enrich"); err != nil {
		return nil, EnrichOutput{}, err
	}

	res, err := s.engine.Ingest(ctx, models.EnrichmentMetadata{
		EnrichmentID: args.EnrichmentID,
		CorpusNode:   args.CorpusNode,
		EnrichedAt:   time.Now().UTC(),
		Version:      args.Version,
		Similarity:   args.Similarity,
	})
	if err != nil {
		return nil, EnrichOutput{}, fmt.Errorf("enrichment failed: %w", err)
	}

	message := fmt.Sprintf("Enrichment %s linked to %s", args.EnrichmentID, args.CorpusNode)
	if !res.Created {
		message = fmt.Sprintf("Enrichment %s already linked to %s", args.EnrichmentID, args.CorpusNode)
	}
	return nil, EnrichOutput{
		EnrichmentID: args.EnrichmentID,
		CorpusNode:   args.CorpusNode,
		Created:      res.Created,
		BuildID:      res.Rebuild.BuildID,
		Message:      message,
	}, nil
}

// handleBackup implements the corpus_backup tool.
func (s *Server) handleBackup(ctx context.Context, req *sdk.CallToolRequest, args BackupInput) (_ *sdk.CallToolResult, _ BackupOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("corpus_backup", start, retErr, sanitizeToolParams(map[string]any{"output_path": args.OutputPath}))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "corpus_backup"); err != nil {
		return nil, BackupOutput{}, err
	}

	res, err := s.engine.Backup(ctx, args.OutputPath)
	if err != nil {
		return nil, BackupOutput{}, fmt.Errorf("backup failed: %w", err)
	}
	return nil, BackupOutput{
		Path:      res.Path,
		NodeCount: res.NodeCount,
		EdgeCount: res.EdgeCount,
		Checksum:  res.Checksum,
		Rotated:   len(res.Rotated),
		Message:   fmt.Sprintf("Backup created: %d nodes, %d edges -> %s", res.NodeCount, res.EdgeCount, res.Path),
	}, nil
}

// handleRestore implements the corpus_restore tool.
func (s *Server) handleRestore(ctx context.Context, req *sdk.CallToolRequest, args RestoreInput) (_ *sdk.CallToolResult, _ RestoreOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("corpus_restore", start, retErr, sanitizeToolParams(map[string]any{
			"input_path": args.InputPath, "mode": args.Mode,
		}))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "corpus_restore"); err != nil {
		return nil, RestoreOutput{}, err
	}
	if args.InputPath == "" {
		return nil, RestoreOutput{}, fmt.Errorf("'input_path' parameter is required")
	}
	mode, err := backup.ParseRestoreMode(args.Mode)
	if err != nil {
		return nil, RestoreOutput{}, err
	}

	res, err := s.engine.Restore(ctx, args.InputPath, mode)
	if err != nil {
		return nil, RestoreOutput{}, fmt.Errorf("restore failed: %w", err)
	}
	return nil, RestoreOutput{
		NodesRestored: res.NodesRestored,
		NodesSkipped:  res.NodesSkipped,
		NodesRemoved:  res.NodesRemoved,
		BuildID:       res.Rebuild.BuildID,
		Message: fmt.Sprintf("Restore complete: %d nodes restored, %d skipped, %d removed",
			res.NodesRestored, res.NodesSkipped, res.NodesRemoved),
	}, nil
}
