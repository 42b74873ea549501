package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/nvandessel/corpus-graph/internal/engine"
	"github.com/nvandessel/corpus-graph/internal/models"
	"github.com/nvandessel/corpus-graph/internal/store"
)

const (
	summaryURI     = "corpus://graph/summary"
	nodeURIPrefix  = "corpus://nodes/"
	summaryTopSize = 5
)

// registerResources registers MCP resources for auto-loading into context.
func (s *Server) registerResources() {
	s.server.AddResource(&sdk.Resource{
		URI:         summaryURI,
		Name:        "corpus-graph-summary",
		Description: "Overview of the project knowledge graph: node and edge counts and the most central decisions.",
		MIMEType:    "text/markdown",
	}, s.handleSummaryResource)

	s.server.AddResourceTemplate(&sdk.ResourceTemplate{
		URITemplate: nodeURIPrefix + "{id}",
		Name:        "corpus-node",
		Description: "Full details for one corpus node, including its enrichment history and neighbors.",
		MIMEType:    "text/markdown",
	}, s.handleNodeResource)
}

// handleSummaryResource renders the graph overview.
func (s *Server) handleSummaryResource(ctx context.Context, req *sdk.ReadResourceRequest) (*sdk.ReadResourceResult, error) {
	doc, err := s.engine.Graph(ctx)
	if errors.Is(err, store.ErrNotFound) {
		return markdownResult(summaryURI, "# Corpus Graph\n\nNo graph has been built yet. Run `corpusgraph rebuild` or the `corpus_rebuild` tool.\n"), nil
	}
	if err != nil {
		return nil, err
	}

	var sb strings.Builder
	sb.WriteString("# Corpus Graph\n\n")
	fmt.Fprintf(&sb, "**Build:** %s (%s)\n", doc.BuildID, doc.UpdatedAt.Format("2006-01-02 15:04 MST"))
	fmt.Fprintf(&sb, "**Nodes:** %d, **Edges:** %d\n\n", doc.Metadata.NodeCount, doc.Metadata.EdgeCount)

	if len(doc.Metadata.RelationTypes) > 0 {
		sb.WriteString("## Relations\n\n")
		for _, rel := range doc.Metadata.RelationTypes {
			fmt.Fprintf(&sb, "- %s: %d\n", rel, doc.Metadata.RelationCounts[rel])
		}
		sb.WriteString("\n")
	}

	ranked, err := s.engine.Rank(ctx, summaryTopSize)
	if err != nil {
		return nil, err
	}
	if len(ranked) > 0 {
		sb.WriteString("## Most Central\n\n")
		for _, r := range ranked {
			fmt.Fprintf(&sb, "- **%s** %s (%s, %.3f)\n", r.ID, r.Title, r.Type, r.Score)
		}
		sb.WriteString("\n")
	}

	stale := 0
	for _, n := range doc.Nodes {
		if n.DecayScore < s.engine.Config().Decay.StaleThreshold {
			stale++
		}
	}
	if stale > 0 {
		fmt.Fprintf(&sb, "---\n*%d node(s) stale; details via %s{id}*\n", stale, nodeURIPrefix)
	}

	return markdownResult(summaryURI, sb.String()), nil
}

// handleNodeResource renders one node.
func (s *Server) handleNodeResource(ctx context.Context, req *sdk.ReadResourceRequest) (*sdk.ReadResourceResult, error) {
	uri := req.Params.URI
	if !strings.HasPrefix(uri, nodeURIPrefix) {
		return nil, fmt.Errorf("invalid URI format: %s", uri)
	}
	id := strings.TrimPrefix(uri, nodeURIPrefix)
	if id == "" {
		return nil, fmt.Errorf("node ID is required")
	}

	node, err := s.engine.Node(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, sdk.ResourceNotFoundError(uri)
	}
	if err != nil {
		return nil, err
	}

	return markdownResult(uri, renderNode(node, s.neighborsByRelation(ctx, id))), nil
}

func renderNode(node *models.Node, neighbors map[string][]string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s: %s\n\n", node.ID, node.Title)
	fmt.Fprintf(&sb, "**Type:** %s\n", node.Type)
	if node.Status != "" {
		fmt.Fprintf(&sb, "**Status:** %s\n", node.Status)
	}
	if node.Category != "" {
		fmt.Fprintf(&sb, "**Category:** %s\n", node.Category)
	}
	fmt.Fprintf(&sb, "**Confidence:** %.2f\n", node.Confidence)
	fmt.Fprintf(&sb, "**Created:** %s\n", node.CreatedAt.Format("2006-01-02"))
	fmt.Fprintf(&sb, "**Decay:** %.3f (%s)\n", node.Decay.DecayScore, node.Decay.DecayStatus)
	if node.Source != "" {
		fmt.Fprintf(&sb, "**Enriches:** %s\n", node.Source)
	}

	if node.Summary != "" {
		sb.WriteString("\n## Summary\n\n")
		sb.WriteString(node.Summary)
		sb.WriteString("\n")
	}
	if len(node.Tags) > 0 {
		fmt.Fprintf(&sb, "\n**Tags:** %s\n", strings.Join(node.Tags, ", "))
	}

	if len(node.Enrichments) > 0 {
		sb.WriteString("\n## Enrichments\n\n")
		for _, e := range node.Enrichments {
			fmt.Fprintf(&sb, "- %s (%s", e.EnrichmentID, e.EnrichedAt.Format("2006-01-02"))
			if e.Version != "" {
				fmt.Fprintf(&sb, ", v%s", e.Version)
			}
			sb.WriteString(")\n")
		}
	}

	if len(neighbors) > 0 {
		sb.WriteString("\n## Neighbors\n\n")
		for _, rel := range engine.NeighborLabels {
			if ids := neighbors[string(rel)]; len(ids) > 0 {
				fmt.Fprintf(&sb, "- %s: %s\n", rel, strings.Join(ids, ", "))
			}
		}
	}
	return sb.String()
}

func markdownResult(uri, text string) *sdk.ReadResourceResult {
	return &sdk.ReadResourceResult{
		Contents: []*sdk.ResourceContents{
			{
				URI:      uri,
				MIMEType: "text/markdown",
				Text:     text,
			},
		},
	}
}
