package main

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/nvandessel/corpus-graph/internal/engine"
	"github.com/nvandessel/corpus-graph/internal/models"
	"github.com/spf13/cobra"
)

func newAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a decision or learning to the corpus",
		Long: `Add a node to the corpus and index it.

Concepts are derived from the category and title, and the decay score
starts fresh. Enrichments are added with 'corpusgraph enrich'.

Examples:
  corpusgraph add --id DEC-012 --title "Use PostgreSQL for billing" --category database
  corpusgraph add --id LRN-004 --type learning --title "Flaky deploys on Fridays" --tags ci,deploy`,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			id, _ := cmd.Flags().GetString("id")
			typeName, _ := cmd.Flags().GetString("type")
			title, _ := cmd.Flags().GetString("title")
			category, _ := cmd.Flags().GetString("category")
			status, _ := cmd.Flags().GetString("status")
			summary, _ := cmd.Flags().GetString("summary")
			confidence, _ := cmd.Flags().GetFloat64("confidence")
			tags, _ := cmd.Flags().GetStringSlice("tags")
			created, _ := cmd.Flags().GetString("created")

			if id == "" {
				return fmt.Errorf("--id is required")
			}
			nodeType, ok := models.ParseNodeType(typeName)
			if !ok {
				return fmt.Errorf("unknown node type %q (use decision or learning)", typeName)
			}
			if nodeType == models.NodeTypeEnrichment {
				return fmt.Errorf("enrichments are added with 'corpusgraph enrich'")
			}

			node := models.Node{
				ID:         id,
				Type:       nodeType,
				Title:      title,
				Status:     status,
				Category:   category,
				Confidence: confidence,
				Tags:       tags,
				Summary:    summary,
			}
			if created != "" {
				t, err := parseDate(created)
				if err != nil {
					return err
				}
				node.CreatedAt = t
			}

			eng, err := openEngine(cmd)
			if err != nil {
				return err
			}
			defer eng.Close()

			added, res, err := eng.AddNode(cmd.Context(), node)
			if err != nil {
				return fmt.Errorf("failed to add node: %w", err)
			}

			if jsonOut {
				return printJSON(cmd, map[string]any{
					"node":    added,
					"rebuild": res,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added %s (%s): %s\n", added.ID, added.Type, added.Title)
			fmt.Fprintf(cmd.OutOrStdout(), "  Graph: %d nodes, %d edges\n", res.Nodes, res.Edges)
			return nil
		},
	}

	cmd.Flags().String("id", "", "Node id, e.g. DEC-012 (required)")
	cmd.Flags().String("type", "decision", "Node type: decision or learning")
	cmd.Flags().String("title", "", "Title")
	cmd.Flags().String("category", "", "Category, e.g. database")
	cmd.Flags().String("status", "", "Status, e.g. active or deprecated")
	cmd.Flags().String("summary", "", "Short summary")
	cmd.Flags().Float64("confidence", 0.8, "Confidence (0.0-1.0)")
	cmd.Flags().StringSlice("tags", nil, "Comma-separated tags")
	cmd.Flags().String("created", "", "Creation date, YYYY-MM-DD or RFC 3339 (default: now)")

	return cmd
}

// parseDate accepts YYYY-MM-DD or RFC 3339.
func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (use YYYY-MM-DD or RFC 3339)", s)
	}
	return t, nil
}

func newShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a node with its neighbors",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			eng, err := openEngine(cmd)
			if err != nil {
				return err
			}
			defer eng.Close()

			node, err := eng.Node(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			neighbors, err := eng.NeighborMap(cmd.Context(), node.ID)
			if err != nil {
				neighbors = map[string][]string{}
			}

			if jsonOut {
				return printJSON(cmd, map[string]any{
					"node":      node,
					"neighbors": neighbors,
				})
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s: %s\n", node.ID, node.Title)
			fmt.Fprintf(out, "  Type:       %s\n", node.Type)
			if node.Status != "" {
				fmt.Fprintf(out, "  Status:     %s\n", node.Status)
			}
			if node.Category != "" {
				fmt.Fprintf(out, "  Category:   %s\n", node.Category)
			}
			fmt.Fprintf(out, "  Confidence: %.2f\n", node.Confidence)
			fmt.Fprintf(out, "  Created:    %s\n", node.CreatedAt.Format("2006-01-02"))
			fmt.Fprintf(out, "  Decay:      %.3f (%s)\n", node.Decay.DecayScore, node.Decay.DecayStatus)
			if node.Source != "" {
				fmt.Fprintf(out, "  Enriches:   %s\n", node.Source)
			}
			if len(node.Tags) > 0 {
				fmt.Fprintf(out, "  Tags:       %s\n", strings.Join(node.Tags, ", "))
			}
			if len(node.Concepts) > 0 {
				fmt.Fprintf(out, "  Concepts:   %s\n", strings.Join(node.Concepts, ", "))
			}
			if node.Summary != "" {
				fmt.Fprintf(out, "\n%s\n", node.Summary)
			}
			if len(node.Enrichments) > 0 {
				fmt.Fprintln(out, "\nEnrichments:")
				for _, e := range node.Enrichments {
					fmt.Fprintf(out, "  %s (%s)\n", e.EnrichmentID, e.EnrichedAt.Format("2006-01-02"))
				}
			}
			if len(neighbors) > 0 {
				fmt.Fprintln(out, "\nNeighbors:")
				for _, rel := range engine.NeighborLabels {
					if ids := neighbors[string(rel)]; len(ids) > 0 {
						fmt.Fprintf(out, "  %-13s %s\n", rel+":", strings.Join(ids, ", "))
					}
				}
			}
			return nil
		},
	}
}

func newListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List corpus nodes",
		Long: `List every node in the corpus, optionally of one type.

Examples:
  corpusgraph list
  corpusgraph list --type learning --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			typeName, _ := cmd.Flags().GetString("type")

			var nodeType models.NodeType
			if typeName != "" {
				t, ok := models.ParseNodeType(typeName)
				if !ok {
					return fmt.Errorf("unknown node type %q", typeName)
				}
				nodeType = t
			}

			eng, err := openEngine(cmd)
			if err != nil {
				return err
			}
			defer eng.Close()

			nodes, errs := eng.ListNodes(cmd.Context(), nodeType)
			for _, err := range errs {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", err)
			}

			if jsonOut {
				if nodes == nil {
					nodes = []models.Node{}
				}
				return printJSON(cmd, map[string]any{
					"nodes":   nodes,
					"count":   len(nodes),
					"skipped": len(errs),
				})
			}

			if len(nodes) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No nodes found.")
				return nil
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tTYPE\tCATEGORY\tDECAY\tTITLE")
			for _, n := range nodes {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%.2f %s\t%s\n", n.ID, n.Type, n.Category, n.Decay.DecayScore, n.Decay.DecayStatus, n.Title)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().String("type", "", "Only list nodes of this type: decision, learning or enrichment")

	return cmd
}
