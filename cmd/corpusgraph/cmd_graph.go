package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/nvandessel/corpus-graph/internal/models"
	"github.com/nvandessel/corpus-graph/internal/ranking"
	"github.com/nvandessel/corpus-graph/internal/visualization"
	"github.com/spf13/cobra"
)

func newGraphCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Export the knowledge graph",
		Long:  `Output the knowledge graph in JSON, DOT (Graphviz), or interactive HTML format.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatName, _ := cmd.Flags().GetString("format")
			output, _ := cmd.Flags().GetString("output")
			noOpen, _ := cmd.Flags().GetBool("no-open")

			format, err := visualization.ParseFormat(formatName)
			if err != nil {
				return err
			}

			eng, err := openEngine(cmd)
			if err != nil {
				return err
			}
			defer eng.Close()

			doc, err := eng.Graph(cmd.Context())
			if err != nil {
				return fmt.Errorf("load graph: %w", err)
			}

			switch format {
			case visualization.FormatDOT:
				return writeOutput(cmd, output, []byte(visualization.RenderDOT(doc)))

			case visualization.FormatHTML:
				pageRank := ranking.ComputePageRank(doc, ranking.DefaultPageRankConfig())
				html, err := visualization.RenderHTML(doc, pageRank)
				if err != nil {
					return fmt.Errorf("render HTML: %w", err)
				}
				outPath := output
				if outPath == "" {
					outPath = filepath.Join(os.TempDir(), "corpusgraph.html")
				}
				if err := os.WriteFile(outPath, html, 0644); err != nil {
					return fmt.Errorf("write HTML file: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Graph written to %s\n", outPath)
				if !noOpen {
					if err := visualization.OpenBrowser(outPath); err != nil {
						fmt.Fprintf(cmd.ErrOrStderr(), "Could not open browser: %v\nOpen %s manually.\n", err, outPath)
					}
				}
				return nil

			default:
				g := visualization.RenderJSON(doc, ranking.ComputePageRank(doc, ranking.DefaultPageRankConfig()))
				if output == "" {
					return printJSON(cmd, g)
				}
				var sb strings.Builder
				enc := newIndentEncoder(&sb)
				if err := enc.Encode(g); err != nil {
					return fmt.Errorf("encode JSON: %w", err)
				}
				return writeOutput(cmd, output, []byte(sb.String()))
			}
		},
	}

	cmd.Flags().String("format", "json", "Output format: json, dot, or html")
	cmd.Flags().StringP("output", "o", "", "Output file path (default: stdout; a temp file for html)")
	cmd.Flags().Bool("no-open", false, "Don't open browser after generating HTML")

	return cmd
}

// writeOutput writes data to path, or to the command output when path is empty.
func writeOutput(cmd *cobra.Command, path string, data []byte) error {
	if path == "" {
		_, err := cmd.OutOrStdout().Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Graph written to %s\n", path)
	return nil
}

func newNeighborsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "neighbors <id>",
		Short: "List the nodes adjacent to a node",
		Long: `List the nodes connected to a node in the adjacency index.

Relations: relatedTo, supersedes, supersededBy, enriches, enrichedBy.
Without --relation every relation is followed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			relation, _ := cmd.Flags().GetString("relation")

			rel := models.Relation(relation)
			if rel != "" && !rel.Valid() {
				return fmt.Errorf("unknown relation %q", relation)
			}

			eng, err := openEngine(cmd)
			if err != nil {
				return err
			}
			defer eng.Close()

			ids, err := eng.Neighbors(cmd.Context(), args[0], rel)
			if err != nil {
				return err
			}
			if jsonOut {
				return printJSON(cmd, map[string]any{
					"id":        args[0],
					"relation":  relation,
					"neighbors": ids,
					"count":     len(ids),
				})
			}
			out := cmd.OutOrStdout()
			if len(ids) == 0 {
				fmt.Fprintf(out, "%s has no neighbors.\n", args[0])
				return nil
			}
			for _, id := range ids {
				fmt.Fprintln(out, id)
			}
			return nil
		},
	}

	cmd.Flags().String("relation", "", "Only follow this relation")

	return cmd
}

func newRankCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rank",
		Short: "Rank nodes by PageRank centrality",
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			top, _ := cmd.Flags().GetInt("top")
			if top < 0 {
				return fmt.Errorf("--top must not be negative")
			}

			eng, err := openEngine(cmd)
			if err != nil {
				return err
			}
			defer eng.Close()

			ranked, err := eng.Rank(cmd.Context(), top)
			if err != nil {
				return err
			}
			if jsonOut {
				return printJSON(cmd, map[string]any{"nodes": ranked, "count": len(ranked)})
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "RANK\tID\tTYPE\tSCORE\tTITLE")
			for i, r := range ranked {
				fmt.Fprintf(w, "%d\t%s\t%s\t%.4f\t%s\n", i+1, r.ID, r.Type, r.Score, r.Title)
			}
			return w.Flush()
		},
	}

	cmd.Flags().Int("top", 10, "Number of nodes to show (0 for all)")

	return cmd
}
