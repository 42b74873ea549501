package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/nvandessel/corpus-graph/internal/engine"
	"github.com/nvandessel/corpus-graph/internal/models"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newRelatedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "related <query>",
		Short: "Find documents related to a description of work",
		Long: `Rank the reference catalog, and with --nodes the corpus nodes too, by
keyword similarity to a free-text query.

Examples:
  corpusgraph related "postgres connection pooling"
  corpusgraph related "flaky deploys" --nodes --min 0.3 --top 10`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			query := strings.Join(args, " ")

			var opts engine.RelatedOptions
			if cmd.Flags().Changed("min") {
				minSim, _ := cmd.Flags().GetFloat64("min")
				if minSim < 0 || minSim > 1 {
					return fmt.Errorf("--min must be between 0.0 and 1.0, got %v", minSim)
				}
				opts.MinSimilarity = &minSim
			}
			if cmd.Flags().Changed("top") {
				top, _ := cmd.Flags().GetInt("top")
				opts.TopK = &top
			}
			if cmd.Flags().Changed("nodes") {
				nodes, _ := cmd.Flags().GetBool("nodes")
				opts.IncludeNodes = &nodes
			}

			eng, err := openEngine(cmd)
			if err != nil {
				return err
			}
			defer eng.Close()

			matches, err := eng.Related(cmd.Context(), query, opts)
			if err != nil {
				return err
			}
			if jsonOut {
				return printJSON(cmd, map[string]any{"matches": matches, "count": len(matches)})
			}

			out := cmd.OutOrStdout()
			if len(matches) == 0 {
				fmt.Fprintln(out, "No related documents found.")
				return nil
			}
			for i, m := range matches {
				fmt.Fprintf(out, "%d. %.3f  %-10s %s [%s]\n", i+1, m.Score, m.ID, m.Title, m.Origin)
			}
			return nil
		},
	}

	cmd.Flags().Float64("min", 0, "Minimum similarity score (default from config)")
	cmd.Flags().Int("top", 0, "Maximum number of matches (default from config)")
	cmd.Flags().Bool("nodes", false, "Also search corpus nodes")

	return cmd
}

func newEnrichCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "enrich <metadata-file>",
		Short: "Ingest enrichment metadata produced by a research workflow",
		Long: `Read enrichment metadata (YAML or JSON) and link the research to the
node it enriches. The enrichment node is created when missing and the
graph is updated.

The file holds enrichment_id, corpus_node, and optionally enriched_at,
version and similarity.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read metadata: %w", err)
			}
			var meta models.EnrichmentMetadata
			if err := yaml.Unmarshal(data, &meta); err != nil {
				return fmt.Errorf("failed to parse metadata %s: %w", args[0], err)
			}

			eng, err := openEngine(cmd)
			if err != nil {
				return err
			}
			defer eng.Close()

			res, err := eng.Ingest(cmd.Context(), meta)
			if err != nil {
				return err
			}
			if jsonOut {
				return printJSON(cmd, res)
			}
			if res.Created {
				fmt.Fprintf(cmd.OutOrStdout(), "Linked %s -> %s\n", res.Node.ID, res.Source)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "%s already enriches %s\n", res.Node.ID, res.Source)
			}
			return nil
		},
	}
}
