package main

import (
	"fmt"
	"sort"

	"github.com/nvandessel/corpus-graph/internal/engine"
	"github.com/nvandessel/corpus-graph/internal/integrity"
	"github.com/nvandessel/corpus-graph/internal/models"
	"github.com/spf13/cobra"
)

func newRebuildCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rebuild",
		Short: "Rebuild the knowledge graph from the corpus nodes",
		Long: `Regenerate the graph document and adjacency index.

With --changed only the node stored in that file is re-read and the
previous graph is patched. A graph that fails validation is discarded and
the previous one kept, unless --force is given.

Examples:
  corpusgraph rebuild
  corpusgraph rebuild --changed corpus/nodes/decisions/DEC-012.yml
  corpusgraph rebuild --force`,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			changed, _ := cmd.Flags().GetString("changed")
			force, _ := cmd.Flags().GetBool("force")

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if force {
				cfg.Index.RejectInvalid = false
			}
			eng, err := openEngineWith(cmd, cfg)
			if err != nil {
				return err
			}
			defer eng.Close()

			var res *engine.RebuildResult
			if changed != "" {
				res, err = eng.RebuildIncremental(cmd.Context(), changed)
			} else {
				res, err = eng.Rebuild(cmd.Context())
			}
			if err != nil {
				return fmt.Errorf("rebuild failed: %w", err)
			}

			if jsonOut {
				if err := printJSON(cmd, res); err != nil {
					return err
				}
			} else {
				printRebuild(cmd, res)
			}
			if !res.Written {
				return fmt.Errorf("rebuilt graph is invalid; previous graph kept (use --force to write it anyway)")
			}
			return nil
		},
	}

	cmd.Flags().String("changed", "", "Only re-read the node in this file")
	cmd.Flags().Bool("force", false, "Write the graph even when it fails validation")

	return cmd
}

func printRebuild(cmd *cobra.Command, res *engine.RebuildResult) {
	out := cmd.OutOrStdout()
	kind := "Full"
	if res.Incremental {
		kind = "Incremental"
	}
	fmt.Fprintf(out, "%s rebuild %s: %d nodes, %d edges (%s)\n", kind, res.BuildID, res.Nodes, res.Edges, res.Duration.Round(1e6))

	rels := make([]models.Relation, 0, len(res.Relations))
	for rel := range res.Relations {
		rels = append(rels, rel)
	}
	sort.Slice(rels, func(i, j int) bool { return rels[i] < rels[j] })
	for _, rel := range rels {
		fmt.Fprintf(out, "  %-12s %d\n", rel, res.Relations[rel])
	}
	if res.Skipped > 0 {
		fmt.Fprintf(out, "  Skipped %d unreadable node(s):\n", res.Skipped)
		for _, reason := range res.SkipReasons {
			fmt.Fprintf(out, "    %s\n", reason)
		}
	}
	for _, w := range res.Warnings {
		fmt.Fprintf(out, "  warning: %s: %s\n", w.NodeID, w.Message)
	}
	if !res.Written {
		printIssues(cmd, res.Validation)
	}
}

func printIssues(cmd *cobra.Command, res integrity.Result) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s\n", res.Summary())
	for _, issue := range res.Issues {
		fmt.Fprintf(out, "  [%s] %s: %s\n", issue.Severity, issue.Check, issue.Message)
	}
}
