package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

func newDecayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "decay",
		Short: "Recalculate node staleness scores",
		Long: `Recalculate the decay score of every node from the time since it was
created or last reviewed. Scores newer than the recalculation interval are
left alone unless --force is given.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			force, _ := cmd.Flags().GetBool("force")

			eng, err := openEngine(cmd)
			if err != nil {
				return err
			}
			defer eng.Close()

			report, err := eng.RecalculateDecay(cmd.Context(), force)
			if err != nil {
				return err
			}
			if jsonOut {
				return printJSON(cmd, report)
			}

			out := cmd.OutOrStdout()
			if !report.Ran {
				fmt.Fprintln(out, "Decay scores are current (use --force to recalculate).")
				return nil
			}
			fmt.Fprintf(out, "Scored %d node(s), skipped %d\n", report.Scored, report.Skipped)
			statuses := make([]string, 0, len(report.ByStatus))
			for status := range report.ByStatus {
				statuses = append(statuses, status)
			}
			sort.Strings(statuses)
			for _, status := range statuses {
				fmt.Fprintf(out, "  %-8s %d\n", status, report.ByStatus[status])
			}
			for _, w := range report.Warnings {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", w)
			}
			return nil
		},
	}

	cmd.Flags().Bool("force", false, "Recalculate even when scores are recent")

	return cmd
}

func newRefreshCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh <id>",
		Short: "Mark a node as reviewed",
		Long:  `Reset a node's decay score to 1.0 after it has been reviewed and is still accurate.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			eng, err := openEngine(cmd)
			if err != nil {
				return err
			}
			defer eng.Close()

			node, err := eng.Refresh(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if jsonOut {
				return printJSON(cmd, map[string]any{
					"id":           node.ID,
					"decay_score":  node.Decay.DecayScore,
					"decay_status": node.Decay.DecayStatus,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Refreshed %s (%s, %.2f)\n", node.ID, node.Decay.DecayStatus, node.Decay.DecayScore)
			return nil
		},
	}
}
