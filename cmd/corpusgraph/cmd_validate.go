package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check the knowledge graph for inconsistencies",
		Long: `Validate the stored graph: orphan edges, duplicate edges, self-loops,
metadata counts and the adjacency index.

With --fix, repairable issues are fixed in place and the graph is saved.
The command exits non-zero while the graph is invalid.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			fix, _ := cmd.Flags().GetBool("fix")

			eng, err := openEngine(cmd)
			if err != nil {
				return err
			}
			defer eng.Close()

			if fix {
				report, err := eng.Fix(cmd.Context())
				if err != nil {
					return fmt.Errorf("fix failed: %w", err)
				}
				if jsonOut {
					if err := printJSON(cmd, report); err != nil {
						return err
					}
				} else {
					out := cmd.OutOrStdout()
					changed := 0
					for _, f := range report.Fixes {
						if f.Changed > 0 {
							fmt.Fprintf(out, "Fixed %s: %d change(s)\n", f.Fixer, f.Changed)
						}
						changed += f.Changed
					}
					if changed == 0 {
						fmt.Fprintln(out, "Nothing to fix.")
					}
					printIssues(cmd, report.Validation)
				}
				if !report.Validation.Valid {
					return fmt.Errorf("graph is still invalid after fixing")
				}
				return nil
			}

			res, err := eng.Validate(cmd.Context())
			if err != nil {
				return err
			}
			if jsonOut {
				if err := printJSON(cmd, res); err != nil {
					return err
				}
			} else {
				printIssues(cmd, res)
			}
			if !res.Valid {
				return fmt.Errorf("graph is invalid (run 'corpusgraph validate --fix')")
			}
			return nil
		},
	}

	cmd.Flags().Bool("fix", false, "Repair fixable issues and save the graph")

	return cmd
}
