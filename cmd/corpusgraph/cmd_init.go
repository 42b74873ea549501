package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/nvandessel/corpus-graph/internal/constants"
	"github.com/spf13/cobra"
)

// projectConfigTemplate is written by init when no project config exists.
const projectConfigTemplate = `# corpusgraph project configuration. Every setting is optional.
corpus:
  dir: corpus
  node_backend: file     # file, sqlite or memory
  graph_backend: file    # file, badger or memory
references:
  index: references/_index.yml
relations:
  supersede_confidence: 0.8
decay:
  half_life: 2160h       # 90 days
  recalc_interval: 24h
retrieval:
  min_similarity: 0.6
  top_k: 5
index:
  reject_invalid: true
  backup_keep: 10
`

func newInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a corpus in the project root",
		Long: `Create the corpus directory layout and an empty graph.

A .corpusgraph.yaml with the default settings is written to the project root
unless one already exists.

Examples:
  corpusgraph init
  corpusgraph init --root ~/src/service`,
		RunE: func(cmd *cobra.Command, args []string) error {
			root, _ := cmd.Flags().GetString("root")
			jsonOut, _ := cmd.Flags().GetBool("json")
			noConfig, _ := cmd.Flags().GetBool("no-config")

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			layout := cfg.Layout(root)
			if err := layout.EnsureDirs(); err != nil {
				return fmt.Errorf("failed to create corpus: %w", err)
			}

			configPath := filepath.Join(root, constants.ProjectConfigFile)
			configWritten := false
			if !noConfig {
				if _, err := os.Stat(configPath); os.IsNotExist(err) {
					if err := os.WriteFile(configPath, []byte(projectConfigTemplate), 0644); err != nil {
						return fmt.Errorf("failed to write %s: %w", configPath, err)
					}
					configWritten = true
				}
			}

			eng, err := openEngineWith(cmd, cfg)
			if err != nil {
				return err
			}
			defer eng.Close()

			res, err := eng.Rebuild(cmd.Context())
			if err != nil {
				return fmt.Errorf("initial rebuild failed: %w", err)
			}

			if jsonOut {
				return printJSON(cmd, map[string]any{
					"corpus":         layout.Root,
					"config_written": configWritten,
					"nodes":          res.Nodes,
					"edges":          res.Edges,
					"build_id":       res.BuildID,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Initialized corpus at %s (%d nodes, %d edges)\n", layout.Root, res.Nodes, res.Edges)
			if configWritten {
				fmt.Fprintf(cmd.OutOrStdout(), "  Wrote %s\n", configPath)
			}
			return nil
		},
	}

	cmd.Flags().Bool("no-config", false, "Don't write a project config file")

	return cmd
}
