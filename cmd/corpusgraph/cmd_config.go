package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/nvandessel/corpus-graph/internal/constants"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect corpusgraph configuration",
		Long: `Show the effective configuration and where it is read from.

Settings are layered: built-in defaults, ~/.corpusgraph/config.yaml,
<root>/.corpusgraph.yaml, then CORPUSGRAPH_* environment variables.

Examples:
  corpusgraph config list     # Show the effective settings
  corpusgraph config path     # Show the config files consulted`,
	}

	cmd.AddCommand(
		newConfigListCmd(),
		newConfigPathCmd(),
	)

	return cmd
}

func newConfigListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Show the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if jsonOut {
				return printJSON(cmd, cfg)
			}

			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(cfg); err != nil {
				return fmt.Errorf("encode config: %w", err)
			}
			return enc.Close()
		},
	}
}

func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Show the configuration files consulted",
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			root, _ := cmd.Flags().GetString("root")
			explicit, _ := cmd.Flags().GetString("config")

			var paths []string
			if explicit != "" {
				paths = []string{explicit}
			} else {
				if home, err := os.UserHomeDir(); err == nil {
					paths = append(paths, filepath.Join(home, constants.UserConfigDir, constants.UserConfigFile))
				}
				paths = append(paths, filepath.Join(root, constants.ProjectConfigFile))
			}

			type entry struct {
				Path   string `json:"path"`
				Exists bool   `json:"exists"`
			}
			entries := make([]entry, 0, len(paths))
			for _, p := range paths {
				_, err := os.Stat(p)
				entries = append(entries, entry{Path: p, Exists: err == nil})
			}

			if jsonOut {
				return printJSON(cmd, map[string]any{"files": entries})
			}
			for _, e := range entries {
				state := "missing"
				if e.Exists {
					state = "found"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%-8s %s\n", state, e.Path)
			}
			return nil
		},
	}
}
