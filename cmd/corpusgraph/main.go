package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/nvandessel/corpus-graph/internal/config"
	"github.com/nvandessel/corpus-graph/internal/engine"
	"github.com/nvandessel/corpus-graph/internal/logging"
	"github.com/spf13/cobra"
)

var version = "0.1.0-dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "corpusgraph",
		Short: "Knowledge graph over a project's decisions, learnings and research",
		Long: `corpusgraph indexes a corpus of architecture decisions, captured learnings
and linked research into a typed knowledge graph.

It extracts relatedTo, supersedes and enriches relations, scores every node
for staleness, and answers "what do we already know about X" for people and
coding agents alike.`,
		SilenceUsage: true,
	}

	// Global flags
	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON (for agent consumption)")
	rootCmd.PersistentFlags().String("root", ".", "Project root directory")
	rootCmd.PersistentFlags().String("config", "", "Config file (default: ~/.corpusgraph/config.yaml and <root>/.corpusgraph.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: info, debug or trace (overrides config)")

	rootCmd.AddCommand(
		newVersionCmd(),
		newInitCmd(),
		newAddCmd(),
		newShowCmd(),
		newListCmd(),
		newRebuildCmd(),
		newValidateCmd(),
		newDecayCmd(),
		newRefreshCmd(),
		newRelatedCmd(),
		newEnrichCmd(),
		newGraphCmd(),
		newNeighborsCmd(),
		newRankCmd(),
		newWatchCmd(),
		newServeCmd(),
		newMCPServerCmd(),
		newBackupCmd(),
		newRestoreCmd(),
		newConfigCmd(),
	)
	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			jsonOut, _ := cmd.Flags().GetBool("json")
			if jsonOut {
				json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]string{"version": version})
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "corpusgraph version %s\n", version)
			}
		},
	}
}

// loadConfig resolves the configuration for the command: the --config file
// when given, the default locations otherwise, then --log-level.
func loadConfig(cmd *cobra.Command) (*config.CorpusConfig, error) {
	root, _ := cmd.Flags().GetString("root")
	path, _ := cmd.Flags().GetString("config")
	level, _ := cmd.Flags().GetString("log-level")

	var (
		cfg *config.CorpusConfig
		err error
	)
	if path != "" {
		cfg, err = config.LoadFromFile(path)
	} else {
		cfg, err = config.Load(root)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if level != "" {
		cfg.Logging.Level = level
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// openEngine opens the corpus under --root. The caller must Close it.
func openEngine(cmd *cobra.Command) (*engine.Engine, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return openEngineWith(cmd, cfg)
}

func openEngineWith(cmd *cobra.Command, cfg *config.CorpusConfig) (*engine.Engine, error) {
	root, _ := cmd.Flags().GetString("root")
	layout := cfg.Layout(root)
	if !layout.Initialized() {
		return nil, fmt.Errorf("corpus not initialized at %s. Run 'corpusgraph init' first", layout.Root)
	}

	logger := logging.NewLogger(cfg.Logging.Level, cmd.ErrOrStderr())
	eng, err := engine.Open(root, cfg, logger)
	if err != nil {
		return nil, err
	}
	return eng, nil
}

// printJSON writes v to the command's output.
func printJSON(cmd *cobra.Command, v any) error {
	return newIndentEncoder(cmd.OutOrStdout()).Encode(v)
}

func newIndentEncoder(w io.Writer) *json.Encoder {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc
}
