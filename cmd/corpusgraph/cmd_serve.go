package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/nvandessel/corpus-graph/internal/engine"
	"github.com/nvandessel/corpus-graph/internal/mcp"
	"github.com/nvandessel/corpus-graph/internal/server"
	"github.com/nvandessel/corpus-graph/internal/store"
	"github.com/nvandessel/corpus-graph/internal/visualization"
	"github.com/nvandessel/corpus-graph/internal/watch"
	"github.com/spf13/cobra"
)

// signalContext returns a context cancelled on Ctrl-C or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	sigCh := make(chan os.Signal, 1)
	notifySignals(sigCh)
	go func() {
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the knowledge graph over a read-only HTTP API",
		Long: `Start a local HTTP server exposing the graph, nodes, neighbors, ranking,
validation and related-document search under /api, and an interactive
graph view at /.

With --watch, node file changes are picked up and the graph is rebuilt
while the server runs.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, _ := cmd.Flags().GetString("addr")
			open, _ := cmd.Flags().GetBool("open")
			watchNodes, _ := cmd.Flags().GetBool("watch")

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if addr == "" {
				addr = cfg.Server.Addr
			}
			eng, err := openEngineWith(cmd, cfg)
			if err != nil {
				return err
			}
			defer eng.Close()

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			if watchNodes {
				w, err := newWatcher(eng, cfg.Watch.Debounce)
				if err != nil {
					return err
				}
				go func() {
					if err := w.Run(ctx); err != nil {
						eng.Logger().Error("watcher stopped", "error", err)
					}
				}()
			}

			srv := server.New(eng, version, server.WithLogger(eng.Logger()))
			errCh := make(chan error, 1)
			go func() { errCh <- srv.ListenAndServe(ctx, addr) }()

			// Wait for server to start
			deadline := time.Now().Add(3 * time.Second)
			for time.Now().Before(deadline) && srv.Addr() == "" {
				select {
				case err := <-errCh:
					return fmt.Errorf("server error: %w", err)
				case <-time.After(10 * time.Millisecond):
				}
			}
			if srv.Addr() == "" {
				return fmt.Errorf("server failed to start")
			}

			url := "http://" + srv.Addr()
			fmt.Fprintf(cmd.OutOrStdout(), "Corpus graph API running at %s/api\n", url)
			fmt.Fprintf(cmd.OutOrStdout(), "Press Ctrl-C to stop.\n")
			if open {
				if err := visualization.OpenBrowser(url); err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "Could not open browser: %v\nOpen %s manually.\n", err, url)
				}
			}

			if err := <-errCh; err != nil {
				return fmt.Errorf("server error: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().String("addr", "", "Listen address (default from config)")
	cmd.Flags().Bool("open", false, "Open the graph view in a browser")
	cmd.Flags().Bool("watch", false, "Rebuild the graph when node files change")

	return cmd
}

func newWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Rebuild the graph as node files change",
		Long: `Watch the corpus node directories and run an incremental rebuild for
every changed node file. Bursts of changes are debounced. Runs until
interrupted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			debounce := cfg.Watch.Debounce
			if cmd.Flags().Changed("debounce") {
				debounce, _ = cmd.Flags().GetDuration("debounce")
			}

			eng, err := openEngineWith(cmd, cfg)
			if err != nil {
				return err
			}
			defer eng.Close()

			w, err := newWatcher(eng, debounce)
			if err != nil {
				return err
			}
			w.OnBatch = func(b watch.Batch) {
				out := cmd.OutOrStdout()
				for i, path := range b.Paths {
					if err := b.Errors[i]; err != nil {
						fmt.Fprintf(out, "%s: rebuild failed: %v\n", path, err)
						continue
					}
					res := b.Results[i]
					fmt.Fprintf(out, "%s: %d nodes, %d edges (build %s)\n", path, res.Nodes, res.Edges, res.BuildID)
				}
			}

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			fmt.Fprintf(cmd.OutOrStdout(), "Watching %s (Ctrl-C to stop)\n", eng.Layout().NodesDir())
			return w.Run(ctx)
		},
	}

	cmd.Flags().Duration("debounce", watch.DefaultDebounce, "Quiet period before rebuilding")

	return cmd
}

// newWatcher watches the engine's node directory. Only file-backed nodes
// can be watched.
func newWatcher(eng *engine.Engine, debounce time.Duration) (*watch.Watcher, error) {
	if backend := eng.Config().Corpus.NodeBackend; backend != store.BackendFile {
		return nil, fmt.Errorf("watch requires the %q node backend, configured: %q", store.BackendFile, backend)
	}
	return watch.New(eng.Layout().NodesDir(), eng, debounce, eng.Logger()), nil
}

func newMCPServerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp-server",
		Short: "Run the MCP server over stdio",
		Long: `Run a Model Context Protocol server exposing the corpus tools
(corpus_related, corpus_get, corpus_neighbors, corpus_rank, corpus_graph,
corpus_validate, corpus_fix, corpus_rebuild, corpus_decay, corpus_refresh,
corpus_enrich, corpus_backup, corpus_restore) and resources to coding agents.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			root, _ := cmd.Flags().GetString("root")

			eng, err := openEngine(cmd)
			if err != nil {
				return err
			}
			defer eng.Close()

			srv, err := mcp.NewServer(&mcp.Config{
				Name:    "corpusgraph",
				Version: version,
				Root:    root,
				Engine:  eng,
				Logger:  eng.Logger(),
			})
			if err != nil {
				return fmt.Errorf("failed to start MCP server: %w", err)
			}

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()
			return srv.Run(ctx)
		},
	}
}
