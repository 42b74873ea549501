// Package watch keeps the graph current while node files are edited.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/nvandessel/corpus-graph/internal/engine"
	"github.com/nvandessel/corpus-graph/internal/logging"
	"github.com/nvandessel/corpus-graph/internal/store"
)

// DefaultDebounce is how long the watcher waits after the last change
// before rebuilding.
const DefaultDebounce = 500 * time.Millisecond

// Rebuilder updates the graph after one node file changed.
type Rebuilder interface {
	RebuildIncremental(ctx context.Context, changedPath string) (*engine.RebuildResult, error)
}

// Batch reports one debounced set of changes.
type Batch struct {
	Paths   []string
	Results []*engine.RebuildResult
	Errors  []error
}

// Watcher rebuilds the graph incrementally when node files change.
type Watcher struct {
	dir      string
	rebuild  Rebuilder
	debounce time.Duration
	logger   *slog.Logger

	// OnBatch, when set, is called after each batch is processed.
	OnBatch func(Batch)
	// ready is closed once every directory is being watched.
	ready chan struct{}
}

// New creates a Watcher over the nodes tree in dir. A non-positive debounce
// uses DefaultDebounce.
func New(dir string, rebuild Rebuilder, debounce time.Duration, logger *slog.Logger) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Watcher{
		dir:      dir,
		rebuild:  rebuild,
		debounce: debounce,
		logger:   logger,
		ready:    make(chan struct{}),
	}
}

// Ready is closed once Run has registered every directory.
func (w *Watcher) Ready() <-chan struct{} {
	return w.ready
}

// Run watches the nodes tree until ctx is cancelled. Cancellation is a
// clean stop and returns nil.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer fw.Close()

	if err := w.addTree(fw, w.dir); err != nil {
		return fmt.Errorf("setting up watcher: %w", err)
	}
	close(w.ready)
	w.logger.Info("watching node files", "dir", w.dir, "debounce", w.debounce)

	pending := make(map[string]bool)
	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := w.addTree(fw, event.Name); err != nil {
						w.logger.Warn("failed to watch new directory", "dir", event.Name, "error", err)
					}
					continue
				}
			}
			if !relevant(event) {
				continue
			}
			pending[event.Name] = true
			timer.Reset(w.debounce)

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", "error", err)

		case <-timer.C:
			if len(pending) == 0 {
				continue
			}
			paths := make([]string, 0, len(pending))
			for p := range pending {
				paths = append(paths, p)
			}
			slices.Sort(paths)
			pending = make(map[string]bool)
			w.process(ctx, paths)
		}
	}
}

// process rebuilds once per changed path. One failing path does not stop
// the others.
func (w *Watcher) process(ctx context.Context, paths []string) {
	batch := Batch{Paths: paths}
	for _, p := range paths {
		res, err := w.rebuild.RebuildIncremental(ctx, p)
		if err != nil {
			w.logger.Warn("incremental rebuild failed", "path", p, "error", err)
			batch.Errors = append(batch.Errors, err)
			continue
		}
		batch.Results = append(batch.Results, res)
		w.logger.Debug("rebuilt after change", "path", p, "build_id", res.BuildID, "nodes", res.Nodes, "edges", res.Edges)
	}
	w.logger.Info("processed changes", "files", len(paths), "failed", len(batch.Errors))
	if w.OnBatch != nil {
		w.OnBatch(batch)
	}
}

// addTree watches root and every directory below it.
func (w *Watcher) addTree(fw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) && path != root {
				return nil
			}
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && d.Name()[0] == '.' {
			return filepath.SkipDir
		}
		return fw.Add(path)
	})
}

// relevant reports whether event touches a node file in a way that can
// change its content or existence. Chmod alone is ignored.
func relevant(event fsnotify.Event) bool {
	if !store.IsNodeFile(event.Name) {
		return false
	}
	return event.Has(fsnotify.Create) || event.Has(fsnotify.Write) ||
		event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename)
}
