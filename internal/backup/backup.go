// Package backup provides backup and restore functionality for a corpus.
// A backup holds every node plus the graph snapshot current at the time.
package backup

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/nvandessel/corpus-graph/internal/constants"
	"github.com/nvandessel/corpus-graph/internal/models"
	"github.com/nvandessel/corpus-graph/internal/store"
)

// BackupFormat is the payload of a backup file.
type BackupFormat struct {
	CreatedAt   time.Time             `json:"created_at"`
	GeneratedBy string                `json:"generated_by"`
	Nodes       []models.Node         `json:"nodes"`
	Graph       *models.GraphDocument `json:"graph,omitempty"`

	// Skipped lists the entries that could not be read when the backup was taken.
	Skipped []string `json:"skipped,omitempty"`
}

func (b *BackupFormat) edgeCount() int {
	if b.Graph == nil {
		return 0
	}
	return len(b.Graph.Edges)
}

// DefaultBackupDir returns the backup directory of a corpus.
func DefaultBackupDir(layout store.Layout) string {
	return layout.BackupsDir()
}

// Backup writes every readable node and the current graph document to
// outputPath. A missing graph document is not an error.
func Backup(ctx context.Context, nodes store.NodeStore, graphs store.GraphStore, outputPath string) (*BackupFormat, *BackupHeader, error) {
	all, errs := store.CollectNodes(ctx, nodes, "")
	if err := ctx.Err(); err != nil {
		return nil, nil, fmt.Errorf("backup interrupted: %w", err)
	}

	b := &BackupFormat{
		CreatedAt:   time.Now().UTC(),
		GeneratedBy: constants.AppName,
		Nodes:       all,
	}
	if b.Nodes == nil {
		b.Nodes = []models.Node{}
	}
	for _, err := range errs {
		b.Skipped = append(b.Skipped, err.Error())
	}

	doc, err := graphs.LoadGraph(ctx)
	switch {
	case err == nil:
		b.Graph = doc
	case !errors.Is(err, store.ErrNotFound):
		return nil, nil, fmt.Errorf("failed to load graph: %w", err)
	}

	header, err := Write(outputPath, b)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to write backup: %w", err)
	}
	return b, header, nil
}

// RestoreMode controls how restore handles existing data.
type RestoreMode string

const (
	// RestoreMerge skips nodes that already exist (default).
	RestoreMerge RestoreMode = "merge"
	// RestoreReplace removes every existing node before restoring.
	RestoreReplace RestoreMode = "replace"
)

// ParseRestoreMode maps a user-supplied name to a RestoreMode. Empty selects merge.
func ParseRestoreMode(s string) (RestoreMode, error) {
	switch RestoreMode(s) {
	case "", RestoreMerge:
		return RestoreMerge, nil
	case RestoreReplace:
		return RestoreReplace, nil
	default:
		return "", fmt.Errorf("invalid restore mode %q (use 'merge' or 'replace')", s)
	}
}

// RestoreResult contains statistics about the restore operation.
type RestoreResult struct {
	NodesRestored int      `json:"nodes_restored"`
	NodesSkipped  int      `json:"nodes_skipped"`
	NodesRemoved  int      `json:"nodes_removed"`
	Errors        []string `json:"errors,omitempty"`
}

// Restore puts the nodes of a backup file back into the node store. The
// graph is not restored: callers rebuild it from the restored nodes.
func Restore(ctx context.Context, nodes store.NodeStore, inputPath string, mode RestoreMode) (*RestoreResult, error) {
	b, err := Read(inputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read backup: %w", err)
	}

	result := &RestoreResult{}

	if mode == RestoreReplace {
		existing, errs := store.CollectNodes(ctx, nodes, "")
		if len(errs) > 0 {
			return nil, fmt.Errorf("failed to list existing nodes: %w", errors.Join(errs...))
		}
		for _, n := range existing {
			if err := nodes.Delete(ctx, n.ID); err != nil {
				return nil, fmt.Errorf("failed to remove node %s: %w", n.ID, err)
			}
			result.NodesRemoved++
		}
	}

	for _, n := range b.Nodes {
		if mode == RestoreMerge {
			if _, err := nodes.Get(ctx, n.ID); err == nil {
				result.NodesSkipped++
				continue
			}
		}
		if err := nodes.Put(ctx, n); err != nil {
			if mode == RestoreMerge {
				result.NodesSkipped++
				result.Errors = append(result.Errors, err.Error())
				continue
			}
			return nil, fmt.Errorf("failed to restore node %s: %w", n.ID, err)
		}
		result.NodesRestored++
	}

	return result, nil
}

// GenerateBackupPath creates a timestamped backup filename in the given directory.
func GenerateBackupPath(dir string, now time.Time) string {
	ts := now.UTC().Format("20060102-150405")
	return filepath.Join(dir, fmt.Sprintf("%s%s%s", filePrefix, ts, fileExt))
}

// RotateBackups keeps only the most recent keepN backups in dir.
func RotateBackups(dir string, keepN int) ([]string, error) {
	return ApplyRetention(dir, &CountPolicy{MaxCount: keepN})
}
