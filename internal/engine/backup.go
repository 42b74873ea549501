package engine

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/nvandessel/corpus-graph/internal/backup"
	"github.com/nvandessel/corpus-graph/internal/pathutil"
)

// BackupResult reports one written backup.
type BackupResult struct {
	Path      string   `json:"path"`
	NodeCount int      `json:"node_count"`
	EdgeCount int      `json:"edge_count"`
	Checksum  string   `json:"checksum"`
	Rotated   []string `json:"rotated,omitempty"`
	Skipped   []string `json:"skipped,omitempty"`
}

// Backup snapshots every node and the current graph to path, or to a
// timestamped file in the corpus backup directory when path is empty. Backups
// written to the default directory are rotated down to index.backup_keep.
func (e *Engine) Backup(ctx context.Context, path string) (*BackupResult, error) {
	defaultDir := e.layout.BackupsDir()
	if path == "" {
		path = backup.GenerateBackupPath(defaultDir, e.now())
	}
	resolved, err := e.resolveBackupPath(path)
	if err != nil {
		return nil, err
	}

	var out *BackupResult
	err = e.withLock(func() error {
		b, header, err := backup.Backup(ctx, e.nodes, e.graphs, resolved)
		if err != nil {
			return err
		}
		out = &BackupResult{
			Path:      resolved,
			NodeCount: header.NodeCount,
			EdgeCount: header.EdgeCount,
			Checksum:  header.Checksum,
			Skipped:   b.Skipped,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if keep := e.cfg.Index.BackupKeep; keep > 0 && sameDir(filepath.Dir(resolved), defaultDir) {
		rotated, err := backup.RotateBackups(defaultDir, keep)
		if err != nil {
			e.logger.Warn("backup rotation failed", "error", err)
		}
		out.Rotated = rotated
	}

	e.logger.Info("backup written", "path", pathutil.RedactPath(resolved), "nodes", out.NodeCount, "edges", out.EdgeCount)
	e.events.Log("backup", map[string]any{"path": resolved, "nodes": out.NodeCount, "rotated": len(out.Rotated)})
	return out, nil
}

// RestoreResult reports one restore and the rebuild that followed it.
type RestoreResult struct {
	*backup.RestoreResult
	Rebuild *RebuildResult `json:"rebuild"`
}

// Restore puts the nodes of a backup back into the node store and rebuilds
// the graph from the result.
func (e *Engine) Restore(ctx context.Context, path string, mode backup.RestoreMode) (*RestoreResult, error) {
	resolved, err := e.resolveBackupPath(path)
	if err != nil {
		return nil, err
	}

	out := &RestoreResult{}
	err = e.withLock(func() error {
		res, err := backup.Restore(ctx, e.nodes, resolved, mode)
		if err != nil {
			return err
		}
		out.RestoreResult = res
		out.Rebuild, err = e.rebuildAll(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("backup restored", "path", pathutil.RedactPath(resolved), "mode", mode,
		"restored", out.NodesRestored, "skipped", out.NodesSkipped)
	e.events.Log("restore", map[string]any{
		"path":     resolved,
		"mode":     string(mode),
		"restored": out.NodesRestored,
		"skipped":  out.NodesSkipped,
		"removed":  out.NodesRemoved,
	})
	return out, nil
}

// ListBackups returns the backups in the corpus backup directory, newest first.
func (e *Engine) ListBackups() ([]backup.BackupInfo, error) {
	return backup.ListBackups(e.layout.BackupsDir())
}

func (e *Engine) resolveBackupPath(path string) (string, error) {
	allowed, err := pathutil.AllowedBackupDirs(e.layout.Root)
	if err != nil {
		return "", err
	}
	resolved, err := pathutil.Resolve(path, allowed)
	if err != nil {
		return "", fmt.Errorf("invalid backup path: %w", err)
	}
	return resolved, nil
}

func sameDir(a, b string) bool {
	ra, errA := filepath.EvalSymlinks(a)
	rb, errB := filepath.EvalSymlinks(b)
	if errA != nil || errB != nil {
		return filepath.Clean(a) == filepath.Clean(b)
	}
	return ra == rb
}
