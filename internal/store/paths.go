package store

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/nvandessel/corpus-graph/internal/constants"
	"github.com/nvandessel/corpus-graph/internal/models"
)

// Layout resolves the logical paths of a corpus on disk.
type Layout struct {
	// ProjectRoot is the directory the corpus and references live under.
	ProjectRoot string

	// Root is the corpus directory (default <ProjectRoot>/corpus).
	Root string

	// ReferencesIndex is the catalog consumed by the similarity retriever.
	ReferencesIndex string
}

// NewLayout returns the default layout under projectRoot. corpusDir and
// referencesIndex may be relative to projectRoot or absolute; empty values
// use the defaults.
func NewLayout(projectRoot, corpusDir, referencesIndex string) Layout {
	if corpusDir == "" {
		corpusDir = constants.DefaultCorpusDir
	}
	if referencesIndex == "" {
		referencesIndex = constants.DefaultReferencesIndex
	}
	return Layout{
		ProjectRoot:     projectRoot,
		Root:            resolve(projectRoot, corpusDir),
		ReferencesIndex: resolve(projectRoot, referencesIndex),
	}
}

func resolve(base, p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(base, p)
}

// NodesDir is the root of the node collections.
func (l Layout) NodesDir() string { return filepath.Join(l.Root, "nodes") }

// CollectionDir is the directory holding nodes of the given type.
func (l Layout) CollectionDir(t models.NodeType) string {
	return filepath.Join(l.NodesDir(), t.Collection())
}

// GraphFile is the graph document path.
func (l Layout) GraphFile() string { return filepath.Join(l.Root, "graph.json") }

// AdjacencyFile is the adjacency index path.
func (l Layout) AdjacencyFile() string { return filepath.Join(l.Root, "adjacency.json") }

// DecayIndexFile is the decay score cache path.
func (l Layout) DecayIndexFile() string { return filepath.Join(l.Root, "decay_index.json") }

// SQLiteFile is the database used by the sqlite node backend.
func (l Layout) SQLiteFile() string { return filepath.Join(l.Root, "corpus.db") }

// BadgerDir is the directory used by the badger graph backend.
func (l Layout) BadgerDir() string { return filepath.Join(l.Root, "index.badger") }

// LockFile is the advisory writer lock.
func (l Layout) LockFile() string { return filepath.Join(l.Root, ".lock") }

// BackupsDir holds corpus backups.
func (l Layout) BackupsDir() string { return filepath.Join(l.Root, "backups") }

// EventsFile is the JSONL event log written at debug level.
func (l Layout) EventsFile() string { return filepath.Join(l.Root, "events.jsonl") }

// AuditFile is the JSONL log of MCP tool invocations.
func (l Layout) AuditFile() string { return filepath.Join(l.Root, "audit.jsonl") }

// Initialized reports whether the corpus directory exists.
func (l Layout) Initialized() bool {
	info, err := os.Stat(l.Root)
	return err == nil && info.IsDir()
}

// EnsureDirs creates the corpus directory and one directory per collection.
func (l Layout) EnsureDirs() error {
	for _, t := range models.NodeTypes {
		if err := os.MkdirAll(l.CollectionDir(t), 0755); err != nil {
			return fmt.Errorf("failed to create %s directory: %w", t.Collection(), err)
		}
	}
	return nil
}
