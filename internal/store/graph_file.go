package store

import (
	"context"
	"fmt"
	"os"

	"github.com/nvandessel/corpus-graph/internal/models"
)

// FileGraphStore keeps the derived documents as JSON files beside the node
// collections: graph.json, adjacency.json and decay_index.json. Each file is
// replaced with a temp-file rename.
type FileGraphStore struct {
	layout Layout
}

// NewFileGraphStore creates a FileGraphStore for the given layout.
func NewFileGraphStore(layout Layout) *FileGraphStore {
	return &FileGraphStore{layout: layout}
}

// LoadGraph reads graph.json.
func (s *FileGraphStore) LoadGraph(ctx context.Context) (*models.GraphDocument, error) {
	var doc models.GraphDocument
	if err := readJSON(s.layout.GraphFile(), &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// LoadAdjacency reads adjacency.json.
func (s *FileGraphStore) LoadAdjacency(ctx context.Context) (*models.AdjacencyIndex, error) {
	var adj models.AdjacencyIndex
	if err := readJSON(s.layout.AdjacencyFile(), &adj); err != nil {
		return nil, err
	}
	return &adj, nil
}

// SaveIndex replaces graph.json and adjacency.json as a pair. Both documents
// are staged before either is renamed into place. The adjacency index is
// renamed first and put back if the graph rename then fails, so a failed
// save leaves the previous pair on disk.
func (s *FileGraphStore) SaveIndex(ctx context.Context, doc *models.GraphDocument, adj *models.AdjacencyIndex) error {
	graphPath, adjPath := s.layout.GraphFile(), s.layout.AdjacencyFile()

	graphData, err := marshalDoc(graphPath, doc)
	if err != nil {
		return fmt.Errorf("failed to write graph: %w", err)
	}
	adjData, err := marshalDoc(adjPath, adj)
	if err != nil {
		return fmt.Errorf("failed to write adjacency: %w", err)
	}

	graphTmp, err := stageFile(graphPath, graphData, 0644)
	if err != nil {
		return fmt.Errorf("failed to write graph: %w", err)
	}
	adjTmp, err := stageFile(adjPath, adjData, 0644)
	if err != nil {
		os.Remove(graphTmp)
		return fmt.Errorf("failed to write adjacency: %w", err)
	}

	prevAdj, prevErr := os.ReadFile(adjPath)
	if err := os.Rename(adjTmp, adjPath); err != nil {
		os.Remove(graphTmp)
		os.Remove(adjTmp)
		return fmt.Errorf("failed to write adjacency: %w", err)
	}
	if err := os.Rename(graphTmp, graphPath); err != nil {
		os.Remove(graphTmp)
		switch {
		case prevErr == nil:
			if rerr := writeFileAtomic(adjPath, prevAdj, 0644); rerr != nil {
				return fmt.Errorf("failed to write graph: %w (restoring adjacency: %v)", err, rerr)
			}
		case os.IsNotExist(prevErr):
			os.Remove(adjPath)
		}
		return fmt.Errorf("failed to write graph: %w", err)
	}
	return nil
}

// LoadDecayIndex reads decay_index.json.
func (s *FileGraphStore) LoadDecayIndex(ctx context.Context) (*models.DecayIndex, error) {
	var idx models.DecayIndex
	if err := readJSON(s.layout.DecayIndexFile(), &idx); err != nil {
		return nil, err
	}
	return &idx, nil
}

// SaveDecayIndex writes decay_index.json.
func (s *FileGraphStore) SaveDecayIndex(ctx context.Context, idx *models.DecayIndex) error {
	if err := writeJSONAtomic(s.layout.DecayIndexFile(), idx); err != nil {
		return fmt.Errorf("failed to write decay index: %w", err)
	}
	return nil
}

// Close is a no-op.
func (s *FileGraphStore) Close() error {
	return nil
}
