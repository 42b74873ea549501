// Package store defines the NodeStore and GraphStore interfaces that wrap all
// access to corpus records and the derived graph documents, plus their file,
// SQLite, Badger and in-memory implementations.
package store

import (
	"context"
	"errors"
	"fmt"
	"iter"

	"github.com/nvandessel/corpus-graph/internal/models"
)

// ErrNotFound is returned when a node or document does not exist.
var ErrNotFound = errors.New("not found")

// ErrLocked is returned when another writer holds the corpus lock.
var ErrLocked = errors.New("corpus is locked by another writer")

// ValidationError describes a node document that is missing required fields
// or carries invalid values. Bulk readers skip such documents and continue.
type ValidationError struct {
	NodeID string `json:"node_id,omitempty"`
	Path   string `json:"path,omitempty"`
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// Error implements error.
func (e *ValidationError) Error() string {
	subject := e.NodeID
	if subject == "" {
		subject = e.Path
	}
	if subject == "" {
		subject = "node"
	}
	return fmt.Sprintf("invalid %s: %s %s", subject, e.Field, e.Reason)
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// NodeStore reads and writes individual corpus records keyed by id.
// Every write is visible to subsequent reads.
type NodeStore interface {
	// Put writes a node, replacing any existing node with the same id.
	// Returns a *ValidationError when required fields are missing.
	Put(ctx context.Context, node models.Node) error

	// Get returns the node with the given id or ErrNotFound.
	Get(ctx context.Context, id string) (*models.Node, error)

	// List returns a lazy sequence of nodes, optionally filtered by type
	// ("" lists every type). The sequence is finite and can be ranged over
	// again to restart it. Entries that cannot be read are yielded as
	// (models.Node{}, err) so callers can skip them and continue.
	List(ctx context.Context, nodeType models.NodeType) iter.Seq2[models.Node, error]

	// Delete removes the node with the given id or returns ErrNotFound.
	Delete(ctx context.Context, id string) error

	// Close releases resources held by the store.
	Close() error
}

// GraphStore persists the derived documents: the graph, its adjacency index
// and the decay score cache. Implementations must never expose a partially
// written document to readers.
type GraphStore interface {
	// LoadGraph returns the current graph document or ErrNotFound.
	LoadGraph(ctx context.Context) (*models.GraphDocument, error)

	// LoadAdjacency returns the current adjacency index or ErrNotFound.
	LoadAdjacency(ctx context.Context) (*models.AdjacencyIndex, error)

	// SaveIndex replaces the graph document and adjacency index together.
	SaveIndex(ctx context.Context, doc *models.GraphDocument, adj *models.AdjacencyIndex) error

	// LoadDecayIndex returns the decay score cache or ErrNotFound.
	LoadDecayIndex(ctx context.Context) (*models.DecayIndex, error)

	// SaveDecayIndex replaces the decay score cache.
	SaveDecayIndex(ctx context.Context, idx *models.DecayIndex) error

	// Close releases resources held by the store.
	Close() error
}

// CollectNodes drains a NodeStore listing into a slice, returning the nodes
// that could be read and the per-entry errors separately.
func CollectNodes(ctx context.Context, s NodeStore, nodeType models.NodeType) ([]models.Node, []error) {
	var nodes []models.Node
	var errs []error
	for node, err := range s.List(ctx, nodeType) {
		if err != nil {
			errs = append(errs, err)
			continue
		}
		nodes = append(nodes, node)
	}
	return nodes, errs
}
