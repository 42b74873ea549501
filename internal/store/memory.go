package store

import (
	"context"
	"iter"
	"slices"
	"sync"

	"github.com/nvandessel/corpus-graph/internal/models"
)

// InMemoryNodeStore implements NodeStore for testing and development.
// Listing follows models.CompareListing, like the persistent stores.
type InMemoryNodeStore struct {
	mu    sync.RWMutex
	nodes map[string]models.Node
	order []string
}

// NewInMemoryNodeStore creates a new in-memory node store.
func NewInMemoryNodeStore() *InMemoryNodeStore {
	return &InMemoryNodeStore{
		nodes: make(map[string]models.Node),
	}
}

// Put adds or replaces a node.
func (s *InMemoryNodeStore) Put(ctx context.Context, node models.Node) error {
	normalizeNode(&node)
	if err := ValidateNode(&node); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.nodes[node.ID]; ok {
		if err := checkImmutable(&existing, &node); err != nil {
			return err
		}
	} else {
		s.order = append(s.order, node.ID)
	}
	s.nodes[node.ID] = node.Clone()
	return nil
}

// Get retrieves a node by ID.
func (s *InMemoryNodeStore) Get(ctx context.Context, id string) (*models.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	node, ok := s.nodes[id]
	if !ok {
		return nil, ErrNotFound
	}
	c := node.Clone()
	return &c, nil
}

// List yields a snapshot of the nodes taken when iteration starts.
func (s *InMemoryNodeStore) List(ctx context.Context, nodeType models.NodeType) iter.Seq2[models.Node, error] {
	return func(yield func(models.Node, error) bool) {
		s.mu.RLock()
		snapshot := make([]models.Node, 0, len(s.order))
		for _, id := range s.order {
			node := s.nodes[id]
			if nodeType != "" && node.Type != nodeType {
				continue
			}
			snapshot = append(snapshot, node.Clone())
		}
		s.mu.RUnlock()
		slices.SortStableFunc(snapshot, models.CompareListing)

		for _, node := range snapshot {
			if ctx.Err() != nil {
				yield(models.Node{}, ctx.Err())
				return
			}
			if !yield(node, nil) {
				return
			}
		}
	}
}

// Delete removes a node.
func (s *InMemoryNodeStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.nodes[id]; !ok {
		return ErrNotFound
	}
	delete(s.nodes, id)
	for i, existing := range s.order {
		if existing == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

// Close is a no-op.
func (s *InMemoryNodeStore) Close() error {
	return nil
}

// InMemoryGraphStore implements GraphStore for testing. Documents are stored
// by value via a JSON round trip so callers cannot mutate stored state.
type InMemoryGraphStore struct {
	mu    sync.RWMutex
	graph []byte
	adj   []byte
	decay []byte
}

// NewInMemoryGraphStore creates an empty in-memory graph store.
func NewInMemoryGraphStore() *InMemoryGraphStore {
	return &InMemoryGraphStore{}
}

// LoadGraph returns a copy of the stored graph document.
func (s *InMemoryGraphStore) LoadGraph(ctx context.Context) (*models.GraphDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var doc models.GraphDocument
	if err := decodeDoc(s.graph, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// LoadAdjacency returns a copy of the stored adjacency index.
func (s *InMemoryGraphStore) LoadAdjacency(ctx context.Context) (*models.AdjacencyIndex, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var adj models.AdjacencyIndex
	if err := decodeDoc(s.adj, &adj); err != nil {
		return nil, err
	}
	return &adj, nil
}

// SaveIndex stores both documents.
func (s *InMemoryGraphStore) SaveIndex(ctx context.Context, doc *models.GraphDocument, adj *models.AdjacencyIndex) error {
	g, err := encodeDoc(doc)
	if err != nil {
		return err
	}
	a, err := encodeDoc(adj)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.graph, s.adj = g, a
	return nil
}

// LoadDecayIndex returns a copy of the stored decay index.
func (s *InMemoryGraphStore) LoadDecayIndex(ctx context.Context) (*models.DecayIndex, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var idx models.DecayIndex
	if err := decodeDoc(s.decay, &idx); err != nil {
		return nil, err
	}
	return &idx, nil
}

// SaveDecayIndex stores the decay index.
func (s *InMemoryGraphStore) SaveDecayIndex(ctx context.Context, idx *models.DecayIndex) error {
	d, err := encodeDoc(idx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.decay = d
	return nil
}

// Close is a no-op.
func (s *InMemoryGraphStore) Close() error {
	return nil
}
