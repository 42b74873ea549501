package store

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dgraph-io/badger/v4"

	"github.com/nvandessel/corpus-graph/internal/models"
)

// Badger keys for the derived documents.
var (
	keyGraph     = []byte("doc:graph")
	keyAdjacency = []byte("doc:adjacency")
	keyDecay     = []byte("doc:decay")
)

// BadgerGraphStore keeps the derived documents in a Badger database. The
// graph and adjacency index are committed in one transaction, so readers
// never observe one without the other.
type BadgerGraphStore struct {
	mu sync.RWMutex
	db *badger.DB
}

// OpenBadgerGraphStore opens or creates the Badger database at path.
func OpenBadgerGraphStore(path string) (*BadgerGraphStore, error) {
	opts := badger.DefaultOptions(path).
		WithNumCompactors(2).
		WithLoggingLevel(badger.ERROR) // Suppress INFO/WARNING logs

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening badger DB: %w", err)
	}
	return &BadgerGraphStore{db: db}, nil
}

// LoadGraph reads the graph document.
func (s *BadgerGraphStore) LoadGraph(ctx context.Context) (*models.GraphDocument, error) {
	var doc models.GraphDocument
	if err := s.get(keyGraph, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// LoadAdjacency reads the adjacency index.
func (s *BadgerGraphStore) LoadAdjacency(ctx context.Context) (*models.AdjacencyIndex, error) {
	var adj models.AdjacencyIndex
	if err := s.get(keyAdjacency, &adj); err != nil {
		return nil, err
	}
	return &adj, nil
}

// SaveIndex writes both documents in a single transaction.
func (s *BadgerGraphStore) SaveIndex(ctx context.Context, doc *models.GraphDocument, adj *models.AdjacencyIndex) error {
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
	if s.db == nil {
		return errors.New("badger graph store is closed")
	}
	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(keyGraph, g); err != nil {
			return fmt.Errorf("setting graph: %w", err)
		}
		if err := txn.Set(keyAdjacency, a); err != nil {
			return fmt.Errorf("setting adjacency: %w", err)
		}
		return nil
	})
}

// LoadDecayIndex reads the decay score cache.
func (s *BadgerGraphStore) LoadDecayIndex(ctx context.Context) (*models.DecayIndex, error) {
	var idx models.DecayIndex
	if err := s.get(keyDecay, &idx); err != nil {
		return nil, err
	}
	return &idx, nil
}

// SaveDecayIndex writes the decay score cache.
func (s *BadgerGraphStore) SaveDecayIndex(ctx context.Context, idx *models.DecayIndex) error {
	data, err := encodeDoc(idx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return errors.New("badger graph store is closed")
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(keyDecay, data)
	})
}

// Close releases the database.
func (s *BadgerGraphStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *BadgerGraphStore) get(key []byte, v any) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return errors.New("badger graph store is closed")
	}

	var data []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("reading %s: %w", key, err)
	}
	return decodeDoc(data, v)
}
