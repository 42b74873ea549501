package store

import (
	"fmt"
	"os"
)

// Backend names accepted by OpenNodeStore and OpenGraphStore.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
	BackendBadger = "badger"
)

// OpenNodeStore opens the node store for layout using the named backend
// ("" selects the file backend).
func OpenNodeStore(layout Layout, backend string) (NodeStore, error) {
	switch backend {
	case "", BackendFile:
		return NewFileNodeStore(layout)
	case BackendSQLite:
		if err := os.MkdirAll(layout.Root, 0755); err != nil {
			return nil, fmt.Errorf("failed to create corpus directory: %w", err)
		}
		return NewSQLiteNodeStore(layout.SQLiteFile())
	case BackendMemory:
		return NewInMemoryNodeStore(), nil
	default:
		return nil, fmt.Errorf("unknown node backend %q (want file, sqlite or memory)", backend)
	}
}

// OpenGraphStore opens the graph store for layout using the named backend
// ("" selects the file backend).
func OpenGraphStore(layout Layout, backend string) (GraphStore, error) {
	switch backend {
	case "", BackendFile:
		return NewFileGraphStore(layout), nil
	case BackendBadger:
		return OpenBadgerGraphStore(layout.BadgerDir())
	case BackendMemory:
		return NewInMemoryGraphStore(), nil
	default:
		return nil, fmt.Errorf("unknown graph backend %q (want file, badger or memory)", backend)
	}
}
