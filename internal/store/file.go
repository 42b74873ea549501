package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/nvandessel/corpus-graph/internal/models"
	"gopkg.in/yaml.v3"
)

// nodeFileExts are the extensions recognized as node documents. New files
// are always written with the first one.
var nodeFileExts = []string{".yml", ".yaml"}

// FileNodeStore implements NodeStore with one YAML document per node under
// corpus/nodes/<collection>/<id>.yml. There is no cache: every read goes to disk.
type FileNodeStore struct {
	mu     sync.Mutex // serializes writers within the process
	layout Layout
}

// NewFileNodeStore creates a FileNodeStore for the given layout, creating
// the collection directories if needed.
func NewFileNodeStore(layout Layout) (*FileNodeStore, error) {
	if err := layout.EnsureDirs(); err != nil {
		return nil, err
	}
	return &FileNodeStore{layout: layout}, nil
}

// PathFor returns the file a node is stored in.
func (s *FileNodeStore) PathFor(node *models.Node) string {
	return filepath.Join(s.layout.CollectionDir(node.Type), node.ID+nodeFileExts[0])
}

// IsNodeFile reports whether path looks like a node document.
func fileID(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name))
}

func IsNodeFile(path string) bool {
	ext := filepath.Ext(path)
	for _, e := range nodeFileExts {
		if ext == e {
			return !strings.HasPrefix(filepath.Base(path), ".")
		}
	}
	return false
}

// IDFromPath returns the node id encoded in a node file name.
func IDFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Put writes a node atomically. The node's id, type and created_at must not
// change once written.
func (s *FileNodeStore) Put(ctx context.Context, node models.Node) error {
	normalizeNode(&node)
	if err := ValidateNode(&node); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existingPath, err := s.find(node.ID); err == nil {
		existing, err := ReadNodeFile(existingPath)
		if err == nil {
			if err := checkImmutable(existing, &node); err != nil {
				return err
			}
		}
	} else if !errors.Is(err, ErrNotFound) {
		return err
	}

	data, err := encodeNode(&node)
	if err != nil {
		return err
	}
	return writeFileAtomic(s.PathFor(&node), data, 0644)
}

// Get reads a node by id.
func (s *FileNodeStore) Get(ctx context.Context, id string) (*models.Node, error) {
	path, err := s.find(id)
	if err != nil {
		return nil, err
	}
	return ReadNodeFile(path)
}

// List yields nodes in collection order (decisions, learnings, enrichments),
// then by id (the file name without its extension). Files that fail to parse or validate are yielded as errors.
func (s *FileNodeStore) List(ctx context.Context, nodeType models.NodeType) iter.Seq2[models.Node, error] {
	return func(yield func(models.Node, error) bool) {
		for _, t := range models.NodeTypes {
			if nodeType != "" && t != nodeType {
				continue
			}
			dir := s.layout.CollectionDir(t)
			entries, err := os.ReadDir(dir)
			if err != nil {
				if os.IsNotExist(err) {
					continue
				}
				if !yield(models.Node{}, fmt.Errorf("reading %s: %w", t.Collection(), err)) {
					return
				}
				continue
			}
			slices.SortStableFunc(entries, func(a, b os.DirEntry) int {
				return strings.Compare(fileID(a.Name()), fileID(b.Name()))
			})
			for _, entry := range entries {
				if ctx.Err() != nil {
					yield(models.Node{}, ctx.Err())
					return
				}
				if entry.IsDir() || !IsNodeFile(entry.Name()) {
					continue
				}
				node, err := ReadNodeFile(filepath.Join(dir, entry.Name()))
				if err != nil {
					if !yield(models.Node{}, err) {
						return
					}
					continue
				}
				if !yield(*node, nil) {
					return
				}
			}
		}
	}
}

// Delete removes a node file.
func (s *FileNodeStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path, err := s.find(id)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("removing node %s: %w", id, err)
	}
	return nil
}

// Close is a no-op; the file store holds no open handles.
func (s *FileNodeStore) Close() error {
	return nil
}

// find locates the file holding id in any collection.
func (s *FileNodeStore) find(id string) (string, error) {
	if !validLookupID(id) {
		return "", ErrNotFound
	}
	for _, t := range models.NodeTypes {
		for _, ext := range nodeFileExts {
			path := filepath.Join(s.layout.CollectionDir(t), id+ext)
			if _, err := os.Stat(path); err == nil {
				return path, nil
			} else if !os.IsNotExist(err) {
				return "", fmt.Errorf("checking %s: %w", id, err)
			}
		}
	}
	return "", ErrNotFound
}

// validLookupID rejects ids that could escape the collection directories.
func validLookupID(id string) bool {
	return id != "" && !strings.ContainsAny(id, `/\`) && id != "." && id != ".."
}

// ReadNodeFile parses and validates a single node document. The file name
// must match the node id.
func ReadNodeFile(path string) (*models.Node, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("reading %s: %w", filepath.Base(path), err)
	}

	var node models.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, &ValidationError{Path: path, Field: "document", Reason: "is not valid YAML: " + err.Error()}
	}
	if err := ValidateNode(&node); err != nil {
		var ve *ValidationError
		if errors.As(err, &ve) {
			ve.Path = path
		}
		return nil, err
	}
	if want := IDFromPath(path); node.ID != want {
		return nil, &ValidationError{NodeID: node.ID, Path: path, Field: "id", Reason: fmt.Sprintf("does not match file name %q", want)}
	}
	return &node, nil
}

func encodeNode(node *models.Node) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(node); err != nil {
		return nil, fmt.Errorf("encoding node %s: %w", node.ID, err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encoding node %s: %w", node.ID, err)
	}
	return buf.Bytes(), nil
}

// checkImmutable rejects writes that change a node's identity fields.
func checkImmutable(existing, next *models.Node) error {
	if existing.Type != next.Type {
		return &ValidationError{NodeID: next.ID, Field: "type", Reason: fmt.Sprintf("is immutable (stored as %s)", existing.Type)}
	}
	if !existing.CreatedAt.Equal(next.CreatedAt) {
		return &ValidationError{NodeID: next.ID, Field: "created_at", Reason: "is immutable"}
	}
	return nil
}
