package similarity

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/nvandessel/corpus-graph/internal/models"
	"github.com/nvandessel/corpus-graph/internal/store"
	"github.com/nvandessel/corpus-graph/internal/tagging"
)

// Origin says where a document came from.
type Origin string

const (
	OriginReference Origin = "reference" // external document from the catalog
	OriginNode      Origin = "node"      // corpus node
)

// Document is one searchable item.
type Document struct {
	ID       string   `yaml:"id" json:"id"`
	Title    string   `yaml:"title" json:"title"`
	Keywords []string `yaml:"keywords,omitempty" json:"keywords,omitempty"`
	Summary  string   `yaml:"summary,omitempty" json:"summary,omitempty"`
	Category string   `yaml:"category,omitempty" json:"category,omitempty"`
	Origin   Origin   `yaml:"-" json:"origin"`
}

// Catalog is the on-disk reference index.
type Catalog struct {
	Documents []Document `yaml:"documents"`
}

// LoadCatalog parses the reference index at path. A missing file is an empty
// catalog. Entries without an id are dropped.
func LoadCatalog(path string) ([]Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}

	var cat Catalog
	if err := yaml.Unmarshal(data, &cat); err != nil {
		return nil, fmt.Errorf("failed to parse catalog %s: %w", path, err)
	}

	docs := make([]Document, 0, len(cat.Documents))
	for _, d := range cat.Documents {
		if d.ID == "" {
			continue
		}
		d.Origin = OriginReference
		docs = append(docs, d)
	}
	return docs, nil
}

// DocumentFromNode maps a node to a searchable document. Keywords are the
// node's tags plus its concepts; when vocab is non-nil concepts are
// recomputed from category and title.
func DocumentFromNode(node *models.Node, vocab *tagging.Vocabulary) Document {
	concepts := node.Concepts
	if vocab != nil {
		concepts = vocab.Concepts(node.Category, node.Title)
	}
	keywords := make([]string, 0, len(node.Tags)+len(concepts))
	keywords = append(keywords, node.Tags...)
	keywords = append(keywords, concepts...)

	return Document{
		ID:       node.ID,
		Title:    node.Title,
		Keywords: normalizeKeywords(keywords),
		Summary:  node.Summary,
		Category: node.Category,
		Origin:   OriginNode,
	}
}

// DocumentsFromNodes lists every node in ns as a document. Unreadable
// entries are returned separately and do not stop the listing.
func DocumentsFromNodes(ctx context.Context, ns store.NodeStore, vocab *tagging.Vocabulary) ([]Document, []error) {
	nodes, errs := store.CollectNodes(ctx, ns, "")
	docs := make([]Document, 0, len(nodes))
	for i := range nodes {
		docs = append(docs, DocumentFromNode(&nodes[i], vocab))
	}
	return docs, errs
}
