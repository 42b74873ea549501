package models

import "fmt"

// Relation is the type of a directed edge between two nodes.
type Relation string

const (
	RelationRelatedTo  Relation = "relatedTo"  // Symmetric; stored once per unordered pair
	RelationSupersedes Relation = "supersedes" // Newer node replaces an older one
	RelationEnriches   Relation = "enriches"   // Enrichment links research to its source node

	// Reverse labels, only used on the incoming side of the adjacency index.
	RelationSupersededBy Relation = "supersededBy"
	RelationEnrichedBy   Relation = "enrichedBy"
)

// Relations lists the relation types the extractor produces.
var Relations = []Relation{RelationRelatedTo, RelationSupersedes, RelationEnriches}

var reverseRelations = map[Relation]Relation{
	RelationRelatedTo:    RelationRelatedTo,
	RelationSupersedes:   RelationSupersededBy,
	RelationSupersededBy: RelationSupersedes,
	RelationEnriches:     RelationEnrichedBy,
	RelationEnrichedBy:   RelationEnriches,
}

// ReverseRelation returns the label used for r when viewed from the target.
// Unknown relations map to themselves.
func ReverseRelation(r Relation) Relation {
	if rev, ok := reverseRelations[r]; ok {
		return rev
	}
	return r
}

// Symmetric reports whether the relation has no direction.
func (r Relation) Symmetric() bool {
	return r == RelationRelatedTo
}

// Edge is a directed, typed relation between two node ids.
type Edge struct {
	Source   string   `json:"source"`
	Target   string   `json:"target"`
	Relation Relation `json:"relation"`

	// Reason is a human-readable justification kept for audit only.
	Reason string `json:"reason,omitempty"`
}

// Key returns the identity of the edge. Symmetric relations use the
// unordered pair so (A,B) and (B,A) collide.
func (e Edge) Key() string {
	src, tgt := e.Source, e.Target
	if e.Relation.Symmetric() && tgt < src {
		src, tgt = tgt, src
	}
	return fmt.Sprintf("%s|%s|%s", src, e.Relation, tgt)
}

// String renders the edge as "SRC -[relation]-> TGT".
func (e Edge) String() string {
	return fmt.Sprintf("%s -[%s]-> %s", e.Source, e.Relation, e.Target)
}

// Valid reports whether r is a forward relation or one of the reverse labels.
func (r Relation) Valid() bool {
	_, ok := reverseRelations[r]
	return ok
}
