// Package models defines the corpus records and the derived graph documents
// built from them.
package models

import (
	"cmp"
	"slices"
	"strings"
	"time"
)

// NodeType categorizes what kind of corpus record a node is.
type NodeType string

const (
	NodeTypeDecision   NodeType = "Decision"   // Architecture or design decision (ADR)
	NodeTypeLearning   NodeType = "Learning"   // Lesson captured from past work
	NodeTypeEnrichment NodeType = "Enrichment" // External research linked to a source node
)

// NodeTypes lists the known node types in collection order.
var NodeTypes = []NodeType{NodeTypeDecision, NodeTypeLearning, NodeTypeEnrichment}

// Collection returns the logical collection (directory) a node type is stored in.
// Unknown types return "".
func (t NodeType) Collection() string {
	switch t {
	case NodeTypeDecision:
		return "decisions"
	case NodeTypeLearning:
		return "learnings"
	case NodeTypeEnrichment:
		return "enrichments"
	default:
		return ""
	}
}

// CompareListing orders nodes the way node stores list them: collection
// order, then id. Unknown types sort last.
func CompareListing(a, b Node) int {
	if c := cmp.Compare(a.Type.rank(), b.Type.rank()); c != 0 {
		return c
	}
	return strings.Compare(a.ID, b.ID)
}

func (t NodeType) rank() int {
	if i := slices.Index(NodeTypes, t); i >= 0 {
		return i
	}
	return len(NodeTypes)
}

// Valid reports whether t is a known node type.
func (t NodeType) Valid() bool {
	return t.Collection() != ""
}

// ParseNodeType maps a user-facing name ("decision", "Learning", "enrichments")
// to a NodeType. The second return is false for unknown names.
func ParseNodeType(s string) (NodeType, bool) {
	switch s {
	case "decision", "Decision", "decisions":
		return NodeTypeDecision, true
	case "learning", "Learning", "learnings":
		return NodeTypeLearning, true
	case "enrichment", "Enrichment", "enrichments":
		return NodeTypeEnrichment, true
	default:
		return "", false
	}
}

// DecayStatus partitions decay scores into freshness bands.
type DecayStatus string

const (
	DecayFresh DecayStatus = "fresh"
	DecayAging DecayStatus = "aging"
	DecayStale DecayStatus = "stale"
)

// DecayMetadata is the staleness state attached to every node.
type DecayMetadata struct {
	// DecayScore is in [0,1]; 1.0 means freshly created or refreshed.
	DecayScore  float64     `json:"decay_score" yaml:"decay_score" validate:"gte=0,lte=1"`
	DecayStatus DecayStatus `json:"decay_status" yaml:"decay_status" validate:"omitempty,oneof=fresh aging stale"`

	LastScoredAt time.Time `json:"last_scored_at" yaml:"last_scored_at"`

	// RefreshedAt records the last explicit refresh event. Decay is measured
	// from the later of CreatedAt and RefreshedAt.
	RefreshedAt *time.Time `json:"refreshed_at,omitempty" yaml:"refreshed_at,omitempty"`
}

// EnrichmentRef is one entry in a node's append-only enrichment history.
type EnrichmentRef struct {
	EnrichmentID string    `json:"enrichment_id" yaml:"enrichment_id"`
	EnrichedAt   time.Time `json:"enriched_at" yaml:"enriched_at"`
	Version      string    `json:"version,omitempty" yaml:"version,omitempty"`
	Similarity   float64   `json:"similarity,omitempty" yaml:"similarity,omitempty"`
}

// Node is a single corpus record: a decision, a learning, or an enrichment.
// Identity fields (ID, Type, CreatedAt) are immutable once written.
type Node struct {
	// Identity
	ID        string    `json:"id" yaml:"id" validate:"required"`
	Type      NodeType  `json:"type" yaml:"type" validate:"required,oneof=Decision Learning Enrichment"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at" validate:"required"`

	// Content
	Title      string   `json:"title" yaml:"title"`
	Status     string   `json:"status,omitempty" yaml:"status,omitempty"`
	Category   string   `json:"category,omitempty" yaml:"category,omitempty"`
	Confidence float64  `json:"confidence" yaml:"confidence" validate:"gte=0,lte=1"`
	Tags       []string `json:"tags,omitempty" yaml:"tags,omitempty"`
	Summary    string   `json:"summary,omitempty" yaml:"summary,omitempty"`

	// Concepts is derived from category and title; it is recomputed on every
	// rebuild and only persisted for readers of the raw files.
	Concepts []string `json:"concepts,omitempty" yaml:"concepts,omitempty"`

	// Enrichment-only fields
	Source     string  `json:"source,omitempty" yaml:"source,omitempty"`
	Version    string  `json:"version,omitempty" yaml:"version,omitempty"`
	Similarity float64 `json:"similarity,omitempty" yaml:"similarity,omitempty"`

	// Mutable state
	Decay       DecayMetadata   `json:"decay_metadata" yaml:"decay_metadata"`
	Enrichments []EnrichmentRef `json:"enrichments,omitempty" yaml:"enrichments,omitempty"`
}

// ReferenceTime is the instant decay is measured from.
func (n *Node) ReferenceTime() time.Time {
	if n.Decay.RefreshedAt != nil && n.Decay.RefreshedAt.After(n.CreatedAt) {
		return *n.Decay.RefreshedAt
	}
	return n.CreatedAt
}

// HasEnrichment reports whether id is already recorded in the node's history.
func (n *Node) HasEnrichment(id string) bool {
	for _, e := range n.Enrichments {
		if e.EnrichmentID == id {
			return true
		}
	}
	return false
}

// Summarize returns the compact form of the node stored in the graph document.
func (n *Node) Summarize() NodeSummary {
	concepts := make([]string, len(n.Concepts))
	copy(concepts, n.Concepts)
	return NodeSummary{
		ID:         n.ID,
		Type:       n.Type,
		Title:      n.Title,
		Status:     n.Status,
		Category:   n.Category,
		Confidence: n.Confidence,
		Concepts:   concepts,
		Source:     n.Source,
		CreatedAt:  n.CreatedAt,
		DecayScore: n.Decay.DecayScore,
	}
}

// Clone returns a deep copy of the node.
func (n Node) Clone() Node {
	c := n
	if n.Tags != nil {
		c.Tags = append([]string(nil), n.Tags...)
	}
	if n.Concepts != nil {
		c.Concepts = append([]string(nil), n.Concepts...)
	}
	if n.Enrichments != nil {
		c.Enrichments = append([]EnrichmentRef(nil), n.Enrichments...)
	}
	if n.Decay.RefreshedAt != nil {
		t := *n.Decay.RefreshedAt
		c.Decay.RefreshedAt = &t
	}
	return c
}
