package models

import (
	"fmt"
	"time"
)

// EnrichmentMetadata is the record produced by the enrichment workflow when
// external research is attached to a corpus node.
type EnrichmentMetadata struct {
	EnrichmentID string    `json:"enrichment_id" yaml:"enrichment_id" validate:"required"`
	CorpusNode   string    `json:"corpus_node" yaml:"corpus_node" validate:"required"`
	EnrichedAt   time.Time `json:"enriched_at" yaml:"enriched_at"`
	Version      string    `json:"version,omitempty" yaml:"version,omitempty"`
	Similarity   float64   `json:"similarity,omitempty" yaml:"similarity,omitempty" validate:"gte=0,lte=1"`
}

// ToNode builds the Enrichment node for this metadata. A zero EnrichedAt
// falls back to now.
func (m EnrichmentMetadata) ToNode(now time.Time) Node {
	created := m.EnrichedAt
	if created.IsZero() {
		created = now
	}
	return Node{
		ID:         m.EnrichmentID,
		Type:       NodeTypeEnrichment,
		CreatedAt:  created,
		Title:      fmt.Sprintf("Enrichment of %s", m.CorpusNode),
		Status:     "active",
		Confidence: m.Similarity,
		Source:     m.CorpusNode,
		Version:    m.Version,
		Similarity: m.Similarity,
	}
}

// Ref returns the history entry recorded on the enriched node.
func (m EnrichmentMetadata) Ref(now time.Time) EnrichmentRef {
	at := m.EnrichedAt
	if at.IsZero() {
		at = now
	}
	return EnrichmentRef{
		EnrichmentID: m.EnrichmentID,
		EnrichedAt:   at,
		Version:      m.Version,
		Similarity:   m.Similarity,
	}
}
