// Package ranking scores corpus nodes: time-based decay of their relevance
// and graph centrality.
package ranking

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/nvandessel/corpus-graph/internal/models"
	"github.com/nvandessel/corpus-graph/internal/store"
)

// DecayConfig configures the decay scorer.
type DecayConfig struct {
	// HalfLife is the time after which a score is halved.
	HalfLife time.Duration

	// RecalcInterval gates batch recalculation.
	RecalcInterval time.Duration

	// Scores at or above FreshThreshold are fresh; below StaleThreshold are stale.
	FreshThreshold float64
	StaleThreshold float64
}

// DefaultDecayConfig returns a 90 day half-life recalculated at most daily.
func DefaultDecayConfig() DecayConfig {
	return DecayConfig{
		HalfLife:       90 * 24 * time.Hour,
		RecalcInterval: 24 * time.Hour,
		FreshThreshold: 0.7,
		StaleThreshold: 0.3,
	}
}

// ExponentialDecay returns e^(-ln2 * elapsed / halfLife) for the time elapsed
// since ref. It is 1.0 at or before ref and approaches 0 as time goes on.
func ExponentialDecay(ref, now time.Time, halfLife time.Duration) float64 {
	if ref.IsZero() {
		return 0.0
	}
	elapsed := now.Sub(ref)
	if elapsed <= 0 || halfLife <= 0 {
		return 1.0
	}

	// Using natural decay: score = e^(-lambda * t)
	// where lambda = ln(2) / halfLife
	lambda := math.Ln2 / float64(halfLife)
	return math.Exp(-lambda * float64(elapsed))
}

// DecayScorer computes decay metadata for nodes.
type DecayScorer struct {
	config DecayConfig
	now    func() time.Time
}

// NewDecayScorer creates a scorer. A nil clock uses time.Now. Zero config
// values fall back to the defaults.
func NewDecayScorer(config DecayConfig, now func() time.Time) *DecayScorer {
	def := DefaultDecayConfig()
	if config.HalfLife <= 0 {
		config.HalfLife = def.HalfLife
	}
	if config.RecalcInterval <= 0 {
		config.RecalcInterval = def.RecalcInterval
	}
	if config.FreshThreshold <= 0 {
		config.FreshThreshold = def.FreshThreshold
	}
	if config.StaleThreshold <= 0 {
		config.StaleThreshold = def.StaleThreshold
	}
	if now == nil {
		now = time.Now
	}
	return &DecayScorer{config: config, now: now}
}

// Config returns the effective configuration.
func (s *DecayScorer) Config() DecayConfig {
	return s.config
}

// ShouldRecalculate reports whether a batch recalculation is due: never
// calculated, or last calculated more than RecalcInterval ago.
func (s *DecayScorer) ShouldRecalculate(lastUpdated time.Time) bool {
	if lastUpdated.IsZero() {
		return true
	}
	return s.now().Sub(lastUpdated) > s.config.RecalcInterval
}

// Status maps a score to its freshness band.
func (s *DecayScorer) Status(score float64) models.DecayStatus {
	switch {
	case score >= s.config.FreshThreshold:
		return models.DecayFresh
	case score >= s.config.StaleThreshold:
		return models.DecayAging
	default:
		return models.DecayStale
	}
}

// Score computes the node's decay metadata at now. Scores only go down: the
// result is capped at the previously stored score unless the node was
// refreshed after it was last scored.
func (s *DecayScorer) Score(node *models.Node, now time.Time) models.DecayMetadata {
	score := ExponentialDecay(node.ReferenceTime(), now, s.config.HalfLife)

	prev := node.Decay
	if !prev.LastScoredAt.IsZero() {
		refreshed := prev.RefreshedAt != nil && prev.RefreshedAt.After(prev.LastScoredAt)
		if !refreshed && score > prev.DecayScore {
			score = prev.DecayScore
		}
	}

	return models.DecayMetadata{
		DecayScore:   score,
		DecayStatus:  s.Status(score),
		LastScoredAt: now,
		RefreshedAt:  prev.RefreshedAt,
	}
}

// Refresh records an explicit refresh event, resetting the node to fresh.
func (s *DecayScorer) Refresh(node *models.Node, now time.Time) {
	t := now
	node.Decay = models.DecayMetadata{
		DecayScore:   1.0,
		DecayStatus:  models.DecayFresh,
		LastScoredAt: now,
		RefreshedAt:  &t,
	}
}

// Initial returns the decay metadata of a newly created node.
func (s *DecayScorer) Initial(now time.Time) models.DecayMetadata {
	return models.DecayMetadata{
		DecayScore:   1.0,
		DecayStatus:  models.DecayFresh,
		LastScoredAt: now,
	}
}

// DecayReport summarizes a batch recalculation.
type DecayReport struct {
	Scored   int            `json:"scored"`
	Skipped  int            `json:"skipped"`
	Warnings []string       `json:"warnings,omitempty"`
	ByStatus map[string]int `json:"by_status"`
	Ran      bool           `json:"ran"`
}

// Recalculate rescores every node in ns and writes the new metadata back.
// It never fails: unreadable nodes and failed writes are counted as skipped
// with a warning. The returned index holds the scores that were written.
func (s *DecayScorer) Recalculate(ctx context.Context, ns store.NodeStore) (DecayReport, *models.DecayIndex) {
	now := s.now()
	report := DecayReport{Ran: true, ByStatus: make(map[string]int)}
	idx := &models.DecayIndex{
		Version:     models.GraphSchemaVersion,
		LastUpdated: now,
		Scores:      make(map[string]models.DecayMetadata),
	}

	// Read everything first so writes never interleave with a listing.
	var nodes []models.Node
	for node, err := range ns.List(ctx, "") {
		if err != nil {
			if ctx.Err() != nil {
				report.Warnings = append(report.Warnings, fmt.Sprintf("recalculation interrupted: %v", ctx.Err()))
				return report, idx
			}
			report.Skipped++
			report.Warnings = append(report.Warnings, err.Error())
			continue
		}
		nodes = append(nodes, node)
	}

	for i := range nodes {
		node := &nodes[i]
		node.Decay = s.Score(node, now)
		if err := ns.Put(ctx, *node); err != nil {
			report.Skipped++
			report.Warnings = append(report.Warnings, fmt.Sprintf("%s: failed to write decay metadata: %v", node.ID, err))
			continue
		}
		report.Scored++
		report.ByStatus[string(node.Decay.DecayStatus)]++
		idx.Scores[node.ID] = node.Decay
	}

	return report, idx
}
