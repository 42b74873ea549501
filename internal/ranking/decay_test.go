package ranking

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nvandessel/corpus-graph/internal/models"
	"github.com/nvandessel/corpus-graph/internal/store"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestExponentialDecay(t *testing.T) {
	halfLife := 90 * 24 * time.Hour

	tests := []struct {
		name string
		ref  time.Time
		now  time.Time
		want float64
	}{
		{"at reference", epoch, epoch, 1.0},
		{"before reference", epoch, epoch.Add(-time.Hour), 1.0},
		{"one half-life", epoch, epoch.Add(halfLife), 0.5},
		{"two half-lives", epoch, epoch.Add(2 * halfLife), 0.25},
		{"zero reference", time.Time{}, epoch, 0.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExponentialDecay(tt.ref, tt.now, halfLife)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("ExponentialDecay() = %f, want %f", got, tt.want)
			}
		})
	}
}

func TestShouldRecalculate(t *testing.T) {
	now := epoch.Add(100 * time.Hour)
	s := NewDecayScorer(DefaultDecayConfig(), fixedClock(now))

	tests := []struct {
		name string
		last time.Time
		want bool
	}{
		{"never calculated", time.Time{}, true},
		{"just now", now, false},
		{"23 hours ago", now.Add(-23 * time.Hour), false},
		{"exactly 24 hours ago", now.Add(-24 * time.Hour), false},
		{"25 hours ago", now.Add(-25 * time.Hour), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.ShouldRecalculate(tt.last); got != tt.want {
				t.Errorf("ShouldRecalculate() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestStatus(t *testing.T) {
	s := NewDecayScorer(DefaultDecayConfig(), nil)

	tests := []struct {
		score float64
		want  models.DecayStatus
	}{
		{1.0, models.DecayFresh},
		{0.7, models.DecayFresh},
		{0.69, models.DecayAging},
		{0.3, models.DecayAging},
		{0.29, models.DecayStale},
		{0, models.DecayStale},
	}
	for _, tt := range tests {
		if got := s.Status(tt.score); got != tt.want {
			t.Errorf("Status(%v) = %s, want %s", tt.score, got, tt.want)
		}
	}
}

func TestScore_NeverIncreasesWithoutRefresh(t *testing.T) {
	s := NewDecayScorer(DefaultDecayConfig(), nil)
	node := models.Node{ID: "N", Type: models.NodeTypeDecision, CreatedAt: epoch}

	prev := 1.0
	for days := 0; days <= 400; days += 7 {
		now := epoch.Add(time.Duration(days) * 24 * time.Hour)
		node.Decay = s.Score(&node, now)
		if node.Decay.DecayScore > prev+1e-12 {
			t.Fatalf("day %d: score rose from %f to %f", days, prev, node.Decay.DecayScore)
		}
		prev = node.Decay.DecayScore
	}
	if node.Decay.DecayStatus != models.DecayStale {
		t.Errorf("after 400 days status = %s, want stale", node.Decay.DecayStatus)
	}
}

func TestScore_CappedByStoredScore(t *testing.T) {
	s := NewDecayScorer(DefaultDecayConfig(), nil)
	node := models.Node{
		ID:        "N",
		Type:      models.NodeTypeDecision,
		CreatedAt: epoch,
		Decay:     models.DecayMetadata{DecayScore: 0.2, LastScoredAt: epoch.Add(time.Hour)},
	}

	got := s.Score(&node, epoch.Add(2*time.Hour))
	if got.DecayScore != 0.2 {
		t.Errorf("DecayScore = %f, want capped at stored 0.2", got.DecayScore)
	}
}

func TestRefresh_ResetsScore(t *testing.T) {
	s := NewDecayScorer(DefaultDecayConfig(), nil)
	node := models.Node{ID: "N", Type: models.NodeTypeDecision, CreatedAt: epoch}

	late := epoch.Add(365 * 24 * time.Hour)
	node.Decay = s.Score(&node, late)
	if node.Decay.DecayStatus != models.DecayStale {
		t.Fatalf("status = %s, want stale before refresh", node.Decay.DecayStatus)
	}

	s.Refresh(&node, late)
	if node.Decay.DecayScore != 1.0 || node.Decay.DecayStatus != models.DecayFresh {
		t.Errorf("after Refresh decay = %+v, want 1.0 fresh", node.Decay)
	}

	// Decay now runs from the refresh time.
	later := late.Add(90 * 24 * time.Hour)
	got := s.Score(&node, later)
	if math.Abs(got.DecayScore-0.5) > 1e-9 {
		t.Errorf("one half-life after refresh score = %f, want 0.5", got.DecayScore)
	}
	if got.RefreshedAt == nil || !got.RefreshedAt.Equal(late) {
		t.Errorf("RefreshedAt = %v, want %v", got.RefreshedAt, late)
	}
}

func TestRecalculate(t *testing.T) {
	ctx := context.Background()
	ns := store.NewInMemoryNodeStore()
	now := epoch.Add(200 * 24 * time.Hour)
	s := NewDecayScorer(DefaultDecayConfig(), fixedClock(now))

	nodes := []models.Node{
		{ID: "old", Type: models.NodeTypeDecision, CreatedAt: epoch, Decay: s.Initial(epoch)},
		{ID: "mid", Type: models.NodeTypeLearning, CreatedAt: now.Add(-60 * 24 * time.Hour), Decay: s.Initial(now.Add(-60 * 24 * time.Hour))},
		{ID: "new", Type: models.NodeTypeLearning, CreatedAt: now.Add(-time.Hour), Decay: s.Initial(now.Add(-time.Hour))},
	}
	for _, n := range nodes {
		if err := ns.Put(ctx, n); err != nil {
			t.Fatalf("Put(%s) error = %v", n.ID, err)
		}
	}

	report, idx := s.Recalculate(ctx, ns)

	if report.Scored != 3 || report.Skipped != 0 {
		t.Errorf("report = %+v, want 3 scored 0 skipped", report)
	}
	if !idx.LastUpdated.Equal(now) {
		t.Errorf("LastUpdated = %v, want %v", idx.LastUpdated, now)
	}

	want := map[string]models.DecayStatus{
		"old": models.DecayStale,
		"mid": models.DecayAging,
		"new": models.DecayFresh,
	}
	for id, status := range want {
		got, err := ns.Get(ctx, id)
		if err != nil {
			t.Fatalf("Get(%s) error = %v", id, err)
		}
		if got.Decay.DecayStatus != status {
			t.Errorf("%s status = %s, want %s", id, got.Decay.DecayStatus, status)
		}
		if idx.Scores[id].DecayStatus != status {
			t.Errorf("index %s status = %s, want %s", id, idx.Scores[id].DecayStatus, status)
		}
	}
}

func TestRecalculate_SkipsInvalidNodes(t *testing.T) {
	ctx := context.Background()
	layout := store.NewLayout(t.TempDir(), "", "")
	ns, err := store.NewFileNodeStore(layout)
	if err != nil {
		t.Fatalf("NewFileNodeStore() error = %v", err)
	}
	s := NewDecayScorer(DefaultDecayConfig(), fixedClock(epoch.Add(24*time.Hour)))

	if err := ns.Put(ctx, models.Node{ID: "ok", Type: models.NodeTypeDecision, CreatedAt: epoch}); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	writeFile(t, layout.CollectionDir(models.NodeTypeDecision), "bad.yml", "id: bad\n")

	report, idx := s.Recalculate(ctx, ns)

	if report.Scored != 1 || report.Skipped != 1 || len(report.Warnings) != 1 {
		t.Errorf("report = %+v, want 1 scored 1 skipped 1 warning", report)
	}
	if _, ok := idx.Scores["ok"]; !ok {
		t.Error("index missing score for ok")
	}
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}
