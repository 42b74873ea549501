// Package engine is the single writer of a corpus. It owns the node and
// graph stores, serializes every mutation behind the corpus writer lock and
// keeps the graph document, adjacency index and decay cache in step with
// the nodes.
package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nvandessel/corpus-graph/internal/config"
	"github.com/nvandessel/corpus-graph/internal/constants"
	"github.com/nvandessel/corpus-graph/internal/integrity"
	"github.com/nvandessel/corpus-graph/internal/logging"
	"github.com/nvandessel/corpus-graph/internal/ranking"
	"github.com/nvandessel/corpus-graph/internal/relations"
	"github.com/nvandessel/corpus-graph/internal/store"
)

// ErrExists is returned when adding a node whose id is already taken.
var ErrExists = errors.New("node already exists")

// Deps are the collaborators of an Engine. Nodes and Graphs are required;
// every other field has a default.
type Deps struct {
	Nodes  store.NodeStore
	Graphs store.GraphStore
	Layout store.Layout
	Config *config.CorpusConfig
	Logger *slog.Logger
	Events *logging.EventLog

	// Checks overrides the integrity registry. Nil uses integrity.DefaultRegistry().
	Checks *integrity.Registry

	// Now overrides the clock.
	Now func() time.Time
}

// Engine runs rebuilds, decay recalculation and ingestion over one corpus.
type Engine struct {
	nodes  store.NodeStore
	graphs store.GraphStore
	layout store.Layout
	cfg    *config.CorpusConfig
	logger *slog.Logger
	events *logging.EventLog
	checks *integrity.Registry
	now    func() time.Time

	lock   *store.WriterLock
	scorer *ranking.DecayScorer
	opts   relations.Options
	closed bool
}

// New creates an engine from explicit dependencies.
func New(d Deps) (*Engine, error) {
	if d.Nodes == nil || d.Graphs == nil {
		return nil, errors.New("engine requires a node store and a graph store")
	}
	if d.Config == nil {
		d.Config = config.Default()
	}
	if d.Logger == nil {
		d.Logger = logging.Discard()
	}
	if d.Checks == nil {
		d.Checks = integrity.DefaultRegistry()
	}
	if d.Now == nil {
		d.Now = time.Now
	}

	return &Engine{
		nodes:  d.Nodes,
		graphs: d.Graphs,
		layout: d.Layout,
		cfg:    d.Config,
		logger: d.Logger,
		events: d.Events,
		checks: d.Checks,
		now:    d.Now,
		lock:   store.NewWriterLock(d.Layout),
		scorer: ranking.NewDecayScorer(d.Config.DecayScorerConfig(), d.Now),
		opts:   d.Config.RelationOptions(),
	}, nil
}

// Open opens the stores configured for the corpus under projectRoot and
// returns an engine owning them. Close releases them.
func Open(projectRoot string, cfg *config.CorpusConfig, logger *slog.Logger) (*Engine, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	layout := cfg.Layout(projectRoot)

	nodes, err := store.OpenNodeStore(layout, cfg.Corpus.NodeBackend)
	if err != nil {
		return nil, fmt.Errorf("failed to open node store: %w", err)
	}
	graphs, err := store.OpenGraphStore(layout, cfg.Corpus.GraphBackend)
	if err != nil {
		nodes.Close()
		return nil, fmt.Errorf("failed to open graph store: %w", err)
	}

	return New(Deps{
		Nodes:  nodes,
		Graphs: graphs,
		Layout: layout,
		Config: cfg,
		Logger: logger,
		Events: logging.NewEventLog(layout.EventsFile(), cfg.Logging.Level),
	})
}

// Close releases the stores and the event log.
func (e *Engine) Close() error {
	if e.closed {
		return nil
	}
	e.closed = true
	e.events.Close()
	errN := e.nodes.Close()
	errG := e.graphs.Close()
	return errors.Join(errN, errG)
}

// Layout returns the corpus layout.
func (e *Engine) Layout() store.Layout { return e.layout }

// Config returns the engine configuration.
func (e *Engine) Config() *config.CorpusConfig { return e.cfg }

// Nodes returns the node store.
func (e *Engine) Nodes() store.NodeStore { return e.nodes }

// Graphs returns the graph store.
func (e *Engine) Graphs() store.GraphStore { return e.graphs }

// Logger returns the operational logger.
func (e *Engine) Logger() *slog.Logger { return e.logger }

// withLock runs fn while holding the corpus writer lock.
func (e *Engine) withLock(fn func() error) error {
	if err := e.lock.TryLock(); err != nil {
		return err
	}
	defer func() {
		if err := e.lock.Unlock(); err != nil {
			e.logger.Warn("failed to release writer lock", "error", err)
		}
	}()
	return fn()
}

func (e *Engine) generatedBy() string {
	return constants.AppName
}
