// Package config provides unified configuration loading for corpusgraph.
// It supports loading from YAML files and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nvandessel/corpus-graph/internal/constants"
	"github.com/nvandessel/corpus-graph/internal/ranking"
	"github.com/nvandessel/corpus-graph/internal/relations"
	"github.com/nvandessel/corpus-graph/internal/similarity"
	"github.com/nvandessel/corpus-graph/internal/store"
)

// CorpusConfig contains all corpusgraph configuration settings.
type CorpusConfig struct {
	// Corpus locates the corpus and selects storage backends.
	Corpus CorpusSection `json:"corpus" yaml:"corpus"`

	// References locates the external document catalog.
	References ReferencesConfig `json:"references" yaml:"references"`

	// Relations tunes relation extraction.
	Relations RelationsConfig `json:"relations" yaml:"relations"`

	// Decay tunes decay scoring.
	Decay DecayConfig `json:"decay" yaml:"decay"`

	// Retrieval sets the defaults of related-document queries.
	Retrieval RetrievalConfig `json:"retrieval" yaml:"retrieval"`

	// Index controls how rebuilt graphs are accepted.
	Index IndexConfig `json:"index" yaml:"index"`

	// Logging contains settings for operational and event logging.
	Logging LoggingConfig `json:"logging" yaml:"logging"`

	// Server configures the read-only HTTP API.
	Server ServerConfig `json:"server" yaml:"server"`

	// Watch configures the file watcher.
	Watch WatchConfig `json:"watch" yaml:"watch"`
}

// CorpusSection locates the corpus.
type CorpusSection struct {
	// Dir is the corpus directory, relative to the project root or absolute.
	Dir string `json:"dir" yaml:"dir"`

	// NodeBackend selects node storage: "file" (default), "sqlite" or "memory".
	NodeBackend string `json:"node_backend" yaml:"node_backend"`

	// GraphBackend selects graph document storage: "file" (default), "badger" or "memory".
	GraphBackend string `json:"graph_backend" yaml:"graph_backend"`
}

// ReferencesConfig locates the reference catalog.
type ReferencesConfig struct {
	// Index is the catalog path, relative to the project root or absolute.
	Index string `json:"index" yaml:"index"`
}

// RelationsConfig tunes relation extraction.
type RelationsConfig struct {
	// SupersedeConfidence is the confidence a newer node must exceed to
	// supersede an older one in the same category.
	SupersedeConfidence float64 `json:"supersede_confidence" yaml:"supersede_confidence"`
}

// DecayConfig tunes decay scoring.
type DecayConfig struct {
	HalfLife       time.Duration `json:"half_life" yaml:"half_life"`
	RecalcInterval time.Duration `json:"recalc_interval" yaml:"recalc_interval"`
	FreshThreshold float64       `json:"fresh_threshold" yaml:"fresh_threshold"`
	StaleThreshold float64       `json:"stale_threshold" yaml:"stale_threshold"`
}

// RetrievalConfig sets the defaults of related-document queries.
type RetrievalConfig struct {
	MinSimilarity float64 `json:"min_similarity" yaml:"min_similarity"`
	TopK          int     `json:"top_k" yaml:"top_k"`
	MaxKeywords   int     `json:"max_keywords" yaml:"max_keywords"`

	// IncludeNodes adds corpus nodes to the searched documents alongside
	// the reference catalog.
	IncludeNodes bool `json:"include_nodes" yaml:"include_nodes"`
}

// IndexConfig controls how rebuilt graphs are accepted.
type IndexConfig struct {
	// RejectInvalid keeps the previous graph when a rebuild fails validation.
	RejectInvalid bool `json:"reject_invalid" yaml:"reject_invalid"`

	// BackupKeep is the number of backups retained by rotation.
	BackupKeep int `json:"backup_keep" yaml:"backup_keep"`
}

// LoggingConfig configures logging behavior.
type LoggingConfig struct {
	// Level sets the log verbosity: "info" (default), "debug", or "trace".
	// "debug" enables the event log at corpus/events.jsonl.
	Level string `json:"level" yaml:"level"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr string `json:"addr" yaml:"addr"`
}

// WatchConfig configures the file watcher.
type WatchConfig struct {
	Debounce time.Duration `json:"debounce" yaml:"debounce"`
}

// Default returns a CorpusConfig with sensible defaults.
func Default() *CorpusConfig {
	decay := ranking.DefaultDecayConfig()
	return &CorpusConfig{
		Corpus: CorpusSection{
			Dir:          constants.DefaultCorpusDir,
			NodeBackend:  store.BackendFile,
			GraphBackend: store.BackendFile,
		},
		References: ReferencesConfig{
			Index: constants.DefaultReferencesIndex,
		},
		Relations: RelationsConfig{
			SupersedeConfidence: relations.DefaultSupersedeConfidence,
		},
		Decay: DecayConfig{
			HalfLife:       decay.HalfLife,
			RecalcInterval: decay.RecalcInterval,
			FreshThreshold: decay.FreshThreshold,
			StaleThreshold: decay.StaleThreshold,
		},
		Retrieval: RetrievalConfig{
			MinSimilarity: similarity.DefaultMinSimilarity,
			TopK:          similarity.DefaultTopK,
			MaxKeywords:   similarity.DefaultMaxKeywords,
			IncludeNodes:  false,
		},
		Index: IndexConfig{
			RejectInvalid: true,
			BackupKeep:    constants.MaxBackupRotation,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Server: ServerConfig{
			Addr: constants.DefaultServeAddr,
		},
		Watch: WatchConfig{
			Debounce: constants.DefaultWatchDebounce,
		},
	}
}

// Load loads configuration from the default locations and environment variables.
// Order: defaults -> ~/.corpusgraph/config.yaml -> <projectRoot>/.corpusgraph.yaml
// -> environment variables. The result is validated.
func Load(projectRoot string) (*CorpusConfig, error) {
	config := Default()

	if homeDir, err := os.UserHomeDir(); err == nil {
		userPath := filepath.Join(homeDir, constants.UserConfigDir, constants.UserConfigFile)
		if err := mergeIfExists(config, userPath); err != nil {
			return nil, err
		}
	}

	if projectRoot != "" {
		if err := mergeIfExists(config, filepath.Join(projectRoot, constants.ProjectConfigFile)); err != nil {
			return nil, err
		}
	}

	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return config, nil
}

// LoadFromFile loads configuration from a specific YAML file on top of the defaults.
func LoadFromFile(path string) (*CorpusConfig, error) {
	config := Default()
	if err := mergeFile(config, path); err != nil {
		return nil, err
	}
	return config, nil
}

func mergeIfExists(config *CorpusConfig, path string) error {
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	if err := mergeFile(config, path); err != nil {
		return fmt.Errorf("loading config file: %w", err)
	}
	return nil
}

// mergeFile overlays the settings present in path onto config.
func mergeFile(config *CorpusConfig, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, config); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}

	config.Corpus.Dir = expandEnvVars(config.Corpus.Dir)
	config.References.Index = expandEnvVars(config.References.Index)
	return nil
}

// Validate checks that the configuration is valid.
func (c *CorpusConfig) Validate() error {
	validNodeBackends := map[string]bool{store.BackendFile: true, store.BackendSQLite: true, store.BackendMemory: true}
	if !validNodeBackends[c.Corpus.NodeBackend] {
		return fmt.Errorf("invalid node_backend: %s (valid: file, sqlite, memory)", c.Corpus.NodeBackend)
	}
	validGraphBackends := map[string]bool{store.BackendFile: true, store.BackendBadger: true, store.BackendMemory: true}
	if !validGraphBackends[c.Corpus.GraphBackend] {
		return fmt.Errorf("invalid graph_backend: %s (valid: file, badger, memory)", c.Corpus.GraphBackend)
	}

	for name, v := range map[string]float64{
		"supersede_confidence": c.Relations.SupersedeConfidence,
		"fresh_threshold":      c.Decay.FreshThreshold,
		"stale_threshold":      c.Decay.StaleThreshold,
		"min_similarity":       c.Retrieval.MinSimilarity,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("%s must be between 0 and 1, got %f", name, v)
		}
	}
	if c.Decay.StaleThreshold > c.Decay.FreshThreshold {
		return fmt.Errorf("stale_threshold (%f) must not exceed fresh_threshold (%f)", c.Decay.StaleThreshold, c.Decay.FreshThreshold)
	}
	if c.Decay.HalfLife <= 0 {
		return fmt.Errorf("half_life must be positive, got %v", c.Decay.HalfLife)
	}
	if c.Decay.RecalcInterval < 0 {
		return fmt.Errorf("recalc_interval must be non-negative, got %v", c.Decay.RecalcInterval)
	}

	if c.Retrieval.TopK < 0 {
		return fmt.Errorf("top_k must be non-negative, got %d", c.Retrieval.TopK)
	}
	if c.Retrieval.MaxKeywords < 0 {
		return fmt.Errorf("max_keywords must be non-negative, got %d", c.Retrieval.MaxKeywords)
	}
	if c.Index.BackupKeep < 0 {
		return fmt.Errorf("backup_keep must be non-negative, got %d", c.Index.BackupKeep)
	}
	if c.Watch.Debounce < 0 {
		return fmt.Errorf("debounce must be non-negative, got %v", c.Watch.Debounce)
	}

	validLevels := map[string]bool{"info": true, "debug": true, "trace": true}
	if c.Logging.Level != "" && !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (valid: info, debug, trace, or empty for default)", c.Logging.Level)
	}

	return nil
}

// Layout resolves the corpus paths under projectRoot.
func (c *CorpusConfig) Layout(projectRoot string) store.Layout {
	return store.NewLayout(projectRoot, c.Corpus.Dir, c.References.Index)
}

// DecayScorerConfig converts the decay section for the scorer.
func (c *CorpusConfig) DecayScorerConfig() ranking.DecayConfig {
	return ranking.DecayConfig{
		HalfLife:       c.Decay.HalfLife,
		RecalcInterval: c.Decay.RecalcInterval,
		FreshThreshold: c.Decay.FreshThreshold,
		StaleThreshold: c.Decay.StaleThreshold,
	}
}

// RelationOptions converts the relations section for the extractor.
func (c *CorpusConfig) RelationOptions() relations.Options {
	opts := relations.DefaultOptions()
	opts.SupersedeConfidence = c.Relations.SupersedeConfidence
	return opts
}

// applyEnvOverrides applies CORPUSGRAPH_* environment variable overrides to the config.
func applyEnvOverrides(config *CorpusConfig) {
	env := func(name string) string {
		return os.Getenv(constants.EnvPrefix + name)
	}

	if v := env("CORPUS_DIR"); v != "" {
		config.Corpus.Dir = v
	}
	if v := env("NODE_BACKEND"); v != "" {
		config.Corpus.NodeBackend = v
	}
	if v := env("GRAPH_BACKEND"); v != "" {
		config.Corpus.GraphBackend = v
	}
	if v := env("REFERENCES_INDEX"); v != "" {
		config.References.Index = v
	}

	if v := env("SUPERSEDE_CONFIDENCE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			config.Relations.SupersedeConfidence = f
		}
	}

	if v := env("DECAY_HALF_LIFE"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			config.Decay.HalfLife = d
		}
	}
	if v := env("DECAY_RECALC_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			config.Decay.RecalcInterval = d
		}
	}

	if v := env("MIN_SIMILARITY"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			config.Retrieval.MinSimilarity = f
		}
	}
	if v := env("TOP_K"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Retrieval.TopK = n
		}
	}
	if v := env("INCLUDE_NODES"); v != "" {
		config.Retrieval.IncludeNodes = v == "true" || v == "1"
	}

	if v := env("REJECT_INVALID"); v != "" {
		config.Index.RejectInvalid = v == "true" || v == "1"
	}

	if v := env("LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}
	if v := env("SERVE_ADDR"); v != "" {
		config.Server.Addr = v
	}
}

// expandEnvVars expands ${VAR} patterns in a string with environment variable values.
func expandEnvVars(s string) string {
	if !strings.Contains(s, "${") {
		return s
	}
	return os.Expand(s, os.Getenv)
}
