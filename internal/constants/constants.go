// Package constants provides named constants used throughout the corpus-graph codebase.
// This centralizes file names and operational defaults shared by several packages.
package constants

import "time"

// Identity of the tool, stamped into generated documents and backups.
const (
	// AppName is the binary name and the generated_by value of graph documents.
	AppName = "corpusgraph"

	// EnvPrefix prefixes every environment variable override.
	EnvPrefix = "CORPUSGRAPH_"
)

// Directory and file names.
const (
	// DefaultCorpusDir is the corpus directory name under a project root.
	DefaultCorpusDir = "corpus"

	// DefaultReferencesIndex is the external document catalog, relative to the project root.
	DefaultReferencesIndex = "references/_index.yml"

	// UserConfigDir is the per-user configuration directory under $HOME.
	UserConfigDir = ".corpusgraph"

	// UserConfigFile is the config file inside UserConfigDir.
	UserConfigFile = "config.yaml"

	// ProjectConfigFile is the per-project config file at the project root.
	ProjectConfigFile = ".corpusgraph.yaml"
)

// Backup rotation controls how many backup files are retained.
const (
	// MaxBackupRotation is the default maximum number of backup files to keep.
	MaxBackupRotation = 10
)

// Watcher and server defaults.
const (
	// DefaultWatchDebounce is how long the watcher waits for writes to settle
	// before rebuilding.
	DefaultWatchDebounce = 500 * time.Millisecond

	// DefaultServeAddr is the listen address of the read-only HTTP API.
	DefaultServeAddr = "127.0.0.1:7474"

	// ServerReadHeaderTimeout bounds slow clients on the HTTP API.
	ServerReadHeaderTimeout = 5 * time.Second

	// ServerShutdownTimeout is the grace period for in-flight requests on shutdown.
	ServerShutdownTimeout = 5 * time.Second
)
