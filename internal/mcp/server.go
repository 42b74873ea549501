// Package mcp provides an MCP (Model Context Protocol) server exposing a
// corpus to coding agents.
package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/nvandessel/corpus-graph/internal/config"
	"github.com/nvandessel/corpus-graph/internal/engine"
	"github.com/nvandessel/corpus-graph/internal/logging"
	"github.com/nvandessel/corpus-graph/internal/ratelimit"
)

// Server wraps the MCP SDK server around a corpus engine.
type Server struct {
	server       *sdk.Server
	engine       *engine.Engine
	ownsEngine   bool
	root         string
	logger       *slog.Logger
	auditLogger  *AuditLogger
	toolLimiters ratelimit.ToolLimiters
	closeOnce    sync.Once
}

// Config holds server configuration.
type Config struct {
	Name    string // Server name (e.g., "corpusgraph")
	Version string // Server version
	Root    string // Project root directory

	// Engine serves the tools. When nil, one is opened from Root and closed
	// with the server.
	Engine *engine.Engine
	Logger *slog.Logger
}

// NewServer creates a new MCP server with the corpus tools and resources.
func NewServer(cfg *Config) (*Server, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	eng, owns := cfg.Engine, false
	if eng == nil {
		corpusCfg, err := config.Load(cfg.Root)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		eng, err = engine.Open(cfg.Root, corpusCfg, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open corpus: %w", err)
		}
		owns = true
	}

	mcpServer := sdk.NewServer(&sdk.Implementation{
		Name:    cfg.Name,
		Version: cfg.Version,
	}, &sdk.ServerOptions{
		InitializedHandler: func(ctx context.Context, req *sdk.InitializedRequest) {
			logger.Debug("mcp client initialized")
		},
	})

	s := &Server{
		server:       mcpServer,
		engine:       eng,
		ownsEngine:   owns,
		root:         cfg.Root,
		logger:       logger,
		auditLogger:  NewAuditLogger(eng.Layout().AuditFile()),
		toolLimiters: ratelimit.NewToolLimiters(),
	}

	s.registerTools()
	s.registerResources()

	return s, nil
}

// Run serves over stdio until the client disconnects or ctx is cancelled,
// then closes the server.
func (s *Server) Run(ctx context.Context) error {
	err := s.server.Run(ctx, &sdk.StdioTransport{})
	if cerr := s.Close(); err == nil {
		err = cerr
	}
	return err
}

// Close releases the audit log and, when the server opened it, the engine.
// It is safe to call more than once.
func (s *Server) Close() error {
	var err error
	s.closeOnce.Do(func() {
		if aerr := s.auditLogger.Close(); aerr != nil {
			err = aerr
		}
		if s.ownsEngine {
			if eerr := s.engine.Close(); eerr != nil && err == nil {
				err = eerr
			}
		}
	})
	return err
}
