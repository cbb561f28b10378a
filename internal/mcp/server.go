// Copyright 2024 OnChain Media Corporation
// SPDX-License-Identifier: Apache-2.0

// Package mcp assembles and runs the Model Context Protocol server that
// exposes the Supabase tools and resources over stdio or HTTP.
package mcp

import (
	"context"
	"errors"
	"fmt"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/onchain-media/supabase-mcp-server/internal/audit"
	"github.com/onchain-media/supabase-mcp-server/internal/resources"
	"github.com/onchain-media/supabase-mcp-server/internal/tools"
	"github.com/onchain-media/supabase-mcp-server/pkg/config"
)

const (
	ServerName    = "supabase-mcp-server"
	ServerVersion = "0.1.0"
)

// Server wires the tool and resource registries to a protocol transport.
type Server struct {
	config      *config.Config
	tools       *tools.Registry
	resources   *resources.Registry
	auditLogger *audit.Logger
	rateLimiter *audit.RateLimiter
	logger      *zap.Logger
}

// NewServer creates a new MCP server instance. The connector is invoked per
// tool call so credential changes take effect without a restart.
func NewServer(connect tools.Connector, cfg *config.Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	auditLogger, err := audit.NewLogger(audit.Config{
		Enabled:    cfg.Audit.Enabled,
		FilePath:   cfg.Audit.FilePath,
		BufferSize: cfg.Audit.BufferSize,
	})
	if err != nil {
		logger.Warn("Failed to initialize audit logger, auditing disabled", zap.Error(err))
		auditLogger, _ = audit.NewLogger(audit.Config{Enabled: false})
	}

	rateLimiter := audit.NewRateLimiter(audit.RateLimitConfig{
		Enabled:        cfg.Audit.RateLimitEnabled,
		RequestsPerSec: cfg.Audit.RateLimitRPS,
		BurstSize:      cfg.Audit.RateLimitBurst,
	})

	return &Server{
		config:      cfg,
		tools:       tools.NewRegistry(connect, cfg, auditLogger, rateLimiter, logger),
		resources:   resources.NewRegistry(cfg, auditLogger, rateLimiter),
		auditLogger: auditLogger,
		rateLimiter: rateLimiter,
		logger:      logger,
	}
}

// build assembles a protocol server with every tool and resource attached.
// HTTP transports call it once per session.
func (s *Server) build() *sdk.Server {
	server := sdk.NewServer(&sdk.Implementation{
		Name:    ServerName,
		Version: ServerVersion,
	}, nil)

	s.tools.RegisterAll(server)
	s.resources.RegisterAll(server)

	return server
}

// Run starts the MCP server with the configured transport and blocks until
// the context is cancelled or the transport fails.
func (s *Server) Run(ctx context.Context) error {
	toolNames := make([]string, 0, len(s.tools.Definitions()))
	for _, def := range s.tools.Definitions() {
		toolNames = append(toolNames, def.Name)
	}

	s.auditLogger.Log(audit.Event{
		Level:     audit.LevelInfo,
		Category:  audit.CategorySystem,
		Operation: "server_start",
		Success:   true,
		Details: map[string]any{
			"transport": s.config.Transport,
			"role":      string(s.config.Role),
			"tools":     toolNames,
		},
	})

	var err error
	switch s.config.Transport {
	case "stdio":
		err = s.runStdio(ctx)
	case "http":
		err = s.runHTTP(ctx)
	default:
		err = fmt.Errorf("unsupported transport: %s", s.config.Transport)
	}

	s.auditLogger.Log(audit.Event{
		Level:     audit.LevelInfo,
		Category:  audit.CategorySystem,
		Operation: "server_shutdown",
		Success:   err == nil || errors.Is(err, context.Canceled),
		Error:     errorString(err),
	})
	s.auditLogger.Close()

	return err
}

// runStdio serves a single session over stdin and stdout.
func (s *Server) runStdio(ctx context.Context) error {
	s.logger.Info("MCP server started",
		zap.String("transport", "stdio"),
		zap.String("role", string(s.config.Role)))

	return s.build().Run(ctx, &sdk.StdioTransport{})
}

// runHTTP serves streamable HTTP sessions on the configured port.
func (s *Server) runHTTP(ctx context.Context) error {
	port := s.config.Port
	if port == 0 {
		port = 8080
	}

	return NewHTTPServer(s, port).Run(ctx)
}

// errorString returns error string or empty if nil.
func errorString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
