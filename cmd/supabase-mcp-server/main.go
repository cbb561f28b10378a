// Copyright 2024 OnChain Media Corporation
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/onchain-media/supabase-mcp-server/internal/credentials"
	"github.com/onchain-media/supabase-mcp-server/internal/mcp"
	"github.com/onchain-media/supabase-mcp-server/internal/supabase"
	"github.com/onchain-media/supabase-mcp-server/internal/tools"
	"github.com/onchain-media/supabase-mcp-server/pkg/config"
)

var (
	version   = "0.1.0"
	buildTime = "unknown"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "", "Path to configuration file")
	transport := flag.String("transport", "", "Transport override: stdio or http")
	verbose := flag.Bool("verbose", false, "Enable debug logging")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showVersion {
		fmt.Printf("supabase-mcp-server version %s (built %s)\n", version, buildTime)
		os.Exit(0)
	}

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if *transport != "" {
		cfg.Transport = *transport
		if err := cfg.Validate(); err != nil {
			fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
			os.Exit(1)
		}
	}

	logger, err := newLogger(cfg.LogLevel, *verbose)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, closing connections")
		cancel()
	}()

	// Credentials are resolved per tool call, so the server starts without a
	// reachable Supabase project and picks up rotated keys on the fly.
	resolver := supabase.NewResolver(configStore(cfg))
	connect := func(ctx context.Context) (tools.Backend, error) {
		client, err := resolver.Connect(ctx)
		if err != nil {
			return nil, err
		}
		return client, nil
	}

	// Create and run MCP server
	server := mcp.NewServer(connect, cfg, logger)
	if err := server.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal("MCP server error", zap.Error(err))
	}
}

// configStore exposes config-file credentials to the resolver. It returns nil
// when the config carries none, which drops the resolver back to the
// environment variables.
func configStore(cfg *config.Config) credentials.Store {
	store := credentials.StaticStore{}
	if cfg.URL != "" {
		store[supabase.EnvURL] = cfg.URL
	}
	if cfg.ServiceRoleKey != "" {
		store[supabase.EnvServiceKey] = cfg.ServiceRoleKey
	}
	if len(store) == 0 {
		return nil
	}
	return store
}

// newLogger builds the process logger. MCP stdio sessions own stdout, so all
// logging goes to stderr.
func newLogger(level string, verbose bool) (*zap.Logger, error) {
	if verbose {
		level = "debug"
	}
	if level == "" {
		level = "info"
	}

	parsed, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}

	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(parsed)
	zapCfg.OutputPaths = []string{"stderr"}
	zapCfg.ErrorOutputPaths = []string{"stderr"}

	return zapCfg.Build()
}
