// Copyright 2024 OnChain Media Corporation
// SPDX-License-Identifier: Apache-2.0

package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/onchain-media/supabase-mcp-server/internal/audit"
)

// HTTPServer exposes the MCP server over the streamable HTTP transport.
type HTTPServer struct {
	server *Server
	port   int
}

// NewHTTPServer creates a new HTTP transport around the MCP server.
func NewHTTPServer(server *Server, port int) *HTTPServer {
	return &HTTPServer{
		server: server,
		port:   port,
	}
}

// Run starts the HTTP server and blocks until the context is cancelled or
// the listener fails.
func (h *HTTPServer) Run(ctx context.Context) error {
	mcpServer := h.server.build()

	mux := http.NewServeMux()

	// MCP endpoint. Sessions are managed by the streamable handler.
	mux.Handle("/mcp", sdk.NewStreamableHTTPHandler(func(*http.Request) *sdk.Server {
		return mcpServer
	}, nil))

	// Health check
	mux.HandleFunc("/health", h.handleHealth)

	addr := fmt.Sprintf(":%d", h.port)
	httpServer := &http.Server{
		Addr:    addr,
		Handler: withClientID(mux),
	}

	// Start server in goroutine
	errCh := make(chan error, 1)
	go func() {
		h.server.logger.Info("HTTP server listening", zap.String("addr", addr))
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	// Shutdown gracefully
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return httpServer.Shutdown(shutdownCtx)
}

// handleHealth returns server health status.
func (h *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "healthy",
		"server":  ServerName,
		"version": ServerVersion,
	})
}

// withClientID stamps each request context with a client identifier so audit
// events can attribute tool calls to sessions.
func withClientID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientID := r.Header.Get("Mcp-Session-Id")
		if clientID == "" {
			clientID = r.RemoteAddr
		}

		next.ServeHTTP(w, r.WithContext(audit.WithClientID(r.Context(), clientID)))
	})
}
