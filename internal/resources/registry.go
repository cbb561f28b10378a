// Copyright 2024 OnChain Media Corporation
// SPDX-License-Identifier: Apache-2.0

// Package resources implements MCP resource definitions and handlers that
// expose credential requirements and the sanitized server configuration.
package resources

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/onchain-media/supabase-mcp-server/internal/audit"
	"github.com/onchain-media/supabase-mcp-server/internal/credentials"
	"github.com/onchain-media/supabase-mcp-server/pkg/config"
)

// Resource URIs.
const (
	URICredentials = "supabase://credentials"
	URIConfig      = "supabase://config"
)

// ResourceDefinition represents an MCP resource definition.
type ResourceDefinition struct {
	URI         string `json:"uri"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	MimeType    string `json:"mimeType,omitempty"`
}

// Registry manages available MCP resources.
type Registry struct {
	config      *config.Config
	auditLogger *audit.Logger
	rateLimiter *audit.RateLimiter
}

// NewRegistry creates a new resource registry.
func NewRegistry(cfg *config.Config, auditLogger *audit.Logger, rateLimiter *audit.RateLimiter) *Registry {
	return &Registry{
		config:      cfg,
		auditLogger: auditLogger,
		rateLimiter: rateLimiter,
	}
}

// List returns all available resource definitions.
func (r *Registry) List() []ResourceDefinition {
	return []ResourceDefinition{
		{
			URI:         URICredentials,
			Name:        "Credential Requirements",
			Description: "Environment variables the Supabase tools need before they can run",
			MimeType:    "application/json",
		},
		{
			URI:         URIConfig,
			Name:        "Server Configuration",
			Description: "Sanitized runtime configuration, audit state, and rate limiter stats",
			MimeType:    "application/json",
		},
	}
}

// RegisterAll attaches every resource to the MCP server.
func (r *Registry) RegisterAll(server *mcp.Server) {
	for _, def := range r.List() {
		server.AddResource(&mcp.Resource{
			URI:         def.URI,
			Name:        def.Name,
			Description: def.Description,
			MIMEType:    def.MimeType,
		}, r.handleRead)
	}
}

// handleRead adapts Read to the MCP resource handler signature.
func (r *Registry) handleRead(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	content, mimeType, err := r.Read(ctx, req.Params.URI)
	if err != nil {
		return nil, err
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{
			{
				URI:      req.Params.URI,
				MIMEType: mimeType,
				Text:     content,
			},
		},
	}, nil
}

// Read retrieves the content of a resource by URI.
func (r *Registry) Read(ctx context.Context, uri string) (string, string, error) {
	switch uri {
	case URICredentials:
		return r.readCredentials()
	case URIConfig:
		return r.readConfig()
	default:
		return "", "", fmt.Errorf("unknown resource: %s", uri)
	}
}

// readCredentials returns the credential requirements for the tool surface.
func (r *Registry) readCredentials() (string, string, error) {
	data, err := json.MarshalIndent(map[string]any{
		"credentials": credentials.Specs(),
	}, "", "  ")
	if err != nil {
		return "", "", err
	}

	return string(data), "application/json", nil
}

// readConfig returns a sanitized view of the running server. Connection URLs
// and service keys never appear here.
func (r *Registry) readConfig() (string, string, error) {
	data, err := json.MarshalIndent(map[string]any{
		"role":                r.config.Role,
		"transport":           r.config.Transport,
		"max_payload_records": r.config.MaxPayloadRecords,
		"audit": map[string]any{
			"enabled":         r.auditLogger.Enabled(),
			"buffered_events": len(r.auditLogger.GetRecentEvents(r.config.Audit.BufferSize)),
		},
		"rate_limiter": r.rateLimiter.GetStats(),
	}, "", "  ")
	if err != nil {
		return "", "", err
	}

	return string(data), "application/json", nil
}
