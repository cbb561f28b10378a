// Copyright 2024 OnChain Media Corporation
// SPDX-License-Identifier: Apache-2.0

package resources

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/onchain-media/supabase-mcp-server/internal/audit"
	"github.com/onchain-media/supabase-mcp-server/pkg/config"
)

func newTestRegistry(t *testing.T, cfg *config.Config) *Registry {
	t.Helper()

	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	auditLogger, err := audit.NewLogger(audit.Config{
		Enabled:  true,
		FilePath: filepath.Join(t.TempDir(), "audit.log"),
	})
	if err != nil {
		t.Fatalf("Failed to create audit logger: %v", err)
	}
	t.Cleanup(func() { auditLogger.Close() })

	limiter := audit.NewRateLimiter(audit.DefaultRateLimitConfig())
	return NewRegistry(cfg, auditLogger, limiter)
}

func TestListResources(t *testing.T) {
	registry := newTestRegistry(t, nil)

	defs := registry.List()
	if len(defs) != 2 {
		t.Fatalf("Expected 2 resources, got %d", len(defs))
	}

	want := []string{URICredentials, URIConfig}
	for i, def := range defs {
		if def.URI != want[i] {
			t.Errorf("Expected URI %s, got %s", want[i], def.URI)
		}
		if def.MimeType != "application/json" {
			t.Errorf("Expected MimeType 'application/json', got '%s'", def.MimeType)
		}
		if def.Name == "" || def.Description == "" {
			t.Errorf("Resource %s is missing a name or description", def.URI)
		}
	}
}

func TestReadCredentials(t *testing.T) {
	registry := newTestRegistry(t, nil)

	content, mimeType, err := registry.Read(context.Background(), URICredentials)
	if err != nil {
		t.Fatalf("Failed to read credentials resource: %v", err)
	}

	if mimeType != "application/json" {
		t.Errorf("Expected MimeType 'application/json', got '%s'", mimeType)
	}

	var parsed struct {
		Credentials []struct {
			ID     string   `json:"id"`
			EnvVar string   `json:"env_var"`
			Tools  []string `json:"tools"`
		} `json:"credentials"`
	}
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		t.Fatalf("Failed to parse credentials resource: %v", err)
	}

	if len(parsed.Credentials) != 2 {
		t.Fatalf("Expected 2 credential specs, got %d", len(parsed.Credentials))
	}

	if parsed.Credentials[0].EnvVar != "SUPABASE_URL" {
		t.Errorf("Expected env var SUPABASE_URL, got %s", parsed.Credentials[0].EnvVar)
	}

	if parsed.Credentials[1].EnvVar != "SUPABASE_SERVICE_ROLE_KEY" {
		t.Errorf("Expected env var SUPABASE_SERVICE_ROLE_KEY, got %s", parsed.Credentials[1].EnvVar)
	}

	for _, spec := range parsed.Credentials {
		if len(spec.Tools) != 3 {
			t.Errorf("Expected spec %s to cover 3 tools, got %d", spec.ID, len(spec.Tools))
		}
	}
}

func TestReadConfigSanitized(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.URL = "https://secret-project.supabase.co"
	cfg.ServiceRoleKey = "super-secret-service-key"
	cfg.Role = config.RoleReadOnly

	registry := newTestRegistry(t, cfg)

	content, _, err := registry.Read(context.Background(), URIConfig)
	if err != nil {
		t.Fatalf("Failed to read config resource: %v", err)
	}

	if strings.Contains(content, "secret-project") || strings.Contains(content, "super-secret-service-key") {
		t.Error("Config resource must not leak connection URLs or keys")
	}

	var parsed map[string]any
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		t.Fatalf("Failed to parse config resource: %v", err)
	}

	if parsed["role"] != "read-only" {
		t.Errorf("Expected role 'read-only', got %v", parsed["role"])
	}

	if parsed["transport"] != "stdio" {
		t.Errorf("Expected transport 'stdio', got %v", parsed["transport"])
	}

	if parsed["max_payload_records"] != float64(1000) {
		t.Errorf("Expected max_payload_records 1000, got %v", parsed["max_payload_records"])
	}

	auditState, ok := parsed["audit"].(map[string]any)
	if !ok {
		t.Fatalf("Expected audit section, got %v", parsed["audit"])
	}
	if auditState["enabled"] != true {
		t.Errorf("Expected audit enabled, got %v", auditState["enabled"])
	}

	limiterState, ok := parsed["rate_limiter"].(map[string]any)
	if !ok {
		t.Fatalf("Expected rate_limiter section, got %v", parsed["rate_limiter"])
	}
	if limiterState["max_tokens"] != float64(200) {
		t.Errorf("Expected max_tokens 200, got %v", limiterState["max_tokens"])
	}
}

func TestReadConfigCountsBufferedEvents(t *testing.T) {
	cfg := config.DefaultConfig()

	path := filepath.Join(t.TempDir(), "audit.log")
	auditLogger, err := audit.NewLogger(audit.Config{Enabled: true, FilePath: path, BufferSize: 10})
	if err != nil {
		t.Fatalf("Failed to create audit logger: %v", err)
	}
	defer auditLogger.Close()

	auditLogger.Log(audit.Event{Level: audit.LevelAudit, Category: audit.CategoryRead, Operation: "supabase_db_query"})

	registry := NewRegistry(cfg, auditLogger, audit.NewRateLimiter(audit.DefaultRateLimitConfig()))

	content, _, err := registry.Read(context.Background(), URIConfig)
	if err != nil {
		t.Fatalf("Failed to read config resource: %v", err)
	}

	var parsed struct {
		Audit struct {
			BufferedEvents int `json:"buffered_events"`
		} `json:"audit"`
	}
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		t.Fatalf("Failed to parse config resource: %v", err)
	}

	if parsed.Audit.BufferedEvents != 1 {
		t.Errorf("Expected 1 buffered event, got %d", parsed.Audit.BufferedEvents)
	}
}

func TestReadUnknownResource(t *testing.T) {
	registry := newTestRegistry(t, nil)

	_, _, err := registry.Read(context.Background(), "supabase://nope")
	if err == nil {
		t.Fatal("Expected an error for an unknown resource")
	}

	if err.Error() != "unknown resource: supabase://nope" {
		t.Errorf("Unexpected error message: %v", err)
	}
}
