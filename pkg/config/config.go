// Copyright 2024 OnChain Media Corporation
// SPDX-License-Identifier: Apache-2.0

// Package config provides configuration types and loading for the Supabase MCP server.
package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strings"
)

// Role defines the permission level for database operations.
type Role string

const (
	RoleReadOnly  Role = "read-only"
	RoleReadWrite Role = "read-write"
	RoleAdmin     Role = "admin"
)

// Config holds the complete configuration for the Supabase MCP server.
type Config struct {
	// Project connection settings. When set, these take the injected
	// credential-source slot; otherwise the resolver falls back to the
	// SUPABASE_URL and SUPABASE_SERVICE_ROLE_KEY environment variables.
	URL               string `json:"url,omitempty"`
	ServiceRoleKey    string `json:"service_role_key,omitempty"`
	ServiceRoleKeyEnv string `json:"service_role_key_env,omitempty"`

	// Authorization
	Role Role `json:"role"`

	// Safety constraints
	MaxPayloadRecords int `json:"max_payload_records"`

	// Server settings
	Transport string `json:"transport"` // "stdio", "http"
	Port      int    `json:"port,omitempty"`
	LogLevel  string `json:"log_level,omitempty"`

	// Audit settings
	Audit AuditConfig `json:"audit,omitempty"`
}

// AuditConfig holds audit logging configuration.
type AuditConfig struct {
	Enabled          bool    `json:"enabled"`
	FilePath         string  `json:"file_path,omitempty"`
	BufferSize       int     `json:"buffer_size"`
	RateLimitEnabled bool    `json:"rate_limit_enabled"`
	RateLimitRPS     float64 `json:"rate_limit_rps"`
	RateLimitBurst   int     `json:"rate_limit_burst"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Role:              RoleReadWrite,
		MaxPayloadRecords: 1000,
		Transport:         "stdio",
		LogLevel:          "info",
		Audit: AuditConfig{
			Enabled:          true,
			BufferSize:       100,
			RateLimitEnabled: true,
			RateLimitRPS:     100,
			RateLimitBurst:   200,
		},
	}
}

// Load reads configuration from a file path or uses defaults.
// If configPath is empty, it checks for SUPABASE_MCP_CONFIG env var.
func Load(configPath string) (*Config, error) {
	// Check environment variable if no path provided
	if configPath == "" {
		configPath = os.Getenv("SUPABASE_MCP_CONFIG")
	}

	cfg := DefaultConfig()

	// If still no config path, return defaults
	if configPath == "" {
		return cfg, nil
	}

	// Read config file
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Parse JSON
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Resolve service role key from environment variable if specified
	if cfg.ServiceRoleKeyEnv != "" && cfg.ServiceRoleKey == "" {
		cfg.ServiceRoleKey = os.Getenv(cfg.ServiceRoleKeyEnv)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.URL != "" {
		u, err := url.Parse(c.URL)
		if err != nil {
			return fmt.Errorf("invalid url: %w", err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("invalid url: scheme must be http or https, got %q", u.Scheme)
		}
	}

	switch c.Role {
	case RoleReadOnly, RoleReadWrite, RoleAdmin:
		// Valid roles
	case "":
		c.Role = RoleReadWrite
	default:
		return fmt.Errorf("invalid role: %s (must be read-only, read-write, or admin)", c.Role)
	}

	validTransports := []string{"stdio", "http"}
	transportValid := false
	for _, t := range validTransports {
		if strings.EqualFold(c.Transport, t) {
			transportValid = true
			break
		}
	}
	if !transportValid {
		return fmt.Errorf("invalid transport: %s (must be stdio or http)", c.Transport)
	}

	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}

	switch c.LogLevel {
	case "", "debug", "info", "warn", "error":
		// Valid levels
	default:
		return fmt.Errorf("invalid log_level: %s (must be debug, info, warn, or error)", c.LogLevel)
	}

	if c.MaxPayloadRecords <= 0 {
		c.MaxPayloadRecords = 1000
	}

	return nil
}

// CanWrite returns true if the role permits write operations.
func (c *Config) CanWrite() bool {
	return c.Role == RoleReadWrite || c.Role == RoleAdmin
}

// CanAdmin returns true if the role permits administrative operations.
func (c *Config) CanAdmin() bool {
	return c.Role == RoleAdmin
}
