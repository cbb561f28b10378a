// Copyright 2024 OnChain Media Corporation
// SPDX-License-Identifier: Apache-2.0

// Package tools implements the MCP tool definitions and handlers that proxy
// Supabase database, auth, and storage operations.
package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/onchain-media/supabase-mcp-server/internal/audit"
	"github.com/onchain-media/supabase-mcp-server/internal/supabase"
	"github.com/onchain-media/supabase-mcp-server/pkg/config"
)

// Tool names registered with the MCP server.
const (
	ToolQueryDB     = "supabase_db_query"
	ToolListUsers   = "supabase_auth_list_users"
	ToolListBuckets = "supabase_storage_list_buckets"
)

// Database actions accepted by the query tool.
const (
	actionSelect = "select"
	actionInsert = "insert"
	actionUpdate = "update"
	actionDelete = "delete"
)

// Backend is the slice of the Supabase client surface the tool handlers
// call. *supabase.Client implements it; tests substitute fakes.
type Backend interface {
	Select(ctx context.Context, table string, filter map[string]any) ([]map[string]any, error)
	Insert(ctx context.Context, table string, payload json.RawMessage) ([]map[string]any, error)
	Update(ctx context.Context, table string, payload json.RawMessage, filter map[string]any) ([]map[string]any, error)
	Delete(ctx context.Context, table string, filter map[string]any) ([]map[string]any, error)
	ListUsers(ctx context.Context) ([]supabase.User, error)
	ListBuckets(ctx context.Context) ([]supabase.Bucket, error)
}

// Connector produces a backend bound to freshly resolved credentials. It is
// invoked once per tool call so rotated credentials take effect immediately;
// a failure aborts the call before any backend operation.
type Connector func(ctx context.Context) (Backend, error)

// Registry manages the available MCP tools and their shared collaborators.
type Registry struct {
	connect     Connector
	config      *config.Config
	auditLogger *audit.Logger
	limiter     *audit.RateLimiter
	validator   *audit.Validator
	logger      *zap.Logger
}

// NewRegistry creates a new tool registry.
func NewRegistry(connect Connector, cfg *config.Config, auditLogger *audit.Logger, limiter *audit.RateLimiter, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}

	validatorCfg := audit.DefaultValidatorConfig()
	validatorCfg.MaxPayloadRecords = cfg.MaxPayloadRecords

	return &Registry{
		connect:     connect,
		config:      cfg,
		auditLogger: auditLogger,
		limiter:     limiter,
		validator:   audit.NewValidator(validatorCfg),
		logger:      logger,
	}
}

// Definition describes a registered tool for introspection and logging.
type Definition struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Definitions returns the tools the registry registers, in registration
// order.
func (r *Registry) Definitions() []Definition {
	return []Definition{
		{
			Name:        ToolQueryDB,
			Description: "Execute a query against a Supabase table. Supports select, insert, update, and delete with exact-match filters.",
		},
		{
			Name:        ToolListUsers,
			Description: "List all users registered in the Supabase Auth module.",
		},
		{
			Name:        ToolListBuckets,
			Description: "List all storage buckets in the Supabase project.",
		},
	}
}

// RegisterAll adds every tool to the MCP server.
func (r *Registry) RegisterAll(server *mcp.Server) {
	defs := r.Definitions()

	mcp.AddTool(server, &mcp.Tool{
		Name:        defs[0].Name,
		Description: defs[0].Description,
		InputSchema: queryDBSchema(),
	}, r.handleQueryDB)

	mcp.AddTool(server, &mcp.Tool{
		Name:        defs[1].Name,
		Description: defs[1].Description,
		InputSchema: emptyObjectSchema(),
	}, r.handleListAuthUsers)

	mcp.AddTool(server, &mcp.Tool{
		Name:        defs[2].Name,
		Description: defs[2].Description,
		InputSchema: emptyObjectSchema(),
	}, r.handleListStorageBuckets)
}

// queryDBSchema describes the query tool arguments. The action property is
// deliberately a free string so unknown values reach the handler and come
// back as error dictionaries instead of schema rejections.
func queryDBSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"table": map[string]any{
				"type":        "string",
				"description": "Name of the table to query",
			},
			"action": map[string]any{
				"type":        "string",
				"description": "Operation to perform: select, insert, update, or delete",
				"default":     "select",
			},
			"query_filter": map[string]any{
				"type":        "object",
				"description": "Column/value pairs applied as exact-match equality conditions",
			},
			"payload": map[string]any{
				"description": "Record or list of records for insert and update actions",
				"anyOf": []any{
					map[string]any{"type": "object"},
					map[string]any{"type": "array", "items": map[string]any{"type": "object"}},
				},
			},
		},
		"required": []any{"table"},
	}
}

func emptyObjectSchema() map[string]any {
	return map[string]any{"type": "object"}
}

// ============================================================================
// Tool Handlers
// ============================================================================

type queryDBArgs struct {
	Table       string          `json:"table"`
	Action      string          `json:"action,omitempty"`
	QueryFilter map[string]any  `json:"query_filter,omitempty"`
	Payload     json.RawMessage `json:"payload,omitempty"`
}

func (r *Registry) handleQueryDB(ctx context.Context, req *mcp.CallToolRequest, args queryDBArgs) (*mcp.CallToolResult, any, error) {
	start := time.Now()
	ctx = audit.WithRequestID(ctx, uuid.NewString())

	action := args.Action
	if action == "" {
		action = actionSelect
	}

	if isMutation(action) && !r.limiter.Allow() {
		r.auditLogger.Log(audit.Event{
			Level:     audit.LevelWarning,
			Category:  audit.CategoryWrite,
			Operation: ToolQueryDB,
			Table:     args.Table,
			Action:    action,
			Success:   false,
			Error:     "rate limit exceeded",
		})
		return nil, nil, errors.New("rate limit exceeded, please try again later")
	}

	backend, err := r.connect(ctx)
	if err != nil {
		// Credential failures surface as protocol-level tool errors, not
		// error dictionaries.
		return nil, nil, err
	}

	result := r.queryDB(ctx, backend, args.Table, action, args.QueryFilter, args.Payload)

	category := audit.CategoryRead
	if isMutation(action) {
		category = audit.CategoryWrite
	}
	errMsg, _ := result["error"].(string)
	r.auditLogger.LogToolCall(ctx, category, ToolQueryDB, args.Table, action, resultCount(result), time.Since(start), errMsg)

	return textResult(result), nil, nil
}

// queryDB validates and dispatches a single database operation. Domain
// failures of every kind come back as error dictionaries; the handler above
// owns transport-level concerns.
func (r *Registry) queryDB(ctx context.Context, backend Backend, table, action string, filter map[string]any, payload json.RawMessage) map[string]any {
	if err := r.validator.ValidateTable(table); err != nil {
		return errorResult(err.Error())
	}

	switch action {
	case actionSelect:
		if err := r.validator.ValidateFilter(filter); err != nil {
			return errorResult(err.Error())
		}

		rows, err := backend.Select(ctx, table, filter)
		if err != nil {
			return r.queryFailed(table, action, err)
		}
		return map[string]any{"success": true, "data": rows, "count": len(rows)}

	case actionInsert:
		if !r.config.CanWrite() {
			return errorResult("write operations not permitted for role: " + string(r.config.Role))
		}
		if payloadEmpty(payload) {
			return errorResult("payload is required for insert action")
		}
		if err := r.validator.ValidatePayload(payload); err != nil {
			return errorResult(err.Error())
		}

		rows, err := backend.Insert(ctx, table, payload)
		if err != nil {
			return r.queryFailed(table, action, err)
		}
		return map[string]any{"success": true, "data": rows}

	case actionUpdate:
		if !r.config.CanWrite() {
			return errorResult("write operations not permitted for role: " + string(r.config.Role))
		}
		// Payload is checked before the filter so a request missing both
		// reports the payload first.
		if payloadEmpty(payload) {
			return errorResult("payload is required for update action")
		}
		if err := r.validator.ValidatePayload(payload); err != nil {
			return errorResult(err.Error())
		}
		if len(filter) == 0 {
			return errorResult("query_filter is required for update action")
		}
		if err := r.validator.ValidateFilter(filter); err != nil {
			return errorResult(err.Error())
		}

		rows, err := backend.Update(ctx, table, payload, filter)
		if err != nil {
			return r.queryFailed(table, action, err)
		}
		return map[string]any{"success": true, "data": rows}

	case actionDelete:
		if !r.config.CanWrite() {
			return errorResult("write operations not permitted for role: " + string(r.config.Role))
		}
		if len(filter) == 0 {
			return errorResult("query_filter is required for delete action")
		}
		if err := r.validator.ValidateFilter(filter); err != nil {
			return errorResult(err.Error())
		}

		rows, err := backend.Delete(ctx, table, filter)
		if err != nil {
			return r.queryFailed(table, action, err)
		}
		return map[string]any{"success": true, "data": rows}

	default:
		return errorResult(fmt.Sprintf("Unknown action: %s. Use select, insert, update, or delete.", action))
	}
}

func (r *Registry) queryFailed(table, action string, err error) map[string]any {
	r.logger.Error("Supabase DB query failed",
		zap.String("table", table),
		zap.String("action", action),
		zap.Error(err))
	return errorResult(fmt.Sprintf("Failed to execute DB query: %v", err))
}

type listUsersArgs struct{}

func (r *Registry) handleListAuthUsers(ctx context.Context, req *mcp.CallToolRequest, args listUsersArgs) (*mcp.CallToolResult, any, error) {
	start := time.Now()
	ctx = audit.WithRequestID(ctx, uuid.NewString())

	backend, err := r.connect(ctx)
	if err != nil {
		return nil, nil, err
	}

	result := r.listAuthUsers(ctx, backend)

	errMsg, _ := result["error"].(string)
	r.auditLogger.LogToolCall(ctx, audit.CategoryAuth, ToolListUsers, "", "", resultCount(result), time.Since(start), errMsg)

	return textResult(result), nil, nil
}

func (r *Registry) listAuthUsers(ctx context.Context, backend Backend) map[string]any {
	users, err := backend.ListUsers(ctx)
	if err != nil {
		r.logger.Error("Supabase auth user listing failed", zap.Error(err))
		return errorResult(fmt.Sprintf("Failed to list auth users: %v", err))
	}
	return map[string]any{"success": true, "data": users, "count": len(users)}
}

type listBucketsArgs struct{}

func (r *Registry) handleListStorageBuckets(ctx context.Context, req *mcp.CallToolRequest, args listBucketsArgs) (*mcp.CallToolResult, any, error) {
	start := time.Now()
	ctx = audit.WithRequestID(ctx, uuid.NewString())

	backend, err := r.connect(ctx)
	if err != nil {
		return nil, nil, err
	}

	result := r.listStorageBuckets(ctx, backend)

	errMsg, _ := result["error"].(string)
	r.auditLogger.LogToolCall(ctx, audit.CategoryStorage, ToolListBuckets, "", "", resultCount(result), time.Since(start), errMsg)

	return textResult(result), nil, nil
}

func (r *Registry) listStorageBuckets(ctx context.Context, backend Backend) map[string]any {
	buckets, err := backend.ListBuckets(ctx)
	if err != nil {
		r.logger.Error("Supabase storage bucket listing failed", zap.Error(err))
		return errorResult(fmt.Sprintf("Failed to list storage buckets: %v", err))
	}
	return map[string]any{"success": true, "data": buckets, "count": len(buckets)}
}

// ============================================================================
// Result Helpers
// ============================================================================

func errorResult(message string) map[string]any {
	return map[string]any{"error": message}
}

// textResult renders a result dictionary as a single JSON text content
// block.
func textResult(result map[string]any) *mcp.CallToolResult {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		data = []byte(fmt.Sprintf(`{"error": %q}`, "failed to encode result: "+err.Error()))
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
	}
}

// resultCount extracts the record count for audit events.
func resultCount(result map[string]any) int {
	if count, ok := result["count"].(int); ok {
		return count
	}
	if rows, ok := result["data"].([]map[string]any); ok {
		return len(rows)
	}
	return 0
}

// isMutation reports whether an action writes to the database.
func isMutation(action string) bool {
	switch action {
	case actionInsert, actionUpdate, actionDelete:
		return true
	}
	return false
}

// payloadEmpty reports whether a payload is absent or carries no records.
// An empty record and an empty list both count as missing.
func payloadEmpty(payload json.RawMessage) bool {
	trimmed := bytes.TrimSpace(payload)
	switch {
	case len(trimmed) == 0:
		return true
	case bytes.Equal(trimmed, []byte("null")):
		return true
	case bytes.Equal(trimmed, []byte("{}")):
		return true
	case bytes.Equal(trimmed, []byte("[]")):
		return true
	}
	return false
}
