// Copyright 2024 OnChain Media Corporation
// SPDX-License-Identifier: Apache-2.0

// Package audit provides audit logging, rate limiting, and input validation
// for the Supabase tool surface.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"sync"
	"time"
)

// Level represents the severity level of an audit event.
type Level string

const (
	LevelInfo    Level = "INFO"
	LevelWarning Level = "WARNING"
	LevelError   Level = "ERROR"
	LevelAudit   Level = "AUDIT"
)

// Category represents the category of an audit event.
type Category string

const (
	CategoryRead    Category = "READ"
	CategoryWrite   Category = "WRITE"
	CategoryAuth    Category = "AUTH"
	CategoryStorage Category = "STORAGE"
	CategorySystem  Category = "SYSTEM"
)

// Event represents an audit log event, one JSON line per tool call or
// server lifecycle change.
type Event struct {
	Timestamp   time.Time      `json:"timestamp"`
	Level       Level          `json:"level"`
	Category    Category       `json:"category"`
	Operation   string         `json:"operation"`
	Table       string         `json:"table,omitempty"`
	Action      string         `json:"action,omitempty"`
	RequestID   string         `json:"request_id,omitempty"`
	ClientID    string         `json:"client_id,omitempty"`
	Duration    time.Duration  `json:"duration_ns"`
	Success     bool           `json:"success"`
	Error       string         `json:"error,omitempty"`
	Details     map[string]any `json:"details,omitempty"`
	RecordCount int            `json:"record_count,omitempty"`
}

// Logger provides audit logging functionality.
type Logger struct {
	mu      sync.Mutex
	writer  io.Writer
	enabled bool
	buffer  []Event
	bufSize int
}

// Config holds audit logger configuration.
type Config struct {
	Enabled    bool   `json:"enabled"`
	FilePath   string `json:"file_path,omitempty"`
	BufferSize int    `json:"buffer_size"`
}

// DefaultConfig returns default audit configuration.
func DefaultConfig() Config {
	return Config{
		Enabled:    true,
		BufferSize: 100,
	}
}

// NewLogger creates a new audit logger. Events go to the configured file,
// or to stderr when no file path is set.
func NewLogger(cfg Config) (*Logger, error) {
	var writer io.Writer = os.Stderr

	if cfg.FilePath != "" {
		file, err := os.OpenFile(cfg.FilePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return nil, fmt.Errorf("opening audit log file: %w", err)
		}
		writer = file
	}

	bufSize := cfg.BufferSize
	if bufSize <= 0 {
		bufSize = 100
	}

	return &Logger{
		writer:  writer,
		enabled: cfg.Enabled,
		buffer:  make([]Event, 0, bufSize),
		bufSize: bufSize,
	}, nil
}

// Enabled reports whether the logger emits events.
func (l *Logger) Enabled() bool {
	return l.enabled
}

// Log records an audit event.
func (l *Logger) Log(event Event) {
	if !l.enabled {
		return
	}

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("Audit log marshal error: %v", err)
		return
	}

	l.writer.Write(append(data, '\n'))

	// Buffer recent events for the config resource
	l.buffer = append(l.buffer, event)
	if len(l.buffer) >= l.bufSize {
		l.buffer = l.buffer[1:]
	}
}

// LogToolCall records the outcome of one tool invocation. A non-empty errMsg
// marks the call as failed regardless of category; request and client ids
// are pulled from the context when present.
func (l *Logger) LogToolCall(ctx context.Context, category Category, operation, table, action string, recordCount int, duration time.Duration, errMsg string) {
	event := Event{
		Level:       LevelAudit,
		Category:    category,
		Operation:   operation,
		Table:       table,
		Action:      action,
		RecordCount: recordCount,
		Duration:    duration,
		Success:     errMsg == "",
		Error:       errMsg,
	}

	if errMsg != "" {
		event.Level = LevelError
	}

	if requestID, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		event.RequestID = requestID
	}
	if clientID, ok := ctx.Value(ContextKeyClientID).(string); ok {
		event.ClientID = clientID
	}

	l.Log(event)
}

// GetRecentEvents returns the most recent buffered events.
func (l *Logger) GetRecentEvents(count int) []Event {
	l.mu.Lock()
	defer l.mu.Unlock()

	if count > len(l.buffer) {
		count = len(l.buffer)
	}

	start := len(l.buffer) - count
	events := make([]Event, count)
	copy(events, l.buffer[start:])
	return events
}

// Close closes the audit logger.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if closer, ok := l.writer.(io.Closer); ok && l.writer != os.Stderr && l.writer != os.Stdout {
		return closer.Close()
	}
	return nil
}

// Context keys for audit information
type contextKey string

const (
	ContextKeyRequestID contextKey = "audit_request_id"
	ContextKeyClientID  contextKey = "audit_client_id"
)

// WithRequestID adds a per-call request id to context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// WithClientID adds client ID to context.
func WithClientID(ctx context.Context, clientID string) context.Context {
	return context.WithValue(ctx, ContextKeyClientID, clientID)
}
