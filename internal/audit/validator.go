// Copyright 2024 OnChain Media Corporation
// SPDX-License-Identifier: Apache-2.0

package audit

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
)

// identifierPattern matches unquoted PostgreSQL identifiers. Quoted
// identifiers are not supported; names pass through to PostgREST paths and
// filter keys verbatim.
var identifierPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Validator provides input validation for MCP operations.
type Validator struct {
	maxIdentifierLength int
	maxPayloadRecords   int
}

// ValidatorConfig holds validator configuration.
type ValidatorConfig struct {
	MaxIdentifierLength int `json:"max_identifier_length"`
	MaxPayloadRecords   int `json:"max_payload_records"`
}

// DefaultValidatorConfig returns default validation configuration.
func DefaultValidatorConfig() ValidatorConfig {
	return ValidatorConfig{
		MaxIdentifierLength: 63, // PostgreSQL NAMEDATALEN - 1
		MaxPayloadRecords:   1000,
	}
}

// NewValidator creates a new validator.
func NewValidator(cfg ValidatorConfig) *Validator {
	maxIdentifier := cfg.MaxIdentifierLength
	if maxIdentifier <= 0 {
		maxIdentifier = 63
	}

	maxRecords := cfg.MaxPayloadRecords
	if maxRecords <= 0 {
		maxRecords = 1000
	}

	return &Validator{
		maxIdentifierLength: maxIdentifier,
		maxPayloadRecords:   maxRecords,
	}
}

// ValidationError represents a validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateTable validates a table name.
func (v *Validator) ValidateTable(table string) error {
	if table == "" {
		return ValidationError{Field: "table", Message: "cannot be empty"}
	}

	if len(table) > v.maxIdentifierLength {
		return ValidationError{
			Field:   "table",
			Message: fmt.Sprintf("exceeds maximum length of %d", v.maxIdentifierLength),
		}
	}

	if !identifierPattern.MatchString(table) {
		return ValidationError{
			Field:   "table",
			Message: "must start with a letter or underscore and contain only letters, digits, and underscores",
		}
	}

	return nil
}

// ValidateColumn validates a filter column name.
func (v *Validator) ValidateColumn(column string) error {
	if column == "" {
		return ValidationError{Field: "query_filter", Message: "column name cannot be empty"}
	}

	if len(column) > v.maxIdentifierLength {
		return ValidationError{
			Field:   "query_filter",
			Message: fmt.Sprintf("column %q exceeds maximum length of %d", column, v.maxIdentifierLength),
		}
	}

	if !identifierPattern.MatchString(column) {
		return ValidationError{
			Field:   "query_filter",
			Message: fmt.Sprintf("column %q must start with a letter or underscore and contain only letters, digits, and underscores", column),
		}
	}

	return nil
}

// ValidateFilter validates filter column names and requires scalar values,
// since each entry becomes a single equality condition.
func (v *Validator) ValidateFilter(filter map[string]interface{}) error {
	for column, value := range filter {
		if err := v.ValidateColumn(column); err != nil {
			return err
		}

		switch value.(type) {
		case nil, string, bool, float64, int, int64:
			// Scalar values only
		default:
			return ValidationError{
				Field:   "query_filter",
				Message: fmt.Sprintf("value for column %q must be a scalar", column),
			}
		}
	}
	return nil
}

// ValidatePayload validates an insert or update payload: a single record or
// a bounded list of records. Presence is the caller's concern.
func (v *Validator) ValidatePayload(payload json.RawMessage) error {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 {
		return nil
	}

	switch trimmed[0] {
	case '{':
		return nil
	case '[':
		var records []json.RawMessage
		if err := json.Unmarshal(trimmed, &records); err != nil {
			return ValidationError{Field: "payload", Message: "must be valid JSON"}
		}

		if len(records) > v.maxPayloadRecords {
			return ValidationError{
				Field:   "payload",
				Message: fmt.Sprintf("exceeds maximum of %d records", v.maxPayloadRecords),
			}
		}

		for _, record := range records {
			item := bytes.TrimSpace(record)
			if len(item) == 0 || item[0] != '{' {
				return ValidationError{Field: "payload", Message: "list items must be records"}
			}
		}
		return nil
	default:
		return ValidationError{Field: "payload", Message: "must be a record or a list of records"}
	}
}
