// Copyright 2024 OnChain Media Corporation
// SPDX-License-Identifier: Apache-2.0

package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/supabase-community/gotrue-go"
	postgrest "github.com/supabase-community/postgrest-go"
	storage "github.com/supabase-community/storage-go"
	supa "github.com/supabase-community/supabase-go"
)

// Client wraps the Supabase SDK clients behind the operations the tools
// expose: PostgREST table access, GoTrue admin listing, and Storage bucket
// listing.
type Client struct {
	sb      *supa.Client
	auth    gotrue.Client
	storage *storage.Client
}

// NewClient creates a client bound to the given project credentials.
func NewClient(creds Credentials) (*Client, error) {
	sb, err := supa.NewClient(creds.URL, creds.ServiceKey, nil)
	if err != nil {
		return nil, fmt.Errorf("creating Supabase client: %w", err)
	}

	// Admin endpoints need the service key as a bearer token, not just the
	// apikey header the shared client sets.
	return &Client{
		sb:      sb,
		auth:    sb.Auth.WithToken(creds.ServiceKey),
		storage: sb.Storage,
	}, nil
}

// ============================================================================
// Database Operations
// ============================================================================

// Select fetches all columns from a table, applying each filter entry as an
// equality condition.
func (c *Client) Select(ctx context.Context, table string, filter map[string]any) ([]map[string]any, error) {
	query := applyFilter(c.sb.From(table).Select("*", "", false), filter)

	data, _, err := query.ExecuteWithContext(ctx)
	if err != nil {
		return nil, err
	}
	return decodeRows(data)
}

// Insert adds one record or a list of records to a table and returns the
// inserted rows.
func (c *Client) Insert(ctx context.Context, table string, payload json.RawMessage) ([]map[string]any, error) {
	data, _, err := c.sb.From(table).Insert(payload, false, "", "representation", "").ExecuteWithContext(ctx)
	if err != nil {
		return nil, err
	}
	return decodeRows(data)
}

// Update modifies the rows matching every filter condition and returns the
// updated rows.
func (c *Client) Update(ctx context.Context, table string, payload json.RawMessage, filter map[string]any) ([]map[string]any, error) {
	query := applyFilter(c.sb.From(table).Update(payload, "representation", ""), filter)

	data, _, err := query.ExecuteWithContext(ctx)
	if err != nil {
		return nil, err
	}
	return decodeRows(data)
}

// Delete removes the rows matching every filter condition and returns the
// deleted rows.
func (c *Client) Delete(ctx context.Context, table string, filter map[string]any) ([]map[string]any, error) {
	query := applyFilter(c.sb.From(table).Delete("representation", ""), filter)

	data, _, err := query.ExecuteWithContext(ctx)
	if err != nil {
		return nil, err
	}
	return decodeRows(data)
}

// applyFilter narrows a query with one equality condition per filter entry.
// Conditions are conjunctive: a row must match all of them.
func applyFilter(query *postgrest.FilterBuilder, filter map[string]any) *postgrest.FilterBuilder {
	for column, value := range filter {
		query = query.Eq(column, filterString(value))
	}
	return query
}

// filterString renders a filter value in the form PostgREST expects inside
// an eq condition.
func filterString(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case float64:
		// JSON numbers decode as float64; keep integral values unadorned.
		if v == float64(int64(v)) {
			return strconv.FormatInt(int64(v), 10)
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case nil:
		return "null"
	default:
		return fmt.Sprintf("%v", v)
	}
}

// decodeRows unmarshals a PostgREST response body into generic rows. An
// empty body decodes to an empty slice.
func decodeRows(data []byte) ([]map[string]any, error) {
	if len(data) == 0 {
		return []map[string]any{}, nil
	}

	var rows []map[string]any
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("decoding response rows: %w", err)
	}
	return rows, nil
}

// ============================================================================
// Auth Operations
// ============================================================================

// User is the projection of a GoTrue user returned by the auth listing tool.
// Fields missing on the upstream record stay absent in the rendered JSON.
type User struct {
	ID           string     `json:"id,omitempty"`
	Email        string     `json:"email,omitempty"`
	CreatedAt    *time.Time `json:"created_at,omitempty"`
	LastSignInAt *time.Time `json:"last_sign_in_at,omitempty"`
}

// ListUsers returns every registered auth user. The GoTrue client does not
// accept a context; the ctx parameter keeps the call shape uniform.
func (c *Client) ListUsers(ctx context.Context) ([]User, error) {
	resp, err := c.auth.AdminListUsers()
	if err != nil {
		return nil, err
	}

	users := make([]User, 0, len(resp.Users))
	for _, u := range resp.Users {
		user := User{
			Email:        u.Email,
			LastSignInAt: u.LastSignInAt,
		}
		if u.ID != uuid.Nil {
			user.ID = u.ID.String()
		}
		if !u.CreatedAt.IsZero() {
			createdAt := u.CreatedAt
			user.CreatedAt = &createdAt
		}
		users = append(users, user)
	}

	return users, nil
}

// ============================================================================
// Storage Operations
// ============================================================================

// Bucket is the projection of a Storage bucket returned by the bucket
// listing tool.
type Bucket struct {
	ID        string `json:"id,omitempty"`
	Name      string `json:"name,omitempty"`
	Public    bool   `json:"public"`
	CreatedAt string `json:"created_at,omitempty"`
}

// ListBuckets returns every storage bucket in the project. The Storage
// client does not accept a context; the ctx parameter keeps the call shape
// uniform.
func (c *Client) ListBuckets(ctx context.Context) ([]Bucket, error) {
	buckets, err := c.storage.ListBuckets()
	if err != nil {
		return nil, err
	}

	out := make([]Bucket, 0, len(buckets))
	for _, b := range buckets {
		out = append(out, Bucket{
			ID:        b.Id,
			Name:      b.Name,
			Public:    b.Public,
			CreatedAt: b.CreatedAt,
		})
	}

	return out, nil
}
