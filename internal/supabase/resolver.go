// Copyright 2024 OnChain Media Corporation
// SPDX-License-Identifier: Apache-2.0

// Package supabase wraps the Supabase SDK family behind the narrow surface
// the MCP tools need: credential resolution, table queries, auth user
// listing, and storage bucket listing.
package supabase

import (
	"context"
	"errors"
	"os"

	"github.com/onchain-media/supabase-mcp-server/internal/credentials"
)

// Environment variables read when the credential store yields nothing.
const (
	EnvURL        = "SUPABASE_URL"
	EnvServiceKey = "SUPABASE_SERVICE_ROLE_KEY"
)

// ErrMissingCredentials is returned when neither the credential store nor
// the environment supplies both required values. It propagates out of the
// tool handlers as-is rather than being folded into an error dictionary.
var ErrMissingCredentials = errors.New("SUPABASE_URL and SUPABASE_SERVICE_ROLE_KEY are required to use the Supabase tool")

// Credentials is a resolved project URL and service role key pair.
type Credentials struct {
	URL        string
	ServiceKey string
}

// Resolver produces Supabase credentials on demand. Each value is looked up
// in the injected store first, then in the environment; the first non-empty
// result wins. Nothing is cached, so rotated credentials take effect on the
// next call.
type Resolver struct {
	store credentials.Store
}

// NewResolver creates a resolver backed by the given credential store.
// A nil store skips straight to the environment.
func NewResolver(store credentials.Store) *Resolver {
	return &Resolver{store: store}
}

// Resolve returns the credential pair, or ErrMissingCredentials if either
// value is absent from both sources.
func (r *Resolver) Resolve(ctx context.Context) (Credentials, error) {
	creds := Credentials{
		URL:        r.lookup(ctx, EnvURL),
		ServiceKey: r.lookup(ctx, EnvServiceKey),
	}
	if creds.URL == "" || creds.ServiceKey == "" {
		return Credentials{}, ErrMissingCredentials
	}
	return creds, nil
}

// lookup consults the store first. Any store failure is treated as the value
// being absent, not as an error.
func (r *Resolver) lookup(ctx context.Context, name string) string {
	if r.store != nil {
		if v, err := r.store.Get(ctx, name); err == nil && v != "" {
			return v
		}
	}
	return os.Getenv(name)
}

// Connect resolves credentials and builds a fresh client bound to them.
func (r *Resolver) Connect(ctx context.Context) (*Client, error) {
	creds, err := r.Resolve(ctx)
	if err != nil {
		return nil, err
	}
	return NewClient(creds)
}
