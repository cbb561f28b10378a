// Copyright 2024 OnChain Media Corporation
// SPDX-License-Identifier: Apache-2.0

// Package credentials defines the injectable credential source consulted
// ahead of the process environment, plus the declarative metadata that
// describes which credentials the Supabase tools require.
package credentials

import (
	"context"
	"errors"
)

// ErrNotFound is returned by a Store when it holds no value for a name.
// The resolver treats it (and any other Store error) as "absent" and falls
// through to the environment.
var ErrNotFound = errors.New("credential not found")

// Store supplies named secrets. Implementations are provided by the hosting
// runtime; this package ships only the static map-backed form.
type Store interface {
	Get(ctx context.Context, name string) (string, error)
}

// StaticStore is a fixed in-memory Store. It backs config-file credentials
// and test fixtures.
type StaticStore map[string]string

// Get returns the stored value for name, or ErrNotFound.
func (s StaticStore) Get(_ context.Context, name string) (string, error) {
	v, ok := s[name]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}
