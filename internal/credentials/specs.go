// Copyright 2024 OnChain Media Corporation
// SPDX-License-Identifier: Apache-2.0

package credentials

// Spec describes one credential a host system must supply for the Supabase
// tools to function. The metadata is exposed for declarative discovery via
// the supabase://credentials resource.
type Spec struct {
	ID          string   `json:"id"`
	EnvVar      string   `json:"env_var"`
	Description string   `json:"description"`
	HelpURL     string   `json:"help_url"`
	Tools       []string `json:"tools"`
	Required    bool     `json:"required"`
}

const helpURL = "https://supabase.com/dashboard/project/_/settings/api"

var dependentTools = []string{
	"supabase_db_query",
	"supabase_auth_list_users",
	"supabase_storage_list_buckets",
}

// Specs returns the credential requirements, one entry per environment
// variable. Both are required by all three tools.
func Specs() []Spec {
	return []Spec{
		{
			ID:          "supabase",
			EnvVar:      "SUPABASE_URL",
			Description: "Supabase Project API URL",
			HelpURL:     helpURL,
			Tools:       dependentTools,
			Required:    true,
		},
		{
			ID:          "supabase_service",
			EnvVar:      "SUPABASE_SERVICE_ROLE_KEY",
			Description: "Supabase Service Role Key (Admin Access)",
			HelpURL:     helpURL,
			Tools:       dependentTools,
			Required:    true,
		},
	}
}
