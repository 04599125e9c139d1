// Package configs embeds the configuration templates written by
// `wmviews config init`.
//
// Templates:
//   - project-config.example.yaml: .wmviews.yaml in the working directory
//   - user-config.example.yaml: ~/.config/wmviews/config.yaml
//
// Both are plain YAML accepted by internal/config.Load; every key is
// commented out except the ones whose defaults most people change.
package configs

import _ "embed"

// UserConfigTemplate is written by `wmviews config init --user`.
//
//go:embed user-config.example.yaml
var UserConfigTemplate string

// ProjectConfigTemplate is written by `wmviews config init`.
//
//go:embed project-config.example.yaml
var ProjectConfigTemplate string
