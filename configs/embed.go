// Package configs holds configuration templates embedded at build time,
// so they ship inside the binary and survive any install method.
//
// The project template is written by `quarry init` as .quarry.yaml in the
// project root. It contains commented examples for every setting; the
// defaults work without editing it. See internal/config for how the file
// is layered with user config and QUARRY_* environment variables.
package configs

import _ "embed"

// ProjectConfigTemplate is the commented template for project-level
// configuration, written to .quarry.yaml by `quarry init` when no config
// exists yet.
//
//go:embed project-config.example.yaml
var ProjectConfigTemplate string

// UserConfigTemplate is the commented template for machine-level
// configuration, written by `quarry config init` to the XDG config
// directory. It holds settings shared by every project on the machine,
// like the embedding endpoint and the default log level.
//
//go:embed user-config.example.yaml
var UserConfigTemplate string
