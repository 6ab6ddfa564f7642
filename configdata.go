// Package mediacord embeds the default configuration file.
//
// The root package exists solely to embed config.default.toml via
// [DefaultConfigTOML]; the CLI writes it to the data directory on first use.
package mediacord

import _ "embed"

// DefaultConfigTOML holds config.default.toml, generated by cmd/genconfig.
//
//go:embed config.default.toml
var DefaultConfigTOML []byte
