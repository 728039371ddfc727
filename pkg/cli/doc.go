// Package cli provides common CLI utilities for the oggvoice command-line
// tool.
//
// This package includes:
//   - Configuration management (encoding profiles, storage, catalog)
//   - Output formatting (JSON, YAML, table)
//   - Parameter file loading (YAML/JSON)
//   - Terminal styles for tables and key/value blocks
//
// Configuration is stored in ~/.oggvoice/config.yaml. Encoding profiles are
// selected like kubectl contexts: one is current, any can be named with
// --profile.
//
// Example usage:
//
//	cfg, err := cli.LoadConfig("")
//	profile, err := cfg.ResolveProfile("")
//	enc, err := opusenc.NewFromConfig(profile.Encoder)
//
//	cli.Output(stats, cli.OutputOptions{Format: cli.FormatJSON})
package cli
