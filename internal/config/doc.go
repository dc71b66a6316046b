// Package config holds the crawler's runtime configuration: defaults,
// the flat Config struct populated from CLI flags and an optional YAML
// file, validation, and loaders for keyword and seed files.
package config
