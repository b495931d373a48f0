// Package config loads, normalizes, and validates repertoire configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML or YAML files, and honours the REPERTOIRE_ROOT
// environment override. The Config type centralizes the managed root, the
// configured sources, and the downloader stages so the CLI can discover every
// knob in one pass.
//
// Configuration errors are fatal and surface before any filesystem mutation.
package config
