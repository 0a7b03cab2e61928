// Package config loads, normalizes, and validates dashvault's TOML
// configuration. Defaults cover a usable single-machine install; a config
// file only needs to override what differs.
package config
