// Package logging builds slog loggers with console and JSON output and
// provides the attribute helpers and standardized field keys used across
// dashvault components.
package logging
