// Package services defines shared utilities consumed by the job handlers
// and external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp job IDs, handler names, and correlation
//     identifiers for logging and tracing.
//   - Structured error markers plus the Wrap helper that keep failure
//     classification (retriable vs permanent) consistent across handlers.
//
// Use these helpers when wiring new handler logic so operational behaviour
// (error handling, observability, retries) stays uniform across the pipeline.
package services
