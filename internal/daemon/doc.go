// Package daemon coordinates the long-running dashvault process and its
// system integration points.
//
// It wires configuration, the catalog store, the job scheduler, the volume
// monitor, and the thumbnail pool into a single lifecycle with flock-based
// locking to prevent multiple instances, and serves the HTTP API that the
// CLI and other consumers talk to.
//
// Keep orchestration logic here: job handlers live in their own packages
// while the daemon focuses on startup, shutdown, and request routing.
package daemon
