// Package main hosts the dashvault CLI entrypoint and command graph.
//
// The Cobra-based command tree covers catalog inspection (jobs, devices,
// clips, status), work triggers (scan, import), configuration scaffolding,
// and running the daemon in the foreground. Commands operate directly on
// the shared SQLite catalog, so triggers work whether or not the daemon is
// running; queued jobs are picked up on its next poll tick.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
package main
