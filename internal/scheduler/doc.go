// Package scheduler drives job processing against the catalog's job table.
//
// Two lanes poll independently: the foreground lane runs scans, imports, and
// probes the user is waiting on; the background lane runs best-effort
// thumbnail batches. The lanes claim from disjoint type sets, so they never
// compete for a job. Claiming is the only concurrency primitive: a
// conditional queued-to-running transition that exactly one claimer wins.
//
// On startup the scheduler recovers jobs interrupted by a crash, and a
// periodic sweep requeues foreground jobs stuck in running past the staleness
// threshold.
package scheduler
