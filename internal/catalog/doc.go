// Package catalog persists dashvault's durable state in SQLite: the job
// queue, known card devices with their file inventories, and the archive of
// imported clips.
//
// The Store manages database connections, schema initialization, job claim
// and lifecycle transitions, interrupted-job recovery, and the device/clip
// tables the handlers coordinate through. Claiming a job is a compare-and-set
// on its state so concurrent lanes never run the same job twice.
//
// Treat this package as the single source of truth for queue and archive
// semantics; when you add new job types or columns, update schema.sql and
// bump schemaVersion.
package catalog
