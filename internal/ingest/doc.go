// Package ingest implements the job handlers behind the scheduler: card
// scans, import batches, probe batches, and thumbnail batches.
//
// Handlers follow a shared failure discipline: a malformed payload aborts
// the whole job, a missing card signals retry-later, and an individual bad
// file is recorded in the batch outcome without stopping the remaining
// items.
package ingest
