package ingest

import (
	"context"

	"dashvault/internal/catalog"
)

// progressTracker commits batch progress at a bounded cadence so concurrent
// API reads are not starved by a write per item. Each commit persists the
// per-item outcome accumulated so far, so a poller sees which items landed
// mid-batch. The final flush always lands regardless of cadence.
type progressTracker struct {
	store   *catalog.Store
	jobID   int64
	total   int
	every   int
	outcome *catalog.BatchOutcome

	done        int
	sinceCommit int
}

func newProgressTracker(store *catalog.Store, jobID int64, total, every int, outcome *catalog.BatchOutcome) *progressTracker {
	if every <= 0 {
		every = 1
	}
	return &progressTracker{store: store, jobID: jobID, total: total, every: every, outcome: outcome}
}

func (p *progressTracker) advance(ctx context.Context, message string) {
	p.done++
	p.sinceCommit++
	if p.sinceCommit < p.every {
		return
	}
	p.commit(ctx, message)
}

func (p *progressTracker) flush(ctx context.Context, message string) {
	p.commit(ctx, message)
}

func (p *progressTracker) commit(ctx context.Context, message string) {
	p.sinceCommit = 0
	percent := float64(100)
	if p.total > 0 {
		percent = float64(p.done) / float64(p.total) * 100
	}
	// Progress is advisory; a dropped update is corrected by the next one.
	_ = p.store.UpdateBatchProgress(ctx, p.jobID, percent, message, *p.outcome)
}
