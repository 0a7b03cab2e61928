package thumbs

import (
	"context"
	"log/slog"
	"sync"

	"dashvault/internal/logging"
)

// Pool runs thumbnail generation off the request path. HTTP handlers submit
// work and respond immediately; a fixed set of workers drains the queue so a
// slow encode never holds a request or a database connection open.
type Pool struct {
	cache  *Cache
	logger *slog.Logger

	queue  chan string
	wg     sync.WaitGroup
	cancel context.CancelFunc

	mu      sync.Mutex
	started bool
}

func NewPool(cache *Cache, workers, queueSize int, logger *slog.Logger) *Pool {
	if logger == nil {
		logger = logging.NewNop()
	}
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = 1
	}
	pool := &Pool{
		cache:  cache,
		logger: logging.NewComponentLogger(logger, "thumb-pool"),
		queue:  make(chan string, queueSize),
	}
	pool.start(workers)
	return pool
}

func (p *Pool) start(workers int) {
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.started = true
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker(ctx)
	}
}

func (p *Pool) worker(ctx context.Context) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case sourcePath, ok := <-p.queue:
			if !ok {
				return
			}
			if _, _, err := p.cache.Ensure(ctx, sourcePath); err != nil {
				p.logger.Warn("background thumbnail failed",
					logging.String("source", sourcePath),
					logging.Error(err),
					logging.String(logging.FieldEventType, "thumb_pool_failed"),
				)
			}
		}
	}
}

// Submit queues a source for background generation. Returns false when the
// queue is full or the pool is stopped; the caller simply tries again on the
// next request.
func (p *Pool) Submit(sourcePath string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.started {
		return false
	}
	select {
	case p.queue <- sourcePath:
		return true
	default:
		return false
	}
}

// Stop cancels the workers and waits for in-flight encodes to finish.
func (p *Pool) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	p.mu.Unlock()

	p.cancel()
	p.wg.Wait()
}
