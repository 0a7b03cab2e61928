package volumes

import (
	"context"
	"sync"
	"time"
)

// Lister produces the current block-device snapshot.
type Lister func(ctx context.Context) ([]Volume, error)

// Cache memoizes a Lister behind a TTL. lsblk is cheap but not free, and the
// HTTP layer may resolve volumes on every request; a short TTL keeps those
// lookups off the exec path while staying fresh enough for card swaps.
type Cache struct {
	ttl  time.Duration
	list Lister

	mu      sync.Mutex
	volumes []Volume
	fetched time.Time
}

// NewCache builds a cache around the provided lister.
func NewCache(ttl time.Duration, list Lister) *Cache {
	return &Cache{ttl: ttl, list: list}
}

// Snapshot returns the cached volume list, refreshing it when stale.
func (c *Cache) Snapshot(ctx context.Context) ([]Volume, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.volumes != nil && time.Since(c.fetched) < c.ttl {
		return c.snapshotLocked(), nil
	}
	vols, err := c.list(ctx)
	if err != nil {
		return nil, err
	}
	c.volumes = vols
	c.fetched = time.Now()
	return c.snapshotLocked(), nil
}

func (c *Cache) snapshotLocked() []Volume {
	cp := make([]Volume, len(c.volumes))
	copy(cp, c.volumes)
	return cp
}

// Resolve returns the volume mounted at the given path.
func (c *Cache) Resolve(ctx context.Context, mountpoint string) (Volume, error) {
	vols, err := c.Snapshot(ctx)
	if err != nil {
		return Volume{}, err
	}
	return FindByMountpoint(vols, mountpoint)
}

// Invalidate drops the cached snapshot so the next lookup refreshes.
// Called on udev events: a mount change makes the cache stale immediately.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.volumes = nil
	c.fetched = time.Time{}
}
