package audit

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// PruneClock gates pruning to once per rolling interval per organization.
type PruneClock interface {
	// TryAcquire reports whether a prune run is due for the org and, if so,
	// claims the current interval window.
	TryAcquire(ctx context.Context, orgID string, interval time.Duration) (bool, error)
}

// redisPruneClock stores the window server-side so concurrent admin sessions
// share one pruning clock.
type redisPruneClock struct {
	client *redis.Client
}

func NewRedisPruneClock(client *redis.Client) PruneClock {
	return &redisPruneClock{client: client}
}

func (c *redisPruneClock) TryAcquire(ctx context.Context, orgID string, interval time.Duration) (bool, error) {
	return c.client.SetNX(ctx, "audit:prune:"+orgID, nowFunc().UTC().Format(time.RFC3339), interval).Result()
}

// localPruneClock keeps the window in-process. Each node has its own clock,
// same as the original per-session behavior; acceptable for single-node
// deployments without redis.
type localPruneClock struct {
	mu   sync.Mutex
	last map[string]time.Time
}

func NewLocalPruneClock() PruneClock {
	return &localPruneClock{last: make(map[string]time.Time)}
}

func (c *localPruneClock) TryAcquire(_ context.Context, orgID string, interval time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := nowFunc().UTC()
	if last, ok := c.last[orgID]; ok && now.Sub(last) < interval {
		return false, nil
	}
	c.last[orgID] = now
	return true, nil
}
