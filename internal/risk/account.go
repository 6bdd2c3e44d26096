package risk

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/yanun0323/logs"
)

// AccountSnapshot is the cached broker account view used by risk checks.
type AccountSnapshot struct {
	Balance decimal.Decimal
	AsOf    time.Time
}

// AccountSource fetches the account state from the broker collaborator.
type AccountSource interface {
	Account(ctx context.Context) (AccountSnapshot, error)
}

// AccountCache refreshes the account snapshot on a fixed interval so risk
// checks never block on network I/O.
type AccountCache struct {
	mu   sync.RWMutex
	snap AccountSnapshot
}

// NewAccountCache seeds the cache with an initial snapshot.
func NewAccountCache(initial AccountSnapshot) *AccountCache {
	return &AccountCache{snap: initial}
}

// Get returns the cached snapshot.
func (c *AccountCache) Get() AccountSnapshot {
	c.mu.RLock()
	snap := c.snap
	c.mu.RUnlock()
	return snap
}

// Set replaces the cached snapshot.
func (c *AccountCache) Set(snap AccountSnapshot) {
	c.mu.Lock()
	c.snap = snap
	c.mu.Unlock()
}

// Run refreshes the cache from the source until the context is done. Fetch
// failures keep the previous snapshot.
func (c *AccountCache) Run(ctx context.Context, source AccountSource, interval time.Duration) {
	if source == nil || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snap, err := source.Account(ctx)
			if err != nil {
				logs.Warnf("account refresh failed, keeping cached snapshot, err: %+v", err)
				continue
			}
			snap.AsOf = time.Now()
			c.Set(snap)
		}
	}
}
