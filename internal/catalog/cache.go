package catalog

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/dgraph-io/ristretto/v2"
	"golang.org/x/sync/singleflight"
)

// Cached memoizes Details lookups for a TTL and collapses concurrent lookups
// of the same id into one upstream call. Search results are not cached.
// Not-found answers are not cached either, so a movie added upstream shows
// up without waiting for the TTL.
type Cached struct {
	next  Client
	ttl   time.Duration
	cache *ristretto.Cache[int64, *Details]
	group singleflight.Group
	// lookupTimeout bounds a shared upstream lookup, which no single
	// caller's context may cancel.
	lookupTimeout time.Duration
}

const defaultLookupTimeout = 30 * time.Second

// NewCached wraps next. maxItems bounds the number of cached records.
func NewCached(next Client, ttl time.Duration, maxItems int64) (*Cached, error) {
	if maxItems <= 0 {
		maxItems = 1000
	}
	cache, err := ristretto.NewCache(&ristretto.Config[int64, *Details]{
		NumCounters:        maxItems * 10,
		MaxCost:            maxItems,
		BufferItems:        64,
		// Cost is an item count, not bytes.
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("catalog: create cache: %w", err)
	}
	return &Cached{next: next, ttl: ttl, cache: cache, lookupTimeout: defaultLookupTimeout}, nil
}

// Close releases the cache's background goroutines.
func (c *Cached) Close() {
	c.cache.Close()
}

// Search implements Client.
func (c *Cached) Search(ctx context.Context, query string, page int) (*SearchPage, error) {
	return c.next.Search(ctx, query, page)
}

// Details implements Client. Concurrent callers share one upstream lookup;
// a caller that gives up gets its own context error while the lookup keeps
// running for the others.
func (c *Cached) Details(ctx context.Context, id int64) (*Details, error) {
	if d, ok := c.cache.Get(id); ok {
		return d, nil
	}

	ch := c.group.DoChan(strconv.FormatInt(id, 10), func() (any, error) {
		lookupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.lookupTimeout)
		defer cancel()
		d, err := c.next.Details(lookupCtx, id)
		if err != nil {
			return nil, err
		}
		c.cache.SetWithTTL(id, d, 1, c.ttl)
		return d, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Details), nil
	}
}

// wait blocks until buffered writes are applied. Tests use it to observe
// cache hits deterministically.
func (c *Cached) wait() {
	c.cache.Wait()
}
