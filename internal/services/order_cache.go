package services

import (
	"context"
	"encoding/json"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"
)

const (
	defaultOrderCachePrefix = "order:"
	defaultOrderCacheTTL    = 10 * time.Minute
	defaultOrderLoadTimeout = 5 * time.Second
)

// OrderCacheDeps configures the cache-aside layer.
type OrderCacheDeps struct {
	// Store is optional; without it every lookup goes to the loader.
	Store     CacheStore
	TTL       time.Duration
	KeyPrefix string
	// LoadTimeout bounds a shared loader call, which outlives the caller that started it.
	LoadTimeout time.Duration
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

// OrderCache is a read-through cache of order projections. The store stays authoritative: cached
// values are only ever returned to readers, never used to rebuild an order for writing.
type OrderCache struct {
	store       CacheStore
	ttl         time.Duration
	loadTimeout time.Duration
	prefix      string
	logger      func(context.Context, string, map[string]any)
	group       singleflight.Group
	// epoch advances on every invalidation so loads that raced a write do not repopulate.
	epoch atomic.Uint64
}

// NewOrderCache builds the cache-aside layer.
func NewOrderCache(deps OrderCacheDeps) *OrderCache {
	ttl := deps.TTL
	if ttl <= 0 {
		ttl = defaultOrderCacheTTL
	}
	prefix := deps.KeyPrefix
	if strings.TrimSpace(prefix) == "" {
		prefix = defaultOrderCachePrefix
	}
	loadTimeout := deps.LoadTimeout
	if loadTimeout <= 0 {
		loadTimeout = defaultOrderLoadTimeout
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &OrderCache{
		store:       deps.Store,
		ttl:         ttl,
		loadTimeout: loadTimeout,
		prefix:      prefix,
		logger:      logger,
	}
}

// Key returns the cache key for the order.
func (c *OrderCache) Key(orderID string) string {
	return c.prefix + orderID
}

// Get returns the cached projection. Misses, decode failures and cache outages all report false.
func (c *OrderCache) Get(ctx context.Context, orderID string) (OrderView, bool) {
	if c == nil || c.store == nil {
		return OrderView{}, false
	}
	key := c.Key(orderID)
	data, ok, err := c.store.Get(ctx, key)
	if err != nil {
		c.logger(ctx, "order.cache.get.failed", map[string]any{"key": key, "error": err.Error()})
		return OrderView{}, false
	}
	if !ok {
		return OrderView{}, false
	}
	var view OrderView
	if err := json.Unmarshal(data, &view); err != nil {
		c.logger(ctx, "order.cache.decode.failed", map[string]any{"key": key, "error": err.Error()})
		return OrderView{}, false
	}
	return view, true
}

// Put stores the projection with the configured TTL. Failures are logged only.
func (c *OrderCache) Put(ctx context.Context, view OrderView) {
	if c == nil || c.store == nil || view.ID == "" {
		return
	}
	key := c.Key(view.ID)
	data, err := json.Marshal(view)
	if err != nil {
		c.logger(ctx, "order.cache.encode.failed", map[string]any{"key": key, "error": err.Error()})
		return
	}
	if err := c.store.Set(ctx, key, data, c.ttl); err != nil {
		c.logger(ctx, "order.cache.set.failed", map[string]any{"key": key, "error": err.Error()})
	}
}

// Invalidate drops the cached projection. Call it only after the store write has committed.
func (c *OrderCache) Invalidate(ctx context.Context, orderID string) {
	if c == nil {
		return
	}
	key := c.Key(orderID)
	c.epoch.Add(1)
	c.group.Forget(key)
	c.drop(ctx, key)
}

// Load returns the cached projection or calls loader, populating the cache with its result.
// Concurrent misses for the same order share one loader call. The shared call ignores the
// cancellation of whichever caller started it; each caller still stops waiting on its own ctx.
func (c *OrderCache) Load(ctx context.Context, orderID string, loader func(context.Context) (OrderView, error)) (OrderView, error) {
	if view, ok := c.Get(ctx, orderID); ok {
		return view, nil
	}
	if c == nil {
		return loader(ctx)
	}

	key := c.Key(orderID)
	ch := c.group.DoChan(key, func() (any, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.loadTimeout)
		defer cancel()
		if view, ok := c.Get(loadCtx, orderID); ok {
			return view, nil
		}
		epoch := c.epoch.Load()
		view, err := loader(loadCtx)
		if err != nil {
			return OrderView{}, err
		}
		if c.epoch.Load() == epoch {
			c.Put(loadCtx, view)
			// An invalidation that landed between the check and the write must win.
			if c.epoch.Load() != epoch {
				c.drop(loadCtx, key)
			}
		}
		return view, nil
	})

	select {
	case <-ctx.Done():
		return OrderView{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return OrderView{}, res.Err
		}
		return res.Val.(OrderView), nil
	}
}

func (c *OrderCache) drop(ctx context.Context, key string) {
	if c.store == nil {
		return
	}
	if err := c.store.Delete(ctx, key); err != nil {
		c.logger(ctx, "order.cache.delete.failed", map[string]any{"key": key, "error": err.Error()})
	}
}
