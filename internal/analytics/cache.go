// Package analytics keeps the overview analytics fresh without redundant
// fetches and drives the live-stats polling loop.
package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/fentz26/taskflow/internal/models"
	"github.com/fentz26/taskflow/internal/observability"
	"github.com/fentz26/taskflow/internal/store"
)

// DefaultTTL is how long a fetched overview is served without a network call.
const DefaultTTL = 5 * time.Minute

// OverviewFetcher loads the analytics overview from the backend.
type OverviewFetcher interface {
	AnalyticsOverview(ctx context.Context) (*models.AnalyticsOverview, error)
}

// Cache memoizes the analytics overview in the durable store.
type Cache struct {
	fetcher OverviewFetcher
	store   *store.Store
	ttl     time.Duration
	now     func() time.Time
	metrics *observability.Metrics
	logger  *log.Logger

	mu sync.Mutex
}

// CacheOption configures a Cache.
type CacheOption func(*Cache)

// WithTTL sets the freshness window.
func WithTTL(d time.Duration) CacheOption {
	return func(c *Cache) {
		if d > 0 {
			c.ttl = d
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) CacheOption {
	return func(c *Cache) { c.now = now }
}

// WithCacheMetrics counts hits and misses on m.
func WithCacheMetrics(m *observability.Metrics) CacheOption {
	return func(c *Cache) { c.metrics = m }
}

// WithCacheLogger sets the logger.
func WithCacheLogger(l *log.Logger) CacheOption {
	return func(c *Cache) { c.logger = l }
}

// NewCache creates a cache that fetches through f and persists in st.
func NewCache(f OverviewFetcher, st *store.Store, opts ...CacheOption) *Cache {
	c := &Cache{
		fetcher: f,
		store:   st,
		ttl:     DefaultTTL,
		now:     time.Now,
		logger:  log.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the cached overview while it is younger than the TTL and
// fetches a new one otherwise. A failed fetch leaves the cached entry as it
// was and is returned to the caller.
func (c *Cache) Get(ctx context.Context) (*models.AnalyticsOverview, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cached, fetchedAt, err := c.load()
	if err != nil {
		return nil, err
	}
	if cached != nil && c.now().Sub(fetchedAt) < c.ttl {
		c.metrics.CacheLookup("hit")
		return cached, nil
	}
	if cached == nil {
		c.metrics.CacheLookup("miss")
	} else {
		c.metrics.CacheLookup("stale")
	}

	fresh, err := c.fetcher.AnalyticsOverview(ctx)
	if err != nil {
		c.metrics.CacheLookup("error")
		return nil, err
	}

	data, err := json.Marshal(fresh)
	if err != nil {
		return nil, fmt.Errorf("marshal analytics: %w", err)
	}
	if err := c.store.SetMany(map[string]string{
		store.KeyAnalyticsCache:     string(data),
		store.KeyAnalyticsCacheTime: strconv.FormatInt(c.now().UnixMilli(), 10),
	}); err != nil {
		return nil, fmt.Errorf("save analytics cache: %w", err)
	}
	return fresh, nil
}

// Clear drops the cached entry so the next Get fetches.
func (c *Cache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.store.Delete(store.KeyAnalyticsCache, store.KeyAnalyticsCacheTime); err != nil {
		return fmt.Errorf("clear analytics cache: %w", err)
	}
	return nil
}

// load reads the persisted entry. A missing or corrupt pair yields nil.
func (c *Cache) load() (*models.AnalyticsOverview, time.Time, error) {
	value, hasValue, err := c.store.Get(store.KeyAnalyticsCache)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("read analytics cache: %w", err)
	}
	stamp, hasStamp, err := c.store.Get(store.KeyAnalyticsCacheTime)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("read analytics cache time: %w", err)
	}
	if !hasValue || !hasStamp {
		return nil, time.Time{}, nil
	}

	ms, err := strconv.ParseInt(stamp, 10, 64)
	if err != nil {
		c.logger.Printf("Ignoring corrupt analytics cache timestamp %q", stamp)
		return nil, time.Time{}, nil
	}
	var overview models.AnalyticsOverview
	if err := json.Unmarshal([]byte(value), &overview); err != nil {
		c.logger.Printf("Ignoring corrupt analytics cache entry: %v", err)
		return nil, time.Time{}, nil
	}
	return &overview, time.UnixMilli(ms), nil
}
