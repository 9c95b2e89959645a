package batch

import (
	"context"
	"sort"
	"strings"
	"sync"

	r "github.com/invertedv/rca"
	"github.com/jellydator/ttlcache/v3"
	"golang.org/x/sync/singleflight"
)

// DomainLoader loads the domain KPIs of a kpi mapping and set of geographies.
type DomainLoader func(ctx context.Context, kpiMapping string, geos []string) ([]r.DomainRecord, error)

// DomainCache shares domain KPI loads between managers with the same kpi mapping and geos.
// Entries never expire within a run. Concurrent requests for one key load once; errors are
// not cached.
type DomainCache struct {
	cache   *ttlcache.Cache[string, []r.DomainRecord]
	cacheMu sync.RWMutex

	group   singleflight.Group
	metrics *Metrics
}

func NewDomainCache(metrics *Metrics) *DomainCache {
	return &DomainCache{
		cache: ttlcache.New(
			ttlcache.WithTTL[string, []r.DomainRecord](ttlcache.NoTTL),
		),
		metrics: metrics,
	}
}

// CacheKey is the kpi mapping joined with the sorted geos. The order of geos doesn't matter.
func CacheKey(kpiMapping string, geos []string) string {
	sorted := append([]string{}, geos...)
	sort.Strings(sorted)

	return kpiMapping + "|" + strings.Join(sorted, ",")
}

// Get returns the cached records for the key, or loads them with load. hit reports whether
// this caller was served without a load of its own.
func (c *DomainCache) Get(ctx context.Context, kpiMapping string, geos []string, load DomainLoader) (recs []r.DomainRecord, hit bool, err error) {
	key := CacheKey(kpiMapping, geos)
	if recs, ok := c.get(key); ok {
		c.hit()
		return recs, true, nil
	}

	loaded := false
	v, err, _ := c.group.Do(key, func() (any, error) {
		if recs, ok := c.get(key); ok {
			return recs, nil
		}

		recs, err := load(ctx, kpiMapping, geos)
		if err != nil {
			return nil, err
		}

		c.set(key, recs)
		loaded = true

		return recs, nil
	})
	if err != nil {
		return nil, false, err
	}

	if loaded {
		if c.metrics != nil {
			c.metrics.CacheMisses.Inc()
		}
	} else {
		c.hit()
	}

	return v.([]r.DomainRecord), !loaded, nil
}

func (c *DomainCache) get(key string) ([]r.DomainRecord, bool) {
	c.cacheMu.RLock()
	defer c.cacheMu.RUnlock()
	cached := c.cache.Get(key)
	if cached == nil {
		return nil, false
	}

	return cached.Value(), true
}

func (c *DomainCache) set(key string, recs []r.DomainRecord) {
	c.cacheMu.Lock()
	defer c.cacheMu.Unlock()
	c.cache.Set(key, recs, ttlcache.NoTTL)
}

func (c *DomainCache) hit() {
	if c.metrics != nil {
		c.metrics.CacheHits.Inc()
	}
}

// Len is the number of keys held.
func (c *DomainCache) Len() int {
	c.cacheMu.RLock()
	defer c.cacheMu.RUnlock()

	return c.cache.Len()
}
