package marketdata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// QuoteCache memoizes option quotes per (contract, date). The contract
// selector probes many candidates per decision; caching keeps that to one
// port call per candidate per day.
type QuoteCache interface {
	Get(ctx context.Context, occ string, day time.Time) (Quote, bool, bool) // quote, present, hit
	Put(ctx context.Context, occ string, day time.Time, q Quote, present bool)
}

// MemoryCache is the in-process cache used by backtests.
type MemoryCache struct {
	entries map[string]cachedQuote
}

type cachedQuote struct {
	q       Quote
	present bool
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]cachedQuote)}
}

func (c *MemoryCache) Get(_ context.Context, occ string, day time.Time) (Quote, bool, bool) {
	e, hit := c.entries[occ+"|"+DateKey(day)]
	return e.q, e.present, hit
}

func (c *MemoryCache) Put(_ context.Context, occ string, day time.Time, q Quote, present bool) {
	c.entries[occ+"|"+DateKey(day)] = cachedQuote{q: q, present: present}
}

// RedisCache shares quote lookups across live-session restarts. Absent
// quotes are cached too, as an empty payload, so repeated probes of an
// illiquid strike do not hammer the data API.
type RedisCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisCache(addr string, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisCache{
		rdb: redis.NewClient(&redis.Options{Addr: addr}),
		ttl: ttl,
	}
}

// Ping verifies connectivity at startup.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

func (c *RedisCache) key(occ string, day time.Time) string {
	return fmt.Sprintf("optquote:%s:%s", occ, DateKey(day))
}

func (c *RedisCache) Get(ctx context.Context, occ string, day time.Time) (Quote, bool, bool) {
	raw, err := c.rdb.Get(ctx, c.key(occ, day)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Quote{}, false, false
	}
	if err != nil {
		// Degrade to a miss on cache failure.
		return Quote{}, false, false
	}
	if len(raw) == 0 {
		return Quote{}, false, true
	}
	var q Quote
	if err := json.Unmarshal(raw, &q); err != nil {
		return Quote{}, false, false
	}
	return q, true, true
}

func (c *RedisCache) Put(ctx context.Context, occ string, day time.Time, q Quote, present bool) {
	var payload []byte
	if present {
		payload, _ = json.Marshal(q)
	}
	c.rdb.Set(ctx, c.key(occ, day), payload, c.ttl)
}

// CachedQuotes wraps a Port with a QuoteCache for option lookups. Daily
// underlying bars pass through untouched.
type CachedQuotes struct {
	Port
	cache QuoteCache
}

func WithQuoteCache(p Port, c QuoteCache) *CachedQuotes {
	return &CachedQuotes{Port: p, cache: c}
}

func (c *CachedQuotes) GetOptionQuote(ctx context.Context, occ string, day time.Time) (Quote, bool, error) {
	if q, present, hit := c.cache.Get(ctx, occ, day); hit {
		return q, present, nil
	}
	q, present, err := c.Port.GetOptionQuote(ctx, occ, day)
	if err != nil {
		return Quote{}, false, err
	}
	c.cache.Put(ctx, occ, day, q, present)
	return q, present, nil
}
