// Package pgroupcache caches PGroup name to id lookups in Redis.
package pgroupcache

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"donormatch/internal/matching/ports"
)

const (
	DefaultKey = "donormatch:pgroup_ids"
	DefaultTTL = 24 * time.Hour
)

var _ ports.PGroupRepository = (*Cache)(nil)

// Client is the subset of go-redis the cache uses. *redis.Client satisfies it.
type Client interface {
	HMGet(ctx context.Context, key string, fields ...string) *redis.SliceCmd
	HSet(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
}

// Cache is a read-through PGroupRepository. Ids are kept in one Redis hash
// keyed by PGroup name. Unknown names are not cached, so PGroups added to the
// backing store become visible on the next lookup. Redis failures fall back
// to the backing repository, and repeated failures stop Redis calls for a
// cooldown period.
type Cache struct {
	client  Client
	backing ports.PGroupRepository
	key     string
	ttl     time.Duration
	logger  *slog.Logger
	breaker *breaker
}

type Option func(*Cache)

func WithKey(key string) Option {
	return func(c *Cache) {
		if key != "" {
			c.key = key
		}
	}
}

// WithTTL sets the hash expiry, refreshed on every write. Zero disables expiry.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		c.ttl = ttl
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) {
		c.logger = logger
	}
}

// WithBreaker sets how many consecutive Redis failures stop cache calls, and
// for how long.
func WithBreaker(threshold int, cooldown time.Duration) Option {
	return func(c *Cache) {
		c.breaker = newBreaker(threshold, cooldown)
	}
}

func New(client Client, backing ports.PGroupRepository, opts ...Option) (*Cache, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if backing == nil {
		return nil, fmt.Errorf("backing pgroup repository is required")
	}
	c := &Cache{
		client:  client,
		backing: backing,
		key:     DefaultKey,
		ttl:     DefaultTTL,
		logger:  slog.Default(),
		breaker: newBreaker(0, 0),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// GetPGroupIDs serves names from Redis and loads the rest from the backing
// repository. Backing errors are returned unmodified.
func (c *Cache) GetPGroupIDs(ctx context.Context, names []string) (map[string]int, error) {
	ids := make(map[string]int, len(names))
	if len(names) == 0 {
		return ids, nil
	}

	misses := c.readCached(ctx, names, ids)
	if len(misses) == 0 {
		return ids, nil
	}

	found, err := c.backing.GetPGroupIDs(ctx, misses)
	if err != nil {
		return nil, err
	}
	for name, id := range found {
		ids[name] = id
	}
	c.writeCached(ctx, found)
	return ids, nil
}

func (c *Cache) readCached(ctx context.Context, names []string, ids map[string]int) []string {
	if !c.breaker.allow() {
		return names
	}
	values, err := c.client.HMGet(ctx, c.key, names...).Result()
	if err != nil {
		c.recordFailure(ctx, "read", err)
		return names
	}
	c.breaker.success()

	var misses []string
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			misses = append(misses, names[i])
			continue
		}
		id, err := strconv.Atoi(raw)
		if err != nil {
			c.logger.WarnContext(ctx, "pgroup cache holds non-numeric id", "pgroup", names[i])
			misses = append(misses, names[i])
			continue
		}
		ids[names[i]] = id
	}
	return misses
}

func (c *Cache) writeCached(ctx context.Context, found map[string]int) {
	if len(found) == 0 || !c.breaker.allow() {
		return
	}
	fields := make([]interface{}, 0, len(found)*2)
	for name, id := range found {
		fields = append(fields, name, strconv.Itoa(id))
	}
	if err := c.client.HSet(ctx, c.key, fields...).Err(); err != nil {
		c.recordFailure(ctx, "write", err)
		return
	}
	if c.ttl > 0 {
		if err := c.client.Expire(ctx, c.key, c.ttl).Err(); err != nil {
			c.recordFailure(ctx, "expire", err)
			return
		}
	}
	c.breaker.success()
}

func (c *Cache) recordFailure(ctx context.Context, op string, err error) {
	opened := c.breaker.failure()
	c.logger.WarnContext(ctx, "pgroup cache "+op+" failed", "error", err, "breaker_open", opened)
}
