package rbac

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/robfig/cron/v3"
)

// CachedMembership layers caching over any Membership. Lookups go
// in-process LRU first, then the optional shared Redis cache, then the
// underlying store. Cached answers may be momentarily stale; the
// access layer tolerates that. A Redis failure degrades to the
// underlying store rather than failing the decision.
type CachedMembership struct {
	inner   Membership
	local   *lru.Cache[string, cachedAnswer]
	redis   *redis.Client
	ttl     time.Duration
	cron    *cron.Cron
	metrics CacheMetrics
}

// CacheMetrics receives hit/miss outcomes per cache tier
type CacheMetrics interface {
	RecordRoleCacheHit(tier string)
	RecordRoleCacheMiss(tier string)
}

type nopCacheMetrics struct{}

func (nopCacheMetrics) RecordRoleCacheHit(string)  {}
func (nopCacheMetrics) RecordRoleCacheMiss(string) {}

type cachedAnswer struct {
	allowed   bool
	expiresAt time.Time
}

// CacheOption configures a CachedMembership
type CacheOption func(*CachedMembership)

// WithRedis adds a shared Redis cache layer
func WithRedis(client *redis.Client) CacheOption {
	return func(c *CachedMembership) {
		c.redis = client
	}
}

// WithCacheMetrics attaches a hit/miss recorder
func WithCacheMetrics(m CacheMetrics) CacheOption {
	return func(c *CachedMembership) {
		c.metrics = m
	}
}

// NewCachedMembership wraps inner with an LRU of the given size and
// entry TTL. A background sweep evicts expired local entries once a
// minute so long-idle processes do not pin stale answers.
func NewCachedMembership(inner Membership, size int, ttl time.Duration, opts ...CacheOption) (*CachedMembership, error) {
	local, err := lru.New[string, cachedAnswer](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create membership cache: %w", err)
	}
	c := &CachedMembership{
		inner:   inner,
		local:   local,
		ttl:     ttl,
		cron:    cron.New(),
		metrics: nopCacheMetrics{},
	}
	for _, opt := range opts {
		opt(c)
	}
	if _, err := c.cron.AddFunc("@every 1m", c.sweep); err != nil {
		return nil, fmt.Errorf("failed to schedule cache sweep: %w", err)
	}
	c.cron.Start()
	return c, nil
}

// Close stops the background sweep
func (c *CachedMembership) Close() {
	c.cron.Stop()
}

// HasRole answers from cache when possible
func (c *CachedMembership) HasRole(ctx context.Context, userID int64, role RoleID) (bool, error) {
	key := cacheKey(userID, role)

	if answer, ok := c.local.Get(key); ok && time.Now().Before(answer.expiresAt) {
		c.metrics.RecordRoleCacheHit("local")
		return answer.allowed, nil
	}
	c.metrics.RecordRoleCacheMiss("local")

	if c.redis != nil {
		val, err := c.redis.Get(ctx, key).Result()
		if err == nil {
			c.metrics.RecordRoleCacheHit("redis")
			allowed := val == "1"
			c.local.Add(key, cachedAnswer{allowed: allowed, expiresAt: time.Now().Add(c.ttl)})
			return allowed, nil
		}
		// redis.Nil is a miss; anything else degrades to the store
		c.metrics.RecordRoleCacheMiss("redis")
	}

	allowed, err := c.inner.HasRole(ctx, userID, role)
	if err != nil {
		return false, err
	}

	c.local.Add(key, cachedAnswer{allowed: allowed, expiresAt: time.Now().Add(c.ttl)})
	if c.redis != nil {
		val := "0"
		if allowed {
			val = "1"
		}
		c.redis.Set(ctx, key, val, c.ttl)
	}
	return allowed, nil
}

// ObjectRole resolves a role id to a predicate that goes through the cache
func (c *CachedMembership) ObjectRole(role RoleID) Role {
	return cachedRole{c: c, id: role}
}

// InvalidateUser drops every cached answer for the user. Called after
// grants or revocations so the next decision sees fresh state.
func (c *CachedMembership) InvalidateUser(ctx context.Context, userID int64) error {
	prefix := fmt.Sprintf("rbac:%d:", userID)
	for _, key := range c.local.Keys() {
		if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
			c.local.Remove(key)
		}
	}
	if c.redis != nil {
		iter := c.redis.Scan(ctx, 0, prefix+"*", 0).Iterator()
		for iter.Next(ctx) {
			c.redis.Del(ctx, iter.Val())
		}
		if err := iter.Err(); err != nil {
			return fmt.Errorf("failed to invalidate shared cache: %w", err)
		}
	}
	return nil
}

func (c *CachedMembership) sweep() {
	now := time.Now()
	for _, key := range c.local.Keys() {
		if answer, ok := c.local.Peek(key); ok && now.After(answer.expiresAt) {
			c.local.Remove(key)
		}
	}
}

func cacheKey(userID int64, role RoleID) string {
	return fmt.Sprintf("rbac:%d:%s:%d:%s", userID, role.ObjectType, role.ObjectID, role.Name)
}

type cachedRole struct {
	c  *CachedMembership
	id RoleID
}

func (r cachedRole) ContainsUser(ctx context.Context, userID int64) (bool, error) {
	return r.c.HasRole(ctx, userID, r.id)
}

var _ Membership = (*CachedMembership)(nil)
