package rbac

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helmsmanhq/helmsman/pkg/objects"
)

// countingMembership records how many times the underlying store was hit
type countingMembership struct {
	inner Membership
	calls int
}

func (c *countingMembership) HasRole(ctx context.Context, userID int64, role RoleID) (bool, error) {
	c.calls++
	return c.inner.HasRole(ctx, userID, role)
}

func (c *countingMembership) ObjectRole(role RoleID) Role {
	return c.inner.ObjectRole(role)
}

func TestCachedMembershipServesFromLocal(t *testing.T) {
	g := NewGraph()
	admin := roleID(objects.TypeProject, 10, RoleAdmin)
	g.Grant(admin, 1)

	counted := &countingMembership{inner: g}
	c, err := NewCachedMembership(counted, 16, time.Minute)
	require.NoError(t, err)
	defer c.Close()

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		ok, err := c.HasRole(ctx, 1, admin)
		require.NoError(t, err)
		assert.True(t, ok)
	}
	assert.Equal(t, 1, counted.calls)

	// Negative answers cache too.
	for i := 0; i < 3; i++ {
		ok, err := c.HasRole(ctx, 2, admin)
		require.NoError(t, err)
		assert.False(t, ok)
	}
	assert.Equal(t, 2, counted.calls)
}

type recordingCacheMetrics struct {
	hits, misses map[string]int
}

func newRecordingCacheMetrics() *recordingCacheMetrics {
	return &recordingCacheMetrics{hits: map[string]int{}, misses: map[string]int{}}
}

func (r *recordingCacheMetrics) RecordRoleCacheHit(tier string)  { r.hits[tier]++ }
func (r *recordingCacheMetrics) RecordRoleCacheMiss(tier string) { r.misses[tier]++ }

func TestCachedMembershipRecordsTierOutcomes(t *testing.T) {
	g := NewGraph()
	admin := roleID(objects.TypeProject, 10, RoleAdmin)
	g.Grant(admin, 1)

	rec := newRecordingCacheMetrics()
	c, err := NewCachedMembership(g, 16, time.Minute, WithCacheMetrics(rec))
	require.NoError(t, err)
	defer c.Close()

	ctx := context.Background()
	_, err = c.HasRole(ctx, 1, admin)
	require.NoError(t, err)
	_, err = c.HasRole(ctx, 1, admin)
	require.NoError(t, err)

	assert.Equal(t, 1, rec.misses["local"])
	assert.Equal(t, 1, rec.hits["local"])
}

func TestCachedMembershipExpiry(t *testing.T) {
	g := NewGraph()
	admin := roleID(objects.TypeProject, 10, RoleAdmin)

	counted := &countingMembership{inner: g}
	c, err := NewCachedMembership(counted, 16, 10*time.Millisecond)
	require.NoError(t, err)
	defer c.Close()

	ctx := context.Background()
	ok, err := c.HasRole(ctx, 1, admin)
	require.NoError(t, err)
	assert.False(t, ok)

	// The grant lands after the cached denial expires.
	g.Grant(admin, 1)
	assert.Eventually(t, func() bool {
		ok, err := c.HasRole(ctx, 1, admin)
		return err == nil && ok
	}, time.Second, 10*time.Millisecond)
}

func TestCachedMembershipInvalidateUser(t *testing.T) {
	g := NewGraph()
	admin := roleID(objects.TypeProject, 10, RoleAdmin)

	c, err := NewCachedMembership(g, 16, time.Hour)
	require.NoError(t, err)
	defer c.Close()

	ctx := context.Background()
	ok, err := c.HasRole(ctx, 1, admin)
	require.NoError(t, err)
	assert.False(t, ok)

	g.Grant(admin, 1)

	// Still the stale denial.
	ok, err = c.HasRole(ctx, 1, admin)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.InvalidateUser(ctx, 1))
	ok, err = c.HasRole(ctx, 1, admin)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCachedMembershipSharedRedisTier(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	g := NewGraph()
	admin := roleID(objects.TypeProject, 10, RoleAdmin)
	g.Grant(admin, 1)

	counted := &countingMembership{inner: g}
	c1, err := NewCachedMembership(counted, 16, time.Minute, WithRedis(client))
	require.NoError(t, err)
	defer c1.Close()

	ctx := context.Background()
	ok, err := c1.HasRole(ctx, 1, admin)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, counted.calls)

	// A second process with a cold local cache answers from Redis.
	c2, err := NewCachedMembership(counted, 16, time.Minute, WithRedis(client))
	require.NoError(t, err)
	defer c2.Close()

	ok, err = c2.HasRole(ctx, 1, admin)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, counted.calls)
}

func TestCachedMembershipRedisFailureDegrades(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	g := NewGraph()
	admin := roleID(objects.TypeProject, 10, RoleAdmin)
	g.Grant(admin, 1)

	c, err := NewCachedMembership(g, 16, time.Minute, WithRedis(client))
	require.NoError(t, err)
	defer c.Close()

	mr.Close()

	ok, err := c.HasRole(context.Background(), 1, admin)
	require.NoError(t, err)
	assert.True(t, ok)
}
