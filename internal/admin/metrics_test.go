package admin

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-bank/meridian-web/internal/backend"
)

func TestSnapshotCacheExpires(t *testing.T) {
	mr := miniredis.RunT(t)
	cache := NewSnapshotCache(redis.NewClient(&redis.Options{Addr: mr.Addr()}), 30*time.Second)
	ctx := context.Background()

	_, ok, err := cache.Load(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, cache.Store(ctx, MetricsSnapshot{Metrics: backend.DashboardMetrics{LockedUsers: 3}, FetchedAt: at, Source: SourcePoller}))

	snap, ok, err := cache.Load(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, SourceCache, snap.Source)
	assert.Equal(t, 3, snap.Metrics.LockedUsers)
	assert.True(t, at.Equal(snap.FetchedAt))

	mr.FastForward(31 * time.Second)
	_, ok, err = cache.Load(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNilFeedAndCacheAreInert(t *testing.T) {
	var feed *MetricsFeed
	require.NoError(t, feed.Start(context.Background()))
	feed.Stop()
	_, ok := feed.Current(context.Background())
	assert.False(t, ok)

	var cache *SnapshotCache
	require.NoError(t, cache.Store(context.Background(), MetricsSnapshot{}))
	_, ok, err := cache.Load(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFeedWithoutCacheReportsNothingBeforeFirstPoll(t *testing.T) {
	feed := NewMetricsFeed(&fakeAPI{}, "service-token", time.Hour, nil, nil, nil)
	_, ok := feed.Current(context.Background())
	assert.False(t, ok)
}
