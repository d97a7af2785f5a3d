package admin

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/meridian-bank/meridian-web/internal/backend"
	"github.com/meridian-bank/meridian-web/internal/poller"
)

const snapshotKey = "meridian:admin:metrics"

// Snapshot sources reported to the dashboard.
const (
	SourcePoller = "poller"
	SourceCache  = "cache"
	SourceLive   = "live"
)

// MetricsSnapshot is a dashboard metrics reading with its provenance.
type MetricsSnapshot struct {
	Metrics   backend.DashboardMetrics `json:"metrics"`
	FetchedAt time.Time                `json:"fetchedAt"`
	Source    string                   `json:"source"`
}

// SnapshotCache shares the latest metrics snapshot between instances through
// Redis.
type SnapshotCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewSnapshotCache instantiates the cache helper.
func NewSnapshotCache(client *redis.Client, ttl time.Duration) *SnapshotCache {
	return &SnapshotCache{client: client, ttl: ttl}
}

// Store writes snap, replacing any previous snapshot.
func (c *SnapshotCache) Store(ctx context.Context, snap MetricsSnapshot) error {
	if c == nil || c.client == nil {
		return nil
	}
	raw, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, snapshotKey, raw, c.ttl).Err()
}

// Load returns the cached snapshot, if any.
func (c *SnapshotCache) Load(ctx context.Context) (MetricsSnapshot, bool, error) {
	if c == nil || c.client == nil {
		return MetricsSnapshot{}, false, nil
	}
	raw, err := c.client.Get(ctx, snapshotKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return MetricsSnapshot{}, false, nil
	}
	if err != nil {
		return MetricsSnapshot{}, false, err
	}
	var snap MetricsSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return MetricsSnapshot{}, false, err
	}
	snap.Source = SourceCache
	return snap, true, nil
}

// MetricsFetcher loads dashboard metrics with a bearer token.
type MetricsFetcher interface {
	DashboardMetrics(ctx context.Context, token string) (backend.DashboardMetrics, error)
}

// MetricsFeed serves dashboard metrics from a background poller running with
// the service token, falling back to the shared cache.
type MetricsFeed struct {
	poller *poller.Poller[backend.DashboardMetrics]
	cache  *SnapshotCache
}

// NewMetricsFeed builds the poller for the dashboard metrics. The poller is not
// started.
func NewMetricsFeed(api MetricsFetcher, serviceToken string, interval time.Duration, cache *SnapshotCache, logger *slog.Logger, recorder poller.Recorder) *MetricsFeed {
	feed := &MetricsFeed{cache: cache}
	feed.poller = poller.New(interval, func(ctx context.Context) (backend.DashboardMetrics, error) {
		return api.DashboardMetrics(ctx, serviceToken)
	}, poller.Options[backend.DashboardMetrics]{
		Name:     "admin_metrics",
		Logger:   logger,
		Timeout:  interval,
		Recorder: recorder,
		OnSnapshot: func(s poller.Snapshot[backend.DashboardMetrics]) {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := cache.Store(ctx, MetricsSnapshot{Metrics: s.Value, FetchedAt: s.FetchedAt, Source: SourcePoller}); err != nil && logger != nil {
				logger.Warn("store metrics snapshot", slog.Any("error", err))
			}
		},
	})
	return feed
}

// Start begins polling.
func (f *MetricsFeed) Start(ctx context.Context) error {
	if f == nil {
		return nil
	}
	return f.poller.Start(ctx)
}

// Stop halts polling.
func (f *MetricsFeed) Stop() {
	if f == nil {
		return
	}
	f.poller.Stop()
}

// Current returns the freshest snapshot known to this instance.
func (f *MetricsFeed) Current(ctx context.Context) (MetricsSnapshot, bool) {
	if f == nil {
		return MetricsSnapshot{}, false
	}
	if snap, ok := f.poller.Latest(); ok {
		return MetricsSnapshot{Metrics: snap.Value, FetchedAt: snap.FetchedAt, Source: SourcePoller}, true
	}
	snap, ok, err := f.cache.Load(ctx)
	if err != nil {
		return MetricsSnapshot{}, false
	}
	return snap, ok
}
