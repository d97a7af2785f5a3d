package poller

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingRecorder struct {
	mu       sync.Mutex
	outcomes map[string]int
}

func (r *countingRecorder) ObservePoll(name, outcome string, took time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.outcomes == nil {
		r.outcomes = map[string]int{}
	}
	r.outcomes[outcome]++
}

func (r *countingRecorder) count(outcome string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.outcomes[outcome]
}

func TestPollerStoresLatestSnapshot(t *testing.T) {
	var calls atomic.Int64
	p := New(10*time.Millisecond, func(ctx context.Context) (int64, error) {
		return calls.Add(1), nil
	}, Options[int64]{Name: "counter"})
	require.NoError(t, p.Start(context.Background()))
	defer p.Stop()

	require.Eventually(t, func() bool {
		snap, ok := p.Latest()
		return ok && snap.Value >= 3
	}, time.Second, 5*time.Millisecond)
}

func TestPollerDoesNotDeduplicateSlowFetches(t *testing.T) {
	release := make(chan struct{})
	var running, peak atomic.Int64
	p := New(5*time.Millisecond, func(ctx context.Context) (int, error) {
		n := running.Add(1)
		for {
			old := peak.Load()
			if n <= old || peak.CompareAndSwap(old, n) {
				break
			}
		}
		defer running.Add(-1)
		select {
		case <-release:
		case <-ctx.Done():
		}
		return 1, nil
	}, Options[int]{})
	require.NoError(t, p.Start(context.Background()))

	require.Eventually(t, func() bool { return peak.Load() >= 3 }, time.Second, 5*time.Millisecond)
	close(release)
	p.Stop()
	p.Wait()
}

func TestPollerDropsResultsAfterStop(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	rec := &countingRecorder{}
	var snapshots atomic.Int64
	p := New(time.Hour, func(ctx context.Context) (string, error) {
		started <- struct{}{}
		<-release
		return "late", nil
	}, Options[string]{Recorder: rec, OnSnapshot: func(Snapshot[string]) { snapshots.Add(1) }})
	require.NoError(t, p.Start(context.Background()))

	<-started
	p.Stop()
	close(release)
	p.Wait()

	_, ok := p.Latest()
	assert.False(t, ok)
	assert.Zero(t, snapshots.Load())
	assert.Equal(t, 1, rec.count("dropped"))
}

func TestPollerKeepsPreviousSnapshotOnError(t *testing.T) {
	var calls atomic.Int64
	rec := &countingRecorder{}
	p := New(5*time.Millisecond, func(ctx context.Context) (int64, error) {
		n := calls.Add(1)
		if n > 1 {
			return 0, errors.New("backend down")
		}
		return 42, nil
	}, Options[int64]{Recorder: rec})
	require.NoError(t, p.Start(context.Background()))

	require.Eventually(t, func() bool { return rec.count("error") >= 2 }, time.Second, 5*time.Millisecond)
	p.Stop()
	p.Wait()

	snap, ok := p.Latest()
	require.True(t, ok)
	assert.EqualValues(t, 42, snap.Value)
	assert.EqualValues(t, 1, snap.Seq)
}

func TestPollerStartAfterStop(t *testing.T) {
	p := New(time.Second, func(ctx context.Context) (int, error) { return 0, nil }, Options[int]{})
	p.Stop()
	assert.ErrorIs(t, p.Start(context.Background()), ErrStopped)
	assert.Equal(t, time.Second, p.Interval())
}
