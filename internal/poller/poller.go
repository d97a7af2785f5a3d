package poller

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrStopped is returned by Start on a poller that has been stopped.
var ErrStopped = errors.New("poller: stopped")

// FetchFunc loads one snapshot value.
type FetchFunc[T any] func(ctx context.Context) (T, error)

// Snapshot is the most recent successful fetch.
type Snapshot[T any] struct {
	Value     T
	FetchedAt time.Time
	// Seq is the tick that started the fetch, counting from 1.
	Seq uint64
}

// Recorder observes fetch outcomes, typically for metrics.
type Recorder interface {
	ObservePoll(name, outcome string, took time.Duration)
}

// Options tune a Poller.
type Options[T any] struct {
	Name    string
	Logger  *slog.Logger
	Timeout time.Duration
	// OnSnapshot runs after each accepted snapshot, outside the poller lock.
	OnSnapshot func(Snapshot[T])
	Recorder   Recorder
}

// Poller runs fetch on a fixed interval. Every tick starts a new fetch in its
// own goroutine even while earlier fetches are still running. Each successful
// fetch replaces the stored snapshot; results that land after Stop are dropped.
type Poller[T any] struct {
	interval time.Duration
	fetch    FetchFunc[T]
	opts     Options[T]

	mu       sync.Mutex
	latest   *Snapshot[T]
	seq      uint64
	started  bool
	stopped  bool
	cancel   context.CancelFunc
	inflight sync.WaitGroup
	done     chan struct{}
}

// New constructs a poller. A non-positive interval defaults to 30 seconds.
func New[T any](interval time.Duration, fetch FetchFunc[T], opts Options[T]) *Poller[T] {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if opts.Name == "" {
		opts.Name = "poller"
	}
	return &Poller[T]{interval: interval, fetch: fetch, opts: opts, done: make(chan struct{})}
}

// Interval returns the tick period.
func (p *Poller[T]) Interval() time.Duration {
	return p.interval
}

// Start fetches immediately and then once per interval until ctx ends or Stop
// is called. Calling Start twice is a no-op.
func (p *Poller[T]) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return ErrStopped
	}
	if p.started {
		p.mu.Unlock()
		return nil
	}
	p.started = true
	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.mu.Unlock()

	p.tick(runCtx)
	go p.loop(runCtx)
	return nil
}

func (p *Poller[T]) loop(ctx context.Context) {
	defer close(p.done)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.tick(ctx)
		}
	}
}

func (p *Poller[T]) tick(ctx context.Context) {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.seq++
	seq := p.seq
	p.inflight.Add(1)
	p.mu.Unlock()

	go func() {
		defer p.inflight.Done()
		p.run(ctx, seq)
	}()
}

func (p *Poller[T]) run(ctx context.Context, seq uint64) {
	fetchCtx := ctx
	if p.opts.Timeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, p.opts.Timeout)
		defer cancel()
	}
	began := time.Now()
	value, err := p.fetch(fetchCtx)
	took := time.Since(began)
	if err != nil {
		p.observe("error", took)
		if p.opts.Logger != nil && ctx.Err() == nil {
			p.opts.Logger.Warn("poll failed", slog.String("poller", p.opts.Name), slog.Uint64("seq", seq), slog.Any("error", err))
		}
		return
	}

	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		p.observe("dropped", took)
		return
	}
	snap := Snapshot[T]{Value: value, FetchedAt: time.Now(), Seq: seq}
	p.latest = &snap
	p.mu.Unlock()

	p.observe("ok", took)
	if p.opts.OnSnapshot != nil {
		p.opts.OnSnapshot(snap)
	}
}

func (p *Poller[T]) observe(outcome string, took time.Duration) {
	if p.opts.Recorder != nil {
		p.opts.Recorder.ObservePoll(p.opts.Name, outcome, took)
	}
}

// Latest returns the current snapshot.
func (p *Poller[T]) Latest() (Snapshot[T], bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.latest == nil {
		return Snapshot[T]{}, false
	}
	return *p.latest, true
}

// Stop halts ticking and cancels in-flight fetches. It does not wait for them;
// their results are discarded. Stop is idempotent.
func (p *Poller[T]) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	started := p.started
	cancel := p.cancel
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if started {
		<-p.done
	}
}

// Wait blocks until every started fetch has returned.
func (p *Poller[T]) Wait() {
	p.inflight.Wait()
}
