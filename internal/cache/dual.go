package cache

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/spoo-me/url-shortener/internal/metrics"
)

// Dual cache key suffixes. The primary key holds the fresh value, the
// stale key a longer-lived copy served while a refresh is in flight,
// and the lock key the single-flight mutual exclusion window.
const (
	staleKeySuffix = ":stale"
	lockKeySuffix  = ":lock"
)

// Default TTLs for the three layers.
const (
	DefaultPrimaryTTL = 2 * time.Minute
	DefaultStaleTTL   = 30 * time.Minute
	DefaultLockTTL    = 10 * time.Second

	// Full-miss contention: how long and how often a loser polls the
	// primary key for the winner's result before giving up.
	missRetryAttempts = 10
	missRetryDelay    = 100 * time.Millisecond
)

// ErrCacheBusy is returned on a full miss when another caller holds the
// compute lock and no value appeared within the retry window. Callers
// should surface it as temporarily-unavailable rather than hitting the
// backing store themselves.
var ErrCacheBusy = errors.New("cache: busy computing")

// ComputeFunc produces the value for a key on miss or refresh.
type ComputeFunc func(ctx context.Context) ([]byte, error)

// DualCache is a stale-while-revalidate cache with single-flight
// recomputation. A fresh hit returns immediately; a stale hit returns
// the stale value and refreshes in the background behind a per-key
// lock; a full miss computes synchronously, with concurrent callers
// waiting on the winner instead of stampeding the backing store.
//
// When the backend itself is unreachable, GetOrCompute degrades to
// calling the compute function directly on every call.
type DualCache struct {
	backend Backend

	primaryTTL time.Duration
	staleTTL   time.Duration
	lockTTL    time.Duration

	logger  *slog.Logger
	metrics metrics.Recorder
}

// NewDualCache creates a DualCache over a backend. Zero TTLs take the
// package defaults.
func NewDualCache(backend Backend, primaryTTL, staleTTL, lockTTL time.Duration, logger *slog.Logger, recorder metrics.Recorder) *DualCache {
	if primaryTTL <= 0 {
		primaryTTL = DefaultPrimaryTTL
	}
	if staleTTL <= 0 {
		staleTTL = DefaultStaleTTL
	}
	if lockTTL <= 0 {
		lockTTL = DefaultLockTTL
	}
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &DualCache{
		backend:    backend,
		primaryTTL: primaryTTL,
		staleTTL:   staleTTL,
		lockTTL:    lockTTL,
		logger:     logger.With("component", "cache.dual"),
		metrics:    recorder,
	}
}

// GetOrCompute returns the cached value for key, computing it via fn
// when needed. See the type comment for the full protocol.
func (d *DualCache) GetOrCompute(ctx context.Context, key string, fn ComputeFunc) ([]byte, error) {
	val, ok, err := d.backend.Get(ctx, key)
	if err != nil {
		return d.directCompute(ctx, key, fn, err)
	}
	if ok {
		d.metrics.IncCacheHit()
		return val, nil
	}

	stale, ok, err := d.backend.Get(ctx, key+staleKeySuffix)
	if err != nil {
		return d.directCompute(ctx, key, fn, err)
	}
	if ok {
		d.metrics.IncCacheStaleServed()
		d.maybeRefresh(key, fn)
		return stale, nil
	}

	d.metrics.IncCacheMiss()
	return d.computeMiss(ctx, key, fn)
}

// Invalidate removes the primary and stale entries for a key. Called
// synchronously whenever the source record changes.
func (d *DualCache) Invalidate(ctx context.Context, key string) error {
	return d.backend.Delete(ctx, key, key+staleKeySuffix)
}

// directCompute is the degraded mode when the backend is unreachable:
// correctness over performance, every caller computes.
func (d *DualCache) directCompute(ctx context.Context, key string, fn ComputeFunc, cause error) ([]byte, error) {
	d.logger.Warn("cache backend unavailable, computing directly",
		"key", key,
		"error", cause,
	)
	d.metrics.IncCacheDirectCompute()
	return fn(ctx)
}

// maybeRefresh starts a background single-flight refresh for a stale
// key. The triggering caller is never blocked and never sees refresh
// errors; the lock is released on success and failure alike so a
// crashed refresh cannot block future ones beyond the lock TTL.
func (d *DualCache) maybeRefresh(key string, fn ComputeFunc) {
	lockKey := key + lockKeySuffix

	// Lock acquisition happens synchronously so N concurrent stale hits
	// race on one atomic SetNX, not on goroutine scheduling.
	ctx, cancel := context.WithTimeout(context.Background(), d.lockTTL)
	acquired, err := d.backend.SetIfAbsent(ctx, lockKey, []byte("1"), d.lockTTL)
	cancel()
	if err != nil || !acquired {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), d.staleTTL)
		defer cancel()
		defer func() {
			if err := d.backend.Delete(context.WithoutCancel(ctx), lockKey); err != nil {
				d.logger.Warn("failed to release refresh lock", "key", key, "error", err)
			}
		}()

		val, err := fn(ctx)
		if err != nil {
			d.logger.Warn("background refresh failed", "key", key, "error", err)
			d.metrics.IncCacheRefresh("failed")
			return
		}
		d.store(ctx, key, val)
		d.metrics.IncCacheRefresh("success")
	}()
}

// computeMiss handles the full-miss path: one caller computes under the
// lock, the rest poll the primary key for its result.
func (d *DualCache) computeMiss(ctx context.Context, key string, fn ComputeFunc) ([]byte, error) {
	lockKey := key + lockKeySuffix

	acquired, err := d.backend.SetIfAbsent(ctx, lockKey, []byte("1"), d.lockTTL)
	if err != nil {
		return d.directCompute(ctx, key, fn, err)
	}

	if acquired {
		defer func() {
			if err := d.backend.Delete(context.WithoutCancel(ctx), lockKey); err != nil {
				d.logger.Warn("failed to release compute lock", "key", key, "error", err)
			}
		}()

		val, err := fn(ctx)
		if err != nil {
			return nil, err
		}
		d.store(ctx, key, val)
		return val, nil
	}

	// Another caller is populating the cache; wait for its result.
	for attempt := 0; attempt < missRetryAttempts; attempt++ {
		timer := time.NewTimer(missRetryDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}

		val, ok, err := d.backend.Get(ctx, key)
		if err != nil {
			return d.directCompute(ctx, key, fn, err)
		}
		if ok {
			return val, nil
		}
	}
	return nil, ErrCacheBusy
}

// store writes the value to both layers. Failures are logged, not
// surfaced: the caller already has the value.
func (d *DualCache) store(ctx context.Context, key string, val []byte) {
	if err := d.backend.Set(ctx, key, val, d.primaryTTL); err != nil {
		d.logger.Warn("failed to set primary cache key", "key", key, "error", err)
	}
	if err := d.backend.Set(ctx, key+staleKeySuffix, val, d.staleTTL); err != nil {
		d.logger.Warn("failed to set stale cache key", "key", key, "error", err)
	}
}
