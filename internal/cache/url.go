package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spoo-me/url-shortener/internal/metrics"
	"github.com/spoo-me/url-shortener/internal/model"
)

const urlKeyPrefix = "url:"

// Hot-path TTLs: a short fresh window keeps the max-clicks snapshot
// honest while the stale layer absorbs expiry storms on popular links.
const (
	DefaultURLPrimaryTTL = 60 * time.Second
	DefaultURLStaleTTL   = 15 * time.Minute
	DefaultURLLockTTL    = 5 * time.Second
)

// URLFetchFunc loads the URL record from the durable store on a cache
// miss.
type URLFetchFunc func(ctx context.Context) (*model.CachedURL, error)

// URLCache serves the redirect hot path: CachedURL entries behind the
// dual-layer stale-while-revalidate cache, invalidated synchronously on
// every mutation to the source URL record.
type URLCache struct {
	dual   *DualCache
	logger *slog.Logger
}

// NewURLCache builds a URLCache over a backend.
func NewURLCache(backend Backend, primaryTTL, staleTTL, lockTTL time.Duration, logger *slog.Logger, recorder metrics.Recorder) *URLCache {
	if primaryTTL <= 0 {
		primaryTTL = DefaultURLPrimaryTTL
	}
	if staleTTL <= 0 {
		staleTTL = DefaultURLStaleTTL
	}
	if lockTTL <= 0 {
		lockTTL = DefaultURLLockTTL
	}
	return &URLCache{
		dual:   NewDualCache(backend, primaryTTL, staleTTL, lockTTL, logger, recorder),
		logger: logger.With("component", "cache.url"),
	}
}

// GetOrFetch returns the cached entry for the alias, loading it via
// fetch on miss. Not-found results from fetch propagate uncached.
func (c *URLCache) GetOrFetch(ctx context.Context, alias string, fetch URLFetchFunc) (*model.CachedURL, error) {
	raw, err := c.dual.GetOrCompute(ctx, urlKeyPrefix+alias, func(ctx context.Context) ([]byte, error) {
		entry, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		data, err := json.Marshal(entry)
		if err != nil {
			return nil, fmt.Errorf("marshal cached url: %w", err)
		}
		return data, nil
	})
	if err != nil {
		return nil, err
	}

	var entry model.CachedURL
	if err := json.Unmarshal(raw, &entry); err != nil {
		// A corrupt entry is dropped so the next call recomputes.
		if delErr := c.Invalidate(ctx, alias); delErr != nil {
			c.logger.Warn("failed to drop corrupt url cache entry", "alias", alias, "error", delErr)
		}
		return nil, fmt.Errorf("unmarshal cached url: %w", err)
	}
	return &entry, nil
}

// Invalidate removes the cache entry for an alias. Callers invoke it
// synchronously on update, delete and status changes to the source URL
// record.
func (c *URLCache) Invalidate(ctx context.Context, alias string) error {
	if err := c.dual.Invalidate(ctx, urlKeyPrefix+alias); err != nil {
		return fmt.Errorf("invalidate url %q: %w", alias, err)
	}
	return nil
}

// IsBusy reports whether the error is the bounded-wait timeout of the
// dual cache miss path.
func IsBusy(err error) bool {
	return errors.Is(err, ErrCacheBusy)
}
