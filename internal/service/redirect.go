// Package service provides business logic for the application.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spoo-me/url-shortener/internal/analytics"
	"github.com/spoo-me/url-shortener/internal/auth"
	"github.com/spoo-me/url-shortener/internal/cache"
	"github.com/spoo-me/url-shortener/internal/geoip"
	"github.com/spoo-me/url-shortener/internal/metrics"
	"github.com/spoo-me/url-shortener/internal/model"
	"github.com/spoo-me/url-shortener/internal/repository"
)

// Redirect errors.
var (
	ErrURLNotFound      = errors.New("url not found")
	ErrURLExpired       = errors.New("url is expired")
	ErrURLInactive      = errors.New("url is inactive")
	ErrURLBlocked       = errors.New("url is blocked")
	ErrPasswordRequired = errors.New("password required")
	ErrWrongPassword    = errors.New("wrong password")
	ErrBotBlocked       = errors.New("bots are not allowed")
	ErrTryLater         = errors.New("temporarily unavailable, try again")
)

// RedirectService handles the redirect hot path: resolve an alias,
// enforce access rules, and capture the click without blocking the
// response.
type RedirectService struct {
	urls     *repository.URLRepository
	urlCache *cache.URLCache
	pub      *analytics.Publisher
	buffer   *cache.ClickEventBuffer // nil when batching is disabled
	geo      geoip.Resolver
	logger   *slog.Logger
	metrics  metrics.Recorder
}

// NewRedirectService creates a redirect service. buffer may be nil.
func NewRedirectService(
	urls *repository.URLRepository,
	urlCache *cache.URLCache,
	pub *analytics.Publisher,
	buffer *cache.ClickEventBuffer,
	geo geoip.Resolver,
	logger *slog.Logger,
	recorder metrics.Recorder,
) *RedirectService {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	if geo == nil {
		geo = geoip.NoopResolver{}
	}
	return &RedirectService{
		urls:     urls,
		urlCache: urlCache,
		pub:      pub,
		buffer:   buffer,
		geo:      geo,
		logger:   logger.With("component", "service.redirect"),
		metrics:  recorder,
	}
}

// ResolveInput carries the request attributes that gate a redirect.
type ResolveInput struct {
	Alias     string
	Password  string
	UserAgent string
}

// ResolveRedirect resolves an alias to its cached record and enforces
// status, password and bot rules. This is the hot path: the cache
// absorbs repeated lookups and the database is only consulted on miss.
func (s *RedirectService) ResolveRedirect(ctx context.Context, input ResolveInput) (*model.CachedURL, error) {
	start := time.Now()
	defer func() {
		s.metrics.ObserveRedirectDuration(time.Since(start))
	}()

	entry, err := s.urlCache.GetOrFetch(ctx, input.Alias, func(ctx context.Context) (*model.CachedURL, error) {
		u, err := s.urls.FindByAlias(ctx, input.Alias)
		if err != nil {
			return nil, err
		}
		return u.ToCachedURL(), nil
	})
	if err != nil {
		if errors.Is(err, repository.ErrURLNotFound) {
			return nil, ErrURLNotFound
		}
		if cache.IsBusy(err) {
			return nil, ErrTryLater
		}
		return nil, fmt.Errorf("resolve %q: %w", input.Alias, err)
	}

	switch entry.EffectiveStatus(time.Now()) {
	case model.URLStatusExpired:
		return nil, ErrURLExpired
	case model.URLStatusInactive:
		return nil, ErrURLInactive
	case model.URLStatusBlocked:
		return nil, ErrURLBlocked
	}

	if entry.BlockBots {
		if _, _, bot := analytics.ParseUserAgent(input.UserAgent); bot != "" {
			return nil, ErrBotBlocked
		}
	}

	if entry.IsProtected() {
		if input.Password == "" {
			return nil, ErrPasswordRequired
		}
		ok, err := auth.VerifyPassword(input.Password, entry.PasswordHash)
		if err != nil || !ok {
			return nil, ErrWrongPassword
		}
	}

	return entry, nil
}

// ClickInput carries everything known about a click at redirect time.
type ClickInput struct {
	Alias      string
	OwnerID    string
	IPAddress  string
	UserAgent  string
	Referrer   string
	RedirectMS int64
	ClickedAt  time.Time
}

// RecordClick captures a click: publish to the event stream, feed the
// counter buffer when batching is on, and bump the legacy total.
// Entirely fire-and-forget; a capture failure never affects the
// redirect that triggered it.
func (s *RedirectService) RecordClick(input ClickInput) {
	owner := input.OwnerID
	if owner == "" {
		owner = model.AnonymousOwner
	}

	s.pub.PublishAsync(analytics.ClickEventPayload{
		ShortCode:  input.Alias,
		OwnerID:    owner,
		IPAddress:  input.IPAddress,
		UserAgent:  analytics.TruncateUserAgent(input.UserAgent),
		Referrer:   analytics.SanitizeReferrer(input.Referrer),
		RedirectMS: input.RedirectMS,
		ClickedAt:  input.ClickedAt.UnixMilli(),
	})

	if s.buffer != nil {
		go s.bufferClick(input)
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if _, err := s.urls.IncrementClicks(ctx, input.Alias); err != nil {
			s.logger.Warn("failed to increment click total",
				"alias", input.Alias,
				"error", err,
			)
		}
	}()
}

// bufferClick adds one click to the counter buffer with the
// cheaply-derivable dimension values.
func (s *RedirectService) bufferClick(input ClickInput) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	browser, os, _ := analytics.ParseUserAgent(input.UserAgent)
	fields := cache.BufferFields{
		Browser:   browser,
		OS:        os,
		Country:   s.geo.Country(input.IPAddress),
		Referrer:  analytics.ExtractReferrerDomain(input.Referrer),
		IPAddress: input.IPAddress,
	}

	if err := s.buffer.Add(ctx, input.Alias, fields); err != nil {
		s.logger.Warn("failed to buffer click",
			"alias", input.Alias,
			"error", err,
		)
	}
}
