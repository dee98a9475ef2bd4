package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"time"

	"github.com/google/uuid"

	"github.com/spoo-me/url-shortener/internal/auth"
	"github.com/spoo-me/url-shortener/internal/cache"
	"github.com/spoo-me/url-shortener/internal/model"
	"github.com/spoo-me/url-shortener/internal/repository"
)

// URL management errors.
var (
	ErrInvalidLongURL = errors.New("invalid long URL")
	ErrInvalidAlias   = errors.New("invalid alias format")
	ErrAliasExists    = errors.New("alias already exists")
	ErrExpiresInPast  = errors.New("expiration_time must be in the future")
)

// Alias validation: 1-64 chars, alphanumeric plus hyphen and underscore.
var aliasRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,64}$`)

const maxLongURLLength = 2048

// URLService handles short URL lifecycle operations.
type URLService struct {
	urls     *repository.URLRepository
	urlCache *cache.URLCache
}

// NewURLService creates a URL management service.
func NewURLService(urls *repository.URLRepository, urlCache *cache.URLCache) *URLService {
	return &URLService{urls: urls, urlCache: urlCache}
}

// CreateURLInput defines input for creating a short URL.
type CreateURLInput struct {
	Alias          string
	LongURL        string
	OwnerID        string
	Private        bool
	Password       string
	BlockBots      bool
	MaxClicks      *int64
	ExpirationTime *time.Time
}

// CreateURL creates a new short URL.
func (s *URLService) CreateURL(ctx context.Context, input CreateURLInput) (*model.URL, error) {
	if err := validateLongURL(input.LongURL); err != nil {
		return nil, err
	}
	if !aliasRegex.MatchString(input.Alias) {
		return nil, ErrInvalidAlias
	}
	if input.ExpirationTime != nil && input.ExpirationTime.Before(time.Now()) {
		return nil, ErrExpiresInPast
	}

	owner := input.OwnerID
	if owner == "" {
		owner = model.AnonymousOwner
	}

	var passwordHash string
	if input.Password != "" {
		var err error
		passwordHash, err = auth.HashPassword(input.Password)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
	}

	now := time.Now().UTC()
	u := &model.URL{
		ID:             uuid.NewString(),
		Alias:          input.Alias,
		LongURL:        input.LongURL,
		OwnerID:        owner,
		Private:        input.Private,
		PasswordHash:   passwordHash,
		BlockBots:      input.BlockBots,
		MaxClicks:      input.MaxClicks,
		ExpirationTime: input.ExpirationTime,
		Status:         model.URLStatusActive,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.urls.Create(ctx, u); err != nil {
		if errors.Is(err, repository.ErrAliasExists) {
			return nil, ErrAliasExists
		}
		return nil, fmt.Errorf("create url: %w", err)
	}
	return u, nil
}

// UpdateURLInput defines the mutable fields of a short URL. Nil
// pointers leave the current value unchanged.
type UpdateURLInput struct {
	Alias          string
	LongURL        *string
	Private        *bool
	Password       *string // empty string clears the password
	BlockBots      *bool
	MaxClicks      *int64
	ClearMaxClicks bool
	ExpirationTime *time.Time
	ClearExpiry    bool
	Status         *model.URLStatus
}

// UpdateURL updates a short URL and synchronously invalidates its
// cache entry, so the next redirect observes the new record.
func (s *URLService) UpdateURL(ctx context.Context, input UpdateURLInput) (*model.URL, error) {
	u, err := s.urls.FindByAlias(ctx, input.Alias)
	if err != nil {
		if errors.Is(err, repository.ErrURLNotFound) {
			return nil, ErrURLNotFound
		}
		return nil, err
	}

	if input.LongURL != nil {
		if err := validateLongURL(*input.LongURL); err != nil {
			return nil, err
		}
		u.LongURL = *input.LongURL
	}
	if input.Private != nil {
		u.Private = *input.Private
	}
	if input.Password != nil {
		if *input.Password == "" {
			u.PasswordHash = ""
		} else {
			hash, err := auth.HashPassword(*input.Password)
			if err != nil {
				return nil, fmt.Errorf("hash password: %w", err)
			}
			u.PasswordHash = hash
		}
	}
	if input.BlockBots != nil {
		u.BlockBots = *input.BlockBots
	}
	if input.ClearMaxClicks {
		u.MaxClicks = nil
	} else if input.MaxClicks != nil {
		u.MaxClicks = input.MaxClicks
	}
	if input.ClearExpiry {
		u.ExpirationTime = nil
	} else if input.ExpirationTime != nil {
		if input.ExpirationTime.Before(time.Now()) {
			return nil, ErrExpiresInPast
		}
		u.ExpirationTime = input.ExpirationTime
	}
	if input.Status != nil {
		u.Status = *input.Status
	}

	if err := s.urls.Update(ctx, u); err != nil {
		if errors.Is(err, repository.ErrURLNotFound) {
			return nil, ErrURLNotFound
		}
		return nil, err
	}

	// Synchronous invalidation: an update that is not visible to the
	// next redirect is a correctness bug, not acceptable staleness.
	if err := s.urlCache.Invalidate(ctx, u.Alias); err != nil {
		return nil, fmt.Errorf("invalidate cache: %w", err)
	}

	return u, nil
}

// DeleteURL removes a short URL and synchronously invalidates its
// cache entry. Click history is retained.
func (s *URLService) DeleteURL(ctx context.Context, alias string) error {
	if err := s.urls.Delete(ctx, alias); err != nil {
		if errors.Is(err, repository.ErrURLNotFound) {
			return ErrURLNotFound
		}
		return err
	}

	if err := s.urlCache.Invalidate(ctx, alias); err != nil {
		return fmt.Errorf("invalidate cache: %w", err)
	}
	return nil
}

// validateLongURL validates a destination URL.
func validateLongURL(long string) error {
	if long == "" || len(long) > maxLongURLLength {
		return ErrInvalidLongURL
	}

	parsed, err := url.Parse(long)
	if err != nil {
		return ErrInvalidLongURL
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return ErrInvalidLongURL
	}
	if parsed.Host == "" {
		return ErrInvalidLongURL
	}
	return nil
}
