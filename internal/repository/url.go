package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/spoo-me/url-shortener/internal/model"
	"github.com/spoo-me/url-shortener/internal/stats"
)

// Common errors for URL repository operations.
var (
	ErrURLNotFound = errors.New("url not found")
	ErrAliasExists = errors.New("alias already exists")
)

const urlColumns = `id, alias, long_url, owner_id, private, password_hash,
	block_bots, max_clicks, expiration_time, status, total_clicks,
	created_at, updated_at`

// URLRepository provides database access for short URLs.
type URLRepository struct {
	repo *Repository
}

// NewURLRepository creates a new URLRepository.
func NewURLRepository(repo *Repository) *URLRepository {
	return &URLRepository{repo: repo}
}

// Create inserts a new short URL.
func (r *URLRepository) Create(ctx context.Context, u *model.URL) error {
	query := `
		INSERT INTO urls (` + urlColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err := r.repo.pool.Exec(ctx, query,
		u.ID,
		u.Alias,
		u.LongURL,
		u.OwnerID,
		u.Private,
		nullableString(u.PasswordHash),
		u.BlockBots,
		u.MaxClicks,
		u.ExpirationTime,
		u.Status,
		u.TotalClicks,
		u.CreatedAt,
		u.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAliasExists
		}
		return fmt.Errorf("failed to create url: %w", err)
	}
	return nil
}

// FindByAlias retrieves a short URL by its alias.
// This is the hot path for redirects.
func (r *URLRepository) FindByAlias(ctx context.Context, alias string) (*model.URL, error) {
	query := `SELECT ` + urlColumns + ` FROM urls WHERE alias = $1`

	u, err := scanURL(r.repo.pool.QueryRow(ctx, query, alias))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrURLNotFound
		}
		return nil, fmt.Errorf("failed to find url by alias: %w", err)
	}
	return u, nil
}

// IncrementClicks atomically bumps the click total for an alias and
// returns the new total. Lost updates are not possible; concurrent
// increments serialize on the row.
func (r *URLRepository) IncrementClicks(ctx context.Context, alias string) (int64, error) {
	query := `
		UPDATE urls
		SET total_clicks = total_clicks + 1, updated_at = NOW()
		WHERE alias = $1
		RETURNING total_clicks
	`

	var total int64
	if err := r.repo.pool.QueryRow(ctx, query, alias).Scan(&total); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrURLNotFound
		}
		return 0, fmt.Errorf("failed to increment clicks: %w", err)
	}
	return total, nil
}

// Update rewrites the mutable fields of a short URL.
func (r *URLRepository) Update(ctx context.Context, u *model.URL) error {
	query := `
		UPDATE urls
		SET long_url = $2, private = $3, password_hash = $4, block_bots = $5,
			max_clicks = $6, expiration_time = $7, status = $8, updated_at = NOW()
		WHERE alias = $1
	`

	tag, err := r.repo.pool.Exec(ctx, query,
		u.Alias,
		u.LongURL,
		u.Private,
		nullableString(u.PasswordHash),
		u.BlockBots,
		u.MaxClicks,
		u.ExpirationTime,
		u.Status,
	)
	if err != nil {
		return fmt.Errorf("failed to update url: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrURLNotFound
	}
	return nil
}

// Delete removes a short URL. Its click records stay; history is
// append-only.
func (r *URLRepository) Delete(ctx context.Context, alias string) error {
	tag, err := r.repo.pool.Exec(ctx, `DELETE FROM urls WHERE alias = $1`, alias)
	if err != nil {
		return fmt.Errorf("failed to delete url: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrURLNotFound
	}
	return nil
}

// Lookup resolves a short code to its ownership and privacy flags.
// It implements stats.Directory.
func (r *URLRepository) Lookup(ctx context.Context, shortCode string) (stats.URLInfo, error) {
	query := `SELECT owner_id, private FROM urls WHERE alias = $1`

	var info stats.URLInfo
	err := r.repo.pool.QueryRow(ctx, query, shortCode).Scan(&info.OwnerID, &info.Private)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return stats.URLInfo{}, nil
		}
		return stats.URLInfo{}, fmt.Errorf("failed to look up url: %w", err)
	}
	info.Exists = true
	return info, nil
}

// scanURL scans a row into a URL.
func scanURL(row pgx.Row) (*model.URL, error) {
	var u model.URL
	var passwordHash *string

	err := row.Scan(
		&u.ID,
		&u.Alias,
		&u.LongURL,
		&u.OwnerID,
		&u.Private,
		&passwordHash,
		&u.BlockBots,
		&u.MaxClicks,
		&u.ExpirationTime,
		&u.Status,
		&u.TotalClicks,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if passwordHash != nil {
		u.PasswordHash = *passwordHash
	}
	return &u, nil
}

// nullableString returns nil for empty strings.
func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// isUniqueViolation checks for a PostgreSQL unique constraint error.
func isUniqueViolation(err error) bool {
	type sqlState interface{ SQLState() string }
	var state sqlState
	if errors.As(err, &state) {
		return state.SQLState() == "23505"
	}
	return false
}
