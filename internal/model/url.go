// Package model defines domain entities for the application.
package model

import "time"

// URLStatus represents the lifecycle status of a short URL.
type URLStatus string

const (
	URLStatusActive   URLStatus = "active"
	URLStatusInactive URLStatus = "inactive"
	URLStatusExpired  URLStatus = "expired"
	URLStatusBlocked  URLStatus = "blocked"
)

// AnonymousOwner is the fixed owner identity for unowned URLs.
// Using a sentinel instead of an empty owner keeps the owner field
// uniform across every click record and cache entry.
const AnonymousOwner = "anonymous"

// URL represents a shortened URL entity.
type URL struct {
	ID             string     `json:"id"`
	Alias          string     `json:"alias"`
	LongURL        string     `json:"long_url"`
	OwnerID        string     `json:"owner_id"` // AnonymousOwner when unowned
	Private        bool       `json:"private"`
	PasswordHash   string     `json:"-"` // empty when unprotected
	BlockBots      bool       `json:"block_bots"`
	MaxClicks      *int64     `json:"max_clicks,omitempty"`
	ExpirationTime *time.Time `json:"expiration_time,omitempty"`
	Status         URLStatus  `json:"status"` // stored status; Expired is computed
	TotalClicks    int64      `json:"total_clicks"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// EffectiveStatus computes the status at the given instant, folding in
// time-based expiration and the max-clicks cap.
func (u *URL) EffectiveStatus(now time.Time) URLStatus {
	if u.Status == URLStatusBlocked || u.Status == URLStatusInactive {
		return u.Status
	}
	if u.ExpirationTime != nil && now.After(*u.ExpirationTime) {
		return URLStatusExpired
	}
	if u.MaxClicks != nil && u.TotalClicks >= *u.MaxClicks {
		return URLStatusExpired
	}
	return URLStatusActive
}

// CachedURL is the read-through projection of a URL record served on the
// redirect hot path. Stored as JSON in the cache backend.
type CachedURL struct {
	ID             string     `json:"id"`
	Alias          string     `json:"alias"`
	LongURL        string     `json:"long_url"`
	OwnerID        string     `json:"owner_id"`
	BlockBots      bool       `json:"block_bots"`
	PasswordHash   string     `json:"password_hash,omitempty"`
	MaxClicks      *int64     `json:"max_clicks,omitempty"`
	ExpirationTime *time.Time `json:"expiration_time,omitempty"`
	Status         URLStatus  `json:"status"`
	TotalClicks    int64      `json:"total_clicks"`
}

// ToCachedURL builds the cache projection of the URL record.
func (u *URL) ToCachedURL() *CachedURL {
	return &CachedURL{
		ID:             u.ID,
		Alias:          u.Alias,
		LongURL:        u.LongURL,
		OwnerID:        u.OwnerID,
		BlockBots:      u.BlockBots,
		PasswordHash:   u.PasswordHash,
		MaxClicks:      u.MaxClicks,
		ExpirationTime: u.ExpirationTime,
		Status:         u.Status,
		TotalClicks:    u.TotalClicks,
	}
}

// EffectiveStatus computes the status of the cached entry at the given
// instant. The click total is the snapshot taken when the entry was
// cached; the TTL bounds how stale the max-clicks check can be.
func (c *CachedURL) EffectiveStatus(now time.Time) URLStatus {
	if c.Status == URLStatusBlocked || c.Status == URLStatusInactive {
		return c.Status
	}
	if c.ExpirationTime != nil && now.After(*c.ExpirationTime) {
		return URLStatusExpired
	}
	if c.MaxClicks != nil && c.TotalClicks >= *c.MaxClicks {
		return URLStatusExpired
	}
	return URLStatusActive
}

// IsProtected reports whether the URL requires a password to redirect.
func (c *CachedURL) IsProtected() bool {
	return c.PasswordHash != ""
}
