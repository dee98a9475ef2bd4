// Package geoip resolves client IP addresses to countries and cities
// using a local MaxMind database. Resolution is best-effort: lookup
// failures degrade to "Unknown" rather than failing the click.
package geoip

import (
	"fmt"
	"net"

	"github.com/oschwald/geoip2-golang"
)

// Unknown is the value recorded when an IP cannot be resolved.
const Unknown = "Unknown"

// Resolver maps an IP address to geographic attributes.
type Resolver interface {
	// Country returns the English country name for the IP, or Unknown.
	Country(ip string) string
	// City returns the English city name for the IP, or Unknown.
	City(ip string) string
	// Close releases the underlying database.
	Close() error
}

// MaxMindResolver resolves against a GeoLite2/GeoIP2 City database
// file. Safe for concurrent use.
type MaxMindResolver struct {
	db *geoip2.Reader
}

// Open loads the database at path.
func Open(path string) (*MaxMindResolver, error) {
	db, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open geoip database: %w", err)
	}
	return &MaxMindResolver{db: db}, nil
}

func (r *MaxMindResolver) Country(ip string) string {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return Unknown
	}
	record, err := r.db.Country(parsed)
	if err != nil {
		return Unknown
	}
	name := record.Country.Names["en"]
	if name == "" {
		return Unknown
	}
	return name
}

func (r *MaxMindResolver) City(ip string) string {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return Unknown
	}
	record, err := r.db.City(parsed)
	if err != nil {
		return Unknown
	}
	name := record.City.Names["en"]
	if name == "" {
		return Unknown
	}
	return name
}

func (r *MaxMindResolver) Close() error {
	return r.db.Close()
}

// NoopResolver resolves everything to Unknown. Used when no database
// is configured.
type NoopResolver struct{}

func (NoopResolver) Country(string) string { return Unknown }
func (NoopResolver) City(string) string    { return Unknown }
func (NoopResolver) Close() error          { return nil }
