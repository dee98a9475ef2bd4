package analytics

import (
	"net/url"
	"strings"
	"time"

	"github.com/mileusna/useragent"
	"github.com/oklog/ulid/v2"
	"golang.org/x/net/publicsuffix"

	"github.com/spoo-me/url-shortener/internal/geoip"
	"github.com/spoo-me/url-shortener/internal/model"
)

// unknownValue stands in for any attribute that could not be resolved.
const unknownValue = "Unknown"

// Enricher resolves the derived attributes of a click event: country
// and city from the IP, browser and OS from the user agent, and the
// registrable domain from the referrer.
type Enricher struct {
	geo geoip.Resolver
}

// NewEnricher creates an enricher backed by the given resolver.
func NewEnricher(geo geoip.Resolver) *Enricher {
	if geo == nil {
		geo = geoip.NoopResolver{}
	}
	return &Enricher{geo: geo}
}

// Enrich turns a validated payload into a persistable click record.
// eventID is the stream message ID, kept as the idempotency key.
func (e *Enricher) Enrich(payload ClickEventPayload, eventID string) *model.ClickRecord {
	browser, os, bot := ParseUserAgent(payload.UserAgent)

	return &model.ClickRecord{
		ID:         ulid.Make().String(),
		EventID:    eventID,
		ShortCode:  payload.ShortCode,
		OwnerID:    payload.OwnerID,
		IPAddress:  payload.IPAddress,
		Country:    e.geo.Country(payload.IPAddress),
		City:       e.geo.City(payload.IPAddress),
		Browser:    browser,
		OS:         os,
		Referrer:   ExtractReferrerDomain(payload.Referrer),
		BotName:    bot,
		RedirectMS: payload.RedirectMS,
		ClickedAt:  time.UnixMilli(payload.ClickedAt).UTC(),
		CreatedAt:  time.Now().UTC(),
	}
}

// ParseUserAgent extracts the browser name, OS name and bot name from
// a raw user agent string. Unrecognized parts come back as "Unknown";
// bot is empty for ordinary clients.
func ParseUserAgent(raw string) (browser, os, bot string) {
	if raw == "" {
		return unknownValue, unknownValue, ""
	}

	ua := useragent.Parse(raw)

	browser = ua.Name
	if browser == "" {
		browser = unknownValue
	}
	os = ua.OS
	if os == "" {
		os = unknownValue
	}
	if ua.Bot {
		bot = ua.Name
		if bot == "" {
			bot = "bot"
		}
	}
	return browser, os, bot
}

// ExtractReferrerDomain reduces a referrer URL to its registrable
// domain ("www.google.co.uk" becomes "google.co.uk"). Empty input stays
// empty, which downstream reads as a direct visit.
func ExtractReferrerDomain(ref string) string {
	if ref == "" {
		return ""
	}

	parsed, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	host := strings.ToLower(parsed.Hostname())
	if host == "" {
		return ""
	}

	domain, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		// IPs and single-label hosts have no registrable domain.
		return host
	}
	return domain
}
