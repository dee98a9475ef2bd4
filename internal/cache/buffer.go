package cache

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Buffer key layout: one hash of named counters per short code plus a
// companion set of the IPs seen since the last flush.
const (
	bufferKeyPrefix  = "clickbuf:"
	bufferIPSuffix   = ":ips"
	fieldDelimiter   = "|"
	totalCounterName = "total"

	// DefaultBufferTTL bounds retention when a flush job never runs.
	// The TTL slides on every write.
	DefaultBufferTTL = time.Hour
)

// bufferAddScript atomically bumps the total, the per-dimension
// counters and the IP set for one short code, refreshing the sliding
// TTL. A single script keeps concurrent adds and a concurrent pull
// from interleaving mid-click.
//
// KEYS[1] = counter hash, KEYS[2] = IP set
// ARGV[1] = TTL seconds, ARGV[2] = IP (may be empty), ARGV[3..] = counter fields
var bufferAddScript = redis.NewScript(`
	local key = KEYS[1]
	local ipkey = KEYS[2]
	local ttl = tonumber(ARGV[1])
	local ip = ARGV[2]

	redis.call('HINCRBY', key, 'total', 1)
	for i = 3, #ARGV do
		redis.call('HINCRBY', key, ARGV[i], 1)
	end
	if ip ~= '' then
		redis.call('SADD', ipkey, ip)
		redis.call('EXPIRE', ipkey, ttl)
	end
	redis.call('EXPIRE', key, ttl)
	return 1
`)

// bufferPullScript atomically reads and clears the counters and IP set
// for one short code. Readers never observe a partially-cleared state.
var bufferPullScript = redis.NewScript(`
	local key = KEYS[1]
	local ipkey = KEYS[2]

	local counters = redis.call('HGETALL', key)
	if #counters == 0 then
		return false
	end
	local ips = redis.call('SMEMBERS', ipkey)
	redis.call('DEL', key, ipkey)
	return {counters, ips}
`)

// BufferFields carries the per-click dimension values accumulated by
// the buffer.
type BufferFields struct {
	Browser   string
	OS        string
	Country   string
	Referrer  string // sanitized domain, empty = direct
	IPAddress string
}

// BufferedSnapshot is the result of an atomic pull: everything buffered
// for one short code since the previous flush.
type BufferedSnapshot struct {
	ShortCode   string
	TotalClicks int64
	// Counters is keyed "<dimension>|<value>".
	Counters  map[string]int64
	UniqueIPs []string
}

// Breakdown extracts the counter values for one dimension name.
func (s *BufferedSnapshot) Breakdown(dimension string) map[string]int64 {
	prefix := dimension + fieldDelimiter
	out := make(map[string]int64)
	for field, count := range s.Counters {
		if strings.HasPrefix(field, prefix) {
			out[field[len(prefix):]] = count
		}
	}
	return out
}

// ClickEventBuffer absorbs per-click counter increments without a
// durable-store round trip, for deployments that batch dashboard stats
// instead of (or in addition to) streaming every click.
type ClickEventBuffer struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewClickEventBuffer creates a buffer with a sliding retention TTL.
func NewClickEventBuffer(client *redis.Client, ttl time.Duration, logger *slog.Logger) *ClickEventBuffer {
	if ttl <= 0 {
		ttl = DefaultBufferTTL
	}
	return &ClickEventBuffer{
		client: client,
		ttl:    ttl,
		logger: logger.With("component", "cache.clickbuffer"),
	}
}

// Add records one click for the short code. Atomic per short code;
// concurrent adds never lose increments.
func (b *ClickEventBuffer) Add(ctx context.Context, shortCode string, fields BufferFields) error {
	key := bufferKeyPrefix + shortCode
	ipKey := key + bufferIPSuffix

	args := []interface{}{
		int(b.ttl.Seconds()),
		fields.IPAddress,
	}
	for _, field := range counterFields(fields) {
		args = append(args, field)
	}

	if err := bufferAddScript.Run(ctx, b.client, []string{key, ipKey}, args...).Err(); err != nil {
		return fmt.Errorf("buffer add %q: %w", shortCode, err)
	}
	return nil
}

// Pull atomically reads and clears everything buffered for one short
// code. Returns (nil, nil) when nothing was buffered.
func (b *ClickEventBuffer) Pull(ctx context.Context, shortCode string) (*BufferedSnapshot, error) {
	key := bufferKeyPrefix + shortCode
	ipKey := key + bufferIPSuffix

	res, err := bufferPullScript.Run(ctx, b.client, []string{key, ipKey}).Result()
	if err != nil {
		// redis.Nil is how the script's `return false` surfaces.
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("buffer pull %q: %w", shortCode, err)
	}

	snapshot, err := parseSnapshot(shortCode, res)
	if err != nil {
		return nil, fmt.Errorf("buffer pull %q: %w", shortCode, err)
	}
	return snapshot, nil
}

// PullAll enumerates every buffered short code and pulls each. A short
// code that vanishes between enumeration and pull (flushed elsewhere,
// TTL expiry) is skipped, not an error.
func (b *ClickEventBuffer) PullAll(ctx context.Context) ([]*BufferedSnapshot, error) {
	codes, err := b.scanShortCodes(ctx)
	if err != nil {
		return nil, err
	}

	snapshots := make([]*BufferedSnapshot, 0, len(codes))
	for _, code := range codes {
		snap, err := b.Pull(ctx, code)
		if err != nil {
			return snapshots, err
		}
		if snap == nil {
			continue
		}
		snapshots = append(snapshots, snap)
	}
	return snapshots, nil
}

// scanShortCodes lists the short codes with buffered data.
func (b *ClickEventBuffer) scanShortCodes(ctx context.Context) ([]string, error) {
	var codes []string
	var cursor uint64

	for {
		keys, next, err := b.client.Scan(ctx, cursor, bufferKeyPrefix+"*", 100).Result()
		if err != nil {
			return nil, fmt.Errorf("buffer scan: %w", err)
		}
		for _, key := range keys {
			if strings.HasSuffix(key, bufferIPSuffix) {
				continue
			}
			codes = append(codes, key[len(bufferKeyPrefix):])
		}
		cursor = next
		if cursor == 0 {
			return codes, nil
		}
	}
}

// counterFields builds the hash field names for one click. Absent
// dimension values are skipped rather than counted under an empty name,
// except the referrer, whose absence is the meaningful "direct" group.
func counterFields(fields BufferFields) []string {
	out := make([]string, 0, 4)
	if fields.Browser != "" {
		out = append(out, counterField("browser", fields.Browser))
	}
	if fields.OS != "" {
		out = append(out, counterField("os", fields.OS))
	}
	if fields.Country != "" {
		out = append(out, counterField("country", fields.Country))
	}
	referrer := fields.Referrer
	if referrer == "" {
		referrer = "direct"
	}
	out = append(out, counterField("referrer", referrer))
	return out
}

// counterField joins a dimension and a sanitized value into a hash
// field name.
func counterField(dimension, value string) string {
	return dimension + fieldDelimiter + SanitizeFieldValue(value)
}

// SanitizeFieldValue makes a dimension value safe for use as a hash
// field name: control characters and the field delimiter are replaced.
func SanitizeFieldValue(value string) string {
	var b strings.Builder
	b.Grow(len(value))
	for _, r := range value {
		if r < 0x20 || r == 0x7f || string(r) == fieldDelimiter {
			b.WriteByte('_')
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// parseSnapshot converts the pull script's reply into a snapshot.
func parseSnapshot(shortCode string, res interface{}) (*BufferedSnapshot, error) {
	parts, ok := res.([]interface{})
	if !ok || len(parts) != 2 {
		return nil, fmt.Errorf("unexpected script reply %T", res)
	}

	rawCounters, ok := parts[0].([]interface{})
	if !ok {
		return nil, fmt.Errorf("unexpected counters reply %T", parts[0])
	}

	snapshot := &BufferedSnapshot{
		ShortCode: shortCode,
		Counters:  make(map[string]int64, len(rawCounters)/2),
	}

	// HGETALL replies alternate field, value.
	for i := 0; i+1 < len(rawCounters); i += 2 {
		field, _ := rawCounters[i].(string)
		raw, _ := rawCounters[i+1].(string)
		count, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("counter %q: %w", field, err)
		}
		if field == totalCounterName {
			snapshot.TotalClicks = count
			continue
		}
		snapshot.Counters[field] = count
	}

	rawIPs, ok := parts[1].([]interface{})
	if !ok {
		return nil, fmt.Errorf("unexpected ip reply %T", parts[1])
	}
	snapshot.UniqueIPs = make([]string, 0, len(rawIPs))
	for _, raw := range rawIPs {
		if ip, ok := raw.(string); ok {
			snapshot.UniqueIPs = append(snapshot.UniqueIPs, ip)
		}
	}

	return snapshot, nil
}
