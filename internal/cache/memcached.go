package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
)

const keyPrefix = "climatrack:"

// MemcachedCache implements Cache using memcached. Entries carry their own
// freshness window; memcached expiration enforces the retention bound.
type MemcachedCache struct {
	client    *memcache.Client
	retention time.Duration
}

// NewMemcachedCache creates a MemcachedCache. addrs is a comma-separated
// list (e.g. "localhost:11211" or "host1:11211,host2:11211"). timeout and
// maxIdleConns configure the client; both use package defaults if zero.
func NewMemcachedCache(addrs string, timeout time.Duration, maxIdleConns int, retention time.Duration) (*MemcachedCache, error) {
	servers := parseAddrs(addrs)
	if len(servers) == 0 {
		servers = []string{"localhost:11211"}
	}
	client := memcache.New(servers...)
	if timeout > 0 {
		client.Timeout = timeout
	}
	if maxIdleConns > 0 {
		client.MaxIdleConns = maxIdleConns
	}
	if retention <= 0 {
		retention = time.Hour
	}
	return &MemcachedCache{client: client, retention: retention}, nil
}

func parseAddrs(s string) []string {
	var out []string
	for _, a := range strings.Split(s, ",") {
		a = strings.TrimSpace(a)
		if a != "" {
			out = append(out, a)
		}
	}
	return out
}

// key builds the memcached key. Memcached rejects keys containing spaces or
// control characters and keys longer than 250 bytes, so locations such as
// "new york,us" are sanitized and oversized keys fall back to a digest.
func (c *MemcachedCache) key(k Key) string {
	flat := keyPrefix + k.String()
	b := []byte(flat)
	for i, ch := range b {
		if ch <= ' ' || ch == 0x7f {
			b[i] = '_'
		}
	}
	if len(b) > 250 {
		sum := sha256.Sum256([]byte(flat))
		return keyPrefix + hex.EncodeToString(sum[:])
	}
	return string(b)
}

// Get implements Cache.Get. Returns false, nil on miss or a stale entry;
// false, err on backend error.
func (c *MemcachedCache) Get(ctx context.Context, key Key) ([]byte, bool, error) {
	entry, ok, err := c.fetch(ctx, key)
	if err != nil || !ok {
		return nil, false, err
	}
	if time.Now().After(entry.FreshUntil) {
		return nil, false, nil
	}
	return entry.Payload, true, nil
}

// GetStale implements Cache.GetStale.
func (c *MemcachedCache) GetStale(ctx context.Context, key Key, maxAge time.Duration) ([]byte, time.Duration, bool, error) {
	entry, ok, err := c.fetch(ctx, key)
	if err != nil || !ok {
		return nil, 0, false, err
	}
	age := time.Since(entry.FetchedAt)
	if age > maxAge {
		return nil, 0, false, nil
	}
	return entry.Payload, age, true, nil
}

func (c *MemcachedCache) fetch(ctx context.Context, key Key) (Entry, bool, error) {
	if ctx.Err() != nil {
		return Entry{}, false, ctx.Err()
	}
	item, err := c.client.Get(c.key(key))
	if err != nil {
		if err == memcache.ErrCacheMiss {
			return Entry{}, false, nil
		}
		return Entry{}, false, err
	}
	var entry Entry
	if err := json.Unmarshal(item.Value, &entry); err != nil {
		return Entry{}, false, err
	}
	return entry, true, nil
}

// Set implements Cache.Set.
func (c *MemcachedCache) Set(ctx context.Context, key Key, payload []byte, ttl time.Duration) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	now := time.Now()
	raw, err := json.Marshal(Entry{
		Payload:    payload,
		FetchedAt:  now,
		FreshUntil: now.Add(ttl),
	})
	if err != nil {
		return err
	}
	keep := c.retention
	if ttl > keep {
		keep = ttl
	}
	expSec := int32(keep.Seconds())
	const maxRelativeExp = 30 * 24 * 60 * 60 // 30 days
	if expSec <= 0 || expSec > maxRelativeExp {
		expSec = 3600
	}
	return c.client.Set(&memcache.Item{
		Key:        c.key(key),
		Value:      raw,
		Expiration: expSec,
	})
}

// Ping checks if memcached is reachable. Used for health checks.
func (c *MemcachedCache) Ping() error {
	return c.client.Ping()
}

// Close closes the memcached client connections. Call during shutdown.
func (c *MemcachedCache) Close() error {
	return c.client.Close()
}
