package cache

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/climatrack/climatrack/internal/models"
)

// Key identifies a cached provider result: endpoint class + canonical
// location + canonicalized request params.
type Key struct {
	Class    models.EndpointClass
	Location string
	Params   string
}

// NewKey builds a Key with params canonicalized (sorted k=v pairs) so that
// equivalent requests map to the same entry.
func NewKey(class models.EndpointClass, location string, params map[string]string) Key {
	if len(params) == 0 {
		return Key{Class: class, Location: location}
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+params[k])
	}
	return Key{Class: class, Location: location, Params: strings.Join(pairs, "&")}
}

// String returns the flat cache key ("forecast:london,gb:days=5").
func (k Key) String() string {
	if k.Params == "" {
		return fmt.Sprintf("%s:%s", k.Class, k.Location)
	}
	return fmt.Sprintf("%s:%s:%s", k.Class, k.Location, k.Params)
}

// Entry is a cached payload with its freshness window. Entries older than
// FreshUntil are not served as fresh but remain readable via GetStale until
// the backend evicts them.
type Entry struct {
	Payload    []byte    `json:"payload"`
	FetchedAt  time.Time `json:"fetchedAt"`
	FreshUntil time.Time `json:"freshUntil"`
}

// Cache is the interface for provider result caching implementations.
// Get serves fresh entries only; GetStale serves entries past their fresh
// TTL as long as they are no older than maxAge, reporting the entry age.
type Cache interface {
	Get(ctx context.Context, key Key) ([]byte, bool, error)
	GetStale(ctx context.Context, key Key, maxAge time.Duration) ([]byte, time.Duration, bool, error)
	Set(ctx context.Context, key Key, payload []byte, ttl time.Duration) error
}

// InMemoryCache implements Cache on go-cache. Entries are retained past
// their fresh TTL up to the retention bound so stale fallback can see them;
// the go-cache janitor evicts them afterwards.
type InMemoryCache struct {
	store     *gocache.Cache
	retention time.Duration
}

// NewInMemoryCache creates an in-memory cache. retention bounds how long
// stale entries stay readable; cleanupInterval drives the janitor.
func NewInMemoryCache(retention, cleanupInterval time.Duration) *InMemoryCache {
	if retention <= 0 {
		retention = time.Hour
	}
	if cleanupInterval <= 0 {
		cleanupInterval = 10 * time.Minute
	}
	return &InMemoryCache{
		store:     gocache.New(retention, cleanupInterval),
		retention: retention,
	}
}

// Get returns the payload for key if present and still fresh.
func (c *InMemoryCache) Get(ctx context.Context, key Key) ([]byte, bool, error) {
	v, ok := c.store.Get(key.String())
	if !ok {
		return nil, false, nil
	}
	entry := v.(Entry)
	if time.Now().After(entry.FreshUntil) {
		return nil, false, nil
	}
	return entry.Payload, true, nil
}

// GetStale returns the payload and age for key if present and no older than
// maxAge, regardless of freshness.
func (c *InMemoryCache) GetStale(ctx context.Context, key Key, maxAge time.Duration) ([]byte, time.Duration, bool, error) {
	v, ok := c.store.Get(key.String())
	if !ok {
		return nil, 0, false, nil
	}
	entry := v.(Entry)
	age := time.Since(entry.FetchedAt)
	if age > maxAge {
		return nil, 0, false, nil
	}
	return entry.Payload, age, true, nil
}

// Set stores payload with the given fresh TTL. The backend keeps the entry
// for max(ttl, retention) so it can serve stale fallback reads.
func (c *InMemoryCache) Set(ctx context.Context, key Key, payload []byte, ttl time.Duration) error {
	now := time.Now()
	keep := c.retention
	if ttl > keep {
		keep = ttl
	}
	c.store.Set(key.String(), Entry{
		Payload:    payload,
		FetchedAt:  now,
		FreshUntil: now.Add(ttl),
	}, keep)
	return nil
}
