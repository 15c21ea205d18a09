package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/climatrack/climatrack/internal/analytics"
	"github.com/climatrack/climatrack/internal/cache"
	"github.com/climatrack/climatrack/internal/client"
	"github.com/climatrack/climatrack/internal/models"
	"github.com/climatrack/climatrack/internal/observability"
	"github.com/climatrack/climatrack/internal/validation"
)

// Failure taxonomy surfaced to consumers. Underlying client and validation
// errors stay wrapped for subcategory checks (errors.Is).
var (
	// ErrRateLimited: quota exhausted (local bucket or provider 429).
	// Caller should back off; the gateway never blocks waiting for quota.
	ErrRateLimited = errors.New("rate limited")
	// ErrProvider: provider-reported failure (bad key, unknown location, 5xx).
	ErrProvider = errors.New("provider failure")
	// ErrValidation: malformed provider response. Never retried, never cached.
	ErrValidation = errors.New("invalid provider response")
	// ErrNetwork: transient transport failure that survived retries.
	ErrNetwork = errors.New("network failure")
)

// Geocoder resolves free-text or coordinate queries to canonical locations.
// External collaborator; consumed as a precondition of every fetch.
type Geocoder interface {
	Resolve(ctx context.Context, query string) (models.Location, error)
}

// TTLPolicy holds the cache freshness window per endpoint class.
// Current conditions turn over quickly; historical data is immutable.
type TTLPolicy struct {
	Current    time.Duration
	Forecast   time.Duration
	Historical time.Duration
	Alerts     time.Duration
}

// For returns the TTL for the endpoint class.
func (p TTLPolicy) For(class models.EndpointClass) time.Duration {
	switch class {
	case models.EndpointCurrent:
		return p.Current
	case models.EndpointForecast:
		return p.Forecast
	case models.EndpointHistorical:
		return p.Historical
	case models.EndpointAlerts:
		return p.Alerts
	default:
		return p.Current
	}
}

// MaxForecastDays caps the days parameter of Forecast requests. The
// provider's 3-hourly feed covers at most this span.
const MaxForecastDays = 7

// DefaultForecastDays is used when the caller passes days <= 0.
const DefaultForecastDays = 5

// Options configures Gateway construction.
type Options struct {
	TTL             TTLPolicy
	StaleMaxAge     time.Duration // 0 disables stale-cache fallback
	CoalesceEnabled bool
	CoalesceTimeout time.Duration
}

// Gateway owns all outbound calls to the weather provider: cache-aside
// reads with per-class TTLs, request coalescing, response validation, and
// stale fallback. The provider client enforces quota and retry policy.
type Gateway struct {
	provider    client.Provider
	geocoder    Geocoder
	cache       cache.Cache
	ttl         TTLPolicy
	staleMaxAge time.Duration

	seriesCoalescer *coalescer[models.ForecastSeries]
	alertsCoalescer *coalescer[models.AlertReport]
	stampede        *stampedeTracker

	locMu     sync.RWMutex
	locations map[string]models.Location
}

// New creates a Gateway with injected provider, geocoder and cache.
func New(provider client.Provider, geocoder Geocoder, cacheSvc cache.Cache, opts Options) *Gateway {
	g := &Gateway{
		provider:    provider,
		geocoder:    geocoder,
		cache:       cacheSvc,
		ttl:         opts.TTL,
		staleMaxAge: opts.StaleMaxAge,
		stampede:    newStampedeTracker(),
		locations:   make(map[string]models.Location),
	}
	if opts.CoalesceEnabled && opts.CoalesceTimeout > 0 {
		g.seriesCoalescer = newCoalescer[models.ForecastSeries](opts.CoalesceTimeout)
		g.alertsCoalescer = newCoalescer[models.AlertReport](opts.CoalesceTimeout)
	}
	return g
}

// CurrentConditions returns the validated current conditions for the
// location as a single-record series.
func (g *Gateway) CurrentConditions(ctx context.Context, location string) (models.ForecastSeries, error) {
	loc, err := g.resolve(ctx, location)
	if err != nil {
		return models.ForecastSeries{}, err
	}
	key := cache.NewKey(models.EndpointCurrent, loc.ID, nil)
	return g.fetchSeries(ctx, key, func() (models.ForecastSeries, error) {
		payload, err := g.provider.CurrentConditions(ctx, loc)
		if err != nil {
			return models.ForecastSeries{}, err
		}
		rec, err := validation.CurrentRecord(payload, loc.ID)
		if err != nil {
			return models.ForecastSeries{}, err
		}
		return models.NewForecastSeries(loc.ID, []models.WeatherRecord{rec})
	})
}

// Forecast returns a daily forecast series for the location, rolled up
// from the provider's 3-hourly feed. days is clamped to [1, MaxForecastDays];
// days <= 0 selects DefaultForecastDays.
func (g *Gateway) Forecast(ctx context.Context, location string, days int) (models.ForecastSeries, error) {
	if days <= 0 {
		days = DefaultForecastDays
	}
	if days > MaxForecastDays {
		days = MaxForecastDays
	}
	loc, err := g.resolve(ctx, location)
	if err != nil {
		return models.ForecastSeries{}, err
	}
	key := cache.NewKey(models.EndpointForecast, loc.ID, map[string]string{"days": fmt.Sprintf("%d", days)})
	return g.fetchSeries(ctx, key, func() (models.ForecastSeries, error) {
		payload, err := g.provider.Forecast(ctx, loc)
		if err != nil {
			return models.ForecastSeries{}, err
		}
		records, err := validation.ForecastRecords(payload, loc.ID)
		if err != nil {
			return models.ForecastSeries{}, err
		}
		hourly, err := models.NewForecastSeries(loc.ID, records)
		if err != nil {
			return models.ForecastSeries{}, err
		}
		return analytics.SummarizeDaily(hourly, days), nil
	})
}

// Historical returns validated observations for the given date.
func (g *Gateway) Historical(ctx context.Context, location string, date time.Time) (models.ForecastSeries, error) {
	loc, err := g.resolve(ctx, location)
	if err != nil {
		return models.ForecastSeries{}, err
	}
	day := date.UTC().Truncate(24 * time.Hour)
	key := cache.NewKey(models.EndpointHistorical, loc.ID, map[string]string{"date": day.Format("2006-01-02")})
	return g.fetchSeries(ctx, key, func() (models.ForecastSeries, error) {
		payload, err := g.provider.Historical(ctx, loc, day)
		if err != nil {
			return models.ForecastSeries{}, err
		}
		records, err := validation.HistoricalRecords(payload, loc.ID)
		if err != nil {
			return models.ForecastSeries{}, err
		}
		return models.NewForecastSeries(loc.ID, records)
	})
}

// Alerts returns provider-issued alerts for the location. Alerts are cached
// on a very short TTL and never served stale.
func (g *Gateway) Alerts(ctx context.Context, location string) (models.AlertReport, error) {
	loc, err := g.resolve(ctx, location)
	if err != nil {
		return models.AlertReport{}, err
	}
	key := cache.NewKey(models.EndpointAlerts, loc.ID, nil)

	if payload, ok := g.cacheGet(ctx, key); ok {
		var report models.AlertReport
		if err := json.Unmarshal(payload, &report); err == nil {
			g.logCacheHit(ctx, key)
			return report, nil
		}
	}

	fetch := func() (models.AlertReport, error) {
		payload, err := g.provider.Alerts(ctx, loc)
		if err != nil {
			return models.AlertReport{}, err
		}
		return validation.AlertReport(payload, loc.ID)
	}

	var report models.AlertReport
	var fetchErr error
	if g.alertsCoalescer != nil {
		report, fetchErr = g.alertsCoalescer.GetOrDo(ctx, key.String(), fetch)
	} else {
		report, fetchErr = fetch()
	}
	if fetchErr != nil {
		return models.AlertReport{}, mapError(loc.ID, fetchErr)
	}

	g.cacheSet(ctx, key, report)
	return report, nil
}

// fetchSeries is the shared cache-aside path for series endpoints: fresh
// cache read, stampede accounting, coalesced upstream fetch, stale
// fallback, cache write.
func (g *Gateway) fetchSeries(ctx context.Context, key cache.Key, fetch func() (models.ForecastSeries, error)) (models.ForecastSeries, error) {
	start := time.Now()
	logger := loggerFromContext(ctx)

	if payload, ok := g.cacheGet(ctx, key); ok {
		var series models.ForecastSeries
		if err := json.Unmarshal(payload, &series); err == nil {
			g.logCacheHit(ctx, key)
			if logger != nil {
				logger.Debug("series served", zap.String("key", key.String()), zap.Bool("cached", true), zap.Duration("duration", time.Since(start)))
			}
			return series, nil
		}
	}

	concurrentMisses := g.stampede.RecordMiss(key.String())
	defer g.stampede.RecordHit(key.String())
	locLabel := observability.MetricLocationLabel(key.Location)
	if concurrentMisses > 1 {
		observability.CacheStampedeDetectedTotal.WithLabelValues(locLabel).Inc()
		observability.CacheStampedeConcurrency.WithLabelValues(locLabel).Observe(float64(concurrentMisses))
	}

	if logger != nil {
		logger.Debug("cache miss, fetching upstream", zap.String("key", key.String()))
	}

	var series models.ForecastSeries
	var upstreamErr error
	if g.seriesCoalescer != nil {
		coalesceStart := time.Now()
		series, upstreamErr = g.seriesCoalescer.GetOrDo(ctx, key.String(), fetch)
		coalesceWait := time.Since(coalesceStart)
		if upstreamErr == nil {
			// Wait time above the floor means we rode another caller's fetch (approximate)
			if coalesceWait > 10*time.Millisecond {
				observability.RequestCoalescingHitsTotal.WithLabelValues(locLabel).Inc()
			}
			observability.RequestCoalescingWaitSeconds.Observe(coalesceWait.Seconds())
		}
	} else {
		series, upstreamErr = fetch()
	}
	if upstreamErr != nil {
		if g.staleMaxAge > 0 && !errors.Is(upstreamErr, validation.ErrInvalidPayload) {
			if stale, ok := g.staleGet(ctx, key); ok {
				if logger != nil {
					logger.Info("serving stale cache", zap.String("key", key.String()))
				}
				return stale, nil
			}
		}
		return models.ForecastSeries{}, mapError(key.Location, upstreamErr)
	}

	g.cacheSet(ctx, key, series)
	if logger != nil {
		logger.Debug("series served", zap.String("key", key.String()), zap.Bool("cached", false), zap.Duration("duration", time.Since(start)))
	}
	return series, nil
}

// cacheGet reads a fresh entry, recording metrics. Cache errors degrade to
// a miss; the provider path still works without the cache.
func (g *Gateway) cacheGet(ctx context.Context, key cache.Key) ([]byte, bool) {
	getStart := time.Now()
	payload, ok, err := g.cache.Get(ctx, key)
	getDuration := time.Since(getStart).Seconds()
	if err != nil {
		observability.CacheErrorsTotal.WithLabelValues("get", categorizeCacheError(err)).Inc()
		observability.CacheOperationDurationSeconds.WithLabelValues("get", "error").Observe(getDuration)
		return nil, false
	}
	observability.CacheOperationDurationSeconds.WithLabelValues("get", "success").Observe(getDuration)
	return payload, ok
}

func (g *Gateway) logCacheHit(ctx context.Context, key cache.Key) {
	observability.CacheHitsTotal.WithLabelValues(string(key.Class)).Inc()
	if logger := loggerFromContext(ctx); logger != nil {
		logger.Debug("cache hit", zap.String("key", key.String()))
	}
}

// staleGet reads a stale series entry within the stale bound and flags it.
func (g *Gateway) staleGet(ctx context.Context, key cache.Key) (models.ForecastSeries, bool) {
	payload, age, ok, err := g.cache.GetStale(ctx, key, g.staleMaxAge)
	if err != nil || !ok {
		return models.ForecastSeries{}, false
	}
	var series models.ForecastSeries
	if err := json.Unmarshal(payload, &series); err != nil {
		return models.ForecastSeries{}, false
	}
	series.Stale = true
	observability.StaleCacheServesTotal.WithLabelValues(observability.MetricLocationLabel(key.Location)).Inc()
	observability.StaleCacheAgeSeconds.Observe(age.Seconds())
	return series, true
}

// cacheSet stores a validated result with the class TTL. Only validated
// data is ever cached; failures here are logged as metrics, not surfaced.
func (g *Gateway) cacheSet(ctx context.Context, key cache.Key, value interface{}) {
	payload, err := json.Marshal(value)
	if err != nil {
		return
	}
	setStart := time.Now()
	if setErr := g.cache.Set(ctx, key, payload, g.ttl.For(key.Class)); setErr != nil {
		observability.CacheErrorsTotal.WithLabelValues("set", categorizeCacheError(setErr)).Inc()
		observability.CacheOperationDurationSeconds.WithLabelValues("set", "error").Observe(time.Since(setStart).Seconds())
		if logger := loggerFromContext(ctx); logger != nil {
			logger.Warn("cache set failed", zap.String("key", key.String()), zap.Error(setErr))
		}
		return
	}
	observability.CacheOperationDurationSeconds.WithLabelValues("set", "success").Observe(time.Since(setStart).Seconds())
}

// resolve turns free-text input into a canonical location, memoizing
// results for the process lifetime (canonical coordinates do not move).
func (g *Gateway) resolve(ctx context.Context, location string) (models.Location, error) {
	query := normalizeLocation(location)

	g.locMu.RLock()
	loc, ok := g.locations[query]
	g.locMu.RUnlock()
	if ok {
		return loc, nil
	}

	loc, err := g.geocoder.Resolve(ctx, query)
	if err != nil {
		return models.Location{}, mapError(query, err)
	}

	g.locMu.Lock()
	g.locations[query] = loc
	g.locMu.Unlock()
	return loc, nil
}

// mapError translates client and validation failures into the gateway
// taxonomy, keeping the cause wrapped.
func mapError(location string, err error) error {
	switch {
	case errors.Is(err, client.ErrQuotaExhausted) || errors.Is(err, client.ErrRateLimited):
		return fmt.Errorf("fetch %s: %w: %w", location, ErrRateLimited, err)
	case errors.Is(err, validation.ErrInvalidPayload):
		return fmt.Errorf("fetch %s: %w: %w", location, ErrValidation, err)
	case errors.Is(err, client.ErrInvalidAPIKey) || errors.Is(err, client.ErrLocationNotFound) || errors.Is(err, client.ErrUpstreamFailure):
		return fmt.Errorf("fetch %s: %w: %w", location, ErrProvider, err)
	case errors.Is(err, client.ErrNetwork) || errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("fetch %s: %w: %w", location, ErrNetwork, err)
	default:
		return fmt.Errorf("fetch %s: %w: %w", location, ErrNetwork, err)
	}
}

// loggerFromContext extracts a zap.Logger from request context if present.
// Returns nil if logger is not found or context is invalid.
func loggerFromContext(ctx context.Context) *zap.Logger {
	if v := ctx.Value("logger"); v != nil {
		if l, ok := v.(*zap.Logger); ok && l != nil {
			return l
		}
	}
	return nil
}

// categorizeCacheError returns a stable label for cache error metrics (timeout, connection, unknown).
func categorizeCacheError(err error) string {
	if err == nil {
		return "unknown"
	}
	errStr := err.Error()
	if strings.Contains(errStr, "timeout") {
		return "timeout"
	}
	if strings.Contains(errStr, "connection") || strings.Contains(errStr, "network") {
		return "connection"
	}
	return "unknown"
}

// normalizeLocation normalizes location strings by trimming whitespace and
// converting to lowercase. Ensures consistent geocode queries and cache keys.
func normalizeLocation(location string) string {
	return strings.ToLower(strings.TrimSpace(location))
}
