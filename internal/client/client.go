package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/climatrack/climatrack/internal/circuitbreaker"
	"github.com/climatrack/climatrack/internal/models"
	"github.com/climatrack/climatrack/internal/observability"
)

// Provider is the outbound weather provider surface consumed by the gateway.
type Provider interface {
	CurrentConditions(ctx context.Context, loc models.Location) (CurrentPayload, error)
	Forecast(ctx context.Context, loc models.Location) (ForecastPayload, error)
	Historical(ctx context.Context, loc models.Location, day time.Time) (HistoricalPayload, error)
	Alerts(ctx context.Context, loc models.Location) (AlertsPayload, error)
	ValidateAPIKey(ctx context.Context) error
}

var (
	ErrInvalidAPIKey    = errors.New("invalid API key")
	ErrLocationNotFound = errors.New("location not found")
	ErrUpstreamFailure  = errors.New("upstream failure")
	ErrRateLimited      = errors.New("rate limited by provider")
	ErrQuotaExhausted   = errors.New("provider call quota exhausted")
	ErrNetwork          = errors.New("network failure")
)

// Quota gates attempted provider calls. Satisfied by *rate.Limiter.
// A nil Quota means unlimited.
type Quota interface {
	Allow() bool
}

// OpenWeatherClient calls the OpenWeatherMap data, onecall, and geocoding
// endpoints. Transient failures are retried with bounded exponential
// backoff; every attempted call consumes one quota token.
type OpenWeatherClient struct {
	apiKey         string
	baseURL        string
	timeout        time.Duration
	client         *http.Client
	retryAttempts  int
	retryBaseDelay time.Duration
	retryMaxDelay  time.Duration
	quota          Quota
	breaker        *circuitbreaker.CircuitBreaker
}

// Options configures an OpenWeatherClient beyond its defaults.
type Options struct {
	RetryAttempts  int
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration
	Quota          Quota
}

// NewOpenWeatherClient creates a client with default retry policy and no quota.
func NewOpenWeatherClient(apiKey, baseURL string, timeout time.Duration) (*OpenWeatherClient, error) {
	return NewOpenWeatherClientWithOptions(apiKey, baseURL, timeout, Options{
		RetryAttempts:  3,
		RetryBaseDelay: 100 * time.Millisecond,
		RetryMaxDelay:  2 * time.Second,
	})
}

// NewOpenWeatherClientWithOptions creates a client with explicit retry policy and quota.
func NewOpenWeatherClientWithOptions(apiKey, baseURL string, timeout time.Duration, opts Options) (*OpenWeatherClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: API key is required", ErrInvalidAPIKey)
	}
	if len(apiKey) < 10 {
		return nil, fmt.Errorf("%w: API key appears invalid (too short)", ErrInvalidAPIKey)
	}
	if opts.RetryAttempts <= 0 {
		opts.RetryAttempts = 3
	}
	if opts.RetryBaseDelay <= 0 {
		opts.RetryBaseDelay = 100 * time.Millisecond
	}
	if opts.RetryMaxDelay <= 0 {
		opts.RetryMaxDelay = 2 * time.Second
	}

	return &OpenWeatherClient{
		apiKey:         apiKey,
		baseURL:        strings.TrimRight(baseURL, "/"),
		timeout:        timeout,
		retryAttempts:  opts.RetryAttempts,
		retryBaseDelay: opts.RetryBaseDelay,
		retryMaxDelay:  opts.RetryMaxDelay,
		quota:          opts.Quota,
		client: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// SetCircuitBreaker installs a breaker around provider calls. Optional.
func (c *OpenWeatherClient) SetCircuitBreaker(cb *circuitbreaker.CircuitBreaker) {
	c.breaker = cb
}

// CurrentConditions fetches current weather for the location.
func (c *OpenWeatherClient) CurrentConditions(ctx context.Context, loc models.Location) (CurrentPayload, error) {
	params := coordParams(loc)
	params.Set("units", "metric")
	var payload CurrentPayload
	err := c.getJSON(ctx, string(models.EndpointCurrent), "/weather", params, &payload)
	return payload, err
}

// Forecast fetches the 5-day/3-hour forecast for the location.
func (c *OpenWeatherClient) Forecast(ctx context.Context, loc models.Location) (ForecastPayload, error) {
	params := coordParams(loc)
	params.Set("units", "metric")
	var payload ForecastPayload
	err := c.getJSON(ctx, string(models.EndpointForecast), "/forecast", params, &payload)
	return payload, err
}

// Historical fetches observations for the given day via the timemachine endpoint.
func (c *OpenWeatherClient) Historical(ctx context.Context, loc models.Location, day time.Time) (HistoricalPayload, error) {
	params := coordParams(loc)
	params.Set("units", "metric")
	params.Set("dt", strconv.FormatInt(day.Unix(), 10))
	var payload HistoricalPayload
	err := c.getJSON(ctx, string(models.EndpointHistorical), "/onecall/timemachine", params, &payload)
	return payload, err
}

// Alerts fetches provider-issued weather alerts for the location.
func (c *OpenWeatherClient) Alerts(ctx context.Context, loc models.Location) (AlertsPayload, error) {
	params := coordParams(loc)
	params.Set("exclude", "current,minutely,hourly,daily")
	var payload AlertsPayload
	err := c.getJSON(ctx, string(models.EndpointAlerts), "/onecall", params, &payload)
	return payload, err
}

// ValidateAPIKey performs a canned request to verify the configured key.
func (c *OpenWeatherClient) ValidateAPIKey(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	params := url.Values{}
	params.Set("q", "London")
	req, err := c.buildRequest(ctx, "/weather", params)
	if err != nil {
		return fmt.Errorf("build validation request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("validation request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("%w: API key is invalid or not activated", ErrInvalidAPIKey)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("validation failed: HTTP %d", resp.StatusCode)
	}
	return nil
}

func coordParams(loc models.Location) url.Values {
	params := url.Values{}
	params.Set("lat", strconv.FormatFloat(loc.Lat, 'f', 4, 64))
	params.Set("lon", strconv.FormatFloat(loc.Lon, 'f', 4, 64))
	return params
}

// getJSON performs a GET with retry and decodes the response into out.
func (c *OpenWeatherClient) getJSON(ctx context.Context, endpoint, path string, params url.Values, out interface{}) error {
	call := func() error {
		return c.doWithRetry(ctx, endpoint, path, params, out)
	}
	if c.breaker != nil {
		return c.breaker.Call(ctx, call)
	}
	return call()
}

func (c *OpenWeatherClient) doWithRetry(ctx context.Context, endpoint, path string, params url.Values, out interface{}) error {
	var lastErr error

	for attempt := 0; attempt < c.retryAttempts; attempt++ {
		if attempt > 0 {
			observability.ProviderRetriesTotal.Inc()
			delay := c.calculateBackoff(attempt)
			select {
			case <-ctx.Done():
				return fmt.Errorf("%w: %v", ErrNetwork, ctx.Err())
			case <-time.After(delay):
			}
		}

		err := c.callOnce(ctx, endpoint, path, params, out)
		if err == nil {
			return nil
		}

		lastErr = err
		if !isRetryable(err) {
			return err
		}
	}

	return fmt.Errorf("exhausted retries: %w", lastErr)
}

func (c *OpenWeatherClient) callOnce(ctx context.Context, endpoint, path string, params url.Values, out interface{}) error {
	if c.quota != nil && !c.quota.Allow() {
		observability.ProviderQuotaDeniedTotal.Inc()
		return ErrQuotaExhausted
	}

	start := time.Now()
	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := c.buildRequest(reqCtx, path, params)
	if err != nil {
		observability.ProviderCallsTotal.WithLabelValues(endpoint, "error").Inc()
		return fmt.Errorf("build request: %w", err)
	}

	if corrID := extractCorrelationID(ctx); corrID != "" {
		req.Header.Set("X-Correlation-ID", corrID)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		duration := time.Since(start).Seconds()
		observability.ProviderCallsTotal.WithLabelValues(endpoint, "error").Inc()
		observability.ProviderCallDuration.WithLabelValues(endpoint, "error").Observe(duration)

		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return fmt.Errorf("%w: request timeout: %v", ErrNetwork, err)
		}
		return fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	duration := time.Since(start).Seconds()
	status := statusLabel(resp.StatusCode)
	observability.ProviderCallsTotal.WithLabelValues(endpoint, status).Inc()
	observability.ProviderCallDuration.WithLabelValues(endpoint, status).Observe(duration)

	if err := handleErrorResponse(resp); err != nil {
		return err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: read response body: %v", ErrNetwork, err)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}

func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrQuotaExhausted) {
		return false
	}
	if errors.Is(err, ErrRateLimited) || errors.Is(err, ErrUpstreamFailure) || errors.Is(err, ErrNetwork) {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "context deadline exceeded") ||
		strings.Contains(errStr, "context canceled")
}

func (c *OpenWeatherClient) calculateBackoff(attempt int) time.Duration {
	delay := float64(c.retryBaseDelay) * math.Pow(2, float64(attempt-1))
	if delay > float64(c.retryMaxDelay) {
		delay = float64(c.retryMaxDelay)
	}

	jitter := delay * 0.1 * rand.Float64()
	return time.Duration(delay + jitter)
}

func (c *OpenWeatherClient) buildRequest(ctx context.Context, path string, params url.Values) (*http.Request, error) {
	u, err := url.Parse(c.baseURL + path)
	if err != nil {
		return nil, fmt.Errorf("invalid API URL: %w", err)
	}
	params.Set("appid", c.apiKey)
	u.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, "GET", u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func handleErrorResponse(resp *http.Response) error {
	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return fmt.Errorf("%w: invalid API key", ErrInvalidAPIKey)
	case http.StatusNotFound:
		return fmt.Errorf("%w", ErrLocationNotFound)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w", ErrRateLimited)
	case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return fmt.Errorf("%w: HTTP %d", ErrUpstreamFailure, resp.StatusCode)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: HTTP %d", ErrUpstreamFailure, resp.StatusCode)
	}
	return nil
}

func extractCorrelationID(ctx context.Context) string {
	if v := ctx.Value("correlation_id"); v != nil {
		if corrID, ok := v.(string); ok {
			return corrID
		}
	}
	return ""
}

func statusLabel(statusCode int) string {
	if statusCode >= 200 && statusCode < 300 {
		return "success"
	}
	if statusCode == 429 {
		return "rate_limited"
	}
	if statusCode >= 400 && statusCode < 500 {
		return "client_error"
	}
	if statusCode >= 500 {
		return "server_error"
	}
	return "error"
}
