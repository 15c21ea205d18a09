package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/climatrack/climatrack/internal/analytics"
	"github.com/climatrack/climatrack/internal/client"
	"github.com/climatrack/climatrack/internal/degraded"
	"github.com/climatrack/climatrack/internal/gateway"
	"github.com/climatrack/climatrack/internal/idle"
	"github.com/climatrack/climatrack/internal/lifecycle"
	"github.com/climatrack/climatrack/internal/observability"
	"github.com/climatrack/climatrack/internal/overload"
	"github.com/climatrack/climatrack/internal/validation"
)

// HealthConfig holds lifecycle thresholds for the health handler.
type HealthConfig struct {
	OverloadWindow         time.Duration
	OverloadThresholdPct   int
	RateLimitRPS           int
	RateLimitBurst         int // 0 when rate limiter disabled
	DegradedWindow         time.Duration
	DegradedErrorPct       int
	IdleWindow             time.Duration
	IdleThresholdReqPerMin int
	MinimumLifespan        time.Duration
	StartTime              time.Time
	// CachePing, when set, is called to check cache reachability. Used when backend is memcached.
	CachePing func() error
}

// KeyValidator verifies the configured provider credential. Satisfied by the
// provider client.
type KeyValidator interface {
	ValidateAPIKey(ctx context.Context) error
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	gateway          *gateway.Gateway
	engine           *analytics.Engine
	keyValidator     KeyValidator
	healthConfig     *HealthConfig
	logger           *zap.Logger
	rateLimiter      *rate.Limiter
	locationMinLen   int
	locationMaxLen   int
	healthStatusMu   sync.Mutex
	healthStatusPrev string
}

// NewHandler returns a new Handler.
func NewHandler(
	gw *gateway.Gateway,
	engine *analytics.Engine,
	keyValidator KeyValidator,
	healthConfig *HealthConfig,
	logger *zap.Logger,
	rateLimiter *rate.Limiter,
	locationMinLen, locationMaxLen int,
) *Handler {
	return &Handler{
		gateway:        gw,
		engine:         engine,
		keyValidator:   keyValidator,
		healthConfig:   healthConfig,
		logger:         logger,
		rateLimiter:    rateLimiter,
		locationMinLen: locationMinLen,
		locationMaxLen: locationMaxLen,
	}
}

// GetCurrent handles GET /weather/{location}.
func (h *Handler) GetCurrent(w http.ResponseWriter, r *http.Request) {
	location, ok := h.location(w, r)
	if !ok {
		return
	}
	h.serve(w, r, location, func(ctx context.Context) (interface{}, error) {
		return h.gateway.CurrentConditions(ctx, location)
	})
}

// GetForecast handles GET /forecast/{location}?days=N.
func (h *Handler) GetForecast(w http.ResponseWriter, r *http.Request) {
	location, ok := h.location(w, r)
	if !ok {
		return
	}
	days, err := daysParam(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_DAYS", err.Error())
		return
	}
	h.serve(w, r, location, func(ctx context.Context) (interface{}, error) {
		return h.gateway.Forecast(ctx, location, days)
	})
}

// GetHistorical handles GET /historical/{location}?date=YYYY-MM-DD.
func (h *Handler) GetHistorical(w http.ResponseWriter, r *http.Request) {
	location, ok := h.location(w, r)
	if !ok {
		return
	}
	dateStr := r.URL.Query().Get("date")
	if dateStr == "" {
		writeError(w, r, http.StatusBadRequest, "INVALID_DATE", "date query parameter is required")
		return
	}
	date, err := time.Parse("2006-01-02", dateStr)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_DATE", "date must be YYYY-MM-DD")
		return
	}
	h.serve(w, r, location, func(ctx context.Context) (interface{}, error) {
		return h.gateway.Historical(ctx, location, date)
	})
}

// GetAlerts handles GET /alerts/{location}.
func (h *Handler) GetAlerts(w http.ResponseWriter, r *http.Request) {
	location, ok := h.location(w, r)
	if !ok {
		return
	}
	h.serve(w, r, location, func(ctx context.Context) (interface{}, error) {
		return h.gateway.Alerts(ctx, location)
	})
}

// GetInsights handles GET /insights/{location}?days=N. Fetches the forecast
// through the gateway and runs the analytics engine over it.
func (h *Handler) GetInsights(w http.ResponseWriter, r *http.Request) {
	location, ok := h.location(w, r)
	if !ok {
		return
	}
	days, err := daysParam(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_DAYS", err.Error())
		return
	}
	h.serve(w, r, location, func(ctx context.Context) (interface{}, error) {
		series, err := h.gateway.Forecast(ctx, location, days)
		if err != nil {
			return nil, err
		}
		start := time.Now()
		bundle, err := h.engine.Analyze(series)
		if err != nil {
			return nil, err
		}
		observability.InsightComputationsTotal.Inc()
		observability.InsightComputationDurationSeconds.Observe(time.Since(start).Seconds())
		return bundle, nil
	})
}

// location extracts and validates the {location} path variable, writing a
// 400 response on failure.
func (h *Handler) location(w http.ResponseWriter, r *http.Request) (string, bool) {
	location, err := validation.ValidateLocation(mux.Vars(r)["location"], h.locationMinLen, h.locationMaxLen)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_LOCATION", err.Error())
		return "", false
	}
	return location, true
}

// serve runs a fetch, records lifecycle signals, and writes the result or
// the mapped error.
func (h *Handler) serve(w http.ResponseWriter, r *http.Request, location string, fetch func(ctx context.Context) (interface{}, error)) {
	idle.RecordRequest()
	observability.RecordWeatherQuery(location)

	result, err := fetch(r.Context())
	if err != nil {
		degraded.RecordError()
		observability.WeatherQueryErrorsTotal.WithLabelValues(getRoute(r), string(client.CategorizeError(err))).Inc()
		writeGatewayError(w, r, err)
		return
	}
	degraded.RecordSuccess()
	writeJSON(w, http.StatusOK, result)
}

func daysParam(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("days")
	if raw == "" {
		return 0, nil
	}
	days, err := strconv.Atoi(raw)
	if err != nil || days < 1 || days > gateway.MaxForecastDays {
		return 0, errors.New("days must be an integer between 1 and " + strconv.Itoa(gateway.MaxForecastDays))
	}
	return days, nil
}

// healthResult holds the computed health status and metadata for logging.
type healthResult struct {
	status     string
	statusCode int
	reason     string
}

// GetHealth handles GET /health.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	result := h.computeHealthStatus(r.Context())

	h.healthStatusMu.Lock()
	prev := h.healthStatusPrev
	if prev != "" && prev != result.status {
		h.logger.Info("health status transition",
			zap.String("previous_status", prev),
			zap.String("current_status", result.status),
			zap.String("reason", result.reason))
	}
	h.healthStatusPrev = result.status
	h.healthStatusMu.Unlock()

	checks := make(map[string]string)
	if result.status == "degraded" {
		checks["weatherApi"] = "unhealthy"
	} else {
		checks["weatherApi"] = "healthy"
	}
	if h.healthConfig != nil && h.healthConfig.CachePing != nil {
		if h.healthConfig.CachePing() == nil {
			checks["cache"] = "healthy"
		} else {
			checks["cache"] = "unhealthy"
		}
	}
	resp := map[string]interface{}{
		"status":    result.status,
		"service":   "climatrack",
		"version":   "dev",
		"checks":    checks,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(result.statusCode)
	_ = json.NewEncoder(w).Encode(resp)
}

// computeHealthStatus determines the current health status by evaluating multiple conditions
// in priority order. Returns healthResult with status, HTTP status code, and reason.
// Decision order: shutting-down > API key invalid > overloaded > idle > degraded > healthy.
// Each condition is evaluated only if previous conditions are not met.
func (h *Handler) computeHealthStatus(ctx context.Context) healthResult {
	if lifecycle.IsShuttingDown() {
		return healthResult{"shutting-down", http.StatusServiceUnavailable, "signal"}
	}
	if h.healthConfig == nil {
		if err := h.keyValidator.ValidateAPIKey(ctx); err != nil {
			return healthResult{"degraded", http.StatusServiceUnavailable, "api_key_invalid"}
		}
		return healthResult{"healthy", http.StatusOK, ""}
	}
	if err := h.keyValidator.ValidateAPIKey(ctx); err != nil {
		return healthResult{"degraded", http.StatusServiceUnavailable, "api_key_invalid"}
	}
	threshold := float64(h.healthConfig.RateLimitRPS) * h.healthConfig.OverloadWindow.Seconds() * float64(h.healthConfig.OverloadThresholdPct) / 100
	if float64(overload.RequestCount(h.healthConfig.OverloadWindow)) > threshold {
		return healthResult{"overloaded", http.StatusServiceUnavailable, "overload_threshold"}
	}
	if h.healthConfig.IdleWindow > 0 && h.healthConfig.MinimumLifespan > 0 && time.Since(h.healthConfig.StartTime) >= h.healthConfig.MinimumLifespan {
		if idle.RequestCount(h.healthConfig.IdleWindow) < h.healthConfig.IdleThresholdReqPerMin {
			return healthResult{"idle", http.StatusOK, "low_traffic"}
		}
	}
	if h.healthConfig.DegradedWindow > 0 && h.healthConfig.DegradedErrorPct > 0 {
		errCount, total := degraded.ErrorRate(h.healthConfig.DegradedWindow)
		if total > 0 {
			pct := float64(errCount) * 100 / float64(total)
			if pct >= float64(h.healthConfig.DegradedErrorPct) {
				return healthResult{"degraded", http.StatusServiceUnavailable, "error_rate_breach"}
			}
		}
	}
	return healthResult{"healthy", http.StatusOK, ""}
}

// writeJSON writes a JSON response with the specified HTTP status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes an error response in the standard error format with code, message,
// and requestId (correlation ID) if available in request context.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	corrID, _ := r.Context().Value("correlation_id").(string)
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]string{
			"code":      code,
			"message":   message,
			"requestId": corrID,
		},
	})
}

// writeGatewayError maps the gateway failure taxonomy onto HTTP status codes.
// The underlying error is logged at DEBUG, never exposed to the client.
func writeGatewayError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, gateway.ErrRateLimited):
		writeError(w, r, http.StatusTooManyRequests, "RATE_LIMITED", "Provider call quota exceeded, try again later")
	case errors.Is(err, client.ErrLocationNotFound):
		writeError(w, r, http.StatusNotFound, "NOT_FOUND", "Location not found")
	case errors.Is(err, gateway.ErrValidation):
		writeError(w, r, http.StatusBadGateway, "BAD_RESPONSE", "Weather provider returned malformed data")
	case errors.Is(err, analytics.ErrComputationUnavailable):
		writeError(w, r, http.StatusNotFound, "NO_DATA", "No weather records available for analysis")
	default:
		writeError(w, r, http.StatusServiceUnavailable, "UPSTREAM_UNAVAILABLE", "Unable to fetch weather data")
	}
	if logger, ok := r.Context().Value("logger").(*zap.Logger); ok && logger != nil {
		logger.Debug("request failed", zap.Error(err))
	}
}
