package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/climatrack/climatrack/internal/analytics"
	"github.com/climatrack/climatrack/internal/cache"
	"github.com/climatrack/climatrack/internal/circuitbreaker"
	"github.com/climatrack/climatrack/internal/client"
	"github.com/climatrack/climatrack/internal/config"
	"github.com/climatrack/climatrack/internal/gateway"
	httphandler "github.com/climatrack/climatrack/internal/http"
	"github.com/climatrack/climatrack/internal/lifecycle"
	"github.com/climatrack/climatrack/internal/observability"
)

func main() {
	logger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}

	var quota client.Quota
	if cfg.ProviderQuotaRPS > 0 {
		quota = rate.NewLimiter(rate.Limit(cfg.ProviderQuotaRPS), cfg.ProviderQuotaBurst)
		logger.Info("provider quota enabled", zap.Float64("rps", cfg.ProviderQuotaRPS), zap.Int("burst", cfg.ProviderQuotaBurst))
	}

	provider, err := client.NewOpenWeatherClientWithOptions(
		cfg.WeatherAPIKey,
		cfg.WeatherAPIURL,
		cfg.WeatherAPITimeout,
		client.Options{
			RetryAttempts:  cfg.RetryAttempts,
			RetryBaseDelay: cfg.RetryBaseDelay,
			RetryMaxDelay:  cfg.RetryMaxDelay,
			Quota:          quota,
		},
	)
	if err != nil {
		logger.Fatal("weather client", zap.Error(err))
	}

	geocoder, err := client.NewGeoClient(cfg.WeatherAPIKey, cfg.GeoAPIURL, cfg.WeatherAPITimeout)
	if err != nil {
		logger.Fatal("geo client", zap.Error(err))
	}

	if cfg.BreakerEnabled {
		cb := circuitbreaker.New(circuitbreaker.Config{
			FailureThreshold: cfg.BreakerFailureThreshold,
			SuccessThreshold: cfg.BreakerSuccessThreshold,
			Timeout:          cfg.BreakerOpenTimeout,
			Component:        "weather_api",
			OnStateChange: func(from, to circuitbreaker.State) {
				observability.RecordCircuitBreakerTransition("weather_api", from.String(), to.String())
				observability.SetCircuitBreakerStateGauge("weather_api", observability.CircuitBreakerStateValue(int(to)))
			},
		})
		provider.SetCircuitBreaker(cb)
		observability.SetCircuitBreakerStateGauge("weather_api", 0)
		logger.Info("circuit breaker enabled", zap.Int("failure_threshold", cfg.BreakerFailureThreshold), zap.Duration("open_timeout", cfg.BreakerOpenTimeout))
	}

	var cacheSvc cache.Cache
	var memcacheCloser *cache.MemcachedCache
	switch cfg.CacheBackend {
	case "memcached":
		mc, err := cache.NewMemcachedCache(cfg.MemcachedAddrs, cfg.MemcachedTimeout, cfg.MemcachedMaxIdleConns, cfg.CacheRetention)
		if err != nil {
			logger.Fatal("memcached cache", zap.Error(err))
		}
		memcacheCloser = mc
		cacheSvc = mc
		logger.Info("cache backend: memcached", zap.String("addrs", cfg.MemcachedAddrs))
	default:
		cacheSvc = cache.NewInMemoryCache(cfg.CacheRetention, cfg.CleanupInterval)
		logger.Info("cache backend: in_memory")
	}

	gw := gateway.New(provider, geocoder, cacheSvc, gateway.Options{
		TTL: gateway.TTLPolicy{
			Current:    cfg.TTLCurrent,
			Forecast:   cfg.TTLForecast,
			Historical: cfg.TTLHistorical,
			Alerts:     cfg.TTLAlerts,
		},
		StaleMaxAge:     cfg.StaleMaxAge,
		CoalesceEnabled: cfg.CoalescingEnabled,
		CoalesceTimeout: cfg.CoalescingTimeout,
	})
	engine := analytics.NewEngine(cfg.Analytics)

	healthConfig := &httphandler.HealthConfig{
		OverloadWindow:         cfg.OverloadWindow,
		OverloadThresholdPct:   cfg.OverloadThresholdPct,
		RateLimitRPS:           cfg.RateLimitRPS,
		RateLimitBurst:         cfg.RateLimitBurst,
		DegradedWindow:         cfg.DegradedWindow,
		DegradedErrorPct:       cfg.DegradedErrorPct,
		IdleWindow:             cfg.IdleWindow,
		IdleThresholdReqPerMin: cfg.IdleThresholdReqPerMin,
		MinimumLifespan:        cfg.MinimumLifespan,
		StartTime:              time.Now(),
	}
	if memcacheCloser != nil {
		healthConfig.CachePing = memcacheCloser.Ping
	}

	var limiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
	}
	handler := httphandler.NewHandler(gw, engine, provider, healthConfig, logger, limiter, cfg.LocationMinLen, cfg.LocationMaxLen)

	observability.RegisterRateLimitGauges(cfg.OverloadWindow)
	if len(cfg.TrackedLocations) > 0 {
		observability.SetTrackedLocations(cfg.TrackedLocations)
	}

	warmTargets := cfg.WarmingLocations
	if len(warmTargets) == 0 {
		warmTargets = cfg.TrackedLocations
	}
	if cfg.WarmingEnabled && len(warmTargets) > 0 {
		warmer := cache.NewWarmer(gw, logger)
		warmCtx, warmCancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := warmer.Warm(warmCtx, warmTargets); err != nil {
			logger.Warn("cache warming failed", zap.Error(err))
		}
		warmCancel()
		if cfg.WarmingInterval > 0 {
			go func() {
				if err := warmer.WarmPeriodic(context.Background(), warmTargets, cfg.WarmingInterval); err != nil && err != context.Canceled {
					logger.Error("periodic cache warming stopped", zap.Error(err))
				}
			}()
		}
	}

	router := mux.NewRouter()
	router.Use(httphandler.CorrelationIDMiddleware(logger))
	router.Use(httphandler.MetricsMiddleware)
	router.HandleFunc("/health", handler.GetHealth).Methods("GET")
	router.Handle("/metrics", observability.MetricsHandler())

	dataRouter := router.PathPrefix("/").Subrouter()
	dataRouter.Use(httphandler.RateLimitMiddleware(limiter))
	dataRouter.Use(httphandler.TimeoutMiddleware(cfg.RequestTimeout))
	dataRouter.HandleFunc("/weather/{location}", handler.GetCurrent).Methods("GET")
	dataRouter.HandleFunc("/forecast/{location}", handler.GetForecast).Methods("GET")
	dataRouter.HandleFunc("/historical/{location}", handler.GetHistorical).Methods("GET")
	dataRouter.HandleFunc("/alerts/{location}", handler.GetAlerts).Methods("GET")
	dataRouter.HandleFunc("/insights/{location}", handler.GetInsights).Methods("GET")

	srv := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("server starting", zap.String("addr", ":"+cfg.ServerPort))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	<-ctx.Done()
	stop()

	logger.Info("graceful shutdown triggered")
	lifecycle.SetShuttingDown(true)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}

	inFlight := httphandler.InFlightCount()
	logger.Info("waiting for in-flight requests", zap.Int64("count", inFlight))
	observability.RecordShutdownInFlight(inFlight)
	waitCtx, waitCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer waitCancel()
	if err := httphandler.WaitForInFlight(waitCtx, 100*time.Millisecond); err != nil {
		logger.Warn("in-flight requests not completed", zap.Error(err), zap.Int64("remaining", httphandler.InFlightCount()))
	}

	if err := observability.FlushTelemetry(context.Background(), logger); err != nil {
		logger.Error("telemetry flush", zap.Error(err))
	}

	if memcacheCloser != nil {
		if err := memcacheCloser.Close(); err != nil {
			logger.Error("memcached close", zap.Error(err))
		}
	}
	logger.Info("shutdown complete")
}
