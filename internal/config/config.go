package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/climatrack/climatrack/internal/analytics"
)

// Config holds service configuration loaded from YAML and env.
type Config struct {
	ServerPort string

	WeatherAPIKey     string
	WeatherAPIURL     string
	GeoAPIURL         string
	WeatherAPITimeout time.Duration

	RequestTimeout time.Duration

	CacheBackend    string // "in_memory" or "memcached"
	TTLCurrent      time.Duration
	TTLForecast     time.Duration
	TTLHistorical   time.Duration
	TTLAlerts       time.Duration
	StaleMaxAge     time.Duration // 0 disables stale fallback
	CacheRetention  time.Duration
	CleanupInterval time.Duration

	MemcachedAddrs        string
	MemcachedTimeout      time.Duration
	MemcachedMaxIdleConns int

	RetryAttempts  int
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration

	// Inbound (consumer-facing) rate limit.
	RateLimitRPS   int
	RateLimitBurst int

	// Outbound provider call quota. 0 RPS disables the quota.
	ProviderQuotaRPS   float64
	ProviderQuotaBurst int

	CoalescingEnabled bool
	CoalescingTimeout time.Duration

	BreakerEnabled          bool
	BreakerFailureThreshold int
	BreakerSuccessThreshold int
	BreakerOpenTimeout      time.Duration

	WarmingEnabled   bool
	WarmingInterval  time.Duration
	WarmingLocations []string

	ShutdownTimeout time.Duration

	OverloadWindow         time.Duration
	OverloadThresholdPct   int
	IdleThresholdReqPerMin int
	IdleWindow             time.Duration
	MinimumLifespan        time.Duration
	DegradedWindow         time.Duration
	DegradedErrorPct       int

	LocationMinLen int
	LocationMaxLen int

	TrackedLocations []string

	Analytics analytics.Config
}

type fileConfig struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`

	WeatherAPI struct {
		URL     string `yaml:"url"`
		GeoURL  string `yaml:"geo_url"`
		Timeout string `yaml:"timeout"`
	} `yaml:"weather_api"`

	Request struct {
		Timeout string `yaml:"timeout"`
	} `yaml:"request"`

	Cache struct {
		Backend         string `yaml:"backend"`
		TTLCurrent      string `yaml:"ttl_current"`
		TTLForecast     string `yaml:"ttl_forecast"`
		TTLHistorical   string `yaml:"ttl_historical"`
		TTLAlerts       string `yaml:"ttl_alerts"`
		StaleMaxAge     string `yaml:"stale_max_age"`
		Retention       string `yaml:"retention"`
		CleanupInterval string `yaml:"cleanup_interval"`
		Memcached       struct {
			Addrs        string `yaml:"addrs"`
			Timeout      string `yaml:"timeout"`
			MaxIdleConns int    `yaml:"max_idle_conns"`
		} `yaml:"memcached"`
	} `yaml:"cache"`

	Reliability struct {
		RetryMaxAttempts   int     `yaml:"retry_max_attempts"`
		RetryBaseDelay     string  `yaml:"retry_base_delay"`
		RetryMaxDelay      string  `yaml:"retry_max_delay"`
		RateLimitRPS       int     `yaml:"rate_limit_rps"`
		RateLimitBurst     int     `yaml:"rate_limit_burst"`
		ProviderQuotaRPS   float64 `yaml:"provider_quota_rps"`
		ProviderQuotaBurst int     `yaml:"provider_quota_burst"`
		Coalescing         struct {
			Enabled *bool  `yaml:"enabled"`
			Timeout string `yaml:"timeout"`
		} `yaml:"coalescing"`
		CircuitBreaker struct {
			Enabled          bool   `yaml:"enabled"`
			FailureThreshold int    `yaml:"failure_threshold"`
			SuccessThreshold int    `yaml:"success_threshold"`
			OpenTimeout      string `yaml:"open_timeout"`
		} `yaml:"circuit_breaker"`
	} `yaml:"reliability"`

	Warming struct {
		Enabled   bool     `yaml:"enabled"`
		Interval  string   `yaml:"interval"`
		Locations []string `yaml:"locations"`
	} `yaml:"warming"`

	Shutdown struct {
		Timeout string `yaml:"timeout"`
	} `yaml:"shutdown"`

	Lifecycle struct {
		OverloadWindow         string `yaml:"overload_window"`
		OverloadThresholdPct   int    `yaml:"overload_threshold_pct"`
		IdleThresholdReqPerMin int    `yaml:"idle_threshold_req_per_min"`
		IdleWindow             string `yaml:"idle_window"`
		MinimumLifespan        string `yaml:"minimum_lifespan"`
		DegradedWindow         string `yaml:"degraded_window"`
		DegradedErrorPct       int    `yaml:"degraded_error_pct"`
	} `yaml:"lifecycle"`

	Location struct {
		MinLen int `yaml:"min_len"`
		MaxLen int `yaml:"max_len"`
	} `yaml:"location"`

	Metrics struct {
		TrackedLocations []string `yaml:"tracked_locations"`
	} `yaml:"metrics"`

	Analytics struct {
		IdealTempLow         *float64 `yaml:"ideal_temp_low"`
		IdealTempHigh        *float64 `yaml:"ideal_temp_high"`
		ColdPenaltyPerDeg    *float64 `yaml:"cold_penalty_per_deg"`
		HeatPenaltyPerDeg    *float64 `yaml:"heat_penalty_per_deg"`
		HumidityLow          *float64 `yaml:"humidity_low"`
		HumidityHigh         *float64 `yaml:"humidity_high"`
		DryPenaltyPerPct     *float64 `yaml:"dry_penalty_per_pct"`
		HumidPenaltyPerPct   *float64 `yaml:"humid_penalty_per_pct"`
		CalmWindMax          *float64 `yaml:"calm_wind_max"`
		WindPenaltyPerMS     *float64 `yaml:"wind_penalty_per_ms"`
		TempTrendEpsilon     *float64 `yaml:"temp_trend_epsilon"`
		PressureTrendEpsilon *float64 `yaml:"pressure_trend_epsilon"`
		PrecipTrendEpsilon   *float64 `yaml:"precip_trend_epsilon"`
		VolatilityThreshold  *float64 `yaml:"volatility_threshold"`
		HeatWaveMeanTemp     *float64 `yaml:"heat_wave_mean_temp"`
		ColdSnapMeanTemp     *float64 `yaml:"cold_snap_mean_temp"`
		VolatilityWeight     *float64 `yaml:"volatility_weight"`
		ReversalWeight       *float64 `yaml:"reversal_weight"`
	} `yaml:"analytics"`
}

type secretsFile struct {
	WeatherAPIKey string `yaml:"weather_api_key"`
}

// Load reads configuration from config/{ENV_NAME}.yaml (default dev) and config/secrets.yaml.
// A .env file, if present, is loaded first. API key comes from WEATHER_API_KEY env or the
// secrets file. Call from project root.
func Load() (*Config, error) {
	_ = godotenv.Load()

	env := os.Getenv("ENV_NAME")
	if env == "" {
		env = "dev"
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("config: get working directory: %w", err)
	}
	configPath := filepath.Join(cwd, "config", env+".yaml")
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", configPath)
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	cfg := &Config{}

	cfg.ServerPort = fc.Server.Port
	if cfg.ServerPort == "" {
		cfg.ServerPort = "8080"
	}

	cfg.WeatherAPIKey = os.Getenv("WEATHER_API_KEY")
	if cfg.WeatherAPIKey == "" {
		secretsPath := filepath.Join(cwd, "config", "secrets.yaml")
		secretsData, err := os.ReadFile(secretsPath)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read secrets file: %w", err)
			}
		} else {
			var sec secretsFile
			if err := yaml.Unmarshal(secretsData, &sec); err != nil {
				return nil, fmt.Errorf("parse secrets file: %w", err)
			}
			cfg.WeatherAPIKey = sec.WeatherAPIKey
		}
	}
	if cfg.WeatherAPIKey == "" {
		return nil, fmt.Errorf("WEATHER_API_KEY required (set env, .env, or config/secrets.yaml weather_api_key)")
	}

	cfg.WeatherAPIURL = fc.WeatherAPI.URL
	if cfg.WeatherAPIURL == "" {
		cfg.WeatherAPIURL = "https://api.openweathermap.org/data/2.5"
	}
	cfg.GeoAPIURL = fc.WeatherAPI.GeoURL
	if cfg.GeoAPIURL == "" {
		cfg.GeoAPIURL = "https://api.openweathermap.org/geo/1.0"
	}
	cfg.WeatherAPITimeout = parseDurationOrZero(fc.WeatherAPI.Timeout, 2*time.Second)

	cfg.RequestTimeout = parseDuration(fc.Request.Timeout, 5*time.Second)

	cfg.CacheBackend = strings.TrimSpace(strings.ToLower(os.Getenv("CACHE_BACKEND")))
	if cfg.CacheBackend == "" {
		cfg.CacheBackend = strings.TrimSpace(strings.ToLower(fc.Cache.Backend))
	}
	if cfg.CacheBackend == "" {
		cfg.CacheBackend = "in_memory"
	}
	cfg.TTLCurrent = parseDuration(fc.Cache.TTLCurrent, 5*time.Minute)
	cfg.TTLForecast = parseDuration(fc.Cache.TTLForecast, 30*time.Minute)
	cfg.TTLHistorical = parseDuration(fc.Cache.TTLHistorical, 24*time.Hour)
	cfg.TTLAlerts = parseDuration(fc.Cache.TTLAlerts, 2*time.Minute)
	cfg.StaleMaxAge = parseDurationOrZero(fc.Cache.StaleMaxAge, time.Hour)
	cfg.CacheRetention = parseDuration(fc.Cache.Retention, 24*time.Hour)
	cfg.CleanupInterval = parseDuration(fc.Cache.CleanupInterval, 10*time.Minute)

	cfg.MemcachedAddrs = strings.TrimSpace(os.Getenv("MEMCACHED_ADDRS"))
	if cfg.MemcachedAddrs == "" {
		cfg.MemcachedAddrs = strings.TrimSpace(fc.Cache.Memcached.Addrs)
	}
	if cfg.MemcachedAddrs == "" {
		cfg.MemcachedAddrs = "localhost:11211"
	}
	cfg.MemcachedTimeout = parseDuration(fc.Cache.Memcached.Timeout, 500*time.Millisecond)
	cfg.MemcachedMaxIdleConns = fc.Cache.Memcached.MaxIdleConns
	if cfg.MemcachedMaxIdleConns <= 0 {
		cfg.MemcachedMaxIdleConns = 2
	}

	cfg.RetryAttempts = fc.Reliability.RetryMaxAttempts
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = 3
	}
	cfg.RetryBaseDelay = parseDuration(fc.Reliability.RetryBaseDelay, 100*time.Millisecond)
	cfg.RetryMaxDelay = parseDuration(fc.Reliability.RetryMaxDelay, 2*time.Second)
	cfg.RateLimitRPS = fc.Reliability.RateLimitRPS
	if cfg.RateLimitRPS <= 0 {
		cfg.RateLimitRPS = 100
	}
	cfg.RateLimitBurst = fc.Reliability.RateLimitBurst
	if cfg.RateLimitBurst <= 0 {
		cfg.RateLimitBurst = 250
	}
	cfg.ProviderQuotaRPS = fc.Reliability.ProviderQuotaRPS
	cfg.ProviderQuotaBurst = fc.Reliability.ProviderQuotaBurst
	if cfg.ProviderQuotaRPS > 0 && cfg.ProviderQuotaBurst <= 0 {
		cfg.ProviderQuotaBurst = 10
	}

	cfg.CoalescingEnabled = true
	if fc.Reliability.Coalescing.Enabled != nil {
		cfg.CoalescingEnabled = *fc.Reliability.Coalescing.Enabled
	}
	cfg.CoalescingTimeout = parseDuration(fc.Reliability.Coalescing.Timeout, 10*time.Second)

	cfg.BreakerEnabled = fc.Reliability.CircuitBreaker.Enabled
	cfg.BreakerFailureThreshold = fc.Reliability.CircuitBreaker.FailureThreshold
	cfg.BreakerSuccessThreshold = fc.Reliability.CircuitBreaker.SuccessThreshold
	cfg.BreakerOpenTimeout = parseDuration(fc.Reliability.CircuitBreaker.OpenTimeout, 30*time.Second)

	cfg.WarmingEnabled = fc.Warming.Enabled
	cfg.WarmingInterval = parseDuration(fc.Warming.Interval, 15*time.Minute)
	cfg.WarmingLocations = fc.Warming.Locations

	cfg.ShutdownTimeout = parseDuration(fc.Shutdown.Timeout, 30*time.Second)

	cfg.OverloadWindow = parseDuration(fc.Lifecycle.OverloadWindow, 60*time.Second)
	cfg.OverloadThresholdPct = fc.Lifecycle.OverloadThresholdPct
	if cfg.OverloadThresholdPct <= 0 {
		cfg.OverloadThresholdPct = 80
	}
	cfg.IdleThresholdReqPerMin = fc.Lifecycle.IdleThresholdReqPerMin
	if cfg.IdleThresholdReqPerMin <= 0 {
		cfg.IdleThresholdReqPerMin = 5
	}
	cfg.IdleWindow = parseDuration(fc.Lifecycle.IdleWindow, 5*time.Minute)
	cfg.MinimumLifespan = parseDuration(fc.Lifecycle.MinimumLifespan, 5*time.Minute)
	cfg.DegradedWindow = parseDuration(fc.Lifecycle.DegradedWindow, 60*time.Second)
	cfg.DegradedErrorPct = fc.Lifecycle.DegradedErrorPct
	if cfg.DegradedErrorPct <= 0 {
		cfg.DegradedErrorPct = 5
	}

	cfg.LocationMinLen = fc.Location.MinLen
	if cfg.LocationMinLen <= 0 {
		cfg.LocationMinLen = 2
	}
	cfg.LocationMaxLen = fc.Location.MaxLen
	if cfg.LocationMaxLen <= 0 {
		cfg.LocationMaxLen = 80
	}

	cfg.TrackedLocations = fc.Metrics.TrackedLocations

	cfg.Analytics = analyticsConfig(fc)

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// analyticsConfig starts from the reference defaults and applies any
// overrides present in the file.
func analyticsConfig(fc fileConfig) analytics.Config {
	ac := analytics.DefaultConfig()
	a := fc.Analytics
	override := func(dst *float64, src *float64) {
		if src != nil {
			*dst = *src
		}
	}
	override(&ac.IdealTempLow, a.IdealTempLow)
	override(&ac.IdealTempHigh, a.IdealTempHigh)
	override(&ac.ColdPenaltyPerDeg, a.ColdPenaltyPerDeg)
	override(&ac.HeatPenaltyPerDeg, a.HeatPenaltyPerDeg)
	override(&ac.HumidityLow, a.HumidityLow)
	override(&ac.HumidityHigh, a.HumidityHigh)
	override(&ac.DryPenaltyPerPct, a.DryPenaltyPerPct)
	override(&ac.HumidPenaltyPerPct, a.HumidPenaltyPerPct)
	override(&ac.CalmWindMax, a.CalmWindMax)
	override(&ac.WindPenaltyPerMS, a.WindPenaltyPerMS)
	override(&ac.TempTrendEpsilon, a.TempTrendEpsilon)
	override(&ac.PressureTrendEpsilon, a.PressureTrendEpsilon)
	override(&ac.PrecipTrendEpsilon, a.PrecipTrendEpsilon)
	override(&ac.VolatilityThreshold, a.VolatilityThreshold)
	override(&ac.HeatWaveMeanTemp, a.HeatWaveMeanTemp)
	override(&ac.ColdSnapMeanTemp, a.ColdSnapMeanTemp)
	override(&ac.VolatilityWeight, a.VolatilityWeight)
	override(&ac.ReversalWeight, a.ReversalWeight)
	return ac
}

// parseDuration parses a duration string and returns defaultVal if parsing fails or result is <= 0.
func parseDuration(s string, defaultVal time.Duration) time.Duration {
	d := parseDurationOrZero(s, defaultVal)
	if d <= 0 {
		return defaultVal
	}
	return d
}

// parseDurationOrZero parses a duration string, returning defaultVal on empty string or parse error.
// Returns zero or negative durations as-is (caller should handle fallback).
func parseDurationOrZero(s string, defaultVal time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return defaultVal
	}
	return d
}

// validate performs post-load validation of configuration values.
// Ensures WeatherAPITimeout is positive, RequestTimeout exceeds it, the
// cache backend is known, and the analytics bands are ordered.
func validate(cfg *Config) error {
	if cfg.WeatherAPITimeout <= 0 {
		return fmt.Errorf("weather_api.timeout must be positive")
	}
	if cfg.RequestTimeout <= cfg.WeatherAPITimeout {
		cfg.RequestTimeout = cfg.WeatherAPITimeout + time.Second
	}
	switch cfg.CacheBackend {
	case "in_memory", "memcached":
		// valid
	default:
		return fmt.Errorf("cache.backend must be in_memory or memcached, got %q", cfg.CacheBackend)
	}
	if cfg.StaleMaxAge < 0 {
		cfg.StaleMaxAge = 0
	}
	if cfg.StaleMaxAge > 0 && cfg.CacheRetention < cfg.StaleMaxAge {
		cfg.CacheRetention = cfg.StaleMaxAge
	}
	a := cfg.Analytics
	if a.IdealTempLow >= a.IdealTempHigh {
		return fmt.Errorf("analytics.ideal_temp_low must be below ideal_temp_high")
	}
	if a.HumidityLow >= a.HumidityHigh {
		return fmt.Errorf("analytics.humidity_low must be below humidity_high")
	}
	if a.VolatilityThreshold <= 0 {
		return fmt.Errorf("analytics.volatility_threshold must be positive")
	}
	return nil
}
