package analytics

import (
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/climatrack/climatrack/internal/models"
)

// ErrComputationUnavailable is returned when a series carries no records at
// all. A short series (one record) degrades instead: trend, volatility and
// change-likelihood are marked unavailable but per-day results are computed.
var ErrComputationUnavailable = errors.New("insufficient data for computation")

// TrendDirection is the derived direction of a metric over the series window.
type TrendDirection string

const (
	TrendRising  TrendDirection = "rising"
	TrendFalling TrendDirection = "falling"
	TrendStable  TrendDirection = "stable"
)

// Metric names used in MetricTrend.
const (
	MetricTemperature   = "temperature"
	MetricPressure      = "pressure"
	MetricPrecipitation = "precipitation"
)

// TemperatureRisk classifies sustained temperature extremes.
type TemperatureRisk string

const (
	RiskNone     TemperatureRisk = "none"
	RiskHeatWave TemperatureRisk = "heat_wave"
	RiskColdSnap TemperatureRisk = "cold_snap"
)

// MetricTrend is the fitted direction for one metric.
type MetricTrend struct {
	Metric    string         `json:"metric"`
	Direction TrendDirection `json:"direction"`
	Slope     float64        `json:"slope"` // units per day
}

// DayComfort is the derived comfort assessment for one day. UV is the
// midday peak estimate for that day's sky state.
type DayComfort struct {
	Date          time.Time  `json:"date"`
	Score         float64    `json:"score"` // 0-100
	Level         string     `json:"level"`
	HeatIndex     float64    `json:"heatIndex"`
	WindChill     float64    `json:"windChill"`
	PrecipChance  float64    `json:"precipChance"`
	WindDirection string     `json:"windDirection"`
	UV            UVEstimate `json:"uv"`
}

// DerivedAlert is an alert derived from thresholds, as opposed to
// provider-issued alerts.
type DerivedAlert struct {
	Type    string `json:"type"` // warning, caution, info
	Title   string `json:"title"`
	Message string `json:"message"`
}

// InsightBundle is the full derived output for one forecast series.
// Immutable; recomputed on each new series. Availability flags mark fields
// that could not be computed from a short series.
type InsightBundle struct {
	Location string `json:"location"`

	Trends         []MetricTrend `json:"trends,omitempty"`
	TrendAvailable bool          `json:"trendAvailable"`

	Volatility          float64         `json:"volatility"`
	VolatilityAvailable bool            `json:"volatilityAvailable"`
	TemperatureRisk     TemperatureRisk `json:"temperatureRisk"`

	Comfort  []DayComfort `json:"comfort"`
	BestDays []DayComfort `json:"bestDays"`

	ChangeLikelihood          float64 `json:"changeLikelihood"` // 0-1
	ChangeLikelihoodAvailable bool    `json:"changeLikelihoodAvailable"`

	Recommendations []string       `json:"recommendations,omitempty"`
	Alerts          []DerivedAlert `json:"alerts,omitempty"`
	Outlook         string         `json:"outlook,omitempty"`
}

// Engine derives insight bundles from forecast series. Pure and stateless:
// Analyze performs no I/O and is deterministic for a given input.
type Engine struct {
	cfg Config
}

// NewEngine creates an Engine with the given scoring configuration.
func NewEngine(cfg Config) *Engine {
	return &Engine{cfg: cfg}
}

// Analyze derives an InsightBundle from the series. A series with fewer
// than 2 records yields a degraded bundle with trend, volatility and
// change-likelihood marked unavailable; an empty series yields
// ErrComputationUnavailable.
func (e *Engine) Analyze(series models.ForecastSeries) (InsightBundle, error) {
	if series.Len() == 0 {
		return InsightBundle{}, ErrComputationUnavailable
	}

	bundle := InsightBundle{
		Location:        series.Location,
		TemperatureRisk: RiskNone,
	}

	bundle.Comfort = e.comfortPerDay(series.Records)
	bundle.BestDays = rankDays(bundle.Comfort)

	if series.Len() >= 2 {
		bundle.Trends = e.metricTrends(series.Records)
		bundle.TrendAvailable = true

		bundle.Volatility = temperatureVolatility(series.Records)
		bundle.VolatilityAvailable = true
		bundle.TemperatureRisk = e.classifyTemperatureRisk(series.Records, bundle.Volatility, trendFor(bundle.Trends, MetricTemperature))

		bundle.ChangeLikelihood = e.changeLikelihood(series.Records, bundle.Volatility, bundle.Trends)
		bundle.ChangeLikelihoodAvailable = true

		bundle.Outlook = e.outlook(series.Records, bundle.Trends)
	}

	current := series.Records[0]
	bundle.Recommendations = e.recommendations(current, bundle.Trends)
	bundle.Alerts = deriveAlerts(current)

	return bundle, nil
}

// metricTrends fits temperature, pressure and precipitation-chance trends.
func (e *Engine) metricTrends(records []models.WeatherRecord) []MetricTrend {
	temps := make([]float64, len(records))
	pressures := make([]float64, len(records))
	precips := make([]float64, len(records))
	for i, r := range records {
		temps[i] = r.Temperature
		pressures[i] = r.Pressure
		precips[i] = r.PrecipChance
	}
	return []MetricTrend{
		fitTrend(MetricTemperature, temps, e.cfg.TempTrendEpsilon),
		fitTrend(MetricPressure, pressures, e.cfg.PressureTrendEpsilon),
		fitTrend(MetricPrecipitation, precips, e.cfg.PrecipTrendEpsilon),
	}
}

// comfortPerDay scores each record on the configured comfort model.
func (e *Engine) comfortPerDay(records []models.WeatherRecord) []DayComfort {
	days := make([]DayComfort, 0, len(records))
	for _, r := range records {
		score := e.comfortScore(r.Temperature, r.Humidity, r.WindSpeed)
		days = append(days, DayComfort{
			Date:          r.Timestamp,
			Score:         score,
			Level:         comfortLevel(score),
			HeatIndex:     heatIndex(r.Temperature),
			WindChill:     windChill(r.Temperature, r.WindSpeed),
			PrecipChance:  r.PrecipChance,
			WindDirection: WindDirection(r.WindDeg),
			UV:            UVRisk(12, r.CloudCover, r.Condition),
		})
	}
	return days
}

// rankDays orders days by comfort descending; ties break by lower
// precipitation chance, then earlier date.
func rankDays(days []DayComfort) []DayComfort {
	ranked := make([]DayComfort, len(days))
	copy(ranked, days)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		if ranked[i].PrecipChance != ranked[j].PrecipChance {
			return ranked[i].PrecipChance < ranked[j].PrecipChance
		}
		return ranked[i].Date.Before(ranked[j].Date)
	})
	return ranked
}

// classifyTemperatureRisk flags sustained extremes. Volatility above the
// threshold or a matching trend direction escalates a hot or cold mean into
// a heat-wave or cold-snap risk.
func (e *Engine) classifyTemperatureRisk(records []models.WeatherRecord, volatility float64, tempTrend TrendDirection) TemperatureRisk {
	mean := 0.0
	for _, r := range records {
		mean += r.Temperature
	}
	mean /= float64(len(records))

	volatile := volatility >= e.cfg.VolatilityThreshold
	switch {
	case mean >= e.cfg.HeatWaveMeanTemp && (tempTrend == TrendRising || volatile):
		return RiskHeatWave
	case mean <= e.cfg.ColdSnapMeanTemp && (tempTrend == TrendFalling || volatile):
		return RiskColdSnap
	default:
		return RiskNone
	}
}

func trendFor(trends []MetricTrend, metric string) TrendDirection {
	for _, t := range trends {
		if t.Metric == metric {
			return t.Direction
		}
	}
	return TrendStable
}

// outlook produces a short textual summary of the coming days.
func (e *Engine) outlook(records []models.WeatherRecord, trends []MetricTrend) string {
	parts := make([]string, 0, 2)
	switch trendFor(trends, MetricTemperature) {
	case TrendRising:
		parts = append(parts, "temperatures rising")
	case TrendFalling:
		parts = append(parts, "cooling trend")
	default:
		parts = append(parts, "stable temperatures")
	}

	rainDays := 0
	for _, r := range records {
		if strings.Contains(strings.ToLower(r.Condition), "rain") {
			rainDays++
		}
	}
	if rainDays > 2 {
		parts = append(parts, "rainy conditions expected")
	} else if rainDays > 0 {
		parts = append(parts, "some rain possible")
	}

	return "next few days: " + strings.Join(parts, ", ")
}
