package analytics

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/climatrack/climatrack/internal/models"
)

func dailyRecords(t *testing.T, temps []float64) models.ForecastSeries {
	t.Helper()
	base := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	records := make([]models.WeatherRecord, len(temps))
	for i, temp := range temps {
		records[i] = models.WeatherRecord{
			Timestamp:   base.AddDate(0, 0, i),
			Location:    "london,gb",
			Temperature: temp,
			Humidity:    50,
			Pressure:    1012,
			WindSpeed:   3,
			Condition:   "Clouds",
		}
	}
	series, err := models.NewForecastSeries("london,gb", records)
	if err != nil {
		t.Fatalf("NewForecastSeries() error = %v", err)
	}
	return series
}

// TestEngine_Analyze_DailySupplements verifies that each comfort day carries
// the compass label derived from WindDeg and a midday UV estimate that
// reflects the day's sky state.
func TestEngine_Analyze_DailySupplements(t *testing.T) {
	base := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	records := []models.WeatherRecord{
		{Timestamp: base, Location: "london,gb", Temperature: 20, Humidity: 50, Pressure: 1012, WindSpeed: 3, WindDeg: 90, CloudCover: 0, Condition: "Clear"},
		{Timestamp: base.AddDate(0, 0, 1), Location: "london,gb", Temperature: 19, Humidity: 55, Pressure: 1010, WindSpeed: 4, WindDeg: 225, CloudCover: 90, Condition: "Rain"},
	}
	series, err := models.NewForecastSeries("london,gb", records)
	if err != nil {
		t.Fatalf("NewForecastSeries() error = %v", err)
	}

	engine := NewEngine(DefaultConfig())
	bundle, err := engine.Analyze(series)
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if len(bundle.Comfort) != 2 {
		t.Fatalf("Comfort days = %d, want 2", len(bundle.Comfort))
	}

	clear, rainy := bundle.Comfort[0], bundle.Comfort[1]
	if clear.WindDirection != "E" {
		t.Errorf("day 0 WindDirection = %q, want E for 90 degrees", clear.WindDirection)
	}
	if rainy.WindDirection != "SW" {
		t.Errorf("day 1 WindDirection = %q, want SW for 225 degrees", rainy.WindDirection)
	}
	if clear.UV.Level != "Very High" {
		t.Errorf("clear day UV.Level = %q, want Very High", clear.UV.Level)
	}
	if rainy.UV.Level != "Moderate" {
		t.Errorf("rainy day UV.Level = %q, want Moderate", rainy.UV.Level)
	}
	if clear.UV.Index <= rainy.UV.Index {
		t.Errorf("clear UV.Index = %v not above rainy %v", clear.UV.Index, rainy.UV.Index)
	}
}

// TestEngine_Analyze_EmptySeries verifies that an empty series yields
// ErrComputationUnavailable rather than a zero-value bundle.
func TestEngine_Analyze_EmptySeries(t *testing.T) {
	engine := NewEngine(DefaultConfig())
	_, err := engine.Analyze(models.ForecastSeries{Location: "london,gb"})
	if !errors.Is(err, ErrComputationUnavailable) {
		t.Fatalf("Analyze(empty) error = %v, want ErrComputationUnavailable", err)
	}
}

// TestEngine_Analyze_SingleRecordDegrades verifies that one record yields a
// degraded bundle: comfort is computed but trend, volatility and
// change-likelihood are flagged unavailable.
func TestEngine_Analyze_SingleRecordDegrades(t *testing.T) {
	engine := NewEngine(DefaultConfig())
	bundle, err := engine.Analyze(dailyRecords(t, []float64{20}))
	if err != nil {
		t.Fatalf("Analyze() error = %v, want nil (degraded bundle)", err)
	}
	if bundle.TrendAvailable {
		t.Error("TrendAvailable = true, want false for single record")
	}
	if bundle.VolatilityAvailable {
		t.Error("VolatilityAvailable = true, want false for single record")
	}
	if bundle.ChangeLikelihoodAvailable {
		t.Error("ChangeLikelihoodAvailable = true, want false for single record")
	}
	if len(bundle.Comfort) != 1 {
		t.Errorf("Comfort days = %d, want 1", len(bundle.Comfort))
	}
	if bundle.TemperatureRisk != RiskNone {
		t.Errorf("TemperatureRisk = %q, want none", bundle.TemperatureRisk)
	}
}

// TestEngine_Analyze_Deterministic verifies that Analyze produces identical
// bundles for identical input.
func TestEngine_Analyze_Deterministic(t *testing.T) {
	engine := NewEngine(DefaultConfig())
	series := dailyRecords(t, []float64{12, 15, 11, 18, 14})

	first, err := engine.Analyze(series)
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	second, err := engine.Analyze(series)
	if err != nil {
		t.Fatalf("Analyze() second error = %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Error("Analyze() not deterministic for identical input")
	}
}

// TestEngine_Analyze_FlatSeries verifies that identical temperatures read
// as a stable trend with zero volatility and zero change likelihood.
func TestEngine_Analyze_FlatSeries(t *testing.T) {
	engine := NewEngine(DefaultConfig())
	bundle, err := engine.Analyze(dailyRecords(t, []float64{20, 20, 20, 20, 20}))
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	for _, trend := range bundle.Trends {
		if trend.Direction != TrendStable {
			t.Errorf("%s trend = %q, want stable for flat series", trend.Metric, trend.Direction)
		}
	}
	if bundle.Volatility != 0 {
		t.Errorf("Volatility = %v, want 0 for flat series", bundle.Volatility)
	}
	if bundle.ChangeLikelihood != 0 {
		t.Errorf("ChangeLikelihood = %v, want 0 for flat series", bundle.ChangeLikelihood)
	}
}

// TestEngine_Analyze_RisingTemperature verifies that a strictly rising
// series above the epsilon reads as rising.
func TestEngine_Analyze_RisingTemperature(t *testing.T) {
	engine := NewEngine(DefaultConfig())
	bundle, err := engine.Analyze(dailyRecords(t, []float64{10, 12, 14, 16, 18}))
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if got := trendFor(bundle.Trends, MetricTemperature); got != TrendRising {
		t.Errorf("temperature trend = %q, want rising", got)
	}
}

// TestEngine_Analyze_BoundsHold verifies the output invariants: comfort in
// [0,100] and change likelihood in [0,1], even for extreme inputs.
func TestEngine_Analyze_BoundsHold(t *testing.T) {
	engine := NewEngine(DefaultConfig())
	tests := []struct {
		name  string
		temps []float64
	}{
		{"extreme cold swings", []float64{-40, 35, -40, 35, -40}},
		{"extreme heat", []float64{45, 48, 50, 47, 49}},
		{"mild", []float64{20, 21, 20, 22, 21}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			bundle, err := engine.Analyze(dailyRecords(t, tc.temps))
			if err != nil {
				t.Fatalf("Analyze() error = %v", err)
			}
			for _, day := range bundle.Comfort {
				if day.Score < 0 || day.Score > 100 {
					t.Errorf("comfort score %v out of [0,100]", day.Score)
				}
			}
			if bundle.ChangeLikelihood < 0 || bundle.ChangeLikelihood > 1 {
				t.Errorf("change likelihood %v out of [0,1]", bundle.ChangeLikelihood)
			}
		})
	}
}

// TestEngine_Analyze_VolatileSeriesRaisesChangeLikelihood verifies that an
// oscillating series yields a higher change likelihood than a smooth one.
func TestEngine_Analyze_VolatileSeriesRaisesChangeLikelihood(t *testing.T) {
	engine := NewEngine(DefaultConfig())

	smooth, err := engine.Analyze(dailyRecords(t, []float64{15, 15.5, 16, 16.5, 17}))
	if err != nil {
		t.Fatalf("Analyze(smooth) error = %v", err)
	}
	volatile, err := engine.Analyze(dailyRecords(t, []float64{10, 20, 8, 22, 9}))
	if err != nil {
		t.Fatalf("Analyze(volatile) error = %v", err)
	}

	if volatile.ChangeLikelihood <= smooth.ChangeLikelihood {
		t.Errorf("volatile likelihood %v not above smooth %v", volatile.ChangeLikelihood, smooth.ChangeLikelihood)
	}
	if volatile.Volatility <= smooth.Volatility {
		t.Errorf("volatile volatility %v not above smooth %v", volatile.Volatility, smooth.Volatility)
	}
}

// TestEngine_Analyze_TemperatureRisk verifies heat wave and cold snap
// classification from sustained extremes.
func TestEngine_Analyze_TemperatureRisk(t *testing.T) {
	engine := NewEngine(DefaultConfig())
	tests := []struct {
		name  string
		temps []float64
		want  TemperatureRisk
	}{
		{"heat wave rising", []float64{28, 30, 32, 34, 36}, RiskHeatWave},
		{"cold snap falling", []float64{2, 0, -2, -4, -6}, RiskColdSnap},
		{"mild", []float64{18, 19, 20, 19, 18}, RiskNone},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			bundle, err := engine.Analyze(dailyRecords(t, tc.temps))
			if err != nil {
				t.Fatalf("Analyze() error = %v", err)
			}
			if bundle.TemperatureRisk != tc.want {
				t.Errorf("TemperatureRisk = %q, want %q", bundle.TemperatureRisk, tc.want)
			}
		})
	}
}

// TestRankDays_TieBreaks verifies the activity ranking: comfort descending,
// then precipitation ascending, then earlier date.
func TestRankDays_TieBreaks(t *testing.T) {
	d := func(day int) time.Time { return time.Date(2026, 4, day, 0, 0, 0, 0, time.UTC) }
	days := []DayComfort{
		{Date: d(1), Score: 80, PrecipChance: 30},
		{Date: d(2), Score: 90, PrecipChance: 10},
		{Date: d(3), Score: 80, PrecipChance: 10},
		{Date: d(4), Score: 80, PrecipChance: 10},
	}

	ranked := rankDays(days)

	wantOrder := []time.Time{d(2), d(3), d(4), d(1)}
	for i, want := range wantOrder {
		if !ranked[i].Date.Equal(want) {
			t.Errorf("rank %d = %v, want %v", i, ranked[i].Date, want)
		}
	}
	// Input must not be reordered.
	if !days[0].Date.Equal(d(1)) {
		t.Error("rankDays mutated its input")
	}
}

// TestEngine_Analyze_RecommendationsCapped verifies recommendations never
// exceed the cap even when many rules fire.
func TestEngine_Analyze_RecommendationsCapped(t *testing.T) {
	engine := NewEngine(DefaultConfig())
	base := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	records := make([]models.WeatherRecord, 5)
	for i := range records {
		records[i] = models.WeatherRecord{
			Timestamp:   base.AddDate(0, 0, i),
			Location:    "oymyakon,ru",
			Temperature: -15 + float64(i)*-2, // freezing and falling
			Humidity:    90,                  // humid
			WindSpeed:   14,                  // windy
			Condition:   "Snow",              // condition rule
		}
	}
	series, err := models.NewForecastSeries("oymyakon,ru", records)
	if err != nil {
		t.Fatalf("NewForecastSeries() error = %v", err)
	}

	bundle, err := engine.Analyze(series)
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if len(bundle.Recommendations) > 4 {
		t.Errorf("recommendations = %d, want at most 4", len(bundle.Recommendations))
	}
	if len(bundle.Recommendations) == 0 {
		t.Error("recommendations empty, want threshold rules to fire")
	}
}
