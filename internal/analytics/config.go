package analytics

// Config holds the scoring weights and thresholds for the insight engine.
// The provider-matching values are not public, so everything is a tunable
// with defaults taken from the reference dashboard behavior.
type Config struct {
	// Comfort model. Score starts at 100 and loses weighted penalties for
	// each unit outside the ideal bands.
	IdealTempLow        float64 // °C, lower edge of the ideal band
	IdealTempHigh       float64 // °C, upper edge of the ideal band
	ColdPenaltyPerDeg   float64 // points per °C below IdealTempLow
	HeatPenaltyPerDeg   float64 // points per °C above IdealTempHigh
	HumidityLow         float64 // %, lower edge of the ideal band
	HumidityHigh        float64 // %, upper edge of the ideal band
	DryPenaltyPerPct    float64 // points per % below HumidityLow
	HumidPenaltyPerPct  float64 // points per % above HumidityHigh
	CalmWindMax         float64 // m/s, wind above this is penalized
	WindPenaltyPerMS    float64 // points per m/s above CalmWindMax

	// Trend fit epsilons: |slope| at or below epsilon reads as stable.
	TempTrendEpsilon     float64 // °C per day
	PressureTrendEpsilon float64 // hPa per day
	PrecipTrendEpsilon   float64 // percentage points per day

	// Volatility threshold (stddev of day-over-day temperature deltas, °C)
	// above which the window counts as volatile.
	VolatilityThreshold float64

	// Mean-temperature bands for heat wave / cold snap classification.
	HeatWaveMeanTemp float64 // °C
	ColdSnapMeanTemp float64 // °C

	// Change-likelihood blend weights. Both in [0,1]; the result is clamped
	// to [0,1] regardless.
	VolatilityWeight float64
	ReversalWeight   float64
}

// DefaultConfig returns the reference scoring configuration.
func DefaultConfig() Config {
	return Config{
		IdealTempLow:       18,
		IdealTempHigh:      24,
		ColdPenaltyPerDeg:  5,
		HeatPenaltyPerDeg:  3,
		HumidityLow:        40,
		HumidityHigh:       60,
		DryPenaltyPerPct:   0.5,
		HumidPenaltyPerPct: 0.8,
		CalmWindMax:        5,
		WindPenaltyPerMS:   3,

		TempTrendEpsilon:     0.5,
		PressureTrendEpsilon: 0.8,
		PrecipTrendEpsilon:   3,

		VolatilityThreshold: 3,

		HeatWaveMeanTemp: 27,
		ColdSnapMeanTemp: 2,

		VolatilityWeight: 0.6,
		ReversalWeight:   0.4,
	}
}
