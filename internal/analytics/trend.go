package analytics

import (
	"math"

	"github.com/climatrack/climatrack/internal/models"
)

// fitTrend computes a least-squares slope over the series (x = record
// index, one unit per day for daily cadence) and classifies it against the
// stability epsilon.
func fitTrend(metric string, values []float64, epsilon float64) MetricTrend {
	slope := leastSquaresSlope(values)
	direction := TrendStable
	if slope > epsilon {
		direction = TrendRising
	} else if slope < -epsilon {
		direction = TrendFalling
	}
	return MetricTrend{Metric: metric, Direction: direction, Slope: slope}
}

// leastSquaresSlope fits y = a + b*x over x = 0..n-1 and returns b.
// Returns 0 for fewer than 2 points.
func leastSquaresSlope(values []float64) float64 {
	n := len(values)
	if n < 2 {
		return 0
	}
	var sumX, sumY, sumXY, sumXX float64
	for i, y := range values {
		x := float64(i)
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}
	fn := float64(n)
	denom := fn*sumXX - sumX*sumX
	if denom == 0 {
		return 0
	}
	return (fn*sumXY - sumX*sumY) / denom
}

// temperatureVolatility is the population standard deviation of
// day-over-day temperature deltas. A flat series scores exactly 0.
func temperatureVolatility(records []models.WeatherRecord) float64 {
	if len(records) < 2 {
		return 0
	}
	deltas := make([]float64, 0, len(records)-1)
	for i := 1; i < len(records); i++ {
		deltas = append(deltas, records[i].Temperature-records[i-1].Temperature)
	}
	mean := 0.0
	for _, d := range deltas {
		mean += d
	}
	mean /= float64(len(deltas))
	var variance float64
	for _, d := range deltas {
		variance += (d - mean) * (d - mean)
	}
	variance /= float64(len(deltas))
	return math.Sqrt(variance)
}

// changeLikelihood blends normalized volatility with the trend-reversal
// ratio into a [0,1] scalar. It rises when day-over-day temperature flips
// direction often, when the metric trends disagree, or when volatility
// exceeds the configured threshold.
func (e *Engine) changeLikelihood(records []models.WeatherRecord, volatility float64, trends []MetricTrend) float64 {
	volRatio := 0.0
	if e.cfg.VolatilityThreshold > 0 {
		volRatio = math.Min(1, volatility/e.cfg.VolatilityThreshold)
	}

	reversals := temperatureReversals(records)
	maxReversals := len(records) - 2
	if maxReversals < 1 {
		maxReversals = 1
	}
	disagreement := 0
	if trendsDisagree(trends) {
		disagreement = 1
	}
	reversalRatio := float64(reversals+disagreement) / float64(maxReversals+1)

	return clamp01(e.cfg.VolatilityWeight*volRatio + e.cfg.ReversalWeight*reversalRatio)
}

// temperatureReversals counts sign flips between consecutive nonzero
// day-over-day temperature deltas.
func temperatureReversals(records []models.WeatherRecord) int {
	reversals := 0
	prevSign := 0
	for i := 1; i < len(records); i++ {
		delta := records[i].Temperature - records[i-1].Temperature
		sign := 0
		if delta > 0 {
			sign = 1
		} else if delta < 0 {
			sign = -1
		}
		if sign != 0 {
			if prevSign != 0 && sign != prevSign {
				reversals++
			}
			prevSign = sign
		}
	}
	return reversals
}

// trendsDisagree reports whether the fitted trends contain both rising and
// falling directions.
func trendsDisagree(trends []MetricTrend) bool {
	var rising, falling bool
	for _, t := range trends {
		switch t.Direction {
		case TrendRising:
			rising = true
		case TrendFalling:
			falling = true
		}
	}
	return rising && falling
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
