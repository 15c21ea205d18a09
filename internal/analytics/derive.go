package analytics

import (
	"math"
	"strings"

	"github.com/climatrack/climatrack/internal/models"
)

const maxRecommendations = 4

// recommendations derives short advisories from the first record of the
// series (the nearest conditions) and the fitted trends. Capped at 4.
func (e *Engine) recommendations(current models.WeatherRecord, trends []MetricTrend) []string {
	recs := make([]string, 0, maxRecommendations)

	switch {
	case current.Temperature < 0:
		recs = append(recs, "Freezing conditions; wear layers and protect exposed skin.")
	case current.Temperature < 10:
		recs = append(recs, "Quite cold; a warm jacket and scarf are recommended.")
	case current.Temperature > 30:
		recs = append(recs, "Hot conditions; stay hydrated and wear light, breathable clothing.")
	case current.Temperature > 25:
		recs = append(recs, "Warm and pleasant; good conditions for outdoor activities.")
	}

	if current.Humidity > 80 {
		recs = append(recs, "High humidity; it may feel sticky outdoors.")
	} else if current.Humidity < 30 {
		recs = append(recs, "Low humidity; remember to stay hydrated.")
	}

	if current.WindSpeed > 10 {
		recs = append(recs, "Windy conditions; secure loose items and take care with umbrellas.")
	}

	condition := strings.ToLower(current.Condition)
	switch {
	case strings.Contains(condition, "rain"):
		recs = append(recs, "Rain expected; bring an umbrella or raincoat.")
	case strings.Contains(condition, "snow"):
		recs = append(recs, "Snow conditions; drive carefully and wear appropriate footwear.")
	case strings.Contains(condition, "clear") && current.Temperature > 20:
		recs = append(recs, "Clear skies; a great day to be outdoors.")
	case strings.Contains(condition, "cloud"):
		recs = append(recs, "Cloudy skies but otherwise pleasant conditions.")
	}

	switch trendFor(trends, MetricTemperature) {
	case TrendFalling:
		recs = append(recs, "Temperatures dropping over the coming days; prepare warmer clothes.")
	case TrendRising:
		recs = append(recs, "Getting warmer; lighter clothing may suit the coming days.")
	}

	if len(recs) > maxRecommendations {
		recs = recs[:maxRecommendations]
	}
	return recs
}

// deriveAlerts flags threshold breaches in the nearest conditions.
func deriveAlerts(current models.WeatherRecord) []DerivedAlert {
	var alerts []DerivedAlert

	if current.Temperature < -10 {
		alerts = append(alerts, DerivedAlert{
			Type:    "warning",
			Title:   "Extreme Cold Warning",
			Message: "Extremely cold temperatures. Frostbite risk is high.",
		})
	} else if current.Temperature > 35 {
		alerts = append(alerts, DerivedAlert{
			Type:    "warning",
			Title:   "Heat Warning",
			Message: "Very hot temperatures. Heat exhaustion risk is elevated.",
		})
	}

	if current.WindSpeed > 15 {
		alerts = append(alerts, DerivedAlert{
			Type:    "caution",
			Title:   "High Wind Advisory",
			Message: "Strong winds expected. Secure loose objects.",
		})
	}

	condition := strings.ToLower(current.Condition)
	if strings.Contains(condition, "thunderstorm") {
		alerts = append(alerts, DerivedAlert{
			Type:    "warning",
			Title:   "Thunderstorm Alert",
			Message: "Thunderstorms in the area. Stay indoors if possible.",
		})
	} else if strings.Contains(condition, "snow") {
		alerts = append(alerts, DerivedAlert{
			Type:    "info",
			Title:   "Snow Conditions",
			Message: "Snowy weather. Drive carefully and dress warmly.",
		})
	}

	return alerts
}

// compassDirections are the 16-point compass labels, clockwise from north.
var compassDirections = []string{
	"N", "NNE", "NE", "ENE",
	"E", "ESE", "SE", "SSE",
	"S", "SSW", "SW", "WSW",
	"W", "WNW", "NW", "NNW",
}

// WindDirection converts wind direction degrees to a 16-point compass label.
func WindDirection(degrees float64) string {
	index := int(math.Round(degrees/22.5)) % 16
	if index < 0 {
		index += 16
	}
	return compassDirections[index]
}

// UVEstimate is a rough UV index estimate from time of day and sky state.
// It is an approximation, not a provider UV reading.
type UVEstimate struct {
	Index  float64 `json:"index"`
	Level  string  `json:"level"`
	Advice string  `json:"advice"`
}

// UVRisk estimates UV exposure for the given local hour, cloud cover
// percentage and condition string.
func UVRisk(hour int, cloudCover float64, condition string) UVEstimate {
	var base float64
	switch {
	case hour >= 10 && hour <= 14:
		base = 8
	case hour >= 9 && hour <= 15:
		base = 6
	case hour >= 8 && hour <= 16:
		base = 4
	case hour >= 7 && hour <= 17:
		base = 2
	}

	cond := strings.ToLower(condition)
	switch {
	case strings.Contains(cond, "rain") || strings.Contains(cond, "storm"):
		base *= 0.3
	case cloudCover > 75:
		base *= 0.5
	case cloudCover > 50:
		base *= 0.7
	case cloudCover > 25:
		base *= 0.9
	}

	index := math.Round(base*10) / 10
	switch {
	case index <= 2:
		return UVEstimate{Index: index, Level: "Low", Advice: "No protection needed"}
	case index <= 5:
		return UVEstimate{Index: index, Level: "Moderate", Advice: "Wear sunscreen if outdoors"}
	case index <= 7:
		return UVEstimate{Index: index, Level: "High", Advice: "Sunscreen and hat recommended"}
	case index <= 10:
		return UVEstimate{Index: index, Level: "Very High", Advice: "Avoid sun exposure 10AM-4PM"}
	default:
		return UVEstimate{Index: index, Level: "Extreme", Advice: "Avoid outdoor activities"}
	}
}
