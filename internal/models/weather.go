package models

import (
	"errors"
	"sort"
	"time"
)

// EndpointClass identifies a class of provider endpoint. Cache TTLs and
// cache keys are scoped per class.
type EndpointClass string

const (
	EndpointCurrent    EndpointClass = "current"
	EndpointForecast   EndpointClass = "forecast"
	EndpointHistorical EndpointClass = "historical"
	EndpointAlerts     EndpointClass = "alerts"
)

// ErrDuplicateTimestamp is returned by NewForecastSeries when two records
// share the same timestamp.
var ErrDuplicateTimestamp = errors.New("duplicate timestamp in series")

// Location is a canonical location identifier resolved by the geocoding
// collaborator. ID is the normalized name used for cache keys and metrics.
type Location struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	Country string  `json:"country,omitempty"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
}

// WeatherRecord is a single validated observation or forecast point.
// Immutable once constructed from a provider response.
type WeatherRecord struct {
	Timestamp    time.Time `json:"timestamp"`
	Location     string    `json:"location"`
	Temperature  float64   `json:"temperature"`
	TempMin      float64   `json:"tempMin"`
	TempMax      float64   `json:"tempMax"`
	FeelsLike    float64   `json:"feelsLike"`
	Humidity     float64   `json:"humidity"`
	Pressure     float64   `json:"pressure"`
	WindSpeed    float64   `json:"windSpeed"`
	WindDeg      float64   `json:"windDeg"`
	PrecipChance float64   `json:"precipChance"` // percent, 0-100
	CloudCover   float64   `json:"cloudCover"`   // percent, 0-100
	Condition    string    `json:"condition"`
	Description  string    `json:"description,omitempty"`
}

// ForecastSeries is an ordered sequence of records for one location,
// ascending by timestamp. Stale marks data served from the stale cache
// after an upstream failure.
type ForecastSeries struct {
	Location string          `json:"location"`
	Records  []WeatherRecord `json:"records"`
	Stale    bool            `json:"stale,omitempty"`
}

// NewForecastSeries builds a series from records, sorting ascending by
// timestamp. Duplicate timestamps violate the series invariant and are
// rejected.
func NewForecastSeries(location string, records []WeatherRecord) (ForecastSeries, error) {
	sorted := make([]WeatherRecord, len(records))
	copy(sorted, records)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})
	for i := 1; i < len(sorted); i++ {
		if sorted[i].Timestamp.Equal(sorted[i-1].Timestamp) {
			return ForecastSeries{}, ErrDuplicateTimestamp
		}
	}
	return ForecastSeries{Location: location, Records: sorted}, nil
}

// Len returns the number of records in the series.
func (s ForecastSeries) Len() int {
	return len(s.Records)
}

// ProviderAlert is a weather alert reported by the provider for a location.
type ProviderAlert struct {
	Event       string    `json:"event"`
	Sender      string    `json:"sender,omitempty"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	Description string    `json:"description,omitempty"`
}

// AlertReport holds provider alerts for one location.
type AlertReport struct {
	Location string          `json:"location"`
	Alerts   []ProviderAlert `json:"alerts"`
}
