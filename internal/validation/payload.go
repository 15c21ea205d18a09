package validation

import (
	"errors"
	"fmt"
	"time"

	"github.com/climatrack/climatrack/internal/client"
	"github.com/climatrack/climatrack/internal/models"
)

// ErrInvalidPayload is the sentinel for malformed or out-of-range provider
// responses. Wrapped errors carry the offending field. Validation failures
// are terminal: the gateway neither retries nor caches them.
var ErrInvalidPayload = errors.New("invalid provider payload")

// Numeric sanity bounds for provider data. Values outside these ranges are
// treated as corrupt rather than clamped.
const (
	minTemperature = -90.0  // °C, below recorded planetary minimum
	maxTemperature = 65.0   // °C
	minPressure    = 850.0  // hPa
	maxPressure    = 1100.0 // hPa
	maxWindSpeed   = 150.0  // m/s
)

// CurrentRecord validates the current-conditions payload and constructs the
// record for it.
func CurrentRecord(payload client.CurrentPayload, location string) (models.WeatherRecord, error) {
	if payload.Dt <= 0 {
		return models.WeatherRecord{}, fieldError("dt", "missing or zero timestamp")
	}
	base, err := mainFields(payload.Main, payload.Wind)
	if err != nil {
		return models.WeatherRecord{}, err
	}

	rec := base
	rec.Timestamp = time.Unix(payload.Dt, 0).UTC()
	rec.Location = location
	rec.WindDeg = payload.Wind.Deg
	rec.CloudCover = payload.Clouds.All
	rec.Condition, rec.Description = condition(payload.Weather)
	return rec, nil
}

// ForecastRecords validates every slice of the forecast payload and
// constructs the 3-hourly record sequence. A single bad slice fails the
// whole payload: partial data is never returned.
func ForecastRecords(payload client.ForecastPayload, location string) ([]models.WeatherRecord, error) {
	if len(payload.List) == 0 {
		return nil, fieldError("list", "empty forecast list")
	}

	records := make([]models.WeatherRecord, 0, len(payload.List))
	for i, slice := range payload.List {
		if slice.Dt <= 0 {
			return nil, fieldError(fmt.Sprintf("list[%d].dt", i), "missing or zero timestamp")
		}
		rec, err := mainFields(slice.Main, slice.Wind)
		if err != nil {
			return nil, fmt.Errorf("list[%d]: %w", i, err)
		}
		rec.Timestamp = time.Unix(slice.Dt, 0).UTC()
		rec.Location = location
		rec.WindDeg = slice.Wind.Deg
		rec.CloudCover = slice.Clouds.All
		rec.Condition, rec.Description = condition(slice.Weather)
		if slice.Pop != nil {
			pop := *slice.Pop * 100
			if pop < 0 || pop > 100 {
				return nil, fieldError(fmt.Sprintf("list[%d].pop", i), "precipitation probability out of range")
			}
			rec.PrecipChance = pop
		}
		records = append(records, rec)
	}
	return records, nil
}

// HistoricalRecords validates the timemachine payload and constructs its
// observation records.
func HistoricalRecords(payload client.HistoricalPayload, location string) ([]models.WeatherRecord, error) {
	points := payload.Points()
	if len(points) == 0 {
		return nil, fieldError("data", "empty historical data")
	}

	records := make([]models.WeatherRecord, 0, len(points))
	for i, pt := range points {
		if pt.Dt <= 0 {
			return nil, fieldError(fmt.Sprintf("data[%d].dt", i), "missing or zero timestamp")
		}
		if pt.Temp == nil {
			return nil, fieldError(fmt.Sprintf("data[%d].temp", i), "missing temperature")
		}
		if pt.Humidity == nil {
			return nil, fieldError(fmt.Sprintf("data[%d].humidity", i), "missing humidity")
		}
		if pt.Pressure == nil {
			return nil, fieldError(fmt.Sprintf("data[%d].pressure", i), "missing pressure")
		}
		if pt.WindSpeed == nil {
			return nil, fieldError(fmt.Sprintf("data[%d].wind_speed", i), "missing wind speed")
		}
		rec := models.WeatherRecord{
			Timestamp:   time.Unix(pt.Dt, 0).UTC(),
			Location:    location,
			Temperature: *pt.Temp,
			TempMin:     *pt.Temp,
			TempMax:     *pt.Temp,
			FeelsLike:   pt.FeelsLike,
			Humidity:    *pt.Humidity,
			Pressure:    *pt.Pressure,
			WindSpeed:   *pt.WindSpeed,
			WindDeg:     pt.WindDeg,
			CloudCover:  pt.Clouds,
		}
		if rec.FeelsLike == 0 {
			rec.FeelsLike = rec.Temperature
		}
		rec.Condition, rec.Description = condition(pt.Weather)
		if err := checkRanges(rec); err != nil {
			return nil, fmt.Errorf("data[%d]: %w", i, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

// AlertReport validates the alerts payload. An absent alerts array is a
// valid empty report, not a failure.
func AlertReport(payload client.AlertsPayload, location string) (models.AlertReport, error) {
	report := models.AlertReport{Location: location, Alerts: make([]models.ProviderAlert, 0, len(payload.Alerts))}
	for i, a := range payload.Alerts {
		if a.Event == "" {
			return models.AlertReport{}, fieldError(fmt.Sprintf("alerts[%d].event", i), "missing event")
		}
		alert := models.ProviderAlert{
			Event:       a.Event,
			Sender:      a.SenderName,
			Description: a.Description,
		}
		if a.Start > 0 {
			alert.Start = time.Unix(a.Start, 0).UTC()
		}
		if a.End > 0 {
			alert.End = time.Unix(a.End, 0).UTC()
		}
		report.Alerts = append(report.Alerts, alert)
	}
	return report, nil
}

// mainFields validates the shared main/wind blocks and fills the numeric
// core of a record. The caller sets timestamp, location and condition.
func mainFields(main client.MainPayload, wind client.WindPayload) (models.WeatherRecord, error) {
	if main.Temp == nil {
		return models.WeatherRecord{}, fieldError("main.temp", "missing temperature")
	}
	if main.Humidity == nil {
		return models.WeatherRecord{}, fieldError("main.humidity", "missing humidity")
	}
	if main.Pressure == nil {
		return models.WeatherRecord{}, fieldError("main.pressure", "missing pressure")
	}
	if wind.Speed == nil {
		return models.WeatherRecord{}, fieldError("wind.speed", "missing wind speed")
	}

	rec := models.WeatherRecord{
		Temperature: *main.Temp,
		TempMin:     main.TempMin,
		TempMax:     main.TempMax,
		FeelsLike:   *main.Temp,
		Humidity:    *main.Humidity,
		Pressure:    *main.Pressure,
		WindSpeed:   *wind.Speed,
	}
	if main.FeelsLike != nil {
		rec.FeelsLike = *main.FeelsLike
	}
	if rec.TempMin == 0 && rec.TempMax == 0 {
		rec.TempMin = rec.Temperature
		rec.TempMax = rec.Temperature
	}
	if err := checkRanges(rec); err != nil {
		return models.WeatherRecord{}, err
	}
	return rec, nil
}

func checkRanges(rec models.WeatherRecord) error {
	if rec.Temperature < minTemperature || rec.Temperature > maxTemperature {
		return fieldError("main.temp", "temperature out of range")
	}
	if rec.Humidity < 0 || rec.Humidity > 100 {
		return fieldError("main.humidity", "humidity out of range")
	}
	if rec.Pressure < minPressure || rec.Pressure > maxPressure {
		return fieldError("main.pressure", "pressure out of range")
	}
	if rec.WindSpeed < 0 || rec.WindSpeed > maxWindSpeed {
		return fieldError("wind.speed", "wind speed out of range")
	}
	if rec.CloudCover < 0 || rec.CloudCover > 100 {
		return fieldError("clouds.all", "cloud cover out of range")
	}
	return nil
}

func condition(weather []client.ConditionPayload) (cond, desc string) {
	if len(weather) == 0 {
		return "", ""
	}
	return weather[0].Main, weather[0].Description
}

func fieldError(field, msg string) error {
	return fmt.Errorf("%w: %s: %s", ErrInvalidPayload, field, msg)
}
