package validation

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/climatrack/climatrack/internal/client"
)

func f64(v float64) *float64 { return &v }

func validCurrent() client.CurrentPayload {
	return client.CurrentPayload{
		Dt:   1767225600,
		Name: "London",
		Main: client.MainPayload{
			Temp:      f64(12.5),
			FeelsLike: f64(11.0),
			TempMin:   10,
			TempMax:   14,
			Pressure:  f64(1013),
			Humidity:  f64(65),
		},
		Weather: []client.ConditionPayload{{Main: "Clouds", Description: "broken clouds"}},
		Wind:    client.WindPayload{Speed: f64(5.1), Deg: 220},
		Clouds:  client.CloudsPayload{All: 75},
	}
}

// TestCurrentRecord_Valid verifies field mapping from a well-formed payload.
func TestCurrentRecord_Valid(t *testing.T) {
	rec, err := CurrentRecord(validCurrent(), "london,gb")
	if err != nil {
		t.Fatalf("CurrentRecord() error = %v, want nil", err)
	}
	if rec.Location != "london,gb" {
		t.Errorf("Location = %q, want london,gb", rec.Location)
	}
	if rec.Temperature != 12.5 {
		t.Errorf("Temperature = %v, want 12.5", rec.Temperature)
	}
	if rec.FeelsLike != 11.0 {
		t.Errorf("FeelsLike = %v, want 11.0", rec.FeelsLike)
	}
	if rec.Condition != "Clouds" || rec.Description != "broken clouds" {
		t.Errorf("condition = %q/%q, want Clouds/broken clouds", rec.Condition, rec.Description)
	}
	if !rec.Timestamp.Equal(time.Unix(1767225600, 0).UTC()) {
		t.Errorf("Timestamp = %v, want unix 1767225600", rec.Timestamp)
	}
}

// TestCurrentRecord_MissingRequiredFields verifies that absent required
// fields are rejected as invalid payloads (a missing temperature must not
// read as 0 degrees).
func TestCurrentRecord_MissingRequiredFields(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*client.CurrentPayload)
		wantField string
	}{
		{"missing temp", func(p *client.CurrentPayload) { p.Main.Temp = nil }, "main.temp"},
		{"missing humidity", func(p *client.CurrentPayload) { p.Main.Humidity = nil }, "main.humidity"},
		{"missing pressure", func(p *client.CurrentPayload) { p.Main.Pressure = nil }, "main.pressure"},
		{"missing wind speed", func(p *client.CurrentPayload) { p.Wind.Speed = nil }, "wind.speed"},
		{"missing timestamp", func(p *client.CurrentPayload) { p.Dt = 0 }, "dt"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			payload := validCurrent()
			tc.mutate(&payload)
			_, err := CurrentRecord(payload, "london,gb")
			if err == nil {
				t.Fatal("CurrentRecord() error = nil, want invalid payload error")
			}
			if !errors.Is(err, ErrInvalidPayload) {
				t.Errorf("error = %v, want ErrInvalidPayload", err)
			}
			if !strings.Contains(err.Error(), tc.wantField) {
				t.Errorf("error %q does not name field %q", err.Error(), tc.wantField)
			}
		})
	}
}

// TestCurrentRecord_OutOfRange verifies the numeric sanity bounds.
func TestCurrentRecord_OutOfRange(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*client.CurrentPayload)
	}{
		{"temperature below physical minimum", func(p *client.CurrentPayload) { p.Main.Temp = f64(-120) }},
		{"temperature above maximum", func(p *client.CurrentPayload) { p.Main.Temp = f64(80) }},
		{"humidity above 100", func(p *client.CurrentPayload) { p.Main.Humidity = f64(130) }},
		{"negative humidity", func(p *client.CurrentPayload) { p.Main.Humidity = f64(-5) }},
		{"pressure too low", func(p *client.CurrentPayload) { p.Main.Pressure = f64(500) }},
		{"wind speed absurd", func(p *client.CurrentPayload) { p.Wind.Speed = f64(300) }},
		{"cloud cover above 100", func(p *client.CurrentPayload) { p.Clouds.All = 140 }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			payload := validCurrent()
			tc.mutate(&payload)
			_, err := CurrentRecord(payload, "london,gb")
			if !errors.Is(err, ErrInvalidPayload) {
				t.Errorf("error = %v, want ErrInvalidPayload", err)
			}
		})
	}
}

// TestForecastRecords_AllOrNothing verifies that one bad slice rejects the
// whole payload; partial series are never produced.
func TestForecastRecords_AllOrNothing(t *testing.T) {
	good := client.ForecastSlicePayload{
		Dt:      1767225600,
		Main:    client.MainPayload{Temp: f64(10), FeelsLike: f64(9), Pressure: f64(1010), Humidity: f64(60)},
		Weather: []client.ConditionPayload{{Main: "Clear"}},
		Wind:    client.WindPayload{Speed: f64(3)},
		Pop:     f64(0.25),
	}
	bad := good
	bad.Dt = 1767236400
	bad.Main.Temp = nil

	_, err := ForecastRecords(client.ForecastPayload{List: []client.ForecastSlicePayload{good, bad}}, "london,gb")
	if !errors.Is(err, ErrInvalidPayload) {
		t.Fatalf("error = %v, want ErrInvalidPayload for partial data", err)
	}
	if !strings.Contains(err.Error(), "list[1]") {
		t.Errorf("error %q does not locate the bad slice", err.Error())
	}

	records, err := ForecastRecords(client.ForecastPayload{List: []client.ForecastSlicePayload{good}}, "london,gb")
	if err != nil {
		t.Fatalf("valid payload error = %v", err)
	}
	if records[0].PrecipChance != 25 {
		t.Errorf("PrecipChance = %v, want 25 (pop scaled to percent)", records[0].PrecipChance)
	}
}

// TestForecastRecords_Empty verifies an empty list is invalid.
func TestForecastRecords_Empty(t *testing.T) {
	_, err := ForecastRecords(client.ForecastPayload{}, "london,gb")
	if !errors.Is(err, ErrInvalidPayload) {
		t.Errorf("error = %v, want ErrInvalidPayload", err)
	}
}

// TestForecastRecords_PopOutOfRange verifies the scaled precipitation
// probability is range-checked.
func TestForecastRecords_PopOutOfRange(t *testing.T) {
	slice := client.ForecastSlicePayload{
		Dt:   1767225600,
		Main: client.MainPayload{Temp: f64(10), Pressure: f64(1010), Humidity: f64(60)},
		Wind: client.WindPayload{Speed: f64(3)},
		Pop:  f64(1.5),
	}
	_, err := ForecastRecords(client.ForecastPayload{List: []client.ForecastSlicePayload{slice}}, "london,gb")
	if !errors.Is(err, ErrInvalidPayload) {
		t.Errorf("error = %v, want ErrInvalidPayload for pop > 1", err)
	}
}

// TestHistoricalRecords verifies both response vintages ("data" and
// "hourly") and missing-field rejection.
func TestHistoricalRecords(t *testing.T) {
	point := client.HistoricalPointPayload{
		Dt:        1767225600,
		Temp:      f64(8),
		FeelsLike: 6,
		Pressure:  f64(1005),
		Humidity:  f64(80),
		WindSpeed: f64(6),
		WindDeg:   270,
		Clouds:    90,
		Weather:   []client.ConditionPayload{{Main: "Rain", Description: "light rain"}},
	}

	fromData, err := HistoricalRecords(client.HistoricalPayload{Data: []client.HistoricalPointPayload{point}}, "london,gb")
	if err != nil {
		t.Fatalf("HistoricalRecords(data) error = %v", err)
	}
	fromHourly, err := HistoricalRecords(client.HistoricalPayload{Hourly: []client.HistoricalPointPayload{point}}, "london,gb")
	if err != nil {
		t.Fatalf("HistoricalRecords(hourly) error = %v", err)
	}
	if fromData[0].Temperature != fromHourly[0].Temperature {
		t.Error("data and hourly vintages produced different records")
	}
	if fromData[0].Condition != "Rain" {
		t.Errorf("Condition = %q, want Rain", fromData[0].Condition)
	}

	missing := point
	missing.WindSpeed = nil
	_, err = HistoricalRecords(client.HistoricalPayload{Data: []client.HistoricalPointPayload{missing}}, "london,gb")
	if !errors.Is(err, ErrInvalidPayload) {
		t.Errorf("error = %v, want ErrInvalidPayload for missing wind speed", err)
	}

	_, err = HistoricalRecords(client.HistoricalPayload{}, "london,gb")
	if !errors.Is(err, ErrInvalidPayload) {
		t.Errorf("error = %v, want ErrInvalidPayload for empty payload", err)
	}
}

// TestAlertReport verifies that an absent alerts array is a valid empty
// report and that alerts without an event are rejected.
func TestAlertReport(t *testing.T) {
	empty, err := AlertReport(client.AlertsPayload{}, "london,gb")
	if err != nil {
		t.Fatalf("AlertReport(empty) error = %v, want nil", err)
	}
	if empty.Location != "london,gb" || len(empty.Alerts) != 0 {
		t.Errorf("empty report = %+v, want zero alerts for london,gb", empty)
	}

	report, err := AlertReport(client.AlertsPayload{Alerts: []client.AlertPayload{{
		SenderName:  "Met Office",
		Event:       "Flood Warning",
		Start:       1767225600,
		End:         1767232800,
		Description: "river levels rising",
	}}}, "london,gb")
	if err != nil {
		t.Fatalf("AlertReport() error = %v", err)
	}
	if report.Alerts[0].Event != "Flood Warning" || report.Alerts[0].Sender != "Met Office" {
		t.Errorf("alert = %+v, want Flood Warning from Met Office", report.Alerts[0])
	}
	if report.Alerts[0].Start.IsZero() || report.Alerts[0].End.IsZero() {
		t.Error("alert start/end not mapped")
	}

	_, err = AlertReport(client.AlertsPayload{Alerts: []client.AlertPayload{{SenderName: "x"}}}, "london,gb")
	if !errors.Is(err, ErrInvalidPayload) {
		t.Errorf("error = %v, want ErrInvalidPayload for missing event", err)
	}
}
