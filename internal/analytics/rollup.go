package analytics

import (
	"sort"
	"time"

	"github.com/climatrack/climatrack/internal/models"
)

// SummarizeDaily rolls a 3-hourly forecast series up into one record per
// UTC day: min/max/mean temperature, mean humidity, wind and pressure, the
// day's worst precipitation chance, and the modal condition. The result
// keeps the series invariants (ascending, unique timestamps) and is capped
// at maxDays.
func SummarizeDaily(series models.ForecastSeries, maxDays int) models.ForecastSeries {
	if series.Len() == 0 {
		return series
	}

	type bucket struct {
		day        time.Time
		records    []models.WeatherRecord
		conditions map[string]int
	}
	buckets := make(map[string]*bucket)
	for _, r := range series.Records {
		day := r.Timestamp.UTC().Truncate(24 * time.Hour)
		key := day.Format("2006-01-02")
		b, ok := buckets[key]
		if !ok {
			b = &bucket{day: day, conditions: make(map[string]int)}
			buckets[key] = b
		}
		b.records = append(b.records, r)
		if r.Condition != "" {
			b.conditions[r.Condition]++
		}
	}

	days := make([]models.WeatherRecord, 0, len(buckets))
	for _, b := range buckets {
		days = append(days, summarizeBucket(series.Location, b.day, b.records, b.conditions))
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Timestamp.Before(days[j].Timestamp) })
	if maxDays > 0 && len(days) > maxDays {
		days = days[:maxDays]
	}

	return models.ForecastSeries{Location: series.Location, Records: days, Stale: series.Stale}
}

func summarizeBucket(location string, day time.Time, records []models.WeatherRecord, conditions map[string]int) models.WeatherRecord {
	out := models.WeatherRecord{
		Timestamp: day,
		Location:  location,
		TempMin:   records[0].Temperature,
		TempMax:   records[0].Temperature,
	}

	var sumTemp, sumFeels, sumHumidity, sumPressure, sumWind, sumClouds float64
	for _, r := range records {
		sumTemp += r.Temperature
		sumFeels += r.FeelsLike
		sumHumidity += r.Humidity
		sumPressure += r.Pressure
		sumWind += r.WindSpeed
		sumClouds += r.CloudCover
		if r.Temperature < out.TempMin {
			out.TempMin = r.Temperature
		}
		if r.Temperature > out.TempMax {
			out.TempMax = r.Temperature
		}
		if r.PrecipChance > out.PrecipChance {
			out.PrecipChance = r.PrecipChance
		}
	}
	n := float64(len(records))
	out.Temperature = sumTemp / n
	out.FeelsLike = sumFeels / n
	out.Humidity = sumHumidity / n
	out.Pressure = sumPressure / n
	out.WindSpeed = sumWind / n
	out.CloudCover = sumClouds / n
	out.WindDeg = records[len(records)/2].WindDeg

	out.Condition, out.Description = modalCondition(records, conditions)
	return out
}

// modalCondition picks the most frequent condition of the day; ties break
// lexicographically for determinism. The description comes from the first
// record carrying the winning condition.
func modalCondition(records []models.WeatherRecord, counts map[string]int) (string, string) {
	best := ""
	bestCount := 0
	for cond, count := range counts {
		if count > bestCount || (count == bestCount && cond < best) {
			best = cond
			bestCount = count
		}
	}
	if best == "" {
		return "", ""
	}
	for _, r := range records {
		if r.Condition == best {
			return best, r.Description
		}
	}
	return best, ""
}
