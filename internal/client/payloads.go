package client

// Provider response payloads. Required numeric fields are pointers so a
// missing field is distinguishable from a zero value; the validation
// package rejects nil required fields before any record is constructed.

// MainPayload is the "main" block shared by current and forecast responses.
type MainPayload struct {
	Temp      *float64 `json:"temp"`
	FeelsLike *float64 `json:"feels_like"`
	TempMin   float64  `json:"temp_min"`
	TempMax   float64  `json:"temp_max"`
	Pressure  *float64 `json:"pressure"`
	Humidity  *float64 `json:"humidity"`
}

// ConditionPayload is one entry of the "weather" array.
type ConditionPayload struct {
	Main        string `json:"main"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
}

// WindPayload is the "wind" block.
type WindPayload struct {
	Speed *float64 `json:"speed"`
	Deg   float64  `json:"deg"`
}

// CloudsPayload is the "clouds" block.
type CloudsPayload struct {
	All float64 `json:"all"`
}

// CurrentPayload is the current-conditions response.
type CurrentPayload struct {
	Dt      int64              `json:"dt"`
	Name    string             `json:"name"`
	Main    MainPayload        `json:"main"`
	Weather []ConditionPayload `json:"weather"`
	Wind    WindPayload        `json:"wind"`
	Clouds  CloudsPayload      `json:"clouds"`
}

// ForecastSlicePayload is one 3-hourly slice of the forecast response.
type ForecastSlicePayload struct {
	Dt      int64              `json:"dt"`
	Main    MainPayload        `json:"main"`
	Weather []ConditionPayload `json:"weather"`
	Wind    WindPayload        `json:"wind"`
	Clouds  CloudsPayload      `json:"clouds"`
	Pop     *float64           `json:"pop"` // precipitation probability, 0-1
}

// ForecastPayload is the 5-day/3-hour forecast response.
type ForecastPayload struct {
	List []ForecastSlicePayload `json:"list"`
	City struct {
		Name string `json:"name"`
	} `json:"city"`
}

// HistoricalPointPayload is one observation of the timemachine response.
type HistoricalPointPayload struct {
	Dt        int64              `json:"dt"`
	Temp      *float64           `json:"temp"`
	FeelsLike float64            `json:"feels_like"`
	Pressure  *float64           `json:"pressure"`
	Humidity  *float64           `json:"humidity"`
	WindSpeed *float64           `json:"wind_speed"`
	WindDeg   float64            `json:"wind_deg"`
	Clouds    float64            `json:"clouds"`
	Weather   []ConditionPayload `json:"weather"`
}

// HistoricalPayload is the timemachine response. Newer API versions return
// observations under "data", older under "hourly"; both are accepted.
type HistoricalPayload struct {
	Data   []HistoricalPointPayload `json:"data"`
	Hourly []HistoricalPointPayload `json:"hourly"`
}

// Points returns the observation list regardless of response vintage.
func (p HistoricalPayload) Points() []HistoricalPointPayload {
	if len(p.Data) > 0 {
		return p.Data
	}
	return p.Hourly
}

// AlertPayload is one provider-issued weather alert.
type AlertPayload struct {
	SenderName  string `json:"sender_name"`
	Event       string `json:"event"`
	Start       int64  `json:"start"`
	End         int64  `json:"end"`
	Description string `json:"description"`
}

// AlertsPayload is the alerts-only onecall response.
type AlertsPayload struct {
	Alerts []AlertPayload `json:"alerts"`
}

// GeoHitPayload is one match of the direct-geocoding response.
type GeoHitPayload struct {
	Name    string  `json:"name"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
	Country string  `json:"country"`
}
