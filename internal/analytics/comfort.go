package analytics

import "math"

// comfortScore scores a day on a 0-100 scale: 100 minus weighted penalties
// for temperature outside the ideal band, humidity outside its band, and
// wind above the calm knee. Always clamped to [0,100] for finite inputs.
func (e *Engine) comfortScore(temp, humidity, wind float64) float64 {
	score := 100.0

	if temp < e.cfg.IdealTempLow {
		score -= (e.cfg.IdealTempLow - temp) * e.cfg.ColdPenaltyPerDeg
	} else if temp > e.cfg.IdealTempHigh {
		score -= (temp - e.cfg.IdealTempHigh) * e.cfg.HeatPenaltyPerDeg
	}

	if humidity < e.cfg.HumidityLow {
		score -= (e.cfg.HumidityLow - humidity) * e.cfg.DryPenaltyPerPct
	} else if humidity > e.cfg.HumidityHigh {
		score -= (humidity - e.cfg.HumidityHigh) * e.cfg.HumidPenaltyPerPct
	}

	if wind > e.cfg.CalmWindMax {
		score -= (wind - e.cfg.CalmWindMax) * e.cfg.WindPenaltyPerMS
	}

	return math.Max(0, math.Min(100, score))
}

// comfortLevel maps a score to its display label.
func comfortLevel(score float64) string {
	switch {
	case score >= 80:
		return "Excellent"
	case score >= 60:
		return "Good"
	case score >= 40:
		return "Fair"
	case score >= 20:
		return "Poor"
	default:
		return "Very Poor"
	}
}

// heatIndex estimates perceived temperature for warm weather using a
// simplified vapor-pressure formula. Below 20 °C the air temperature is
// returned unchanged.
func heatIndex(temp float64) float64 {
	if temp < 20 {
		return temp
	}
	vp := 6.11 * math.Exp(5417.7530*((1/273.16)-(1/(temp+273.16))))
	return temp + 0.5555*(vp-10)
}

// windChill applies the standard wind chill formula for cold weather
// (temp ≤ 10 °C and wind above 1.34 m/s); otherwise returns temp.
func windChill(temp, wind float64) float64 {
	if temp > 10 || wind <= 1.34 {
		return temp
	}
	kmh := wind * 3.6
	return 13.12 + 0.6215*temp - 11.37*math.Pow(kmh, 0.16) + 0.3965*temp*math.Pow(kmh, 0.16)
}
