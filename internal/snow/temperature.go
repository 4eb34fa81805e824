package snow

import (
	"fmt"
	"math"
	"time"
)

// Temperature thresholds in °F for snow possibility.
const (
	noSnowTemp    = 40 // above this, snow is not possible
	lowSnowTemp   = 35 // 35-40: unlikely but possible
	heavySnowTemp = 25 // below this, heavy snow conditions likely
)

// TemperatureCheck is the outcome of the temperature gate: whether pixel
// analysis can be skipped, the baseline confidence for the temperature
// signal, and the sensitivity factor applied to the white-pixel percentage.
type TemperatureCheck struct {
	TemperatureF float64
	Estimated    bool
	SkipAnalysis bool
	Confidence   float64
	Factor       float64
	Reason       string
}

// CheckTemperature gates the detection on air temperature. A nil reading
// falls back to a seasonal time-of-day estimate for the basin.
func CheckTemperature(airTemperatureF *float64, now time.Time) TemperatureCheck {
	check := TemperatureCheck{}
	if airTemperatureF != nil {
		check.TemperatureF = *airTemperatureF
	} else {
		check.TemperatureF = seasonalEstimate(now)
		check.Estimated = true
		check.Reason = "Estimated temperature. "
	}

	temp := math.Round(check.TemperatureF)
	switch {
	case check.TemperatureF > noSnowTemp:
		check.SkipAnalysis = true
		check.Confidence = 0.95
		check.Factor = 0
		check.Reason += fmt.Sprintf("Too warm for snow (%.0f°F)", temp)
	case check.TemperatureF > lowSnowTemp:
		check.Confidence = 0.3
		check.Factor = 0.3
		check.Reason += fmt.Sprintf("Marginal snow conditions (%.0f°F)", temp)
	case check.TemperatureF < heavySnowTemp:
		check.Confidence = 0.9
		check.Factor = 1.5
		check.Reason += fmt.Sprintf("Ideal snow conditions (%.0f°F)", temp)
	default:
		check.Confidence = 0.7
		check.Factor = 1.0
		check.Reason += fmt.Sprintf("Snow possible (%.0f°F)", temp)
	}
	return check
}

// seasonalEstimate is a rough basin temperature guess from month and hour,
// used only when no station reading is available.
func seasonalEstimate(now time.Time) float64 {
	month := now.Month()
	hour := now.Hour()
	night := hour < 6 || hour > 20

	switch {
	case month >= time.June && month <= time.August:
		if night {
			return 65
		}
		return 85
	case month >= time.April && month <= time.May:
		if night {
			return 45
		}
		return 65
	case month >= time.September && month <= time.October:
		if night {
			return 40
		}
		return 60
	default: // November through March
		if night {
			return 20
		}
		return 35
	}
}
