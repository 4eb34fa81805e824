// Package confidence combines weighted evidence about an uncertain physical
// condition into a calibrated score and a discrete human-facing level.
package confidence

import (
	"errors"
	"fmt"
	"math"
)

// Level is one of three discrete confidence bands partitioning [0, 1].
type Level string

const (
	// Possibility covers [0, 0.4): conditions suggest this might be occurring.
	Possibility Level = "Possibility"
	// Probability covers [0.4, 0.75): conditions indicate this is likely.
	Probability Level = "Probability"
	// BestGuess covers [0.75, 1.0]: high confidence from multiple factors.
	BestGuess Level = "Best Guess"
)

// Band thresholds. The lower bound of each band is inclusive, so 0.4 and 0.75
// belong to the higher band.
const (
	probabilityMin = 0.4
	bestGuessMin   = 0.75
)

// ErrInvalidConfidence reports a confidence value outside [0, 1] or NaN.
var ErrInvalidConfidence = errors.New("confidence must be between 0 and 1")

// Badge is the presentation contract for a level. Rendering it to markup is
// the caller's concern.
type Badge struct {
	Name        string `json:"name"`
	DisplayText string `json:"displayText"`
	Slug        string `json:"badge"`
	Color       string `json:"color"`
	Icon        string `json:"icon"`
	Description string `json:"description"`
}

var badges = map[Level]Badge{
	Possibility: {
		Name:        "Possibility",
		DisplayText: "Possible",
		Slug:        "possible",
		Color:       "#6c757d",
		Icon:        "?",
		Description: "Conditions suggest this might be occurring",
	},
	Probability: {
		Name:        "Probability",
		DisplayText: "Likely",
		Slug:        "likely",
		Color:       "#ffc107",
		Icon:        "~",
		Description: "Conditions indicate this is likely occurring",
	},
	BestGuess: {
		Name:        "Best Guess",
		DisplayText: "Confirmed",
		Slug:        "confirmed",
		Color:       "#28a745",
		Icon:        "✓",
		Description: "High confidence determination based on multiple factors",
	},
}

// Badge returns the presentation tuple for the level.
func (l Level) Badge() Badge {
	return badges[l]
}

// Classify maps a confidence value to its level. Values outside [0, 1] or
// NaN return ErrInvalidConfidence.
func Classify(v float64) (Level, error) {
	if math.IsNaN(v) || v < 0 || v > 1 {
		return "", fmt.Errorf("%w, got %v", ErrInvalidConfidence, v)
	}
	switch {
	case v < probabilityMin:
		return Possibility, nil
	case v < bestGuessMin:
		return Probability, nil
	default:
		return BestGuess, nil
	}
}

// Source is one independent confidence estimate about the same fact.
// Confidence is clamped to [0, 1] on read; Weight defaults to 1 when not
// positive.
type Source struct {
	Confidence float64 `json:"confidence"`
	Weight     float64 `json:"weight"`
	Label      string  `json:"label,omitempty"`
}

// Composite computes the weighted average of the sources. Empty or nil input
// yields 0.
func Composite(sources []Source) float64 {
	if len(sources) == 0 {
		return 0
	}
	var weightedSum, totalWeight float64
	for _, s := range sources {
		c := clamp(s.Confidence)
		w := s.Weight
		if w <= 0 {
			w = 1
		}
		weightedSum += c * w
		totalWeight += w
	}
	if totalWeight <= 0 {
		return 0
	}
	return weightedSum / totalWeight
}

// Quality describes the data behind a confidence value. AgeMinutes of 0 means
// fresh or unknown (no penalty). SensorReliability nil means not measured;
// TemporalConsistency and SpatialAgreement of 0 apply no bonus.
type Quality struct {
	AgeMinutes          float64
	SensorReliability   *float64
	TemporalConsistency float64
	SpatialAgreement    float64
}

// AdjustForQuality applies the multiplicative quality chain to base: an age
// penalty, the sensor reliability factor, and small bonuses for temporal
// consistency (up to 10%) and spatial agreement (up to 15%). The result is
// clamped to [0, 1].
func AdjustForQuality(base float64, q Quality) float64 {
	adjusted := base

	switch {
	case q.AgeMinutes > 60:
		adjusted *= 0.7
	case q.AgeMinutes > 30:
		adjusted *= 0.85
	case q.AgeMinutes > 15:
		adjusted *= 0.95
	}

	if q.SensorReliability != nil {
		adjusted *= *q.SensorReliability
	}
	if q.TemporalConsistency != 0 {
		adjusted *= 1 + q.TemporalConsistency*0.10
	}
	if q.SpatialAgreement != 0 {
		adjusted *= 1 + q.SpatialAgreement*0.15
	}

	return clamp(adjusted)
}

func clamp(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
