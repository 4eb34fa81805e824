package confidence

import (
	"fmt"
	"strings"
)

// Factors describes the evidence behind a confidence value for the
// human-readable explanation. Nil pointer fields mean the factor was not
// observed at all, which is distinct from a false or zero observation.
type Factors struct {
	DirectMeasurement   bool
	TemperatureF        *float64
	CameraAnalysis      bool
	WhitePixelPercent   float64
	TemporalConsistency *bool
	DataAgeMinutes      float64
}

// Explain builds a deterministic one-line explanation of the confidence
// value from the observed factors.
func Explain(v float64, f Factors) (string, error) {
	level, err := Classify(v)
	if err != nil {
		return "", err
	}
	badge := level.Badge()

	var parts []string
	if f.DirectMeasurement {
		parts = append(parts, "direct sensor measurement")
	}
	if f.TemperatureF != nil {
		switch t := *f.TemperatureF; {
		case t > 40:
			parts = append(parts, "temperature too warm for snow")
		case t <= 30:
			parts = append(parts, "temperature ideal for snow")
		default:
			parts = append(parts, "temperature in marginal snow range")
		}
	}
	if f.CameraAnalysis {
		parts = append(parts, fmt.Sprintf("camera shows %.0f%% white pixels", f.WhitePixelPercent))
	}
	if f.TemporalConsistency != nil {
		if *f.TemporalConsistency {
			parts = append(parts, "consistent with recent observations")
		} else {
			parts = append(parts, "conflicts with recent observations")
		}
	}
	if f.DataAgeMinutes > 0 {
		switch {
		case f.DataAgeMinutes < 15:
			parts = append(parts, "very recent data")
		case f.DataAgeMinutes < 60:
			parts = append(parts, fmt.Sprintf("data from %.0f minutes ago", f.DataAgeMinutes))
		default:
			parts = append(parts, "data may be outdated")
		}
	}

	if len(parts) == 0 {
		return badge.DisplayText + ": " + strings.ToLower(badge.Description), nil
	}
	return badge.DisplayText + ": " + strings.Join(parts, ", "), nil
}

// Metadata describes how a confidence value was produced, for validation.
type Metadata struct {
	DataSource            string
	AgeMinutes            float64
	SourceCount           int
	HasConflictingSignals bool
}

// ValidationResult reports whether a confidence value passes quality checks.
// Warnings are advisory; only a range violation makes the result invalid.
type ValidationResult struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
	Level    Level    `json:"level,omitempty"`
}

// Validate checks the confidence value and its provenance. The range check is
// the only hard error; everything else is a warning.
func Validate(v float64, meta Metadata) ValidationResult {
	level, err := Classify(v)
	if err != nil {
		return ValidationResult{
			Valid:  false,
			Errors: []string{fmt.Sprintf("confidence %v is outside valid range [0, 1]", v)},
		}
	}

	var warnings []string
	if meta.DataSource == "" {
		warnings = append(warnings, "no data source specified")
	}
	if meta.AgeMinutes > 120 {
		warnings = append(warnings,
			fmt.Sprintf("data is %.0f minutes old, confidence may be overestimated", meta.AgeMinutes))
	}
	if meta.SourceCount == 1 && v > 0.8 {
		warnings = append(warnings, "high confidence from a single source, consider additional verification")
	}
	if meta.HasConflictingSignals {
		warnings = append(warnings, "conflicting data sources detected, confidence may need adjustment")
	}

	return ValidationResult{
		Valid:    true,
		Warnings: warnings,
		Level:    level,
	}
}
