package snow

import (
	"math"
	"testing"
	"time"

	"github.com/basinwx/road-weather-service/internal/models"
)

// whiteFrame builds an RGB buffer of n pure-white pixels.
func whiteFrame(n int) []byte {
	frame := make([]byte, n*3)
	for i := range frame {
		frame[i] = 255
	}
	return frame
}

// blackFrame builds an RGB buffer of n black pixels.
func blackFrame(n int) []byte {
	return make([]byte, n*3)
}

// TestRGBClassifier covers the white-pixel heuristic on synthetic buffers.
func TestRGBClassifier(t *testing.T) {
	c := RGBClassifier{}

	tests := []struct {
		name  string
		frame []byte
		want  float64
	}{
		{"all white", whiteFrame(100), 100},
		{"all black", blackFrame(100), 0},
		{"empty", nil, 0},
		// Saturated red: bright enough on one channel but colorful.
		{"saturated red", []byte{255, 0, 0, 255, 0, 0}, 0},
		// Dim gray: balanced and colorless but below the brightness floor.
		{"dim gray", []byte{120, 120, 120}, 0},
		// Slightly warm white stays within all three thresholds.
		{"warm white", []byte{255, 250, 245}, 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.WhitePixelPercentage(tt.frame); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("WhitePixelPercentage = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestRGBClassifier_MixedFrame verifies the percentage over a mixed buffer.
func TestRGBClassifier_MixedFrame(t *testing.T) {
	frame := append(whiteFrame(1), blackFrame(3)...)
	if got := (RGBClassifier{}).WhitePixelPercentage(frame); got != 25 {
		t.Errorf("1 white of 4 pixels = %v%%, want 25", got)
	}
}

// TestCheckTemperature covers the gate tiers from the testable properties:
// 45°F skips with high confidence, 37°F analyzes with low confidence,
// 20°F analyzes with high confidence.
func TestCheckTemperature(t *testing.T) {
	now := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	temp := func(v float64) *float64 { return &v }

	tests := []struct {
		name       string
		tempF      *float64
		wantSkip   bool
		wantFactor float64
		checkConf  func(float64) bool
	}{
		{"too warm", temp(45), true, 0, func(c float64) bool { return c > 0.9 }},
		{"marginal", temp(37), false, 0.3, func(c float64) bool { return c < 0.5 }},
		{"very cold", temp(20), false, 1.5, func(c float64) bool { return c > 0.8 }},
		{"typical snow temp", temp(30), false, 1.0, func(c float64) bool { return c == 0.7 }},
		{"boundary 40", temp(40), false, 0.3, func(c float64) bool { return c == 0.3 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CheckTemperature(tt.tempF, now)
			if got.SkipAnalysis != tt.wantSkip {
				t.Errorf("SkipAnalysis = %v, want %v", got.SkipAnalysis, tt.wantSkip)
			}
			if got.Factor != tt.wantFactor {
				t.Errorf("Factor = %v, want %v", got.Factor, tt.wantFactor)
			}
			if !tt.checkConf(got.Confidence) {
				t.Errorf("Confidence = %v fails the band check", got.Confidence)
			}
			if got.Estimated {
				t.Error("real reading flagged as estimated")
			}
		})
	}
}

// TestCheckTemperature_SeasonalEstimate verifies the fallback estimate when
// no station reading exists: a winter night reads as ideal snow conditions.
func TestCheckTemperature_SeasonalEstimate(t *testing.T) {
	winterNight := time.Date(2026, 1, 15, 3, 0, 0, 0, time.UTC)
	got := CheckTemperature(nil, winterNight)
	if !got.Estimated {
		t.Error("estimate not flagged")
	}
	if got.TemperatureF != 20 {
		t.Errorf("winter night estimate = %v°F, want 20", got.TemperatureF)
	}
	if got.SkipAnalysis || got.Factor != 1.5 {
		t.Errorf("winter night gate = skip %v factor %v, want analyze at 1.5", got.SkipAnalysis, got.Factor)
	}

	summerDay := time.Date(2026, 7, 15, 14, 0, 0, 0, time.UTC)
	if got := CheckTemperature(nil, summerDay); !got.SkipAnalysis {
		t.Error("summer afternoon estimate did not skip analysis")
	}
}

// TestDetermineLevel covers the threshold boundaries.
func TestDetermineLevel(t *testing.T) {
	tests := []struct {
		pct  float64
		want models.SnowLevel
	}{
		{0, models.SnowNone},
		{7.9, models.SnowNone},
		{8, models.SnowLight},
		{19.9, models.SnowLight},
		{20, models.SnowModerate},
		{34.9, models.SnowModerate},
		{35, models.SnowHeavy},
		{100, models.SnowHeavy},
	}
	for _, tt := range tests {
		if got := DetermineLevel(tt.pct); got != tt.want {
			t.Errorf("DetermineLevel(%v) = %s, want %s", tt.pct, got, tt.want)
		}
	}
}

// TestAnalyze_TemperatureOverride verifies a warm reading reports no snow
// with high confidence and skips the pixel heuristic entirely.
func TestAnalyze_TemperatureOverride(t *testing.T) {
	d := NewDetector(nil, nil)
	warm := 45.0

	got := d.Analyze("cam1", whiteFrame(100), &warm)
	if !got.TemperatureOverride {
		t.Fatal("override not flagged")
	}
	if got.SnowDetected || got.SnowLevel != models.SnowNone {
		t.Errorf("warm override detected snow: %+v", got)
	}
	if got.Confidence != 0.95 {
		t.Errorf("override confidence = %v, want 0.95", got.Confidence)
	}
	if got.WhitePixelPercentage != 0 {
		t.Errorf("pixel analysis ran despite override: %v%%", got.WhitePixelPercentage)
	}
}

// TestAnalyze_ColdWhiteFrame verifies a snowy frame in cold conditions
// detects heavy snow with a confident composite score.
func TestAnalyze_ColdWhiteFrame(t *testing.T) {
	d := NewDetector(nil, nil)
	cold := 20.0

	got := d.Analyze("cam1", whiteFrame(100), &cold)
	if got.SnowLevel != models.SnowHeavy || !got.SnowDetected {
		t.Fatalf("result = %+v, want heavy snow", got)
	}
	if got.Confidence <= 0.75 {
		t.Errorf("confidence = %v, want > 0.75 for strong dual evidence", got.Confidence)
	}
	if got.ConfidenceLevel != "Best Guess" {
		t.Errorf("confidence level = %q", got.ConfidenceLevel)
	}
}

// TestAnalyze_HistoryBounded verifies the per-camera FIFO never exceeds 10
// entries regardless of push count.
func TestAnalyze_HistoryBounded(t *testing.T) {
	d := NewDetector(nil, nil)
	cold := 30.0

	for i := 0; i < 15; i++ {
		d.Analyze("cam1", blackFrame(10), &cold)
	}
	if got := len(d.History("cam1")); got != maxHistory {
		t.Errorf("history length = %d, want %d", got, maxHistory)
	}
}

// TestAnalyze_TemporalSmoothing verifies the reported percentage is the mean
// of the recent window once history exists.
func TestAnalyze_TemporalSmoothing(t *testing.T) {
	d := NewDetector(nil, nil)
	temp := 30.0 // factor 1.0 keeps percentages equal to the raw pixel share

	first := d.Analyze("cam1", blackFrame(100), &temp)
	if first.Smoothed {
		t.Error("first result smoothed with no history")
	}

	second := d.Analyze("cam1", whiteFrame(100), &temp)
	if !second.Smoothed {
		t.Fatal("second result not smoothed")
	}
	// Mean of 0 and 100.
	if math.Abs(second.WhitePixelPercentage-50) > 1e-9 {
		t.Errorf("smoothed percentage = %v, want 50", second.WhitePixelPercentage)
	}
	if second.SnowLevel != models.SnowHeavy {
		t.Errorf("smoothed level = %s, want heavy (50%%)", second.SnowLevel)
	}
}

// TestAnalyze_HistoryKeepsRawResults verifies smoothing averages raw
// detections: history holds what the classifier saw, not what was reported,
// so the filter never feeds on its own output.
func TestAnalyze_HistoryKeepsRawResults(t *testing.T) {
	d := NewDetector(nil, nil)
	temp := 30.0

	d.Analyze("cam1", whiteFrame(100), &temp)
	d.Analyze("cam1", blackFrame(100), &temp)
	third := d.Analyze("cam1", blackFrame(100), &temp)

	// Mean of the raw 100, 0, 0 — not of previously smoothed values.
	if math.Abs(third.WhitePixelPercentage-100.0/3) > 1e-9 {
		t.Errorf("third smoothed percentage = %v, want %v", third.WhitePixelPercentage, 100.0/3)
	}
	if third.SnowLevel != models.SnowModerate {
		t.Errorf("third level = %s, want moderate", third.SnowLevel)
	}

	wantRaw := []float64{100, 0, 0}
	hist := d.History("cam1")
	if len(hist) != len(wantRaw) {
		t.Fatalf("history length = %d, want %d", len(hist), len(wantRaw))
	}
	for i, want := range wantRaw {
		if hist[i].WhitePixelPercentage != want {
			t.Errorf("history[%d] = %v%%, want %v (raw)", i, hist[i].WhitePixelPercentage, want)
		}
		if hist[i].Smoothed {
			t.Errorf("history[%d] stored a smoothed result", i)
		}
	}

	// The reported view carries the smoothed result.
	if got := d.Latest()["cam1"]; !got.Smoothed || got.WhitePixelPercentage != third.WhitePixelPercentage {
		t.Errorf("latest = %+v, want the smoothed third result", got)
	}
}

// TestConsistency verifies the agreement score over recent results.
func TestConsistency(t *testing.T) {
	same := []models.DetectionResult{
		{SnowLevel: models.SnowLight}, {SnowLevel: models.SnowLight}, {SnowLevel: models.SnowLight},
	}
	mixed := []models.DetectionResult{
		{SnowLevel: models.SnowLight}, {SnowLevel: models.SnowHeavy}, {SnowLevel: models.SnowLight},
	}
	if got := Consistency(same); got != 1.0 {
		t.Errorf("identical levels = %v, want 1.0", got)
	}
	if got := Consistency(mixed); got != 0.3 {
		t.Errorf("mixed levels = %v, want 0.3", got)
	}
	if got := Consistency(same[:1]); got != 0.5 {
		t.Errorf("single result = %v, want 0.5", got)
	}
}

// TestNearestStation verifies the 50-mile acceptance radius.
func TestNearestStation(t *testing.T) {
	vernal := models.WeatherStation{ID: 1, Name: "Vernal", Lat: 40.4555, Lng: -109.5287}
	saltLake := models.WeatherStation{ID: 2, Name: "Salt Lake", Lat: 40.7608, Lng: -111.8910}
	stations := []models.WeatherStation{saltLake, vernal}

	// Camera in Roosevelt, ~30mi from Vernal, ~120mi from Salt Lake.
	got, dist := NearestStation(40.2999, -109.9890, stations)
	if got == nil || got.ID != 1 {
		t.Fatalf("nearest = %+v, want Vernal", got)
	}
	if dist <= 0 || dist >= 50 {
		t.Errorf("distance = %v mi, want in (0, 50)", dist)
	}

	// Camera far from everything.
	if got, _ := NearestStation(37.0, -113.0, []models.WeatherStation{vernal}); got != nil {
		t.Errorf("station beyond 50mi accepted: %+v", got)
	}

	if got, _ := NearestStation(40.0, -110.0, nil); got != nil {
		t.Error("nearest station from empty list")
	}
}

// TestRoadConditionFromDetection covers the detection → display mapping.
func TestRoadConditionFromDetection(t *testing.T) {
	tests := []struct {
		name       string
		det        models.DetectionResult
		wantColor  string
		wantStatus string
	}{
		{"override", models.DetectionResult{TemperatureOverride: true, Temperature: 48}, "green", "Clear (48°F)"},
		{"none", models.DetectionResult{SnowLevel: models.SnowNone}, "green", "Clear"},
		{"light", models.DetectionResult{SnowLevel: models.SnowLight}, "yellow", "Light Snow"},
		{"moderate", models.DetectionResult{SnowLevel: models.SnowModerate}, "orange", "Moderate Snow"},
		{"heavy", models.DetectionResult{SnowLevel: models.SnowHeavy}, "red", "Heavy Snow"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RoadConditionFromDetection(tt.det)
			if got.Color != tt.wantColor || got.Status != tt.wantStatus {
				t.Errorf("mapping = (%s, %s), want (%s, %s)", got.Color, got.Status, tt.wantColor, tt.wantStatus)
			}
		})
	}
}
