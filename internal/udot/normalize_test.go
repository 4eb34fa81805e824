package udot

import (
	"testing"
	"time"
)

// TestMapConditionToLevel covers the 1-5 styling scale mapping.
func TestMapConditionToLevel(t *testing.T) {
	tests := []struct {
		condition string
		want      int
	}{
		{"", 1},
		{"Dry", 1},
		{"Wet", 2},
		{"Light Rain", 2},
		{"Fair", 2},
		{"Snow Packed", 3},
		{"Icy Spots", 3},
		{"Slush", 3},
		{"Poor Visibility", 3},
		{"Very Poor", 4},
		{"Severe Conditions", 4},
		{"Closed", 5},
		{"Impassable", 5},
	}
	for _, tt := range tests {
		if got := MapConditionToLevel(tt.condition); got != tt.want {
			t.Errorf("MapConditionToLevel(%q) = %d, want %d", tt.condition, got, tt.want)
		}
	}
}

// TestRateCondition covers the display-rating mapping from road, weather,
// and restriction descriptions.
func TestRateCondition(t *testing.T) {
	tests := []struct {
		name                     string
		road, weather, restrict  string
		wantCondition, wantState string
	}{
		{"closed restriction", "Wet", "Fair", "Closed to traffic", "red", "Dangerous"},
		{"icy road", "Icy", "Fair", "", "red", "Dangerous"},
		{"snowing", "Wet", "Snow", "", "yellow", "Use Caution"},
		{"chain law", "Dry", "Fair", "Chains required", "yellow", "Use Caution"},
		{"dry and fair", "Dry", "Fair", "", "green", "Clear"},
		{"wet only", "Wet", "Cloudy", "", "yellow", "Wet Roads"},
		{"default", "Unknown", "Unknown", "", "green", "Normal"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RateCondition(tt.road, tt.weather, tt.restrict)
			if got.Condition != tt.wantCondition || got.Status != tt.wantState {
				t.Errorf("RateCondition(%q, %q, %q) = (%s, %s), want (%s, %s)",
					tt.road, tt.weather, tt.restrict,
					got.Condition, got.Status, tt.wantCondition, tt.wantState)
			}
		})
	}
}

// TestEventPriority verifies the ordering score: active full closures from
// accidents outrank scheduled minor roadwork.
func TestEventPriority(t *testing.T) {
	now := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)

	activeClosure := eventRecord{
		EventType:     "accidentsandincidents",
		Severity:      "Major",
		IsFullClosure: true,
		StartDate:     now.Add(-time.Hour).Unix(),
	}
	futureRoadwork := eventRecord{
		EventType: "roadwork",
		Severity:  "Minor",
		StartDate: now.Add(20 * 24 * time.Hour).Unix(),
	}

	hi := EventPriority(activeClosure, now)
	lo := EventPriority(futureRoadwork, now)
	if hi <= lo {
		t.Errorf("active closure priority %d not above future roadwork %d", hi, lo)
	}
	// 10 (closure) + 8 (active) + 9 (accident) + 5 (major)
	if hi != 32 {
		t.Errorf("active closure priority = %d, want 32", hi)
	}
	// 3 (starts within 30 days) + 5 (roadwork) + 1 (minor)
	if lo != 9 {
		t.Errorf("future roadwork priority = %d, want 9", lo)
	}
}

// TestAlertActive verifies the active-window check against start and end times.
func TestAlertActive(t *testing.T) {
	now := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name       string
		start, end int64
		want       bool
	}{
		{"open ended", 0, 0, true},
		{"in window", now.Add(-time.Hour).Unix(), now.Add(time.Hour).Unix(), true},
		{"not started", now.Add(time.Hour).Unix(), 0, false},
		{"already ended", 0, now.Add(-time.Hour).Unix(), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := alertActive(alertRecord{StartTime: tt.start, EndTime: tt.end}, now); got != tt.want {
				t.Errorf("alertActive = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestNormalizeCameras verifies bounding-box filtering and view defaults.
func TestNormalizeCameras(t *testing.T) {
	recs := []cameraRecord{
		{Id: 1, Location: "US-40 @ Vernal", Latitude: 40.45, Longitude: -109.53,
			Views: []struct {
				Url         string `json:"Url"`
				Status      string `json:"Status"`
				Description string `json:"Description"`
			}{{Url: "https://example.com/cam1.jpg", Status: "Enabled"}}},
		{Id: 2, Location: "I-15 @ Salt Lake", Latitude: 40.76, Longitude: -111.89},
		{Id: 3, Location: "No coordinates"},
	}

	got := normalizeCameras(recs, UintahBasinBounds)
	if len(got) != 1 {
		t.Fatalf("normalized %d cameras, want 1", len(got))
	}
	if got[0].ID != 1 {
		t.Errorf("kept camera %d, want 1 (inside basin bounds)", got[0].ID)
	}
	if got[0].Views[0].Description != "Live Camera Feed" {
		t.Errorf("empty view description not defaulted: %q", got[0].Views[0].Description)
	}
}

// TestNormalizeStations verifies the air-temperature presence flag
// distinguishes a missing reading from a true zero.
func TestNormalizeStations(t *testing.T) {
	zero := 0.0
	recs := []stationRecord{
		{Id: 1, Name: "Starvation", Latitude: 40.18, Longitude: -110.48, AirTemperature: &zero},
		{Id: 2, Name: "Myton", Latitude: 40.19, Longitude: -110.06, AirTemperature: nil},
	}

	got := normalizeStations(recs, UintahBasinBounds)
	if len(got) != 2 {
		t.Fatalf("normalized %d stations, want 2", len(got))
	}
	if !got[0].HasAirTemperature || got[0].AirTemperature != 0 {
		t.Errorf("station 1: 0°F reading should be kept as a real value")
	}
	if got[1].HasAirTemperature {
		t.Errorf("station 2: missing reading flagged as present")
	}
}

// TestNormalizeRoads verifies geometry-based filtering with the roadway-name
// fallback for undecodable polylines.
func TestNormalizeRoads(t *testing.T) {
	// Single point at (40.45, -109.53), inside the basin.
	inside := encodeTestPolyline([][2]float64{{40.45, -109.53}})
	// Single point at (40.76, -111.89), Salt Lake, outside.
	outside := encodeTestPolyline([][2]float64{{40.76, -111.89}})

	recs := []roadRecord{
		{Id: 1, RoadwayName: "US-40", RoadCondition: "Dry", WeatherCondition: "Fair", EncodedPolyline: inside},
		{Id: 2, RoadwayName: "I-15", RoadCondition: "Dry", WeatherCondition: "Fair", EncodedPolyline: outside},
		{Id: 3, RoadwayName: "SR-87 Duchesne", RoadCondition: "Snow", WeatherCondition: "Snow", EncodedPolyline: "!"},
		{Id: 4, RoadwayName: "No geometry"},
	}

	got := normalizeRoads(recs, UintahBasinBounds, []string{"duchesne"})
	if len(got) != 2 {
		t.Fatalf("normalized %d roads, want 2", len(got))
	}
	if got[0].ID != 1 || got[1].ID != 3 {
		t.Errorf("kept roads %d, %d; want 1 (in bounds) and 3 (name fallback)", got[0].ID, got[1].ID)
	}
	if got[0].Level != 1 || got[1].Level != 3 {
		t.Errorf("levels = %d, %d; want 1 and 3", got[0].Level, got[1].Level)
	}
	if len(got[1].Coordinates) != 0 {
		t.Errorf("undecodable road kept %d coordinates", len(got[1].Coordinates))
	}
}

// encodeTestPolyline builds an encoded polyline for test fixtures.
func encodeTestPolyline(points [][2]float64) string {
	var out []byte
	encode := func(v int64) {
		u := v << 1
		if v < 0 {
			u = ^u
		}
		for u >= 0x20 {
			out = append(out, byte((0x20|(u&0x1f))+63))
			u >>= 5
		}
		out = append(out, byte(u+63))
	}
	var lat, lng int64
	for _, p := range points {
		la := int64(p[0] * 1e5)
		ln := int64(p[1] * 1e5)
		encode(la - lat)
		encode(ln - lng)
		lat, lng = la, ln
	}
	return string(out)
}
