package snow

import (
	"math"
	"sync"
	"time"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"

	"github.com/basinwx/road-weather-service/internal/confidence"
	"github.com/basinwx/road-weather-service/internal/models"
	"github.com/basinwx/road-weather-service/internal/observability"
)

// Snow level thresholds on the temperature-scaled white-pixel percentage.
const (
	lightSnowThreshold    = 8
	moderateSnowThreshold = 20
	heavySnowThreshold    = 35
)

// maxHistory bounds the per-camera detection FIFO.
const maxHistory = 10

// maxStationDistanceMiles is how far a weather station may be from a camera
// before its reading stops counting as temperature context.
const maxStationDistanceMiles = 50

// Detector runs snow detection per camera: a temperature gate, the pixel
// heuristic, bounded history, and temporal smoothing. Safe for concurrent
// use; history is the only mutable state.
type Detector struct {
	classifier PixelClassifier
	logger     *zap.Logger

	mu      sync.Mutex
	history map[string][]models.DetectionResult
	latest  map[string]models.DetectionResult

	now func() time.Time
}

// NewDetector creates a Detector with the given classifier. A nil classifier
// uses the RGB triplet heuristic.
func NewDetector(classifier PixelClassifier, logger *zap.Logger) *Detector {
	if classifier == nil {
		classifier = RGBClassifier{}
	}
	return &Detector{
		classifier: classifier,
		logger:     logger,
		history:    make(map[string][]models.DetectionResult),
		latest:     make(map[string]models.DetectionResult),
		now:        time.Now,
	}
}

// DetermineLevel maps a (scaled) white-pixel percentage to a snow level.
func DetermineLevel(whitePixelPercentage float64) models.SnowLevel {
	switch {
	case whitePixelPercentage >= heavySnowThreshold:
		return models.SnowHeavy
	case whitePixelPercentage >= moderateSnowThreshold:
		return models.SnowModerate
	case whitePixelPercentage >= lightSnowThreshold:
		return models.SnowLight
	default:
		return models.SnowNone
	}
}

// Analyze runs one detection for a camera frame. airTemperatureF is the
// nearest-station reading, nil when no station is close enough. The raw
// result is pushed into the camera's history; the returned result is
// smoothed against recent raw results so the filter never feeds on its own
// output.
func (d *Detector) Analyze(cameraID string, frame []byte, airTemperatureF *float64) models.DetectionResult {
	now := d.now()
	check := CheckTemperature(airTemperatureF, now)

	if check.SkipAnalysis {
		result := models.DetectionResult{
			CameraID:            cameraID,
			Timestamp:           now,
			SnowDetected:        false,
			SnowLevel:           models.SnowNone,
			Confidence:          check.Confidence,
			ConfidenceLevel:     levelName(check.Confidence),
			TemperatureOverride: true,
			Temperature:         check.TemperatureF,
			Reason:              check.Reason,
		}
		d.record(cameraID, result)
		return result
	}

	pct := d.classifier.WhitePixelPercentage(frame) * check.Factor
	level := DetermineLevel(pct)
	conf := d.score(cameraID, pct, level, &check)

	result := models.DetectionResult{
		CameraID:             cameraID,
		Timestamp:            now,
		SnowDetected:         level != models.SnowNone,
		SnowLevel:            level,
		WhitePixelPercentage: pct,
		Confidence:           conf,
		ConfidenceLevel:      levelName(conf),
		Temperature:          check.TemperatureF,
		Reason:               check.Reason,
	}

	d.push(cameraID, result)
	smoothed := d.smooth(cameraID, result)
	d.record(cameraID, smoothed)
	return smoothed
}

// score builds the composite confidence for a detection: the visual signal
// (weight 1.2) plus, when present, the temperature signal (weight 1.5),
// quality-adjusted by temporal consistency with the camera's history.
func (d *Detector) score(cameraID string, pct float64, level models.SnowLevel, check *TemperatureCheck) float64 {
	visual := 0.5
	switch {
	case level == models.SnowNone && pct < 3:
		visual = 0.9
	case level == models.SnowHeavy && pct > 40:
		visual = 0.95
	case level != models.SnowNone:
		visual = 0.7 + pct/100*0.2
	}

	sources := []confidence.Source{
		{Confidence: visual, Weight: 1.2, Label: "Camera visual analysis"},
	}
	if check != nil {
		sources = append(sources, confidence.Source{
			Confidence: check.Confidence,
			Weight:     1.5,
			Label:      "Temperature conditions",
		})
	}
	base := confidence.Composite(sources)

	var quality confidence.Quality
	if d.historyLen(cameraID) > 3 {
		quality.TemporalConsistency = Consistency(d.recent(cameraID, 3))
	}
	final := confidence.AdjustForQuality(base, quality)

	validation := confidence.Validate(final, confidence.Metadata{
		DataSource:  "Camera + Temperature",
		SourceCount: len(sources),
	})
	if !validation.Valid && d.logger != nil {
		d.logger.Warn("confidence validation failed",
			zap.String("camera", cameraID), zap.Strings("errors", validation.Errors))
	}
	return final
}

// Consistency scores agreement across recent results: 1.0 when all levels
// match, 0.3 when they diverge, 0.5 when there is not enough history.
func Consistency(results []models.DetectionResult) float64 {
	if len(results) < 2 {
		return 0.5
	}
	first := results[0].SnowLevel
	for _, r := range results[1:] {
		if r.SnowLevel != first {
			return 0.3
		}
	}
	return 1.0
}

// smooth recomputes the result over the mean white-pixel percentage of the
// last three history entries (the current result included). The temperature
// gate is not re-evaluated on the smoothed percentage; the gate already ran
// on the real reading.
func (d *Detector) smooth(cameraID string, current models.DetectionResult) models.DetectionResult {
	recent := d.recent(cameraID, 3)
	if len(recent) < 2 {
		return current
	}

	pcts := make([]float64, len(recent))
	for i, r := range recent {
		pcts[i] = r.WhitePixelPercentage
	}
	avg := stat.Mean(pcts, nil)

	level := DetermineLevel(avg)
	conf := d.score(cameraID, avg, level, nil)

	smoothed := current
	smoothed.SnowLevel = level
	smoothed.SnowDetected = level != models.SnowNone
	smoothed.WhitePixelPercentage = avg
	smoothed.Confidence = conf
	smoothed.ConfidenceLevel = levelName(conf)
	smoothed.Smoothed = true
	return smoothed
}

func (d *Detector) push(cameraID string, result models.DetectionResult) {
	d.mu.Lock()
	defer d.mu.Unlock()
	h := append(d.history[cameraID], result)
	if len(h) > maxHistory {
		h = h[len(h)-maxHistory:]
	}
	d.history[cameraID] = h
}

// record counts the final result and remembers it as the camera's latest
// reported detection. History is left alone: smoothing windows average raw
// results, not what was reported.
func (d *Detector) record(cameraID string, result models.DetectionResult) {
	observability.SnowDetectionsTotal.WithLabelValues(string(result.SnowLevel)).Inc()

	d.mu.Lock()
	defer d.mu.Unlock()
	d.latest[cameraID] = result
}

func (d *Detector) recent(cameraID string, n int) []models.DetectionResult {
	d.mu.Lock()
	defer d.mu.Unlock()
	h := d.history[cameraID]
	if len(h) > n {
		h = h[len(h)-n:]
	}
	out := make([]models.DetectionResult, len(h))
	copy(out, h)
	return out
}

func (d *Detector) historyLen(cameraID string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.history[cameraID])
}

// History returns a copy of the camera's detection history, oldest first.
func (d *Detector) History(cameraID string) []models.DetectionResult {
	return d.recent(cameraID, maxHistory)
}

// Latest returns the most recent reported detection per camera, smoothing
// and temperature overrides included.
func (d *Detector) Latest() map[string]models.DetectionResult {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make(map[string]models.DetectionResult, len(d.latest))
	for id, det := range d.latest {
		out[id] = det
	}
	return out
}

func levelName(conf float64) string {
	level, err := confidence.Classify(conf)
	if err != nil {
		return ""
	}
	return string(level)
}

// Haversine returns the great-circle distance in miles.
func Haversine(lat1, lng1, lat2, lng2 float64) float64 {
	const earthRadiusMiles = 3959
	dLat := (lat2 - lat1) * math.Pi / 180
	dLng := (lng2 - lng1) * math.Pi / 180
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*math.Pi/180)*math.Cos(lat2*math.Pi/180)*
			math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusMiles * c
}

// NearestStation returns the closest station to the point, or nil when the
// closest one is 50 miles or more away.
func NearestStation(lat, lng float64, stations []models.WeatherStation) (*models.WeatherStation, float64) {
	var nearest *models.WeatherStation
	minDist := math.Inf(1)
	for i := range stations {
		d := Haversine(lat, lng, stations[i].Lat, stations[i].Lng)
		if d < minDist {
			minDist = d
			nearest = &stations[i]
		}
	}
	if nearest == nil || minDist >= maxStationDistanceMiles {
		return nil, 0
	}
	return nearest, minDist
}
