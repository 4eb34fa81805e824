package udot

import (
	"strings"
	"time"

	"github.com/basinwx/road-weather-service/internal/models"
)

// Bounds is a lat/lng bounding box used to filter statewide feeds down to the
// service area.
type Bounds struct {
	North float64 `yaml:"north"`
	South float64 `yaml:"south"`
	East  float64 `yaml:"east"`
	West  float64 `yaml:"west"`
}

// UintahBasinBounds is the default service area.
var UintahBasinBounds = Bounds{North: 40.8, South: 39.7, East: -108.8, West: -110.7}

// Contains reports whether the point lies inside the box.
func (b Bounds) Contains(lat, lng float64) bool {
	return lat >= b.South && lat <= b.North && lng >= b.West && lng <= b.East
}

// ContainsAny reports whether any point of the path lies inside the box.
func (b Bounds) ContainsAny(path [][2]float64) bool {
	for _, p := range path {
		if b.Contains(p[0], p[1]) {
			return true
		}
	}
	return false
}

// Upstream record shapes, PascalCase as delivered by the traffic-authority
// API. Defined explicitly so a shape change fails at decode time instead of
// propagating zero values downstream.
type cameraRecord struct {
	Id        int     `json:"Id"`
	Location  string  `json:"Location"`
	Roadway   string  `json:"Roadway"`
	Latitude  float64 `json:"Latitude"`
	Longitude float64 `json:"Longitude"`
	Views     []struct {
		Url         string `json:"Url"`
		Status      string `json:"Status"`
		Description string `json:"Description"`
	} `json:"Views"`
}

type stationRecord struct {
	Id                     int      `json:"Id"`
	Name                   string   `json:"Name"`
	RoadwayName            string   `json:"RoadwayName"`
	Latitude               float64  `json:"Latitude"`
	Longitude              float64  `json:"Longitude"`
	AirTemperature         *float64 `json:"AirTemperature"`
	RoadSurfaceTemperature *float64 `json:"RoadSurfaceTemperature"`
	WindSpeed              float64  `json:"WindSpeed"`
	WindDirection          string   `json:"WindDirection"`
	Visibility             float64  `json:"Visibility"`
	PrecipitationRate      float64  `json:"PrecipitationRate"`
	RoadCondition          string   `json:"RoadCondition"`
	LastUpdated            int64    `json:"LastUpdated"`
}

type roadRecord struct {
	Id               int    `json:"Id"`
	RoadwayName      string `json:"RoadwayName"`
	RoadCondition    string `json:"RoadCondition"`
	WeatherCondition string `json:"WeatherCondition"`
	Restriction      string `json:"Restriction"`
	EncodedPolyline  string `json:"EncodedPolyline"`
	LastUpdated      int64  `json:"LastUpdated"`
}

type eventRecord struct {
	ID             string  `json:"ID"`
	Name           string  `json:"Name"`
	RoadwayName    string  `json:"RoadwayName"`
	Description    string  `json:"Description"`
	Location       string  `json:"Location"`
	County         string  `json:"County"`
	EventType      string  `json:"EventType"`
	EventCategory  string  `json:"EventCategory"`
	Severity       string  `json:"Severity"`
	IsFullClosure  bool    `json:"IsFullClosure"`
	Latitude       float64 `json:"Latitude"`
	Longitude      float64 `json:"Longitude"`
	StartDate      int64   `json:"StartDate"`
	PlannedEndDate int64   `json:"PlannedEndDate"`
	LastUpdated    int64   `json:"LastUpdated"`
}

type alertRecord struct {
	Id             int      `json:"Id"`
	Message        string   `json:"Message"`
	Notes          string   `json:"Notes"`
	Regions        []string `json:"Regions"`
	HighImportance bool     `json:"HighImportance"`
	StartTime      int64    `json:"StartTime"`
	EndTime        int64    `json:"EndTime"`
}

type plowRecord struct {
	Id          int     `json:"Id"`
	Name        string  `json:"Name"`
	Latitude    float64 `json:"Latitude"`
	Longitude   float64 `json:"Longitude"`
	Bearing     float64 `json:"Bearing"`
	LastUpdated int64   `json:"LastUpdated"`
}

type restAreaRecord struct {
	Id        int     `json:"Id"`
	Name      string  `json:"Name"`
	Roadway   string  `json:"Roadway"`
	Latitude  float64 `json:"Latitude"`
	Longitude float64 `json:"Longitude"`
	IsOpen    bool    `json:"IsOpen"`
	HasWater  bool    `json:"HasWater"`
}

type passRecord struct {
	Id          int     `json:"Id"`
	Name        string  `json:"Name"`
	Roadway     string  `json:"Roadway"`
	Latitude    float64 `json:"Latitude"`
	Longitude   float64 `json:"Longitude"`
	Elevation   int     `json:"Elevation"`
	Status      string  `json:"Status"`
	Restriction string  `json:"Restriction"`
}

func epochTime(sec int64) time.Time {
	if sec == 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}

// MapConditionToLevel maps a free-text condition description to the 1-5
// styling scale: 1 clear/dry, 2 wet/minor, 3 snow/ice, 4 hazardous, 5 closed.
func MapConditionToLevel(condition string) int {
	c := strings.ToLower(condition)
	switch {
	case c == "":
		return 1
	case strings.Contains(c, "closed") || strings.Contains(c, "impassable"):
		return 5
	case strings.Contains(c, "very poor") ||
		strings.Contains(c, "extremely hazardous") ||
		strings.Contains(c, "severe"):
		return 4
	case strings.Contains(c, "snow") ||
		strings.Contains(c, "ice") ||
		strings.Contains(c, "icy") ||
		strings.Contains(c, "packed") ||
		strings.Contains(c, "slush") ||
		strings.Contains(c, "poor"):
		return 3
	case strings.Contains(c, "wet") ||
		strings.Contains(c, "damp") ||
		strings.Contains(c, "rain") ||
		strings.Contains(c, "fair"):
		return 2
	default:
		return 1
	}
}

// RateCondition maps road/weather/restriction descriptions to a display
// rating: red for dangerous, yellow for caution, green for clear.
func RateCondition(roadCondition, weatherCondition, restriction string) models.ConditionRating {
	road := strings.ToLower(roadCondition)
	weather := strings.ToLower(weatherCondition)
	restrict := strings.ToLower(restriction)

	switch {
	case strings.Contains(restrict, "closed") || strings.Contains(restrict, "no travel") ||
		strings.Contains(road, "icy") || strings.Contains(road, "ice"):
		return models.ConditionRating{Condition: "red", Status: "Dangerous", Reason: roadCondition + " - " + restriction}
	case (strings.Contains(road, "wet") && strings.Contains(weather, "snow")) ||
		strings.Contains(road, "slush") || strings.Contains(road, "packed snow") ||
		strings.Contains(weather, "snow") || strings.Contains(weather, "storm") ||
		strings.Contains(restrict, "chain") || strings.Contains(restrict, "traction"):
		return models.ConditionRating{Condition: "yellow", Status: "Use Caution", Reason: roadCondition + " - " + weatherCondition}
	case strings.Contains(road, "dry") && strings.Contains(weather, "fair"):
		return models.ConditionRating{Condition: "green", Status: "Clear", Reason: "Normal conditions"}
	case strings.Contains(road, "wet"):
		return models.ConditionRating{Condition: "yellow", Status: "Wet Roads", Reason: "Use caution on wet pavement"}
	default:
		return models.ConditionRating{Condition: "green", Status: "Normal", Reason: roadCondition}
	}
}

// EventPriority scores an event for display ordering: full closures and
// active incidents first.
func EventPriority(rec eventRecord, now time.Time) int {
	priority := 0
	if rec.IsFullClosure {
		priority += 10
	}

	start := epochTime(rec.StartDate)
	end := epochTime(rec.PlannedEndDate)
	switch {
	case !start.IsZero() && !start.After(now) && (end.IsZero() || !end.Before(now)):
		priority += 8 // currently active
	case start.After(now):
		days := start.Sub(now).Hours() / 24
		if days <= 7 {
			priority += 6
		} else if days <= 30 {
			priority += 3
		}
	}

	switch strings.ToLower(rec.EventType) {
	case "accidentsandincidents":
		priority += 9
	case "closures":
		priority += 8
	case "roadwork":
		priority += 5
	}

	severity := strings.ToLower(rec.Severity)
	switch {
	case strings.Contains(severity, "major") || strings.Contains(severity, "high"):
		priority += 5
	case strings.Contains(severity, "moderate") || strings.Contains(severity, "medium"):
		priority += 3
	case strings.Contains(severity, "minor") || strings.Contains(severity, "low"):
		priority += 1
	}
	return priority
}

// alertActive reports whether the alert's time window covers now.
func alertActive(rec alertRecord, now time.Time) bool {
	nowSec := now.Unix()
	if rec.StartTime != 0 && rec.StartTime > nowSec {
		return false
	}
	if rec.EndTime != 0 && rec.EndTime < nowSec {
		return false
	}
	return true
}

func normalizeCameras(recs []cameraRecord, bounds Bounds) []models.Camera {
	out := make([]models.Camera, 0, len(recs))
	for _, rec := range recs {
		if rec.Latitude == 0 || rec.Longitude == 0 {
			continue
		}
		if !bounds.Contains(rec.Latitude, rec.Longitude) {
			continue
		}
		cam := models.Camera{
			ID:      rec.Id,
			Name:    rec.Location,
			Roadway: rec.Roadway,
			Lat:     rec.Latitude,
			Lng:     rec.Longitude,
			Views:   make([]models.CameraView, 0, len(rec.Views)),
		}
		for _, v := range rec.Views {
			desc := v.Description
			if desc == "" {
				desc = "Live Camera Feed"
			}
			cam.Views = append(cam.Views, models.CameraView{URL: v.Url, Status: v.Status, Description: desc})
		}
		out = append(out, cam)
	}
	return out
}

func normalizeStations(recs []stationRecord, bounds Bounds) []models.WeatherStation {
	out := make([]models.WeatherStation, 0, len(recs))
	for _, rec := range recs {
		if rec.Latitude == 0 || rec.Longitude == 0 {
			continue
		}
		if !bounds.Contains(rec.Latitude, rec.Longitude) {
			continue
		}
		st := models.WeatherStation{
			ID:                rec.Id,
			Name:              rec.Name,
			Roadway:           rec.RoadwayName,
			Lat:               rec.Latitude,
			Lng:               rec.Longitude,
			WindSpeed:         rec.WindSpeed,
			WindDirection:     rec.WindDirection,
			Visibility:        rec.Visibility,
			PrecipitationRate: rec.PrecipitationRate,
			SurfaceStatus:     rec.RoadCondition,
			LastUpdated:       epochTime(rec.LastUpdated),
		}
		if rec.AirTemperature != nil {
			st.AirTemperature = *rec.AirTemperature
			st.HasAirTemperature = true
		}
		if rec.RoadSurfaceTemperature != nil {
			st.RoadSurfaceTemperature = *rec.RoadSurfaceTemperature
		}
		out = append(out, st)
	}
	return out
}

// normalizeRoads keeps segments whose decoded geometry touches the service
// area. Undecodable polylines fall back to a roadway-name match so a bad
// geometry string does not hide a known basin road.
func normalizeRoads(recs []roadRecord, bounds Bounds, nameFallbacks []string) []models.RoadCondition {
	out := make([]models.RoadCondition, 0, len(recs))
	for _, rec := range recs {
		if rec.EncodedPolyline == "" {
			continue
		}
		coords, err := DecodePolyline(rec.EncodedPolyline)
		if err != nil {
			if !nameMatchesAny(rec.RoadwayName, nameFallbacks) {
				continue
			}
			coords = nil
		} else if !bounds.ContainsAny(coords) {
			continue
		}
		out = append(out, models.RoadCondition{
			ID:               rec.Id,
			RoadwayName:      rec.RoadwayName,
			RoadCondition:    rec.RoadCondition,
			WeatherCondition: rec.WeatherCondition,
			Restriction:      rec.Restriction,
			Level:            MapConditionToLevel(rec.RoadCondition),
			Rating:           RateCondition(rec.RoadCondition, rec.WeatherCondition, rec.Restriction),
			Coordinates:      coords,
			LastUpdated:      epochTime(rec.LastUpdated),
		})
	}
	return out
}

func nameMatchesAny(name string, fallbacks []string) bool {
	n := strings.ToLower(name)
	for _, f := range fallbacks {
		if strings.Contains(n, f) {
			return true
		}
	}
	return false
}

func normalizeEvents(recs []eventRecord, bounds Bounds, now time.Time) []models.TrafficEvent {
	out := make([]models.TrafficEvent, 0, len(recs))
	for _, rec := range recs {
		if rec.Latitude == 0 || rec.Longitude == 0 {
			continue
		}
		if !bounds.Contains(rec.Latitude, rec.Longitude) {
			continue
		}
		name := rec.Name
		if name == "" {
			name = rec.Location
		}
		out = append(out, models.TrafficEvent{
			ID:             rec.ID,
			Name:           name,
			RoadwayName:    rec.RoadwayName,
			Description:    rec.Description,
			Location:       rec.Location,
			County:         rec.County,
			EventType:      rec.EventType,
			EventCategory:  rec.EventCategory,
			Severity:       rec.Severity,
			IsFullClosure:  rec.IsFullClosure,
			Lat:            rec.Latitude,
			Lng:            rec.Longitude,
			Priority:       EventPriority(rec, now),
			StartDate:      epochTime(rec.StartDate),
			PlannedEndDate: epochTime(rec.PlannedEndDate),
			LastUpdated:    epochTime(rec.LastUpdated),
		})
	}
	return out
}

func normalizeAlerts(recs []alertRecord, now time.Time) []models.Alert {
	out := make([]models.Alert, 0, len(recs))
	for _, rec := range recs {
		if !alertActive(rec, now) {
			continue
		}
		out = append(out, models.Alert{
			ID:             rec.Id,
			Message:        rec.Message,
			Notes:          rec.Notes,
			Regions:        rec.Regions,
			HighImportance: rec.HighImportance,
			StartTime:      epochTime(rec.StartTime),
			EndTime:        epochTime(rec.EndTime),
		})
	}
	return out
}

func normalizePlows(recs []plowRecord, bounds Bounds) []models.SnowPlow {
	out := make([]models.SnowPlow, 0, len(recs))
	for _, rec := range recs {
		if !bounds.Contains(rec.Latitude, rec.Longitude) {
			continue
		}
		out = append(out, models.SnowPlow{
			ID:          rec.Id,
			Name:        rec.Name,
			Lat:         rec.Latitude,
			Lng:         rec.Longitude,
			Bearing:     rec.Bearing,
			LastUpdated: epochTime(rec.LastUpdated),
		})
	}
	return out
}

func normalizeRestAreas(recs []restAreaRecord, bounds Bounds) []models.RestArea {
	out := make([]models.RestArea, 0, len(recs))
	for _, rec := range recs {
		if !bounds.Contains(rec.Latitude, rec.Longitude) {
			continue
		}
		out = append(out, models.RestArea{
			ID:       rec.Id,
			Name:     rec.Name,
			Roadway:  rec.Roadway,
			Lat:      rec.Latitude,
			Lng:      rec.Longitude,
			IsOpen:   rec.IsOpen,
			HasWater: rec.HasWater,
		})
	}
	return out
}

func normalizePasses(recs []passRecord, bounds Bounds) []models.MountainPass {
	out := make([]models.MountainPass, 0, len(recs))
	for _, rec := range recs {
		if !bounds.Contains(rec.Latitude, rec.Longitude) {
			continue
		}
		out = append(out, models.MountainPass{
			ID:            rec.Id,
			Name:          rec.Name,
			Roadway:       rec.Roadway,
			Lat:           rec.Latitude,
			Lng:           rec.Longitude,
			ElevationFeet: rec.Elevation,
			Status:        rec.Status,
			Restriction:   rec.Restriction,
		})
	}
	return out
}
