package models

import "time"

// CameraView is a single video view of a roadside camera. A camera may expose
// several views pointing in different directions.
type CameraView struct {
	URL         string `json:"url"`
	Status      string `json:"status"`
	Description string `json:"description"`
}

// Camera is a normalized traffic-authority roadside camera.
type Camera struct {
	ID      int          `json:"id"`
	Name    string       `json:"name"`
	Roadway string       `json:"roadway"`
	Lat     float64      `json:"lat"`
	Lng     float64      `json:"lng"`
	Views   []CameraView `json:"views"`
}

// WeatherStation is a normalized roadside weather station reading.
// AirTemperature and RoadSurfaceTemperature are in °F, WindSpeed in mph,
// Visibility in miles.
type WeatherStation struct {
	ID                     int       `json:"id"`
	Name                   string    `json:"name"`
	Roadway                string    `json:"roadway"`
	Lat                    float64   `json:"lat"`
	Lng                    float64   `json:"lng"`
	AirTemperature         float64   `json:"airTemperature"`
	HasAirTemperature      bool      `json:"hasAirTemperature"`
	RoadSurfaceTemperature float64   `json:"roadSurfaceTemperature"`
	WindSpeed              float64   `json:"windSpeed"`
	WindDirection          string    `json:"windDirection"`
	Visibility             float64   `json:"visibility"`
	PrecipitationRate      float64   `json:"precipitationRate"`
	SurfaceStatus          string    `json:"surfaceStatus"`
	LastUpdated            time.Time `json:"lastUpdated"`
}

// ConditionRating is a road condition mapped to a display color and status.
type ConditionRating struct {
	Condition string `json:"condition"` // green, yellow, red, gray
	Status    string `json:"status"`
	Reason    string `json:"reason"`
}

// RoadCondition is a normalized traffic-authority road condition segment.
// Level is a 1-5 scale for data-driven styling: 1 clear/dry, 2 wet/minor,
// 3 snow/ice, 4 hazardous, 5 closed.
type RoadCondition struct {
	ID               int             `json:"id"`
	RoadwayName      string          `json:"roadwayName"`
	RoadCondition    string          `json:"roadCondition"`
	WeatherCondition string          `json:"weatherCondition"`
	Restriction      string          `json:"restriction"`
	Level            int             `json:"level"`
	Rating           ConditionRating `json:"rating"`
	Coordinates      [][2]float64    `json:"coordinates"`
	LastUpdated      time.Time       `json:"lastUpdated"`
}

// TrafficEvent is a normalized construction, incident, or closure event.
type TrafficEvent struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	RoadwayName    string    `json:"roadwayName"`
	Description    string    `json:"description"`
	Location       string    `json:"location"`
	County         string    `json:"county"`
	EventType      string    `json:"eventType"`
	EventCategory  string    `json:"eventCategory"`
	Severity       string    `json:"severity"`
	IsFullClosure  bool      `json:"isFullClosure"`
	Lat            float64   `json:"lat"`
	Lng            float64   `json:"lng"`
	Priority       int       `json:"priority"`
	StartDate      time.Time `json:"startDate"`
	PlannedEndDate time.Time `json:"plannedEndDate"`
	LastUpdated    time.Time `json:"lastUpdated"`
}

// Alert is a normalized traffic-authority alert, filtered to active alerts.
type Alert struct {
	ID             int       `json:"id"`
	Message        string    `json:"message"`
	Notes          string    `json:"notes"`
	Regions        []string  `json:"regions"`
	HighImportance bool      `json:"highImportance"`
	StartTime      time.Time `json:"startTime"`
	EndTime        time.Time `json:"endTime"`
}

// SnowPlow is a normalized service-vehicle position report.
type SnowPlow struct {
	ID          int       `json:"id"`
	Name        string    `json:"name"`
	Lat         float64   `json:"lat"`
	Lng         float64   `json:"lng"`
	Bearing     float64   `json:"bearing"`
	LastUpdated time.Time `json:"lastUpdated"`
}

// RestArea is a normalized rest-area facility.
type RestArea struct {
	ID       int     `json:"id"`
	Name     string  `json:"name"`
	Roadway  string  `json:"roadway"`
	Lat      float64 `json:"lat"`
	Lng      float64 `json:"lng"`
	IsOpen   bool    `json:"isOpen"`
	HasWater bool    `json:"hasWater"`
}

// MountainPass is a normalized mountain-pass status report.
type MountainPass struct {
	ID            int     `json:"id"`
	Name          string  `json:"name"`
	Roadway       string  `json:"roadway"`
	Lat           float64 `json:"lat"`
	Lng           float64 `json:"lng"`
	ElevationFeet int     `json:"elevationFeet"`
	Status        string  `json:"status"`
	Restriction   string  `json:"restriction"`
}

// RoadData aggregates everything the road-weather view needs. Handlers read
// it straight from cache; it is assembled without network access.
type RoadData struct {
	Segments       []RoadCondition  `json:"segments"`
	Cameras        []Camera         `json:"cameras"`
	Stations       []WeatherStation `json:"stations"`
	TotalRoads     int              `json:"totalRoads"`
	MonitoredRoads int              `json:"monitoredRoads"`
	TotalCameras   int              `json:"totalCameras"`
	LastUpdated    time.Time        `json:"lastUpdated"`
}

// SnowLevel is the discrete snow classification for a camera scene.
type SnowLevel string

const (
	SnowNone     SnowLevel = "none"
	SnowLight    SnowLevel = "light"
	SnowModerate SnowLevel = "moderate"
	SnowHeavy    SnowLevel = "heavy"
)

// DetectionResult is one snow-detection outcome for a camera.
type DetectionResult struct {
	CameraID             string    `json:"cameraId"`
	Timestamp            time.Time `json:"timestamp"`
	SnowDetected         bool      `json:"snowDetected"`
	SnowLevel            SnowLevel `json:"snowLevel"`
	WhitePixelPercentage float64   `json:"whitePixelPercentage"`
	Confidence           float64   `json:"confidence"`
	ConfidenceLevel      string    `json:"confidenceLevel"`
	TemperatureOverride  bool      `json:"temperatureOverride"`
	Temperature          float64   `json:"temperature"`
	Reason               string    `json:"reason,omitempty"`
	Smoothed             bool      `json:"smoothed"`
}

// ForecastPeriod is one period of a normalized weather forecast.
type ForecastPeriod struct {
	Name             string    `json:"name"`
	StartTime        time.Time `json:"startTime"`
	Temperature      float64   `json:"temperature"`
	WindSpeed        string    `json:"windSpeed"`
	ShortForecast    string    `json:"shortForecast"`
	DetailedForecast string    `json:"detailedForecast"`
}

// Forecast is a normalized point forecast from the national weather API.
type Forecast struct {
	Current  ForecastPeriod   `json:"current"`
	Upcoming []ForecastPeriod `json:"upcoming"`
}

// CurrentWeather is a normalized current-conditions snapshot from the open
// meteorological forecast API. Temperature is in °C as delivered upstream.
type CurrentWeather struct {
	Temperature   float64 `json:"temperature"`
	Humidity      float64 `json:"humidity"`
	Precipitation float64 `json:"precipitation"`
	Snowfall      float64 `json:"snowfall"`
	Visibility    float64 `json:"visibility"`
	WindSpeed     float64 `json:"windSpeed"`
	WindDirection float64 `json:"windDirection"`
}
