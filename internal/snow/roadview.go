package snow

import (
	"fmt"

	"github.com/basinwx/road-weather-service/internal/models"
)

// CameraCondition is a detection projected into the road-condition view:
// a colored status ring around the camera on the map.
type CameraCondition struct {
	CameraID      string           `json:"cameraId"`
	RoadCondition string           `json:"roadCondition"`
	Color         string           `json:"color"`
	Status        string           `json:"status"`
	SnowLevel     models.SnowLevel `json:"snowLevel"`
	Confidence    float64          `json:"confidence"`
}

// RoadConditionFromDetection maps a detection to its display condition:
// green for clear, yellow/orange/red for increasing snow levels.
func RoadConditionFromDetection(det models.DetectionResult) CameraCondition {
	cc := CameraCondition{
		CameraID:   det.CameraID,
		SnowLevel:  det.SnowLevel,
		Confidence: det.Confidence,
	}

	if det.TemperatureOverride {
		cc.RoadCondition = "clear_temp"
		cc.Color = "green"
		cc.Status = fmt.Sprintf("Clear (%.0f°F)", det.Temperature)
		return cc
	}

	switch det.SnowLevel {
	case models.SnowLight:
		cc.RoadCondition = "snow_light"
		cc.Color = "yellow"
		cc.Status = "Light Snow"
	case models.SnowModerate:
		cc.RoadCondition = "snow_moderate"
		cc.Color = "orange"
		cc.Status = "Moderate Snow"
	case models.SnowHeavy:
		cc.RoadCondition = "snow_heavy"
		cc.Color = "red"
		cc.Status = "Heavy Snow"
	default:
		cc.RoadCondition = "clear"
		cc.Color = "green"
		cc.Status = "Clear"
	}
	return cc
}
