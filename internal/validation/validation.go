// Package validation checks query parameters on the read API.
package validation

import (
	"errors"
	"strconv"
	"strings"
)

// ErrCoordinateMissing is returned when a required lat/lng parameter is absent.
var ErrCoordinateMissing = errors.New("lat and lng are required")

// ErrCoordinateInvalid is returned when a coordinate does not parse as a number.
var ErrCoordinateInvalid = errors.New("coordinate is not a number")

// ErrCoordinateOutOfRange is returned when a coordinate is outside valid bounds.
var ErrCoordinateOutOfRange = errors.New("coordinate out of range")

// ParseCoordinates parses lat/lng query strings and enforces valid ranges:
// latitude in [-90, 90], longitude in [-180, 180]. Returns errors suitable
// for 400 INVALID_COORDINATES responses.
func ParseCoordinates(latStr, lngStr string) (lat, lng float64, err error) {
	latStr = strings.TrimSpace(latStr)
	lngStr = strings.TrimSpace(lngStr)
	if latStr == "" || lngStr == "" {
		return 0, 0, ErrCoordinateMissing
	}
	lat, err = strconv.ParseFloat(latStr, 64)
	if err != nil {
		return 0, 0, ErrCoordinateInvalid
	}
	lng, err = strconv.ParseFloat(lngStr, 64)
	if err != nil {
		return 0, 0, ErrCoordinateInvalid
	}
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return 0, 0, ErrCoordinateOutOfRange
	}
	return lat, lng, nil
}
