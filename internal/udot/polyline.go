package udot

import "fmt"

// DecodePolyline decodes a Google encoded polyline into [lat, lng] pairs.
// The traffic authority delivers road-condition geometry in this format.
func DecodePolyline(encoded string) ([][2]float64, error) {
	var points [][2]float64
	var lat, lng int64
	index := 0

	readDelta := func() (int64, error) {
		var result int64
		var shift uint
		for {
			if index >= len(encoded) {
				return 0, fmt.Errorf("truncated polyline at byte %d", index)
			}
			b := int64(encoded[index]) - 63
			index++
			if b < 0 {
				return 0, fmt.Errorf("invalid polyline byte at %d", index-1)
			}
			result |= (b & 0x1f) << shift
			shift += 5
			if b < 0x20 {
				break
			}
		}
		if result&1 != 0 {
			return ^(result >> 1), nil
		}
		return result >> 1, nil
	}

	for index < len(encoded) {
		dLat, err := readDelta()
		if err != nil {
			return nil, err
		}
		dLng, err := readDelta()
		if err != nil {
			return nil, err
		}
		lat += dLat
		lng += dLng
		points = append(points, [2]float64{float64(lat) / 1e5, float64(lng) / 1e5})
	}
	return points, nil
}
