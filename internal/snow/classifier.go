package snow

// PixelClassifier scores a raw frame for snow coverage. The production
// implementation is a byte-triplet heuristic; a real decode/CV backend can
// replace it without touching the detector's state machine.
type PixelClassifier interface {
	WhitePixelPercentage(frame []byte) float64
}

// White-pixel thresholds: bright, nearly colorless, channel-balanced.
const (
	brightnessThreshold = 200
	saturationThreshold = 30
	rgbBalanceThreshold = 0.8
)

// RGBClassifier treats the frame as packed RGB triplets and counts pixels
// that look like snow: brightness at least 200, saturation at most 30, and
// the channels within 20% of their mean.
type RGBClassifier struct{}

// WhitePixelPercentage returns the share of white pixels in [0, 100].
// Trailing bytes that do not fill a full triplet are ignored.
func (RGBClassifier) WhitePixelPercentage(frame []byte) float64 {
	pixelCount := len(frame) / 3
	if pixelCount == 0 {
		return 0
	}

	whiteCount := 0
	for i := 0; i+2 < len(frame); i += 3 {
		r := float64(frame[i])
		g := float64(frame[i+1])
		b := float64(frame[i+2])

		brightness := (r + g + b) / 3

		max := r
		if g > max {
			max = g
		}
		if b > max {
			max = b
		}
		min := r
		if g < min {
			min = g
		}
		if b < min {
			min = b
		}
		saturation := 0.0
		if max > 0 {
			saturation = (max - min) / max * 100
		}

		avg := brightness
		maxDev := 0.0
		for _, ch := range [3]float64{r, g, b} {
			dev := ch - avg
			if dev < 0 {
				dev = -dev
			}
			if dev > maxDev {
				maxDev = dev
			}
		}
		balance := 0.0
		if avg > 0 {
			balance = 1 - maxDev/avg
		}

		if brightness >= brightnessThreshold &&
			saturation <= saturationThreshold &&
			balance >= rgbBalanceThreshold {
			whiteCount++
		}
	}

	return float64(whiteCount) / float64(pixelCount) * 100
}
