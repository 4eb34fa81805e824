package snow

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/basinwx/road-weather-service/internal/models"
)

// batchConcurrency caps parallel frame fetches per batch run.
const batchConcurrency = 5

// FrameSource retrieves a raw frame for a camera view URL.
type FrameSource interface {
	Frame(ctx context.Context, url string) ([]byte, error)
}

// HTTPFrameSource fetches frames over HTTP. Camera image hosts are not under
// the traffic-authority quota.
type HTTPFrameSource struct {
	Client    *http.Client
	UserAgent string
}

// NewHTTPFrameSource creates a frame source with a 10s timeout.
func NewHTTPFrameSource() *HTTPFrameSource {
	return &HTTPFrameSource{
		Client:    &http.Client{Timeout: 10 * time.Second},
		UserAgent: "BasinWX-SnowDetection/1.0",
	}
}

// Frame implements FrameSource.
func (s *HTTPFrameSource) Frame(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", s.UserAgent)

	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch frame: HTTP %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// AnalyzeBatch runs detection for every camera with a usable view, pairing
// each with its nearest weather station for temperature context. Cameras
// whose frame fetch fails are skipped with a log entry; one bad camera never
// aborts the batch. Results come back ordered by camera ID.
func (d *Detector) AnalyzeBatch(ctx context.Context, frames FrameSource, cameras []models.Camera, stations []models.WeatherStation) []models.DetectionResult {
	results := make([]models.DetectionResult, len(cameras))
	ok := make([]bool, len(cameras))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(batchConcurrency)
	for i, cam := range cameras {
		if len(cam.Views) == 0 || cam.Views[0].URL == "" {
			continue
		}
		g.Go(func() error {
			frame, err := frames.Frame(ctx, cam.Views[0].URL)
			if err != nil {
				if d.logger != nil {
					d.logger.Warn("frame fetch failed",
						zap.Int("camera", cam.ID), zap.Error(err))
				}
				return nil
			}

			var temp *float64
			if station, _ := NearestStation(cam.Lat, cam.Lng, stations); station != nil && station.HasAirTemperature {
				t := station.AirTemperature
				temp = &t
			}

			results[i] = d.Analyze(fmt.Sprintf("%d", cam.ID), frame, temp)
			ok[i] = true
			return nil
		})
	}
	g.Wait()

	out := make([]models.DetectionResult, 0, len(cameras))
	for i := range results {
		if ok[i] {
			out = append(out, results[i])
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CameraID < out[j].CameraID })
	return out
}
