package udot

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/basinwx/road-weather-service/internal/cache"
	"github.com/basinwx/road-weather-service/internal/models"
	"github.com/basinwx/road-weather-service/internal/traffic"
)

// DefaultBaseURL is the traffic-authority API root.
const DefaultBaseURL = "https://www.udottraffic.utah.gov"

// Freshness per dataset: how long a cached copy satisfies reads. Matches the
// refresh cadence each dataset is scheduled on, with slack so a slow refresh
// does not flap the cache.
const (
	essentialFreshFor  = 5 * time.Minute
	frequentFreshFor   = 20 * time.Minute
	infrequentFreshFor = 45 * time.Minute
)

// caller is the slice of the rate-limited fetcher the adapters use.
type caller interface {
	Call(ctx context.Context, name, endpoint string, params url.Values) ([]byte, error)
}

// Service adapts the traffic-authority API: each getter reads through the
// tiered cache and only reaches the network on a miss, normalizing upstream
// records into the service's own types. All getters share one rate-limited
// fetcher so the upstream quota holds across datasets.
type Service struct {
	fetcher   caller
	cache     *cache.TieredCache
	coalescer *fetchCoalescer
	logger    *zap.Logger
	baseURL   string
	bounds    Bounds

	// Roadway-name fallbacks for road segments whose polyline fails to decode.
	roadNameFallbacks []string

	now func() time.Time
}

// Options configure a Service.
type Options struct {
	BaseURL string
	Bounds  Bounds
}

// NewService creates the adapter service.
func NewService(f caller, c *cache.TieredCache, opts Options, logger *zap.Logger) *Service {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Bounds == (Bounds{}) {
		opts.Bounds = UintahBasinBounds
	}
	return &Service{
		fetcher: f,
		cache:   c,
		// The coalescer timeout covers a full quota-window wait plus the
		// HTTP timeout, so waiters outlast the slowest legitimate fetch.
		coalescer:         newFetchCoalescer(90 * time.Second),
		logger:            logger,
		baseURL:           opts.BaseURL,
		bounds:            opts.Bounds,
		roadNameFallbacks: []string{"vernal", "roosevelt", "duchesne", "uintah"},
		now:               time.Now,
	}
}

func (s *Service) endpoint(name string) string {
	return s.baseURL + "/api/v2/get/" + name
}

type dataset struct {
	key      string // cache key and metrics label
	endpoint string // path segment under /api/v2/get/
	freshFor time.Duration
}

// fetchDataset is the shared adapter path: fresh cache → fetch → normalize →
// write both tiers; on fetch failure, a stale disk copy within the fallback
// window; otherwise the error surfaces to the caller.
func fetchDataset[R, M any](ctx context.Context, s *Service, ds dataset, normalize func([]R) []M) ([]M, error) {
	var out []M
	if s.cache.Lookup(ctx, ds.key, ds.freshFor, ds.freshFor, &out) {
		return out, nil
	}

	body, err := s.coalescer.getOrDo(ctx, ds.key, func(fetchCtx context.Context) ([]byte, error) {
		return s.fetcher.Call(fetchCtx, ds.key, s.endpoint(ds.endpoint), nil)
	})
	if err != nil {
		traffic.RecordError()
		var stale []M
		if s.cache.GetStale(ds.key, &stale) {
			if s.logger != nil {
				s.logger.Warn("upstream unavailable, serving stale data",
					zap.String("dataset", ds.key), zap.Error(err))
			}
			return stale, nil
		}
		return nil, fmt.Errorf("fetch %s: %w", ds.key, err)
	}

	var recs []R
	if err := json.Unmarshal(body, &recs); err != nil {
		traffic.RecordError()
		return nil, fmt.Errorf("decode %s response: %w", ds.key, err)
	}
	traffic.RecordSuccess()
	out = normalize(recs)
	s.cache.Put(ctx, ds.key, out, ds.freshFor)
	return out, nil
}

// Cameras returns roadside cameras in the service area.
func (s *Service) Cameras(ctx context.Context) ([]models.Camera, error) {
	ds := dataset{key: "udot_cameras", endpoint: "cameras", freshFor: essentialFreshFor}
	return fetchDataset(ctx, s, ds, func(recs []cameraRecord) []models.Camera {
		return normalizeCameras(recs, s.bounds)
	})
}

// WeatherStations returns roadside weather stations in the service area.
func (s *Service) WeatherStations(ctx context.Context) ([]models.WeatherStation, error) {
	ds := dataset{key: "udot_weather_stations", endpoint: "travelweatherstations", freshFor: essentialFreshFor}
	return fetchDataset(ctx, s, ds, func(recs []stationRecord) []models.WeatherStation {
		return normalizeStations(recs, s.bounds)
	})
}

// RoadConditions returns road-condition segments whose geometry touches the
// service area.
func (s *Service) RoadConditions(ctx context.Context) ([]models.RoadCondition, error) {
	ds := dataset{key: "udot_road_conditions", endpoint: "roadconditions", freshFor: essentialFreshFor}
	return fetchDataset(ctx, s, ds, func(recs []roadRecord) []models.RoadCondition {
		return normalizeRoads(recs, s.bounds, s.roadNameFallbacks)
	})
}

// TrafficEvents returns construction, incident, and closure events in the
// service area, priority-scored for display ordering.
func (s *Service) TrafficEvents(ctx context.Context) ([]models.TrafficEvent, error) {
	ds := dataset{key: "udot_events", endpoint: "event", freshFor: frequentFreshFor}
	return fetchDataset(ctx, s, ds, func(recs []eventRecord) []models.TrafficEvent {
		return normalizeEvents(recs, s.bounds, s.now())
	})
}

// Alerts returns currently active alerts.
func (s *Service) Alerts(ctx context.Context) ([]models.Alert, error) {
	ds := dataset{key: "udot_alerts", endpoint: "alerts", freshFor: frequentFreshFor}
	return fetchDataset(ctx, s, ds, func(recs []alertRecord) []models.Alert {
		return normalizeAlerts(recs, s.now())
	})
}

// SnowPlows returns service-vehicle positions in the service area.
func (s *Service) SnowPlows(ctx context.Context) ([]models.SnowPlow, error) {
	ds := dataset{key: "udot_snow_plows", endpoint: "servicevehicles", freshFor: frequentFreshFor}
	return fetchDataset(ctx, s, ds, func(recs []plowRecord) []models.SnowPlow {
		return normalizePlows(recs, s.bounds)
	})
}

// RestAreas returns rest-area facilities in the service area.
func (s *Service) RestAreas(ctx context.Context) ([]models.RestArea, error) {
	ds := dataset{key: "udot_rest_areas", endpoint: "restareas", freshFor: infrequentFreshFor}
	return fetchDataset(ctx, s, ds, func(recs []restAreaRecord) []models.RestArea {
		return normalizeRestAreas(recs, s.bounds)
	})
}

// MountainPasses returns mountain-pass status reports in the service area.
func (s *Service) MountainPasses(ctx context.Context) ([]models.MountainPass, error) {
	ds := dataset{key: "udot_mountain_passes", endpoint: "mountainpasses", freshFor: infrequentFreshFor}
	return fetchDataset(ctx, s, ds, func(recs []passRecord) []models.MountainPass {
		return normalizePasses(recs, s.bounds)
	})
}

// CompleteRoadData assembles the road-weather view from the individual
// datasets. Outside the scheduled refresh window these reads are cache hits,
// so the aggregate stays network-free on the request path.
func (s *Service) CompleteRoadData(ctx context.Context) (*models.RoadData, error) {
	roads, err := s.RoadConditions(ctx)
	if err != nil {
		return nil, err
	}
	cameras, err := s.Cameras(ctx)
	if err != nil {
		return nil, err
	}
	stations, err := s.WeatherStations(ctx)
	if err != nil {
		return nil, err
	}
	return &models.RoadData{
		Segments:       roads,
		Cameras:        cameras,
		Stations:       stations,
		TotalRoads:     len(roads),
		MonitoredRoads: len(roads),
		TotalCameras:   len(cameras),
		LastUpdated:    s.now().UTC(),
	}, nil
}
