package http

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/basinwx/road-weather-service/internal/forecast"
	"github.com/basinwx/road-weather-service/internal/lifecycle"
	"github.com/basinwx/road-weather-service/internal/models"
	"github.com/basinwx/road-weather-service/internal/scheduler"
	"github.com/basinwx/road-weather-service/internal/snow"
	"github.com/basinwx/road-weather-service/internal/traffic"
	"github.com/basinwx/road-weather-service/internal/udot"
	"github.com/basinwx/road-weather-service/internal/validation"
)

// HealthConfig holds thresholds for the health handler.
type HealthConfig struct {
	DegradedWindow   time.Duration
	DegradedErrorPct int
	StartTime        time.Time
	// CachePing, when set, is called to check cache reachability. Used when backend is memcached.
	CachePing func() error
}

// statsProvider is the slice of the scheduler the handlers need.
type statsProvider interface {
	Stats() map[string]scheduler.Stats
}

// Handler holds dependencies for HTTP handlers. Every data endpoint reads
// from the caches the background scheduler keeps warm; the request path never
// waits on the traffic authority.
type Handler struct {
	roads    *udot.Service
	forecast *forecast.Client
	detector *snow.Detector
	sched    statsProvider

	healthConfig *HealthConfig
	logger       *zap.Logger

	healthStatusMu   sync.Mutex
	healthStatusPrev string
}

// NewHandler returns a new Handler.
func NewHandler(
	roads *udot.Service,
	fc *forecast.Client,
	detector *snow.Detector,
	sched statsProvider,
	healthConfig *HealthConfig,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		roads:        roads,
		forecast:     fc,
		detector:     detector,
		sched:        sched,
		healthConfig: healthConfig,
		logger:       logger,
	}
}

// GetRoadWeather handles GET /api/road-weather: the aggregate view of road
// segments, cameras, and weather stations.
func (h *Handler) GetRoadWeather(w http.ResponseWriter, r *http.Request) {
	data, err := h.roads.CompleteRoadData(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	data.Segments = emptyIfNil(data.Segments)
	data.Cameras = emptyIfNil(data.Cameras)
	data.Stations = emptyIfNil(data.Stations)
	writeJSON(w, http.StatusOK, data)
}

// GetCameras handles GET /api/cameras.
func (h *Handler) GetCameras(w http.ResponseWriter, r *http.Request) {
	cameras, err := h.roads.Cameras(r.Context())
	writeList(w, r, cameras, err)
}

// GetWeatherStations handles GET /api/weather-stations.
func (h *Handler) GetWeatherStations(w http.ResponseWriter, r *http.Request) {
	stations, err := h.roads.WeatherStations(r.Context())
	writeList(w, r, stations, err)
}

// GetTrafficEvents handles GET /api/traffic-events.
func (h *Handler) GetTrafficEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.roads.TrafficEvents(r.Context())
	writeList(w, r, events, err)
}

// GetAlerts handles GET /api/alerts.
func (h *Handler) GetAlerts(w http.ResponseWriter, r *http.Request) {
	alerts, err := h.roads.Alerts(r.Context())
	writeList(w, r, alerts, err)
}

// GetSnowPlows handles GET /api/snow-plows.
func (h *Handler) GetSnowPlows(w http.ResponseWriter, r *http.Request) {
	plows, err := h.roads.SnowPlows(r.Context())
	writeList(w, r, plows, err)
}

// GetRestAreas handles GET /api/rest-areas.
func (h *Handler) GetRestAreas(w http.ResponseWriter, r *http.Request) {
	areas, err := h.roads.RestAreas(r.Context())
	writeList(w, r, areas, err)
}

// GetMountainPasses handles GET /api/mountain-passes.
func (h *Handler) GetMountainPasses(w http.ResponseWriter, r *http.Request) {
	passes, err := h.roads.MountainPasses(r.Context())
	writeList(w, r, passes, err)
}

// GetSnowDetection handles GET /api/snow-detection: the latest detection per
// camera plus the road-condition projection for map display.
func (h *Handler) GetSnowDetection(w http.ResponseWriter, r *http.Request) {
	latest := h.detector.Latest()
	conditions := make([]snow.CameraCondition, 0, len(latest))
	for _, det := range latest {
		conditions = append(conditions, snow.RoadConditionFromDetection(det))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"detections": latest,
		"conditions": conditions,
		"cameras":    len(latest),
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
	})
}

// GetForecast handles GET /api/forecast?lat=&lng=: the point forecast plus
// current conditions for the given coordinates.
func (h *Handler) GetForecast(w http.ResponseWriter, r *http.Request) {
	lat, lng, err := validation.ParseCoordinates(r.URL.Query().Get("lat"), r.URL.Query().Get("lng"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_COORDINATES", err.Error())
		return
	}

	fc, err := h.forecast.NWSForecast(r.Context(), lat, lng)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	// Current conditions are a nice-to-have on this endpoint; the forecast
	// still renders without them.
	var current *models.CurrentWeather
	if cw, err := h.forecast.CurrentWeather(r.Context(), lat, lng); err == nil {
		current = cw
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"forecast": fc,
		"current":  current,
	})
}

// GetRefreshStats handles GET /api/refresh-stats: per-tier background refresh
// statistics.
func (h *Handler) GetRefreshStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"tiers":     h.sched.Stats(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// healthResult holds the computed health status and metadata for logging.
type healthResult struct {
	status     string
	statusCode int
	reason     string
}

// GetHealth handles GET /health.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	result := h.computeHealthStatus(r.Context())

	h.healthStatusMu.Lock()
	prev := h.healthStatusPrev
	if prev != "" && prev != result.status {
		h.logger.Info("health status transition",
			zap.String("previous_status", prev),
			zap.String("current_status", result.status),
			zap.String("reason", result.reason))
	}
	h.healthStatusPrev = result.status
	h.healthStatusMu.Unlock()

	checks := make(map[string]string)
	if result.status == "degraded" {
		checks["upstream"] = "unhealthy"
	} else {
		checks["upstream"] = "healthy"
	}
	if h.healthConfig != nil && h.healthConfig.CachePing != nil {
		if h.healthConfig.CachePing() == nil {
			checks["cache"] = "healthy"
		} else {
			checks["cache"] = "unhealthy"
		}
	}
	resp := map[string]interface{}{
		"status":    result.status,
		"service":   "road-weather-service",
		"version":   "dev",
		"checks":    checks,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(result.statusCode)
	_ = json.NewEncoder(w).Encode(resp)
}

// computeHealthStatus evaluates health conditions in priority order:
// shutting-down > degraded (upstream error rate breach) > healthy. The
// service keeps serving cached data while degraded, so degraded is a warning
// to operators rather than an outage.
func (h *Handler) computeHealthStatus(_ context.Context) healthResult {
	if lifecycle.IsShuttingDown() {
		return healthResult{"shutting-down", http.StatusServiceUnavailable, "signal"}
	}
	if h.healthConfig != nil && h.healthConfig.DegradedWindow > 0 && h.healthConfig.DegradedErrorPct > 0 {
		errors, total := traffic.ErrorRate(h.healthConfig.DegradedWindow)
		if total > 0 {
			pct := float64(errors) * 100 / float64(total)
			if pct >= float64(h.healthConfig.DegradedErrorPct) {
				return healthResult{"degraded", http.StatusServiceUnavailable, "upstream_error_rate"}
			}
		}
	}
	return healthResult{"healthy", http.StatusOK, ""}
}

// emptyIfNil keeps "no data" responses as [] rather than null.
func emptyIfNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// writeList adapts a (slice, error) adapter result into a JSON response:
// 503 on error, empty array for no data.
func writeList[T any](w http.ResponseWriter, r *http.Request, items []T, err error) {
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, emptyIfNil(items))
}

// writeJSON writes a JSON response with the specified HTTP status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes an error response in the standard error format with code,
// message, and requestId (correlation ID) if available in request context.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	corrID := ""
	if v := r.Context().Value("correlation_id"); v != nil {
		corrID = v.(string)
	}
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]string{
			"code":      code,
			"message":   message,
			"requestId": corrID,
		},
	})
}

// writeServiceError writes a 503 Service Unavailable response for upstream failures.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	writeError(w, r, http.StatusServiceUnavailable, "UPSTREAM_UNAVAILABLE", "Unable to fetch road weather data")
	if logger, ok := r.Context().Value("logger").(*zap.Logger); ok && logger != nil {
		logger.Debug("upstream error", zap.Error(err))
	}
}
