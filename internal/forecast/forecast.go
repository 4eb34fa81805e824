// Package forecast fetches point forecasts from the national weather API and
// the open meteorological forecast API. Neither upstream shares the
// traffic-authority quota, so these clients carry their own HTTP client with
// the same 15s timeout, and cache results through the tiered cache.
package forecast

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/basinwx/road-weather-service/internal/cache"
	"github.com/basinwx/road-weather-service/internal/models"
)

const (
	defaultNWSBaseURL       = "https://api.weather.gov"
	defaultOpenMeteoBaseURL = "https://api.open-meteo.com"
	defaultUserAgent        = "BasinWX/1.0 (basinwx.com)"

	requestTimeout = 15 * time.Second
	freshFor       = 5 * time.Minute
)

// Client fetches and caches weather forecasts.
type Client struct {
	httpClient       *http.Client
	cache            *cache.TieredCache
	logger           *zap.Logger
	nwsBaseURL       string
	openMeteoBaseURL string
	userAgent        string
}

// Options configure a Client. Empty fields use production defaults.
type Options struct {
	NWSBaseURL       string
	OpenMeteoBaseURL string
	UserAgent        string
}

// NewClient creates a forecast client.
func NewClient(c *cache.TieredCache, opts Options, logger *zap.Logger) *Client {
	if opts.NWSBaseURL == "" {
		opts.NWSBaseURL = defaultNWSBaseURL
	}
	if opts.OpenMeteoBaseURL == "" {
		opts.OpenMeteoBaseURL = defaultOpenMeteoBaseURL
	}
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}
	return &Client{
		httpClient:       &http.Client{Timeout: requestTimeout},
		cache:            c,
		logger:           logger,
		nwsBaseURL:       opts.NWSBaseURL,
		openMeteoBaseURL: opts.OpenMeteoBaseURL,
		userAgent:        opts.UserAgent,
	}
}

func (c *Client) getJSON(ctx context.Context, url string, dest any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("forecast upstream: HTTP %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	return json.Unmarshal(body, dest)
}

// nwsPoints is the first step of the national API: a point lookup returning
// the forecast URL for that grid cell.
type nwsPoints struct {
	Properties struct {
		Forecast string `json:"forecast"`
	} `json:"properties"`
}

type nwsForecast struct {
	Properties struct {
		Periods []struct {
			Name             string  `json:"name"`
			StartTime        string  `json:"startTime"`
			Temperature      float64 `json:"temperature"`
			WindSpeed        string  `json:"windSpeed"`
			ShortForecast    string  `json:"shortForecast"`
			DetailedForecast string  `json:"detailedForecast"`
		} `json:"periods"`
	} `json:"properties"`
}

// NWSForecast returns the point forecast for the coordinates: the current
// period plus the next four.
func (c *Client) NWSForecast(ctx context.Context, lat, lng float64) (*models.Forecast, error) {
	key := fmt.Sprintf("nws_%.4f_%.4f", lat, lng)
	var fc models.Forecast
	if c.cache.Lookup(ctx, key, freshFor, freshFor, &fc) {
		return &fc, nil
	}

	var points nwsPoints
	pointsURL := fmt.Sprintf("%s/points/%.4f,%.4f", c.nwsBaseURL, lat, lng)
	if err := c.getJSON(ctx, pointsURL, &points); err != nil {
		return nil, fmt.Errorf("nws points: %w", err)
	}
	if points.Properties.Forecast == "" {
		return nil, fmt.Errorf("nws points: no forecast URL for %.4f,%.4f", lat, lng)
	}

	var raw nwsForecast
	if err := c.getJSON(ctx, points.Properties.Forecast, &raw); err != nil {
		return nil, fmt.Errorf("nws forecast: %w", err)
	}
	periods := raw.Properties.Periods
	if len(periods) == 0 {
		return nil, fmt.Errorf("nws forecast: empty periods for %.4f,%.4f", lat, lng)
	}

	convert := func(i int) models.ForecastPeriod {
		p := periods[i]
		start, _ := time.Parse(time.RFC3339, p.StartTime)
		return models.ForecastPeriod{
			Name:             p.Name,
			StartTime:        start,
			Temperature:      p.Temperature,
			WindSpeed:        p.WindSpeed,
			ShortForecast:    p.ShortForecast,
			DetailedForecast: p.DetailedForecast,
		}
	}
	fc.Current = convert(0)
	fc.Upcoming = fc.Upcoming[:0]
	for i := 1; i < len(periods) && i < 5; i++ {
		fc.Upcoming = append(fc.Upcoming, convert(i))
	}

	c.cache.Put(ctx, key, fc, freshFor)
	return &fc, nil
}

type openMeteoResponse struct {
	Current struct {
		Temperature   float64 `json:"temperature_2m"`
		Humidity      float64 `json:"relative_humidity_2m"`
		Precipitation float64 `json:"precipitation"`
		Snowfall      float64 `json:"snowfall"`
		Visibility    float64 `json:"visibility"`
		WindSpeed     float64 `json:"wind_speed_10m"`
		WindDirection float64 `json:"wind_direction_10m"`
	} `json:"current"`
}

// CurrentWeather returns the current-conditions snapshot for the coordinates
// from the open meteorological API.
func (c *Client) CurrentWeather(ctx context.Context, lat, lng float64) (*models.CurrentWeather, error) {
	key := fmt.Sprintf("openmeteo_%.4f_%.4f", lat, lng)
	var cw models.CurrentWeather
	if c.cache.Lookup(ctx, key, freshFor, freshFor, &cw) {
		return &cw, nil
	}

	url := fmt.Sprintf("%s/v1/forecast?latitude=%.4f&longitude=%.4f"+
		"&current=temperature_2m,relative_humidity_2m,precipitation,snowfall,visibility,wind_speed_10m,wind_direction_10m"+
		"&timezone=America/Denver",
		c.openMeteoBaseURL, lat, lng)

	var raw openMeteoResponse
	if err := c.getJSON(ctx, url, &raw); err != nil {
		return nil, fmt.Errorf("open-meteo: %w", err)
	}
	cw = models.CurrentWeather{
		Temperature:   raw.Current.Temperature,
		Humidity:      raw.Current.Humidity,
		Precipitation: raw.Current.Precipitation,
		Snowfall:      raw.Current.Snowfall,
		Visibility:    raw.Current.Visibility,
		WindSpeed:     raw.Current.WindSpeed,
		WindDirection: raw.Current.WindDirection,
	}

	c.cache.Put(ctx, key, cw, freshFor)
	return &cw, nil
}
