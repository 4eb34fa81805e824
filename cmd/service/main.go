package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/basinwx/road-weather-service/internal/cache"
	"github.com/basinwx/road-weather-service/internal/config"
	"github.com/basinwx/road-weather-service/internal/fetcher"
	"github.com/basinwx/road-weather-service/internal/forecast"
	httphandler "github.com/basinwx/road-weather-service/internal/http"
	"github.com/basinwx/road-weather-service/internal/lifecycle"
	"github.com/basinwx/road-weather-service/internal/observability"
	"github.com/basinwx/road-weather-service/internal/scheduler"
	"github.com/basinwx/road-weather-service/internal/snow"
	"github.com/basinwx/road-weather-service/internal/udot"
)

func main() {
	_ = godotenv.Load()

	logger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}

	udotFetcher := fetcher.New(fetcher.Options{
		MaxCallsPerWindow: cfg.FetcherMaxCalls,
		Window:            cfg.FetcherWindow,
		MinInterval:       cfg.FetcherMinSpacing,
		Timeout:           cfg.FetcherTimeout,
		APIKey:            cfg.UDOTAPIKey,
		UserAgent:         "UintahBasinWeather/1.0",
	}, logger)

	if cfg.BreakerEnabled {
		cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "udot",
			Timeout: cfg.BreakerTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= cfg.BreakerMaxFailures
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.Warn("circuit breaker state change",
					zap.String("breaker", name),
					zap.String("from", from.String()),
					zap.String("to", to.String()))
			},
		})
		udotFetcher.SetCircuitBreaker(cb)
		logger.Info("circuit breaker enabled",
			zap.Uint32("max_failures", cfg.BreakerMaxFailures),
			zap.Duration("timeout", cfg.BreakerTimeout))
	}

	var memStore cache.Store
	var memcacheCloser *cache.MemcachedStore
	switch cfg.CacheBackend {
	case "memcached":
		mc, err := cache.NewMemcachedStore(cfg.MemcachedAddrs, cfg.MemcachedTimeout, cfg.MemcachedMaxIdleConns)
		if err != nil {
			logger.Fatal("memcached store", zap.Error(err))
		}
		memcacheCloser = mc
		memStore = mc
		logger.Info("cache backend: memcached", zap.String("addrs", cfg.MemcachedAddrs))
	default:
		memStore = cache.NewInMemoryStore()
		logger.Info("cache backend: in_memory")
	}

	diskStore, err := cache.NewDiskStore(cfg.CacheDir, cfg.StaleLimit, logger)
	if err != nil {
		logger.Fatal("disk store", zap.Error(err))
	}
	tiered := cache.NewTieredCache(memStore, diskStore, logger)

	roads := udot.NewService(udotFetcher, tiered, udot.Options{
		BaseURL: cfg.UDOTBaseURL,
		Bounds:  cfg.Bounds,
	}, logger)
	forecastClient := forecast.NewClient(tiered, forecast.Options{}, logger)

	detector := snow.NewDetector(nil, logger)
	frames := snow.NewHTTPFrameSource()

	tiers := scheduler.DefaultTiers(roads)
	for i := range tiers {
		switch tiers[i].Name {
		case "essential":
			tiers[i].Interval = cfg.EssentialInterval
		case "frequent":
			tiers[i].Interval = cfg.FrequentInterval
		case "infrequent":
			tiers[i].Interval = cfg.InfrequentInterval
		}
	}
	// Snow detection rides the frequent tier: it reads the cameras and
	// stations the essential tier keeps fresh.
	for i := range tiers {
		if tiers[i].Name != "frequent" {
			continue
		}
		tiers[i].Tasks = append(tiers[i].Tasks, scheduler.Task{
			Name: "snow_detection",
			Run: func(ctx context.Context) error {
				cameras, err := roads.Cameras(ctx)
				if err != nil {
					return err
				}
				stations, err := roads.WeatherStations(ctx)
				if err != nil {
					return err
				}
				detector.AnalyzeBatch(ctx, frames, cameras, stations)
				return nil
			},
		})
	}

	sched := scheduler.New(tiers, logger)
	if err := sched.Start(); err != nil {
		logger.Fatal("scheduler", zap.Error(err))
	}

	healthConfig := &httphandler.HealthConfig{
		DegradedWindow:   5 * time.Minute,
		DegradedErrorPct: 50,
		StartTime:        time.Now(),
	}
	if memcacheCloser != nil {
		healthConfig.CachePing = memcacheCloser.Ping
	}

	var limiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
	}
	handler := httphandler.NewHandler(roads, forecastClient, detector, sched, healthConfig, logger)

	router := mux.NewRouter()
	router.Use(httphandler.CorrelationIDMiddleware(logger))
	router.Use(httphandler.MetricsMiddleware)
	router.HandleFunc("/health", handler.GetHealth).Methods("GET")
	router.Handle("/metrics", observability.MetricsHandler())
	api := router.PathPrefix("/api").Subrouter()
	api.Use(httphandler.RateLimitMiddleware(limiter))
	api.HandleFunc("/road-weather", handler.GetRoadWeather).Methods("GET")
	api.HandleFunc("/cameras", handler.GetCameras).Methods("GET")
	api.HandleFunc("/weather-stations", handler.GetWeatherStations).Methods("GET")
	api.HandleFunc("/traffic-events", handler.GetTrafficEvents).Methods("GET")
	api.HandleFunc("/alerts", handler.GetAlerts).Methods("GET")
	api.HandleFunc("/snow-plows", handler.GetSnowPlows).Methods("GET")
	api.HandleFunc("/rest-areas", handler.GetRestAreas).Methods("GET")
	api.HandleFunc("/mountain-passes", handler.GetMountainPasses).Methods("GET")
	api.HandleFunc("/snow-detection", handler.GetSnowDetection).Methods("GET")
	api.HandleFunc("/forecast", handler.GetForecast).Methods("GET")
	api.HandleFunc("/refresh-stats", handler.GetRefreshStats).Methods("GET")

	srv := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("server starting", zap.String("addr", ":"+cfg.ServerPort))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	<-ctx.Done()
	stop()

	logger.Info("graceful shutdown triggered")
	lifecycle.SetShuttingDown(true)
	sched.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}

	waitCtx, waitCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer waitCancel()
	if err := httphandler.WaitForInFlight(waitCtx, 100*time.Millisecond); err != nil {
		logger.Warn("in-flight requests not completed",
			zap.Error(err), zap.Int64("remaining", httphandler.InFlightCount()))
	}

	if err := observability.FlushTelemetry(context.Background(), logger); err != nil {
		logger.Error("telemetry flush", zap.Error(err))
	}

	if memcacheCloser != nil {
		if err := memcacheCloser.Close(); err != nil {
			logger.Error("memcached close", zap.Error(err))
		}
	}
	logger.Info("shutdown complete")
}
