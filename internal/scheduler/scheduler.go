package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/basinwx/road-weather-service/internal/observability"
	"github.com/basinwx/road-weather-service/internal/udot"
)

// Default cadences for the three refresh tiers.
const (
	EssentialInterval  = 1 * time.Minute
	FrequentInterval   = 5 * time.Minute
	InfrequentInterval = 15 * time.Minute
)

// taskTimeout bounds a single fetch within a tier run.
const taskTimeout = 45 * time.Second

// Task is one named unit of refresh work within a tier.
type Task struct {
	Name string
	Run  func(ctx context.Context) error
}

// Tier groups tasks that share a refresh cadence.
type Tier struct {
	Name     string
	Interval time.Duration
	Tasks    []Task
}

// Stats tracks a tier's refresh history.
type Stats struct {
	LastRun    time.Time `json:"lastRun"`
	RunCount   int64     `json:"runCount"`
	ErrorCount int64     `json:"errorCount"`
}

// Scheduler keeps the caches warm so request handlers never reach the
// network. Each tier runs on its own timer; tasks within a tier run
// concurrently and a run is not done until every task has finished.
type Scheduler struct {
	scheduler *gocron.Scheduler
	tiers     []Tier
	logger    *zap.Logger

	mu    sync.Mutex
	stats map[string]Stats
}

// New creates a Scheduler for the given tiers.
func New(tiers []Tier, logger *zap.Logger) *Scheduler {
	stats := make(map[string]Stats, len(tiers))
	for _, t := range tiers {
		stats[t.Name] = Stats{}
	}
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		tiers:     tiers,
		logger:    logger,
		stats:     stats,
	}
}

// Start registers every tier with the underlying scheduler and kicks off an
// immediate run of each so the caches are populated at startup. The initial
// runs do not block Start.
func (s *Scheduler) Start() error {
	for _, tier := range s.tiers {
		tier := tier
		if _, err := s.scheduler.Every(tier.Interval).Do(func() {
			s.runTier(tier)
		}); err != nil {
			return err
		}
		go s.runTier(tier)
	}
	s.scheduler.StartAsync()
	return nil
}

// Stop halts all timers. In-flight runs finish on their own.
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}

// Tiers reports the configured tier names and intervals.
func (s *Scheduler) Tiers() []Tier {
	return s.tiers
}

// Stats returns a snapshot of per-tier refresh statistics.
func (s *Scheduler) Stats() map[string]Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]Stats, len(s.stats))
	for name, st := range s.stats {
		out[name] = st
	}
	return out
}

// runTier executes every task in the tier concurrently and waits for all of
// them. A failed task is logged and counted; it never stops the timer or the
// other tasks in the run.
func (s *Scheduler) runTier(tier Tier) {
	start := time.Now()
	var failures int64

	var g errgroup.Group
	for _, task := range tier.Tasks {
		task := task
		g.Go(func() error {
			ctx, cancel := context.WithTimeout(context.Background(), taskTimeout)
			defer cancel()

			if err := task.Run(ctx); err != nil {
				atomic.AddInt64(&failures, 1)
				s.logger.Warn("refresh task failed",
					zap.String("tier", tier.Name),
					zap.String("task", task.Name),
					zap.Error(err))
			}
			return nil
		})
	}
	g.Wait()

	elapsed := time.Since(start)
	observability.RefreshRunsTotal.WithLabelValues(tier.Name).Inc()
	observability.RefreshDuration.WithLabelValues(tier.Name).Observe(elapsed.Seconds())
	if failures > 0 {
		observability.RefreshErrorsTotal.WithLabelValues(tier.Name).Inc()
	}

	s.mu.Lock()
	st := s.stats[tier.Name]
	st.LastRun = time.Now()
	st.RunCount++
	st.ErrorCount += failures
	s.stats[tier.Name] = st
	s.mu.Unlock()

	s.logger.Info("refresh run complete",
		zap.String("tier", tier.Name),
		zap.Int("tasks", len(tier.Tasks)),
		zap.Int64("failures", failures),
		zap.Duration("elapsed", elapsed))
}

// DefaultTiers builds the standard three-tier layout over the traffic
// adapters: essential data every minute, operational data every five,
// slow-changing data every fifteen.
func DefaultTiers(svc *udot.Service) []Tier {
	task := func(name string, fetch func(context.Context) error) Task {
		return Task{Name: name, Run: fetch}
	}
	return []Tier{
		{
			Name:     "essential",
			Interval: EssentialInterval,
			Tasks: []Task{
				task("road_conditions", func(ctx context.Context) error {
					_, err := svc.RoadConditions(ctx)
					return err
				}),
				task("cameras", func(ctx context.Context) error {
					_, err := svc.Cameras(ctx)
					return err
				}),
				task("weather_stations", func(ctx context.Context) error {
					_, err := svc.WeatherStations(ctx)
					return err
				}),
			},
		},
		{
			Name:     "frequent",
			Interval: FrequentInterval,
			Tasks: []Task{
				task("snow_plows", func(ctx context.Context) error {
					_, err := svc.SnowPlows(ctx)
					return err
				}),
				task("alerts", func(ctx context.Context) error {
					_, err := svc.Alerts(ctx)
					return err
				}),
				task("traffic_events", func(ctx context.Context) error {
					_, err := svc.TrafficEvents(ctx)
					return err
				}),
			},
		},
		{
			Name:     "infrequent",
			Interval: InfrequentInterval,
			Tasks: []Task{
				task("rest_areas", func(ctx context.Context) error {
					_, err := svc.RestAreas(ctx)
					return err
				}),
				task("mountain_passes", func(ctx context.Context) error {
					_, err := svc.MountainPasses(ctx)
					return err
				}),
			},
		},
	}
}
