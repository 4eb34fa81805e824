package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/basinwx/road-weather-service/internal/udot"
)

// Config holds service configuration loaded from YAML and env.
type Config struct {
	ServerPort string

	UDOTAPIKey  string
	UDOTBaseURL string

	FetcherWindow     time.Duration
	FetcherMaxCalls   int
	FetcherMinSpacing time.Duration
	FetcherTimeout    time.Duration

	CacheBackend string // "in_memory" or "memcached"
	CacheDir     string
	StaleLimit   time.Duration

	MemcachedAddrs        string
	MemcachedTimeout      time.Duration
	MemcachedMaxIdleConns int

	EssentialInterval  time.Duration
	FrequentInterval   time.Duration
	InfrequentInterval time.Duration

	RateLimitRPS   int
	RateLimitBurst int

	BreakerEnabled     bool
	BreakerMaxFailures uint32
	BreakerTimeout     time.Duration

	ShutdownTimeout time.Duration

	Bounds udot.Bounds
}

type fileConfig struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`

	UDOT struct {
		BaseURL string `yaml:"base_url"`
	} `yaml:"udot"`

	Fetcher struct {
		Window     string `yaml:"window"`
		MaxCalls   int    `yaml:"max_calls"`
		MinSpacing string `yaml:"min_spacing"`
		Timeout    string `yaml:"timeout"`
	} `yaml:"fetcher"`

	Cache struct {
		Backend    string `yaml:"backend"`
		Dir        string `yaml:"dir"`
		StaleLimit string `yaml:"stale_limit"`
		Memcached  struct {
			Addrs        string `yaml:"addrs"`
			Timeout      string `yaml:"timeout"`
			MaxIdleConns int    `yaml:"max_idle_conns"`
		} `yaml:"memcached"`
	} `yaml:"cache"`

	Refresh struct {
		Essential  string `yaml:"essential"`
		Frequent   string `yaml:"frequent"`
		Infrequent string `yaml:"infrequent"`
	} `yaml:"refresh"`

	Reliability struct {
		RateLimitRPS       int    `yaml:"rate_limit_rps"`
		RateLimitBurst     int    `yaml:"rate_limit_burst"`
		BreakerEnabled     bool   `yaml:"breaker_enabled"`
		BreakerMaxFailures uint32 `yaml:"breaker_max_failures"`
		BreakerTimeout     string `yaml:"breaker_timeout"`
	} `yaml:"reliability"`

	Shutdown struct {
		Timeout string `yaml:"timeout"`
	} `yaml:"shutdown"`

	Region struct {
		North *float64 `yaml:"north"`
		South *float64 `yaml:"south"`
		East  *float64 `yaml:"east"`
		West  *float64 `yaml:"west"`
	} `yaml:"region"`
}

type secretsFile struct {
	UDOTAPIKey string `yaml:"udot_api_key"`
}

// Load reads configuration from config/{ENV_NAME}.yaml (default dev) and config/secrets.yaml.
// API key comes from UDOT_API_KEY env or secrets file. Call from project root.
func Load() (*Config, error) {
	env := os.Getenv("ENV_NAME")
	if env == "" {
		env = "dev"
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("config: get working directory: %w", err)
	}
	configPath := filepath.Join(cwd, "config", env+".yaml")
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", configPath)
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	cfg := &Config{}

	cfg.ServerPort = fc.Server.Port
	if cfg.ServerPort == "" {
		cfg.ServerPort = "8080"
	}

	cfg.UDOTAPIKey = os.Getenv("UDOT_API_KEY")
	if cfg.UDOTAPIKey == "" {
		secretsPath := filepath.Join(cwd, "config", "secrets.yaml")
		secretsData, err := os.ReadFile(secretsPath)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read secrets file: %w", err)
			}
		} else {
			var sec secretsFile
			if err := yaml.Unmarshal(secretsData, &sec); err != nil {
				return nil, fmt.Errorf("parse secrets file: %w", err)
			}
			cfg.UDOTAPIKey = sec.UDOTAPIKey
		}
	}
	if cfg.UDOTAPIKey == "" {
		return nil, fmt.Errorf("UDOT_API_KEY required (set env or config/secrets.yaml udot_api_key)")
	}

	cfg.UDOTBaseURL = strings.TrimSpace(fc.UDOT.BaseURL)
	if cfg.UDOTBaseURL == "" {
		cfg.UDOTBaseURL = udot.DefaultBaseURL
	}

	cfg.FetcherWindow = parseDuration(fc.Fetcher.Window, 60*time.Second)
	cfg.FetcherMaxCalls = fc.Fetcher.MaxCalls
	if cfg.FetcherMaxCalls <= 0 {
		cfg.FetcherMaxCalls = 10
	}
	cfg.FetcherMinSpacing = parseDuration(fc.Fetcher.MinSpacing, 6*time.Second)
	cfg.FetcherTimeout = parseDuration(fc.Fetcher.Timeout, 15*time.Second)

	cfg.CacheBackend = strings.TrimSpace(strings.ToLower(os.Getenv("CACHE_BACKEND")))
	if cfg.CacheBackend == "" {
		cfg.CacheBackend = strings.TrimSpace(strings.ToLower(fc.Cache.Backend))
	}
	if cfg.CacheBackend == "" {
		cfg.CacheBackend = "in_memory"
	}
	cfg.CacheDir = strings.TrimSpace(os.Getenv("CACHE_DIR"))
	if cfg.CacheDir == "" {
		cfg.CacheDir = strings.TrimSpace(fc.Cache.Dir)
	}
	if cfg.CacheDir == "" {
		cfg.CacheDir = filepath.Join(cwd, "cache")
	}
	cfg.StaleLimit = parseDuration(fc.Cache.StaleLimit, 24*time.Hour)

	cfg.MemcachedAddrs = strings.TrimSpace(os.Getenv("MEMCACHED_ADDRS"))
	if cfg.MemcachedAddrs == "" {
		cfg.MemcachedAddrs = strings.TrimSpace(fc.Cache.Memcached.Addrs)
	}
	if cfg.MemcachedAddrs == "" {
		cfg.MemcachedAddrs = "localhost:11211"
	}
	cfg.MemcachedTimeout = parseDuration(fc.Cache.Memcached.Timeout, 500*time.Millisecond)
	cfg.MemcachedMaxIdleConns = fc.Cache.Memcached.MaxIdleConns
	if cfg.MemcachedMaxIdleConns <= 0 {
		cfg.MemcachedMaxIdleConns = 2
	}

	cfg.EssentialInterval = parseDuration(fc.Refresh.Essential, 1*time.Minute)
	cfg.FrequentInterval = parseDuration(fc.Refresh.Frequent, 5*time.Minute)
	cfg.InfrequentInterval = parseDuration(fc.Refresh.Infrequent, 15*time.Minute)

	cfg.RateLimitRPS = fc.Reliability.RateLimitRPS
	if cfg.RateLimitRPS <= 0 {
		cfg.RateLimitRPS = 100
	}
	cfg.RateLimitBurst = fc.Reliability.RateLimitBurst
	if cfg.RateLimitBurst <= 0 {
		cfg.RateLimitBurst = 250
	}

	cfg.BreakerEnabled = fc.Reliability.BreakerEnabled
	cfg.BreakerMaxFailures = fc.Reliability.BreakerMaxFailures
	if cfg.BreakerMaxFailures == 0 {
		cfg.BreakerMaxFailures = 5
	}
	cfg.BreakerTimeout = parseDuration(fc.Reliability.BreakerTimeout, 60*time.Second)

	cfg.ShutdownTimeout = parseDuration(fc.Shutdown.Timeout, 30*time.Second)

	cfg.Bounds = udot.UintahBasinBounds
	if fc.Region.North != nil {
		cfg.Bounds.North = *fc.Region.North
	}
	if fc.Region.South != nil {
		cfg.Bounds.South = *fc.Region.South
	}
	if fc.Region.East != nil {
		cfg.Bounds.East = *fc.Region.East
	}
	if fc.Region.West != nil {
		cfg.Bounds.West = *fc.Region.West
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// parseDuration parses a duration string and returns defaultVal if parsing fails or result is <= 0.
// Used for parsing duration fields from YAML config with safe fallback to defaults.
func parseDuration(s string, defaultVal time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return defaultVal
	}
	return d
}

// validate performs post-load validation of configuration values.
func validate(cfg *Config) error {
	switch cfg.CacheBackend {
	case "in_memory", "memcached":
		// valid
	default:
		return fmt.Errorf("cache.backend must be in_memory or memcached, got %q", cfg.CacheBackend)
	}
	if cfg.FetcherMinSpacing >= cfg.FetcherWindow {
		return fmt.Errorf("fetcher.min_spacing (%s) must be shorter than fetcher.window (%s)",
			cfg.FetcherMinSpacing, cfg.FetcherWindow)
	}
	if cfg.Bounds.North <= cfg.Bounds.South {
		return fmt.Errorf("region.north (%v) must be greater than region.south (%v)",
			cfg.Bounds.North, cfg.Bounds.South)
	}
	if cfg.Bounds.East <= cfg.Bounds.West {
		return fmt.Errorf("region.east (%v) must be greater than region.west (%v)",
			cfg.Bounds.East, cfg.Bounds.West)
	}
	return nil
}
