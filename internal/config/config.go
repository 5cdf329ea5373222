package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds service configuration. Values come from an optional
// config/{ENV_NAME}.yaml file with environment variables taking precedence;
// the API key is environment-only.
type Config struct {
	ServerPort string

	WeatherAPIKey   string
	WeatherBaseURL  string
	UpstreamTimeout time.Duration

	RequestTimeout  time.Duration
	CacheTTL        time.Duration
	CacheMaxEntries int
	CacheBackend    string // "in_memory" or "memcached"

	MemcachedAddrs        string
	MemcachedTimeout      time.Duration
	MemcachedMaxIdleConns int

	RateLimitRPS   int
	RateLimitBurst int

	LocationMaxLength int

	WarmLocations []string

	CORSAllowedOrigin string

	ShutdownTimeout               time.Duration
	ShutdownInFlightTimeout       time.Duration
	ShutdownInFlightCheckInterval time.Duration
}

type fileConfig struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`

	Upstream struct {
		BaseURL string `yaml:"base_url"`
		Timeout string `yaml:"timeout"`
	} `yaml:"upstream"`

	Request struct {
		Timeout string `yaml:"timeout"`
	} `yaml:"request"`

	Cache struct {
		Backend    string `yaml:"backend"`
		TTL        string `yaml:"ttl"`
		MaxEntries int    `yaml:"max_entries"`
		Memcached  struct {
			Addrs        string `yaml:"addrs"`
			Timeout      string `yaml:"timeout"`
			MaxIdleConns int    `yaml:"max_idle_conns"`
		} `yaml:"memcached"`
	} `yaml:"cache"`

	RateLimit struct {
		RPS   int `yaml:"rps"`
		Burst int `yaml:"burst"`
	} `yaml:"rate_limit"`

	Validation struct {
		LocationMaxLength int `yaml:"location_max_length"`
	} `yaml:"validation"`

	Warm struct {
		Locations []string `yaml:"locations"`
	} `yaml:"warm"`

	CORS struct {
		AllowedOrigin string `yaml:"allowed_origin"`
	} `yaml:"cors"`

	Shutdown struct {
		Timeout               string `yaml:"timeout"`
		InFlightTimeout       string `yaml:"in_flight_timeout"`
		InFlightCheckInterval string `yaml:"in_flight_check_interval"`
	} `yaml:"shutdown"`
}

// Load reads configuration. A .env file in the working directory is loaded
// first if present, then config/{ENV_NAME}.yaml (optional), then environment
// variables override file values. WEATHER_API_KEY is required.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var fc fileConfig
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
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	} else if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	cfg := &Config{}

	cfg.ServerPort = envOr("PORT", fc.Server.Port)
	if cfg.ServerPort == "" {
		cfg.ServerPort = "8080"
	}

	cfg.WeatherAPIKey = os.Getenv("WEATHER_API_KEY")
	if cfg.WeatherAPIKey == "" {
		return nil, fmt.Errorf("WEATHER_API_KEY required (set env or .env file)")
	}

	cfg.WeatherBaseURL = envOr("WEATHER_BASE_URL", fc.Upstream.BaseURL)
	if cfg.WeatherBaseURL == "" {
		cfg.WeatherBaseURL = "https://api.weatherapi.com/v1"
	}
	cfg.UpstreamTimeout = parseDuration(envOr("UPSTREAM_TIMEOUT", fc.Upstream.Timeout), 5*time.Second)

	cfg.RequestTimeout = parseDuration(envOr("REQUEST_TIMEOUT", fc.Request.Timeout), 10*time.Second)
	cfg.CacheTTL = parseDuration(envOr("CACHE_TTL", fc.Cache.TTL), 10*time.Minute)
	cfg.CacheMaxEntries = parseInt(os.Getenv("CACHE_MAX_ENTRIES"), fc.Cache.MaxEntries)
	if cfg.CacheMaxEntries <= 0 {
		cfg.CacheMaxEntries = 100
	}
	cfg.CacheBackend = strings.TrimSpace(strings.ToLower(envOr("CACHE_BACKEND", fc.Cache.Backend)))
	if cfg.CacheBackend == "" {
		cfg.CacheBackend = "in_memory"
	}

	cfg.MemcachedAddrs = strings.TrimSpace(envOr("MEMCACHED_ADDRS", fc.Cache.Memcached.Addrs))
	if cfg.MemcachedAddrs == "" {
		cfg.MemcachedAddrs = "localhost:11211"
	}
	cfg.MemcachedTimeout = parseDuration(envOr("MEMCACHED_TIMEOUT", fc.Cache.Memcached.Timeout), 500*time.Millisecond)
	cfg.MemcachedMaxIdleConns = parseInt(os.Getenv("MEMCACHED_MAX_IDLE_CONNS"), fc.Cache.Memcached.MaxIdleConns)
	if cfg.MemcachedMaxIdleConns <= 0 {
		cfg.MemcachedMaxIdleConns = 2
	}

	cfg.RateLimitRPS = parseInt(os.Getenv("RATE_LIMIT_RPS"), fc.RateLimit.RPS)
	if cfg.RateLimitRPS < 0 {
		cfg.RateLimitRPS = 0
	}
	cfg.RateLimitBurst = parseInt(os.Getenv("RATE_LIMIT_BURST"), fc.RateLimit.Burst)
	if cfg.RateLimitBurst <= 0 {
		cfg.RateLimitBurst = 2 * cfg.RateLimitRPS
	}

	cfg.LocationMaxLength = parseInt(os.Getenv("LOCATION_MAX_LENGTH"), fc.Validation.LocationMaxLength)
	if cfg.LocationMaxLength <= 0 {
		cfg.LocationMaxLength = 100
	}

	cfg.WarmLocations = fc.Warm.Locations
	if v := strings.TrimSpace(os.Getenv("WARM_LOCATIONS")); v != "" {
		cfg.WarmLocations = splitList(v)
	}

	cfg.CORSAllowedOrigin = envOr("CORS_ALLOWED_ORIGIN", fc.CORS.AllowedOrigin)
	if cfg.CORSAllowedOrigin == "" {
		cfg.CORSAllowedOrigin = "*"
	}

	cfg.ShutdownTimeout = parseDuration(envOr("SHUTDOWN_TIMEOUT", fc.Shutdown.Timeout), 30*time.Second)
	cfg.ShutdownInFlightTimeout = parseDuration(envOr("SHUTDOWN_IN_FLIGHT_TIMEOUT", fc.Shutdown.InFlightTimeout), 10*time.Second)
	cfg.ShutdownInFlightCheckInterval = parseDuration(envOr("SHUTDOWN_IN_FLIGHT_CHECK_INTERVAL", fc.Shutdown.InFlightCheckInterval), 100*time.Millisecond)

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// envOr returns the environment value for key if set, otherwise fileVal.
func envOr(key, fileVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fileVal
}

// parseDuration parses a duration string, returning defaultVal on empty
// string, parse error, or non-positive result.
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

// parseInt parses s as an int, falling back to fileVal on empty or invalid input.
func parseInt(s string, fileVal int) int {
	if s == "" {
		return fileVal
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return fileVal
	}
	return n
}

// splitList splits a comma-separated list, trimming whitespace and dropping
// empty items.
func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}

// validate performs post-load validation of configuration values. Ensures the
// request timeout covers the upstream timeout and the cache backend is known.
func validate(cfg *Config) error {
	if cfg.UpstreamTimeout <= 0 {
		return fmt.Errorf("UPSTREAM_TIMEOUT must be positive")
	}
	if cfg.RequestTimeout <= cfg.UpstreamTimeout {
		cfg.RequestTimeout = cfg.UpstreamTimeout + time.Second
	}
	switch cfg.CacheBackend {
	case "in_memory", "memcached":
		// valid
	default:
		return fmt.Errorf("cache.backend must be in_memory or memcached, got %q", cfg.CacheBackend)
	}
	return nil
}
